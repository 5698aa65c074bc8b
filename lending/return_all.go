package lending

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"time"

	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// AccountFailure is an account ReturnAll could not close.
type AccountFailure struct {
	AccountID primitive.ObjectID
	Username  string
	OpenLoans int
	Err       error
}

type ReturnAllResult struct {
	ReturnDate time.Time
	Accounts   int // accounts whose loans were closed
	Loans      int
	Fines      int
	Failures   []AccountFailure
}

// ReturnAll closes every open loan of every account with one return date, then resets the
// catalog counters. Accounts are processed independently: a failing account is reported in
// Failures and its loans stay open; the books keep one issued copy per loan still open.
// The returned error is non-nil when the account list could not be read, the catalog reset
// failed, or any account failed; the result is returned whenever the batch started.
func (e *Engine) ReturnAll(ctx context.Context) (*ReturnAllResult, error) {
	now := e.clock.Now()
	accts, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, storageError("list accounts", err)
	}

	res := &ReturnAllResult{ReturnDate: now}
	outstanding := make(map[string]int)
	var errs []error
	for i := range accts {
		if len(accts[i].ActiveLoans) == 0 {
			continue
		}
		closed, remaining, err := e.closeAccount(ctx, &accts[i], now)
		if err != nil {
			e.logger.Printf("lending: return-all %s: %v", accts[i].Username, err)
			res.Failures = append(res.Failures, AccountFailure{
				AccountID: accts[i].ID,
				Username:  accts[i].Username,
				OpenLoans: len(remaining),
				Err:       err,
			})
			for _, l := range remaining {
				outstanding[l.BookTitle]++
			}
			errs = append(errs, fmt.Errorf("%s: %w", accts[i].Username, err))
			continue
		}
		res.Accounts++
		res.Loans += len(closed)
		for _, c := range closed {
			res.Fines += c.Fine
		}
	}

	if err := e.catalog.ResetCirculation(ctx, outstanding); err != nil {
		errs = append(errs, storageError("reset circulation", err))
	}
	if len(errs) > 0 {
		return res, &Error{
			Kind: KindStorageUnavailable,
			Msg:  fmt.Sprintf("return-all incomplete (%d accounts failed)", len(res.Failures)),
			Err:  errors.Join(errs...),
		}
	}
	return res, nil
}

// closeAccount moves all open loans of acct to its history. On a version conflict the
// account is reloaded and the close is recomputed. remaining holds the loans still open
// when the account could not be written.
func (e *Engine) closeAccount(ctx context.Context, acct *models.Account, now time.Time) (closed []models.ClosedLoan, remaining []models.ActiveLoan, err error) {
	current := acct
	err = retryOnConflict(ctx, e.retry, func(ctx context.Context) error {
		if current == nil {
			reloaded, err := e.accounts.AccountByID(ctx, acct.ID)
			if err != nil {
				return storageError("reload account", err)
			}
			if reloaded == nil {
				closed, remaining = nil, nil
				return nil
			}
			current = reloaded
		}
		remaining = current.ActiveLoans

		next := *current
		batch := make([]models.ClosedLoan, 0, len(current.ActiveLoans))
		for _, l := range current.ActiveLoans {
			fine := e.policy.Fine(l.IssueDate, now)
			batch = append(batch, l.Close(now, fine))
			next.Fines += fine
		}
		next.ActiveLoans = []models.ActiveLoan{}
		next.LoanHistory = append(slices.Clone(current.LoanHistory), batch...)

		if err := e.accounts.SaveLoans(ctx, &next); err != nil {
			if errors.Is(err, ErrVersionConflict) {
				current = nil
				return err
			}
			return storageError("save account", err)
		}
		closed, remaining = batch, nil
		return nil
	})
	return closed, remaining, err
}
