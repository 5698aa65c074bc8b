package lending

import (
	"context"
	"errors"
	"io"
	"log"
	"slices"
	"time"

	"github.com/kevinaaaquil/library/models"
)

// Engine applies the lending rules against a Catalog and an Accounts store.
type Engine struct {
	catalog  Catalog
	accounts Accounts
	clock    Clock
	policy   Policy
	retry    retryConfig
	logger   *log.Logger
}

// Option configures an Engine.
type Option func(*Engine)

func WithClock(c Clock) Option { return func(e *Engine) { e.clock = c } }

func WithPolicy(p Policy) Option { return func(e *Engine) { e.policy = p } }

func WithLogger(l *log.Logger) Option { return func(e *Engine) { e.logger = l } }

// WithRetry sets how many times a version conflict is retried and the first backoff delay.
func WithRetry(maxAttempts int, baseDelay time.Duration) Option {
	return func(e *Engine) {
		if maxAttempts > 0 {
			e.retry.maxAttempts = maxAttempts
		}
		if baseDelay >= 0 {
			e.retry.baseDelay = baseDelay
		}
	}
}

func NewEngine(catalog Catalog, accounts Accounts, opts ...Option) *Engine {
	e := &Engine{
		catalog:  catalog,
		accounts: accounts,
		clock:    SystemClock,
		policy:   DefaultPolicy(),
		retry:    retryConfig{maxAttempts: defaultMaxAttempts, baseDelay: defaultBaseDelay},
		logger:   log.New(io.Discard, "", 0),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Policy returns the rules the engine enforces.
func (e *Engine) Policy() Policy { return e.policy }

// Request names the book, the staff account of record and the borrower of a loan.
type Request struct {
	BookTitle     string
	StaffUsername string
	Borrower      models.Borrower
}

type IssueResult struct {
	Book models.Book
	Loan models.ActiveLoan
}

type ReturnResult struct {
	Book models.Book
	Loan models.ClosedLoan
}

// IssueBook lends one copy of req.BookTitle to req.Borrower on behalf of req.StaffUsername.
// Preconditions are checked in order and the first failure is returned:
// account, role quota, borrower quota, availability.
func (e *Engine) IssueBook(ctx context.Context, req Request) (*IssueResult, error) {
	var res *IssueResult
	err := retryOnConflict(ctx, e.retry, func(ctx context.Context) error {
		r, err := e.issueOnce(ctx, req)
		res = r
		return err
	})
	if err != nil {
		return nil, err
	}
	return res, nil
}

func (e *Engine) issueOnce(ctx context.Context, req Request) (*IssueResult, error) {
	acct, err := e.accounts.AccountByUsername(ctx, req.StaffUsername)
	if err != nil {
		return nil, storageError("load account", err)
	}
	if acct == nil || acct.Deleted {
		return nil, newError(KindAccountNotFound, "account %q not found", req.StaffUsername)
	}
	if err := e.policy.checkStaff(acct, req.BookTitle); err != nil {
		return nil, err
	}

	all, err := e.accounts.ListAccounts(ctx)
	if err != nil {
		return nil, storageError("list accounts", err)
	}
	if err := e.policy.checkBorrower(all, req.Borrower, req.BookTitle); err != nil {
		return nil, err
	}

	book, err := e.catalog.BookByTitle(ctx, req.BookTitle)
	if err != nil {
		return nil, storageError("load book", err)
	}
	if book == nil || !book.HasStock() {
		return nil, newError(KindBookUnavailable, "%q is out of stock or not in the catalog", req.BookTitle)
	}

	book, err = e.catalog.ReserveCopy(ctx, req.BookTitle)
	if errors.Is(err, ErrNoCopy) {
		return nil, newError(KindBookUnavailable, "%q is out of stock or not in the catalog", req.BookTitle)
	}
	if err != nil {
		return nil, storageError("reserve copy", err)
	}

	loan := models.ActiveLoan{
		BookTitle:     req.BookTitle,
		BorrowerName:  req.Borrower.Name,
		BorrowerPhone: req.Borrower.Phone,
		IssueDate:     e.clock.Now(),
	}
	acct.ActiveLoans = append(acct.ActiveLoans, loan)
	if err := e.accounts.SaveLoans(ctx, acct); err != nil {
		released := e.compensate(ctx, "release", req.BookTitle, e.catalog.ReleaseCopy)
		if errors.Is(err, ErrVersionConflict) {
			if !released {
				// the counter moved under us; a retry cannot tell which copy is ours
				return nil, newError(KindConflict, "counter of %q changed concurrently, try again", req.BookTitle)
			}
			return nil, err
		}
		return nil, storageError("save account", err)
	}
	return &IssueResult{Book: *book, Loan: loan}, nil
}

// ReturnBook closes the first open loan of req.BookTitle to req.Borrower held by
// req.StaffUsername, charges the fine and puts the copy back on the shelf.
// Soft-deleted accounts can still take returns.
func (e *Engine) ReturnBook(ctx context.Context, req Request) (*ReturnResult, error) {
	var res *ReturnResult
	// released is set while a copy freed by an earlier attempt could not be put back;
	// later attempts reuse it instead of releasing another one.
	released := false
	err := retryOnConflict(ctx, e.retry, func(ctx context.Context) error {
		r, err := e.returnOnce(ctx, req, &released)
		res = r
		return err
	})
	if err != nil {
		if released {
			e.compensate(ctx, "reserve", req.BookTitle, e.catalog.ReserveCopy)
		}
		return nil, err
	}
	return res, nil
}

func (e *Engine) returnOnce(ctx context.Context, req Request, released *bool) (*ReturnResult, error) {
	acct, err := e.accounts.AccountByUsername(ctx, req.StaffUsername)
	if err != nil {
		return nil, storageError("load account", err)
	}
	if acct == nil {
		return nil, newError(KindAccountNotFound, "account %q not found", req.StaffUsername)
	}
	idx := acct.FindActiveLoan(req.BookTitle, req.Borrower)
	if idx < 0 {
		return nil, newError(KindLoanNotFound, "no open loan of %q for this borrower", req.BookTitle)
	}

	book, err := e.catalog.BookByTitle(ctx, req.BookTitle)
	if err != nil {
		return nil, storageError("load book", err)
	}
	if !*released {
		if book == nil || book.Issued <= 0 {
			return nil, newError(KindBookStateInconsistent, "%q has no copies on loan", req.BookTitle)
		}
		book, err = e.catalog.ReleaseCopy(ctx, req.BookTitle)
		if errors.Is(err, ErrNoCopy) {
			return nil, newError(KindBookStateInconsistent, "%q has no copies on loan", req.BookTitle)
		}
		if err != nil {
			return nil, storageError("release copy", err)
		}
		*released = true
	} else if book == nil {
		return nil, newError(KindBookStateInconsistent, "%q is no longer in the catalog", req.BookTitle)
	}

	now := e.clock.Now()
	loan := acct.ActiveLoans[idx]
	fine := e.policy.Fine(loan.IssueDate, now)
	closed := loan.Close(now, fine)
	acct.ActiveLoans = slices.Delete(acct.ActiveLoans, idx, idx+1)
	acct.LoanHistory = append(acct.LoanHistory, closed)
	acct.Fines += fine
	if err := e.accounts.SaveLoans(ctx, acct); err != nil {
		if e.compensate(ctx, "reserve", req.BookTitle, e.catalog.ReserveCopy) {
			*released = false
		}
		if errors.Is(err, ErrVersionConflict) {
			return nil, err
		}
		return nil, storageError("save account", err)
	}
	*released = false
	return &ReturnResult{Book: *book, Loan: closed}, nil
}

// compensate undoes a counter change whose account write failed and reports whether it applied.
func (e *Engine) compensate(ctx context.Context, op, title string, fn func(context.Context, string) (*models.Book, error)) bool {
	if _, err := fn(context.WithoutCancel(ctx), title); err != nil {
		e.logger.Printf("lending: %s %q after failed account write: %v", op, title, err)
		return false
	}
	return true
}
