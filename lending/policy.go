package lending

import (
	"time"

	"github.com/kevinaaaquil/library/models"
)

// Policy holds the quota and fine parameters.
type Policy struct {
	AssistantLoanLimit  int // open loans per assistant account
	AssistantTitleLimit int // open loans of one title per assistant account
	BorrowerLoanLimit   int // open loans per borrower across all accounts
	GracePeriodDays     int
	FinePerDay          int
}

// DefaultPolicy returns the library's standing rules.
func DefaultPolicy() Policy {
	return Policy{
		AssistantLoanLimit:  20,
		AssistantTitleLimit: 5,
		BorrowerLoanLimit:   5,
		GracePeriodDays:     7,
		FinePerDay:          1,
	}
}

const day = 24 * time.Hour

// Fine computes the fine for a loan under the default policy.
func Fine(issueDate, returnDate time.Time) int {
	return DefaultPolicy().Fine(issueDate, returnDate)
}

// Fine charges FinePerDay for every day past the grace period. Days are counted on the
// absolute elapsed time and a started day counts as a full one.
func (p Policy) Fine(issueDate, returnDate time.Time) int {
	elapsed := returnDate.Sub(issueDate)
	if elapsed < 0 {
		elapsed = issueDate.Sub(returnDate)
	}
	// Sub saturates at the Duration limits, so round up without adding to elapsed.
	days := int(elapsed / day)
	if elapsed%day != 0 {
		days++
	}
	if days <= p.GracePeriodDays {
		return 0
	}
	return (days - p.GracePeriodDays) * p.FinePerDay
}

// checkStaff applies the role quotas of the issuing account.
func (p Policy) checkStaff(acct *models.Account, title string) error {
	switch acct.Role {
	case models.RoleLibrarian:
		return nil
	case models.RoleAssistant:
		if len(acct.ActiveLoans) >= p.AssistantLoanLimit {
			return newError(KindStaffQuotaExceeded,
				"assistants can hold at most %d open loans", p.AssistantLoanLimit)
		}
		if acct.CountActiveTitle(title) >= p.AssistantTitleLimit {
			return newError(KindDuplicateTitleQuotaExceeded,
				"assistants can hold at most %d copies of %q", p.AssistantTitleLimit, title)
		}
		return nil
	default:
		return newError(KindIssueNotPermitted, "role %q may not issue books", acct.Role)
	}
}

// checkBorrower applies the borrower quota over the open loans of every account.
func (p Policy) checkBorrower(accounts []models.Account, b models.Borrower, title string) error {
	count := 0
	hasTitle := false
	for i := range accounts {
		for _, l := range accounts[i].ActiveLoans {
			if !l.Borrower().Equal(b) {
				continue
			}
			count++
			if l.BookTitle == title {
				hasTitle = true
			}
		}
	}
	if count >= p.BorrowerLoanLimit {
		return newError(KindBorrowerQuotaExceeded,
			"borrower already has %d books", count)
	}
	if hasTitle {
		return newError(KindDuplicateBorrowerLoan, "borrower already has %q", title)
	}
	return nil
}
