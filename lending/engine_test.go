package lending_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/lending/lendingtest"
	"github.com/kevinaaaquil/library/models"
)

var (
	now   = time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)
	alice = models.Borrower{Name: "Alice", Phone: "555-0100"}
	bob   = models.Borrower{Name: "Bob", Phone: "555-0200"}
)

const day = 24 * time.Hour

type fixture struct {
	catalog  *lendingtest.Catalog
	accounts *lendingtest.Accounts
	clock    time.Time
	engine   *lending.Engine
}

func newFixture(t *testing.T, books []models.Book, accts ...models.Account) *fixture {
	t.Helper()
	f := &fixture{
		catalog:  lendingtest.NewCatalog(books...),
		accounts: lendingtest.NewAccounts(accts...),
		clock:    now,
	}
	f.engine = lending.NewEngine(f.catalog, f.accounts,
		lending.WithClock(lending.ClockFunc(func() time.Time { return f.clock })),
		lending.WithRetry(5, 0),
	)
	return f
}

func (f *fixture) book(t *testing.T, title string) models.Book {
	t.Helper()
	b, ok := f.catalog.Book(title)
	require.True(t, ok, "book %q", title)
	return b
}

func (f *fixture) account(t *testing.T, username string) models.Account {
	t.Helper()
	a, ok := f.accounts.Get(username)
	require.True(t, ok, "account %q", username)
	return a
}

func book(title string, quantity, issued int) models.Book {
	return models.Book{Title: title, Author: "Someone", Quantity: quantity, Issued: issued}
}

func staff(username, role string, loans ...models.ActiveLoan) models.Account {
	return models.Account{Username: username, Role: role, ActiveLoans: loans}
}

func openLoan(title string, b models.Borrower, issued time.Time) models.ActiveLoan {
	return models.ActiveLoan{BookTitle: title, BorrowerName: b.Name, BorrowerPhone: b.Phone, IssueDate: issued}
}

func issue(f *fixture, title, username string, b models.Borrower) error {
	_, err := f.engine.IssueBook(context.Background(), lending.Request{BookTitle: title, StaffUsername: username, Borrower: b})
	return err
}

func TestIssueBook_LastCopyFlipsStateToIssued(t *testing.T) {
	others := []models.ActiveLoan{
		openLoan("Emma", alice, now.Add(-day)),
		openLoan("Ulysses", alice, now.Add(-day)),
		openLoan("Middlemarch", alice, now.Add(-day)),
		openLoan("Beloved", alice, now.Add(-day)),
	}
	f := newFixture(t,
		[]models.Book{book("Dune", 10, 9), book("Emma", 10, 1), book("Solaris", 10, 0)},
		staff("as1", models.RoleAssistant, openLoan("Emma", bob, now), openLoan("Solaris", bob, now)),
		staff("lib0.0", models.RoleLibrarian, others...),
	)

	res, err := f.engine.IssueBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: alice})
	require.NoError(t, err)

	assert.Equal(t, 10, res.Book.Issued)
	assert.Equal(t, models.BookIssued, res.Book.State)
	assert.Equal(t, now, res.Loan.IssueDate)
	assert.Equal(t, models.BookIssued, f.book(t, "Dune").State)
	assert.Len(t, f.account(t, "as1").ActiveLoans, 3)

	err = issue(f, "Solaris", "as1", alice)
	assert.Equal(t, lending.KindBorrowerQuotaExceeded, lending.KindOf(err))
	assert.Equal(t, 0, f.book(t, "Solaris").Issued, "rejected issue must not touch the catalog")
}

func TestIssueBook_StockRemainingKeepsAvailable(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 10, 3)}, staff("lib0.0", models.RoleLibrarian))

	require.NoError(t, issue(f, "Dune", "lib0.0", alice))

	b := f.book(t, "Dune")
	assert.Equal(t, 4, b.Issued)
	assert.Equal(t, models.BookAvailable, b.State)
}

func TestIssueBook_AssistantQuota(t *testing.T) {
	loans := make([]models.ActiveLoan, 20)
	for i := range loans {
		loans[i] = openLoan(fmt.Sprintf("Title %d", i), models.Borrower{Name: fmt.Sprintf("B%d", i), Phone: "1"}, now)
	}
	f := newFixture(t, []models.Book{book("Dune", 10, 0)},
		staff("as1", models.RoleAssistant, loans...),
		staff("lib0.0", models.RoleLibrarian, loans...),
	)

	err := issue(f, "Dune", "as1", alice)
	assert.Equal(t, lending.KindStaffQuotaExceeded, lending.KindOf(err))

	assert.NoError(t, issue(f, "Dune", "lib0.0", alice))
}

func TestIssueBook_AssistantTitleQuota(t *testing.T) {
	var loans []models.ActiveLoan
	for i := 0; i < 5; i++ {
		loans = append(loans, openLoan("Dune", models.Borrower{Name: fmt.Sprintf("B%d", i), Phone: "1"}, now))
	}
	f := newFixture(t, []models.Book{book("Dune", 10, 5), book("Emma", 10, 0)}, staff("as1", models.RoleAssistant, loans...))

	err := issue(f, "Dune", "as1", alice)
	assert.Equal(t, lending.KindDuplicateTitleQuotaExceeded, lending.KindOf(err))
	assert.NoError(t, issue(f, "Emma", "as1", alice))
}

func TestIssueBook_Rejections(t *testing.T) {
	tests := []struct {
		name     string
		title    string
		username string
		borrower models.Borrower
		want     lending.Kind
	}{
		{"unknown account", "Dune", "ghost", alice, lending.KindAccountNotFound},
		{"deleted account", "Dune", "as9", alice, lending.KindAccountNotFound},
		{"user role", "Dune", "reader", alice, lending.KindIssueNotPermitted},
		{"borrower holds title", "Emma", "lib0.0", bob, lending.KindDuplicateBorrowerLoan},
		{"unknown book", "Missing", "lib0.0", alice, lending.KindBookUnavailable},
		{"no copies left", "Sold Out", "lib0.0", alice, lending.KindBookUnavailable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t,
				[]models.Book{book("Dune", 10, 0), book("Emma", 10, 1), book("Sold Out", 2, 2)},
				staff("lib0.0", models.RoleLibrarian, openLoan("Emma", bob, now)),
				models.Account{Username: "as9", Role: models.RoleAssistant, Deleted: true},
				staff("reader", models.RoleUser),
			)

			err := issue(f, tt.title, tt.username, tt.borrower)

			require.Error(t, err)
			assert.Equal(t, tt.want, lending.KindOf(err))
			assert.True(t, lending.Recoverable(err))
		})
	}
}

func TestIssueBook_FirstFailureWins(t *testing.T) {
	loans := make([]models.ActiveLoan, 20)
	for i := range loans {
		loans[i] = openLoan(fmt.Sprintf("Title %d", i), alice, now)
	}
	// staff quota, borrower quota and availability all fail; staff quota is checked first
	f := newFixture(t, []models.Book{book("Dune", 1, 1)}, staff("as1", models.RoleAssistant, loans...))

	err := issue(f, "Dune", "as1", alice)
	assert.Equal(t, lending.KindStaffQuotaExceeded, lending.KindOf(err))
}

func TestIssueBook_AccountWriteFailureReleasesCopy(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 1, 0)}, staff("lib0.0", models.RoleLibrarian))
	boom := errors.New("connection reset")
	f.accounts.SaveErr = func(*models.Account) error { return boom }

	err := issue(f, "Dune", "lib0.0", alice)

	assert.Equal(t, lending.KindStorageUnavailable, lending.KindOf(err))
	assert.ErrorIs(t, err, boom)
	b := f.book(t, "Dune")
	assert.Equal(t, 0, b.Issued)
	assert.Equal(t, models.BookAvailable, b.State)
	assert.Empty(t, f.account(t, "lib0.0").ActiveLoans)
}

func TestIssueBook_RetriesVersionConflict(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 3, 0)}, staff("lib0.0", models.RoleLibrarian))
	calls := 0
	f.accounts.SaveErr = func(*models.Account) error {
		calls++
		if calls == 1 {
			f.accounts.Touch("lib0.0")
		}
		return nil
	}

	require.NoError(t, issue(f, "Dune", "lib0.0", alice))

	assert.Equal(t, 2, calls)
	assert.Equal(t, 1, f.book(t, "Dune").Issued)
	assert.Len(t, f.account(t, "lib0.0").ActiveLoans, 1)
}

func TestIssueBook_ConflictAfterRetries(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 3, 0)}, staff("lib0.0", models.RoleLibrarian))
	f.accounts.SaveErr = func(*models.Account) error {
		f.accounts.Touch("lib0.0")
		return nil
	}

	err := issue(f, "Dune", "lib0.0", alice)

	assert.Equal(t, lending.KindConflict, lending.KindOf(err))
	assert.ErrorIs(t, err, lending.ErrVersionConflict)
	assert.Equal(t, 0, f.book(t, "Dune").Issued)
}

func TestIssueBook_StorageFailure(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 3, 0)}, staff("lib0.0", models.RoleLibrarian))
	f.accounts.ListErr = errors.New("no reachable servers")

	err := issue(f, "Dune", "lib0.0", alice)
	assert.Equal(t, lending.KindStorageUnavailable, lending.KindOf(err))
	assert.False(t, lending.Recoverable(err))
}

func TestIssueBook_ConcurrentLastCopies(t *testing.T) {
	const staffCount = 20
	var accts []models.Account
	for i := 0; i < staffCount; i++ {
		accts = append(accts, staff(fmt.Sprintf("lib%d", i), models.RoleLibrarian))
	}
	f := newFixture(t, []models.Book{book("Dune", 3, 0)}, accts...)

	var (
		wg          sync.WaitGroup
		mu          sync.Mutex
		succeeded   int
		unavailable int
	)
	for i := 0; i < staffCount; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			err := issue(f, "Dune", fmt.Sprintf("lib%d", i), models.Borrower{Name: fmt.Sprintf("R%d", i), Phone: "1"})
			mu.Lock()
			defer mu.Unlock()
			switch lending.KindOf(err) {
			case "":
				succeeded++
			case lending.KindBookUnavailable:
				unavailable++
			}
		}(i)
	}
	wg.Wait()

	b := f.book(t, "Dune")
	assert.Equal(t, 3, succeeded)
	assert.Equal(t, staffCount-3, unavailable)
	assert.Equal(t, 3, b.Issued)
	assert.Equal(t, models.BookIssued, b.State)
}

func TestReturnBook_ChargesFineAndMovesLoan(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 10, 10)},
		staff("as1", models.RoleAssistant,
			openLoan("Dune", alice, now.Add(-10*day)),
			openLoan("Dune", bob, now.Add(-2*day)),
		),
	)

	res, err := f.engine.ReturnBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: alice})
	require.NoError(t, err)

	assert.Equal(t, 3, res.Loan.Fine)
	assert.Equal(t, now, res.Loan.ReturnDate)
	assert.Equal(t, 9, res.Book.Issued)
	assert.Equal(t, models.BookAvailable, res.Book.State)

	acct := f.account(t, "as1")
	assert.Equal(t, 3, acct.Fines)
	require.Len(t, acct.ActiveLoans, 1)
	assert.Equal(t, "Bob", acct.ActiveLoans[0].BorrowerName)
	require.Len(t, acct.LoanHistory, 1)
	assert.Equal(t, now.Add(-10*day), acct.LoanHistory[0].IssueDate)
}

func TestReturnBook_FineBoundaries(t *testing.T) {
	tests := []struct {
		name string
		age  time.Duration
		want int
	}{
		{"seven days", 7 * day, 0},
		{"seven point two days", 7*day + 288*time.Minute, 1},
		{"ten days", 10 * day, 3},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := newFixture(t, []models.Book{book("Dune", 1, 1)},
				staff("lib0.0", models.RoleLibrarian, openLoan("Dune", alice, now.Add(-tt.age))))

			res, err := f.engine.ReturnBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "lib0.0", Borrower: alice})
			require.NoError(t, err)
			assert.Equal(t, tt.want, res.Loan.Fine)
		})
	}
}

func TestReturnBook_RoundTrip(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 2, 0)}, staff("as1", models.RoleAssistant))
	req := lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: alice}

	_, err := f.engine.IssueBook(context.Background(), req)
	require.NoError(t, err)
	f.clock = now.Add(3 * day)
	_, err = f.engine.ReturnBook(context.Background(), req)
	require.NoError(t, err)

	acct := f.account(t, "as1")
	assert.Empty(t, acct.ActiveLoans)
	require.Len(t, acct.LoanHistory, 1)
	assert.Equal(t, "Dune", acct.LoanHistory[0].BookTitle)
	assert.Equal(t, 0, acct.LoanHistory[0].Fine)
	assert.Equal(t, 0, f.book(t, "Dune").Issued)

	_, err = f.engine.ReturnBook(context.Background(), req)
	assert.Equal(t, lending.KindLoanNotFound, lending.KindOf(err))
}

func TestReturnBook_Rejections(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 2, 0), book("Emma", 2, 1)},
		staff("as1", models.RoleAssistant, openLoan("Dune", alice, now), openLoan("Gone", alice, now)),
	)

	tests := []struct {
		name string
		req  lending.Request
		want lending.Kind
	}{
		{"unknown account", lending.Request{BookTitle: "Dune", StaffUsername: "ghost", Borrower: alice}, lending.KindAccountNotFound},
		{"no such loan", lending.Request{BookTitle: "Emma", StaffUsername: "as1", Borrower: alice}, lending.KindLoanNotFound},
		{"other phone", lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: models.Borrower{Name: "Alice", Phone: "0"}}, lending.KindLoanNotFound},
		{"counter already zero", lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: alice}, lending.KindBookStateInconsistent},
		{"book deleted", lending.Request{BookTitle: "Gone", StaffUsername: "as1", Borrower: alice}, lending.KindBookStateInconsistent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := f.engine.ReturnBook(context.Background(), tt.req)
			assert.Equal(t, tt.want, lending.KindOf(err))
		})
	}
	assert.Len(t, f.account(t, "as1").ActiveLoans, 2)
}

func TestReturnBook_DeletedAccountStillAcceptsReturns(t *testing.T) {
	acct := staff("as2", models.RoleAssistant, openLoan("Dune", alice, now.Add(-day)))
	acct.Deleted = true
	f := newFixture(t, []models.Book{book("Dune", 1, 1)}, acct)

	_, err := f.engine.ReturnBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "as2", Borrower: alice})
	require.NoError(t, err)
	assert.Equal(t, models.BookAvailable, f.book(t, "Dune").State)
}

func TestReturnBook_AccountWriteFailureRestoresCopy(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 1, 1)},
		staff("lib0.0", models.RoleLibrarian, openLoan("Dune", alice, now.Add(-9*day))))
	f.accounts.SaveErr = func(*models.Account) error { return errors.New("write concern timeout") }

	_, err := f.engine.ReturnBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "lib0.0", Borrower: alice})

	assert.Equal(t, lending.KindStorageUnavailable, lending.KindOf(err))
	b := f.book(t, "Dune")
	assert.Equal(t, 1, b.Issued)
	assert.Equal(t, models.BookIssued, b.State)
	acct := f.account(t, "lib0.0")
	assert.Len(t, acct.ActiveLoans, 1)
	assert.Zero(t, acct.Fines)
}

func TestReturnBook_ConflictWhileCopyReissued(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 1, 1)},
		staff("as1", models.RoleAssistant, openLoan("Dune", alice, now.Add(-2*day))),
		staff("lib0.0", models.RoleLibrarian))
	calls := 0
	f.accounts.SaveErr = func(acct *models.Account) error {
		if acct.Username != "as1" {
			return nil
		}
		calls++
		if calls == 1 {
			// the freed copy goes straight back out before as1's write lands
			require.NoError(t, issue(f, "Dune", "lib0.0", bob))
			f.accounts.Touch("as1")
		}
		return nil
	}

	_, err := f.engine.ReturnBook(context.Background(), lending.Request{BookTitle: "Dune", StaffUsername: "as1", Borrower: alice})
	require.NoError(t, err)

	assert.Equal(t, 2, calls)
	b := f.book(t, "Dune")
	assert.Equal(t, 1, b.Issued)
	assert.Equal(t, models.BookIssued, b.State)
	assert.Empty(t, f.account(t, "as1").ActiveLoans)
	assert.Len(t, f.account(t, "as1").LoanHistory, 1)
	assert.Len(t, f.account(t, "lib0.0").ActiveLoans, 1)

	f.accounts.SaveErr = nil
	err = issue(f, "Dune", "lib0.0", alice)
	assert.Equal(t, lending.KindBookUnavailable, lending.KindOf(err))
}

func TestIssueBook_ConflictWhileCounterReset(t *testing.T) {
	f := newFixture(t, []models.Book{book("Dune", 3, 0)}, staff("lib0.0", models.RoleLibrarian))
	calls := 0
	f.accounts.SaveErr = func(*models.Account) error {
		calls++
		require.NoError(t, f.catalog.ResetCirculation(context.Background(), nil))
		f.accounts.Touch("lib0.0")
		return nil
	}

	err := issue(f, "Dune", "lib0.0", alice)

	assert.Equal(t, lending.KindConflict, lending.KindOf(err))
	assert.Equal(t, 1, calls)
	assert.Equal(t, 0, f.book(t, "Dune").Issued)
	assert.Empty(t, f.account(t, "lib0.0").ActiveLoans)
}
