package reports

import (
	"sort"
	"time"

	"github.com/kevinaaaquil/library/models"
)

const (
	StatusIssued   = "Issued"
	StatusReturned = "Returned"
)

// Entry is one line of a loan history view. Date is the issue date of an open loan and the
// return date of a closed one.
type Entry struct {
	BookTitle     string    `json:"bookTitle"`
	BorrowerName  string    `json:"borrowerName"`
	BorrowerPhone string    `json:"borrowerPhone"`
	Staff         string    `json:"staff,omitempty"`
	StaffDeleted  bool      `json:"staffDeleted,omitempty"`
	Status        string    `json:"status"`
	Date          time.Time `json:"date"`
	Fine          int       `json:"fine"`
}

// StaffHistory merges the open and returned loans of one account, newest first.
func StaffHistory(acct *models.Account) []Entry {
	out := make([]Entry, 0, len(acct.ActiveLoans)+len(acct.LoanHistory))
	for _, l := range acct.ActiveLoans {
		out = append(out, openEntry(acct, l))
	}
	for _, l := range acct.LoanHistory {
		out = append(out, closedEntry(acct, l))
	}
	sortNewestFirst(out)
	return out
}

// BorrowerStats summarizes the loans of one borrower name.
type BorrowerStats struct {
	TotalBorrowed int `json:"totalBorrowed"`
	Returned      int `json:"returned"`
	NotReturned   int `json:"notReturned"`
	TotalFine     int `json:"totalFine"`
}

type BorrowerReport struct {
	BorrowerName string        `json:"borrowerName"`
	Stats        BorrowerStats `json:"stats"`
	Records      []Entry       `json:"records"`
}

// BorrowerHistory collects every loan across all accounts whose borrower name matches
// name case-insensitively, newest first.
func BorrowerHistory(accounts []models.Account, name string) BorrowerReport {
	rep := BorrowerReport{BorrowerName: name, Records: []Entry{}}
	for i := range accounts {
		acct := &accounts[i]
		for _, l := range acct.ActiveLoans {
			if l.BorrowerName == "" || !models.SameName(l.BorrowerName, name) {
				continue
			}
			rep.Stats.TotalBorrowed++
			rep.Stats.NotReturned++
			rep.Records = append(rep.Records, openEntry(acct, l))
		}
		for _, l := range acct.LoanHistory {
			if l.BorrowerName == "" || !models.SameName(l.BorrowerName, name) {
				continue
			}
			rep.Stats.TotalBorrowed++
			rep.Stats.Returned++
			rep.Stats.TotalFine += l.Fine
			rep.Records = append(rep.Records, closedEntry(acct, l))
		}
	}
	sortNewestFirst(rep.Records)
	return rep
}

func openEntry(acct *models.Account, l models.ActiveLoan) Entry {
	return Entry{
		BookTitle:     l.BookTitle,
		BorrowerName:  l.BorrowerName,
		BorrowerPhone: l.BorrowerPhone,
		Staff:         acct.Username,
		StaffDeleted:  acct.Deleted,
		Status:        StatusIssued,
		Date:          l.IssueDate,
	}
}

func closedEntry(acct *models.Account, l models.ClosedLoan) Entry {
	return Entry{
		BookTitle:     l.BookTitle,
		BorrowerName:  l.BorrowerName,
		BorrowerPhone: l.BorrowerPhone,
		Staff:         acct.Username,
		StaffDeleted:  acct.Deleted,
		Status:        StatusReturned,
		Date:          l.ReturnDate,
		Fine:          l.Fine,
	}
}

func sortNewestFirst(entries []Entry) {
	sort.SliceStable(entries, func(a, b int) bool { return entries[a].Date.After(entries[b].Date) })
}
