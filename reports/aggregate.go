// Package reports derives read-only views from account loan records.
package reports

import (
	"sort"
	"time"

	"github.com/kevinaaaquil/library/models"
)

// Count is one ranked key with the number of loans it appears in.
type Count struct {
	Key   string `json:"key"`
	Count int    `json:"count"`
}

// DailyFines is the fine total of loans returned on one UTC calendar day.
type DailyFines struct {
	Date  string `json:"date"` // YYYY-MM-DD
	Total int    `json:"total"`
}

// TopBorrowers ranks borrower names by how many open and returned loans carry them.
// Ties keep the order in which names were first seen.
func TopBorrowers(accounts []models.Account, n int) []Count {
	return rank(accounts, n, func(title, borrower string) string { return borrower })
}

// MostBorrowedTitles ranks book titles the same way.
func MostBorrowedTitles(accounts []models.Account, n int) []Count {
	return rank(accounts, n, func(title, borrower string) string { return title })
}

func rank(accounts []models.Account, n int, key func(title, borrower string) string) []Count {
	index := make(map[string]int)
	counts := []Count{}
	add := func(k string) {
		if k == "" {
			return
		}
		if i, ok := index[k]; ok {
			counts[i].Count++
			return
		}
		index[k] = len(counts)
		counts = append(counts, Count{Key: k, Count: 1})
	}
	for i := range accounts {
		for _, l := range accounts[i].ActiveLoans {
			add(key(l.BookTitle, l.BorrowerName))
		}
		for _, l := range accounts[i].LoanHistory {
			add(key(l.BookTitle, l.BorrowerName))
		}
	}
	sort.SliceStable(counts, func(a, b int) bool { return counts[a].Count > counts[b].Count })
	if n >= 0 && len(counts) > n {
		counts = counts[:n]
	}
	return counts
}

// FinesByDate sums history fines per UTC return date, oldest first.
func FinesByDate(accounts []models.Account) []DailyFines {
	totals := make(map[string]int)
	for i := range accounts {
		for _, l := range accounts[i].LoanHistory {
			totals[l.ReturnDate.UTC().Format(time.DateOnly)] += l.Fine
		}
	}
	out := make([]DailyFines, 0, len(totals))
	for date, total := range totals {
		out = append(out, DailyFines{Date: date, Total: total})
	}
	sort.Slice(out, func(a, b int) bool { return out[a].Date < out[b].Date })
	return out
}
