package models

import (
	"time"

	"golang.org/x/text/cases"
)

// Borrower is not stored on its own; it is identified by the name and phone written
// into each loan record.
type Borrower struct {
	Name  string `json:"name"`
	Phone string `json:"phone"`
}

// Equal is the exact, case-sensitive match used by the lending quotas.
func (b Borrower) Equal(o Borrower) bool {
	return b.Name == o.Name && b.Phone == o.Phone
}

var fold = cases.Fold()

// SameName compares names case-insensitively, as history search does.
func SameName(a, b string) bool {
	return fold.String(a) == fold.String(b)
}

// ActiveLoan is an open loan, owned by the staff account that issued it.
type ActiveLoan struct {
	BookTitle     string    `bson:"bookTitle" json:"bookTitle"`
	BorrowerName  string    `bson:"borrowerName" json:"borrowerName"`
	BorrowerPhone string    `bson:"borrowerPhone" json:"borrowerPhone"`
	IssueDate     time.Time `bson:"issueDate" json:"issueDate"`
}

func (l ActiveLoan) Borrower() Borrower {
	return Borrower{Name: l.BorrowerName, Phone: l.BorrowerPhone}
}

// Matches reports whether the loan is for title and held by b.
func (l ActiveLoan) Matches(title string, b Borrower) bool {
	return l.BookTitle == title && l.Borrower().Equal(b)
}

// Close turns the loan into its history record.
func (l ActiveLoan) Close(returnDate time.Time, fine int) ClosedLoan {
	return ClosedLoan{
		BookTitle:     l.BookTitle,
		BorrowerName:  l.BorrowerName,
		BorrowerPhone: l.BorrowerPhone,
		IssueDate:     l.IssueDate,
		ReturnDate:    returnDate,
		Fine:          fine,
	}
}

// ClosedLoan is a returned loan kept in the account's history.
type ClosedLoan struct {
	BookTitle     string    `bson:"bookTitle" json:"bookTitle"`
	BorrowerName  string    `bson:"borrowerName" json:"borrowerName"`
	BorrowerPhone string    `bson:"borrowerPhone" json:"borrowerPhone"`
	IssueDate     time.Time `bson:"issueDate" json:"issueDate"`
	ReturnDate    time.Time `bson:"returnDate" json:"returnDate"`
	Fine          int       `bson:"fine" json:"fine"`
}
