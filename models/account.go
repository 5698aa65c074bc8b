package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Role constants for account authorization.
const (
	RoleLibrarian = "Librarian"
	RoleAssistant = "Assistant"
	RoleUser      = "User"
)

var ValidRoles = []string{RoleLibrarian, RoleAssistant, RoleUser}

// IsStaff reports whether the role may work the lending desk.
func IsStaff(role string) bool {
	return role == RoleLibrarian || role == RoleAssistant
}

type Account struct {
	ID                  primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Username            string             `bson:"username" json:"username"`
	Password            string             `bson:"password" json:"-"` // bcrypt hash
	Role                string             `bson:"role" json:"role"`
	Fines               int                `bson:"fines" json:"fines"`
	Deleted             bool               `bson:"deleted" json:"deleted"`
	DeletedAt           *time.Time         `bson:"deletedAt,omitempty" json:"deletedAt,omitempty"`
	LockUntil           *time.Time         `bson:"lockUntil,omitempty" json:"-"`
	FailedLoginAttempts int                `bson:"failedLoginAttempts" json:"-"`
	TotalFailedAttempts int                `bson:"totalFailedAttempts" json:"totalFailedAttempts"`
	ActiveLoans         []ActiveLoan       `bson:"activeLoans" json:"activeLoans"`
	LoanHistory         []ClosedLoan       `bson:"loanHistory" json:"loanHistory"`
	// Version guards writes of the loan collections; see store.SaveLoans.
	Version   int64     `bson:"version" json:"-"`
	CreatedAt time.Time `bson:"createdAt" json:"createdAt"`
}

// Locked reports whether a login lockout is still in force at now.
func (a *Account) Locked(now time.Time) bool {
	return a.LockUntil != nil && a.LockUntil.After(now)
}

// FindActiveLoan returns the index of the first open loan of title held by b, or -1.
func (a *Account) FindActiveLoan(title string, b Borrower) int {
	for i, l := range a.ActiveLoans {
		if l.Matches(title, b) {
			return i
		}
	}
	return -1
}

// CountActiveTitle returns how many open loans of title this account holds.
func (a *Account) CountActiveTitle(title string) int {
	n := 0
	for _, l := range a.ActiveLoans {
		if l.BookTitle == title {
			n++
		}
	}
	return n
}
