package lending

import (
	"context"
	"time"

	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Catalog is the book side of a lending operation.
type Catalog interface {
	// BookByTitle returns nil, nil when no book has that title.
	BookByTitle(ctx context.Context, title string) (*models.Book, error)
	// ReserveCopy increments issued only while issued < quantity and recomputes state.
	// It returns ErrNoCopy when the condition does not hold.
	ReserveCopy(ctx context.Context, title string) (*models.Book, error)
	// ReleaseCopy decrements issued only while issued > 0 and recomputes state.
	// It returns ErrNoCopy when the condition does not hold.
	ReleaseCopy(ctx context.Context, title string) (*models.Book, error)
	// ResetCirculation sets issued to outstanding[title] for every book (0 when absent).
	ResetCirculation(ctx context.Context, outstanding map[string]int) error
}

// Accounts is the account side of a lending operation.
type Accounts interface {
	// AccountByUsername prefers the non-deleted account; it returns nil, nil when none matches.
	AccountByUsername(ctx context.Context, username string) (*models.Account, error)
	AccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error)
	ListAccounts(ctx context.Context) ([]models.Account, error)
	// SaveLoans writes ActiveLoans, LoanHistory and Fines if the stored version still equals
	// acct.Version, and bumps it on success. Otherwise it returns ErrVersionConflict.
	SaveLoans(ctx context.Context, acct *models.Account) error
}

// Clock is the time source of the engine.
type Clock interface {
	Now() time.Time
}

// ClockFunc adapts a function to Clock.
type ClockFunc func() time.Time

func (f ClockFunc) Now() time.Time { return f() }

// SystemClock reads the wall clock.
var SystemClock Clock = ClockFunc(time.Now)
