// Package lendingtest provides in-memory Catalog and Accounts implementations for tests.
package lendingtest

import (
	"context"
	"slices"
	"sync"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson/primitive"
)

// Catalog keeps books in memory keyed by title.
type Catalog struct {
	mu    sync.Mutex
	books map[string]*models.Book

	// Err, when set, is returned by every method.
	Err error
}

func NewCatalog(books ...models.Book) *Catalog {
	c := &Catalog{books: make(map[string]*models.Book)}
	for _, b := range books {
		c.Put(b)
	}
	return c
}

// Put stores b, filling the ID and state.
func (c *Catalog) Put(b models.Book) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	b.RecomputeState()
	c.books[b.Title] = &b
}

// Book returns a copy of the stored book; ok is false when it does not exist.
func (c *Catalog) Book(title string) (models.Book, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[title]
	if !ok {
		return models.Book{}, false
	}
	return *b, true
}

func (c *Catalog) BookByTitle(_ context.Context, title string) (*models.Book, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	b, ok := c.Book(title)
	if !ok {
		return nil, nil
	}
	return &b, nil
}

func (c *Catalog) ReserveCopy(_ context.Context, title string) (*models.Book, error) {
	return c.adjust(title, 1, func(b *models.Book) bool { return b.Issued < b.Quantity })
}

func (c *Catalog) ReleaseCopy(_ context.Context, title string) (*models.Book, error) {
	return c.adjust(title, -1, func(b *models.Book) bool { return b.Issued > 0 })
}

func (c *Catalog) adjust(title string, delta int, cond func(*models.Book) bool) (*models.Book, error) {
	if c.Err != nil {
		return nil, c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	b, ok := c.books[title]
	if !ok || !cond(b) {
		return nil, lending.ErrNoCopy
	}
	b.Issued += delta
	b.RecomputeState()
	out := *b
	return &out, nil
}

func (c *Catalog) ResetCirculation(_ context.Context, outstanding map[string]int) error {
	if c.Err != nil {
		return c.Err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for title, b := range c.books {
		b.Issued = min(outstanding[title], b.Quantity)
		b.RecomputeState()
	}
	return nil
}

// Accounts keeps accounts in memory in insertion order.
type Accounts struct {
	mu       sync.Mutex
	accounts []*models.Account

	// ListErr, when set, is returned by ListAccounts.
	ListErr error
	// SaveErr, when set, is consulted before every SaveLoans; a non-nil result is returned as is.
	SaveErr func(acct *models.Account) error
}

func NewAccounts(accts ...models.Account) *Accounts {
	a := &Accounts{}
	for _, acct := range accts {
		a.Add(acct)
	}
	return a
}

// Add stores acct and returns its ID.
func (a *Accounts) Add(acct models.Account) primitive.ObjectID {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acct.ID.IsZero() {
		acct.ID = primitive.NewObjectID()
	}
	stored := clone(&acct)
	a.accounts = append(a.accounts, stored)
	return stored.ID
}

// Get returns a copy of the first account with username, preferring non-deleted ones.
func (a *Accounts) Get(username string) (models.Account, bool) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acct := a.byUsername(username); acct != nil {
		return *clone(acct), true
	}
	return models.Account{}, false
}

// Touch bumps the stored version of username, as a concurrent writer would.
func (a *Accounts) Touch(username string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acct := a.byUsername(username); acct != nil {
		acct.Version++
	}
}

// Update applies fn to the stored account with id and reports whether it exists.
func (a *Accounts) Update(id primitive.ObjectID, fn func(acct *models.Account)) bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, acct := range a.accounts {
		if acct.ID == id {
			fn(acct)
			return true
		}
	}
	return false
}

func (a *Accounts) byUsername(username string) *models.Account {
	var deleted *models.Account
	for _, acct := range a.accounts {
		if acct.Username != username {
			continue
		}
		if !acct.Deleted {
			return acct
		}
		deleted = acct
	}
	return deleted
}

func (a *Accounts) AccountByUsername(_ context.Context, username string) (*models.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if acct := a.byUsername(username); acct != nil {
		return clone(acct), nil
	}
	return nil, nil
}

func (a *Accounts) AccountByID(_ context.Context, id primitive.ObjectID) (*models.Account, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, acct := range a.accounts {
		if acct.ID == id {
			return clone(acct), nil
		}
	}
	return nil, nil
}

func (a *Accounts) ListAccounts(_ context.Context) ([]models.Account, error) {
	if a.ListErr != nil {
		return nil, a.ListErr
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	out := make([]models.Account, 0, len(a.accounts))
	for _, acct := range a.accounts {
		out = append(out, *clone(acct))
	}
	return out, nil
}

func (a *Accounts) SaveLoans(_ context.Context, acct *models.Account) error {
	if a.SaveErr != nil {
		if err := a.SaveErr(acct); err != nil {
			return err
		}
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, stored := range a.accounts {
		if stored.ID != acct.ID {
			continue
		}
		if stored.Version != acct.Version {
			return lending.ErrVersionConflict
		}
		stored.ActiveLoans = slices.Clone(acct.ActiveLoans)
		stored.LoanHistory = slices.Clone(acct.LoanHistory)
		stored.Fines = acct.Fines
		stored.Version++
		acct.Version = stored.Version
		return nil
	}
	return lending.ErrVersionConflict
}

func clone(acct *models.Account) *models.Account {
	c := *acct
	c.ActiveLoans = slices.Clone(acct.ActiveLoans)
	c.LoanHistory = slices.Clone(acct.LoanHistory)
	return &c
}
