package handlers

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/library/lending/lendingtest"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
)

type fakeAccounts struct {
	*lendingtest.Accounts
}

func (f fakeAccounts) CreateAccount(ctx context.Context, acct *models.Account) (primitive.ObjectID, error) {
	if existing, ok := f.Get(acct.Username); ok && !existing.Deleted {
		return primitive.NilObjectID, fmt.Errorf("%w: %s", store.ErrDuplicate, acct.Username)
	}
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now()
	}
	acct.ID = f.Add(*acct)
	return acct.ID, nil
}

func (f fakeAccounts) CountActiveByRole(ctx context.Context, role string) (int64, error) {
	all, err := f.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	var n int64
	for _, a := range all {
		if !a.Deleted && (role == "" || a.Role == role) {
			n++
		}
	}
	return n, nil
}

func (f fakeAccounts) live(id primitive.ObjectID, fn func(a *models.Account)) error {
	found := false
	f.Update(id, func(a *models.Account) {
		if !a.Deleted {
			fn(a)
			found = true
		}
	})
	if !found {
		return store.ErrNotFound
	}
	return nil
}

func (f fakeAccounts) UpdatePassword(ctx context.Context, id primitive.ObjectID, hash string) error {
	return f.live(id, func(a *models.Account) { a.Password = hash })
}

func (f fakeAccounts) RecordLoginFailure(ctx context.Context, id primitive.ObjectID, failed int, lockUntil *time.Time) error {
	f.Update(id, func(a *models.Account) {
		a.FailedLoginAttempts = failed
		a.TotalFailedAttempts++
		a.LockUntil = lockUntil
	})
	return nil
}

func (f fakeAccounts) ResetLoginFailures(ctx context.Context, id primitive.ObjectID) error {
	f.Update(id, func(a *models.Account) {
		a.FailedLoginAttempts = 0
		a.LockUntil = nil
	})
	return nil
}

func (f fakeAccounts) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	return f.live(id, func(a *models.Account) {
		a.Deleted = true
		a.DeletedAt = &at
	})
}

func (f fakeAccounts) ResetHistory(ctx context.Context) (int64, error) {
	all, err := f.ListAccounts(ctx)
	if err != nil {
		return 0, err
	}
	for _, a := range all {
		f.Update(a.ID, func(a *models.Account) {
			a.LoanHistory = nil
			a.Fines = 0
			a.Version++
		})
	}
	return int64(len(all)), nil
}

// fakeBooks is a BookStore over the same catalog the engine uses.
type fakeBooks struct {
	*lendingtest.Catalog
	mu     sync.Mutex
	titles []string
}

func newFakeBooks(books ...models.Book) *fakeBooks {
	f := &fakeBooks{Catalog: lendingtest.NewCatalog()}
	for _, b := range books {
		f.put(b)
	}
	return f
}

func (f *fakeBooks) put(b models.Book) models.Book {
	f.mu.Lock()
	defer f.mu.Unlock()
	if b.ID.IsZero() {
		b.ID = primitive.NewObjectID()
	}
	if _, ok := f.Book(b.Title); !ok {
		f.titles = append(f.titles, b.Title)
	}
	f.Put(b)
	out, _ := f.Book(b.Title)
	return out
}

func (f *fakeBooks) all() []models.Book {
	f.mu.Lock()
	titles := append([]string(nil), f.titles...)
	f.mu.Unlock()
	var out []models.Book
	for _, t := range titles {
		if b, ok := f.Book(t); ok {
			out = append(out, b)
		}
	}
	return out
}

func (f *fakeBooks) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	if _, ok := f.Book(book.Title); ok {
		return primitive.NilObjectID, store.ErrDuplicate
	}
	if book.Quantity <= 0 {
		book.Quantity = models.DefaultQuantity
	}
	*book = f.put(*book)
	return book.ID, nil
}

func (f *fakeBooks) SearchBooks(ctx context.Context, q store.BookQuery) ([]models.Book, error) {
	out := []models.Book{}
	for _, b := range f.all() {
		if q.State != "" && b.State != q.State {
			continue
		}
		if q.Search != "" && !strings.Contains(strings.ToLower(b.Title+" "+b.Author), strings.ToLower(q.Search)) {
			continue
		}
		out = append(out, b)
	}
	return out, nil
}

func (f *fakeBooks) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	for _, b := range f.all() {
		if b.ID == id {
			return &b, nil
		}
	}
	return nil, nil
}

func (f *fakeBooks) UpdateBook(ctx context.Context, id primitive.ObjectID, u store.BookUpdate) (*models.Book, error) {
	b, _ := f.BookByID(ctx, id)
	if b == nil {
		return nil, store.ErrNotFound
	}
	if u.Quantity != nil {
		if *u.Quantity < b.Issued {
			return nil, store.ErrQuantityBelowIssued
		}
		b.Quantity = *u.Quantity
	}
	if u.Price != nil {
		b.Price = *u.Price
	}
	if u.Author != nil {
		b.Author = *u.Author
	}
	out := f.put(*b)
	return &out, nil
}

func (f *fakeBooks) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	b, _ := f.BookByID(ctx, id)
	if b == nil {
		return nil, store.ErrNotFound
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, t := range f.titles {
		if t == b.Title {
			f.titles = append(f.titles[:i], f.titles[i+1:]...)
			break
		}
	}
	return b, nil
}

func (f *fakeBooks) UpdateBookCover(ctx context.Context, id primitive.ObjectID, key, url string) (string, error) {
	b, _ := f.BookByID(ctx, id)
	if b == nil {
		return "", store.ErrNotFound
	}
	prev := b.CoverS3Key
	b.CoverS3Key, b.CoverURL = key, url
	f.put(*b)
	return prev, nil
}

func (f *fakeBooks) CountBooks(ctx context.Context) (int64, int64, error) {
	var onLoan int64
	all := f.all()
	for _, b := range all {
		onLoan += int64(b.Issued)
	}
	return int64(len(all)), onLoan, nil
}

type fakeMail struct {
	mu       sync.Mutex
	settings *models.MailSettings
	logs     []models.ReceiptLog
}

func (f *fakeMail) GetMailSettings(ctx context.Context) (*models.MailSettings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.settings == nil {
		return nil, nil
	}
	s := *f.settings
	return &s, nil
}

func (f *fakeMail) UpsertMailSettings(ctx context.Context, m *models.MailSettings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	s := *m
	f.settings = &s
	return nil
}

func (f *fakeMail) InsertReceiptLog(ctx context.Context, entry *models.ReceiptLog) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.logs = append(f.logs, *entry)
	return nil
}

type fakeSender struct {
	settings []models.MailSettings
	receipts []service.Receipt
	err      error
}

func (f *fakeSender) SendReceipt(ctx context.Context, s models.MailSettings, r service.Receipt) error {
	if f.err != nil {
		return f.err
	}
	f.settings = append(f.settings, s)
	f.receipts = append(f.receipts, r)
	return nil
}

type fakeLookup struct {
	meta *service.BookMetadata
}

func (f fakeLookup) LookupISBN(ctx context.Context, isbn string) (*service.BookMetadata, error) {
	if f.meta == nil {
		return nil, service.ErrNoVolume
	}
	return f.meta, nil
}

type fakeCovers struct {
	objects map[string]string
}

func (f *fakeCovers) Upload(ctx context.Context, bookID, filename string, body io.Reader, contentType string) (string, error) {
	data, err := io.ReadAll(body)
	if err != nil {
		return "", err
	}
	key := service.CoverKey(bookID, filename)
	f.objects[key] = string(data)
	return key, nil
}

func (f *fakeCovers) Open(ctx context.Context, key string) (io.ReadCloser, string, error) {
	data, ok := f.objects[key]
	if !ok {
		return nil, "", fmt.Errorf("no object %s", key)
	}
	return io.NopCloser(strings.NewReader(data)), "image/png", nil
}

func (f *fakeCovers) Delete(ctx context.Context, key string) error {
	delete(f.objects, key)
	return nil
}
