package handlers

import (
	"context"
	"io"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
)

// AccountStore is the account persistence the handlers use; *store.DB implements it.
type AccountStore interface {
	lending.Accounts
	CreateAccount(ctx context.Context, acct *models.Account) (primitive.ObjectID, error)
	CountActiveByRole(ctx context.Context, role string) (int64, error)
	UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error
	RecordLoginFailure(ctx context.Context, id primitive.ObjectID, failed int, lockUntil *time.Time) error
	ResetLoginFailures(ctx context.Context, id primitive.ObjectID) error
	SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error
	ResetHistory(ctx context.Context) (int64, error)
}

// BookStore is the catalog persistence the handlers use; *store.DB implements it.
type BookStore interface {
	InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
	SearchBooks(ctx context.Context, q store.BookQuery) ([]models.Book, error)
	BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	UpdateBook(ctx context.Context, id primitive.ObjectID, u store.BookUpdate) (*models.Book, error)
	DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error)
	UpdateBookCover(ctx context.Context, id primitive.ObjectID, s3Key, url string) (string, error)
	CountBooks(ctx context.Context) (titles, onLoan int64, err error)
}

// MailStore holds SMTP settings and the receipt log; *store.DB implements it.
type MailStore interface {
	GetMailSettings(ctx context.Context) (*models.MailSettings, error)
	UpsertMailSettings(ctx context.Context, m *models.MailSettings) error
	InsertReceiptLog(ctx context.Context, entry *models.ReceiptLog) error
}

// CoverStorage keeps cover images; *service.CoverStore implements it.
type CoverStorage interface {
	Upload(ctx context.Context, bookID, filename string, body io.Reader, contentType string) (string, error)
	Open(ctx context.Context, key string) (io.ReadCloser, string, error)
	Delete(ctx context.Context, key string) error
}

// ISBNLookup prefills new books; *service.MetadataClient implements it.
type ISBNLookup interface {
	LookupISBN(ctx context.Context, isbn string) (*service.BookMetadata, error)
}

// ReceiptSender emails receipts; *service.Mailer implements it.
type ReceiptSender interface {
	SendReceipt(ctx context.Context, s models.MailSettings, r service.Receipt) error
}

var (
	_ AccountStore  = (*store.DB)(nil)
	_ BookStore     = (*store.DB)(nil)
	_ MailStore     = (*store.DB)(nil)
	_ CoverStorage  = (*service.CoverStore)(nil)
	_ ISBNLookup    = (*service.MetadataClient)(nil)
	_ ReceiptSender = (*service.Mailer)(nil)
)
