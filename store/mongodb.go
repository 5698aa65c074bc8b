package store

import (
	"context"
	"errors"
	"log"
	"time"

	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	ErrNotFound            = errors.New("store: document not found")
	ErrDuplicate           = errors.New("store: duplicate key")
	ErrQuantityBelowIssued = errors.New("store: quantity lower than copies on loan")
)

type DB struct {
	Client   *mongo.Client
	Database *mongo.Database
}

func NewMongoDB(ctx context.Context, uri, dbName string) (*DB, error) {
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(uri))
	if err != nil {
		return nil, err
	}
	if err := client.Ping(ctx, nil); err != nil {
		return nil, err
	}
	log.Println("Connected to MongoDB")
	return &DB{
		Client:   client,
		Database: client.Database(dbName),
	}, nil
}

func (db *DB) Books() *mongo.Collection {
	return db.Database.Collection("books")
}

func (db *DB) Accounts() *mongo.Collection {
	return db.Database.Collection("accounts")
}

func (db *DB) MailSettings() *mongo.Collection {
	return db.Database.Collection("mail_settings")
}

func (db *DB) ReceiptLogs() *mongo.Collection {
	return db.Database.Collection("receipt_logs")
}

// EnsureIndexes creates the unique indexes the lending rules depend on:
// one book per title, and one live account per username.
func (db *DB) EnsureIndexes(ctx context.Context) error {
	if _, err := db.Books().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "title", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	if _, err := db.Accounts().Indexes().CreateMany(ctx, []mongo.IndexModel{
		{
			Keys: bson.D{{Key: "username", Value: 1}},
			Options: options.Index().
				SetUnique(true).
				SetPartialFilterExpression(bson.M{"deleted": false}),
		},
		{Keys: bson.D{{Key: "role", Value: 1}, {Key: "deleted", Value: 1}}},
	}); err != nil {
		return err
	}
	if _, err := db.MailSettings().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys:    bson.D{{Key: "name", Value: 1}},
		Options: options.Index().SetUnique(true),
	}); err != nil {
		return err
	}
	_, err := db.ReceiptLogs().Indexes().CreateOne(ctx, mongo.IndexModel{
		Keys: bson.D{{Key: "sentAt", Value: -1}},
	})
	return err
}

func (db *DB) Disconnect(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()
	return db.Client.Disconnect(ctx)
}

func mapWriteErr(err error) error {
	if mongo.IsDuplicateKeyError(err) {
		return errors.Join(ErrDuplicate, err)
	}
	return err
}
