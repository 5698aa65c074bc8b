package store

import (
	"context"
	"fmt"
	"time"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

var (
	_ lending.Catalog  = (*DB)(nil)
	_ lending.Accounts = (*DB)(nil)
)

// CreateAccount inserts a live account. A username already held by a live account
// yields ErrDuplicate.
func (db *DB) CreateAccount(ctx context.Context, acct *models.Account) (primitive.ObjectID, error) {
	if acct.CreatedAt.IsZero() {
		acct.CreatedAt = time.Now().UTC()
	}
	acct.Deleted = false
	if acct.ActiveLoans == nil {
		acct.ActiveLoans = []models.ActiveLoan{}
	}
	if acct.LoanHistory == nil {
		acct.LoanHistory = []models.ClosedLoan{}
	}
	res, err := db.Accounts().InsertOne(ctx, acct, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, mapWriteErr(err)
	}
	id := res.InsertedID.(primitive.ObjectID)
	acct.ID = id
	return id, nil
}

// AccountByUsername returns the live account with that username, falling back to the
// most recently created deleted one.
func (db *DB) AccountByUsername(ctx context.Context, username string) (*models.Account, error) {
	var a models.Account
	opts := options.FindOne().SetSort(bson.D{{Key: "deleted", Value: 1}, {Key: "createdAt", Value: -1}})
	err := db.Accounts().FindOne(ctx, bson.M{"username": username}, opts).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

func (db *DB) AccountByID(ctx context.Context, id primitive.ObjectID) (*models.Account, error) {
	var a models.Account
	err := db.Accounts().FindOne(ctx, bson.M{"_id": id}).Decode(&a)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &a, nil
}

// ListAccounts returns every account, deleted ones included, oldest first.
func (db *DB) ListAccounts(ctx context.Context) ([]models.Account, error) {
	cur, err := db.Accounts().Find(ctx, bson.M{}, options.Find().SetSort(bson.M{"createdAt": 1}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var accounts []models.Account
	if err := cur.All(ctx, &accounts); err != nil {
		return nil, err
	}
	return accounts, nil
}

// SaveLoans writes the loan collections and fines if nobody else saved the account
// since it was read, then advances acct.Version.
func (db *DB) SaveLoans(ctx context.Context, acct *models.Account) error {
	active := acct.ActiveLoans
	if active == nil {
		active = []models.ActiveLoan{}
	}
	history := acct.LoanHistory
	if history == nil {
		history = []models.ClosedLoan{}
	}
	res, err := db.Accounts().UpdateOne(ctx,
		bson.M{"_id": acct.ID, "version": acct.Version},
		bson.M{
			"$set": bson.M{
				"activeLoans": active,
				"loanHistory": history,
				"fines":       acct.Fines,
			},
			"$inc": bson.M{"version": 1},
		},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return fmt.Errorf("%w: %s", lending.ErrVersionConflict, acct.Username)
	}
	acct.Version++
	return nil
}

// CountActiveByRole counts live accounts holding role. An empty role counts all of them.
func (db *DB) CountActiveByRole(ctx context.Context, role string) (int64, error) {
	filter := bson.M{"deleted": false}
	if role != "" {
		filter["role"] = role
	}
	return db.Accounts().CountDocuments(ctx, filter)
}

func (db *DB) UpdatePassword(ctx context.Context, id primitive.ObjectID, hashedPassword string) error {
	res, err := db.Accounts().UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"password": hashedPassword}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// RecordLoginFailure stores the consecutive failure count and bumps the lifetime total.
// A nil lockUntil clears any expired lock left on the account.
func (db *DB) RecordLoginFailure(ctx context.Context, id primitive.ObjectID, failed int, lockUntil *time.Time) error {
	update := bson.M{
		"$set": bson.M{"failedLoginAttempts": failed},
		"$inc": bson.M{"totalFailedAttempts": 1},
	}
	if lockUntil != nil {
		update["$set"].(bson.M)["lockUntil"] = *lockUntil
	} else {
		update["$unset"] = bson.M{"lockUntil": ""}
	}
	_, err := db.Accounts().UpdateOne(ctx, bson.M{"_id": id}, update)
	return err
}

func (db *DB) ResetLoginFailures(ctx context.Context, id primitive.ObjectID) error {
	_, err := db.Accounts().UpdateOne(ctx, bson.M{"_id": id}, bson.M{
		"$set":   bson.M{"failedLoginAttempts": 0},
		"$unset": bson.M{"lockUntil": ""},
	})
	return err
}

// SoftDelete marks a live account deleted. Its loans stay in place for reporting.
func (db *DB) SoftDelete(ctx context.Context, id primitive.ObjectID, at time.Time) error {
	res, err := db.Accounts().UpdateOne(ctx,
		bson.M{"_id": id, "deleted": false},
		bson.M{"$set": bson.M{"deleted": true, "deletedAt": at}},
	)
	if err != nil {
		return err
	}
	if res.MatchedCount == 0 {
		return ErrNotFound
	}
	return nil
}

// ResetHistory clears every account's loan history and fines. The version bump makes
// any lending write that read the old history retry.
func (db *DB) ResetHistory(ctx context.Context) (int64, error) {
	res, err := db.Accounts().UpdateMany(ctx, bson.M{}, bson.M{
		"$set": bson.M{"loanHistory": bson.A{}, "fines": 0},
		"$inc": bson.M{"version": 1},
	})
	if err != nil {
		return 0, err
	}
	return res.ModifiedCount, nil
}
