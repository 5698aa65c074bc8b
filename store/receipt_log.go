package store

import (
	"context"

	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// InsertReceiptLog records that a receipt was emailed.
func (db *DB) InsertReceiptLog(ctx context.Context, entry *models.ReceiptLog) error {
	_, err := db.ReceiptLogs().InsertOne(ctx, entry, options.InsertOne())
	return err
}
