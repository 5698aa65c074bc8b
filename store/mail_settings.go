package store

import (
	"context"

	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// MailSettingsName keys the single SMTP settings document.
const MailSettingsName = "default"

// GetMailSettings returns the stored SMTP settings, or nil if none exist.
func (db *DB) GetMailSettings(ctx context.Context) (*models.MailSettings, error) {
	var m models.MailSettings
	err := db.MailSettings().FindOne(ctx, bson.M{"name": MailSettingsName}).Decode(&m)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &m, nil
}

// UpsertMailSettings creates or replaces the SMTP settings. AppPassword is stored as given;
// callers encrypt it first.
func (db *DB) UpsertMailSettings(ctx context.Context, m *models.MailSettings) error {
	set := bson.M{
		"name":        MailSettingsName,
		"host":        m.Host,
		"port":        m.Port,
		"username":    m.Username,
		"appPassword": m.AppPassword,
		"senderMail":  m.SenderMail,
	}
	opts := options.Update().SetUpsert(true)
	_, err := db.MailSettings().UpdateOne(ctx, bson.M{"name": MailSettingsName}, bson.M{"$set": set}, opts)
	return err
}
