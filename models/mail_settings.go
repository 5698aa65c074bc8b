package models

import "go.mongodb.org/mongo-driver/bson/primitive"

// MailSettings holds the SMTP account used to email receipts. There is a single document,
// keyed by Name; the app password is encrypted at rest when an encryption key is configured.
type MailSettings struct {
	ID          primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Name        string             `bson:"name" json:"-"`
	Host        string             `bson:"host" json:"host"`
	Port        int                `bson:"port" json:"port"`
	Username    string             `bson:"username" json:"username"`
	AppPassword string             `bson:"appPassword" json:"appPassword"`
	SenderMail  string             `bson:"senderMail" json:"senderMail"`
}

// Complete reports whether the settings are enough to dial out.
func (m *MailSettings) Complete() bool {
	return m != nil && m.Host != "" && m.Port > 0 && m.Username != "" && m.AppPassword != "" && m.SenderMail != ""
}
