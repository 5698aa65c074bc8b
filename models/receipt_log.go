package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// ReceiptLog records a borrower receipt emailed by a staff account.
type ReceiptLog struct {
	ID           primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	BorrowerName string             `bson:"borrowerName" json:"borrowerName"`
	ToEmail      string             `bson:"toEmail" json:"toEmail"`
	SentBy       string             `bson:"sentBy" json:"sentBy"`
	TotalFine    int                `bson:"totalFine" json:"totalFine"`
	SentAt       time.Time          `bson:"sentAt" json:"sentAt"`
}
