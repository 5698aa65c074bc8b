package models

import (
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
)

// BookState is derived from the issued/quantity counters and stored alongside them
// so the catalog can be filtered on it.
type BookState string

const (
	BookAvailable BookState = "Available"
	BookIssued    BookState = "Issued"
)

// DefaultQuantity is the number of copies a new title starts with when none is given.
const DefaultQuantity = 10

type Book struct {
	ID         primitive.ObjectID `bson:"_id,omitempty" json:"id"`
	Title      string             `bson:"title" json:"title"`
	Author     string             `bson:"author" json:"author"`
	Pages      int                `bson:"pages,omitempty" json:"pages,omitempty"`
	Price      float64            `bson:"price" json:"price"`
	Publisher  string             `bson:"publisher,omitempty" json:"publisher,omitempty"`
	Genre      string             `bson:"genre,omitempty" json:"genre,omitempty"`
	ISBN       string             `bson:"isbn,omitempty" json:"isbn,omitempty"`
	CoverURL   string             `bson:"coverUrl,omitempty" json:"coverUrl,omitempty"`
	CoverS3Key string             `bson:"coverS3Key,omitempty" json:"-"`
	Quantity   int                `bson:"quantity" json:"quantity"`
	Issued     int                `bson:"issued" json:"issued"`
	State      BookState          `bson:"state" json:"state"`
	CreatedAt  time.Time          `bson:"createdAt" json:"createdAt"`
}

// StateFor returns the state a book with the given counters must be in.
func StateFor(issued, quantity int) BookState {
	if issued == quantity {
		return BookIssued
	}
	return BookAvailable
}

// RecomputeState sets State from the current counters.
func (b *Book) RecomputeState() {
	b.State = StateFor(b.Issued, b.Quantity)
}

// HasStock reports whether at least one copy is on the shelf.
func (b *Book) HasStock() bool {
	return b.Issued < b.Quantity
}
