package store

import (
	"context"
	"fmt"
	"regexp"
	"time"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/models"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/bson/primitive"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

// Sort orders accepted by SearchBooks.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
)

// BookQuery narrows the catalog listing. Zero value lists everything, newest first.
type BookQuery struct {
	Search string
	State  models.BookState
	Sort   string
}

// stateExpr recomputes state from the counters inside an update pipeline.
var stateExpr = bson.D{{Key: "$cond", Value: bson.A{
	bson.D{{Key: "$eq", Value: bson.A{"$issued", "$quantity"}}},
	string(models.BookIssued),
	string(models.BookAvailable),
}}}

func setStage(fields bson.D) bson.D {
	return bson.D{{Key: "$set", Value: fields}}
}

func counterPipeline(delta int) mongo.Pipeline {
	return mongo.Pipeline{
		setStage(bson.D{{Key: "issued", Value: bson.D{{Key: "$add", Value: bson.A{"$issued", delta}}}}}),
		setStage(bson.D{{Key: "state", Value: stateExpr}}),
	}
}

func (db *DB) InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error) {
	if book.Quantity <= 0 {
		book.Quantity = models.DefaultQuantity
	}
	book.Issued = 0
	book.RecomputeState()
	if book.CreatedAt.IsZero() {
		book.CreatedAt = time.Now().UTC()
	}
	res, err := db.Books().InsertOne(ctx, book, options.InsertOne())
	if err != nil {
		return primitive.NilObjectID, mapWriteErr(err)
	}
	id := res.InsertedID.(primitive.ObjectID)
	book.ID = id
	return id, nil
}

func (db *DB) SearchBooks(ctx context.Context, q BookQuery) ([]models.Book, error) {
	filter := bson.M{}
	if q.Search != "" {
		re := primitive.Regex{Pattern: regexp.QuoteMeta(q.Search), Options: "i"}
		filter["$or"] = bson.A{
			bson.M{"title": re},
			bson.M{"author": re},
			bson.M{"genre": re},
			bson.M{"publisher": re},
		}
	}
	if q.State != "" {
		filter["state"] = q.State
	}
	sort := bson.D{{Key: "createdAt", Value: -1}}
	switch q.Sort {
	case SortPriceAsc:
		sort = bson.D{{Key: "price", Value: 1}, {Key: "title", Value: 1}}
	case SortPriceDesc:
		sort = bson.D{{Key: "price", Value: -1}, {Key: "title", Value: 1}}
	}
	cur, err := db.Books().Find(ctx, filter, options.Find().SetSort(sort))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	books := []models.Book{}
	if err := cur.All(ctx, &books); err != nil {
		return nil, err
	}
	return books, nil
}

func (db *DB) BookByID(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"_id": id}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

func (db *DB) BookByTitle(ctx context.Context, title string) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOne(ctx, bson.M{"title": title}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// MissingTitles returns the subset of titles that have no book yet, in input order.
func (db *DB) MissingTitles(ctx context.Context, titles []string) ([]string, error) {
	cur, err := db.Books().Find(ctx,
		bson.M{"title": bson.M{"$in": titles}},
		options.Find().SetProjection(bson.M{"title": 1}),
	)
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)
	var found []struct {
		Title string `bson:"title"`
	}
	if err := cur.All(ctx, &found); err != nil {
		return nil, err
	}
	have := make(map[string]bool, len(found))
	for _, f := range found {
		have[f.Title] = true
	}
	var missing []string
	for _, t := range titles {
		if !have[t] {
			missing = append(missing, t)
			have[t] = true
		}
	}
	return missing, nil
}

// ReserveCopy takes one copy off the shelf if any is left.
func (db *DB) ReserveCopy(ctx context.Context, title string) (*models.Book, error) {
	filter := bson.M{
		"title": title,
		"$expr": bson.M{"$lt": bson.A{"$issued", "$quantity"}},
	}
	return db.adjustCopies(ctx, filter, 1)
}

// ReleaseCopy puts one copy back if any is out.
func (db *DB) ReleaseCopy(ctx context.Context, title string) (*models.Book, error) {
	filter := bson.M{
		"title":  title,
		"issued": bson.M{"$gt": 0},
	}
	return db.adjustCopies(ctx, filter, -1)
}

func (db *DB) adjustCopies(ctx context.Context, filter bson.M, delta int) (*models.Book, error) {
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var book models.Book
	err := db.Books().FindOneAndUpdate(ctx, filter, counterPipeline(delta), opts).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, fmt.Errorf("%w: %v", lending.ErrNoCopy, filter["title"])
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// ResetCirculation zeroes every counter and then restores the copies still on loan.
func (db *DB) ResetCirculation(ctx context.Context, outstanding map[string]int) error {
	writes := []mongo.WriteModel{
		mongo.NewUpdateManyModel().
			SetFilter(bson.M{}).
			SetUpdate(mongo.Pipeline{
				setStage(bson.D{{Key: "issued", Value: 0}}),
				setStage(bson.D{{Key: "state", Value: stateExpr}}),
			}),
	}
	for title, n := range outstanding {
		if n <= 0 {
			continue
		}
		writes = append(writes, mongo.NewUpdateOneModel().
			SetFilter(bson.M{"title": title}).
			SetUpdate(mongo.Pipeline{
				setStage(bson.D{{Key: "issued", Value: bson.D{{Key: "$min", Value: bson.A{n, "$quantity"}}}}}),
				setStage(bson.D{{Key: "state", Value: stateExpr}}),
			}))
	}
	_, err := db.Books().BulkWrite(ctx, writes, options.BulkWrite().SetOrdered(true))
	return err
}

// BookUpdate carries the editable fields of a book. Nil fields are left alone.
type BookUpdate struct {
	Title     *string
	Author    *string
	Pages     *int
	Price     *float64
	Publisher *string
	Genre     *string
	ISBN      *string
	Quantity  *int
}

// UpdateBook applies u and recomputes state against the new quantity. It returns
// ErrQuantityBelowIssued when the quantity would drop under the copies on loan.
func (db *DB) UpdateBook(ctx context.Context, id primitive.ObjectID, u BookUpdate) (*models.Book, error) {
	set := bson.D{}
	// $literal keeps values such as "$title" from being read as field paths
	add := func(key string, v any) {
		set = append(set, bson.E{Key: key, Value: bson.D{{Key: "$literal", Value: v}}})
	}
	if u.Title != nil {
		add("title", *u.Title)
	}
	if u.Author != nil {
		add("author", *u.Author)
	}
	if u.Pages != nil {
		add("pages", *u.Pages)
	}
	if u.Price != nil {
		add("price", *u.Price)
	}
	if u.Publisher != nil {
		add("publisher", *u.Publisher)
	}
	if u.Genre != nil {
		add("genre", *u.Genre)
	}
	if u.ISBN != nil {
		add("isbn", *u.ISBN)
	}
	filter := bson.M{"_id": id}
	if u.Quantity != nil {
		add("quantity", *u.Quantity)
		filter["issued"] = bson.M{"$lte": *u.Quantity}
	}
	if len(set) == 0 {
		return db.BookByID(ctx, id)
	}
	pipeline := mongo.Pipeline{setStage(set), setStage(bson.D{{Key: "state", Value: stateExpr}})}
	opts := options.FindOneAndUpdate().SetReturnDocument(options.After)
	var book models.Book
	err := db.Books().FindOneAndUpdate(ctx, filter, pipeline, opts).Decode(&book)
	if err == mongo.ErrNoDocuments {
		existing, ferr := db.BookByID(ctx, id)
		if ferr != nil {
			return nil, ferr
		}
		if existing == nil {
			return nil, ErrNotFound
		}
		return nil, ErrQuantityBelowIssued
	}
	if err != nil {
		return nil, mapWriteErr(err)
	}
	return &book, nil
}

// DeleteBook removes a book by ID and returns it so the caller can clean up its cover.
func (db *DB) DeleteBook(ctx context.Context, id primitive.ObjectID) (*models.Book, error) {
	var book models.Book
	err := db.Books().FindOneAndDelete(ctx, bson.M{"_id": id}).Decode(&book)
	if err == mongo.ErrNoDocuments {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &book, nil
}

// UpdateBookCover points the book at a new cover and returns the previous S3 key.
func (db *DB) UpdateBookCover(ctx context.Context, id primitive.ObjectID, s3Key, url string) (string, error) {
	var prev models.Book
	err := db.Books().FindOneAndUpdate(ctx,
		bson.M{"_id": id},
		bson.M{"$set": bson.M{"coverS3Key": s3Key, "coverUrl": url}},
		options.FindOneAndUpdate().SetReturnDocument(options.Before),
	).Decode(&prev)
	if err == mongo.ErrNoDocuments {
		return "", ErrNotFound
	}
	if err != nil {
		return "", err
	}
	return prev.CoverS3Key, nil
}

// CountBooks returns the number of titles and of copies on loan.
func (db *DB) CountBooks(ctx context.Context) (titles, onLoan int64, err error) {
	titles, err = db.Books().CountDocuments(ctx, bson.M{})
	if err != nil {
		return 0, 0, err
	}
	cur, err := db.Books().Aggregate(ctx, mongo.Pipeline{
		{{Key: "$group", Value: bson.D{
			{Key: "_id", Value: nil},
			{Key: "issued", Value: bson.D{{Key: "$sum", Value: "$issued"}}},
		}}},
	})
	if err != nil {
		return 0, 0, err
	}
	defer cur.Close(ctx)
	var out []struct {
		Issued int64 `bson:"issued"`
	}
	if err := cur.All(ctx, &out); err != nil {
		return 0, 0, err
	}
	if len(out) > 0 {
		onLoan = out[0].Issued
	}
	return titles, onLoan, nil
}
