package handlers

import (
	"context"
	"errors"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
)

type BooksHandler struct {
	Books    BookStore
	Covers   CoverStorage // nil when S3 is not configured
	Metadata ISBNLookup   // nil disables ISBN prefill
}

type CreateBookRequest struct {
	Title     string  `json:"title" validate:"required_without=ISBN,max=300"`
	Author    string  `json:"author" validate:"max=200"`
	Pages     int     `json:"pages" validate:"gte=0"`
	Price     float64 `json:"price" validate:"gte=0"`
	Publisher string  `json:"publisher" validate:"max=200"`
	Genre     string  `json:"genre" validate:"max=100"`
	ISBN      string  `json:"isbn" validate:"omitempty,min=10,max=17"`
	Quantity  int     `json:"quantity" validate:"gte=0"`
}

type UpdateBookRequest struct {
	Title     *string  `json:"title" validate:"omitnil,min=1,max=300"`
	Author    *string  `json:"author" validate:"omitnil,max=200"`
	Pages     *int     `json:"pages" validate:"omitnil,gte=0"`
	Price     *float64 `json:"price" validate:"omitnil,gte=0"`
	Publisher *string  `json:"publisher" validate:"omitnil,max=200"`
	Genre     *string  `json:"genre" validate:"omitnil,max=100"`
	ISBN      *string  `json:"isbn" validate:"omitnil,max=17"`
	Quantity  *int     `json:"quantity" validate:"omitnil,gte=1"`
}

// coverPath is where the API serves an uploaded cover.
func coverPath(b *models.Book) string {
	return "/api/books/" + b.ID.Hex() + "/cover"
}

// List supports ?search=, ?filter=available|issued and ?sort=price_asc|price_desc.
func (h *BooksHandler) List(w http.ResponseWriter, r *http.Request) {
	q := store.BookQuery{
		Search: strings.TrimSpace(r.URL.Query().Get("search")),
		Sort:   r.URL.Query().Get("sort"),
	}
	switch strings.ToLower(r.URL.Query().Get("filter")) {
	case "available":
		q.State = models.BookAvailable
	case "issued":
		q.State = models.BookIssued
	case "", "all":
	default:
		http.Error(w, `{"error":"filter must be available or issued"}`, http.StatusBadRequest)
		return
	}
	books, err := h.Books.SearchBooks(r.Context(), q)
	if err != nil {
		http.Error(w, `{"error":"failed to list books"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, books)
}

func (h *BooksHandler) Get(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "book")
	if !ok {
		return
	}
	book, err := h.Books.BookByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to load book"}`, http.StatusInternalServerError)
		return
	}
	if book == nil {
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, book)
}

// Create adds a title. When an ISBN is given, empty fields are filled from the ISBN lookup.
func (h *BooksHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req CreateBookRequest
	if !decode(w, r, &req) {
		return
	}
	book := &models.Book{
		Title:     strings.TrimSpace(req.Title),
		Author:    strings.TrimSpace(req.Author),
		Pages:     req.Pages,
		Price:     req.Price,
		Publisher: req.Publisher,
		Genre:     req.Genre,
		ISBN:      service.NormalizeISBN(req.ISBN),
		Quantity:  req.Quantity,
	}
	if book.ISBN != "" && h.Metadata != nil {
		ctx, cancel := context.WithTimeout(r.Context(), 10*time.Second)
		meta, err := h.Metadata.LookupISBN(ctx, book.ISBN)
		cancel()
		if err != nil {
			log.Printf("create book: isbn lookup %s: %v", book.ISBN, err)
		} else {
			meta.Fill(book)
		}
	}
	if book.Title == "" {
		http.Error(w, `{"error":"title is required"}`, http.StatusBadRequest)
		return
	}
	if _, err := h.Books.InsertBook(r.Context(), book); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "TITLE_EXISTS", "a book with this title already exists")
			return
		}
		http.Error(w, `{"error":"failed to create book"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, book)
}

func (h *BooksHandler) Update(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "book")
	if !ok {
		return
	}
	var req UpdateBookRequest
	if !decode(w, r, &req) {
		return
	}
	book, err := h.Books.UpdateBook(r.Context(), id, store.BookUpdate{
		Title:     req.Title,
		Author:    req.Author,
		Pages:     req.Pages,
		Price:     req.Price,
		Publisher: req.Publisher,
		Genre:     req.Genre,
		ISBN:      req.ISBN,
		Quantity:  req.Quantity,
	})
	switch {
	case errors.Is(err, store.ErrNotFound):
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
	case errors.Is(err, store.ErrQuantityBelowIssued):
		writeError(w, http.StatusConflict, "QUANTITY_BELOW_ISSUED", "quantity cannot be lower than the copies on loan")
	case errors.Is(err, store.ErrDuplicate):
		writeError(w, http.StatusConflict, "TITLE_EXISTS", "a book with this title already exists")
	case err != nil:
		http.Error(w, `{"error":"failed to update book"}`, http.StatusInternalServerError)
	case book == nil:
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
	default:
		writeJSON(w, http.StatusOK, book)
	}
}

// Delete removes a title. Loan records that name it are left as they are.
func (h *BooksHandler) Delete(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "book")
	if !ok {
		return
	}
	book, err := h.Books.DeleteBook(r.Context(), id)
	if errors.Is(err, store.ErrNotFound) {
		http.Error(w, `{"error":"book not found"}`, http.StatusNotFound)
		return
	}
	if err != nil {
		http.Error(w, `{"error":"failed to delete book"}`, http.StatusInternalServerError)
		return
	}
	if book.CoverS3Key != "" && h.Covers != nil {
		if err := h.Covers.Delete(r.Context(), book.CoverS3Key); err != nil {
			log.Printf("delete book: cover %s: %v", book.CoverS3Key, err)
		}
	}
	w.WriteHeader(http.StatusNoContent)
}

// Cover streams an uploaded cover from S3.
func (h *BooksHandler) Cover(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "book")
	if !ok {
		return
	}
	book, err := h.Books.BookByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to load book"}`, http.StatusInternalServerError)
		return
	}
	if book == nil || book.CoverS3Key == "" || h.Covers == nil {
		http.Error(w, `{"error":"no cover"}`, http.StatusNotFound)
		return
	}
	body, contentType, err := h.Covers.Open(r.Context(), book.CoverS3Key)
	if err != nil {
		http.Error(w, `{"error":"failed to load cover"}`, http.StatusInternalServerError)
		return
	}
	defer body.Close()
	if contentType != "" {
		w.Header().Set("Content-Type", contentType)
	}
	w.Header().Set("Cache-Control", "public, max-age=86400")
	io.Copy(w, body)
}
