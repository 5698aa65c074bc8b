package handlers

import (
	"bytes"
	"io"
	"log"
	"net/http"
	"path/filepath"
	"strings"
)

var allowedCoverTypes = map[string]string{
	".jpg":  "image/jpeg",
	".jpeg": "image/jpeg",
	".png":  "image/png",
	".webp": "image/webp",
}

// UploadCover replaces a book's cover with the multipart "file" part.
func (h *BooksHandler) UploadCover(maxBytes int64) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id, ok := pathID(w, r, "book")
		if !ok {
			return
		}
		if h.Covers == nil {
			http.Error(w, `{"error":"upload not configured (missing S3)"}`, http.StatusServiceUnavailable)
			return
		}
		if maxBytes > 0 {
			r.Body = http.MaxBytesReader(w, r.Body, maxBytes)
		}
		if err := r.ParseMultipartForm(maxBytes); err != nil {
			http.Error(w, `{"error":"failed to parse multipart form"}`, http.StatusBadRequest)
			return
		}
		file, header, err := r.FormFile("file")
		if err != nil {
			http.Error(w, `{"error":"missing file"}`, http.StatusBadRequest)
			return
		}
		defer file.Close()

		ext := strings.ToLower(filepath.Ext(header.Filename))
		contentType, ok := allowedCoverTypes[ext]
		if !ok {
			http.Error(w, `{"error":"only jpeg, png and webp covers are allowed"}`, http.StatusBadRequest)
			return
		}
		data, err := io.ReadAll(file)
		if err != nil {
			http.Error(w, `{"error":"failed to read file"}`, http.StatusInternalServerError)
			return
		}
		if sniffed := http.DetectContentType(data); !strings.HasPrefix(sniffed, "image/") {
			http.Error(w, `{"error":"file is not an image"}`, http.StatusBadRequest)
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
		key, err := h.Covers.Upload(r.Context(), id.Hex(), header.Filename, bytes.NewReader(data), contentType)
		if err != nil {
			log.Printf("upload cover: %v", err)
			http.Error(w, `{"error":"failed to store cover"}`, http.StatusInternalServerError)
			return
		}
		prev, err := h.Books.UpdateBookCover(r.Context(), id, key, coverPath(book))
		if err != nil {
			if derr := h.Covers.Delete(r.Context(), key); derr != nil {
				log.Printf("upload cover: cleanup %s: %v", key, derr)
			}
			http.Error(w, `{"error":"failed to save cover"}`, http.StatusInternalServerError)
			return
		}
		if prev != "" && prev != key {
			if err := h.Covers.Delete(r.Context(), prev); err != nil {
				log.Printf("upload cover: delete previous %s: %v", prev, err)
			}
		}
		book.CoverS3Key = key
		book.CoverURL = coverPath(book)
		writeJSON(w, http.StatusOK, book)
	}
}
