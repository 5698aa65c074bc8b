package service

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/models"
)

const googleBooksBase = "https://www.googleapis.com/books/v1/volumes"

// ErrNoVolume is returned when the lookup service knows nothing about an ISBN.
var ErrNoVolume = fmt.Errorf("no volume found")

type volumesResp struct {
	TotalItems int `json:"totalItems"`
	Items      []struct {
		VolumeInfo struct {
			Title               string   `json:"title"`
			Subtitle            string   `json:"subtitle"`
			Authors             []string `json:"authors"`
			Publisher           string   `json:"publisher"`
			PageCount           int      `json:"pageCount"`
			Categories          []string `json:"categories"`
			IndustryIdentifiers []struct {
				Type       string `json:"type"`
				Identifier string `json:"identifier"`
			} `json:"industryIdentifiers"`
		} `json:"volumeInfo"`
	} `json:"items"`
}

// BookMetadata is what an ISBN lookup can tell us about a title.
type BookMetadata struct {
	Title     string
	Author    string
	Publisher string
	Pages     int
	Genre     string
	ISBN      string
	CoverURL  string
}

// MetadataClient looks books up on Google Books.
type MetadataClient struct {
	HTTP    *http.Client
	BaseURL string
}

func NewMetadataClient() *MetadataClient {
	// short timeout so a hung lookup does not stall book creation
	return &MetadataClient{HTTP: &http.Client{Timeout: 15 * time.Second}, BaseURL: googleBooksBase}
}

// NormalizeISBN strips spaces and hyphens.
func NormalizeISBN(isbn string) string {
	return strings.NewReplacer("-", "", " ", "").Replace(strings.TrimSpace(isbn))
}

func (c *MetadataClient) LookupISBN(ctx context.Context, isbn string) (*BookMetadata, error) {
	isbn = NormalizeISBN(isbn)
	if isbn == "" {
		return nil, fmt.Errorf("isbn is required")
	}
	q := url.Values{}
	q.Set("q", "isbn:"+isbn)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.BaseURL+"?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := c.HTTP.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("google books returned %d", resp.StatusCode)
	}
	var data volumesResp
	if err := json.NewDecoder(resp.Body).Decode(&data); err != nil {
		return nil, err
	}
	if data.TotalItems == 0 || len(data.Items) == 0 {
		return nil, fmt.Errorf("%w for isbn %s", ErrNoVolume, isbn)
	}
	vi := data.Items[0].VolumeInfo
	meta := &BookMetadata{
		Title:     vi.Title,
		Author:    strings.Join(vi.Authors, ", "),
		Publisher: vi.Publisher,
		Pages:     vi.PageCount,
		ISBN:      isbn,
	}
	if vi.Subtitle != "" {
		meta.Title += ": " + vi.Subtitle
	}
	for _, id := range vi.IndustryIdentifiers {
		if id.Type == "ISBN_13" {
			meta.ISBN = id.Identifier
			break
		}
	}
	if len(vi.Categories) > 0 {
		meta.Genre = vi.Categories[0]
	}
	meta.CoverURL = "https://covers.openlibrary.org/b/isbn/" + url.PathEscape(meta.ISBN) + "-L.jpg"
	return meta, nil
}

// Fill copies metadata into the fields of b that are still empty.
func (m *BookMetadata) Fill(b *models.Book) {
	if b.Title == "" {
		b.Title = m.Title
	}
	if b.Author == "" {
		b.Author = m.Author
	}
	if b.Publisher == "" {
		b.Publisher = m.Publisher
	}
	if b.Pages == 0 {
		b.Pages = m.Pages
	}
	if b.Genre == "" {
		b.Genre = m.Genre
	}
	if b.CoverURL == "" {
		b.CoverURL = m.CoverURL
	}
	b.ISBN = m.ISBN
}
