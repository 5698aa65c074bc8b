// Package seeds loads the starter catalog.
package seeds

import (
	"bytes"
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"gopkg.in/yaml.v3"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/store"
)

//go:embed catalog.yaml
var catalogYAML []byte

// Entry is one title of the seed catalog.
type Entry struct {
	Title     string  `yaml:"title"`
	Author    string  `yaml:"author"`
	Pages     int     `yaml:"pages"`
	Price     float64 `yaml:"price"`
	Publisher string  `yaml:"publisher"`
	Genre     string  `yaml:"genre,omitempty"`
	ISBN      string  `yaml:"isbn,omitempty"`
	Quantity  int     `yaml:"quantity,omitempty"`
}

type file struct {
	Books []Entry `yaml:"books"`
}

// Catalog returns the embedded seed catalog.
func Catalog() ([]Entry, error) {
	return Parse(catalogYAML)
}

// Parse decodes a seed catalog. Unknown fields are rejected, entries without a title are
// an error and repeated titles keep the first entry.
func Parse(data []byte) ([]Entry, error) {
	var f file
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(&f); err != nil {
		return nil, fmt.Errorf("parse seed catalog: %w", err)
	}
	seen := make(map[string]bool, len(f.Books))
	out := make([]Entry, 0, len(f.Books))
	for i, e := range f.Books {
		e.Title = strings.TrimSpace(e.Title)
		if e.Title == "" {
			return nil, fmt.Errorf("seed catalog: entry %d has no title", i+1)
		}
		if seen[e.Title] {
			continue
		}
		seen[e.Title] = true
		out = append(out, e)
	}
	return out, nil
}

func (e Entry) book() *models.Book {
	return &models.Book{
		Title:     e.Title,
		Author:    e.Author,
		Pages:     e.Pages,
		Price:     e.Price,
		Publisher: e.Publisher,
		Genre:     e.Genre,
		ISBN:      e.ISBN,
		Quantity:  e.Quantity,
	}
}

// Store is the part of the catalog store seeding needs.
type Store interface {
	MissingTitles(ctx context.Context, titles []string) ([]string, error)
	InsertBook(ctx context.Context, book *models.Book) (primitive.ObjectID, error)
}

var _ Store = (*store.DB)(nil)

// Load inserts the entries whose titles are not in the catalog yet and returns how many
// were added. Existing books, and their counters, are left alone.
func Load(ctx context.Context, s Store, entries []Entry) (int, error) {
	titles := make([]string, 0, len(entries))
	for _, e := range entries {
		titles = append(titles, e.Title)
	}
	missing, err := s.MissingTitles(ctx, titles)
	if err != nil {
		return 0, fmt.Errorf("find missing titles: %w", err)
	}
	want := make(map[string]bool, len(missing))
	for _, t := range missing {
		want[t] = true
	}
	added := 0
	for _, e := range entries {
		if !want[e.Title] {
			continue
		}
		if _, err := s.InsertBook(ctx, e.book()); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				// inserted concurrently
				continue
			}
			return added, fmt.Errorf("insert %q: %w", e.Title, err)
		}
		added++
	}
	return added, nil
}
