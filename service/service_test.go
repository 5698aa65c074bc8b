package service

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-mail/mail/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/reports"
)

func TestMaintenanceToggle(t *testing.T) {
	var m Maintenance
	assert.False(t, m.On())

	assert.True(t, m.Toggle())
	assert.True(t, m.On())
	assert.False(t, m.Toggle())

	m.Set(true)
	assert.True(t, m.On())
}

func TestMaintenanceConcurrentToggles(t *testing.T) {
	var m Maintenance
	var wg sync.WaitGroup
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.Toggle()
		}()
	}
	wg.Wait()
	assert.False(t, m.On())
}

func TestLookupISBN(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "isbn:9780441013593", r.URL.Query().Get("q"))
		io.WriteString(w, `{"totalItems":1,"items":[{"volumeInfo":{
			"title":"Dune","authors":["Frank Herbert"],"publisher":"Ace","pageCount":604,
			"categories":["Fiction"],
			"industryIdentifiers":[{"type":"ISBN_10","identifier":"0441013597"},{"type":"ISBN_13","identifier":"9780441013593"}]
		}}]}`)
	}))
	defer srv.Close()
	c := &MetadataClient{HTTP: srv.Client(), BaseURL: srv.URL}

	meta, err := c.LookupISBN(context.Background(), "978-0-441-01359-3")
	require.NoError(t, err)

	book := models.Book{Title: "Dune (Deluxe)", Price: 9.5}
	meta.Fill(&book)
	assert.Equal(t, "Dune (Deluxe)", book.Title)
	assert.Equal(t, "Frank Herbert", book.Author)
	assert.Equal(t, "Ace", book.Publisher)
	assert.Equal(t, 604, book.Pages)
	assert.Equal(t, "Fiction", book.Genre)
	assert.Equal(t, "9780441013593", book.ISBN)
	assert.Contains(t, book.CoverURL, "9780441013593")
}

func TestLookupISBNNoVolume(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		io.WriteString(w, `{"totalItems":0}`)
	}))
	defer srv.Close()
	c := &MetadataClient{HTTP: srv.Client(), BaseURL: srv.URL}

	_, err := c.LookupISBN(context.Background(), "123")
	assert.ErrorIs(t, err, ErrNoVolume)
}

func TestCoverKey(t *testing.T) {
	key := CoverKey("abc", "Front.JPG")
	assert.True(t, strings.HasPrefix(key, "covers/abc/"))
	assert.True(t, strings.HasSuffix(key, ".jpg"))
}

func sampleReport() reports.BorrowerReport {
	return reports.BorrowerReport{
		BorrowerName: "Zoë",
		Stats:        reports.BorrowerStats{TotalBorrowed: 2, Returned: 1, NotReturned: 1, TotalFine: 3},
		Records: []reports.Entry{
			{BookTitle: "Dune", Status: reports.StatusIssued, Staff: "as1", Date: time.Date(2024, 6, 3, 0, 0, 0, 0, time.UTC)},
			{BookTitle: "Emma", Status: reports.StatusReturned, Staff: "lib0.0", Date: time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC), Fine: 3},
		},
	}
}

func TestReceiptPDF(t *testing.T) {
	out, err := ReceiptPDF(sampleReport(), "as1", time.Date(2024, 6, 4, 0, 0, 0, 0, time.UTC))

	require.NoError(t, err)
	assert.True(t, bytes.HasPrefix(out, []byte("%PDF-")))
}

type sentMessage struct {
	from string
	to   []string
	body bytes.Buffer
}

type fakeSMTP struct {
	sent   []*sentMessage
	closed bool
}

func (f *fakeSMTP) Send(from string, to []string, msg io.WriterTo) error {
	m := &sentMessage{from: from, to: to}
	if _, err := msg.WriteTo(&m.body); err != nil {
		return err
	}
	f.sent = append(f.sent, m)
	return nil
}

func (f *fakeSMTP) Close() error {
	f.closed = true
	return nil
}

var testSettings = models.MailSettings{
	Host: "smtp.example.com", Port: 587, Username: "desk", AppPassword: "pw", SenderMail: "desk@example.com",
}

func TestSendReceipt(t *testing.T) {
	smtp := &fakeSMTP{}
	var dialed models.MailSettings
	m := &Mailer{Dial: func(s models.MailSettings) (mail.SendCloser, error) {
		dialed = s
		return smtp, nil
	}}

	err := m.SendReceipt(context.Background(), testSettings, Receipt{
		To: "alice@example.com", BorrowerName: "Alice", TotalFine: 3, PDF: []byte("%PDF-1.3 fake"),
	})

	require.NoError(t, err)
	assert.Equal(t, "pw", dialed.AppPassword)
	require.Len(t, smtp.sent, 1)
	assert.Equal(t, "desk@example.com", smtp.sent[0].from)
	assert.Equal(t, []string{"alice@example.com"}, smtp.sent[0].to)
	assert.Contains(t, smtp.sent[0].body.String(), "receipt.pdf")
	assert.Contains(t, smtp.sent[0].body.String(), "Library receipt for Alice")
	assert.True(t, smtp.closed)
}

func TestSendReceiptRequiresSettings(t *testing.T) {
	m := &Mailer{Dial: func(models.MailSettings) (mail.SendCloser, error) {
		return nil, errors.New("should not dial")
	}}

	err := m.SendReceipt(context.Background(), models.MailSettings{Host: "x"}, Receipt{To: "a@b.c"})

	assert.ErrorIs(t, err, ErrMailNotConfigured)
}
