package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/go-mail/mail/v2"

	"github.com/kevinaaaquil/library/models"
)

var ErrMailNotConfigured = errors.New("mail settings are incomplete")

// DialFunc opens an SMTP session for the given settings.
type DialFunc func(s models.MailSettings) (mail.SendCloser, error)

func dialSMTP(s models.MailSettings) (mail.SendCloser, error) {
	d := mail.NewDialer(s.Host, s.Port, s.Username, s.AppPassword)
	d.Timeout = 20 * time.Second
	d.StartTLSPolicy = mail.MandatoryStartTLS
	return d.Dial()
}

// Mailer sends receipt emails. AppPassword in the settings it receives must be plaintext.
type Mailer struct {
	Dial DialFunc
}

func NewMailer() *Mailer {
	return &Mailer{Dial: dialSMTP}
}

// Receipt is one emailed borrower receipt.
type Receipt struct {
	To           string
	BorrowerName string
	TotalFine    int
	PDF          []byte
}

func (m *Mailer) SendReceipt(ctx context.Context, s models.MailSettings, r Receipt) error {
	if !s.Complete() {
		return ErrMailNotConfigured
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	msg := mail.NewMessage()
	msg.SetHeader("From", s.SenderMail)
	msg.SetHeader("To", r.To)
	msg.SetHeader("Subject", "Library receipt for "+r.BorrowerName)
	msg.SetBody("text/plain", fmt.Sprintf(
		"Hello %s,\n\nYour library receipt is attached. Total fine: %d.\n", r.BorrowerName, r.TotalFine))
	msg.AttachReader("receipt.pdf", bytes.NewReader(r.PDF), mail.SetHeader(map[string][]string{
		"Content-Type": {"application/pdf"},
	}))

	sc, err := m.Dial(s)
	if err != nil {
		return fmt.Errorf("dial smtp: %w", err)
	}
	defer sc.Close()
	if err := mail.Send(sc, msg); err != nil {
		return fmt.Errorf("send receipt: %w", err)
	}
	return nil
}
