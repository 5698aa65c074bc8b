package handlers

import (
	"errors"
	"log"
	"net/http"
	"net/url"
	"time"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/reports"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/utils"
)

type ReceiptsHandler struct {
	Accounts lending.Accounts
	Mail     MailStore
	Mailer   ReceiptSender
	Secrets  *utils.SecretBox
	// Fallback is used when no mail settings are stored.
	Fallback models.MailSettings
	Now      func() time.Time
}

type ReceiptRequest struct {
	BorrowerName string `json:"borrowerName" validate:"required"`
}

type EmailReceiptRequest struct {
	BorrowerName string `json:"borrowerName" validate:"required"`
	Email        string `json:"email" validate:"required,email"`
}

func (h *ReceiptsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// build renders the borrower's receipt; it writes the error response itself.
func (h *ReceiptsHandler) build(w http.ResponseWriter, r *http.Request, name string) (reports.BorrowerReport, []byte, bool) {
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to load accounts"}`, http.StatusInternalServerError)
		return reports.BorrowerReport{}, nil, false
	}
	rep := reports.BorrowerHistory(accounts, name)
	if len(rep.Records) == 0 {
		http.Error(w, `{"error":"no loans found for this borrower"}`, http.StatusNotFound)
		return rep, nil, false
	}
	issuedBy := ""
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		issuedBy = c.Username
	}
	pdf, err := service.ReceiptPDF(rep, issuedBy, h.now())
	if err != nil {
		log.Printf("receipt pdf: %v", err)
		http.Error(w, `{"error":"failed to render receipt"}`, http.StatusInternalServerError)
		return rep, nil, false
	}
	return rep, pdf, true
}

func (h *ReceiptsHandler) PDF(w http.ResponseWriter, r *http.Request) {
	var req ReceiptRequest
	if !decode(w, r, &req) {
		return
	}
	_, pdf, ok := h.build(w, r, req.BorrowerName)
	if !ok {
		return
	}
	w.Header().Set("Content-Type", "application/pdf")
	w.Header().Set("Content-Disposition", `attachment; filename="receipt-`+url.PathEscape(req.BorrowerName)+`.pdf"`)
	w.Write(pdf)
}

// Email sends the receipt PDF and records it in the receipt log.
func (h *ReceiptsHandler) Email(w http.ResponseWriter, r *http.Request) {
	var req EmailReceiptRequest
	if !decode(w, r, &req) {
		return
	}
	settings, err := loadMailSettings(r.Context(), h.Mail, h.Secrets, h.Fallback)
	if err != nil {
		log.Printf("email receipt: mail settings: %v", err)
		http.Error(w, `{"error":"failed to load mail settings"}`, http.StatusInternalServerError)
		return
	}
	if !settings.Complete() {
		writeError(w, http.StatusBadRequest, "MAIL_NOT_CONFIGURED", "mail settings are required before sending receipts")
		return
	}
	rep, pdf, ok := h.build(w, r, req.BorrowerName)
	if !ok {
		return
	}
	err = h.Mailer.SendReceipt(r.Context(), settings, service.Receipt{
		To:           req.Email,
		BorrowerName: rep.BorrowerName,
		TotalFine:    rep.Stats.TotalFine,
		PDF:          pdf,
	})
	if errors.Is(err, service.ErrMailNotConfigured) {
		writeError(w, http.StatusBadRequest, "MAIL_NOT_CONFIGURED", err.Error())
		return
	}
	if err != nil {
		log.Printf("email receipt: %v", err)
		writeError(w, http.StatusBadGateway, "MAIL_FAILED", "failed to send receipt")
		return
	}
	entry := &models.ReceiptLog{
		BorrowerName: rep.BorrowerName,
		ToEmail:      req.Email,
		TotalFine:    rep.Stats.TotalFine,
		SentAt:       h.now(),
	}
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		entry.SentBy = c.Username
	}
	if err := h.Mail.InsertReceiptLog(r.Context(), entry); err != nil {
		log.Printf("email receipt: failed to insert receipt log: %v", err)
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "receipt sent", "email": req.Email})
}
