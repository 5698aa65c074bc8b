package handlers

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/utils"
)

var errNoMailKey = errors.New("stored app password is encrypted but no MAIL_ENCRYPTION_KEY is configured")

// loadMailSettings returns the stored SMTP settings with a plaintext app password,
// or fallback when nothing is stored.
func loadMailSettings(ctx context.Context, mail MailStore, secrets *utils.SecretBox, fallback models.MailSettings) (models.MailSettings, error) {
	stored, err := mail.GetMailSettings(ctx)
	if err != nil {
		return models.MailSettings{}, err
	}
	if stored == nil {
		return fallback, nil
	}
	out := *stored
	if utils.IsSealed(out.AppPassword) {
		if secrets == nil {
			return models.MailSettings{}, errNoMailKey
		}
		if out.AppPassword, err = secrets.Open(out.AppPassword); err != nil {
			return models.MailSettings{}, err
		}
	}
	return out, nil
}

type MailSettingsHandler struct {
	Mail    MailStore
	Secrets *utils.SecretBox // nil stores the app password as given
}

type MailSettingsRequest struct {
	Host        string `json:"host" validate:"required,hostname|ip"`
	Port        int    `json:"port" validate:"required,min=1,max=65535"`
	Username    string `json:"username" validate:"required"`
	AppPassword string `json:"appPassword"`
	SenderMail  string `json:"senderMail" validate:"required,email"`
}

// MailSettingsResponse never carries the app password.
type MailSettingsResponse struct {
	Host        string `json:"host"`
	Port        int    `json:"port"`
	Username    string `json:"username"`
	SenderMail  string `json:"senderMail"`
	HasPassword bool   `json:"hasPassword"`
	Encrypted   bool   `json:"encrypted"`
}

func mailSettingsResponse(m *models.MailSettings) MailSettingsResponse {
	if m == nil {
		return MailSettingsResponse{}
	}
	return MailSettingsResponse{
		Host:        m.Host,
		Port:        m.Port,
		Username:    m.Username,
		SenderMail:  m.SenderMail,
		HasPassword: m.AppPassword != "",
		Encrypted:   utils.IsSealed(m.AppPassword),
	}
}

func (h *MailSettingsHandler) Get(w http.ResponseWriter, r *http.Request) {
	m, err := h.Mail.GetMailSettings(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to load mail settings"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, mailSettingsResponse(m))
}

// Save replaces the SMTP settings. An empty appPassword keeps the stored one.
func (h *MailSettingsHandler) Save(w http.ResponseWriter, r *http.Request) {
	var req MailSettingsRequest
	if !decode(w, r, &req) {
		return
	}
	m := &models.MailSettings{
		Host:        req.Host,
		Port:        req.Port,
		Username:    req.Username,
		AppPassword: req.AppPassword,
		SenderMail:  req.SenderMail,
	}
	if m.AppPassword == "" {
		prev, err := h.Mail.GetMailSettings(r.Context())
		if err != nil {
			http.Error(w, `{"error":"failed to load mail settings"}`, http.StatusInternalServerError)
			return
		}
		if prev == nil || prev.AppPassword == "" {
			writeError(w, http.StatusBadRequest, "VALIDATION_FAILED", "appPassword is required")
			return
		}
		m.AppPassword = prev.AppPassword
	} else if h.Secrets != nil {
		sealed, err := h.Secrets.Seal(m.AppPassword)
		if err != nil {
			log.Printf("mail settings: seal app password: %v", err)
			http.Error(w, `{"error":"failed to save mail settings"}`, http.StatusInternalServerError)
			return
		}
		m.AppPassword = sealed
	}
	if err := h.Mail.UpsertMailSettings(r.Context(), m); err != nil {
		http.Error(w, `{"error":"failed to save mail settings"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, mailSettingsResponse(m))
}
