package handlers

import (
	"bytes"
	"log"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/reports"
)

type HistoryHandler struct {
	Accounts lending.Accounts
}

type StaffHistoryRequest struct {
	Username string `json:"username" validate:"required"`
}

type BorrowerHistoryRequest struct {
	Name string `json:"name" validate:"required"`
}

type StaffHistoryResponse struct {
	Username string          `json:"username"`
	Role     string          `json:"role"`
	Deleted  bool            `json:"deleted"`
	Fines    int             `json:"fines"`
	Records  []reports.Entry `json:"records"`
}

func (h *HistoryHandler) Staff(w http.ResponseWriter, r *http.Request) {
	var req StaffHistoryRequest
	if !decode(w, r, &req) {
		return
	}
	acct, err := h.Accounts.AccountByUsername(r.Context(), req.Username)
	if err != nil {
		http.Error(w, `{"error":"failed to load account"}`, http.StatusInternalServerError)
		return
	}
	if acct == nil {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	writeJSON(w, http.StatusOK, StaffHistoryResponse{
		Username: acct.Username,
		Role:     acct.Role,
		Deleted:  acct.Deleted,
		Fines:    acct.Fines,
		Records:  reports.StaffHistory(acct),
	})
}

func (h *HistoryHandler) Borrower(w http.ResponseWriter, r *http.Request) {
	var req BorrowerHistoryRequest
	if !decode(w, r, &req) {
		return
	}
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to load accounts"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, reports.BorrowerHistory(accounts, req.Name))
}

// Export downloads the returned loans of one account as CSV.
func (h *HistoryHandler) Export(w http.ResponseWriter, r *http.Request) {
	username := chi.URLParam(r, "username")
	acct, err := h.Accounts.AccountByUsername(r.Context(), username)
	if err != nil {
		http.Error(w, `{"error":"failed to load account"}`, http.StatusInternalServerError)
		return
	}
	if acct == nil {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	var buf bytes.Buffer
	if err := reports.WriteHistoryCSV(&buf, acct); err != nil {
		log.Printf("export history %s: %v", username, err)
		http.Error(w, `{"error":"failed to export history"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/csv; charset=utf-8")
	w.Header().Set("Content-Disposition", `attachment; filename="`+url.PathEscape(acct.Username)+`-history.csv"`)
	w.Write(buf.Bytes())
}
