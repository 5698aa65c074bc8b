package handlers

import (
	"log"
	"net/http"

	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/reports"
	"github.com/kevinaaaquil/library/service"
)

const dashboardTopN = 5

type AdminHandler struct {
	Accounts    AccountStore
	Books       BookStore
	Maintenance *service.Maintenance
}

type DashboardResponse struct {
	ActiveAccounts     map[string]int       `json:"activeAccounts"`
	Titles             int64                `json:"titles"`
	CopiesOnLoan       int64                `json:"copiesOnLoan"`
	OpenLoans          int                  `json:"openLoans"`
	TopBorrowers       []reports.Count      `json:"topBorrowers"`
	MostBorrowedTitles []reports.Count      `json:"mostBorrowedTitles"`
	FinesByDate        []reports.DailyFines `json:"finesByDate"`
	Maintenance        bool                 `json:"maintenance"`
}

func (h *AdminHandler) Dashboard(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to load accounts"}`, http.StatusInternalServerError)
		return
	}
	titles, onLoan, err := h.Books.CountBooks(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to count books"}`, http.StatusInternalServerError)
		return
	}
	out := DashboardResponse{
		ActiveAccounts:     make(map[string]int, len(models.ValidRoles)),
		Titles:             titles,
		CopiesOnLoan:       onLoan,
		TopBorrowers:       reports.TopBorrowers(accounts, dashboardTopN),
		MostBorrowedTitles: reports.MostBorrowedTitles(accounts, dashboardTopN),
		FinesByDate:        reports.FinesByDate(accounts),
		Maintenance:        h.Maintenance.On(),
	}
	for _, role := range models.ValidRoles {
		out.ActiveAccounts[role] = 0
	}
	for _, a := range accounts {
		out.OpenLoans += len(a.ActiveLoans)
		if !a.Deleted {
			out.ActiveAccounts[a.Role]++
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// ToggleMaintenance flips maintenance mode and returns the new state.
func (h *AdminHandler) ToggleMaintenance(w http.ResponseWriter, r *http.Request) {
	on := h.Maintenance.Toggle()
	who := ""
	if c, ok := middleware.ClaimsFromContext(r.Context()); ok {
		who = c.Username
	}
	log.Printf("maintenance mode set to %v by %s", on, who)
	writeJSON(w, http.StatusOK, map[string]bool{"maintenance": on})
}

// ResetHistory clears every account's loan history and fines. Open loans are kept.
func (h *AdminHandler) ResetHistory(w http.ResponseWriter, r *http.Request) {
	n, err := h.Accounts.ResetHistory(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to reset history"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int64{"accounts": n})
}
