package handlers

import (
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.mongodb.org/mongo-driver/bson/primitive"
	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/store"
)

type AccountsHandler struct {
	Accounts          AccountStore
	LibrarianUsername string
	MaxAssistants     int
	Now               func() time.Time
}

type CreateStaffRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required,min=6,max=72"`
	Role     string `json:"role" validate:"required,oneof=Librarian Assistant"`
}

type AccountResponse struct {
	ID          string `json:"id"`
	Username    string `json:"username"`
	Role        string `json:"role"`
	Fines       int    `json:"fines"`
	Deleted     bool   `json:"deleted"`
	ActiveLoans int    `json:"activeLoans"`
	CreatedAt   string `json:"createdAt"`
}

type ChangePasswordRequest struct {
	OldPassword string `json:"oldPassword" validate:"required"`
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72,nefield=OldPassword"`
}

type ResetPasswordRequest struct {
	NewPassword string `json:"newPassword" validate:"required,min=6,max=72"`
}

func accountResponse(a *models.Account) AccountResponse {
	return AccountResponse{
		ID:          a.ID.Hex(),
		Username:    a.Username,
		Role:        a.Role,
		Fines:       a.Fines,
		Deleted:     a.Deleted,
		ActiveLoans: len(a.ActiveLoans),
		CreatedAt:   a.CreatedAt.Format(time.RFC3339),
	}
}

func (h *AccountsHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

// assistantSlot returns n for a username "as<n>" within the configured assistant range.
func (h *AccountsHandler) assistantSlot(username string) (int, bool) {
	if !strings.HasPrefix(username, "as") {
		return 0, false
	}
	n, err := strconv.Atoi(username[2:])
	if err != nil || n < 1 || n > h.MaxAssistants || username[2:] != strconv.Itoa(n) {
		return 0, false
	}
	return n, true
}

// CreateStaff creates the librarian or an assistant. Only a librarian can call.
func (h *AccountsHandler) CreateStaff(w http.ResponseWriter, r *http.Request) {
	var req CreateStaffRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	switch req.Role {
	case models.RoleLibrarian:
		if req.Username != h.LibrarianUsername {
			writeError(w, http.StatusBadRequest, "INVALID_USERNAME", "the librarian username must be "+h.LibrarianUsername)
			return
		}
		n, err := h.Accounts.CountActiveByRole(ctx, models.RoleLibrarian)
		if err != nil {
			http.Error(w, `{"error":"failed to count accounts"}`, http.StatusInternalServerError)
			return
		}
		if n > 0 {
			writeError(w, http.StatusConflict, "LIBRARIAN_EXISTS", "a librarian account already exists")
			return
		}
	case models.RoleAssistant:
		if _, ok := h.assistantSlot(req.Username); !ok {
			writeError(w, http.StatusBadRequest, "INVALID_USERNAME",
				fmt.Sprintf("assistant usernames are as1 to as%d", h.MaxAssistants))
			return
		}
		n, err := h.Accounts.CountActiveByRole(ctx, models.RoleAssistant)
		if err != nil {
			http.Error(w, `{"error":"failed to count accounts"}`, http.StatusInternalServerError)
			return
		}
		if n >= int64(h.MaxAssistants) {
			writeError(w, http.StatusConflict, "ASSISTANT_LIMIT", "all assistant accounts are in use")
			return
		}
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error":"failed to hash password"}`, http.StatusInternalServerError)
		return
	}
	acct := &models.Account{Username: req.Username, Password: string(hash), Role: req.Role}
	if _, err := h.Accounts.CreateAccount(ctx, acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "username already exists")
			return
		}
		http.Error(w, `{"error":"failed to create account"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse(acct))
}

func (h *AccountsHandler) List(w http.ResponseWriter, r *http.Request) {
	accounts, err := h.Accounts.ListAccounts(r.Context())
	if err != nil {
		http.Error(w, `{"error":"failed to list accounts"}`, http.StatusInternalServerError)
		return
	}
	out := make([]AccountResponse, 0, len(accounts))
	for i := range accounts {
		out = append(out, accountResponse(&accounts[i]))
	}
	writeJSON(w, http.StatusOK, out)
}

// Me returns the caller's account with its loans.
func (h *AccountsHandler) Me(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.caller(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, acct)
}

func (h *AccountsHandler) caller(w http.ResponseWriter, r *http.Request) (*models.Account, bool) {
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return nil, false
	}
	id, err := claims.ID()
	if err != nil {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return nil, false
	}
	acct, err := h.Accounts.AccountByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to load account"}`, http.StatusInternalServerError)
		return nil, false
	}
	if acct == nil || acct.Deleted {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return nil, false
	}
	return acct, true
}

func (h *AccountsHandler) ChangePassword(w http.ResponseWriter, r *http.Request) {
	var req ChangePasswordRequest
	if !decode(w, r, &req) {
		return
	}
	acct, ok := h.caller(w, r)
	if !ok {
		return
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(req.OldPassword)); err != nil {
		http.Error(w, `{"error":"old password is incorrect"}`, http.StatusUnauthorized)
		return
	}
	h.setPassword(w, r, acct.ID, req.NewPassword)
}

// ResetPassword sets another account's password. Only a librarian can call.
func (h *AccountsHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	var req ResetPasswordRequest
	if !decode(w, r, &req) {
		return
	}
	h.setPassword(w, r, id, req.NewPassword)
}

func (h *AccountsHandler) setPassword(w http.ResponseWriter, r *http.Request, id primitive.ObjectID, password string) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error":"failed to hash password"}`, http.StatusInternalServerError)
		return
	}
	if err := h.Accounts.UpdatePassword(r.Context(), id, string(hash)); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"failed to update password"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "password updated"})
}

func (h *AccountsHandler) DeleteMe(w http.ResponseWriter, r *http.Request) {
	acct, ok := h.caller(w, r)
	if !ok {
		return
	}
	h.softDelete(w, r, acct)
}

// DeleteAccount soft-deletes any account. Only a librarian can call.
func (h *AccountsHandler) DeleteAccount(w http.ResponseWriter, r *http.Request) {
	id, ok := pathID(w, r, "account")
	if !ok {
		return
	}
	acct, err := h.Accounts.AccountByID(r.Context(), id)
	if err != nil {
		http.Error(w, `{"error":"failed to load account"}`, http.StatusInternalServerError)
		return
	}
	if acct == nil || acct.Deleted {
		http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
		return
	}
	h.softDelete(w, r, acct)
}

func (h *AccountsHandler) softDelete(w http.ResponseWriter, r *http.Request, acct *models.Account) {
	if acct.Role == models.RoleLibrarian {
		n, err := h.Accounts.CountActiveByRole(r.Context(), models.RoleLibrarian)
		if err != nil {
			http.Error(w, `{"error":"failed to count accounts"}`, http.StatusInternalServerError)
			return
		}
		if n <= 1 {
			writeError(w, http.StatusConflict, "LAST_LIBRARIAN", "the last librarian account cannot be deleted")
			return
		}
	}
	if err := h.Accounts.SoftDelete(r.Context(), acct.ID, h.now()); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			http.Error(w, `{"error":"account not found"}`, http.StatusNotFound)
			return
		}
		http.Error(w, `{"error":"failed to delete account"}`, http.StatusInternalServerError)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
