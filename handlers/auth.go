package handlers

import (
	"errors"
	"log"
	"net/http"
	"regexp"
	"strings"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
	"github.com/kevinaaaquil/library/service"
	"github.com/kevinaaaquil/library/store"
)

const (
	maxFailedLogins = 10
	lockDuration    = time.Minute
)

// staffName matches the assistant usernames handed out by CreateStaff.
var staffName = regexp.MustCompile(`^as[0-9]+$`)

type AuthHandler struct {
	Accounts    AccountStore
	JWTSecret   string
	Maintenance *service.Maintenance
	// Bootstrap librarian credentials (from config); accepted only while no librarian exists.
	LibrarianUsername string
	LibrarianPassword string
	Now               func() time.Time
}

type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

type LoginResponse struct {
	Token    string `json:"token"`
	Username string `json:"username"`
	Role     string `json:"role"`
}

type RegisterRequest struct {
	Username string `json:"username" validate:"required,min=3,max=32,excludesall=0x20"`
	Password string `json:"password" validate:"required,min=6,max=72"`
}

func (h *AuthHandler) now() time.Time {
	if h.Now != nil {
		return h.Now()
	}
	return time.Now()
}

func (h *AuthHandler) Login(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !decode(w, r, &req) {
		return
	}
	ctx := r.Context()
	now := h.now()

	acct, err := h.Accounts.AccountByUsername(ctx, req.Username)
	if err != nil {
		http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
		return
	}
	if acct == nil || acct.Deleted {
		acct, err = h.bootstrapLibrarian(r, req)
		if err != nil {
			log.Printf("login: bootstrap librarian: %v", err)
			http.Error(w, `{"error":"login failed"}`, http.StatusInternalServerError)
			return
		}
		if acct == nil {
			http.Error(w, `{"error":"invalid username or password"}`, http.StatusUnauthorized)
			return
		}
	}

	if acct.Locked(now) {
		writeError(w, http.StatusLocked, "ACCOUNT_LOCKED", "too many failed attempts; try again later")
		return
	}
	failed := acct.FailedLoginAttempts
	if acct.LockUntil != nil {
		// the previous lock has run out
		failed = 0
	}
	if err := bcrypt.CompareHashAndPassword([]byte(acct.Password), []byte(req.Password)); err != nil {
		failed++
		var lockUntil *time.Time
		if failed >= maxFailedLogins {
			t := now.Add(lockDuration)
			lockUntil = &t
		}
		if err := h.Accounts.RecordLoginFailure(ctx, acct.ID, failed, lockUntil); err != nil {
			log.Printf("login: record failure for %s: %v", acct.Username, err)
		}
		http.Error(w, `{"error":"invalid username or password"}`, http.StatusUnauthorized)
		return
	}
	if acct.FailedLoginAttempts > 0 || acct.LockUntil != nil {
		if err := h.Accounts.ResetLoginFailures(ctx, acct.ID); err != nil {
			log.Printf("login: reset failures for %s: %v", acct.Username, err)
		}
	}

	if h.Maintenance != nil && h.Maintenance.On() && acct.Role != models.RoleLibrarian {
		writeError(w, http.StatusServiceUnavailable, "MAINTENANCE", "the library is under maintenance")
		return
	}

	token, err := middleware.IssueToken(h.JWTSecret, acct, now)
	if err != nil {
		http.Error(w, `{"error":"could not create token"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusOK, LoginResponse{Token: token, Username: acct.Username, Role: acct.Role})
}

// bootstrapLibrarian creates the librarian account on its first login with the configured
// credentials. It returns nil when the request does not qualify.
func (h *AuthHandler) bootstrapLibrarian(r *http.Request, req LoginRequest) (*models.Account, error) {
	if h.LibrarianPassword == "" || req.Username != h.LibrarianUsername || req.Password != h.LibrarianPassword {
		return nil, nil
	}
	n, err := h.Accounts.CountActiveByRole(r.Context(), models.RoleLibrarian)
	if err != nil || n > 0 {
		return nil, err
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(h.LibrarianPassword), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	acct := &models.Account{
		Username: h.LibrarianUsername,
		Password: string(hash),
		Role:     models.RoleLibrarian,
	}
	if _, err := h.Accounts.CreateAccount(r.Context(), acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			// lost a race with another first login
			return h.Accounts.AccountByUsername(r.Context(), h.LibrarianUsername)
		}
		return nil, err
	}
	log.Printf("created librarian account %s", acct.Username)
	return acct, nil
}

// Register creates a User account. Staff usernames are reserved.
func (h *AuthHandler) Register(w http.ResponseWriter, r *http.Request) {
	var req RegisterRequest
	if !decode(w, r, &req) {
		return
	}
	username := strings.TrimSpace(req.Username)
	if username == h.LibrarianUsername || staffName.MatchString(username) {
		writeError(w, http.StatusConflict, "USERNAME_RESERVED", "username is reserved for staff")
		return
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		http.Error(w, `{"error":"failed to hash password"}`, http.StatusInternalServerError)
		return
	}
	acct := &models.Account{Username: username, Password: string(hash), Role: models.RoleUser}
	if _, err := h.Accounts.CreateAccount(r.Context(), acct); err != nil {
		if errors.Is(err, store.ErrDuplicate) {
			writeError(w, http.StatusConflict, "USERNAME_TAKEN", "username already exists")
			return
		}
		http.Error(w, `{"error":"failed to create account"}`, http.StatusInternalServerError)
		return
	}
	writeJSON(w, http.StatusCreated, accountResponse(acct))
}
