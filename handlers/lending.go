package handlers

import (
	"net/http"
	"strings"
	"time"

	"github.com/kevinaaaquil/library/lending"
	"github.com/kevinaaaquil/library/middleware"
	"github.com/kevinaaaquil/library/models"
)

type LendingHandler struct {
	Engine *lending.Engine
}

// LoanRequest names a loan. StaffUsername defaults to the caller; only a librarian may
// act for another account, e.g. to take returns for a deleted assistant.
type LoanRequest struct {
	BookTitle     string `json:"bookTitle" validate:"required"`
	BorrowerName  string `json:"borrowerName" validate:"required"`
	BorrowerPhone string `json:"borrowerPhone" validate:"required"`
	StaffUsername string `json:"staffUsername"`
}

type IssueResponse struct {
	Book models.Book       `json:"book"`
	Loan models.ActiveLoan `json:"loan"`
}

type ReturnResponse struct {
	Book models.Book       `json:"book"`
	Loan models.ClosedLoan `json:"loan"`
}

type ReturnAllFailure struct {
	AccountID string `json:"accountId"`
	Username  string `json:"username"`
	OpenLoans int    `json:"openLoans"`
	Error     string `json:"error"`
}

type ReturnAllResponse struct {
	ReturnDate time.Time          `json:"returnDate"`
	Accounts   int                `json:"accounts"`
	Loans      int                `json:"loans"`
	Fines      int                `json:"fines"`
	Complete   bool               `json:"complete"`
	Failures   []ReturnAllFailure `json:"failures"`
}

var kindStatus = map[lending.Kind]int{
	lending.KindAccountNotFound:             http.StatusNotFound,
	lending.KindLoanNotFound:                http.StatusNotFound,
	lending.KindIssueNotPermitted:           http.StatusForbidden,
	lending.KindStaffQuotaExceeded:          http.StatusUnprocessableEntity,
	lending.KindDuplicateTitleQuotaExceeded: http.StatusUnprocessableEntity,
	lending.KindBorrowerQuotaExceeded:       http.StatusUnprocessableEntity,
	lending.KindDuplicateBorrowerLoan:       http.StatusConflict,
	lending.KindBookUnavailable:             http.StatusConflict,
	lending.KindBookStateInconsistent:       http.StatusConflict,
	lending.KindConflict:                    http.StatusConflict,
	lending.KindStorageUnavailable:          http.StatusServiceUnavailable,
}

func writeLendingError(w http.ResponseWriter, err error) {
	kind := lending.KindOf(err)
	status, ok := kindStatus[kind]
	if !ok {
		http.Error(w, `{"error":"lending failed"}`, http.StatusInternalServerError)
		return
	}
	msg := err.Error()
	if kind == lending.KindStorageUnavailable {
		msg = "storage unavailable, try again"
	}
	writeError(w, status, string(kind), msg)
}

func (h *LendingHandler) request(w http.ResponseWriter, r *http.Request) (lending.Request, bool) {
	var req LoanRequest
	if !decode(w, r, &req) {
		return lending.Request{}, false
	}
	claims, ok := middleware.ClaimsFromContext(r.Context())
	if !ok {
		http.Error(w, `{"error":"unauthorized"}`, http.StatusUnauthorized)
		return lending.Request{}, false
	}
	staff := strings.TrimSpace(req.StaffUsername)
	if staff == "" {
		staff = claims.Username
	} else if staff != claims.Username && claims.Role != models.RoleLibrarian {
		http.Error(w, `{"error":"only a librarian can act for another account"}`, http.StatusForbidden)
		return lending.Request{}, false
	}
	return lending.Request{
		BookTitle:     req.BookTitle,
		StaffUsername: staff,
		Borrower:      models.Borrower{Name: req.BorrowerName, Phone: req.BorrowerPhone},
	}, true
}

func (h *LendingHandler) Issue(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.IssueBook(r.Context(), req)
	if err != nil {
		writeLendingError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, IssueResponse{Book: res.Book, Loan: res.Loan})
}

func (h *LendingHandler) Return(w http.ResponseWriter, r *http.Request) {
	req, ok := h.request(w, r)
	if !ok {
		return
	}
	res, err := h.Engine.ReturnBook(r.Context(), req)
	if err != nil {
		writeLendingError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, ReturnResponse{Book: res.Book, Loan: res.Loan})
}

// ReturnAll closes every open loan. Accounts that could not be closed are listed in
// the response; the rest of the batch still applies.
func (h *LendingHandler) ReturnAll(w http.ResponseWriter, r *http.Request) {
	res, err := h.Engine.ReturnAll(r.Context())
	if res == nil {
		writeLendingError(w, err)
		return
	}
	out := ReturnAllResponse{
		ReturnDate: res.ReturnDate,
		Accounts:   res.Accounts,
		Loans:      res.Loans,
		Fines:      res.Fines,
		Complete:   err == nil,
		Failures:   make([]ReturnAllFailure, 0, len(res.Failures)),
	}
	for _, f := range res.Failures {
		out.Failures = append(out.Failures, ReturnAllFailure{
			AccountID: f.AccountID.Hex(),
			Username:  f.Username,
			OpenLoans: f.OpenLoans,
			Error:     f.Err.Error(),
		})
	}
	writeJSON(w, http.StatusOK, out)
}
