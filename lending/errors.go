package lending

import (
	"errors"
	"fmt"
)

// Kind classifies the outcome of a lending operation.
type Kind string

const (
	KindAccountNotFound             Kind = "AccountNotFound"
	KindIssueNotPermitted           Kind = "IssueNotPermitted"
	KindStaffQuotaExceeded          Kind = "StaffQuotaExceeded"
	KindDuplicateTitleQuotaExceeded Kind = "DuplicateTitleQuotaExceeded"
	KindBorrowerQuotaExceeded       Kind = "BorrowerQuotaExceeded"
	KindDuplicateBorrowerLoan       Kind = "DuplicateBorrowerLoan"
	KindBookUnavailable             Kind = "BookUnavailable"
	KindLoanNotFound                Kind = "LoanNotFound"
	KindBookStateInconsistent       Kind = "BookStateInconsistent"
	KindConflict                    Kind = "Conflict"
	KindStorageUnavailable          Kind = "StorageUnavailable"
)

// Sentinel errors returned by Catalog and Accounts implementations.
var (
	// ErrVersionConflict means the account changed since it was loaded.
	ErrVersionConflict = errors.New("lending: account version conflict")

	// ErrNoCopy means a counter update did not apply: no copy left to reserve,
	// nothing issued to release, or the title does not exist.
	ErrNoCopy = errors.New("lending: book counter precondition failed")
)

// Error is a lending outcome other than success.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e.Err != nil {
		return e.Msg + ": " + e.Err.Error()
	}
	return e.Msg
}

func (e *Error) Unwrap() error { return e.Err }

// Is matches any *Error of the same Kind, so errors.Is(err, &Error{Kind: k}) works.
func (e *Error) Is(target error) bool {
	t, ok := target.(*Error)
	return ok && t.Kind == e.Kind
}

func newError(kind Kind, format string, args ...any) *Error {
	return &Error{Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

func storageError(op string, err error) *Error {
	return &Error{Kind: KindStorageUnavailable, Msg: op, Err: err}
}

// KindOf returns the Kind of err, or "" when err is nil or not a lending error.
func KindOf(err error) Kind {
	var le *Error
	if errors.As(err, &le) {
		return le.Kind
	}
	return ""
}

// Recoverable reports whether err is a validation outcome the user can act on,
// as opposed to a storage fault.
func Recoverable(err error) bool {
	k := KindOf(err)
	return k != "" && k != KindStorageUnavailable && k != KindConflict
}
