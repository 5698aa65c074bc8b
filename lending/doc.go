// Package lending decides whether a book may be issued to or returned from a borrower and
// applies the resulting change to one Book and one Account.
//
// Rule outcomes (quota exceeded, loan not found, ...) are returned as *Error values carrying
// a Kind; callers switch on KindOf(err). Storage failures are reported as KindStorageUnavailable
// and are not retried. Optimistic version conflicts on the account document are retried with
// exponential backoff before being reported as KindConflict.
package lending
