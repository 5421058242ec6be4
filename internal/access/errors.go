package access

import (
	"errors"

	"github.com/shopdesk/shopdesk/internal/auth"
)

// Failure taxonomy of the access layer. Callers match with errors.Is; every service wraps these
// with context.
var (
	ErrUnauthenticated        = auth.ErrUnauthenticated
	ErrAccessDenied           = errors.New("access: access denied")
	ErrNoAccessibleShop       = errors.New("access: no accessible shop")
	ErrNotEligibleForApproval = errors.New("access: not eligible for approval")
	ErrInsufficientPermission = errors.New("access: insufficient permission")
	ErrStaleApprovalTarget    = errors.New("access: stale approval target")
	ErrInvalidStateTransition = errors.New("access: invalid state transition")
	ErrTransactionConflict    = errors.New("access: transaction conflict")
	ErrNotFound               = errors.New("access: not found")
	ErrInvalidInput           = errors.New("access: invalid input")
)
