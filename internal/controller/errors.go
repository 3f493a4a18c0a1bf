package controller

import (
	"errors"
	"net/http"

	"madrasah/internal/access"
	"madrasah/internal/auth"
	"madrasah/internal/billing"
	"madrasah/internal/claims"
	"madrasah/internal/common"
	"madrasah/internal/giftaid"
	"madrasah/internal/lifecycle"
	"madrasah/internal/roster"
	"madrasah/internal/store"
	"madrasah/internal/validate"
)

var (
	ErrorInvalidInput           = errors.New("invalid_input")
	ErrorInvalidCredentials     = errors.New("invalid_credentials")
	ErrorEmailExists            = errors.New("email_exists")
	ErrorOrgExists              = errors.New("org_exists")
	ErrorMemberExists           = errors.New("member_exists")
	ErrorDatabaseIssue          = errors.New("database_issue")
	ErrorInvalidPublicServerUrl = errors.New("invalid_public_server_url")
	ErrorMissingStore           = errors.New("missing_store")
	ErrorMissingCache           = errors.New("missing_cache")
	ErrorMissingNotifier        = errors.New("missing_notifier")
	ErrorMissingServiceLog      = errors.New("missing_service_log")
	ErrorMissingSigningToken    = errors.New("missing_signing_token")
)

// statusOf maps domain errors onto http status codes
func statusOf(err error) int {
	switch {
	case errors.Is(err, access.ErrUnauthenticated),
		errors.Is(err, auth.ErrorSessionNotFound),
		errors.Is(err, auth.ErrorJwtTokenExpired),
		errors.Is(err, auth.ErrorJwtTokenSignature),
		errors.Is(err, auth.ErrorJwtClaimsInvalid),
		errors.Is(err, ErrorInvalidCredentials):
		return http.StatusUnauthorized
	case errors.Is(err, access.ErrForbidden),
		errors.Is(err, access.ErrNotMember),
		errors.Is(err, access.ErrOrgInactive),
		errors.Is(err, billing.ErrPaymentMethodRejected):
		return http.StatusForbidden
	case errors.Is(err, store.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, store.ErrDuplicate),
		errors.Is(err, store.ErrConflict),
		errors.Is(err, ErrorEmailExists),
		errors.Is(err, ErrorOrgExists),
		errors.Is(err, ErrorMemberExists),
		errors.Is(err, billing.ErrAlreadyPaid),
		errors.Is(err, billing.ErrInvoiceCancelled),
		errors.Is(err, claims.ErrAlreadyClaimed),
		errors.Is(err, claims.ErrClaimPending),
		errors.Is(err, claims.ErrNoPendingClaim),
		errors.Is(err, lifecycle.ErrAlreadyDeactivated):
		return http.StatusConflict
	case errors.Is(err, ErrorInvalidInput),
		errors.Is(err, validate.ErrorInvalidField),
		errors.Is(err, validate.ErrorInvalidUuid),
		errors.Is(err, billing.ErrInvalidMonth),
		errors.Is(err, billing.ErrAmountMismatch),
		errors.Is(err, claims.ErrInvalidCode),
		errors.Is(err, claims.ErrCodeExpired),
		errors.Is(err, giftaid.ErrInvalidRange),
		errors.Is(err, roster.ErrMissingHeader),
		errors.Is(err, roster.ErrMissingColumn),
		errors.Is(err, roster.ErrTooManyRows):
		return http.StatusBadRequest
	}
	return http.StatusInternalServerError
}

// codeOf picks the sentinel that is returned to the client; internal
// errors are never echoed
func codeOf(err error, status int) error {
	sentinels := []error{
		access.ErrOrgInactive,
		access.ErrNoActiveOrg,
		access.ErrNotMember,
		access.ErrUnauthenticated,
		access.ErrForbidden,
		claims.ErrInvalidCode,
		claims.ErrAlreadyClaimed,
		claims.ErrClaimPending,
		claims.ErrCodeExpired,
		claims.ErrNoPendingClaim,
		billing.ErrAlreadyPaid,
		billing.ErrInvoiceCancelled,
		billing.ErrPaymentMethodRejected,
		billing.ErrInvalidMonth,
		billing.ErrAmountMismatch,
		lifecycle.ErrAlreadyDeactivated,
		auth.ErrorSessionNotFound,
		auth.ErrorJwtTokenExpired,
		ErrorInvalidCredentials,
		ErrorEmailExists,
		ErrorOrgExists,
		ErrorMemberExists,
		store.ErrNotFound,
		store.ErrDuplicate,
		store.ErrConflict,
	}
	for _, sentinel := range sentinels {
		if errors.Is(err, sentinel) {
			return sentinel
		}
	}
	switch status {
	case http.StatusBadRequest:
		return err
	case http.StatusInternalServerError:
		return common.ErrorInternal
	}
	return err
}

// sendError writes the failure envelope for err with the mapped status
func sendError(w http.ResponseWriter, r *http.Request, message string, err error) {
	status := statusOf(err)
	if status == http.StatusInternalServerError {
		log(r, common.LogLevelError, "%s: %s", message, err)
	}
	common.SendHttpFailResponse(w, r, status, message, codeOf(err, status))
}
