package controller

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/validate"
)

const (
	sessionCookieName = "madrasah_session"

	rateLimitAuth   = "auth"
	rateLimitSignup = "signup"
	rateLimitClaims = "claims"

	DefaultRateLimit       = 10
	DefaultRateLimitWindow = time.Minute

	maxRequestBytes = 1 << 20
	maxUploadBytes  = 5 << 20

	// dummyPasswordHash is checked against when the email is unknown
	dummyPasswordHash = "$argon2id$v=19$m=65536,t=3,p=4$c29tZXNhbHRzb21lc2FsdA$AAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAAA"
)

// readInput parses the json body into input and validates its tags
func readInput(r *http.Request, input any) error {
	requestBody, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBytes))
	if err != nil {
		return fmt.Errorf("failed to read request body: %w", ErrorInvalidInput)
	}
	if err := json.Unmarshal(requestBody, input); err != nil {
		return fmt.Errorf("failed to parse request body: %w", ErrorInvalidInput)
	}
	return validate.Struct(input)
}

// principal returns the caller attached by the auth middleware
func principal(r *http.Request) *access.Principal {
	return access.PrincipalFromContext(r.Context())
}

// log returns the request-scoped logger
func log(r *http.Request, level, format string, args ...any) {
	common.GetRequestLogger(r)(level, fmt.Sprintf(format, args...))
}

// writeAudit records an action taken through the api; failures are
// logged and never fail the request
func (a *application) writeAudit(r *http.Request, orgId, actorId *string, action, targetType, targetId string, data map[string]any) {
	entry := audit.NewEntry(orgId, actorId, action, targetType, targetId, data)
	srcIp := common.ClientIp(r)
	entry.SrcIp = &srcIp
	if err := a.audit.Log(r.Context(), entry); err != nil {
		log(r, common.LogLevelError, "failed to write audit entry[%s] for %s[%s]: %s", action, targetType, targetId, err)
	}
}

// orgAudit records an action inside the caller's active organisation
func (a *application) orgAudit(r *http.Request, action, targetType, targetId string, data map[string]any) {
	caller := principal(r)
	a.writeAudit(r, &caller.OrgId, &caller.UserId, action, targetType, targetId, data)
}
