package controller

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const maxAuditLogsPerPage = 200

func registerAuditRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	opts.Router.Handle(
		"/v1/audit-logs",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermAuditView}})(http.HandlerFunc(app.handleListAuditLogsV1)),
	).Methods(http.MethodGet)
}

type auditLogView struct {
	models.AuditLog
	Summary string `json:"summary"`
}

// handleListAuditLogsV1 pages backwards through the trail of the active
// organisation using the createdAt of the last entry as the cursor
func (a *application) handleListAuditLogsV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	filter := store.AuditFilter{OrgId: &caller.OrgId, Limit: 50}
	query := r.URL.Query()
	if limit := query.Get("limit"); limit != "" {
		parsed, err := strconv.Atoi(limit)
		if err != nil || parsed < 1 {
			sendError(w, r, "failed to read limit", fmt.Errorf("limit must be a positive number: %w", ErrorInvalidInput))
			return
		}
		filter.Limit = min(parsed, maxAuditLogsPerPage)
	}
	if before := query.Get("before"); before != "" {
		parsed, err := time.Parse(time.RFC3339Nano, before)
		if err != nil {
			sendError(w, r, "failed to read cursor", fmt.Errorf("before must be RFC3339: %w", ErrorInvalidInput))
			return
		}
		filter.Before = &parsed
	}
	entries, err := a.audit.List(r.Context(), filter)
	if err != nil {
		sendError(w, r, "failed to list audit logs", err)
		return
	}
	output := make([]auditLogView, 0, len(entries))
	for _, entry := range entries {
		output = append(output, auditLogView{AuditLog: entry, Summary: audit.Interpret(entry)})
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}
