package controller

import (
	"bytes"
	"fmt"
	"net/http"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/calendar"
	"madrasah/internal/common"
	"madrasah/internal/giftaid"
)

func registerExportRoutes(opts RouteRegistrationOpts) {
	app := opts.App

	v1 := opts.Router.PathPrefix("/v1").Subrouter()
	v1.Handle(
		"/giftaid/export",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermGiftAidExport}})(http.HandlerFunc(app.handleExportGiftAidV1)),
	).Methods(http.MethodGet)
	v1.Handle(
		"/calendar/fees.ics",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermCalendarView}})(http.HandlerFunc(app.handleFeeCalendarV1)),
	).Methods(http.MethodGet)
}

// dateRange reads the inclusive from/to query dates in the location
func dateRange(r *http.Request, location *time.Location) (time.Time, time.Time, error) {
	query := r.URL.Query()
	from, err := time.ParseInLocation(time.DateOnly, query.Get("from"), location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("from must be YYYY-MM-DD: %w", ErrorInvalidInput)
	}
	to, err := time.ParseInLocation(time.DateOnly, query.Get("to"), location)
	if err != nil {
		return time.Time{}, time.Time{}, fmt.Errorf("to must be YYYY-MM-DD: %w", ErrorInvalidInput)
	}
	return from, to.AddDate(0, 0, 1).Add(-time.Nanosecond), nil
}

// handleExportGiftAidV1 downloads the HMRC schedule, or returns it as
// json with format=json
func (a *application) handleExportGiftAidV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	org, err := a.store.GetOrg(r.Context(), caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}
	from, to, err := dateRange(r, org.Settings.Location(time.UTC))
	if err != nil {
		sendError(w, r, "failed to read range", err)
		return
	}
	schedule, err := a.giftaid.Build(r.Context(), org.Id, from, to)
	if err != nil {
		sendError(w, r, "failed to build gift aid schedule", err)
		return
	}
	a.orgAudit(r, audit.ActionGiftAidExported, audit.TargetOrg, org.Id, map[string]any{
		"from":   from.Format(time.DateOnly),
		"to":     to.Format(time.DateOnly),
		"rows":   len(schedule.Rows),
		"totalP": schedule.TotalP,
	})
	if r.URL.Query().Get("format") == "json" {
		common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", schedule)
		return
	}
	var buf bytes.Buffer
	if err := schedule.Write(&buf); err != nil {
		sendError(w, r, "failed to write gift aid schedule", err)
		return
	}
	common.SendHttpFileResponse(w, r, giftaid.ContentType, schedule.FileName(org.Slug), buf.Bytes())
}

// handleFeeCalendarV1 serves the outstanding fee due dates as an ICS
// feed; parents only see their own children
func (a *application) handleFeeCalendarV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	opts := calendar.Options{Now: time.Now()}
	if !caller.HasPermission(access.PermPaymentsView) {
		opts.ParentId = &caller.UserId
	}
	org, err := a.store.GetOrg(r.Context(), caller.OrgId)
	if err != nil {
		sendError(w, r, "failed to get organisation", err)
		return
	}
	events, err := a.calendar.FeeEvents(r.Context(), org.Id, opts)
	if err != nil {
		sendError(w, r, "failed to build calendar", err)
		return
	}
	var buf bytes.Buffer
	if err := calendar.Write(&buf, fmt.Sprintf("%s fees", org.Name), events, opts.Now); err != nil {
		sendError(w, r, "failed to write calendar", err)
		return
	}
	common.SendHttpFileResponse(w, r, calendar.ContentType, fmt.Sprintf("%s_fees.ics", org.Slug), buf.Bytes())
}
