package controller

import (
	"fmt"
	"net/http"
	"sort"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/email"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

func registerMessageRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	opts.Router.Handle(
		"/v1/messages",
		app.requires(access.Requirement{Permissions: []access.Permission{access.PermMessagesSend}})(http.HandlerFunc(app.handleSendMessageV1)),
	).Methods(http.MethodPost)
}

type handleSendMessageV1Input struct {
	Subject string `json:"subject" validate:"required,max=200"`
	Body    string `json:"body" validate:"required,max=10000"`

	// ClassId limits the announcement to parents of one class
	ClassId *string `json:"classId"`
}

type handleSendMessageV1Output struct {
	Recipients int `json:"recipients"`
	Failed     int `json:"failed"`
}

// handleSendMessageV1 emails an announcement to the linked parents of
// the organisation or of one class; teachers may only message their
// own classes
func (a *application) handleSendMessageV1(w http.ResponseWriter, r *http.Request) {
	var input handleSendMessageV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read message", err)
		return
	}
	ctx := r.Context()
	caller := principal(r)
	isTeacher := caller.Role == models.RoleStaff && caller.StaffSubrole != nil && *caller.StaffSubrole == models.StaffSubroleTeacher
	if isTeacher && input.ClassId == nil {
		sendError(w, r, "not allowed", fmt.Errorf("teachers must pick a class: %w", access.ErrForbidden))
		return
	}

	students, err := a.store.ListStudents(ctx, caller.OrgId, store.StudentFilter{})
	if err != nil {
		sendError(w, r, "failed to list students", err)
		return
	}
	if input.ClassId != nil {
		class, err := a.store.GetClass(ctx, caller.OrgId, *input.ClassId)
		if err != nil {
			sendError(w, r, "failed to get class", err)
			return
		}
		if isTeacher && (class.TeacherId == nil || *class.TeacherId != caller.UserId) {
			sendError(w, r, "not allowed", fmt.Errorf("class[%s] is taught by someone else: %w", class.Id, access.ErrForbidden))
			return
		}
		enrollments, err := a.store.ListEnrollments(ctx, caller.OrgId, store.EnrollmentFilter{ClassId: &class.Id})
		if err != nil {
			sendError(w, r, "failed to list enrollments", err)
			return
		}
		enrolled := map[string]bool{}
		for _, enrollment := range enrollments {
			enrolled[enrollment.StudentId] = true
		}
		filtered := students[:0]
		for _, student := range students {
			if enrolled[student.Id] {
				filtered = append(filtered, student)
			}
		}
		students = filtered
	}

	parentIds := map[string]struct{}{}
	for _, student := range students {
		if student.PrimaryParentId != nil {
			parentIds[*student.PrimaryParentId] = struct{}{}
		}
	}
	ids := make([]string, 0, len(parentIds))
	for id := range parentIds {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	output := handleSendMessageV1Output{}
	if len(ids) > 0 {
		org, err := a.store.GetOrg(ctx, caller.OrgId)
		if err != nil {
			sendError(w, r, "failed to get organisation", err)
			return
		}
		parents, err := a.store.ListUsers(ctx, ids)
		if err != nil {
			sendError(w, r, "failed to list parents", err)
			return
		}
		html, err := email.RenderAnnouncement(email.AnnouncementData{OrgName: org.Name, Body: input.Body})
		if err != nil {
			sendError(w, r, "failed to render message", err)
			return
		}
		for _, parent := range parents {
			message := email.Message{
				To:      []email.User{{Address: parent.Email, Name: parent.Name}},
				Subject: input.Subject,
				Html:    html,
				Text:    input.Body,
			}
			if err := a.notifier.Email(ctx, message); err != nil {
				log(r, common.LogLevelWarn, "failed to queue announcement for user[%s]: %s", parent.Id, err)
				output.Failed++
				continue
			}
			output.Recipients++
		}
	}
	data := map[string]any{"subject": input.Subject, "recipients": output.Recipients, "failed": output.Failed}
	if input.ClassId != nil {
		data["classId"] = *input.ClassId
	}
	a.orgAudit(r, audit.ActionMessageSent, audit.TargetOrg, caller.OrgId, data)
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}
