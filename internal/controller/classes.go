package controller

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"

	"github.com/gorilla/mux"
)

func registerClassRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	view := app.requires(access.Requirement{Permissions: []access.Permission{access.PermClassesView}})
	manage := app.requires(access.Requirement{Permissions: []access.Permission{access.PermClassesManage}})
	record := app.requires(access.Requirement{Permissions: []access.Permission{access.PermAttendanceRecord}})

	v1 := opts.Router.PathPrefix("/v1/classes").Subrouter()
	v1.Handle("", view(http.HandlerFunc(app.handleListClassesV1))).Methods(http.MethodGet)
	v1.Handle("", manage(http.HandlerFunc(app.handleCreateClassV1))).Methods(http.MethodPost)
	v1.Handle("/{classId}", manage(http.HandlerFunc(app.handleUpdateClassV1))).Methods(http.MethodPatch)
	v1.Handle("/{classId}/students", manage(http.HandlerFunc(app.handleEnrollStudentsV1))).Methods(http.MethodPost)
	v1.Handle("/{classId}/attendance", view(http.HandlerFunc(app.handleListAttendanceV1))).Methods(http.MethodGet)
	v1.Handle("/{classId}/attendance", record(http.HandlerFunc(app.handleRecordAttendanceV1))).Methods(http.MethodPut)
}

func (a *application) handleListClassesV1(w http.ResponseWriter, r *http.Request) {
	classes, err := a.store.ListClasses(r.Context(), principal(r).OrgId)
	if err != nil {
		sendError(w, r, "failed to list classes", err)
		return
	}
	includeArchived := r.URL.Query().Get("includeArchived") == "true"
	output := []models.Class{}
	for _, class := range classes {
		if class.IsArchived && !includeArchived {
			continue
		}
		output = append(output, class)
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}

type handleCreateClassV1Input struct {
	Name        string               `json:"name" validate:"required,max=128"`
	TeacherId   *string              `json:"teacherId"`
	MonthlyFeeP int64                `json:"monthlyFeeP" validate:"min=0"`
	FeeDueDay   *int                 `json:"feeDueDay" validate:"omitempty,min=1,max=31"`
	Schedule    models.ClassSchedule `json:"schedule"`
}

// checkTeacher makes sure a class is only assigned to staff or admins
// of the same organisation
func (a *application) checkTeacher(r *http.Request, teacherId *string) error {
	if teacherId == nil {
		return nil
	}
	membership, err := a.store.GetMembership(r.Context(), *teacherId, principal(r).OrgId)
	if err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return fmt.Errorf("teacher[%s] is not a member: %w", *teacherId, ErrorInvalidInput)
		}
		return err
	}
	if membership.Role == models.RoleParent {
		return fmt.Errorf("teacher[%s] is a parent: %w", *teacherId, ErrorInvalidInput)
	}
	return nil
}

func (a *application) handleCreateClassV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateClassV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read class", err)
		return
	}
	if err := a.checkTeacher(r, input.TeacherId); err != nil {
		sendError(w, r, "failed to assign teacher", err)
		return
	}
	class := &models.Class{
		OrgId:       principal(r).OrgId,
		Name:        strings.TrimSpace(input.Name),
		TeacherId:   input.TeacherId,
		MonthlyFeeP: input.MonthlyFeeP,
		FeeDueDay:   input.FeeDueDay,
		Schedule:    input.Schedule,
	}
	if err := a.store.CreateClass(r.Context(), class); err != nil {
		sendError(w, r, "failed to create class", err)
		return
	}
	a.orgAudit(r, audit.ActionClassCreated, audit.TargetClass, class.Id, map[string]any{"name": class.Name})
	common.SendHttpSuccessResponse(w, r, http.StatusCreated, "ok", class)
}

type handleUpdateClassV1Input struct {
	Name        *string               `json:"name" validate:"omitempty,min=1,max=128"`
	TeacherId   *string               `json:"teacherId"`
	MonthlyFeeP *int64                `json:"monthlyFeeP" validate:"omitempty,min=0"`
	FeeDueDay   *int                  `json:"feeDueDay" validate:"omitempty,min=1,max=31"`
	Schedule    *models.ClassSchedule `json:"schedule"`
	IsArchived  *bool                 `json:"isArchived"`
}

func (a *application) handleUpdateClassV1(w http.ResponseWriter, r *http.Request) {
	var input handleUpdateClassV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read class", err)
		return
	}
	class, err := a.store.GetClass(r.Context(), principal(r).OrgId, mux.Vars(r)["classId"])
	if err != nil {
		sendError(w, r, "failed to get class", err)
		return
	}
	if err := a.checkTeacher(r, input.TeacherId); err != nil {
		sendError(w, r, "failed to assign teacher", err)
		return
	}
	changed := []string{}
	if input.Name != nil {
		class.Name = strings.TrimSpace(*input.Name)
		changed = append(changed, "name")
	}
	if input.TeacherId != nil {
		class.TeacherId = input.TeacherId
		changed = append(changed, "teacherId")
	}
	if input.MonthlyFeeP != nil {
		class.MonthlyFeeP = *input.MonthlyFeeP
		changed = append(changed, "monthlyFeeP")
	}
	if input.FeeDueDay != nil {
		class.FeeDueDay = input.FeeDueDay
		changed = append(changed, "feeDueDay")
	}
	if input.Schedule != nil {
		class.Schedule = *input.Schedule
		changed = append(changed, "schedule")
	}
	if input.IsArchived != nil {
		class.IsArchived = *input.IsArchived
		changed = append(changed, "isArchived")
	}
	if err := a.store.UpdateClass(r.Context(), *class); err != nil {
		sendError(w, r, "failed to update class", err)
		return
	}
	a.orgAudit(r, audit.ActionClassUpdated, audit.TargetClass, class.Id, map[string]any{"fields": changed})
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", class)
}

type handleEnrollStudentsV1Input struct {
	StudentIds []string `json:"studentIds" validate:"required,min=1,dive,required"`
}

func (a *application) handleEnrollStudentsV1(w http.ResponseWriter, r *http.Request) {
	var input handleEnrollStudentsV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read enrollment", err)
		return
	}
	ctx := r.Context()
	caller := principal(r)
	class, err := a.store.GetClass(ctx, caller.OrgId, mux.Vars(r)["classId"])
	if err != nil {
		sendError(w, r, "failed to get class", err)
		return
	}
	enrolled := []models.Enrollment{}
	for _, studentId := range input.StudentIds {
		if _, err := a.store.GetStudent(ctx, caller.OrgId, studentId); err != nil {
			sendError(w, r, "failed to get student", err)
			return
		}
		enrollment := &models.Enrollment{OrgId: caller.OrgId, StudentId: studentId, ClassId: class.Id, EnrolledAt: time.Now().UTC()}
		if err := a.store.CreateEnrollment(ctx, enrollment); err != nil {
			if errors.Is(err, store.ErrDuplicate) {
				continue
			}
			sendError(w, r, "failed to enroll student", err)
			return
		}
		enrolled = append(enrolled, *enrollment)
		a.orgAudit(r, audit.ActionStudentEnrolled, audit.TargetStudent, studentId, map[string]any{"classId": class.Id})
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", enrolled)
}

// classForAttendance loads the class and keeps teachers to the classes
// they teach
func (a *application) classForAttendance(r *http.Request) (*models.Class, error) {
	caller := principal(r)
	class, err := a.store.GetClass(r.Context(), caller.OrgId, mux.Vars(r)["classId"])
	if err != nil {
		return nil, err
	}
	isTeacher := caller.Role == models.RoleStaff && caller.StaffSubrole != nil && *caller.StaffSubrole == models.StaffSubroleTeacher
	if isTeacher && (class.TeacherId == nil || *class.TeacherId != caller.UserId) {
		return nil, fmt.Errorf("class[%s] is taught by someone else: %w", class.Id, access.ErrForbidden)
	}
	return class, nil
}

func (a *application) handleListAttendanceV1(w http.ResponseWriter, r *http.Request) {
	date := r.URL.Query().Get("date")
	if date == "" {
		date = time.Now().UTC().Format(time.DateOnly)
	}
	if _, err := time.Parse(time.DateOnly, date); err != nil {
		sendError(w, r, "failed to read date", fmt.Errorf("date[%s] is not YYYY-MM-DD: %w", date, ErrorInvalidInput))
		return
	}
	class, err := a.classForAttendance(r)
	if err != nil {
		sendError(w, r, "failed to get class", err)
		return
	}
	records, err := a.store.ListAttendance(r.Context(), class.OrgId, class.Id, date)
	if err != nil {
		sendError(w, r, "failed to list attendance", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", records)
}

type attendanceEntryInput struct {
	StudentId string  `json:"studentId" validate:"required"`
	Status    string  `json:"status" validate:"required,oneof=PRESENT ABSENT LATE EXCUSED"`
	Notes     *string `json:"notes" validate:"omitempty,max=512"`
}

type handleRecordAttendanceV1Input struct {
	Date    string                 `json:"date" validate:"required,isodate"`
	Records []attendanceEntryInput `json:"records" validate:"required,min=1,dive"`
}

// handleRecordAttendanceV1 replaces the register of one class on one
// date; every student has to be enrolled in the class
func (a *application) handleRecordAttendanceV1(w http.ResponseWriter, r *http.Request) {
	var input handleRecordAttendanceV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read attendance", err)
		return
	}
	class, err := a.classForAttendance(r)
	if err != nil {
		sendError(w, r, "failed to get class", err)
		return
	}
	ctx := r.Context()
	enrollments, err := a.store.ListEnrollments(ctx, class.OrgId, store.EnrollmentFilter{ClassId: &class.Id})
	if err != nil {
		sendError(w, r, "failed to list enrollments", err)
		return
	}
	enrolled := map[string]struct{}{}
	for _, enrollment := range enrollments {
		enrolled[enrollment.StudentId] = struct{}{}
	}
	caller := principal(r)
	now := time.Now().UTC()
	records := make([]models.AttendanceRecord, 0, len(input.Records))
	for _, entry := range input.Records {
		if _, ok := enrolled[entry.StudentId]; !ok {
			sendError(w, r, "failed to record attendance", fmt.Errorf("student[%s] is not enrolled: %w", entry.StudentId, ErrorInvalidInput))
			return
		}
		records = append(records, models.AttendanceRecord{
			OrgId:      class.OrgId,
			ClassId:    class.Id,
			StudentId:  entry.StudentId,
			Date:       input.Date,
			Status:     models.AttendanceStatus(entry.Status),
			Notes:      entry.Notes,
			RecordedBy: caller.UserId,
			RecordedAt: now,
		})
	}
	if err := a.store.UpsertAttendance(ctx, records); err != nil {
		sendError(w, r, "failed to record attendance", err)
		return
	}
	a.orgAudit(r, audit.ActionAttendanceRecorded, audit.TargetClass, class.Id, map[string]any{
		"date":    input.Date,
		"records": len(records),
	})
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", records)
}
