package controller

import (
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"

	"madrasah/internal/access"
	"madrasah/internal/audit"
	"madrasah/internal/claims"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/roster"
	"madrasah/internal/store"

	"github.com/gorilla/mux"
)

func registerStudentRoutes(opts RouteRegistrationOpts) {
	app := opts.App
	inOrg := app.requires(access.Requirement{ActiveOrg: true})
	manage := app.requires(access.Requirement{Permissions: []access.Permission{access.PermStudentsManage}})
	manageClaims := app.requires(access.Requirement{Permissions: []access.Permission{access.PermClaimsManage}})

	v1 := opts.Router.PathPrefix("/v1/students").Subrouter()
	v1.Handle("", inOrg(http.HandlerFunc(app.handleListStudentsV1))).Methods(http.MethodGet)
	v1.Handle("", manage(http.HandlerFunc(app.handleCreateStudentV1))).Methods(http.MethodPost)
	v1.Handle("/import/template", manage(http.HandlerFunc(app.handleGetImportTemplateV1))).Methods(http.MethodGet)
	v1.Handle("/import", manage(http.HandlerFunc(app.handleImportStudentsV1))).Methods(http.MethodPost)
	v1.Handle("/{studentId}", inOrg(http.HandlerFunc(app.handleGetStudentV1))).Methods(http.MethodGet)
	v1.Handle("/{studentId}/claim-code", manageClaims(http.HandlerFunc(app.handleGenerateClaimCodeV1))).Methods(http.MethodPost)
	v1.Handle("/{studentId}/claim-code/qr", manageClaims(http.HandlerFunc(app.handleGetClaimQrV1))).Methods(http.MethodGet)
	v1.Handle("/{studentId}/claim/approve", manageClaims(http.HandlerFunc(app.handleApproveClaimV1))).Methods(http.MethodPost)
	v1.Handle("/{studentId}/claim/reject", manageClaims(http.HandlerFunc(app.handleRejectClaimV1))).Methods(http.MethodPost)
}

// studentScope returns the filter that limits the caller to the students
// they may see: everything for staff, their own children for parents
func studentScope(caller *access.Principal) (store.StudentFilter, error) {
	switch {
	case caller.HasPermission(access.PermStudentsView):
		return store.StudentFilter{}, nil
	case caller.HasPermission(access.PermOwnChildrenView):
		return store.StudentFilter{ParentId: &caller.UserId}, nil
	}
	return store.StudentFilter{}, fmt.Errorf("students cannot be viewed: %w", access.ErrForbidden)
}

func (a *application) handleListStudentsV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	filter, err := studentScope(caller)
	if err != nil {
		sendError(w, r, "not allowed", err)
		return
	}
	filter.IncludeArchived = r.URL.Query().Get("includeArchived") == "true"
	students, err := a.store.ListStudents(r.Context(), caller.OrgId, filter)
	if err != nil {
		sendError(w, r, "failed to list students", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", students)
}

type handleCreateStudentV1Input struct {
	FirstName   string   `json:"firstName" validate:"required,max=64"`
	LastName    string   `json:"lastName" validate:"required,max=64"`
	DateOfBirth string   `json:"dateOfBirth" validate:"omitempty,isodate"`
	ClassIds    []string `json:"classIds" validate:"dive,required"`
}

func (a *application) handleCreateStudentV1(w http.ResponseWriter, r *http.Request) {
	var input handleCreateStudentV1Input
	if err := readInput(r, &input); err != nil {
		sendError(w, r, "failed to read student", err)
		return
	}
	ctx := r.Context()
	caller := principal(r)
	for _, classId := range input.ClassIds {
		if _, err := a.store.GetClass(ctx, caller.OrgId, classId); err != nil {
			sendError(w, r, "failed to find class", err)
			return
		}
	}
	student := &models.Student{
		OrgId:       caller.OrgId,
		FirstName:   strings.TrimSpace(input.FirstName),
		LastName:    strings.TrimSpace(input.LastName),
		ClaimStatus: models.ClaimStatusNotClaimed,
	}
	if input.DateOfBirth != "" {
		dateOfBirth, err := time.Parse(time.DateOnly, input.DateOfBirth)
		if err != nil {
			sendError(w, r, "failed to read student", fmt.Errorf("dateOfBirth is not a date: %w", ErrorInvalidInput))
			return
		}
		student.DateOfBirth = &dateOfBirth
	}
	if err := a.store.CreateStudent(ctx, student); err != nil {
		sendError(w, r, "failed to create student", err)
		return
	}
	for _, classId := range input.ClassIds {
		enrollment := &models.Enrollment{OrgId: caller.OrgId, StudentId: student.Id, ClassId: classId, EnrolledAt: time.Now().UTC()}
		if err := a.store.CreateEnrollment(ctx, enrollment); err != nil && !errors.Is(err, store.ErrDuplicate) {
			sendError(w, r, "failed to enroll student", err)
			return
		}
	}
	a.orgAudit(r, audit.ActionStudentCreated, audit.TargetStudent, student.Id, map[string]any{"classIds": input.ClassIds})
	common.SendHttpSuccessResponse(w, r, http.StatusCreated, "ok", student)
}

type handleGetStudentV1Output struct {
	Student models.Student `json:"student"`
	Classes []models.Class `json:"classes"`
}

// handleGetStudentV1 answers 404 for students outside the caller's
// organisation and for other parents' children
func (a *application) handleGetStudentV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	scope, err := studentScope(caller)
	if err != nil {
		sendError(w, r, "not allowed", err)
		return
	}
	ctx := r.Context()
	student, err := a.store.GetStudent(ctx, caller.OrgId, mux.Vars(r)["studentId"])
	if err != nil {
		sendError(w, r, "failed to get student", err)
		return
	}
	if scope.ParentId != nil && (student.PrimaryParentId == nil || *student.PrimaryParentId != *scope.ParentId) {
		sendError(w, r, "failed to get student", store.ErrNotFound)
		return
	}
	enrollments, err := a.store.ListEnrollments(ctx, caller.OrgId, store.EnrollmentFilter{StudentId: &student.Id})
	if err != nil {
		sendError(w, r, "failed to list classes", err)
		return
	}
	output := handleGetStudentV1Output{Student: *student, Classes: []models.Class{}}
	for _, enrollment := range enrollments {
		class, err := a.store.GetClass(ctx, caller.OrgId, enrollment.ClassId)
		if err != nil {
			sendError(w, r, "failed to get class", err)
			return
		}
		output.Classes = append(output.Classes, *class)
	}
	if scope.ParentId != nil {
		output.Student.ClaimCode = nil
		output.Student.ClaimCodeExpiresAt = nil
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", output)
}

func (a *application) handleGetImportTemplateV1(w http.ResponseWriter, r *http.Request) {
	common.SendHttpFileResponse(w, r, "text/csv; charset=utf-8", "students_template.csv", roster.Template())
}

// handleImportStudentsV1 accepts the csv either as the "file" field of a
// multipart form or as the raw request body
func (a *application) handleImportStudentsV1(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	var upload io.Reader = r.Body
	if strings.HasPrefix(r.Header.Get("Content-Type"), "multipart/form-data") {
		if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
			sendError(w, r, "failed to read upload", fmt.Errorf("%s: %w", err, ErrorInvalidInput))
			return
		}
		file, _, err := r.FormFile("file")
		if err != nil {
			sendError(w, r, "failed to read upload", fmt.Errorf("missing file field: %w", ErrorInvalidInput))
			return
		}
		defer file.Close()
		upload = file
	}
	caller := principal(r)
	result, err := a.roster.Import(r.Context(), caller.UserId, caller.OrgId, upload)
	if err != nil {
		sendError(w, r, "failed to import students", err)
		return
	}
	log(r, common.LogLevelInfo, "imported %d students into org[%s], %d rows failed", result.Created, caller.OrgId, result.Failed)
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", result)
}

type handleGenerateClaimCodeV1Output struct {
	Student  models.Student `json:"student"`
	ClaimUrl string         `json:"claimUrl"`
}

func (a *application) handleGenerateClaimCodeV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	student, err := a.claims.Generate(r.Context(), caller.UserId, caller.OrgId, mux.Vars(r)["studentId"], time.Now().UTC())
	if err != nil {
		sendError(w, r, "failed to generate claim code", err)
		return
	}
	claimUrl, err := a.claimUrl(r, *student)
	if err != nil {
		sendError(w, r, "failed to build claim url", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", handleGenerateClaimCodeV1Output{Student: *student, ClaimUrl: claimUrl})
}

func (a *application) handleGetClaimQrV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	student, err := a.store.GetStudent(r.Context(), caller.OrgId, mux.Vars(r)["studentId"])
	if err != nil {
		sendError(w, r, "failed to get student", err)
		return
	}
	if student.ClaimCode == nil {
		sendError(w, r, "student has no claim code", store.ErrNotFound)
		return
	}
	claimUrl, err := a.claimUrl(r, *student)
	if err != nil {
		sendError(w, r, "failed to build claim url", err)
		return
	}
	size, _ := strconv.Atoi(r.URL.Query().Get("size"))
	if size > 1024 {
		size = 1024
	}
	png, err := claims.QRCode(claimUrl, size)
	if err != nil {
		sendError(w, r, "failed to render qr code", err)
		return
	}
	common.SendHttpFileResponse(w, r, "image/png", fmt.Sprintf("claim_%s.png", *student.ClaimCode), png)
}

func (a *application) handleApproveClaimV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	student, err := a.claims.Approve(r.Context(), caller.UserId, caller.OrgId, mux.Vars(r)["studentId"], time.Now().UTC())
	if err != nil {
		sendError(w, r, "failed to approve claim", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", student)
}

func (a *application) handleRejectClaimV1(w http.ResponseWriter, r *http.Request) {
	caller := principal(r)
	student, err := a.claims.Reject(r.Context(), caller.UserId, caller.OrgId, mux.Vars(r)["studentId"])
	if err != nil {
		sendError(w, r, "failed to reject claim", err)
		return
	}
	common.SendHttpSuccessResponse(w, r, http.StatusOK, "ok", student)
}

func (a *application) claimUrl(r *http.Request, student models.Student) (string, error) {
	org, err := a.store.GetOrg(r.Context(), student.OrgId)
	if err != nil {
		return "", err
	}
	return claims.ClaimUrl(strings.TrimRight(a.publicUrl.String(), "/"), org.Slug, *student.ClaimCode), nil
}
