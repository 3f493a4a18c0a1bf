package email

import (
	"bytes"
	"embed"
	"fmt"
	"html/template"
)

//go:embed templates/*.html
var templateFiles embed.FS

var templates = template.Must(template.ParseFS(templateFiles, "templates/*.html"))

type OrgStatusData struct {
	OrgName      string
	Headline     string
	Body         string
	Reason       string
	FailureCount int
}

type ClaimDecisionData struct {
	OrgName     string
	StudentName string
	Approved    bool
}

type AnnouncementData struct {
	OrgName string
	Body    string
}

// MemberInviteData is sent to users an admin adds to an organisation;
// TemporaryPassword is only set for newly created accounts
type MemberInviteData struct {
	OrgName           string
	Role              string
	LoginUrl          string
	TemporaryPassword string
}

func RenderMemberInvite(data MemberInviteData) (string, error) {
	return render("member_invite.html", data)
}

func RenderOrgStatus(data OrgStatusData) (string, error) {
	return render("org_status.html", data)
}

func RenderClaimDecision(data ClaimDecisionData) (string, error) {
	return render("claim_decision.html", data)
}

func RenderAnnouncement(data AnnouncementData) (string, error) {
	return render("announcement.html", data)
}

func render(name string, data any) (string, error) {
	var buf bytes.Buffer
	if err := templates.ExecuteTemplate(&buf, name, data); err != nil {
		return "", fmt.Errorf("failed to render template[%s]: %w", name, err)
	}
	return buf.String(), nil
}
