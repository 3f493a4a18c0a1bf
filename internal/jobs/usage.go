package jobs

import (
	"context"
	"fmt"
	"sync"
	"time"

	"madrasah/internal/audit"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const UsageJobName = "usage"

type UsageStore interface {
	store.OrgStore
	store.StudentStore
}

// UsageJob counts the active students of every operational organisation
// and records the figure in the audit trail
type UsageJob struct {
	Store       UsageStore
	Audit       audit.Logger
	Concurrency int
	ServiceLogs chan<- common.ServiceLog
}

func (j *UsageJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := &Report{Job: UsageJobName, StartedAt: time.Now(), Results: []OrgOutcome{}}
	orgs, err := listOrgs(ctx, j.Store, models.OrgStatus.IsOperational)
	if err != nil {
		jobRunsCounter.WithLabelValues(UsageJobName, "error").Inc()
		return nil, err
	}
	report.Orgs = len(orgs)
	var mutex sync.Mutex
	counts := map[string]int{}
	errs := forEachOrg(ctx, orgs, j.Concurrency, func(ctx context.Context, org models.Org) error {
		count, err := j.Store.CountActiveStudents(ctx, org.Id)
		if err != nil {
			return fmt.Errorf("failed to count students: %w", err)
		}
		mutex.Lock()
		counts[org.Id] = count
		mutex.Unlock()
		if j.Audit == nil {
			return nil
		}
		orgId := org.Id
		return j.Audit.Log(ctx, audit.NewEntry(&orgId, nil, audit.ActionUsageReported, audit.TargetOrg, orgId, map[string]any{
			"activeStudents": count,
			"period":         now.Format("2006-01-02"),
		}))
	})
	for _, org := range orgs {
		record(UsageJobName, report, org, counts[org.Id], errs[org.Id], j.ServiceLogs)
	}
	finish(report)
	log(j.ServiceLogs, common.LogLevelInfo, "%s job reported %d orgs: %d succeeded, %d failed, %d active students", UsageJobName, report.Orgs, report.Succeeded, report.Failed, report.Updated)
	return report, nil
}
