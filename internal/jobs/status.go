package jobs

import (
	"context"
	"sync"
	"time"

	"madrasah/internal/billing"
	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const StatusJobName = "statuses"

// StatusJob recalculates the payment statuses of every organisation that
// has not been deactivated
type StatusJob struct {
	Store       store.OrgStore
	Billing     *billing.Service
	Concurrency int
	ServiceLogs chan<- common.ServiceLog
}

func (j *StatusJob) Run(ctx context.Context, now time.Time) (*Report, error) {
	report := &Report{Job: StatusJobName, StartedAt: time.Now(), Results: []OrgOutcome{}}
	orgs, err := listOrgs(ctx, j.Store, func(status models.OrgStatus) bool {
		return status != models.OrgStatusDeactivated
	})
	if err != nil {
		jobRunsCounter.WithLabelValues(StatusJobName, "error").Inc()
		return nil, err
	}
	report.Orgs = len(orgs)
	var mutex sync.Mutex
	updated := map[string]int{}
	errs := forEachOrg(ctx, orgs, j.Concurrency, func(ctx context.Context, org models.Org) error {
		result, err := j.Billing.RecalculateOrg(ctx, org.Id, now)
		mutex.Lock()
		updated[org.Id] = result.Updated()
		mutex.Unlock()
		return err
	})
	for _, org := range orgs {
		record(StatusJobName, report, org, updated[org.Id], errs[org.Id], j.ServiceLogs)
	}
	finish(report)
	log(j.ServiceLogs, common.LogLevelInfo, "%s job processed %d orgs: %d succeeded, %d failed, %d updated", StatusJobName, report.Orgs, report.Succeeded, report.Failed, report.Updated)
	return report, nil
}
