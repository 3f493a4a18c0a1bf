// Package jobs holds the scheduled batch jobs. Each job walks every
// relevant organisation, isolates per-organisation failures and reports
// aggregated counts.
package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"madrasah/internal/common"
	"madrasah/internal/models"
	"madrasah/internal/store"
)

const DefaultConcurrency = 4

// forEachOrg runs fn for every org with bounded concurrency and returns
// the per-org errors keyed by org id
func forEachOrg(ctx context.Context, orgs []models.Org, concurrency int, fn func(context.Context, models.Org) error) map[string]error {
	if concurrency < 1 {
		concurrency = DefaultConcurrency
	}
	var (
		mutex  sync.Mutex
		wg     sync.WaitGroup
		errs   = map[string]error{}
		tokens = make(chan struct{}, concurrency)
	)
	for _, org := range orgs {
		if err := ctx.Err(); err != nil {
			mutex.Lock()
			errs[org.Id] = err
			mutex.Unlock()
			continue
		}
		tokens <- struct{}{}
		wg.Add(1)
		go func(org models.Org) {
			defer func() {
				<-tokens
				wg.Done()
			}()
			err := fn(ctx, org)
			mutex.Lock()
			errs[org.Id] = err
			mutex.Unlock()
		}(org)
	}
	wg.Wait()
	return errs
}

func listOrgs(ctx context.Context, orgStore store.OrgStore, include func(models.OrgStatus) bool) ([]models.Org, error) {
	orgs, err := orgStore.ListOrgs(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list orgs: %w", err)
	}
	output := []models.Org{}
	for _, org := range orgs {
		if include(org.Status) {
			output = append(output, org)
		}
	}
	sort.Slice(output, func(i, j int) bool { return output[i].Slug < output[j].Slug })
	return output, nil
}

// OrgOutcome is the per-organisation line of a job report. Updated
// counts changed statuses for the status job and active students for the
// usage job.
type OrgOutcome struct {
	OrgId   string `json:"orgId" yaml:"orgId"`
	Slug    string `json:"slug" yaml:"slug"`
	Updated int    `json:"updated" yaml:"updated"`
	Error   string `json:"error,omitempty" yaml:"error,omitempty"`
}

func record(job string, report *Report, org models.Org, updated int, err error, serviceLogs chan<- common.ServiceLog) {
	outcome := OrgOutcome{OrgId: org.Id, Slug: org.Slug, Updated: updated}
	if err != nil {
		outcome.Error = err.Error()
		report.Failed++
		jobOrgsCounter.WithLabelValues(job, "failed").Inc()
		log(serviceLogs, common.LogLevelError, "%s job failed for org[%s]: %s", job, org.Slug, err)
	} else {
		report.Succeeded++
		report.Updated += updated
		jobOrgsCounter.WithLabelValues(job, "succeeded").Inc()
	}
	report.Results = append(report.Results, outcome)
}

// Report is the aggregate result of a job run
type Report struct {
	Job       string        `json:"job" yaml:"job"`
	StartedAt time.Time     `json:"startedAt" yaml:"startedAt"`
	Duration  time.Duration `json:"duration" yaml:"duration"`
	Orgs      int           `json:"orgs" yaml:"orgs"`
	Succeeded int           `json:"succeeded" yaml:"succeeded"`
	Failed    int           `json:"failed" yaml:"failed"`
	Updated   int           `json:"updated" yaml:"updated"`
	Results   []OrgOutcome  `json:"results" yaml:"results"`
}

func finish(report *Report) {
	report.Duration = time.Since(report.StartedAt)
	outcome := "succeeded"
	if report.Failed > 0 {
		outcome = "partial"
	}
	jobRunsCounter.WithLabelValues(report.Job, outcome).Inc()
}

func log(serviceLogs chan<- common.ServiceLog, level, format string, args ...any) {
	if serviceLogs != nil {
		serviceLogs <- common.ServiceLogf(level, format, args...)
	}
}
