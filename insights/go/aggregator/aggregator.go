// Package aggregator rebuilds statistic records from raw responses.
//
// The ingest path writes speculative, unsynced records as responses arrive;
// the aggregator is the authoritative recount. Each run takes a bounded batch
// of unsynced records and, per record, re-queries the raw responses that back
// it, rebuilds the tally and counters from scratch, and marks the record
// synced. A record no raw response backs anymore is deleted. Rebuilding from
// scratch is what makes the run idempotent: a second run over unchanged
// responses converges to the same counts.
package aggregator

import (
	"context"
	"sync"

	"github.com/hashicorp/go-multierror"
	"go.pollpulse.org/infra/go/metrics2"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sklog"
	"go.pollpulse.org/infra/go/workerpool"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// Aggregator rebuilds unsynced statistic records in bounded batches.
type Aggregator struct {
	statStore   statistics.Store
	respStore   response.Store
	surveyStore survey.Store
	batchSize   int
	concurrency int

	rebuilt  metrics2.Counter
	deleted  metrics2.Counter
	failed   metrics2.Counter
	liveness metrics2.Liveness
}

// New returns a new *Aggregator.
func New(statStore statistics.Store, respStore response.Store, surveyStore survey.Store, cfg config.EngineConfig) *Aggregator {
	return &Aggregator{
		statStore:   statStore,
		respStore:   respStore,
		surveyStore: surveyStore,
		batchSize:   cfg.BatchSize,
		concurrency: cfg.WorkerConcurrency,
		rebuilt:     metrics2.GetCounter("insights_aggregator_records_rebuilt"),
		deleted:     metrics2.GetCounter("insights_aggregator_records_deleted"),
		failed:      metrics2.GetCounter("insights_aggregator_records_failed"),
		liveness:    metrics2.NewLiveness("insights_aggregator"),
	}
}

// Run rebuilds one batch of unsynced records. A failure on one record is
// logged and counted but does not stop the rest of the batch; the combined
// error is returned after the batch completes.
func (a *Aggregator) Run(ctx context.Context) error {
	defer metrics2.NewTimer("insights_aggregator_run").Stop()

	records, err := a.statStore.ListUnsynced(ctx, a.batchSize)
	if err != nil {
		return skerr.Wrapf(err, "Failed to list unsynced statistic records")
	}

	var mutex sync.Mutex
	var failures *multierror.Error
	pool := workerpool.New(a.concurrency)
	for _, record := range records {
		record := record
		pool.Go(func() {
			if err := a.rebuild(ctx, record); err != nil {
				sklog.Errorf("Failed to rebuild statistic record for item %s bucket %s: %s", record.SurveyItemID, record.TimeBucket, err)
				a.failed.Inc(1)
				mutex.Lock()
				failures = multierror.Append(failures, err)
				mutex.Unlock()
			}
		})
	}
	pool.Wait()

	sklog.Infof("Aggregation processed %d unsynced records.", len(records))
	if err := failures.ErrorOrNil(); err != nil {
		return err
	}
	a.liveness.Reset()
	return nil
}

// rebuild recounts one record from the raw responses that back it.
func (a *Aggregator) rebuild(ctx context.Context, record *statistics.Record) error {
	item, err := a.surveyStore.Item(ctx, record.SurveyItemID)
	if err == survey.ErrNotFound {
		// The question instance is gone, so the record is an orphan.
		if err := a.statStore.Delete(ctx, record); err != nil {
			return skerr.Wrap(err)
		}
		a.deleted.Inc(1)
		return nil
	}
	if err != nil {
		return skerr.Wrapf(err, "Failed to load item %s", record.SurveyItemID)
	}

	resps, err := a.respStore.ForBucketAndItem(ctx, response.Filter{
		SurveyID:     record.SurveyID,
		SurveyItemID: record.SurveyItemID,
		Bucket:       record.TimeBucket,
		Dimensions:   record.Dimensions,
	})
	if err != nil {
		return skerr.Wrapf(err, "Failed to load responses for item %s", record.SurveyItemID)
	}
	if len(resps) == 0 {
		if err := a.statStore.Delete(ctx, record); err != nil {
			return skerr.Wrap(err)
		}
		a.deleted.Inc(1)
		return nil
	}

	t := tally.New()
	var answered, skipped, skippedByFlow int64
	for _, resp := range resps {
		if answer, ok := resp.Answers[record.SurveyItemID]; ok {
			answered++
			for _, key := range tally.Keys(item.Type, answer) {
				t.Add(key, 1)
			}
		}
		if containsItem(resp.Skipped, record.SurveyItemID) {
			skipped++
		}
		if containsItem(resp.SkippedByFlow, record.SurveyItemID) {
			skippedByFlow++
		}
	}

	record.Tally = t
	record.AnsweredCount = answered
	record.SkippedCount = skipped
	record.SkippedByFlowCount = skippedByFlow
	record.Synced = true
	if err := a.statStore.Update(ctx, record); err != nil {
		return skerr.Wrapf(err, "Failed to write rebuilt record for item %s", record.SurveyItemID)
	}
	a.rebuilt.Inc(1)
	return nil
}

func containsItem(ids []types.SurveyItemID, id types.SurveyItemID) bool {
	for _, other := range ids {
		if other == id {
			return true
		}
	}
	return false
}
