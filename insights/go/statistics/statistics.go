// Package statistics defines the per hour bucket answer tally records and the
// Store interface they are persisted through. Records are written
// speculatively (unsynced) when responses arrive and rebuilt from raw data by
// the aggregator, which is the only component allowed to mark them synced.
package statistics

import (
	"context"
	"time"

	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// BucketGranularity is the fixed aggregation granularity.
const BucketGranularity = time.Hour

// BucketFor returns the start of the hour bucket the given time falls into,
// in UTC.
func BucketFor(t time.Time) time.Time {
	return t.UTC().Truncate(BucketGranularity)
}

// Record is a single per bucket, per question instance tally record.
// Identity is (TimeBucket, SurveyItemID, Dimensions.Key()).
type Record struct {
	SurveyID     types.SurveyID
	SurveyItemID types.SurveyItemID

	// TimeBucket is the start of hour timestamp of the bucket, UTC.
	TimeBucket time.Time

	// Dimensions optionally narrow the record to a subset of responses.
	// The zero value is the base scope covering every response in the
	// bucket.
	Dimensions types.Dimensions

	// Tally maps normalized answer keys to occurrence counts.
	Tally tally.Tally

	AnsweredCount      int64
	SkippedCount       int64
	SkippedByFlowCount int64

	// Synced is false while the counts are speculative, i.e. possibly
	// stale relative to the raw response data. Only records with
	// Synced=true may be trusted by the detection engines.
	Synced bool
}

// Store persists Records.
type Store interface {
	// Touch upserts the record for the given identity with Synced=false,
	// creating it if absent. It is the ingest side hook: every stored
	// response touches its bucket so the aggregator knows to rebuild it.
	Touch(ctx context.Context, surveyID types.SurveyID, itemID types.SurveyItemID, bucket time.Time, dims types.Dimensions) error

	// ListUnsynced returns up to limit records with Synced=false, oldest
	// bucket first.
	ListUnsynced(ctx context.Context, limit int) ([]*Record, error)

	// Update writes the full record, replacing any existing record with
	// the same identity.
	Update(ctx context.Context, r *Record) error

	// Delete removes the record with the same identity as r.
	Delete(ctx context.Context, r *Record) error

	// Range returns the synced, base scope records for the given question
	// instance whose bucket falls in [from, to), oldest first.
	Range(ctx context.Context, itemID types.SurveyItemID, from, to time.Time) ([]*Record, error)
}
