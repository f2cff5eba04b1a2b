// Package response defines the Store interface for raw survey response
// documents, plus the shared aggregate helpers both implementations use.
package response

import (
	"context"
	"time"

	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// Filter selects the raw responses that back one statistic record.
type Filter struct {
	SurveyID     types.SurveyID
	SurveyItemID types.SurveyItemID

	// Bucket is the start of hour timestamp of the record, UTC.
	Bucket time.Time

	Dimensions types.Dimensions
}

// WindowStats are the survey level aggregates computed from raw responses
// over one window.
type WindowStats struct {
	// Started counts the non-empty responses in the window.
	Started int64

	// Completed counts the completed responses in the window.
	Completed int64

	Countries tally.Tally
	Cities    tally.Tally
}

// Store persists raw response documents.
type Store interface {
	// Add writes the response, replacing any existing response with the
	// same ID.
	Add(ctx context.Context, r *types.Response) error

	// Delete removes the response with the given ID.
	Delete(ctx context.Context, id types.ResponseID) error

	// ForBucketAndItem returns every countable response matching the
	// filter, i.e. every non-preview, non-hidden response in the bucket
	// whose dimensions fall in the filter scope and that touches the
	// question instance.
	ForBucketAndItem(ctx context.Context, f Filter) ([]*types.Response, error)

	// WindowStats aggregates the survey level counters over all countable
	// responses created in [w.From, w.To).
	WindowStats(ctx context.Context, surveyID types.SurveyID, w periods.Window) (WindowStats, error)

	// PairedValues returns, for every countable response created in
	// [w.From, w.To), the map of question instance to numeric answer
	// value, restricted to answers that carry one. Responses without any
	// numeric answer are omitted.
	PairedValues(ctx context.Context, surveyID types.SurveyID, w periods.Window) ([]map[types.SurveyItemID]float64, error)

	// AnyInWindow returns true if the survey has at least one countable
	// response created in [w.From, w.To).
	AnyInWindow(ctx context.Context, surveyID types.SurveyID, w periods.Window) (bool, error)
}

// Countable returns true if the response contributes to statistics at all.
// Preview and hidden responses never count.
func Countable(r *types.Response) bool {
	return !r.Preview && !r.Hidden
}

// MatchesFilter returns true if the countable response backs the statistic
// record the filter describes.
func MatchesFilter(r *types.Response, f Filter) bool {
	if !Countable(r) {
		return false
	}
	if r.SurveyID != f.SurveyID {
		return false
	}
	if !statistics.BucketFor(r.CreatedAt).Equal(f.Bucket.UTC()) {
		return false
	}
	if !f.Dimensions.Matches(r.Dimensions) {
		return false
	}
	return r.HasItem(f.SurveyItemID)
}

// StatsFrom computes the WindowStats aggregates over the given countable
// responses.
func StatsFrom(resps []*types.Response) WindowStats {
	ret := WindowStats{
		Countries: tally.New(),
		Cities:    tally.New(),
	}
	for _, r := range resps {
		if !r.Empty {
			ret.Started++
		}
		if r.Completed {
			ret.Completed++
		}
		if r.Location.Country != "" {
			ret.Countries.Add(r.Location.Country, 1)
		}
		if r.Location.City != "" {
			ret.Cities.Add(r.Location.City, 1)
		}
	}
	return ret
}

// ValuesFrom extracts the numeric answers of one response. Returns nil if the
// response holds none.
func ValuesFrom(r *types.Response) map[types.SurveyItemID]float64 {
	var ret map[types.SurveyItemID]float64
	for itemID, a := range r.Answers {
		if a.Value == nil {
			continue
		}
		if ret == nil {
			ret = map[types.SurveyItemID]float64{}
		}
		ret[itemID] = *a.Value
	}
	return ret
}
