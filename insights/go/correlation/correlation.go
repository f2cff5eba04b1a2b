// Package correlation detects correlated question pairs. Per survey it
// collects paired numeric answers over three sequential trailing ranges into
// an Accumulator, computes the Pearson coefficient per pair over the
// cumulative samples after each range, filters by a sample size adaptive
// threshold, and writes deduplicated correlation notifications.
package correlation

import (
	"context"
	"math"

	"go.pollpulse.org/infra/go/metrics2"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sklog"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/stats"
	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/types"
)

// significantDigits is how many significant digits a reported coefficient
// keeps.
const significantDigits = 3

// pairKey identifies one unordered item pair in its stable order.
type pairKey struct {
	Left  types.SurveyItemID
	Right types.SurveyItemID
}

// samples are the paired values collected so far for one pair.
type samples struct {
	x []float64
	y []float64
}

// Accumulator collects paired numeric answers for every eligible pair of one
// survey. It is extended range by range within one engine invocation and
// never persisted.
type Accumulator struct {
	pairs map[pairKey]*samples
}

// NewAccumulator returns an Accumulator tracking every unordered pair of
// correlation eligible items.
func NewAccumulator(items []*types.SurveyItem) *Accumulator {
	eligible := []types.SurveyItemID{}
	for _, item := range items {
		if item.Type.CorrelationEligible() {
			eligible = append(eligible, item.ID)
		}
	}
	pairs := map[pairKey]*samples{}
	for i := 0; i < len(eligible); i++ {
		for j := i + 1; j < len(eligible); j++ {
			left, right := notification.OrderPair(eligible[i], eligible[j])
			pairs[pairKey{Left: left, Right: right}] = &samples{}
		}
	}
	return &Accumulator{pairs: pairs}
}

// Empty returns true if no pair is tracked.
func (a *Accumulator) Empty() bool {
	return len(a.pairs) == 0
}

// Collect appends one paired sample per tracked pair for every response whose
// value map covers both members. Responses missing either member contribute
// nothing to that pair.
func (a *Accumulator) Collect(values []map[types.SurveyItemID]float64) {
	for _, byItem := range values {
		for key, s := range a.pairs {
			left, leftOK := byItem[key.Left]
			right, rightOK := byItem[key.Right]
			if !leftOK || !rightOK {
				continue
			}
			s.x = append(s.x, left)
			s.y = append(s.y, right)
		}
	}
}

// SampleCount returns how many paired samples the given pair holds. The pair
// may be given in either order.
func (a *Accumulator) SampleCount(left, right types.SurveyItemID) int {
	l, r := notification.OrderPair(left, right)
	s, ok := a.pairs[pairKey{Left: l, Right: r}]
	if !ok {
		return 0
	}
	return len(s.x)
}

// Engine detects correlated question pairs.
type Engine struct {
	respStore   response.Store
	surveyStore survey.Store
	notifStore  notification.Store
	cfg         config.EngineConfig

	surveysScanned      metrics2.Counter
	correlationsCreated metrics2.Counter
	liveness            metrics2.Liveness
}

// New returns a new *Engine.
func New(respStore response.Store, surveyStore survey.Store, notifStore notification.Store, cfg config.EngineConfig) *Engine {
	return &Engine{
		respStore:           respStore,
		surveyStore:         surveyStore,
		notifStore:          notifStore,
		cfg:                 cfg,
		surveysScanned:      metrics2.GetCounter("insights_correlation_surveys_scanned"),
		correlationsCreated: metrics2.GetCounter("insights_correlation_notifications_created"),
		liveness:            metrics2.NewLiveness("insights_correlation"),
	}
}

// Run detects correlations for every eligible survey, i.e. every survey with
// at least one response in the full trailing window. A failure aborts only
// that survey's processing; the scan continues.
func (e *Engine) Run(ctx context.Context) error {
	defer metrics2.NewTimer("insights_correlation_run").Stop()

	steps := periods.Steps(now.Now(ctx), e.cfg.Periods)
	longest := steps[len(steps)-1].Cumulative

	var scanned, created int64
	err := e.surveyStore.Scan(ctx, func(ctx context.Context, sv *types.Survey) error {
		eligible, err := e.respStore.AnyInWindow(ctx, sv.ID, longest)
		if err != nil {
			sklog.Errorf("Failed to check survey %s for recent responses: %s", sv.ID, err)
			return nil
		}
		if !eligible {
			return nil
		}
		n, err := e.detect(ctx, sv, steps)
		created += n
		if err != nil {
			sklog.Errorf("Failed to detect correlations for survey %s: %s", sv.ID, err)
			return nil
		}
		scanned++
		e.surveysScanned.Inc(1)
		return nil
	})
	if err != nil {
		return skerr.Wrapf(err, "Failed to scan surveys")
	}
	sklog.Infof("Correlation detection covered %d surveys and created %d notifications.", scanned, created)
	e.liveness.Reset()
	return nil
}

// detect walks the sequential ranges for one survey, growing the accumulator
// and surfacing the pairs that clear the threshold after each range.
func (e *Engine) detect(ctx context.Context, sv *types.Survey, steps []periods.Step) (int64, error) {
	items, err := e.surveyStore.Items(ctx, sv.ID)
	if err != nil {
		return 0, skerr.Wrapf(err, "Failed to load items of survey %s", sv.ID)
	}
	acc := NewAccumulator(items)
	if acc.Empty() {
		return 0, nil
	}

	var created int64
	for _, step := range steps {
		values, err := e.respStore.PairedValues(ctx, sv.ID, step.Collect)
		if err != nil {
			return created, skerr.Wrapf(err, "Failed to load paired values for survey %s", sv.ID)
		}
		acc.Collect(values)

		for key, s := range acc.pairs {
			// Fewer than 2 samples leaves the coefficient undefined,
			// as does zero variance; such pairs are skipped, not
			// treated as zero.
			r, ok := stats.Pearson(s.x, s.y)
			if !ok {
				continue
			}
			if math.Abs(r) <= e.cfg.ThresholdFor(len(s.x)) {
				continue
			}
			added, err := e.notifStore.AddCorrelation(ctx, &notification.Correlation{
				SurveyID:  sv.ID,
				CompanyID: sv.CompanyID,
				TeamID:    sv.TeamID,
				Period:    step.Period,
				From:      step.Cumulative.From,
				To:        step.Cumulative.To,
				Left:      key.Left,
				Right:     key.Right,
				Value:     stats.RoundToSignificant(r, significantDigits),
			})
			if err != nil {
				// A failed write must not block the survey's
				// remaining pairs; the next run re-detects.
				sklog.Errorf("Failed to write correlation notification for survey %s pair %s %s: %s", sv.ID, key.Left, key.Right, err)
				continue
			}
			if added {
				created++
				e.correlationsCreated.Inc(1)
			}
		}
	}
	return created, nil
}
