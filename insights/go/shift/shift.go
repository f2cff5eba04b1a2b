// Package shift is the period comparator. For every survey with recent
// responses it compares each trailing window against the equal length window
// before it, per question instance and at survey level, and writes an anomaly
// notification for every significant change it finds.
package shift

import (
	"context"
	"sync/atomic"

	"golang.org/x/sync/errgroup"

	"go.pollpulse.org/infra/go/metrics2"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sklog"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/stats"
	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// significantDigits is how many significant digits a reported coefficient
// keeps.
const significantDigits = 3

// Comparator detects shifts between consecutive windows.
type Comparator struct {
	statStore   statistics.Store
	respStore   response.Store
	surveyStore survey.Store
	notifStore  notification.Store
	cfg         config.EngineConfig

	surveysCompared  metrics2.Counter
	anomaliesCreated metrics2.Counter
	liveness         metrics2.Liveness
}

// New returns a new *Comparator.
func New(statStore statistics.Store, respStore response.Store, surveyStore survey.Store, notifStore notification.Store, cfg config.EngineConfig) *Comparator {
	return &Comparator{
		statStore:        statStore,
		respStore:        respStore,
		surveyStore:      surveyStore,
		notifStore:       notifStore,
		cfg:              cfg,
		surveysCompared:  metrics2.GetCounter("insights_comparator_surveys_compared"),
		anomaliesCreated: metrics2.GetCounter("insights_comparator_anomalies_created"),
		liveness:         metrics2.NewLiveness("insights_comparator"),
	}
}

// Run compares every eligible survey, i.e. every survey with at least one
// response in the longest trailing window. A failure aborts only that
// survey's processing; the scan continues.
func (c *Comparator) Run(ctx context.Context) error {
	defer metrics2.NewTimer("insights_comparator_run").Stop()

	comparisons := periods.Comparisons(now.Now(ctx), c.cfg.Periods)
	longest := comparisons[len(comparisons)-1].Current

	var compared, created int64
	err := c.surveyStore.Scan(ctx, func(ctx context.Context, sv *types.Survey) error {
		eligible, err := c.respStore.AnyInWindow(ctx, sv.ID, longest)
		if err != nil {
			sklog.Errorf("Failed to check survey %s for recent responses: %s", sv.ID, err)
			return nil
		}
		if !eligible {
			return nil
		}
		n, err := c.compareSurvey(ctx, sv, comparisons)
		created += n
		if err != nil {
			sklog.Errorf("Failed to compare survey %s: %s", sv.ID, err)
			return nil
		}
		compared++
		c.surveysCompared.Inc(1)
		return nil
	})
	if err != nil {
		return skerr.Wrapf(err, "Failed to scan surveys")
	}
	sklog.Infof("Period comparison covered %d surveys and created %d notifications.", compared, created)
	c.liveness.Reset()
	return nil
}

// compareSurvey runs every comparison for one survey and returns how many
// notifications it created.
func (c *Comparator) compareSurvey(ctx context.Context, sv *types.Survey, comparisons []periods.Comparison) (int64, error) {
	items, err := c.surveyStore.Items(ctx, sv.ID)
	if err != nil {
		return 0, skerr.Wrapf(err, "Failed to load items of survey %s", sv.ID)
	}

	var created int64
	for _, cmp := range comparisons {
		n, err := c.compareSurveyLevel(ctx, sv, cmp)
		created += n
		if err != nil {
			return created, skerr.Wrap(err)
		}

		// Per item work is independent, so fan it out.
		g, gctx := errgroup.WithContext(ctx)
		for _, item := range items {
			if !item.Type.ComparatorEligible() {
				continue
			}
			item := item
			cmp := cmp
			g.Go(func() error {
				n, err := c.compareItem(gctx, sv, item, cmp)
				atomic.AddInt64(&created, n)
				return err
			})
		}
		if err := g.Wait(); err != nil {
			return created, skerr.Wrap(err)
		}
	}
	return created, nil
}

// compareSurveyLevel detects shifts in the survey wide counters and location
// tallies, computed from raw responses rather than statistic records.
func (c *Comparator) compareSurveyLevel(ctx context.Context, sv *types.Survey, cmp periods.Comparison) (int64, error) {
	curr, err := c.respStore.WindowStats(ctx, sv.ID, cmp.Current)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	prev, err := c.respStore.WindowStats(ctx, sv.ID, cmp.Previous)
	if err != nil {
		return 0, skerr.Wrap(err)
	}

	var created int64
	emit := func(a *notification.Anomaly) {
		added, err := c.notifStore.AddAnomaly(ctx, a)
		if err != nil {
			// A failed write must not block sibling notifications;
			// re-detection on the next run deduplicates.
			sklog.Errorf("Failed to write %s notification for survey %s: %s", a.Kind, a.SurveyID, err)
			return
		}
		if added {
			created++
			c.anomaliesCreated.Inc(1)
		}
	}

	counters := []struct {
		kind       notification.Kind
		curr, prev int64
	}{
		{notification.Started, curr.Started, prev.Started},
		{notification.Completed, curr.Completed, prev.Completed},
	}
	for _, counter := range counters {
		dev, ok := stats.PercentDeviation(float64(counter.curr), float64(counter.prev))
		if !ok || abs(dev) <= c.cfg.CountDeviationPercent {
			continue
		}
		emit(c.anomaly(sv, "", cmp, counter.kind, "", stats.RoundToSignificant(dev, significantDigits)))
	}

	locations := []struct {
		kind       notification.Kind
		curr, prev tally.Tally
	}{
		{notification.LocationCountry, curr.Countries, prev.Countries},
		{notification.LocationCity, curr.Cities, prev.Cities},
	}
	for _, loc := range locations {
		selected, changed := mostSelectedChange(loc.curr, loc.prev)
		if !changed {
			continue
		}
		emit(c.anomaly(sv, "", cmp, loc.kind, selected, 0))
	}
	return created, nil
}

// compareItem detects shifts in one question instance's answer distribution,
// computed by summing the synced statistic records of each window.
func (c *Comparator) compareItem(ctx context.Context, sv *types.Survey, item *types.SurveyItem, cmp periods.Comparison) (int64, error) {
	curr, err := c.windowTally(ctx, item.ID, cmp.Current)
	if err != nil {
		return 0, skerr.Wrap(err)
	}
	prev, err := c.windowTally(ctx, item.ID, cmp.Previous)
	if err != nil {
		return 0, skerr.Wrap(err)
	}

	var created int64
	emit := func(a *notification.Anomaly) {
		added, err := c.notifStore.AddAnomaly(ctx, a)
		if err != nil {
			sklog.Errorf("Failed to write %s notification for survey %s item %s: %s", a.Kind, a.SurveyID, a.SurveyItemID, err)
			return
		}
		if added {
			created++
			c.anomaliesCreated.Inc(1)
		}
	}

	if selected, changed := mostSelectedChange(curr, prev); changed {
		kind := notification.MostSelectedOption
		switch {
		case item.Type == types.CountryList:
			kind = notification.MostSelectedCountry
		case item.Type.IsScalar():
			kind = notification.MostSelectedValue
		}
		emit(c.anomaly(sv, item.ID, cmp, kind, selected, 0))
	}

	if item.Type.IsScalar() {
		currMean, currOK := curr.WeightedMean()
		prevMean, prevOK := prev.WeightedMean()
		if currOK && prevOK {
			if dev, ok := stats.PercentDeviation(currMean, prevMean); ok && abs(dev) > c.cfg.MeanDeviationPercent {
				emit(c.anomaly(sv, item.ID, cmp, notification.MeanValue, "", stats.RoundToSignificant(dev, significantDigits)))
			}
		}
	}
	return created, nil
}

// windowTally sums the synced base scope statistic records of one window.
func (c *Comparator) windowTally(ctx context.Context, itemID types.SurveyItemID, w periods.Window) (tally.Tally, error) {
	records, err := c.statStore.Range(ctx, itemID, w.From, w.To)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to load statistic records for item %s", itemID)
	}
	tallies := make([]tally.Tally, 0, len(records))
	for _, r := range records {
		tallies = append(tallies, r.Tally)
	}
	return tally.Sum(tallies), nil
}

func (c *Comparator) anomaly(sv *types.Survey, itemID types.SurveyItemID, cmp periods.Comparison, kind notification.Kind, selected string, coefficient float64) *notification.Anomaly {
	return &notification.Anomaly{
		SurveyID:     sv.ID,
		SurveyItemID: itemID,
		CompanyID:    sv.CompanyID,
		TeamID:       sv.TeamID,
		Period:       cmp.Period,
		From:         cmp.Current.From,
		To:           cmp.Current.To,
		Kind:         kind,
		Selected:     selected,
		Coefficient:  coefficient,
	}
}

// mostSelectedChange returns the current window's winning key if both windows
// have one and they differ. A tie or an empty window suppresses the change.
func mostSelectedChange(curr, prev tally.Tally) (string, bool) {
	currTop, currOK := curr.MostSelected()
	prevTop, prevOK := prev.MostSelected()
	if !currOK || !prevOK || currTop == prevTop {
		return "", false
	}
	return currTop, true
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
