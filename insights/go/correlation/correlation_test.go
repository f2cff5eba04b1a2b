package correlation

import (
	"context"
	"fmt"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/notification/memnotificationstore"
	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/response/memresponsestore"
	"go.pollpulse.org/infra/insights/go/survey/memsurveystore"
	"go.pollpulse.org/infra/insights/go/types"
)

const (
	surveyID  = types.SurveyID("survey-1")
	leftItem  = types.SurveyItemID("item-a")
	rightItem = types.SurveyItemID("item-b")
)

var ref = time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC)

type fixtures struct {
	engine      *Engine
	respStore   *memresponsestore.MemResponseStore
	surveyStore *memsurveystore.MemSurveyStore
	notifStore  *memnotificationstore.MemNotificationStore
}

func setup(t *testing.T) (context.Context, fixtures) {
	ctx := now.TimeTravelingContext(ref)
	f := fixtures{
		respStore:   memresponsestore.New(),
		surveyStore: memsurveystore.New(),
		notifStore:  memnotificationstore.New(),
	}
	require.NoError(t, f.surveyStore.PutSurvey(ctx, &types.Survey{ID: surveyID, CompanyID: "c", TeamID: "t"}))
	require.NoError(t, f.surveyStore.PutItem(ctx, &types.SurveyItem{ID: leftItem, SurveyID: surveyID, Type: types.LinearScale}))
	require.NoError(t, f.surveyStore.PutItem(ctx, &types.SurveyItem{ID: rightItem, SurveyID: surveyID, Type: types.Slider}))
	f.engine = New(f.respStore, f.surveyStore, f.notifStore, config.NewInstanceConfig().EngineConfig)
	return ctx, f
}

func addPairedResponse(t *testing.T, ctx context.Context, f fixtures, id string, createdAt time.Time, left, right float64) {
	require.NoError(t, f.respStore.Add(ctx, &types.Response{
		ID:        types.ResponseID(id),
		SurveyID:  surveyID,
		CreatedAt: createdAt,
		Answers: map[types.SurveyItemID]types.Answer{
			leftItem:  {Value: &left},
			rightItem: {Value: &right},
		},
	}))
}

// addExactCorrelation adds n paired responses at createdAt whose Pearson
// coefficient is exactly r. It builds y = r*x + sqrt(1-r^2)*e from two
// orthogonal zero mean patterns, whose cross terms cancel so that the
// coefficient comes out to exactly r; the n%4 leftover samples are zero
// pairs, which shift nothing.
func addExactCorrelation(t *testing.T, ctx context.Context, f fixtures, n int, r float64, createdAt time.Time) {
	xPattern := []float64{1, 1, -1, -1}
	ePattern := []float64{1, -1, 1, -1}
	b := math.Sqrt(1 - r*r)
	for i := 0; i < n; i++ {
		var x, e float64
		if i < n-n%4 {
			x = xPattern[i%4]
			e = ePattern[i%4]
		}
		addPairedResponse(t, ctx, f, fmt.Sprintf("r-%d", i), createdAt, x, r*x+b*e)
	}
}

func TestRun_RepeatedAnswerBlocks_SurfacesDaysCorrelation(t *testing.T) {
	ctx, f := setup(t)
	// 20 blocks of {100,99,101} vs {43,21,50}: 60 samples, r = 0.958.
	i := 0
	for block := 0; block < 20; block++ {
		for _, pair := range [][2]float64{{100, 43}, {99, 21}, {101, 50}} {
			addPairedResponse(t, ctx, f, fmt.Sprintf("b-%d", i), ref.Add(-time.Hour), pair[0], pair[1])
			i++
		}
	}

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, periods.Days, got[0].Period)
	require.Equal(t, leftItem, got[0].Left)
	require.Equal(t, rightItem, got[0].Right)
	require.InDelta(t, 0.958, got[0].Value, 1e-9)
	require.True(t, got[0].From.Equal(ref.Add(-3*24*time.Hour)))
	require.True(t, got[0].To.Equal(ref))
}

func TestRun_SmallSampleBelowThreshold_NoNotification(t *testing.T) {
	ctx, f := setup(t)
	addExactCorrelation(t, ctx, f, 99, 0.69, ref.Add(-time.Hour))

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRun_SmallSampleAboveThreshold_OneNotification(t *testing.T) {
	ctx, f := setup(t)
	addExactCorrelation(t, ctx, f, 99, 0.71, ref.Add(-time.Hour))

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDelta(t, 0.71, got[0].Value, 1e-9)
}

func TestRun_MediumSampleBelowThreshold_NoNotification(t *testing.T) {
	ctx, f := setup(t)
	addExactCorrelation(t, ctx, f, 300, 0.49, ref.Add(-time.Hour))

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRun_MediumSampleAboveThreshold_OneNotification(t *testing.T) {
	ctx, f := setup(t)
	addExactCorrelation(t, ctx, f, 300, 0.51, ref.Add(-time.Hour))

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.InDelta(t, 0.51, got[0].Value, 1e-9)
}

func TestRun_SamplesOnlyInWeekRange_SurfacesCumulativeWindow(t *testing.T) {
	ctx, f := setup(t)
	// All samples sit in [ref-7d, ref-3d), so the days range collects
	// nothing and the pair first clears the bar at the week period.
	addExactCorrelation(t, ctx, f, 60, 0.9, ref.Add(-5*24*time.Hour))

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, periods.Week, got[0].Period)
	require.True(t, got[0].From.Equal(ref.Add(-7*24*time.Hour)))
	require.True(t, got[0].To.Equal(ref))
}

func TestRun_FewerThanTwoSamples_SkippedNotZero(t *testing.T) {
	ctx, f := setup(t)
	addPairedResponse(t, ctx, f, "only", ref.Add(-time.Hour), 3, 4)

	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Empty(t, got)
}

func TestRun_RunTwiceOverUnchangedInput_NoDuplicates(t *testing.T) {
	ctx, f := setup(t)
	addExactCorrelation(t, ctx, f, 99, 0.71, ref.Add(-time.Hour))

	require.NoError(t, f.engine.Run(ctx))
	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
}

// flakyNotificationStore rejects the first few correlation writes and
// delegates the rest.
type flakyNotificationStore struct {
	notification.Store
	failuresLeft int
}

func (s *flakyNotificationStore) AddCorrelation(ctx context.Context, c *notification.Correlation) (bool, error) {
	if s.failuresLeft > 0 {
		s.failuresLeft--
		return false, skerr.Fmt("write rejected")
	}
	return s.Store.AddCorrelation(ctx, c)
}

func TestRun_CorrelationWriteFails_LaterPeriodsStillWritten(t *testing.T) {
	ctx, f := setup(t)
	f.engine = New(f.respStore, f.surveyStore,
		&flakyNotificationStore{Store: f.notifStore, failuresLeft: 1},
		config.NewInstanceConfig().EngineConfig)
	addExactCorrelation(t, ctx, f, 20, 0.9, ref.Add(-time.Hour))

	// The days write is rejected, so nothing persisted dedups the week
	// attempt over the same cumulative samples.
	require.NoError(t, f.engine.Run(ctx))

	got, err := f.notifStore.ListCorrelations(ctx, surveyID)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, periods.Week, got[0].Period)
	require.InDelta(t, 0.9, got[0].Value, 1e-9)
}

func TestNewAccumulator_MixedItemTypes_TracksOnlyScalarPairs(t *testing.T) {
	acc := NewAccumulator([]*types.SurveyItem{
		{ID: "s1", Type: types.LinearScale},
		{ID: "s2", Type: types.Slider},
		{ID: "s3", Type: types.NetPromoter},
		{ID: "c1", Type: types.MultipleChoice},
		{ID: "t1", Type: types.Text},
	})
	require.Len(t, acc.pairs, 3)
	require.False(t, acc.Empty())
}

func TestAccumulator_Collect_SkipsResponsesMissingAMember(t *testing.T) {
	acc := NewAccumulator([]*types.SurveyItem{
		{ID: leftItem, Type: types.LinearScale},
		{ID: rightItem, Type: types.Slider},
	})
	acc.Collect([]map[types.SurveyItemID]float64{
		{leftItem: 1, rightItem: 2},
		{leftItem: 3},
		{rightItem: 4},
	})
	acc.Collect([]map[types.SurveyItemID]float64{
		{leftItem: 5, rightItem: 6},
	})
	require.Equal(t, 2, acc.SampleCount(leftItem, rightItem))
	require.Equal(t, 2, acc.SampleCount(rightItem, leftItem))
}
