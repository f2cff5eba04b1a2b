package memnotificationstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/periods"
)

var (
	from = time.Date(2024, time.March, 25, 0, 0, 0, 0, time.UTC)
	to   = time.Date(2024, time.March, 28, 0, 0, 0, 0, time.UTC)
)

func anomaly() *notification.Anomaly {
	return &notification.Anomaly{
		SurveyID:     "survey-1",
		SurveyItemID: "item-1",
		CompanyID:    "c",
		TeamID:       "t",
		Period:       periods.Days,
		From:         from,
		To:           to,
		Kind:         notification.MostSelectedOption,
		Selected:     "opt-a",
	}
}

func correlationNotification() *notification.Correlation {
	return &notification.Correlation{
		SurveyID:  "survey-1",
		CompanyID: "c",
		TeamID:    "t",
		Period:    periods.Days,
		From:      from,
		To:        to,
		Left:      "item-a",
		Right:     "item-b",
		Value:     0.958,
	}
}

func TestAddAnomaly_SameIdentityTwice_SecondIsDropped(t *testing.T) {
	ctx := context.Background()
	s := New()

	added, err := s.AddAnomaly(ctx, anomaly())
	require.NoError(t, err)
	require.True(t, added)

	// Same identity, different payload.
	second := anomaly()
	second.Selected = "opt-b"
	added, err = s.AddAnomaly(ctx, second)
	require.NoError(t, err)
	require.False(t, added)

	got, err := s.ListAnomalies(ctx, "survey-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "opt-a", got[0].Selected)
	require.NotEmpty(t, got[0].ID)
}

func TestAddAnomaly_DifferentWindow_BothKept(t *testing.T) {
	ctx := context.Background()
	s := New()

	added, err := s.AddAnomaly(ctx, anomaly())
	require.NoError(t, err)
	require.True(t, added)

	second := anomaly()
	second.From = from.Add(-24 * time.Hour)
	added, err = s.AddAnomaly(ctx, second)
	require.NoError(t, err)
	require.True(t, added)

	got, err := s.ListAnomalies(ctx, "survey-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestAddCorrelation_SamePairSamePeriod_SecondIsDropped(t *testing.T) {
	ctx := now.TimeTravelingContext(to)
	s := New()

	added, err := s.AddCorrelation(ctx, correlationNotification())
	require.NoError(t, err)
	require.True(t, added)

	second := correlationNotification()
	second.Value = 0.7
	added, err = s.AddCorrelation(ctx, second)
	require.NoError(t, err)
	require.False(t, added)
}

func TestAddCorrelation_SameValueDifferentPeriod_SecondIsDropped(t *testing.T) {
	ctx := now.TimeTravelingContext(to)
	s := New()

	added, err := s.AddCorrelation(ctx, correlationNotification())
	require.NoError(t, err)
	require.True(t, added)

	second := correlationNotification()
	second.Period = periods.Week
	second.From = to.Add(-7 * 24 * time.Hour)
	added, err = s.AddCorrelation(ctx, second)
	require.NoError(t, err)
	require.False(t, added)
}

func TestAddCorrelation_ExistingOlderThanWindow_NewOneKept(t *testing.T) {
	ctx := now.TimeTravelingContext(from.Add(-30 * 24 * time.Hour))
	s := New()

	// An old notification from a previous month.
	added, err := s.AddCorrelation(ctx, correlationNotification())
	require.NoError(t, err)
	require.True(t, added)

	ctx.SetTime(to)
	added, err = s.AddCorrelation(ctx, correlationNotification())
	require.NoError(t, err)
	require.True(t, added)

	got, err := s.ListCorrelations(ctx, "survey-1")
	require.NoError(t, err)
	require.Len(t, got, 2)
}

func TestAddCorrelation_ReversedPair_StoredInStableOrder(t *testing.T) {
	ctx := now.TimeTravelingContext(to)
	s := New()

	reversed := correlationNotification()
	reversed.Left, reversed.Right = reversed.Right, reversed.Left
	added, err := s.AddCorrelation(ctx, reversed)
	require.NoError(t, err)
	require.True(t, added)

	// The same pair in the original order is a duplicate.
	added, err = s.AddCorrelation(ctx, correlationNotification())
	require.NoError(t, err)
	require.False(t, added)

	got, err := s.ListCorrelations(ctx, "survey-1")
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, "item-a", string(got[0].Left))
	require.Equal(t, "item-b", string(got[0].Right))
}
