package memstatstore

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

const (
	surveyID = types.SurveyID("survey-1")
	itemID   = types.SurveyItemID("item-1")
)

var bucket = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

func TestTouch_NewIdentity_CreatesUnsyncedRecord(t *testing.T) {
	ctx := context.Background()
	s := New()

	require.NoError(t, s.Touch(ctx, surveyID, itemID, bucket, types.Dimensions{}))

	got := s.Get(itemID, bucket, types.Dimensions{})
	require.NotNil(t, got)
	require.False(t, got.Synced)
	require.Equal(t, surveyID, got.SurveyID)
	require.Empty(t, got.Tally)
}

func TestTouch_ExistingSyncedRecord_MarksUnsyncedAndKeepsCounts(t *testing.T) {
	ctx := context.Background()
	s := New()
	record := &statistics.Record{
		SurveyID:      surveyID,
		SurveyItemID:  itemID,
		TimeBucket:    bucket,
		Tally:         tally.Tally{"opt-a": 3},
		AnsweredCount: 3,
		Synced:        true,
	}
	require.NoError(t, s.Update(ctx, record))

	require.NoError(t, s.Touch(ctx, surveyID, itemID, bucket, types.Dimensions{}))

	got := s.Get(itemID, bucket, types.Dimensions{})
	require.False(t, got.Synced)
	require.Equal(t, int64(3), got.AnsweredCount)
	require.Equal(t, tally.Tally{"opt-a": 3}, got.Tally)
}

func TestListUnsynced_MixedRecords_OldestUnsyncedFirst(t *testing.T) {
	ctx := context.Background()
	s := New()
	require.NoError(t, s.Touch(ctx, surveyID, itemID, bucket.Add(2*time.Hour), types.Dimensions{}))
	require.NoError(t, s.Touch(ctx, surveyID, itemID, bucket, types.Dimensions{}))
	require.NoError(t, s.Update(ctx, &statistics.Record{
		SurveyID:     surveyID,
		SurveyItemID: itemID,
		TimeBucket:   bucket.Add(time.Hour),
		Tally:        tally.New(),
		Synced:       true,
	}))

	got, err := s.ListUnsynced(ctx, 10)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.True(t, got[0].TimeBucket.Equal(bucket))
	require.True(t, got[1].TimeBucket.Equal(bucket.Add(2*time.Hour)))

	limited, err := s.ListUnsynced(ctx, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
}

func TestRange_MixedRecords_OnlySyncedBaseScopeInWindow(t *testing.T) {
	ctx := context.Background()
	s := New()
	add := func(b time.Time, dims types.Dimensions, synced bool) {
		require.NoError(t, s.Update(ctx, &statistics.Record{
			SurveyID:     surveyID,
			SurveyItemID: itemID,
			TimeBucket:   b,
			Dimensions:   dims,
			Tally:        tally.New(),
			Synced:       synced,
		}))
	}
	add(bucket, types.Dimensions{}, true)
	add(bucket.Add(time.Hour), types.Dimensions{}, false)
	add(bucket.Add(2*time.Hour), types.Dimensions{CampaignID: "spring"}, true)
	add(bucket.Add(3*time.Hour), types.Dimensions{}, true)

	got, err := s.Range(ctx, itemID, bucket, bucket.Add(3*time.Hour))
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.True(t, got[0].TimeBucket.Equal(bucket))
}

func TestUpdate_ReturnedRecordIsACopy(t *testing.T) {
	ctx := context.Background()
	s := New()
	record := &statistics.Record{
		SurveyID:     surveyID,
		SurveyItemID: itemID,
		TimeBucket:   bucket,
		Tally:        tally.Tally{"opt-a": 1},
		Synced:       true,
	}
	require.NoError(t, s.Update(ctx, record))

	got := s.Get(itemID, bucket, types.Dimensions{})
	got.Tally.Add("opt-a", 10)

	require.Equal(t, tally.Tally{"opt-a": 1}, s.Get(itemID, bucket, types.Dimensions{}).Tally)
}
