package aggregator

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.pollpulse.org/infra/insights/go/config"
	"go.pollpulse.org/infra/insights/go/response/memresponsestore"
	"go.pollpulse.org/infra/insights/go/statistics/memstatstore"
	"go.pollpulse.org/infra/insights/go/survey/memsurveystore"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

const (
	surveyID = types.SurveyID("survey-1")
	itemID   = types.SurveyItemID("item-1")
)

var bucket = time.Date(2024, time.March, 4, 10, 0, 0, 0, time.UTC)

type fixtures struct {
	agg         *Aggregator
	statStore   *memstatstore.MemStatStore
	respStore   *memresponsestore.MemResponseStore
	surveyStore *memsurveystore.MemSurveyStore
}

func setup(t *testing.T, questionType types.QuestionType) (context.Context, fixtures) {
	ctx := context.Background()
	f := fixtures{
		statStore:   memstatstore.New(),
		respStore:   memresponsestore.New(),
		surveyStore: memsurveystore.New(),
	}
	require.NoError(t, f.surveyStore.PutSurvey(ctx, &types.Survey{ID: surveyID, CompanyID: "c", TeamID: "t"}))
	require.NoError(t, f.surveyStore.PutItem(ctx, &types.SurveyItem{ID: itemID, SurveyID: surveyID, Type: questionType}))
	f.agg = New(f.statStore, f.respStore, f.surveyStore, config.NewInstanceConfig().EngineConfig)
	return ctx, f
}

func addResponse(t *testing.T, ctx context.Context, f fixtures, r *types.Response) {
	require.NoError(t, f.respStore.Add(ctx, r))
	require.NoError(t, f.statStore.Touch(ctx, surveyID, itemID, bucket, types.Dimensions{}))
}

func TestRun_RebuildsUnsyncedRecord_Success(t *testing.T) {
	ctx, f := setup(t, types.MultipleChoice)
	addResponse(t, ctx, f, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(5 * time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"opt-a", "opt-b"}},
		},
	})
	addResponse(t, ctx, f, &types.Response{
		ID:        "r2",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(10 * time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"opt-a"}, Custom: "other"},
		},
	})
	addResponse(t, ctx, f, &types.Response{
		ID:        "r3",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(15 * time.Minute),
		Skipped:   []types.SurveyItemID{itemID},
	})

	require.NoError(t, f.agg.Run(ctx))

	got := f.statStore.Get(itemID, bucket, types.Dimensions{})
	require.NotNil(t, got)
	require.True(t, got.Synced)
	require.Equal(t, int64(2), got.AnsweredCount)
	require.Equal(t, int64(1), got.SkippedCount)
	require.Equal(t, int64(0), got.SkippedByFlowCount)
	require.Equal(t, tally.Tally{
		"opt-a":               2,
		"opt-b":               1,
		tally.CustomAnswerKey: 1,
	}, got.Tally)
}

func TestRun_RunTwiceOverUnchangedResponses_IdenticalCounts(t *testing.T) {
	ctx, f := setup(t, types.LinearScale)
	value := 4.0
	addResponse(t, ctx, f, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Value: &value},
		},
	})
	require.NoError(t, f.agg.Run(ctx))
	first := f.statStore.Get(itemID, bucket, types.Dimensions{})

	// Force a recompute over the same raw responses.
	require.NoError(t, f.statStore.Touch(ctx, surveyID, itemID, bucket, types.Dimensions{}))
	require.NoError(t, f.agg.Run(ctx))
	second := f.statStore.Get(itemID, bucket, types.Dimensions{})

	require.Equal(t, first, second)
	require.Equal(t, tally.Tally{"4": 1}, second.Tally)
}

func TestRun_NoBackingResponses_DeletesOrphanedRecord(t *testing.T) {
	ctx, f := setup(t, types.MultipleChoice)
	addResponse(t, ctx, f, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"opt-a"}},
		},
	})
	require.NoError(t, f.respStore.Delete(ctx, "r1"))

	require.NoError(t, f.agg.Run(ctx))

	require.Nil(t, f.statStore.Get(itemID, bucket, types.Dimensions{}))
	require.Equal(t, 0, f.statStore.Len())
}

func TestRun_PreviewAndHiddenResponses_NotCounted(t *testing.T) {
	ctx, f := setup(t, types.YesNo)
	addResponse(t, ctx, f, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"yes"}},
		},
	})
	addResponse(t, ctx, f, &types.Response{
		ID:        "r2",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Preview:   true,
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"no"}},
		},
	})
	addResponse(t, ctx, f, &types.Response{
		ID:        "r3",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Hidden:    true,
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"no"}},
		},
	})

	require.NoError(t, f.agg.Run(ctx))

	got := f.statStore.Get(itemID, bucket, types.Dimensions{})
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.AnsweredCount)
	require.Equal(t, tally.Tally{"yes": 1}, got.Tally)
}

func TestRun_DimensionScopedRecord_CountsOnlyMatchingResponses(t *testing.T) {
	ctx, f := setup(t, types.MultipleChoice)
	dims := types.Dimensions{CampaignID: "spring"}
	require.NoError(t, f.respStore.Add(ctx, &types.Response{
		ID:         "r1",
		SurveyID:   surveyID,
		CreatedAt:  bucket.Add(time.Minute),
		Dimensions: dims,
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"opt-a"}},
		},
	}))
	require.NoError(t, f.respStore.Add(ctx, &types.Response{
		ID:         "r2",
		SurveyID:   surveyID,
		CreatedAt:  bucket.Add(time.Minute),
		Dimensions: types.Dimensions{CampaignID: "autumn"},
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Options: types.OptionList{"opt-b"}},
		},
	}))
	require.NoError(t, f.statStore.Touch(ctx, surveyID, itemID, bucket, dims))

	require.NoError(t, f.agg.Run(ctx))

	got := f.statStore.Get(itemID, bucket, dims)
	require.NotNil(t, got)
	require.Equal(t, int64(1), got.AnsweredCount)
	require.Equal(t, tally.Tally{"opt-a": 1}, got.Tally)
}

func TestRun_ItemMetadataMissing_DeletesRecord(t *testing.T) {
	ctx, f := setup(t, types.MultipleChoice)
	unknownItem := types.SurveyItemID("item-gone")
	require.NoError(t, f.respStore.Add(ctx, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			unknownItem: {Options: types.OptionList{"opt-a"}},
		},
	}))
	require.NoError(t, f.statStore.Touch(ctx, surveyID, unknownItem, bucket, types.Dimensions{}))

	require.NoError(t, f.agg.Run(ctx))

	require.Nil(t, f.statStore.Get(unknownItem, bucket, types.Dimensions{}))
}

func TestRun_GridAnswers_OneKeyPerRowColumnCrossing(t *testing.T) {
	ctx, f := setup(t, types.Grid)
	addResponse(t, ctx, f, &types.Response{
		ID:        "r1",
		SurveyID:  surveyID,
		CreatedAt: bucket.Add(time.Minute),
		Answers: map[types.SurveyItemID]types.Answer{
			itemID: {Grid: map[string]types.OptionList{
				"row-1": {"col-a", "col-b"},
				"row-2": {"col-a"},
			}},
		},
	})

	require.NoError(t, f.agg.Run(ctx))

	got := f.statStore.Get(itemID, bucket, types.Dimensions{})
	require.NotNil(t, got)
	require.Equal(t, tally.Tally{
		"row-1#col-a": 1,
		"row-1#col-b": 1,
		"row-2#col-a": 1,
	}, got.Tally)
}
