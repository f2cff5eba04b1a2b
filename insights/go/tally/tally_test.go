package tally

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"go.pollpulse.org/infra/insights/go/types"
)

func floatPtr(v float64) *float64 {
	return &v
}

func TestKeys_Checkboxes_OneKeyPerSelectedOption(t *testing.T) {
	keys := Keys(types.Checkboxes, types.Answer{Options: types.OptionList{"a", "b"}})
	assert.Equal(t, []string{"a", "b"}, keys)
}

func TestKeys_Checkboxes_CustomAnswerContributesDedicatedKey(t *testing.T) {
	keys := Keys(types.Checkboxes, types.Answer{Options: types.OptionList{"a"}, Custom: "other thing"})
	assert.Equal(t, []string{"a", CustomAnswerKey}, keys)
}

func TestKeys_Grid_OneKeyPerRowColumnCrossing(t *testing.T) {
	keys := Keys(types.Grid, types.Answer{Grid: map[string]types.OptionList{
		"row1": {"colA", "colB"},
	}})
	assert.ElementsMatch(t, []string{"row1#colA", "row1#colB"}, keys)
}

func TestKeys_Slider_RawValueIsTheKey(t *testing.T) {
	keys := Keys(types.Slider, types.Answer{Value: floatPtr(7)})
	assert.Equal(t, []string{"7"}, keys)
}

func TestKeys_CountryList_CountryCodeIsTheKey(t *testing.T) {
	keys := Keys(types.CountryList, types.Answer{Country: "DE"})
	assert.Equal(t, []string{"DE"}, keys)
}

func TestKeys_MissingFields_ContributeNothing(t *testing.T) {
	assert.Empty(t, Keys(types.Slider, types.Answer{}))
	assert.Empty(t, Keys(types.CountryList, types.Answer{}))
	assert.Empty(t, Keys(types.Checkboxes, types.Answer{}))
}

func TestKeys_UnhandledType_ContributesNothing(t *testing.T) {
	assert.Empty(t, Keys(types.Text, types.Answer{Custom: "free text"}))
}

func TestMostSelected_SingleWinner(t *testing.T) {
	tl := Tally{"a": 3, "b": 5, "c": 1}
	key, ok := tl.MostSelected()
	require.True(t, ok)
	assert.Equal(t, "b", key)
}

func TestMostSelected_Tie_NoWinner(t *testing.T) {
	tl := Tally{"a": 5, "b": 5, "c": 1}
	_, ok := tl.MostSelected()
	assert.False(t, ok)
}

func TestMostSelected_EmptyOrZero_NoWinner(t *testing.T) {
	_, ok := Tally{}.MostSelected()
	assert.False(t, ok)
	_, ok = Tally{"a": 0, "b": 0}.MostSelected()
	assert.False(t, ok)
}

func TestWeightedMean_NumericKeys(t *testing.T) {
	tl := Tally{"10": 2, "20": 2}
	mean, ok := tl.WeightedMean()
	require.True(t, ok)
	assert.Equal(t, 15.0, mean)
}

func TestWeightedMean_IgnoresNonNumericKeys(t *testing.T) {
	tl := Tally{"10": 1, CustomAnswerKey: 100}
	mean, ok := tl.WeightedMean()
	require.True(t, ok)
	assert.Equal(t, 10.0, mean)
}

func TestWeightedMean_NoNumericKeys_Undefined(t *testing.T) {
	_, ok := Tally{CustomAnswerKey: 3}.WeightedMean()
	assert.False(t, ok)
	_, ok = Tally{}.WeightedMean()
	assert.False(t, ok)
}

func TestSum_MergesCounts(t *testing.T) {
	total := Sum([]Tally{{"a": 1, "b": 2}, {"b": 3, "c": 4}})
	assert.Equal(t, Tally{"a": 1, "b": 5, "c": 4}, total)
}
