// Package tally turns raw answers into normalized tally keys and provides
// the arithmetic the comparator runs over tally maps: summing, most selected
// key, and weighted mean.
package tally

import (
	"strconv"

	"go.pollpulse.org/infra/insights/go/types"
)

// CustomAnswerKey is the tally key all custom free text answers contribute
// to, regardless of their content.
const CustomAnswerKey = "customAnswer"

// gridKeySeparator joins the row and column ids of a grid answer crossing.
const gridKeySeparator = "#"

// Tally maps a normalized answer key to its occurrence count.
type Tally map[string]int64

// New returns an empty Tally.
func New() Tally {
	return Tally{}
}

// Add increments the count for the given key.
func (t Tally) Add(key string, n int64) {
	t[key] += n
}

// AddAll merges other into t.
func (t Tally) AddAll(other Tally) {
	for k, v := range other {
		t[k] += v
	}
}

// Total returns the sum of all counts.
func (t Tally) Total() int64 {
	var total int64
	for _, v := range t {
		total += v
	}
	return total
}

// MostSelected returns the key with the strictly largest count. It returns
// ok=false for an empty tally, an all zero tally, or a tie for the top spot,
// in which case there is no most selected key.
func (t Tally) MostSelected() (string, bool) {
	var best string
	var bestCount int64
	tie := false
	for k, v := range t {
		if v <= 0 {
			continue
		}
		switch {
		case v > bestCount:
			best = k
			bestCount = v
			tie = false
		case v == bestCount:
			tie = true
		}
	}
	if bestCount == 0 || tie {
		return "", false
	}
	return best, true
}

// WeightedMean interprets the tally keys as numeric values and returns
// sum(key*count)/sum(count). Keys that do not parse as numbers, such as
// CustomAnswerKey, are ignored. It returns ok=false when no numeric keys with
// a positive count exist, in which case the mean is undefined.
func (t Tally) WeightedMean() (float64, bool) {
	var sum float64
	var count int64
	for k, v := range t {
		if v <= 0 {
			continue
		}
		value, err := strconv.ParseFloat(k, 64)
		if err != nil {
			continue
		}
		sum += value * float64(v)
		count += v
	}
	if count == 0 {
		return 0, false
	}
	return sum / float64(count), true
}

// Sum adds up a list of tallies into a fresh Tally.
func Sum(tallies []Tally) Tally {
	ret := New()
	for _, t := range tallies {
		ret.AddAll(t)
	}
	return ret
}

// normalizeFunc produces the list of tally keys one raw answer contributes.
// An answer that contributes nothing, e.g. a malformed or empty payload,
// returns an empty list.
type normalizeFunc func(a types.Answer) []string

// normalizers is keyed by question type. Types absent from the map, such as
// plain text questions, contribute no tally keys at all.
var normalizers = map[types.QuestionType]normalizeFunc{
	types.CountryList: func(a types.Answer) []string {
		if a.Country == "" {
			return nil
		}
		return []string{a.Country}
	},
	types.YesNo:          normalizeOptions,
	types.Dropdown:       normalizeOptions,
	types.Checkboxes:     normalizeOptions,
	types.MultipleChoice: normalizeOptions,
	types.Slider:         normalizeValue,
	types.LinearScale:    normalizeValue,
	types.NetPromoter:    normalizeValue,
	types.Grid: func(a types.Answer) []string {
		keys := []string{}
		for row, cols := range a.Grid {
			for _, col := range cols {
				keys = append(keys, row+gridKeySeparator+col)
			}
		}
		return keys
	},
}

// normalizeOptions handles every choice type: one key per selected option,
// plus the custom answer key if free text was entered.
func normalizeOptions(a types.Answer) []string {
	keys := make([]string, 0, len(a.Options)+1)
	keys = append(keys, a.Options...)
	if a.Custom != "" {
		keys = append(keys, CustomAnswerKey)
	}
	return keys
}

// normalizeValue handles scalar types: the numeric value is its own key.
func normalizeValue(a types.Answer) []string {
	if a.Value == nil {
		return nil
	}
	return []string{strconv.FormatFloat(*a.Value, 'f', -1, 64)}
}

// Keys returns the tally keys one raw answer contributes for a question of
// the given type.
func Keys(questionType types.QuestionType, a types.Answer) []string {
	normalize, ok := normalizers[questionType]
	if !ok {
		return nil
	}
	return normalize(a)
}
