// Package periods defines the time windows the detection engines compare:
// the trailing days, week and month ranges, each with an equal length
// preceding range.
package periods

import (
	"time"
)

// Period names one of the comparison window lengths.
type Period string

const (
	Days  Period = "days"
	Week  Period = "week"
	Month Period = "month"
)

// AllPeriods lists every Period, shortest first. The order matters to the
// correlation engine, which accumulates samples across periods in this order.
var AllPeriods = []Period{Days, Week, Month}

// Spec is one configurable period definition.
type Spec struct {
	Name Period `json:"name"`

	// Length is the window length in days.
	Length int `json:"length"`
}

// DefaultSpecs are the stock period definitions: 3 days, 7 days, 28 days.
var DefaultSpecs = []Spec{
	{Name: Days, Length: 3},
	{Name: Week, Length: 7},
	{Name: Month, Length: 28},
}

// Window is a half open time range [From, To).
type Window struct {
	From time.Time
	To   time.Time
}

// Contains returns true if t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	return !t.Before(w.From) && t.Before(w.To)
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.To.Sub(w.From)
}

// Comparison is a (current, previous) window pair for one period. The two
// windows are equal length, contiguous and non overlapping: Previous.To ==
// Current.From.
type Comparison struct {
	Period   Period
	Current  Window
	Previous Window
}

// Comparisons builds the comparison pairs for the given reference time, one
// per spec. For a 3 day period and reference time T this yields current
// [T-3d, T) and previous [T-6d, T-3d).
func Comparisons(ref time.Time, specs []Spec) []Comparison {
	ret := make([]Comparison, 0, len(specs))
	for _, s := range specs {
		length := time.Duration(s.Length) * 24 * time.Hour
		ret = append(ret, Comparison{
			Period: s.Name,
			Current: Window{
				From: ref.Add(-length),
				To:   ref,
			},
			Previous: Window{
				From: ref.Add(-2 * length),
				To:   ref.Add(-length),
			},
		})
	}
	return ret
}

// Step is one slice of the sequential range layout the correlation engine
// walks: Collect is the range whose samples are newly collected for this
// period, and Cumulative is the full trailing window the period's
// notifications cover.
type Step struct {
	Period     Period
	Collect    Window
	Cumulative Window
}

// Steps builds the sequential, non overlapping collection ranges for the
// given reference time. With the default specs this yields:
//
//	days:  collect [T-3d, T)    cumulative [T-3d, T)
//	week:  collect [T-7d, T-3d) cumulative [T-7d, T)
//	month: collect [T-28d, T-7d) cumulative [T-28d, T)
//
// Specs must be sorted shortest first; each Collect range starts where the
// previous period's window began, so together they tile the longest window
// exactly once.
func Steps(ref time.Time, specs []Spec) []Step {
	ret := make([]Step, 0, len(specs))
	prevFrom := ref
	for _, s := range specs {
		from := ref.Add(-time.Duration(s.Length) * 24 * time.Hour)
		ret = append(ret, Step{
			Period: s.Name,
			Collect: Window{
				From: from,
				To:   prevFrom,
			},
			Cumulative: Window{
				From: from,
				To:   ref,
			},
		})
		prevFrom = from
	}
	return ret
}
