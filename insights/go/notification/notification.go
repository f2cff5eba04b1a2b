// Package notification defines the Anomaly and Correlation notification
// entities the detection engines emit, and the Store interface they are
// persisted through. The store enforces the dedup invariants, so engines can
// re-run over unchanged input without creating duplicates.
package notification

import (
	"context"
	"time"

	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/types"
)

// Kind names the detection that produced an Anomaly.
type Kind string

const (
	MostSelectedOption  Kind = "mostSelectedOption"
	MostSelectedValue   Kind = "mostSelectedValue"
	MostSelectedCountry Kind = "mostSelectedCountry"
	MeanValue           Kind = "meanValue"
	Started             Kind = "started"
	Completed           Kind = "completed"
	LocationCountry     Kind = "locationCountry"
	LocationCity        Kind = "locationCity"
)

// Anomaly is one detected shift between two consecutive windows.
type Anomaly struct {
	ID       string         `json:"id"`
	SurveyID types.SurveyID `json:"survey"`

	// SurveyItemID is empty for survey level notifications (started,
	// completed, location kinds).
	SurveyItemID types.SurveyItemID `json:"surveyItem,omitempty"`

	CompanyID types.CompanyID `json:"company"`
	TeamID    types.TeamID    `json:"team"`

	Period periods.Period `json:"period"`

	// From and To are the current window's bounds.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	Kind Kind `json:"kind"`

	// Selected is the current window's winning key for the most selected
	// and location kinds. Empty for coefficient kinds.
	Selected string `json:"selected,omitempty"`

	// Coefficient is the signed percentage deviation for the meanValue,
	// started and completed kinds, rounded to 3 significant digits.
	Coefficient float64 `json:"coefficient,omitempty"`

	CreatedAt time.Time `json:"createdAt"`
}

// Correlation is one detected correlation between two question instances.
type Correlation struct {
	ID        string          `json:"id"`
	SurveyID  types.SurveyID  `json:"survey"`
	CompanyID types.CompanyID `json:"company"`
	TeamID    types.TeamID    `json:"team"`

	Period periods.Period `json:"period"`

	// From and To are the cumulative window's bounds.
	From time.Time `json:"from"`
	To   time.Time `json:"to"`

	// Left and Right are the correlated question instances, stored in
	// OrderPair order so lookups are deterministic.
	Left  types.SurveyItemID `json:"left"`
	Right types.SurveyItemID `json:"right"`

	// Value is the Pearson coefficient, rounded to 3 significant digits.
	Value float64 `json:"correlation"`

	CreatedAt time.Time `json:"createdAt"`
}

// OrderPair returns the two question instances in their stable storage
// order.
func OrderPair(a, b types.SurveyItemID) (types.SurveyItemID, types.SurveyItemID) {
	if b < a {
		return b, a
	}
	return a, b
}

// Store persists notifications.
//
// Both Add methods return false without writing when the notification
// duplicates an existing one:
//
//   - An Anomaly duplicates an existing one with the same (survey, survey
//     item, kind, period, from).
//   - A Correlation duplicates an existing one for the same (survey, left,
//     right) pair created at or after From, with either the same period or
//     the same rounded value.
type Store interface {
	AddAnomaly(ctx context.Context, a *Anomaly) (bool, error)
	AddCorrelation(ctx context.Context, c *Correlation) (bool, error)

	// ListAnomalies returns the survey's anomaly notifications, newest
	// first.
	ListAnomalies(ctx context.Context, surveyID types.SurveyID) ([]*Anomaly, error)

	// ListCorrelations returns the survey's correlation notifications,
	// newest first.
	ListCorrelations(ctx context.Context, surveyID types.SurveyID) ([]*Correlation, error)
}
