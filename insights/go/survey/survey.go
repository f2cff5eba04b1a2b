// Package survey defines the Store interface for survey and question
// instance metadata.
package survey

import (
	"context"
	"errors"

	"go.pollpulse.org/infra/insights/go/types"
)

// ErrNotFound is returned when a survey or question instance does not exist.
var ErrNotFound = errors.New("not found")

// Store persists survey and question instance metadata.
type Store interface {
	// PutSurvey writes the survey, replacing any existing survey with the
	// same ID.
	PutSurvey(ctx context.Context, s *types.Survey) error

	// PutItem writes the question instance, replacing any existing one
	// with the same ID.
	PutItem(ctx context.Context, item *types.SurveyItem) error

	// Scan invokes cb once per survey, in ID order. The survey collection
	// is unbounded, so implementations iterate it page by page rather
	// than loading it whole. A cb error stops the scan and is returned.
	Scan(ctx context.Context, cb func(ctx context.Context, s *types.Survey) error) error

	// Get returns the survey with the given ID, or ErrNotFound.
	Get(ctx context.Context, id types.SurveyID) (*types.Survey, error)

	// Items returns every question instance of the survey, in ID order.
	Items(ctx context.Context, surveyID types.SurveyID) ([]*types.SurveyItem, error)

	// Item returns the question instance with the given ID, or
	// ErrNotFound.
	Item(ctx context.Context, id types.SurveyItemID) (*types.SurveyItem, error)
}
