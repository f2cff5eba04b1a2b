// Package sqlresponsestore implements the response.Store interface on an SQL
// database backend. Responses are stored as JSON documents alongside the few
// columns the queries filter on; answer level filtering happens in Go after
// decoding.
package sqlresponsestore

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/jackc/pgx/v4"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sql/pool"
	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/types"
)

// statement is an SQL statement identifier.
type statement int

const (
	insertResponse statement = iota
	deleteResponse
	readRange
	existsInRange
)

// statements holds all the raw SQL statements used.
var statements = map[statement]string{
	insertResponse: `
		INSERT INTO
			Responses (response_id, survey_id, created_at, countable, body)
		VALUES
			($1, $2, $3, $4, $5)
		ON CONFLICT (response_id) DO UPDATE
		SET survey_id=EXCLUDED.survey_id, created_at=EXCLUDED.created_at,
			countable=EXCLUDED.countable, body=EXCLUDED.body
		`,
	deleteResponse: `
		DELETE
		FROM
			Responses
		WHERE
			response_id=$1
		`,
	readRange: `
		SELECT
			body
		FROM
			Responses
		WHERE
			survey_id=$1
			AND countable=true
			AND created_at >= $2
			AND created_at < $3
		`,
	existsInRange: `
		SELECT
			response_id
		FROM
			Responses
		WHERE
			survey_id=$1
			AND countable=true
			AND created_at >= $2
			AND created_at < $3
		LIMIT 1
		`,
}

// SQLResponseStore implements the response.Store interface.
type SQLResponseStore struct {
	// db is the underlying database.
	db         pool.Pool
	statements map[statement]string
}

// New returns a new *SQLResponseStore.
func New(db pool.Pool) (*SQLResponseStore, error) {
	return &SQLResponseStore{
		db:         db,
		statements: statements,
	}, nil
}

// Add implements the response.Store interface.
func (s *SQLResponseStore) Add(ctx context.Context, r *types.Response) error {
	body, err := json.Marshal(r)
	if err != nil {
		return skerr.Wrapf(err, "Failed to serialize response %s", r.ID)
	}
	if _, err := s.db.Exec(ctx, s.statements[insertResponse], r.ID, r.SurveyID, r.CreatedAt.UTC(), response.Countable(r), string(body)); err != nil {
		return skerr.Wrapf(err, "Failed to write response %s", r.ID)
	}
	return nil
}

// Delete implements the response.Store interface.
func (s *SQLResponseStore) Delete(ctx context.Context, id types.ResponseID) error {
	if _, err := s.db.Exec(ctx, s.statements[deleteResponse], id); err != nil {
		return skerr.Wrapf(err, "Failed to delete response %s", id)
	}
	return nil
}

// ForBucketAndItem implements the response.Store interface.
func (s *SQLResponseStore) ForBucketAndItem(ctx context.Context, f response.Filter) ([]*types.Response, error) {
	bucket := f.Bucket.UTC()
	all, err := s.readRange(ctx, f.SurveyID, periods.Window{
		From: bucket,
		To:   bucket.Add(statistics.BucketGranularity),
	})
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	ret := []*types.Response{}
	for _, r := range all {
		if response.MatchesFilter(r, f) {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

// WindowStats implements the response.Store interface.
func (s *SQLResponseStore) WindowStats(ctx context.Context, surveyID types.SurveyID, w periods.Window) (response.WindowStats, error) {
	all, err := s.readRange(ctx, surveyID, w)
	if err != nil {
		return response.WindowStats{}, skerr.Wrap(err)
	}
	return response.StatsFrom(all), nil
}

// PairedValues implements the response.Store interface.
func (s *SQLResponseStore) PairedValues(ctx context.Context, surveyID types.SurveyID, w periods.Window) ([]map[types.SurveyItemID]float64, error) {
	all, err := s.readRange(ctx, surveyID, w)
	if err != nil {
		return nil, skerr.Wrap(err)
	}
	ret := []map[types.SurveyItemID]float64{}
	for _, r := range all {
		if values := response.ValuesFrom(r); values != nil {
			ret = append(ret, values)
		}
	}
	return ret, nil
}

// AnyInWindow implements the response.Store interface.
func (s *SQLResponseStore) AnyInWindow(ctx context.Context, surveyID types.SurveyID, w periods.Window) (bool, error) {
	var id types.ResponseID
	if err := s.db.QueryRow(ctx, s.statements[existsInRange], surveyID, w.From.UTC(), w.To.UTC()).Scan(&id); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, nil
		}
		return false, skerr.Wrapf(err, "Failed to probe responses for survey %s", surveyID)
	}
	return true, nil
}

func (s *SQLResponseStore) readRange(ctx context.Context, surveyID types.SurveyID, w periods.Window) ([]*types.Response, error) {
	rows, err := s.db.Query(ctx, s.statements[readRange], surveyID, w.From.UTC(), w.To.UTC())
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read responses for survey %s in range %s %s", surveyID, w.From, w.To)
	}
	defer rows.Close()
	ret := []*types.Response{}
	for rows.Next() {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, skerr.Wrapf(err, "Failed to read single response")
		}
		var r types.Response
		if err := json.Unmarshal([]byte(body), &r); err != nil {
			return nil, skerr.Wrapf(err, "Failed to decode response")
		}
		ret = append(ret, &r)
	}
	return ret, nil
}

// Confirm SQLResponseStore implements response.Store.
var _ response.Store = (*SQLResponseStore)(nil)
