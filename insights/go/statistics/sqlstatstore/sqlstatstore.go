// Package sqlstatstore implements the statistics.Store interface on an SQL
// database backend.
package sqlstatstore

import (
	"context"
	"encoding/json"
	"time"

	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sql/pool"
	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// statement is an SQL statement identifier.
type statement int

const (
	// The identifiers for all the SQL statements used.
	touch statement = iota
	listUnsynced
	update
	deleteRecord
	readRange
)

// statements holds all the raw SQL statements used.
var statements = map[statement]string{
	touch: `
		INSERT INTO
			Statistics (survey_id, survey_item_id, time_bucket, dims_key, dims, tally,
				answered_count, skipped_count, skipped_by_flow_count, synced)
		VALUES
			($1, $2, $3, $4, $5, '{}', 0, 0, 0, false)
		ON CONFLICT (survey_item_id, time_bucket, dims_key) DO UPDATE
		SET synced=false
		`,
	listUnsynced: `
		SELECT
			survey_id, survey_item_id, time_bucket, dims, tally,
			answered_count, skipped_count, skipped_by_flow_count, synced
		FROM
			Statistics
		WHERE
			synced=false
		ORDER BY
			time_bucket ASC
		LIMIT $1
		`,
	update: `
		INSERT INTO
			Statistics (survey_id, survey_item_id, time_bucket, dims_key, dims, tally,
				answered_count, skipped_count, skipped_by_flow_count, synced)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
		ON CONFLICT (survey_item_id, time_bucket, dims_key) DO UPDATE
		SET tally=EXCLUDED.tally, answered_count=EXCLUDED.answered_count,
			skipped_count=EXCLUDED.skipped_count,
			skipped_by_flow_count=EXCLUDED.skipped_by_flow_count,
			synced=EXCLUDED.synced
		`,
	deleteRecord: `
		DELETE
		FROM
			Statistics
		WHERE
			survey_item_id=$1 AND time_bucket=$2 AND dims_key=$3
		`,
	readRange: `
		SELECT
			survey_id, survey_item_id, time_bucket, dims, tally,
			answered_count, skipped_count, skipped_by_flow_count, synced
		FROM
			Statistics
		WHERE
			survey_item_id=$1
			AND synced=true
			AND dims_key=$2
			AND time_bucket >= $3
			AND time_bucket < $4
		ORDER BY
			time_bucket ASC
		`,
}

// SQLStatStore implements the statistics.Store interface.
type SQLStatStore struct {
	// db is the underlying database.
	db         pool.Pool
	statements map[statement]string
}

// New returns a new *SQLStatStore.
func New(db pool.Pool) (*SQLStatStore, error) {
	return &SQLStatStore{
		db:         db,
		statements: statements,
	}, nil
}

// Touch implements the statistics.Store interface.
func (s *SQLStatStore) Touch(ctx context.Context, surveyID types.SurveyID, itemID types.SurveyItemID, bucket time.Time, dims types.Dimensions) error {
	dimsJSON, err := json.Marshal(dims)
	if err != nil {
		return skerr.Wrapf(err, "Failed to serialize dimensions for item %s", itemID)
	}
	if _, err := s.db.Exec(ctx, s.statements[touch], surveyID, itemID, bucket.UTC(), dims.Key(), string(dimsJSON)); err != nil {
		return skerr.Wrapf(err, "Failed to touch statistic record for item %s bucket %s", itemID, bucket)
	}
	return nil
}

// ListUnsynced implements the statistics.Store interface.
func (s *SQLStatStore) ListUnsynced(ctx context.Context, limit int) ([]*statistics.Record, error) {
	rows, err := s.db.Query(ctx, s.statements[listUnsynced], limit)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to list unsynced statistic records")
	}
	defer rows.Close()
	ret := []*statistics.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

// Update implements the statistics.Store interface.
func (s *SQLStatStore) Update(ctx context.Context, r *statistics.Record) error {
	dimsJSON, err := json.Marshal(r.Dimensions)
	if err != nil {
		return skerr.Wrapf(err, "Failed to serialize dimensions for item %s", r.SurveyItemID)
	}
	tallyJSON, err := json.Marshal(r.Tally)
	if err != nil {
		return skerr.Wrapf(err, "Failed to serialize tally for item %s", r.SurveyItemID)
	}
	if _, err := s.db.Exec(ctx, s.statements[update],
		r.SurveyID, r.SurveyItemID, r.TimeBucket.UTC(), r.Dimensions.Key(), string(dimsJSON), string(tallyJSON),
		r.AnsweredCount, r.SkippedCount, r.SkippedByFlowCount, r.Synced); err != nil {
		return skerr.Wrapf(err, "Failed to write statistic record for item %s bucket %s", r.SurveyItemID, r.TimeBucket)
	}
	return nil
}

// Delete implements the statistics.Store interface.
func (s *SQLStatStore) Delete(ctx context.Context, r *statistics.Record) error {
	if _, err := s.db.Exec(ctx, s.statements[deleteRecord], r.SurveyItemID, r.TimeBucket.UTC(), r.Dimensions.Key()); err != nil {
		return skerr.Wrapf(err, "Failed to delete statistic record for item %s bucket %s", r.SurveyItemID, r.TimeBucket)
	}
	return nil
}

// Range implements the statistics.Store interface.
func (s *SQLStatStore) Range(ctx context.Context, itemID types.SurveyItemID, from, to time.Time) ([]*statistics.Record, error) {
	baseKey := types.Dimensions{}.Key()
	rows, err := s.db.Query(ctx, s.statements[readRange], itemID, baseKey, from.UTC(), to.UTC())
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read statistic records for item %s in range %s %s", itemID, from, to)
	}
	defer rows.Close()
	ret := []*statistics.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, skerr.Wrap(err)
		}
		ret = append(ret, r)
	}
	return ret, nil
}

// rowScanner is the subset of pgx.Rows both Query results implement.
type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanRecord(row rowScanner) (*statistics.Record, error) {
	var r statistics.Record
	var dimsJSON string
	var tallyJSON string
	if err := row.Scan(&r.SurveyID, &r.SurveyItemID, &r.TimeBucket, &dimsJSON, &tallyJSON,
		&r.AnsweredCount, &r.SkippedCount, &r.SkippedByFlowCount, &r.Synced); err != nil {
		return nil, skerr.Wrapf(err, "Failed to read single statistic record")
	}
	if err := json.Unmarshal([]byte(dimsJSON), &r.Dimensions); err != nil {
		return nil, skerr.Wrapf(err, "Failed to decode dimensions for item %s", r.SurveyItemID)
	}
	r.Tally = tally.New()
	if err := json.Unmarshal([]byte(tallyJSON), &r.Tally); err != nil {
		return nil, skerr.Wrapf(err, "Failed to decode tally for item %s", r.SurveyItemID)
	}
	r.TimeBucket = r.TimeBucket.UTC()
	return &r, nil
}

// Confirm SQLStatStore implements statistics.Store.
var _ statistics.Store = (*SQLStatStore)(nil)
