// Package sqlsurveystore implements the survey.Store interface on an SQL
// database backend. Scan pages through the survey table with keyset
// pagination to bound memory against an unbounded collection.
package sqlsurveystore

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v4"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sql/pool"
	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/types"
)

// scanPageSize is how many surveys one Scan page loads.
const scanPageSize = 100

// statement is an SQL statement identifier.
type statement int

const (
	insertSurvey statement = iota
	insertItem
	scanPage
	getSurvey
	listItems
	getItem
)

// statements holds all the raw SQL statements used.
var statements = map[statement]string{
	insertSurvey: `
		INSERT INTO
			Surveys (survey_id, company_id, team_id, name)
		VALUES
			($1, $2, $3, $4)
		ON CONFLICT (survey_id) DO UPDATE
		SET company_id=EXCLUDED.company_id, team_id=EXCLUDED.team_id,
			name=EXCLUDED.name
		`,
	insertItem: `
		INSERT INTO
			SurveyItems (survey_item_id, survey_id, type)
		VALUES
			($1, $2, $3)
		ON CONFLICT (survey_item_id) DO UPDATE
		SET survey_id=EXCLUDED.survey_id, type=EXCLUDED.type
		`,
	scanPage: `
		SELECT
			survey_id, company_id, team_id, name
		FROM
			Surveys
		WHERE
			survey_id > $1
		ORDER BY
			survey_id ASC
		LIMIT $2
		`,
	getSurvey: `
		SELECT
			survey_id, company_id, team_id, name
		FROM
			Surveys
		WHERE
			survey_id=$1
		`,
	listItems: `
		SELECT
			survey_item_id, survey_id, type
		FROM
			SurveyItems
		WHERE
			survey_id=$1
		ORDER BY
			survey_item_id ASC
		`,
	getItem: `
		SELECT
			survey_item_id, survey_id, type
		FROM
			SurveyItems
		WHERE
			survey_item_id=$1
		`,
}

// SQLSurveyStore implements the survey.Store interface.
type SQLSurveyStore struct {
	// db is the underlying database.
	db         pool.Pool
	statements map[statement]string
}

// New returns a new *SQLSurveyStore.
func New(db pool.Pool) (*SQLSurveyStore, error) {
	return &SQLSurveyStore{
		db:         db,
		statements: statements,
	}, nil
}

// PutSurvey implements the survey.Store interface.
func (s *SQLSurveyStore) PutSurvey(ctx context.Context, sv *types.Survey) error {
	if _, err := s.db.Exec(ctx, s.statements[insertSurvey], sv.ID, sv.CompanyID, sv.TeamID, sv.Name); err != nil {
		return skerr.Wrapf(err, "Failed to write survey %s", sv.ID)
	}
	return nil
}

// PutItem implements the survey.Store interface.
func (s *SQLSurveyStore) PutItem(ctx context.Context, item *types.SurveyItem) error {
	if _, err := s.db.Exec(ctx, s.statements[insertItem], item.ID, item.SurveyID, item.Type); err != nil {
		return skerr.Wrapf(err, "Failed to write survey item %s", item.ID)
	}
	return nil
}

// Scan implements the survey.Store interface.
func (s *SQLSurveyStore) Scan(ctx context.Context, cb func(ctx context.Context, sv *types.Survey) error) error {
	after := types.SurveyID("")
	for {
		page, err := s.scanPage(ctx, after)
		if err != nil {
			return skerr.Wrap(err)
		}
		if len(page) == 0 {
			return nil
		}
		for _, sv := range page {
			if err := cb(ctx, sv); err != nil {
				return err
			}
		}
		after = page[len(page)-1].ID
	}
}

func (s *SQLSurveyStore) scanPage(ctx context.Context, after types.SurveyID) ([]*types.Survey, error) {
	rows, err := s.db.Query(ctx, s.statements[scanPage], after, scanPageSize)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read survey page after %q", after)
	}
	defer rows.Close()
	ret := []*types.Survey{}
	for rows.Next() {
		var sv types.Survey
		if err := rows.Scan(&sv.ID, &sv.CompanyID, &sv.TeamID, &sv.Name); err != nil {
			return nil, skerr.Wrapf(err, "Failed to read single survey")
		}
		ret = append(ret, &sv)
	}
	return ret, nil
}

// Get implements the survey.Store interface.
func (s *SQLSurveyStore) Get(ctx context.Context, id types.SurveyID) (*types.Survey, error) {
	var sv types.Survey
	if err := s.db.QueryRow(ctx, s.statements[getSurvey], id).Scan(&sv.ID, &sv.CompanyID, &sv.TeamID, &sv.Name); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, survey.ErrNotFound
		}
		return nil, skerr.Wrapf(err, "Failed to read survey %s", id)
	}
	return &sv, nil
}

// Items implements the survey.Store interface.
func (s *SQLSurveyStore) Items(ctx context.Context, surveyID types.SurveyID) ([]*types.SurveyItem, error) {
	rows, err := s.db.Query(ctx, s.statements[listItems], surveyID)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to read items for survey %s", surveyID)
	}
	defer rows.Close()
	ret := []*types.SurveyItem{}
	for rows.Next() {
		var item types.SurveyItem
		if err := rows.Scan(&item.ID, &item.SurveyID, &item.Type); err != nil {
			return nil, skerr.Wrapf(err, "Failed to read single survey item")
		}
		ret = append(ret, &item)
	}
	return ret, nil
}

// Item implements the survey.Store interface.
func (s *SQLSurveyStore) Item(ctx context.Context, id types.SurveyItemID) (*types.SurveyItem, error) {
	var item types.SurveyItem
	if err := s.db.QueryRow(ctx, s.statements[getItem], id).Scan(&item.ID, &item.SurveyID, &item.Type); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, survey.ErrNotFound
		}
		return nil, skerr.Wrapf(err, "Failed to read survey item %s", id)
	}
	return &item, nil
}

// Confirm SQLSurveyStore implements survey.Store.
var _ survey.Store = (*SQLSurveyStore)(nil)
