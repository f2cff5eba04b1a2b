// Package sqlnotificationstore implements the notification.Store interface on
// an SQL database backend. Anomaly dedup rides on a unique index plus ON
// CONFLICT DO NOTHING; correlation dedup needs a range condition on
// created_at, so it is a probe query followed by an insert.
package sqlnotificationstore

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v4"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/go/skerr"
	"go.pollpulse.org/infra/go/sql/pool"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/types"
)

// statement is an SQL statement identifier.
type statement int

const (
	insertAnomaly statement = iota
	insertCorrelation
	probeCorrelation
	listAnomalies
	listCorrelations
)

// statements holds all the raw SQL statements used.
var statements = map[statement]string{
	insertAnomaly: `
		INSERT INTO
			AnomalyNotifications (notification_id, survey_id, survey_item_id,
				company_id, team_id, period, from_time, to_time, kind,
				selected, coefficient, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
		ON CONFLICT (survey_id, survey_item_id, kind, period, from_time) DO NOTHING
		`,
	insertCorrelation: `
		INSERT INTO
			CorrelationNotifications (notification_id, survey_id, company_id,
				team_id, period, from_time, to_time, left_item_id,
				right_item_id, correlation, created_at)
		VALUES
			($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
		`,
	probeCorrelation: `
		SELECT
			notification_id
		FROM
			CorrelationNotifications
		WHERE
			survey_id=$1
			AND left_item_id=$2
			AND right_item_id=$3
			AND created_at >= $4
			AND (period=$5 OR correlation=$6)
		LIMIT 1
		`,
	listAnomalies: `
		SELECT
			notification_id, survey_id, survey_item_id, company_id, team_id,
			period, from_time, to_time, kind, selected, coefficient, created_at
		FROM
			AnomalyNotifications
		WHERE
			survey_id=$1
		ORDER BY
			created_at DESC
		`,
	listCorrelations: `
		SELECT
			notification_id, survey_id, company_id, team_id, period,
			from_time, to_time, left_item_id, right_item_id, correlation,
			created_at
		FROM
			CorrelationNotifications
		WHERE
			survey_id=$1
		ORDER BY
			created_at DESC
		`,
}

// SQLNotificationStore implements the notification.Store interface.
type SQLNotificationStore struct {
	// db is the underlying database.
	db         pool.Pool
	statements map[statement]string
}

// New returns a new *SQLNotificationStore.
func New(db pool.Pool) (*SQLNotificationStore, error) {
	return &SQLNotificationStore{
		db:         db,
		statements: statements,
	}, nil
}

// AddAnomaly implements the notification.Store interface.
func (s *SQLNotificationStore) AddAnomaly(ctx context.Context, a *notification.Anomaly) (bool, error) {
	id := a.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := a.CreatedAt
	if createdAt.IsZero() {
		createdAt = now.Now(ctx)
	}
	tag, err := s.db.Exec(ctx, s.statements[insertAnomaly],
		id, a.SurveyID, a.SurveyItemID, a.CompanyID, a.TeamID, a.Period,
		a.From.UTC(), a.To.UTC(), a.Kind, a.Selected, a.Coefficient, createdAt.UTC())
	if err != nil {
		return false, skerr.Wrapf(err, "Failed to write anomaly notification for survey %s kind %s", a.SurveyID, a.Kind)
	}
	return tag.RowsAffected() > 0, nil
}

// AddCorrelation implements the notification.Store interface.
func (s *SQLNotificationStore) AddCorrelation(ctx context.Context, c *notification.Correlation) (bool, error) {
	left, right := notification.OrderPair(c.Left, c.Right)
	var existingID string
	err := s.db.QueryRow(ctx, s.statements[probeCorrelation],
		c.SurveyID, left, right, c.From.UTC(), c.Period, c.Value).Scan(&existingID)
	if err == nil {
		return false, nil
	}
	if !errors.Is(err, pgx.ErrNoRows) {
		return false, skerr.Wrapf(err, "Failed to probe correlation notifications for survey %s", c.SurveyID)
	}
	id := c.ID
	if id == "" {
		id = uuid.NewString()
	}
	createdAt := c.CreatedAt
	if createdAt.IsZero() {
		createdAt = now.Now(ctx)
	}
	if _, err := s.db.Exec(ctx, s.statements[insertCorrelation],
		id, c.SurveyID, c.CompanyID, c.TeamID, c.Period,
		c.From.UTC(), c.To.UTC(), left, right, c.Value, createdAt.UTC()); err != nil {
		return false, skerr.Wrapf(err, "Failed to write correlation notification for survey %s pair %s %s", c.SurveyID, left, right)
	}
	return true, nil
}

// ListAnomalies implements the notification.Store interface.
func (s *SQLNotificationStore) ListAnomalies(ctx context.Context, surveyID types.SurveyID) ([]*notification.Anomaly, error) {
	rows, err := s.db.Query(ctx, s.statements[listAnomalies], surveyID)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to list anomaly notifications for survey %s", surveyID)
	}
	defer rows.Close()
	ret := []*notification.Anomaly{}
	for rows.Next() {
		var a notification.Anomaly
		if err := rows.Scan(&a.ID, &a.SurveyID, &a.SurveyItemID, &a.CompanyID, &a.TeamID,
			&a.Period, &a.From, &a.To, &a.Kind, &a.Selected, &a.Coefficient, &a.CreatedAt); err != nil {
			return nil, skerr.Wrapf(err, "Failed to read single anomaly notification")
		}
		ret = append(ret, &a)
	}
	return ret, nil
}

// ListCorrelations implements the notification.Store interface.
func (s *SQLNotificationStore) ListCorrelations(ctx context.Context, surveyID types.SurveyID) ([]*notification.Correlation, error) {
	rows, err := s.db.Query(ctx, s.statements[listCorrelations], surveyID)
	if err != nil {
		return nil, skerr.Wrapf(err, "Failed to list correlation notifications for survey %s", surveyID)
	}
	defer rows.Close()
	ret := []*notification.Correlation{}
	for rows.Next() {
		var c notification.Correlation
		if err := rows.Scan(&c.ID, &c.SurveyID, &c.CompanyID, &c.TeamID, &c.Period,
			&c.From, &c.To, &c.Left, &c.Right, &c.Value, &c.CreatedAt); err != nil {
			return nil, skerr.Wrapf(err, "Failed to read single correlation notification")
		}
		ret = append(ret, &c)
	}
	return ret, nil
}

// Confirm SQLNotificationStore implements notification.Store.
var _ notification.Store = (*SQLNotificationStore)(nil)
