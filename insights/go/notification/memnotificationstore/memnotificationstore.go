// Package memnotificationstore implements notification.Store in memory.
package memnotificationstore

import (
	"context"
	"sort"
	"sync"

	"github.com/google/uuid"
	"go.pollpulse.org/infra/go/now"
	"go.pollpulse.org/infra/insights/go/notification"
	"go.pollpulse.org/infra/insights/go/types"
)

// MemNotificationStore implements notification.Store.
type MemNotificationStore struct {
	mutex        sync.Mutex
	anomalies    []*notification.Anomaly
	correlations []*notification.Correlation
}

// New returns an empty MemNotificationStore.
func New() *MemNotificationStore {
	return &MemNotificationStore{}
}

// AddAnomaly implements notification.Store.
func (s *MemNotificationStore) AddAnomaly(ctx context.Context, a *notification.Anomaly) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	for _, existing := range s.anomalies {
		if existing.SurveyID == a.SurveyID &&
			existing.SurveyItemID == a.SurveyItemID &&
			existing.Kind == a.Kind &&
			existing.Period == a.Period &&
			existing.From.Equal(a.From) {
			return false, nil
		}
	}
	cp := *a
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now.Now(ctx)
	}
	s.anomalies = append(s.anomalies, &cp)
	return true, nil
}

// AddCorrelation implements notification.Store.
func (s *MemNotificationStore) AddCorrelation(ctx context.Context, c *notification.Correlation) (bool, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	left, right := notification.OrderPair(c.Left, c.Right)
	for _, existing := range s.correlations {
		if existing.SurveyID != c.SurveyID || existing.Left != left || existing.Right != right {
			continue
		}
		if existing.CreatedAt.Before(c.From) {
			continue
		}
		if existing.Period == c.Period || existing.Value == c.Value {
			return false, nil
		}
	}
	cp := *c
	cp.Left = left
	cp.Right = right
	if cp.ID == "" {
		cp.ID = uuid.NewString()
	}
	if cp.CreatedAt.IsZero() {
		cp.CreatedAt = now.Now(ctx)
	}
	s.correlations = append(s.correlations, &cp)
	return true, nil
}

// ListAnomalies implements notification.Store.
func (s *MemNotificationStore) ListAnomalies(_ context.Context, surveyID types.SurveyID) ([]*notification.Anomaly, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*notification.Anomaly{}
	for _, a := range s.anomalies {
		if a.SurveyID != surveyID {
			continue
		}
		cp := *a
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].CreatedAt.After(ret[j].CreatedAt) })
	return ret, nil
}

// ListCorrelations implements notification.Store.
func (s *MemNotificationStore) ListCorrelations(_ context.Context, surveyID types.SurveyID) ([]*notification.Correlation, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*notification.Correlation{}
	for _, c := range s.correlations {
		if c.SurveyID != surveyID {
			continue
		}
		cp := *c
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].CreatedAt.After(ret[j].CreatedAt) })
	return ret, nil
}

// Confirm MemNotificationStore implements notification.Store.
var _ notification.Store = (*MemNotificationStore)(nil)
