// Package memresponsestore implements response.Store in memory.
package memresponsestore

import (
	"context"
	"sync"

	"go.pollpulse.org/infra/insights/go/periods"
	"go.pollpulse.org/infra/insights/go/response"
	"go.pollpulse.org/infra/insights/go/types"
)

// MemResponseStore implements response.Store.
type MemResponseStore struct {
	mutex     sync.Mutex
	responses map[types.ResponseID]*types.Response
}

// New returns an empty MemResponseStore.
func New() *MemResponseStore {
	return &MemResponseStore{
		responses: map[types.ResponseID]*types.Response{},
	}
}

// Add implements response.Store.
func (s *MemResponseStore) Add(_ context.Context, r *types.Response) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *r
	s.responses[r.ID] = &cp
	return nil
}

// Delete implements response.Store.
func (s *MemResponseStore) Delete(_ context.Context, id types.ResponseID) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.responses, id)
	return nil
}

// ForBucketAndItem implements response.Store.
func (s *MemResponseStore) ForBucketAndItem(_ context.Context, f response.Filter) ([]*types.Response, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*types.Response{}
	for _, r := range s.responses {
		if response.MatchesFilter(r, f) {
			ret = append(ret, r)
		}
	}
	return ret, nil
}

// WindowStats implements response.Store.
func (s *MemResponseStore) WindowStats(_ context.Context, surveyID types.SurveyID, w periods.Window) (response.WindowStats, error) {
	return response.StatsFrom(s.inWindow(surveyID, w)), nil
}

// PairedValues implements response.Store.
func (s *MemResponseStore) PairedValues(_ context.Context, surveyID types.SurveyID, w periods.Window) ([]map[types.SurveyItemID]float64, error) {
	ret := []map[types.SurveyItemID]float64{}
	for _, r := range s.inWindow(surveyID, w) {
		if values := response.ValuesFrom(r); values != nil {
			ret = append(ret, values)
		}
	}
	return ret, nil
}

// AnyInWindow implements response.Store.
func (s *MemResponseStore) AnyInWindow(_ context.Context, surveyID types.SurveyID, w periods.Window) (bool, error) {
	return len(s.inWindow(surveyID, w)) > 0, nil
}

func (s *MemResponseStore) inWindow(surveyID types.SurveyID, w periods.Window) []*types.Response {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*types.Response{}
	for _, r := range s.responses {
		if r.SurveyID != surveyID || !response.Countable(r) || !w.Contains(r.CreatedAt) {
			continue
		}
		ret = append(ret, r)
	}
	return ret
}

// Confirm MemResponseStore implements response.Store.
var _ response.Store = (*MemResponseStore)(nil)
