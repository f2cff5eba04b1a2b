// Package memsurveystore implements survey.Store in memory.
package memsurveystore

import (
	"context"
	"sort"
	"sync"

	"go.pollpulse.org/infra/insights/go/survey"
	"go.pollpulse.org/infra/insights/go/types"
)

// MemSurveyStore implements survey.Store.
type MemSurveyStore struct {
	mutex   sync.Mutex
	surveys map[types.SurveyID]*types.Survey
	items   map[types.SurveyItemID]*types.SurveyItem
}

// New returns an empty MemSurveyStore.
func New() *MemSurveyStore {
	return &MemSurveyStore{
		surveys: map[types.SurveyID]*types.Survey{},
		items:   map[types.SurveyItemID]*types.SurveyItem{},
	}
}

// PutSurvey implements survey.Store.
func (s *MemSurveyStore) PutSurvey(_ context.Context, sv *types.Survey) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *sv
	s.surveys[sv.ID] = &cp
	return nil
}

// PutItem implements survey.Store.
func (s *MemSurveyStore) PutItem(_ context.Context, item *types.SurveyItem) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	cp := *item
	s.items[item.ID] = &cp
	return nil
}

// Scan implements survey.Store.
func (s *MemSurveyStore) Scan(ctx context.Context, cb func(ctx context.Context, sv *types.Survey) error) error {
	s.mutex.Lock()
	all := make([]*types.Survey, 0, len(s.surveys))
	for _, sv := range s.surveys {
		cp := *sv
		all = append(all, &cp)
	}
	s.mutex.Unlock()
	sort.Slice(all, func(i, j int) bool { return all[i].ID < all[j].ID })
	for _, sv := range all {
		if err := cb(ctx, sv); err != nil {
			return err
		}
	}
	return nil
}

// Get implements survey.Store.
func (s *MemSurveyStore) Get(_ context.Context, id types.SurveyID) (*types.Survey, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	sv, ok := s.surveys[id]
	if !ok {
		return nil, survey.ErrNotFound
	}
	cp := *sv
	return &cp, nil
}

// Items implements survey.Store.
func (s *MemSurveyStore) Items(_ context.Context, surveyID types.SurveyID) ([]*types.SurveyItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*types.SurveyItem{}
	for _, item := range s.items {
		if item.SurveyID != surveyID {
			continue
		}
		cp := *item
		ret = append(ret, &cp)
	}
	sort.Slice(ret, func(i, j int) bool { return ret[i].ID < ret[j].ID })
	return ret, nil
}

// Item implements survey.Store.
func (s *MemSurveyStore) Item(_ context.Context, id types.SurveyItemID) (*types.SurveyItem, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	item, ok := s.items[id]
	if !ok {
		return nil, survey.ErrNotFound
	}
	cp := *item
	return &cp, nil
}

// Confirm MemSurveyStore implements survey.Store.
var _ survey.Store = (*MemSurveyStore)(nil)
