// Package memstatstore implements statistics.Store in memory. It backs tests
// and small local instances.
package memstatstore

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"go.pollpulse.org/infra/insights/go/statistics"
	"go.pollpulse.org/infra/insights/go/tally"
	"go.pollpulse.org/infra/insights/go/types"
)

// MemStatStore implements statistics.Store.
type MemStatStore struct {
	mutex   sync.Mutex
	records map[string]*statistics.Record
}

// New returns an empty MemStatStore.
func New() *MemStatStore {
	return &MemStatStore{
		records: map[string]*statistics.Record{},
	}
}

func key(itemID types.SurveyItemID, bucket time.Time, dims types.Dimensions) string {
	return fmt.Sprintf("%s/%d/%s", itemID, bucket.UTC().Unix(), dims.Key())
}

// Touch implements statistics.Store.
func (s *MemStatStore) Touch(_ context.Context, surveyID types.SurveyID, itemID types.SurveyItemID, bucket time.Time, dims types.Dimensions) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	k := key(itemID, bucket, dims)
	if existing, ok := s.records[k]; ok {
		existing.Synced = false
		return nil
	}
	s.records[k] = &statistics.Record{
		SurveyID:     surveyID,
		SurveyItemID: itemID,
		TimeBucket:   bucket.UTC(),
		Dimensions:   dims,
		Tally:        tally.New(),
	}
	return nil
}

// ListUnsynced implements statistics.Store.
func (s *MemStatStore) ListUnsynced(_ context.Context, limit int) ([]*statistics.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*statistics.Record{}
	for _, r := range s.records {
		if !r.Synced {
			ret = append(ret, copyRecord(r))
		}
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].TimeBucket.Before(ret[j].TimeBucket)
	})
	if len(ret) > limit {
		ret = ret[:limit]
	}
	return ret, nil
}

// Update implements statistics.Store.
func (s *MemStatStore) Update(_ context.Context, r *statistics.Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	s.records[key(r.SurveyItemID, r.TimeBucket, r.Dimensions)] = copyRecord(r)
	return nil
}

// Delete implements statistics.Store.
func (s *MemStatStore) Delete(_ context.Context, r *statistics.Record) error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	delete(s.records, key(r.SurveyItemID, r.TimeBucket, r.Dimensions))
	return nil
}

// Range implements statistics.Store.
func (s *MemStatStore) Range(_ context.Context, itemID types.SurveyItemID, from, to time.Time) ([]*statistics.Record, error) {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	ret := []*statistics.Record{}
	for _, r := range s.records {
		if r.SurveyItemID != itemID || !r.Synced || !r.Dimensions.IsZero() {
			continue
		}
		if r.TimeBucket.Before(from) || !r.TimeBucket.Before(to) {
			continue
		}
		ret = append(ret, copyRecord(r))
	}
	sort.Slice(ret, func(i, j int) bool {
		return ret[i].TimeBucket.Before(ret[j].TimeBucket)
	})
	return ret, nil
}

// Get returns the stored record for the given identity, or nil. Test helper.
func (s *MemStatStore) Get(itemID types.SurveyItemID, bucket time.Time, dims types.Dimensions) *statistics.Record {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	r, ok := s.records[key(itemID, bucket, dims)]
	if !ok {
		return nil
	}
	return copyRecord(r)
}

// Len returns the number of stored records. Test helper.
func (s *MemStatStore) Len() int {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return len(s.records)
}

func copyRecord(r *statistics.Record) *statistics.Record {
	cp := *r
	cp.Tally = tally.New()
	cp.Tally.AddAll(r.Tally)
	return &cp
}

// Confirm MemStatStore implements statistics.Store.
var _ statistics.Store = (*MemStatStore)(nil)
