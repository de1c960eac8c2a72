package models

import "sync"

// FeedStore holds the live mention feed: one record per id, ordered by
// insertion with the newest at the head. Order never depends on the
// display timestamp string.
type FeedStore struct {
	mu    sync.RWMutex
	order []string
	index map[string]*MentionRecord
}

func NewFeedStore() *FeedStore {
	return &FeedStore{
		index: make(map[string]*MentionRecord),
	}
}

// Upsert inserts a new record at the head or refreshes an existing one in
// place. Position is never changed for known ids. Returns true when the
// record was new.
func (s *FeedStore) Upsert(rec *MentionRecord) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if rec == nil || rec.ID == "" {
		return false
	}

	if existing, ok := s.index[rec.ID]; ok {
		existing.RefreshContent(rec)
		return false
	}

	copy := *rec
	s.index[rec.ID] = &copy
	s.order = append([]string{rec.ID}, s.order...)
	return true
}

// Replace swaps the entire feed for the given records, keeping their order.
// Duplicated ids keep the first occurrence.
func (s *FeedStore) Replace(records []*MentionRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.order = s.order[:0]
	s.index = make(map[string]*MentionRecord, len(records))
	for _, rec := range records {
		if rec == nil || rec.ID == "" {
			continue
		}
		if _, ok := s.index[rec.ID]; ok {
			continue
		}
		copy := *rec
		s.index[rec.ID] = &copy
		s.order = append(s.order, rec.ID)
	}
}

func (s *FeedStore) Get(id string) (*MentionRecord, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.index[id]
	if !ok {
		return nil, false
	}
	copy := *rec
	return &copy, true
}

// SetLead updates the lead flag in place and reports the previous value.
// The record keeps its position.
func (s *FeedStore) SetLead(id string, lead bool) (bool, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.index[id]
	if !ok {
		return false, false
	}
	prev := rec.IsLead
	rec.IsLead = lead
	return prev, true
}

func (s *FeedStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.order)
}

// Snapshot returns a copy of the feed in display order (newest first).
func (s *FeedStore) Snapshot() []*MentionRecord {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]*MentionRecord, 0, len(s.order))
	for _, id := range s.order {
		rec, ok := s.index[id]
		if !ok {
			continue
		}
		copy := *rec
		result = append(result, &copy)
	}
	return result
}

func (s *FeedStore) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.order = s.order[:0]
	s.index = make(map[string]*MentionRecord)
}
