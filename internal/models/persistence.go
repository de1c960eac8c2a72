package models

import "time"

// FeedSnapshot is the on-disk persistence envelope for the feed. It exists
// only for warm starts: the first stream init after boot replaces whatever
// was restored from it.
type FeedSnapshot struct {
	Version int              `json:"version"`
	ScopeID string           `json:"scope_id"`
	SavedAt time.Time        `json:"saved_at"`
	Records []*MentionRecord `json:"records"`
}

const FeedSnapshotVersion = 1
