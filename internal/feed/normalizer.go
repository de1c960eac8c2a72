package feed

import (
	"strings"

	"github.com/spf13/cast"

	"mentiond/internal/models"
)

// Normalize converts a loose wire payload into the canonical mention
// record. Both transports funnel through here, so the store never sees a
// partially-shaped record. A payload without a non-empty id yields nil
// and is dropped by the caller.
func Normalize(raw map[string]interface{}) *models.MentionRecord {
	if raw == nil {
		return nil
	}
	id := strings.TrimSpace(cast.ToString(raw["id"]))
	if id == "" {
		return nil
	}
	return &models.MentionRecord{
		ID:        id,
		GroupName: cast.ToString(raw["groupName"]),
		UserName:  cast.ToString(raw["userName"]),
		Message:   cast.ToString(raw["message"]),
		Keyword:   cast.ToString(raw["keyword"]),
		Timestamp: cast.ToString(raw["timestamp"]),
		IsLead:    cast.ToBool(raw["isLead"]),
		IsRead:    cast.ToBool(raw["isRead"]),
	}
}

func NormalizeAll(raw []map[string]interface{}) []*models.MentionRecord {
	records := make([]*models.MentionRecord, 0, len(raw))
	for _, item := range raw {
		if rec := Normalize(item); rec != nil {
			records = append(records, rec)
		}
	}
	return records
}
