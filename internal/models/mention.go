package models

type MentionRecord struct {
	ID        string `json:"id"`
	GroupName string `json:"groupName"`
	UserName  string `json:"userName"`
	Message   string `json:"message"`
	Keyword   string `json:"keyword"`
	Timestamp string `json:"timestamp"`
	IsLead    bool   `json:"isLead"`
	IsRead    bool   `json:"isRead,omitempty"`
}

// RefreshContent copies the display fields of src into the record.
// IsLead is intentionally left alone: lead state is reconciled against
// the mutation endpoint, never against redundant stream deliveries.
func (m *MentionRecord) RefreshContent(src *MentionRecord) {
	m.GroupName = src.GroupName
	m.UserName = src.UserName
	m.Message = src.Message
	m.Keyword = src.Keyword
	m.Timestamp = src.Timestamp
	m.IsRead = src.IsRead
}
