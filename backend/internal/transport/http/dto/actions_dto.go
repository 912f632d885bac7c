package dto

type ActionItem struct {
	Time   string            `json:"time"`
	UserID int64             `json:"user_id"`
	Action string            `json:"action"`
	Detail string            `json:"detail,omitempty"`
	Fields map[string]string `json:"fields,omitempty"`
}

type ActionsResponse struct {
	OK     bool         `json:"ok"`
	Items  []ActionItem `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}
