package dto

type MeResponse struct {
	OK           bool           `json:"ok"`
	ID           int64          `json:"id"`
	User         map[string]any `json:"user"`
	IsAdmin      bool           `json:"is_admin"`
	AuthDate     *int64         `json:"auth_date,omitempty"`
	ChatType     string         `json:"chat_type,omitempty"`
	ChatInstance string         `json:"chat_instance,omitempty"`
}

type HealthResponse struct {
	Status  string `json:"status"`
	Storage string `json:"storage"`
}
