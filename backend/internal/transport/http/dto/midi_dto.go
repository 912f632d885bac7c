package dto

import "time"

type OKErrorResponse struct {
	OK    bool   `json:"ok"`
	Error string `json:"error"`
}

type MIDINotFoundResponse struct {
	OK       bool     `json:"ok"`
	Error    string   `json:"error"`
	Searched []string `json:"searched"`
}

type LatestMIDIResponse struct {
	OK       bool   `json:"ok"`
	Filename string `json:"filename"`
	MIDIID   string `json:"midi_id"`
	Size     int64  `json:"size"`
	Data     string `json:"data"`
}

type UploadMIDIResponse struct {
	OK       bool   `json:"ok"`
	MIDIID   string `json:"midi_id"`
	Filename string `json:"filename"`
	Size     int64  `json:"size"`
	UserID   *int64 `json:"user_id"`
}

type MIDIFileItem struct {
	Name string `json:"name"`
	Path string `json:"path"`
	Size int64  `json:"size"`
}

type MIDIListResponse struct {
	OK    bool           `json:"ok"`
	Files []MIDIFileItem `json:"files"`
}

type UploadItem struct {
	MIDIID    string    `json:"midi_id"`
	Filename  string    `json:"filename"`
	Size      int64     `json:"size"`
	Storage   string    `json:"storage"`
	CreatedAt time.Time `json:"created_at"`
}

type UploadsResponse struct {
	OK     bool         `json:"ok"`
	UserID int64        `json:"user_id"`
	Items  []UploadItem `json:"items"`
}
