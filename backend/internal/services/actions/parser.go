package actions

import (
	"bufio"
	"io"
	"strconv"
	"strings"
	"time"
)

// TimeLayout is the timestamp layout at the start of every log line.
const TimeLayout = "2006-01-02 15:04:05"

const maxLineBytes = 1 << 20

// Record is one parsed line of the action log:
//
//	2024-05-01 12:00:00 | user=371331803 | action=convert | file=song.wav notes=412
type Record struct {
	Time   time.Time
	UserID int64
	Action string
	Detail string
	Fields map[string]string
}

// ParseLine parses a single log line. Timestamps are read as UTC.
func ParseLine(line string) (Record, bool) {
	parts := strings.SplitN(strings.TrimSpace(line), "|", 4)
	if len(parts) < 3 {
		return Record{}, false
	}

	ts, err := time.ParseInLocation(TimeLayout, strings.TrimSpace(parts[0]), time.UTC)
	if err != nil {
		return Record{}, false
	}

	rawUser, ok := strings.CutPrefix(strings.TrimSpace(parts[1]), "user=")
	if !ok {
		return Record{}, false
	}
	userID, err := strconv.ParseInt(rawUser, 10, 64)
	if err != nil {
		return Record{}, false
	}

	action, ok := strings.CutPrefix(strings.TrimSpace(parts[2]), "action=")
	if !ok || action == "" {
		return Record{}, false
	}

	rec := Record{
		Time:   ts,
		UserID: userID,
		Action: action,
		Fields: map[string]string{},
	}
	if len(parts) == 4 {
		rec.Detail = strings.TrimSpace(parts[3])
		for _, token := range strings.Fields(rec.Detail) {
			key, value, found := strings.Cut(token, "=")
			if !found || key == "" {
				continue
			}
			if _, exists := rec.Fields[key]; !exists {
				rec.Fields[key] = value
			}
		}
	}

	return rec, true
}

// Parse reads every line of r. Blank lines are ignored; lines that do not
// parse are counted in skipped.
func Parse(r io.Reader) ([]Record, int, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		records []Record
		skipped int
	)
	for scanner.Scan() {
		line := scanner.Text()
		if strings.TrimSpace(line) == "" {
			continue
		}
		rec, ok := ParseLine(line)
		if !ok {
			skipped++
			continue
		}
		records = append(records, rec)
	}
	if err := scanner.Err(); err != nil {
		return nil, skipped, err
	}
	return records, skipped, nil
}
