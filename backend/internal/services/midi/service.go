package midi

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

var (
	ErrValidation      = errors.New("validation error")
	ErrInvalidID       = errors.New("invalid midi id")
	ErrInvalidFilename = errors.New("invalid filename")
	ErrNotFound        = errors.New("midi file not found")
	ErrNotMIDI         = errors.New("content is not a standard midi file")
	ErrTooLarge        = errors.New("midi file is too large")
	ErrUnavailable     = errors.New("upload history is unavailable")
)

const (
	// DefaultMaxBytes bounds uploads when no limit is configured.
	DefaultMaxBytes = 10 << 20
	listLimit       = 100
	midiHeader      = "MThd"
)

var unsafeIDChars = regexp.MustCompile(`[^\p{L}\p{M}\p{N}_\-.]`)

// searchDirs are the folders probed for a file requested by name.
var searchDirs = []string{"", "output", "miniapp"}

type UploadRecord struct {
	MIDIID    string
	Filename  string
	UserID    *int64
	Size      int64
	Storage   string
	CreatedAt time.Time
}

type UploadRecorder interface {
	RecordUpload(ctx context.Context, record UploadRecord) error
	ListUploads(ctx context.Context, userID int64, limit int) ([]UploadRecord, error)
}

type Service struct {
	storage  ObjectStorage
	recorder UploadRecorder
	maxBytes int64
	now      func() time.Time
	newID    func() string
}

type Loaded struct {
	MIDIID string
	Object ObjectInfo
	Data   []byte
}

type UploadInput struct {
	Filename string
	Body     io.Reader
	UserID   *int64
}

type UploadResult struct {
	MIDIID   string
	Filename string
	Size     int64
	UserID   *int64
}

func NewService(storage ObjectStorage, recorder UploadRecorder, maxBytes int64) *Service {
	if maxBytes <= 0 {
		maxBytes = DefaultMaxBytes
	}
	return &Service{
		storage:  storage,
		recorder: recorder,
		maxBytes: maxBytes,
		now:      time.Now,
		newID:    shortUUID,
	}
}

func (s *Service) StorageName() string {
	if s.storage == nil {
		return ""
	}
	return s.storage.Name()
}

func (s *Service) MaxBytes() int64 {
	return s.maxBytes
}

// SanitizeID drops every character outside letters, digits, "_", "-" and ".".
func SanitizeID(raw string) (string, error) {
	safe := unsafeIDChars.ReplaceAllString(raw, "")
	if safe == "" || strings.Trim(safe, ".") == "" {
		return "", ErrInvalidID
	}
	return safe, nil
}

// ValidateFilename rejects names that could leave the storage root.
func ValidateFilename(name string) error {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return ErrInvalidFilename
	}
	return nil
}

// Candidates lists the keys probed for a sanitized id, in lookup order.
func Candidates(safeID string) []string {
	return []string{
		safeID + ".mid",
		safeID + ".midi",
		safeID,
		"miniapp/" + safeID + ".mid",
		"output/" + safeID + ".mid",
	}
}

func hasMIDISuffix(key string) bool {
	ext := strings.ToLower(path.Ext(key))
	return ext == ".mid" || ext == ".midi"
}

// Resolve finds the first stored object matching a raw midi id.
func (s *Service) Resolve(ctx context.Context, rawID string) (ObjectInfo, string, error) {
	safeID, err := SanitizeID(rawID)
	if err != nil {
		return ObjectInfo{}, "", err
	}
	if s.storage == nil {
		return ObjectInfo{}, safeID, fmt.Errorf("midi storage is not configured")
	}

	for _, key := range Candidates(safeID) {
		if !hasMIDISuffix(key) {
			continue
		}
		info, err := s.storage.Stat(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return ObjectInfo{}, safeID, fmt.Errorf("stat %s: %w", key, err)
		}
		return info, safeID, nil
	}

	return ObjectInfo{}, safeID, ErrNotFound
}

// ResolveFilename finds a file requested by its exact name.
func (s *Service) ResolveFilename(ctx context.Context, name string) (ObjectInfo, error) {
	if err := ValidateFilename(name); err != nil {
		return ObjectInfo{}, err
	}
	if !hasMIDISuffix(name) {
		return ObjectInfo{}, ErrNotFound
	}
	if s.storage == nil {
		return ObjectInfo{}, fmt.Errorf("midi storage is not configured")
	}

	for _, dir := range searchDirs {
		key := path.Join(dir, name)
		info, err := s.storage.Stat(ctx, key)
		if err != nil {
			if errors.Is(err, ErrNotFound) {
				continue
			}
			return ObjectInfo{}, fmt.Errorf("stat %s: %w", key, err)
		}
		return info, nil
	}

	return ObjectInfo{}, ErrNotFound
}

func (s *Service) Open(ctx context.Context, info ObjectInfo) (io.ReadCloser, error) {
	rc, err := s.storage.Open(ctx, info.Key)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", info.Key, err)
	}
	return rc, nil
}

// Load resolves a midi id and reads the whole file.
func (s *Service) Load(ctx context.Context, rawID string) (Loaded, error) {
	info, safeID, err := s.Resolve(ctx, rawID)
	if err != nil {
		return Loaded{MIDIID: safeID}, err
	}

	rc, err := s.Open(ctx, info)
	if err != nil {
		return Loaded{MIDIID: safeID}, err
	}
	defer rc.Close()

	data, err := io.ReadAll(rc)
	if err != nil {
		return Loaded{MIDIID: safeID}, fmt.Errorf("read %s: %w", info.Key, err)
	}
	info.Size = int64(len(data))

	return Loaded{MIDIID: safeID, Object: info, Data: data}, nil
}

// Upload stores a standard MIDI file under a fresh id derived from its name.
func (s *Service) Upload(ctx context.Context, in UploadInput) (UploadResult, error) {
	if strings.TrimSpace(in.Filename) == "" || in.Body == nil {
		return UploadResult{}, ErrValidation
	}
	if s.storage == nil {
		return UploadResult{}, fmt.Errorf("midi storage is not configured")
	}

	data, err := io.ReadAll(io.LimitReader(in.Body, s.maxBytes+1))
	if err != nil {
		return UploadResult{}, fmt.Errorf("read upload: %w", err)
	}
	if int64(len(data)) > s.maxBytes {
		return UploadResult{}, ErrTooLarge
	}
	if !bytes.HasPrefix(data, []byte(midiHeader)) {
		return UploadResult{}, ErrNotMIDI
	}

	midiID := uploadStem(in.Filename) + "_" + s.newID()
	key := midiID + ".mid"

	if err := s.storage.Put(ctx, key, bytes.NewReader(data), int64(len(data))); err != nil {
		return UploadResult{}, fmt.Errorf("put object: %w", err)
	}

	if s.recorder != nil {
		record := UploadRecord{
			MIDIID:    midiID,
			Filename:  key,
			UserID:    in.UserID,
			Size:      int64(len(data)),
			Storage:   s.storage.Name(),
			CreatedAt: s.now().UTC(),
		}
		if err := s.recorder.RecordUpload(ctx, record); err != nil {
			_ = s.storage.Delete(ctx, key)
			return UploadResult{}, fmt.Errorf("record upload: %w", err)
		}
	}

	return UploadResult{
		MIDIID:   midiID,
		Filename: key,
		Size:     int64(len(data)),
		UserID:   in.UserID,
	}, nil
}

// List returns stored .mid files, capped at 100.
func (s *Service) List(ctx context.Context) ([]ObjectInfo, error) {
	if s.storage == nil {
		return nil, fmt.Errorf("midi storage is not configured")
	}
	items, err := s.storage.List(ctx, ".mid", listLimit)
	if err != nil {
		return nil, fmt.Errorf("list objects: %w", err)
	}
	return items, nil
}

func (s *Service) Uploads(ctx context.Context, userID int64, limit int) ([]UploadRecord, error) {
	if s.recorder == nil {
		return nil, ErrUnavailable
	}
	if limit <= 0 || limit > listLimit {
		limit = listLimit
	}
	records, err := s.recorder.ListUploads(ctx, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("list uploads: %w", err)
	}
	return records, nil
}

func uploadStem(filename string) string {
	base := path.Base(strings.ReplaceAll(filename, `\`, "/"))
	stem := strings.TrimSuffix(base, path.Ext(base))
	stem = unsafeIDChars.ReplaceAllString(stem, "")
	if strings.Trim(stem, ".") == "" {
		return "midi"
	}
	return stem
}

func shortUUID() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")[:8]
}
