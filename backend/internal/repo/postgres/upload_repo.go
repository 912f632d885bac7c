package postgres

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"

	midisvc "github.com/Audio2MIDI/audio2midi-miniapp/backend/internal/services/midi"
)

const createUploadsTable = `
CREATE TABLE IF NOT EXISTS midi_uploads (
	id BIGSERIAL PRIMARY KEY,
	midi_id TEXT NOT NULL UNIQUE,
	filename TEXT NOT NULL,
	user_id BIGINT,
	size_bytes BIGINT NOT NULL,
	storage TEXT NOT NULL,
	created_at TIMESTAMPTZ NOT NULL DEFAULT now()
)`

const createUploadsUserIndex = `
CREATE INDEX IF NOT EXISTS midi_uploads_user_created_idx
ON midi_uploads (user_id, created_at DESC)`

// UploadRepo keeps the history of uploaded MIDI files.
type UploadRepo struct {
	db PgxPool
}

func NewUploadRepo(db PgxPool) *UploadRepo {
	return &UploadRepo{db: db}
}

func (r *UploadRepo) EnsureSchema(ctx context.Context) error {
	return inTx(ctx, r.db, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, createUploadsTable); err != nil {
			return fmt.Errorf("create midi_uploads: %w", err)
		}
		if _, err := tx.Exec(ctx, createUploadsUserIndex); err != nil {
			return fmt.Errorf("create midi_uploads index: %w", err)
		}
		return nil
	})
}

func (r *UploadRepo) RecordUpload(ctx context.Context, record midisvc.UploadRecord) error {
	if r.db == nil {
		return fmt.Errorf("postgres pool is nil")
	}

	_, err := r.db.Exec(ctx, `
INSERT INTO midi_uploads (midi_id, filename, user_id, size_bytes, storage, created_at)
VALUES ($1, $2, $3, $4, $5, $6)
`, record.MIDIID, record.Filename, record.UserID, record.Size, record.Storage, record.CreatedAt)
	if err != nil {
		return fmt.Errorf("insert midi upload: %w", err)
	}
	return nil
}

func (r *UploadRepo) ListUploads(ctx context.Context, userID int64, limit int) ([]midisvc.UploadRecord, error) {
	if r.db == nil {
		return nil, fmt.Errorf("postgres pool is nil")
	}

	rows, err := r.db.Query(ctx, `
SELECT midi_id, filename, size_bytes, storage, created_at
FROM midi_uploads
WHERE user_id = $1
ORDER BY created_at DESC, id DESC
LIMIT $2
`, userID, limit)
	if err != nil {
		return nil, fmt.Errorf("query midi uploads: %w", err)
	}
	defer rows.Close()

	out := make([]midisvc.UploadRecord, 0, limit)
	for rows.Next() {
		var rec midisvc.UploadRecord
		if err := rows.Scan(&rec.MIDIID, &rec.Filename, &rec.Size, &rec.Storage, &rec.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan midi upload: %w", err)
		}
		uid := userID
		rec.UserID = &uid
		out = append(out, rec)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate midi uploads: %w", err)
	}

	return out, nil
}
