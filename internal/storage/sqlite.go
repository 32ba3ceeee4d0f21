package storage

import (
	"context"
	"database/sql"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

// ErrInvalidVector is returned for a stored vector blob that cannot be decoded.
var ErrInvalidVector = errors.New("invalid vector blob")

const sqliteSchema = `
CREATE TABLE IF NOT EXISTS videos (
    video_id TEXT PRIMARY KEY,
    video_path TEXT NOT NULL DEFAULT '',
    transcoded_path TEXT NOT NULL DEFAULT '',
    duration REAL NOT NULL DEFAULT 0,
    fps REAL NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS shots (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    video_id TEXT NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    shot_name TEXT NOT NULL,
    start_time REAL NOT NULL,
    end_time REAL NOT NULL,
    keyframe_time REAL NOT NULL DEFAULT 0,
    keyframe_path TEXT NOT NULL DEFAULT '',
    brightness TEXT NOT NULL DEFAULT '',
    dominant_color TEXT NOT NULL DEFAULT '',
    detected_objects TEXT NOT NULL DEFAULT '[]',
    UNIQUE(video_id, shot_name)
);

CREATE TABLE IF NOT EXISTS embeddings (
    key TEXT PRIMARY KEY,
    vector BLOB NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_shots_video_id ON shots(video_id);
`

// SQLiteStorage reads and writes the catalog layout of video_analysis.db,
// with keyframe embeddings kept alongside in their own table.
type SQLiteStorage struct {
	db *sql.DB
}

// NewSQLiteStorage opens the database at path
func NewSQLiteStorage(ctx context.Context, path string) (*SQLiteStorage, error) {
	dsn := path + "?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)&_pragma=foreign_keys(1)"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return &SQLiteStorage{db: db}, nil
}

// InitSchema creates the tables if they don't exist
func (s *SQLiteStorage) InitSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, sqliteSchema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

func (s *SQLiteStorage) LoadVideos(ctx context.Context) ([]models.Video, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT video_id, video_path, transcoded_path, duration, fps FROM videos ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query videos: %w", err)
	}
	defer rows.Close()

	var videos []models.Video
	for rows.Next() {
		var v models.Video
		if err := rows.Scan(&v.ID, &v.Path, &v.TranscodedPath, &v.Duration, &v.FPS); err != nil {
			return nil, fmt.Errorf("failed to scan video: %w", err)
		}
		videos = append(videos, v)
	}
	return videos, rows.Err()
}

func (s *SQLiteStorage) LoadShots(ctx context.Context) ([]models.Shot, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT video_id, shot_name, start_time, end_time, keyframe_time,
		       keyframe_path, dominant_color, brightness, detected_objects
		FROM shots ORDER BY video_id, start_time, id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query shots: %w", err)
	}
	defer rows.Close()

	var shots []models.Shot
	for rows.Next() {
		var (
			sh            models.Shot
			color, bright string
			objects       sql.NullString
		)
		if err := rows.Scan(&sh.VideoID, &sh.Name, &sh.Start, &sh.End, &sh.KeyframeTime,
			&sh.KeyframePath, &color, &bright, &objects); err != nil {
			return nil, fmt.Errorf("failed to scan shot: %w", err)
		}
		sh.Color = attributes.Color(color)
		sh.Brightness = attributes.Brightness(bright)
		sh.Objects = decodeObjects(objects.String)
		shots = append(shots, sh)
	}
	return shots, rows.Err()
}

func (s *SQLiteStorage) LoadEmbeddings(ctx context.Context) ([]models.Embedding, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT key, vector FROM embeddings ORDER BY rowid`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var embs []models.Embedding
	for rows.Next() {
		var (
			key  string
			blob []byte
		)
		if err := rows.Scan(&key, &blob); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		vec, err := decodeVector(blob)
		if err != nil {
			return nil, fmt.Errorf("embedding %s: %w", key, err)
		}
		embs = append(embs, models.Embedding{Key: key, Vector: vec})
	}
	return embs, rows.Err()
}

func (s *SQLiteStorage) SaveVideos(ctx context.Context, videos []models.Video) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO videos (video_id, video_path, transcoded_path, duration, fps)
			VALUES (?, ?, ?, ?, ?)
			ON CONFLICT(video_id) DO UPDATE SET
			    video_path = excluded.video_path,
			    transcoded_path = excluded.transcoded_path,
			    duration = excluded.duration,
			    fps = excluded.fps`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, v := range videos {
			if _, err := stmt.ExecContext(ctx, v.ID, v.Path, v.TranscodedPath, v.Duration, v.FPS); err != nil {
				return fmt.Errorf("failed to store video %s: %w", v.ID, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) SaveShots(ctx context.Context, shots []models.Shot) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO shots (
			    video_id, shot_name, start_time, end_time, keyframe_time,
			    keyframe_path, dominant_color, brightness, detected_objects
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
			ON CONFLICT(video_id, shot_name) DO UPDATE SET
			    start_time = excluded.start_time,
			    end_time = excluded.end_time,
			    keyframe_time = excluded.keyframe_time,
			    keyframe_path = excluded.keyframe_path,
			    dominant_color = excluded.dominant_color,
			    brightness = excluded.brightness,
			    detected_objects = excluded.detected_objects`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, sh := range shots {
			objects, err := encodeObjects(sh.Objects)
			if err != nil {
				return err
			}
			if _, err := stmt.ExecContext(ctx, sh.VideoID, sh.Name, sh.Start, sh.End, sh.KeyframeTime,
				sh.KeyframePath, string(sh.Color), string(sh.Brightness), objects); err != nil {
				return fmt.Errorf("failed to store shot %s/%s: %w", sh.VideoID, sh.Name, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) SaveEmbeddings(ctx context.Context, embs []models.Embedding) error {
	return s.inTx(ctx, func(tx *sql.Tx) error {
		stmt, err := tx.PrepareContext(ctx, `
			INSERT INTO embeddings (key, vector) VALUES (?, ?)
			ON CONFLICT(key) DO UPDATE SET vector = excluded.vector`)
		if err != nil {
			return err
		}
		defer stmt.Close()
		for _, e := range embs {
			if _, err := stmt.ExecContext(ctx, e.Key, encodeVector(e.Vector)); err != nil {
				return fmt.Errorf("failed to store embedding %s: %w", e.Key, err)
			}
		}
		return nil
	})
}

func (s *SQLiteStorage) inTx(ctx context.Context, fn func(*sql.Tx) error) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	if err := fn(tx); err != nil {
		tx.Rollback()
		return err
	}
	return tx.Commit()
}

// decodeObjects reads the detected_objects column, which holds either a JSON
// list or a delimited string. An unreadable value yields an empty set.
func decodeObjects(field string) attributes.Set {
	raw, err := attributes.ParseRaw(field)
	if err != nil {
		return attributes.Set{}
	}
	return attributes.Normalize(raw)
}

func encodeObjects(objects attributes.Set) (string, error) {
	if objects == nil {
		objects = attributes.Set{}
	}
	data, err := json.Marshal([]string(objects))
	if err != nil {
		return "", fmt.Errorf("failed to encode detected objects: %w", err)
	}
	return string(data), nil
}

// encodeVector writes an int32 element count followed by the float32 values,
// all little-endian.
func encodeVector(vec []float32) []byte {
	buf := make([]byte, 4+4*len(vec))
	binary.LittleEndian.PutUint32(buf, uint32(len(vec)))
	for i, f := range vec {
		binary.LittleEndian.PutUint32(buf[4+4*i:], math.Float32bits(f))
	}
	return buf
}

func decodeVector(data []byte) ([]float32, error) {
	if len(data) < 4 {
		return nil, ErrInvalidVector
	}
	n := int(int32(binary.LittleEndian.Uint32(data)))
	if n < 0 || len(data)-4 != 4*n {
		return nil, fmt.Errorf("%w: %d bytes for %d values", ErrInvalidVector, len(data)-4, n)
	}
	vec := make([]float32, n)
	for i := range vec {
		vec[i] = math.Float32frombits(binary.LittleEndian.Uint32(data[4+4*i:]))
	}
	return vec, nil
}
