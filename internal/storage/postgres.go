package storage

import (
	"context"
	"fmt"
	"net"
	"net/url"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pgvector/pgvector-go"

	"github.com/bdougie/shotsearch/internal/attributes"
	"github.com/bdougie/shotsearch/internal/models"
)

// PostgresConfig holds connection details for PostgreSQL
type PostgresConfig struct {
	Host     string
	Port     string
	User     string
	Password string
	DBName   string
}

// ConnString builds a postgres:// URL from the config
func (c PostgresConfig) ConnString() string {
	u := url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.User, c.Password),
		Host:   net.JoinHostPort(c.Host, c.Port),
		Path:   "/" + c.DBName,
	}
	return u.String()
}

const postgresSchema = `
CREATE TABLE IF NOT EXISTS videos (
    id SERIAL PRIMARY KEY,
    video_id TEXT NOT NULL UNIQUE,
    video_path TEXT NOT NULL DEFAULT '',
    transcoded_path TEXT NOT NULL DEFAULT '',
    duration DOUBLE PRECISION NOT NULL DEFAULT 0,
    fps DOUBLE PRECISION NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS shots (
    id SERIAL PRIMARY KEY,
    video_id TEXT NOT NULL REFERENCES videos(video_id) ON DELETE CASCADE,
    shot_name TEXT NOT NULL,
    start_time DOUBLE PRECISION NOT NULL,
    end_time DOUBLE PRECISION NOT NULL,
    keyframe_time DOUBLE PRECISION NOT NULL DEFAULT 0,
    keyframe_path TEXT NOT NULL DEFAULT '',
    dominant_color TEXT NOT NULL DEFAULT '',
    brightness TEXT NOT NULL DEFAULT '',
    detected_objects JSONB NOT NULL DEFAULT '[]',
    UNIQUE(video_id, shot_name)
);

CREATE TABLE IF NOT EXISTS shot_embeddings (
    id SERIAL PRIMARY KEY,
    key TEXT NOT NULL UNIQUE,
    embedding vector(512) NOT NULL
);
`

const postgresIndexes = `
CREATE INDEX IF NOT EXISTS idx_shots_video_id ON shots(video_id);
CREATE INDEX IF NOT EXISTS idx_shot_embeddings_vector ON shot_embeddings USING ivfflat (embedding vector_ip_ops) WITH (lists = 100);
`

// PostgresStorage manages interaction with PostgreSQL
type PostgresStorage struct {
	pool *pgxpool.Pool
}

// NewPostgresStorage creates a new PostgreSQL storage connection
func NewPostgresStorage(ctx context.Context, config PostgresConfig) (*PostgresStorage, error) {
	pool, err := pgxpool.New(ctx, config.ConnString())
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	return &PostgresStorage{pool: pool}, nil
}

// Close closes the database connection
func (s *PostgresStorage) Close() error {
	if s.pool != nil {
		s.pool.Close()
	}
	return nil
}

// InitSchema creates the vector extension, tables and indexes if they don't exist
func (s *PostgresStorage) InitSchema(ctx context.Context) error {
	var exists bool
	err := s.pool.QueryRow(ctx,
		"SELECT EXISTS (SELECT 1 FROM pg_extension WHERE extname = 'vector')").Scan(&exists)
	if err != nil {
		return fmt.Errorf("failed to check for vector extension: %w", err)
	}

	if !exists {
		if _, err := s.pool.Exec(ctx, "CREATE EXTENSION IF NOT EXISTS vector"); err != nil {
			return fmt.Errorf("failed to create vector extension: %w", err)
		}
	}

	if _, err := s.pool.Exec(ctx, postgresSchema); err != nil {
		return fmt.Errorf("failed to create database schema: %w", err)
	}
	if _, err := s.pool.Exec(ctx, postgresIndexes); err != nil {
		return fmt.Errorf("failed to create database indexes: %w", err)
	}
	return nil
}

func (s *PostgresStorage) LoadVideos(ctx context.Context) ([]models.Video, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT video_id, video_path, transcoded_path, duration, fps FROM videos ORDER BY id`)
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

func (s *PostgresStorage) LoadShots(ctx context.Context) ([]models.Shot, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT video_id, shot_name, start_time, end_time, keyframe_time,
		       keyframe_path, dominant_color, brightness, detected_objects::text
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
			objects       string
		)
		if err := rows.Scan(&sh.VideoID, &sh.Name, &sh.Start, &sh.End, &sh.KeyframeTime,
			&sh.KeyframePath, &color, &bright, &objects); err != nil {
			return nil, fmt.Errorf("failed to scan shot: %w", err)
		}
		sh.Color = attributes.Color(color)
		sh.Brightness = attributes.Brightness(bright)
		sh.Objects = decodeObjects(objects)
		shots = append(shots, sh)
	}
	return shots, rows.Err()
}

func (s *PostgresStorage) LoadEmbeddings(ctx context.Context) ([]models.Embedding, error) {
	rows, err := s.pool.Query(ctx, `SELECT key, embedding FROM shot_embeddings ORDER BY id`)
	if err != nil {
		return nil, fmt.Errorf("failed to query embeddings: %w", err)
	}
	defer rows.Close()

	var embs []models.Embedding
	for rows.Next() {
		var (
			key string
			vec pgvector.Vector
		)
		if err := rows.Scan(&key, &vec); err != nil {
			return nil, fmt.Errorf("failed to scan embedding: %w", err)
		}
		embs = append(embs, models.Embedding{Key: key, Vector: vec.Slice()})
	}
	return embs, rows.Err()
}

// SaveVideos upserts videos in batches
func (s *PostgresStorage) SaveVideos(ctx context.Context, videos []models.Video) error {
	return s.sendBatches(ctx, len(videos), func(b *pgx.Batch, i int) {
		v := videos[i]
		b.Queue(`
			INSERT INTO videos (video_id, video_path, transcoded_path, duration, fps)
			VALUES ($1, $2, $3, $4, $5)
			ON CONFLICT (video_id) DO UPDATE SET
			    video_path = EXCLUDED.video_path,
			    transcoded_path = EXCLUDED.transcoded_path,
			    duration = EXCLUDED.duration,
			    fps = EXCLUDED.fps`,
			v.ID, v.Path, v.TranscodedPath, v.Duration, v.FPS)
	})
}

// SaveShots upserts shots in batches
func (s *PostgresStorage) SaveShots(ctx context.Context, shots []models.Shot) error {
	encoded := make([]string, len(shots))
	for i, sh := range shots {
		objects, err := encodeObjects(sh.Objects)
		if err != nil {
			return err
		}
		encoded[i] = objects
	}

	return s.sendBatches(ctx, len(shots), func(b *pgx.Batch, i int) {
		sh := shots[i]
		b.Queue(`
			INSERT INTO shots (
			    video_id, shot_name, start_time, end_time, keyframe_time,
			    keyframe_path, dominant_color, brightness, detected_objects
			) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb)
			ON CONFLICT (video_id, shot_name) DO UPDATE SET
			    start_time = EXCLUDED.start_time,
			    end_time = EXCLUDED.end_time,
			    keyframe_time = EXCLUDED.keyframe_time,
			    keyframe_path = EXCLUDED.keyframe_path,
			    dominant_color = EXCLUDED.dominant_color,
			    brightness = EXCLUDED.brightness,
			    detected_objects = EXCLUDED.detected_objects`,
			sh.VideoID, sh.Name, sh.Start, sh.End, sh.KeyframeTime,
			sh.KeyframePath, string(sh.Color), string(sh.Brightness), encoded[i])
	})
}

// SaveEmbeddings upserts embeddings in batches
func (s *PostgresStorage) SaveEmbeddings(ctx context.Context, embs []models.Embedding) error {
	return s.sendBatches(ctx, len(embs), func(b *pgx.Batch, i int) {
		e := embs[i]
		b.Queue(`
			INSERT INTO shot_embeddings (key, embedding) VALUES ($1, $2)
			ON CONFLICT (key) DO UPDATE SET embedding = EXCLUDED.embedding`,
			e.Key, pgvector.NewVector(e.Vector))
	})
}

// sendBatches queues n statements through queue, batchSize at a time
func (s *PostgresStorage) sendBatches(ctx context.Context, n int, queue func(*pgx.Batch, int)) error {
	for _, c := range chunks(n, batchSize) {
		batch := &pgx.Batch{}
		for i := c[0]; i < c[1]; i++ {
			queue(batch, i)
		}

		br := s.pool.SendBatch(ctx, batch)
		for i := c[0]; i < c[1]; i++ {
			if _, err := br.Exec(); err != nil {
				br.Close()
				return fmt.Errorf("failed to store row %d: %w", i, err)
			}
		}
		if err := br.Close(); err != nil {
			return fmt.Errorf("failed to close batch: %w", err)
		}
	}
	return nil
}
