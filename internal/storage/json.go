package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/bdougie/shotsearch/internal/catalog"
	"github.com/bdougie/shotsearch/internal/models"
)

// catalogFile is the on-disk layout of the catalog document
type catalogFile struct {
	Videos []models.Video `json:"videos"`
	Shots  []models.Shot  `json:"shots"`
}

// JSONStorage keeps the catalog and the embeddings in two JSON documents.
// A missing file reads as empty.
type JSONStorage struct {
	mu             sync.Mutex
	catalogPath    string
	embeddingsPath string
}

// NewJSONStorage creates a file backed store
func NewJSONStorage(catalogPath, embeddingsPath string) *JSONStorage {
	return &JSONStorage{
		catalogPath:    catalogPath,
		embeddingsPath: embeddingsPath,
	}
}

// InitSchema creates the parent directories of both documents
func (s *JSONStorage) InitSchema(ctx context.Context) error {
	for _, p := range []string{s.catalogPath, s.embeddingsPath} {
		if err := os.MkdirAll(filepath.Dir(p), 0755); err != nil {
			return fmt.Errorf("failed to create directory for %s: %w", p, err)
		}
	}
	return nil
}

func (s *JSONStorage) LoadVideos(ctx context.Context) ([]models.Video, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readCatalog()
	if err != nil {
		return nil, err
	}
	return doc.Videos, nil
}

func (s *JSONStorage) LoadShots(ctx context.Context) ([]models.Shot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readCatalog()
	if err != nil {
		return nil, err
	}
	sortShots(doc.Shots)
	return doc.Shots, nil
}

func (s *JSONStorage) LoadEmbeddings(ctx context.Context) ([]models.Embedding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var embs []models.Embedding
	if err := readJSON(s.embeddingsPath, &embs); err != nil {
		return nil, err
	}
	return embs, nil
}

// SaveVideos upserts videos by id, keeping the position of existing entries
func (s *JSONStorage) SaveVideos(ctx context.Context, videos []models.Video) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readCatalog()
	if err != nil {
		return err
	}
	doc.Videos = upsert(doc.Videos, videos, func(v models.Video) string { return v.ID })
	return writeJSON(s.catalogPath, doc)
}

// SaveShots upserts shots by composite key
func (s *JSONStorage) SaveShots(ctx context.Context, shots []models.Shot) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	doc, err := s.readCatalog()
	if err != nil {
		return err
	}
	doc.Shots = upsert(doc.Shots, shots, func(sh models.Shot) string {
		return catalog.JoinKey(sh.VideoID, sh.Name)
	})
	return writeJSON(s.catalogPath, doc)
}

// SaveEmbeddings upserts embeddings by key
func (s *JSONStorage) SaveEmbeddings(ctx context.Context, embs []models.Embedding) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	var existing []models.Embedding
	if err := readJSON(s.embeddingsPath, &existing); err != nil {
		return err
	}
	existing = upsert(existing, embs, func(e models.Embedding) string { return e.Key })
	return writeJSON(s.embeddingsPath, existing)
}

// Close is a no-op; every save is written through
func (s *JSONStorage) Close() error {
	return nil
}

func (s *JSONStorage) readCatalog() (*catalogFile, error) {
	var doc catalogFile
	if err := readJSON(s.catalogPath, &doc); err != nil {
		return nil, err
	}
	return &doc, nil
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("failed to unmarshal %s: %w", path, err)
	}
	return nil
}

func writeJSON(path string, v any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	tmp := path + ".tmp"
	file, err := os.Create(tmp)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", tmp, err)
	}
	if err := json.NewEncoder(file).Encode(v); err != nil {
		file.Close()
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	if err := file.Close(); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}

// upsert replaces items of dst whose key appears in src and appends the rest.
func upsert[T any](dst, src []T, key func(T) string) []T {
	pos := make(map[string]int, len(dst))
	for i, item := range dst {
		pos[key(item)] = i
	}
	for _, item := range src {
		k := key(item)
		if i, ok := pos[k]; ok {
			dst[i] = item
			continue
		}
		pos[k] = len(dst)
		dst = append(dst, item)
	}
	return dst
}
