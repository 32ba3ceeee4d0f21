package embeddings

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"sync"
)

// ErrQueueFull is returned when the service cannot accept more work
var ErrQueueFull = errors.New("embedding queue is full, try again later")

// ErrClosed is returned for requests made after Close.
var ErrClosed = errors.New("embedding service is closed")

// Encoder turns query text into a vector in the keyframe embedding space
type Encoder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
	Model() string
}

// Result represents the result of embedding generation
type Result struct {
	Content   string
	Embedding []float32
	Error     error
}

// Work represents a unit of embedding work
type Work struct {
	ctx     context.Context
	Content string
	Result  chan<- Result
}

// Service manages query embedding generation and caching
type Service struct {
	encoder    Encoder
	logger     *slog.Logger
	numWorkers int
	workQueue  chan Work
	cache      sync.Map // model + text -> normalized vector
	wg         sync.WaitGroup

	mu     sync.RWMutex // guards closed and sends on workQueue
	closed bool
}

// NewService creates a new embedding service with the specified number of workers
func NewService(encoder Encoder, numWorkers int, logger *slog.Logger) *Service {
	if numWorkers <= 0 {
		numWorkers = 4
	}

	s := &Service{
		encoder:    encoder,
		logger:     logger.With("component", "embeddings", "model", encoder.Model()),
		numWorkers: numWorkers,
		workQueue:  make(chan Work, 100),
	}

	s.startWorkers()
	return s
}

// startWorkers starts a pool of goroutines for generating embeddings
func (s *Service) startWorkers() {
	for i := 0; i < s.numWorkers; i++ {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			for work := range s.workQueue {
				work.Result <- s.generate(work.ctx, work.Content)
			}
		}()
	}
}

func (s *Service) generate(ctx context.Context, content string) Result {
	key := s.encoder.Model() + "\x00" + content
	if cached, ok := s.cache.Load(key); ok {
		return Result{Content: content, Embedding: cached.([]float32)}
	}

	vec, err := s.encoder.Embed(ctx, content)
	if err != nil {
		return Result{Content: content, Error: err}
	}

	vec, err = Normalize(vec)
	if err != nil {
		return Result{Content: content, Error: err}
	}

	s.cache.Store(key, vec)
	return Result{Content: content, Embedding: vec}
}

// GetEmbedding requests an embedding generation asynchronously
func (s *Service) GetEmbedding(ctx context.Context, content string) <-chan Result {
	resultChan := make(chan Result, 1)

	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		resultChan <- Result{Content: content, Error: ErrClosed}
		return resultChan
	}

	select {
	case s.workQueue <- Work{ctx: ctx, Content: content, Result: resultChan}:
	default:
		resultChan <- Result{Content: content, Error: ErrQueueFull}
	}

	return resultChan
}

// Embed blocks until the embedding for text is ready or ctx is done.
// The returned vector has unit length.
func (s *Service) Embed(ctx context.Context, text string) ([]float32, error) {
	select {
	case res := <-s.GetEmbedding(ctx, text):
		if res.Error != nil {
			s.logger.Warn("query embedding failed", "error", res.Error)
			return nil, res.Error
		}
		return res.Embedding, nil
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Model returns the underlying encoder's model name
func (s *Service) Model() string {
	return s.encoder.Model()
}

// Close shuts down the embedding service and waits for all workers to finish.
// Later requests fail with ErrClosed.
func (s *Service) Close() {
	s.mu.Lock()
	if !s.closed {
		s.closed = true
		close(s.workQueue)
	}
	s.mu.Unlock()
	s.wg.Wait()
}

// Normalize scales vec to unit length. A zero vector is an error.
func Normalize(vec []float32) ([]float32, error) {
	var sum float64
	for _, x := range vec {
		sum += float64(x) * float64(x)
	}
	if sum == 0 || math.IsNaN(sum) || math.IsInf(sum, 0) {
		return nil, fmt.Errorf("cannot normalize vector of norm %v", math.Sqrt(sum))
	}

	norm := math.Sqrt(sum)
	out := make([]float32, len(vec))
	for i, x := range vec {
		out[i] = float32(float64(x) / norm)
	}
	return out, nil
}
