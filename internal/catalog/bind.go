package catalog

import (
	"fmt"

	"github.com/bdougie/shotsearch/internal/models"
)

// Binding is the outcome of correlating embeddings with catalog shots.
type Binding struct {
	// Embeddings are the resolvable entries, keyed by JoinKey, in input order.
	Embeddings []models.Embedding
	// Dropped holds the original keys that matched no shot.
	Dropped []string
	// Violations holds entries excluded for a bad vector or a repeated key.
	Violations []Violation
}

// Bind resolves every embedding key against the catalog. Keys are rewritten
// to the JoinKey scheme. When dim is zero the dimension of the first
// resolvable vector is used.
func (c *Catalog) Bind(embeddings []models.Embedding, dim int) Binding {
	var b Binding
	seen := make(map[string]struct{}, len(embeddings))

	for _, e := range embeddings {
		key := EmbeddingKey(e.Key)
		if _, ok := c.Shot(key); !ok {
			b.Dropped = append(b.Dropped, e.Key)
			continue
		}
		if _, ok := seen[key]; ok {
			b.Violations = append(b.Violations, violation(ErrInvariantViolation, "embedding "+e.Key, "repeats key %s", key))
			continue
		}
		if len(e.Vector) == 0 {
			b.Violations = append(b.Violations, violation(ErrInvariantViolation, "embedding "+e.Key, "empty vector"))
			continue
		}
		if dim == 0 {
			dim = len(e.Vector)
		}
		if len(e.Vector) != dim {
			b.Violations = append(b.Violations, violation(ErrInvariantViolation, "embedding "+e.Key, "has %d components, want %d", len(e.Vector), dim))
			continue
		}
		seen[key] = struct{}{}
		b.Embeddings = append(b.Embeddings, models.Embedding{Key: key, Vector: e.Vector})
	}

	return b
}

// DropError reports the dropped keys as a single join-mismatch error, or nil.
func (b Binding) DropError() error {
	if len(b.Dropped) == 0 {
		return nil
	}
	return fmt.Errorf("%w: %d keys, first %q", ErrJoinMismatch, len(b.Dropped), b.Dropped[0])
}
