package storage

import (
	"context"
	"sync"

	"github.com/loomlabs/loom/internal/types"
)

// MemoryStorage is an in-memory Storage backend. It is safe for concurrent
// use and keeps every repository isolated behind its own lock. Intended for
// tests and embedded single-process deployments.
type MemoryStorage struct {
	mu    sync.Mutex
	repos map[string]*memoryRepository
}

// NewMemoryStorage creates an empty in-memory storage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{
		repos: make(map[string]*memoryRepository),
	}
}

// GetRepository returns the repository for kind, creating it on first use.
func (s *MemoryStorage) GetRepository(kind string) Repository {
	s.mu.Lock()
	defer s.mu.Unlock()

	repo, ok := s.repos[kind]
	if !ok {
		repo = &memoryRepository{docs: make(map[types.ID]Document)}
		s.repos[kind] = repo
	}
	return repo
}

// Connect is a no-op for the in-memory backend.
func (s *MemoryStorage) Connect(ctx context.Context) error {
	return nil
}

// Close is a no-op for the in-memory backend.
func (s *MemoryStorage) Close() error {
	return nil
}

// Migrate is a no-op for the in-memory backend.
func (s *MemoryStorage) Migrate(ctx context.Context) error {
	return nil
}

// memoryRepository stores documents in a map keyed by id, preserving
// insertion order for unsorted queries.
type memoryRepository struct {
	mu    sync.RWMutex
	docs  map[types.ID]Document
	order []types.ID
}

func (r *memoryRepository) Insert(ctx context.Context, doc Document) (types.ID, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored := copyDocument(doc)
	id := stored.ID()
	if id.IsZero() {
		id = types.NewID()
		stored["id"] = id.String()
	}

	if _, exists := r.docs[id]; exists {
		return "", types.NewError(types.STORAGE_INSERT_FAILED, "duplicate document id "+id.String())
	}

	r.docs[id] = stored
	r.order = append(r.order, id)
	return id, nil
}

func (r *memoryRepository) Update(ctx context.Context, id types.ID, set Document, push Document) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	doc, ok := r.docs[id]
	if !ok {
		return types.NewError(types.STORAGE_UPDATE_FAILED, "no document with id "+id.String())
	}

	for field, value := range set {
		if field == "id" {
			continue
		}
		doc[field] = copyValue(value)
	}

	for field, value := range push {
		list, _ := doc[field].([]any)
		doc[field] = append(list, copyValue(value))
	}

	return nil
}

func (r *memoryRepository) Find(ctx context.Context, filter Filter, opts *FindOptions) ([]Document, error) {
	r.mu.RLock()
	matched := make([]Document, 0)
	for _, id := range r.order {
		doc, ok := r.docs[id]
		if !ok {
			continue
		}
		if filter == nil || filter.Matches(doc) {
			matched = append(matched, copyDocument(doc))
		}
	}
	r.mu.RUnlock()

	if opts != nil {
		sortDocuments(matched, opts.Sort)
	}
	return applyWindow(matched, opts), nil
}

func (r *memoryRepository) FindOne(ctx context.Context, filter Filter) (Document, error) {
	docs, err := r.Find(ctx, filter, &FindOptions{Limit: 1})
	if err != nil {
		return nil, err
	}
	if len(docs) == 0 {
		return nil, nil
	}
	return docs[0], nil
}

func (r *memoryRepository) Delete(ctx context.Context, id types.ID) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.docs[id]; !ok {
		return nil
	}

	delete(r.docs, id)
	for i, existing := range r.order {
		if existing == id {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	return nil
}

func (r *memoryRepository) DeleteAll(ctx context.Context) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.docs = make(map[types.ID]Document)
	r.order = nil
	return nil
}

// copyDocument deep-copies a document so callers never alias stored state.
func copyDocument(doc Document) Document {
	out := make(Document, len(doc))
	for k, v := range doc {
		out[k] = copyValue(v)
	}
	return out
}

func copyValue(v any) any {
	switch t := v.(type) {
	case Document:
		return map[string]any(copyDocument(t))
	case map[string]any:
		return map[string]any(copyDocument(Document(t)))
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = copyValue(e)
		}
		return out
	default:
		return v
	}
}
