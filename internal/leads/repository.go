package leads

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Repository defines the interface for callback lead storage
type Repository interface {
	Create(ctx context.Context, req *CreateCallbackRequest) (*CallbackLead, error)
	GetByID(ctx context.Context, id string) (*CallbackLead, error)
	List(ctx context.Context, limit int) ([]*CallbackLead, error)
}

// InMemoryRepository is a stub implementation of Repository using in-memory storage
type InMemoryRepository struct {
	mu    sync.RWMutex
	leads map[string]*CallbackLead
}

// NewInMemoryRepository creates a new in-memory repository
func NewInMemoryRepository() *InMemoryRepository {
	return &InMemoryRepository{
		leads: make(map[string]*CallbackLead),
	}
}

// Create creates a new lead in memory
func (r *InMemoryRepository) Create(ctx context.Context, req *CreateCallbackRequest) (*CallbackLead, error) {
	req.Normalize()
	if err := req.Validate(); err != nil {
		return nil, err
	}

	lead := &CallbackLead{
		ID:        uuid.New().String(),
		Phone:     req.PhoneNumber,
		Source:    req.Source,
		CreatedAt: time.Now().UTC(),
	}

	r.mu.Lock()
	r.leads[lead.ID] = lead
	r.mu.Unlock()

	return lead, nil
}

// GetByID retrieves a lead by ID
func (r *InMemoryRepository) GetByID(ctx context.Context, id string) (*CallbackLead, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	lead, ok := r.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead, nil
}

// List returns the newest leads first.
func (r *InMemoryRepository) List(ctx context.Context, limit int) ([]*CallbackLead, error) {
	r.mu.RLock()
	out := make([]*CallbackLead, 0, len(r.leads))
	for _, lead := range r.leads {
		out = append(out, lead)
	}
	r.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
