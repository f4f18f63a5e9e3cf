package strategy

import (
	"sync"

	"github.com/aristath/strikewindow/internal/codes"
)

// Store is the persistence seam for strategy instances. The SQL-backed
// implementation lives in internal/database; InMemoryStore exists for tests
// and as a drop-in before the database layer is wired.
type Store interface {
	Create(inst *Instance) error
	Get(id string) (*Instance, error)
	Update(inst *Instance) error
	List() ([]*Instance, error)
	Children(parentID string) ([]*Instance, error)
}

// InMemoryStore is a Store backed by a guarded map, matching the
// registry catalog's read-mostly/write-locks-briefly shape.
type InMemoryStore struct {
	mu        sync.RWMutex
	instances map[string]*Instance
}

// NewInMemoryStore returns an empty store.
func NewInMemoryStore() *InMemoryStore {
	return &InMemoryStore{instances: make(map[string]*Instance)}
}

func (s *InMemoryStore) Create(inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.instances[inst.ID]; exists {
		return codes.New(codes.AlreadyInitialized, "strategy id already exists", map[string]any{"strategy_id": inst.ID})
	}
	cp := *inst
	s.instances[inst.ID] = &cp
	return nil
}

func (s *InMemoryStore) Get(id string) (*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	inst, ok := s.instances[id]
	if !ok {
		return nil, codes.New(codes.StrategyNotFound, "strategy not found", map[string]any{"strategy_id": id})
	}
	cp := *inst
	return &cp, nil
}

func (s *InMemoryStore) Update(inst *Instance) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.instances[inst.ID]; !ok {
		return codes.New(codes.StrategyNotFound, "strategy not found", map[string]any{"strategy_id": inst.ID})
	}
	cp := *inst
	s.instances[inst.ID] = &cp
	return nil
}

func (s *InMemoryStore) List() ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Instance, 0, len(s.instances))
	for _, inst := range s.instances {
		cp := *inst
		result = append(result, &cp)
	}
	return result, nil
}

func (s *InMemoryStore) Children(parentID string) ([]*Instance, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var result []*Instance
	for _, inst := range s.instances {
		if inst.BaseStrategyID == parentID {
			cp := *inst
			result = append(result, &cp)
		}
	}
	return result, nil
}
