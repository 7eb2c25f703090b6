package block

import (
	"errors"
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// ErrIndexOutOfRange is returned for an index outside the current list.
var ErrIndexOutOfRange = errors.New("block index out of range")

// Block is one row of the editable list.
type Block struct {
	// ID is a stable identity; the position in the list is not.
	ID            string
	Line          string
	Config        Config
	Analysis      map[string]any
	Reasoning     map[string]any
	SelectedVoice string
	Success       bool
}

// NewBlock wraps cfg in a Block with a fresh identity.
func NewBlock(cfg Config) Block {
	return Block{
		ID:            uuid.NewString(),
		Line:          cfg.Text,
		Config:        cfg,
		Analysis:      map[string]any{},
		Reasoning:     map[string]any{},
		SelectedVoice: "",
		Success:       true,
	}
}

// Store is the ordered block list. Insertion order is synthesis and export order.
type Store struct {
	mu     sync.RWMutex
	blocks []Block
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{}
}

// Append adds a baseline block at the tail and returns it.
func (s *Store) Append() Block {
	b := NewBlock(Baseline())
	b.Line = ""

	s.mu.Lock()
	s.blocks = append(s.blocks, b)
	s.mu.Unlock()

	return cloneBlock(b)
}

// Replace swaps the whole list, e.g. after loading recommendations.
// Blocks without an identity are assigned one.
func (s *Store) Replace(blocks []Block) {
	next := make([]Block, len(blocks))

	for i, b := range blocks {
		if b.ID == "" {
			b.ID = uuid.NewString()
		}

		next[i] = cloneBlock(b)
	}

	s.mu.Lock()
	s.blocks = next
	s.mu.Unlock()
}

// Remove deletes the block at index. Later blocks shift down by one.
func (s *Store) Remove(index int) (Block, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.blocks) {
		return Block{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.blocks))
	}

	removed := s.blocks[index]

	next := make([]Block, 0, len(s.blocks)-1)
	next = append(next, s.blocks[:index]...)
	next = append(next, s.blocks[index+1:]...)
	s.blocks = next

	return removed, nil
}

// Update merges patch into the block's config. Fields named in the patch must
// be valid, otherwise the entry is left untouched. Fields not named are kept as is.
func (s *Store) Update(index int, patch Patch) (Config, error) {
	validationErr := patch.Validate()

	s.mu.Lock()
	defer s.mu.Unlock()

	if index < 0 || index >= len(s.blocks) {
		return Config{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.blocks))
	}

	if validationErr != nil {
		return s.blocks[index].Config, fmt.Errorf("block %d: %w", index, validationErr)
	}

	updated := patch.Apply(s.blocks[index].Config)
	s.blocks[index].Config = updated

	return updated, nil
}

// Get returns a copy of the block at index.
func (s *Store) Get(index int) (Block, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if index < 0 || index >= len(s.blocks) {
		return Block{}, fmt.Errorf("%w: %d (len %d)", ErrIndexOutOfRange, index, len(s.blocks))
	}

	return cloneBlock(s.blocks[index]), nil
}

// IndexOf returns the current position of the block with the given id, or -1.
func (s *Store) IndexOf(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for i, b := range s.blocks {
		if b.ID == id {
			return i
		}
	}

	return -1
}

// Len returns the number of blocks.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.blocks)
}

// Snapshot returns a copy of the list in order.
func (s *Store) Snapshot() []Block {
	s.mu.RLock()
	defer s.mu.RUnlock()

	out := make([]Block, len(s.blocks))
	for i, b := range s.blocks {
		out[i] = cloneBlock(b)
	}

	return out
}

func cloneBlock(b Block) Block {
	b.Analysis = cloneMap(b.Analysis)
	b.Reasoning = cloneMap(b.Reasoning)

	return b
}

func cloneMap(m map[string]any) map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v
	}

	return out
}
