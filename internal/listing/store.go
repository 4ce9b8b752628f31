package listing

import (
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// Filter is an exact/range query over structured record fields.
// Zero values mean "no constraint".
type Filter struct {
	Gu         string
	Dong       string
	RentType   string
	MaxDeposit int64 // 만원
	MaxMonthly int64 // 만원
	MinArea    float64
	MaxArea    float64
}

// Matches reports whether a record satisfies every set constraint.
func (f Filter) Matches(r Record) bool {
	if f.Gu != "" && r.Gu != f.Gu {
		return false
	}
	if f.Dong != "" && r.Dong != f.Dong {
		return false
	}
	if f.RentType != "" && r.EffectiveRentType() != f.RentType {
		return false
	}
	if f.MaxDeposit > 0 && r.Deposit > f.MaxDeposit {
		return false
	}
	if f.MaxMonthly > 0 && r.MonthlyRent > f.MaxMonthly {
		return false
	}
	if f.MinArea > 0 && r.AreaPyeong < f.MinArea {
		return false
	}
	if f.MaxArea > 0 && r.AreaPyeong > f.MaxArea {
		return false
	}
	return true
}

// IsZero reports whether the filter carries no constraints at all.
func (f Filter) IsZero() bool {
	return f == Filter{}
}

// Store is an in-memory listing corpus with a stable default order.
// The slice order is the "store-default order" used for tie-breaking
// throughout the retrieval pipeline.
type Store struct {
	mu      sync.RWMutex
	records []Record
	byID    map[string]int
}

// NewStore creates an empty store.
func NewStore() *Store {
	return &Store{byID: make(map[string]int)}
}

// LoadFile reads a YAML seed corpus into a new store.
func LoadFile(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read listings: %w", err)
	}
	var doc struct {
		Listings []Record `yaml:"listings"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parse listings: %w", err)
	}
	s := NewStore()
	for _, r := range doc.Listings {
		if err := s.Add(r); err != nil {
			return nil, err
		}
	}
	return s, nil
}

// Add appends a record in store-default order. Duplicate ids are rejected.
func (s *Store) Add(r Record) error {
	if r.ID == "" {
		return fmt.Errorf("listing record without id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.byID[r.ID]; ok {
		return fmt.Errorf("duplicate listing id %q", r.ID)
	}
	s.byID[r.ID] = len(s.records)
	s.records = append(s.records, r)
	return nil
}

// ByID returns the record with the given id.
func (s *Store) ByID(id string) (Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	idx, ok := s.byID[id]
	if !ok {
		return Record{}, false
	}
	return s.records[idx], true
}

// Order returns the record's position in store-default order, used as the
// stable tie-breaker in rank fusion. Unknown ids sort last.
func (s *Store) Order(id string) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if idx, ok := s.byID[id]; ok {
		return idx
	}
	return int(^uint(0) >> 1)
}

// Query returns up to limit records matching the filter, in store-default
// order. limit <= 0 means no limit.
func (s *Store) Query(f Filter, limit int) []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Record
	for _, r := range s.records {
		if !f.Matches(r) {
			continue
		}
		out = append(out, r)
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out
}

// All returns every record in store-default order.
func (s *Store) All() []Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]Record, len(s.records))
	copy(out, s.records)
	return out
}

// Len returns the number of records.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}
