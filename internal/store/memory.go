package store

import (
	"sort"
	"strings"
	"sync"

	"github.com/insuranceops/commission-processor/internal/models"
)

// MemoryStore keeps profiles in memory. It backs tests and one-shot CLI
// runs that should not touch the shared database.
type MemoryStore struct {
	mu        sync.Mutex
	threshold float64
	nextID    int64
	profiles  map[string]*models.CarrierProfile // keyed by lowercased name
	imports   []models.ImportLog
}

// NewMemory returns an empty in-memory store. threshold semantics match
// OpenSQLite.
func NewMemory(threshold float64) *MemoryStore {
	if threshold <= 0 {
		threshold = DefaultThreshold
	}
	return &MemoryStore{
		threshold: threshold,
		profiles:  make(map[string]*models.CarrierProfile),
	}
}

func (s *MemoryStore) Close() error { return nil }

func (s *MemoryStore) LookupByLayout(columns []string, filename string) (*models.CarrierProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	sig := Fingerprint(columns)
	for _, p := range s.ordered() {
		for _, fp := range p.Fingerprints {
			if fp.Signature == sig {
				return clone(p), nil
			}
		}
	}

	if filename != "" {
		for _, p := range s.ordered() {
			for _, pattern := range p.FilenamePatterns {
				if matchesPattern(pattern, filename) {
					return clone(p), nil
				}
			}
		}
	}

	if s.threshold >= 1.0 {
		return nil, nil
	}

	var best *models.CarrierProfile
	bestScore := 0.0
	for _, p := range s.ordered() {
		for _, fp := range p.Fingerprints {
			if score := overlap(fp.Columns, columns); score >= s.threshold && score > bestScore {
				best, bestScore = p, score
			}
		}
	}
	return clone(best), nil
}

// ordered returns profiles in registration order so lookups are stable.
func (s *MemoryStore) ordered() []*models.CarrierProfile {
	out := make([]*models.CarrierProfile, 0, len(s.profiles))
	for _, p := range s.profiles {
		out = append(out, p)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (s *MemoryStore) LookupByName(name string) (*models.CarrierProfile, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return clone(s.profiles[strings.ToLower(strings.TrimSpace(name))]), nil
}

func (s *MemoryStore) Register(name string, columns []string, filename string, fileType models.OutputKind, transformer string) (*models.CarrierProfile, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, &models.ValidationError{Msg: "carrier name must not be empty"}
	}
	if fileType == "" {
		fileType = models.KindCommission
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	key := strings.ToLower(name)
	p, ok := s.profiles[key]
	if !ok {
		s.nextID++
		p = &models.CarrierProfile{ID: s.nextID, Name: name}
		s.profiles[key] = p
	}
	p.FileType = fileType
	p.Transformer = transformer
	p.FileCount++

	if len(columns) > 0 {
		sig := Fingerprint(columns)
		known := false
		for _, fp := range p.Fingerprints {
			if fp.Signature == sig {
				known = true
				break
			}
		}
		if !known {
			p.Fingerprints = append(p.Fingerprints, models.Fingerprint{
				Signature: sig,
				Columns:   append([]string(nil), columns...),
			})
		}
	}

	if pattern := FilenamePattern(filename); pattern != "" {
		seen := false
		for _, existing := range p.FilenamePatterns {
			if existing == pattern {
				seen = true
				break
			}
		}
		if !seen {
			p.FilenamePatterns = append(p.FilenamePatterns, pattern)
		}
	}
	return clone(p), nil
}

func (s *MemoryStore) ListKnownNames() ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	names := make([]string, 0, len(s.profiles))
	for _, p := range s.profiles {
		names = append(names, p.Name)
	}
	sort.Strings(names)
	return names, nil
}

func (s *MemoryStore) LogImport(log models.ImportLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	log.ID = int64(len(s.imports) + 1)
	s.imports = append(s.imports, log)
	return nil
}

func (s *MemoryStore) ImportHistory(limit int) ([]models.ImportLog, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if limit <= 0 || limit > len(s.imports) {
		limit = len(s.imports)
	}
	out := make([]models.ImportLog, 0, limit)
	for i := len(s.imports) - 1; i >= 0 && len(out) < limit; i-- {
		out = append(out, s.imports[i])
	}
	return out, nil
}

func clone(p *models.CarrierProfile) *models.CarrierProfile {
	if p == nil {
		return nil
	}
	cp := *p
	cp.Fingerprints = append([]models.Fingerprint(nil), p.Fingerprints...)
	cp.FilenamePatterns = append([]string(nil), p.FilenamePatterns...)
	return &cp
}
