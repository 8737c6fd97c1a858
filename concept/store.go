// Package concept loads the static programming topics the tutor talks about.
//
// A Store is built once at process start and is read-only afterwards, so it
// can be shared by every session without synchronization.
package concept

import (
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/casualjim/recall/pkg/slogx"
	"github.com/goccy/go-json"
	orderedmap "github.com/wk8/go-ordered-map/v2"
	"gopkg.in/yaml.v3"
)

// DefaultPath is where the content file lives relative to the working directory.
const DefaultPath = "shared-data/day4_tutor_content.json"

// CanonicalIDs are the five topics the tutor personas advertise.
var CanonicalIDs = []string{"variables", "loops", "functions", "conditionals", "arrays"}

// Record is one concept the tutor can explain, quiz on, or be taught.
type Record struct {
	ID             string `json:"id" yaml:"id"`
	Title          string `json:"title" yaml:"title"`
	Summary        string `json:"summary" yaml:"summary"`
	SampleQuestion string `json:"sample_question" yaml:"sample_question"`
}

// Store is an ordered, read-only collection of records keyed by normalized id.
type Store struct {
	records *orderedmap.OrderedMap[string, Record]
}

// NormalizeID lower-cases and trims an identifier as stored.
func NormalizeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}

// NewStore builds a store from records, keeping their order.
// Records with an empty id are rejected, and so are duplicate ids.
func NewStore(records ...Record) (*Store, error) {
	om := orderedmap.New[string, Record](len(records))
	for i, rec := range records {
		rec.ID = NormalizeID(rec.ID)
		if rec.ID == "" {
			return nil, fmt.Errorf("concept at index %d has no id", i)
		}
		if _, present := om.Set(rec.ID, rec); present {
			return nil, fmt.Errorf("duplicate concept id %q", rec.ID)
		}
	}
	return &Store{records: om}, nil
}

// Empty returns a store without records; every lookup misses.
func Empty() *Store {
	return &Store{records: orderedmap.New[string, Record]()}
}

// Load reads the content file at path. JSON is assumed unless the extension is .yaml or .yml.
//
// A missing file is not an error: a warning is logged and an empty store is returned.
// A file that exists but cannot be parsed is an error.
func Load(path string) (*Store, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			slog.Warn("content file not found", slog.String("path", path), slogx.LoggerName("concept"))
			return Empty(), nil
		}
		return nil, fmt.Errorf("read content file: %w", err)
	}

	records, err := decode(path, data)
	if err != nil {
		return nil, err
	}

	store, err := NewStore(records...)
	if err != nil {
		return nil, fmt.Errorf("content file %s: %w", path, err)
	}
	slog.Info("loaded concepts", slog.Int("count", store.Len()), slog.String("path", path), slogx.LoggerName("concept"))
	return store, nil
}

func decode(path string, data []byte) ([]Record, error) {
	var records []Record
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode yaml content file: %w", err)
		}
	default:
		if err := json.Unmarshal(data, &records); err != nil {
			return nil, fmt.Errorf("decode json content file: %w", err)
		}
	}
	return records, nil
}

// Lookup finds a record by case-insensitive exact id. Surrounding whitespace
// in id is not ignored.
func (s *Store) Lookup(id string) (Record, bool) {
	return s.records.Get(strings.ToLower(id))
}

// Len returns the number of records.
func (s *Store) Len() int {
	return s.records.Len()
}

// IDs returns the record identifiers in load order.
func (s *Store) IDs() []string {
	ids := make([]string, 0, s.records.Len())
	for pair := s.records.Oldest(); pair != nil; pair = pair.Next() {
		ids = append(ids, pair.Key)
	}
	return ids
}

// Records returns a copy of the records in load order.
func (s *Store) Records() []Record {
	result := make([]Record, 0, s.records.Len())
	for pair := s.records.Oldest(); pair != nil; pair = pair.Next() {
		result = append(result, pair.Value)
	}
	return result
}
