package tilestore

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/google/btree"
	"github.com/puzpuzpuz/xsync/v3"

	"github.com/ogpredict/geofence/geomodel"
)

// NameRegistry is the POI name/type side table: parallel arrays aligned by
// region id with the POI tile set, a lock-free name → id map for
// NameFilter resolution, and an ordered index for prefix completion.
//
// Appends happen only under the calling layer's single-flight discipline
// (no classify in flight); resolution and completion are safe to call
// concurrently with classification.
type NameRegistry struct {
	mu    sync.RWMutex
	names []string
	types []string

	byName     *xsync.MapOf[string, geomodel.RegionID]
	completion *btree.BTreeG[string]
}

// NewNameRegistry returns an empty registry, for interactive-append use.
func NewNameRegistry() *NameRegistry {
	return &NameRegistry{
		byName:     xsync.NewMapOf[string, geomodel.RegionID](),
		completion: btree.NewG[string](8, func(a, b string) bool { return a < b }),
	}
}

// LoadNames reads the Name,Type CSV. Rows with an empty name are skipped;
// a missing type column falls back to the empty string.
func LoadNames(path string) (*NameRegistry, error) {
	f, err := openReader(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	return readNames(f)
}

func readNames(r io.Reader) (*NameRegistry, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	if _, err := cr.Read(); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, ErrNoHeader
		}
		return nil, err
	}

	reg := NewNameRegistry()
	for {
		fields, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			slog.Debug("skipping unparsable poi name row", "error", err)
			continue
		}
		if len(fields) == 0 {
			continue
		}
		name := strings.TrimSpace(fields[0])
		if name == "" {
			continue
		}
		typ := ""
		if len(fields) > 1 {
			typ = strings.TrimSpace(fields[1])
		}
		reg.Append(name, typ)
	}

	slog.Info("poi names loaded", "names", reg.Len())
	return reg, nil
}

// AppendNameToCSV appends one row to the Name,Type CSV, writing the header
// first if the file is empty. Keeps the names file row-aligned with the POI
// tile file across interactive appends.
func AppendNameToCSV(path, name, typ string) error {
	if name == "" {
		return &ValidationError{Field: "name", Reason: "is required"}
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return fmt.Errorf("tilestore: open %s for append: %w", path, err)
	}
	defer f.Close()

	st, err := f.Stat()
	if err != nil {
		return fmt.Errorf("tilestore: stat %s: %w", path, err)
	}
	if st.Size() == 0 {
		if _, err := f.WriteString("Name,Type\n"); err != nil {
			return fmt.Errorf("tilestore: write header: %w", err)
		}
	}
	if _, err := fmt.Fprintf(f, "%s,%s\n", name, typ); err != nil {
		return fmt.Errorf("tilestore: append row: %w", err)
	}
	return nil
}

// Len returns the number of registered names.
func (r *NameRegistry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.names)
}

// Append registers one name/type pair, aligned with the next region id.
func (r *NameRegistry) Append(name, typ string) {
	r.mu.Lock()
	id := geomodel.RegionID(len(r.names))
	r.names = append(r.names, name)
	r.types = append(r.types, typ)
	r.mu.Unlock()

	r.byName.Store(name, id)
	r.completion.ReplaceOrInsert(name)
}

// Resolve returns the region id for an exact POI name.
func (r *NameRegistry) Resolve(name string) (geomodel.RegionID, bool) {
	return r.byName.Load(name)
}

// NameType returns the name/type pair aligned with a region id.
func (r *NameRegistry) NameType(id geomodel.RegionID) (name, typ string) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if int(id) >= len(r.names) {
		return "", ""
	}
	return r.names[id], r.types[id]
}

// Complete returns up to limit names starting with prefix, in lexical
// order. Backs the interactive name-entry completion.
func (r *NameRegistry) Complete(prefix string, limit int) []string {
	if limit <= 0 {
		limit = 10
	}
	out := make([]string, 0, limit)
	r.completion.AscendGreaterOrEqual(prefix, func(name string) bool {
		if !strings.HasPrefix(name, prefix) {
			return false
		}
		out = append(out, name)
		return len(out) < limit
	})
	return out
}
