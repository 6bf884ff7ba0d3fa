package csvstore

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"

	"github.com/jwalitptl/medvault-api/internal/model"
	"github.com/jwalitptl/medvault-api/internal/repository"
)

var drugMapColumns = []string{"indian_name", "us_name"}

type drugMapRepository struct {
	path string
	mu   sync.RWMutex
}

// NewDrugMapRepository opens the drug map at path and seeds it with the
// default mappings when the file is absent.
func NewDrugMapRepository(path string) (repository.DrugMapRepository, error) {
	r := &drugMapRepository{path: path}
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		if err := r.write(model.DefaultDrugMappings); err != nil {
			return nil, fmt.Errorf("failed to seed drug map: %w", err)
		}
	} else if err != nil {
		return nil, fmt.Errorf("failed to stat drug map: %w", err)
	}
	return r, nil
}

func (r *drugMapRepository) List(ctx context.Context) ([]model.DrugMapping, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.read()
}

// Put adds a mapping or replaces the one with the same local name.
func (r *drugMapRepository) Put(ctx context.Context, mapping model.DrugMapping) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	mappings, err := r.read()
	if err != nil {
		return err
	}

	replaced := false
	for i, m := range mappings {
		if strings.EqualFold(m.LocalName, mapping.LocalName) {
			mappings[i] = mapping
			replaced = true
			break
		}
	}
	if !replaced {
		mappings = append(mappings, mapping)
	}
	return r.write(mappings)
}

func (r *drugMapRepository) read() ([]model.DrugMapping, error) {
	t, err := readTable(r.path)
	if errors.Is(err, os.ErrNotExist) {
		return []model.DrugMapping{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load drug map: %w", err)
	}

	mappings := make([]model.DrugMapping, 0, len(t.rows))
	for _, row := range t.rows {
		local := t.get(row, "indian_name")
		if local == "" {
			continue
		}
		mappings = append(mappings, model.DrugMapping{
			LocalName:  local,
			SearchName: t.get(row, "us_name"),
		})
	}
	return mappings, nil
}

func (r *drugMapRepository) write(mappings []model.DrugMapping) error {
	rows := make([][]string, 0, len(mappings))
	for _, m := range mappings {
		rows = append(rows, []string{m.LocalName, m.SearchName})
	}
	return writeTable(r.path, drugMapColumns, rows)
}
