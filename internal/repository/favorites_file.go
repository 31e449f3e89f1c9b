package repository

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"

	"github.com/rs/zerolog/log"
)

// FileFavorites persists one favorites set as a JSON array of ids
type FileFavorites struct {
	path string
}

// NewFileFavorites creates a FileFavorites writing to path
func NewFileFavorites(path string) *FileFavorites {
	return &FileFavorites{path: path}
}

// Load returns an empty set for a missing file. A file that is not a JSON
// id list is reported and treated as empty so the next save repairs it.
func (f *FileFavorites) Load(context.Context) (map[int]struct{}, error) {
	ids := map[int]struct{}{}

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return ids, nil
		}
		return nil, fmt.Errorf("read favorites: %w", err)
	}

	var list []int
	if err := json.Unmarshal(data, &list); err != nil {
		log.Warn().Err(err).Str("path", f.path).Msg("Favorites file is corrupt, starting empty")
		return ids, nil
	}
	for _, id := range list {
		ids[id] = struct{}{}
	}
	return ids, nil
}

func (f *FileFavorites) Save(_ context.Context, ids map[int]struct{}) error {
	list := make([]int, 0, len(ids))
	for id := range ids {
		list = append(list, id)
	}
	sort.Ints(list)

	data, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode favorites: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(f.path), 0o755); err != nil {
		return fmt.Errorf("create favorites directory: %w", err)
	}

	// 先写临时文件再改名，避免写到一半留下损坏的文件
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write favorites: %w", err)
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return fmt.Errorf("save favorites: %w", err)
	}
	return nil
}
