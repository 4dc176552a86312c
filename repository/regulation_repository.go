package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"shipcompliance-backend/models"
)

var (
	ErrRegulationNotFound = errors.New("no regulations found for route")
)

// RegulationRepository resolves per-route regulation documents from one or
// more configured directories. Files are named {source}_to_{destination}.json
// and matched case-insensitively. Missing, unreadable and malformed files all
// collapse to ErrRegulationNotFound; the distinction only matters for the log
// line, not for control flow.
type RegulationRepository struct {
	dirs []string

	mu    sync.Mutex
	cache map[string]cachedDocument
}

type cachedDocument struct {
	doc     *models.RegulationDocument
	modTime time.Time
}

// NewRegulationRepository creates a resolver over the given search
// directories. Directories that do not exist are skipped at lookup time.
func NewRegulationRepository(dirs ...string) *RegulationRepository {
	return &RegulationRepository{
		dirs:  dirs,
		cache: make(map[string]cachedDocument),
	}
}

// Find locates and parses the regulation document for a route.
func (r *RegulationRepository) Find(source, destination string) (*models.RegulationDocument, error) {
	path, err := r.resolvePath(source, destination)
	if err != nil {
		return nil, err
	}

	info, err := os.Stat(path)
	if err != nil {
		log.Printf("Warning: regulation file vanished at %s: %v", path, err)
		return nil, ErrRegulationNotFound
	}

	r.mu.Lock()
	if cached, ok := r.cache[path]; ok && cached.modTime.Equal(info.ModTime()) {
		r.mu.Unlock()
		return cached.doc, nil
	}
	r.mu.Unlock()

	doc, err := r.parse(path, models.RouteKey(source, destination))
	if err != nil {
		log.Printf("Warning: failed to parse regulation file %s: %v", path, err)
		return nil, ErrRegulationNotFound
	}

	r.mu.Lock()
	r.cache[path] = cachedDocument{doc: doc, modTime: info.ModTime()}
	r.mu.Unlock()

	return doc, nil
}

// resolvePath searches the configured directories for the route's file.
func (r *RegulationRepository) resolvePath(source, destination string) (string, error) {
	want := models.RegulationFileStem(source, destination) + ".json"

	for _, dir := range r.dirs {
		entries, err := os.ReadDir(dir)
		if err != nil {
			continue
		}
		for _, entry := range entries {
			if entry.IsDir() {
				continue
			}
			if strings.EqualFold(entry.Name(), want) {
				return filepath.Join(dir, entry.Name()), nil
			}
		}
	}

	return "", ErrRegulationNotFound
}

// parse reads and decodes a regulation file into an ordered document.
func (r *RegulationRepository) parse(path, route string) (*models.RegulationDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read regulation file: %w", err)
	}

	var sections []models.RegulationSection
	if err := json.Unmarshal(data, &sections); err != nil {
		return nil, fmt.Errorf("failed to decode regulation file: %w", err)
	}

	return &models.RegulationDocument{
		Route:    route,
		Path:     path,
		Sections: sections,
	}, nil
}
