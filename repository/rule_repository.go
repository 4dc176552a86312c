package repository

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"shipcompliance-backend/models"
)

var (
	ErrRuleNotFound = errors.New("rule not found")
)

// RuleRepository is a file-backed store mapping route keys to rule lists,
// persisted as a single JSON document. All mutations serialize on a mutex
// and rewrite the file atomically, so concurrent writers cannot lose the
// read-modify-write.
type RuleRepository struct {
	path string
	mu   sync.Mutex
}

// NewRuleRepository opens the store at path, creating an empty document if
// the file does not exist yet.
func NewRuleRepository(path string) (*RuleRepository, error) {
	r := &RuleRepository{path: path}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		if dir := filepath.Dir(path); dir != "." {
			if err := os.MkdirAll(dir, 0755); err != nil {
				return nil, fmt.Errorf("failed to create rules directory: %w", err)
			}
		}
		if err := r.save(map[string][]string{}); err != nil {
			return nil, fmt.Errorf("failed to initialize rules file: %w", err)
		}
	}

	return r, nil
}

// load reads the whole document. A missing or corrupt file yields an empty
// mapping rather than an error.
func (r *RuleRepository) load() map[string][]string {
	data, err := os.ReadFile(r.path)
	if err != nil {
		return map[string][]string{}
	}

	rules := map[string][]string{}
	if err := json.Unmarshal(data, &rules); err != nil {
		return map[string][]string{}
	}
	return rules
}

// save rewrites the document atomically (temp file + rename).
func (r *RuleRepository) save(rules map[string][]string) error {
	data, err := json.MarshalIndent(rules, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal rules: %w", err)
	}

	tmp := r.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write rules file: %w", err)
	}
	if err := os.Rename(tmp, r.path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("failed to replace rules file: %w", err)
	}
	return nil
}

// AddRule appends a rule to the route's list. Adding a rule that is already
// present is a no-op and reports added=false. The returned slice is the
// route's rule list after the call.
func (r *RuleRepository) AddRule(source, destination, rule string) (bool, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.load()
	key := models.RouteKey(source, destination)

	for _, existing := range rules[key] {
		if existing == rule {
			return false, append([]string{}, rules[key]...), nil
		}
	}

	rules[key] = append(rules[key], rule)
	if err := r.save(rules); err != nil {
		return false, nil, err
	}
	return true, append([]string{}, rules[key]...), nil
}

// Rules returns the rule list for a route. Absent routes yield an empty
// list, never an error.
func (r *RuleRepository) Rules(source, destination string) []string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.load()
	list := rules[models.RouteKey(source, destination)]
	if list == nil {
		return []string{}
	}
	return append([]string{}, list...)
}

// DeleteRule removes a rule from the route's list. ErrRuleNotFound when the
// route or the rule is absent.
func (r *RuleRepository) DeleteRule(source, destination, rule string) ([]string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.load()
	key := models.RouteKey(source, destination)

	list, ok := rules[key]
	if !ok {
		return nil, ErrRuleNotFound
	}

	idx := -1
	for i, existing := range list {
		if existing == rule {
			idx = i
			break
		}
	}
	if idx < 0 {
		return nil, ErrRuleNotFound
	}

	rules[key] = append(list[:idx], list[idx+1:]...)
	if err := r.save(rules); err != nil {
		return nil, err
	}
	return append([]string{}, rules[key]...), nil
}

// All returns the full route->rules mapping.
func (r *RuleRepository) All() map[string][]string {
	r.mu.Lock()
	defer r.mu.Unlock()

	rules := r.load()
	out := make(map[string][]string, len(rules))
	for k, v := range rules {
		out[k] = append([]string{}, v...)
	}
	return out
}

// FlattenedRules returns one entry per (route, rule) pair for the admin view.
func (r *RuleRepository) FlattenedRules() []models.RouteRule {
	all := r.All()

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	flattened := make([]models.RouteRule, 0)
	for _, key := range keys {
		source, destination := models.SplitRouteKey(key)
		for _, rule := range all[key] {
			flattened = append(flattened, models.RouteRule{
				Source:      source,
				Destination: destination,
				Rule:        rule,
			})
		}
	}
	return flattened
}

// Routes returns every defined route with its rule count.
func (r *RuleRepository) Routes() []models.RouteSummary {
	all := r.All()

	keys := make([]string, 0, len(all))
	for k := range all {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	routes := make([]models.RouteSummary, 0, len(keys))
	for _, key := range keys {
		source, destination := models.SplitRouteKey(key)
		routes = append(routes, models.RouteSummary{
			Source:      source,
			Destination: destination,
			RuleCount:   len(all[key]),
		})
	}
	return routes
}
