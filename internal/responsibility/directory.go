package responsibility

import (
	"context"
	"fmt"
	"os"
	"slices"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// NoAvailableOwnerError reports that no person can fill a role.
type NoAvailableOwnerError struct {
	ItemID string
	Role   string
}

func (e *NoAvailableOwnerError) Error() string {
	if e.ItemID == "" {
		return fmt.Sprintf("no available owner for role %s", e.Role)
	}
	return fmt.Sprintf("item %s: no available owner for role %s", e.ItemID, e.Role)
}

// Directory finds people for roles.
type Directory interface {
	FindAvailableOwner(ctx context.Context, role string) (*models.Person, error)
}

// StaticDirectory is a fixed list of people. Owners for a role are handed
// out round-robin so work spreads across everyone holding the role.
type StaticDirectory struct {
	people      []models.Person
	unavailable map[string]bool

	mu   sync.Mutex
	next map[string]int
}

type directoryFile struct {
	People []struct {
		models.Person `yaml:",inline"`
		Away          bool `yaml:"away"`
	} `yaml:"people"`
}

// NewStaticDirectory creates a directory over people. IDs in away are skipped.
func NewStaticDirectory(people []models.Person, away ...string) *StaticDirectory {
	d := &StaticDirectory{
		people:      append([]models.Person(nil), people...),
		unavailable: make(map[string]bool, len(away)),
		next:        make(map[string]int),
	}
	for _, id := range away {
		d.unavailable[id] = true
	}
	return d
}

// LoadDirectory reads a directory from a YAML file.
func LoadDirectory(path string) (*StaticDirectory, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read directory %s: %w", path, err)
	}
	var f directoryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse directory %s: %w", path, err)
	}

	var people []models.Person
	var away []string
	for _, p := range f.People {
		if p.ID == "" {
			return nil, fmt.Errorf("directory %s: person without id", path)
		}
		people = append(people, p.Person)
		if p.Away {
			away = append(away, p.ID)
		}
	}
	return NewStaticDirectory(people, away...), nil
}

// FindAvailableOwner returns the next available person holding role.
func (d *StaticDirectory) FindAvailableOwner(ctx context.Context, role string) (*models.Person, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	var candidates []int
	for i, p := range d.people {
		if slices.Contains(p.Roles, role) && !d.unavailable[p.ID] {
			candidates = append(candidates, i)
		}
	}
	if len(candidates) == 0 {
		return nil, &NoAvailableOwnerError{Role: role}
	}

	d.mu.Lock()
	idx := d.next[role] % len(candidates)
	d.next[role] = idx + 1
	d.mu.Unlock()

	p := d.people[candidates[idx]]
	p.Roles = append([]string(nil), p.Roles...)
	return &p, nil
}
