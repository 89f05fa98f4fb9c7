// Package catalog holds the static checklist item definitions.
// A Catalog is built once at process start and never modified afterwards,
// so it can be shared between goroutines without locking.
package catalog

import (
	"errors"
	"fmt"
	"strings"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ErrInvalidCatalog wraps all catalog validation failures.
var ErrInvalidCatalog = errors.New("invalid catalog")

// Catalog is an immutable table of checklist items keyed by ID.
type Catalog struct {
	items []models.ChecklistItem
	index map[string]int
}

// New validates the given items and builds a catalog. Declaration order is
// preserved and used as the final tie-breaker when ordering checklists.
func New(items []models.ChecklistItem) (*Catalog, error) {
	if errs := Validate(items); len(errs) > 0 {
		msgs := make([]string, len(errs))
		for i, e := range errs {
			msgs[i] = e.Error()
		}
		return nil, fmt.Errorf("%w: %s", ErrInvalidCatalog, strings.Join(msgs, "; "))
	}

	c := &Catalog{
		items: make([]models.ChecklistItem, len(items)),
		index: make(map[string]int, len(items)),
	}
	for i, item := range items {
		c.items[i] = cloneItem(item)
		c.index[item.ID] = i
	}
	return c, nil
}

// MustNew is New for package-level defaults; it panics on an invalid catalog.
func MustNew(items []models.ChecklistItem) *Catalog {
	c, err := New(items)
	if err != nil {
		panic(err)
	}
	return c
}

// Get returns a copy of the item with the given ID.
func (c *Catalog) Get(id string) (models.ChecklistItem, bool) {
	i, ok := c.index[id]
	if !ok {
		return models.ChecklistItem{}, false
	}
	return cloneItem(c.items[i]), true
}

// Has reports whether the catalog defines the item.
func (c *Catalog) Has(id string) bool {
	_, ok := c.index[id]
	return ok
}

// Order returns the declaration index of an item, or -1 if unknown.
func (c *Catalog) Order(id string) int {
	i, ok := c.index[id]
	if !ok {
		return -1
	}
	return i
}

// Items returns copies of all items in declaration order.
func (c *Catalog) Items() []models.ChecklistItem {
	out := make([]models.ChecklistItem, len(c.items))
	for i, item := range c.items {
		out[i] = cloneItem(item)
	}
	return out
}

// Len returns the number of items.
func (c *Catalog) Len() int {
	return len(c.items)
}

// Categories returns the distinct item categories in declaration order.
func (c *Catalog) Categories() []string {
	seen := make(map[string]bool)
	var cats []string
	for _, item := range c.items {
		if !seen[item.Category] {
			seen[item.Category] = true
			cats = append(cats, item.Category)
		}
	}
	return cats
}

// cloneItem deep-copies the slices of an item so callers cannot mutate the catalog.
func cloneItem(item models.ChecklistItem) models.ChecklistItem {
	out := item
	out.Dependencies = append([]string(nil), item.Dependencies...)
	out.Criteria = append([]models.Criterion(nil), item.Criteria...)
	out.Applicability.ChangeTypes = append([]models.ChangeType(nil), item.Applicability.ChangeTypes...)
	out.Applicability.Technologies = append([]string(nil), item.Applicability.Technologies...)
	return out
}
