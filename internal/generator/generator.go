// Package generator selects catalog items for a validation context and
// orders them into a checklist.
package generator

import (
	"fmt"
	"math"
	"time"

	"github.com/google/uuid"

	"github.com/ShayCichocki/qualgate/internal/catalog"
	"github.com/ShayCichocki/qualgate/internal/graph"
	"github.com/ShayCichocki/qualgate/internal/logging"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Generator builds checklists from an immutable catalog.
type Generator struct {
	catalog *catalog.Catalog
	logger  logging.Logger
	newID   func() string
	now     func() time.Time
}

// Option configures a Generator.
type Option func(*Generator)

// WithLogger sets the debug logger.
func WithLogger(l logging.Logger) Option {
	return func(g *Generator) {
		if l != nil {
			g.logger = l
		}
	}
}

// WithIDFunc overrides checklist ID generation. Used by tests.
func WithIDFunc(fn func() string) Option {
	return func(g *Generator) { g.newID = fn }
}

// WithClock overrides the creation timestamp source. Used by tests.
func WithClock(fn func() time.Time) Option {
	return func(g *Generator) { g.now = fn }
}

// New creates a generator over the given catalog.
func New(c *catalog.Catalog, opts ...Option) *Generator {
	g := &Generator{
		catalog: c,
		logger:  logging.NopLogger(),
		newID:   uuid.NewString,
		now:     time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

// Select returns the catalog items applicable to the context, in catalog
// declaration order. Base items (no applicability conditions) are always selected.
func (g *Generator) Select(vctx models.ValidationContext) []models.ChecklistItem {
	var selected []models.ChecklistItem
	for _, item := range g.catalog.Items() {
		if item.Applicability.IsBase() || item.Applicability.Matches(vctx) {
			selected = append(selected, item)
		}
	}
	return selected
}

// Generate builds a dependency-ordered checklist for the context.
// It returns a *graph.DependencyCycleError or *graph.MissingDependencyError
// when the selected items cannot be ordered.
func (g *Generator) Generate(vctx models.ValidationContext) (*models.Checklist, error) {
	selected := g.Select(vctx)
	g.logger.Log("[generator] context change_type=%s: selected %d of %d items", vctx.ChangeType, len(selected), g.catalog.Len())

	dg := graph.New()
	dg.SetDebugLog(logging.Func(g.logger))
	if err := dg.Build(selected, g.catalog.Has); err != nil {
		return nil, fmt.Errorf("generate checklist: %w", err)
	}
	ordered, err := dg.SortedItems()
	if err != nil {
		return nil, fmt.Errorf("generate checklist: %w", err)
	}

	checklist := &models.Checklist{
		ID:                 g.newID(),
		Context:            vctx,
		Items:              ordered,
		EstimatedDuration:  EstimateDuration(ordered),
		AutomationCoverage: AutomationCoverage(ordered),
		CreatedAt:          g.now().UTC(),
	}
	g.logger.Log("[generator] checklist %s: %d items, est=%s, automation=%.2f",
		checklist.ID, len(ordered), checklist.EstimatedDuration, checklist.AutomationCoverage)
	return checklist, nil
}

// EstimateDuration sums the estimated time of the items.
func EstimateDuration(items []models.ChecklistItem) time.Duration {
	var total time.Duration
	for _, item := range items {
		total += item.EstimatedTime
	}
	return total
}

// AutomationCoverage returns the fraction of criteria validated automatically,
// rounded to two decimals. A checklist without criteria has coverage 0.
func AutomationCoverage(items []models.ChecklistItem) float64 {
	total, automated := 0, 0
	for _, item := range items {
		for _, c := range item.Criteria {
			total++
			if c.ValidationType == models.ValidationAutomated {
				automated++
			}
		}
	}
	if total == 0 {
		return 0
	}
	return math.Round(float64(automated)/float64(total)*100) / 100
}
