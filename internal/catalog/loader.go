package catalog

import (
	"fmt"
	"os"
	"time"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// fileSchema is the on-disk layout of a catalog file.
type fileSchema struct {
	Items []itemSchema `yaml:"items"`
}

type itemSchema struct {
	ID            string            `yaml:"id"`
	Category      string            `yaml:"category"`
	Title         string            `yaml:"title"`
	Priority      string            `yaml:"priority"`
	Phase         string            `yaml:"phase"`
	EstimatedTime string            `yaml:"estimated_time"`
	Dependencies  []string          `yaml:"dependencies"`
	AppliesWhen   applicability     `yaml:"applies_when"`
	Criteria      []criterionSchema `yaml:"criteria"`
}

type applicability struct {
	ChangeTypes     []string `yaml:"change_types"`
	SecurityChanges bool     `yaml:"security_changes"`
	UIChanges       bool     `yaml:"ui_changes"`
	APIChanges      bool     `yaml:"api_changes"`
	DatabaseChanges bool     `yaml:"database_changes"`
	Technologies    []string `yaml:"technologies"`
}

type criterionSchema struct {
	ID          string `yaml:"id"`
	Description string `yaml:"description"`
	Type        string `yaml:"type"`
	Method      string `yaml:"method"`
	Parser      string `yaml:"parser"`
	Threshold   *int   `yaml:"threshold"`
	Weight      int    `yaml:"weight"`
}

// LoadFile reads and validates a catalog from a YAML file.
func LoadFile(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read catalog %s: %w", path, err)
	}
	c, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("load catalog %s: %w", path, err)
	}
	return c, nil
}

// Parse decodes a YAML catalog. Missing criterion weights default to 1 and
// missing thresholds to 100.
func Parse(data []byte) (*Catalog, error) {
	var raw fileSchema
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse catalog: %w", err)
	}

	items := make([]models.ChecklistItem, 0, len(raw.Items))
	for _, ri := range raw.Items {
		item, err := ri.toItem()
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	return New(items)
}

func (ri itemSchema) toItem() (models.ChecklistItem, error) {
	var est time.Duration
	if ri.EstimatedTime != "" {
		d, err := time.ParseDuration(ri.EstimatedTime)
		if err != nil {
			return models.ChecklistItem{}, fmt.Errorf("item %s: invalid estimated_time %q: %w", ri.ID, ri.EstimatedTime, err)
		}
		est = d
	}

	priority := models.Priority(ri.Priority)
	if ri.Priority == "" {
		priority = models.PriorityMedium
	}

	item := models.ChecklistItem{
		ID:            ri.ID,
		Category:      ri.Category,
		Title:         ri.Title,
		Priority:      priority,
		Phase:         models.Phase(ri.Phase),
		Dependencies:  ri.Dependencies,
		EstimatedTime: est,
		Applicability: models.Applicability{
			RequiresSecurityChanges: ri.AppliesWhen.SecurityChanges,
			RequiresUIChanges:       ri.AppliesWhen.UIChanges,
			RequiresAPIChanges:      ri.AppliesWhen.APIChanges,
			RequiresDatabaseChanges: ri.AppliesWhen.DatabaseChanges,
			Technologies:            ri.AppliesWhen.Technologies,
		},
	}
	for _, ct := range ri.AppliesWhen.ChangeTypes {
		item.Applicability.ChangeTypes = append(item.Applicability.ChangeTypes, models.ChangeType(ct))
	}

	for _, rc := range ri.Criteria {
		threshold := 100
		if rc.Threshold != nil {
			threshold = *rc.Threshold
		}
		weight := rc.Weight
		if weight == 0 {
			weight = 1
		}
		item.Criteria = append(item.Criteria, models.Criterion{
			ID:               rc.ID,
			Description:      rc.Description,
			ValidationType:   models.ValidationType(rc.Type),
			ValidationMethod: rc.Method,
			Parser:           rc.Parser,
			PassingThreshold: threshold,
			Weight:           weight,
		})
	}
	return item, nil
}
