package catalog

import (
	"fmt"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ValidationError represents a single validation issue with a catalog.
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

// Validate checks catalog items for structural errors and returns all of
// them (empty if valid). Dependencies on unknown items and dependency cycles
// are not reported here: they are only fatal for the checklists that select
// the offending items, and the generator reports them then.
func Validate(items []models.ChecklistItem) []ValidationError {
	var errs []ValidationError
	seen := make(map[string]bool)

	for i, item := range items {
		prefix := fmt.Sprintf("items[%d]", i)
		if item.ID == "" {
			errs = append(errs, ValidationError{Field: prefix + ".id", Message: "is required"})
		} else {
			prefix = fmt.Sprintf("items[%s]", item.ID)
			if seen[item.ID] {
				errs = append(errs, ValidationError{Field: prefix + ".id", Message: fmt.Sprintf("duplicate item ID %q", item.ID)})
			}
			seen[item.ID] = true
		}

		if item.Title == "" {
			errs = append(errs, ValidationError{Field: prefix + ".title", Message: "is required"})
		}
		if !item.Priority.Valid() {
			errs = append(errs, ValidationError{Field: prefix + ".priority", Message: fmt.Sprintf("unknown priority %q", item.Priority)})
		}
		if !item.Phase.Valid() {
			errs = append(errs, ValidationError{Field: prefix + ".phase", Message: fmt.Sprintf("unknown phase %q", item.Phase)})
		}
		if item.EstimatedTime < 0 {
			errs = append(errs, ValidationError{Field: prefix + ".estimated_time", Message: "must not be negative"})
		}
		for _, dep := range item.Dependencies {
			if dep == item.ID {
				errs = append(errs, ValidationError{Field: prefix + ".dependencies", Message: "item depends on itself"})
			}
		}

		criterionIDs := make(map[string]bool)
		for j, c := range item.Criteria {
			cprefix := fmt.Sprintf("%s.criteria[%d]", prefix, j)
			if c.ID == "" {
				errs = append(errs, ValidationError{Field: cprefix + ".id", Message: "is required"})
			} else if criterionIDs[c.ID] {
				errs = append(errs, ValidationError{Field: cprefix + ".id", Message: fmt.Sprintf("duplicate criterion ID %q", c.ID)})
			}
			criterionIDs[c.ID] = true

			if !c.ValidationType.Valid() {
				errs = append(errs, ValidationError{Field: cprefix + ".type", Message: fmt.Sprintf("unknown validation type %q", c.ValidationType)})
			}
			if c.ValidationType == models.ValidationAutomated && c.ValidationMethod == "" {
				errs = append(errs, ValidationError{Field: cprefix + ".method", Message: "automated criteria need a command"})
			}
			if c.PassingThreshold < 0 || c.PassingThreshold > 100 {
				errs = append(errs, ValidationError{Field: cprefix + ".threshold", Message: fmt.Sprintf("threshold %d outside 0-100", c.PassingThreshold)})
			}
			if c.Weight <= 0 {
				errs = append(errs, ValidationError{Field: cprefix + ".weight", Message: "must be greater than zero"})
			}
			if c.Parser != "" && !recognizedParsers[c.Parser] {
				errs = append(errs, ValidationError{Field: cprefix + ".parser", Message: fmt.Sprintf("unrecognized parser %q", c.Parser)})
			}
		}
	}

	return errs
}

// recognizedParsers is the set of output parsers automated criteria may name.
// Kept in sync with validator.NewParsers.
var recognizedParsers = map[string]bool{
	"exit-code":       true,
	"json-score":      true,
	"json-percentage": true,
	"go-cover":        true,
	"vitest":          true,
	"npm-audit":       true,
}
