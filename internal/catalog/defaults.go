package catalog

import (
	"time"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Default returns the built-in catalog used when no catalog file is configured.
func Default() *Catalog {
	return MustNew(defaultItems())
}

func defaultItems() []models.ChecklistItem {
	return []models.ChecklistItem{
		{
			ID:            "requirements-review",
			Category:      "requirements",
			Title:         "Acceptance criteria reviewed",
			Priority:      models.PriorityHigh,
			Phase:         models.PhasePreDevelopment,
			EstimatedTime: 15 * time.Minute,
			Applicability: models.Applicability{
				ChangeTypes: []models.ChangeType{models.ChangeFeature, models.ChangeUI},
			},
			Criteria: []models.Criterion{
				{ID: "acceptance-criteria", Description: "Story acceptance criteria are defined and met", ValidationType: models.ValidationManual, ValidationMethod: "story-acceptance", PassingThreshold: 80, Weight: 1},
			},
		},
		{
			ID:            "code-standards",
			Category:      "code-standards",
			Title:         "Code follows project standards",
			Priority:      models.PriorityHigh,
			Phase:         models.PhaseDevelopment,
			EstimatedTime: 5 * time.Minute,
			Criteria: []models.Criterion{
				{ID: "lint", Description: "Linter reports no issues", ValidationType: models.ValidationAutomated, ValidationMethod: "go vet ./...", Parser: "exit-code", PassingThreshold: 100, Weight: 2},
				{ID: "format", Description: "Sources are gofmt-clean", ValidationType: models.ValidationAutomated, ValidationMethod: "test -z \"$(gofmt -l .)\"", Parser: "exit-code", PassingThreshold: 100, Weight: 1},
			},
		},
		{
			ID:            "unit-tests",
			Category:      "testing",
			Title:         "Unit tests pass with sufficient coverage",
			Priority:      models.PriorityCritical,
			Phase:         models.PhaseDevelopment,
			Dependencies:  []string{"code-standards"},
			EstimatedTime: 10 * time.Minute,
			Criteria: []models.Criterion{
				{ID: "tests-pass", Description: "All unit tests pass", ValidationType: models.ValidationAutomated, ValidationMethod: "go test ./...", Parser: "exit-code", PassingThreshold: 100, Weight: 3},
				{ID: "coverage", Description: "Statement coverage meets the floor", ValidationType: models.ValidationAutomated, ValidationMethod: "go test -cover ./...", Parser: "go-cover", PassingThreshold: 70, Weight: 1},
			},
		},
		{
			ID:            "security-scan",
			Category:      "security",
			Title:         "Security review and scan",
			Priority:      models.PriorityCritical,
			Phase:         models.PhasePostDevelopment,
			Dependencies:  []string{"unit-tests"},
			EstimatedTime: 30 * time.Minute,
			Applicability: models.Applicability{RequiresSecurityChanges: true},
			Criteria: []models.Criterion{
				{ID: "static-analysis", Description: "Static security analysis is clean", ValidationType: models.ValidationAutomated, ValidationMethod: "gosec -quiet ./...", Parser: "exit-code", PassingThreshold: 100, Weight: 2},
				{ID: "threat-review", Description: "Threat model reviewed by security", ValidationType: models.ValidationSemiAutomated, ValidationMethod: "security-review", PassingThreshold: 80, Weight: 1},
			},
		},
		{
			ID:            "dependency-audit",
			Category:      "security",
			Title:         "Dependencies have no known vulnerabilities",
			Priority:      models.PriorityHigh,
			Phase:         models.PhasePostDevelopment,
			EstimatedTime: 5 * time.Minute,
			Applicability: models.Applicability{
				ChangeTypes: []models.ChangeType{models.ChangeSecurity},
			},
			Criteria: []models.Criterion{
				{ID: "npm-audit", Description: "npm audit reports no high or critical findings", ValidationType: models.ValidationAutomated, ValidationMethod: "npm audit --json", Parser: "npm-audit", PassingThreshold: 100, Weight: 1},
			},
		},
		{
			ID:            "frontend-tests",
			Category:      "testing",
			Title:         "Frontend test suite passes",
			Priority:      models.PriorityHigh,
			Phase:         models.PhaseDevelopment,
			EstimatedTime: 10 * time.Minute,
			Applicability: models.Applicability{Technologies: []string{"react", "vue", "typescript"}},
			Criteria: []models.Criterion{
				{ID: "vitest", Description: "Vitest suite passes", ValidationType: models.ValidationAutomated, ValidationMethod: "npx vitest run --reporter=json", Parser: "vitest", PassingThreshold: 100, Weight: 1},
			},
		},
		{
			ID:            "accessibility",
			Category:      "ui",
			Title:         "Accessibility check",
			Priority:      models.PriorityMedium,
			Phase:         models.PhasePostDevelopment,
			EstimatedTime: 20 * time.Minute,
			Applicability: models.Applicability{RequiresUIChanges: true},
			Criteria: []models.Criterion{
				{ID: "a11y-audit", Description: "Automated accessibility score", ValidationType: models.ValidationAutomated, ValidationMethod: "npx pa11y-ci --json", Parser: "json-score", PassingThreshold: 90, Weight: 1},
			},
		},
		{
			ID:            "ui-review",
			Category:      "ui",
			Title:         "Visual design review",
			Priority:      models.PriorityMedium,
			Phase:         models.PhasePostDevelopment,
			Dependencies:  []string{"accessibility"},
			EstimatedTime: 30 * time.Minute,
			Applicability: models.Applicability{RequiresUIChanges: true},
			Criteria: []models.Criterion{
				{ID: "design-signoff", Description: "Designer signs off on the change", ValidationType: models.ValidationManual, ValidationMethod: "design-review", PassingThreshold: 80, Weight: 1},
			},
		},
		{
			ID:            "api-contract",
			Category:      "api",
			Title:         "API contract is backwards compatible",
			Priority:      models.PriorityHigh,
			Phase:         models.PhaseDevelopment,
			EstimatedTime: 15 * time.Minute,
			Applicability: models.Applicability{RequiresAPIChanges: true},
			Criteria: []models.Criterion{
				{ID: "contract-review", Description: "Breaking changes reviewed", ValidationType: models.ValidationSemiAutomated, ValidationMethod: "api-review", PassingThreshold: 80, Weight: 1},
			},
		},
		{
			ID:            "migration-review",
			Category:      "database",
			Title:         "Database migration reviewed",
			Priority:      models.PriorityCritical,
			Phase:         models.PhasePostDevelopment,
			EstimatedTime: 20 * time.Minute,
			Applicability: models.Applicability{RequiresDatabaseChanges: true},
			Criteria: []models.Criterion{
				{ID: "migration-reversible", Description: "Migration has a tested rollback", ValidationType: models.ValidationManual, ValidationMethod: "migration-review", PassingThreshold: 100, Weight: 1},
			},
		},
		{
			ID:            "performance",
			Category:      "performance",
			Title:         "Performance budget respected",
			Priority:      models.PriorityMedium,
			Phase:         models.PhasePostDevelopment,
			Dependencies:  []string{"unit-tests"},
			EstimatedTime: 15 * time.Minute,
			Applicability: models.Applicability{
				ChangeTypes: []models.ChangeType{models.ChangeFeature, models.ChangeRefactor},
			},
			Criteria: []models.Criterion{
				{ID: "benchmarks", Description: "Benchmarks within budget", ValidationType: models.ValidationAutomated, ValidationMethod: "go test -run=^$ -bench=. ./...", Parser: "exit-code", PassingThreshold: 100, Weight: 1},
			},
		},
		{
			ID:            "documentation",
			Category:      "documentation",
			Title:         "Documentation updated",
			Priority:      models.PriorityLow,
			Phase:         models.PhasePostDevelopment,
			EstimatedTime: 10 * time.Minute,
			Applicability: models.Applicability{
				ChangeTypes: []models.ChangeType{models.ChangeFeature, models.ChangeDocs},
			},
			Criteria: []models.Criterion{
				{ID: "docs-updated", Description: "User-facing docs reflect the change", ValidationType: models.ValidationManual, ValidationMethod: "docs-review", PassingThreshold: 60, Weight: 1},
			},
		},
		{
			ID:            "deployment-readiness",
			Category:      "deployment",
			Title:         "Deployment readiness",
			Priority:      models.PriorityHigh,
			Phase:         models.PhaseDeployment,
			Dependencies:  []string{"unit-tests", "security-scan", "migration-review"},
			EstimatedTime: 10 * time.Minute,
			Applicability: models.Applicability{
				ChangeTypes: []models.ChangeType{models.ChangeFeature, models.ChangeHotfix, models.ChangeSecurity},
			},
			Criteria: []models.Criterion{
				{ID: "rollback-plan", Description: "Rollback plan documented", ValidationType: models.ValidationManual, ValidationMethod: "release-review", PassingThreshold: 80, Weight: 1},
			},
		},
	}
}
