// Package responsibility maps checklist items to the people who own,
// review, approve and receive escalations for them.
package responsibility

import (
	"errors"
	"fmt"
	"os"
	"slices"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// ErrNoMapping indicates no role mapping covers an item.
var ErrNoMapping = errors.New("no role mapping")

// Role is a named responsibility with the capabilities it provides.
type Role struct {
	Name         string   `yaml:"name"`
	Capabilities []string `yaml:"capabilities"`
}

// Mapping assigns roles to an item. Owner may be left empty when
// Capability names what the owner must be able to do.
type Mapping struct {
	Owner           string   `yaml:"owner"`
	Capability      string   `yaml:"capability"`
	SecondaryOwners []string `yaml:"secondary"`
	Reviewers       []string `yaml:"reviewers"`
	Approvers       []string `yaml:"approvers"`
	EscalationPath  []string `yaml:"escalation"`
	SLAHours        int      `yaml:"sla_hours"`
}

// Registry is the immutable role-capability registry.
type Registry struct {
	roles             []Role
	byCategory        map[string]Mapping
	byPhase           map[models.Phase]Mapping
	fallback          *Mapping
	defaultEscalation []string
	slaHours          map[models.Priority]int
}

type registryFile struct {
	Roles             []Role                  `yaml:"roles"`
	Categories        map[string]Mapping      `yaml:"categories"`
	Phases            map[string]Mapping      `yaml:"phases"`
	Default           *Mapping                `yaml:"default"`
	DefaultEscalation []string                `yaml:"default_escalation"`
	SLAHours          map[models.Priority]int `yaml:"sla_hours"`
}

// defaultSLAHours applies when neither the mapping nor the registry file sets an SLA.
var defaultSLAHours = map[models.Priority]int{
	models.PriorityCritical: 4,
	models.PriorityHigh:     24,
	models.PriorityMedium:   72,
	models.PriorityLow:      168,
}

// LoadRegistry reads a registry from a YAML file.
func LoadRegistry(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read role registry %s: %w", path, err)
	}
	return ParseRegistry(data)
}

// ParseRegistry decodes and validates a YAML registry.
func ParseRegistry(data []byte) (*Registry, error) {
	var f registryFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse role registry: %w", err)
	}

	r := &Registry{
		roles:             f.Roles,
		byCategory:        f.Categories,
		byPhase:           make(map[models.Phase]Mapping, len(f.Phases)),
		fallback:          f.Default,
		defaultEscalation: f.DefaultEscalation,
		slaHours:          make(map[models.Priority]int, len(defaultSLAHours)),
	}
	if r.byCategory == nil {
		r.byCategory = make(map[string]Mapping)
	}
	for phase, m := range f.Phases {
		r.byPhase[models.Phase(phase)] = m
	}
	for p, h := range defaultSLAHours {
		r.slaHours[p] = h
	}
	for p, h := range f.SLAHours {
		r.slaHours[p] = h
	}

	if err := r.validate(); err != nil {
		return nil, err
	}
	return r, nil
}

func (r *Registry) validate() error {
	known := make(map[string]bool, len(r.roles))
	for _, role := range r.roles {
		if role.Name == "" {
			return fmt.Errorf("role registry: role with empty name")
		}
		known[role.Name] = true
	}

	check := func(where string, m Mapping) error {
		if m.Owner == "" && m.Capability == "" {
			return fmt.Errorf("role registry: %s: owner or capability is required", where)
		}
		if m.Owner == "" && r.roleWithCapability(m.Capability) == "" {
			return fmt.Errorf("role registry: %s: no role has capability %q", where, m.Capability)
		}
		roles := append([]string{m.Owner}, m.SecondaryOwners...)
		roles = append(roles, m.Reviewers...)
		roles = append(roles, m.Approvers...)
		roles = append(roles, m.EscalationPath...)
		for _, name := range roles {
			if name != "" && !known[name] {
				return fmt.Errorf("role registry: %s: unknown role %q", where, name)
			}
		}
		return nil
	}

	for cat, m := range r.byCategory {
		if err := check("category "+cat, m); err != nil {
			return err
		}
	}
	for phase, m := range r.byPhase {
		if !phase.Valid() {
			return fmt.Errorf("role registry: unknown phase %q", phase)
		}
		if err := check("phase "+string(phase), m); err != nil {
			return err
		}
	}
	if r.fallback != nil {
		if err := check("default", *r.fallback); err != nil {
			return err
		}
	}
	for _, name := range r.defaultEscalation {
		if !known[name] {
			return fmt.Errorf("role registry: default escalation: unknown role %q", name)
		}
	}
	return nil
}

// Lookup returns the mapping for an item: by category, then by phase, then
// the registry default. The owner is filled in from the capability when
// the mapping names only a capability.
func (r *Registry) Lookup(item models.ChecklistItem) (Mapping, error) {
	m, ok := r.byCategory[item.Category]
	if !ok {
		m, ok = r.byPhase[item.Phase]
	}
	if !ok && r.fallback != nil {
		m, ok = *r.fallback, true
	}
	if !ok {
		return Mapping{}, fmt.Errorf("%w for item %s (category %s, phase %s)", ErrNoMapping, item.ID, item.Category, item.Phase)
	}
	if m.Owner == "" {
		m.Owner = r.roleWithCapability(m.Capability)
	}
	if len(m.EscalationPath) == 0 && item.IsCritical() {
		m.EscalationPath = append([]string(nil), r.defaultEscalation...)
	}
	return m, nil
}

// SLAHours returns the SLA for an item under a mapping.
func (r *Registry) SLAHours(m Mapping, p models.Priority) int {
	if m.SLAHours > 0 {
		return m.SLAHours
	}
	if h, ok := r.slaHours[p]; ok && h > 0 {
		return h
	}
	return defaultSLAHours[models.PriorityMedium]
}

// RolesWithCapability returns the roles providing a capability, in declaration order.
func (r *Registry) RolesWithCapability(capability string) []string {
	var out []string
	for _, role := range r.roles {
		if slices.Contains(role.Capabilities, capability) {
			out = append(out, role.Name)
		}
	}
	return out
}

func (r *Registry) roleWithCapability(capability string) string {
	if roles := r.RolesWithCapability(capability); len(roles) > 0 {
		return roles[0]
	}
	return ""
}

// DefaultRegistry returns the built-in registry matching the default catalog.
func DefaultRegistry() *Registry {
	r, err := ParseRegistry([]byte(defaultRegistryYAML))
	if err != nil {
		panic(err)
	}
	return r
}

const defaultRegistryYAML = `
roles:
  - name: developer
    capabilities: [implementation, unit-testing]
  - name: tech-lead
    capabilities: [code-review, architecture, api-design]
  - name: qa-engineer
    capabilities: [testing, acceptance]
  - name: security-engineer
    capabilities: [security-review]
  - name: security-lead
    capabilities: [security-approval]
  - name: designer
    capabilities: [design-review, accessibility]
  - name: dba
    capabilities: [database-review]
  - name: product-owner
    capabilities: [acceptance, documentation]
  - name: release-manager
    capabilities: [deployment]
  - name: engineering-manager
    capabilities: [escalation]
  - name: cto
    capabilities: [escalation]
categories:
  code-standards:
    owner: developer
    reviewers: [tech-lead]
    escalation: [tech-lead, engineering-manager]
  testing:
    capability: testing
    secondary: [developer]
    reviewers: [tech-lead]
    escalation: [tech-lead, engineering-manager]
  security:
    capability: security-review
    reviewers: [tech-lead]
    approvers: [security-lead]
    escalation: [security-lead, cto]
    sla_hours: 8
  ui:
    capability: design-review
    secondary: [developer]
    reviewers: [qa-engineer]
    approvers: [product-owner]
  api:
    capability: api-design
    reviewers: [developer]
    escalation: [engineering-manager]
  database:
    capability: database-review
    reviewers: [tech-lead]
    escalation: [tech-lead, engineering-manager, cto]
  requirements:
    owner: product-owner
    reviewers: [qa-engineer]
  documentation:
    capability: documentation
    secondary: [developer]
phases:
  deployment:
    capability: deployment
    approvers: [tech-lead]
    escalation: [engineering-manager, cto]
default:
  owner: tech-lead
  escalation: [engineering-manager]
default_escalation: [tech-lead, engineering-manager]
`
