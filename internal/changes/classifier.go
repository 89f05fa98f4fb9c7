// Package changes infers what a change touches from the files it modifies.
//
// Each changed path is matched against per-area rules (glob patterns,
// keywords in the path and file extensions) and, for source files present
// on disk, against the imports at the top of the file. The resulting
// Summary fills the flags of a models.ValidationContext.
package changes

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"

	"go.yaml.in/yaml/v3"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Area is a part of the system a change can touch.
type Area string

const (
	AreaSecurity Area = "security"
	AreaDatabase Area = "database"
	AreaUI       Area = "ui"
	AreaAPI      Area = "api"
)

// Areas lists every area in display order.
var Areas = []Area{AreaSecurity, AreaDatabase, AreaUI, AreaAPI}

// Rules decide whether a path belongs to an area.
type Rules struct {
	Patterns  []string `yaml:"patterns"`
	Keywords  []string `yaml:"keywords"`
	FileTypes []string `yaml:"file_types"`
}

// Match is one reason a path belongs to an area.
type Match struct {
	Path   string `json:"path"`
	Area   Area   `json:"area"`
	Reason string `json:"reason"`
}

// projectConfig is the part of .qualgate.yaml the classifier reads.
type projectConfig struct {
	ChangeAreas map[Area]Rules `yaml:"change_areas"`
}

// Classifier maps changed paths to areas.
type Classifier struct {
	root    string
	rules   map[Area]Rules
	imports *ImportScanner
	mu      sync.RWMutex
}

// New creates a classifier with the default rules. Import scanning reads
// files relative to root; an empty root disables it.
func New(root string) *Classifier {
	c := &Classifier{root: root, rules: make(map[Area]Rules, len(DefaultRules))}
	for area, r := range DefaultRules {
		c.rules[area] = Rules{
			Patterns:  append([]string{}, r.Patterns...),
			Keywords:  append([]string{}, r.Keywords...),
			FileTypes: append([]string{}, r.FileTypes...),
		}
	}
	if root != "" {
		c.imports = NewImportScanner()
	}
	return c
}

// Add extends the rules of an area.
func (c *Classifier) Add(area Area, r Rules) {
	c.mu.Lock()
	defer c.mu.Unlock()
	cur := c.rules[area]
	cur.Patterns = append(cur.Patterns, r.Patterns...)
	cur.Keywords = append(cur.Keywords, r.Keywords...)
	cur.FileTypes = append(cur.FileTypes, r.FileTypes...)
	c.rules[area] = cur
}

// LoadConfig adds the change_areas section of a project config file.
// Unknown areas are rejected.
func (c *Classifier) LoadConfig(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var cfg projectConfig
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	for area, r := range cfg.ChangeAreas {
		if !area.valid() {
			return fmt.Errorf("%s: unknown change area %q", path, area)
		}
		c.Add(area, r)
	}
	return nil
}

func (a Area) valid() bool {
	for _, known := range Areas {
		if a == known {
			return true
		}
	}
	return false
}

// Classify returns every area path belongs to, at most one match per area.
func (c *Classifier) Classify(path string) []Match {
	c.mu.RLock()
	defer c.mu.RUnlock()

	normalized := filepath.ToSlash(path)
	lower := strings.ToLower(normalized)
	ext := strings.ToLower(filepath.Ext(normalized))

	var out []Match
	hit := make(map[Area]bool)
	for _, area := range Areas {
		if reason := c.rules[area].match(normalized, lower, ext); reason != "" {
			hit[area] = true
			out = append(out, Match{Path: path, Area: area, Reason: reason})
		}
	}

	if c.imports != nil && ext != "" {
		for _, m := range c.imports.Scan(filepath.Join(c.root, path)) {
			if hit[m.Area] {
				continue
			}
			m.Path = path
			out = append(out, m)
		}
	}
	return out
}

func (r Rules) match(path, lower, ext string) string {
	for _, p := range r.Patterns {
		if matchGlobPattern(path, p) {
			return "pattern " + p
		}
	}
	for _, k := range r.Keywords {
		if strings.Contains(lower, strings.ToLower(k)) {
			return "keyword " + k
		}
	}
	for _, ft := range r.FileTypes {
		if ext == strings.ToLower(ft) || strings.EqualFold(filepath.Base(path), ft) {
			return "file type " + ft
		}
	}
	return ""
}

// Summary describes a set of changed files.
type Summary struct {
	Files        []string `json:"files"`
	Matches      []Match  `json:"matches,omitempty"`
	Areas        []Area   `json:"areas,omitempty"`
	Technologies []string `json:"technologies,omitempty"`
}

// Has reports whether any file touched area.
func (s *Summary) Has(area Area) bool {
	for _, a := range s.Areas {
		if a == area {
			return true
		}
	}
	return false
}

// Summarize classifies every path.
func (c *Classifier) Summarize(paths []string) *Summary {
	s := &Summary{Files: paths}
	areas := make(map[Area]bool)
	techs := make(map[string]bool)
	for _, p := range paths {
		for _, m := range c.Classify(p) {
			s.Matches = append(s.Matches, m)
			areas[m.Area] = true
		}
		if t := Technology(p); t != "" {
			techs[t] = true
		}
	}
	for _, a := range Areas {
		if areas[a] {
			s.Areas = append(s.Areas, a)
		}
	}
	for t := range techs {
		s.Technologies = append(s.Technologies, t)
	}
	sort.Strings(s.Technologies)
	return s
}

// Apply sets the flags of vctx for the touched areas and adds detected
// technologies. Flags already set stay set.
func (s *Summary) Apply(vctx *models.ValidationContext) {
	vctx.IncludesSecurityChanges = vctx.IncludesSecurityChanges || s.Has(AreaSecurity)
	vctx.IncludesDatabaseChanges = vctx.IncludesDatabaseChanges || s.Has(AreaDatabase)
	vctx.IncludesUIChanges = vctx.IncludesUIChanges || s.Has(AreaUI)
	vctx.IncludesAPIChanges = vctx.IncludesAPIChanges || s.Has(AreaAPI)
	for _, t := range s.Technologies {
		if !vctx.HasTechnology(t) {
			vctx.Technologies = append(vctx.Technologies, t)
		}
	}
}

// Technology returns the technology a path indicates, or "".
func Technology(path string) string {
	base := strings.ToLower(filepath.Base(filepath.ToSlash(path)))
	if t, ok := technologyFiles[base]; ok {
		return t
	}
	return technologies[strings.ToLower(filepath.Ext(base))]
}
