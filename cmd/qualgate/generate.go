package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/internal/changes"
	"github.com/ShayCichocki/qualgate/internal/config"
	"github.com/ShayCichocki/qualgate/internal/git"
	"github.com/ShayCichocki/qualgate/pkg/models"
)

// contextFlags are the flags describing the change under validation.
type contextFlags struct {
	changeType string
	title      string
	security   bool
	ui         bool
	api        bool
	database   bool
	tech       []string
	detect     bool
	base       string
}

func (f *contextFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.changeType, "change-type", "t", "feature", "Change type: feature, bugfix, security, ui, refactor, hotfix, docs")
	cmd.Flags().StringVar(&f.title, "title", "", "Short description of the change")
	cmd.Flags().BoolVar(&f.security, "security", false, "The change touches authn/authz, crypto or secrets")
	cmd.Flags().BoolVar(&f.ui, "ui", false, "The change touches user-facing interfaces")
	cmd.Flags().BoolVar(&f.api, "api", false, "The change touches public API contracts")
	cmd.Flags().BoolVar(&f.database, "database", false, "The change includes schema or migration changes")
	cmd.Flags().StringSliceVar(&f.tech, "tech", nil, "Technologies involved (repeatable, e.g. --tech go --tech postgres)")
	cmd.Flags().BoolVar(&f.detect, "detect", false, "Infer areas and technologies from the files changed since --base")
	cmd.Flags().StringVar(&f.base, "base", "HEAD", "Git ref the change is compared against with --detect")
}

var changeTypes = []models.ChangeType{
	models.ChangeFeature, models.ChangeBugfix, models.ChangeSecurity, models.ChangeUI,
	models.ChangeRefactor, models.ChangeHotfix, models.ChangeDocs,
}

// validationContext builds the context for repoPath from the flags.
func (f *contextFlags) validationContext(repoPath string) (models.ValidationContext, error) {
	ct := models.ChangeType(strings.ToLower(strings.TrimSpace(f.changeType)))
	known := false
	for _, c := range changeTypes {
		if c == ct {
			known = true
			break
		}
	}
	if !known {
		return models.ValidationContext{}, fmt.Errorf("unknown change type %q", f.changeType)
	}
	return models.ValidationContext{
		ChangeType:              ct,
		Title:                   f.title,
		RepoPath:                repoPath,
		IncludesSecurityChanges: f.security,
		IncludesUIChanges:       f.ui,
		IncludesAPIChanges:      f.api,
		IncludesDatabaseChanges: f.database,
		Technologies:            f.tech,
	}, nil
}

// buildContext builds the validation context and, with --detect, adds what
// the changed files show.
func (f *contextFlags) buildContext(ctx context.Context, root string) (models.ValidationContext, *changes.Summary, error) {
	vctx, err := f.validationContext(root)
	if err != nil || !f.detect {
		return vctx, nil, err
	}
	files, err := git.ChangeSet(ctx, git.NewRunner(root), f.base)
	if err != nil {
		return vctx, nil, fmt.Errorf("detect changes: %w", err)
	}
	c := changes.New(root)
	if err := c.LoadConfig(filepath.Join(root, config.ProjectConfigName)); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return vctx, nil, err
	}
	summary := c.Summarize(files)
	summary.Apply(&vctx)
	return vctx, summary, nil
}

// printSummary reports what --detect found.
func printSummary(s *changes.Summary) {
	if s == nil || jsonOutput() {
		return
	}
	areas := make([]string, 0, len(s.Areas))
	for _, a := range s.Areas {
		areas = append(areas, string(a))
	}
	if len(areas) == 0 {
		areas = append(areas, "none")
	}
	printStatus("•", fmt.Sprintf("%d changed file(s); areas: %s; technologies: %s",
		len(s.Files), strings.Join(areas, ", "), strings.Join(s.Technologies, ", ")), color.FgCyan)
}

var generateFlags contextFlags

var generateCmd = &cobra.Command{
	Use:   "generate",
	Short: "Generate the quality checklist for a change",
	Long: `Generate selects the catalog items that apply to a change and orders
them by their dependencies. The checklist is stored so that run --checklist
and assign can use it later.`,
	RunE: runGenerate,
}

func init() {
	generateFlags.register(generateCmd)
}

func runGenerate(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd.Context(), appOptions{})
	if err != nil {
		return err
	}
	defer a.close()

	vctx, summary, err := generateFlags.buildContext(cmd.Context(), a.cfg.Root)
	if err != nil {
		return err
	}
	printSummary(summary)
	cl, err := a.pipeline.GenerateChecklist(cmd.Context(), vctx)
	if err != nil {
		return err
	}
	if jsonOutput() {
		return printJSON(cl)
	}
	printChecklist(cl)
	return nil
}

func printChecklist(cl *models.Checklist) {
	printStatus("✓", fmt.Sprintf("Checklist %s: %d items, %d criteria, %.0f%% automated, ~%s",
		cl.ID, len(cl.Items), cl.CriteriaCount(), cl.AutomationCoverage*100, cl.EstimatedDuration.Round(time.Minute)), color.FgGreen)

	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"#", "Item", "Priority", "Phase", "Criteria", "Depends on"})
	for i, item := range cl.Items {
		tw.AppendRow(table.Row{i + 1, item.ID, item.Priority, item.Phase, len(item.Criteria), strings.Join(item.Dependencies, ", ")})
	}
	tw.Render()
}
