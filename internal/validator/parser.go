package validator

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

// Parser converts raw command output into a normalized result.
type Parser interface {
	Parse(stdout string, stderr string, exitCode int) (models.RawResult, error)
}

// DefaultParser is used when a criterion names no parser.
const DefaultParser = "exit-code"

// NewParsers returns the built-in parser registry.
func NewParsers() map[string]Parser {
	return map[string]Parser{
		"exit-code":       &ExitCodeParser{},
		"json-score":      &JSONScoreParser{},
		"json-percentage": &JSONPercentageParser{},
		"go-cover":        &GoCoverParser{},
		"vitest":          &VitestParser{},
		"npm-audit":       &NPMAuditParser{},
	}
}

// maxDetailLen caps how much command output is kept in result details.
const maxDetailLen = 4000

// tail keeps the end of the output, where error summaries usually are.
func tail(stdout, stderr string) string {
	combined := stdout
	if stderr != "" {
		if combined != "" {
			combined += "\n"
		}
		combined += stderr
	}
	combined = strings.TrimSpace(combined)
	if len(combined) > maxDetailLen {
		combined = "…(truncated)\n" + combined[len(combined)-maxDetailLen:]
	}
	return combined
}

// ExitCodeParser passes on exit code 0.
type ExitCodeParser struct{}

func (p *ExitCodeParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	if exitCode == 0 {
		return models.PassResult{Passed: true, Details: "passed (exit code 0)"}, nil
	}
	details := fmt.Sprintf("exit code %d", exitCode)
	if out := tail(stdout, stderr); out != "" {
		details += "\n" + out
	}
	return models.PassResult{Passed: false, Details: details}, nil
}

// JSONScoreParser reads {"score": N, "details": "..."} from stdout.
type JSONScoreParser struct{}

type jsonScoreOutput struct {
	Score   *float64 `json:"score"`
	Details string   `json:"details"`
}

func (p *JSONScoreParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	var out jsonScoreOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &out); err != nil {
		return nil, fmt.Errorf("%w: could not parse score JSON (exit code %d): %v", models.ErrMalformedResult, exitCode, err)
	}
	if out.Score == nil {
		return nil, fmt.Errorf("%w: score field missing", models.ErrMalformedResult)
	}
	return models.ScoreResult{Value: *out.Score, Details: out.Details}, nil
}

// JSONPercentageParser reads {"percentage": N, "details": "..."} from stdout.
type JSONPercentageParser struct{}

type jsonPercentageOutput struct {
	Percentage *float64 `json:"percentage"`
	Details    string   `json:"details"`
}

func (p *JSONPercentageParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	var out jsonPercentageOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &out); err != nil {
		return nil, fmt.Errorf("%w: could not parse percentage JSON (exit code %d): %v", models.ErrMalformedResult, exitCode, err)
	}
	if out.Percentage == nil {
		return nil, fmt.Errorf("%w: percentage field missing", models.ErrMalformedResult)
	}
	return models.PercentageResult{Value: *out.Percentage, Details: out.Details}, nil
}

// GoCoverParser averages the "coverage: N% of statements" lines of go test -cover.
// A failing test run scores 0 regardless of coverage.
type GoCoverParser struct{}

var coverageLine = regexp.MustCompile(`coverage:\s+([0-9.]+)% of statements`)

func (p *GoCoverParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	if exitCode != 0 {
		return models.PercentageResult{Value: 0, Details: fmt.Sprintf("tests failed (exit code %d)\n%s", exitCode, tail(stdout, stderr))}, nil
	}

	matches := coverageLine.FindAllStringSubmatch(stdout, -1)
	if len(matches) == 0 {
		return nil, fmt.Errorf("%w: no coverage lines in output", models.ErrMalformedResult)
	}

	var sum float64
	for _, m := range matches {
		v, err := strconv.ParseFloat(m[1], 64)
		if err != nil {
			return nil, fmt.Errorf("%w: bad coverage value %q", models.ErrMalformedResult, m[1])
		}
		sum += v
	}
	avg := sum / float64(len(matches))
	return models.PercentageResult{
		Value:   avg,
		Details: fmt.Sprintf("%.1f%% mean statement coverage over %d packages", avg, len(matches)),
	}, nil
}

// VitestParser scores vitest/jest JSON reporter output by the share of passing tests.
type VitestParser struct{}

type vitestOutput struct {
	NumTotalTests   int  `json:"numTotalTests"`
	NumPassedTests  int  `json:"numPassedTests"`
	NumFailedTests  int  `json:"numFailedTests"`
	NumPendingTests int  `json:"numPendingTests"`
	Success         bool `json:"success"`
	TestResults     []struct {
		Name             string `json:"name"`
		AssertionResults []struct {
			FullName        string   `json:"fullName"`
			Status          string   `json:"status"`
			FailureMessages []string `json:"failureMessages"`
		} `json:"assertionResults"`
	} `json:"testResults"`
}

func (p *VitestParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	var raw vitestOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &raw); err != nil {
		return nil, fmt.Errorf("%w: could not parse test JSON (exit code %d): %v", models.ErrMalformedResult, exitCode, err)
	}

	summary := fmt.Sprintf("%d passed, %d failed, %d skipped out of %d",
		raw.NumPassedTests, raw.NumFailedTests, raw.NumPendingTests, raw.NumTotalTests)

	var failures []string
	for _, suite := range raw.TestResults {
		for _, a := range suite.AssertionResults {
			if a.Status == "failed" {
				failures = append(failures, suite.Name+": "+a.FullName)
			}
		}
	}
	if len(failures) > 0 {
		summary += "\nfailed: " + strings.Join(failures, "; ")
	}

	ran := raw.NumPassedTests + raw.NumFailedTests
	if ran == 0 {
		return models.PassResult{Passed: exitCode == 0, Details: summary}, nil
	}
	return models.ScoreResult{Value: float64(raw.NumPassedTests) / float64(ran) * 100, Details: summary}, nil
}

// NPMAuditParser parses npm audit --json output. Any high or critical
// finding fails the criterion; moderate and low findings reduce the score.
type NPMAuditParser struct{}

type npmAuditOutput struct {
	Metadata struct {
		Vulnerabilities struct {
			Critical int `json:"critical"`
			High     int `json:"high"`
			Moderate int `json:"moderate"`
			Low      int `json:"low"`
			Info     int `json:"info"`
			Total    int `json:"total"`
		} `json:"vulnerabilities"`
	} `json:"metadata"`
}

func (p *NPMAuditParser) Parse(stdout string, stderr string, exitCode int) (models.RawResult, error) {
	var raw npmAuditOutput
	if err := json.Unmarshal([]byte(strings.TrimSpace(stdout)), &raw); err != nil {
		return nil, fmt.Errorf("%w: could not parse npm audit JSON (exit code %d): %v", models.ErrMalformedResult, exitCode, err)
	}

	v := raw.Metadata.Vulnerabilities
	summary := fmt.Sprintf("%d vulnerabilities (%d critical, %d high, %d moderate, %d low)",
		v.Total, v.Critical, v.High, v.Moderate, v.Low)
	if v.Critical > 0 || v.High > 0 {
		return models.ScoreResult{Value: 0, Details: summary}, nil
	}
	score := 100 - float64(v.Moderate*10+v.Low*2)
	if v.Total == 0 {
		summary = "no vulnerabilities found"
	}
	return models.ScoreResult{Value: score, Details: summary}, nil
}
