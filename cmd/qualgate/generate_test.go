package main

import (
	"testing"

	"github.com/spf13/cobra"

	"github.com/ShayCichocki/qualgate/pkg/models"
)

func TestContextFlags_ValidationContext(t *testing.T) {
	f := contextFlags{changeType: " Security ", title: "rotate keys", security: true, tech: []string{"go"}}
	vctx, err := f.validationContext("/repo")
	if err != nil {
		t.Fatalf("validationContext: %v", err)
	}
	if vctx.ChangeType != models.ChangeSecurity || vctx.RepoPath != "/repo" || !vctx.IncludesSecurityChanges {
		t.Errorf("vctx = %+v", vctx)
	}
	if len(vctx.Technologies) != 1 || vctx.Technologies[0] != "go" {
		t.Errorf("Technologies = %v", vctx.Technologies)
	}

	f.changeType = "chore"
	if _, err := f.validationContext("/repo"); err == nil {
		t.Error("expected error for unknown change type")
	}
}

func TestSubmissionFromFlags(t *testing.T) {
	tests := []struct {
		name    string
		args    []string
		wantErr bool
		check   func(t *testing.T, passed, accept *bool, score, pct *float64)
	}{
		{name: "score", args: []string{"--score", "72"}, check: func(t *testing.T, passed, accept *bool, score, pct *float64) {
			if score == nil || *score != 72 || passed != nil {
				t.Errorf("score = %v passed = %v", score, passed)
			}
		}},
		{name: "fail", args: []string{"--fail"}, check: func(t *testing.T, passed, accept *bool, score, pct *float64) {
			if passed == nil || *passed {
				t.Errorf("passed = %v", passed)
			}
		}},
		{name: "reject", args: []string{"--reject"}, check: func(t *testing.T, passed, accept *bool, score, pct *float64) {
			if accept == nil || *accept {
				t.Errorf("accept = %v", accept)
			}
		}},
		{name: "nothing", args: nil, wantErr: true},
		{name: "two answers", args: []string{"--score", "50", "--pass"}, wantErr: true},
		{name: "pass and fail", args: []string{"--pass", "--fail"}, wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := &cobra.Command{Use: "submit"}
			submitScore, submitPercentage = 0, 0
			submitPassed, submitFailed, submitAccept, submitReject = false, false, false, false
			cmd.Flags().Float64Var(&submitScore, "score", 0, "")
			cmd.Flags().Float64Var(&submitPercentage, "percentage", 0, "")
			cmd.Flags().BoolVar(&submitPassed, "pass", false, "")
			cmd.Flags().BoolVar(&submitFailed, "fail", false, "")
			cmd.Flags().BoolVar(&submitAccept, "accept", false, "")
			cmd.Flags().BoolVar(&submitReject, "reject", false, "")
			if err := cmd.Flags().Parse(tt.args); err != nil {
				t.Fatal(err)
			}

			sub, err := submissionFromFlags(cmd, "t-1")
			if (err != nil) != tt.wantErr {
				t.Fatalf("err = %v, wantErr %v", err, tt.wantErr)
			}
			if err == nil {
				if sub.TicketID != "t-1" {
					t.Errorf("TicketID = %q", sub.TicketID)
				}
				tt.check(t, sub.Passed, sub.Accept, sub.Score, sub.Percentage)
			}
		})
	}
}
