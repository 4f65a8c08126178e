package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/danieljhkim/hostconf/internal/engine"
	"github.com/danieljhkim/hostconf/internal/planner"
)

var planPrune bool

var planCmd = &cobra.Command{
	Use:   "plan",
	Short: "Show the changes apply would make",
	Long: `Collect the package databases, scan the managed files and compare the result
with the desired state. Nothing on the host is changed.

Entries present on the system but absent from the desired state are listed as
notes unless --prune is given, in which case they are planned for reversal.`,
	Args: cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		s, err := newSession()
		if err != nil {
			return err
		}

		result, err := s.plan(cmd.Context(), planPrune)
		if err != nil {
			return err
		}

		if jsonOutput {
			return outputJSON(newPlanView(result))
		}
		printPlan(result)
		return nil
	},
}

func init() {
	planCmd.Flags().BoolVar(&planPrune, "prune", false, "Revert entries not in the desired state")
}

// plan loads the desired state and computes a plan.
func (s *session) plan(ctx context.Context, prune bool) (*engine.PlanResult, error) {
	if ctx == nil {
		ctx = context.Background()
	}

	want, err := s.loadDesired()
	if err != nil {
		return nil, err
	}

	policy, err := planner.ParsePolicy(string(s.cfg.Apply.LeftOnly))
	if err != nil {
		return nil, err
	}
	if prune {
		policy = planner.Revert
	}

	return s.engine.Plan(ctx, engine.PlanRequest{
		Desired: want,
		Roots:   s.cfg.Scan.Roots,
		Policy:  policy,
	})
}

// planView is the JSON form of a plan.
type planView struct {
	Policy      string         `json:"policy"`
	Files       []string       `json:"files"`
	Packages    []string       `json:"packages"`
	Notes       []noteView     `json:"notes"`
	Conflicts   []conflictView `json:"conflicts"`
	Diagnostics []string       `json:"diagnostics"`
	Checked     checkedView    `json:"checked"`
}

type noteView struct {
	Subject     string `json:"subject"`
	Instruction string `json:"instruction"`
	Reason      string `json:"reason"`
}

type conflictView struct {
	Path   string `json:"path"`
	Reason string `json:"reason"`
}

type checkedView struct {
	Files    int `json:"files"`
	Packages int `json:"packages"`
	Issues   int `json:"issues"`
}

func newPlanView(result *engine.PlanResult) planView {
	plan := result.Plan
	v := planView{
		Policy:      plan.Policy.String(),
		Files:       make([]string, 0, len(plan.Fs)),
		Packages:    make([]string, 0, len(plan.Pkgs)),
		Notes:       make([]noteView, 0, len(plan.Notes)),
		Conflicts:   make([]conflictView, 0, len(plan.Conflicts)),
		Diagnostics: make([]string, 0, len(result.Diagnostics)),
		Checked: checkedView{
			Files:    result.Files,
			Packages: result.Packages,
			Issues:   result.Issues,
		},
	}
	for _, ins := range plan.Fs {
		v.Files = append(v.Files, ins.String())
	}
	for _, e := range plan.Pkgs {
		v.Packages = append(v.Packages, e.String())
	}
	for _, n := range plan.Notes {
		v.Notes = append(v.Notes, noteView{Subject: n.Subject, Instruction: n.Instruction, Reason: string(n.Reason)})
	}
	for _, c := range plan.Conflicts {
		v.Conflicts = append(v.Conflicts, conflictView{Path: c.Path, Reason: c.Reason})
	}
	for _, d := range result.Diagnostics {
		v.Diagnostics = append(v.Diagnostics, d.Error())
	}
	return v
}

func printPlan(result *engine.PlanResult) {
	plan := result.Plan

	PrintSection("Plan")
	PrintLabelValue("Left-only policy", plan.Policy.String())
	PrintLabelValue("Checked", fmt.Sprintf("%s, %s, %s",
		PrintCount(result.Packages, "package", "packages"),
		PrintCount(result.Files, "file", "files"),
		PrintCount(result.Issues, "issue", "issues")))

	if len(plan.Pkgs) > 0 {
		PrintSection("Package Changes")
		PrintPkgChanges(plan.Pkgs)
	}

	if len(plan.Fs) > 0 {
		PrintSection("File Changes")
		PrintFsChanges(plan.Fs)
	}

	if len(plan.Notes) > 0 {
		PrintSection("Not Planned")
		rows := make([][]string, 0, len(plan.Notes))
		for _, n := range plan.Notes {
			rows = append(rows, []string{n.Subject, n.Instruction, string(n.Reason)})
		}
		PrintTable([]string{"SUBJECT", "INSTRUCTION", "REASON"}, rows)
	}

	if len(result.Diagnostics) > 0 {
		PrintSection("Diagnostics")
		for _, d := range result.Diagnostics {
			PrintWarning(d.Error())
		}
	}

	if plan.HasConflicts() {
		PrintSection("Conflicts Detected")
		for _, c := range plan.Conflicts {
			PrintError(fmt.Sprintf("%s: %s", c.Path, c.Reason))
		}
	}

	fmt.Println()
	if plan.IsEmpty() {
		PrintSuccess("Host matches the desired state")
		return
	}
	PrintInfo(fmt.Sprintf("%s planned", PrintCount(plan.Len(), "change", "changes")))
}
