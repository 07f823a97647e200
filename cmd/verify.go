package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/facematch"
	"github.com/kozaktomas/roll-call/internal/verify"
)

var verifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Verify attendance from a selfie",
	Long: `Match a group selfie against the given roll numbers and record present students.

Examples:
  # Verify rolls 1, 2 and 5 of class c-101
  roll-call verify --class c-101 --session s-42 --selfie https://cdn.example.com/s42.jpg --rolls 1,2,5

  # Only show the decisions, write nothing
  roll-call verify --class c-101 --session s-42 --selfie https://cdn.example.com/s42.jpg --rolls 1,2 --dry-run`,
	RunE: runVerify,
}

func init() {
	rootCmd.AddCommand(verifyCmd)

	verifyCmd.Flags().String("class", "", "Class ID")
	verifyCmd.Flags().String("session", "", "Session ID")
	verifyCmd.Flags().String("selfie", "", "Selfie image URL")
	verifyCmd.Flags().IntSlice("rolls", nil, "Roll numbers to verify, in order")
	verifyCmd.Flags().Float64("threshold", 0, "Similarity threshold (default MATCH_THRESHOLD)")
	verifyCmd.Flags().Bool("dry-run", false, "Match only, do not record attendance")
	verifyCmd.Flags().Bool("json", false, "Output as JSON")

	for _, name := range []string{"class", "session", "selfie", "rolls"} {
		_ = verifyCmd.MarkFlagRequired(name)
	}
}

// VerifyRollOutput is one row of the verify command output
type VerifyRollOutput struct {
	Roll   int     `json:"roll"`
	Status string  `json:"status"`
	Score  float64 `json:"score"`
	Face   int     `json:"face"`
	Result string  `json:"result"`
	Note   string  `json:"note,omitempty"`
}

func runVerify(cmd *cobra.Command, args []string) error {
	jsonOutput := mustGetBool(cmd, "json")
	dryRun := mustGetBool(cmd, "dry-run")

	cfg, err := loadConfig(thresholdOverride(cmd))
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	result, err := a.service.Verify(ctx, verify.Request{
		ClassID:   mustGetString(cmd, "class"),
		SessionID: mustGetString(cmd, "session"),
		SelfieURL: mustGetString(cmd, "selfie"),
		Rolls:     mustGetIntSlice(cmd, "rolls"),
		DryRun:    dryRun,
	})
	if err != nil {
		return fmt.Errorf("verify failed: %w", err)
	}

	rows := verifyRows(result, dryRun)
	if jsonOutput {
		return outputJSON(rows)
	}

	fmt.Printf("\nSelfie faces: %d\n\n", result.SelfieFaces)
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ROLL\tSTATUS\tSCORE\tFACE\tRESULT\tNOTE")
	for _, r := range rows {
		face := "-"
		if r.Face != facematch.NoFace {
			face = fmt.Sprintf("%d", r.Face)
		}
		fmt.Fprintf(w, "%d\t%s\t%.3f\t%s\t%s\t%s\n", r.Roll, r.Status, r.Score, face, r.Result, r.Note)
	}
	w.Flush()

	if dryRun {
		fmt.Println("\nDry run: nothing was recorded")
	}
	return nil
}

// thresholdOverride returns the --threshold value only when the flag was given.
func thresholdOverride(cmd *cobra.Command) *float64 {
	if !cmd.Flags().Changed("threshold") {
		return nil
	}
	threshold := mustGetFloat64(cmd, "threshold")
	return &threshold
}

// verifyRows joins decisions with what happened to each roll.
func verifyRows(result *verify.Result, dryRun bool) []VerifyRollOutput {
	rows := make([]VerifyRollOutput, 0, len(result.Decisions))
	for _, d := range result.Decisions {
		row := VerifyRollOutput{
			Roll:   d.RollNumber,
			Status: string(d.Status),
			Score:  d.Score,
			Face:   d.FaceIndex,
		}

		out := result.Outcome
		switch {
		case d.Status != facematch.StatusPresent:
			row.Result = "-"
		case dryRun:
			row.Result = "not written"
		case slices.Contains(out.Inserted, d.RollNumber):
			row.Result = "inserted"
		case slices.Contains(out.Skipped, d.RollNumber):
			row.Result = "already marked"
		case slices.Contains(out.Unresolved, d.RollNumber):
			row.Result = "unresolved"
		case out.Failed[d.RollNumber] != nil:
			row.Result = "failed"
			row.Note = out.Failed[d.RollNumber].Error()
		}

		if reason, ok := result.Unusable[d.RollNumber]; ok {
			row.Note = unusableNote(reason)
		}
		rows = append(rows, row)
	}
	return rows
}

func unusableNote(err error) string {
	switch {
	case errors.Is(err, verify.ErrNotRegistered):
		return "not registered"
	case errors.Is(err, verify.ErrNoRegistrationImage):
		return "no registration image"
	default:
		return err.Error()
	}
}
