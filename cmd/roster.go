package cmd

import (
	"cmp"
	"context"
	"errors"
	"fmt"
	"os"
	"slices"
	"sync"
	"text/tabwriter"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/kozaktomas/roll-call/internal/constants"
	"github.com/kozaktomas/roll-call/internal/database"
	"github.com/kozaktomas/roll-call/internal/embedding"
	"github.com/kozaktomas/roll-call/internal/imagefetch"
	"github.com/kozaktomas/roll-call/internal/verify"
)

var rosterCmd = &cobra.Command{
	Use:   "roster",
	Short: "Roster management commands",
	Long:  `Commands for inspecting class rosters and their registration photos.`,
}

var rosterCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Find registrations that cannot be matched",
	Long: `Fetch every registration photo of a class and report rolls that will always
be marked absent: no photo, duplicate roll rows, a photo that cannot be
fetched or decoded, or a photo with zero or several faces.

Examples:
  roll-call roster check --class c-101
  roll-call roster check --class c-101 --concurrency 4 --json`,
	RunE: runRosterCheck,
}

func init() {
	rootCmd.AddCommand(rosterCmd)
	rosterCmd.AddCommand(rosterCheckCmd)

	rosterCheckCmd.Flags().String("class", "", "Class ID")
	rosterCheckCmd.Flags().Int("concurrency", constants.RegistrationWorkers, "Number of parallel workers")
	rosterCheckCmd.Flags().Bool("json", false, "Output as JSON")
	_ = rosterCheckCmd.MarkFlagRequired("class")
}

// RosterProblem is a roll whose registration cannot be used for matching
type RosterProblem struct {
	Roll      int    `json:"roll"`
	StudentID string `json:"student_id"`
	Problem   string `json:"problem"`
	Detail    string `json:"detail,omitempty"`
}

// RosterCheckResult is the outcome of a roster check
type RosterCheckResult struct {
	ClassID    string          `json:"class_id"`
	Checked    int             `json:"checked"`
	Usable     int             `json:"usable"`
	Problems   []RosterProblem `json:"problems"`
	DurationMs int64           `json:"duration_ms"`
}

func runRosterCheck(cmd *cobra.Command, args []string) error {
	classID := mustGetString(cmd, "class")
	concurrency := max(mustGetInt(cmd, "concurrency"), 1)
	jsonOutput := mustGetBool(cmd, "json")

	cfg, err := loadConfig(nil)
	if err != nil {
		return err
	}

	ctx := context.Background()
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer a.Close()

	startTime := time.Now()
	entries, err := a.roster.ClassRoster(ctx, classID)
	if err != nil {
		return fmt.Errorf("failed to load roster: %w", err)
	}

	result := RosterCheckResult{ClassID: classID, Problems: []RosterProblem{}}
	if len(entries) == 0 {
		if jsonOutput {
			return outputJSON(result)
		}
		fmt.Printf("No students registered for class %s.\n", classID)
		return nil
	}

	byRoll := make(map[int][]database.RosterEntry)
	for _, e := range entries {
		byRoll[e.RollNumber] = append(byRoll[e.RollNumber], e)
	}

	var toCheck []database.RosterEntry
	for roll, rows := range byRoll {
		if len(rows) > 1 {
			for _, e := range rows {
				result.Problems = append(result.Problems, RosterProblem{
					Roll:      roll,
					StudentID: e.StudentID,
					Problem:   "duplicate roll",
					Detail:    fmt.Sprintf("%d profiles share this roll", len(rows)),
				})
			}
			continue
		}
		toCheck = append(toCheck, rows[0])
	}

	if !jsonOutput {
		fmt.Printf("Checking %d registration photos for class %s\n\n", len(toCheck), classID)
	}

	var bar *progressbar.ProgressBar
	if !jsonOutput {
		bar = progressbar.NewOptions(len(toCheck),
			progressbar.OptionSetDescription("Checking roster"),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString("photos"),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}

	var mu sync.Mutex
	sem := make(chan struct{}, concurrency)
	var wg sync.WaitGroup

	for _, entry := range toCheck {
		wg.Add(1)
		go func(e database.RosterEntry) {
			defer wg.Done()

			sem <- struct{}{}
			defer func() { <-sem }()

			_, err := a.service.RegisteredFace(ctx, e)

			mu.Lock()
			if err != nil {
				result.Problems = append(result.Problems, describeRegistrationError(e, err))
			} else {
				result.Usable++
			}
			mu.Unlock()

			if bar != nil {
				bar.Add(1)
			}
		}(entry)
	}
	wg.Wait()

	if bar != nil {
		fmt.Println()
	}

	result.Checked = len(entries)
	result.DurationMs = time.Since(startTime).Milliseconds()
	slices.SortFunc(result.Problems, func(x, y RosterProblem) int {
		if c := cmp.Compare(x.Roll, y.Roll); c != 0 {
			return c
		}
		return cmp.Compare(x.StudentID, y.StudentID)
	})

	if jsonOutput {
		return outputJSON(result)
	}

	fmt.Printf("\nRoster check complete!\n")
	fmt.Printf("  Profiles checked: %d\n", result.Checked)
	fmt.Printf("  Usable:           %d\n", result.Usable)
	fmt.Printf("  Problems:         %d\n", len(result.Problems))

	if len(result.Problems) > 0 {
		fmt.Println()
		w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
		fmt.Fprintln(w, "ROLL\tSTUDENT\tPROBLEM\tDETAIL")
		for _, p := range result.Problems {
			fmt.Fprintf(w, "%d\t%s\t%s\t%s\n", p.Roll, p.StudentID, p.Problem, p.Detail)
		}
		w.Flush()
	}
	return nil
}

// describeRegistrationError classifies why a registration photo is unusable.
func describeRegistrationError(e database.RosterEntry, err error) RosterProblem {
	p := RosterProblem{Roll: e.RollNumber, StudentID: e.StudentID, Detail: err.Error()}

	var fetchErr *imagefetch.FetchError
	switch {
	case errors.Is(err, verify.ErrNoRegistrationImage):
		p.Problem = "no photo"
		p.Detail = ""
	case errors.Is(err, embedding.ErrNoFace):
		p.Problem = "no face"
	case errors.Is(err, embedding.ErrMultipleFaces):
		p.Problem = "several faces"
	case errors.As(err, &fetchErr):
		p.Problem = "fetch failed"
	default:
		p.Problem = "error"
	}
	return p
}
