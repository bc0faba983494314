// Command cedar is the CLI for the CedarVault backup apply/verify engine.
// It loads a plan of {source, expected_hash, destination} records and
// either commits each source into the archive tree or re-checks that the
// destinations already hold the promised content.
package main

import (
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/alecthomas/kong"

	"github.com/FocuswithJustin/CedarVault/core/engine"
	"github.com/FocuswithJustin/CedarVault/core/plan"
	"github.com/FocuswithJustin/CedarVault/internal/journal"
	"github.com/FocuswithJustin/CedarVault/internal/logging"
	"github.com/FocuswithJustin/CedarVault/internal/pathguard"
)

const version = "0.1.0"

// errRecordsBad marks a completed run in which one or more records were
// bad. Anything else returned by a command is an infrastructure error.
var errRecordsBad = errors.New("one or more records bad")

// CLI defines the command-line interface for cedar.
var CLI struct {
	// Global flags
	LogLevel  string `name:"log-level" default:"info" enum:"debug,info,warn,error" help:"Diagnostic log level"`
	LogFormat string `name:"log-format" default:"text" enum:"text,json" help:"Diagnostic log format"`

	// Command groups (noun-first organization)
	Plan    PlanGroup  `cmd:"" help:"Plan operations (apply, verify)"`
	Runs    RunsGroup  `cmd:"" help:"Run journal operations"`
	Version VersionCmd `cmd:"" help:"Print version information"`
}

// PlanGroup contains plan execution operations.
type PlanGroup struct {
	Apply  ApplyCmd  `cmd:"" help:"Commit every plan record into the archive tree"`
	Verify VerifyCmd `cmd:"" help:"Re-check destinations against the plan without writing"`
}

// RunsGroup contains run history operations.
type RunsGroup struct {
	List RunsListCmd `cmd:"" help:"List recorded runs from a journal"`
}

// planFlags are the flags shared by apply and verify.
type planFlags struct {
	// Existence of the plan and the roots is checked by the loaders, not
	// by flag validation, so a missing file exits with the same
	// infrastructure status as an unreadable or malformed one.
	Plan        string   `required:"" help:"Path to the plan (JSON array or one record per line)"`
	Root        []string `required:"" name:"root" help:"Archive root directory (repeatable)"`
	SummaryOnly bool     `name:"summary-only" help:"Suppress per-record diagnostics; emit only the summary"`
	Journal     string   `help:"Record the run in this SQLite journal" type:"path"`
}

// ApplyCmd commits every plan record into the archive tree.
type ApplyCmd struct {
	planFlags
}

func (c *ApplyCmd) Run() error {
	return runPlan(c.planFlags, engine.ModeApply, os.Stdout)
}

// VerifyCmd re-checks destinations against the plan without writing.
type VerifyCmd struct {
	planFlags
}

func (c *VerifyCmd) Run() error {
	return runPlan(c.planFlags, engine.ModeVerify, os.Stdout)
}

// runPlan loads configuration, evaluates the plan, and writes the single
// summary record to w. Configuration failures return before any record is
// touched; per-record failures surface only through the summary and the
// errRecordsBad marker.
func runPlan(flags planFlags, mode engine.Mode, w io.Writer) error {
	if flags.SummaryOnly {
		logging.InitLogger(logging.LevelError, logging.ParseFormat(CLI.LogFormat))
	}

	guard, err := pathguard.New(flags.Root...)
	if err != nil {
		return fmt.Errorf("invalid archive roots: %w", err)
	}

	set, err := plan.LoadFile(flags.Plan)
	if err != nil {
		return fmt.Errorf("invalid plan: %w", err)
	}

	var j *journal.Journal
	if flags.Journal != "" {
		j, err = journal.Open(flags.Journal)
		if err != nil {
			return fmt.Errorf("cannot open journal: %w", err)
		}
		defer j.Close()
	}

	exec := engine.New(guard, mode)
	started := time.Now()
	summary, results := exec.Run(set)

	if j != nil {
		// Journal writes are housekeeping; a failure here never changes
		// the run's outcome.
		if err := j.RecordRun(exec.RunID(), mode, started, time.Now(), summary, results); err != nil {
			logging.Error("journal write failed", "error", err.Error())
		}
	}

	if err := summary.Emit(w); err != nil {
		return fmt.Errorf("cannot write summary: %w", err)
	}

	if summary.RC != engine.ExitOK {
		return errRecordsBad
	}
	return nil
}

// RunsListCmd lists recorded runs from a journal database.
type RunsListCmd struct {
	Journal string `required:"" help:"Journal database path" type:"existingfile"`
	Limit   int    `default:"20" help:"Maximum runs to list"`
	ID      string `name:"run" help:"Show per-record outcomes for the given run ID"`
}

func (c *RunsListCmd) Run() error {
	j, err := journal.Open(c.Journal)
	if err != nil {
		return fmt.Errorf("cannot open journal: %w", err)
	}
	defer j.Close()

	if c.ID != "" {
		records, err := j.ListRecords(c.ID)
		if err != nil {
			return err
		}
		for _, r := range records {
			fmt.Printf("%4d  %-12s %-6s %s", r.Seq, r.Outcome, r.Category, r.Destination)
			if r.Detail != "" {
				fmt.Printf("  (%s)", r.Detail)
			}
			fmt.Println()
		}
		return nil
	}

	entries, err := j.ListRuns(c.Limit)
	if err != nil {
		return err
	}
	for _, e := range entries {
		fmt.Printf("%s  %-6s rc=%d  expected=%d ok=%d bad=%d  %s\n",
			e.ID, e.Mode, e.RC, e.Expected, e.OK, e.Bad, e.StartedAt)
	}
	return nil
}

// VersionCmd prints version information.
type VersionCmd struct{}

func (c *VersionCmd) Run() error {
	fmt.Printf("cedar version %s\n", version)
	fmt.Printf("  sqlite driver: %s (%s)\n", journal.DriverType(), journal.DriverPackage())
	return nil
}

func main() {
	ctx := kong.Parse(&CLI,
		kong.Name("cedar"),
		kong.Description("CedarVault - plan-driven backup apply/verify engine"),
		kong.UsageOnError(),
		kong.ConfigureHelp(kong.HelpOptions{
			Compact: true,
		}),
	)

	logging.InitLogger(logging.ParseLevel(CLI.LogLevel), logging.ParseFormat(CLI.LogFormat))

	err := ctx.Run()
	if err != nil && !errors.Is(err, errRecordsBad) {
		logging.Error("run aborted", "error", err.Error())
	}
	os.Exit(exitStatus(err))
}

// exitStatus maps a command result to the process exit status. This is
// the only place exit statuses are selected: 0 all ok, 1 one or more
// records bad, 2 configuration/infrastructure error before any record
// was evaluated.
func exitStatus(err error) int {
	switch {
	case err == nil:
		return engine.ExitOK
	case errors.Is(err, errRecordsBad):
		return engine.ExitRecordsBad
	default:
		return engine.ExitConfigError
	}
}
