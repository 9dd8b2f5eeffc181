package main

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"github.com/sevensync/sevensync/internal/config"
	"github.com/sevensync/sevensync/internal/dates"
	"github.com/sevensync/sevensync/internal/logging"
	"github.com/sevensync/sevensync/internal/sevenshifts"
	"github.com/sevensync/sevensync/internal/sink"
	"github.com/sevensync/sevensync/internal/sync"
	"github.com/sevensync/sevensync/internal/ui"
)

var syncFlags struct {
	dbPath        string
	companyID     int64
	startDate     string
	endDate       string
	lastNDays     int
	modifiedSince string
	timezone      string
	inactiveUsers bool
	unapproved    bool
	chunkSize     int
	reportPath    string
}

var syncCmd = &cobra.Command{
	Use:   "sync [entity...]",
	Short: "Pull 7shifts data into the local database",
	Long: `Fetch the selected entities from 7shifts and upsert them into the
local SQLite database.

Entities may be listed as arguments (companies, locations, departments,
roles, users, wages, assignments, receipts, shifts, punches,
daily_sales_and_labor). With no arguments, or with "all", everything is
synced in dependency order.

The date window defaults to yesterday. Use --start-date/--end-date for an
explicit range, --last-n-days for a trailing range, or --modified-since to
switch to cursor-based incremental sync. Dates accept YYYY-MM-DD as well as
casual phrases like "3 days ago".`,
	RunE: runSync,
}

func init() {
	f := syncCmd.Flags()
	f.StringVar(&syncFlags.dbPath, "db", "", "SQLite database path (default from config)")
	f.Int64Var(&syncFlags.companyID, "company-id", 0, "sync only this company")
	f.StringVar(&syncFlags.startDate, "start-date", "", "window start date")
	f.StringVar(&syncFlags.endDate, "end-date", "", "window end date (default yesterday)")
	f.IntVar(&syncFlags.lastNDays, "last-n-days", 0, "sync a trailing window of N days")
	f.StringVar(&syncFlags.modifiedSince, "modified-since", "", "cursor sync: fetch records modified since this time")
	f.StringVar(&syncFlags.timezone, "tz", "", "IANA timezone for window math (default host zone)")
	f.BoolVar(&syncFlags.inactiveUsers, "inactive-users", false, "also sync inactive users, wages and assignments")
	f.BoolVar(&syncFlags.unapproved, "unapproved", false, "also sync unapproved time punches")
	f.IntVar(&syncFlags.chunkSize, "chunk-size", 0, "receipt upsert batch size")
	f.StringVar(&syncFlags.reportPath, "report", "", "write a YAML run report to this path")

	rootCmd.AddCommand(syncCmd)
}

// syncReport is the YAML document written by --report.
type syncReport struct {
	GeneratedAt   string         `yaml:"generated_at"`
	Database      string         `yaml:"database"`
	WindowKind    string         `yaml:"window"`
	Start         string         `yaml:"start,omitempty"`
	End           string         `yaml:"end,omitempty"`
	ModifiedSince string         `yaml:"modified_since,omitempty"`
	Companies     int            `yaml:"companies"`
	Counts        map[string]int `yaml:"counts"`
	Elapsed       string         `yaml:"elapsed"`
}

func runSync(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if err := cfg.RequireToken(); err != nil {
		return err
	}

	loc := time.Local
	tz := syncFlags.timezone
	if tz == "" {
		tz = cfg.Timezone
	}
	if tz != "" {
		loc, err = time.LoadLocation(tz)
		if err != nil {
			return fmt.Errorf("invalid timezone %q: %w", tz, err)
		}
	}

	window, err := dates.Resolve(dates.Options{
		StartDate:     syncFlags.startDate,
		EndDate:       syncFlags.endDate,
		LastNDays:     syncFlags.lastNDays,
		ModifiedSince: syncFlags.modifiedSince,
		Location:      loc,
	})
	if err != nil {
		return err
	}

	logPath := logFile
	if logPath == "" {
		logPath = cfg.LogFile
	}
	logger, logCloser := logging.New("[sync] ", logging.Options{
		File:       logPath,
		MaxSizeMB:  cfg.LogMaxSizeMB,
		MaxBackups: cfg.LogMaxBackups,
		Quiet:      quietLog,
	})
	defer logCloser.Close()

	dbPath := syncFlags.dbPath
	if dbPath == "" {
		dbPath = cfg.DBPath
	}
	db, err := sink.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	clientOpts := []sevenshifts.Option{sevenshifts.WithLogger(logger)}
	if cfg.BaseURL != "" {
		clientOpts = append(clientOpts, sevenshifts.WithBaseURL(cfg.BaseURL))
	}
	client := sevenshifts.New(cfg.APIToken, clientOpts...)

	entities := args
	if len(entities) == 0 {
		entities = []string{"all"}
	}

	chunkSize := syncFlags.chunkSize
	if chunkSize == 0 {
		chunkSize = cfg.ChunkSize
	}

	orch := sync.New(sync.NewAPISource(client), sync.NewUpserter(db, logger), logger)
	start := time.Now()
	result, err := orch.Run(cmd.Context(), sync.Options{
		Entities:          entities,
		CompanyID:         syncFlags.companyID,
		Window:            window,
		ChunkSize:         chunkSize,
		IncludeInactive:   syncFlags.inactiveUsers,
		IncludeUnapproved: syncFlags.unapproved,
	})
	elapsed := time.Since(start).Round(time.Millisecond)
	if err != nil {
		return err
	}

	printSummary(result, window, dbPath, elapsed)

	if syncFlags.reportPath != "" {
		if err := writeReport(syncFlags.reportPath, result, window, dbPath, elapsed); err != nil {
			return fmt.Errorf("failed to write report: %w", err)
		}
		fmt.Printf("   Report: %s\n", syncFlags.reportPath)
	}
	return nil
}

func printSummary(result *sync.Result, window dates.Window, dbPath string, elapsed time.Duration) {
	fmt.Printf("%s Sync complete in %v\n", ui.RenderPass("✓"), elapsed)
	fmt.Printf("   Window: %s\n", ui.RenderDim(describeWindow(window)))
	fmt.Printf("   Companies: %s\n", ui.RenderAccent(fmt.Sprintf("%d", result.Companies)))
	for _, entity := range sync.SyncOrder {
		if n, ok := result.Counts[entity]; ok {
			fmt.Printf("   %s: %s\n", entity, ui.RenderAccent(fmt.Sprintf("%d", n)))
		}
	}
	fmt.Printf("   Database: %s\n", dbPath)
}

func describeWindow(w dates.Window) string {
	switch w := w.(type) {
	case dates.RangeWindow:
		return fmt.Sprintf("%s to %s", dates.FormatAPITime(w.Start), dates.FormatAPITime(w.End))
	case dates.CursorWindow:
		return fmt.Sprintf("modified since %s", dates.FormatAPITime(w.ModifiedSince))
	default:
		return "unknown"
	}
}

func writeReport(path string, result *sync.Result, window dates.Window, dbPath string, elapsed time.Duration) error {
	report := syncReport{
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
		Database:    dbPath,
		Companies:   result.Companies,
		Counts:      make(map[string]int, len(result.Counts)),
		Elapsed:     elapsed.String(),
	}
	for entity, n := range result.Counts {
		report.Counts[string(entity)] = n
	}
	switch w := window.(type) {
	case dates.RangeWindow:
		report.WindowKind = "range"
		report.Start = dates.FormatAPITime(w.Start)
		report.End = dates.FormatAPITime(w.End)
	case dates.CursorWindow:
		report.WindowKind = "cursor"
		report.ModifiedSince = dates.FormatAPITime(w.ModifiedSince)
	}

	data, err := yaml.Marshal(&report)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
