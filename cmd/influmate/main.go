package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/influmate/influmate/internal/config"
	"github.com/influmate/influmate/internal/database"
	"github.com/influmate/influmate/internal/dispatch"
	"github.com/influmate/influmate/internal/pipeline"
	"github.com/influmate/influmate/internal/poller"
	"github.com/influmate/influmate/internal/profile"
	"github.com/influmate/influmate/internal/scoring"
	"github.com/influmate/influmate/internal/server"
	"github.com/influmate/influmate/internal/sheets"
)

var version = "dev"

var (
	verbose    bool
	configPath string
	cfg        *config.Config
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

var rootCmd = &cobra.Command{
	Use:     "influmate",
	Short:   "Influencer matching from spreadsheet intake",
	Long:    "InfluMate aggregates influencer post data into profiles, watches a campaign intake sheet, and dispatches ranked shortlist reports.",
	Version: version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if verbose {
			log.SetFlags(log.LstdFlags | log.Lshortfile)
		} else {
			log.SetFlags(log.LstdFlags)
		}

		// Skip config loading for init and version
		if cmd.Name() == "init" || cmd.Name() == "version" {
			return nil
		}

		path, err := config.ResolveConfigPath(configPath)
		if err != nil {
			return err
		}
		cfg, err = config.Load(path)
		if err != nil {
			return fmt.Errorf("loading config: %w", err)
		}
		return nil
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose output")
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "", "Path to config file")

	rootCmd.AddCommand(initCmd)
	rootCmd.AddCommand(versionCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(profileCmd)
	rootCmd.AddCommand(matchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(serveCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("influmate", version)
	},
}

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration in ~/.config/influmate/",
	RunE: func(cmd *cobra.Command, args []string) error {
		target := filepath.Join(config.ConfigDir(), "config.yaml")
		if _, err := os.Stat(target); err == nil {
			fmt.Printf("Config already exists: %s\n", target)
			return nil
		}

		if err := os.MkdirAll(config.ConfigDir(), 0o755); err != nil {
			return fmt.Errorf("creating config directory: %w", err)
		}

		if err := os.WriteFile(target, config.DefaultConfigYAML, 0o644); err != nil {
			return fmt.Errorf("writing config: %w", err)
		}

		fmt.Printf("Created config: %s\n", target)
		fmt.Println("Edit it to configure spreadsheet IDs, credentials, and SMTP.")
		return nil
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show database and system status",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		stats, err := db.GetStats()
		if err != nil {
			return fmt.Errorf("getting stats: %w", err)
		}

		fmt.Println("Profiles:")
		fmt.Printf("  In snapshot: %d\n", stats.Profiles)
		fmt.Printf("  Snapshot runs: %d\n", stats.SnapshotRuns)
		if stats.LastSnapshotAt != nil {
			fmt.Printf("  Last snapshot: %s\n", *stats.LastSnapshotAt)
		}
		fmt.Println("\nCampaigns:")
		fmt.Printf("  Processed: %d\n", stats.Campaigns)
		if stats.LastCampaignAt != nil {
			fmt.Printf("  Last processed: %s\n", *stats.LastCampaignAt)
		}
		return nil
	},
}

// --- profile command ---

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Build the influencer profile snapshot from the posts sheet",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx := cmd.Context()
		client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return fmt.Errorf("creating sheets client: %w", err)
		}

		fmt.Println("Fetching post data...")
		rows, err := client.Values(ctx, cfg.Sheets.Posts.SpreadsheetID, cfg.Sheets.Posts.Range)
		if err != nil {
			return fmt.Errorf("reading posts sheet: %w", err)
		}
		if len(rows) < 2 {
			return fmt.Errorf("posts sheet has no data rows")
		}

		result := profile.ParsePosts(rows[0], rows[1:])
		profiles := profile.BuildProfiles(result.Posts)

		if err := db.ReplaceProfiles(profiles, len(result.Posts), result.Dropped); err != nil {
			return fmt.Errorf("storing snapshot: %w", err)
		}

		fmt.Println("\nSnapshot complete:")
		fmt.Printf("  Posts parsed: %d\n", len(result.Posts))
		fmt.Printf("  Rows dropped: %d\n", result.Dropped)
		fmt.Printf("  Profiles: %d\n", len(profiles))
		return nil
	},
}

// --- match command ---

var (
	matchTier     string
	matchLocation string
	matchTop      int
)

var matchCmd = &cobra.Command{
	Use:   "match [goal]",
	Short: "Rank the current snapshot for a campaign goal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		snapshot, err := db.GetProfiles()
		if err != nil {
			return err
		}
		if len(snapshot) == 0 {
			return fmt.Errorf("no profile snapshot; run 'influmate profile' first")
		}

		engine := scoring.NewEngine(cfg.ScoringRules())
		top := matchTop
		if top <= 0 {
			top = cfg.Scoring.TopN
		}
		ranked := engine.Shortlist(scoring.Request{
			Goal:           args[0],
			TierFilter:     matchTier,
			LocationFilter: matchLocation,
		}, snapshot, top)

		rule := engine.RuleFor(args[0])
		fmt.Printf("Goal %q matched rule %q\n\n", args[0], rule.Name)
		if len(ranked) == 0 {
			fmt.Println("No influencers matched.")
			return nil
		}
		fmt.Printf("%-4s %-20s %-8s %-8s %10s %12s\n", "#", "Influencer", "Score", "Tier", "Followers", "Engagement")
		for i, sp := range ranked {
			fmt.Printf("%-4d %-20s %-8.4f %-8s %10d %11.2f%%\n",
				i+1, sp.InfluencerID, sp.Score, sp.Tier, sp.Followers, sp.AvgEngagementRate*100)
		}
		return nil
	},
}

func init() {
	matchCmd.Flags().StringVar(&matchTier, "tier", "", "Restrict to a tier (nano, micro, macro, mega)")
	matchCmd.Flags().StringVar(&matchLocation, "location", "", "Restrict to a location")
	matchCmd.Flags().IntVar(&matchTop, "top", 0, "Shortlist size (default from config)")
}

// --- watch command ---

var watchOnce bool

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Poll the intake sheet and dispatch reports for new campaigns",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		client, err := sheets.NewClient(ctx, cfg.Sheets.CredentialsFile)
		if err != nil {
			return fmt.Errorf("creating sheets client: %w", err)
		}

		intake := cfg.Sheets.Intake
		statusIndex, err := sheets.ColumnIndex(intake.StatusColumn)
		if err != nil {
			return fmt.Errorf("status column: %w", err)
		}
		emailIndex, err := sheets.ColumnIndex(intake.EmailColumn)
		if err != nil {
			return fmt.Errorf("email column: %w", err)
		}

		src := sheets.NewIntakeSheet(client, intake.SpreadsheetID, intake.Range, intake.StatusColumn, intake.Marker)

		var notifier dispatch.Notifier
		if n := dispatch.NewSMTPNotifier(cfg.Dispatch.SMTP); n != nil {
			notifier = n
		} else {
			log.Println("SMTP not configured; notifications disabled")
		}
		dispatcher := dispatch.NewFileDispatcher(cfg.GetDataDir(), notifier, cfg.Dispatch.SMTP.Subject, cfg.Dispatch.SMTP.Body)

		engine := scoring.NewEngine(cfg.ScoringRules())
		proc := pipeline.New(db, engine, dispatcher, cfg.Scoring.TopN, emailIndex)

		p := poller.New(src, proc, poller.Config{
			Interval:    time.Duration(cfg.Poller.IntervalSeconds) * time.Second,
			MinColumns:  intake.MinColumns,
			StatusIndex: statusIndex,
		})

		if watchOnce {
			stats, err := p.Cycle(ctx)
			if err != nil {
				return err
			}
			fmt.Printf("Cycle complete: %d rows, %d new, %d processed, %d failed\n",
				stats.TotalRows, stats.NewRows, stats.Processed, stats.Failed)
			return nil
		}

		fmt.Printf("Watching intake sheet every %ds. Press Ctrl+C to stop.\n", cfg.Poller.IntervalSeconds)
		p.Run(ctx)
		return nil
	},
}

func init() {
	watchCmd.Flags().BoolVar(&watchOnce, "once", false, "Run a single poll cycle and exit")
}

// --- serve command ---

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Start the local web server",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := openDB()
		if err != nil {
			return err
		}
		defer db.Close()

		port := servePort
		if port == 0 {
			port = cfg.Server.Port
		}
		fmt.Printf("Starting server at http://localhost:%d\n", port)
		fmt.Println("Press Ctrl+C to stop")
		return server.Serve(db, cfg.Dispatch.FormURL, port)
	},
}

func init() {
	serveCmd.Flags().IntVarP(&servePort, "port", "p", 0, "Port to run server on (default from config)")
}

func openDB() (*database.DB, error) {
	dataDir := cfg.GetDataDir()
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("creating data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "influmate.db")
	return database.Open(dbPath)
}
