package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"codectx/internal/config"
	"codectx/internal/engine"
	"codectx/internal/log"
	"codectx/internal/version"
)

var (
	flagRoot    string
	flagData    string
	flagTiers   string
	flagOptions string
	flagJSON    bool
)

func main() {
	_ = godotenv.Load()
	if err := rootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func rootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "codectx",
		Short:         "codectx - tiered context indexing and retrieval for coding assistants",
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&flagRoot, "root", ".", "project root directory")
	pf.StringVar(&flagData, "data", "", "data directory (default <root>/.codectx)")
	pf.StringVar(&flagTiers, "config", "", "tier classification document (YAML or JSON)")
	pf.StringVar(&flagOptions, "options", "", "cache/snapshot options document (YAML or JSON)")
	pf.BoolVar(&flagJSON, "json", false, "emit raw JSON documents")

	root.AddCommand(initCmd(), contextCmd(), statusCmd(), reportCmd(), snapshotCmd())
	return root
}

func newEngine() (*engine.Engine, error) {
	lg := log.New()
	patterns, err := config.LoadTierPatterns(flagTiers)
	if err != nil {
		lg.Warn("tier config invalid, using defaults", "err", err.Error())
	}
	opts, err := config.LoadOptions(flagOptions)
	if err != nil {
		lg.Warn("options config invalid, using defaults", "err", err.Error())
	}
	if flagData != "" {
		opts.DataDir = flagData
	}
	return engine.New(flagRoot, patterns, opts, lg)
}

func initCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "init",
		Short: "index the project and build the tiered context",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			summary, err := e.Init(cmd.Context())
			if err != nil {
				return err
			}
			if flagJSON {
				return emitJSON(summary)
			}
			fmt.Printf("indexed %d files, %d active (%.1f%% noise reduction)\n",
				summary.TotalFiles, summary.ActiveFiles, summary.NoiseReduction)
			for tier, ts := range summary.Tiers {
				fmt.Printf("  %-10s %d files, %d active\n", tier, ts.Total, ts.Active)
			}
			return nil
		},
	}
}

func contextCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "context \"<task>\" [maxFiles]",
		Short: "retrieve a budgeted, task-relevant file set",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			task := args[0]
			maxFiles := 0
			if len(args) == 2 {
				n, err := strconv.Atoi(args[1])
				if err != nil {
					return fmt.Errorf("maxFiles must be an integer: %q", args[1])
				}
				maxFiles = n
			}
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			res, cached, err := e.Context(cmd.Context(), task, maxFiles)
			if err != nil {
				return err
			}
			if flagJSON {
				return emitJSON(res)
			}
			src := "fresh"
			if cached {
				src = "cached"
			}
			fmt.Printf("task categories: %v (%s)\n", res.Categories, src)
			for _, f := range res.Files {
				fmt.Printf("  [%-10s p=%-3d] %s (%s)\n", f.Tier, f.Priority, f.Path, humanize.Bytes(uint64(f.Size)))
			}
			fmt.Printf("%d files", len(res.Files))
			for tier, n := range res.ByTier {
				fmt.Printf(", %s=%d", tier, n)
			}
			fmt.Printf("; estimated context increase %d%% (illustrative)\n", res.EstimatedContextIncrease)
			return nil
		},
	}
}

func statusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "show tier counts and disk usage",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			st := e.Status()
			if flagJSON {
				return emitJSON(st)
			}
			fmt.Printf("files: %d total, %d active (%.1f%% noise reduction)\n",
				st.Summary.TotalFiles, st.Summary.ActiveFiles, st.Summary.NoiseReduction)
			for tier, ts := range st.Summary.Tiers {
				fmt.Printf("  %-10s %d files, %d active\n", tier, ts.Total, ts.Active)
			}
			fmt.Printf("snapshots: %d (%s)\n", st.Snapshots, humanize.Bytes(uint64(st.SnapshotBytes)))
			fmt.Printf("cache: %s, total on disk: %s\n",
				humanize.Bytes(uint64(st.CacheBytes)), humanize.Bytes(uint64(st.TotalBytes)))
			return nil
		},
	}
}

func reportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "report",
		Short: "show performance summary, cache analysis, trend, and recommendations",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			r := e.Report(cmd.Context())
			if flagJSON {
				return emitJSON(r)
			}
			fmt.Printf("operations: %d total, %d completed, avg %s\n",
				r.Summary.TotalOps, r.Summary.CompletedOps, r.Summary.AvgDuration)
			fmt.Printf("cache: %d hits / %d misses (%.1f%%, %s)\n",
				r.Cache.Hits, r.Cache.Misses, r.Cache.HitRate, r.Cache.Efficiency)
			fmt.Printf("trend: %s, health: %s\n", r.Trend.Label, r.Health)
			for _, rec := range r.Recommendations {
				fmt.Printf("  - %s\n", rec)
			}
			if len(r.Recent) > 0 {
				fmt.Println("recent operations:")
				for _, op := range r.Recent {
					fmt.Printf("  %-20s %-10s %s\n", op.Type, op.Duration, op.Result)
				}
			}
			return nil
		},
	}
}

func snapshotCmd() *cobra.Command {
	var session string
	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "create a project snapshot and enforce retention",
		RunE: func(cmd *cobra.Command, args []string) error {
			e, err := newEngine()
			if err != nil {
				return err
			}
			defer e.Close()
			snap, err := e.Snapshot(cmd.Context(), session)
			if err != nil {
				return err
			}
			if flagJSON {
				return emitJSON(snap)
			}
			fmt.Printf("snapshot %s: %d files, %s", snap.ID, snap.Stats.TotalFiles, humanize.Bytes(uint64(snap.Stats.TotalSize)))
			if snap.VCS.Error != "" {
				fmt.Printf(" (vcs: %s)", snap.VCS.Error)
			} else {
				fmt.Printf(" (branch %s", snap.VCS.Branch)
				if snap.VCS.Dirty {
					fmt.Printf(", %d modified", snap.VCS.Modified)
				}
				fmt.Print(")")
			}
			fmt.Println()
			return nil
		},
	}
	cmd.Flags().StringVar(&session, "session", "", "session id to record in the snapshot")
	return cmd
}

func emitJSON(v any) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	fmt.Println(string(b))
	return nil
}
