// Command ingest is the Israeli Basketball Calendar ingestion CLI.
//
// Usage:
//
//	ibasketcal-ingest scrape --workers 6
//	ibasketcal-ingest token --show
//	ibasketcal-ingest export ics --season 2025-2026 --team הפועל --out hapoel.ics
//	ibasketcal-ingest cache info
//	ibasketcal-ingest cache clear --yes
//	ibasketcal-ingest cache vacuum
package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/ibasketcal/ibasketcal/internal/config"
	"github.com/ibasketcal/ibasketcal/internal/harvest"
	"github.com/ibasketcal/ibasketcal/internal/ics"
	"github.com/ibasketcal/ibasketcal/internal/model"
	"github.com/ibasketcal/ibasketcal/internal/query"
	"github.com/ibasketcal/ibasketcal/internal/scrape"
	"github.com/ibasketcal/ibasketcal/internal/store"
	"github.com/ibasketcal/ibasketcal/internal/upstream"
)

var logger = slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

func main() {
	// Load .env if present
	_ = godotenv.Load(".env")

	root := &cobra.Command{
		Use:   "ibasketcal-ingest",
		Short: "Israeli Basketball Calendar ingestion CLI",
	}

	root.AddCommand(scrapeCmd())
	root.AddCommand(tokenCmd())
	root.AddCommand(exportCmd())
	root.AddCommand(cacheCmd())

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

// --------------------------------------------------------------------------
// scrape command
// --------------------------------------------------------------------------

func scrapeCmd() *cobra.Command {
	var workers int
	var timeout time.Duration
	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Run one full scrape and commit the snapshot",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				if workers > 0 {
					cfg.ScrapeWorkers = workers
				}
				if timeout > 0 {
					cfg.ScrapeTimeout = timeout
				}
				scraper := buildScraper(cfg, st)

				start := time.Now()
				result, err := scraper.Run(ctx)
				if err != nil {
					return fmt.Errorf("scrape: %w", err)
				}
				logger.Info("Scrape finished",
					"duration", time.Since(start).Round(time.Second),
					"summary", result.Summary())
				return nil
			})
		},
	}
	cmd.Flags().IntVar(&workers, "workers", 0, "Concurrent group workers (default from config)")
	cmd.Flags().DurationVar(&timeout, "timeout", 0, "Scrape deadline (default from config)")
	return cmd
}

// --------------------------------------------------------------------------
// token command
// --------------------------------------------------------------------------

func tokenCmd() *cobra.Command {
	var show bool
	cmd := &cobra.Command{
		Use:   "token",
		Short: "Acquire a widget API token via the headless browser",
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
			defer cancel()

			cfg, err := config.Load()
			if err != nil {
				return fmt.Errorf("load config: %w", err)
			}

			harvester := harvest.New(cfg.WidgetURL, apiHost(cfg.APIBaseURL), cfg.ScraperHeadless, cfg.TokenTimeout, logger)
			tok, err := harvester.AcquireToken(ctx)
			if err != nil {
				return fmt.Errorf("acquire token: %w", err)
			}

			if show {
				fmt.Println(tok)
				return nil
			}
			if len(tok) > 16 {
				tok = tok[:16] + "…"
			}
			fmt.Println(tok)
			return nil
		},
	}
	cmd.Flags().BoolVar(&show, "show", false, "Print the full token instead of a redacted prefix")
	return cmd
}

// --------------------------------------------------------------------------
// export command
// --------------------------------------------------------------------------

func exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Export the current snapshot",
	}
	cmd.AddCommand(exportICSCmd())
	return cmd
}

func exportICSCmd() *cobra.Command {
	var (
		season, competition, groupID, team, teamID, status string
		days, pastDays                                     int
		mode, tz                                           string
		prep                                               int
		out                                                string
	)
	cmd := &cobra.Command{
		Use:   "ics",
		Short: "Render the snapshot to an .ics file",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				params := url.Values{}
				setParam(params, "season", season)
				setParam(params, "competition", competition)
				setParam(params, "group_id", groupID)
				setParam(params, "team", team)
				setParam(params, "team_id", teamID)
				setParam(params, "status", status)
				setParam(params, "mode", mode)
				setParam(params, "tz", tz)
				if days > 0 {
					params.Set("days", strconv.Itoa(days))
				}
				if pastDays > 0 {
					params.Set("past_days", strconv.Itoa(pastDays))
				}
				if cmd.Flags().Changed("prep") {
					params.Set("prep", strconv.Itoa(prep))
				}

				svc := query.New(st)
				f, err := svc.MatchFilter(ctx, params)
				if err != nil {
					return err
				}
				calOpts, err := svc.CalendarOptions(params)
				if err != nil {
					return err
				}
				matches, err := st.FindMatches(ctx, f)
				if err != nil {
					return fmt.Errorf("find matches: %w", err)
				}

				seasons, err := st.ListSeasons(ctx)
				if err != nil {
					return fmt.Errorf("list seasons: %w", err)
				}
				seasonNames := make(map[string]string, len(seasons))
				for _, s := range seasons {
					seasonNames[s.ID] = s.Name
				}

				body := ics.Build(matches, ics.Options{
					Host:             cfg.CalendarHost,
					CompetitionLabel: competition,
					TeamLabel:        team,
					EventDuration:    cfg.EventDuration,
					PlayerMode:       calOpts.PlayerMode,
					Prep:             calOpts.Prep,
					TZName:           calOpts.TZName,
					Location:         calOpts.Location,
					SeasonNames:      seasonNames,
				})
				if err := os.WriteFile(out, []byte(body), 0o644); err != nil {
					return fmt.Errorf("write %s: %w", out, err)
				}
				logger.Info("Calendar exported", "file", out, "events", len(matches))
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&season, "season", "", "Season ID or name substring")
	cmd.Flags().StringVar(&competition, "competition", "", "Competition name substring")
	cmd.Flags().StringVar(&groupID, "group-id", "", "Group ID (overrides competition)")
	cmd.Flags().StringVar(&team, "team", "", "Team name substring")
	cmd.Flags().StringVar(&teamID, "team-id", "", "Team ID (overrides team)")
	cmd.Flags().StringVar(&status, "status", "", "Match status (NOT_STARTED, LIVE, CLOSED)")
	cmd.Flags().IntVar(&days, "days", 0, "Only matches up to N days ahead")
	cmd.Flags().IntVar(&pastDays, "past-days", 0, "Only matches up to N days back")
	cmd.Flags().StringVar(&mode, "mode", "", "Calendar mode (fan, player)")
	cmd.Flags().IntVar(&prep, "prep", 0, "Player-mode warm-up shift in minutes")
	cmd.Flags().StringVar(&tz, "tz", "", "IANA time zone for local-time output")
	cmd.Flags().StringVar(&out, "out", "basketball.ics", "Output file")
	return cmd
}

func setParam(params url.Values, key, value string) {
	if value != "" {
		params.Set(key, value)
	}
}

// --------------------------------------------------------------------------
// cache command
// --------------------------------------------------------------------------

func cacheCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "cache",
		Short: "Inspect and manage the stored snapshot",
	}
	cmd.AddCommand(cacheInfoCmd())
	cmd.AddCommand(cacheClearCmd())
	cmd.AddCommand(cacheVacuumCmd())
	return cmd
}

func cacheInfoCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "info",
		Short: "Print snapshot statistics as JSON",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				stats, err := st.Stats(ctx)
				if err != nil {
					return fmt.Errorf("stats: %w", err)
				}

				info := map[string]any{"stats": stats}
				if size, err := st.SizeBytes(ctx); err == nil {
					info["databaseSizeBytes"] = size
				} else if !errors.Is(err, store.ErrSizeUnknown) {
					return fmt.Errorf("size: %w", err)
				}
				if v, err := st.GetMetadata(ctx, model.MetaLastScrapeCompletedAt); err == nil {
					info["lastUpdated"] = v
				} else if !errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("metadata: %w", err)
				}

				data, err := json.MarshalIndent(info, "", "  ")
				if err != nil {
					return err
				}
				fmt.Println(string(data))
				return nil
			})
		},
	}
}

func cacheClearCmd() *cobra.Command {
	var yes bool
	cmd := &cobra.Command{
		Use:   "clear",
		Short: "Delete every stored row (schema stays)",
		RunE: func(cmd *cobra.Command, args []string) error {
			if !yes {
				return fmt.Errorf("refusing to clear without --yes")
			}
			return runWithStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				if err := st.ClearAll(ctx); err != nil {
					return fmt.Errorf("clear: %w", err)
				}
				logger.Info("Store cleared")
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&yes, "yes", false, "Confirm deletion")
	return cmd
}

func cacheVacuumCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "vacuum",
		Short: "Reclaim storage where the backend supports it",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWithStore(func(ctx context.Context, cfg *config.Config, st store.Store) error {
				if err := st.Vacuum(ctx); err != nil {
					return fmt.Errorf("vacuum: %w", err)
				}
				logger.Info("Vacuum complete")
				return nil
			})
		},
	}
}

// --------------------------------------------------------------------------
// Shared setup
// --------------------------------------------------------------------------

// runWithStore handles config loading, store opening, and context
// cancellation.
func runWithStore(fn func(ctx context.Context, cfg *config.Config, st store.Store) error) error {
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt)
	defer cancel()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer st.Close()

	return fn(ctx, cfg, st)
}

// buildScraper wires the token harvester and widget client into a scraper.
func buildScraper(cfg *config.Config, st store.Store) *scrape.Scraper {
	harvester := harvest.New(cfg.WidgetURL, apiHost(cfg.APIBaseURL), cfg.ScraperHeadless, cfg.TokenTimeout, logger)
	client := upstream.NewClient(cfg.APIBaseURL, cfg.OriginURL, cfg.ProjectKey, cfg.UpstreamRPS, logger)
	return scrape.New(client, harvester, st, cfg.ScrapeWorkers, cfg.ScrapeTimeout, logger)
}

// apiHost extracts the host the harvester watches for Authorization headers.
func apiHost(baseURL string) string {
	if u, err := url.Parse(baseURL); err == nil && u.Host != "" {
		return u.Host
	}
	return baseURL
}
