package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"cardiokinetic/internal/analysis"
	"cardiokinetic/internal/auth"
	"cardiokinetic/internal/config"
	"cardiokinetic/internal/plan"
	"cardiokinetic/internal/service"
	"cardiokinetic/internal/store"
	"cardiokinetic/internal/strava"
	"cardiokinetic/internal/tui"
)

func main() {
	app := &cli.App{
		Name:  "cardiokinetic",
		Usage: "Physiological load tracking and adaptive training projection",
		Commands: []*cli.Command{
			statusCommand(),
			checkinCommand(),
			logCommand(),
			simulateCommand(),
			syncCommand(),
			connectCommand(),
			rebuildCommand(),
		},
		Action: func(c *cli.Context) error {
			return runTUI()
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// loadConfig loads the config, creating an example on first run.
// Returns (nil, nil) when the example was just created and the user
// needs to edit it.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if errors.Is(err, config.ErrNoConfig) {
		fmt.Println("No config file found. Creating example config...")
		if err := config.CreateExample(); err != nil {
			return nil, fmt.Errorf("creating example config: %w", err)
		}
		configDir, _ := config.GetConfigDir()
		fmt.Printf("\nEdit the config file at:\n  %s/config.json\n\n", configDir)
		fmt.Println("Set athlete.base_power to your rough sustainable watts.")
		fmt.Println("Strava credentials are only needed for 'connect' and 'sync'.")
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		configDir, _ := config.GetConfigDir()
		return nil, fmt.Errorf("config validation failed: %w (edit %s/config.json)", err, configDir)
	}

	return cfg, nil
}

// openServices opens the store and builds the local services.
func openServices() (*config.Config, *store.Store, *service.Engine, *service.SimulationService, error) {
	cfg, err := loadConfig()
	if err != nil || cfg == nil {
		return nil, nil, nil, nil, err
	}

	db, err := store.Open()
	if err != nil {
		return nil, nil, nil, nil, fmt.Errorf("opening database: %w", err)
	}

	return cfg, db, service.NewEngine(db, cfg), service.NewSimulationService(db, cfg), nil
}

// buildSyncService wires the Strava client from stored tokens.
// Returns nil when no account is connected.
func buildSyncService(db *store.Store, cfg *config.Config) (*service.SyncService, error) {
	storedAuth, err := db.GetAuth()
	if errors.Is(err, store.ErrNoAuth) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("checking auth: %w", err)
	}

	oauthCfg := auth.NewOAuthConfig(auth.Config{
		ClientID:     cfg.Strava.ClientID,
		ClientSecret: cfg.Strava.ClientSecret,
		RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
	})

	token := &oauth2.Token{
		AccessToken:  storedAuth.AccessToken,
		RefreshToken: storedAuth.RefreshToken,
		Expiry:       storedAuth.ExpiresAt,
	}

	tokenSource := auth.NewTokenSource(oauthCfg, token, func(newToken *oauth2.Token) error {
		return db.UpdateTokens(newToken.AccessToken, newToken.RefreshToken, newToken.Expiry)
	})

	client := strava.NewClient(tokenSource)
	return service.NewSyncService(client, db), nil
}

func runTUI() error {
	cfg, db, engine, sims, err := openServices()
	if err != nil || cfg == nil {
		return err
	}
	defer db.Close()

	var syncSvc *service.SyncService
	if cfg.ValidateStrava() == nil {
		syncSvc, err = buildSyncService(db, cfg)
		if err != nil {
			return err
		}
	}

	app := tui.NewApp(db, cfg, engine, sims, syncSvc)
	p := tea.NewProgram(app, tea.WithAltScreen())

	if _, err := p.Run(); err != nil {
		return fmt.Errorf("running TUI: %w", err)
	}
	return nil
}

func statusCommand() *cli.Command {
	return &cli.Command{
		Name:  "status",
		Usage: "Print today's fatigue, readiness, and power model",
		Action: func(c *cli.Context) error {
			cfg, db, engine, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			snap, err := engine.AdvanceTo(time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("Date        %s\n", snap.Date.Format("Mon Jan 02 2006"))
			fmt.Printf("Fatigue     %d / 100\n", snap.Fatigue)
			fmt.Printf("Readiness   %d / 100\n", snap.Readiness)
			fmt.Printf("CP          %.0f W\n", snap.CP)
			fmt.Printf("W'          %.1f kJ\n", snap.WPrime/1000)
			fmt.Printf("Confidence  %.0f%%\n", snap.Confidence*100)
			if snap.HasCheckin {
				fmt.Printf("Recovery    %.2fx (checked in)\n", snap.RecoveryEfficiency)
			} else {
				fmt.Println("Recovery    1.00x (no check-in today)")
			}
			return nil
		},
	}
}

func checkinCommand() *cli.Command {
	return &cli.Command{
		Name:  "checkin",
		Usage: "Record today's wellness check-in from flags",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: analysis.QuestionSleep, Usage: "Sleep quality 1-5", Required: true},
			&cli.IntFlag{Name: analysis.QuestionEnergy, Usage: "Energy level 1-5", Required: true},
			&cli.IntFlag{Name: analysis.QuestionSoreness, Usage: "Muscle soreness 1-5 (5 = very sore)", Required: true},
			&cli.IntFlag{Name: analysis.QuestionStress, Usage: "Stress level 1-5 (5 = very stressed)", Required: true},
			&cli.IntFlag{Name: analysis.QuestionMotivation, Usage: "Motivation 1-5", Required: true},
		},
		Action: func(c *cli.Context) error {
			cfg, db, engine, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			scores := make(map[string]int, len(analysis.Questions))
			for _, id := range analysis.Questions {
				v := c.Int(id)
				if v < 1 || v > 5 {
					return fmt.Errorf("%s must be between 1 and 5, got %d", id, v)
				}
				scores[id] = v
			}

			if err := db.SaveQuestionnaire(&store.QuestionnaireResponse{
				Date:   time.Now(),
				Scores: scores,
			}); err != nil {
				return fmt.Errorf("saving check-in: %w", err)
			}

			// Today may already be processed, so replay with the new evidence.
			snap, err := engine.Rebuild(time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("Check-in saved. Readiness %d, fatigue %d, recovery %.2fx.\n",
				snap.Readiness, snap.Fatigue, snap.RecoveryEfficiency)
			return nil
		},
	}
}

func logCommand() *cli.Command {
	return &cli.Command{
		Name:  "log",
		Usage: "Record a completed training session",
		Flags: []cli.Flag{
			&cli.Float64Flag{Name: "duration", Aliases: []string{"d"}, Usage: "Duration in minutes", Required: true},
			&cli.Float64Flag{Name: "power", Aliases: []string{"p"}, Usage: "Average power in watts", Required: true},
			&cli.Float64Flag{Name: "rpe", Aliases: []string{"r"}, Usage: "Perceived exertion 1-10", Required: true},
			&cli.StringFlag{Name: "style", Value: plan.StyleSteady, Usage: "Session style (steady, interval, custom)"},
			&cli.StringFlag{Name: "date", Usage: "Session date as YYYY-MM-DD (default today)"},
		},
		Action: func(c *cli.Context) error {
			cfg, db, engine, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			sess := store.Session{
				Date:            time.Now(),
				DurationMinutes: c.Float64("duration"),
				AveragePower:    c.Float64("power"),
				RPE:             c.Float64("rpe"),
				Style:           c.String("style"),
				Source:          "manual",
			}

			if sess.DurationMinutes <= 0 {
				return errors.New("duration must be positive")
			}
			if sess.AveragePower < 0 {
				return errors.New("power cannot be negative")
			}
			if sess.RPE < 1 || sess.RPE > 10 {
				return errors.New("rpe must be between 1 and 10")
			}
			switch sess.Style {
			case plan.StyleSteady, plan.StyleInterval, plan.StyleCustom:
			default:
				return fmt.Errorf("unknown style %q", sess.Style)
			}

			if ds := c.String("date"); ds != "" {
				d, err := time.ParseInLocation("2006-01-02", ds, time.Local)
				if err != nil {
					return fmt.Errorf("parsing date: %w", err)
				}
				sess.Date = d
			}

			if _, err := db.InsertSession(&sess); err != nil {
				return fmt.Errorf("saving session: %w", err)
			}

			// The session's day may already be processed, so replay.
			snap, err := engine.Rebuild(time.Now())
			if err != nil {
				return err
			}

			fmt.Printf("Session logged: %.0f min at %.0f W, RPE %.1f.\n",
				sess.DurationMinutes, sess.AveragePower, sess.RPE)
			fmt.Printf("Readiness %d, fatigue %d.\n", snap.Readiness, snap.Fatigue)
			return nil
		},
	}
}

func simulateCommand() *cli.Command {
	return &cli.Command{
		Name:  "simulate",
		Usage: "Project a plan template and print percentile bands",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "template", Aliases: []string{"t"}, Usage: "Path to plan template YAML (default ~/.cardiokinetic/template.yaml)"},
			&cli.IntFlag{Name: "weeks", Aliases: []string{"w"}, Usage: "Override program length in weeks"},
			&cli.IntFlag{Name: "advise-week", Usage: "Print the adjustment for this week (1-based)", Value: 1},
			&cli.BoolFlag{Name: "fresh", Usage: "Ignore the cached run and resimulate"},
		},
		Action: func(c *cli.Context) error {
			cfg, db, engine, sims, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			tplPath := c.String("template")
			if tplPath == "" {
				dir, err := config.GetConfigDir()
				if err != nil {
					return err
				}
				tplPath = filepath.Join(dir, "template.yaml")
			}

			tpl, err := plan.Load(tplPath)
			if errors.Is(err, plan.ErrNoTemplate) {
				return fmt.Errorf("no template at %s - write one to project a plan", tplPath)
			}
			if err != nil {
				return err
			}

			weekCount := tpl.WeekCount(c.Int("weeks"))

			progress := make(chan analysis.SimProgress, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if p.Err != nil || p.Done {
						continue
					}
					fmt.Printf("\r  %d/%d iterations (%.0fs left)   ",
						p.IterationsComplete, p.TotalIterations, p.EstimatedSecondsRemaining)
				}
			}()

			var proj *service.Projection
			if c.Bool("fresh") {
				proj, err = sims.Resimulate(c.Context, tpl, weekCount, progress)
			} else {
				proj, err = sims.Project(c.Context, tpl, weekCount, progress)
			}
			close(progress)
			<-done
			fmt.Print("\r")
			if err != nil {
				return err
			}

			printProjection(tpl, proj)

			snap, err := engine.AdvanceTo(time.Now())
			if err != nil {
				return err
			}
			adj, err := sims.Recommend(c.Context, tpl, weekCount, c.Int("advise-week"), snap)
			if err != nil {
				return err
			}
			printAdjustment(c.Int("advise-week"), adj)
			return nil
		},
	}
}

func printProjection(tpl *plan.Template, proj *service.Projection) {
	run := proj.Run
	fmt.Printf("%s: %d weeks, %d iterations (%d valid)\n",
		tpl.Name, run.WeekCount, run.Iterations, run.ValidIterations)
	if run.Degraded {
		fmt.Println("WARNING: over half the iterations were discarded; results are unreliable")
	}
	fmt.Println()

	fmt.Printf("%-4s  %-9s  %5s %5s %5s %5s %5s\n", "Week", "Metric", "P15", "P35", "P50", "P65", "P85")
	for _, w := range proj.Weeks {
		fmt.Printf("%-4d  %-9s  %5.0f %5.0f %5.0f %5.0f %5.0f\n",
			w.Week, "readiness", w.Readiness.P15, w.Readiness.P35, w.Readiness.Median, w.Readiness.P65, w.Readiness.P85)
		fmt.Printf("%-4s  %-9s  %5.0f %5.0f %5.0f %5.0f %5.0f\n",
			"", "fatigue", w.Fatigue.P15, w.Fatigue.P35, w.Fatigue.Median, w.Fatigue.P65, w.Fatigue.P85)
	}
	fmt.Println()
}

func printAdjustment(week int, adj *analysis.Adjustment) {
	fmt.Printf("Week %d state: %s (%s deviation)\n", week, adj.State, adj.Tier)
	fmt.Printf("  %s\n", adj.Advisory)
	if adj.Unchanged() {
		return
	}
	fmt.Printf("  power x%.2f, volume x%.2f, RPE %+.1f\n",
		adj.PowerMultiplier, adj.VolumeMultiplier, adj.RPEDelta)
	if adj.AddRestDay {
		fmt.Println("  insert an extra rest day")
	}
}

func syncCommand() *cli.Command {
	return &cli.Command{
		Name:  "sync",
		Usage: "Import rides with power data from Strava",
		Action: func(c *cli.Context) error {
			cfg, db, engine, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			if err := cfg.ValidateStrava(); err != nil {
				return err
			}

			syncSvc, err := buildSyncService(db, cfg)
			if err != nil {
				return err
			}
			if syncSvc == nil {
				return errors.New("no Strava account connected - run 'cardiokinetic connect' first")
			}

			progress := make(chan service.SyncProgress, 16)
			done := make(chan struct{})
			go func() {
				defer close(done)
				for p := range progress {
					if p.Total > 0 {
						fmt.Printf("\r  %s: %d/%d   ", p.Phase, p.Completed, p.Total)
					} else {
						fmt.Printf("\r  %s...   ", p.Phase)
					}
				}
			}()

			result, err := syncSvc.SyncAll(c.Context, progress)
			<-done
			fmt.Println()
			if err != nil {
				return err
			}

			fmt.Printf("Fetched %d activities, imported %d sessions, %d power traces.\n",
				result.ActivitiesFetched, result.SessionsImported, result.TracesFetched)
			for _, e := range result.Errors {
				fmt.Printf("  warning: %v\n", e)
			}

			if result.SessionsImported > 0 {
				// Imports can land on past days
				if _, err := engine.Rebuild(time.Now()); err != nil {
					return err
				}
				fmt.Println("Model rebuilt over the imported history.")
			}
			return nil
		},
	}
}

func connectCommand() *cli.Command {
	return &cli.Command{
		Name:  "connect",
		Usage: "Connect a Strava account via OAuth",
		Action: func(c *cli.Context) error {
			cfg, db, _, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			if err := cfg.ValidateStrava(); err != nil {
				return err
			}

			oauthCfg := auth.NewOAuthConfig(auth.Config{
				ClientID:     cfg.Strava.ClientID,
				ClientSecret: cfg.Strava.ClientSecret,
				RedirectURL:  fmt.Sprintf("http://localhost:%d/callback", auth.CallbackPort),
			})

			result, err := auth.Authenticate(c.Context, oauthCfg)
			if err != nil {
				return err
			}

			if err := db.SaveAuth(&store.Auth{
				AthleteID:    result.AthleteID,
				AccessToken:  result.Token.AccessToken,
				RefreshToken: result.Token.RefreshToken,
				ExpiresAt:    result.Token.Expiry,
			}); err != nil {
				return fmt.Errorf("saving auth: %w", err)
			}

			fmt.Printf("Connected as athlete %d.\n", result.AthleteID)
			return nil
		},
	}
}

func rebuildCommand() *cli.Command {
	return &cli.Command{
		Name:  "rebuild",
		Usage: "Replay the full session history from scratch",
		Action: func(c *cli.Context) error {
			cfg, db, engine, _, err := openServices()
			if err != nil || cfg == nil {
				return err
			}
			defer db.Close()

			snap, err := engine.Rebuild(time.Now())
			if err != nil {
				return err
			}
			fmt.Printf("Rebuilt. Readiness %d, fatigue %d, CP %.0f W.\n",
				snap.Readiness, snap.Fatigue, snap.CP)
			return nil
		},
	}
}
