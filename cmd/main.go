package main

import (
	"bufio"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/urfave/cli/v2"
	"golang.org/x/oauth2"

	"lmsync/internal/caldav"
	"lmsync/internal/config"
	"lmsync/internal/form"
	"lmsync/internal/google"
	"lmsync/internal/models"
	"lmsync/internal/notifier"
	"lmsync/internal/roster"
	"lmsync/internal/router"
	"lmsync/internal/sheets"
	"lmsync/internal/slack"
)

func main() {
	// Load .env file first, but don't error if it doesn't exist.
	_ = godotenv.Load()

	app := &cli.App{
		Name:  "lmsync",
		Usage: "Keep a training-course roster in sync with calendar guest lists.",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Usage: "Path to the YAML config file."},
			&cli.StringFlag{Name: "backend", Value: "google", Usage: "Calendar backend: google or caldav."},
			&cli.StringFlag{Name: "account", Usage: "Google account name (token file). Defaults to the first authenticated account."},
		},
		Commands: []*cli.Command{
			authCommand(),
			refreshCommand(),
			editCommand(),
			formCommand(),
			notifyCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		slog.Error("Application failed", "error", err)
		os.Exit(1)
	}
}

func authCommand() *cli.Command {
	return &cli.Command{
		Name:  "auth",
		Usage: "Authenticate with a Google account to get an API token.",
		Action: func(c *cli.Context) error {
			logger := setupLogger("info")
			logger.Info("Starting Google authentication flow.")

			cfg, err := google.GetOAuthConfigForAuthFlow(os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"))
			if err != nil {
				return fmt.Errorf("failed to get google oauth config: %w", err)
			}

			authURL := cfg.AuthCodeURL("state-token", oauth2.AccessTypeOffline)
			fmt.Printf("Go to the following link in your browser then type the "+
				"authorization code: \n%v\n", authURL)

			fmt.Print("Enter Authorization Code: ")
			reader := bufio.NewReader(os.Stdin)
			authCode, _ := reader.ReadString('\n')
			authCode = strings.TrimSpace(authCode)

			token, err := google.TokenFromWeb(cfg, authCode)
			if err != nil {
				return fmt.Errorf("unable to retrieve token from web: %w", err)
			}

			fmt.Print("Enter a name for this account (e.g., 'personal', 'work'): ")
			accountName, _ := reader.ReadString('\n')
			accountName = strings.TrimSpace(accountName)
			tokenFile := "token-" + accountName + ".json"

			if err := google.SaveToken(tokenFile, token); err != nil {
				return fmt.Errorf("failed to save token: %w", err)
			}

			logger.Info("Successfully authenticated and saved token.", "file", tokenFile)
			return nil
		},
	}
}

func refreshCommand() *cli.Command {
	return &cli.Command{
		Name:  "refresh",
		Usage: "Rebuild the attendance matrix from calendar guest lists.",
		Flags: []cli.Flag{
			&cli.IntFlag{Name: "watch", Usage: "Run a reconciliation every N seconds instead of once."},
		},
		Action: func(c *cli.Context) error {
			env, err := buildEnv(c)
			if err != nil {
				return err
			}

			reconciler := roster.NewReconciler(env.logger, env.store, env.calendar, env.cfg)

			if c.IsSet("watch") {
				interval := time.Duration(c.Int("watch")) * time.Second
				env.logger.Info("Starting watcher.", "interval", interval)
				ticker := time.NewTicker(interval)
				defer ticker.Stop()
				for ; true; <-ticker.C {
					if err := reconciler.Refresh(c.Context); err != nil {
						env.logger.Error("Reconciliation failed", "error", err)
					}
				}
				return nil
			}
			return reconciler.Refresh(c.Context)
		},
	}
}

func editCommand() *cli.Command {
	return &cli.Command{
		Name:  "edit",
		Usage: "Route one spreadsheet edit event (trigger-cell handling).",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sheet", Required: true, Usage: "Name of the edited sheet."},
			&cli.IntFlag{Name: "row", Required: true, Usage: "Edited row (1-based)."},
			&cli.IntFlag{Name: "col", Required: true, Usage: "Edited column (1-based)."},
			&cli.StringFlag{Name: "value", Usage: "Displayed value of the edited cell."},
		},
		Action: func(c *cli.Context) error {
			env, err := buildEnv(c)
			if err != nil {
				return err
			}

			reconciler := roster.NewReconciler(env.logger, env.store, env.calendar, env.cfg)
			sender := slack.NewWebhookSender(env.logger, env.cfg.SlackWebhookURL)
			r := router.New(env.logger, env.store, env.calendar, reconciler, sender, env.cfg, env.loc)

			r.HandleEdit(c.Context, router.Edit{
				Sheet: c.String("sheet"),
				Row:   c.Int("row"),
				Col:   c.Int("col"),
				Value: c.String("value"),
			})
			return nil
		},
	}
}

func formCommand() *cli.Command {
	return &cli.Command{
		Name:  "form",
		Usage: "Process one reservation-form submission (JSON payload).",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "payload", Value: "-", Usage: "Path to the submission JSON, or '-' for stdin."},
		},
		Action: func(c *cli.Context) error {
			env, err := buildEnv(c)
			if err != nil {
				return err
			}

			sub, err := readSubmission(c.String("payload"))
			if err != nil {
				return err
			}

			handler := form.NewHandler(env.logger, env.store, env.calendar, env.cfg)
			return handler.HandleSubmission(c.Context, sub)
		},
	}
}

func notifyCommand() *cli.Command {
	return &cli.Command{
		Name:  "notify",
		Usage: "Check the application data sheet for new rows and notify Slack.",
		Action: func(c *cli.Context) error {
			env, err := buildEnvStoreOnly(c)
			if err != nil {
				return err
			}

			sender := slack.NewWebhookSender(env.logger, env.cfg.SlackWebhookURL)
			var bot *slack.BotClient
			if env.cfg.SlackBotToken != "" && env.cfg.SlackChannelID != "" {
				bot, err = slack.NewBotClient(env.logger, env.cfg.SlackBotToken, env.cfg.SlackChannelID)
				if err != nil {
					return err
				}
			}

			n := notifier.New(env.logger, env.store, sender, bot, env.cfg)
			return n.Check(c.Context)
		},
	}
}

// environment bundles the collaborators every command wires together.
type environment struct {
	cfg      *config.Config
	logger   *slog.Logger
	loc      *time.Location
	store    sheets.Store
	calendar roster.Calendar
}

// buildEnv loads configuration and constructs the store and the calendar
// backend selected by --backend.
func buildEnv(c *cli.Context) (*environment, error) {
	env, err := buildEnvStoreOnly(c)
	if err != nil {
		return nil, err
	}

	switch c.String("backend") {
	case "google":
		httpClient, err := googleHTTPClient(c)
		if err != nil {
			return nil, err
		}
		env.calendar, err = google.NewClient(c.Context, env.logger, httpClient, env.cfg.CalendarID)
		if err != nil {
			return nil, err
		}
	case "caldav":
		env.calendar, err = caldav.NewClient(env.logger,
			os.Getenv("CALDAV_ENDPOINT"),
			os.Getenv("CALDAV_USERNAME"),
			os.Getenv("CALDAV_PASSWORD"),
			os.Getenv("CALDAV_CALENDAR"),
			env.loc)
		if err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("unknown calendar backend %q", c.String("backend"))
	}
	return env, nil
}

// buildEnvStoreOnly is buildEnv without the calendar backend, for commands
// that only touch the spreadsheet.
func buildEnvStoreOnly(c *cli.Context) (*environment, error) {
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logger := setupLogger(logLevel)

	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, err
	}

	loc, err := time.LoadLocation(cfg.Timezone)
	if err != nil {
		return nil, fmt.Errorf("invalid timezone '%s': %w", cfg.Timezone, err)
	}

	httpClient, err := googleHTTPClient(c)
	if err != nil {
		return nil, err
	}
	store, err := sheets.NewClient(c.Context, logger, httpClient, cfg.SpreadsheetID)
	if err != nil {
		return nil, err
	}

	return &environment{cfg: cfg, logger: logger, loc: loc, store: store}, nil
}

func googleHTTPClient(c *cli.Context) (*http.Client, error) {
	account := c.String("account")
	if account == "" {
		accounts, err := google.GetTokenAccounts()
		if err != nil || len(accounts) == 0 {
			return nil, fmt.Errorf("no google accounts found. Run the 'auth' command first")
		}
		account = accounts[0]
	}
	return google.NewHTTPClient(c.Context, os.Getenv("GOOGLE_CLIENT_ID"), os.Getenv("GOOGLE_CLIENT_SECRET"), account)
}

func readSubmission(path string) (*models.FormSubmission, error) {
	var reader io.Reader
	if path == "-" {
		reader = os.Stdin
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("failed to open payload: %w", err)
		}
		defer f.Close()
		reader = f
	}

	sub := &models.FormSubmission{}
	if err := json.NewDecoder(reader).Decode(sub); err != nil {
		return nil, fmt.Errorf("failed to decode payload: %w", err)
	}
	return sub, nil
}

func setupLogger(level string) *slog.Logger {
	var logLevel slog.Level
	switch strings.ToLower(level) {
	case "debug":
		logLevel = slog.LevelDebug
	case "warn":
		logLevel = slog.LevelWarn
	case "error":
		logLevel = slog.LevelError
	default:
		logLevel = slog.LevelInfo
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: logLevel}))
}
