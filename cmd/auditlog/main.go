package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/urfave/cli/v3"

	"github.com/atvirokodosprendimai/auditlog/internal/app"
	"github.com/atvirokodosprendimai/auditlog/internal/config"
	"github.com/atvirokodosprendimai/auditlog/internal/core/domain"
	"github.com/atvirokodosprendimai/auditlog/internal/core/usecase"
	"github.com/atvirokodosprendimai/auditlog/internal/logger"
)

func main() {
	cmd := &cli.Command{
		Name:  "auditlog",
		Usage: "Audit and compliance event log",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Sources: cli.EnvVars("AUDITLOG_CONFIG"),
				Usage:   "Path to a YAML config file",
			},
			&cli.StringFlag{
				Name:    "db-driver",
				Sources: cli.EnvVars("AUDITLOG_DATABASE_DRIVER"),
				Usage:   "Database driver: sqlite or postgres",
			},
			&cli.StringFlag{
				Name:    "db-dsn",
				Sources: cli.EnvVars("AUDITLOG_DATABASE_DSN"),
				Usage:   "SQLite file path or Postgres DSN",
			},
		},
		Commands: []*cli.Command{
			serveCommand(),
			migrateCommand(),
			cleanupCommand(),
			tokenCommand(),
			policyCommand(),
		},
	}

	if err := cmd.Run(context.Background(), os.Args); err != nil {
		logrus.Fatal(err)
	}
}

// loadConfig layers command line flags over the config file and environment.
func loadConfig(c *cli.Command) (*config.Config, *logrus.Logger, error) {
	cfg, err := config.Load(c.String("config"))
	if err != nil {
		return nil, nil, err
	}
	if c.IsSet("db-driver") {
		cfg.Database.Driver = c.String("db-driver")
	}
	if c.IsSet("db-dsn") {
		cfg.Database.DSN = c.String("db-dsn")
	}
	if c.IsSet("addr") {
		cfg.Server.Addr = c.String("addr")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, fmt.Errorf("invalid config: %w", err)
	}
	return cfg, logger.New(cfg.Log.Level, cfg.Log.Format), nil
}

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "Run the HTTP API, outbox dispatcher and retention schedule",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "addr",
				Sources: cli.EnvVars("AUDITLOG_SERVER_ADDR"),
				Usage:   "HTTP listen address",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}

			server, closer, err := app.NewServer(ctx, cfg, log)
			if err != nil {
				return fmt.Errorf("create server: %w", err)
			}
			defer func() {
				if closeErr := closer.Close(); closeErr != nil {
					log.WithError(closeErr).Error("close resources")
				}
			}()

			errCh := make(chan error, 1)
			go func() {
				log.WithField("addr", cfg.Server.Addr).Info("listening")
				errCh <- server.ListenAndServe()
			}()

			sigCh := make(chan os.Signal, 1)
			signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
			defer signal.Stop(sigCh)

			select {
			case <-ctx.Done():
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case sig := <-sigCh:
				log.WithField("signal", sig.String()).Info("shutting down")
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
				defer cancel()
				return server.Shutdown(shutdownCtx)
			case err := <-errCh:
				if errors.Is(err, http.ErrServerClosed) {
					return nil
				}
				return err
			}
		},
	}
}

func migrateCommand() *cli.Command {
	return &cli.Command{
		Name:  "migrate",
		Usage: "Apply database migrations and exit",
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			rt, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()
			log.WithField("driver", cfg.Database.Driver).Info("migrations applied")
			return nil
		},
	}
}

func cleanupCommand() *cli.Command {
	return &cli.Command{
		Name:  "cleanup",
		Usage: "Delete action logs older than the retention period",
		Flags: []cli.Flag{
			&cli.IntFlag{
				Name:    "retention-days",
				Value:   90,
				Sources: cli.EnvVars("AUDITLOG_RETENTION_DAYS"),
				Usage:   "Keep action logs newer than this many days",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			rt, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			result, err := rt.Retention.Cleanup(ctx, c.Int("retention-days"))
			if err != nil {
				return err
			}
			fmt.Printf("deleted %d action logs created before %s\n", result.DeletedCount, result.Cutoff.Format(time.RFC3339))
			return nil
		},
	}
}

func tokenCommand() *cli.Command {
	return &cli.Command{
		Name:  "token",
		Usage: "Issue a signed caller token for testing and service accounts",
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "sub", Required: true, Usage: "Caller id"},
			&cli.StringFlag{Name: "role", Required: true, Usage: "CLIENT, THERAPIST, MODERATOR or ADMIN"},
			&cli.DurationFlag{Name: "ttl", Value: time.Hour, Usage: "Token lifetime"},
		},
		Action: func(_ context.Context, c *cli.Command) error {
			cfg, err := config.Load(c.String("config"))
			if err != nil {
				return err
			}
			role, err := domain.ParseRole(c.String("role"))
			if err != nil {
				return err
			}
			auth, err := usecase.NewAuthService(cfg.Auth.JWTSecret, cfg.Auth.Issuer, nil)
			if err != nil {
				return err
			}
			token, err := auth.IssueToken(domain.Caller{ID: c.String("sub"), Role: role}, c.Duration("ttl"))
			if err != nil {
				return err
			}
			fmt.Println(token)
			return nil
		},
	}
}

func policyCommand() *cli.Command {
	ruleFlags := []cli.Flag{
		&cli.StringFlag{Name: "role", Required: true, Usage: "CLIENT, THERAPIST, MODERATOR or ADMIN"},
		&cli.StringFlag{Name: "object", Required: true, Usage: "action_logs, system_events, data_change_logs, statistics or retention"},
		&cli.StringFlag{Name: "act", Required: true, Usage: "Permission on the object, e.g. read"},
	}
	change := func(grant bool) cli.ActionFunc {
		return func(ctx context.Context, c *cli.Command) error {
			cfg, log, err := loadConfig(c)
			if err != nil {
				return err
			}
			role, err := domain.ParseRole(c.String("role"))
			if err != nil {
				return err
			}
			rt, err := app.Open(ctx, cfg, log)
			if err != nil {
				return err
			}
			defer rt.Close()

			apply := rt.Enforcer.Revoke
			if grant {
				apply = rt.Enforcer.Grant
			}
			changed, err := apply(role, c.String("object"), c.String("act"))
			if err != nil {
				return err
			}
			log.WithFields(logrus.Fields{
				"role":    role,
				"object":  c.String("object"),
				"act":     c.String("act"),
				"grant":   grant,
				"changed": changed,
			}).Info("policy updated")
			return nil
		}
	}

	return &cli.Command{
		Name:  "policy",
		Usage: "Inspect or change the stored access policy",
		Commands: []*cli.Command{
			{
				Name:  "list",
				Usage: "Print every stored rule",
				Action: func(ctx context.Context, c *cli.Command) error {
					cfg, log, err := loadConfig(c)
					if err != nil {
						return err
					}
					rt, err := app.Open(ctx, cfg, log)
					if err != nil {
						return err
					}
					defer rt.Close()

					rules, err := rt.Enforcer.Rules()
					if err != nil {
						return err
					}
					for _, rule := range rules {
						fmt.Println(strings.Join(rule, "\t"))
					}
					return nil
				},
			},
			{Name: "grant", Usage: "Allow a role an extra permission", Flags: ruleFlags, Action: change(true)},
			{Name: "revoke", Usage: "Remove a permission from a role", Flags: ruleFlags, Action: change(false)},
		},
	}
}
