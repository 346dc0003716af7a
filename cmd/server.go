package cmd

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/urfave/cli/v3"

	"helpdesk/api/admin"
	"helpdesk/api/integrations"
	"helpdesk/database"
	"helpdesk/scheduler"
	"helpdesk/secrets"
	"helpdesk/server"
)

func ServerCli() *cli.Command {
	cmd := &cli.Command{
		Name:  "server",
		Usage: "run the helpdesk integrations API",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Sources: cli.EnvVars("DB_BACKEND"),
				Name:    "db-backend",
				Aliases: []string{"db"},
				Value:   database.BackendSqlite,
				Usage:   "database driver to use (sqlite or postgres)",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("DB_PATH"),
				Name:    "db-path",
				Aliases: []string{"dp"},
				Value:   "data.db",
				Usage:   "For sqlite the path to the database file",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("DB_DSN"),
				Name:    "db-dsn",
				Usage:   "For postgres the connection string",
			},
			&cli.BoolFlag{
				Sources: cli.EnvVars("DEBUG"),
				Name:    "debug",
				Aliases: []string{"d"},
				Value:   false,
				Usage:   "drop and recreate all tables on start",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("HOST"),
				Name:    "host",
				Aliases: []string{"b"},
				Value:   "127.0.0.1",
				Usage:   "server bind address",
			},
			&cli.BoolFlag{
				Sources: cli.EnvVars("SSL"),
				Name:    "ssl",
				Aliases: []string{"s"},
				Value:   false,
				Usage:   "advertise an https address (TLS is terminated upstream)",
			},
			&cli.IntFlag{
				Sources: cli.EnvVars("PORT"),
				Name:    "port",
				Aliases: []string{"p"},
				Value:   1984,
				Usage:   "server port",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("INTEGRATIONS_SECRET"),
				Name:    "integrations-secret",
				Usage:   "passphrase the stored OAuth secrets and tokens are encrypted with",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("JIRA_CLIENT_ID"),
				Name:    "jira-client-id",
				Usage:   "Atlassian OAuth client id",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("JIRA_CLIENT_SECRET"),
				Name:    "jira-client-secret",
				Usage:   "Atlassian OAuth client secret",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("JIRA_REDIRECT_URI"),
				Name:    "jira-redirect-uri",
				Usage:   "callback URL registered with Atlassian",
			},
			&cli.StringFlag{
				Sources: cli.EnvVars("SERVICENOW_REDIRECT_URI"),
				Name:    "servicenow-redirect-uri",
				Usage:   "default ServiceNow callback URL when none is saved with the credentials",
			},
			&cli.BoolFlag{
				Sources: cli.EnvVars("SCHEDULER"),
				Name:    "scheduler",
				Value:   true,
				Usage:   "run the OAuth state expiry and token refresh tasks",
			},
		},
		Action: func(ctx context.Context, c *cli.Command) error {
			target := c.String("db-path")
			if c.String("db-backend") == database.BackendPostgres {
				target = c.String("db-dsn")
			}
			db, err := database.SetupDatabase(c.String("db-backend"), target, c.Bool("debug"))
			if err != nil {
				return err
			}

			cipher := secrets.NewCipher(c.String("integrations-secret"))
			if !cipher.Configured() {
				log.Println("INTEGRATIONS_SECRET is not set, saving OAuth credentials will fail until it is")
			}

			handler := integrations.NewIntegrationsHandler(db, cipher, integrations.OAuthSettings{
				JiraClientID:          c.String("jira-client-id"),
				JiraClientSecret:      c.String("jira-client-secret"),
				JiraRedirectURI:       c.String("jira-redirect-uri"),
				ServiceNowRedirectURI: c.String("servicenow-redirect-uri"),
			}, time.Now)

			var tasksHandler *admin.ScheduledTasksHandler
			if c.Bool("scheduler") {
				tasks := scheduler.NewSchedulerService(handler, integrations.DefaultStateTTL, time.Now)
				tasks.RegisterTasks()
				tasks.Start()
				defer tasks.Stop()
				tasksHandler = &admin.ScheduledTasksHandler{SchedulerService: tasks}
			}

			s, fullHost := server.BackendServer(db, handler, tasksHandler, c.String("host"), c.Int("port"), c.Bool("ssl"))
			fmt.Printf("Starting server on %s\n", fullHost)

			ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			errCh := make(chan error, 1)
			go func() {
				errCh <- s.ListenAndServe()
			}()

			select {
			case err := <-errCh:
				if !errors.Is(err, http.ErrServerClosed) {
					return err
				}
				return nil
			case <-ctx.Done():
			}

			log.Println("Shutting down server...")
			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			return s.Shutdown(shutdownCtx)
		},
	}

	return cmd
}
