// Package cli implements the postcraft command line.
package cli

import (
	"context"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/app"
	"github.com/ankittk/postcraft/internal/config"
)

// globals holds the persistent flags and the settings resolved from them before any subcommand runs.
type globals struct {
	homeOverride string
	envFile      string
	logLevel     string
	logFormat    string
	offline      bool

	settings config.Settings
}

// open builds the service graph for the resolved home.
func (g *globals) open(ctx context.Context) (*app.App, error) {
	return app.New(ctx, app.Options{
		Home:     config.MustHomeFrom(ctx),
		Settings: g.settings,
		Offline:  g.offline,
	})
}

func NewRootCmd(version string) *cobra.Command {
	g := &globals{}

	cmd := &cobra.Command{
		Use:          "postcraft",
		Short:        "postcraft: draft, approve and schedule social media posts from a chat",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			if g.envFile != "" {
				if err := config.LoadEnv(g.envFile); err != nil {
					return err
				}
			} else if err := config.LoadEnv(); err != nil {
				return err
			}
			home, err := config.ResolveHome(g.homeOverride)
			if err != nil {
				return err
			}
			s, err := config.LoadSettings(home)
			if err != nil {
				return err
			}
			if g.logLevel != "" {
				s.LogLevel = g.logLevel
			}
			if g.logFormat != "" {
				s.LogFormat = g.logFormat
			}
			g.settings = s
			slog.SetDefault(app.NewLogger(cmd.ErrOrStderr(), s.LogLevel, s.LogFormat))
			cmd.SetContext(config.WithHome(cmd.Context(), home))
			return nil
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVar(&g.homeOverride, "home", "", "Override postcraft home directory (default: ~/.postcraft, env: POSTCRAFT_HOME)")
	pf.StringVar(&g.envFile, "env-file", "", "Load env vars from this file (default: ./.env when present)")
	pf.StringVar(&g.logLevel, "log-level", "", "Log level: debug, info, warn, error (env: POSTCRAFT_LOG_LEVEL)")
	pf.StringVar(&g.logFormat, "log-format", "", "Log format: text or json (env: POSTCRAFT_LOG_FORMAT)")
	pf.BoolVar(&g.offline, "offline", false, "Never call remote models, even when API keys are set")

	cmd.AddCommand(newChatCmd(g))
	cmd.AddCommand(newSayCmd(g))
	cmd.AddCommand(newPostsCmd(g))
	cmd.AddCommand(newQueueCmd(g))
	cmd.AddCommand(newKBCmd(g))
	cmd.AddCommand(newBrandCmd(g))
	cmd.AddCommand(newDoctorCmd(g))

	cmd.AddCommand(newServeCmd(g))
	cmd.AddCommand(newStopCmd())
	cmd.AddCommand(newStatusCmd(g))
	cmd.AddCommand(newApikeyCmd())
	cmd.AddCommand(newResetCmd())

	// Hidden internal subcommand used by `postcraft serve --background`.
	cmd.AddCommand(newDaemonCmd(g))

	cmd.SetOut(os.Stdout)
	cmd.SetErr(os.Stderr)

	cmd.SetVersionTemplate("{{.Version}}\n")
	if version != "" {
		cmd.Version = version
	} else {
		cmd.Version = "dev"
	}

	return cmd
}
