package cli

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/app"
	"github.com/ankittk/postcraft/internal/config"
)

func newDoctorCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "doctor",
		Short: "Check the home directory, settings, API keys and checkpoint backend",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			var problems []string

			if err := os.MkdirAll(home, 0o755); err != nil {
				problems = append(problems, fmt.Sprintf("home %s: %v", home, err))
			} else {
				probe := filepath.Join(home, ".doctor")
				if err := os.WriteFile(probe, nil, 0o644); err != nil {
					problems = append(problems, fmt.Sprintf("home %s is not writable: %v", home, err))
				}
				_ = os.Remove(probe)
			}

			cp, err := app.OpenCheckpointer(cmd.Context(), home, g.settings.Checkpoint)
			if err != nil {
				problems = append(problems, fmt.Sprintf("checkpoint backend %s: %v", g.settings.Checkpoint.Driver, err))
			} else {
				_ = cp.Close()
			}

			keys := []struct{ env, what string }{
				{"GEMINI_API_KEY", "text generation (offline stub without it)"},
				{"OPENAI_API_KEY", "image generation (disabled without it)"},
			}
			for _, k := range keys {
				state := "set"
				if os.Getenv(k.env) == "" && !(k.env == "GEMINI_API_KEY" && os.Getenv("GOOGLE_API_KEY") != "") {
					state = "missing"
				}
				_, _ = fmt.Fprintf(out, "%-15s %-8s %s\n", k.env, state, k.what)
			}
			_, _ = fmt.Fprintf(out, "%-15s %-8s %s\n", "checkpoint", g.settings.Checkpoint.Driver, home)
			notify, target := "off", "set slack.webhook_url to announce approved posts"
			if g.settings.Slack.WebhookURL != "" {
				notify, target = "slack", g.settings.Slack.Channel
			}
			_, _ = fmt.Fprintf(out, "%-15s %-8s %s\n", "notify", notify, target)

			if len(problems) > 0 {
				for _, p := range problems {
					_, _ = fmt.Fprintln(cmd.ErrOrStderr(), p)
				}
				return errors.New("doctor checks failed")
			}

			_, _ = fmt.Fprintln(out, "ok")
			return nil
		},
	}
	return cmd
}
