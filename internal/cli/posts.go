package cli

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/router"
	"github.com/ankittk/postcraft/pkg/models"
)

func channelFlag(raw string) (models.Channel, error) {
	if raw == "" {
		return "", nil
	}
	ch, ok := router.NormalizeChannel(raw)
	if !ok {
		return "", fmt.Errorf("unknown channel %q", raw)
	}
	return ch, nil
}

func writeJSONOut(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}

func newPostsCmd(g *globals) *cobra.Command {
	var (
		channel string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "posts",
		Short: "List approved posts",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := channelFlag(channel)
			if err != nil {
				return err
			}
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			posts, err := svc.Posts.LoadAll(cmd.Context())
			if err != nil {
				return err
			}
			var out []models.Post
			for _, p := range posts {
				if ch == "" || models.SameChannel(p.Channel, ch) {
					out = append(out, p)
				}
			}
			if asJSON {
				if out == nil {
					out = []models.Post{}
				}
				return writeJSONOut(cmd.OutOrStdout(), out)
			}
			if len(out) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "No posts.")
				return nil
			}
			for _, p := range out {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n", p.Day(), p.Channel, p.ID, oneLine(p.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Only this channel (name or alias)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

func newQueueCmd(g *globals) *cobra.Command {
	var (
		channel string
		asJSON  bool
	)
	cmd := &cobra.Command{
		Use:   "queue",
		Short: "List scheduled posts by date",
		RunE: func(cmd *cobra.Command, args []string) error {
			ch, err := channelFlag(channel)
			if err != nil {
				return err
			}
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			rows, err := svc.Queue.List(cmd.Context(), ch)
			if err != nil {
				return err
			}
			if asJSON {
				if rows == nil {
					rows = []models.ScheduleEntry{}
				}
				return writeJSONOut(cmd.OutOrStdout(), rows)
			}
			if len(rows) == 0 {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Queue is empty.")
				return nil
			}
			for _, e := range rows {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s  %-9s  %s  %s\n", e.ScheduledFor, e.Channel, e.PostID, oneLine(e.Text, 60))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&channel, "channel", "", "Only this channel (name or alias)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON")
	return cmd
}

// oneLine flattens newlines and cuts s to n runes.
func oneLine(s string, n int) string {
	r := []rune(s)
	for i, c := range r {
		if c == '\n' || c == '\r' {
			r[i] = ' '
		}
	}
	if len(r) > n {
		return string(r[:n]) + "..."
	}
	return string(r)
}
