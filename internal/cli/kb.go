package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

func newKBCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "kb",
		Short: "Manage the company knowledge base",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "ingest <url>...",
		Short: "Scrape pages into the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			var failed int
			for _, u := range args {
				name, err := svc.KB.Ingest(cmd.Context(), u)
				if err != nil {
					failed++
					_, _ = fmt.Fprintf(cmd.ErrOrStderr(), "%s: %v\n", u, err)
					continue
				}
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "%s -> %s\n", u, name)
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d pages failed", failed, len(args))
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List stored documents",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			docs, err := svc.KB.Documents()
			if err != nil {
				return err
			}
			for _, d := range docs {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), d)
			}
			return nil
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "query <question>",
		Short: "Answer a question from the knowledge base",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			answer, err := svc.KB.Query(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), answer)
			return nil
		},
	})
	return cmd
}
