package cli

import (
	"github.com/spf13/cobra"
)

func newBrandCmd(g *globals) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brand",
		Short: "Show or rebuild the brand voice profile",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the brand profile (built on first use)",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			p, err := svc.Brand.Profile(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSONOut(cmd.OutOrStdout(), p)
		},
	})
	cmd.AddCommand(&cobra.Command{
		Use:   "rebuild",
		Short: "Extract a fresh profile from the knowledge base",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			p, err := svc.Brand.Rebuild(cmd.Context())
			if err != nil {
				return err
			}
			return writeJSONOut(cmd.OutOrStdout(), p)
		},
	})
	return cmd
}
