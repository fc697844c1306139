package cli

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/config"
)

// resetTargets are the files and directories removed by `reset`; the knowledge base, brand profile and
// config.yaml survive unless --all is given.
func resetTargets(home string, all bool) []string {
	out := []string{
		config.PostsPath(home),
		config.SchedulePath(home),
		config.VectorsPath(home),
		config.StateDir(home),
		config.ImagesDir(home),
	}
	if all {
		out = append(out, config.KBDir(home), config.BrandPath(home), config.SettingsPath(home))
	}
	return out
}

func newResetCmd() *cobra.Command {
	var (
		all bool
		yes bool
	)
	cmd := &cobra.Command{
		Use:   "reset",
		Short: "Delete posts, the schedule queue, conversation state and images",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			out := cmd.OutOrStdout()
			targets := resetTargets(home, all)

			if !yes {
				_, _ = fmt.Fprintln(out, "This permanently deletes:")
				for _, t := range targets {
					_, _ = fmt.Fprintln(out, "  "+t)
				}
				_, _ = fmt.Fprintln(out, `Type "reset" to confirm:`)
				line, err := bufio.NewReader(cmd.InOrStdin()).ReadString('\n')
				if err != nil && !errors.Is(err, io.EOF) {
					return err
				}
				if strings.TrimSpace(line) != "reset" {
					_, _ = fmt.Fprintln(out, "Aborted.")
					return nil
				}
			}

			for _, t := range targets {
				if err := os.RemoveAll(t); err != nil && !errors.Is(err, fs.ErrNotExist) {
					return err
				}
			}
			_, _ = fmt.Fprintln(out, "Deleted.")
			return nil
		},
	}
	cmd.Flags().BoolVar(&all, "all", false, "Also delete the knowledge base, brand profile and config.yaml")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}
