package cli

import (
	"bufio"
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/internal/scheduler"
	"github.com/ankittk/postcraft/internal/workflow"
)

const generateHelp = `Drafting:
  write <channel> post about <topic> [with image]
  channels: instagram (insta, ig), linkedin (li), facebook (fb), x (twitter, tweet)`

const reviewHelp = `While a draft is pending:
  approve | a            save the draft
  edit <new text> | e    replace the draft text
  reject | r             discard the draft
  quit | q               cancel and discard the draft`

// shellHelp is printed by `help` in the chat shell.
var shellHelp = generateHelp + "\n\n" + scheduler.HelpText + "\n\n" + reviewHelp + "\n\nAnything else is answered from the knowledge base. Type 'quit' or 'exit' to leave."

func newChatCmd(g *globals) *cobra.Command {
	var thread string
	cmd := &cobra.Command{
		Use:   "chat",
		Short: "Interactive chat shell",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			out := cmd.OutOrStdout()
			_, _ = fmt.Fprintf(out, "=== postcraft (%s) type 'help' for commands, 'quit' to exit ===\n", svc.Mode())
			return runShell(cmd, svc.Engine, thread, cmd.InOrStdin(), out)
		},
	}
	cmd.Flags().StringVar(&thread, "thread", "default", "Conversation thread id")
	return cmd
}

// runShell reads one utterance per line until EOF or quit. While a draft is pending every line,
// quit included, goes to the approval gate.
func runShell(cmd *cobra.Command, eng *workflow.Engine, thread string, in io.Reader, out io.Writer) error {
	ctx := cmd.Context()
	pending := false
	if c, ok, err := eng.Checkpoints.Get(ctx, thread); err == nil && ok {
		pending = c.WaitingForQA
		if pending {
			_, _ = fmt.Fprintln(out, "Bot: "+review.Present(c))
		}
	}
	sc := bufio.NewScanner(in)
	sc.Buffer(make([]byte, 0, 64*1024), 1<<20)
	for {
		_, _ = fmt.Fprint(out, "You: ")
		if !sc.Scan() {
			_, _ = fmt.Fprintln(out)
			return sc.Err()
		}
		line := strings.TrimSpace(sc.Text())
		if line == "" {
			continue
		}
		if !pending {
			switch strings.ToLower(line) {
			case "quit", "exit":
				_, _ = fmt.Fprintln(out, "Bye.")
				return nil
			case "help":
				_, _ = fmt.Fprintln(out, shellHelp)
				continue
			}
		}
		c, err := eng.RunTurn(ctx, thread, line)
		if err != nil {
			_, _ = fmt.Fprintf(out, "Bot: Error: %v\n", err)
			continue
		}
		pending = c.WaitingForQA
		_, _ = fmt.Fprintln(out, "Bot: "+review.Reply(c))
	}
}

func newSayCmd(g *globals) *cobra.Command {
	var thread string
	cmd := &cobra.Command{
		Use:   "say <message>",
		Short: "Run a single chat turn and print the reply",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := g.open(cmd.Context())
			if err != nil {
				return err
			}
			defer func() { _ = svc.Close() }()
			c, err := svc.Engine.RunTurn(cmd.Context(), thread, strings.Join(args, " "))
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), review.Reply(c))
			return nil
		},
	}
	cmd.Flags().StringVar(&thread, "thread", "default", "Conversation thread id")
	return cmd
}
