package cli

import (
	"context"
	"fmt"
	"net"
	"time"

	"github.com/spf13/cobra"

	"github.com/ankittk/postcraft/internal/config"
	"github.com/ankittk/postcraft/internal/daemon"
	"github.com/ankittk/postcraft/pkg/client"
)

type serverFlags struct {
	addr       string
	dev        bool
	pprofAddr  string
	enableOtel bool
}

func (f *serverFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&f.addr, "addr", "", "Listen address (default from config.yaml http.addr, env: POSTCRAFT_HTTP_ADDR)")
	cmd.Flags().BoolVar(&f.dev, "dev", false, "Enable permissive CORS for local front-ends")
	cmd.Flags().StringVar(&f.pprofAddr, "pprof", "", "Enable pprof on address (e.g. 127.0.0.1:6060)")
	cmd.Flags().BoolVar(&f.enableOtel, "otel", true, "Enable OpenTelemetry metrics on /metrics")
}

func (f *serverFlags) options(g *globals, home string) daemon.StartOptions {
	return daemon.StartOptions{
		Home:       home,
		Settings:   g.settings,
		Addr:       f.addr,
		Dev:        f.dev,
		PprofAddr:  f.pprofAddr,
		Offline:    g.offline,
		EnableOtel: f.enableOtel,
	}
}

func newServeCmd(g *globals) *cobra.Command {
	var (
		f          serverFlags
		background bool
	)
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the chat HTTP API",
		RunE: func(cmd *cobra.Command, args []string) error {
			home := config.MustHomeFrom(cmd.Context())
			opts := f.options(g, home)
			addr := opts.Addr
			if addr == "" {
				addr = g.settings.HTTP.Addr
			}
			if !background {
				_, _ = fmt.Fprintf(cmd.OutOrStdout(), "postcraft serving on http://%s\n", addr)
				return daemon.StartForeground(cmd.Context(), opts)
			}
			pid, err := daemon.StartBackground(cmd.Context(), opts)
			if err != nil {
				return err
			}
			_, _ = fmt.Fprintf(cmd.OutOrStdout(), "postcraft server started (pid %d) on http://%s\n", pid, addr)
			return nil
		},
	}
	f.register(cmd)
	cmd.Flags().BoolVar(&background, "background", false, "Detach and run in the background (stop with `postcraft stop`)")
	return cmd
}

func newDaemonCmd(g *globals) *cobra.Command {
	var f serverFlags
	cmd := &cobra.Command{
		Use:    "daemon",
		Short:  "Internal: run the server process",
		Hidden: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			return daemon.StartForeground(cmd.Context(), f.options(g, config.MustHomeFrom(cmd.Context())))
		},
	}
	f.register(cmd)
	return cmd
}

func newStopCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "stop",
		Short: "Stop the background server",
		RunE: func(cmd *cobra.Command, args []string) error {
			stopped, err := daemon.Stop(cmd.Context(), config.MustHomeFrom(cmd.Context()))
			if err != nil {
				return err
			}
			if !stopped {
				_, _ = fmt.Fprintln(cmd.OutOrStdout(), "postcraft server is not running")
				return nil
			}
			_, _ = fmt.Fprintln(cmd.OutOrStdout(), "Stopped")
			return nil
		},
	}
}

func newStatusCmd(g *globals) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show background server status",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			st, err := daemon.Status(cmd.Context(), config.MustHomeFrom(cmd.Context()))
			if err != nil {
				return err
			}
			if !st.Running {
				_, _ = fmt.Fprintln(out, "postcraft server not running")
				return nil
			}
			_, _ = fmt.Fprintf(out, "postcraft server running (pid %d, addr %s)\n", st.PID, st.Addr)

			ctx, cancel := context.WithTimeout(cmd.Context(), 3*time.Second)
			defer cancel()
			ok, err := client.New(serverURL(st.Addr), g.settings.HTTP.APIKey).Health(ctx)
			switch {
			case err != nil:
				_, _ = fmt.Fprintf(out, "health: unreachable (%v)\n", err)
			case !ok:
				_, _ = fmt.Fprintln(out, "health: not ok")
			default:
				_, _ = fmt.Fprintln(out, "health: ok")
			}
			return nil
		},
	}
}

// serverURL turns a listen address into a URL a local client can dial.
func serverURL(addr string) string {
	host, port, err := net.SplitHostPort(addr)
	if err != nil {
		return "http://" + addr
	}
	if host == "" || host == "0.0.0.0" || host == "::" {
		host = "127.0.0.1"
	}
	return "http://" + net.JoinHostPort(host, port)
}
