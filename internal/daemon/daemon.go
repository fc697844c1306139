// Package daemon runs the HTTP API as a long-lived server, in the foreground or detached, with a
// single-instance lock and pid/addr files under <home>/state.
package daemon

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"os"
	"os/exec"
	"strconv"
	"strings"
	"time"

	"github.com/ankittk/postcraft/internal/app"
	"github.com/ankittk/postcraft/internal/config"
	"github.com/ankittk/postcraft/internal/httpapi"
	"github.com/ankittk/postcraft/internal/otel"
)

var errNotRunning = errors.New("postcraft server is not running")

// StartForeground serves until ctx is cancelled.
func StartForeground(ctx context.Context, opts StartOptions) error {
	if opts.Home == "" {
		return errors.New("home is required")
	}
	addr := opts.Addr
	if addr == "" {
		addr = opts.Settings.HTTP.Addr
	}
	if addr == "" {
		addr = config.Defaults().HTTP.Addr
	}

	lock, err := acquireLock(lockPath(opts.Home))
	if err != nil {
		return err
	}
	defer lock.release()

	startPprof(opts.PprofAddr)

	if err := checkAddrAvailable(addr); err != nil {
		return err
	}
	if err := os.WriteFile(pidPath(opts.Home), []byte(strconv.Itoa(os.Getpid())+"\n"), 0o644); err != nil {
		return err
	}
	_ = os.WriteFile(addrPath(opts.Home), []byte(addr+"\n"), 0o644)
	defer func() {
		_ = os.Remove(pidPath(opts.Home))
		_ = os.Remove(addrPath(opts.Home))
	}()

	svc, err := app.New(ctx, app.Options{Home: opts.Home, Settings: opts.Settings, Offline: opts.Offline, Clock: opts.Now})
	if err != nil {
		return err
	}
	defer func() { _ = svc.Close() }()

	srvOpts := httpapi.ServerOptions{
		Addr:   addr,
		Dev:    opts.Dev,
		APIKey: opts.Settings.HTTP.APIKey,
	}
	if opts.EnableOtel {
		metricsHandler, err := otel.InitMeterProvider(ctx, "postcraft")
		if err != nil {
			slog.Warn("otel init failed, using basic metrics", "err", err)
		} else {
			srvOpts.MetricsHandler = metricsHandler
			srvOpts.UseOtelHTTP = true
			_ = otel.InitMetrics(ctx)
		}
	}
	srv := httpapi.NewServer(svc, srvOpts)

	slog.Info("server starting", "addr", addr, "home", opts.Home, "mode", svc.Mode())
	return srv.Run(ctx)
}

// StartBackground re-executes the current binary as a detached `daemon` process and returns its pid.
func StartBackground(ctx context.Context, opts StartOptions) (int, error) {
	exe, err := os.Executable()
	if err != nil {
		return 0, err
	}
	if err := os.MkdirAll(config.StateDir(opts.Home), 0o755); err != nil {
		return 0, err
	}
	if st, _ := Status(ctx, opts.Home); st.Running {
		return 0, fmt.Errorf("postcraft server already running (pid %d)", st.PID)
	}

	stderr, err := os.OpenFile(logPath(opts.Home), os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
	if err != nil {
		return 0, err
	}
	// Kept open for the child's lifetime.

	cmd := exec.Command(exe, daemonArgs(opts)...)
	cmd.Stdout = io.Discard
	cmd.Stderr = stderr
	setDaemonSysProcAttr(cmd)
	if err := cmd.Start(); err != nil {
		return 0, err
	}

	pid := cmd.Process.Pid
	poll(ctx, 2*time.Second, 50*time.Millisecond, func() bool {
		st, _ := Status(ctx, opts.Home)
		if st.Running {
			pid = st.PID
		}
		return st.Running
	})
	return pid, nil
}

// Stop sends SIGTERM to the running server and waits up to 15s before killing it.
// It reports false when nothing was running.
func Stop(ctx context.Context, home string) (bool, error) {
	st, err := Status(ctx, home)
	if err != nil {
		return false, err
	}
	if !st.Running {
		return false, nil
	}
	proc, err := os.FindProcess(st.PID)
	if err != nil {
		return false, errNotRunning
	}
	if err := signalTerm(proc); err != nil {
		return false, err
	}

	exited := poll(ctx, 15*time.Second, 100*time.Millisecond, func() bool {
		st, _ := Status(ctx, home)
		return !st.Running
	})
	if !exited {
		_ = proc.Kill()
	}
	return true, nil
}

// Status reads the pid file. A stale pid file is removed.
func Status(_ context.Context, home string) (StatusInfo, error) {
	pb, err := os.ReadFile(pidPath(home))
	if err != nil {
		return StatusInfo{}, nil
	}
	pid, err := strconv.Atoi(strings.TrimSpace(string(pb)))
	if err != nil || pid <= 0 {
		return StatusInfo{}, nil
	}
	if !processExists(pid) {
		_ = os.Remove(pidPath(home))
		return StatusInfo{}, nil
	}
	addr := "unknown"
	if ab, err := os.ReadFile(addrPath(home)); err == nil && strings.TrimSpace(string(ab)) != "" {
		addr = strings.TrimSpace(string(ab))
	}
	return StatusInfo{Running: true, PID: pid, Addr: addr}, nil
}

func checkAddrAvailable(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("%s is already in use", addr)
	}
	_ = ln.Close()
	return nil
}

// daemonArgs rebuilds the hidden daemon command line from opts. Settings are re-read from home by the child.
func daemonArgs(opts StartOptions) []string {
	args := []string{"daemon", "--home", opts.Home}
	for _, f := range []struct {
		name string
		on   bool
	}{{"--dev", opts.Dev}, {"--offline", opts.Offline}, {"--otel", opts.EnableOtel}} {
		if f.on {
			args = append(args, f.name)
		}
	}
	if opts.Addr != "" {
		args = append(args, "--addr", opts.Addr)
	}
	if opts.PprofAddr != "" {
		args = append(args, "--pprof", opts.PprofAddr)
	}
	return args
}

// poll calls done every interval until it returns true, the timeout passes, or ctx ends.
func poll(ctx context.Context, timeout, interval time.Duration, done func() bool) bool {
	t := time.NewTicker(interval)
	defer t.Stop()
	limit := time.After(timeout)
	for {
		if done() {
			return true
		}
		select {
		case <-ctx.Done():
			return false
		case <-limit:
			return false
		case <-t.C:
		}
	}
}
