package cli

import (
	"bytes"
	"encoding/json"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"testing"

	"github.com/joho/godotenv"

	"github.com/ankittk/postcraft/internal/config"
	"github.com/ankittk/postcraft/internal/review"
	"github.com/ankittk/postcraft/pkg/models"
)

func TestNewRootCmd_hasSubcommands(t *testing.T) {
	root := NewRootCmd("test")
	if root == nil {
		t.Fatal("NewRootCmd returned nil")
	}
	names := make(map[string]bool)
	for _, c := range root.Commands() {
		names[c.Name()] = true
	}
	for _, want := range []string{"chat", "say", "posts", "queue", "kb", "brand", "doctor", "serve", "stop", "status", "apikey", "reset"} {
		if !names[want] {
			t.Errorf("expected subcommand %q", want)
		}
	}
}

func TestNewRootCmd_versionFlag(t *testing.T) {
	root := NewRootCmd("1.2.3")
	if root.Version != "1.2.3" {
		t.Errorf("Version: got %q", root.Version)
	}
}

func TestNewRootCmd_persistentFlags(t *testing.T) {
	root := NewRootCmd("")
	for _, name := range []string{"home", "env-file", "log-level", "log-format", "offline"} {
		if root.PersistentFlags().Lookup(name) == nil {
			t.Errorf("expected --%s persistent flag", name)
		}
	}
}

// run executes the CLI against home with --offline and returns stdout.
func run(t *testing.T, home, stdin string, args ...string) string {
	t.Helper()
	root := NewRootCmd("test")
	var out, errOut bytes.Buffer
	root.SetOut(&out)
	root.SetErr(&errOut)
	root.SetIn(strings.NewReader(stdin))
	root.SetArgs(append([]string{"--home", home, "--offline", "--log-level", "error"}, args...))
	if err := root.Execute(); err != nil {
		t.Fatalf("%v: %v\nstderr: %s", args, err, errOut.String())
	}
	return out.String()
}

func TestApikeyGenerate(t *testing.T) {
	out := run(t, t.TempDir(), "", "apikey", "generate")
	hexKey := regexp.MustCompile(`(?m)^  ([a-f0-9]{64})$`)
	if !hexKey.MatchString(out) {
		t.Errorf("output should contain a 64-char hex key on its own line; got:\n%s", out)
	}
	if !strings.Contains(out, "POSTCRAFT_API_KEY") {
		t.Errorf("output should mention POSTCRAFT_API_KEY")
	}
	if !strings.Contains(out, "X-API-Key") {
		t.Errorf("output should mention X-API-Key")
	}
}

func TestApikeyGenerate_envFile(t *testing.T) {
	home := t.TempDir()
	envPath := filepath.Join(home, ".env")
	if err := os.WriteFile(envPath, []byte("GEMINI_API_KEY=abc\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	out := run(t, home, "", "apikey", "generate", "--env", envPath)
	if !strings.Contains(out, "serve --env-file "+envPath) {
		t.Errorf("output should explain how to start the server; got:\n%s", out)
	}
	env, err := godotenv.Read(envPath)
	if err != nil {
		t.Fatalf("read env file: %v", err)
	}
	if env["GEMINI_API_KEY"] != "abc" || len(env["POSTCRAFT_API_KEY"]) != 64 {
		t.Fatalf("env file: got %v", env)
	}
}

func TestApikeyGenerate_save(t *testing.T) {
	home := t.TempDir()
	run(t, home, "", "apikey", "generate", "--save")
	s, err := config.LoadSettings(home)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if len(s.HTTP.APIKey) != 64 {
		t.Fatalf("http.api_key: got %q", s.HTTP.APIKey)
	}
}

func TestSay_draftApproveList(t *testing.T) {
	home := t.TempDir()

	out := run(t, home, "", "say", "write linkedin post about remote hiring")
	if !strings.HasPrefix(out, "--- DRAFT ---") || !strings.Contains(out, review.CommandHint) {
		t.Fatalf("say generate: got %q", out)
	}
	out = run(t, home, "", "say", "approve")
	if strings.TrimSpace(out) != review.MsgSaved {
		t.Fatalf("say approve: got %q", out)
	}

	var posts []models.Post
	if err := json.Unmarshal([]byte(run(t, home, "", "posts", "--json")), &posts); err != nil {
		t.Fatalf("posts --json: %v", err)
	}
	if len(posts) != 1 || posts[0].Channel != models.ChannelLinkedIn {
		t.Fatalf("posts: got %+v", posts)
	}
	if out := run(t, home, "", "posts", "--channel", "fb"); strings.TrimSpace(out) != "No posts." {
		t.Fatalf("posts --channel fb: got %q", out)
	}
	if out := run(t, home, "", "queue"); strings.TrimSpace(out) != "Queue is empty." {
		t.Fatalf("queue: got %q", out)
	}
}

func TestChat_shell(t *testing.T) {
	home := t.TempDir()
	out := run(t, home, "help\nwrite x post about our launch\napprove\nquit\n", "chat")
	for _, want := range []string{"Scheduler commands:", "--- DRAFT ---", review.MsgSaved, "Bye."} {
		if !strings.Contains(out, want) {
			t.Errorf("chat output missing %q:\n%s", want, out)
		}
	}
}

func TestChat_quitWhileDraftPendingCancels(t *testing.T) {
	home := t.TempDir()
	out := run(t, home, "write instagram post about coffee\nquit\nexit\n", "chat")
	if !strings.Contains(out, review.MsgCancelled) {
		t.Fatalf("quit with a pending draft should cancel it:\n%s", out)
	}
	if !strings.HasSuffix(strings.TrimSpace(out), "Bye.") {
		t.Fatalf("exit after cancel should leave the shell:\n%s", out)
	}
}

func TestChat_resumesPendingDraft(t *testing.T) {
	home := t.TempDir()
	run(t, home, "", "say", "--thread", "t1", "write facebook post about hiring")
	out := run(t, home, "reject\nexit\n", "chat", "--thread", "t1")
	if !strings.Contains(out, "--- DRAFT ---") || !strings.Contains(out, review.MsgRejected) {
		t.Fatalf("chat should show the pending draft, then reject it:\n%s", out)
	}
}

func TestReset(t *testing.T) {
	home := t.TempDir()
	for _, p := range []string{config.PostsPath(home), config.SchedulePath(home)} {
		if err := os.WriteFile(p, []byte("[]"), 0o644); err != nil {
			t.Fatal(err)
		}
	}
	if err := os.MkdirAll(config.KBDir(home), 0o755); err != nil {
		t.Fatal(err)
	}

	if out := run(t, home, "no\n", "reset"); !strings.Contains(out, "Aborted.") {
		t.Fatalf("reset without confirmation: got %q", out)
	}
	if _, err := os.Stat(config.PostsPath(home)); err != nil {
		t.Fatalf("aborted reset removed posts: %v", err)
	}

	run(t, home, "", "reset", "--yes")
	if _, err := os.Stat(config.PostsPath(home)); !os.IsNotExist(err) {
		t.Errorf("posts.json should be deleted: %v", err)
	}
	if _, err := os.Stat(config.KBDir(home)); err != nil {
		t.Errorf("kb dir should survive reset without --all: %v", err)
	}
}

func TestDoctor_offline(t *testing.T) {
	out := run(t, t.TempDir(), "", "doctor")
	if !strings.Contains(out, "checkpoint      sqlite") || !strings.HasSuffix(strings.TrimSpace(out), "ok") {
		t.Fatalf("doctor: got %q", out)
	}
}

func TestStatus_notRunning(t *testing.T) {
	if out := run(t, t.TempDir(), "", "status"); strings.TrimSpace(out) != "postcraft server not running" {
		t.Fatalf("status: got %q", out)
	}
}

func TestServerURL(t *testing.T) {
	for addr, want := range map[string]string{
		":8080":          "http://127.0.0.1:8080",
		"0.0.0.0:9000":   "http://127.0.0.1:9000",
		"localhost:8080": "http://localhost:8080",
		"[::]:7000":      "http://127.0.0.1:7000",
		"unknown":        "http://unknown",
	} {
		if got := serverURL(addr); got != want {
			t.Errorf("serverURL(%q): got %q, want %q", addr, got, want)
		}
	}
}
