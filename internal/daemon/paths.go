package daemon

import (
	"path/filepath"

	"github.com/ankittk/postcraft/internal/config"
)

func pidPath(home string) string {
	return filepath.Join(config.StateDir(home), "server.pid")
}

func lockPath(home string) string {
	return filepath.Join(config.StateDir(home), "server.lock")
}

func addrPath(home string) string {
	return filepath.Join(config.StateDir(home), "server.addr")
}

func logPath(home string) string {
	return filepath.Join(config.StateDir(home), "server.log")
}
