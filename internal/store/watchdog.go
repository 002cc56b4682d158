package store

import (
	"os"
	"syscall"
	"time"

	"github.com/anchor/vaultaire/config"
	"github.com/anchor/vaultaire/internal/logging"
)

var watchdogLog = logging.Component("store")

// killProcess is swapped out by tests.
var killProcess = func() {
	syscall.Kill(os.Getpid(), syscall.SIGKILL)
}

// armWatchdog starts the lock watchdog. If the returned stop function
// is not called within config.LockTimeout, the process is killed: a
// lock held that long means the store is deadlocked, and serving under
// a wedged lock is worse than dying.
func armWatchdog(oid string) (stop func()) {
	t := time.AfterFunc(config.LockTimeout, func() {
		watchdogLog.Error("lock watchdog expired, killing process", "oid", oid)
		killProcess()
	})
	return func() { t.Stop() }
}
