package safety

import (
	"os"
	"syscall"
	"time"

	"github.com/rs/zerolog"
)

// forcefulCeiling is the hard wall-clock bound from Trigger to process exit
// (spec.md §8: "process is gone by t0+graceful+forceful_ceiling<=5000ms").
const forcefulCeiling = 5 * time.Second

// KillSwitch terminates this process: SIGTERM first so the normal
// signal.Notify shutdown path in cmd/server/main.go can run its graceful
// sequence (cancel contexts, flush the snapshot, close the database), then
// SIGKILL if that sequence does not finish within the bounded window.
//
// signal and exit are overridden in tests so Trigger can be exercised
// without terminating the test binary.
type KillSwitch struct {
	pid      int
	graceful time.Duration
	log      zerolog.Logger

	signal func(pid int, sig syscall.Signal) error
	exit   func(code int)
}

// NewKillSwitch builds a KillSwitch targeting the current process. graceful
// is clamped to forcefulCeiling so Trigger can never overrun the §8 bound.
func NewKillSwitch(graceful time.Duration, log zerolog.Logger) *KillSwitch {
	if graceful > forcefulCeiling {
		graceful = forcefulCeiling
	}
	if graceful < 0 {
		graceful = 0
	}
	return &KillSwitch{
		pid:      os.Getpid(),
		graceful: graceful,
		log:      log.With().Str("component", "kill_switch").Logger(),
		signal:   syscall.Kill,
		exit:     os.Exit,
	}
}

// Trigger sends SIGTERM and waits up to k.graceful for done to close (the
// caller's graceful-shutdown sequence signals completion by closing done).
// If the window elapses first, it escalates to SIGKILL and the process ends
// immediately. Trigger blocks until either done closes or the process is
// terminating.
func (k *KillSwitch) Trigger(done <-chan struct{}) {
	k.log.Warn().Msg("kill switch tripped: sending SIGTERM")

	if err := k.signal(k.pid, syscall.SIGTERM); err != nil {
		k.log.Error().Err(err).Msg("failed to send SIGTERM, forcing exit")
		k.exit(1)
		return
	}

	select {
	case <-done:
		k.log.Info().Msg("graceful shutdown completed within bound")
		return
	case <-time.After(k.graceful):
	}

	k.log.Warn().Dur("graceful", k.graceful).Msg("graceful timeout exceeded, escalating to SIGKILL")
	if err := k.signal(k.pid, syscall.SIGKILL); err != nil {
		k.log.Error().Err(err).Msg("failed to send SIGKILL")
	}
	k.exit(1)
}
