package safety

import (
	"sync"
	"syscall"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestKillSwitch_ClampsGracefulToForcefulCeiling(t *testing.T) {
	k := NewKillSwitch(10*time.Minute, zerolog.Nop())
	assert.Equal(t, forcefulCeiling, k.graceful)
}

func TestKillSwitch_Trigger_ReturnsWithoutEscalatingWhenDoneClosesInTime(t *testing.T) {
	k := NewKillSwitch(200*time.Millisecond, zerolog.Nop())
	var signals []syscall.Signal
	var mu sync.Mutex
	k.signal = func(pid int, sig syscall.Signal) error {
		mu.Lock()
		defer mu.Unlock()
		signals = append(signals, sig)
		return nil
	}
	exited := false
	k.exit = func(code int) { exited = true }

	done := make(chan struct{})
	close(done)

	k.Trigger(done)

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, signals, 1)
	assert.Equal(t, syscall.SIGTERM, signals[0])
	assert.False(t, exited)
}

func TestKillSwitch_Trigger_EscalatesToSIGKILLWithinWallClockBound(t *testing.T) {
	k := NewKillSwitch(30*time.Millisecond, zerolog.Nop())
	var signals []syscall.Signal
	var mu sync.Mutex
	k.signal = func(pid int, sig syscall.Signal) error {
		mu.Lock()
		defer mu.Unlock()
		signals = append(signals, sig)
		return nil
	}
	exitCode := -1
	k.exit = func(code int) { exitCode = code }

	start := time.Now()
	k.Trigger(make(chan struct{})) // never closes: forces escalation
	elapsed := time.Since(start)

	assert.Less(t, elapsed, forcefulCeiling+time.Second, "trigger must stay within the bounded ceiling")

	mu.Lock()
	defer mu.Unlock()
	require.Len(t, signals, 2)
	assert.Equal(t, syscall.SIGTERM, signals[0])
	assert.Equal(t, syscall.SIGKILL, signals[1])
	assert.Equal(t, 1, exitCode)
}
