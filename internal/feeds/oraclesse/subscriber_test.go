package oraclesse

import (
	"time"

	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
)

func TestHandleEvent_EmitsParsedTick(t *testing.T) {
	s := New("http://unused", "BTC", zerolog.Nop())
	s.handleEvent("65432.10")

	select {
	case tick := <-s.ticks:
		assert.Equal(t, "BTC", tick.Symbol)
		assert.Equal(t, "65432.1", tick.Price.String())
	case <-time.After(time.Second):
		t.Fatal("expected a tick to be emitted")
	}
}

func TestHandleEvent_SkipsMalformedPayload(t *testing.T) {
	s := New("http://unused", "BTC", zerolog.Nop())
	s.handleEvent("not-a-price")

	select {
	case <-s.ticks:
		t.Fatal("expected no tick for a malformed payload")
	case <-time.After(50 * time.Millisecond):
	}
}
