package oraclepush

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubscriber_PollEmitsTick(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"65000.50"}`))
	}))
	defer srv.Close()

	s := New(srv.URL, "BTC", 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.poll(context.Background()))

	select {
	case tick := <-s.ticks:
		assert.Equal(t, "BTC", tick.Symbol)
		assert.Equal(t, "65000.5", tick.Price.String())
	case <-time.After(time.Second):
		t.Fatal("expected a tick to be emitted")
	}
}

func TestSubscriber_PollReturnsErrorOnNonOKStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	s := New(srv.URL, "BTC", 10*time.Millisecond, zerolog.Nop())
	err := s.poll(context.Background())
	require.Error(t, err)
}

func TestSubscriber_PollSkipsMalformedPriceWithoutError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"price":"not-a-number"}`))
	}))
	defer srv.Close()

	s := New(srv.URL, "BTC", 10*time.Millisecond, zerolog.Nop())
	require.NoError(t, s.poll(context.Background()))
}
