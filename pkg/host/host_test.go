package host

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cuemby/cronfleet/pkg/amount"
	"github.com/cuemby/cronfleet/pkg/types"
)

func TestSystemClockIsMonotoneIncreasing(t *testing.T) {
	c := SystemClock{}
	a := c.NowNanos()
	time.Sleep(time.Millisecond)
	b := c.NowNanos()
	assert.Greater(t, b, a)
}

func TestThenAlwaysRunsCallbackEvenOnCreateError(t *testing.T) {
	failing := func(ctx context.Context, target types.Principal, method string, payload []byte, attached amount.Amount, gas uint64) error {
		return errors.New("target unreachable")
	}
	caller := NewOutboundCaller(failing, 2)

	_, err := caller.Create(context.Background(), "contract", "run", nil, amount.Zero, 10)
	require.Error(t, err)

	var ran atomic.Bool
	done := make(chan struct{})
	caller.Then(context.Background(), Handle("h"), func(ctx context.Context) error {
		ran.Store(true)
		close(done)
		return nil
	})

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("callback did not run within timeout")
	}
	assert.True(t, ran.Load())
}

func TestHTTPInvokerPostsWebhookBody(t *testing.T) {
	var gotMethod string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod = r.Method
		w.WriteHeader(http.StatusOK)
	}))
	defer server.Close()

	invoke := NewHTTPInvoker(nil)
	err := invoke(context.Background(), types.Principal(server.URL), "increment", []byte("args"), amount.FromUint64(5), 100)
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, gotMethod)
}

func TestHTTPInvokerErrorsOnNon2xx(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer server.Close()

	invoke := NewHTTPInvoker(nil)
	err := invoke(context.Background(), types.Principal(server.URL), "increment", nil, amount.Zero, 1)
	assert.Error(t, err)
}
