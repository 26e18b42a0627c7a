package observability

import (
	"bytes"
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShutdownManager_RunsFuncsInReverseOrder(t *testing.T) {
	var buf bytes.Buffer
	sm := NewShutdownManager(NewLogger(InfoLevel, &buf), time.Second)

	var order []int
	for i := 0; i < 3; i++ {
		i := i
		sm.RegisterShutdownFunc(func(context.Context) error {
			order = append(order, i)
			return nil
		})
	}
	sm.RegisterShutdownFunc(nil)

	require.NoError(t, sm.Shutdown(context.Background()))
	assert.Equal(t, []int{2, 1, 0}, order)
	assert.Contains(t, buf.String(), "Graceful shutdown complete")
}

func TestShutdownManager_CollectsErrors(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	errA := errors.New("a failed")
	errB := errors.New("b failed")
	ran := 0
	sm.RegisterShutdownFunc(func(context.Context) error { ran++; return errA })
	sm.RegisterShutdownFunc(func(context.Context) error { ran++; return nil })
	sm.RegisterShutdownFunc(func(context.Context) error { ran++; return errB })

	err := sm.Shutdown(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, errA)
	assert.ErrorIs(t, err, errB)
	assert.Equal(t, 3, ran)
}

func TestShutdownManager_DrainsServers(t *testing.T) {
	ts := httptest.NewUnstartedServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	ts.Start()
	defer ts.Close()

	sm := NewShutdownManager(nil, time.Second, ts.Config)
	require.NoError(t, sm.Shutdown(context.Background()))

	_, err := http.Get(ts.URL)
	assert.Error(t, err)
}

func TestShutdownManager_WaitForShutdownOnContextCancel(t *testing.T) {
	sm := NewShutdownManager(NewLogger(InfoLevel, &bytes.Buffer{}), time.Second)

	called := make(chan struct{})
	sm.RegisterShutdownFunc(func(context.Context) error {
		close(called)
		return nil
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- sm.WaitForShutdown(ctx) }()

	cancel()

	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("WaitForShutdown did not return")
	}
	<-called
}

func TestNewShutdownManager_DefaultTimeout(t *testing.T) {
	sm := NewShutdownManager(nil, 0)
	assert.Equal(t, 30*time.Second, sm.shutdownTimeout)
	assert.NotNil(t, sm.logger)
}
