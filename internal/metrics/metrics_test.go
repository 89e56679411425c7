package metrics

import (
	"context"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rafabd1/therminal/internal/buffer"
	"github.com/rafabd1/therminal/internal/terminal"
)

var _ terminal.Observer = (*Observer)(nil)

func TestObserverCounts(t *testing.T) {
	c := New()
	o := c.Observer()

	o.BytesRead(10)
	o.BytesRead(5)
	o.BytesWritten(3)
	o.InputEvicted(2)
	o.WorkerExited(terminal.ExitEOF)
	o.WorkerExited(terminal.ExitEOF)
	o.WorkerExited(terminal.ExitStopped)

	assert.Equal(t, 15.0, testutil.ToFloat64(c.BytesRead))
	assert.Equal(t, 3.0, testutil.ToFloat64(c.BytesWritten))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.InputEvicted))
	assert.Equal(t, 2.0, testutil.ToFloat64(c.WorkerExits.WithLabelValues(terminal.ExitEOF)))
	assert.Equal(t, 1.0, testutil.ToFloat64(c.WorkerExits.WithLabelValues(terminal.ExitStopped)))
}

func TestHandlerExposesBuffers(t *testing.T) {
	c := New()
	in := buffer.NewInputRing(16)
	out := buffer.NewOutputChannel(32)
	c.WatchBuffers(in, out)

	in.Write([]byte("abc"))
	_, err := out.Write([]byte("0123456789"))
	require.NoError(t, err)

	rec := httptest.NewRecorder()
	c.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, "therminal_input_queued_bytes 3")
	assert.Contains(t, body, "therminal_input_capacity_bytes 16")
	assert.Contains(t, body, "therminal_output_available_bytes 22")
	assert.Contains(t, body, "go_goroutines")
}

func TestServeStopsOnCancel(t *testing.T) {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)
	addr := l.Addr().String()
	require.NoError(t, l.Close())

	c := New()
	ctx, cancel := context.WithCancel(context.Background())
	errCh := make(chan error, 1)
	go func() { errCh <- c.Serve(ctx, addr, nil) }()

	require.Eventually(t, func() bool {
		resp, err := http.Get("http://" + addr + "/metrics")
		if err != nil {
			return false
		}
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return resp.StatusCode == http.StatusOK && len(body) > 0
	}, 2*time.Second, 20*time.Millisecond)

	cancel()
	select {
	case err := <-errCh:
		assert.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("server did not stop")
	}
}

func TestServeReportsListenError(t *testing.T) {
	err := New().Serve(context.Background(), "256.0.0.1:bad", nil)
	assert.Error(t, err)
}
