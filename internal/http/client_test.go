package http

import (
	"context"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
)

type sampleRecorder struct {
	mu      sync.Mutex
	samples []metrics.HTTPSample
}

func (r *sampleRecorder) RecordHTTPRequest(s metrics.HTTPSample) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.samples = append(r.samples, s)
}

func (r *sampleRecorder) all() []metrics.HTTPSample {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]metrics.HTTPSample(nil), r.samples...)
}

func TestClient_Get(t *testing.T) {
	var requests []*http.Request
	var mu sync.Mutex
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		requests = append(requests, r)
		mu.Unlock()

		time.Sleep(20 * time.Millisecond)
		w.Header().Set("Content-Type", "text/html")
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("<h1>Welcome to nginx!</h1>"))
	}))
	defer server.Close()

	rec := &sampleRecorder{}
	client := NewClient(WithTimeout(5*time.Second), WithRecorder(rec))

	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Equal(t, http.StatusOK, resp.Status)
	assert.Equal(t, "HTTP/1.1", resp.Proto)
	assert.Equal(t, "<h1>Welcome to nginx!</h1>", string(resp.Body))
	assert.Empty(t, resp.Error)
	assert.False(t, resp.Failed())

	require.Len(t, requests, 1)
	assert.Equal(t, http.MethodGet, requests[0].Method)
	assert.Equal(t, "/", requests[0].URL.Path)
	assert.Empty(t, requests[0].URL.RawQuery)

	tm := resp.Timings
	assert.GreaterOrEqual(t, tm.Waiting, 15.0)
	assert.InDelta(t, tm.Sending+tm.Waiting+tm.Receiving, tm.Duration, 1e-9)
	assert.GreaterOrEqual(t, tm.Blocked, 0.0)
	assert.Equal(t, 0.0, tm.TLSHandshaking)

	samples := rec.all()
	require.Len(t, samples, 1)
	assert.Equal(t, 200, samples[0].Status)
	assert.False(t, samples[0].Failed)
	assert.Equal(t, tm.Duration, samples[0].Duration)
	assert.Greater(t, samples[0].BytesReceived, int64(len(resp.Body)))
	assert.Greater(t, samples[0].BytesSent, int64(0))
}

func TestClient_GetReusesConnection(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient()

	first, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	second, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)

	assert.Greater(t, first.Timings.Connecting, 0.0)
	assert.Equal(t, 0.0, second.Timings.Connecting)
}

func TestClient_GetFailedStatus(t *testing.T) {
	tests := []struct {
		status int
		failed bool
	}{
		{http.StatusOK, false},
		{http.StatusNoContent, false},
		{http.StatusNotModified, false},
		{http.StatusNotFound, true},
		{http.StatusBadGateway, true},
	}

	for _, tt := range tests {
		t.Run(http.StatusText(tt.status), func(t *testing.T) {
			server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
			}))
			defer server.Close()

			rec := &sampleRecorder{}
			resp, err := NewClient(WithRecorder(rec)).Get(context.Background(), server.URL)
			require.NoError(t, err)

			assert.Equal(t, tt.status, resp.Status)
			assert.Equal(t, tt.failed, resp.Failed())
			require.Len(t, rec.all(), 1)
			assert.Equal(t, tt.failed, rec.all()[0].Failed)
		})
	}
}

func TestClient_GetConnectionError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := server.URL
	server.Close()

	rec := &sampleRecorder{}
	resp, err := NewClient(WithRecorder(rec)).Get(context.Background(), url)
	require.Error(t, err)

	require.NotNil(t, resp)
	assert.Equal(t, 0, resp.Status)
	assert.NotEmpty(t, resp.Error)
	assert.True(t, resp.Failed())

	samples := rec.all()
	require.Len(t, samples, 1)
	assert.True(t, samples[0].Failed)
	assert.Equal(t, 0, samples[0].Status)
}

func TestClient_GetTimeout(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	rec := &sampleRecorder{}
	client := NewClient(WithTimeout(50*time.Millisecond), WithRecorder(rec))

	resp, err := client.Get(context.Background(), server.URL)
	require.Error(t, err)
	assert.Equal(t, 0, resp.Status)
	assert.Len(t, rec.all(), 1)
}

func TestClient_GetCancelledNotRecorded(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(time.Second):
		}
	}))
	defer server.Close()

	rec := &sampleRecorder{}
	client := NewClient(WithRecorder(rec))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	_, err := client.Get(ctx, server.URL)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Empty(t, rec.all())
}

func TestClient_GetInvalidURL(t *testing.T) {
	rec := &sampleRecorder{}
	resp, err := NewClient(WithRecorder(rec)).Get(context.Background(), "http://[::1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "failed to build request")
	assert.NotEmpty(t, resp.Error)
	assert.Empty(t, rec.all())
}

func TestClient_TLS(t *testing.T) {
	server := httptest.NewTLSServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("secure"))
	}))
	defer server.Close()

	_, err := NewClient().Get(context.Background(), server.URL)
	require.Error(t, err)

	resp, err := NewClient(WithInsecureSkipVerify(true)).Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, "secure", string(resp.Body))
	assert.Greater(t, resp.Timings.TLSHandshaking, 0.0)
}

func TestClient_WithTransport(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("ok"))
	}))
	defer server.Close()

	client := NewClient(WithTransport(server.Client().Transport), WithMaxIdleConnsPerHost(4))
	resp, err := client.Get(context.Background(), server.URL)
	require.NoError(t, err)
	assert.Equal(t, 200, resp.Status)
	client.CloseIdleConnections()
}
