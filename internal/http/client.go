// Package http provides the HTTP client VUs use to issue requests. Each
// request is traced with net/http/httptrace and its phases are reported to a
// Recorder as http_req_* samples.
package http

import (
	"context"
	"crypto/tls"
	"fmt"
	"io"
	"net/http"
	"net/http/httptrace"
	"sync"
	"time"

	"github.com/lokalise/nginx-loadtest/internal/runner/metrics"
)

// Recorder receives one sample per completed request.
type Recorder interface {
	RecordHTTPRequest(s metrics.HTTPSample)
}

// Client is an HTTP client that measures request phases.
type Client struct {
	httpClient *http.Client
	transport  *http.Transport
	recorder   Recorder
}

// ClientOption is a function that configures a Client
type ClientOption func(*Client)

// NewClient creates a new HTTP client with the given options
func NewClient(options ...ClientOption) *Client {
	transport := &http.Transport{
		Proxy:               http.ProxyFromEnvironment,
		MaxIdleConns:        1000,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: 10 * time.Second,
	}

	client := &Client{
		httpClient: &http.Client{
			Transport: transport,
			Timeout:   60 * time.Second,
		},
		transport: transport,
	}

	for _, option := range options {
		option(client)
	}

	return client
}

// WithTimeout sets the per-request timeout
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		if timeout > 0 {
			c.httpClient.Timeout = timeout
		}
	}
}

// WithMaxIdleConnsPerHost limits keep-alive connections kept per host
func WithMaxIdleConnsPerHost(n int) ClientOption {
	return func(c *Client) {
		if c.transport != nil && n > 0 {
			c.transport.MaxIdleConnsPerHost = n
		}
	}
}

// WithInsecureSkipVerify disables TLS certificate verification
func WithInsecureSkipVerify(skip bool) ClientOption {
	return func(c *Client) {
		if c.transport == nil || !skip {
			return
		}
		if c.transport.TLSClientConfig == nil {
			c.transport.TLSClientConfig = &tls.Config{}
		}
		c.transport.TLSClientConfig.InsecureSkipVerify = true
	}
}

// WithTransport replaces the round tripper. Transport options given after
// this one have no effect unless rt is an *http.Transport.
func WithTransport(rt http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.httpClient.Transport = rt
		c.transport, _ = rt.(*http.Transport)
	}
}

// WithRecorder sets where request samples are reported
func WithRecorder(r Recorder) ClientOption {
	return func(c *Client) {
		c.recorder = r
	}
}

// Get issues a GET request and reads the whole body.
//
// The returned Response is never nil. On a transport failure its Status is
// 0, Error is set and the error is also returned. Every request that was
// attempted is reported to the recorder unless ctx was cancelled while it
// was in flight.
func (c *Client) Get(ctx context.Context, url string) (*Response, error) {
	resp := &Response{URL: url}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		resp.Error = err.Error()
		return resp, fmt.Errorf("failed to build request: %w", err)
	}

	tr := &tracer{start: time.Now()}
	req = req.WithContext(httptrace.WithClientTrace(req.Context(), tr.clientTrace()))

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		tr.apply(resp, time.Now())
		resp.Error = err.Error()
		if tr.sent() {
			resp.BytesSent = requestSize(req)
		}
		c.record(ctx, resp)
		return resp, err
	}
	defer httpResp.Body.Close()

	body, readErr := io.ReadAll(httpResp.Body)
	end := time.Now()

	resp.Status = httpResp.StatusCode
	resp.Proto = httpResp.Proto
	resp.Body = body
	if httpResp.Request != nil && httpResp.Request.URL != nil {
		resp.URL = httpResp.Request.URL.String()
	}
	resp.BytesSent = requestSize(req)
	resp.BytesReceived = responseSize(httpResp) + int64(len(body))
	tr.apply(resp, end)

	if readErr != nil {
		resp.Error = readErr.Error()
		c.record(ctx, resp)
		return resp, fmt.Errorf("failed to read response body: %w", readErr)
	}

	c.record(ctx, resp)
	return resp, nil
}

// CloseIdleConnections closes keep-alive connections not in use.
func (c *Client) CloseIdleConnections() {
	c.httpClient.CloseIdleConnections()
}

func (c *Client) record(ctx context.Context, resp *Response) {
	if c.recorder == nil || ctx.Err() != nil {
		return
	}
	c.recorder.RecordHTTPRequest(metrics.HTTPSample{
		Status:         resp.Status,
		Failed:         resp.Failed(),
		Duration:       resp.Timings.Duration,
		Blocked:        resp.Timings.Blocked,
		Connecting:     resp.Timings.Connecting,
		TLSHandshaking: resp.Timings.TLSHandshaking,
		Sending:        resp.Timings.Sending,
		Waiting:        resp.Timings.Waiting,
		Receiving:      resp.Timings.Receiving,
		BytesReceived:  resp.BytesReceived,
		BytesSent:      resp.BytesSent,
	})
}

// tracer collects httptrace timestamps. Dial callbacks may run on other
// goroutines.
type tracer struct {
	mu sync.Mutex

	start        time.Time
	gotConn      time.Time
	connectStart time.Time
	connectDone  time.Time
	tlsStart     time.Time
	tlsDone      time.Time
	wroteRequest time.Time
	firstByte    time.Time
}

func (t *tracer) mark(field *time.Time) {
	now := time.Now()
	t.mu.Lock()
	*field = now
	t.mu.Unlock()
}

func (t *tracer) clientTrace() *httptrace.ClientTrace {
	return &httptrace.ClientTrace{
		GotConn: func(httptrace.GotConnInfo) {
			t.mark(&t.gotConn)
		},
		ConnectStart: func(string, string) {
			t.mu.Lock()
			// Happy eyeballs may dial more than once; keep the first.
			if t.connectStart.IsZero() {
				t.connectStart = time.Now()
			}
			t.mu.Unlock()
		},
		ConnectDone: func(_, _ string, err error) {
			if err == nil {
				t.mark(&t.connectDone)
			}
		},
		TLSHandshakeStart: func() {
			t.mark(&t.tlsStart)
		},
		TLSHandshakeDone: func(_ tls.ConnectionState, err error) {
			if err == nil {
				t.mark(&t.tlsDone)
			}
		},
		WroteRequest: func(httptrace.WroteRequestInfo) {
			t.mark(&t.wroteRequest)
		},
		GotFirstResponseByte: func() {
			t.mark(&t.firstByte)
		},
	}
}

func (t *tracer) sent() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return !t.wroteRequest.IsZero()
}

// apply fills resp.Timings from the collected timestamps. Phases that never
// happened are 0.
func (t *tracer) apply(resp *Response, end time.Time) {
	t.mu.Lock()
	defer t.mu.Unlock()

	var tm Timings

	switch {
	case !t.connectStart.IsZero():
		tm.Blocked = millis(t.connectStart.Sub(t.start))
	case !t.gotConn.IsZero():
		tm.Blocked = millis(t.gotConn.Sub(t.start))
	}
	if !t.connectStart.IsZero() && !t.connectDone.IsZero() {
		tm.Connecting = millis(t.connectDone.Sub(t.connectStart))
	}
	if !t.tlsStart.IsZero() && !t.tlsDone.IsZero() {
		tm.TLSHandshaking = millis(t.tlsDone.Sub(t.tlsStart))
	}
	if !t.gotConn.IsZero() && !t.wroteRequest.IsZero() {
		tm.Sending = millis(t.wroteRequest.Sub(t.gotConn))
	}
	if !t.wroteRequest.IsZero() && !t.firstByte.IsZero() {
		tm.Waiting = millis(t.firstByte.Sub(t.wroteRequest))
	}
	if !t.firstByte.IsZero() {
		tm.Receiving = millis(end.Sub(t.firstByte))
	}
	tm.Duration = tm.Sending + tm.Waiting + tm.Receiving

	resp.Timings = tm
}

type byteCounter int64

func (c *byteCounter) Write(p []byte) (int, error) {
	*c += byteCounter(len(p))
	return len(p), nil
}

// requestSize approximates the bytes written for a body-less HTTP/1.1 request.
func requestSize(req *http.Request) int64 {
	var c byteCounter
	fmt.Fprintf(&c, "%s %s HTTP/1.1\r\nHost: %s\r\n", req.Method, req.URL.RequestURI(), req.URL.Host)
	_ = req.Header.Write(&c)
	fmt.Fprint(&c, "\r\n")
	return int64(c)
}

// responseSize approximates the status line and header bytes of resp.
func responseSize(resp *http.Response) int64 {
	var c byteCounter
	fmt.Fprintf(&c, "%s %s\r\n", resp.Proto, resp.Status)
	_ = resp.Header.Write(&c)
	fmt.Fprint(&c, "\r\n")
	return int64(c)
}
