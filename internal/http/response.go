package http

import "time"

// Timings holds the phases of one request in milliseconds, named the way
// the summary reports them.
type Timings struct {
	// Duration is Sending + Waiting + Receiving
	Duration       float64 `json:"duration"`
	Blocked        float64 `json:"blocked"`
	Connecting     float64 `json:"connecting"`
	TLSHandshaking float64 `json:"tls_handshaking"`
	Sending        float64 `json:"sending"`
	Waiting        float64 `json:"waiting"`
	Receiving      float64 `json:"receiving"`
}

// Response represents an HTTP response
type Response struct {
	// Status is the HTTP status code, or 0 if the request failed
	Status int    `json:"status"`
	Proto  string `json:"proto,omitempty"`
	URL    string `json:"url"`
	Body   []byte `json:"-"`

	Timings Timings `json:"timings"`

	// Error describes a transport failure
	Error string `json:"error,omitempty"`

	BytesSent     int64 `json:"-"`
	BytesReceived int64 `json:"-"`
}

// Failed reports whether the request counts as failed: a transport error or
// a status outside 200-399.
func (r *Response) Failed() bool {
	return r.Error != "" || r.Status < 200 || r.Status >= 400
}

func millis(d time.Duration) float64 {
	if d < 0 {
		return 0
	}
	return float64(d) / float64(time.Millisecond)
}
