package runner

import (
	"context"
	"fmt"
	"io"
	"sync"

	lhttp "github.com/lokalise/nginx-loadtest/internal/http"
)

// HTTPClient is the HTTP API available to an iteration.
type HTTPClient interface {
	Get(ctx context.Context, url string) (*lhttp.Response, error)
}

// VU is a virtual user: an execution slot that runs one iteration at a time.
//
// A VU is handed to Script.Default on every iteration. It carries the
// shared HTTP client and a console that keeps log lines whole when many VUs
// write at once.
type VU struct {
	id int

	http    HTTPClient
	console *Console

	// iterate runs one iteration of the script on this VU
	iterate func(ctx context.Context, vu *VU) error
}

// NewVU creates a VU outside of a scheduler, e.g. to call a script's
// Default directly.
func NewVU(id int, client HTTPClient, console *Console) *VU {
	return &VU{id: id, http: client, console: console}
}

// ID returns the VU's 1-based identifier.
func (vu *VU) ID() int {
	return vu.id
}

// HTTP returns the HTTP client.
func (vu *VU) HTTP() HTTPClient {
	return vu.http
}

// Log writes one line to the console.
func (vu *VU) Log(format string, args ...any) {
	if vu.console != nil {
		vu.console.Printf(format, args...)
	}
}

// RunIteration runs one iteration of the script.
func (vu *VU) RunIteration(ctx context.Context) error {
	if vu.iterate == nil {
		return fmt.Errorf("VU %d has no script", vu.id)
	}
	return vu.iterate(ctx, vu)
}

// Console writes whole lines to an io.Writer, one at a time.
type Console struct {
	mu sync.Mutex
	w  io.Writer
}

// NewConsole creates a console writing to w.
func NewConsole(w io.Writer) *Console {
	return &Console{w: w}
}

// Printf formats a line and writes it with a trailing newline.
func (c *Console) Printf(format string, args ...any) {
	line := fmt.Sprintf(format, args...)
	if len(line) == 0 || line[len(line)-1] != '\n' {
		line += "\n"
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	io.WriteString(c.w, line)
}
