package script

import (
	"context"
	"fmt"
	"net/url"

	"github.com/lokalise/nginx-loadtest/internal/runner"
	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// Default runs one iteration: a single GET to the target, then one log line:
//
//	Response[200]: 12.5ms
//
// Failed requests are logged the same way with status 0; they are already
// counted in http_req_failed by the client. An iteration cut short by ctx
// logs nothing and returns ctx's error.
func (s *Script) Default(ctx context.Context, vu *runner.VU) error {
	u, err := url.Parse(s.target)
	if err != nil {
		return fmt.Errorf("invalid target %q: %w", s.target, err)
	}

	res, _ := vu.HTTP().Get(ctx, u.String())
	if err := ctx.Err(); err != nil {
		return err
	}

	status, duration := 0, 0.0
	if res != nil {
		status, duration = res.Status, res.Timings.Duration
	}
	vu.Log("Response[%d]: %sms", status, summary.FormatNumber(duration))
	return nil
}
