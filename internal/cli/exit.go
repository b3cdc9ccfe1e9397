package cli

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/lokalise/nginx-loadtest/internal/summary"
)

// Process exit codes.
const (
	ExitOK               = 0
	ExitFailure          = 1
	ExitThresholdsFailed = 99
	ExitAborted          = 105
)

// ExitError is an error that ends the process with a specific exit code.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	return e.Err.Error()
}

func (e *ExitError) Unwrap() error {
	return e.Err
}

// ExitCode returns the exit code for err: 0 for nil, the code of an
// ExitError anywhere in the chain, and 1 otherwise.
func ExitCode(err error) int {
	if err == nil {
		return ExitOK
	}
	var exitErr *ExitError
	if errors.As(err, &exitErr) {
		return exitErr.Code
	}
	return ExitFailure
}

// thresholdsError reports every metric with a failed threshold.
func thresholdsError(data *summary.Data) error {
	var crossed []string
	for name, m := range data.Metrics {
		for _, res := range m.Thresholds {
			if !res.OK {
				crossed = append(crossed, "'"+name+"'")
				break
			}
		}
	}
	sort.Strings(crossed)

	return &ExitError{
		Code: ExitThresholdsFailed,
		Err:  fmt.Errorf("thresholds on metrics %s have been crossed", strings.Join(crossed, ", ")),
	}
}
