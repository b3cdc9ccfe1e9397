// Package script is the nginx load-test scenario: an open-model ramp that
// issues one GET per arrival against the nginx host, logs each response and
// renders the end-of-test summary.
package script

import (
	"time"

	"github.com/lokalise/nginx-loadtest/internal/config"
)

const (
	// ScenarioName is the name of the only scenario.
	ScenarioName = "open_model"

	// DefaultTarget is the URL every iteration requests.
	DefaultTarget = "http://nginx.dev.lokalise.cloud"
)

// DefaultOptions returns the scenario configuration: the arrival rate starts
// at 10/s, holds for 5s, ramps to 50/s over 2 minutes and back down to 10/s
// over 5s, using between 2 and 10 VUs.
func DefaultOptions() *config.Options {
	return &config.Options{
		Scenarios: map[string]*config.ScenarioConfig{
			ScenarioName: {
				Executor:        config.ExecutorRampingArrivalRate,
				StartRate:       10,
				TimeUnit:        config.Duration(time.Second),
				PreAllocatedVUs: 2,
				MaxVUs:          10,
				StartTime:       config.Duration(0),
				Stages: []config.StageConfig{
					{Target: 10, Duration: config.Duration(5 * time.Second)},
					{Target: 50, Duration: config.Duration(120 * time.Second)},
					{Target: 10, Duration: config.Duration(5 * time.Second)},
				},
			},
		},
	}
}
