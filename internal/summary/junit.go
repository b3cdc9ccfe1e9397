package summary

import (
	"encoding/xml"
	"fmt"
	"sort"
)

// JUnitTestSuites is the root element of a JUnit report.
type JUnitTestSuites struct {
	XMLName    xml.Name         `xml:"testsuites"`
	Tests      int              `xml:"tests,attr"`
	Failures   int              `xml:"failures,attr"`
	TestSuites []JUnitTestSuite `xml:"testsuite"`
}

// JUnitTestSuite is one suite: the thresholds of a run.
type JUnitTestSuite struct {
	Name      string          `xml:"name,attr"`
	Tests     int             `xml:"tests,attr"`
	Failures  int             `xml:"failures,attr"`
	Errors    int             `xml:"errors,attr"`
	Time      float64         `xml:"time,attr"`
	TestCases []JUnitTestCase `xml:"testcase"`
}

// JUnitTestCase is one threshold.
type JUnitTestCase struct {
	Name      string        `xml:"name,attr"`
	Classname string        `xml:"classname,attr"`
	Failure   *JUnitFailure `xml:"failure,omitempty"`
}

// JUnitFailure marks a crossed threshold.
type JUnitFailure struct {
	Message string `xml:"message,attr"`
	Type    string `xml:"type,attr"`
	Content string `xml:",chardata"`
}

// JUnitReport renders the thresholds in data as JUnit XML, one test case per
// threshold named "<metric> - <expression>", so CI systems can show which
// thresholds were crossed. Test cases are ordered by metric, then expression.
func JUnitReport(data *Data, suiteName string) (string, error) {
	if data == nil {
		return "", fmt.Errorf("summary data cannot be nil")
	}

	suite := JUnitTestSuite{
		Name:      suiteName,
		Time:      data.State.TestRunDurationMs / 1000,
		TestCases: []JUnitTestCase{},
	}

	names := make([]string, 0, len(data.Metrics))
	for name := range data.Metrics {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		m := data.Metrics[name]
		sources := make([]string, 0, len(m.Thresholds))
		for src := range m.Thresholds {
			sources = append(sources, src)
		}
		sort.Strings(sources)

		for _, src := range sources {
			tc := JUnitTestCase{
				Name:      name + " - " + src,
				Classname: suiteName,
			}
			if !m.Thresholds[src].OK {
				tc.Failure = &JUnitFailure{
					Message: "threshold crossed",
					Type:    "ThresholdFailure",
					Content: fmt.Sprintf("%s: %s", name, src),
				}
				suite.Failures++
			}
			suite.TestCases = append(suite.TestCases, tc)
		}
	}
	suite.Tests = len(suite.TestCases)

	report := JUnitTestSuites{
		Tests:      suite.Tests,
		Failures:   suite.Failures,
		TestSuites: []JUnitTestSuite{suite},
	}
	out, err := xml.MarshalIndent(report, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to marshal JUnit report: %w", err)
	}
	return xml.Header + string(out) + "\n", nil
}
