package summary

import (
	"encoding/json"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tidwall/gjson"
)

func TestGroupID(t *testing.T) {
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", GroupID(""))
	assert.Equal(t, GroupID(""), NewRootGroup().ID)
}

func TestData_JSONShape(t *testing.T) {
	raw, err := json.Marshal(sampleData())
	require.NoError(t, err)

	doc := gjson.ParseBytes(raw)
	assert.Equal(t, "d41d8cd98f00b204e9800998ecf8427e", doc.Get("root_group.id").String())
	assert.True(t, doc.Get("root_group.groups").IsArray())
	assert.Equal(t, "trend", doc.Get("metrics.http_req_duration.type").String())
	assert.Equal(t, "time", doc.Get("metrics.http_req_duration.contains").String())
	assert.Equal(t, 31.0, doc.Get(`metrics.http_req_duration.values.p\(95\)`).Float())
	assert.True(t, doc.Get(`metrics.http_req_duration.thresholds.p\(95\)\<500.ok`).Bool())
	assert.Equal(t, 130000.0, doc.Get("state.testRunDurationMs").Float())
	assert.Equal(t, "avg", doc.Get("options.summaryTrendStats.0").String())
}

func TestData_ThresholdsPassed(t *testing.T) {
	data := sampleData()
	assert.True(t, data.ThresholdsPassed())

	m := data.Metrics["http_reqs"]
	m.Thresholds = map[string]ThresholdResult{"count>5000": {OK: false}}
	data.Metrics["http_reqs"] = m
	assert.False(t, data.ThresholdsPassed())
}

func TestLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "summary.json")

	raw, err := json.Marshal(sampleData())
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(path, raw, 0o644))

	got, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, sampleData(), got)

	_, err = Load(filepath.Join(dir, "missing.json"))
	assert.ErrorContains(t, err, "failed to read summary")

	bad := filepath.Join(dir, "bad.json")
	require.NoError(t, os.WriteFile(bad, []byte("{"), 0o644))
	_, err = Load(bad)
	assert.ErrorContains(t, err, "failed to parse summary")
}
