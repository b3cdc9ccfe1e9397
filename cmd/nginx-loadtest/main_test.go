package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMain_Version(t *testing.T) {
	args := os.Args
	t.Cleanup(func() { os.Args = args })

	os.Args = []string{"nginx-loadtest", "--version"}
	assert.Equal(t, 0, Main())

	os.Args = []string{"nginx-loadtest", "validate", "/does/not/exist.yaml"}
	assert.Equal(t, 1, Main())
}
