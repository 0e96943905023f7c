package main

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestMainDoesNotExitOnHelp(t *testing.T) {
	oldArgs := os.Args
	os.Args = []string{"sentry", "--help"}
	defer func() { os.Args = oldArgs }()

	oldOsExit := osExit
	exited := false
	osExit = func(code int) { exited = true }
	defer func() { osExit = oldOsExit }()

	oldStdout := os.Stdout
	_, w, _ := os.Pipe()
	os.Stdout = w
	defer func() { os.Stdout = oldStdout; w.Close() }()

	main()

	assert.False(t, exited, "--help should not trigger a non-zero exit")
}
