package main

import (
	"fmt"
	"os"

	"github.com/solaudit/sentry/cmd"
)

// osExit is a var so tests can intercept process exit.
var osExit = os.Exit

func main() {
	if err := cmd.Execute(); err != nil {
		fmt.Println(err)
		osExit(1)
	}
}
