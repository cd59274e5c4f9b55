// Package main provides the MyTalk command line interface.
package main

import (
	"os"

	"github.com/mytalk-labs/mytalk/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		os.Exit(1)
	}
}
