// Package main is the entry point for the agentry CLI.
package main

import (
	"os"

	"github.com/loopwork/agentry/cmd/agentry/app"
	"github.com/loopwork/agentry/pkg/logger"
)

func main() {
	logger.Initialize()

	if err := app.NewRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}
