// Package main is the pgsctl entry point.
package main

import (
	"context"
	"os"

	"github.com/ubuntu/strictpgs/cmd/pgsctl/cli"
	"github.com/ubuntu/strictpgs/log"
)

func main() {
	a := cli.New()
	os.Exit(run(a))
}

type app interface {
	Run() error
	UsageError() bool
}

func run(a app) int {
	if err := a.Run(); err != nil {
		log.Error(context.Background(), err)

		if a.UsageError() {
			return 2
		}
		return 1
	}

	return 0
}
