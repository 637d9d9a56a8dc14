// Package main is the bagctl command itself.
package main

import (
	"context"

	"github.com/edaniels/golog"
	"go.viam.com/utils"
)

var logger = golog.NewDevelopmentLogger("bagctl")

func main() {
	utils.ContextualMain(mainWithArgs, logger)
}

func mainWithArgs(ctx context.Context, args []string, logger golog.Logger) error {
	return newApp(logger).RunContext(ctx, args)
}
