// Command trigo loads RDF data into a quad store and runs SPARQL queries
// against it.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	sperrors "github.com/aleksaelezovic/trigoql/pkg/errors"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		stop()
		os.Exit(exitCode(err))
	}
}

// exitCode is 2 for input the user has to correct (bad flags, syntax,
// configuration values) and 1 for everything else.
func exitCode(err error) int {
	if sperrors.IsInvalidInput(err) {
		return 2
	}
	return 1
}
