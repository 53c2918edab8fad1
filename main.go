package main

import (
	"context"
	_ "embed"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/cockroachdb/errors"

	"github.com/nathanaelphilip/gh-commit-ai/internal/cli"
)

//go:embed .gh-commit-ai.example.yml
var exampleConfig []byte

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	app := cli.NewApp(exampleConfig)
	err := cli.Execute(ctx, app)
	_ = app.Logger().Sync()
	if err != nil {
		fail(err)
	}
}

func fail(err error) {
	fmt.Fprintln(os.Stderr, "❌ "+err.Error())
	for _, hint := range errors.GetAllHints(err) {
		for _, line := range strings.Split(hint, "\n") {
			fmt.Fprintln(os.Stderr, "   "+line)
		}
	}
	os.Exit(1)
}
