// Command app runs the desktop shell against ./frontend on disk, for frontend development.
package main

import (
	"os"

	"vocal-splitter/internal/bootstrap"
	"vocal-splitter/internal/logging"
)

func main() {
	logger := logging.New("vocal-splitter-dev", "debug", os.Stderr)

	app, err := bootstrap.New()
	if err != nil {
		logger.Error("bootstrap app", "error", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		logger.Error("run app", "error", err)
		os.Exit(1)
	}
}
