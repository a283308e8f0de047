package main

import (
	"embed"
	"os"

	"vocal-splitter/internal/bootstrap"
	"vocal-splitter/internal/logging"
)

//go:embed frontend/index.html frontend/wailsjs
var appAssets embed.FS

func main() {
	logger := logging.New("vocal-splitter", "info", os.Stderr)

	app, err := bootstrap.NewWithAssets(appAssets)
	if err != nil {
		logger.Error("bootstrap app", "error", err)
		os.Exit(1)
	}

	if err := app.Run(); err != nil {
		logger.Error("run app", "error", err)
		os.Exit(1)
	}
}
