// Command separate splits one audio file into stems and cleans up the vocal stem.
//
//	separate <input> <output_dir>
package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/hashicorp/go-hclog"

	"vocal-splitter/internal/config"
	"vocal-splitter/internal/logging"
	"vocal-splitter/internal/separate"
)

const usage = "usage: separate <input> <output_dir>"

// pipelineRunner is the part of *separate.Pipeline the command needs.
type pipelineRunner interface {
	Run(ctx context.Context, req separate.Request) (separate.Result, error)
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	os.Exit(run(ctx, os.Args[1:], os.Stdout, os.Stderr, newPipeline))
}

// newPipeline builds the production pipeline from default settings.
func newPipeline(logger hclog.Logger) pipelineRunner {
	settings := config.DefaultSettings()
	separator := separate.NewSpleeterSeparator(settings.SeparatorPath, settings.Model, settings.ModelDir)
	return separate.NewPipeline(separator, settings.TargetSampleRate, logger)
}

func run(
	ctx context.Context,
	args []string,
	stdout, stderr io.Writer,
	build func(hclog.Logger) pipelineRunner,
) int {
	if len(args) != 2 {
		fmt.Fprintln(stderr, usage)
		return 1
	}
	inputPath, outputDir := args[0], args[1]

	info, err := os.Stat(inputPath)
	if err != nil || !info.Mode().IsRegular() {
		fmt.Fprintf(stdout, "Error: The file %s does not exist.\n", inputPath)
		return 1
	}

	logger := logging.New("separate", config.DefaultSettings().LogLevel, stdout)
	result, err := build(logger).Run(ctx, separate.Request{
		InputPath: inputPath,
		OutputDir: outputDir,
		OnStage: func(stage string) {
			logger.Info("stage", "name", stage)
		},
	})
	if err != nil {
		fmt.Fprintf(stdout, "Error: %v\n", err)
		return 1
	}

	fmt.Fprintf(stdout, "Audio separation complete. Output saved to folder: %s\n", result.VocalsPath)
	return 0
}
