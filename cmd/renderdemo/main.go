package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/joeycumines/renderdemo/internal/command"
	"github.com/joeycumines/renderdemo/internal/config"
)

const version = "0.1.0"

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	code := run(ctx, os.Args[1:], os.Stdin, os.Stdout, os.Stderr)
	stop()
	os.Exit(code)
}

func run(ctx context.Context, args []string, stdin io.Reader, stdout, stderr io.Writer) int {
	configPath, _ := config.GetConfigPath()

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		// If config doesn't exist, create a new empty one
		cfg = config.NewConfig()
	}

	registry := command.NewRegistry()
	registry.Register(command.NewHelpCommand(registry))
	registry.Register(command.NewVersionCommand(version))
	registry.Register(command.NewConfigCommand(cfg, configPath))
	registry.Register(command.NewInitCommand(configPath))
	render := command.NewRenderCommand(ctx, cfg)
	render.Stdin = stdin
	registry.Register(render)
	registry.Register(command.NewCleanCommand(ctx, cfg))
	registry.Register(command.NewHistoryCommand(cfg))

	if err := registry.Execute(args, stdout, stderr); err != nil {
		var ec command.ExitCoder
		if errors.As(err, &ec) {
			return ec.ExitCode()
		}
		_, _ = fmt.Fprintf(stderr, "Error: %v\n", err)
		return 2
	}
	return 0
}
