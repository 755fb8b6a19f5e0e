package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
)

var (
	debugMode   = flag.Bool("d", false, "Enable debug mode")
	logFile     = flag.String("log-file", "", "Log file path (logs disabled by default)")
	configPath  = flag.String("config", "config.json", "Config file path (JSON, or TOML with a .toml extension)")
	version     = flag.Bool("version", false, "Print version and exit")
	listTools   = flag.String("list-tools", "", "Print tool descriptors as JSON and exit (mcp or openai)")
	printConfig = flag.String("print-config", "", "Print the config schema or an example config and exit (schema or example)")
	console     = flag.Bool("console", false, "Run an interactive console instead of serving stdio")
)

// Version is set with -ldflags at build time.
var Version = "dev"

func main() {
	flag.Parse()

	if *version {
		fmt.Printf("toolbridge %s\n", Version)
		return
	}
	if *printConfig != "" {
		if err := writeConfigDoc(os.Stdout, *printConfig); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	logger, closer, err := initLogger(*debugMode, *logFile)
	if err != nil {
		log.Fatalf("Failed to open log file: %v", err)
	}
	if closer != nil {
		defer closer.Close()
	}
	logger.Info().Str("version", Version).Msg("toolbridge starting")

	app, err := newApp(*configPath, logger)
	if err != nil {
		log.Fatalf("%v", err)
	}

	if *listTools != "" {
		if err := writeToolList(os.Stdout, app.registry, *listTools); err != nil {
			log.Fatalf("%v", err)
		}
		return
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if *console {
		err = app.runConsole(ctx, os.Stdin, os.Stdout)
	} else {
		err = app.serve(ctx, os.Stdin, os.Stdout, os.Stderr)
	}
	if err != nil {
		logger.Error().Err(err).Msg("toolbridge stopped with error")
		log.Fatalf("%v", err)
	}
	logger.Info().Msg("toolbridge stopped")
}
