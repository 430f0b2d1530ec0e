package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/fatih/color"
	"github.com/oarkflow/log"
	"github.com/urfave/cli/v2"

	"github.com/oarkflow/calc/interpreter"
	"github.com/oarkflow/calc/pkg/config"
	"github.com/oarkflow/calc/pkg/server"
	"github.com/oarkflow/calc/pkg/storage"
	"github.com/oarkflow/calc/pkg/utils/fileutil"
)

var version = "0.1.0"

func main() {
	app := &cli.App{
		Name:      "calc",
		Usage:     "evaluate calc programs from a file or an interactive prompt",
		ArgsUsage: "[FILE]",
		Version:   version,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "Path to a configuration file (YAML, JSON or BCL)",
				EnvVars: []string{"CALC_CONFIG"},
			},
			&cli.BoolFlag{
				Name:  "no-store",
				Usage: "Disable workspace storage and run history",
			},
		},
		Action: run,
		Commands: []*cli.Command{
			{
				Name:  "serve",
				Usage: "Start the HTTP evaluation API",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "addr",
						Usage: "Listen address, overrides server.address",
					},
					&cli.BoolFlag{
						Name:  "access-log",
						Usage: "Log every request",
					},
				},
				Action: serve,
			},
		},
	}
	if err := app.Run(os.Args); err != nil {
		color.New(color.FgRed).Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String("config")
	if path == "" {
		return config.Default(), nil
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config %s: %w", path, err)
	}
	return cfg, nil
}

func openStore(c *cli.Context, cfg *config.Config, logger *log.Logger) *storage.Store {
	if c.Bool("no-store") || cfg.Storage.Driver == "" {
		return nil
	}
	store, err := storage.New(storage.Config{Driver: cfg.Storage.Driver, DSN: cfg.Storage.DSN})
	if err != nil {
		logger.Warn().Err(err).Str("driver", cfg.Storage.Driver).Msg("storage unavailable, continuing without it")
		return nil
	}
	return store
}

func run(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	if c.NArg() > 1 {
		return cli.Exit("expected at most one source file", 2)
	}
	if c.NArg() == 1 {
		return interpreter.ExecFile(c.Args().First(), cfg, os.Stdout)
	}

	logger := cfg.Logger()
	opts := []interpreter.Option{interpreter.WithLogger(logger)}
	if store := openStore(c, cfg, logger); store != nil {
		defer store.Close()
		opts = append(opts, interpreter.WithStore(store))
	}
	if cfg.Transcript != "" {
		tr, err := fileutil.OpenTranscript(cfg.Transcript)
		if err != nil {
			return fmt.Errorf("open transcript: %w", err)
		}
		defer tr.Close()
		opts = append(opts, interpreter.WithTranscript(tr))
	}

	ctx, stop := signal.NotifyContext(c.Context, syscall.SIGTERM)
	defer stop()
	fmt.Printf("calc %s, type :help for commands\n", version)
	return interpreter.NewSession(cfg, opts...).REPL(ctx)
}

func serve(c *cli.Context) error {
	cfg, err := loadConfig(c)
	if err != nil {
		return err
	}
	addr := cfg.Server.Address
	if c.String("addr") != "" {
		addr = c.String("addr")
	}
	logger := cfg.Logger()
	opts := []server.Option{server.WithLogger(logger)}
	if store := openStore(c, cfg, logger); store != nil {
		defer store.Close()
		opts = append(opts, server.WithStore(store))
	}
	srv, err := server.NewServer(server.Config{Version: version, AccessLog: c.Bool("access-log")}, cfg, opts...)
	if err != nil {
		return err
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	return srv.Start(ctx, addr)
}
