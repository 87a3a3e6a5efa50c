package main

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/labstack/echo/v5"
	"github.com/labstack/echo/v5/middleware"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fsepack/internal/api"
	"github.com/samcharles93/fsepack/pkg/tcf"
)

func serveCmd() *cli.Command {
	var (
		containerPath string
		addr          string
		readTimeout   time.Duration
	)

	return &cli.Command{
		Name:  "serve",
		Usage: "Serve a read-only inspection API over a container",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "container",
				Aliases:     []string{"c"},
				Usage:       "path to .tcf file",
				Destination: &containerPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "addr",
				Usage:       "listen address",
				Value:       "127.0.0.1:8080",
				Destination: &addr,
			},
			&cli.DurationFlag{
				Name:        "read-timeout",
				Usage:       "read timeout",
				Value:       30 * time.Second,
				Destination: &readTimeout,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyServeConfig(c, LoadConfig(), &addr)
			log := newLogger()

			f, err := tcf.Open(containerPath)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: open container: %v", err), 1)
			}
			defer func() { _ = f.Close() }()

			server, err := api.NewServer(f, log)
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: build server: %v", err), 1)
			}

			e := echo.New()
			e.Use(middleware.RequestLogger())
			e.Use(middleware.Recover())
			server.Register(e)

			log.Info("starting server", "address", addr, "container", containerPath)
			sc := echo.StartConfig{
				Address: addr,
				BeforeServeFunc: func(srv *http.Server) error {
					srv.ReadHeaderTimeout = readTimeout
					return nil
				},
			}
			return sc.Start(ctx, e)
		},
	}
}
