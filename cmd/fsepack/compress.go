package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/urfave/cli/v3"

	"github.com/samcharles93/fsepack/internal/logger"
	"github.com/samcharles93/fsepack/internal/squeeze"
)

// compressReport is the JSON document written by --report.
type compressReport struct {
	RunID     string                `json:"run_id"`
	CreatedAt time.Time             `json:"created_at"`
	Input     string                `json:"input"`
	Output    string                `json:"output"`
	Stats     *squeeze.RewriteStats `json:"stats"`
}

func compressCmd() *cli.Command {
	var (
		inputPath      string
		outputPath     string
		minTensorBytes int64
		skip           []string
		reportPath     string
	)

	return &cli.Command{
		Name:  "compress",
		Usage: "Rewrite a container with eligible tensors entropy-coded",
		Flags: append(loggingFlags(),
			&cli.StringFlag{
				Name:        "input",
				Aliases:     []string{"i"},
				Usage:       "path to input .tcf file",
				Destination: &inputPath,
				Required:    true,
			},
			&cli.StringFlag{
				Name:        "output",
				Aliases:     []string{"o"},
				Usage:       "path to output .tcf file",
				Destination: &outputPath,
				Required:    true,
			},
			&cli.Int64Flag{
				Name:        "min-tensor-bytes",
				Usage:       "skip tensors smaller than this many bytes",
				Value:       squeeze.DefaultMinTensorBytes,
				Destination: &minTensorBytes,
			},
			&cli.StringSliceFlag{
				Name:        "skip",
				Usage:       "tensor name to keep raw (repeatable)",
				Destination: &skip,
			},
			&cli.StringFlag{
				Name:        "report",
				Usage:       "write a JSON compression report to this path",
				Destination: &reportPath,
			},
		),
		Action: func(ctx context.Context, c *cli.Command) error {
			applyCompressConfig(c, LoadConfig(), &minTensorBytes, &skip)
			log := newLogger()
			ctx = logger.WithContext(ctx, log)

			start := time.Now()
			stats, err := squeeze.Rewrite(ctx, squeeze.RewriteOptions{
				InputPath:      inputPath,
				OutputPath:     outputPath,
				MinTensorBytes: int(minTensorBytes),
				Skip:           skip,
				Log:            log,
			})
			if err != nil {
				return cli.Exit(fmt.Sprintf("error: compress: %v", err), 1)
			}

			saved := int64(stats.BytesIn) - int64(stats.BytesOut)
			log.Info("done",
				"elapsed", time.Since(start).Round(time.Millisecond),
				"saved_bytes", saved,
			)

			if reportPath != "" {
				report := compressReport{
					RunID:     uuid.NewString(),
					CreatedAt: start.UTC(),
					Input:     inputPath,
					Output:    outputPath,
					Stats:     stats,
				}
				b, err := json.MarshalIndent(report, "", "  ")
				if err != nil {
					return cli.Exit(fmt.Sprintf("error: encode report: %v", err), 1)
				}
				if err := os.WriteFile(reportPath, append(b, '\n'), 0o644); err != nil {
					return cli.Exit(fmt.Sprintf("error: write report: %v", err), 1)
				}
				log.Info("report written", "path", reportPath)
			}
			return nil
		},
	}
}
