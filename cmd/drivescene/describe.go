package main

import (
	"bufio"
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/OCAP2/drivescene/internal/api"
	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/dispatcher"
	"github.com/OCAP2/drivescene/internal/episode"
	"github.com/OCAP2/drivescene/internal/influx"
	"github.com/OCAP2/drivescene/internal/logging"
	"github.com/OCAP2/drivescene/internal/monitor"
	"github.com/OCAP2/drivescene/internal/parser"
	"github.com/OCAP2/drivescene/internal/storage/factory"
	"github.com/OCAP2/drivescene/internal/worker"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

// maxLineSize bounds one input line; a :SIM:START: carries the whole network.
const maxLineSize = 16 << 20

type describeOptions struct {
	input       string
	storageType string
	traceDir    string
}

func newDescribeCmd() *cobra.Command {
	var opts describeOptions
	cmd := &cobra.Command{
		Use:   "describe",
		Short: "Describe simulator frames read as JSON lines",
		Long: `describe reads {"command": ..., "payload": ...} lines from stdin or
--input and writes one JSON line per :SCENE: frame to stdout.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDescribe(cmd, opts)
		},
	}
	cmd.Flags().StringVarP(&opts.input, "input", "i", "", "input file (default stdin)")
	cmd.Flags().StringVar(&opts.storageType, "storage", "", "storage type override (memory, sqlite, postgres, websocket)")
	cmd.Flags().StringVar(&opts.traceDir, "trace-dir", "", "memory storage output directory override")
	return cmd
}

func runDescribe(cmd *cobra.Command, opts describeOptions) error {
	ctx := cmd.Context()
	episodeCtx := episode.NewContext()
	a := setupApp(episodeCtx, cmd.ErrOrStderr())
	defer a.close()
	logger := a.logger

	storageCfg := config.GetStorageConfig()
	if opts.storageType != "" {
		storageCfg.Type = opts.storageType
	}
	if opts.traceDir != "" {
		storageCfg.Memory.OutputDir = opts.traceDir
	}
	backend, err := factory.NewBackend(storageCfg, logger)
	if err != nil {
		logger.Error("Failed to create storage backend", "error", err)
		return err
	}
	if err := backend.Init(); err != nil {
		logger.Error("Failed to initialize storage backend", "type", storageCfg.Type, "error", err)
		return err
	}
	defer func() {
		if err := backend.Close(); err != nil {
			logger.Error("Failed to close storage backend", "error", err)
		}
	}()
	logger.Info("Storage backend initialized", "type", storageCfg.Type)

	var influxManager *influx.Manager
	if influxCfg := config.GetInfluxConfig(); influxCfg.Enabled {
		backupPath := filepath.Join(viper.GetString("logsDir"),
			fmt.Sprintf("influx_backup_%s.log.gz", a.sessionStart.Format("20060102_150405")))
		influxManager = influx.NewManager(influxCfg, a.zlog, backupPath)
		if err := influxManager.Connect(ctx); err != nil {
			logger.Error("Scene metrics disabled", "error", err)
			influxManager = nil
		} else {
			defer func() {
				if err := influxManager.Close(); err != nil {
					logger.Warn("Failed to close InfluxDB manager", "error", err)
				}
			}()
		}
	}

	d, err := dispatcher.New(logging.NewDispatcherLogger(a.zlog))
	if err != nil {
		return fmt.Errorf("creating dispatcher: %w", err)
	}
	// runs before the backend closes so queued prompts are stored
	defer d.Close()

	p := parser.NewParser(logger)
	deps := worker.Dependencies{
		Logger:  logger,
		Parser:  p,
		Episode: episodeCtx,
		Scene:   config.GetSceneConfig(),
		Influx:  influxManager,
		Output:  cmd.OutOrStdout(),
	}
	if apiCfg := config.GetAPIConfig(); apiCfg.Upload {
		client := api.New(apiCfg.ServerURL, apiCfg.APIKey)
		if err := client.Healthcheck(); err != nil {
			logger.Warn("Trace server unreachable, uploads may fail", "url", apiCfg.ServerURL, "error", err)
		}
		deps.Uploader = client
		deps.UploadTag = apiCfg.Tag
	}
	workerManager := worker.NewManager(deps, backend)
	workerManager.RegisterHandlers(d)

	if monCfg := config.GetMonitorConfig(); monCfg.StatusFile != "" {
		mon := monitor.NewService(monitor.Dependencies{
			Logger:     logger,
			Episode:    episodeCtx,
			Backend:    backend,
			StatusFile: monCfg.StatusFile,
			Interval:   monCfg.Interval,
		})
		if err := mon.Start(); err != nil {
			logger.Warn("Status monitor disabled", "file", monCfg.StatusFile, "error", err)
		} else {
			defer mon.Stop()
		}
	}

	in := cmd.InOrStdin()
	if opts.input != "" && opts.input != "-" {
		f, err := os.Open(opts.input)
		if err != nil {
			return fmt.Errorf("opening input: %w", err)
		}
		defer f.Close()
		in = f
	}

	start := time.Now()
	stats, pumpErr := pump(ctx, in, p, d, logger)

	if info, ok := episodeCtx.Info(); ok {
		logger.Warn("Input ended inside an episode, closing it", "episode", info.EpisodeID)
		if _, err := d.Dispatch(dispatcher.Event{Command: parser.CommandSimEnd, Timestamp: time.Now()}); err != nil {
			logger.Error("Failed to close episode", "error", err)
		}
	}

	logger.Info("Input finished",
		"lines", stats.lines,
		"failed", stats.failed,
		"duration", time.Since(start))
	return pumpErr
}

// pumpStats counts what the input loop saw.
type pumpStats struct {
	lines  int
	failed int
}

// pump dispatches every input line. Malformed lines and failed events are
// logged and skipped; only read errors and cancellation stop the loop.
func pump(ctx context.Context, in io.Reader, p *parser.Parser, d *dispatcher.Dispatcher, logger *slog.Logger) (pumpStats, error) {
	var stats pumpStats
	scanner := bufio.NewScanner(in)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)

	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return stats, err
		}
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		stats.lines++

		msg, err := p.ParseMessage(line)
		if err != nil {
			stats.failed++
			logger.Warn("Skipping malformed line", "line", stats.lines, "error", err)
			continue
		}
		_, err = d.Dispatch(dispatcher.Event{
			Command:   msg.Command,
			Payload:   msg.Payload,
			Timestamp: time.Now(),
		})
		if err != nil {
			stats.failed++
			logger.Warn("Event failed", "line", stats.lines, "command", msg.Command, "error", err)
		}
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("reading input: %w", err)
	}
	return stats, nil
}
