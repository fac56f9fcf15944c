package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/episode"
	"github.com/OCAP2/drivescene/internal/logging"
	intOtel "github.com/OCAP2/drivescene/internal/otel"
	"github.com/rs/zerolog"
	"github.com/spf13/viper"
	sdklog "go.opentelemetry.io/otel/sdk/log"
)

// app holds the logging and telemetry of one command run.
type app struct {
	sessionStart time.Time

	slogManager *logging.SlogManager
	logger      *slog.Logger
	// zlog feeds the dispatcher adapter and the influx/database managers.
	zlog zerolog.Logger

	logFile *os.File
	otel    *intOtel.Provider
}

// setupApp opens the session log file and wires slog, zerolog, OTel and
// Graylog from config. Log records never go to stdout, which carries the
// command output. When episodeCtx is set, records are stamped with the
// running episode.
func setupApp(episodeCtx *episode.Context, stderr io.Writer) *app {
	a := &app{
		sessionStart: time.Now(),
		slogManager:  logging.NewSlogManager(),
	}

	var sink io.Writer = stderr
	f, err := logging.OpenLogFile(viper.GetString("logsDir"), AppName, a.sessionStart)
	if err != nil {
		fmt.Fprintf(stderr, "Failed to open log file, logging to stderr: %v\n", err)
	} else {
		a.logFile = f
		sink = f
	}

	otelCfg := config.GetOTelConfig()
	if otelCfg.Enabled {
		a.otel, err = intOtel.New(intOtel.Config{
			Enabled:        otelCfg.Enabled,
			ServiceName:    otelCfg.ServiceName,
			ServiceVersion: CurrentVersion,
			BatchTimeout:   otelCfg.BatchTimeout,
			LogWriter:      sink,
			Endpoint:       otelCfg.Endpoint,
			Insecure:       otelCfg.Insecure,
		})
		if err != nil {
			fmt.Fprintf(stderr, "Failed to initialize OTel provider: %v\n", err)
			a.otel = nil
		}
	}

	var extra []io.Writer
	if gl := config.GetGraylogConfig(); gl.Enabled {
		w, err := logging.NewGelfWriter(gl.Address)
		if err != nil {
			fmt.Fprintf(stderr, "Graylog disabled: %v\n", err)
		} else {
			extra = append(extra, w)
		}
	}

	var otelLogProvider *sdklog.LoggerProvider
	if a.otel != nil {
		otelLogProvider = a.otel.LoggerProvider()
	}
	if episodeCtx != nil {
		a.slogManager.WithEpisode(episodeCtx.LogAttrs)
	}
	level := viper.GetString("logLevel")
	a.slogManager.Setup(sink, level, otelLogProvider, extra...)
	a.logger = a.slogManager.Logger()

	zlevel, err := zerolog.ParseLevel(strings.ToLower(level))
	if err != nil || zlevel == zerolog.NoLevel {
		zlevel = zerolog.InfoLevel
	}
	a.zlog = zerolog.New(sink).Level(zlevel).With().Timestamp().Logger()

	if a.logFile != nil {
		a.logger.Info("Logging to file", "path", a.logFile.Name())
	}
	return a
}

// close flushes telemetry and closes the log file.
func (a *app) close() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := a.slogManager.Flush(ctx); err != nil {
		a.logger.Warn("Failed to flush logs", "error", err)
	}
	if a.otel != nil {
		if err := a.otel.Shutdown(ctx); err != nil {
			a.logger.Warn("Failed to shut down OTel provider", "error", err)
		}
	}
	if a.logFile != nil {
		_ = a.logFile.Close()
	}
}
