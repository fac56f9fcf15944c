// Package monitor periodically writes the progress of the running episode
// to a status file.
package monitor

import (
	"encoding/json"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/OCAP2/drivescene/internal/episode"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/google/uuid"
)

// QueueReporter is implemented by storage backends that buffer writes.
type QueueReporter interface {
	QueueLengths() map[string]int
}

// Dependencies holds all dependencies for the monitor service
type Dependencies struct {
	Logger     *slog.Logger
	Episode    *episode.Context
	Backend    any
	StatusFile string
	Interval   time.Duration
}

// Status is one snapshot of the running episode.
type Status struct {
	Time            time.Time            `json:"time"`
	Episode         uuid.UUID            `json:"episode"`
	Env             core.EnvironmentKind `json:"env"`
	Frames          int                  `json:"frames"`
	Elapsed         string               `json:"elapsed"`
	FramesPerSecond float64              `json:"framesPerSecond"`
	WriteQueues     map[string]int       `json:"writeQueues,omitempty"`
}

// Service manages status monitoring
type Service struct {
	deps      Dependencies
	isRunning bool
	mu        sync.RWMutex
	stopChan  chan struct{}
	done      chan struct{}
}

// NewService creates a new monitor service
func NewService(deps Dependencies) *Service {
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Interval <= 0 {
		deps.Interval = time.Second
	}
	return &Service{deps: deps}
}

// IsRunning returns whether the status monitor is running
func (s *Service) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// Status returns the current episode status. ok is false between episodes.
func (s *Service) Status() (Status, bool) {
	info, ok := s.deps.Episode.Info()
	if !ok {
		return Status{}, false
	}
	elapsed := s.deps.Episode.Elapsed()
	frames := s.deps.Episode.Frames()

	st := Status{
		Time:    time.Now(),
		Episode: info.EpisodeID,
		Env:     info.EnvType,
		Frames:  frames,
		Elapsed: elapsed.Round(time.Millisecond).String(),
	}
	if secs := elapsed.Seconds(); secs > 0 {
		st.FramesPerSecond = float64(frames) / secs
	}
	if q, ok := s.deps.Backend.(QueueReporter); ok {
		st.WriteQueues = q.QueueLengths()
	}
	return st, true
}

// Start starts the status monitor goroutine
func (s *Service) Start() error {
	s.mu.Lock()
	if s.isRunning {
		s.mu.Unlock()
		return nil
	}

	statusFile, err := os.Create(s.deps.StatusFile)
	if err != nil {
		s.mu.Unlock()
		return err
	}
	s.isRunning = true
	s.stopChan = make(chan struct{})
	s.done = make(chan struct{})
	stop, done := s.stopChan, s.done
	s.mu.Unlock()

	go func() {
		defer close(done)
		defer statusFile.Close()

		logger := s.deps.Logger.With("component", "monitor")
		logger.Debug("Starting status monitor", "file", s.deps.StatusFile, "interval", s.deps.Interval)

		ticker := time.NewTicker(s.deps.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				st, ok := s.Status()
				if !ok {
					continue
				}
				data, err := json.MarshalIndent(st, "", "  ")
				if err != nil {
					logger.Error("Error encoding status", "error", err)
					continue
				}
				if err := writeStatus(statusFile, data); err != nil {
					logger.Error("Error writing status file", "error", err)
				}
			}
		}
	}()

	return nil
}

// writeStatus replaces the file contents with data.
func writeStatus(f *os.File, data []byte) error {
	if err := f.Truncate(0); err != nil {
		return err
	}
	if _, err := f.Seek(0, 0); err != nil {
		return err
	}
	_, err := f.Write(append(data, '\n'))
	return err
}

// Stop stops the status monitor and waits for the goroutine to exit.
func (s *Service) Stop() {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return
	}
	close(s.stopChan)
	done := s.done
	s.isRunning = false
	s.mu.Unlock()
	<-done
}
