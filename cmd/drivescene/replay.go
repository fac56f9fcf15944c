package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"slices"
	"strconv"
	"strings"
	"text/tabwriter"

	"github.com/OCAP2/drivescene/internal/config"
	"github.com/OCAP2/drivescene/internal/database"
	"github.com/OCAP2/drivescene/internal/storage"
	gormstorage "github.com/OCAP2/drivescene/internal/storage/gorm"
	"github.com/OCAP2/drivescene/pkg/core"
	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

type replayOptions struct {
	dbPath   string
	postgres bool
}

// replaySource is an opened trace store.
type replaySource struct {
	storage.Replayer
	close func() error
}

func newReplayCmd() *cobra.Command {
	var opts replayOptions
	cmd := &cobra.Command{
		Use:   "replay",
		Short: "Read recorded episodes back",
		Long: `replay reads traces from a SQLite file (--db) or from the
configured Postgres database (--postgres).`,
	}
	flags := cmd.PersistentFlags()
	flags.StringVar(&opts.dbPath, "db", "", "SQLite trace file")
	flags.BoolVar(&opts.postgres, "postgres", false, "read from the configured Postgres database")

	cmd.AddCommand(
		replayCommand(&opts, "episodes", "List recorded episodes", 0, replayEpisodes),
		replayCommand(&opts, "frames <episode>", "Print the described frame range", 1, replayFrames),
		replayCommand(&opts, "prompts <episode> <frame>", "Print the prompts of a frame", 2, replayPrompts),
		replayCommand(&opts, "shapes <episode> <frame>", "Print vehicle footprints of a frame", 2, replayShapes),
		replayCommand(&opts, "lanes <episode>", "Print the lane waypoints of an episode", 1, replayLanes),
		replayCommand(&opts, "edit <episode> <frame> <thoughts>", "Replace the edited thoughts of a frame", 3, replayEdit),
	)
	return cmd
}

type replayFunc func(out io.Writer, src storage.Replayer, args []string) error

func replayCommand(opts *replayOptions, use, short string, nargs int, run replayFunc) *cobra.Command {
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(nargs),
		RunE: func(cmd *cobra.Command, args []string) error {
			a := setupApp(nil, cmd.ErrOrStderr())
			defer a.close()

			src, err := openReplaySource(a, *opts)
			if err != nil {
				a.logger.Error("Failed to open trace store", "error", err)
				return err
			}
			defer func() {
				if err := src.close(); err != nil {
					a.logger.Warn("Failed to close trace store", "error", err)
				}
			}()
			return run(cmd.OutOrStdout(), src, args)
		},
	}
}

func openReplaySource(a *app, opts replayOptions) (*replaySource, error) {
	switch {
	case opts.dbPath != "":
		db, err := database.OpenSqlite(opts.dbPath)
		if err != nil {
			return nil, fmt.Errorf("opening %s: %w", opts.dbPath, err)
		}
		backend := gormstorage.New(gormstorage.Dependencies{DB: db, Logger: a.logger})
		if err := backend.Init(); err != nil {
			return nil, err
		}
		return &replaySource{Replayer: backend, close: backend.Close}, nil

	case opts.postgres:
		mgr := database.NewManager(a.zlog)
		if err := mgr.Connect(config.GetStorageConfig().Postgres, ""); err != nil {
			return nil, err
		}
		if mgr.IsLocal {
			_ = mgr.Close()
			return nil, errors.New("postgres is unreachable")
		}
		if err := mgr.Setup(); err != nil {
			_ = mgr.Close()
			return nil, err
		}
		backend := gormstorage.New(gormstorage.Dependencies{DB: mgr.DB, Logger: a.logger})
		if err := backend.Init(); err != nil {
			_ = mgr.Close()
			return nil, err
		}
		return &replaySource{
			Replayer: backend,
			close:    func() error { return errors.Join(backend.Close(), mgr.Close()) },
		}, nil

	default:
		return nil, errors.New("one of --db or --postgres is required")
	}
}

func parseEpisodeFrame(args []string) (uuid.UUID, int, error) {
	id, err := uuid.Parse(args[0])
	if err != nil {
		return uuid.Nil, 0, fmt.Errorf("episode: %w", err)
	}
	if len(args) < 2 {
		return id, 0, nil
	}
	frame, err := strconv.Atoi(args[1])
	if err != nil || frame < 0 {
		return uuid.Nil, 0, fmt.Errorf("frame must be a non-negative integer, got %q", args[1])
	}
	return id, frame, nil
}

func writeJSON(out io.Writer, v any) error {
	enc := json.NewEncoder(out)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func replayEpisodes(out io.Writer, src storage.Replayer, _ []string) error {
	episodes, err := src.Episodes()
	if err != nil {
		return err
	}
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "EPISODE\tENV\tSEED")
	for _, e := range episodes {
		fmt.Fprintf(tw, "%s\t%s\t%d\n", e.EpisodeID, e.EnvType, e.Seed)
	}
	return tw.Flush()
}

func replayFrames(out io.Writer, src storage.Replayer, args []string) error {
	id, _, err := parseEpisodeFrame(args)
	if err != nil {
		return err
	}
	first, last, err := src.FrameRange(id)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(out, "frames %d..%d (%s described)\n", first, last, humanize.Comma(int64(last-first+1)))
	return err
}

func replayPrompts(out io.Writer, src storage.Replayer, args []string) error {
	id, frame, err := parseEpisodeFrame(args)
	if err != nil {
		return err
	}
	p, err := src.Prompts(id, frame)
	if err != nil {
		return err
	}
	return writeJSON(out, p)
}

func replayShapes(out io.Writer, src storage.Replayer, args []string) error {
	id, frame, err := parseEpisodeFrame(args)
	if err != nil {
		return err
	}
	shapes, err := src.VehicleShapes(id, frame)
	if err != nil {
		return err
	}
	return writeJSON(out, shapes)
}

type laneWaypoints struct {
	Lane      string            `json:"lane"`
	Waypoints []core.Position2D `json:"waypoints"`
}

func replayLanes(out io.Writer, src storage.Replayer, args []string) error {
	id, _, err := parseEpisodeFrame(args)
	if err != nil {
		return err
	}
	lanes, err := src.LaneWaypoints(id)
	if err != nil {
		return err
	}
	rows := lo.MapToSlice(lanes, func(idx core.LaneIndex, points []core.Position2D) laneWaypoints {
		return laneWaypoints{Lane: idx.String(), Waypoints: points}
	})
	slices.SortFunc(rows, func(a, b laneWaypoints) int { return strings.Compare(a.Lane, b.Lane) })
	return writeJSON(out, rows)
}

func replayEdit(out io.Writer, src storage.Replayer, args []string) error {
	id, frame, err := parseEpisodeFrame(args[:2])
	if err != nil {
		return err
	}
	p, err := src.EditThoughts(id, frame, args[2])
	if err != nil {
		return err
	}
	return writeJSON(out, p)
}
