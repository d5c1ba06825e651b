package main

import (
	"context"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"emgreach/adapters/sqlstore"
	"emgreach/app"
	"emgreach/domain/core"
	"emgreach/internal"
	"emgreach/internal/config"
	"emgreach/internal/container"
	"emgreach/internal/errors"
)

type runOptions struct {
	device      string
	repetitions int
	seed        int64
	noOpen      bool
	headless    bool
	waitViewer  bool
}

// apply copies the flags the user set onto cfg.
func (o runOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("device") {
		cfg.Device.Kind = strings.ToLower(o.device)
	}
	if flags.Changed("repetitions") {
		cfg.Task.Repetitions = o.repetitions
	}
	if flags.Changed("seed") {
		cfg.Task.Seed = o.seed
	}
	if o.noOpen {
		cfg.Export.Open = false
	}
	if o.headless {
		cfg.Viewer.Enabled = false
	}
	return cfg.Validate()
}

func runSession(ctx context.Context, cfg *config.Config, opts runOptions, logger *internal.Logger) (*app.Summary, error) {
	logger = internal.OrDefault(logger)
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	if err := c.Init(ctx); err != nil {
		return nil, err
	}
	defer func() {
		if err := c.Shutdown(context.WithoutCancel(ctx)); err != nil {
			logger.Warn("shutdown: %v", err)
		}
	}()

	service := app.NewSessionService(cfg, c.SessionDeps())
	if c.Server == nil {
		return service.Run(ctx)
	}

	var summary *app.Summary
	g, gctx := errgroup.WithContext(ctx)
	serverCtx, stopServer := context.WithCancel(gctx)
	g.Go(func() error {
		return c.Server.Run(serverCtx)
	})
	g.Go(func() error {
		defer stopServer()
		if opts.waitViewer {
			if err := waitForViewer(gctx, c.Hub, logger); err != nil {
				return err
			}
		}
		s, err := service.Run(gctx)
		summary = s
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return summary, nil
}

type clientCounter interface {
	ClientCount() int
}

// waitForViewer blocks until a browser is streaming the task.
func waitForViewer(ctx context.Context, hub clientCounter, logger *internal.Logger) error {
	logger.Info("waiting for a viewer to connect")
	ticker := time.NewTicker(100 * time.Millisecond)
	defer ticker.Stop()
	for hub.ClientCount() == 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
	return nil
}

func openStore(ctx context.Context, cfg *config.Config, logger *internal.Logger) (*sqlstore.Store, error) {
	c, err := container.New(cfg, logger)
	if err != nil {
		return nil, err
	}
	return c.OpenStore(ctx)
}

func listSessions(ctx context.Context, out io.Writer, cfg *config.Config, limit int, logger *internal.Logger) error {
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	sessions, err := store.List(ctx, limit)
	if err != nil {
		return err
	}
	if len(sessions) == 0 {
		fmt.Fprintln(out, "no stored sessions")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tNAME\tHITS\tRECORDS\tSTARTED\tDURATION")
	for _, s := range sessions {
		fmt.Fprintf(w, "%s\t%s\t%d\t%d\t%s\t%s\n",
			s.ID, s.Name, s.Hits, s.RecordCount,
			s.StartedAt.Local().Format(time.DateTime),
			s.EndedAt.Sub(s.StartedAt).Round(time.Second))
	}
	return w.Flush()
}

func exportSession(ctx context.Context, out io.Writer, cfg *config.Config, rawID string, logger *internal.Logger) error {
	id, err := core.ParseSessionID(rawID)
	if err != nil {
		return errors.InvalidInput(err.Error())
	}
	store, err := openStore(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer store.Close()

	exp, err := store.Load(ctx, id)
	if err != nil {
		return err
	}

	sinks := container.FileSinks(cfg)
	if len(sinks) == 0 {
		return errors.ConfigInvalid("no export formats selected")
	}
	for _, sink := range sinks {
		location, err := sink.Save(ctx, exp)
		if err != nil {
			return err
		}
		fmt.Fprintf(out, "%s: %s\n", sink.Name(), location)
	}
	return nil
}

// reportError prints err with its code and returns the exit status: 2 when
// the configuration or arguments were rejected, 1 otherwise.
func reportError(w io.Writer, err error) int {
	if errors.IsAppError(err) {
		fmt.Fprintf(w, "%s: %v\n", errors.GetCode(err), err)
	} else {
		fmt.Fprintln(w, err)
	}
	if errors.HasCode(err, errors.CodeConfigInvalid) || errors.HasCode(err, errors.CodeInvalidInput) {
		return 2
	}
	return 1
}
