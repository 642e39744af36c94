package commands

import (
	"context"

	"github.com/teranos/lore/config"
	"github.com/teranos/lore/errors"
	"github.com/teranos/lore/graph"
	"github.com/teranos/lore/identity"
	"github.com/teranos/lore/logger"
	"github.com/teranos/lore/tracker"
)

// openConnector loads configuration and dials the graph store.
// The caller owns the returned connector and must Close it.
func openConnector(ctx context.Context) (*graph.Connector, *config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to load configuration")
	}
	if err := cfg.Validate(); err != nil {
		return nil, nil, errors.Wrap(err, "invalid configuration")
	}

	conn := graph.NewConnector(cfg.ToGraphConfig(), logger.ComponentLogger("graph"))
	if err := conn.Connect(ctx); err != nil {
		return nil, nil, errors.Wrapf(err, "failed to connect to graph store at %s", cfg.Graph.URI)
	}

	if logger.ShouldOutput(logger.Verbosity, logger.OutputGraphStats) {
		logger.Debugw("Connected to graph store",
			logger.FieldURI, cfg.Graph.URI,
			"database", cfg.Graph.Database,
		)
	}

	return conn, cfg, nil
}

// openTracker dials the graph store and wraps it in a schema-bootstrapped
// tracker. The tracker owns the connection; closing it closes the store.
func openTracker(ctx context.Context) (*tracker.Tracker, *config.Config, error) {
	conn, cfg, err := openConnector(ctx)
	if err != nil {
		return nil, nil, err
	}

	tr, err := tracker.NewTrackerWithConnector(ctx, conn, logger.ComponentLogger("tracker"))
	if err != nil {
		conn.Close(ctx)
		return nil, nil, err
	}

	return tr, cfg, nil
}

// resolveUniqueKey turns a command argument into a codebase unique key.
// A 64-hex argument is taken as a key directly; anything else is treated
// as a path to a local working tree and resolved through git.
func resolveUniqueKey(arg string) (string, error) {
	if identity.IsUniqueKey(arg) {
		return arg, nil
	}

	id, err := identity.FromPath(arg)
	if err != nil {
		return "", errors.Wrapf(err, "cannot resolve %q to a codebase", arg)
	}
	return id.UniqueKey, nil
}
