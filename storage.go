package main

import (
	"context"

	"github.com/zephyrtronium/relaybot/metrics"
	"github.com/zephyrtronium/relaybot/watchlist"
)

// counted is watchlist storage that counts failed saves.
type counted struct {
	watchlist.Storage
	failures metrics.Observer
}

func countFailures(stor watchlist.Storage, failures metrics.Observer) watchlist.Storage {
	return &counted{Storage: stor, failures: failures}
}

func (c *counted) Store(ctx context.Context, nicks []string) error {
	err := c.Storage.Store(ctx, nicks)
	if err != nil {
		c.failures.Observe(1)
	}
	return err
}
