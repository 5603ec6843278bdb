package database

import (
	"context"
	"time"

	"golang.org/x/sync/errgroup"
)

// Pinger is satisfied by *pgxpool.Pool and RedisPinger.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Status is the per-dependency health report. Values are "ok" or an error message.
type Status map[string]string

// Health pings every dependency concurrently and reports healthy only if
// all of them answered within timeout.
func Health(ctx context.Context, timeout time.Duration, deps map[string]Pinger) (Status, bool) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	names := make([]string, 0, len(deps))
	results := make([]error, 0, len(deps))
	for name := range deps {
		names = append(names, name)
		results = append(results, nil)
	}

	var g errgroup.Group
	for i, name := range names {
		i, p := i, deps[name]
		g.Go(func() error {
			results[i] = p.Ping(ctx)
			return nil
		})
	}
	_ = g.Wait()

	status := make(Status, len(names))
	healthy := true
	for i, name := range names {
		if results[i] != nil {
			status[name] = results[i].Error()
			healthy = false
			continue
		}
		status[name] = "ok"
	}
	return status, healthy
}
