package commands

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"maps"
	"slices"
	"sync"
	"time"

	"github.com/grasp-labs/ds-devkit-go-sdk/devkit"
)

// RunWatch prints the configuration of env and every change to it until
// ctx is cancelled.
func RunWatch(ctx context.Context, r *devkit.Resolver, out io.Writer, logger *slog.Logger, env string, interval, pollWait time.Duration) error {
	var (
		mu   sync.Mutex
		prev map[string]string
	)
	w := r.Watch(env, devkit.WatchOptions{Interval: interval, PollWait: pollWait})
	err := w.Start(ctx, func(m map[string]string) {
		mu.Lock()
		defer mu.Unlock()
		stamp := time.Now().Format(time.RFC3339)
		for _, k := range slices.Sorted(maps.Keys(m)) {
			if old, ok := prev[k]; !ok || old != m[k] {
				fmt.Fprintf(out, "%s %s=%s\n", stamp, k, m[k])
			}
		}
		for k := range prev {
			if _, ok := m[k]; !ok {
				fmt.Fprintf(out, "%s %s removed\n", stamp, k)
			}
		}
		prev = m
	})
	if err != nil {
		return err
	}
	logger.Info("watching configuration", slog.String("environment", env))
	<-ctx.Done()
	w.Stop()
	return nil
}
