package tasks

import (
	"context"
	"fmt"
	"io"
	"net/http"

	"neotask/internal/shared"
	"neotask/internal/taskmanager"
)

// Getter is the part of httpclient.Client a probe needs.
type Getter interface {
	Get(ctx context.Context, url string) (*http.Response, error)
}

// Probe returns a task that issues GET url and fails unless the response is 2xx.
func Probe(ctx context.Context, g Getter, url string, opts ...taskmanager.TaskOption) *taskmanager.Task {
	opts = append([]taskmanager.TaskOption{taskmanager.WithName("probe " + url)}, opts...)
	return async(ctx, func(ctx context.Context) error {
		resp, err := g.Get(ctx, url)
		if err != nil {
			return fmt.Errorf("probe %s: %w", url, err)
		}
		defer func() {
			_, _ = io.CopyN(io.Discard, resp.Body, 64<<10)
			_ = resp.Body.Close()
		}()
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			return fmt.Errorf("probe %s: %w: status %d", url, shared.ErrDependencyFailure, resp.StatusCode)
		}
		return nil
	}, taskmanager.CallerLocation(1), opts)
}
