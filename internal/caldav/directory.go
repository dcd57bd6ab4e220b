package caldav

import (
	"context"

	engine "github.com/illixion/CalendarTransformer/internal/sync"
)

// Directory adapts the client to the merge engine's directory port.
func (c *Client) Directory() engine.Directory {
	return directory{c}
}

type directory struct {
	c *Client
}

func (d directory) Lookup(ctx context.Context, name string) (engine.Collection, error) {
	return d.c.Lookup(ctx, name)
}
