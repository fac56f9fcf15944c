// Package episode holds the state of the running simulation episode.
package episode

import (
	"log/slog"
	"sync"
	"time"

	"github.com/OCAP2/drivescene/internal/road"
	"github.com/OCAP2/drivescene/pkg/core"
)

// Context holds the current episode and its road network. Handlers read it
// concurrently; only the start and end handlers write.
type Context struct {
	mu        sync.RWMutex
	info      *core.SimInfo
	network   *road.Network
	startedAt time.Time
	frames    int
}

// NewContext creates a Context with no episode loaded.
func NewContext() *Context {
	return &Context{}
}

// Start replaces the current episode.
func (c *Context) Start(info core.SimInfo, network *road.Network) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.info = &info
	c.network = network
	c.startedAt = time.Now()
	c.frames = 0
}

// End clears the current episode and returns it.
func (c *Context) End() (core.SimInfo, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.info == nil {
		return core.SimInfo{}, false
	}
	info := *c.info
	c.info = nil
	c.network = nil
	return info, true
}

// Info returns the running episode, if any.
func (c *Context) Info() (core.SimInfo, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return core.SimInfo{}, false
	}
	return *c.info, true
}

// Network returns the road network of the running episode, or nil.
func (c *Context) Network() *road.Network {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.network
}

// CountFrame records a described frame and returns the running total.
func (c *Context) CountFrame() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.frames++
	return c.frames
}

// Frames returns the number of frames described in this episode.
func (c *Context) Frames() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.frames
}

// LogAttrs returns the attributes stamped on log records during an episode.
func (c *Context) LogAttrs() []slog.Attr {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return nil
	}
	return []slog.Attr{
		slog.String("episode", c.info.EpisodeID.String()),
		slog.String("env", string(c.info.EnvType)),
	}
}

// Elapsed returns the time since the episode started.
func (c *Context) Elapsed() time.Duration {
	c.mu.RLock()
	defer c.mu.RUnlock()
	if c.info == nil {
		return 0
	}
	return time.Since(c.startedAt)
}
