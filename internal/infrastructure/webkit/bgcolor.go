package webkit

import (
	"sync"

	"github.com/bnema/webloop/internal/application/port"
)

// bgColor holds the RGBA components painted behind a view before the page
// draws, so a dark page does not flash white.
type bgColor struct {
	r, g, b, a float32
	mu         sync.RWMutex
}

func newBgColor(c *port.RGBA) *bgColor {
	bg := &bgColor{}
	if c != nil {
		bg.set(c.R, c.G, c.B, c.A)
	}
	return bg
}

// set stores the background color components, clamped to [0, 1].
func (c *bgColor) set(r, g, b, a float32) {
	c.mu.Lock()
	c.r, c.g, c.b, c.a = clamp01(r), clamp01(g), clamp01(b), clamp01(a)
	c.mu.Unlock()
}

// get returns the background color components.
func (c *bgColor) get() (r, g, b, a float32) {
	c.mu.RLock()
	r, g, b, a = c.r, c.g, c.b, c.a
	c.mu.RUnlock()
	return
}

// configured reports whether a visible color was set.
func (c *bgColor) configured() bool {
	_, _, _, a := c.get()
	return a > 0
}

func clamp01(v float32) float32 {
	switch {
	case v < 0:
		return 0
	case v > 1:
		return 1
	default:
		return v
	}
}
