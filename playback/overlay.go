package playback

import "sync"

// OverlayType tags the payload kind of an overlay.
type OverlayType int

const (
	OverlayText OverlayType = iota
	OverlayImage
	OverlayStyledText
)

func (t OverlayType) String() string {
	switch t {
	case OverlayText:
		return "text"
	case OverlayImage:
		return "image"
	case OverlayStyledText:
		return "styled-text"
	default:
		return "unknown"
	}
}

// Overlay is one subtitle/caption entry active over a PTS interval
// [PTSStart, PTSStop) in seconds. PTSStop == 0 means the overlay never
// expires on its own.
type Overlay struct {
	Type OverlayType
	Text string

	PTSStart float64
	PTSStop  float64

	// Forced overlays must be shown even when subtitles are disabled.
	Forced bool
	// Flushable overlays are removed on seek.
	Flushable bool
}

// activeAt reports whether the overlay interval contains pts.
func (o Overlay) activeAt(pts float64) bool {
	if pts < o.PTSStart {
		return false
	}
	return o.PTSStop == 0 || pts < o.PTSStop
}

// contains reports whether o's interval fully contains other's interval.
// Open-ended intervals contain only other open-ended intervals that start
// no earlier.
func (o Overlay) contains(other Overlay) bool {
	if other.PTSStart < o.PTSStart {
		return false
	}
	if o.PTSStop == 0 {
		return true
	}
	if other.PTSStop == 0 {
		return false
	}
	return other.PTSStop <= o.PTSStop
}

// OverlayContainer is PTS-windowed bookkeeping for subtitle/caption overlays.
// Safe for concurrent use by the subtitle route and the host's render loop.
type OverlayContainer struct {
	mu       sync.Mutex
	overlays []Overlay
}

// NewOverlayContainer creates an empty container.
func NewOverlayContainer() *OverlayContainer {
	return &OverlayContainer{}
}

// Add appends the overlay unconditionally.
func (c *OverlayContainer) Add(o Overlay) {
	c.mu.Lock()
	c.overlays = append(c.overlays, o)
	c.mu.Unlock()
}

// ProcessAndAddOverlayIfValid adds the overlay with containment dedup: when
// the new overlay's interval lies fully inside an existing same-type
// overlay's interval it is discarded; any existing same-type overlay fully
// inside the new one's interval is removed before the new one is added.
// Returns whether the overlay was added.
func (c *OverlayContainer) ProcessAndAddOverlayIfValid(o Overlay) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, existing := range c.overlays {
		if existing.Type == o.Type && existing.contains(o) {
			return false // redundant: fully inside an existing overlay
		}
	}
	kept := c.overlays[:0]
	for _, existing := range c.overlays {
		if existing.Type == o.Type && o.contains(existing) {
			continue // superseded by the new overlay
		}
		kept = append(kept, existing)
	}
	c.overlays = append(kept, o)
	return true
}

// GetOverlays returns all overlays whose interval contains pts (seconds).
func (c *OverlayContainer) GetOverlays(pts float64) []Overlay {
	c.mu.Lock()
	defer c.mu.Unlock()
	var out []Overlay
	for _, o := range c.overlays {
		if o.activeAt(pts) {
			out = append(out, o)
		}
	}
	return out
}

// CleanUp removes overlays whose stop time has already passed.
func (c *OverlayContainer) CleanUp(pts float64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.overlays[:0]
	for _, o := range c.overlays {
		if o.PTSStop != 0 && o.PTSStop <= pts {
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(c.overlays); i++ {
		c.overlays[i] = Overlay{}
	}
	c.overlays = kept
}

// Flush removes all overlays marked flushable. Invoked on seek.
func (c *OverlayContainer) Flush() {
	c.mu.Lock()
	defer c.mu.Unlock()
	kept := c.overlays[:0]
	for _, o := range c.overlays {
		if o.Flushable {
			continue
		}
		kept = append(kept, o)
	}
	for i := len(kept); i < len(c.overlays); i++ {
		c.overlays[i] = Overlay{}
	}
	c.overlays = kept
}

// Len returns the number of stored overlays.
func (c *OverlayContainer) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.overlays)
}
