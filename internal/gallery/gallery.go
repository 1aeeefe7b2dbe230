// Package gallery holds the carousel and lightbox state shown on a device.
//
// The controller is not safe for concurrent use; the application action loop
// is its only caller.
package gallery

import (
	"fmt"

	"photo-frame-portal/internal/models"
)

// Controller tracks the photo list, the carousel cursor and the lightbox
type Controller struct {
	photos     []*models.Photo
	cursor     int
	lastNavSeq int64
	lightbox   int // -1 when closed
}

// New creates an empty controller
func New() *Controller {
	return &Controller{lightbox: -1}
}

// Photos returns the current list in display order
func (c *Controller) Photos() []*models.Photo {
	return c.photos
}

// Len returns the number of photos
func (c *Controller) Len() int {
	return len(c.photos)
}

// Cursor returns the index of the photo on screen
func (c *Controller) Cursor() int {
	return c.cursor
}

// Current returns the photo on screen, or nil when the gallery is empty
func (c *Controller) Current() *models.Photo {
	if len(c.photos) == 0 {
		return nil
	}
	return c.photos[c.cursor]
}

// LastNavSeq returns the seq of the last remote jump applied
func (c *Controller) LastNavSeq() int64 {
	return c.lastNavSeq
}

// Next moves to the following photo, wrapping to the first
func (c *Controller) Next() bool {
	if len(c.photos) == 0 {
		return false
	}
	c.cursor = (c.cursor + 1) % len(c.photos)
	return true
}

// Prev moves to the previous photo, wrapping to the last
func (c *Controller) Prev() bool {
	if len(c.photos) == 0 {
		return false
	}
	c.cursor = (c.cursor - 1 + len(c.photos)) % len(c.photos)
	return true
}

// Jump moves the cursor to index. seq is the event seq of a remote photo_nav
// and must be newer than the last applied one; seq 0 marks a local selection.
// It reports whether the cursor moved.
func (c *Controller) Jump(index int, seq int64) bool {
	if index < 0 || index >= len(c.photos) {
		return false
	}
	if seq != 0 {
		if seq <= c.lastNavSeq {
			return false
		}
		c.lastNavSeq = seq
	}
	c.cursor = index
	return true
}

// SeedNav records the nav seq already reflected in the loaded state so that
// older replayed jumps are ignored
func (c *Controller) SeedNav(seq int64) {
	if seq > c.lastNavSeq {
		c.lastNavSeq = seq
	}
}

// Reload replaces the photo list, keeping the cursor in range and closing the
// lightbox if its photo is gone
func (c *Controller) Reload(photos []*models.Photo) {
	c.photos = photos
	if c.cursor > len(photos)-1 {
		c.cursor = max(0, len(photos)-1)
	}
	if c.lightbox >= len(photos) {
		c.lightbox = -1
	}
}

// OpenLightbox shows photo i full size. The cursor is unaffected.
func (c *Controller) OpenLightbox(i int) bool {
	if i < 0 || i >= len(c.photos) {
		return false
	}
	c.lightbox = i
	return true
}

// CloseLightbox hides the lightbox
func (c *Controller) CloseLightbox() {
	c.lightbox = -1
}

// Lightbox returns the open lightbox index
func (c *Controller) Lightbox() (int, bool) {
	return c.lightbox, c.lightbox >= 0
}

// Counter renders "i / n" with a one-based i
func (c *Controller) Counter() string {
	if len(c.photos) == 0 {
		return "0 / 0"
	}
	return fmt.Sprintf("%d / %d", c.cursor+1, len(c.photos))
}
