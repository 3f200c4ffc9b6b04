package tty

// Window_t is one allocated region of the graphics console's
// framebuffer, the unit allocate_window/update_window operate on.
// Grounded on the original kernel's window_manager, simplified here
// to the bookkeeping a window client actually needs: a rectangle and
// an id to hand back on update_window, since this kernel's
// framebuffer is an opaque MMIO byte buffer (spec.md's own
// description) that this package does not render into.
type Window_t struct {
	ID         int
	X, Y, W, H int
}

/// AllocateWindow reserves a new window on the graphics tty at the
/// given rectangle, returning its id. Fails if the rectangle falls
/// outside the console's dimensions.
func (t *Tty_t) AllocateWindow(x, y, w, h int) (id int, ok bool) {
	if w <= 0 || h <= 0 || x < 0 || y < 0 || x+w > vidmapWidth || y+h > vidmapHeight {
		return 0, false
	}
	t.mu.Lock()
	defer t.mu.Unlock()
	win := &Window_t{ID: t.nextWindowID, X: x, Y: y, W: w, H: h}
	t.nextWindowID++
	t.windows = append(t.windows, win)
	return win.ID, true
}

/// UpdateWindow marks id for redraw on the next frame, implementing
/// update_window's "tell the compositor this window's contents
/// changed" contract. Returns false if id names no allocated window.
func (t *Tty_t) UpdateWindow(id int) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for _, w := range t.windows {
		if w.ID == id {
			return true
		}
	}
	return false
}
