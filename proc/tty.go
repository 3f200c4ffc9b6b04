package proc

import "defs"

/// InterruptTty delivers SIGNAL_INTERRUPT to the deepest live
/// descendant running on ttyIdx, implementing the Ctrl+C keyboard
/// shortcut: a shell's foreground job, not the shell itself, is the
/// one a console interrupt should hit. Grounded on the original
/// kernel's ctrl_C_handler, which walks the active tty's process tree
/// down to its last child before raising the signal. Returns false if
/// no process is running on that tty.
func (t *table_t) InterruptTty(ttyIdx int) bool {
	t.mu.Lock()
	var deepest *Proc_t
	deepestDepth := -1
	for _, p := range t.slots {
		if p == nil || p.Tty != ttyIdx {
			continue
		}
		depth := 0
		for pp := p.ParentPid; pp != defs.NoPid; {
			parent := t.get(pp)
			if parent == nil {
				break
			}
			depth++
			pp = parent.ParentPid
		}
		if depth > deepestDepth {
			deepest, deepestDepth = p, depth
		}
	}
	t.mu.Unlock()

	if deepest == nil {
		return false
	}
	deepest.Raise(defs.SIGNAL_INTERRUPT, t)
	return true
}

/// BroadcastAlarm delivers SIGNAL_ALARM to every live process,
/// implementing the original kernel's alarm_callback, which rings
/// every ten seconds rather than on a per-process schedule. Called
/// from the timer IRQ path's alarm ticklist.
func (t *table_t) BroadcastAlarm() {
	t.mu.Lock()
	pids := make([]defs.Pid_t, 0, len(t.slots))
	for _, p := range t.slots {
		if p != nil && p.Status != Zombie {
			pids = append(pids, p.Pid)
		}
	}
	t.mu.Unlock()

	for _, pid := range pids {
		if p := t.Get(pid); p != nil {
			p.Raise(defs.SIGNAL_ALARM, t)
		}
	}
}
