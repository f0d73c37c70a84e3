// Package diag tracks in-flight filesystem operations, for diagnosing
// mounts that appear hung on a slow LLM or search backend. Operations
// are labelled by the parsed virtual path's tag rather than a Go type
// name, so the output reads in the same terms a client sees.
package diag

import (
	"encoding/json"
	"fmt"
	"net/http"
	"runtime"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"
)

// Op is a single in-flight operation.
type Op struct {
	ID      uint64
	Tag     string // parsed path tag (e.g. "ModelFile", "SessionPrompt")
	Method  string // filesystem operation (e.g. "Write")
	Detail  string // identifier within the subtree (model, session id, index)
	Phase   string // current sub-step (e.g. "llm.Query")
	Started time.Time
}

// OpHandle annotates one in-flight operation. Done must be called when
// the operation completes; it also bumps the completion counter for
// the operation's tag.
type OpHandle struct {
	tracker *Tracker
	id      uint64
}

// SetPhase updates the phase annotation for this in-flight operation.
func (h *OpHandle) SetPhase(phase string) {
	if h.tracker == nil {
		return
	}
	h.tracker.mu.Lock()
	if op, ok := h.tracker.ops[h.id]; ok {
		op.Phase = phase
		h.tracker.ops[h.id] = op
	}
	h.tracker.mu.Unlock()
}

// Done removes the operation from the in-flight set and counts it as
// completed.
func (h *OpHandle) Done() {
	if h.tracker == nil {
		return
	}
	h.tracker.mu.Lock()
	if op, ok := h.tracker.ops[h.id]; ok {
		h.tracker.completed[op.Tag+"."+op.Method]++
		delete(h.tracker.ops, h.id)
	}
	h.tracker.mu.Unlock()
}

// Tracker records in-flight operations and per-tag completion totals.
type Tracker struct {
	nextID    atomic.Uint64
	mu        sync.Mutex
	ops       map[uint64]Op
	completed map[string]uint64
}

// NewTracker returns an empty Tracker.
func NewTracker() *Tracker {
	return &Tracker{
		ops:       make(map[uint64]Op),
		completed: make(map[string]uint64),
	}
}

// Track records the start of an operation and returns an OpHandle whose
// Done method must be called when the operation completes.
func (t *Tracker) Track(tag, method, detail string) *OpHandle {
	id := t.nextID.Add(1)
	op := Op{
		ID:      id,
		Tag:     tag,
		Method:  method,
		Detail:  detail,
		Started: time.Now(),
	}
	t.mu.Lock()
	t.ops[id] = op
	t.mu.Unlock()
	return &OpHandle{tracker: t, id: id}
}

// InFlight returns a snapshot of all in-flight operations, oldest
// first.
func (t *Tracker) InFlight() []Op {
	t.mu.Lock()
	ops := make([]Op, 0, len(t.ops))
	for _, op := range t.ops {
		ops = append(ops, op)
	}
	t.mu.Unlock()
	sort.Slice(ops, func(i, j int) bool {
		if ops[i].Started.Equal(ops[j].Started) {
			return ops[i].ID < ops[j].ID
		}
		return ops[i].Started.Before(ops[j].Started)
	})
	return ops
}

// Completed returns a copy of the per-tag completion totals, keyed by
// "<tag>.<method>".
func (t *Tracker) Completed() map[string]uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	out := make(map[string]uint64, len(t.completed))
	for k, v := range t.completed {
		out[k] = v
	}
	return out
}

// Dump returns a human-readable multi-line summary: every in-flight
// operation with its elapsed time, then the completion totals.
func (t *Tracker) Dump() string {
	ops := t.InFlight()
	now := time.Now()
	var b strings.Builder
	if len(ops) == 0 {
		b.WriteString("no in-flight operations\n")
	} else {
		fmt.Fprintf(&b, "%d in-flight operation(s):\n", len(ops))
		for _, op := range ops {
			elapsed := now.Sub(op.Started).Truncate(time.Millisecond)
			fmt.Fprintf(&b, "  [%d] %s.%s", op.ID, op.Tag, op.Method)
			if op.Detail != "" {
				fmt.Fprintf(&b, " %s", op.Detail)
			}
			if op.Phase != "" {
				fmt.Fprintf(&b, " [%s]", op.Phase)
			}
			fmt.Fprintf(&b, " (%s)\n", elapsed)
		}
	}

	totals := t.Completed()
	if len(totals) > 0 {
		keys := make([]string, 0, len(totals))
		for k := range totals {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		b.WriteString("completed:\n")
		for _, k := range keys {
			fmt.Fprintf(&b, "  %s: %d\n", k, totals[k])
		}
	}
	return b.String()
}

// Handler serves the tracker state over HTTP: human-readable text by
// default, a JSON object with ?json, and all goroutine stacks with
// ?stacks (for hangs inside go-fuse or the kernel driver rather than
// in a tracked operation).
func (t *Tracker) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if _, wantStacks := r.URL.Query()["stacks"]; wantStacks {
			w.Header().Set("Content-Type", "text/plain; charset=utf-8")
			fmt.Fprint(w, goroutineStacks())
			return
		}
		if _, wantJSON := r.URL.Query()["json"]; wantJSON {
			w.Header().Set("Content-Type", "application/json")
			payload := struct {
				InFlight  []Op              `json:"in_flight"`
				Completed map[string]uint64 `json:"completed"`
			}{t.InFlight(), t.Completed()}
			if err := json.NewEncoder(w).Encode(payload); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
			}
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		fmt.Fprint(w, t.Dump())
	})
}

// maxGoroutineStackSize bounds the ?stacks dump.
const maxGoroutineStackSize = 64 * 1024

func goroutineStacks() string {
	buf := make([]byte, maxGoroutineStackSize)
	n := runtime.Stack(buf, true)
	s := string(buf[:n])
	if n >= maxGoroutineStackSize {
		s += "\n... truncated at 64KB ...\n"
	}
	return s
}
