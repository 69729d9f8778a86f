package server

import (
	"maps"
	"slices"
	"time"
)

// Session is a read-only view of one registry entry.
type Session struct {
	ID       Identity  `json:"id"`
	Addr     string    `json:"addr"`
	OpenedAt time.Time `json:"opened_at"`
}

// registry maps identities to the write side of their handles. It has no
// lock: only the dispatcher goroutine may touch it.
type registry struct {
	conns map[Identity]*Handle
}

func newRegistry() *registry {
	return &registry{conns: make(map[Identity]*Handle)}
}

func (r *registry) len() int { return len(r.conns) }

func (r *registry) add(h *Handle) (replaced *Handle) {
	replaced = r.conns[h.ID]
	r.conns[h.ID] = h
	return replaced
}

func (r *registry) get(id Identity) (*Handle, bool) {
	h, ok := r.conns[id]
	return h, ok
}

func (r *registry) remove(id Identity) (*Handle, bool) {
	h, ok := r.conns[id]
	if ok {
		delete(r.conns, id)
	}
	return h, ok
}

// all visits entries in no particular order.
func (r *registry) all(f func(*Handle)) {
	for _, h := range r.conns {
		f(h)
	}
}

// each visits entries in identity order.
func (r *registry) each(f func(*Handle)) {
	for _, id := range slices.Sorted(maps.Keys(r.conns)) {
		f(r.conns[id])
	}
}

func (r *registry) sessions() []Session {
	out := make([]Session, 0, len(r.conns))
	r.each(func(h *Handle) {
		out = append(out, Session{ID: h.ID, Addr: h.Addr, OpenedAt: h.OpenedAt})
	})
	return out
}

func (r *registry) clear() []*Handle {
	out := make([]*Handle, 0, len(r.conns))
	r.each(func(h *Handle) { out = append(out, h) })
	clear(r.conns)
	return out
}
