package track

import (
	"sort"

	"github.com/go-gl/mathgl/mgl64"
)

// Registry holds one position history per entity id.
type Registry struct {
	capacity int
	tracks   map[string]*History[mgl64.Vec3]
	seen     map[string]uint // tick of the last append
}

// NewRegistry returns an empty registry whose histories hold capacity
// samples each.
func NewRegistry(capacity int) *Registry {
	return &Registry{
		capacity: capacity,
		tracks:   make(map[string]*History[mgl64.Vec3]),
		seen:     make(map[string]uint),
	}
}

// Append records pos for id at tick, creating the history on first
// sighting.
func (r *Registry) Append(id string, tick uint, pos mgl64.Vec3) {
	h, ok := r.tracks[id]
	if !ok {
		h = NewHistory[mgl64.Vec3](r.capacity)
		r.tracks[id] = h
	}
	h.Append(pos)
	r.seen[id] = tick
}

// Get returns the history for id.
func (r *Registry) Get(id string) (*History[mgl64.Vec3], bool) {
	h, ok := r.tracks[id]
	return h, ok
}

// Tail returns the newest n positions of id, or nil when unknown.
func (r *Registry) Tail(id string, n int) []mgl64.Vec3 {
	h, ok := r.tracks[id]
	if !ok {
		return nil
	}
	return h.Tail(n)
}

// Len returns the sample count for id.
func (r *Registry) Len(id string) int {
	if h, ok := r.tracks[id]; ok {
		return h.Len()
	}
	return 0
}

// Drop discards the history of id.
func (r *Registry) Drop(id string) {
	delete(r.tracks, id)
	delete(r.seen, id)
}

// DropStale discards every history not appended at tick and returns the
// dropped ids, sorted.
func (r *Registry) DropStale(tick uint) []string {
	var dropped []string
	for id, last := range r.seen {
		if last != tick {
			dropped = append(dropped, id)
		}
	}
	sort.Strings(dropped)
	for _, id := range dropped {
		r.Drop(id)
	}
	return dropped
}

// IDs returns the tracked ids, sorted.
func (r *Registry) IDs() []string {
	ids := make([]string, 0, len(r.tracks))
	for id := range r.tracks {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
