// Package playlist expands catalog entries into ordered playback sequences
// and validates them against the key registry.
//
// Validation is advisory by design: nodes referencing unknown keys are
// counted and logged, never dropped, because registration order within a
// catalog pass is not fixed.
package playlist

import (
	"log/slog"
	"sort"
	"sync"

	"dialtone/internal/catalog"
	"dialtone/internal/logging"
	"dialtone/internal/registry"
)

// Marker keys inserted by the builder. Both are expected to be registered as
// generators by the tone collaborator at startup.
const (
	RingbackKey = "ringback"
	ClickKey    = "click"
)

// Node is one playback step, carrying gap and duration timing.
type Node struct {
	AudioKey   string
	GapMs      int
	DurationMs int
}

// Playlist is an ordered list of playback steps owned by one audio key.
type Playlist struct {
	Name  string
	Nodes []Node
}

// Registry maps audio keys to their playlists.
type Registry struct {
	mu        sync.RWMutex
	playlists map[string]*Playlist
	keys      *registry.Registry
	logger    *slog.Logger
}

// NewRegistry constructs an empty playlist registry validating against keys.
func NewRegistry(keys *registry.Registry, logger *slog.Logger) *Registry {
	return &Registry{
		playlists: make(map[string]*Playlist),
		keys:      keys,
		logger:    logging.NewComponentLogger(logger, "playlist"),
	}
}

// Create returns the playlist under name, creating an empty one when absent.
// An existing playlist is replaced only when overwrite is set.
func (r *Registry) Create(name string, overwrite bool) *Playlist {
	r.mu.Lock()
	defer r.mu.Unlock()

	if existing, ok := r.playlists[name]; ok && !overwrite {
		return existing
	}
	p := &Playlist{Name: name}
	r.playlists[name] = p
	return p
}

// Append adds a node at the end of a playlist.
func (r *Registry) Append(name, audioKey string, durationMs int) {
	r.appendNode(name, Node{AudioKey: audioKey, DurationMs: durationMs})
}

// Prepend adds a node at the front of a playlist.
func (r *Registry) Prepend(name, audioKey string, durationMs int) {
	r.warnUnknown(name, audioKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[name]
	if !ok {
		p = &Playlist{Name: name}
		r.playlists[name] = p
	}
	p.Nodes = append([]Node{{AudioKey: audioKey, DurationMs: durationMs}}, p.Nodes...)
}

// Replace swaps the playlist's nodes for a single node.
func (r *Registry) Replace(name, audioKey string, durationMs int) {
	r.warnUnknown(name, audioKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[name]
	if !ok {
		p = &Playlist{Name: name}
		r.playlists[name] = p
	}
	p.Nodes = []Node{{AudioKey: audioKey, DurationMs: durationMs}}
}

func (r *Registry) appendNode(name string, node Node) {
	r.warnUnknown(name, node.AudioKey)
	r.mu.Lock()
	defer r.mu.Unlock()
	p, ok := r.playlists[name]
	if !ok {
		p = &Playlist{Name: name}
		r.playlists[name] = p
	}
	p.Nodes = append(p.Nodes, node)
}

func (r *Registry) warnUnknown(name, audioKey string) {
	if r.keys == nil || r.keys.HasKey(audioKey) {
		return
	}
	// Resolution is deferred; the key may be registered later in the pass.
	r.logger.Debug("playlist references unknown key",
		logging.String(logging.FieldPlaylist, name),
		logging.String(logging.FieldAudioKey, audioKey))
}

// BuildFromEntry replaces the entry's playlist with the canonical expansion:
// reversed previous keys (zero gap), a ringback node when the entry rings,
// the entry's own node, a click marker, then next keys in given order.
func (r *Registry) BuildFromEntry(entry catalog.Entry) *Playlist {
	p := r.Create(entry.AudioKey, true)

	nodes := make([]Node, 0, len(entry.PreviousKeys)+len(entry.NextKeys)+3)
	for i := len(entry.PreviousKeys) - 1; i >= 0; i-- {
		nodes = append(nodes, Node{AudioKey: entry.PreviousKeys[i]})
	}
	if entry.RingDurationMs > 0 {
		nodes = append(nodes, Node{AudioKey: RingbackKey, DurationMs: entry.RingDurationMs})
	}
	nodes = append(nodes, Node{AudioKey: entry.AudioKey, GapMs: entry.GapMs, DurationMs: entry.DurationMs})
	nodes = append(nodes, Node{AudioKey: ClickKey})
	for _, key := range entry.NextKeys {
		nodes = append(nodes, Node{AudioKey: key})
	}

	r.mu.Lock()
	p.Nodes = nodes
	r.mu.Unlock()
	return p
}

// Get returns a copy of the named playlist.
func (r *Registry) Get(name string) (Playlist, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	p, ok := r.playlists[name]
	if !ok {
		return Playlist{}, false
	}
	cp := Playlist{Name: p.Name, Nodes: make([]Node, len(p.Nodes))}
	copy(cp.Nodes, p.Nodes)
	return cp, true
}

// Remove deletes the named playlist.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	delete(r.playlists, name)
	r.mu.Unlock()
}

// Clear removes every playlist.
func (r *Registry) Clear() {
	r.mu.Lock()
	r.playlists = make(map[string]*Playlist)
	r.mu.Unlock()
}

// Names returns all playlist names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	names := make([]string, 0, len(r.playlists))
	for name := range r.playlists {
		names = append(names, name)
	}
	r.mu.RUnlock()
	sort.Strings(names)
	return names
}

// Resolve counts the nodes of a playlist whose keys currently resolve.
// Invalid nodes are reported, not removed.
func (r *Registry) Resolve(name string) int {
	r.mu.RLock()
	p, ok := r.playlists[name]
	if !ok {
		r.mu.RUnlock()
		return 0
	}
	nodes := make([]Node, len(p.Nodes))
	copy(nodes, p.Nodes)
	r.mu.RUnlock()

	valid := 0
	for _, node := range nodes {
		if r.keys != nil && r.keys.HasKey(node.AudioKey) {
			valid++
			continue
		}
		r.logger.Warn("playlist node does not resolve",
			logging.String(logging.FieldPlaylist, name),
			logging.String(logging.FieldAudioKey, node.AudioKey))
	}
	return valid
}

// ResolveAll resolves every playlist and returns the total valid node count.
// Intended to run once after a full catalog registration pass so keys
// registered late in the pass are already visible.
func (r *Registry) ResolveAll() int {
	total := 0
	for _, name := range r.Names() {
		total += r.Resolve(name)
	}
	return total
}
