// internal/room/registry.go
package room

import (
	"fmt"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// Options are shared by every room a Registry creates.
type Options struct {
	Rules   Rules
	Policy  Policy
	Logger  logrus.FieldLogger
	Journal Journal
	Results ResultSink
	// Seed returns the shuffle seed for a new round.
	Seed func() int64
}

func (o Options) withDefaults() Options {
	def := DefaultPolicy()
	if o.Policy.OutboxSize <= 0 {
		o.Policy.OutboxSize = def.OutboxSize
	}
	if o.Policy.MinPlayers <= 0 {
		o.Policy.MinPlayers = def.MinPlayers
	}
	if o.Logger == nil {
		o.Logger = logrus.StandardLogger()
	}
	if o.Seed == nil {
		o.Seed = func() int64 { return time.Now().UnixNano() }
	}
	return o
}

// Registry is the directory of live rooms, keyed by name. Its lock is never
// held while a room lock is taken.
type Registry struct {
	opts Options
	log  logrus.FieldLogger

	mu    sync.RWMutex
	rooms map[string]*Room
}

func NewRegistry(opts Options) *Registry {
	opts = opts.withDefaults()
	return &Registry{
		opts:  opts,
		log:   opts.Logger.WithField("component", "registry"),
		rooms: make(map[string]*Room),
	}
}

func (reg *Registry) HasRoom(name string) bool {
	reg.mu.RLock()
	defer reg.mu.RUnlock()
	_, ok := reg.rooms[name]
	return ok
}

// CreateRoom registers a new empty room. Concurrent creates of the same name
// yield exactly one success.
func (reg *Registry) CreateRoom(name string, ropts ...RoomOption) (*Room, error) {
	if !ValidName(name) {
		return nil, fmt.Errorf("create room %q: %w", name, ErrInvalidName)
	}
	r := newRoom(name, reg.opts, ropts...)
	r.onEmpty = func() { reg.removeIf(name, r) }

	reg.mu.Lock()
	if _, exists := reg.rooms[name]; exists {
		reg.mu.Unlock()
		return nil, fmt.Errorf("create room %q: %w", name, ErrAlreadyExists)
	}
	reg.rooms[name] = r
	reg.mu.Unlock()

	reg.log.WithField("room", name).Info("room created")
	return r, nil
}

func (reg *Registry) GetRoom(name string) (*Room, error) {
	reg.mu.RLock()
	r, ok := reg.rooms[name]
	reg.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("room %q: %w", name, ErrNotFound)
	}
	return r, nil
}

// CloseRoom unlists the room and forcibly detaches all of its sessions. It
// returns false if no such room exists.
func (reg *Registry) CloseRoom(name string) bool {
	reg.mu.Lock()
	r, ok := reg.rooms[name]
	if ok {
		delete(reg.rooms, name)
	}
	reg.mu.Unlock()
	if !ok {
		return false
	}
	r.close()
	reg.log.WithField("room", name).Info("room removed")
	return true
}

// DrainRoom closes the room to new joins and removes it once its last
// attached player is gone.
func (reg *Registry) DrainRoom(name string) bool {
	r, err := reg.GetRoom(name)
	if err != nil {
		return false
	}
	r.drain()
	return true
}

// Rooms lists every live room, ordered by name.
func (reg *Registry) Rooms() []Summary {
	reg.mu.RLock()
	rooms := make([]*Room, 0, len(reg.rooms))
	for _, r := range reg.rooms {
		rooms = append(rooms, r)
	}
	reg.mu.RUnlock()

	slices.SortFunc(rooms, func(a, b *Room) int { return strings.Compare(a.name, b.name) })
	out := make([]Summary, len(rooms))
	for i, r := range rooms {
		out[i] = r.Summary()
	}
	return out
}

// CloseAll closes every room. Used on process shutdown.
func (reg *Registry) CloseAll() {
	reg.mu.Lock()
	names := make([]string, 0, len(reg.rooms))
	for name := range reg.rooms {
		names = append(names, name)
	}
	reg.mu.Unlock()
	for _, name := range names {
		reg.CloseRoom(name)
	}
}

func (reg *Registry) removeIf(name string, r *Room) {
	reg.mu.Lock()
	defer reg.mu.Unlock()
	if reg.rooms[name] == r {
		delete(reg.rooms, name)
		reg.log.WithField("room", name).Info("drained room removed")
	}
}
