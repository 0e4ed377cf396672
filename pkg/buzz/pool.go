// ABOUTME: Bounded pool of streaming nodes shared by groups and sounds
// ABOUTME: Handles live in an arena; resources and groups hold index lists
package buzz

import (
	"sort"
	"sync"
)

// DefaultMaxStreamNodes is the per-resource handle limit
const DefaultMaxStreamNodes = 10

// HandleID identifies a handle for its whole life; ids are never reused
type HandleID int

// Handle is a pooled streaming node
type Handle struct {
	ID   HandleID
	Node Node
}

// slot is the arena record for one handle
type slot struct {
	node    Node
	soundID int // 0 = reserved for the group but unbound
}

// resource is the pool entry for one URL
type resource struct {
	unallocated []HandleID
	allocated   map[string][]HandleID
}

func (r *resource) total() int {
	n := len(r.unallocated)
	for _, ids := range r.allocated {
		n += len(ids)
	}
	return n
}

// PoolStats summarises one resource
type PoolStats struct {
	Resource    string
	Total       int
	Unallocated int
	Allocated   int
	Bound       int
	Groups      int
}

// Pool bounds the streaming nodes created per resource URL and mediates
// their sharing across groups and sounds
type Pool struct {
	max     int
	factory NodeFactory

	mu        sync.Mutex
	slots     map[HandleID]*slot
	resources map[string]*resource
	nextID    HandleID
}

// NewPool creates a pool allowing max handles per resource
func NewPool(max int, factory NodeFactory) *Pool {
	if max <= 0 {
		max = DefaultMaxStreamNodes
	}
	return &Pool{
		max:       max,
		factory:   factory,
		slots:     make(map[HandleID]*slot),
		resources: make(map[string]*resource),
		nextID:    1,
	}
}

// Max returns the per-resource handle limit
func (p *Pool) Max() int { return p.max }

// AllocateForSource creates a new unallocated handle for url
func (p *Pool) AllocateForSource(url string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res := p.entry(url)
	if res.total() >= p.max {
		return Handle{}, &PoolError{Op: "allocate for source", Resource: url, Err: ErrPoolExhausted}
	}

	id := p.create(url)
	res.unallocated = append(res.unallocated, id)
	return p.handle(id), nil
}

// AllocateForGroup moves an unallocated handle into group, creating one if
// none is free and the resource is under its limit
func (p *Pool) AllocateForGroup(url, group string) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.allocateLocked(url, group, 0)
}

// AllocateBound is AllocateForGroup followed by binding the new group handle
// to soundID, in one step so no other sound can claim it in between
func (p *Pool) AllocateBound(url, group string, soundID int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	return p.allocateLocked(url, group, soundID)
}

func (p *Pool) allocateLocked(url, group string, soundID int) (Handle, error) {
	res := p.entry(url)
	var id HandleID
	if n := len(res.unallocated); n > 0 {
		id = res.unallocated[n-1]
		res.unallocated = res.unallocated[:n-1]
	} else {
		if res.total() >= p.max {
			return Handle{}, &PoolError{Op: "allocate for group", Resource: url, Group: group, Err: ErrPoolExhausted}
		}
		id = p.create(url)
	}

	res.allocated[group] = append(res.allocated[group], id)
	p.slots[id].soundID = soundID
	return p.handle(id), nil
}

// AllocateForSound binds the first unbound handle of group to soundID
func (p *Pool) AllocateForSound(url, group string, soundID int) (Handle, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	if res, ok := p.resources[url]; ok {
		for _, id := range res.allocated[group] {
			s := p.slots[id]
			if s.soundID == 0 {
				s.soundID = soundID
				return p.handle(id), nil
			}
		}
	}

	return Handle{}, &PoolError{Op: "allocate for sound", Resource: url, Group: group, Err: ErrNoFreeNodes}
}

// ReleaseForSource tears down every handle of url
func (p *Pool) ReleaseForSource(url string) {
	p.mu.Lock()
	res, ok := p.resources[url]
	if !ok {
		p.mu.Unlock()
		return
	}
	delete(p.resources, url)

	nodes := p.drop(res.unallocated)
	for _, ids := range res.allocated {
		nodes = append(nodes, p.drop(ids)...)
	}
	p.mu.Unlock()

	closeNodes(nodes)
}

// ReleaseForGroup returns the group's handles to the unallocated list.
// With freeOnly, handles bound to a sound stay with the group.
func (p *Pool) ReleaseForGroup(url, group string, freeOnly bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[url]
	if !ok {
		return
	}
	ids, ok := res.allocated[group]
	if !ok {
		return
	}

	var kept []HandleID
	for _, id := range ids {
		s := p.slots[id]
		if freeOnly && s.soundID != 0 {
			kept = append(kept, id)
			continue
		}
		s.soundID = 0
		res.unallocated = append(res.unallocated, id)
	}

	if len(kept) == 0 {
		delete(res.allocated, group)
		return
	}
	res.allocated[group] = kept
}

// ReleaseForSound unbinds the handle bound to soundID; it stays with the group
func (p *Pool) ReleaseForSound(url, group string, soundID int) {
	if soundID == 0 {
		return
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[url]
	if !ok {
		return
	}
	for _, id := range res.allocated[group] {
		if s := p.slots[id]; s.soundID == soundID {
			s.soundID = 0
			return
		}
	}
}

// DestroyAllocatedAudio removes h from the group and tears it down. An empty
// group names the resource's unallocated list.
func (p *Pool) DestroyAllocatedAudio(url, group string, h Handle) {
	p.mu.Lock()
	res, ok := p.resources[url]
	if !ok {
		p.mu.Unlock()
		return
	}

	if group == "" {
		ids, found := without(res.unallocated, h.ID)
		if !found {
			p.mu.Unlock()
			return
		}
		res.unallocated = ids
	} else {
		ids, found := without(res.allocated[group], h.ID)
		if !found {
			p.mu.Unlock()
			return
		}
		if len(ids) == 0 {
			delete(res.allocated, group)
		} else {
			res.allocated[group] = ids
		}
	}
	nodes := p.drop([]HandleID{h.ID})
	p.mu.Unlock()

	closeNodes(nodes)
}

// without returns ids minus id and whether id was present
func without(ids []HandleID, id HandleID) ([]HandleID, bool) {
	for i, v := range ids {
		if v == id {
			return append(ids[:i:i], ids[i+1:]...), true
		}
	}
	return ids, false
}

// CleanUp returns every unbound handle to its resource's unallocated list
// and removes groups left without handles
func (p *Pool) CleanUp() {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, res := range p.resources {
		for group, ids := range res.allocated {
			var kept []HandleID
			for _, id := range ids {
				if p.slots[id].soundID == 0 {
					res.unallocated = append(res.unallocated, id)
					continue
				}
				kept = append(kept, id)
			}
			if len(kept) == 0 {
				delete(res.allocated, group)
			} else {
				res.allocated[group] = kept
			}
		}
	}
}

// Dispose tears down every handle; calling it again is a no-op
func (p *Pool) Dispose() {
	p.mu.Lock()
	nodes := make([]Node, 0, len(p.slots))
	for _, s := range p.slots {
		nodes = append(nodes, s.node)
	}
	p.slots = make(map[HandleID]*slot)
	p.resources = make(map[string]*resource)
	p.mu.Unlock()

	closeNodes(nodes)
}

// HasFreeNodes reports whether a sound in group could get a handle for url
// without creating one
func (p *Pool) HasFreeNodes(url, group string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	res, ok := p.resources[url]
	if !ok {
		return false
	}
	if len(res.unallocated) > 0 {
		return true
	}
	for _, id := range res.allocated[group] {
		if p.slots[id].soundID == 0 {
			return true
		}
	}
	return false
}

// SoundID returns the sound bound to h, 0 when unbound or unknown
func (p *Pool) SoundID(h Handle) int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if s, ok := p.slots[h.ID]; ok {
		return s.soundID
	}
	return 0
}

// Live reports whether h is still owned by the pool
func (p *Pool) Live(h Handle) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.slots[h.ID]
	return ok
}

// Stats returns per-resource counts sorted by resource
func (p *Pool) Stats() []PoolStats {
	p.mu.Lock()
	defer p.mu.Unlock()

	stats := make([]PoolStats, 0, len(p.resources))
	for url, res := range p.resources {
		st := PoolStats{
			Resource:    url,
			Unallocated: len(res.unallocated),
			Groups:      len(res.allocated),
		}
		for _, ids := range res.allocated {
			st.Allocated += len(ids)
			for _, id := range ids {
				if p.slots[id].soundID != 0 {
					st.Bound++
				}
			}
		}
		st.Total = st.Unallocated + st.Allocated
		stats = append(stats, st)
	}

	sort.Slice(stats, func(i, j int) bool { return stats[i].Resource < stats[j].Resource })
	return stats
}

// entry returns the resource for url, creating it. Caller holds p.mu.
func (p *Pool) entry(url string) *resource {
	res, ok := p.resources[url]
	if !ok {
		res = &resource{allocated: make(map[string][]HandleID)}
		p.resources[url] = res
	}
	return res
}

// create adds a new slot to the arena. Caller holds p.mu.
func (p *Pool) create(url string) HandleID {
	id := p.nextID
	p.nextID++
	p.slots[id] = &slot{node: p.factory(url)}
	log.Debugf("Created streaming node %d for %s", id, url)
	return id
}

func (p *Pool) handle(id HandleID) Handle {
	return Handle{ID: id, Node: p.slots[id].node}
}

// drop removes slots from the arena and returns their nodes. Caller holds p.mu.
func (p *Pool) drop(ids []HandleID) []Node {
	nodes := make([]Node, 0, len(ids))
	for _, id := range ids {
		if s, ok := p.slots[id]; ok {
			nodes = append(nodes, s.node)
			delete(p.slots, id)
		}
	}
	return nodes
}

func closeNodes(nodes []Node) {
	for _, n := range nodes {
		if err := n.Close(); err != nil {
			log.Warnf("Failed to close streaming node: %v", err)
		}
	}
}
