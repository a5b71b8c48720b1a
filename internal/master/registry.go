package master

import "sync"

// Registry is the master's single-owner membership store. It consolidates
// the three mappings (worker records, primary-segment ownership, replica
// lists) behind one mutex, guarding shared connection state with a
// single lock rather than several independently locked maps.
type Registry struct {
	mu sync.Mutex

	workers map[string]*WorkerRecord
	order   []string // insertion order, used for round-robin placement

	primaryOf  map[string]map[segKey]struct{} // workerID -> segments it is primary for
	replicasOf map[segKey][]string            // segKey -> ordered replica workerIDs
}

// NewRegistry creates an empty membership registry.
func NewRegistry() *Registry {
	return &Registry{
		workers:    make(map[string]*WorkerRecord),
		primaryOf:  make(map[string]map[segKey]struct{}),
		replicasOf: make(map[segKey][]string),
	}
}

// Register inserts a new worker record, or replaces the record for a
// worker ID that already exists in the registry (duplicate registration
// is a recoverable event, not an error). The previous connection, if
// any, is returned so the caller can orphan it.
func (r *Registry) Register(rec *WorkerRecord) (previous *WorkerRecord, replaced bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	previous, replaced = r.workers[rec.ID]
	r.workers[rec.ID] = rec
	if !replaced {
		r.order = append(r.order, rec.ID)
		r.primaryOf[rec.ID] = make(map[segKey]struct{})
	}
	return previous, replaced
}

// Touch updates the last-heartbeat timestamp for workerID, if known.
func (r *Registry) Touch(workerID string) {
	r.mu.Lock()
	rec := r.workers[workerID]
	r.mu.Unlock()
	if rec != nil {
		rec.Touch()
	}
}

// Get returns the record for workerID, if any.
func (r *Registry) Get(workerID string) (*WorkerRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.workers[workerID]
	return rec, ok
}

// LiveWorkers returns a snapshot of currently live workers in registry
// insertion order, the ordering the placement engine relies on.
func (r *Registry) LiveWorkers() []*WorkerRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	out := make([]*WorkerRecord, 0, len(r.order))
	for _, id := range r.order {
		if rec := r.workers[id]; rec != nil && rec.IsAlive() {
			out = append(out, rec)
		}
	}
	return out
}

// Count returns the number of live workers.
func (r *Registry) Count() int {
	return len(r.LiveWorkers())
}

// MarkDead flips workerID's liveness latch exactly once and removes it
// from the round-robin order. It returns the record and true only when
// this call performed the transition, so that the timer-driven health
// check and a socket read failure never both hand the same worker to
// recovery.
func (r *Registry) MarkDead(workerID string) (*WorkerRecord, bool) {
	r.mu.Lock()
	rec := r.workers[workerID]
	r.mu.Unlock()
	if rec == nil || !rec.markDead() {
		return nil, false
	}

	r.mu.Lock()
	for i, id := range r.order {
		if id == workerID {
			r.order = append(r.order[:i], r.order[i+1:]...)
			break
		}
	}
	r.mu.Unlock()
	return rec, true
}

// Delete removes a worker's record from the registry entirely. Called by
// the recovery engine once it has finished processing the failed
// worker's segments.
func (r *Registry) Delete(workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.workers, workerID)
	delete(r.primaryOf, workerID)
}

// AddPrimary records that workerID is primary for key.
func (r *Registry) AddPrimary(workerID string, key segKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set, ok := r.primaryOf[workerID]
	if !ok {
		set = make(map[segKey]struct{})
		r.primaryOf[workerID] = set
	}
	set[key] = struct{}{}
}

// RemovePrimary removes the (workerID, key) primary ownership entry.
func (r *Registry) RemovePrimary(workerID string, key segKey) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if set, ok := r.primaryOf[workerID]; ok {
		delete(set, key)
	}
}

// PrimarySegmentsOf returns a snapshot of the segments for which workerID
// is currently primary.
func (r *Registry) PrimarySegmentsOf(workerID string) []segKey {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.primaryOf[workerID]
	out := make([]segKey, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	return out
}

// SetReplicas overwrites the ordered replica list for key.
func (r *Registry) SetReplicas(key segKey, replicas []string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	cp := make([]string, len(replicas))
	copy(cp, replicas)
	r.replicasOf[key] = cp
}

// AddReplica appends workerID to key's ordered replica list.
func (r *Registry) AddReplica(key segKey, workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.replicasOf[key] = append(r.replicasOf[key], workerID)
}

// RemoveReplica removes workerID from key's replica list, preserving order.
func (r *Registry) RemoveReplica(key segKey, workerID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.replicasOf[key]
	for i, id := range list {
		if id == workerID {
			r.replicasOf[key] = append(list[:i], list[i+1:]...)
			return
		}
	}
}

// ReplicasOf returns a snapshot of key's ordered replica list.
func (r *Registry) ReplicasOf(key segKey) []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	list := r.replicasOf[key]
	out := make([]string, len(list))
	copy(out, list)
	return out
}
