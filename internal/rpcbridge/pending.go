package rpcbridge

import (
	"sync"

	"github.com/megascops/megascops/internal/model"
)

// PendingMap correlates in-flight request ids with the FrameRecord
// skeleton awaiting a response. Insert and remove are short,
// mutex-guarded critical sections; there is no fairness requirement
// between the outbound and inbound halves that share it.
type PendingMap struct {
	mu      sync.Mutex
	pending map[string]model.FrameRecord
}

// NewPendingMap builds an empty PendingMap.
func NewPendingMap() *PendingMap {
	return &PendingMap{pending: make(map[string]model.FrameRecord)}
}

// Insert records a skeleton FrameRecord awaiting a response keyed by
// uuid. Every outbound request calls this exactly once.
func (p *PendingMap) Insert(uuid string, record model.FrameRecord) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.pending[uuid] = record
}

// Remove pops the skeleton keyed by uuid, if present. A missing entry
// (duplicate or late reply) returns ok=false and is silently dropped by
// the caller.
func (p *PendingMap) Remove(uuid string) (model.FrameRecord, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	record, ok := p.pending[uuid]
	if ok {
		delete(p.pending, uuid)
	}
	return record, ok
}

// Len reports the number of in-flight entries.
func (p *PendingMap) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.pending)
}
