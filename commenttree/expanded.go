package commenttree

import "sync"

// Expanded holds which roots show their replies. It belongs to the view, the
// cache never sees it.
type Expanded struct {
	mu  sync.Mutex
	ids map[string]bool
}

func NewExpanded() *Expanded {
	return &Expanded{ids: make(map[string]bool)}
}

// Toggle flips the root and returns whether it is now expanded.
func (e *Expanded) Toggle(rootId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.ids[rootId] {
		delete(e.ids, rootId)
		return false
	}
	e.ids[rootId] = true
	return true
}

func (e *Expanded) IsExpanded(rootId string) bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.ids[rootId]
}

// Prune forgets roots that are no longer in the tree, e.g. after a delete.
func (e *Expanded) Prune(t Tree) {
	e.mu.Lock()
	defer e.mu.Unlock()
	for id := range e.ids {
		if _, ok := t.RepliesByRoot[id]; !ok {
			delete(e.ids, id)
		}
	}
}
