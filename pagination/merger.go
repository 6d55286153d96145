package pagination

import "sync"

// Cursor is the page the next fetch starts from. Pages are 1-based, a
// non-positive page means the sequence is exhausted.
type Cursor struct {
	Page int
}

func FirstPage() Cursor { return Cursor{Page: 1} }

func Exhausted() Cursor { return Cursor{} }

func (c Cursor) IsExhausted() bool { return c.Page <= 0 }

// NextCursor is the cursor after fetching page, exhausted when the server
// returned fewer items than requested.
func NextCursor(page, got, pageSize int) Cursor {
	if got < pageSize || page <= 0 {
		return Exhausted()
	}
	return Cursor{Page: page + 1}
}

// Ticket is handed out by BeginFetch and has to come back with the response.
// It carries the merger version at request time so a response that outlived
// a Reset is recognized.
type Ticket struct {
	Cursor  Cursor
	version int
}

/*

Merger keeps the ordered, duplicate free id sequence of one paginated scope

ids / index: the sequence in server order and its membership set
cursor: where the next page starts
inFlight: a fetch was granted and has not come back yet; at most one per scope
version: bumped by Reset, tickets of an older version are stale

*/
type Merger struct {
	mu       sync.Mutex
	ids      []string
	index    map[string]bool
	cursor   Cursor
	inFlight bool
	version  int
}

func NewMerger() *Merger {
	return &Merger{
		ids:    []string{},
		index:  make(map[string]bool),
		cursor: FirstPage(),
	}
}

// BeginFetch grants the next page fetch. It refuses while another fetch is in
// flight or when there is nothing left to load, so a repeated load-more is a
// no-op.
func (m *Merger) BeginFetch() (Ticket, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.inFlight || m.cursor.IsExhausted() {
		return Ticket{}, false
	}
	m.inFlight = true
	return Ticket{Cursor: m.cursor, version: m.version}, true
}

// AppendPage merges a fetched page: ids already present are skipped, new ids
// are appended in the order given and the cursor moves to next. It returns
// false, changing nothing, when the ticket is stale.
func (m *Merger) AppendPage(t Ticket, ids []string, next Cursor) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.version != m.version {
		return false
	}
	for _, id := range ids {
		if m.index[id] {
			continue
		}
		m.index[id] = true
		m.ids = append(m.ids, id)
	}
	m.cursor = next
	m.inFlight = false
	return true
}

// Fail ends a fetch without moving the cursor so the same page is retried.
func (m *Merger) Fail(t Ticket) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if t.version == m.version {
		m.inFlight = false
	}
}

// Reset empties the sequence and restarts from page 1. A fetch in flight is
// orphaned, its response will be discarded.
func (m *Merger) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ids = []string{}
	m.index = make(map[string]bool)
	m.cursor = FirstPage()
	m.inFlight = false
	m.version++
}

// Prepend puts a new id in front, used for a post the user just created.
func (m *Merger) Prepend(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.index[id] {
		return
	}
	m.index[id] = true
	m.ids = append([]string{id}, m.ids...)
}

func (m *Merger) Remove(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.index[id] {
		return false
	}
	delete(m.index, id)
	res := make([]string, 0, len(m.ids)-1)
	for _, i := range m.ids {
		if i != id {
			res = append(res, i)
		}
	}
	m.ids = res
	return true
}

func (m *Merger) Ids() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	res := make([]string, len(m.ids))
	copy(res, m.ids)
	return res
}

func (m *Merger) Cursor() Cursor {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.cursor
}

func (m *Merger) HasMore() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.cursor.IsExhausted()
}

func (m *Merger) Loading() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.inFlight
}

func (m *Merger) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.ids)
}
