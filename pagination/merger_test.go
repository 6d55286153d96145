package pagination

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func page(prefix string, n int) []string {
	res := []string{}
	for i := 0; i < n; i++ {
		res = append(res, fmt.Sprintf("%s%d", prefix, i))
	}
	return res
}

func TestNextCursor(t *testing.T) {
	assert.Equal(t, Cursor{Page: 2}, NextCursor(1, 10, 10))
	assert.True(t, NextCursor(2, 3, 10).IsExhausted())
	assert.True(t, NextCursor(1, 0, 10).IsExhausted())
	assert.True(t, Exhausted().IsExhausted())
	assert.False(t, FirstPage().IsExhausted())
}

func TestShortPageExhausts(t *testing.T) {
	m := NewMerger()

	ticket, ok := m.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 1, ticket.Cursor.Page)
	require.True(t, m.AppendPage(ticket, page("a", 10), NextCursor(1, 10, 10)))
	assert.True(t, m.HasMore())

	ticket, ok = m.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 2, ticket.Cursor.Page)
	require.True(t, m.AppendPage(ticket, page("b", 3), NextCursor(2, 3, 10)))

	assert.Equal(t, 13, m.Len())
	assert.False(t, m.HasMore())
	_, ok = m.BeginFetch()
	assert.False(t, ok)
	assert.Equal(t, 13, m.Len())
}

func TestAppendIsIdempotent(t *testing.T) {
	m := NewMerger()
	ticket, _ := m.BeginFetch()
	m.AppendPage(ticket, []string{"a", "b", "c"}, NextCursor(1, 3, 3))
	before := m.Ids()

	ticket, _ = m.BeginFetch()
	m.AppendPage(ticket, []string{"b", "a", "d", "d"}, NextCursor(2, 4, 4))

	assert.Equal(t, before, m.Ids()[:3])
	assert.Equal(t, []string{"a", "b", "c", "d"}, m.Ids())
}

func TestOneFetchInFlight(t *testing.T) {
	m := NewMerger()
	ticket, ok := m.BeginFetch()
	require.True(t, ok)
	assert.True(t, m.Loading())

	_, ok = m.BeginFetch()
	assert.False(t, ok)

	m.Fail(ticket)
	assert.False(t, m.Loading())
	retry, ok := m.BeginFetch()
	require.True(t, ok)
	assert.Equal(t, 1, retry.Cursor.Page)
}

func TestResetDiscardsLateResponse(t *testing.T) {
	m := NewMerger()
	stale, _ := m.BeginFetch()

	m.Reset()
	fresh, ok := m.BeginFetch()
	require.True(t, ok)

	assert.False(t, m.AppendPage(stale, []string{"old"}, NextCursor(1, 1, 10)))
	m.Fail(stale)
	assert.True(t, m.Loading())

	assert.True(t, m.AppendPage(fresh, []string{"new"}, NextCursor(1, 1, 10)))
	assert.Equal(t, []string{"new"}, m.Ids())
}

func TestPrependAndRemove(t *testing.T) {
	m := NewMerger()
	ticket, _ := m.BeginFetch()
	m.AppendPage(ticket, []string{"a", "b"}, NextCursor(1, 2, 10))

	m.Prepend("n")
	m.Prepend("a")
	assert.Equal(t, []string{"n", "a", "b"}, m.Ids())

	assert.True(t, m.Remove("a"))
	assert.False(t, m.Remove("a"))
	assert.Equal(t, []string{"n", "b"}, m.Ids())
}
