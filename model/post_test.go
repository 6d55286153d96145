package model

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const postJSON = `{
	"_id": "p1",
	"author": "u1",
	"postCaption": "hello",
	"media": [{"url": "/uploads/a.png"}],
	"tags": ["city", "news"],
	"availability": "public",
	"impressionsCount": {"like": 2, "love": 1, "sad": 0, "total": 3},
	"impressionList": [
		{"userId": "u2", "impressionType": "like"},
		{"userId": "u3", "impressionType": "like"},
		{"userId": "u4", "impressionType": "love"}
	],
	"shareCount": 1,
	"shareList": ["u2"],
	"saveList": [],
	"createdAt": "2024-03-01T10:00:00.000Z",
	"sharedPost": true,
	"originalPost": {"originalAuthor": "u9", "originalCaption": "first"}
}`

func TestDecodePost(t *testing.T) {
	var p Post
	require.Nil(t, json.Unmarshal([]byte(postJSON), &p))

	assert.Equal(t, "p1", p.Id)
	assert.Equal(t, ReactionCounts{ReactionLike: 2, ReactionLove: 1}, p.ReactionCounts)
	assert.Equal(t, 3, p.ReactionCounts.Total())
	assert.Equal(t, p.ShareCount, len(p.ShareList))
	assert.Equal(t, time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC), p.CreatedAt.Time())

	r, ok := p.ReactionOf("u4")
	assert.True(t, ok)
	assert.Equal(t, ReactionLove, r)
	assert.True(t, p.SharedBy("u2"))
	assert.False(t, p.SavedBy("u2"))
}

func TestReactionCountsEncodeTotal(t *testing.T) {
	b, err := json.Marshal(ReactionCounts{ReactionLike: 2, ReactionCare: 3})
	require.Nil(t, err)

	var raw map[string]int
	require.Nil(t, json.Unmarshal(b, &raw))
	assert.Equal(t, 5, raw["total"])
	assert.Equal(t, 3, raw["care"])
}

func TestTimestampLenientLayouts(t *testing.T) {
	for _, s := range []string{
		`"2024-03-01T10:00:00Z"`,
		`"2024-03-01T10:00:00.000Z"`,
		`"2024-03-01 10:00:00"`,
	} {
		var ts Timestamp
		require.Nil(t, json.Unmarshal([]byte(s), &ts), s)
		assert.Equal(t, 2024, ts.Time().Year(), s)
	}

	var ts Timestamp
	require.Nil(t, json.Unmarshal([]byte(`null`), &ts))
	assert.Equal(t, Timestamp(0), ts)
}

func TestPostVariant(t *testing.T) {
	var p Post
	require.Nil(t, json.Unmarshal([]byte(postJSON), &p))

	shared, ok := p.Variant().(SharedPost)
	require.True(t, ok)
	assert.Equal(t, "u9", shared.Original.OriginalAuthor)

	p.SharedFrom = nil
	_, ok = p.Variant().(OriginalPost)
	assert.True(t, ok)
}

func TestPostCloneIsIndependent(t *testing.T) {
	p := &Post{Id: "p1", SaveList: []string{"u1"}, Tags: []string{"a"}}
	c := p.Clone().(*Post)
	c.SaveList[0] = "changed"
	c.Tags = append(c.Tags, "b")

	assert.Equal(t, []string{"u1"}, p.SaveList)
	assert.Equal(t, []string{"a"}, p.Tags)
}

func TestFormatUsername(t *testing.T) {
	assert.Equal(t, "John Doe", FormatUsername("JOHN doe42"))
	assert.Equal(t, "Amira", FormatUsername("amira"))
	assert.Equal(t, "", FormatUsername(""))
}

func TestCommentIsRoot(t *testing.T) {
	empty := ""
	parent := "c1"
	assert.True(t, (&Comment{}).IsRoot())
	assert.True(t, (&Comment{ParentCommentId: &empty}).IsRoot())
	assert.False(t, (&Comment{ParentCommentId: &parent}).IsRoot())
	assert.True(t, (&Comment{Id: "pending_1"}).IsPending())
	assert.False(t, (&Comment{Id: "c1"}).IsPending())
}
