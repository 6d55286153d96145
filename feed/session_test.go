package feed

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	"github.com/Luismorlan/feedsync/api"
	"github.com/Luismorlan/feedsync/apitest"
	"github.com/Luismorlan/feedsync/model"
	"github.com/Luismorlan/feedsync/mutation"
	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func ids(v View) []string {
	res := []string{}
	for _, item := range v.Items {
		res = append(res, item.Post.Id)
	}
	return res
}

func seedPosts(server *apitest.Server, n int, author string) {
	for i := 1; i <= n; i++ {
		server.AddPost(&model.Post{Id: fmt.Sprintf("p%02d", i), Author: author, Caption: "caption"})
	}
}

func loadedFeed(t *testing.T, client *Client, src Source) *Session {
	feed := client.OpenFeed(src)
	t.Cleanup(feed.Close)
	require.Nil(t, feed.LoadMore(context.Background()))
	return feed
}

func itemOf(t *testing.T, feed *Session, postId string) Item {
	for _, item := range feed.CurrentItems().Items {
		if item.Post.Id == postId {
			return item
		}
	}
	t.Fatalf("post %s not in feed", postId)
	return Item{}
}

func TestUserFeedNotFoundIsEmpty(t *testing.T) {
	_, client := setup(t)

	feed := loadedFeed(t, client, Source{UserId: "u2"})
	view := feed.CurrentItems()
	assert.Empty(t, view.Items)
	assert.False(t, view.HasMore)
	assert.Nil(t, view.Err)
}

func TestLoadMorePages(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 12, "u1")

	feed := loadedFeed(t, client, Source{})
	view := feed.CurrentItems()
	require.Len(t, view.Items, 10)
	assert.True(t, view.HasMore)
	// newest first
	assert.Equal(t, "p12", view.Items[0].Post.Id)
	assert.Equal(t, "Amira", view.Items[0].Author.DisplayName())

	require.Nil(t, feed.LoadMore(context.Background()))
	view = feed.CurrentItems()
	assert.Len(t, view.Items, 12)
	assert.False(t, view.HasMore)

	require.Nil(t, feed.LoadMore(context.Background()))
	assert.Equal(t, 2, server.Requests("GET", "/api/posts"))
}

func TestFilteredFeed(t *testing.T) {
	server, client := setup(t)
	server.AddUser(&model.User{Id: "a1", Name: "admin", Role: model.RoleAdmin}, "")
	server.AddPost(&model.Post{Id: "p1", Author: "u1"})
	server.AddPost(&model.Post{Id: "p2", Author: "a1"})

	feed := loadedFeed(t, client, Source{})
	assert.Equal(t, []string{"p2", "p1"}, ids(feed.CurrentItems()))

	require.Nil(t, feed.SetFilter(context.Background(), api.FeedScopeAdmin))
	assert.Equal(t, GlobalScope(api.FeedScopeAdmin), feed.Scope())
	assert.Equal(t, []string{"p2"}, ids(feed.CurrentItems()))

	err := feed.SetFilter(context.Background(), api.FeedScope("friends"))
	assert.Equal(t, api.ValidationFailure, kindOf(t, err))
}

func TestLoadFailureKeepsItems(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 12, "u1")
	feed := loadedFeed(t, client, Source{})

	server.Fail("GET", "/api/posts", http.StatusInternalServerError, "boom")
	err := feed.LoadMore(context.Background())
	assert.Equal(t, api.ServerFailure, kindOf(t, err))
	view := feed.CurrentItems()
	assert.Len(t, view.Items, 10)
	assert.NotNil(t, view.Err)
	assert.True(t, view.HasMore)

	server.Recover("GET", "/api/posts")
	require.Nil(t, feed.LoadMore(context.Background()))
	view = feed.CurrentItems()
	assert.Len(t, view.Items, 12)
	assert.Nil(t, view.Err)
}

func TestCloseDropsLatePage(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 3, "u1")
	feed := client.OpenFeed(Source{})

	release := server.Hold("GET", "/api/posts")
	done := make(chan error)
	go func() { done <- feed.LoadMore(context.Background()) }()
	assert.Eventually(t, func() bool { return server.Requests("GET", "/api/posts") == 1 }, time.Second, 5*time.Millisecond)

	feed.Close()
	release()
	require.Nil(t, <-done)
	assert.Empty(t, feed.CurrentItems().Items)
}

func TestToggleSaveRollback(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 1, "u2")
	feed := loadedFeed(t, client, Source{})
	before := itemOf(t, feed, "p01").Post

	server.Fail("POST", "/api/posts/:id/saves", http.StatusInternalServerError, "boom")
	err := feed.ToggleSave(context.Background(), "p01")
	assert.Equal(t, api.ServerFailure, kindOf(t, err))

	after := itemOf(t, feed, "p01").Post
	assert.Empty(t, cmp.Diff(before, after, cmpopts.EquateEmpty()))
}

func TestToggleSaveWhilePending(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 1, "u2")
	feed := loadedFeed(t, client, Source{})

	release := server.Hold("POST", "/api/posts/:id/saves")
	done := make(chan error)
	go func() { done <- feed.ToggleSave(context.Background(), "p01") }()
	assert.Eventually(t, func() bool { return server.Requests("POST", "/api/posts/:id/saves") == 1 }, time.Second, 5*time.Millisecond)

	// optimistic
	assert.Equal(t, []string{"u1"}, itemOf(t, feed, "p01").Post.SaveList)
	assert.Equal(t, mutation.ErrAlreadyPending, feed.ToggleSave(context.Background(), "p01"))

	release()
	require.Nil(t, <-done)
	assert.Equal(t, []string{"u1"}, itemOf(t, feed, "p01").Post.SaveList)
	assert.Equal(t, 1, server.Requests("POST", "/api/posts/:id/saves"))
}

func TestMutationReachesEveryFeed(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 2, "u1")
	global := loadedFeed(t, client, Source{})
	mine := loadedFeed(t, client, Source{UserId: "u1"})

	require.Nil(t, global.React(context.Background(), "p01", model.ReactionLove))
	for _, feed := range []*Session{global, mine} {
		p := itemOf(t, feed, "p01").Post
		assert.Equal(t, 1, p.ReactionCounts[model.ReactionLove])
		reaction, ok := p.ReactionOf("u1")
		assert.True(t, ok)
		assert.Equal(t, model.ReactionLove, reaction)
	}

	err := global.React(context.Background(), "p01", model.ReactionType("wow"))
	assert.Equal(t, api.ValidationFailure, kindOf(t, err))
}

func TestToggleShareTakesServerList(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "u2", ShareList: []string{"u2"}})
	feed := loadedFeed(t, client, Source{})

	require.Nil(t, feed.ToggleShare(context.Background(), "p1"))
	p := itemOf(t, feed, "p1").Post
	assert.ElementsMatch(t, []string{"u2", "u1"}, p.ShareList)
	assert.Equal(t, 2, p.ShareCount)

	require.Nil(t, feed.ToggleShare(context.Background(), "p1"))
	p = itemOf(t, feed, "p1").Post
	assert.Equal(t, []string{"u2"}, p.ShareList)
	assert.Equal(t, 1, p.ShareCount)
}

func TestEditPost(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "u1", Caption: "old", Tags: []string{"city"}, Visibility: model.VisibilityPublic})
	feed := loadedFeed(t, client, Source{})
	ctx := context.Background()

	require.Nil(t, feed.EditCaption(ctx, "p1", "new"))
	require.Nil(t, feed.SetVisibility(ctx, "p1", model.VisibilityFriends))
	require.Nil(t, feed.AddTag(ctx, "p1", "night"))
	require.Nil(t, feed.RenameTag(ctx, "p1", "city", "town"))
	require.Nil(t, feed.RemoveTag(ctx, "p1", "night"))

	p := itemOf(t, feed, "p1").Post
	assert.Equal(t, "new", p.Caption)
	assert.Equal(t, model.VisibilityFriends, p.Visibility)
	assert.Equal(t, []string{"town"}, p.Tags)

	stored, _ := server.Post("p1")
	assert.Empty(t, cmp.Diff(stored.Tags, p.Tags))

	err := feed.SetVisibility(ctx, "p1", model.Visibility("secret"))
	assert.Equal(t, api.ValidationFailure, kindOf(t, err))
	err = feed.EditCaption(ctx, "missing", "x")
	assert.Equal(t, api.NotFound, kindOf(t, err))
}

func TestEditOthersPostRollsBack(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "u2", Caption: "theirs"})
	feed := loadedFeed(t, client, Source{})

	err := feed.EditCaption(context.Background(), "p1", "mine")
	require.NotNil(t, err)
	assert.Equal(t, "theirs", itemOf(t, feed, "p1").Post.Caption)
}

func TestDeletePost(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 2, "u1")
	feed := loadedFeed(t, client, Source{})

	server.Fail("DELETE", "/api/posts/:id", http.StatusInternalServerError, "boom")
	require.NotNil(t, feed.Delete(context.Background(), "p01"))
	assert.Equal(t, []string{"p02", "p01"}, ids(feed.CurrentItems()))

	server.Recover("DELETE", "/api/posts/:id")
	require.Nil(t, feed.Delete(context.Background(), "p01"))
	assert.Equal(t, []string{"p02"}, ids(feed.CurrentItems()))
	_, ok := server.Post("p01")
	assert.False(t, ok)
}

func TestBackgroundRefetchKeepsOlderPages(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 13, "u1")
	feed := loadedFeed(t, client, Source{})
	require.Nil(t, feed.LoadMore(context.Background()))
	require.Len(t, feed.CurrentItems().Items, 13)

	// New posts push p01 past the two pages the refetch reloads.
	for i := 14; i <= 21; i++ {
		server.AddPost(&model.Post{Id: fmt.Sprintf("p%02d", i), Author: "u1"})
	}
	requests := server.Requests("GET", "/api/posts")
	client.Cache.Invalidate(feed.Scope())
	feed.CurrentItems()
	assert.Eventually(t, func() bool { return !client.Cache.IsStale(feed.Scope()) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, requests+2, server.Requests("GET", "/api/posts"))

	require.Nil(t, feed.LoadMore(context.Background()))
	view := feed.CurrentItems()
	assert.Len(t, view.Items, 13)
	assert.Contains(t, ids(view), "p01")
	assert.False(t, view.HasMore)
}

func TestBackgroundRefetchKeepsPendingDelete(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 2, "u1")
	feed := loadedFeed(t, client, Source{})

	release := server.Hold("DELETE", "/api/posts/:id")
	done := make(chan error)
	go func() { done <- feed.Delete(context.Background(), "p01") }()
	assert.Eventually(t, func() bool { return server.Requests("DELETE", "/api/posts/:id") == 1 }, time.Second, 5*time.Millisecond)

	client.Cache.Invalidate(feed.Scope())
	feed.CurrentItems()
	assert.Eventually(t, func() bool { return !client.Cache.IsStale(feed.Scope()) }, time.Second, 5*time.Millisecond)
	assert.Equal(t, []string{"p02"}, ids(feed.CurrentItems()))

	release()
	require.Nil(t, <-done)
	assert.Equal(t, []string{"p02"}, ids(feed.CurrentItems()))
}

func TestCreatePost(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 1, "u2")
	feed := loadedFeed(t, client, Source{})
	others := loadedFeed(t, client, Source{UserId: "u2"})

	p, err := feed.CreatePost(context.Background(), api.NewPost{Caption: "fresh", Tag: "city"})
	require.Nil(t, err)
	assert.Equal(t, "u1", p.Author)
	assert.Equal(t, []string{p.Id, "p01"}, ids(feed.CurrentItems()))
	// not amira's feed
	assert.Equal(t, []string{"p01"}, ids(others.CurrentItems()))

	_, err = feed.CreatePost(context.Background(), api.NewPost{})
	assert.Equal(t, api.ValidationFailure, kindOf(t, err))
}

func TestWatchFollowsChanges(t *testing.T) {
	server, client := setup(t)
	seedPosts(server, 1, "u2")
	feed := loadedFeed(t, client, Source{})

	views := make(chan View, 16)
	feed.Watch(func(v View) { views <- v })
	require.Nil(t, feed.ToggleSave(context.Background(), "p01"))

	select {
	case v := <-views:
		assert.Len(t, v.Items, 1)
	case <-time.After(time.Second):
		t.Fatal("no view")
	}

	feed.Close()
	for len(views) > 0 {
		<-views
	}
	client.Cache.Invalidate(feed.Scope())
	assert.Empty(t, views)
}
