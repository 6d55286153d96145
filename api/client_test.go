package api

import (
	"context"
	"net/http"
	"testing"

	"github.com/Luismorlan/feedsync/apitest"
	"github.com/Luismorlan/feedsync/model"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type staticCredential struct {
	token string
}

func (s staticCredential) Credential() (string, error) {
	if s.token == "" {
		return "", NewUnauthorized("not logged in")
	}
	return s.token, nil
}

func setup(t *testing.T, opts ...Option) (*apitest.Server, *Client) {
	server := apitest.NewServer()
	server.AddUser(&model.User{Id: "u1", Name: "amira", Role: model.RoleUser}, "token-u1")
	server.AddUser(&model.User{Id: "a1", Name: "admin", Role: model.RoleAdmin}, "token-a1")
	url := server.Start()
	t.Cleanup(server.Close)
	return server, NewClient(url, staticCredential{token: "token-u1"}, opts...)
}

func TestListPostsPaging(t *testing.T) {
	server, client := setup(t)
	for _, id := range []string{"p1", "p2", "p3"} {
		server.AddPost(&model.Post{Id: id, Author: "u1"})
	}
	server.AddPost(&model.Post{Id: "p4", Author: "a1"})

	posts, err := client.ListPosts(context.Background(), FeedScopeAll, 1, 3)
	require.Nil(t, err)
	assert.Len(t, posts, 3)
	// newest first
	assert.Equal(t, "p4", posts[0].Id)

	posts, err = client.ListPosts(context.Background(), FeedScopeAll, 2, 3)
	require.Nil(t, err)
	assert.Len(t, posts, 1)

	posts, err = client.ListPosts(context.Background(), FeedScopeAdmin, 1, 10)
	require.Nil(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, "p4", posts[0].Id)
}

func TestListUserPostsNotFoundIsEmpty(t *testing.T) {
	_, client := setup(t)

	posts, err := client.ListUserPosts(context.Background(), "u1", 1, 10)
	require.Nil(t, err)
	assert.NotNil(t, posts)
	assert.Empty(t, posts)
}

func TestGetPostNotFound(t *testing.T) {
	_, client := setup(t)

	_, err := client.GetPost(context.Background(), "missing")
	kind, ok := KindOf(err)
	require.True(t, ok)
	assert.Equal(t, NotFound, kind)
}

func TestCreatePostMultipart(t *testing.T) {
	server, client := setup(t)

	p, err := client.CreatePost(context.Background(), NewPost{
		Caption: "hello",
		Tag:     "city",
		Media:   []MediaFile{{Name: "a.png", Data: []byte("png")}},
	}, false)
	require.Nil(t, err)
	assert.Equal(t, "hello", p.Caption)
	assert.Equal(t, []string{"city"}, p.Tags)
	require.Len(t, p.Media, 1)
	assert.Equal(t, "/uploads/a.png", p.Media[0].Url)

	stored, ok := server.Post(p.Id)
	require.True(t, ok)
	assert.Equal(t, "u1", stored.Author)

	_, err = client.CreatePost(context.Background(), NewPost{Caption: "x"}, true)
	assert.True(t, Is(err, ValidationFailure))
	assert.Equal(t, http.StatusForbidden, err.(*Error).Status)
}

func TestShareAnswersPartialPost(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "a1", Caption: "keep"})

	p, err := client.Share(context.Background(), "p1")
	require.Nil(t, err)
	assert.Equal(t, []string{"u1"}, p.ShareList)
	assert.Equal(t, 1, p.ShareCount)
	assert.Equal(t, "", p.Caption)
	assert.Nil(t, p.SaveList)

	p, err = client.Unshare(context.Background(), "p1")
	require.Nil(t, err)
	assert.Empty(t, p.ShareList)
	assert.NotNil(t, p.ShareList)
}

func TestErrorTaxonomy(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "u1"})

	server.Fail(http.MethodPost, "/api/posts/:id/saves", http.StatusInternalServerError, "db down")
	_, err := client.ToggleSave(context.Background(), "p1")
	assert.True(t, Is(err, ServerFailure))

	_, err = client.UpdateCaption(context.Background(), "p1", "")
	assert.True(t, Is(err, ValidationFailure))
	assert.Equal(t, "Caption is required", MessageOf(err))

	wrapped := errors.Wrap(err, "edit caption")
	kind, ok := KindOf(wrapped)
	assert.True(t, ok)
	assert.Equal(t, ValidationFailure, kind)

	_, ok = KindOf(errors.New("other"))
	assert.False(t, ok)
	assert.Equal(t, "Something went wrong!", MessageOf(errors.New("other")))
}

func TestMissingCredentialSendsNothing(t *testing.T) {
	server := apitest.NewServer()
	url := server.Start()
	defer server.Close()
	client := NewClient(url, staticCredential{})

	_, err := client.ListPosts(context.Background(), FeedScopeAll, 1, 10)
	assert.True(t, Is(err, Unauthorized))
	assert.Equal(t, 0, server.Requests(http.MethodGet, "/api/posts"))
}

func TestRejectedCredentialCallsHandler(t *testing.T) {
	rejected := 0
	server, client := setup(t, WithUnauthorizedHandler(func() { rejected++ }))
	server.RevokeToken("token-u1")

	_, err := client.Me(context.Background())
	assert.True(t, Is(err, Unauthorized))
	assert.Equal(t, 1, rejected)
}

func TestNetworkFailure(t *testing.T) {
	server := apitest.NewServer()
	url := server.Start()
	server.Close()
	client := NewClient(url, staticCredential{token: "t"})

	_, err := client.ListPosts(context.Background(), FeedScopeAll, 1, 10)
	assert.True(t, Is(err, NetworkFailure))
}

func TestCommentsRoundTrip(t *testing.T) {
	server, client := setup(t)
	server.AddPost(&model.Post{Id: "p1", Author: "a1"})
	ctx := context.Background()

	root, err := client.AddComment(ctx, "p1", "root", nil)
	require.Nil(t, err)
	assert.True(t, root.IsRoot())

	reply, err := client.AddComment(ctx, "p1", "reply", &root.Id)
	require.Nil(t, err)
	assert.Equal(t, root.Id, reply.Parent())

	comments, err := client.ListComments(ctx, "p1")
	require.Nil(t, err)
	assert.Len(t, comments, 2)

	stored, _ := server.Comment(root.Id)
	assert.Equal(t, []string{reply.Id}, stored.Replies)

	require.Nil(t, client.DeleteComment(ctx, reply.Id))
	parent, err := client.SetReplies(ctx, root.Id, nil)
	require.Nil(t, err)
	assert.Empty(t, parent.Replies)

	liked, err := client.ReactComment(ctx, root.Id, model.ReactionLike)
	require.Nil(t, err)
	assert.True(t, liked.LikedBy("u1"))

	edited, err := client.EditComment(ctx, root.Id, "edited")
	require.Nil(t, err)
	assert.Equal(t, "edited", edited.Content)
}

func TestUsers(t *testing.T) {
	_, client := setup(t)
	ctx := context.Background()

	u, err := client.GetUser(ctx, "a1")
	require.Nil(t, err)
	assert.Equal(t, "Admin", u.DisplayName())

	users, err := client.SearchUsers(ctx, "AMI", 10)
	require.Nil(t, err)
	require.Len(t, users, 1)
	assert.Equal(t, "u1", users[0].Id)

	_, err = client.SearchUsers(ctx, " ", 10)
	assert.True(t, Is(err, ValidationFailure))

	me, err := client.UpdateBio(ctx, "hi")
	require.Nil(t, err)
	assert.Equal(t, "hi", me.Bio)

	err = client.ChangeRole(ctx, "a1", model.RoleUser)
	assert.True(t, Is(err, ValidationFailure))
}
