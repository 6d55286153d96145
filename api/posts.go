package api

import (
	"bytes"
	"context"
	"mime/multipart"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Luismorlan/feedsync/model"
	"github.com/pkg/errors"
)

// FeedScope filters the global feed.
type FeedScope string

const (
	FeedScopeAll   FeedScope = ""
	FeedScopeAdmin FeedScope = "admin"
	FeedScopeUser  FeedScope = "user"
)

func (s FeedScope) Valid() bool {
	return s == FeedScopeAll || s == FeedScopeAdmin || s == FeedScopeUser
}

type postsEnvelope struct {
	Data []*model.Post `json:"data"`
}

type postEnvelope struct {
	Data *model.Post `json:"data"`
}

// Mutation endpoints answer with the updated post, sometimes only the fields
// they touched.
type postResult struct {
	Post *model.Post `json:"post"`
}

func pageQuery(page, limit int) url.Values {
	q := url.Values{}
	q.Set("page", strconv.Itoa(page))
	q.Set("limit", strconv.Itoa(limit))
	return q
}

func (c *Client) ListPosts(ctx context.Context, scope FeedScope, page, limit int) ([]*model.Post, error) {
	q := pageQuery(page, limit)
	if scope != FeedScopeAll {
		q.Set("scope", string(scope))
	}
	var env postsEnvelope
	if err := c.do(ctx, request{method: http.MethodGet, path: "posts", query: q}, &env); err != nil {
		return nil, err
	}
	return nonNilPosts(env.Data), nil
}

// ListUserPosts returns one user's posts. The service answers 404 for a user
// without posts, which is an empty page here.
func (c *Client) ListUserPosts(ctx context.Context, userId string, page, limit int) ([]*model.Post, error) {
	var env postsEnvelope
	err := c.do(ctx, request{
		method: http.MethodGet,
		path:   "posts/user/" + url.PathEscape(userId),
		query:  pageQuery(page, limit),
	}, &env)
	if Is(err, NotFound) {
		return []*model.Post{}, nil
	}
	if err != nil {
		return nil, err
	}
	return nonNilPosts(env.Data), nil
}

func (c *Client) GetPost(ctx context.Context, id string) (*model.Post, error) {
	var env postEnvelope
	if err := c.do(ctx, request{method: http.MethodGet, path: "posts/" + url.PathEscape(id)}, &env); err != nil {
		return nil, err
	}
	if env.Data == nil {
		return nil, &Error{Kind: NotFound, Message: "post " + id + " not found"}
	}
	return env.Data, nil
}

type MediaFile struct {
	Name string
	Data []byte
}

type NewPost struct {
	Caption string
	Tag     string
	Media   []MediaFile
}

type multipartBody struct {
	data        []byte
	contentType string
}

func encodeNewPost(p NewPost) (*multipartBody, error) {
	var buf bytes.Buffer
	w := multipart.NewWriter(&buf)
	if err := w.WriteField("postCaption", p.Caption); err != nil {
		return nil, err
	}
	if err := w.WriteField("tag", p.Tag); err != nil {
		return nil, err
	}
	for _, m := range p.Media {
		part, err := w.CreateFormFile("media", m.Name)
		if err != nil {
			return nil, err
		}
		if _, err := part.Write(m.Data); err != nil {
			return nil, err
		}
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return &multipartBody{data: buf.Bytes(), contentType: w.FormDataContentType()}, nil
}

// CreatePost uploads a post. Privileged users publish through the admin
// endpoint.
func (c *Client) CreatePost(ctx context.Context, p NewPost, privileged bool) (*model.Post, error) {
	body, err := encodeNewPost(p)
	if err != nil {
		return nil, errors.Wrap(err, "cannot encode new post")
	}
	path := "posts"
	if privileged {
		path = "posts/admin"
	}
	var res postResult
	if err := c.do(ctx, request{method: http.MethodPost, path: path, body: body}, &res); err != nil {
		return nil, err
	}
	return res.Post, nil
}

func (c *Client) postMutation(ctx context.Context, method, path string, body interface{}) (*model.Post, error) {
	var res postResult
	if err := c.do(ctx, request{method: method, path: path, body: body}, &res); err != nil {
		return nil, err
	}
	if res.Post == nil {
		return &model.Post{}, nil
	}
	return res.Post, nil
}

func postPath(id string, sub string) string {
	return "posts/" + url.PathEscape(id) + "/" + sub
}

func (c *Client) UpdateCaption(ctx context.Context, id, caption string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPut, postPath(id, "caption"), map[string]string{"newCaption": caption})
}

func (c *Client) UpdateVisibility(ctx context.Context, id string, v model.Visibility) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPut, postPath(id, "availability"), map[string]string{"newAvailability": string(v)})
}

func (c *Client) AddTag(ctx context.Context, id, tag string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPost, postPath(id, "tags"), map[string]string{"newTag": tag})
}

func (c *Client) RenameTag(ctx context.Context, id, oldTag, newTag string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPut, postPath(id, "tags"), map[string]string{"oldTag": oldTag, "newTag": newTag})
}

func (c *Client) RemoveTag(ctx context.Context, id, tag string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodDelete, postPath(id, "tags"), map[string]string{"tagToDelete": tag})
}

// Share and Unshare answer with the share list and count only.
func (c *Client) Share(ctx context.Context, id string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPost, postPath(id, "shares"), nil)
}

func (c *Client) Unshare(ctx context.Context, id string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodDelete, postPath(id, "shares"), nil)
}

// ToggleSave flips the save server side and answers with the save list.
func (c *Client) ToggleSave(ctx context.Context, id string) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPost, postPath(id, "saves"), map[string]string{})
}

// React sends the reaction type. Sending the type already present removes it.
func (c *Client) React(ctx context.Context, id string, t model.ReactionType) (*model.Post, error) {
	return c.postMutation(ctx, http.MethodPost, postPath(id, "reactions"), map[string]string{"reactionType": string(t)})
}

func (c *Client) DeletePost(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "posts/" + url.PathEscape(id)}, nil)
}

func nonNilPosts(posts []*model.Post) []*model.Post {
	res := make([]*model.Post, 0, len(posts))
	for _, p := range posts {
		if p != nil {
			res = append(res, p)
		}
	}
	return res
}
