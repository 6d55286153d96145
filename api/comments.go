package api

import (
	"context"
	"net/http"
	"net/url"

	"github.com/Luismorlan/feedsync/model"
)

type newComment struct {
	Content         string  `json:"content"`
	ParentCommentId *string `json:"parentCommentId"`
}

func commentPath(id string) string {
	return "comments/" + url.PathEscape(id)
}

func (c *Client) ListComments(ctx context.Context, postId string) ([]*model.Comment, error) {
	res := []*model.Comment{}
	err := c.do(ctx, request{method: http.MethodGet, path: "comments/post/" + url.PathEscape(postId)}, &res)
	if err != nil {
		return nil, err
	}
	comments := make([]*model.Comment, 0, len(res))
	for _, cm := range res {
		if cm != nil {
			comments = append(comments, cm)
		}
	}
	return comments, nil
}

// AddComment posts a root comment, or a reply when parentId is set.
func (c *Client) AddComment(ctx context.Context, postId, content string, parentId *string) (*model.Comment, error) {
	var res model.Comment
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   "comments/post/" + url.PathEscape(postId),
		body:   newComment{Content: content, ParentCommentId: parentId},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) EditComment(ctx context.Context, id, content string) (*model.Comment, error) {
	var res model.Comment
	err := c.do(ctx, request{method: http.MethodPut, path: commentPath(id), body: map[string]string{"content": content}}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

// SetReplies overwrites the child list of a comment, used after deleting one
// of its replies.
func (c *Client) SetReplies(ctx context.Context, id string, replies []string) (*model.Comment, error) {
	if replies == nil {
		replies = []string{}
	}
	var res model.Comment
	err := c.do(ctx, request{method: http.MethodPut, path: commentPath(id), body: map[string][]string{"replies": replies}}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) DeleteComment(ctx context.Context, id string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: commentPath(id)}, nil)
}

func (c *Client) ReactComment(ctx context.Context, id string, t model.ReactionType) (*model.Comment, error) {
	var res model.Comment
	err := c.do(ctx, request{
		method: http.MethodPost,
		path:   commentPath(id) + "/reactions",
		body:   map[string]string{"impressionType": string(t)},
	}, &res)
	if err != nil {
		return nil, err
	}
	return &res, nil
}
