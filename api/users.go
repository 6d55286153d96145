package api

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/Luismorlan/feedsync/model"
)

type searchEnvelope struct {
	Success bool          `json:"success"`
	Data    []*model.User `json:"data"`
	Message string        `json:"message"`
}

func (c *Client) GetUser(ctx context.Context, id string) (*model.User, error) {
	var res model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "users/" + url.PathEscape(id)}, &res); err != nil {
		return nil, err
	}
	if res.Id == "" {
		res.Id = id
	}
	return &res, nil
}

// SearchUsers fails with ValidationFailure when the service reports an
// unsuccessful search in a 2xx answer.
func (c *Client) SearchUsers(ctx context.Context, q string, limit int) ([]*model.User, error) {
	query := url.Values{}
	query.Set("q", q)
	query.Set("limit", strconv.Itoa(limit))
	var env searchEnvelope
	if err := c.do(ctx, request{method: http.MethodGet, path: "users/search", query: query}, &env); err != nil {
		return nil, err
	}
	if !env.Success {
		msg := env.Message
		if msg == "" {
			msg = "Failed to search users"
		}
		return nil, &Error{Kind: ValidationFailure, Status: http.StatusOK, Message: msg}
	}
	users := []*model.User{}
	for _, u := range env.Data {
		if u != nil {
			users = append(users, u)
		}
	}
	return users, nil
}

func (c *Client) Me(ctx context.Context) (*model.User, error) {
	var res model.User
	if err := c.do(ctx, request{method: http.MethodGet, path: "users/me"}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateName(ctx context.Context, name string) (*model.User, error) {
	var res model.User
	if err := c.do(ctx, request{method: http.MethodPut, path: "users/me", body: map[string]string{"userName": name}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) UpdateBio(ctx context.Context, bio string) (*model.User, error) {
	var res model.User
	if err := c.do(ctx, request{method: http.MethodPut, path: "users/me/bio", body: map[string]string{"newBio": bio}}, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) ChangeRole(ctx context.Context, userId string, role model.Role) error {
	return c.do(ctx, request{
		method: http.MethodPost,
		path:   "users/changeRole",
		body:   map[string]string{"idToChange": userId, "newRole": string(role)},
	}, nil)
}

func (c *Client) DeleteUser(ctx context.Context, userId string) error {
	return c.do(ctx, request{method: http.MethodDelete, path: "users/" + url.PathEscape(userId)}, nil)
}
