package api

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	. "github.com/Luismorlan/feedsync/utils/log"
	"github.com/pkg/errors"
)

// CredentialSource supplies the bearer token. It must fail with an
// Unauthorized *Error when there is no valid credential.
type CredentialSource interface {
	Credential() (string, error)
}

// Client talks to the remote service. Every call is authenticated and
// blocking, ctx bounds it.
type Client struct {
	baseUrl    string
	httpClient *http.Client
	creds      CredentialSource

	// Called after the service rejected the credential.
	onUnauthorized func()
}

type Option func(*Client)

func WithHTTPClient(h *http.Client) Option {
	return func(c *Client) { c.httpClient = h }
}

func WithUnauthorizedHandler(f func()) Option {
	return func(c *Client) { c.onUnauthorized = f }
}

const defaultTimeout = 30 * time.Second

func NewClient(baseUrl string, creds CredentialSource, opts ...Option) *Client {
	c := &Client{
		baseUrl:    strings.TrimRight(baseUrl, "/"),
		httpClient: &http.Client{Timeout: defaultTimeout},
		creds:      creds,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type errorBody struct {
	Message string `json:"message"`
}

type request struct {
	method string
	path   string
	query  url.Values
	// JSON encoded unless it is a *multipartBody.
	body interface{}
}

// do sends the request and decodes a 2xx body into out, which may be nil.
func (c *Client) do(ctx context.Context, req request, out interface{}) error {
	token, err := c.creds.Credential()
	if err != nil {
		return err
	}

	var reader io.Reader
	contentType := ""
	switch b := req.body.(type) {
	case nil:
	case *multipartBody:
		reader = bytes.NewReader(b.data)
		contentType = b.contentType
	default:
		data, err := json.Marshal(b)
		if err != nil {
			return errors.Wrap(err, "cannot encode request body")
		}
		reader = bytes.NewReader(data)
		contentType = "application/json"
	}

	u := c.baseUrl + "/" + strings.TrimLeft(req.path, "/")
	if len(req.query) > 0 {
		u += "?" + req.query.Encode()
	}
	httpReq, err := http.NewRequestWithContext(ctx, req.method, u, reader)
	if err != nil {
		return errors.Wrap(err, "cannot build request")
	}
	httpReq.Header.Set("Authorization", "Bearer "+token)
	if contentType != "" {
		httpReq.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return networkError(err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return networkError(err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var body errorBody
		// Error bodies are not always JSON, the status alone is enough then.
		_ = json.Unmarshal(data, &body)
		apiErr := statusError(resp.StatusCode, body.Message)
		if apiErr.Kind == Unauthorized && c.onUnauthorized != nil {
			Log.Warn("credential rejected by ", req.method, " ", req.path)
			c.onUnauthorized()
		}
		return apiErr
	}

	if out == nil || len(data) == 0 {
		return nil
	}
	if err := json.Unmarshal(data, out); err != nil {
		return &Error{
			Kind:    ServerFailure,
			Status:  resp.StatusCode,
			Message: "malformed response of " + req.method + " " + req.path,
			cause:   err,
		}
	}
	return nil
}
