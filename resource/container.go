package resource

import (
	"context"
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
	"github.com/janstenpickle/docker-api/transport"
)

// Container is a handle to a remote container.
type Container struct {
	transport transport.Transport
	id        string
}

// NewContainer returns a handle for id over t.
func NewContainer(t transport.Transport, id string) *Container {
	return &Container{transport: t, id: id}
}

// ID returns the container identifier.
func (c *Container) ID() string { return c.id }

func (c *Container) String() string { return c.id }

func (c *Container) path() string { return "/containers/" + c.id }

// JSON returns the raw inspect document.
func (c *Container) JSON(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := get(ctx, c.transport, "inspect container", c.path(), "json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Change kinds reported by Changes.
const (
	ChangeModified = 0
	ChangeAdded    = 1
	ChangeDeleted  = 2
)

// Change is one filesystem change of GET /containers/{id}/changes.
type Change struct {
	Path string `json:"Path"`
	Kind int    `json:"Kind"`
}

// Changes returns filesystem changes relative to the image.
func (c *Container) Changes(ctx context.Context) ([]Change, error) {
	var out []Change
	if err := get(ctx, c.transport, "container changes", c.path(), "changes", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Start starts the container. Starting a running container is not an error.
func (c *Container) Start(ctx context.Context) error {
	resp, err := transport.Post(ctx, c.transport, c.path()+"/start", nil, nil, nil)
	if err != nil {
		return err
	}
	return expectOrNotModified("start container", resp)
}

// Stop stops the container, killing it after timeout. A zero timeout uses
// the engine default. Stopping a stopped container is not an error.
func (c *Container) Stop(ctx context.Context, timeout time.Duration) error {
	var q url.Values
	if timeout > 0 {
		q = url.Values{"t": {strconv.Itoa(int(timeout.Seconds()))}}
	}
	resp, err := transport.Post(ctx, c.transport, c.path()+"/stop", q, nil, nil)
	if err != nil {
		return err
	}
	return expectOrNotModified("stop container", resp)
}

// Remove deletes the container. volumes also removes anonymous volumes.
func (c *Container) Remove(ctx context.Context, force, volumes bool) error {
	q := url.Values{}
	if force {
		q.Set("force", "true")
	}
	if volumes {
		q.Set("v", "true")
	}
	resp, err := transport.Delete(ctx, c.transport, c.path(), q)
	if err != nil {
		return err
	}
	return transport.Expect("remove container", resp)
}

// CommitOptions configures Commit.
type CommitOptions struct {
	Repo    string
	Tag     string
	Message string
	Author  string
	// Changes are Dockerfile instructions applied to the new image.
	Changes []string
	// NoPause keeps the container running during the commit.
	NoPause bool
}

// Commit creates an image from the container's filesystem.
func (c *Container) Commit(ctx context.Context, opts CommitOptions) (*Image, error) {
	const op = "commit container"
	q := url.Values{"container": {c.id}}
	setNonEmpty(q, "repo", opts.Repo)
	setNonEmpty(q, "tag", opts.Tag)
	setNonEmpty(q, "comment", opts.Message)
	setNonEmpty(q, "author", opts.Author)
	if len(opts.Changes) > 0 {
		q.Set("changes", strings.Join(opts.Changes, "\n"))
	}
	if opts.NoPause {
		q.Set("pause", "false")
	}

	resp, err := transport.Post(ctx, c.transport, "/commit", q, jsonHeader(), strings.NewReader("{}"))
	if err != nil {
		return nil, err
	}
	var out createResponse
	if err := transport.DecodeJSON(op, resp, &out); err != nil {
		return nil, err
	}
	if out.ID == "" {
		return nil, apierr.New(apierr.ErrUnexpectedResponse, op, errors.New("response has no Id"))
	}
	return NewImage(c.transport, out.ID), nil
}

func expectOrNotModified(op string, resp *transport.Response) error {
	if resp.StatusCode == http.StatusNotModified {
		iox.DrainClose(resp.Body)
		return nil
	}
	return transport.Expect(op, resp)
}
