package resource

import (
	"context"
	"errors"
	"net/url"
	"strconv"

	jsoniter "github.com/json-iterator/go"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/transport"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// get decodes GET <base>/<suffix> into out. Every read accessor of Image and
// Container goes through it.
func get(ctx context.Context, t transport.Transport, op, base, suffix string, out any) error {
	resp, err := transport.Get(ctx, t, base+"/"+suffix, nil)
	if err != nil {
		return err
	}
	return transport.DecodeJSON(op, resp, out)
}

// Image is a handle to a remote image.
type Image struct {
	transport transport.Transport
	id        string
}

// NewImage returns a handle for id over t.
func NewImage(t transport.Transport, id string) *Image {
	return &Image{transport: t, id: id}
}

// ID returns the image identifier the handle was created with.
func (i *Image) ID() string { return i.id }

func (i *Image) String() string { return i.id }

func (i *Image) path() string { return "/images/" + i.id }

// JSON returns the raw inspect document.
func (i *Image) JSON(ctx context.Context) (map[string]any, error) {
	var out map[string]any
	if err := get(ctx, i.transport, "inspect image", i.path(), "json", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// HistoryEntry is one layer of GET /images/{id}/history.
type HistoryEntry struct {
	ID        string   `json:"Id"`
	Created   int64    `json:"Created"`
	CreatedBy string   `json:"CreatedBy"`
	Tags      []string `json:"Tags"`
	Size      int64    `json:"Size"`
	Comment   string   `json:"Comment"`
}

// History returns the layer history, newest first.
func (i *Image) History(ctx context.Context) ([]HistoryEntry, error) {
	var out []HistoryEntry
	if err := get(ctx, i.transport, "image history", i.path(), "history", &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Tag adds repo:tag to the image.
func (i *Image) Tag(ctx context.Context, repo, tag string, force bool) error {
	const op = "tag image"
	if repo == "" {
		return apierr.New(apierr.ErrInvalidInput, op, errors.New("repository is required"))
	}
	q := url.Values{"repo": {repo}}
	setNonEmpty(q, "tag", tag)
	if force {
		q.Set("force", strconv.FormatBool(force))
	}
	resp, err := transport.Post(ctx, i.transport, i.path()+"/tag", q, nil, nil)
	if err != nil {
		return err
	}
	return transport.Expect(op, resp)
}

// DeleteItem is one entry of DELETE /images/{id}.
type DeleteItem struct {
	Untagged string `json:"Untagged,omitempty"`
	Deleted  string `json:"Deleted,omitempty"`
}

// Remove deletes the image.
func (i *Image) Remove(ctx context.Context, force bool) ([]DeleteItem, error) {
	resp, err := transport.Delete(ctx, i.transport, i.path(), boolQuery("force", force))
	if err != nil {
		return nil, err
	}
	var out []DeleteItem
	if err := transport.DecodeJSON("remove image", resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}
