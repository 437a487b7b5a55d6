// Package resource provides handles for remote images and containers.
//
// A handle is a local object naming a remote resource. Every method is one
// HTTP request through the shared transport.Transport; handles never close
// the transport.
package resource

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/url"
	"strconv"

	"github.com/blang/semver/v4"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
	"github.com/janstenpickle/docker-api/stream"
	"github.com/janstenpickle/docker-api/transport"
	"github.com/janstenpickle/docker-api/upload"
)

// Client creates handles and issues engine-wide requests.
type Client struct {
	transport transport.Transport
}

// NewClient returns a Client over t.
func NewClient(t transport.Transport) *Client {
	return &Client{transport: t}
}

// Transport returns the shared transport.
func (c *Client) Transport() transport.Transport { return c.transport }

// Image returns a handle for id without contacting the engine.
func (c *Client) Image(id string) *Image {
	return NewImage(c.transport, id)
}

// Container returns a handle for id without contacting the engine.
func (c *Client) Container(id string) *Container {
	return NewContainer(c.transport, id)
}

// ImageSummary is one entry of GET /images/json.
type ImageSummary struct {
	ID          string            `json:"Id"`
	ParentID    string            `json:"ParentId"`
	RepoTags    []string          `json:"RepoTags"`
	RepoDigests []string          `json:"RepoDigests"`
	Created     int64             `json:"Created"`
	Size        int64             `json:"Size"`
	Labels      map[string]string `json:"Labels"`
}

// Images lists images. all includes intermediate layers.
func (c *Client) Images(ctx context.Context, all bool) ([]ImageSummary, error) {
	const op = "list images"
	resp, err := transport.Get(ctx, c.transport, "/images/json", boolQuery("all", all))
	if err != nil {
		return nil, err
	}
	var out []ImageSummary
	if err := transport.DecodeJSON(op, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ContainerSummary is one entry of GET /containers/json.
type ContainerSummary struct {
	ID      string            `json:"Id"`
	Names   []string          `json:"Names"`
	Image   string            `json:"Image"`
	ImageID string            `json:"ImageID"`
	Command string            `json:"Command"`
	Created int64             `json:"Created"`
	State   string            `json:"State"`
	Status  string            `json:"Status"`
	Labels  map[string]string `json:"Labels"`
}

// Containers lists containers. all includes stopped ones.
func (c *Client) Containers(ctx context.Context, all bool) ([]ContainerSummary, error) {
	const op = "list containers"
	resp, err := transport.Get(ctx, c.transport, "/containers/json", boolQuery("all", all))
	if err != nil {
		return nil, err
	}
	var out []ContainerSummary
	if err := transport.DecodeJSON(op, resp, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// ImportOptions names the imported image.
type ImportOptions struct {
	Repo string
	Tag  string
	// Message is the commit message of the imported layer.
	Message string
}

// ImportImage streams a root filesystem tarball from r to
// POST /images/create?fromSrc=- and returns the new image. Status events are
// forwarded to sink, which may be nil.
func (c *Client) ImportImage(ctx context.Context, r io.Reader, opts ImportOptions, sink stream.Sink) (*Image, error) {
	const op = "import"
	q := url.Values{"fromSrc": {"-"}}
	setNonEmpty(q, "repo", opts.Repo)
	setNonEmpty(q, "tag", opts.Tag)
	setNonEmpty(q, "message", opts.Message)

	rs, err := upload.New(c.transport).Upload(ctx, &readerBlocks{r: r, size: upload.ResponseBufferSize}, upload.Request{
		Op:    op,
		Path:  "/images/create",
		Query: q,
	})
	if err != nil {
		return nil, err
	}
	defer iox.DiscardClose(rs)

	parser := stream.NewParser(sink, stream.WithOp(op))
	for {
		chunk, err := rs.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			parser.Discard()
			return nil, err
		}
		if err := parser.Feed(chunk); err != nil {
			return nil, err
		}
	}

	res, err := parser.Finish()
	if err != nil {
		return nil, err
	}
	return NewImage(c.transport, res.ID), nil
}

// readerBlocks adapts an io.Reader to upload.BlockSource.
type readerBlocks struct {
	r    io.Reader
	size int
	buf  []byte
}

func (b *readerBlocks) NextBlock() ([]byte, error) {
	if b.buf == nil {
		b.buf = make([]byte, b.size)
	}
	n, err := io.ReadFull(b.r, b.buf)
	if n > 0 {
		return b.buf[:n], nil
	}
	if err == nil || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return nil, io.EOF
	}
	return nil, apierr.New(apierr.ErrInvalidInput, "import", err)
}

// ContainerConfig is the body of POST /containers/create.
type ContainerConfig struct {
	Image        string            `json:"Image"`
	Cmd          []string          `json:"Cmd,omitempty"`
	Entrypoint   []string          `json:"Entrypoint,omitempty"`
	Env          []string          `json:"Env,omitempty"`
	WorkingDir   string            `json:"WorkingDir,omitempty"`
	User         string            `json:"User,omitempty"`
	Labels       map[string]string `json:"Labels,omitempty"`
	Tty          bool              `json:"Tty,omitempty"`
	AttachStdout bool              `json:"AttachStdout,omitempty"`
	AttachStderr bool              `json:"AttachStderr,omitempty"`
}

type createResponse struct {
	ID       string   `json:"Id"`
	Warnings []string `json:"Warnings"`
}

// CreateContainer creates a container from cfg. name may be empty.
func (c *Client) CreateContainer(ctx context.Context, name string, cfg ContainerConfig) (*Container, error) {
	const op = "create container"
	if cfg.Image == "" {
		return nil, apierr.New(apierr.ErrInvalidInput, op, errors.New("image is required"))
	}
	body, err := json.Marshal(cfg)
	if err != nil {
		return nil, apierr.New(apierr.ErrInvalidInput, op, err)
	}

	q := url.Values{}
	setNonEmpty(q, "name", name)
	resp, err := transport.Post(ctx, c.transport, "/containers/create", q, jsonHeader(), bytes.NewReader(body))
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
	return NewContainer(c.transport, out.ID), nil
}

// VersionInfo is the body of GET /version.
type VersionInfo struct {
	Version       string `json:"Version"`
	APIVersion    string `json:"ApiVersion"`
	MinAPIVersion string `json:"MinAPIVersion"`
	GitCommit     string `json:"GitCommit"`
	GoVersion     string `json:"GoVersion"`
	Os            string `json:"Os"`
	Arch          string `json:"Arch"`
	KernelVersion string `json:"KernelVersion"`
}

// Version returns engine version information.
func (c *Client) Version(ctx context.Context) (*VersionInfo, error) {
	resp, err := transport.Get(ctx, c.transport, "/version", nil)
	if err != nil {
		return nil, err
	}
	var out VersionInfo
	if err := transport.DecodeJSON("version", resp, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// SupportsAPI reports whether the engine speaks API version minimum or newer.
// Versions like "1.41" are compared as semver 1.41.0.
func (c *Client) SupportsAPI(ctx context.Context, minimum string) (bool, error) {
	const op = "version"
	want, err := ParseAPIVersion(minimum)
	if err != nil {
		return false, apierr.New(apierr.ErrInvalidInput, op, err)
	}
	info, err := c.Version(ctx)
	if err != nil {
		return false, err
	}
	have, err := ParseAPIVersion(info.APIVersion)
	if err != nil {
		return false, apierr.New(apierr.ErrUnexpectedResponse, op, err)
	}
	return have.GTE(want), nil
}

// ParseAPIVersion parses an engine API version ("1.41", "v1.41").
func ParseAPIVersion(s string) (semver.Version, error) {
	return semver.ParseTolerant(s)
}

func boolQuery(key string, v bool) url.Values {
	if !v {
		return nil
	}
	return url.Values{key: {strconv.FormatBool(v)}}
}

func setNonEmpty(q url.Values, key, value string) {
	if value != "" {
		q.Set(key, value)
	}
}

func jsonHeader() http.Header {
	return http.Header{"Content-Type": {"application/json"}}
}
