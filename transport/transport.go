// Package transport issues requests against an engine API endpoint.
//
// Transport is the only network boundary in the module: resource handles,
// the uploader and the build orchestrator hold one by reference and never
// own its lifecycle.
package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"

	jsoniter "github.com/json-iterator/go"

	"github.com/janstenpickle/docker-api/apierr"
	"github.com/janstenpickle/docker-api/iox"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Request is one API call.
type Request struct {
	// Method is the HTTP method (default GET).
	Method string
	// Path is the endpoint path without the API version prefix, e.g. "/build".
	Path string
	// Query is encoded into the URL.
	Query url.Values
	// Header is merged over the transport's static headers.
	Header http.Header
	// Body is the request body, nil for none.
	Body io.Reader
	// Chunked streams Body with chunked transfer encoding and no
	// Content-Length.
	Chunked bool
}

// Response is a streamed API response. The caller must close Body.
type Response struct {
	StatusCode int
	Header     http.Header
	Body       io.ReadCloser
}

// Transport performs API requests.
// Implementations must be safe for concurrent use.
type Transport interface {
	// Do issues req. Connection-level failures are returned as
	// apierr.ErrTransport (apierr.ErrCanceled once ctx is done); HTTP error
	// statuses are not errors at this layer.
	Do(ctx context.Context, req *Request) (*Response, error)
}

// Get issues a GET request.
func Get(ctx context.Context, t Transport, path string, query url.Values) (*Response, error) {
	return t.Do(ctx, &Request{Method: http.MethodGet, Path: path, Query: query})
}

// Post issues a POST request.
func Post(ctx context.Context, t Transport, path string, query url.Values, header http.Header, body io.Reader) (*Response, error) {
	return t.Do(ctx, &Request{Method: http.MethodPost, Path: path, Query: query, Header: header, Body: body})
}

// Delete issues a DELETE request.
func Delete(ctx context.Context, t Transport, path string, query url.Values) (*Response, error) {
	return t.Do(ctx, &Request{Method: http.MethodDelete, Path: path, Query: query})
}

// errorBody is the engine's JSON error shape.
type errorBody struct {
	Message string `json:"message"`
}

// CheckStatus returns nil for a 2xx response. Any other status consumes and
// closes the body and returns a classified error carrying the body (or its
// "message" field when the body is the engine's JSON error shape).
func CheckStatus(op string, resp *Response) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	defer iox.DiscardClose(resp.Body)

	body, _ := io.ReadAll(io.LimitReader(resp.Body, apierr.MaxBodySize))
	var eb errorBody
	if json.Unmarshal(body, &eb) == nil && eb.Message != "" {
		body = []byte(eb.Message)
	}
	return apierr.FromStatus(op, resp.StatusCode, body)
}

// DecodeJSON checks the status of resp, decodes its body into out and closes
// it. A body that does not decode is apierr.ErrUnexpectedResponse.
func DecodeJSON(op string, resp *Response, out any) error {
	if err := CheckStatus(op, resp); err != nil {
		return err
	}
	defer iox.DiscardClose(resp.Body)

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return apierr.New(apierr.ErrUnexpectedResponse, op, fmt.Errorf("decode response: %w", err))
	}
	return nil
}

// Expect checks the status of resp and drains and closes the body.
func Expect(op string, resp *Response) error {
	if err := CheckStatus(op, resp); err != nil {
		return err
	}
	iox.DrainClose(resp.Body)
	return nil
}

// classify turns a client error into the taxonomy.
func classify(ctx context.Context, op string, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil || errors.Is(err, context.Canceled) {
		if ctxErr == nil {
			ctxErr = context.Canceled
		}
		return apierr.New(apierr.ErrCanceled, op, fmt.Errorf("%w: %v", ctxErr, err))
	}
	return apierr.New(apierr.ErrTransport, op, err)
}
