package dashsdk

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"

	"golang.org/x/xerrors"
)

// RequestIDHeader carries the ID a server assigns to each request. Clients
// may set it to choose the ID themselves.
const RequestIDHeader = "X-Livedash-Request-Id"

// Client is an HTTP client for a livedash server.
type Client struct {
	URL        *url.URL
	HTTPClient *http.Client
}

// New creates a livedash client for the server at serverURL.
func New(serverURL *url.URL) *Client {
	return &Client{
		URL:        serverURL,
		HTTPClient: &http.Client{},
	}
}

// RequestOption mutates an outgoing request before it is sent.
type RequestOption func(*http.Request)

// Request performs an HTTP request with the body provided. The caller is
// responsible for closing the response body.
func (c *Client) Request(ctx context.Context, method, path string, body any, opts ...RequestOption) (*http.Response, error) {
	serverURL, err := c.URL.Parse(path)
	if err != nil {
		return nil, xerrors.Errorf("parse url: %w", err)
	}

	var r io.Reader
	if body != nil {
		buf := &bytes.Buffer{}
		enc := json.NewEncoder(buf)
		enc.SetEscapeHTML(false)
		if err := enc.Encode(body); err != nil {
			return nil, xerrors.Errorf("encode body: %w", err)
		}
		r = buf
	}

	req, err := http.NewRequestWithContext(ctx, method, serverURL.String(), r)
	if err != nil {
		return nil, xerrors.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for _, opt := range opts {
		opt(req)
	}

	resp, err := c.HTTPClient.Do(req)
	if err != nil {
		return nil, xerrors.Errorf("do: %w", err)
	}
	return resp, nil
}

// ReadBodyAsError reads the response as a Response, and wraps it in an
// Error type for easy type assertion.
func ReadBodyAsError(res *http.Response) error {
	if res == nil {
		return xerrors.Errorf("no body returned")
	}
	defer res.Body.Close()

	var method, requestURL string
	if res.Request != nil {
		method = res.Request.Method
		requestURL = res.Request.URL.String()
	}

	resp, err := io.ReadAll(res.Body)
	if err != nil {
		return xerrors.Errorf("read body: %w", err)
	}

	mimeType, _, err := mime.ParseMediaType(res.Header.Get("Content-Type"))
	if err != nil {
		mimeType = res.Header.Get("Content-Type")
	}
	if mimeType != "application/json" {
		if len(resp) > 1024 {
			resp = append(resp[:1024], []byte("...")...)
		}
		return &Error{
			statusCode: res.StatusCode,
			method:     method,
			url:        requestURL,
			requestID:  res.Header.Get(RequestIDHeader),
			Response: Response{
				Message: fmt.Sprintf("unexpected non-JSON response %q", mimeType),
				Detail:  strings.TrimSpace(string(resp)),
			},
		}
	}

	var m Response
	if err := json.NewDecoder(bytes.NewBuffer(resp)).Decode(&m); err != nil {
		return xerrors.Errorf("decode body: %w", err)
	}
	return &Error{
		Response:   m,
		statusCode: res.StatusCode,
		method:     method,
		url:        requestURL,
		requestID:  res.Header.Get(RequestIDHeader),
	}
}

// Response represents a generic HTTP response.
type Response struct {
	// Message is an actionable message that depicts actions the request took.
	Message string `json:"message"`
	// Detail is a debug message that provides further insight into why the
	// action failed.
	Detail string `json:"detail,omitempty"`
	// Validations are form field-specific friendly error messages.
	Validations []ValidationError `json:"validations,omitempty"`
}

// ValidationError represents a scoped error to a user input.
type ValidationError struct {
	Field  string `json:"field"`
	Detail string `json:"detail"`
}

// Error represents an unaccepted or invalid request to the API.
type Error struct {
	Response

	statusCode int
	method     string
	url        string
	requestID  string
}

func (e *Error) StatusCode() int {
	return e.statusCode
}

// RequestID is the ID the server logged the request under, if it sent one.
func (e *Error) RequestID() string {
	return e.requestID
}

func (e *Error) Error() string {
	var builder strings.Builder
	if e.method != "" && e.url != "" {
		_, _ = fmt.Fprintf(&builder, "%v %v\n", e.method, e.url)
	}
	_, _ = fmt.Fprintf(&builder, "Status Code: %d\n", e.statusCode)
	if e.requestID != "" {
		_, _ = fmt.Fprintf(&builder, "Request ID: %s\n", e.requestID)
	}
	_, _ = builder.WriteString(e.Message)
	if e.Detail != "" {
		_, _ = fmt.Fprintf(&builder, "\n\t%s", e.Detail)
	}
	for _, err := range e.Validations {
		_, _ = fmt.Fprintf(&builder, "\n- %s: %s", err.Field, err.Detail)
	}
	return builder.String()
}
