package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"net/url"

	uuid "github.com/satori/go.uuid"
)

// Request is the HTTP request of a flow.
type Request struct {
	Method string
	URL    *url.URL
	Proto  string
	Header http.Header
	Body   []byte

	raw *http.Request
}

func newRequest(req *http.Request) *Request {
	return &Request{
		Method: req.Method,
		URL:    req.URL,
		Proto:  req.Proto,
		Header: req.Header,
		raw:    req,
	}
}

// Raw returns the request as received by the proxy.
func (r *Request) Raw() *http.Request {
	return r.raw
}

func (r *Request) MarshalJSON() ([]byte, error) {
	m := make(map[string]any)
	m["method"] = r.Method
	if r.URL != nil {
		m["url"] = r.URL.String()
	}
	m["proto"] = r.Proto
	m["header"] = r.Header
	return json.Marshal(m)
}

// Response is the HTTP response of a flow.
type Response struct {
	StatusCode int         `json:"statusCode"`
	Header     http.Header `json:"header"`
	Body       []byte      `json:"-"`
	BodyReader io.Reader   `json:"-"`

	close bool // connection close
}

// Flow is one request/response exchange passing through the proxy.
type Flow struct {
	ID          uuid.UUID
	ConnContext *ConnContext
	Request     *Request
	Response    *Response

	// Stream is set when a body exceeded Config.StreamLargeBodies. Streamed
	// bodies are not buffered and the Request and Response events are skipped.
	Stream bool

	done chan struct{}
}

func newFlow() *Flow {
	return &Flow{
		ID:   uuid.NewV4(),
		done: make(chan struct{}),
	}
}

// Done returns a channel closed once the flow has been answered.
func (f *Flow) Done() <-chan struct{} {
	return f.done
}

func (f *Flow) finish() {
	close(f.done)
}

func (f *Flow) MarshalJSON() ([]byte, error) {
	j := make(map[string]any)
	j["id"] = f.ID
	j["request"] = f.Request
	j["response"] = f.Response
	return json.Marshal(j)
}
