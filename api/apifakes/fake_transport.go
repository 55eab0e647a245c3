package apifakes

import (
	"bytes"
	"io"
	"net/http"
	"sync"
)

var _ http.RoundTripper = (*FakeTransport)(nil)

// FakeTransport is a scriptable http.RoundTripper for executor tests. Stubs
// are keyed by "METHOD url"; unmatched requests receive the Default response
// or a 404.
type FakeTransport struct {
	lock     sync.Mutex
	stubs    map[string]stub
	requests []*http.Request
	Default  *stub
	Err      error // returned from RoundTrip when set, simulating network failure
}

type stub struct {
	StatusCode int
	Body       string
}

func NewFakeTransport() *FakeTransport {
	return &FakeTransport{stubs: make(map[string]stub)}
}

// Stub registers a canned response for a method/url pair.
func (ft *FakeTransport) Stub(method, url string, statusCode int, body string) {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	ft.stubs[method+" "+url] = stub{StatusCode: statusCode, Body: body}
}

// StubAll makes every request receive the same response.
func (ft *FakeTransport) StubAll(statusCode int, body string) {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	ft.Default = &stub{StatusCode: statusCode, Body: body}
}

// Requests returns all requests seen so far, in order.
func (ft *FakeTransport) Requests() []*http.Request {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	return append([]*http.Request(nil), ft.requests...)
}

// LastRequest returns the most recent request, or nil.
func (ft *FakeTransport) LastRequest() *http.Request {
	ft.lock.Lock()
	defer ft.lock.Unlock()
	if len(ft.requests) == 0 {
		return nil
	}
	return ft.requests[len(ft.requests)-1]
}

func (ft *FakeTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	ft.lock.Lock()
	ft.requests = append(ft.requests, req)
	s, ok := ft.stubs[req.Method+" "+req.URL.String()]
	if !ok && ft.Default != nil {
		s, ok = *ft.Default, true
	}
	err := ft.Err
	ft.lock.Unlock()

	if err != nil {
		return nil, err
	}
	if !ok {
		s = stub{StatusCode: http.StatusNotFound, Body: "not found"}
	}
	return &http.Response{
		StatusCode: s.StatusCode,
		Body:       io.NopCloser(bytes.NewBufferString(s.Body)),
		Header:     make(http.Header),
		Request:    req,
	}, nil
}
