package devkit

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/goliatone/go-social-links/transport"
)

type TransportScript struct {
	Response transport.Response
	Err      error
}

// FakeTransportAdapter replays scripted responses in order and records every
// request. Once the script runs out the last entry repeats.
type FakeTransportAdapter struct {
	mu       sync.Mutex
	scripts  []TransportScript
	requests []transport.Request
}

func NewFakeTransportAdapter(scripts ...TransportScript) *FakeTransportAdapter {
	return &FakeTransportAdapter{
		scripts: append([]TransportScript(nil), scripts...),
	}
}

func (a *FakeTransportAdapter) Do(_ context.Context, req transport.Request) (transport.Response, error) {
	if a == nil {
		return transport.Response{}, fmt.Errorf("devkit: fake transport adapter is nil")
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	a.requests = append(a.requests, cloneRequest(req))
	index := len(a.requests) - 1
	if index < len(a.scripts) {
		script := a.scripts[index]
		return cloneResponse(script.Response), script.Err
	}
	if len(a.scripts) > 0 {
		last := a.scripts[len(a.scripts)-1]
		return cloneResponse(last.Response), last.Err
	}
	return transport.Response{
		StatusCode: 200,
		Headers:    map[string]string{},
		Body:       []byte("{}"),
	}, nil
}

func (a *FakeTransportAdapter) Requests() []transport.Request {
	if a == nil {
		return nil
	}
	a.mu.Lock()
	defer a.mu.Unlock()

	out := make([]transport.Request, 0, len(a.requests))
	for _, item := range a.requests {
		out = append(out, cloneRequest(item))
	}
	return out
}

// LastRequest returns the most recent request, or false when none was made.
func (a *FakeTransportAdapter) LastRequest() (transport.Request, bool) {
	requests := a.Requests()
	if len(requests) == 0 {
		return transport.Request{}, false
	}
	return requests[len(requests)-1], true
}

// PathOf returns the request URL without scheme, host and query.
func PathOf(req transport.Request) string {
	value := req.URL
	if index := strings.Index(value, "://"); index >= 0 {
		value = value[index+3:]
		if slash := strings.Index(value, "/"); slash >= 0 {
			value = value[slash:]
		} else {
			value = "/"
		}
	}
	if index := strings.Index(value, "?"); index >= 0 {
		value = value[:index]
	}
	return value
}

func cloneRequest(in transport.Request) transport.Request {
	out := transport.Request{
		Method:               in.Method,
		URL:                  in.URL,
		Headers:              map[string]string{},
		Query:                map[string]string{},
		Body:                 append([]byte(nil), in.Body...),
		Timeout:              in.Timeout,
		MaxResponseBodyBytes: in.MaxResponseBodyBytes,
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Query {
		out.Query[key] = value
	}
	return out
}

func cloneResponse(in transport.Response) transport.Response {
	out := transport.Response{
		StatusCode: in.StatusCode,
		Headers:    map[string]string{},
		Body:       append([]byte(nil), in.Body...),
		Metadata:   map[string]any{},
	}
	for key, value := range in.Headers {
		out.Headers[key] = value
	}
	for key, value := range in.Metadata {
		out.Metadata[key] = value
	}
	return out
}

var _ transport.Adapter = (*FakeTransportAdapter)(nil)
