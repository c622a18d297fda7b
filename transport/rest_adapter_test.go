package transport

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	goerrors "github.com/goliatone/go-errors"
	"github.com/goliatone/go-social-links/core"
)

func TestRESTAdapter_MergesQueryAndHeaders(t *testing.T) {
	var gotQuery, gotAuth, gotAccept, gotBody string
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotQuery = r.URL.RawQuery
		gotAuth = r.Header.Get("Authorization")
		gotAccept = r.Header.Get("Accept")
		body, _ := io.ReadAll(r.Body)
		gotBody = string(body)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		_, _ = w.Write([]byte(`{"ok":true}`))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.DefaultHeaders["Accept"] = "application/json"

	res, err := adapter.Do(context.Background(), Request{
		Method:  "post",
		URL:     server.URL + "/v2/user/info/?fields=open_id",
		Query:   map[string]string{"max_count": "20"},
		Headers: map[string]string{"Authorization": "Bearer token"},
		Body:    []byte(`{"cursor":0}`),
	})
	if err != nil {
		t.Fatalf("do: %v", err)
	}
	if res.StatusCode != http.StatusCreated || !res.Success() {
		t.Fatalf("expected 201 success, got %d", res.StatusCode)
	}
	if !strings.Contains(gotQuery, "fields=open_id") || !strings.Contains(gotQuery, "max_count=20") {
		t.Fatalf("expected merged query, got %q", gotQuery)
	}
	if gotAuth != "Bearer token" || gotAccept != "application/json" {
		t.Fatalf("expected headers to be applied, got auth=%q accept=%q", gotAuth, gotAccept)
	}
	if gotBody != `{"cursor":0}` {
		t.Fatalf("expected body to be forwarded, got %q", gotBody)
	}
	if res.Headers["Content-Type"] != "application/json" {
		t.Fatalf("expected flattened headers, got %#v", res.Headers)
	}
}

func TestRESTAdapter_ResponseLimitReturnsRichError(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("12345"))
	}))
	defer server.Close()

	adapter := NewRESTAdapter(server.Client())
	adapter.MaxResponseBodyBytes = 4

	_, err := adapter.Do(context.Background(), Request{Method: http.MethodGet, URL: server.URL})
	if err == nil {
		t.Fatalf("expected response body limit error")
	}

	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryExternal {
		t.Fatalf("expected external category, got %q", rich.Category)
	}
	if rich.TextCode != core.ErrorTransportFailure {
		t.Fatalf("expected %q text code, got %q", core.ErrorTransportFailure, rich.TextCode)
	}
	if rich.Code != http.StatusBadGateway {
		t.Fatalf("expected %d code, got %d", http.StatusBadGateway, rich.Code)
	}
}

func TestRESTAdapter_TimeoutIsTransportFailure(t *testing.T) {
	release := make(chan struct{})
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}))
	defer server.Close()
	defer close(release)

	adapter := NewRESTAdapter(server.Client())
	_, err := adapter.Do(context.Background(), Request{
		URL:     server.URL + "/slow?access_token=leak",
		Timeout: 20 * time.Millisecond,
	})
	if !core.IsTransportFailure(err) {
		t.Fatalf("expected transport failure, got %v", err)
	}
	var rich *goerrors.Error
	if goerrors.As(err, &rich) {
		if url, _ := rich.Metadata["url"].(string); strings.Contains(url, "leak") {
			t.Fatalf("expected url metadata without query, got %q", url)
		}
	}
}

func TestRESTAdapter_NilClientReturnsInternalError(t *testing.T) {
	var adapter *RESTAdapter
	_, err := adapter.Do(context.Background(), Request{URL: "https://example.com"})
	var rich *goerrors.Error
	if !goerrors.As(err, &rich) {
		t.Fatalf("expected go-errors envelope, got %T", err)
	}
	if rich.Category != goerrors.CategoryInternal || rich.TextCode != core.ErrorInternal {
		t.Fatalf("expected internal error, got %q %q", rich.Category, rich.TextCode)
	}
}

func TestStatusError_MapsStatusToCategory(t *testing.T) {
	cases := []struct {
		status   int
		category goerrors.Category
	}{
		{http.StatusUnauthorized, goerrors.CategoryAuth},
		{http.StatusForbidden, goerrors.CategoryAuthz},
		{http.StatusNotFound, goerrors.CategoryNotFound},
		{http.StatusTooManyRequests, goerrors.CategoryRateLimit},
		{http.StatusInternalServerError, goerrors.CategoryExternal},
	}
	for _, tc := range cases {
		err := StatusError(Response{StatusCode: tc.status, Body: []byte(`{"error":"x"}`)}, "twitter: fetch profile", nil)
		var rich *goerrors.Error
		if !goerrors.As(err, &rich) {
			t.Fatalf("expected go-errors envelope for %d", tc.status)
		}
		if rich.Category != tc.category {
			t.Fatalf("status %d: expected %q, got %q", tc.status, tc.category, rich.Category)
		}
		if !core.IsTransportFailure(err) {
			t.Fatalf("status %d: expected transport failure text code", tc.status)
		}
		if rich.Metadata["status_code"] != tc.status {
			t.Fatalf("status %d: expected status metadata, got %#v", tc.status, rich.Metadata)
		}
	}
}
