package source

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"subpool/internal/fetch"
	"subpool/internal/shared/types"
)

const sampleDoc = `proxies:
  - { name: "A", type: ss, server: 1.2.3.4, port: 443, cipher: aes-256-gcm }
  - { name: "B", type: vmess, server: b.example.com, port: "8443", tls: true }
  - { name: "C", type: ss, port: 1 }
proxy-groups:
  - { name: "Auto", type: select }
`

func TestSubscriptionSource_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleDoc))
	}))
	defer srv.Close()

	s := NewSubscriptionSource("test", srv.URL, fetch.Options{})
	res, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("nodes=%d, want=2", len(res.Nodes))
	}
	if len(res.Dropped) != 1 {
		t.Fatalf("dropped=%d, want=1", len(res.Dropped))
	}

	a := res.Nodes[0]
	if a.Source != "test" {
		t.Fatalf("source=%q", a.Source)
	}
	if a.ID != "A@1.2.3.4:443" {
		t.Fatalf("id=%q", a.ID)
	}
	if a.Record.TypeName() != "ss" {
		t.Fatalf("type=%q", a.Record.TypeName())
	}
}

func TestSubscriptionSource_TransportErrorPropagates(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "nope", http.StatusForbidden)
	}))
	defer srv.Close()

	s := NewSubscriptionSource("test", srv.URL, fetch.Options{})
	if _, err := s.Fetch(context.Background()); err == nil {
		t.Fatal("expected transport error")
	}
}

func TestHTMLPageSource_Fetch(t *testing.T) {
	page := `<html><body>
<h1>daily nodes</h1>
<pre>` + sampleDoc + `</pre>
<pre>unrelated text</pre>
</body></html>`
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/html")
		w.Write([]byte(page))
	}))
	defer srv.Close()

	s := NewHTMLPageSource("share", srv.URL, "", 0)
	res, err := s.Fetch(context.Background())
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(res.Nodes) != 2 {
		t.Fatalf("nodes=%d, want=2", len(res.Nodes))
	}
	if res.Nodes[1].Record.Name() != "B" {
		t.Fatalf("name=%q, want=B", res.Nodes[1].Record.Name())
	}
}

func TestNew_UnknownType(t *testing.T) {
	profile := &types.SourceProfile{Name: "x", Type: "bogus", URL: "https://example.com"}
	if _, err := New(profile, fetch.Options{}); err == nil {
		t.Fatal("expected error for unknown source type")
	}
}
