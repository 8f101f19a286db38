package fetch

import (
	"context"
	"net/http/httptest"
	"net/http"
	"strings"
	"testing"
)

func TestText_Success(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("User-Agent") == "" {
			t.Error("expected a User-Agent header")
		}
		w.Write([]byte("proxies:\n"))
	}))
	defer srv.Close()

	text, err := Text(context.Background(), srv.URL, Options{})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if text != "proxies:\n" {
		t.Fatalf("text=%q", text)
	}
}

func TestText_Non2xx(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "gone", http.StatusGone)
	}))
	defer srv.Close()

	if _, err := Text(context.Background(), srv.URL, Options{}); err == nil {
		t.Fatal("expected error for non-2xx response")
	} else if !strings.Contains(err.Error(), "410") {
		t.Fatalf("error should mention status code: %v", err)
	}
}

func TestText_TooLarge(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write(make([]byte, 2048))
	}))
	defer srv.Close()

	if _, err := Text(context.Background(), srv.URL, Options{MaxBytes: 1024}); err == nil {
		t.Fatal("expected error for oversized document")
	}
}

func TestText_InvalidUTF8(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte{0xff, 0xfe, 0xfd})
	}))
	defer srv.Close()

	if _, err := Text(context.Background(), srv.URL, Options{}); err == nil {
		t.Fatal("expected error for invalid UTF-8")
	}
}

func TestText_BadScheme(t *testing.T) {
	if _, err := Text(context.Background(), "ftp://example.com/sub", Options{}); err == nil {
		t.Fatal("expected error for non-http scheme")
	}
}
