package render

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"
)

func TestShouldBlock(t *testing.T) {
	blocked := blockSet([]string{"Images", " fonts ", "xhr"})
	tests := []struct {
		resType string
		want    bool
	}{
		{"Image", true},
		{"Font", true},
		{"XHR", true},
		{"Stylesheet", false},
		{"Document", false},
		{"Script", false},
	}
	for _, tt := range tests {
		if got := shouldBlock(blocked, tt.resType); got != tt.want {
			t.Errorf("shouldBlock(%q) = %v, want %v", tt.resType, got, tt.want)
		}
	}
}

func TestDefaults(t *testing.T) {
	r := New(Config{}, nil)
	if r.cfg.Timeout != 30*time.Second {
		t.Fatalf("timeout = %v, want 30s", r.cfg.Timeout)
	}
}

func TestRenderAfterClose(t *testing.T) {
	r := New(Config{}, nil)
	if err := r.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}
	if _, err := r.Render(context.Background(), "http://127.0.0.1/"); !errors.Is(err, ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestSleepHonoursContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := sleep(ctx, time.Hour); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

// TestRenderChrome needs a local Chrome; set SURFACEKEEPER_CHROME=1 to run it.
func TestRenderChrome(t *testing.T) {
	if os.Getenv("SURFACEKEEPER_CHROME") != "1" {
		t.Skip("SURFACEKEEPER_CHROME not set")
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		fmt.Fprint(w, `<html><body><div id="grid"></div><script>
document.getElementById("grid").innerHTML = '<a data-sku="Y0385" href="/p/y0385">Fine Oak</a>';
</script></body></html>`)
	}))
	defer srv.Close()

	r := New(Config{BlockResources: []string{"images"}}, nil)
	defer r.Close()

	html, err := r.Render(context.Background(), srv.URL)
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(string(html), `data-sku="Y0385"`) {
		t.Fatalf("script-built tile missing from DOM: %s", html)
	}
}
