package handler

import (
	"bytes"
	"io"
	"net/http"
	"net/http/httptest"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestImage_MissingFileSkipsUpstream(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	h := newTestHandler(t, testConfig(upstream.URL), nil)
	e := newTestEcho()
	e.GET("/api/image-proxy", h.Image)

	for _, target := range []string{"/api/image-proxy", "/api/image-proxy?imageFile="} {
		t.Run(target, func(t *testing.T) {
			rec := serve(e, http.MethodGet, target, "", "")
			if rec.Code != http.StatusBadRequest {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			if got := rec.Body.String(); got != msgNoImageFile {
				t.Errorf("body = %q, want %q", got, msgNoImageFile)
			}
		})
	}

	if n := hits.Load(); n != 0 {
		t.Errorf("upstream hits = %d, want 0", n)
	}
}

func TestImage_RejectsPathTraversal(t *testing.T) {
	var hits atomic.Int32
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		hits.Add(1)
	}))
	defer upstream.Close()

	h := newTestHandler(t, testConfig(upstream.URL), nil)
	e := newTestEcho()
	e.GET("/api/image-proxy", h.Image)

	rec := serve(e, http.MethodGet, "/api/image-proxy?imageFile=..%2F..%2Fsecret", "", "")
	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusBadRequest)
	}
	if got := rec.Body.String(); got != msgInvalidImage {
		t.Errorf("body = %q, want %q", got, msgInvalidImage)
	}
	if n := hits.Load(); n != 0 {
		t.Errorf("upstream hits = %d, want 0", n)
	}
}

func TestImage_CopiesContentTypeAndBody(t *testing.T) {
	png := bytes.Repeat([]byte{0x89, 'P', 'N', 'G'}, 50000)
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/images/charimage/12345.png" {
			t.Errorf("path = %q, want %q", r.URL.Path, "/images/charimage/12345.png")
		}
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Set-Cookie", "tracking=1")
		_, _ = w.Write(png)
	}))
	defer upstream.Close()

	h := newTestHandler(t, testConfig(upstream.URL), nil)
	e := newTestEcho()
	e.GET("/api/image-proxy", h.Image)

	rec := serve(e, http.MethodGet, "/api/image-proxy?imageFile=12345.png", "", "")

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if ct := rec.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want %q", ct, "image/png")
	}
	if rec.Header().Get("Set-Cookie") != "" {
		t.Error("Set-Cookie should not be relayed")
	}
	if !bytes.Equal(rec.Body.Bytes(), png) {
		t.Errorf("body differs: got %d bytes, want %d", rec.Body.Len(), len(png))
	}
	if !rec.Flushed {
		t.Error("expected the response to be flushed while streaming")
	}
	if v := testutil.ToFloat64(h.metrics.ImageBytes); v != float64(len(png)) {
		t.Errorf("image bytes counter = %v, want %d", v, len(png))
	}
}

func TestImage_UpstreamNotFound(t *testing.T) {
	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		_, _ = w.Write([]byte("<html>404 from nginx</html>"))
	}))
	defer upstream.Close()

	h := newTestHandler(t, testConfig(upstream.URL), nil)
	e := newTestEcho()
	e.GET("/api/image-proxy", h.Image)

	rec := serve(e, http.MethodGet, "/api/image-proxy?imageFile=missing.png", "", "")

	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if got := rec.Body.String(); got != msgImageNotFound {
		t.Errorf("body = %q, want %q", got, msgImageNotFound)
	}
}

// The upstream holds back the tail of the image until the client has
// received the head, which only works if the proxy streams.
func TestImage_StreamsBeforeUpstreamCompletes(t *testing.T) {
	head := bytes.Repeat([]byte{0x89}, 4096)
	tail := bytes.Repeat([]byte{0x50}, 256*1024)

	release := make(chan struct{})
	var once sync.Once
	unblock := func() { once.Do(func() { close(release) }) }

	upstream := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "image/png")
		w.Header().Set("Content-Length", strconv.Itoa(len(head)+len(tail)))
		_, _ = w.Write(head)
		w.(http.Flusher).Flush()
		select {
		case <-release:
		case <-r.Context().Done():
			return
		}
		_, _ = w.Write(tail)
	}))
	defer upstream.Close()

	h := newTestHandler(t, testConfig(upstream.URL), nil)
	e := newTestEcho()
	e.GET("/api/image-proxy", h.Image)
	proxy := httptest.NewServer(e)
	defer proxy.Close()
	defer unblock()

	resp, err := http.Get(proxy.URL + "/api/image-proxy?imageFile=big.png")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want %q", ct, "image/png")
	}

	got := make([]byte, len(head))
	readErr := make(chan error, 1)
	go func() {
		_, err := io.ReadFull(resp.Body, got)
		readErr <- err
	}()

	select {
	case err := <-readErr:
		if err != nil {
			t.Fatalf("reading head: %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("head of the image was not delivered while the upstream was still sending")
	}

	unblock()
	rest, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("reading tail: %v", err)
	}

	want := append(append([]byte{}, head...), tail...)
	if !bytes.Equal(append(got, rest...), want) {
		t.Errorf("body differs: got %d bytes, want %d", len(got)+len(rest), len(want))
	}
}
