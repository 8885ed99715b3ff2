package broadcast

import (
	"bytes"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"node_starter/internal/config"
	"node_starter/internal/utils"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"
)

// portRouter redirects requests aimed at a node port to the httptest server standing in
// for that node, recording the original URL first.
type portRouter struct {
	mu       sync.Mutex
	backends map[string]*httptest.Server
	seen     []*url.URL
}

func (p *portRouter) RoundTrip(req *http.Request) (*http.Response, error) {
	orig := *req.URL
	p.mu.Lock()
	p.seen = append(p.seen, &orig)
	ts, ok := p.backends[req.URL.Port()]
	p.mu.Unlock()
	if !ok {
		return nil, errNoNode
	}

	target, _ := url.Parse(ts.URL)
	out := req.Clone(req.Context())
	out.URL.Host = target.Host
	out.Host = target.Host
	return http.DefaultTransport.RoundTrip(out)
}

var errNoNode = errors.New("connection refused")

func (p *portRouter) requests() []*url.URL {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]*url.URL(nil), p.seen...)
}

func okHandler(w http.ResponseWriter, r *http.Request) {
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte("Start time set."))
}

// setupCoordinator wires n nodes; handlers[i] overrides the default 200 handler for node i.
func setupCoordinator(t *testing.T, n int, timeout time.Duration, handlers map[int]http.HandlerFunc) (*Coordinator, *portRouter, *bytes.Buffer) {
	t.Helper()
	cfg := config.DefaultConfig()
	cfg.RequestTimeout = timeout

	router := &portRouter{backends: make(map[string]*httptest.Server)}
	for i := 0; i < n; i++ {
		h := http.HandlerFunc(okHandler)
		if custom, ok := handlers[i]; ok {
			h = custom
		}
		ts := httptest.NewServer(h)
		t.Cleanup(ts.Close)
		router.backends[strconv.Itoa(utils.NodePort(cfg.BasePort, i))] = ts
	}

	var out bytes.Buffer
	logger := utils.NewLogx(&out, "", false)
	t.Cleanup(func() { _ = logger.Close() })

	c := NewCoordinator(cfg, logger)
	c.Client = &http.Client{Timeout: timeout, Transport: router}
	return c, router, &out
}

func TestRunDispatchesOnePerNode(t *testing.T) {
	const n = 6
	c, router, out := setupCoordinator(t, n, 2*time.Second, nil)

	fixed := time.UnixMilli(1_700_000_000_000)
	c.Now = func() time.Time { return fixed }

	summary := c.Run(n)

	reqs := router.requests()
	if len(reqs) != n {
		t.Fatalf("dispatched %d requests, want %d", len(reqs), n)
	}

	wantTime := strconv.FormatInt(fixed.UnixMilli()+5000, 10)
	ports := make(map[string]bool)
	for _, u := range reqs {
		if u.Hostname() != "localhost" || u.Path != "/start" {
			t.Errorf("unexpected target %s", u)
		}
		if got := u.Query().Get("time"); got != wantTime {
			t.Errorf("time = %s, want %s", got, wantTime)
		}
		ports[u.Port()] = true
	}
	for i := 0; i < n; i++ {
		p := strconv.Itoa(8080 + i + 1)
		if !ports[p] {
			t.Errorf("no request to port %s", p)
		}
	}

	if summary.StartTime != fixed.UnixMilli()+5000 {
		t.Errorf("summary start time = %d", summary.StartTime)
	}
	if summary.Succeeded() != n || summary.Failed() != 0 {
		t.Errorf("succeeded=%d failed=%d", summary.Succeeded(), summary.Failed())
	}
	for i, r := range summary.Results {
		if r.Node != i {
			t.Errorf("result %d belongs to node %d", i, r.Node)
		}
	}

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	if len(lines) != n+1 {
		t.Fatalf("got %d output lines, want %d: %q", len(lines), n+1, out.String())
	}
	if lines[len(lines)-1] != "Nodes started" {
		t.Errorf("last line = %q, want completion line", lines[len(lines)-1])
	}
	for i := 0; i < n; i++ {
		if !strings.Contains(out.String(), "Node "+strconv.Itoa(i)+" started\n") {
			t.Errorf("missing success line for node %d", i)
		}
	}
}

func TestStartTimeUsesWallClock(t *testing.T) {
	c, _, _ := setupCoordinator(t, 0, time.Second, nil)

	before := time.Now().UnixMilli()
	got := c.StartTime()
	after := time.Now().UnixMilli()

	if got < before+5000 || got > after+5000 {
		t.Errorf("StartTime() = %d, want within [%d, %d]", got, before+5000, after+5000)
	}
}

func TestRunZeroNodes(t *testing.T) {
	c, router, out := setupCoordinator(t, 0, time.Second, nil)

	summary := c.Run(0)

	if len(router.requests()) != 0 {
		t.Errorf("dispatched requests for zero nodes")
	}
	if len(summary.Results) != 0 {
		t.Errorf("results = %d, want 0", len(summary.Results))
	}
	if out.String() != "Nodes started\n" {
		t.Errorf("output = %q, want only the completion line", out.String())
	}
}

func TestRunReportsFailedNode(t *testing.T) {
	const n = 5
	fail := func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "Start time has already been set.", http.StatusInternalServerError)
	}
	c, _, out := setupCoordinator(t, n, 2*time.Second, map[int]http.HandlerFunc{2: fail})

	summary := c.Run(n)

	text := out.String()
	if !strings.Contains(text, "Error starting node 2: status 500 Internal Server Error: Start time has already been set.\n") {
		t.Errorf("missing failure line for node 2 in %q", text)
	}
	for _, i := range []int{0, 1, 3, 4} {
		if !strings.Contains(text, "Node "+strconv.Itoa(i)+" started\n") {
			t.Errorf("missing success line for node %d", i)
		}
	}
	if strings.Contains(text, "Node 2 started") {
		t.Error("node 2 reported as started")
	}
	if !strings.HasSuffix(text, "Nodes started\n") {
		t.Errorf("completion line not last: %q", text)
	}
	if summary.Failed() != 1 || summary.Results[2].OK() {
		t.Errorf("expected only node 2 to fail, failed=%d", summary.Failed())
	}
}

func TestRunUnreachableNode(t *testing.T) {
	c, router, out := setupCoordinator(t, 2, time.Second, nil)
	delete(router.backends, strconv.Itoa(utils.NodePort(8080, 1)))

	summary := c.Run(2)

	if !strings.Contains(out.String(), "Error starting node 1: ") {
		t.Errorf("missing failure line for node 1 in %q", out.String())
	}
	if !summary.Results[0].OK() || summary.Results[1].OK() {
		t.Errorf("unexpected results: %+v", summary.Results)
	}
	if !strings.HasSuffix(out.String(), "Nodes started\n") {
		t.Errorf("completion line missing: %q", out.String())
	}
}

func TestRunHungNodeTimesOut(t *testing.T) {
	const timeout = 300 * time.Millisecond
	release := make(chan struct{})
	hang := func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-release:
		case <-r.Context().Done():
		}
	}
	c, _, out := setupCoordinator(t, 3, timeout, map[int]http.HandlerFunc{1: hang})
	// registered after the servers, so it runs before their Close
	t.Cleanup(func() { close(release) })

	began := time.Now()
	summary := c.Run(3)
	elapsed := time.Since(began)

	if elapsed < timeout {
		t.Errorf("run finished after %s, before the %s timeout", elapsed, timeout)
	}
	if elapsed > timeout+2*time.Second {
		t.Errorf("run took %s, hung node blocked past its timeout", elapsed)
	}
	if summary.Results[1].OK() {
		t.Error("hung node reported as started")
	}
	if !summary.Results[0].OK() || !summary.Results[2].OK() {
		t.Error("healthy nodes should still succeed")
	}
	if !strings.Contains(out.String(), "Error starting node 1: ") {
		t.Errorf("missing timeout line for node 1 in %q", out.String())
	}
}
