package redirect_test

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/redirect"
)

// fakeProbe answers from a static table keyed by "METHOD url".
type fakeProbe struct {
	mu      sync.Mutex
	answers map[string]redirect.ProbeResult
	fail    map[string]bool
	calls   []string
}

func (f *fakeProbe) Probe(_ context.Context, method, rawURL string) (redirect.ProbeResult, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	key := method + " " + rawURL
	f.calls = append(f.calls, key)
	if f.fail[key] {
		return redirect.ProbeResult{}, errors.New("connection reset")
	}
	return f.answers[key], nil
}

func moved(loc string) redirect.ProbeResult {
	return redirect.ProbeResult{StatusCode: http.StatusFound, Location: loc}
}

func TestResolveFollowsChain(t *testing.T) {
	p := &fakeProbe{answers: map[string]redirect.ProbeResult{
		"HEAD https://a.test/":  moved("https://b.test/x"),
		"HEAD https://b.test/x": moved("/y"),
		"HEAD https://b.test/y": {StatusCode: http.StatusOK},
	}}
	res, err := redirect.NewResolver(p, 8, nil).Resolve(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/", "https://b.test/x", "https://b.test/y"}, res.Chain)
	assert.Equal(t, "https://b.test/y", res.FinalURL)
	assert.Equal(t, redirect.StopFinal, res.Stop)
	assert.Equal(t, 2, res.Hops())
}

func TestResolveFallsBackToGET(t *testing.T) {
	p := &fakeProbe{
		answers: map[string]redirect.ProbeResult{
			"HEAD https://a.test/": {StatusCode: http.StatusMethodNotAllowed},
			"GET https://a.test/":  moved("https://b.test/"),
		},
		fail: map[string]bool{"HEAD https://b.test/": true, "GET https://b.test/": true},
	}
	res, err := redirect.NewResolver(p, 8, nil).Resolve(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, "https://b.test/", res.FinalURL)
	assert.Contains(t, p.calls, "GET https://a.test/")
}

func TestResolveStopsOnCycle(t *testing.T) {
	p := &fakeProbe{answers: map[string]redirect.ProbeResult{
		"HEAD https://a.test/": moved("https://b.test/"),
		"HEAD https://b.test/": moved("https://a.test/"),
	}}
	res, err := redirect.NewResolver(p, 8, nil).Resolve(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/", "https://b.test/"}, res.Chain)
	assert.Equal(t, "https://a.test/", res.FinalURL)
	assert.Equal(t, redirect.StopCycle, res.Stop)
}

func TestResolveRespectsHopBudget(t *testing.T) {
	answers := map[string]redirect.ProbeResult{}
	for i := 0; i < 20; i++ {
		answers[fmt.Sprintf("HEAD https://h%d.test/", i)] = moved(fmt.Sprintf("https://h%d.test/", i+1))
	}
	for _, maxHops := range []int{1, 3, 8} {
		res, err := redirect.NewResolver(&fakeProbe{answers: answers}, maxHops, nil).
			Resolve(context.Background(), "https://h0.test/")
		require.NoError(t, err)
		assert.Len(t, res.Chain, maxHops+1)
		assert.Equal(t, redirect.StopBudget, res.Stop)
		assert.Equal(t, res.Chain[len(res.Chain)-1], res.FinalURL)

		seen := map[string]bool{}
		for _, u := range res.Chain {
			assert.False(t, seen[u], "duplicate %s", u)
			seen[u] = true
		}
	}
}

func TestResolveSkipsNonHTTP(t *testing.T) {
	p := &fakeProbe{}
	res, err := redirect.NewResolver(p, 8, nil).Resolve(context.Background(), "hello")
	require.NoError(t, err)
	assert.Equal(t, "hello", res.FinalURL)
	assert.Equal(t, redirect.StopNotHTTP, res.Stop)
	assert.Empty(t, p.calls)
}

func TestResolveIgnoresUnusableLocation(t *testing.T) {
	p := &fakeProbe{answers: map[string]redirect.ProbeResult{
		"HEAD https://a.test/": {StatusCode: http.StatusMovedPermanently},
		"GET https://a.test/":  {StatusCode: http.StatusOK, Location: "https://b.test/"},
	}}
	res, err := redirect.NewResolver(p, 8, nil).Resolve(context.Background(), "https://a.test/")
	require.NoError(t, err)
	assert.Equal(t, []string{"https://a.test/"}, res.Chain)
}

func TestResolveCancelled(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := redirect.NewResolver(&fakeProbe{}, 8, nil).Resolve(ctx, "https://a.test/")
	assert.ErrorIs(t, err, context.Canceled)
}

// stallProbe answers known keys at once and hangs on everything else until ctx ends.
type stallProbe struct {
	answers map[string]redirect.ProbeResult
}

func (s stallProbe) Probe(ctx context.Context, method, rawURL string) (redirect.ProbeResult, error) {
	if pr, ok := s.answers[method+" "+rawURL]; ok {
		return pr, nil
	}
	<-ctx.Done()
	return redirect.ProbeResult{}, ctx.Err()
}

func TestResolveStopsAtTotalTimeout(t *testing.T) {
	tests := []struct {
		name    string
		answers map[string]redirect.ProbeResult
		chain   []string
	}{
		{"first hop hangs", nil, []string{"https://a.test/"}},
		{"later hop hangs", map[string]redirect.ProbeResult{
			"HEAD https://a.test/": moved("https://b.test/"),
		}, []string{"https://a.test/", "https://b.test/"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := redirect.NewResolver(stallProbe{answers: tt.answers}, 8, nil, redirect.WithTotalTimeout(50*time.Millisecond))
			start := time.Now()
			res, err := r.Resolve(context.Background(), "https://a.test/")
			require.NoError(t, err)
			assert.Less(t, time.Since(start), 2*time.Second)
			assert.Equal(t, redirect.StopBudget, res.Stop)
			assert.Equal(t, tt.chain, res.Chain)
			assert.Equal(t, tt.chain[len(tt.chain)-1], res.FinalURL)
		})
	}
}

func TestResolveCallerDeadlineIsAnError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	_, err := redirect.NewResolver(stallProbe{}, 8, nil).Resolve(ctx, "https://a.test/")
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestHTTPProbeDoesNotFollowRedirects(t *testing.T) {
	var hits int
	var mu sync.Mutex
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		hits++
		mu.Unlock()
		if r.URL.Path == "/start" {
			http.Redirect(w, r, "/next", http.StatusFound)
			return
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	pr, err := redirect.NewHTTPProbe(2*time.Second).Probe(context.Background(), http.MethodGet, srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, http.StatusFound, pr.StatusCode)
	assert.Equal(t, "/next", pr.Location)
	assert.Equal(t, 1, hits)

	res, err := redirect.NewResolver(redirect.NewHTTPProbe(2*time.Second), 8, nil).
		Resolve(context.Background(), srv.URL+"/start")
	require.NoError(t, err)
	assert.Equal(t, []string{srv.URL + "/start", srv.URL + "/next"}, res.Chain)
}
