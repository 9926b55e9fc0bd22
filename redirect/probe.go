package redirect

import (
	"context"
	"io"
	"net/http"
	"time"
)

// ProbeResult is the part of a response the resolver cares about.
type ProbeResult struct {
	StatusCode int
	Location   string
}

// Prober issues a single request without following redirects.
type Prober interface {
	Probe(ctx context.Context, method, rawURL string) (ProbeResult, error)
}

const userAgent = "risk-vetting-engine/1.0 (+redirect-probe)"

// HTTPProbe is the net/http implementation of Prober.
type HTTPProbe struct {
	client  *http.Client
	timeout time.Duration
}

func NewHTTPProbe(timeout time.Duration) *HTTPProbe {
	if timeout <= 0 {
		timeout = DefaultHopTimeout
	}
	return &HTTPProbe{
		client: &http.Client{
			Transport: &http.Transport{
				Proxy:                 http.ProxyFromEnvironment,
				MaxIdleConns:          20,
				IdleConnTimeout:       30 * time.Second,
				TLSHandshakeTimeout:   timeout,
				ResponseHeaderTimeout: timeout,
			},
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
		timeout: timeout,
	}
}

func (p *HTTPProbe) Probe(ctx context.Context, method, rawURL string) (ProbeResult, error) {
	ctx, cancel := context.WithTimeout(ctx, p.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, method, rawURL, nil)
	if err != nil {
		return ProbeResult{}, err
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := p.client.Do(req)
	if err != nil {
		return ProbeResult{}, err
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, io.LimitReader(resp.Body, 64<<10))

	return ProbeResult{
		StatusCode: resp.StatusCode,
		Location:   resp.Header.Get("Location"),
	}, nil
}
