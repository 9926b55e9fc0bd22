package dnsbl_test

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/miekg/dns"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"risk-vetting-engine/risk"
	"risk-vetting-engine/sources/dnsbl"
)

var records = map[string]string{
	"evil.example.dbl.test.":      "127.0.1.4",
	"evil.example.uribl.test.":    "127.0.0.2",
	"odd.example.dbl.test.":       "10.1.1.1",
	"stale.example.dbl.test.":     "127.0.0.2",
	"refused.example.uribl.test.": "127.0.0.1",
	"limited.example.dbl.test.":   "127.255.255.254",
	"www.evil.example.":           "192.0.2.10",
	"10.2.0.192.zen.test.":        "127.0.0.4",
	"good.example.":               "192.0.2.20",
	"20.2.0.192.zen.test.":        "",
	"clean.example.dbl.test.":     "",
	"1.113.51.198.zen.test.":      "127.0.0.10",
	"2.113.51.198.zen.test.":      "127.255.255.252",
}

func startServer(t *testing.T) string {
	t.Helper()
	pc, err := net.ListenPacket("udp", "127.0.0.1:0")
	require.NoError(t, err)

	handler := dns.HandlerFunc(func(w dns.ResponseWriter, r *dns.Msg) {
		m := new(dns.Msg)
		name := r.Question[0].Name
		addr, ok := records[name]
		if !ok || addr == "" {
			m.SetRcode(r, dns.RcodeNameError)
			_ = w.WriteMsg(m)
			return
		}
		m.SetReply(r)
		rr, err := dns.NewRR(name + " 60 IN A " + addr)
		if err == nil {
			m.Answer = append(m.Answer, rr)
		}
		_ = w.WriteMsg(m)
	})

	started := make(chan struct{})
	srv := &dns.Server{PacketConn: pc, Handler: handler, NotifyStartedFunc: func() { close(started) }}
	go func() { _ = srv.ActivateAndServe() }()
	<-started
	t.Cleanup(func() { _ = srv.Shutdown() })
	return pc.LocalAddr().String()
}

func TestFindMatches(t *testing.T) {
	addr := startServer(t)
	c := dnsbl.New(addr, []string{"dbl.test", "uribl.test"}, []string{"zen.test"}, time.Second, nil)
	ctx := context.Background()

	tests := []struct {
		name   string
		url    string
		labels []string
	}{
		{"domain and ip listed", "https://www.evil.example/login", []string{"dnsbl:dbl.test (high)", "dnsbl:uribl.test (high)", "dnsbl:zen.test (high)"}},
		{"non-loopback answer ignored", "https://odd.example", nil},
		{"domain blocklist ignores 127.0.0.x", "https://stale.example", nil},
		{"refused query is not a listing", "https://refused.example/", nil},
		{"spamhaus error code is not a listing", "https://limited.example", nil},
		{"clean", "https://good.example", nil},
		{"ip literal", "http://198.51.113.1/x", []string{"dnsbl:zen.test (high)"}},
		{"ip zone error code", "http://198.51.113.2/x", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := c.FindMatches(ctx, risk.KindURL, tt.url)
			require.NoError(t, err)
			var labels []string
			for _, m := range got {
				labels = append(labels, m.Label)
				assert.Equal(t, risk.High, risk.LevelFromLabel(m.Label))
			}
			assert.Equal(t, tt.labels, labels)
		})
	}
}

func TestOtherKindsNeverMatch(t *testing.T) {
	c := dnsbl.New("127.0.0.1:1", nil, nil, time.Second, nil)
	got, err := c.FindMatches(context.Background(), risk.KindPhone, "0812345678")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestUnreachableResolverIsNoMatch(t *testing.T) {
	c := dnsbl.New("127.0.0.1:1", []string{"dbl.test"}, []string{}, 100*time.Millisecond, nil)
	got, err := c.FindMatches(context.Background(), risk.KindURL, "https://evil.example")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestParseZonesAndResolverAddr(t *testing.T) {
	assert.Equal(t, []string{"a.test", "b.test"}, dnsbl.ParseZones(" a.test., ,b.test"))
	assert.Nil(t, dnsbl.ParseZones(""))
	assert.Equal(t, "8.8.8.8:53", dnsbl.ResolverAddr("8.8.8.8"))
	assert.Equal(t, "127.0.0.1:5353", dnsbl.ResolverAddr("127.0.0.1:5353"))
}
