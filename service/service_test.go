//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package service

import (
	"bytes"
	"context"
	stdtls "crypto/tls"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/session"
)

var testLimits = session.Limits{
	MaxSent: 4096,
	MaxRecv: 16384,
}

type clock struct {
	mu  sync.Mutex
	now time.Time
}

func (c *clock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *clock) Advance(d time.Duration) {
	c.mu.Lock()
	c.now = c.now.Add(d)
	c.mu.Unlock()
}

func newService(t *testing.T, cfg *session.Config, svcCfg *Config) (
	*Server, *httptest.Server) {

	key, err := pki.GenerateKey()
	if err != nil {
		t.Fatal(err)
	}
	cfg.Key = key
	cfg.MaxSent = testLimits.MaxSent
	cfg.MaxRecv = testLimits.MaxRecv

	notary, err := session.NewNotary(cfg)
	if err != nil {
		t.Fatal(err)
	}
	srv := NewServer(notary, svcCfg)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return srv, ts
}

var reserveTests = []struct {
	method string
	body   string
	status int
}{
	{http.MethodPost, `{"max_sent":4096,"max_recv":16384}`, http.StatusOK},
	{http.MethodPost, `{"max_sent":100,"max_recv":100}`, http.StatusOK},
	{http.MethodPost, `{"max_sent":4097,"max_recv":16384}`, http.StatusForbidden},
	{http.MethodPost, `{"max_sent":`, http.StatusBadRequest},
	{http.MethodGet, ``, http.StatusMethodNotAllowed},
}

func TestReserve(t *testing.T) {
	srv, ts := newService(t, &session.Config{}, nil)

	var ok int
	for idx, test := range reserveTests {
		req, err := http.NewRequest(test.method, ts.URL+"/session",
			strings.NewReader(test.body))
		if err != nil {
			t.Fatal(err)
		}
		resp, err := http.DefaultClient.Do(req)
		if err != nil {
			t.Fatal(err)
		}
		resp.Body.Close()
		if resp.StatusCode != test.status {
			t.Errorf("test %d: status %d, expected %d", idx, resp.StatusCode,
				test.status)
		}
		if test.status == http.StatusOK {
			ok++
		}
	}
	if srv.Reservations() != ok {
		t.Errorf("expected %d reservations, got %d", ok, srv.Reservations())
	}

	_, err := Reserve(context.Background(), ts.URL, session.Limits{
		MaxSent: testLimits.MaxSent,
		MaxRecv: testLimits.MaxRecv + 1,
	})
	if control.Classify(err) != control.LimitsExceeded {
		t.Errorf("expected LimitsExceeded, got %v", err)
	}
}

func TestExpiry(t *testing.T) {
	c := &clock{
		now: time.Now(),
	}
	srv, ts := newService(t, &session.Config{}, &Config{
		Expiry: time.Minute,
		Time:   c.Now,
	})

	id, err := Reserve(context.Background(), ts.URL, testLimits)
	if err != nil {
		t.Fatal(err)
	}
	if srv.Reservations() != 1 {
		t.Fatalf("expected 1 reservation, got %d", srv.Reservations())
	}
	c.Advance(2 * time.Minute)
	if srv.Reservations() != 0 {
		t.Errorf("reservation did not expire")
	}

	u := "ws" + strings.TrimPrefix(ts.URL, "http") + "/notarize?session_id=" + id
	_, resp, err := websocket.DefaultDialer.Dial(u, nil)
	if err == nil {
		t.Fatalf("expired reservation accepted")
	}
	if resp == nil || resp.StatusCode != http.StatusNotFound {
		t.Errorf("expected 404, got %v", resp)
	}
}

func TestConn(t *testing.T) {
	upgrader := websocket.Upgrader{}
	ts := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			ws, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				return
			}
			conn := NewConn(ws)
			defer conn.Close()
			io.Copy(conn, conn)
		}))
	defer ts.Close()

	ws, _, err := websocket.DefaultDialer.Dial(
		"ws"+strings.TrimPrefix(ts.URL, "http"), nil)
	if err != nil {
		t.Fatal(err)
	}
	conn := NewConn(ws)
	defer conn.Close()

	msg := []byte("Hello, world!")
	for i := 0; i < 3; i++ {
		if _, err := conn.Write(msg); err != nil {
			t.Fatal(err)
		}
	}
	buf := make([]byte, 3*len(msg))
	if _, err := io.ReadFull(conn, buf); err != nil {
		t.Fatal(err)
	}
	if !bytes.Equal(buf, bytes.Repeat(msg, 3)) {
		t.Errorf("echo mismatch: %q", buf)
	}

	if err := conn.SetDeadline(time.Now().Add(50 * time.Millisecond)); err != nil {
		t.Fatal(err)
	}
	if _, err := conn.Read(buf); err == nil {
		t.Errorf("read did not time out")
	}
}

func TestNotarize(t *testing.T) {
	ca, err := pki.NewCA("Test")
	if err != nil {
		t.Fatal(err)
	}
	leaf, err := ca.Issue("example.com")
	if err != nil {
		t.Fatal(err)
	}
	cConn, sConn := net.Pipe()
	defer cConn.Close()
	defer sConn.Close()

	server := stdtls.Server(sConn, &stdtls.Config{
		Certificates: []stdtls.Certificate{{
			Certificate: leaf.Chain,
			PrivateKey:  leaf.Key,
		}},
		MinVersion: stdtls.VersionTLS12,
		MaxVersion: stdtls.VersionTLS12,
	})
	go io.Copy(server, server)

	srv, ts := newService(t, &session.Config{
		Roots: ca.Pool(),
	}, nil)

	ctx := context.Background()
	notary, err := Dial(ctx, ts.URL, testLimits)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer notary.Close()
	if srv.Reservations() != 0 {
		t.Errorf("reservation was not consumed")
	}

	s, err := session.OpenSession(ctx, cConn, notary, "example.com",
		testLimits, &session.Config{
			Roots:     ca.Pool(),
			NotaryKey: srv.notary.PublicKey(),
		})
	if err != nil {
		t.Fatalf("OpenSession: %v", err)
	}
	msg := []byte("ping")
	if err := s.Send(msg); err != nil {
		t.Fatalf("Send: %v", err)
	}
	data, err := s.Recv()
	if err != nil {
		t.Fatalf("Recv: %v", err)
	}
	if !bytes.Equal(data, msg) {
		t.Errorf("Recv: got %q, expected %q", data, msg)
	}
	att, err := s.Finalize()
	if err != nil {
		t.Fatalf("Finalize: %v", err)
	}
	if err := att.Verify(srv.notary.PublicKey()); err != nil {
		t.Errorf("Verify: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}
