//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"context"
	"crypto/ecdsa"
	"flag"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/service"
	"github.com/markkurossi/mpctls/session"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

func main() {
	instances := flag.Int("n", 16, "number of concurrent sessions")
	notaryURL := flag.String("notary", "http://127.0.0.1:7047", "notary URL")
	domain := flag.String("domain", "discord.com", "server domain")
	port := flag.Int("port", 443, "server port")
	method := flag.String("method", "HEAD",
		"HTTP request method; GET responses are requested with a Range header")
	path := flag.String("path", "/", "HTTP request path")
	maxSent := flag.Uint("max-sent", 4096, "maximum bytes sent")
	maxRecv := flag.Uint("max-recv", 16384, "maximum bytes received")
	timeout := flag.Duration("timeout", 2*time.Minute, "session timeout")
	notaryKey := flag.String("notary-key", "",
		"notary public key file for attestation verification")
	rootsFile := flag.String("roots", "",
		"trusted root certificates file (default system roots)")
	debug := flag.Bool("d", false, "debug logging")
	flag.Parse()

	log.SetFlags(0)

	var logger *zap.Logger
	var err error
	if *debug {
		logger, err = zap.NewDevelopment()
	} else {
		logger, err = zap.NewProduction()
	}
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	cfg := &session.Config{
		Log: logger,
	}
	if len(*rootsFile) > 0 {
		cfg.Roots, err = pki.LoadPool(*rootsFile)
		if err != nil {
			log.Fatal(err)
		}
	}
	if len(*notaryKey) > 0 {
		cfg.NotaryKey, err = loadPublicKey(*notaryKey)
		if err != nil {
			log.Fatal(err)
		}
	}
	limits := session.Limits{
		MaxSent: uint32(*maxSent),
		MaxRecv: uint32(*maxRecv),
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	var g errgroup.Group
	for i := 0; i < *instances; i++ {
		g.Go(func() error {
			req := &request{
				method: *method,
				path:   *path,
				domain: *domain,
				port:   *port,
			}
			att, err := notarize(ctx, *notaryURL, req, limits, cfg)
			if err != nil {
				return fmt.Errorf("instance %d: %w", i, err)
			}
			fmt.Printf("%d: %v\n", i, att)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Print(err)
		os.Exit(1)
	}
}

type request struct {
	method string
	path   string
	domain string
	port   int
}

// rangeHeadroom is the part of the receive limit reserved for the
// response headers of a ranged GET.
const rangeHeadroom = 4096

// Marshal creates the HTTP request. The response must fit into the
// receive limit, otherwise the session aborts with LimitsExceeded: GET
// requests ask for at most maxRecv-rangeHeadroom bytes of content.
func (r *request) Marshal(maxRecv uint32) []byte {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s HTTP/1.1\r\nHost: %s\r\n", r.method, r.path,
		r.domain)
	if r.method == "GET" {
		n := 1
		if maxRecv > rangeHeadroom {
			n = int(maxRecv - rangeHeadroom)
		}
		fmt.Fprintf(&b, "Range: bytes=0-%d\r\n", n-1)
	}
	b.WriteString("Connection: close\r\n\r\n")
	return []byte(b.String())
}

func notarize(ctx context.Context, notaryURL string, req *request,
	limits session.Limits, cfg *session.Config) (*session.Attestation, error) {

	domain := req.domain
	port := req.port

	notary, err := service.Dial(ctx, notaryURL, limits)
	if err != nil {
		return nil, err
	}
	defer notary.Close()

	var dialer net.Dialer
	server, err := dialer.DialContext(ctx, "tcp",
		net.JoinHostPort(domain, fmt.Sprintf("%d", port)))
	if err != nil {
		return nil, err
	}
	defer server.Close()

	s, err := session.OpenSession(ctx, server, notary, domain, limits, cfg)
	if err != nil {
		return nil, err
	}
	defer s.Close()

	if err := s.Send(req.Marshal(limits.MaxRecv)); err != nil {
		return nil, err
	}

	// Connection: close makes the server close the connection after
	// the response.
	var received uint64
	for received < uint64(limits.MaxRecv) {
		data, err := s.Recv()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, err
		}
		received += uint64(len(data))
		if line, _, ok := strings.Cut(string(data), "\r\n"); ok &&
			strings.HasPrefix(line, "HTTP/") {
			cfg.Log.Debug("response", zap.String("status", line))
		}
	}
	return s.Finalize()
}

func loadPublicKey(path string) (*ecdsa.PublicKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	return pki.ParsePublicKey(data)
}
