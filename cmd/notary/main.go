//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"crypto/x509"
	"flag"
	"fmt"
	"log"
	"net/http"
	"os"
	"time"

	"github.com/markkurossi/mpctls/pki"
	"github.com/markkurossi/mpctls/service"
	"github.com/markkurossi/mpctls/session"
	"go.uber.org/zap"
)

func main() {
	cfg := loadConfig()

	addr := flag.String("addr", cfg.Addr, "listen address")
	keyFile := flag.String("key", cfg.Key, "attestation signing key file")
	rootsFile := flag.String("roots", cfg.Roots,
		"trusted root certificates file (default system roots)")
	maxSent := flag.Uint("max-sent", cfg.MaxSent, "maximum bytes sent")
	maxRecv := flag.Uint("max-recv", cfg.MaxRecv, "maximum bytes received")
	expiry := flag.Duration("expiry", service.DefaultExpiry,
		"session reservation expiry")
	timeout := flag.Duration("timeout", service.DefaultTimeout,
		"session timeout")
	debug := flag.Bool("d", cfg.Debug, "debug logging")
	flag.Parse()

	log.SetFlags(0)

	logger, err := newLogger(*debug)
	if err != nil {
		log.Fatal(err)
	}
	defer logger.Sync()

	key, err := pki.LoadKey(*keyFile)
	if err != nil {
		log.Fatalf("failed to load signing key: %v", err)
	}
	var roots *x509.CertPool
	if len(*rootsFile) > 0 {
		roots, err = pki.LoadPool(*rootsFile)
		if err != nil {
			log.Fatalf("failed to load roots: %v", err)
		}
	}
	notary, err := session.NewNotary(&session.Config{
		Roots:   roots,
		Log:     logger,
		Key:     key,
		MaxSent: uint32(*maxSent),
		MaxRecv: uint32(*maxRecv),
	})
	if err != nil {
		log.Fatal(err)
	}
	srv := service.NewServer(notary, &service.Config{
		Expiry:  *expiry,
		Timeout: *timeout,
		Log:     logger,
	})

	fmt.Printf("Notary %v listening at %s, limits %v\n", notary.KeyID(),
		*addr, notary.Policy())

	httpd := &http.Server{
		Addr:              *addr,
		Handler:           srv,
		ReadHeaderTimeout: 10 * time.Second,
	}
	if err := httpd.ListenAndServe(); err != nil {
		logger.Error("server failed", zap.Error(err))
		os.Exit(1)
	}
}

func newLogger(debug bool) (*zap.Logger, error) {
	if debug {
		cfg := zap.NewDevelopmentConfig()
		cfg.Level = zap.NewAtomicLevelAt(zap.DebugLevel)
		return cfg.Build()
	}
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.InfoLevel)
	return cfg.Build()
}
