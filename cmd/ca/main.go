//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"crypto/x509"
	"flag"
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/markkurossi/mpctls/pki"
)

func main() {
	dir := flag.String("dir", ".", "output directory")
	org := flag.String("org", "MPC-TLS", "CA organization")
	names := flag.String("names", "localhost",
		"comma-separated DNS names of the server certificate")
	flag.Parse()

	log.SetFlags(0)

	fmt.Println("Generating notary signing key...")
	key, err := pki.GenerateKey()
	if err != nil {
		log.Fatalf("failed to generate notary key: %v", err)
	}
	id, err := pki.NewKeyID(&key.PublicKey)
	if err != nil {
		log.Fatal(err)
	}
	write(*dir, "notary-key.pem", 0600, func(w io.Writer) error {
		return pki.WriteKey(w, key)
	})
	write(*dir, "notary-pub.pem", 0644, func(w io.Writer) error {
		return pki.WritePublicKey(w, &key.PublicKey)
	})

	fmt.Println("Generating test CA and server certificate...")
	ca, err := pki.NewCA(*org)
	if err != nil {
		log.Fatalf("failed to create CA: %v", err)
	}
	leaf, err := ca.Issue(strings.Split(*names, ",")...)
	if err != nil {
		log.Fatalf("failed to issue certificate: %v", err)
	}
	write(*dir, "ca-cert.pem", 0644, func(w io.Writer) error {
		return pki.WriteCertificate(w, ca.Cert.Raw)
	})
	write(*dir, "server-key.pem", 0600, func(w io.Writer) error {
		return pki.WriteKey(w, leaf.Key)
	})
	write(*dir, "server-cert.pem", 0644, func(w io.Writer) error {
		return pki.WriteCertificate(w, leaf.Cert.Raw)
	})

	fmt.Println()
	fmt.Println("==================================================")
	fmt.Printf("Notary key ID: %x\n", id[:])
	printCertificate(ca.Cert)
	printCertificate(leaf.Cert)
	fmt.Println("==================================================")
}

func write(dir, name string, perm os.FileMode, f func(w io.Writer) error) {
	path := filepath.Join(dir, name)
	file, err := os.OpenFile(path, os.O_WRONLY|os.O_CREATE|os.O_TRUNC, perm)
	if err != nil {
		log.Fatalf("failed to create %s: %v", path, err)
	}
	if err := f(file); err != nil {
		log.Fatalf("failed to write %s: %v", path, err)
	}
	if err := file.Close(); err != nil {
		log.Fatal(err)
	}
	fmt.Printf(" - %s\n", path)
}

func printCertificate(cert *x509.Certificate) {
	fmt.Println("--------------------------------------------------")
	fmt.Printf("Subject: %s\n", cert.Subject)
	fmt.Printf("Issuer: %s\n", cert.Issuer)
	fmt.Printf("Serial Number: %s\n", cert.SerialNumber)
	fmt.Printf("Not Before: %s\n", cert.NotBefore.Format(time.RFC3339))
	fmt.Printf("Not After: %s\n", cert.NotAfter.Format(time.RFC3339))
	if len(cert.DNSNames) > 0 {
		fmt.Printf("Subject Alt Names (DNS):\n")
		for _, dns := range cert.DNSNames {
			fmt.Printf("  - %s\n", dns)
		}
	}
}
