//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"crypto"
	"crypto/ecdsa"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/sha512"
	"crypto/x509"
	"errors"
	"fmt"
	"hash"
	"time"
)

// ErrBadSignature is returned when the server_key_exchange signature
// does not verify.
var ErrBadSignature = errors.New("tls: invalid server_key_exchange signature")

// VerifyCertificates verifies the server certificate chain against
// roots for serverName. The time argument specifies the verification
// time; zero time means now. The function returns the leaf
// certificate. Hostname errors are returned as x509.HostnameError so
// callers can distinguish name mismatches from untrusted chains.
func VerifyCertificates(chain [][]byte, serverName string,
	roots *x509.CertPool, now time.Time) (*x509.Certificate, error) {

	if len(chain) == 0 {
		return nil, AlertBadCertificate
	}
	var certs []*x509.Certificate
	for _, der := range chain {
		cert, err := x509.ParseCertificate(der)
		if err != nil {
			return nil, fmt.Errorf("%w: %v", AlertBadCertificate, err)
		}
		certs = append(certs, cert)
	}
	intermediates := x509.NewCertPool()
	for _, cert := range certs[1:] {
		intermediates.AddCert(cert)
	}
	_, err := certs[0].Verify(x509.VerifyOptions{
		DNSName:       serverName,
		Roots:         roots,
		Intermediates: intermediates,
		CurrentTime:   now,
		KeyUsages:     []x509.ExtKeyUsage{x509.ExtKeyUsageServerAuth},
	})
	if err != nil {
		return nil, err
	}
	return certs[0], nil
}

// VerifyServerKeyExchange verifies the server_key_exchange
// signature over client_random || server_random || params.
func VerifyServerKeyExchange(cert *x509.Certificate, clientRandom,
	serverRandom []byte, kex *ServerKeyExchange) error {

	if !kex.Scheme.acceptable() {
		return fmt.Errorf("%w: signature scheme %v", AlertHandshakeFailure,
			kex.Scheme)
	}
	var h hash.Hash
	var hashFunc crypto.Hash
	switch kex.Scheme {
	case SigSchemeEcdsaSecp256r1Sha256, SigSchemeRsaPkcs1Sha256,
		SigSchemeRsaPssRsaeSha256:
		h = sha256.New()
		hashFunc = crypto.SHA256
	default:
		h = sha512.New384()
		hashFunc = crypto.SHA384
	}
	h.Write(clientRandom)
	h.Write(serverRandom)
	h.Write(kex.Params)
	digest := h.Sum(nil)

	switch pub := cert.PublicKey.(type) {
	case *ecdsa.PublicKey:
		if kex.Scheme != SigSchemeEcdsaSecp256r1Sha256 &&
			kex.Scheme != SigSchemeEcdsaSecp384r1Sha384 {
			return fmt.Errorf("%w: %v for ECDSA key", AlertIllegalParameter,
				kex.Scheme)
		}
		if !ecdsa.VerifyASN1(pub, digest, kex.Signature) {
			return ErrBadSignature
		}
		return nil

	case *rsa.PublicKey:
		switch kex.Scheme {
		case SigSchemeRsaPkcs1Sha256, SigSchemeRsaPkcs1Sha384:
			err := rsa.VerifyPKCS1v15(pub, hashFunc, digest, kex.Signature)
			if err != nil {
				return ErrBadSignature
			}
			return nil

		case SigSchemeRsaPssRsaeSha256, SigSchemeRsaPssRsaeSha384:
			err := rsa.VerifyPSS(pub, hashFunc, digest, kex.Signature,
				&rsa.PSSOptions{
					SaltLength: rsa.PSSSaltLengthEqualsHash,
				})
			if err != nil {
				return ErrBadSignature
			}
			return nil

		default:
			return fmt.Errorf("%w: %v for RSA key", AlertIllegalParameter,
				kex.Scheme)
		}

	default:
		return fmt.Errorf("%w: unsupported public key %T",
			AlertUnsupportedCertificate, cert.PublicKey)
	}
}

func (scheme SignatureScheme) acceptable() bool {
	for _, s := range SupportedSignatureSchemes {
		if s == scheme {
			return true
		}
	}
	return false
}
