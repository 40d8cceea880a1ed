//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package control

import (
	"context"
	"crypto/x509"
	"errors"
	"fmt"
	"io"
	"net"
	"os"

	"github.com/markkurossi/mpctls/crypto/share"
	"github.com/markkurossi/mpctls/crypto/tls"
)

// AbortReason defines the reasons for aborting a session.
type AbortReason uint32

// Abort reasons.
const (
	Transport AbortReason = iota + 1
	ProtocolViolation
	BadRecordMAC
	LimitsExceeded
	UnsupportedVersion
	UnsupportedCipherSuite
	CertificateMismatch
	CertificateInvalid
	MPCFailure
	Timeout
	PeerAbort
)

func (r AbortReason) String() string {
	name, ok := abortNames[r]
	if ok {
		return name
	}
	return fmt.Sprintf("{AbortReason %d}", r)
}

// Description returns a short description about the abort reason.
func (r AbortReason) Description() string {
	desc, ok := abortDescriptions[r]
	if ok {
		return desc
	}
	return fmt.Sprintf("{AbortReason %d}", r)
}

func (r AbortReason) Error() string {
	return r.Description()
}

var abortNames = map[AbortReason]string{
	Transport:              "Transport",
	ProtocolViolation:      "ProtocolViolation",
	BadRecordMAC:           "BadRecordMAC",
	LimitsExceeded:         "LimitsExceeded",
	UnsupportedVersion:     "UnsupportedVersion",
	UnsupportedCipherSuite: "UnsupportedCipherSuite",
	CertificateMismatch:    "CertificateMismatch",
	CertificateInvalid:     "CertificateInvalid",
	MPCFailure:             "MPCFailure",
	Timeout:                "Timeout",
	PeerAbort:              "PeerAbort",
}

var abortDescriptions = map[AbortReason]string{
	Transport:              "Transport failure",
	ProtocolViolation:      "Protocol violation",
	BadRecordMAC:           "Record authentication failed",
	LimitsExceeded:         "Session limits exceeded",
	UnsupportedVersion:     "Unsupported TLS version",
	UnsupportedCipherSuite: "Unsupported cipher suite",
	CertificateMismatch:    "Certificate does not match server name",
	CertificateInvalid:     "Invalid certificate",
	MPCFailure:             "MPC computation failed",
	Timeout:                "Timed out",
	PeerAbort:              "Aborted by peer",
}

// AbortError is a session abort with its reason. The Peer field
// tells if the abort was received from the peer.
type AbortError struct {
	Reason AbortReason
	Peer   bool
	Err    error
}

// Abort creates an abort error for the reason and the cause.
func Abort(reason AbortReason, err error) *AbortError {
	return &AbortError{
		Reason: reason,
		Err:    err,
	}
}

// Abortf creates an abort error with a formatted cause.
func Abortf(reason AbortReason, format string, a ...interface{}) *AbortError {
	return Abort(reason, fmt.Errorf(format, a...))
}

func (e *AbortError) Error() string {
	var prefix string
	if e.Peer {
		prefix = "peer "
	}
	if e.Err == nil {
		return fmt.Sprintf("%sabort: %v", prefix, e.Reason)
	}
	return fmt.Sprintf("%sabort: %v: %v", prefix, e.Reason, e.Err)
}

// Unwrap returns the abort reason and the cause.
func (e *AbortError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}

// Is matches PeerAbort for aborts received from the peer.
func (e *AbortError) Is(target error) bool {
	return target == PeerAbort && e.Peer
}

// Classify maps the error to its abort reason. It returns 0 for nil
// errors.
func Classify(err error) AbortReason {
	if err == nil {
		return 0
	}
	var ae *AbortError
	if errors.As(err, &ae) {
		return ae.Reason
	}
	var reason AbortReason
	if errors.As(err, &reason) {
		return reason
	}
	var netErr net.Error
	if errors.Is(err, os.ErrDeadlineExceeded) ||
		errors.Is(err, context.DeadlineExceeded) ||
		(errors.As(err, &netErr) && netErr.Timeout()) {
		return Timeout
	}
	var hostErr x509.HostnameError
	if errors.As(err, &hostErr) {
		return CertificateMismatch
	}
	var unknownAuthErr x509.UnknownAuthorityError
	var certErr x509.CertificateInvalidError
	if errors.As(err, &unknownAuthErr) || errors.As(err, &certErr) ||
		errors.Is(err, tls.ErrBadSignature) {
		return CertificateInvalid
	}
	if errors.Is(err, share.ErrProtocol) {
		return MPCFailure
	}
	var alert tls.Alert
	if errors.As(err, &alert) {
		reason, ok := alertReasons[alert]
		if ok {
			return reason
		}
		return ProtocolViolation
	}
	if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) ||
		errors.Is(err, io.ErrClosedPipe) || errors.Is(err, net.ErrClosed) ||
		errors.Is(err, context.Canceled) {
		return Transport
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return Transport
	}
	return ProtocolViolation
}

var alertReasons = map[tls.Alert]AbortReason{
	tls.AlertBadRecordMAC:           BadRecordMAC,
	tls.AlertProtocolVersion:        UnsupportedVersion,
	tls.AlertInsufficientSecurity:   UnsupportedCipherSuite,
	tls.AlertBadCertificate:         CertificateInvalid,
	tls.AlertUnsupportedCertificate: CertificateInvalid,
	tls.AlertCertificateRevoked:     CertificateInvalid,
	tls.AlertCertificateExpired:     CertificateInvalid,
	tls.AlertCertificateUnknown:     CertificateInvalid,
	tls.AlertUnknownCA:              CertificateInvalid,
}
