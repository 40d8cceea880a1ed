//
// Copyright (c) 2025-2026 Markku Rossi
//
// All rights reserved.
//

package tls

import (
	"fmt"
)

// AlertLevel defines alert levels.
type AlertLevel uint8

// Alert levels.
const (
	AlertLevelWarning AlertLevel = 1
	AlertLevelFatal   AlertLevel = 2
)

func (l AlertLevel) String() string {
	switch l {
	case AlertLevelWarning:
		return "warning"
	case AlertLevelFatal:
		return "fatal"
	default:
		return fmt.Sprintf("{AlertLevel %d}", l)
	}
}

// Alert defines alert descriptions. Alert implements the error
// interface so that alerts can be returned as errors.
type Alert uint8

// Alert descriptions.
const (
	AlertCloseNotify            Alert = 0
	AlertUnexpectedMessage      Alert = 10
	AlertBadRecordMAC           Alert = 20
	AlertRecordOverflow         Alert = 22
	AlertHandshakeFailure       Alert = 40
	AlertBadCertificate         Alert = 42
	AlertUnsupportedCertificate Alert = 43
	AlertCertificateRevoked     Alert = 44
	AlertCertificateExpired     Alert = 45
	AlertCertificateUnknown     Alert = 46
	AlertIllegalParameter       Alert = 47
	AlertUnknownCA              Alert = 48
	AlertAccessDenied           Alert = 49
	AlertDecodeError            Alert = 50
	AlertDecryptError           Alert = 51
	AlertProtocolVersion        Alert = 70
	AlertInsufficientSecurity   Alert = 71
	AlertInternalError          Alert = 80
	AlertUserCanceled           Alert = 90
	AlertNoRenegotiation        Alert = 100
	AlertUnsupportedExtension   Alert = 110
	AlertUnrecognizedName       Alert = 112
)

func (a Alert) String() string {
	name, ok := alertNames[a]
	if ok {
		return name
	}
	return fmt.Sprintf("{Alert %d}", a)
}

func (a Alert) Error() string {
	return "tls: " + a.String()
}

var alertNames = map[Alert]string{
	AlertCloseNotify:            "close_notify",
	AlertUnexpectedMessage:      "unexpected_message",
	AlertBadRecordMAC:           "bad_record_mac",
	AlertRecordOverflow:         "record_overflow",
	AlertHandshakeFailure:       "handshake_failure",
	AlertBadCertificate:         "bad_certificate",
	AlertUnsupportedCertificate: "unsupported_certificate",
	AlertCertificateRevoked:     "certificate_revoked",
	AlertCertificateExpired:     "certificate_expired",
	AlertCertificateUnknown:     "certificate_unknown",
	AlertIllegalParameter:       "illegal_parameter",
	AlertUnknownCA:              "unknown_ca",
	AlertAccessDenied:           "access_denied",
	AlertDecodeError:            "decode_error",
	AlertDecryptError:           "decrypt_error",
	AlertProtocolVersion:        "protocol_version",
	AlertInsufficientSecurity:   "insufficient_security",
	AlertInternalError:          "internal_error",
	AlertUserCanceled:           "user_canceled",
	AlertNoRenegotiation:        "no_renegotiation",
	AlertUnsupportedExtension:   "unsupported_extension",
	AlertUnrecognizedName:       "unrecognized_name",
}

// PeerAlert is an alert received from the peer.
type PeerAlert struct {
	Level AlertLevel
	Alert Alert
}

func (a *PeerAlert) Error() string {
	return fmt.Sprintf("tls: peer sent %v alert %v", a.Level, a.Alert)
}

// Unwrap returns the alert description so that errors.Is matches
// the Alert constants.
func (a *PeerAlert) Unwrap() error {
	return a.Alert
}

// ParseAlert parses the alert record payload.
func ParseAlert(data []byte) (*PeerAlert, error) {
	if len(data) != 2 {
		return nil, AlertDecodeError
	}
	return &PeerAlert{
		Level: AlertLevel(data[0]),
		Alert: Alert(data[1]),
	}, nil
}

// Bytes returns the alert record payload.
func (a *PeerAlert) Bytes() []byte {
	return []byte{byte(a.Level), byte(a.Alert)}
}
