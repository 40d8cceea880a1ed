//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package service

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"

	"github.com/gorilla/websocket"
	"github.com/markkurossi/mpctls/control"
	"github.com/markkurossi/mpctls/session"
)

// Reserve reserves a notary session with the limits. It returns the
// session ID.
func Reserve(ctx context.Context, baseURL string, limits session.Limits) (
	string, error) {

	body, err := json.Marshal(&SessionRequest{
		MaxSent: limits.MaxSent,
		MaxRecv: limits.MaxRecv,
	})
	if err != nil {
		return "", err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		baseURL+"/session", bytes.NewReader(body))
	if err != nil {
		return "", err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	switch resp.StatusCode {
	case http.StatusOK:
		var sr SessionResponse
		if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
			return "", err
		}
		return sr.SessionID, nil

	case http.StatusForbidden:
		return "", control.Abortf(control.LimitsExceeded,
			"notary rejected limits %v", limits)

	default:
		var er ErrorResponse
		json.NewDecoder(resp.Body).Decode(&er)
		return "", fmt.Errorf("service: %s: %s", resp.Status, er.Error)
	}
}

// Dial reserves a notary session and connects to it. The returned
// connection carries the prover's link to the notary.
func Dial(ctx context.Context, baseURL string, limits session.Limits) (
	*Conn, error) {

	id, err := Reserve(ctx, baseURL, limits)
	if err != nil {
		return nil, err
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	switch u.Scheme {
	case "http":
		u.Scheme = "ws"
	case "https":
		u.Scheme = "wss"
	default:
		return nil, fmt.Errorf("service: unsupported URL scheme %q", u.Scheme)
	}
	u.Path += "/notarize"
	u.RawQuery = url.Values{
		"session_id": []string{id},
	}.Encode()

	ws, resp, err := websocket.DefaultDialer.DialContext(ctx, u.String(), nil)
	if err != nil {
		if resp != nil {
			return nil, fmt.Errorf("service: %s: %w", resp.Status, err)
		}
		return nil, err
	}
	return NewConn(ws), nil
}
