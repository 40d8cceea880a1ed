//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"testing"
)

func TestRequest(t *testing.T) {
	tests := []struct {
		method   string
		maxRecv  uint32
		expected string
	}{
		{
			method:  "HEAD",
			maxRecv: 16384,
			expected: "HEAD / HTTP/1.1\r\nHost: discord.com\r\n" +
				"Connection: close\r\n\r\n",
		},
		{
			method:  "GET",
			maxRecv: 16384,
			expected: "GET / HTTP/1.1\r\nHost: discord.com\r\n" +
				"Range: bytes=0-12287\r\nConnection: close\r\n\r\n",
		},
		{
			method:  "GET",
			maxRecv: 1024,
			expected: "GET / HTTP/1.1\r\nHost: discord.com\r\n" +
				"Range: bytes=0-0\r\nConnection: close\r\n\r\n",
		},
	}
	for _, test := range tests {
		req := &request{
			method: test.method,
			path:   "/",
			domain: "discord.com",
			port:   443,
		}
		got := string(req.Marshal(test.maxRecv))
		if got != test.expected {
			t.Errorf("%s %d: got %q, expected %q", test.method, test.maxRecv,
				got, test.expected)
		}
	}
}
