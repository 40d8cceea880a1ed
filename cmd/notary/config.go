//
// Copyright (c) 2026 Markku Rossi
//
// All rights reserved.
//

package main

import (
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config holds the notary's settings. Environment variables and the
// .env file provide the defaults for the command line flags.
type Config struct {
	Addr    string
	Key     string
	Roots   string
	MaxSent uint
	MaxRecv uint
	Debug   bool
}

func loadConfig() Config {
	_ = godotenv.Load()

	return Config{
		Addr:    envOrDefault("NOTARY_ADDR", ":7047"),
		Key:     envOrDefault("NOTARY_KEY", "notary-key.pem"),
		Roots:   envOrDefault("NOTARY_ROOTS", ""),
		MaxSent: envUintOrDefault("NOTARY_MAX_SENT", 4096),
		MaxRecv: envUintOrDefault("NOTARY_MAX_RECV", 16384),
		Debug:   envBoolOrDefault("NOTARY_DEBUG", false),
	}
}

func envOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envUintOrDefault(key string, fallback uint) uint {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.ParseUint(v, 10, 32); err == nil {
			return uint(n)
		}
	}
	return fallback
}

func envBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}
