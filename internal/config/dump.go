// SPDX-License-Identifier: Apache-2.0
// Copyright 2026 PixelVault Contributors

package config

import (
	"io"
	"net/url"

	"github.com/samber/oops"
	"gopkg.in/yaml.v3"
)

// Redacted returns a copy of c with credentials removed from DSNs.
func (c *Config) Redacted() *Config {
	out := *c
	out.Storage.DatabaseURL = redactURL(c.Storage.DatabaseURL)
	out.Sessions.RedisURL = redactURL(c.Sessions.RedisURL)
	return &out
}

// WriteYAML writes c as YAML in the same layout Load reads.
func WriteYAML(w io.Writer, c *Config) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(c); err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	if err := enc.Close(); err != nil {
		return oops.Code("CONFIG_ENCODE_FAILED").Wrap(err)
	}
	return nil
}

func redactURL(raw string) string {
	if raw == "" {
		return ""
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "[unparseable]"
	}
	return u.Redacted()
}
