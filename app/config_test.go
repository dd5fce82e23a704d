// Copyright 2023 The locpub Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package app

import (
	"bytes"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestConfig_FromBuffer(t *testing.T) {
	buf := bytes.NewBufferString(`
logger:
  level: debug
  format: json
account:
  jid: alice@example.org
  password: s3cr3t
endpoint:
  domain: example.org
  request_timeout: 30s
sharing:
  interval: 1m
  lat: 51.5
  lon: -0.09
  accuracy: 25
`)
	var cfg Config
	require.NoError(t, cfg.FromBuffer(buf))

	require.Equal(t, "debug", cfg.Logger.Level)
	require.Equal(t, "json", cfg.Logger.Format)
	require.Equal(t, "alice@example.org", cfg.Account.JID)
	require.Empty(t, cfg.Endpoint.URL)
	require.Equal(t, "example.org", cfg.Endpoint.Domain)
	require.Equal(t, time.Second*30, cfg.Endpoint.RequestTimeout)
	require.Equal(t, time.Minute, cfg.Sharing.Interval)
	require.Equal(t, 51.5, cfg.Sharing.Lat)
	require.Equal(t, -0.09, cfg.Sharing.Lon)
}

func TestConfig_FromMissingFile(t *testing.T) {
	var cfg Config
	require.Error(t, cfg.FromFile("a-non-existing-file.yml"))
}
