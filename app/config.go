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
	"os"
	"time"

	"gopkg.in/yaml.v2"
)

type loggerConfig struct {
	Level   string `yaml:"level"`
	Format  string `yaml:"format"`
	LogPath string `yaml:"log_path"`
}

type accountConfig struct {
	JID      string `yaml:"jid"`
	Password string `yaml:"password"`
}

type endpointConfig struct {
	// URL is the manual websocket endpoint. When empty the endpoint is
	// discovered from the account domain well-known documents.
	URL string `yaml:"url"`

	// Domain overrides the discovery domain, defaulting to the account
	// domain.
	Domain string `yaml:"domain"`

	DialTimeout    time.Duration `yaml:"dial_timeout"`
	RequestTimeout time.Duration `yaml:"request_timeout"`
	KeepAlive      time.Duration `yaml:"keep_alive"`
}

type sharingConfig struct {
	Interval time.Duration `yaml:"interval"`
	Lat      float64       `yaml:"lat"`
	Lon      float64       `yaml:"lon"`
	Accuracy float64       `yaml:"accuracy"`
}

// Config represents a global configuration.
type Config struct {
	Logger   loggerConfig   `yaml:"logger"`
	Account  accountConfig  `yaml:"account"`
	Endpoint endpointConfig `yaml:"endpoint"`
	Sharing  sharingConfig  `yaml:"sharing"`
}

// FromFile loads default global configuration from
// a specified file.
func (cfg *Config) FromFile(configFile string) error {
	b, err := os.ReadFile(configFile)
	if err != nil {
		return err
	}
	return yaml.Unmarshal(b, cfg)
}

// FromBuffer loads default global configuration from
// a specified byte buffer.
func (cfg *Config) FromBuffer(buf *bytes.Buffer) error {
	return yaml.Unmarshal(buf.Bytes(), cfg)
}
