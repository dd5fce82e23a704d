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

package auth

// Plain represents a PLAIN SASL authenticator.
type Plain struct {
	username string
	password string
}

// NewPlain returns a new plain authenticator instance.
func NewPlain(username, password string) *Plain {
	return &Plain{username: username, password: password}
}

// Name returns plain mechanism name.
func (p *Plain) Name() string { return "PLAIN" }

// InitialResponse returns the plain mechanism initial response payload.
func (p *Plain) InitialResponse() ([]byte, error) {
	resp := make([]byte, 0, len(p.username)+len(p.password)+2)
	resp = append(resp, 0)
	resp = append(resp, p.username...)
	resp = append(resp, 0)
	resp = append(resp, p.password...)
	return resp, nil
}

// ProcessChallenge processes a server challenge. Plain expects none.
func (p *Plain) ProcessChallenge(_ []byte) ([]byte, error) {
	return nil, ErrInvalidChallenge
}

// ProcessSuccess verifies the server success payload. Plain carries none.
func (p *Plain) ProcessSuccess(_ []byte) error { return nil }
