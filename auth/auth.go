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

import "github.com/pkg/errors"

// ErrInvalidChallenge will be returned when a server SASL challenge could not be processed.
var ErrInvalidChallenge = errors.New("auth: invalid server challenge")

// ErrServerSignatureMismatch will be returned when the server final signature
// does not match the locally computed one.
var ErrServerSignatureMismatch = errors.New("auth: server signature mismatch")

// Mechanism represents a client-side SASL mechanism.
type Mechanism interface {
	// Name returns the SASL mechanism name.
	Name() string

	// InitialResponse returns the mechanism initial response payload.
	InitialResponse() ([]byte, error)

	// ProcessChallenge processes a server challenge returning the client response payload.
	ProcessChallenge(challenge []byte) ([]byte, error)

	// ProcessSuccess verifies the server success payload.
	ProcessSuccess(payload []byte) error
}

// SelectMechanism picks the strongest supported mechanism out of the server
// advertised ones, returning nil when none is supported.
func SelectMechanism(offered []string, username, password string) Mechanism {
	has := func(name string) bool {
		for _, m := range offered {
			if m == name {
				return true
			}
		}
		return false
	}
	switch {
	case has("SCRAM-SHA-256"):
		return NewScram(username, password, ScramSHA256)
	case has("SCRAM-SHA-1"):
		return NewScram(username, password, ScramSHA1)
	case has("PLAIN"):
		return NewPlain(username, password)
	default:
		return nil
	}
}
