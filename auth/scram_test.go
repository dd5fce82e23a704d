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

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestScram_SHA1ExchangeVector(t *testing.T) {
	// RFC 5802 sample exchange
	s := NewScram("user", "pencil", ScramSHA1)
	s.cNonce = "fyko+d2lbbFgONRv9qkxdawL"

	initial, err := s.InitialResponse()
	require.NoError(t, err)
	require.Equal(t, "n,,n=user,r=fyko+d2lbbFgONRv9qkxdawL", string(initial))

	final, err := s.ProcessChallenge([]byte("r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"))
	require.NoError(t, err)
	require.Equal(t, "c=biws,r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,p=v0X8v3Bz2T0CJGbJQyF0X+HI4Ts=", string(final))

	require.NoError(t, s.ProcessSuccess([]byte("v=rmF9pqV8S7suAoZWja4dJRkFsKQ=")))
}

func TestScram_RejectsForeignNonce(t *testing.T) {
	s := NewScram("ortuman", "s3cr3t", ScramSHA256)
	_, err := s.InitialResponse()
	require.NoError(t, err)

	_, err = s.ProcessChallenge([]byte("r=someoneelsesnonce,s=QSXCR+Q6sek8bf92,i=4096"))
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestScram_RejectsBogusServerSignature(t *testing.T) {
	s := NewScram("user", "pencil", ScramSHA1)
	s.cNonce = "fyko+d2lbbFgONRv9qkxdawL"

	_, err := s.InitialResponse()
	require.NoError(t, err)
	_, err = s.ProcessChallenge([]byte("r=fyko+d2lbbFgONRv9qkxdawL3rfcNHYJY1ZVvWVs7j,s=QSXCR+Q6sek8bf92,i=4096"))
	require.NoError(t, err)

	require.ErrorIs(t, s.ProcessSuccess([]byte("v=AAAAAAAAAAAAAAAAAAAAAAAAAAA=")), ErrServerSignatureMismatch)
}

func TestPlain_InitialResponse(t *testing.T) {
	p := NewPlain("ortuman", "1234")

	resp, err := p.InitialResponse()
	require.NoError(t, err)
	require.Equal(t, []byte("\x00ortuman\x001234"), resp)

	_, err = p.ProcessChallenge([]byte("whatever"))
	require.ErrorIs(t, err, ErrInvalidChallenge)
}

func TestSelectMechanism_Preference(t *testing.T) {
	m := SelectMechanism([]string{"PLAIN", "SCRAM-SHA-1", "SCRAM-SHA-256"}, "u", "p")
	require.Equal(t, "SCRAM-SHA-256", m.Name())

	m = SelectMechanism([]string{"PLAIN", "SCRAM-SHA-1"}, "u", "p")
	require.Equal(t, "SCRAM-SHA-1", m.Name())

	m = SelectMechanism([]string{"PLAIN"}, "u", "p")
	require.Equal(t, "PLAIN", m.Name())

	require.Nil(t, SelectMechanism([]string{"EXTERNAL"}, "u", "p"))
}
