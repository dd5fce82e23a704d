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
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"fmt"
	"hash"
	"strconv"
	"strings"

	"golang.org/x/crypto/pbkdf2"
)

// ScramType represents a scram authenticator class.
type ScramType int

const (
	// ScramSHA1 represents SCRAM-SHA-1 authentication method.
	ScramSHA1 ScramType = iota

	// ScramSHA256 represents SCRAM-SHA-256 authentication method.
	ScramSHA256
)

const gs2Header = "n,,"

// Scram represents a client-side SCRAM authenticator.
type Scram struct {
	username  string
	password  string
	tp        ScramType
	h         func() hash.Hash
	cNonce    string
	firstBare string
	serverSig []byte
}

// NewScram returns a new scram authenticator instance.
func NewScram(username, password string, scramType ScramType) *Scram {
	s := &Scram{
		username: username,
		password: password,
		tp:       scramType,
	}
	switch s.tp {
	case ScramSHA1:
		s.h = sha1.New
	case ScramSHA256:
		s.h = sha256.New
	}
	return s
}

// Name returns scram mechanism name.
func (s *Scram) Name() string {
	switch s.tp {
	case ScramSHA1:
		return "SCRAM-SHA-1"
	case ScramSHA256:
		return "SCRAM-SHA-256"
	}
	return ""
}

// InitialResponse returns the scram client first message.
func (s *Scram) InitialResponse() ([]byte, error) {
	if len(s.cNonce) == 0 {
		nonce := make([]byte, 18)
		if _, err := rand.Read(nonce); err != nil {
			return nil, err
		}
		s.cNonce = base64.StdEncoding.EncodeToString(nonce)
	}
	s.firstBare = fmt.Sprintf("n=%s,r=%s", escapeUsername(s.username), s.cNonce)
	return []byte(gs2Header + s.firstBare), nil
}

// ProcessChallenge processes the scram server first message returning the
// client final message.
func (s *Scram) ProcessChallenge(challenge []byte) ([]byte, error) {
	if len(s.firstBare) == 0 {
		return nil, ErrInvalidChallenge
	}
	params, err := parseParameters(string(challenge))
	if err != nil {
		return nil, err
	}
	srvNonce := params["r"]
	if !strings.HasPrefix(srvNonce, s.cNonce) || srvNonce == s.cNonce {
		return nil, ErrInvalidChallenge
	}
	salt, err := base64.StdEncoding.DecodeString(params["s"])
	if err != nil {
		return nil, ErrInvalidChallenge
	}
	iterations, err := strconv.Atoi(params["i"])
	if err != nil || iterations < 1 {
		return nil, ErrInvalidChallenge
	}

	saltedPassword := pbkdf2.Key([]byte(s.password), salt, iterations, s.h().Size(), s.h)
	clientKey := s.hmac(saltedPassword, []byte("Client Key"))
	storedKey := s.hash(clientKey)

	withoutProof := fmt.Sprintf("c=%s,r=%s", base64.StdEncoding.EncodeToString([]byte(gs2Header)), srvNonce)
	authMessage := s.firstBare + "," + string(challenge) + "," + withoutProof

	clientSignature := s.hmac(storedKey, []byte(authMessage))
	clientProof := make([]byte, len(clientKey))
	for i := range clientKey {
		clientProof[i] = clientKey[i] ^ clientSignature[i]
	}
	serverKey := s.hmac(saltedPassword, []byte("Server Key"))
	s.serverSig = s.hmac(serverKey, []byte(authMessage))

	final := withoutProof + ",p=" + base64.StdEncoding.EncodeToString(clientProof)
	return []byte(final), nil
}

// ProcessSuccess verifies the scram server final message signature.
func (s *Scram) ProcessSuccess(payload []byte) error {
	params, err := parseParameters(string(payload))
	if err != nil {
		return ErrServerSignatureMismatch
	}
	sig, err := base64.StdEncoding.DecodeString(params["v"])
	if err != nil {
		return ErrServerSignatureMismatch
	}
	if subtle.ConstantTimeCompare(sig, s.serverSig) != 1 {
		return ErrServerSignatureMismatch
	}
	return nil
}

func (s *Scram) hmac(key, b []byte) []byte {
	m := hmac.New(s.h, key)
	m.Write(b)
	return m.Sum(nil)
}

func (s *Scram) hash(b []byte) []byte {
	h := s.h()
	h.Write(b)
	return h.Sum(nil)
}

func parseParameters(str string) (map[string]string, error) {
	ret := map[string]string{}
	for _, param := range strings.Split(str, ",") {
		kv := strings.SplitN(param, "=", 2)
		if len(kv) != 2 || len(kv[0]) == 0 {
			return nil, ErrInvalidChallenge
		}
		ret[kv[0]] = kv[1]
	}
	return ret, nil
}

func escapeUsername(username string) string {
	r := strings.NewReplacer("=", "=3D", ",", "=2C")
	return r.Replace(username)
}
