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

package transport

import (
	"bytes"
	"encoding/xml"
	"fmt"
	"io"

	"github.com/jackal-xmpp/stravaganza/v2"
	"github.com/pkg/errors"
)

// ErrNoElement will be returned by parseElement when the input buffer carries
// no XML element.
var ErrNoElement = errors.New("transport: no element")

// parseElement parses a single XML element out of a websocket message payload.
// Framed streams deliver exactly one complete element per message.
func parseElement(data []byte) (stravaganza.Element, error) {
	var stack []*stravaganza.Builder
	var element stravaganza.Element

	dec := xml.NewDecoder(bytes.NewReader(data))
	for {
		t, err := dec.RawToken()
		switch {
		case errors.Is(err, io.EOF):
			if len(stack) > 0 {
				return nil, errors.New("transport: unclosed element")
			}
			if element == nil {
				return nil, ErrNoElement
			}
			return element, nil

		case err != nil:
			return nil, err
		}
		switch t1 := t.(type) {
		case xml.StartElement:
			name := xmlName(t1.Name.Space, t1.Name.Local)

			var attrs []stravaganza.Attribute
			for _, a := range t1.Attr {
				attrs = append(attrs, stravaganza.Attribute{
					Label: xmlName(a.Name.Space, a.Name.Local),
					Value: a.Value,
				})
			}
			builder := stravaganza.NewBuilder(name).WithAttributes(attrs...)
			stack = append(stack, builder)

			// self-closing tags are reported by RawToken as start+end pairs,
			// so no special casing is needed here

		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1] = stack[len(stack)-1].WithText(string(t1))
			}

		case xml.EndElement:
			name := xmlName(t1.Name.Space, t1.Name.Local)
			if len(stack) == 0 {
				return nil, errUnexpectedEnd(name)
			}
			builder := stack[len(stack)-1]
			stack = stack[:len(stack)-1]

			el := builder.Build()
			if el.Name() != name {
				return nil, errUnexpectedEnd(name)
			}
			if len(stack) > 0 {
				stack[len(stack)-1] = stack[len(stack)-1].WithChild(el)
			} else {
				element = el
			}
		}
	}
}

func xmlName(space, local string) string {
	if len(space) > 0 {
		return fmt.Sprintf("%s:%s", space, local)
	}
	return local
}

func errUnexpectedEnd(name string) error {
	return fmt.Errorf("transport: unexpected end element </%s>", name)
}
