// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package api

import (
	"bytes"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Shape records how a response carried its payload.
type Shape int

const (
	// Bare responses are the payload itself.
	Bare Shape = iota
	// Enveloped responses nest the payload under a top-level "data" member.
	Enveloped
)

func (s Shape) String() string {
	if s == Enveloped {
		return "enveloped"
	}
	return "bare"
}

// Payload is a decoded response body together with the shape it came in.
type Payload[T any] struct {
	Shape Shape
	Value T
}

// Decode resolves the response envelope. A JSON object with a non-null
// "data" member is Enveloped and its payload is that member; anything else
// is Bare.
func Decode[T any](body []byte) (Payload[T], error) {
	var p Payload[T]
	body = bytes.TrimSpace(body)
	if len(body) == 0 {
		return p, errors.New("empty response body")
	}
	if body[0] == '{' {
		var obj map[string]jsoniter.RawMessage
		if err := json.Unmarshal(body, &obj); err != nil {
			return p, errors.Wrap(err, "decode response")
		}
		// a null member decodes to an empty RawMessage
		if data, ok := obj["data"]; ok && len(data) > 0 && !isNull(data) {
			if err := json.Unmarshal(data, &p.Value); err != nil {
				return p, errors.Wrap(err, "decode response data")
			}
			p.Shape = Enveloped
			return p, nil
		}
	}
	if err := json.Unmarshal(body, &p.Value); err != nil {
		return p, errors.Wrap(err, "decode response")
	}
	p.Shape = Bare
	return p, nil
}

func isNull(raw []byte) bool {
	return bytes.Equal(bytes.TrimSpace(raw), []byte("null"))
}
