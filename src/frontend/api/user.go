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
	"github.com/mitchellh/mapstructure"
	"github.com/pkg/errors"
	"github.com/spf13/cast"
)

// userRecord is User without its JSON methods.
type userRecord User

// MarshalJSON flattens Extra next to the modelled fields. Modelled fields
// win over Extra entries of the same name.
func (u User) MarshalJSON() ([]byte, error) {
	raw, err := json.Marshal(userRecord(u))
	if err != nil {
		return nil, err
	}
	if len(u.Extra) == 0 {
		return raw, nil
	}
	fields := make(map[string]interface{}, len(u.Extra)+8)
	for k, v := range u.Extra {
		fields[k] = v
	}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, err
	}
	return json.Marshal(fields)
}

func (u *User) UnmarshalJSON(b []byte) error {
	var fields map[string]interface{}
	if err := json.Unmarshal(b, &fields); err != nil {
		return err
	}
	if fields == nil {
		return nil
	}
	decoded, err := DecodeUser(fields)
	if err != nil {
		return err
	}
	*u = decoded
	return nil
}

// DecodeUser builds a User from its JSON object form. Scalars are coerced
// to the modelled types, so a numeric id reads as its decimal string.
// Members that are not modelled end up in Extra.
func DecodeUser(fields map[string]interface{}) (User, error) {
	var (
		u  userRecord
		md mapstructure.Metadata
	)
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:          "json",
		WeaklyTypedInput: true,
		Metadata:         &md,
		Result:           &u,
	})
	if err != nil {
		return User{}, errors.Wrap(err, "decode user")
	}
	if err := dec.Decode(fields); err != nil {
		return User{}, errors.Wrap(err, "decode user")
	}
	// Unused also lists nested keys as "address.x"; only top-level members
	// belong in Extra.
	for _, k := range md.Unused {
		v, ok := fields[k]
		if !ok {
			continue
		}
		if u.Extra == nil {
			u.Extra = make(map[string]interface{})
		}
		u.Extra[k] = v
	}
	return User(u), nil
}

// HasIdentity reports whether fields name an account by id or email.
func HasIdentity(fields map[string]interface{}) bool {
	return cast.ToString(fields["id"]) != "" || cast.ToString(fields["email"]) != ""
}
