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

// Package storage is the durable key-value adapter behind the cart, wishlist
// and session state. Values are plain JSON under stable, namespaced keys so
// the on-disk layout stays a drop-in replacement for browser local storage.
//
// The adapter never fails its caller: a missing backend reads as empty and
// swallows writes, and a value that does not decode reads as empty.
package storage

import (
	jsoniter "github.com/json-iterator/go"
	"github.com/sirupsen/logrus"
)

// Namespace prefixes every key owned by the storefront.
const Namespace = "storefront."

// Keys owned by the state modules. No other component writes them.
const (
	CartKey     = Namespace + "cart"
	WishlistKey = Namespace + "wishlist"
	UserKey     = Namespace + "user"
	TokenKey    = Namespace + "token"

	// touchedKey records the last write time of a browsing context.
	touchedKey = Namespace + "touched"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Backend is a byte store scoped to a single browsing context.
// Get returns nil, nil for an absent key.
type Backend interface {
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Delete(key string) error
}

// Provider hands out the Backend of one browsing context.
type Provider interface {
	Scope(contextID string) Backend
}

// Unavailable is the Backend used when no durable storage exists. Reads are
// empty and writes are dropped.
type Unavailable struct{}

func (Unavailable) Get(string) ([]byte, error) { return nil, nil }
func (Unavailable) Put(string, []byte) error   { return nil }
func (Unavailable) Delete(string) error        { return nil }
func (Unavailable) Scope(string) Backend       { return Unavailable{} }

// Store wraps a Backend with JSON encoding and the degrade-to-empty policy.
type Store struct {
	backend Backend
	log     logrus.FieldLogger
}

// New returns a Store over b. A nil backend behaves as Unavailable.
func New(b Backend, log logrus.FieldLogger) *Store {
	if b == nil {
		b = Unavailable{}
	}
	if log == nil {
		log = logrus.StandardLogger()
	}
	return &Store{backend: b, log: log}
}

// Available reports whether writes reach durable storage.
func (s *Store) Available() bool {
	_, ok := s.backend.(Unavailable)
	return !ok
}

func (s *Store) read(key string) []byte {
	b, err := s.backend.Get(key)
	if err != nil {
		s.log.WithField("key", key).WithField("error", err).Warn("storage read failed")
		return nil
	}
	return b
}

func (s *Store) write(key string, v interface{}) {
	b, err := json.Marshal(v)
	if err != nil {
		s.log.WithField("key", key).WithField("error", err).Warn("storage encode failed")
		return
	}
	if err := s.backend.Put(key, b); err != nil {
		s.log.WithField("key", key).WithField("error", err).Warn("storage write failed")
	}
}

// Remove deletes key. Failures are logged.
func (s *Store) Remove(key string) {
	if err := s.backend.Delete(key); err != nil {
		s.log.WithField("key", key).WithField("error", err).Warn("storage delete failed")
	}
}

// ReadList decodes the sequence stored under key. Absent or undecodable
// values read as an empty sequence.
func ReadList[T any](s *Store, key string) []T {
	raw := s.read(key)
	if len(raw) == 0 {
		return nil
	}
	var out []T
	if err := json.Unmarshal(raw, &out); err != nil {
		s.log.WithField("key", key).WithField("error", err).Debug("discarding undecodable value")
		return nil
	}
	return out
}

// WriteList stores items under key, replacing what was there.
func WriteList[T any](s *Store, key string, items []T) {
	if items == nil {
		items = []T{}
	}
	s.write(key, items)
}

// ReadValue decodes the single value stored under key. ok is false when the
// key is absent, null, or undecodable.
func ReadValue[T any](s *Store, key string) (v T, ok bool) {
	raw := s.read(key)
	if len(raw) == 0 {
		return v, false
	}
	var p *T
	if err := json.Unmarshal(raw, &p); err != nil {
		s.log.WithField("key", key).WithField("error", err).Debug("discarding undecodable value")
		return v, false
	}
	if p == nil {
		return v, false
	}
	return *p, true
}

// WriteValue stores v under key.
func WriteValue[T any](s *Store, key string, v T) {
	s.write(key, v)
}
