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

// Package session holds the signed-in user of one browsing context.
//
// The durable copy lives in storage under storage.UserKey and
// storage.TokenKey. Each Session keeps an in-memory mirror that is re-read
// whenever the shared Broadcaster fires, so independent consumers of the
// same context agree on who is signed in.
//
// Concurrent Login calls are not serialized: each successful response is
// persisted when it arrives, so the last response to return wins.
package session

import (
	"context"
	"sync"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/storage"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// State is the authentication state of a Session.
type State int

const (
	Anonymous State = iota
	Authenticating
	Authenticated
)

func (s State) String() string {
	switch s {
	case Authenticating:
		return "authenticating"
	case Authenticated:
		return "authenticated"
	default:
		return "anonymous"
	}
}

// Authenticator is the remote side of login and registration.
type Authenticator interface {
	Login(ctx context.Context, email, password string) (*api.AuthResponse, error)
	Register(ctx context.Context, req api.RegisterRequest) (*api.AuthResponse, error)
}

var errNoAccount = errors.New("the server did not return an account")

type Option func(*Session)

// WithLoginTimeout bounds each Login and Register call.
func WithLoginTimeout(d time.Duration) Option {
	return func(s *Session) { s.loginTimeout = d }
}

func WithLogger(log logrus.FieldLogger) Option {
	return func(s *Session) { s.log = log }
}

type Session struct {
	store        *storage.Store
	auth         Authenticator
	bus          *Broadcaster
	log          logrus.FieldLogger
	loginTimeout time.Duration
	unsubscribe  func()

	mu       sync.RWMutex
	user     *api.User
	token    string
	inflight int
}

// New hydrates a Session from store and subscribes it to bus. A nil bus
// gets a private Broadcaster.
func New(store *storage.Store, auth Authenticator, bus *Broadcaster, opts ...Option) *Session {
	if bus == nil {
		bus = NewBroadcaster()
	}
	s := &Session{
		store: store,
		auth:  auth,
		bus:   bus,
		log:   logrus.StandardLogger(),
	}
	for _, o := range opts {
		o(s)
	}
	s.Hydrate()
	s.unsubscribe = bus.Subscribe(s.Hydrate)
	return s
}

// Close detaches the Session from its Broadcaster.
func (s *Session) Close() {
	s.unsubscribe()
}

// Subscribe registers fn for change notifications of this browsing context.
func (s *Session) Subscribe(fn func()) (unsubscribe func()) {
	return s.bus.Subscribe(fn)
}

// Hydrate re-reads the persisted user. A missing or undecodable record means
// anonymous. Without durable storage the mirror is kept as is.
func (s *Session) Hydrate() {
	if !s.store.Available() {
		return
	}
	u, ok := storage.ReadValue[api.User](s.store, storage.UserKey)
	tok, _ := storage.ReadValue[string](s.store, storage.TokenKey)

	s.mu.Lock()
	defer s.mu.Unlock()
	if !ok || (u.ID == "" && u.Email == "") {
		s.user, s.token = nil, ""
		return
	}
	s.user, s.token = &u, tok
}

func (s *Session) State() State {
	s.mu.RLock()
	defer s.mu.RUnlock()
	switch {
	case s.inflight > 0:
		return Authenticating
	case s.user != nil:
		return Authenticated
	default:
		return Anonymous
	}
}

// Current returns a copy of the signed-in user, or nil when anonymous.
func (s *Session) Current() *api.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.user == nil {
		return nil
	}
	u := *s.user
	if u.Address != nil {
		a := *u.Address
		u.Address = &a
	}
	if u.Extra != nil {
		extra := make(map[string]interface{}, len(u.Extra))
		for k, v := range u.Extra {
			extra[k] = v
		}
		u.Extra = extra
	}
	return &u
}

// Token returns the bearer token issued at sign-in, if any.
func (s *Session) Token() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.token
}

// Login authenticates and, on success, persists the user and token and
// notifies listeners. A failed attempt leaves persisted state untouched.
func (s *Session) Login(ctx context.Context, email, password string) (*api.User, error) {
	return s.authenticate(ctx, "login", func(ctx context.Context) (*api.AuthResponse, error) {
		return s.auth.Login(ctx, email, password)
	})
}

// Register creates an account and signs it in like Login.
func (s *Session) Register(ctx context.Context, req api.RegisterRequest) (*api.User, error) {
	return s.authenticate(ctx, "register", func(ctx context.Context) (*api.AuthResponse, error) {
		return s.auth.Register(ctx, req)
	})
}

func (s *Session) authenticate(ctx context.Context, op string, fn func(context.Context) (*api.AuthResponse, error)) (*api.User, error) {
	if s.loginTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.loginTimeout)
		defer cancel()
	}

	s.mu.Lock()
	s.inflight++
	s.mu.Unlock()

	res, err := fn(ctx)
	if err == nil && (res == nil || res.User == nil) {
		err = errNoAccount
	}
	if err == nil {
		storage.WriteValue(s.store, storage.UserKey, res.User)
		if res.Token != "" {
			storage.WriteValue(s.store, storage.TokenKey, res.Token)
		} else {
			s.store.Remove(storage.TokenKey)
		}
	}

	s.mu.Lock()
	s.inflight--
	if err == nil {
		u := *res.User
		s.user, s.token = &u, res.Token
	}
	s.mu.Unlock()

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			err = errors.Errorf("%s timed out, please try again", op)
		}
		s.log.WithField("op", op).WithField("error", err).Warn("authentication failed")
		return nil, err
	}

	s.log.WithField("op", op).WithField("user", res.User.ID).Info("user signed in")
	s.bus.Notify()
	return s.Current(), nil
}

// Logout forgets the user and token and notifies listeners.
func (s *Session) Logout() {
	s.store.Remove(storage.UserKey)
	s.store.Remove(storage.TokenKey)
	s.mu.Lock()
	s.user, s.token = nil, ""
	s.mu.Unlock()
	s.bus.Notify()
}

// UpdateUser shallow-merges partial (keyed by JSON field name) into the
// current user, persists it, and notifies listeners. It does nothing for an
// anonymous session and returns nil in that case.
func (s *Session) UpdateUser(partial map[string]interface{}) (*api.User, error) {
	s.mu.Lock()
	if s.user == nil {
		s.mu.Unlock()
		return nil, nil
	}
	merged, err := mergeUser(*s.user, partial)
	if err != nil {
		s.mu.Unlock()
		return nil, err
	}
	s.user = &merged
	s.mu.Unlock()

	storage.WriteValue(s.store, storage.UserKey, merged)
	s.bus.Notify()
	return s.Current(), nil
}

// mergeUser overlays the top-level fields of partial onto u. Nested values
// such as address are replaced, not merged.
func mergeUser(u api.User, partial map[string]interface{}) (api.User, error) {
	fields, err := toFields(u)
	if err != nil {
		return u, err
	}
	patch, err := toFields(partial)
	if err != nil {
		return u, err
	}
	for k, v := range patch {
		fields[k] = v
	}

	out, err := api.DecodeUser(fields)
	if err != nil {
		return u, errors.Wrap(err, "merge profile")
	}
	return out, nil
}

// toFields flattens v into its JSON object form.
func toFields(v interface{}) (map[string]interface{}, error) {
	raw, err := json.Marshal(v)
	if err != nil {
		return nil, errors.Wrap(err, "encode profile")
	}
	fields := map[string]interface{}{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, errors.Wrap(err, "decode profile")
	}
	return fields, nil
}
