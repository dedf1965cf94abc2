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

package main

import (
	"context"
	"hash/fnv"
	"net/http"
	"sync"

	"github.com/sirupsen/logrus"

	"github.com/mattressco/storefront/src/frontend/cart"
	"github.com/mattressco/storefront/src/frontend/session"
	"github.com/mattressco/storefront/src/frontend/storage"
	"github.com/mattressco/storefront/src/frontend/wishlist"
)

// shopContext is the cart, wishlist and session of one browsing context,
// built once per request over the context's storage scope.
type shopContext struct {
	id       string
	store    *storage.Store
	cart     *cart.Cart
	wishlist *wishlist.Wishlist
	session  *session.Session

	closers []func()
}

func (sc *shopContext) close() {
	for i := len(sc.closers) - 1; i >= 0; i-- {
		sc.closers[i]()
	}
}

// contextLocks serializes requests that share a browsing context.
type contextLocks [64]sync.Mutex

func (l *contextLocks) lock(id string) (unlock func()) {
	h := fnv.New32a()
	h.Write([]byte(id))
	m := &l[h.Sum32()%uint32(len(l))]
	m.Lock()
	return m.Unlock
}

// openContext builds the shopContext of the request's browsing context and
// holds its lock until the returned context is closed.
func (fe *frontendServer) openContext(r *http.Request) *shopContext {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	id := sessionID(r)

	unlock := fe.locks.lock(id)
	store := storage.New(fe.state.Scope(id), log)
	bus := session.NewBroadcaster()
	sc := &shopContext{
		id:       id,
		store:    store,
		cart:     cart.New(store),
		wishlist: wishlist.New(store),
		session: session.New(store, fe.api, bus,
			session.WithLogger(log),
			session.WithLoginTimeout(fe.loginTimeout)),
	}
	sc.closers = append(sc.closers, unlock, sc.session.Close)
	sc.closers = append(sc.closers, fe.syncOnSignIn(r.Context(), log, sc))
	return sc
}

// syncOnSignIn uploads the anonymous cart and wishlist to the account once
// the session turns authenticated.
func (fe *frontendServer) syncOnSignIn(ctx context.Context, log logrus.FieldLogger, sc *shopContext) (unsubscribe func()) {
	signedIn := sc.session.State() == session.Authenticated
	return sc.session.Subscribe(func() {
		now := sc.session.State() == session.Authenticated
		if now && !signedIn {
			fe.pushLocalState(ctx, log, sc)
		}
		signedIn = now
	})
}

func (fe *frontendServer) pushLocalState(ctx context.Context, log logrus.FieldLogger, sc *shopContext) {
	token := sc.session.Token()
	if items := sc.cart.Items(); len(items) > 0 {
		if err := fe.api.SyncCart(ctx, token, items); err != nil {
			log.WithField("error", err).Warn("failed to migrate cart")
		} else {
			log.WithField("items", len(items)).Info("migrated anonymous cart to user cart")
		}
	}
	if entries := sc.wishlist.Entries(); len(entries) > 0 {
		if err := fe.api.SyncWishlist(ctx, token, entries); err != nil {
			log.WithField("error", err).Warn("failed to migrate wishlist")
		}
	}
}
