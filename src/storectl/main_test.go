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
	"bytes"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/cart"
	"github.com/mattressco/storefront/src/frontend/storage"
	"github.com/mattressco/storefront/src/frontend/wishlist"
)

// seed writes a signed-in context "a" and an anonymous context "b".
func seed(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "state.db")
	db, err := storage.OpenBolt(path, log)
	require.NoError(t, err)
	defer db.Close()

	a := storage.New(db.Scope("a"), log)
	storage.WriteValue(a, storage.UserKey, api.User{ID: "u1", Email: "ann@b.co", Name: "Ann", Role: api.RoleUser})
	storage.WriteValue(a, storage.TokenKey, "tok")
	storage.WriteList(a, storage.CartKey, []cart.LineItem{
		{ProductID: "p1", Name: "Cloud Hybrid", UnitPrice: 50000, Size: "queen", Firmness: "medium", Quantity: 2},
	})

	b := storage.New(db.Scope("b"), log)
	storage.WriteList(b, storage.WishlistKey, []wishlist.Entry{{ProductID: "p2", Name: "Firm Foam"}})
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	raw, maxIdle = false, 720*time.Hour
	var out bytes.Buffer
	rootCmd.SetOut(&out)
	rootCmd.SetErr(&out)
	rootCmd.SetArgs(args)
	err := rootCmd.Execute()
	return out.String(), err
}

func TestList(t *testing.T) {
	path := seed(t)
	out, err := run(t, "list", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "CONTEXT")
	assert.Regexp(t, `(?m)^a\s+3\s+\d{4}-`, out)
	assert.Regexp(t, `(?m)^b\s+1\s+\d{4}-`, out)
}

func TestShow(t *testing.T) {
	path := seed(t)

	out, err := run(t, "show", "a", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "session: Ann <ann@b.co> role=user token=true")
	assert.Contains(t, out, "cart: 2 item(s), total 100000.00")
	assert.Contains(t, out, "wishlist: 0 product(s)")

	out, err = run(t, "show", "b", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "session: anonymous")
	assert.Contains(t, out, "p2")

	out, err = run(t, "show", "a", "--raw", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, storage.TokenKey+` = "tok"`)

	_, err = run(t, "show", "nobody", "--db", path)
	assert.Error(t, err)
}

func TestClear(t *testing.T) {
	path := seed(t)
	out, err := run(t, "clear", "a", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "cleared a")

	out, err = run(t, "list", "--db", path)
	require.NoError(t, err)
	assert.NotRegexp(t, `(?m)^a\s`, out)
	assert.Regexp(t, `(?m)^b\s`, out)
}

func TestPrune(t *testing.T) {
	path := seed(t)

	out, err := run(t, "prune", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 0 context(s)")

	out, err = run(t, "prune", "--max-idle", "1ns", "--db", path)
	require.NoError(t, err)
	assert.Contains(t, out, "pruned 2 context(s)")
}

func TestMissingStateFile(t *testing.T) {
	_, err := run(t, "list", "--db", filepath.Join(t.TempDir(), "nope.db"))
	assert.Error(t, err)
}
