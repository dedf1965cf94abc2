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
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"sync/atomic"
	"testing"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mattressco/storefront/src/frontend/cart"
)

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetLevel(logrus.PanicLevel)
	return l
}

type recorded struct {
	method string
	path   string
	auth   string
	body   string
}

// fakeAPI answers every request with status and body and counts hits.
func fakeAPI(t *testing.T, status int, body string) (*httptest.Server, *int32, *recorded) {
	t.Helper()
	var hits int32
	last := &recorded{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&hits, 1)
		b, _ := io.ReadAll(r.Body)
		*last = recorded{method: r.Method, path: r.URL.RequestURI(), auth: r.Header.Get("Authorization"), body: string(b)}
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		io.WriteString(w, body)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits, last
}

func deadURL(t *testing.T) string {
	t.Helper()
	srv := httptest.NewServer(http.NotFoundHandler())
	u := srv.URL
	srv.Close()
	return u
}

func newTestClient(primary, fallback string) *Client {
	return NewClient(Config{BaseURL: primary, FallbackURL: fallback, Log: quietLogger()})
}

func TestLoginBareResponse(t *testing.T) {
	srv, hits, last := fakeAPI(t, http.StatusOK, `{"user":{"id":"u1","email":"a@b.c","role":"user"},"token":"tok"}`)
	c := newTestClient(srv.URL, "")

	res, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Equal(t, "tok", res.Token)
	assert.EqualValues(t, 1, *hits)
	assert.Equal(t, http.MethodPost, last.method)
	assert.Equal(t, "/auth/login", last.path)
	assert.JSONEq(t, `{"email":"a@b.c","password":"secret"}`, last.body)
}

func TestLoginEnvelopedResponse(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusOK, `{"data":{"user":{"id":"u2","role":"admin"},"token":"tok2"}}`)
	c := newTestClient(srv.URL, "")

	res, err := c.Login(context.Background(), "a@b.c", "secret")
	require.NoError(t, err)
	assert.True(t, res.User.IsAdmin())
	assert.Equal(t, "tok2", res.Token)
}

func TestLoginFallsBack(t *testing.T) {
	for _, status := range []int{http.StatusNotFound, http.StatusInternalServerError, http.StatusBadGateway, http.StatusServiceUnavailable} {
		t.Run(http.StatusText(status), func(t *testing.T) {
			primary, primaryHits, _ := fakeAPI(t, status, `{"message":"down"}`)
			fallback, fallbackHits, _ := fakeAPI(t, http.StatusOK, `{"user":{"id":"u1"},"token":"fb"}`)
			c := newTestClient(primary.URL, fallback.URL)

			res, err := c.Login(context.Background(), "a@b.c", "pw")
			require.NoError(t, err)
			assert.Equal(t, "fb", res.Token)
			assert.EqualValues(t, 1, *primaryHits)
			assert.EqualValues(t, 1, *fallbackHits)
		})
	}
}

func TestLoginFallsBackOnNetworkError(t *testing.T) {
	fallback, hits, _ := fakeAPI(t, http.StatusOK, `{"data":{"user":{"id":"u1"}}}`)
	c := newTestClient(deadURL(t), fallback.URL)

	res, err := c.Login(context.Background(), "a@b.c", "pw")
	require.NoError(t, err)
	assert.Equal(t, "u1", res.User.ID)
	assert.Empty(t, res.Token)
	assert.EqualValues(t, 1, *hits)
}

func TestLoginDoesNotFallBackOnClientError(t *testing.T) {
	primary, _, _ := fakeAPI(t, http.StatusUnauthorized, `{"message":"Invalid email or password"}`)
	fallback, hits, _ := fakeAPI(t, http.StatusOK, `{"user":{"id":"u1"}}`)
	c := newTestClient(primary.URL, fallback.URL)

	_, err := c.Login(context.Background(), "a@b.c", "bad")
	require.Error(t, err)
	assert.Equal(t, "Invalid email or password", err.Error())
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.EqualValues(t, 0, *hits)
}

func TestLoginSurfacesFallbackFailure(t *testing.T) {
	primary, _, _ := fakeAPI(t, http.StatusServiceUnavailable, `maintenance`)
	fallback, _, _ := fakeAPI(t, http.StatusInternalServerError, `{"error":"fallback broken"}`)
	c := newTestClient(primary.URL, fallback.URL)

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	assert.Equal(t, "fallback broken", err.Error())
}

func TestLoginNetworkErrorWithoutFallback(t *testing.T) {
	c := newTestClient(deadURL(t), "")

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	require.Error(t, err)
	var ne *NetworkError
	assert.True(t, errors.As(err, &ne))
	assert.Contains(t, err.Error(), "unable to reach the server")
}

func TestLoginWithoutUserFails(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusOK, `{"token":"only-a-token"}`)
	c := newTestClient(srv.URL, "")

	_, err := c.Login(context.Background(), "a@b.c", "pw")
	assert.Equal(t, errNoUser, err)
}

func TestLoginSkipsFallbackWhenContextDone(t *testing.T) {
	fallback, hits, _ := fakeAPI(t, http.StatusOK, `{"user":{"id":"u1"}}`)
	c := newTestClient(deadURL(t), fallback.URL)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Login(ctx, "a@b.c", "pw")
	require.Error(t, err)
	assert.EqualValues(t, 0, *hits)
}

func TestRegisterAndVerifyOTP(t *testing.T) {
	srv, _, last := fakeAPI(t, http.StatusCreated, `{"data":{"user":{"id":"new"},"token":"t"}}`)
	c := newTestClient(srv.URL, "")

	res, err := c.Register(context.Background(), RegisterRequest{Name: "Ana", Email: "ana@x.io", Password: "pw123456"})
	require.NoError(t, err)
	assert.Equal(t, "new", res.User.ID)
	assert.Equal(t, "/auth/register", last.path)

	require.NoError(t, c.VerifyOTP(context.Background(), "ana@x.io", "123456"))
	assert.Equal(t, "/auth/verify-otp", last.path)
	assert.JSONEq(t, `{"email":"ana@x.io","otp":"123456"}`, last.body)
}

func TestVerifyOTPRejected(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusBadRequest, `{"message":"Invalid OTP"}`)
	c := newTestClient(srv.URL, "")
	err := c.VerifyOTP(context.Background(), "ana@x.io", "000000")
	assert.EqualError(t, err, "Invalid OTP")
}

func TestProductsSendsQuery(t *testing.T) {
	srv, _, last := fakeAPI(t, http.StatusOK, `{"data":[{"id":"p1","name":"Cloud","price":50000,"stock":3}]}`)
	c := newTestClient(srv.URL, "")

	products, err := c.Products(context.Background(), url.Values{"category": {"hybrid"}})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.True(t, products[0].InStock())
	assert.Equal(t, "/products?category=hybrid", last.path)
}

func TestProductStockIsOptional(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusOK, `[{"id":"p1","price":100},{"id":"p2","price":100,"stock":0}]`)
	c := newTestClient(srv.URL, "")

	products, err := c.Products(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, products, 2)
	assert.Nil(t, products[0].Stock)
	assert.True(t, products[0].InStock(), "untracked stock is not out of stock")
	require.NotNil(t, products[1].Stock)
	assert.False(t, products[1].InStock())
}

func TestUpdateProfileReplies(t *testing.T) {
	tests := []struct {
		name   string
		status int
		body   string
		want   map[string]interface{}
	}{
		{"no content", http.StatusNoContent, ``, nil},
		{"empty body", http.StatusOK, ``, nil},
		{"acknowledgement", http.StatusOK, `{"success":true,"message":"Profile updated"}`, nil},
		{"null data", http.StatusOK, `{"success":true,"data":null}`, nil},
		{"partial echo", http.StatusOK, `{"data":{"name":"Ann B"}}`, nil},
		{"plain text", http.StatusOK, `updated`, nil},
		{"account", http.StatusOK, `{"data":{"id":"u1","name":"Ann B"}}`, map[string]interface{}{"id": "u1", "name": "Ann B"}},
		{"nested account", http.StatusOK, `{"user":{"email":"a@b.c","name":"Ann B"}}`, map[string]interface{}{"email": "a@b.c", "name": "Ann B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv, _, last := fakeAPI(t, tt.status, tt.body)
			c := newTestClient(srv.URL, "")

			got, err := c.UpdateProfile(context.Background(), "tok", map[string]interface{}{"name": "Ann B"})
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
			assert.Equal(t, http.MethodPut, last.method)
			assert.JSONEq(t, `{"name":"Ann B"}`, last.body)
		})
	}
}

func TestUpdateProfileRejected(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusUnauthorized, `{"message":"Token expired"}`)
	c := newTestClient(srv.URL, "")

	_, err := c.UpdateProfile(context.Background(), "tok", map[string]interface{}{"name": "x"})
	assert.True(t, IsStatus(err, http.StatusUnauthorized))
	assert.Contains(t, err.Error(), "Token expired")
}

func TestProductNotFoundKeepsStatus(t *testing.T) {
	srv, _, _ := fakeAPI(t, http.StatusNotFound, `{"message":"Product not found"}`)
	c := newTestClient(srv.URL, "")

	_, err := c.Product(context.Background(), "missing")
	require.Error(t, err)
	assert.True(t, IsStatus(err, http.StatusNotFound))
	assert.Contains(t, err.Error(), "Product not found")
}

func TestAuthenticatedCallsSendBearerToken(t *testing.T) {
	srv, _, last := fakeAPI(t, http.StatusOK, `{"id":"o1","status":"pending","total":100}`)
	c := newTestClient(srv.URL, "")

	o, err := c.PlaceOrder(context.Background(), "tok", OrderRequest{
		Items: []cart.LineItem{{ProductID: "P1", UnitPrice: 100, Quantity: 1, Size: "Queen"}},
		Email: "a@b.c",
	})
	require.NoError(t, err)
	assert.Equal(t, "o1", o.ID)
	assert.Equal(t, "Bearer tok", last.auth)
	assert.Equal(t, "/users/orders", last.path)
}

func TestSyncCartAndAdminDelete(t *testing.T) {
	srv, _, last := fakeAPI(t, http.StatusNoContent, ``)
	c := newTestClient(srv.URL, "")

	require.NoError(t, c.SyncCart(context.Background(), "tok", []cart.LineItem{{ProductID: "P1", Quantity: 2}}))
	assert.Equal(t, "/users/cart/sync", last.path)

	require.NoError(t, c.AdminDeleteProduct(context.Background(), "tok", "p 1"))
	assert.Equal(t, http.MethodDelete, last.method)
	assert.Equal(t, "/admin/products/p%201", last.path)
}

func TestAdminSaveProductChoosesMethod(t *testing.T) {
	srv, _, last := fakeAPI(t, http.StatusOK, `{"id":"p9","name":"Firm Foam"}`)
	c := newTestClient(srv.URL, "")

	_, err := c.AdminSaveProduct(context.Background(), "tok", Product{Name: "Firm Foam"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPost, last.method)
	assert.Equal(t, "/admin/products", last.path)

	_, err = c.AdminSaveProduct(context.Background(), "tok", Product{ID: "p9", Name: "Firm Foam"})
	require.NoError(t, err)
	assert.Equal(t, http.MethodPut, last.method)
	assert.Equal(t, "/admin/products/p9", last.path)
}
