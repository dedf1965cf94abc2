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
	"net/http"
	"strconv"

	"github.com/gorilla/mux"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/validator"
)

type ctxKeyToken struct{}

// requireAdmin lets the request through only for a signed-in admin. The
// bearer token is handed to the admin handlers through the request context.
func (fe *frontendServer) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
		sc := fe.openContext(r)
		user, token := sc.session.Current(), sc.session.Token()
		sc.close()

		switch {
		case user == nil:
			renderHTTPError(log, r, w, errors.New("not signed in"), http.StatusUnauthorized)
			return
		case !user.IsAdmin():
			renderHTTPError(log, r, w, errors.New("admin access required"), http.StatusForbidden)
			return
		}
		ctx := contextWithToken(r.Context(), token)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (fe *frontendServer) adminOrdersHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	orders, err := fe.api.AdminOrders(r.Context(), adminToken(r))
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if orders == nil {
		orders = []api.Order{}
	}
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"orders": orders})
}

func (fe *frontendServer) adminOrderStatusHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	id := mux.Vars(r)["id"]
	payload := validator.OrderStatusPayload{Status: r.FormValue("status")}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	order, err := fe.api.AdminUpdateOrderStatus(r.Context(), adminToken(r), id, payload.Status)
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	log.WithField("order", id).WithField("status", payload.Status).Info("order status updated")
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"order": order})
}

func (fe *frontendServer) adminUsersHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	users, err := fe.api.AdminUsers(r.Context(), adminToken(r))
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if users == nil {
		users = []api.User{}
	}
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"users": users})
}

// adminSaveProductHandler creates a product, or updates the one named in
// the path.
func (fe *frontendServer) adminSaveProductHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	if err := r.ParseForm(); err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "invalid form"), http.StatusBadRequest)
		return
	}
	price, err := formFloat(r, "price")
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "invalid price"), http.StatusBadRequest)
		return
	}
	originalPrice, err := formFloat(r, "original_price")
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "invalid original_price"), http.StatusBadRequest)
		return
	}
	// an empty stock field leaves stock untracked
	var stock *int
	if r.FormValue("stock") != "" {
		n, err := formInt(r, "stock")
		if err != nil {
			renderHTTPError(log, r, w, errors.Wrap(err, "invalid stock"), http.StatusBadRequest)
			return
		}
		stock = &n
	}
	payload := validator.ProductPayload{
		Name:          r.FormValue("name"),
		Price:         price,
		OriginalPrice: originalPrice,
	}
	if stock != nil {
		payload.Stock = *stock
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}

	saved, err := fe.api.AdminSaveProduct(r.Context(), adminToken(r), api.Product{
		ID:            mux.Vars(r)["id"],
		Name:          payload.Name,
		Description:   r.FormValue("description"),
		Category:      r.FormValue("category"),
		Images:        r.Form["images"],
		Price:         payload.Price,
		OriginalPrice: payload.OriginalPrice,
		Sizes:         r.Form["sizes"],
		Firmness:      r.Form["firmness"],
		Stock:         stock,
	})
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	log.WithField("product", saved.ID).Info("product saved")
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"product": saved})
}

func (fe *frontendServer) adminDeleteProductHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	id := mux.Vars(r)["id"]
	if err := fe.api.AdminDeleteProduct(r.Context(), adminToken(r), id); err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	log.WithField("product", id).Info("product deleted")
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"deleted": id})
}

func contextWithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, ctxKeyToken{}, token)
}

func adminToken(r *http.Request) string {
	v, _ := r.Context().Value(ctxKeyToken{}).(string)
	return v
}

// formFloat reads an optional decimal form value. Missing means zero.
func formFloat(r *http.Request, key string) (float64, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	return f, errors.Wrap(err, key)
}
