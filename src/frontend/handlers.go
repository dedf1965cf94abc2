// Copyright 2018 Google LLC
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
	"net/http"
	"net/url"
	"slices"
	"strconv"
	"time"

	"github.com/gorilla/mux"
	jsoniter "github.com/json-iterator/go"
	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/cart"
	"github.com/mattressco/storefront/src/frontend/validator"
	"github.com/mattressco/storefront/src/frontend/wishlist"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

func (fe *frontendServer) homeHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.WithField("query", r.URL.RawQuery).Info("home")
	sc := fe.openContext(r)
	defer sc.close()

	products, err := fe.api.Products(r.Context(), r.URL.Query())
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"products": products,
	}))
}

func (fe *frontendServer) productHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	id := mux.Vars(r)["id"]
	if id == "" {
		renderHTTPError(log, r, w, errors.New("product id not specified"), http.StatusBadRequest)
		return
	}
	log.WithField("id", id).Debug("serving product page")
	sc := fe.openContext(r)
	defer sc.close()

	p, err := fe.api.Product(r.Context(), id)
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"product":     p,
		"in_wishlist": sc.wishlist.Contains(p.ID),
	}))
}

func (fe *frontendServer) searchHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	query := r.URL.Query().Get("q")
	log.WithField("query", query).Info("search")
	sc := fe.openContext(r)
	defer sc.close()

	products := []api.Product{}
	if query != "" {
		found, err := fe.api.Products(r.Context(), url.Values{"search": {query}})
		if err != nil {
			log.WithField("error", err).Warn("search failed, returning empty results")
		} else {
			products = found
		}
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"products":     products,
		"query":        query,
		"result_count": len(products),
	}))
}

func (fe *frontendServer) viewCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("view user cart")
	sc := fe.openContext(r)
	defer sc.close()
	writeCart(log, r, w, sc)
}

func (fe *frontendServer) addToCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	quantity, err := formInt(r, "quantity")
	if err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "invalid quantity"), http.StatusBadRequest)
		return
	}
	payload := validator.AddToCartPayload{
		ProductID: r.FormValue("product_id"),
		Size:      r.FormValue("size"),
		Firmness:  r.FormValue("firmness"),
		Quantity:  quantity,
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	log.WithField("product", payload.ProductID).WithField("quantity", payload.Quantity).Debug("adding to cart")

	p, err := fe.api.Product(r.Context(), payload.ProductID)
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if len(p.Sizes) > 0 && !slices.Contains(p.Sizes, payload.Size) {
		renderHTTPError(log, r, w, errors.Errorf("size %q is not offered for %s", payload.Size, p.Name), http.StatusUnprocessableEntity)
		return
	}
	if len(p.Firmness) > 0 && !slices.Contains(p.Firmness, payload.Firmness) {
		renderHTTPError(log, r, w, errors.Errorf("firmness %q is not offered for %s", payload.Firmness, p.Name), http.StatusUnprocessableEntity)
		return
	}
	if !p.InStock() {
		renderHTTPError(log, r, w, errors.Errorf("%s is out of stock", p.Name), http.StatusConflict)
		return
	}

	sc := fe.openContext(r)
	defer sc.close()
	sc.cart.Add(lineItemOf(p, payload.Size, payload.Firmness), payload.Quantity)
	writeCart(log, r, w, sc)
}

func (fe *frontendServer) updateCartItemHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	quantity, err := strconv.Atoi(r.FormValue("quantity"))
	if err != nil {
		renderHTTPError(log, r, w, errors.New("invalid product_id or quantity"), http.StatusBadRequest)
		return
	}
	payload := validator.UpdateCartPayload{
		ProductID: r.FormValue("product_id"),
		Size:      r.FormValue("size"),
		Firmness:  r.FormValue("firmness"),
		Quantity:  quantity,
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	log.WithField("product_id", payload.ProductID).WithField("quantity", quantity).Debug("updating cart item quantity")

	sc := fe.openContext(r)
	defer sc.close()
	sc.cart.SetQuantity(payload.ProductID, payload.Size, payload.Firmness, payload.Quantity)
	writeCart(log, r, w, sc)
}

func (fe *frontendServer) removeCartItemHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	productID := r.FormValue("product_id")
	if productID == "" {
		renderHTTPError(log, r, w, errors.New("product_id not specified"), http.StatusBadRequest)
		return
	}
	sc := fe.openContext(r)
	defer sc.close()
	sc.cart.Remove(productID, r.FormValue("size"), r.FormValue("firmness"))
	writeCart(log, r, w, sc)
}

func (fe *frontendServer) emptyCartHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("emptying cart")
	sc := fe.openContext(r)
	defer sc.close()
	sc.cart.Clear()
	writeCart(log, r, w, sc)
}

func (fe *frontendServer) placeOrderHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("placing order")
	sc := fe.openContext(r)
	defer sc.close()

	user := sc.session.Current()
	if user == nil {
		renderHTTPError(log, r, w, errors.New("sign in to place an order"), http.StatusUnauthorized)
		return
	}
	items := sc.cart.Items()
	if len(items) == 0 {
		renderHTTPError(log, r, w, errors.New("cart is empty"), http.StatusUnprocessableEntity)
		return
	}

	payload := validator.PlaceOrderPayload{
		Email:         formOr(r, "email", user.Email),
		Phone:         formOr(r, "phone", user.Phone),
		Street:        r.FormValue("street"),
		City:          r.FormValue("city"),
		State:         r.FormValue("state"),
		Country:       r.FormValue("country"),
		ZipCode:       r.FormValue("zip_code"),
		PaymentMethod: r.FormValue("payment_method"),
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}

	order, err := fe.api.PlaceOrder(r.Context(), sc.session.Token(), api.OrderRequest{
		Items: items,
		Address: api.Address{
			Street:  payload.Street,
			City:    payload.City,
			State:   payload.State,
			Country: payload.Country,
			ZipCode: payload.ZipCode,
		},
		Email:         payload.Email,
		Phone:         payload.Phone,
		PaymentMethod: payload.PaymentMethod,
		Total:         sc.cart.Totals().Total,
	})
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	log.WithField("order", order.ID).Info("order placed")
	sc.cart.Clear()

	writeJSON(log, w, http.StatusCreated, injectCommonData(r, sc, map[string]interface{}{
		"order": order,
	}))
}

func (fe *frontendServer) orderHistoryHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("view order history")
	sc := fe.openContext(r)
	defer sc.close()

	if sc.session.Current() == nil {
		renderHTTPError(log, r, w, errors.New("sign in to view orders"), http.StatusUnauthorized)
		return
	}
	orders, err := fe.api.Orders(r.Context(), sc.session.Token())
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if orders == nil {
		orders = []api.Order{}
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"orders": orders,
	}))
}

func (fe *frontendServer) viewWishlistHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	sc := fe.openContext(r)
	defer sc.close()
	writeWishlist(log, r, w, sc)
}

func (fe *frontendServer) addToWishlistHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.WishlistPayload{ProductID: r.FormValue("product_id")}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	p, err := fe.api.Product(r.Context(), payload.ProductID)
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}

	sc := fe.openContext(r)
	defer sc.close()
	if !sc.wishlist.Add(entryOf(p)) {
		log.WithField("product", p.ID).Debug("already in wishlist")
	}
	writeWishlist(log, r, w, sc)
}

func (fe *frontendServer) removeFromWishlistHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.WishlistPayload{ProductID: r.FormValue("product_id")}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	sc := fe.openContext(r)
	defer sc.close()
	sc.wishlist.Remove(payload.ProductID)
	writeWishlist(log, r, w, sc)
}

func (fe *frontendServer) emptyWishlistHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	sc := fe.openContext(r)
	defer sc.close()
	sc.wishlist.Clear()
	writeWishlist(log, r, w, sc)
}

func writeCart(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, sc *shopContext) {
	items := sc.cart.Items()
	if items == nil {
		items = []cart.LineItem{}
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"items":  items,
		"totals": sc.cart.Totals(),
	}))
}

func writeWishlist(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, sc *shopContext) {
	entries := sc.wishlist.Entries()
	if entries == nil {
		entries = []wishlist.Entry{}
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"entries": entries,
	}))
}

func lineItemOf(p *api.Product, size, firmness string) cart.LineItem {
	item := cart.LineItem{
		ProductID: p.ID,
		Name:      p.Name,
		UnitPrice: p.Price,
		Image:     p.Image(),
		Size:      size,
		Firmness:  firmness,
	}
	if p.OriginalPrice > p.Price {
		item.OriginalUnitPrice = p.OriginalPrice
	}
	if p.Stock != nil && *p.Stock > 0 {
		item.MaxQuantity = *p.Stock
	}
	return item
}

func entryOf(p *api.Product) wishlist.Entry {
	var inStock *bool
	if p.Stock != nil {
		v := p.InStock()
		inStock = &v
	}
	return wishlist.Entry{
		ProductID:     p.ID,
		Name:          p.Name,
		Price:         p.Price,
		OriginalPrice: p.OriginalPrice,
		Image:         p.Image(),
		Category:      p.Category,
		Rating:        p.Rating,
		ReviewCount:   p.ReviewCount,
		InStock:       inStock,
	}
}

func renderHTTPError(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, err error, code int) {
	if code >= http.StatusInternalServerError {
		log.WithField("error", err).Error("request error")
	} else {
		log.WithField("error", err).Warn("request error")
	}
	writeJSON(log, w, code, map[string]interface{}{
		"error":       err.Error(),
		"status_code": code,
		"status":      http.StatusText(code),
		"request_id":  r.Context().Value(ctxKeyRequestID{}),
	})
}

func writeJSON(log logrus.FieldLogger, w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.WithField("error", err).Warn("failed to write response")
	}
}

// apiStatus maps a remote API failure onto the status returned to the
// browser. Client errors pass through, everything else is a bad gateway.
func apiStatus(err error) int {
	var httpErr *api.HTTPError
	if errors.As(err, &httpErr) && httpErr.Status >= 400 && httpErr.Status < 500 {
		return httpErr.Status
	}
	return http.StatusBadGateway
}

func injectCommonData(r *http.Request, sc *shopContext, payload map[string]interface{}) map[string]interface{} {
	user := sc.session.Current()
	data := map[string]interface{}{
		"session_id":     sessionID(r),
		"request_id":     r.Context().Value(ctxKeyRequestID{}),
		"currentYear":    time.Now().Year(),
		"baseUrl":        baseUrl,
		"logged_in":      user != nil,
		"user":           user,
		"is_admin":       user.IsAdmin(),
		"cart_size":      sc.cart.Totals().ItemCount,
		"wishlist_count": sc.wishlist.Len(),
	}

	for k, v := range payload {
		data[k] = v
	}

	return data
}

func sessionID(r *http.Request) string {
	v := r.Context().Value(ctxKeySessionID{})
	if v != nil {
		return v.(string)
	}
	return ""
}

// formInt reads an optional integer form value. Missing means zero.
func formInt(r *http.Request, key string) (int, error) {
	v := r.FormValue(key)
	if v == "" {
		return 0, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, errors.Wrap(err, key)
	}
	return n, nil
}

func formOr(r *http.Request, key, def string) string {
	if v := r.FormValue(key); v != "" {
		return v
	}
	return def
}
