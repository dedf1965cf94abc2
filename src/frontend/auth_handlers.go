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

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"

	"github.com/mattressco/storefront/src/frontend/api"
	"github.com/mattressco/storefront/src/frontend/validator"
)

var addressFields = []string{"label", "street", "city", "state", "country", "zipCode"}

// loginHandler signs the browsing context in (POST /login).
func (fe *frontendServer) loginHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.LoginPayload{
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	sc := fe.openContext(r)
	defer sc.close()

	if _, err := sc.session.Login(r.Context(), payload.Email, payload.Password); err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	writeSession(log, r, w, sc)
}

// registerHandler creates an account and signs it in (POST /register).
func (fe *frontendServer) registerHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.RegisterPayload{
		Name:     r.FormValue("name"),
		Email:    r.FormValue("email"),
		Password: r.FormValue("password"),
		Phone:    r.FormValue("phone"),
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	sc := fe.openContext(r)
	defer sc.close()

	_, err := sc.session.Register(r.Context(), api.RegisterRequest{
		Name:     payload.Name,
		Email:    payload.Email,
		Password: payload.Password,
		Phone:    payload.Phone,
	})
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	log.WithField("email", payload.Email).Info("user registered successfully")
	writeSession(log, r, w, sc)
}

// verifyOTPHandler confirms the one-time code mailed at registration
// (POST /verify-otp).
func (fe *frontendServer) verifyOTPHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	payload := validator.VerifyOTPPayload{
		Email: r.FormValue("email"),
		OTP:   r.FormValue("otp"),
	}
	if err := payload.Validate(); err != nil {
		renderHTTPError(log, r, w, validator.ValidationErrorResponse(err), http.StatusUnprocessableEntity)
		return
	}
	if err := fe.api.VerifyOTP(r.Context(), payload.Email, payload.OTP); err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	writeJSON(log, w, http.StatusOK, map[string]interface{}{"verified": true})
}

func (fe *frontendServer) logoutHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	log.Debug("logging out")
	sc := fe.openContext(r)
	defer sc.close()
	sc.session.Logout()
	writeSession(log, r, w, sc)
}

func (fe *frontendServer) sessionHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	sc := fe.openContext(r)
	defer sc.close()
	writeSession(log, r, w, sc)
}

// profileHandler returns the account profile (GET /profile). An expired
// token signs the browsing context out.
func (fe *frontendServer) profileHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	sc := fe.openContext(r)
	defer sc.close()

	if sc.session.Current() == nil {
		renderHTTPError(log, r, w, errors.New("not signed in"), http.StatusUnauthorized)
		return
	}
	profile, err := fe.api.Profile(r.Context(), sc.session.Token())
	if err != nil {
		if api.IsStatus(err, http.StatusUnauthorized) {
			log.Info("token rejected, signing out")
			sc.session.Logout()
		}
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"profile": profile,
	}))
}

// updateProfileHandler saves the submitted profile fields remotely and
// merges them into the session user (POST /profile). Only fields present in
// the form are sent. When the server echoes the account back, the members it
// returned are merged instead.
func (fe *frontendServer) updateProfileHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	if err := r.ParseForm(); err != nil {
		renderHTTPError(log, r, w, errors.Wrap(err, "invalid form"), http.StatusBadRequest)
		return
	}
	partial := profileFields(r)
	if len(partial) == 0 {
		renderHTTPError(log, r, w, errors.New("nothing to update"), http.StatusBadRequest)
		return
	}

	sc := fe.openContext(r)
	defer sc.close()
	if sc.session.Current() == nil {
		renderHTTPError(log, r, w, errors.New("not signed in"), http.StatusUnauthorized)
		return
	}

	echo, err := fe.api.UpdateProfile(r.Context(), sc.session.Token(), partial)
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if echo != nil {
		partial = echo
	}
	user, err := sc.session.UpdateUser(partial)
	if err != nil {
		renderHTTPError(log, r, w, err, http.StatusInternalServerError)
		return
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"profile": user,
	}))
}

func (fe *frontendServer) addressesHandler(w http.ResponseWriter, r *http.Request) {
	log := r.Context().Value(ctxKeyLog{}).(logrus.FieldLogger)
	sc := fe.openContext(r)
	defer sc.close()

	if sc.session.Current() == nil {
		renderHTTPError(log, r, w, errors.New("not signed in"), http.StatusUnauthorized)
		return
	}
	addresses, err := fe.api.Addresses(r.Context(), sc.session.Token())
	if err != nil {
		renderHTTPError(log, r, w, err, apiStatus(err))
		return
	}
	if addresses == nil {
		addresses = []api.Address{}
	}
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"addresses": addresses,
	}))
}

func writeSession(log logrus.FieldLogger, r *http.Request, w http.ResponseWriter, sc *shopContext) {
	writeJSON(log, w, http.StatusOK, injectCommonData(r, sc, map[string]interface{}{
		"state": sc.session.State().String(),
	}))
}

// profileFields collects the editable profile fields present in the form.
// Address fields replace the whole address.
func profileFields(r *http.Request) map[string]interface{} {
	partial := map[string]interface{}{}
	for _, k := range []string{"name", "phone"} {
		if _, ok := r.PostForm[k]; ok {
			partial[k] = r.PostForm.Get(k)
		}
	}
	address := map[string]interface{}{}
	for _, k := range addressFields {
		if _, ok := r.PostForm[k]; ok {
			address[k] = r.PostForm.Get(k)
		}
	}
	if len(address) > 0 {
		partial["address"] = address
	}
	return partial
}
