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

package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
)

var validate *validator.Validate

func init() {
	validate = validator.New()
}

type AddToCartPayload struct {
	ProductID string `validate:"required"`
	Size      string `validate:"required"`
	Firmness  string `validate:"required"`
	Quantity  int    `validate:"gte=0,lte=20"`
}

type UpdateCartPayload struct {
	ProductID string `validate:"required"`
	Size      string `validate:"required"`
	Firmness  string `validate:"required"`
	Quantity  int    `validate:"lte=20"`
}

type WishlistPayload struct {
	ProductID string `validate:"required"`
}

type LoginPayload struct {
	Email    string `validate:"required,email"`
	Password string `validate:"required"`
}

type RegisterPayload struct {
	Name     string `validate:"required,max=100"`
	Email    string `validate:"required,email"`
	Password string `validate:"required,min=8,max=72"`
	Phone    string `validate:"omitempty,min=7,max=20"`
}

type VerifyOTPPayload struct {
	Email string `validate:"required,email"`
	OTP   string `validate:"required,len=6,numeric"`
}

type PlaceOrderPayload struct {
	Email         string `validate:"required,email"`
	Phone         string `validate:"required,min=7,max=20"`
	Street        string `validate:"required,max=512"`
	City          string `validate:"required,max=128"`
	State         string `validate:"required,max=128"`
	Country       string `validate:"required,max=128"`
	ZipCode       string `validate:"required,max=16"`
	PaymentMethod string `validate:"required,oneof=cod card upi"`
}

type OrderStatusPayload struct {
	Status string `validate:"required,oneof=pending processing shipped delivered cancelled"`
}

type ProductPayload struct {
	Name          string  `validate:"required,max=200"`
	Price         float64 `validate:"gt=0"`
	OriginalPrice float64 `validate:"gte=0"`
	Stock         int     `validate:"gte=0"`
}

func (p *AddToCartPayload) Validate() error   { return validate.Struct(p) }
func (p *UpdateCartPayload) Validate() error  { return validate.Struct(p) }
func (p *WishlistPayload) Validate() error    { return validate.Struct(p) }
func (p *LoginPayload) Validate() error       { return validate.Struct(p) }
func (p *RegisterPayload) Validate() error    { return validate.Struct(p) }
func (p *VerifyOTPPayload) Validate() error   { return validate.Struct(p) }
func (p *PlaceOrderPayload) Validate() error  { return validate.Struct(p) }
func (p *OrderStatusPayload) Validate() error { return validate.Struct(p) }
func (p *ProductPayload) Validate() error     { return validate.Struct(p) }

// ValidationErrorResponse turns validator errors into one readable error.
func ValidationErrorResponse(err error) error {
	var validationErrs validator.ValidationErrors
	if !errors.As(err, &validationErrs) {
		return errors.New("invalid validation error")
	}
	var msg []string
	for _, e := range validationErrs {
		msg = append(msg, fmt.Sprintf("Field '%s' is invalid: %s", e.Field(), e.Tag()))
	}
	return errors.New(strings.Join(msg, "\n"))
}
