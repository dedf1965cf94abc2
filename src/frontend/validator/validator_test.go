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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddToCartPayload(t *testing.T) {
	ok := AddToCartPayload{ProductID: "P1", Size: "Queen", Firmness: "Medium", Quantity: 2}
	assert.NoError(t, ok.Validate())

	zero := ok
	zero.Quantity = 0
	assert.NoError(t, zero.Validate(), "zero means the default quantity")

	for _, bad := range []AddToCartPayload{
		{Size: "Queen", Firmness: "Medium", Quantity: 1},
		{ProductID: "P1", Firmness: "Medium", Quantity: 1},
		{ProductID: "P1", Size: "Queen", Quantity: 1},
		{ProductID: "P1", Size: "Queen", Firmness: "Medium", Quantity: -1},
		{ProductID: "P1", Size: "Queen", Firmness: "Medium", Quantity: 21},
	} {
		assert.Error(t, bad.Validate(), "%+v", bad)
	}
}

func TestUpdateCartAllowsRemoval(t *testing.T) {
	p := UpdateCartPayload{ProductID: "P1", Size: "Queen", Firmness: "Medium", Quantity: 0}
	assert.NoError(t, p.Validate())
	p.Quantity = -2
	assert.NoError(t, p.Validate())
}

func TestLoginAndRegisterPayloads(t *testing.T) {
	assert.NoError(t, (&LoginPayload{Email: "a@b.co", Password: "x"}).Validate())
	assert.Error(t, (&LoginPayload{Email: "not-an-email", Password: "x"}).Validate())

	r := RegisterPayload{Name: "Ana", Email: "ana@b.co", Password: "longenough"}
	assert.NoError(t, r.Validate())
	r.Password = "short"
	assert.Error(t, r.Validate())
}

func TestVerifyOTPPayload(t *testing.T) {
	assert.NoError(t, (&VerifyOTPPayload{Email: "a@b.co", OTP: "123456"}).Validate())
	assert.Error(t, (&VerifyOTPPayload{Email: "a@b.co", OTP: "12ab56"}).Validate())
	assert.Error(t, (&VerifyOTPPayload{Email: "a@b.co", OTP: "12345"}).Validate())
}

func TestPlaceOrderPayload(t *testing.T) {
	p := PlaceOrderPayload{
		Email: "a@b.co", Phone: "5551234567", Street: "1 Main St", City: "Austin",
		State: "TX", Country: "US", ZipCode: "78701", PaymentMethod: "cod",
	}
	assert.NoError(t, p.Validate())
	p.PaymentMethod = "bitcoin"
	assert.Error(t, p.Validate())
}

func TestOrderStatusAndProductPayloads(t *testing.T) {
	assert.NoError(t, (&OrderStatusPayload{Status: "shipped"}).Validate())
	assert.Error(t, (&OrderStatusPayload{Status: "lost"}).Validate())

	assert.NoError(t, (&ProductPayload{Name: "Cloud", Price: 100}).Validate())
	assert.Error(t, (&ProductPayload{Name: "Cloud", Price: 0}).Validate())
	assert.Error(t, (&ProductPayload{Name: "Cloud", Price: 10, Stock: -1}).Validate())
}

func TestValidationErrorResponse(t *testing.T) {
	err := (&WishlistPayload{}).Validate()
	require.Error(t, err)
	assert.EqualError(t, ValidationErrorResponse(err), "Field 'ProductID' is invalid: required")

	assert.EqualError(t, ValidationErrorResponse(assert.AnError), "invalid validation error")
}
