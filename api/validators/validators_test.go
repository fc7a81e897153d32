package validators

import (
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pkgerrors "github.com/stagetrak/stagetrak-backend/pkg/errors"
)

func TestParseQueryInt(t *testing.T) {
	r := httptest.NewRequest("GET", "/?limit=50", nil)
	value, err := ParseQueryInt(r, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 50, value)

	r = httptest.NewRequest("GET", "/", nil)
	value, err = ParseQueryInt(r, "limit", 25, 1, 100)
	require.NoError(t, err)
	assert.Equal(t, 25, value)

	r = httptest.NewRequest("GET", "/?limit=abc", nil)
	_, err = ParseQueryInt(r, "limit", 25, 1, 100)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	r = httptest.NewRequest("GET", "/?limit=500", nil)
	_, err = ParseQueryInt(r, "limit", 25, 1, 100)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryUUID(t *testing.T) {
	id := uuid.New()
	r := httptest.NewRequest("GET", "/?orderId="+id.String(), nil)
	got, err := ParseQueryUUID(r, "orderId")
	require.NoError(t, err)
	assert.Equal(t, id, got)

	r = httptest.NewRequest("GET", "/", nil)
	got, err = ParseQueryUUID(r, "orderId")
	require.NoError(t, err)
	assert.Equal(t, uuid.Nil, got)

	r = httptest.NewRequest("GET", "/?orderId=not-a-uuid", nil)
	_, err = ParseQueryUUID(r, "orderId")
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestParseQueryBool(t *testing.T) {
	r := httptest.NewRequest("GET", "/?unreadOnly=true", nil)
	value, err := ParseQueryBool(r, "unreadOnly", false)
	require.NoError(t, err)
	assert.True(t, value)

	r = httptest.NewRequest("GET", "/", nil)
	value, err = ParseQueryBool(r, "unreadOnly", false)
	require.NoError(t, err)
	assert.False(t, value)

	r = httptest.NewRequest("GET", "/?unreadOnly=maybe", nil)
	_, err = ParseQueryBool(r, "unreadOnly", false)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

type createOrderBody struct {
	OrderNumber string `json:"orderNumber" validate:"required,min=1,max=64"`
	Quantity    int    `json:"quantity" validate:"required,min=1"`
}

func TestDecodeJSONBody(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"orderNumber":"PO-1","quantity":100}`))
	var body createOrderBody
	require.NoError(t, DecodeJSONBody(r, &body))
	assert.Equal(t, "PO-1", body.OrderNumber)
	assert.Equal(t, 100, body.Quantity)
}

func TestDecodeJSONBodyRejectsUnknownFields(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"orderNumber":"PO-1","quantity":1,"bogus":true}`))
	var body createOrderBody
	err := DecodeJSONBody(r, &body)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}

func TestDecodeJSONBodyReportsFieldsByJSONName(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"quantity":0}`))
	var body createOrderBody
	err := DecodeJSONBody(r, &body)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))

	typed := pkgerrors.As(err)
	require.NotNil(t, typed)
	details, ok := typed.Details().(map[string]string)
	require.True(t, ok)
	assert.Contains(t, details, "orderNumber")
	assert.Contains(t, details, "quantity")
}

func TestDecodeJSONBodyMalformed(t *testing.T) {
	r := httptest.NewRequest("POST", "/", strings.NewReader(`{"orderNumber":`))
	var body createOrderBody
	err := DecodeJSONBody(r, &body)
	require.True(t, pkgerrors.HasCode(err, pkgerrors.CodeValidation))
}
