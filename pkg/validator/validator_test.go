package validator

import (
	"errors"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	apperrors "github.com/Salle79/Litium/pkg/errors"
)

type price struct {
	PriceListID string  `json:"priceListId" validate:"required,uuid"`
	Price       float64 `json:"price" validate:"gte=0"`
}

type tag struct {
	Key string `json:"key" validate:"tagkey,max=20"`
}

type document struct {
	Name     string   `json:"name" validate:"required,max=10"`
	Channels []string `json:"channels" validate:"required,min=1,dive,uuid"`
	Prices   []price  `json:"prices" validate:"dive"`
	Tags     []tag    `json:"tags" validate:"dive"`
	Sort     string   `json:"sort,omitempty" validate:"omitempty,oneof=name price"`
	Internal string   `json:"-" validate:"max=2"`
	Plain    int      `validate:"lte=5"`
}

func validDocument() document {
	return document{
		Name:     "Shirt",
		Channels: []string{"7a4c5d3e-1f2b-4c6d-8e9f-0a1b2c3d4e5f"},
		Prices:   []price{{PriceListID: "0b1c2d3e-4f50-4617-8293-a4b5c6d7e8f9", Price: 10}},
		Tags:     []tag{{Key: "color"}},
	}
}

func validationFields(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.True(t, errors.As(err, &valErr), "got %v", err)
	return valErr.Fields()
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validDocument()))
}

func TestValidate_FieldsUseJSONPaths(t *testing.T) {
	doc := validDocument()
	doc.Name = ""
	doc.Channels = []string{"not-a-uuid"}
	doc.Prices = []price{{PriceListID: "x", Price: -1}}
	doc.Sort = "random"
	doc.Plain = 9

	fields := validationFields(t, Validate(doc))
	assert.Equal(t, map[string]string{
		"name":                  "is required",
		"channels[0]":           "must be a valid UUID",
		"prices[0].priceListId": "must be a valid UUID",
		"prices[0].price":       "must be greater than or equal to 0",
		"sort":                  "must be one of: name price",
		"Plain":                 "must be less than or equal to 5",
	}, fields)
}

func TestValidate_LengthMessagesByKind(t *testing.T) {
	doc := validDocument()
	doc.Name = strings.Repeat("x", 11)
	doc.Channels = []string{}

	fields := validationFields(t, Validate(doc))
	assert.Equal(t, "must contain at most 10 characters", fields["name"])
	assert.Equal(t, "must contain at least 1 items", fields["channels"])
}

func TestValidate_TagKey(t *testing.T) {
	for _, key := range []string{"", "  ", "size:eu", "a,b"} {
		doc := validDocument()
		doc.Tags = []tag{{Key: key}}

		fields := validationFields(t, Validate(doc))
		assert.Contains(t, fields["tags[0].key"], "must not contain", "key %q", key)
	}

	doc := validDocument()
	doc.Tags = []tag{{Key: "shoe-size"}}
	assert.NoError(t, Validate(doc))
}

func TestValidationError_Error(t *testing.T) {
	doc := validDocument()
	doc.Name = ""
	err := Validate(doc)

	require.Error(t, err)
	assert.Equal(t, "field 'name' is required", err.Error())
}

func TestValidate_NotAStruct(t *testing.T) {
	err := Validate("plain string")
	require.Error(t, err)

	var valErr *ValidationError
	assert.False(t, errors.As(err, &valErr))
}

func TestDecodeAndValidate(t *testing.T) {
	body := `{"name":"Shirt","channels":["7a4c5d3e-1f2b-4c6d-8e9f-0a1b2c3d4e5f"],"tags":[{"key":"color"}]}`
	var doc document
	require.NoError(t, DecodeAndValidate(httptest.NewRequest("PUT", "/", strings.NewReader(body)), &doc))
	assert.Equal(t, "Shirt", doc.Name)
	assert.Equal(t, "color", doc.Tags[0].Key)
}

func TestDecodeAndValidate_MalformedBody(t *testing.T) {
	var doc document
	err := DecodeAndValidate(httptest.NewRequest("PUT", "/", strings.NewReader(`{"name":`)), &doc)

	require.Error(t, err)
	assert.ErrorIs(t, err, apperrors.ErrInvalidInput)
	assert.Contains(t, err.Error(), "decode request body")
}

func TestDecodeAndValidate_Invalid(t *testing.T) {
	var doc document
	err := DecodeAndValidate(httptest.NewRequest("PUT", "/", strings.NewReader(`{"name":"Shirt"}`)), &doc)

	fields := validationFields(t, err)
	assert.Contains(t, fields, "channels")
}
