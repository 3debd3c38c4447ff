package validation

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name   string  `json:"name" validate:"required,max=5"`
	Price  float64 `json:"price" validate:"gte=0"`
	Colour string  `json:"colour" validate:"omitempty,colour"`
}

func init() {
	Register("colour", func(fl validator.FieldLevel) bool {
		return fl.Field().String() == "red"
	})
}

func TestStructPasses(t *testing.T) {
	require.NoError(t, Struct(sample{Name: "ok", Price: 1, Colour: "red"}))
}

func TestStructReportsJSONFieldNames(t *testing.T) {
	err := Struct(sample{Name: "toolong", Price: -1, Colour: "blue"})
	require.Error(t, err)

	var verr *Error
	require.ErrorAs(t, err, &verr)
	require.Len(t, verr.Fields, 3)

	assert.Equal(t, "name", verr.Fields[0].Field)
	assert.Equal(t, "name must be at most 5 characters", verr.Fields[0].Message)
	assert.Equal(t, "price must be greater than or equal to 0", verr.Fields[1].Message)
	assert.Equal(t, "colour is invalid", verr.Fields[2].Message)
	assert.Contains(t, err.Error(), "; ")
}

func TestStructRequired(t *testing.T) {
	err := Struct(sample{})
	var verr *Error
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "name is required", verr.Fields[0].Message)
}
