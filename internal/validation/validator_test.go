package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type rating struct {
	Score *float64 `json:"score" validate:"required,min=0,max=5,halfstep"`
	Name  string   `json:"name,omitempty" validate:"omitempty,alphanum"`
}

func ptr(f float64) *float64 { return &f }

func TestStruct(t *testing.T) {
	v := New()

	tests := []struct {
		name    string
		in      rating
		wantTag string
	}{
		{"Zero", rating{Score: ptr(0)}, ""},
		{"Five", rating{Score: ptr(5)}, ""},
		{"Half", rating{Score: ptr(2.5)}, ""},
		{"Missing", rating{}, "required"},
		{"Negative", rating{Score: ptr(-0.5)}, "min"},
		{"Too high", rating{Score: ptr(5.5)}, "max"},
		{"Off step", rating{Score: ptr(1.25)}, "halfstep"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := v.Struct(tt.in)
			if tt.wantTag == "" {
				assert.NoError(t, err)
				return
			}
			var fe FieldErrors
			require.ErrorAs(t, err, &fe)
			assert.Equal(t, map[string]string{"score": tt.wantTag}, fe.Map())
		})
	}
}

func TestFieldErrorsUseJSONNames(t *testing.T) {
	err := New().Struct(rating{Score: ptr(1), Name: "not ok!"})
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	require.Len(t, fe, 1)
	assert.Equal(t, "name", fe[0].Field)
	assert.Equal(t, "alphanum", fe[0].Tag)
	assert.Contains(t, fe.Error(), "name: alphanum")
}

func TestVar(t *testing.T) {
	v := New()
	assert.NoError(t, v.Var("drama", ptr(3.5), "required,min=0,max=5,halfstep"))

	var nilRating *float64
	err := v.Var("drama", nilRating, "required,min=0,max=5,halfstep")
	var fe FieldErrors
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, map[string]string{"drama": "required"}, fe.Map())

	err = v.Var("war", 4.75, "required,min=0,max=5,halfstep")
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, map[string]string{"war": "halfstep"}, fe.Map())
}

func TestStructRejectsNonStruct(t *testing.T) {
	err := New().Struct(42)
	require.Error(t, err)
	_, ok := err.(FieldErrors)
	assert.False(t, ok)
}
