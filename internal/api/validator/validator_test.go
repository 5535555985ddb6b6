package validator

import (
	"testing"

	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type studentInput struct {
	Name        string `json:"name"          validate:"required,personname"`
	DateOfBirth string `json:"date_of_birth" validate:"required,birthdate"`
}

type markInput struct {
	Term  int              `json:"term"  validate:"required,term"`
	Score *decimal.Decimal `json:"score" validate:"required,min=0,max=100"`
}

func newValidator(t *testing.T) *validator.Validate {
	t.Helper()
	v := validator.New()
	trans, err := Register(v)
	require.NoError(t, err)
	translator = trans
	return v
}

func dec(s string) *decimal.Decimal {
	d := decimal.RequireFromString(s)
	return &d
}

func TestPersonName(t *testing.T) {
	v := newValidator(t)

	cases := map[string]bool{
		"Alice":     true,
		"Mary Jane": true,
		"张三":        true,
		"R2D2":      false,
		"   ":       false,
	}
	for name, ok := range cases {
		err := v.Struct(studentInput{Name: name, DateOfBirth: "2010-01-01"})
		assert.Equal(t, ok, err == nil, "name=%q err=%v", name, err)
	}
}

func TestBirthDate(t *testing.T) {
	v := newValidator(t)

	cases := map[string]bool{
		"1930-01-01": true,
		"2025-12-31": true,
		"1929-12-31": false,
		"2026-01-01": false,
		"2010/01/01": false,
	}
	for dob, ok := range cases {
		err := v.Struct(studentInput{Name: "Alice", DateOfBirth: dob})
		assert.Equal(t, ok, err == nil, "dob=%q err=%v", dob, err)
	}
}

func TestTermAndScore(t *testing.T) {
	v := newValidator(t)

	assert.NoError(t, v.Struct(markInput{Term: 1, Score: dec("0")}))
	assert.NoError(t, v.Struct(markInput{Term: 3, Score: dec("100")}))
	assert.Error(t, v.Struct(markInput{Term: 4, Score: dec("50")}))
	assert.Error(t, v.Struct(markInput{Term: 2, Score: dec("100.5")}))
	assert.Error(t, v.Struct(markInput{Term: 2, Score: dec("-1")}))
	assert.Error(t, v.Struct(markInput{Term: 2}))
}

func TestTranslate(t *testing.T) {
	v := newValidator(t)

	err := v.Struct(studentInput{Name: "R2D2", DateOfBirth: "1900-01-01"})
	require.Error(t, err)

	msgs := Translate(err)
	assert.Contains(t, msgs["name"], "不能包含数字")
	assert.Contains(t, msgs["date_of_birth"], "1930")
	assert.Nil(t, Translate(assert.AnError))
}
