package validator

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type sample struct {
	Address string `json:"address" validate:"required,eth_addr"`
	Amount  string `json:"amount" validate:"required"`
	Secret  string `json:"-" validate:"omitempty,hexadecimal"`
	Key     string `json:"key,omitempty" secret:"true" validate:"omitempty,hexadecimal"`
}

type wrapper struct {
	Inner *sample `json:"inner" validate:"required"`
}

func TestValidate(t *testing.T) {
	t.Run("valid struct", func(t *testing.T) {
		err := Validate(sample{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Amount: "1"})
		assert.NoError(t, err)
	})

	t.Run("missing fields use json names", func(t *testing.T) {
		err := Validate(sample{})
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "'address'")
		assert.Contains(t, err.Error(), "'amount'")
		assert.Contains(t, err.Error(), "'required'")
	})

	t.Run("bad address", func(t *testing.T) {
		err := Validate(sample{Address: "0x123", Amount: "1"})
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "eth_addr")
	})

	t.Run("ignored json name falls back to field name", func(t *testing.T) {
		err := Validate(sample{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Amount: "1", Secret: "zz"})
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "'Secret'")
	})

	t.Run("secret values are left out", func(t *testing.T) {
		key := "ac0974bec39a17e36ba4a6b4d238ff944bacb478cbed5efcae784d7bf4f2ff8Z"
		err := Validate(sample{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Amount: "1", Key: key})
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.Contains(t, err.Error(), "'key'")
		assert.Contains(t, err.Error(), "hexadecimal")
		assert.NotContains(t, err.Error(), key)
	})

	t.Run("nested secret values are left out", func(t *testing.T) {
		err := Validate(&wrapper{Inner: &sample{Address: "0x5aAeb6053F3E94C9b9A09f33669435E7Ef1BeAed", Amount: "1", Key: "xyz"}})
		assert.ErrorIs(t, err, ErrValidationFailed)
		assert.NotContains(t, err.Error(), "xyz")
	})

	t.Run("non struct input", func(t *testing.T) {
		err := Validate("not a struct")
		assert.Error(t, err)
		assert.NotErrorIs(t, err, ErrValidationFailed)
	})
}
