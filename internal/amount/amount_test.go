package amount

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		raw     string
		wantErr error
	}{
		{"", nil},
		{"0", nil},
		{"1", nil},
		{"1.", nil},
		{".5", nil},
		{".", nil},
		{"1.5", nil},
		{"1.12345678", nil},
		{"00012.10", nil},
		{"1.123456789", ErrPrecision},
		{"1.2.3", ErrInvalid},
		{"1..", ErrInvalid},
		{"-1", ErrInvalid},
		{"1e5", ErrInvalid},
		{" 1", ErrInvalid},
		{"1,5", ErrInvalid},
		{"abc", ErrInvalid},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			err := Validate(tt.raw)
			if tt.wantErr == nil {
				assert.NoError(t, err)
			} else {
				assert.ErrorIs(t, err, tt.wantErr)
			}
		})
	}
}

func TestParse(t *testing.T) {
	tests := []struct {
		raw    string
		want   string
		wantOK bool
	}{
		{"", "0", false},
		{".", "0", false},
		{"1.2.3", "0", false},
		{"1", "1", true},
		{"1.", "1", true},
		{".5", "0.5", true},
		{"10.005", "10.005", true},
		{"0", "0", true},
	}

	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, ok := Parse(tt.raw)
			assert.Equal(t, tt.wantOK, ok)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestPositive(t *testing.T) {
	_, ok := Positive("0")
	assert.False(t, ok)
	_, ok = Positive("0.000")
	assert.False(t, ok)
	_, ok = Positive("")
	assert.False(t, ok)

	d, ok := Positive("0.00000001")
	assert.True(t, ok)
	assert.Equal(t, "0.00000001", d.String())
}
