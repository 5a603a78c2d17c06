package validator

import (
	"testing"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sample struct {
	Name     string `validate:"required,notblank"`
	Amount   string `validate:"required,money"`
	Category string `validate:"required,category"`
}

func TestCustomTags(t *testing.T) {
	tests := []struct {
		name  string
		in    sample
		valid bool
	}{
		{"ok", sample{"Lunch", "12.50", "food"}, true},
		{"comma amount", sample{"Lunch", "12,5", "Food"}, true},
		{"blank name", sample{"   ", "1", "food"}, false},
		{"zero amount", sample{"x", "0", "food"}, false},
		{"three places", sample{"x", "1.001", "food"}, false},
		{"not a number", sample{"x", "ten", "food"}, false},
		{"unknown category", sample{"x", "1", "rent"}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := Validate.Struct(tt.in)
			if tt.valid {
				assert.NoError(t, err)
			} else {
				assert.Error(t, err)
			}
		})
	}
}

func TestRegisterCatalog(t *testing.T) {
	custom, err := catalog.New([]domain.CategoryInfo{{Key: "rent", Label: "Rent"}})
	require.NoError(t, err)

	RegisterCatalog(custom)
	t.Cleanup(func() { RegisterCatalog(catalog.Default()) })

	assert.NoError(t, Validate.Struct(sample{"x", "1", "rent"}))
	assert.Error(t, Validate.Struct(sample{"x", "1", "food"}))
}
