// internal/validator/validator.go
package validator

import (
	"regexp"
	"sync/atomic"

	"finance-tracker/internal/catalog"
	"finance-tracker/internal/domain"

	"github.com/go-playground/validator/v10"
)

var Validate *validator.Validate

var (
	nonSpace      = regexp.MustCompile(`\S`)
	activeCatalog atomic.Pointer[catalog.Catalog]
)

func init() {
	Validate = validator.New()
	activeCatalog.Store(catalog.Default())

	// non-empty and not only whitespace
	_ = Validate.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return nonSpace.MatchString(fl.Field().String())
	})

	// positive, at most two fractional digits: "12.50", "12,50"
	_ = Validate.RegisterValidation("money", func(fl validator.FieldLevel) bool {
		_, err := domain.ParseMoney(fl.Field().String())
		return err == nil
	})

	_ = Validate.RegisterValidation("category", func(fl validator.FieldLevel) bool {
		return activeCatalog.Load().Contains(catalog.Normalize(fl.Field().String()))
	})
}

// RegisterCatalog makes the category tag check against cat instead of the built-in catalog.
func RegisterCatalog(cat *catalog.Catalog) {
	if cat != nil {
		activeCatalog.Store(cat)
	}
}
