package handlers

import (
	"regexp"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
)

// Case-insensitive: codes are normalized to upper case downstream.
var assetCodePattern = regexp.MustCompile(`^(?i)[A-Z0-9_]{1,50}$`)

// SetupValidator registers the custom binding validators. Safe to call more
// than once.
func SetupValidator() {
	if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
		_ = v.RegisterValidation("asset_code", func(fl validator.FieldLevel) bool {
			return assetCodePattern.MatchString(fl.Field().String())
		})
	}
}
