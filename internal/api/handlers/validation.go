package handlers

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"stationhub/internal/nowplaying"
	"stationhub/internal/quality"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags used by request structs.
func RegisterValidators() {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		_ = v.RegisterValidation("feedback_type", func(fl validator.FieldLevel) bool {
			return quality.FeedbackType(fl.Field().String()).IsValid()
		})
		_ = v.RegisterValidation("metadata_api_type", func(fl validator.FieldLevel) bool {
			s := fl.Field().String()
			return s == "" || nowplaying.IsSupported(s)
		})
	})
}
