package handler

import (
	"errors"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"
	"github.com/timmy/imagelens/internal/imageformat"
)

var (
	registerOnce sync.Once
	registerErr  error
)

// RegisterValidators adds the "image" tag to gin's validator engine. It is
// safe to call more than once.
func RegisterValidators() error {
	registerOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			registerErr = errors.New("binding engine is not a go-playground validator")
			return
		}
		registerErr = v.RegisterValidation("image", validateImage)
	})
	return registerErr
}

// validateImage accepts a []byte whose header parses as one of the
// registered image formats.
func validateImage(fl validator.FieldLevel) bool {
	data, ok := fl.Field().Interface().([]byte)
	if !ok || len(data) == 0 {
		return false
	}
	_, _, err := imageformat.DecodeConfig(data)
	return err == nil
}

// imageContent is validated after the multipart file has been read.
type imageContent struct {
	Data []byte `binding:"image"`
}
