package middleware

import (
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	medvalidator "github.com/jwalitptl/medvault-api/pkg/validator"
)

var registerOnce sync.Once

// RegisterValidators installs the custom binding tags on gin's validator.
// It is safe to call more than once.
func RegisterValidators() error {
	var err error
	registerOnce.Do(func() {
		if v, ok := binding.Validator.Engine().(*validator.Validate); ok {
			err = medvalidator.Register(v)
		}
	})
	return err
}
