// Package validation registers campus-specific binding rules on gin's validator.
package validation

import (
	"regexp"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/campus-events/backend/internal/models"
)

var (
	collegeIDRe = regexp.MustCompile(`^[A-Za-z0-9-]{4,20}$`)
	hhmmRe      = regexp.MustCompile(`^([01]\d|2[0-3]):[0-5]\d$`)
	phoneRe     = regexp.MustCompile(`^\+?[0-9]{10,15}$`)

	once    sync.Once
	errOnce error
)

// Register installs the department, college_id, hhmm, phone and category rules.
// It is safe to call more than once.
func Register() error {
	once.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		errOnce = RegisterOn(v)
	})
	return errOnce
}

// RegisterOn installs the rules on v.
func RegisterOn(v *validator.Validate) error {
	rules := map[string]validator.Func{
		"department": func(fl validator.FieldLevel) bool {
			return models.ValidDepartment(fl.Field().String())
		},
		"college_id": func(fl validator.FieldLevel) bool {
			return collegeIDRe.MatchString(fl.Field().String())
		},
		"hhmm": func(fl validator.FieldLevel) bool {
			return ValidTime(fl.Field().String())
		},
		"phone": func(fl validator.FieldLevel) bool {
			return phoneRe.MatchString(fl.Field().String())
		},
		"category": func(fl validator.FieldLevel) bool {
			_, ok := models.ParseCategory(fl.Field().String())
			return ok
		},
	}
	for tag, fn := range rules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return err
		}
	}
	return nil
}

// ValidTime reports whether s is a 24h HH:MM time.
func ValidTime(s string) bool {
	return hhmmRe.MatchString(s)
}
