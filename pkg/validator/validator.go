package validator

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/validator/v10"

	"github.com/jwalitptl/theatre-api/internal/model"
)

// FieldError is one failed rule on one request field.
type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

var customRules = map[string]validator.Func{
	"theatre_type": func(fl validator.FieldLevel) bool {
		return model.TheatreType(fl.Field().String()).Valid()
	},
	"theatre_status": func(fl validator.FieldLevel) bool {
		return model.TheatreStatus(fl.Field().String()).Valid()
	},
	"surgery_type": func(fl validator.FieldLevel) bool {
		return model.SurgeryType(fl.Field().String()).Valid()
	},
	"case_priority": func(fl validator.FieldLevel) bool {
		return model.CasePriority(fl.Field().String()).Valid()
	},
	"consumable_category": func(fl validator.FieldLevel) bool {
		return model.ConsumableCategory(fl.Field().String()).Valid()
	},
	// open_tag accepts any value that normalizes to a grouping tag.
	"open_tag": func(fl validator.FieldLevel) bool {
		_, err := model.NormalizeTag(fl.Field().String())
		return err == nil
	},
}

var messages = map[string]string{
	"required":            "is required",
	"min":                 "is too small",
	"max":                 "is too large",
	"theatre_type":        "is not a known theatre type",
	"theatre_status":      "is not a known theatre status",
	"surgery_type":        "must be MAJOR, MINOR or DAY_CASE",
	"case_priority":       "must be ELECTIVE, URGENT or EMERGENCY",
	"consumable_category": "is not a known consumable category",
	"open_tag":            "must be a short lower-case tag",
}

// Register adds the domain rules to v and reports json field names in errors.
func Register(v *validator.Validate) error {
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" || name == "" {
			return fld.Name
		}
		return name
	})
	for tag, fn := range customRules {
		if err := v.RegisterValidation(tag, fn); err != nil {
			return fmt.Errorf("failed to register %s: %w", tag, err)
		}
	}
	return nil
}

// RegisterGin installs the rules on gin's binding engine.
func RegisterGin() error {
	v, ok := binding.Validator.Engine().(*validator.Validate)
	if !ok {
		return errors.New("gin binding engine is not go-playground/validator")
	}
	return Register(v)
}

// FieldErrors flattens validator errors for the response body. It returns
// nil for errors that did not come from the validator.
func FieldErrors(err error) []FieldError {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return nil
	}
	out := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		msg, ok := messages[fe.Tag()]
		if !ok {
			msg = "failed " + fe.Tag() + " validation"
		}
		out = append(out, FieldError{Field: fe.Field(), Message: msg})
	}
	return out
}
