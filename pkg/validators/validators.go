package validators

import (
	"fmt"
	"reflect"
	"strings"
	"sync"

	pkgerrors "github.com/angelmondragon/tableside/pkg/errors"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
)

var (
	once     sync.Once
	validate *validator.Validate
)

// Instance returns the shared validator with json tag names and decimal support.
func Instance() *validator.Validate {
	once.Do(func() {
		validate = newValidator()
	})
	return validate
}

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	v.RegisterTagNameFunc(func(f reflect.StructField) string {
		tag := strings.SplitN(f.Tag.Get("json"), ",", 2)[0]
		if tag == "" || tag == "-" {
			return f.Name
		}
		return tag
	})
	v.RegisterCustomTypeFunc(func(field reflect.Value) any {
		if d, ok := field.Interface().(decimal.Decimal); ok {
			f, _ := d.Float64()
			return f
		}
		return nil
	}, decimal.Decimal{})
	return v
}

// RegisterStructRules attaches struct-level rules for the given types.
func RegisterStructRules(fn validator.StructLevelFunc, types ...any) {
	Instance().RegisterStructValidation(fn, types...)
}

// Struct validates dest and returns a VALIDATION_ERROR carrying a field→message map.
func Struct(dest any) error {
	if err := Instance().Struct(dest); err != nil {
		return FormatErrors(err)
	}
	return nil
}

// FormatErrors converts validator output into the shared error type.
func FormatErrors(err error) *pkgerrors.Error {
	if errs, ok := err.(validator.ValidationErrors); ok {
		details := map[string]string{}
		for _, fieldErr := range errs {
			details[fieldPath(fieldErr)] = Message(fieldErr)
		}
		return pkgerrors.New(pkgerrors.CodeValidation, "validation failed").WithDetails(details)
	}
	return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "validation failed")
}

// fieldPath drops the root struct name so nested keys read like "dish_items[0].quantity".
func fieldPath(fe validator.FieldError) string {
	ns := fe.Namespace()
	if idx := strings.Index(ns, "."); idx >= 0 {
		return ns[idx+1:]
	}
	return fe.Field()
}

// Message renders a short human message for a failed tag.
func Message(fe validator.FieldError) string {
	switch fe.Tag() {
	case "required":
		return "is required"
	case "min":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "max":
		return fmt.Sprintf("must be at most %s", fe.Param())
	case "gt":
		return fmt.Sprintf("must be greater than %s", fe.Param())
	case "gte":
		return fmt.Sprintf("must be at least %s", fe.Param())
	case "oneof":
		return fmt.Sprintf("must be one of [%s]", fe.Param())
	case "unique":
		return "must not contain duplicates"
	case "email":
		return "must be a valid email"
	}
	if msg, ok := customMessages.Load(fe.Tag()); ok {
		return msg.(string)
	}
	return "is invalid"
}

var customMessages sync.Map

// RegisterMessage sets the message reported for a custom or struct-level tag.
func RegisterMessage(tag, message string) {
	customMessages.Store(tag, message)
}
