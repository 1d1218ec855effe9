package dashboard

import (
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"

	"clubadmin/internal/stats"
)

// FieldError is a problem with one request field.
type FieldError struct {
	Field string `json:"field"`
	Error string `json:"error"`
}

// ValidationError is returned for requests that fail input validation.
type ValidationError struct {
	Err    error
	Fields []FieldError
}

func NewValidationError(err error, flds ...FieldError) error {
	return &ValidationError{err, flds}
}

func (err *ValidationError) Error() string {
	if err.Err == nil {
		return "validation failed"
	}
	return err.Err.Error()
}

func (err *ValidationError) Unwrap() error { return err.Err }

// FieldMap returns field -> message, the shape the HTTP layer answers with.
func (err *ValidationError) FieldMap() map[string]string {
	out := make(map[string]string, len(err.Fields))
	for _, f := range err.Fields {
		out[f.Field] = f.Error
	}
	return out
}

var (
	validate   *validator.Validate
	translator ut.Translator

	notBlankTag = "notblank"
	hexColorTag = "palettecolor"
)

func init() {
	validate = validator.New()

	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ = uni.GetTranslator("en")
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Report fields by their json (or form) names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		for _, tag := range []string{"json", "form"} {
			name := strings.SplitN(fld.Tag.Get(tag), ",", 2)[0]
			if name == "-" {
				return ""
			}
			if name != "" {
				return name
			}
		}
		return fld.Name
	})

	_ = validate.RegisterValidation(notBlankTag, func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = validate.RegisterValidation(hexColorTag, func(fl validator.FieldLevel) bool {
		want := strings.ToUpper(fl.Field().String())
		for _, c := range stats.Palette {
			if c == want {
				return true
			}
		}
		return false
	})

	noop := func(ut.Translator) error { return nil }
	_ = validate.RegisterTranslation(notBlankTag, translator, noop, translateCustom)
	_ = validate.RegisterTranslation(hexColorTag, translator, noop, translateCustom)
}

func translateCustom(_ ut.Translator, fe validator.FieldError) string {
	switch fe.Tag() {
	case notBlankTag:
		return fmt.Sprintf("%s cannot be blank", fe.Field())
	case hexColorTag:
		return fmt.Sprintf("%s must be one of the category palette colors", fe.Field())
	default:
		return fe.Error()
	}
}

// Validate checks v against its struct tags.
func Validate(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) {
		return err
	}
	fields := make([]FieldError, 0, len(verrs))
	for _, fe := range verrs {
		fields = append(fields, FieldError{Field: fe.Field(), Error: fe.Translate(translator)})
	}
	return NewValidationError(errors.New("invalid request"), fields...)
}

// fromStats lifts a derivation validation error into a request error.
func fromStats(err error) error {
	var serr *stats.ValidationError
	if errors.As(err, &serr) {
		return NewValidationError(err, FieldError{Field: serr.Field, Error: serr.Reason})
	}
	return err
}
