package validator

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	govalidator "github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
	"github.com/stemsi/mockmate/internal/exam"
)

var (
	// trans is the singleton English translator for validation errors.
	trans ut.Translator
	// plain validates payloads that do not come through gin (websocket
	// messages); it reads `validate` tags.
	plain *govalidator.Validate
	once  sync.Once
)

// Setup registers the validator with English translations on Gin's binding
// engine and prepares the standalone engine used by Struct.
// Safe to call more than once.
func Setup() {
	once.Do(func() {
		enLocale := en.New()
		uni := ut.New(enLocale, enLocale)
		trans, _ = uni.GetTranslator("en")

		if v, ok := binding.Validator.Engine().(*govalidator.Validate); ok {
			configure(v)
		}
		plain = govalidator.New(govalidator.WithRequiredStructEnabled())
		configure(plain)
	})
}

func configure(v *govalidator.Validate) {
	// Use JSON tag name for field names in error messages.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("testcode", func(fl govalidator.FieldLevel) bool {
		return exam.ValidCode(fl.Field().String())
	})

	_ = en_translations.RegisterDefaultTranslations(v, trans)
	_ = v.RegisterTranslation("testcode", trans,
		func(ut ut.Translator) error {
			return ut.Add("testcode", "{0} must be exactly 4 uppercase letters or digits", true)
		},
		func(ut ut.Translator, fe govalidator.FieldError) string {
			t, _ := ut.T("testcode", fe.Field())
			return t
		},
	)
}

// TranslateErrors takes a binding/validation error and returns a map of
// field name → human-readable error message. If the error is not a
// validation error, it returns a single-key map with "detail".
func TranslateErrors(err error) map[string]string {
	fields := make(map[string]string)

	var ve govalidator.ValidationErrors
	if errors.As(err, &ve) {
		for _, fe := range ve {
			fields[fe.Field()] = fe.Translate(trans)
		}
		return fields
	}

	var fe *exam.FieldError
	if errors.As(err, &fe) {
		fields[fe.Field] = fe.Field + " " + fe.Reason
		return fields
	}

	// Not a validation error (e.g., JSON syntax error).
	fields["detail"] = err.Error()
	return fields
}

// Bind binds and validates the request body into dst.
// Returns nil on success or a translated field error map on failure.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// BindQuery binds and validates query parameters into dst.
func BindQuery(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindQuery(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}

// Struct validates a decoded payload using its `validate` tags.
func Struct(v any) map[string]string {
	Setup()
	if err := plain.Struct(v); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
