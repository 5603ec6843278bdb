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
)

// Navigation directions accepted by the question_direction rule.
const (
	DirectionNext     = "next"
	DirectionPrevious = "previous"
)

// rule is a custom validation tag together with its English message.
// {0} in message is replaced by the JSON field name.
type rule struct {
	tag     string
	fn      govalidator.Func
	message string
}

var rules = []rule{
	{
		tag: "question_direction",
		fn: func(fl govalidator.FieldLevel) bool {
			d := fl.Field().String()
			return d == DirectionNext || d == DirectionPrevious
		},
		message: "{0} must be either 'next' or 'previous'",
	},
	{
		tag: "nonblank",
		fn: func(fl govalidator.FieldLevel) bool {
			return strings.TrimSpace(fl.Field().String()) != ""
		},
		message: "{0} must not be blank",
	},
}

var (
	setupOnce sync.Once
	trans     ut.Translator
)

// Setup installs English translations, JSON field naming and the custom
// rules on gin's binding engine. Safe to call more than once.
func Setup() {
	setupOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*govalidator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(jsonFieldName)

		locale := en.New()
		trans, _ = ut.New(locale, locale).GetTranslator("en")
		_ = en_translations.RegisterDefaultTranslations(v, trans)

		for _, r := range rules {
			register(v, r)
		}
	})
}

func register(v *govalidator.Validate, r rule) {
	_ = v.RegisterValidation(r.tag, r.fn)
	_ = v.RegisterTranslation(r.tag, trans,
		func(t ut.Translator) error { return t.Add(r.tag, r.message, true) },
		func(t ut.Translator, fe govalidator.FieldError) string {
			msg, _ := t.T(r.tag, fe.Field())
			return msg
		},
	)
}

func jsonFieldName(fld reflect.StructField) string {
	name, _, _ := strings.Cut(fld.Tag.Get("json"), ",")
	if name == "-" {
		return ""
	}
	return name
}

// TranslateErrors maps a binding error to field name -> message. Errors that
// are not validation errors (malformed JSON, wrong types) land under "detail".
func TranslateErrors(err error) map[string]string {
	var ve govalidator.ValidationErrors
	if !errors.As(err, &ve) {
		return map[string]string{"detail": err.Error()}
	}

	fields := make(map[string]string, len(ve))
	for _, fe := range ve {
		msg := fe.Error()
		if trans != nil {
			msg = fe.Translate(trans)
		}
		fields[fe.Field()] = msg
	}
	return fields
}

// Bind decodes the JSON body into dst and validates it. It returns nil on
// success.
func Bind(c *gin.Context, dst any) map[string]string {
	if err := c.ShouldBindJSON(dst); err != nil {
		return TranslateErrors(err)
	}
	return nil
}
