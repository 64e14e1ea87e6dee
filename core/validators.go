package core

import (
	"reflect"
	"regexp"
	"strings"
	"time"

	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	en_translations "github.com/go-playground/validator/v10/translations/en"
)

var (
	// custom validation tags & texts
	trackIDTag   = "trackid"
	trackIDText  = "invalid track id"
	trackIDRegex = regexp.MustCompile(`^[A-Za-z0-9]+$`)

	futureDateTag  = "future_date"
	futureDateText = "{0} must be after today"

	requiredTag     = "required"
	requiredWithTag = "required_with"
	requiredText    = "this field is required"

	// NowFunc is used by date validators.
	NowFunc Clock = SystemClock // mockable
)

// NewTranslator returns the english translator used for validation messages.
func NewTranslator() ut.Translator {
	_en := en.New()
	uni := ut.New(_en, _en)
	translator, _ := uni.GetTranslator("en")
	return translator
}

// InitValidators instantiates the validator for use.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = en_translations.RegisterDefaultTranslations(validate, translator)

	// Use JSON tag names for errors instead of Go struct names.
	validate.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		if name == "" {
			name = strings.SplitN(fld.Tag.Get("query"), ",", 2)[0]
		}
		return name
	})

	// register custom validators
	_ = validate.RegisterValidation(trackIDTag, trackIDValidation)
	RegisterCustomTranslation(validate, translator, trackIDTag, trackIDText)

	_ = validate.RegisterValidation(futureDateTag, futureDateValidation)
	RegisterCustomTranslation(validate, translator, futureDateTag, futureDateText)

	RegisterCustomTranslation(validate, translator, requiredTag, requiredText, true)
	RegisterCustomTranslation(validate, translator, requiredWithTag, requiredText, true)
}

// RegisterCustomTranslation registers a custom translation for the specified validation tag.
func RegisterCustomTranslation(validate *validator.Validate, translator ut.Translator, tag, text string, override ...bool) {
	var ovrd bool
	if len(override) > 0 {
		ovrd = override[0]
	}
	_ = validate.RegisterTranslation(
		tag, translator,
		func(t ut.Translator) error { return t.Add(tag, text, ovrd) },
		func(t ut.Translator, fe validator.FieldError) string {
			s, _ := t.T(tag, fe.Field())
			return s
		},
	)
}

// Custom Global Validators

// trackIDValidation only allows the base62 ids used by the music service.
func trackIDValidation(fl validator.FieldLevel) bool {
	return trackIDRegex.MatchString(fl.Field().String())
}

// futureDateValidation checks that a date falls strictly after today (UTC).
func futureDateValidation(fl validator.FieldLevel) bool {
	t, ok := fl.Field().Interface().(time.Time)
	if !ok {
		return false
	}
	y, m, d := NowFunc().UTC().Date()
	endOfToday := time.Date(y, m, d, 0, 0, 0, 0, time.UTC).Add(24 * time.Hour)
	return !t.UTC().Before(endOfToday)
}
