package user

import (
	"fmt"
	"strings"
	"unicode"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/pmezard/go-difflib/difflib"

	"github.com/trezcool/ritmatiza/core"
)

var (
	roleTag  = "role"
	roleText = "invalid role"

	// password policy
	pwdMinLen     = 6
	pwdMinLenTag  = "pwdminlen"
	pwdMinLenText = fmt.Sprintf("password must contain at least %d characters", pwdMinLen)

	pwdNoSpaceTag  = "pwdnospace"
	pwdNoSpaceText = "password must not contain whitespace"

	pwdMaxSim      = .7
	pwdAttrSimTag  = "pwdtoosim"
	pwdAttrSimText = "password cannot be similar to user attributes"
)

// InitValidators registers the user validators on validate.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(roleTag, roleValidation)
	core.RegisterCustomTranslation(validate, translator, roleTag, roleText)

	validate.RegisterStructValidation(userStructValidation, NewUser{}, UpdateUser{})
	core.RegisterCustomTranslation(validate, translator, pwdMinLenTag, pwdMinLenText)
	core.RegisterCustomTranslation(validate, translator, pwdNoSpaceTag, pwdNoSpaceText)
	core.RegisterCustomTranslation(validate, translator, pwdAttrSimTag, pwdAttrSimText)
}

// Custom Validators

func roleValidation(fl validator.FieldLevel) bool {
	if role, ok := fl.Field().Interface().(Role); ok {
		return role.IsValid()
	}
	return false
}

// userStructValidation does struct level validation on NewUser and UpdateUser structs.
func userStructValidation(sl validator.StructLevel) {
	var pwd, name, email string
	switch usr := sl.Current().Interface().(type) {
	case NewUser:
		pwd, name, email = usr.Password, usr.Name, usr.Email
	case UpdateUser:
		pwd, name, email = usr.Password, usr.Name, usr.Email
	}
	// an empty password is reported by the field tags
	if pwd != "" {
		validatePassword(pwd, name, email, sl)
	}
}

// validatePassword applies the password policy to provided password:
// - minLen: 6
// - no whitespace
// - no user attrs similarity
func validatePassword(pwd, name, email string, sl validator.StructLevel) {
	reportErr := func(tag string) {
		sl.ReportError(pwd, "password", "Password", tag, "")
	}

	if len([]rune(pwd)) < pwdMinLen {
		reportErr(pwdMinLenTag)
		return
	}
	for _, char := range pwd {
		if unicode.IsSpace(char) {
			reportErr(pwdNoSpaceTag)
			return
		}
	}

	getRatio := func(pass, usrAttr string) float64 {
		if usrAttr == "" {
			return 0
		}
		return difflib.NewMatcher(strings.Split(strings.ToLower(pass), ""), strings.Split(strings.ToLower(usrAttr), "")).QuickRatio()
	}
	if getRatio(pwd, name) >= pwdMaxSim || getRatio(pwd, email) >= pwdMaxSim {
		reportErr(pwdAttrSimTag)
	}
}
