package notification

import (
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"

	"github.com/trezcool/academia/core"
)

var (
	notifTypeTag  = "notiftype"
	notifTypeText = "invalid notification type"
)

// InitValidators registers the notification validators.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(notifTypeTag, notifTypeValidation)
	core.RegisterCustomTranslation(validate, translator, notifTypeTag, notifTypeText)
}

func notifTypeValidation(fl validator.FieldLevel) bool {
	typ := Type(fl.Field().String())
	for _, t := range AllTypes {
		if t == typ {
			return true
		}
	}
	return false
}
