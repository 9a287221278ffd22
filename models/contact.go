package models

import (
	"regexp"
	"strings"

	"github.com/go-playground/validator/v10"
)

type ContactKind int

const (
	ContactPhone ContactKind = iota
	ContactEmail
)

func (k ContactKind) String() string {
	if k == ContactEmail {
		return "email"
	}
	return "sms"
}

var (
	validate = validator.New()

	phoneSeparators = strings.NewReplacer(" ", "", "-", "", "(", "", ")", "", ".", "")
	phonePattern    = regexp.MustCompile(`^\+?\d{8,15}$`)
	nonDigits       = regexp.MustCompile(`\D`)
	auMobilePattern = regexp.MustCompile(`^\+614\d{8}$`)
)

// KindOf classifies contact info: anything containing "@" is an email address.
func KindOf(contact string) ContactKind {
	if strings.Contains(contact, "@") {
		return ContactEmail
	}
	return ContactPhone
}

// IsEmail requires a dotted domain on top of the validator's address syntax.
func IsEmail(contact string) bool {
	contact = strings.TrimSpace(contact)
	if validate.Var(contact, "required,email") != nil {
		return false
	}
	at := strings.LastIndex(contact, "@")
	return strings.Contains(contact[at+1:], ".")
}

// IsPhone accepts 8 to 15 digits with an optional leading "+", ignoring common separators.
func IsPhone(contact string) bool {
	return phonePattern.MatchString(phoneSeparators.Replace(strings.TrimSpace(contact)))
}

// FormatAUMobile rewrites an Australian mobile number into +61 form: "0412 345 678" and
// "61412345678" both become "+61412345678". Other shapes are returned digits-only with a
// leading "+".
func FormatAUMobile(phone string) string {
	phone = strings.TrimSpace(phone)
	digits := nonDigits.ReplaceAllString(phone, "")
	switch {
	case strings.HasPrefix(digits, "04"):
		return "+614" + digits[2:]
	case strings.HasPrefix(digits, "614"):
		return "+" + digits
	case strings.HasPrefix(phone, "+"):
		return "+" + digits
	default:
		return "+61" + strings.TrimPrefix(digits, "0")
	}
}

// IsAUMobile reports whether phone normalises to a +614XXXXXXXX number.
func IsAUMobile(phone string) bool {
	return auMobilePattern.MatchString(FormatAUMobile(phone))
}
