package serrors

import "errors"

// Base is an error carrying a stable machine-readable code next to the
// human-readable message. LocaleKey points at the responder catalogue entry
// used when the error is shown to an end user.
type Base struct {
	Code      string
	Message   string
	LocaleKey string
}

func NewError(code, message, localeKey string) *Base {
	return &Base{
		Code:      code,
		Message:   message,
		LocaleKey: localeKey,
	}
}

func (e *Base) Error() string {
	return e.Message
}

// Is matches any *Base with the same code, so wrapped copies still satisfy errors.Is.
func (e *Base) Is(target error) bool {
	var other *Base
	if !errors.As(target, &other) {
		return false
	}
	return other.Code == e.Code
}

// Code extracts the code of the first *Base in the chain, or "" if none.
func Code(err error) string {
	var base *Base
	if errors.As(err, &base) {
		return base.Code
	}
	return ""
}
