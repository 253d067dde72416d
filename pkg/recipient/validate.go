package recipient

import (
	"net/mail"
	"strings"
)

// Validate checks a raw row against the recipient schema.
// It returns either a Record or a FieldErrors value holding every failure
// found in the row; it never stops at the first one.
func Validate(row RawRow) (Record, error) {
	var errs FieldErrors

	email := strings.TrimSpace(row[FieldEmail])
	switch {
	case email == "":
		errs = append(errs, FieldError{
			Field:   FieldEmail,
			Code:    CodeMissingEmail,
			Message: "email is required",
		})
	case !IsEmail(email):
		errs = append(errs, FieldError{
			Field:   FieldEmail,
			Code:    CodeInvalidEmail,
			Message: "value is not a valid email address",
		})
	}

	optOut, ok := ParseBool(row[FieldOptOut])
	if !ok {
		errs = append(errs, FieldError{
			Field:   FieldOptOut,
			Code:    CodeInvalidOptOut,
			Message: "value could not be parsed to a boolean",
		})
	}

	if len(errs) > 0 {
		return Record{}, errs
	}

	_, hasFirst := row[FieldFirstName]
	_, hasLast := row[FieldLastName]

	return Record{
		email:        email,
		firstName:    optional(row[FieldFirstName]),
		lastName:     optional(row[FieldLastName]),
		optOut:       optOut,
		hasFirstName: hasFirst,
		hasLastName:  hasLast,
	}, nil
}

// IsEmail reports whether s is a bare addr-spec with a dotted domain.
// Display names and angle-bracket forms are rejected.
func IsEmail(s string) bool {
	if s == "" || strings.ContainsAny(s, " <>\"") {
		return false
	}
	addr, err := mail.ParseAddress(s)
	if err != nil || addr.Address != s || addr.Name != "" {
		return false
	}

	at := strings.LastIndexByte(s, '@')
	if at <= 0 || at == len(s)-1 {
		return false
	}
	domain := s[at+1:]
	if !strings.Contains(domain, ".") {
		return false
	}
	for _, label := range strings.Split(domain, ".") {
		if label == "" || strings.HasPrefix(label, "-") || strings.HasSuffix(label, "-") {
			return false
		}
	}
	return true
}

// ParseBool coerces common textual boolean forms, case-insensitively.
// An empty value yields false and ok.
func ParseBool(s string) (value bool, ok bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "":
		return false, true
	case "true", "t", "1", "yes", "y", "on":
		return true, true
	case "false", "f", "0", "no", "n", "off":
		return false, true
	}
	return false, false
}

func optional(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}
