package utils

import (
	"errors"
	"reflect"
	"strings"
)

// Minimal internal validator to avoid an external dependency. Supports:
// - required
// - usernameok (letters, digits, underscore, dot, 3-30 chars)
// - pwdmin (min length 6)
// - eqfield=OtherField (field equals another field)

func usernameOK(s string) bool {
	if len(s) < 3 || len(s) > 30 {
		return false
	}
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '_', r == '.':
		default:
			return false
		}
	}
	return true
}

// ValidateStruct inspects struct tags `validate:"..."` and returns the first
// error encountered.
func ValidateStruct(s interface{}) error {
	v := reflect.ValueOf(s)
	if v.Kind() == reflect.Ptr {
		v = v.Elem()
	}
	if v.Kind() != reflect.Struct {
		return errors.New("ValidateStruct expects a struct or pointer to struct")
	}
	t := v.Type()
	for i := 0; i < t.NumField(); i++ {
		field := t.Field(i)
		tag := field.Tag.Get("validate")
		if tag == "" {
			continue
		}
		fv := v.Field(i)
		var sval string
		if fv.IsValid() && fv.Kind() == reflect.String {
			sval = fv.String()
		}
		for _, p := range strings.Split(tag, ",") {
			p = strings.TrimSpace(p)
			switch {
			case p == "required":
				if sval == "" {
					return errors.New(field.Name + " is required")
				}
			case p == "usernameok":
				if sval != "" && !usernameOK(sval) {
					return errors.New(field.Name + " must be 3-30 letters, digits, '_' or '.'")
				}
			case p == "pwdmin":
				if len(sval) < 6 {
					return errors.New(field.Name + " must be at least 6 characters")
				}
			case strings.HasPrefix(p, "eqfield="):
				other := v.FieldByName(strings.TrimPrefix(p, "eqfield="))
				if !other.IsValid() || other.Kind() != reflect.String || other.String() != sval {
					return errors.New(field.Name + " does not match")
				}
			}
		}
	}
	return nil
}
