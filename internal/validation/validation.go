// Package validation checks user-supplied names and coordinates before they are persisted.
package validation

import (
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/go-playground/validator/v10"

	"github.com/kjstillabower/weather-dashboard/internal/models"
)

// ErrNameEmpty is returned when a name is empty or whitespace-only after trim.
var ErrNameEmpty = errors.New("name is required")

// ErrNameTooLong is returned when a name exceeds the maximum length.
var ErrNameTooLong = errors.New("name too long")

// ErrNameInvalidChars is returned when a name contains disallowed characters.
var ErrNameInvalidChars = errors.New("name contains invalid characters")

// ErrInvalid wraps struct validation failures.
var ErrInvalid = errors.New("invalid value")

// MaxNameLength bounds favorite names, in runes.
const MaxNameLength = 120

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New(validator.WithRequiredStructEnabled())
	_ = v.RegisterValidation("latitude_or_saturn", func(fl validator.FieldLevel) bool {
		lat := fl.Field().Float()
		return lat == models.SaturnLatitude || (lat >= -90 && lat <= 90)
	})
	_ = v.RegisterValidation("longitude_or_saturn", func(fl validator.FieldLevel) bool {
		lon := fl.Field().Float()
		return lon == models.SaturnLongitude || (lon >= -180 && lon <= 180)
	})
	_ = v.RegisterValidation("placename", func(fl validator.FieldLevel) bool {
		_, err := ValidateName(fl.Field().String(), 0)
		return err == nil
	})
	return v
}

// ValidateName trims the input, enforces maxLen (in runes, 0 for no bound),
// and restricts to letters (Unicode), digits, space, comma, hyphen, period and apostrophe.
// Returns the trimmed string.
func ValidateName(input string, maxLen int) (string, error) {
	s := strings.TrimSpace(input)
	r := []rune(s)
	n := len(r)
	if n == 0 {
		return "", ErrNameEmpty
	}
	if maxLen > 0 && n > maxLen {
		return "", ErrNameTooLong
	}
	for _, c := range r {
		if !isAllowedNameRune(c) {
			return "", ErrNameInvalidChars
		}
	}
	return s, nil
}

func isAllowedNameRune(r rune) bool {
	if unicode.IsLetter(r) || unicode.IsNumber(r) {
		return true
	}
	switch r {
	case ' ', ',', '-', '.', '\'':
		return true
	}
	return false
}

// Struct validates v against its `validate` tags and flattens field errors
// into one error wrapping ErrInvalid.
func Struct(v any) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var fieldErrs validator.ValidationErrors
	if !errors.As(err, &fieldErrs) {
		return fmt.Errorf("%w: %w", ErrInvalid, err)
	}
	parts := make([]string, 0, len(fieldErrs))
	for _, fe := range fieldErrs {
		parts = append(parts, fmt.Sprintf("%s failed %s", strings.ToLower(fe.Field()), fe.Tag()))
	}
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(parts, "; "))
}

type coordinate struct {
	Latitude  float64 `validate:"latitude_or_saturn"`
	Longitude float64 `validate:"longitude_or_saturn"`
}

// Coordinate checks that lat and lon are on Earth or are the Saturn sentinel.
func Coordinate(lat, lon float64) error {
	return Struct(coordinate{Latitude: lat, Longitude: lon})
}
