package validation

import (
	"fmt"
	"net/mail"
	"regexp"
	"strings"
	"unicode/utf8"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 5000
	MaxNameLength        = 255
	MaxPhoneLength       = 20
	MaxURLLength         = 500

	MinTitleLength    = 1
	MinPasswordLength = 6
	MaxPasswordLength = 72 // bcrypt input limit
)

var phoneRegex = regexp.MustCompile(`^\+?[0-9 ()\-]{6,20}$`)

func ValidateTitle(title string) error {
	title = strings.TrimSpace(title)
	if utf8.RuneCountInString(title) < MinTitleLength {
		return fmt.Errorf("title cannot be empty")
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return fmt.Errorf("title cannot exceed %d characters", MaxTitleLength)
	}
	return nil
}

// ValidateDescription allows empty descriptions.
func ValidateDescription(description string) error {
	if utf8.RuneCountInString(description) > MaxDescriptionLength {
		return fmt.Errorf("description cannot exceed %d characters", MaxDescriptionLength)
	}
	return nil
}

func ValidateName(name string) error {
	name = strings.TrimSpace(name)
	if name == "" {
		return fmt.Errorf("name is required")
	}
	if utf8.RuneCountInString(name) > MaxNameLength {
		return fmt.Errorf("name cannot exceed %d characters", MaxNameLength)
	}
	return nil
}

func ValidateEmail(email string) error {
	if email == "" {
		return fmt.Errorf("email is required")
	}
	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		return fmt.Errorf("invalid email")
	}
	return nil
}

func ValidatePassword(password string) error {
	if len(password) < MinPasswordLength {
		return fmt.Errorf("password must be at least %d characters long", MinPasswordLength)
	}
	if len(password) > MaxPasswordLength {
		return fmt.Errorf("password cannot exceed %d bytes", MaxPasswordLength)
	}
	return nil
}

// ValidatePhone allows an empty phone.
func ValidatePhone(phone string) error {
	if phone == "" {
		return nil
	}
	if !phoneRegex.MatchString(phone) {
		return fmt.Errorf("invalid phone number")
	}
	return nil
}

func ValidateURL(url string) error {
	if len(url) > MaxURLLength {
		return fmt.Errorf("url cannot exceed %d characters", MaxURLLength)
	}
	return nil
}

func ValidateRole(role string) error {
	switch role {
	case "user", "admin":
		return nil
	}
	return fmt.Errorf("invalid role: %s. Valid roles: [user admin]", role)
}

func ValidatePositiveInt(value int64, fieldName string) error {
	if value <= 0 {
		return fmt.Errorf("%s must be positive", fieldName)
	}
	return nil
}

func ValidateNonNegativeInt(value int64, fieldName string) error {
	if value < 0 {
		return fmt.Errorf("%s cannot be negative", fieldName)
	}
	return nil
}
