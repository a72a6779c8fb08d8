package errors

import (
	"net/mail"
	"strings"
	"unicode"

	"sharednotes/pkg/models"
	"sharednotes/pkg/utils"
)

const (
	maxTitleLength    = 255
	maxUsernameLength = 150
	minUsernameLength = 3
	minPasswordLength = 8
	maxPasswordLength = 128
	maxBodySize       = 1024 * 1024
	passwordSpecials  = "!@#$%^&*_-=."
)

// ValidationResult holds validation results
type ValidationResult struct {
	IsValid bool
	Errors  []*AppError
}

// AddError adds an error to the validation result
func (vr *ValidationResult) AddError(err *AppError) {
	vr.IsValid = false
	vr.Errors = append(vr.Errors, err)
}

// GetFirstError returns the first error or nil
func (vr *ValidationResult) GetFirstError() *AppError {
	if len(vr.Errors) > 0 {
		return vr.Errors[0]
	}
	return nil
}

// Err returns the first error as an error value, nil when valid
func (vr *ValidationResult) Err() error {
	if first := vr.GetFirstError(); first != nil {
		return first
	}
	return nil
}

// Validator provides validation utilities
type Validator struct{}

// NewValidator creates a new validator
func NewValidator() *Validator {
	return &Validator{}
}

func required(field string) *AppError {
	return New(ErrTypeValidation, "FIELD_REQUIRED", field+" is required").
		WithUserMessage("This field is required.").
		WithContext("field", field)
}

// ValidatePassword validates the password policy of the identity provider
func (v *Validator) ValidatePassword(password string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if password == "" {
		result.AddError(required("password"))
		return result
	}
	if len(password) < minPasswordLength {
		result.AddError(ErrPasswordTooShort)
	}
	if len(password) > maxPasswordLength {
		result.AddError(New(ErrTypeValidation, "PASSWORD_TOO_LONG", "password too long").
			WithUserMessage("Password cannot exceed 128 characters."))
	}

	var upper, lower, digit, special bool
	for _, r := range password {
		switch {
		case unicode.IsUpper(r):
			upper = true
		case unicode.IsLower(r):
			lower = true
		case unicode.IsDigit(r):
			digit = true
		case strings.ContainsRune(passwordSpecials, r):
			special = true
		}
	}

	if !upper && !lower {
		result.AddError(New(ErrTypeValidation, "PASSWORD_NUMERIC", "password is entirely numeric").
			WithUserMessage("Password cannot be entirely numeric."))
	}
	if !upper {
		result.AddError(New(ErrTypeValidation, "PASSWORD_NO_UPPER", "password has no uppercase letter").
			WithUserMessage("Password has to contain at least one uppercase letter."))
	}
	if !lower {
		result.AddError(New(ErrTypeValidation, "PASSWORD_NO_LOWER", "password has no lowercase letter").
			WithUserMessage("Password has to contain at least one lowercase letter."))
	}
	if !digit {
		result.AddError(New(ErrTypeValidation, "PASSWORD_NO_DIGIT", "password has no digit").
			WithUserMessage("Password has to contain at least one number."))
	}
	if !special {
		result.AddError(New(ErrTypeValidation, "PASSWORD_NO_SPECIAL", "password has no special character").
			WithUserMessage("Password has to contain at least one of the following special characters: !@#$%^&*_=."))
	}

	return result
}

// ValidatePasswordMatch validates that passwords match
func (v *Validator) ValidatePasswordMatch(password, confirmPassword string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if password != confirmPassword {
		result.AddError(ErrPasswordMismatch)
	}

	return result
}

// ValidateUsername validates username length
func (v *Validator) ValidateUsername(username string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	switch n := len(strings.TrimSpace(username)); {
	case n == 0:
		result.AddError(required("username"))
	case n < minUsernameLength:
		result.AddError(New(ErrTypeValidation, "USERNAME_TOO_SHORT", "username too short").
			WithUserMessage("Username has to be at least 3 characters long."))
	case n > maxUsernameLength:
		result.AddError(New(ErrTypeValidation, "USERNAME_TOO_LONG", "username too long").
			WithUserMessage("Username cannot exceed 150 characters."))
	}

	return result
}

// ValidateEmail validates an email address
func (v *Validator) ValidateEmail(email string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if strings.TrimSpace(email) == "" {
		result.AddError(required("email"))
		return result
	}

	addr, err := mail.ParseAddress(email)
	if err != nil || addr.Address != email {
		result.AddError(New(ErrTypeValidation, "EMAIL_INVALID", "invalid email address").
			WithUserMessage("Please enter a valid email address.").
			WithContext("email", email))
	}

	return result
}

// ValidateNoteTitle validates a note title
func (v *Validator) ValidateNoteTitle(title string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if len(title) > maxTitleLength {
		result.AddError(New(ErrTypeValidation, "TITLE_TOO_LONG", "note title too long").
			WithUserMessage("Title cannot exceed 255 characters.").
			WithContext("length", len(title)))
	}

	return result
}

// ValidateNoteContent validates note content
func (v *Validator) ValidateNoteContent(content string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if len(content) > maxBodySize {
		result.AddError(New(ErrTypeValidation, "CONTENT_TOO_LARGE", "note content too large").
			WithUserMessage("Note content is too large. Maximum size is 1MB").
			WithContext("size", len(content)))
	}

	return result
}

// ValidateNoteID validates note ID format
func (v *Validator) ValidateNoteID(id string) *ValidationResult {
	return v.validateUUID(id, "note")
}

// ValidateUserID validates user ID format
func (v *Validator) ValidateUserID(id string) *ValidationResult {
	return v.validateUUID(id, "user")
}

func (v *Validator) validateUUID(id, kind string) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if strings.TrimSpace(id) == "" {
		result.AddError(New(ErrTypeValidation, "ID_EMPTY", kind+" ID cannot be empty").
			WithUserMessage(strings.ToUpper(kind[:1]) + kind[1:] + " ID is required"))
		return result
	}

	if !utils.IsValidID(id) {
		result.AddError(New(ErrTypeValidation, "ID_INVALID", "invalid "+kind+" ID format").
			WithUserMessage("Invalid "+kind+" ID format").
			WithContext("id", id))
	}

	return result
}

// ValidateShareTier checks that a tier can be handed to another user
func (v *Validator) ValidateShareTier(p models.Permission) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if !p.Grantable() {
		result.AddError(New(ErrTypeValidation, "TIER_NOT_GRANTABLE", "permission tier cannot be granted").
			WithUserMessage("Choose read, write or share access").
			WithContext("permission", p.String()))
	}

	return result
}

// ValidateNoteKeys checks the keys sent with an encryption change. Turning
// encryption on needs at least one key and every key needs a user and a value.
func (v *Validator) ValidateNoteKeys(encrypted bool, keys []models.NoteKey) *ValidationResult {
	result := &ValidationResult{IsValid: true}

	if !encrypted {
		return result
	}
	if len(keys) == 0 {
		result.AddError(New(ErrTypeValidation, "KEYS_REQUIRED", "encryption keys are required").
			WithUserMessage("Encryption keys are required to encrypt a note").
			WithContext("field", "keys"))
		return result
	}
	for i, k := range keys {
		if strings.TrimSpace(k.UserID) == "" || k.Key == "" {
			result.AddError(New(ErrTypeValidation, "KEY_INCOMPLETE", "encryption key needs user_id and key").
				WithUserMessage("Every encryption key needs a user and a key").
				WithContext("index", i))
		}
	}

	return result
}
