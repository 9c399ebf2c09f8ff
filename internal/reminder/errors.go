package reminder

import "errors"

// ValidationError is a local rejection of user input. It never reaches the
// network and its message is safe to show to the user.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrInvalidTime   = &ValidationError{Field: "start", Message: "Invalid time range"}
	ErrCrossDay      = &ValidationError{Field: "end", Message: "Time range cannot cross day"}
	ErrEmptyRange    = &ValidationError{Field: "end", Message: "Time range cannot cross day or be empty"}
	ErrTitleRequired = &ValidationError{Field: "title", Message: "Title is required"}

	ErrPresetNameRequired = &ValidationError{Field: "name", Message: "Preset name is required"}
	ErrPresetDuration     = &ValidationError{Field: "duration_min", Message: "Duration must be between 1 and 1439 minutes"}
	ErrPresetNotPersisted = &ValidationError{Field: "id", Message: "Preset is derived from a slot and cannot be updated"}

	ErrAudioURLRequired = &ValidationError{Field: "gcs_url", Message: "Google Bucket URL is required"}

	ErrUserFieldsRequired = &ValidationError{Field: "username", Message: "Please fill in username, password, and role."}
	ErrPasswordRequired   = &ValidationError{Field: "password", Message: "Please enter and confirm the new password."}
	ErrPasswordMismatch   = &ValidationError{Field: "confirm", Message: "Passwords do not match."}
)

// IsValidation reports whether err is (or wraps) a ValidationError.
func IsValidation(err error) bool {
	var v *ValidationError
	return errors.As(err, &v)
}
