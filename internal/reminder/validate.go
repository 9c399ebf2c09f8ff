package reminder

import (
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"

	"remindercal/internal/model"
)

var validate = validator.New()

// validateStruct runs struct tag validation and maps the first failing field
// to its user-facing error.
func validateStruct(v any, byField map[string]*ValidationError) error {
	err := validate.Struct(v)
	if err == nil {
		return nil
	}
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) && len(verrs) > 0 {
		fe := verrs[0]
		if mapped, ok := byField[fe.StructField()]; ok {
			return mapped
		}
		return &ValidationError{Field: fe.Field(), Message: fe.Error()}
	}
	return err
}

// AudioDraft is the editable part of an audio entry.
type AudioDraft struct {
	ID     int64  `json:"id"`
	GCSURL string `json:"gcs_url"`
	Name   string `json:"name"`
}

// BuildAudioPayload validates an audio edit. When editing, current carries
// the cached is_active flag forward.
func BuildAudioPayload(d AudioDraft, current *model.Audio) (model.AudioPayload, error) {
	p := model.AudioPayload{
		GCSURL: strings.TrimSpace(d.GCSURL),
		Name:   strings.TrimSpace(d.Name),
	}
	if d.ID > 0 {
		id := d.ID
		p.ID = &id
		if current != nil && current.IsActive != nil {
			active := *current.IsActive
			p.IsActive = &active
		}
	}
	if err := validateStruct(p, map[string]*ValidationError{
		"GCSURL": ErrAudioURLRequired,
	}); err != nil {
		return model.AudioPayload{}, err
	}
	return p, nil
}

// UserDraft is the create-user form.
type UserDraft struct {
	Username string `json:"username"`
	Password string `json:"password"`
	Confirm  string `json:"confirm"`
	Role     string `json:"role"`
}

// BuildCreateUserPayload requires every field and a matching confirmation.
func BuildCreateUserPayload(d UserDraft) (model.CreateUserPayload, error) {
	p := model.CreateUserPayload{
		Username: strings.TrimSpace(d.Username),
		Password: d.Password,
		Role:     strings.ToLower(strings.TrimSpace(d.Role)),
	}
	if d.Confirm == "" {
		return model.CreateUserPayload{}, ErrUserFieldsRequired
	}
	if err := validateStruct(p, map[string]*ValidationError{
		"Username": ErrUserFieldsRequired,
		"Password": ErrUserFieldsRequired,
		"Role":     ErrUserFieldsRequired,
	}); err != nil {
		return model.CreateUserPayload{}, err
	}
	if d.Password != d.Confirm {
		return model.CreateUserPayload{}, ErrPasswordMismatch
	}
	return p, nil
}

// BuildResetPasswordPayload requires a password and a matching confirmation.
func BuildResetPasswordPayload(userID int64, password, confirm string) (model.ResetPasswordPayload, error) {
	p := model.ResetPasswordPayload{ID: userID, Password: password}
	if confirm == "" {
		return model.ResetPasswordPayload{}, ErrPasswordRequired
	}
	if err := validateStruct(p, map[string]*ValidationError{
		"ID":       ErrPasswordRequired,
		"Password": ErrPasswordRequired,
	}); err != nil {
		return model.ResetPasswordPayload{}, err
	}
	if password != confirm {
		return model.ResetPasswordPayload{}, ErrPasswordMismatch
	}
	return p, nil
}
