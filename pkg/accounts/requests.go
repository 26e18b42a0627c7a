package accounts

import (
	"errors"
	"strings"

	validation "github.com/go-ozzo/ozzo-validation"
	"github.com/go-ozzo/ozzo-validation/is"

	"github.com/platinummonkey/accounts/pkg/auth"
)

const (
	maxNameLength  = 100
	maxEmailLength = 320
	// bcrypt ignores everything past 72 bytes
	maxPasswordLength = 72
)

// LoginRequest is the body of POST /login
type LoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// Validate checks that both credentials are present
func (r LoginRequest) Validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Email, validation.Required),
		validation.Field(&r.Password, validation.Required),
	)
}

// SignupRequest is the body of POST /signup
type SignupRequest struct {
	Name            string `json:"name"`
	Email           string `json:"email"`
	Password        string `json:"password"`
	PasswordConfirm string `json:"passwordConfirm"`
}

func (r *SignupRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
}

func (r SignupRequest) validate(minPassword int) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPassword, maxPasswordLength)),
		validation.Field(&r.PasswordConfirm,
			validation.Required,
			validation.By(func(interface{}) error {
				if r.PasswordConfirm != r.Password {
					return errors.New("passwords are not the same")
				}
				return nil
			}),
		),
	)
}

// CreateRequest is the body of the administrative POST /
type CreateRequest struct {
	Name     string    `json:"name"`
	Email    string    `json:"email"`
	Password string    `json:"password"`
	Role     auth.Role `json:"role,omitempty"`
}

func (r *CreateRequest) normalize() {
	r.Name = strings.TrimSpace(r.Name)
	r.Email = strings.TrimSpace(r.Email)
	if r.Role == "" {
		r.Role = auth.RoleUser
	}
}

func (r CreateRequest) validate(minPassword int) error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
		validation.Field(&r.Email, validation.Required, validation.Length(3, maxEmailLength), is.Email),
		validation.Field(&r.Password, validation.Required, validation.Length(minPassword, maxPasswordLength)),
		validation.Field(&r.Role, validation.In(auth.RoleUser, auth.RoleAdmin)),
	)
}

// UpdateRequest is the body of the administrative PATCH /{id}. Only the
// display name can be changed.
type UpdateRequest struct {
	Name string `json:"name"`
}

func (r UpdateRequest) validate() error {
	return validation.ValidateStruct(&r,
		validation.Field(&r.Name, validation.Required, validation.RuneLength(1, maxNameLength)),
	)
}

// invalid converts a validation failure into a validation-kind error that
// keeps the per-field reasons. message overrides the generic summary.
func invalid(err error, message string) error {
	var fieldErrs validation.Errors
	if !errors.As(err, &fieldErrs) {
		return auth.InternalError(err)
	}
	if message == "" {
		message = msgInvalidInput
	}
	return &auth.Error{Kind: auth.KindValidation, Message: message, Err: fieldErrs}
}
