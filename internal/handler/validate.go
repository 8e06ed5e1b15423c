package handler

import (
	"net/mail"
	"strings"
	"unicode/utf8"

	"github.com/hashicorp/go-multierror"
	"minimail/pkg/util"
)

const (
	minPasswordLen = 6
	// bcrypt 只使用前 72 字节
	maxPasswordLen = util.MaxPasswordBytes

	msgInvalidBody      = "Invalid request body."
	msgInvalidEmail     = "A valid email is required."
	msgPasswordTooShort = "Password must be at least 6 characters."
	msgPasswordTooLong  = "Password must be at most 72 bytes."
	msgPasswordMismatch = "Passwords do not match."
	msgPasswordRequired = "Password is required."
	msgMailFieldsNeeded = "To, subject, and body are required."
)

// validationError is a plain message; the multierror format joins them.
type validationError string

func (e validationError) Error() string { return string(e) }

// joinMessages renders every collected message separated by one space.
func joinMessages(errs []error) string {
	msgs := make([]string, 0, len(errs))
	for _, err := range errs {
		msgs = append(msgs, err.Error())
	}
	return strings.Join(msgs, " ")
}

func newValidation() *multierror.Error {
	return &multierror.Error{ErrorFormat: joinMessages}
}

func isEmail(s string) bool {
	if s == "" {
		return false
	}
	addr, err := mail.ParseAddress(s)
	// 只接受裸地址，不接受 "Name <a@b.c>"
	if err != nil || addr.Address != s {
		return false
	}
	// 域名需要带顶级域
	at := strings.LastIndex(s, "@")
	domain := s[at+1:]
	dot := strings.LastIndex(domain, ".")
	return dot > 0 && dot < len(domain)-1
}

type signupRequest struct {
	Email           string `json:"email"`
	Password        string `json:"password"`
	ConfirmPassword string `json:"confirmPassword"`
}

func (r *signupRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
	r.ConfirmPassword = strings.TrimSpace(r.ConfirmPassword)
}

func (r *signupRequest) validate() error {
	result := newValidation()
	if !isEmail(r.Email) {
		result = multierror.Append(result, validationError(msgInvalidEmail))
	}
	switch {
	case utf8.RuneCountInString(r.Password) < minPasswordLen:
		result = multierror.Append(result, validationError(msgPasswordTooShort))
	case len(r.Password) > maxPasswordLen:
		result = multierror.Append(result, validationError(msgPasswordTooLong))
	}
	if r.ConfirmPassword != r.Password {
		result = multierror.Append(result, validationError(msgPasswordMismatch))
	}
	return result.ErrorOrNil()
}

type loginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

func (r *loginRequest) normalize() {
	r.Email = strings.TrimSpace(r.Email)
	r.Password = strings.TrimSpace(r.Password)
}

func (r *loginRequest) validate() error {
	result := newValidation()
	if !isEmail(r.Email) {
		result = multierror.Append(result, validationError(msgInvalidEmail))
	}
	if r.Password == "" {
		result = multierror.Append(result, validationError(msgPasswordRequired))
	}
	return result.ErrorOrNil()
}

type sendRequest struct {
	To      string `json:"to"`
	Subject string `json:"subject"`
	Body    string `json:"body"`
}

func (r *sendRequest) normalize() {
	r.To = strings.TrimSpace(r.To)
	r.Subject = strings.TrimSpace(r.Subject)
}

func (r *sendRequest) validate() error {
	if r.To == "" || r.Subject == "" || !util.HasVisibleText(r.Body) {
		return validationError(msgMailFieldsNeeded)
	}
	return nil
}
