package httpapi

import (
	"context"
	"errors"
	"net/http"

	"pkt.systems/halolight/internal/markdown"
	"pkt.systems/halolight/schema"
)

// errTooManyRequests is returned when the login limiter rejects a client.
var errTooManyRequests = errors.New("请求过于频繁，请稍后再试")

func statusFor(err error) int {
	switch {
	case err == nil:
		return http.StatusOK
	case errors.Is(err, errTooManyRequests):
		return http.StatusTooManyRequests
	case errors.Is(err, schema.ErrUnauthorized),
		errors.Is(err, schema.ErrInvalidToken),
		errors.Is(err, schema.ErrWrongPassword),
		errors.Is(err, schema.ErrTOTPRequired),
		errors.Is(err, schema.ErrTOTPInvalid):
		return http.StatusUnauthorized
	case errors.Is(err, schema.ErrTabNotFound),
		errors.Is(err, schema.ErrAccountNotFound),
		errors.Is(err, schema.ErrUserNotFound),
		errors.Is(err, markdown.ErrPageNotFound):
		return http.StatusNotFound
	case errors.Is(err, schema.ErrEmailTaken),
		errors.Is(err, schema.ErrTabNotClosable),
		errors.Is(err, schema.ErrTabPathExists):
		return http.StatusConflict
	case errors.Is(err, schema.ErrInvalidRequest),
		errors.Is(err, schema.ErrInvalidUser),
		errors.Is(err, schema.ErrInvalidPath),
		errors.Is(err, schema.ErrInvalidSkin),
		errors.Is(err, schema.ErrPasswordMismatch),
		errors.Is(err, schema.ErrPasswordTooShort),
		errors.Is(err, schema.ErrEmailRequired),
		errors.Is(err, schema.ErrEmailInvalid),
		errors.Is(err, schema.ErrNameRequired),
		errors.Is(err, schema.ErrResetTokenInvalid),
		errors.Is(err, schema.ErrCurrentPasswordFail):
		return http.StatusBadRequest
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// formMessage is the text shown under an auth form. Unexpected failures show
// the form's fallback instead of an internal error string.
func formMessage(err error, fallback string) string {
	if statusFor(err) >= http.StatusInternalServerError {
		return fallback
	}
	return err.Error()
}
