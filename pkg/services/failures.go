package services

import (
	"context"
	stderrors "errors"
	"net/http"
	"strings"

	"github.com/rs/zerolog"

	"sharednotes/pkg/api"
	"sharednotes/pkg/errors"
	"sharednotes/pkg/identity"
)

// source extracts a candidate user message from a failure
type source func(err error) (string, bool)

// backendFields takes the first backend field error among keys
func backendFields(keys ...string) source {
	return func(err error) (string, bool) {
		apiErr, ok := api.AsError(err)
		if !ok {
			return "", false
		}
		return apiErr.Fields.First(keys...)
	}
}

// anyField takes the first field error the backend reported
func anyField(err error) (string, bool) {
	apiErr, ok := api.AsError(err)
	if !ok {
		return "", false
	}
	return apiErr.Fields.Any()
}

// rawBody takes a backend body that is not a JSON object
func rawBody(err error) (string, bool) {
	apiErr, ok := api.AsError(err)
	if !ok || len(apiErr.Fields) > 0 {
		return "", false
	}
	body := strings.TrimSpace(string(apiErr.Body))
	if body == "" || strings.HasPrefix(body, "{") {
		return "", false
	}
	return body, true
}

// providerMessage takes the message of an identity provider failure
func providerMessage(err error) (string, bool) {
	var idErr *identity.Error
	if stderrors.As(err, &idErr) && idErr.Message != "" {
		return idErr.Message, true
	}
	return "", false
}

// transportText takes the text of failures that never reached the backend
func transportText(err error) (string, bool) {
	if _, ok := api.AsError(err); ok {
		return "", false
	}
	if msg, ok := providerMessage(err); ok {
		return msg, true
	}
	return err.Error(), true
}

func resolve(err error, fallback string, sources ...source) string {
	for _, src := range sources {
		if msg, ok := src(err); ok && msg != "" {
			return msg
		}
	}
	return fallback
}

// classify maps a failure to the error type shown to the user
func classify(err error) (errors.ErrorType, bool) {
	if appErr, ok := errors.As(err); ok {
		return appErr.Type, appErr.Retryable
	}
	var idErr *identity.Error
	if stderrors.As(err, &idErr) {
		return errors.ErrTypeAuth, false
	}
	if stderrors.Is(err, context.Canceled) || stderrors.Is(err, context.DeadlineExceeded) {
		return errors.ErrTypeNetwork, true
	}
	apiErr, ok := api.AsError(err)
	if !ok {
		return errors.ErrTypeNetwork, true
	}
	switch {
	case apiErr.StatusCode == http.StatusUnauthorized || apiErr.StatusCode == http.StatusForbidden:
		return errors.ErrTypeAuth, false
	case apiErr.StatusCode >= http.StatusInternalServerError:
		return errors.ErrTypeNetwork, true
	}
	return errors.ErrTypeBusiness, false
}

// fail wraps err with the resolved user message and logs it.
// Local validation errors pass through unchanged.
func fail(logger zerolog.Logger, err error, code, message, fallback string, sources ...source) error {
	if appErr, ok := errors.As(err); ok && appErr.Type == errors.ErrTypeValidation {
		appErr.Log(logger)
		return appErr
	}

	errType, retryable := classify(err)
	appErr := errors.Wrap(err, errType, code, message).
		WithUserMessage(resolve(err, fallback, sources...)).
		WithRetryable(retryable)
	if status := api.StatusCode(err); status != 0 {
		appErr.WithContext("status", status)
	}
	if apiErr, ok := api.AsError(err); ok && len(apiErr.Fields) > 0 {
		appErr.WithContext("fields", apiErr.Fields.Map())
	}
	appErr.Log(logger)
	return appErr
}
