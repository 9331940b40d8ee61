package service

import (
	"errors"
	"fmt"
	"strings"

	"github.com/postdeckhq/postdeck/internal/transfer"
)

var (
	ErrPostNotFound  = errors.New("post not found")
	ErrNotAuthorized = errors.New("not authorized")
)

// InvalidContentError carries the full set of content violations collected by
// the validator. The request is rejected before any publish attempt.
type InvalidContentError struct {
	Violations []transfer.ValidationError
}

func (e *InvalidContentError) Error() string {
	msgs := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		msgs = append(msgs, v.Error())
	}
	return "invalid content: " + strings.Join(msgs, "; ")
}

// NotConnectedError names exactly which requested platforms have no active
// credential.
type NotConnectedError struct {
	Platforms []string
}

func (e *NotConnectedError) Error() string {
	return fmt.Sprintf("platforms not connected: %s", strings.Join(e.Platforms, ", "))
}
