package nav

import (
	"context"
	"errors"
	"fmt"

	"route-navigator/internal/route"
)

// Usage errors.
var (
	ErrNotNavigating = errors.New("not navigating")
	ErrNoPosition    = errors.New("start or destination position unknown")
	ErrNoRouter      = errors.New("no router configured")
	ErrClosed        = errors.New("navigation engine closed")
)

// Routing failures reported by a Router.
var (
	ErrNoRoute             = errors.New("no route")
	ErrNoRoadsNearStart    = errors.New("no roads near start of route")
	ErrNoRoadsNearEnd      = errors.New("no roads near end of route")
	ErrNoRouteConnectivity = errors.New("no route connectivity")
)

// Numeric result codes, as reported to clients.
const (
	CodeSuccess             = 0
	CodeGeneral             = 1
	CodeNotFound            = 6
	CodeUnimplemented       = 7
	CodeCorrupt             = 10
	CodeCancel              = 14
	CodeInvalidArgument     = 15
	CodeNoRoute             = 28
	CodeNotNavigating       = 51
	CodeNoRoadsNearStart    = 59
	CodeNoRoadsNearEnd      = 60
	CodeNoRouteConnectivity = 61
)

var codes = []struct {
	err  error
	code int
}{
	{route.ErrCorrupt, CodeCorrupt},
	{route.ErrInvalidArgument, CodeInvalidArgument},
	{ErrNotNavigating, CodeNotNavigating},
	{ErrNoPosition, CodeNotFound},
	{ErrNoRouter, CodeUnimplemented},
	{ErrNoRoute, CodeNoRoute},
	{ErrNoRoadsNearStart, CodeNoRoadsNearStart},
	{ErrNoRoadsNearEnd, CodeNoRoadsNearEnd},
	{ErrNoRouteConnectivity, CodeNoRouteConnectivity},
	{context.Canceled, CodeCancel},
	{context.DeadlineExceeded, CodeCancel},
}

// Code returns the result code for err: CodeSuccess for nil and
// CodeGeneral for errors without a specific code.
func Code(err error) int {
	if err == nil {
		return CodeSuccess
	}
	for _, c := range codes {
		if errors.Is(err, c.err) {
			return c.code
		}
	}
	return CodeGeneral
}

// FromCode is the inverse of Code. Unknown codes map to a generic error
// carrying msg.
func FromCode(code int, msg string) error {
	if code == CodeSuccess {
		return nil
	}
	for _, c := range codes {
		if c.code == code {
			if msg == "" || msg == c.err.Error() {
				return c.err
			}
			return fmt.Errorf("%s: %w", msg, c.err)
		}
	}
	if msg == "" {
		msg = "navigation error"
	}
	return errors.New(msg)
}
