// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0

// Package diag wraps pkg/errors with BIB-1 diagnostic codes. A
// Diagnostic travels through the gateway as an ordinary error; the
// dispatch layer extracts the code and addinfo pair to hand back to
// the protocol frontend.
package diag

import (
	"fmt"

	"github.com/pkg/errors"
)

// Code is a numeric BIB-1 diagnostic code.
type Code int

// Diagnostic codes used by the gateway.
const (
	PermanentSystemError  Code = 1
	UnsupportedSearch     Code = 3
	PresentOutOfRange     Code = 13
	ResultSetDoesNotExist Code = 30
	UnspecifiedError      Code = 100
	UnsupportedAttribute  Code = 113
	UnsupportedUseAttr    Code = 114
	UnsupportedRelation   Code = 117
	UnsupportedPosition   Code = 119
	UnsupportedTruncation Code = 120
	UnsupportedAttrSet    Code = 121
	UnsupportedComplete   Code = 122
	IllegalResultSetName  Code = 128
	AuthFailed            Code = 1014
)

var messages = map[Code]string{
	PermanentSystemError:  "permanent system error",
	UnsupportedSearch:     "unsupported search",
	PresentOutOfRange:     "present request out-of-range",
	ResultSetDoesNotExist: "specified result set does not exist",
	UnspecifiedError:      "unspecified error",
	UnsupportedAttribute:  "unsupported attribute type",
	UnsupportedUseAttr:    "unsupported use attribute",
	UnsupportedRelation:   "unsupported relation attribute",
	UnsupportedPosition:   "unsupported position attribute",
	UnsupportedTruncation: "unsupported truncation attribute",
	UnsupportedAttrSet:    "unsupported attribute set",
	UnsupportedComplete:   "unsupported completeness attribute",
	IllegalResultSetName:  "illegal result-set name",
	AuthFailed:            "authentication failed",
}

// Message returns the standard BIB-1 message text for code.
func Message(code Code) string {
	if m, ok := messages[code]; ok {
		return m
	}
	return "unknown diagnostic"
}

// Diagnostic is an error carrying a BIB-1 code and its addinfo string.
type Diagnostic struct {
	Code    Code   `json:"code"`
	Addinfo string `json:"addinfo,omitempty"`
}

func (d Diagnostic) Error() string {
	if d.Addinfo == "" {
		return fmt.Sprintf("diag %d: %s", d.Code, Message(d.Code))
	}
	return fmt.Sprintf("diag %d: %s: %s", d.Code, Message(d.Code), d.Addinfo)
}

// Is matches any Diagnostic with the same code, so that
// errors.Is(err, Diagnostic{Code: c}) works regardless of addinfo.
func (d Diagnostic) Is(err error) bool {
	if e, ok := err.(Diagnostic); ok && d.Code == e.Code {
		return true
	}
	return false
}

// New returns a diagnostic error for code with the given addinfo,
// annotated with a stack trace.
func New(code Code, addinfo string) error {
	return errors.WithStack(Diagnostic{Code: code, Addinfo: addinfo})
}

// Newf is New with a formatted addinfo.
func Newf(code Code, format string, v ...interface{}) error {
	return errors.WithStack(Diagnostic{Code: code, Addinfo: fmt.Sprintf(format, v...)})
}

// Is reports whether err is (or wraps) a diagnostic with the given code.
func Is(err error, code Code) bool {
	return errors.Is(err, Diagnostic{Code: code})
}

// FromError normalizes any error into a Diagnostic. Diagnostics pass
// through unchanged; any other error becomes code 100 with the error
// text as addinfo.
func FromError(err error) Diagnostic {
	var d Diagnostic
	if errors.As(err, &d) {
		return d
	}
	return Diagnostic{Code: UnspecifiedError, Addinfo: err.Error()}
}
