// Copyright 2022 Molecula Corp. (DBA FeatureBase).
// SPDX-License-Identifier: Apache-2.0
package folio

import "github.com/pkg/errors"

// Predefined client errors.
var (
	ErrNoBaseURL = errors.New("back-end base URL is required")
	ErrNoTenant  = errors.New("tenant is required")
)

// authError marks a login rejection so callers can distinguish it from
// transport failures.
type authError struct {
	message string
}

func (e authError) Error() string {
	return e.message
}

// IsAuthError reports whether err is a back-end login rejection.
func IsAuthError(err error) bool {
	var ae authError
	return errors.As(err, &ae)
}
