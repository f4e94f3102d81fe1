// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package common

import "errors"

var (
	// ErrNoPrefix is returned when a hex string is missing its 0x prefix.
	ErrNoPrefix = errors.New("could not byteify non 0x prefixed string")

	// ErrHashLength is returned when decoding a hash of the wrong length.
	ErrHashLength = errors.New("invalid hash length")
)
