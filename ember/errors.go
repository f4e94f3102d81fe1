// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package ember

import "errors"

var (
	// ErrNoKeysProvided is returned when an authority node starts without
	// a signing key.
	ErrNoKeysProvided = errors.New("no keys provided for authority node")

	// ErrInvalidMode is returned for an unrecognised consensus mode.
	ErrInvalidMode = errors.New("invalid consensus mode")
)
