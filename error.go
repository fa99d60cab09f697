// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import "errors"

// ErrFailed is returned by every Step after a terminal failure, wrapping the
// original cause. Use Reset to start over.
var ErrFailed = errors.New("negotiation failed")

// Negotiation failures. Version related errors also wrap
// protocol.MajorVersionMismatch.
var (
	ErrNoCommonVersion     = errors.New("no common version")
	ErrVersionMismatch     = errors.New("response version does not match negotiated version")
	ErrMissingCapabilities = errors.New("responder lacks required capabilities")
	ErrInvalidSelection    = errors.New("invalid algorithm selection")
)
