// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package protocol

// Responder is implemented by SPDM responders which answer one request at a
// time from caller-owned buffers.
type Responder interface {
	// Respond decodes a single request from the start of req and encodes the
	// response into resp. Requests the responder cannot process are answered
	// with an ERROR response, not a Go error.
	//
	// When req holds only part of a request, a codec.ShortBufferError with the
	// total length needed is returned. The same applies when resp is too
	// small for the response.
	Respond(req, resp []byte) (consumed, produced int, err error)
}
