// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

// Package spdm implements the requester side of the [SPDM 1.0] Version,
// Capabilities and Algorithms (VCA) negotiation.
//
// Wire types and values are located in the protocol subpackage and the
// fixed-layout field encoding in the codec subpackage. This package contains
// the [Requester] state machine, which never performs I/O. It is driven by
// calling [Requester.Step] with the bytes received so far and a buffer for the
// next outbound message. Step reports how many more bytes must be read before
// it can make progress or how many bytes it wrote to be sent.
//
// A driving loop for byte streams is provided by the socket subpackage and a
// responder emulator by spdmtest.
//
// [SPDM 1.0]: https://www.dmtf.org/sites/default/files/standards/documents/DSP0274_1.0.0.pdf
package spdm
