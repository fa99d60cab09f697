// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import "fmt"

// State is the negotiation phase of a [Requester].
type State uint8

// Negotiation states, in order of progression. Failed is entered from any
// receive state on a terminal error.
const (
	AwaitingVersionSend State = iota
	AwaitingVersionRecv
	AwaitingCapabilitiesSend
	AwaitingCapabilitiesRecv
	AwaitingAlgorithmsSend
	AwaitingAlgorithmsRecv
	Negotiated
	Failed

	numStates
)

var stateNames = [numStates]string{
	AwaitingVersionSend:      "AwaitingVersionSend",
	AwaitingVersionRecv:      "AwaitingVersionRecv",
	AwaitingCapabilitiesSend: "AwaitingCapabilitiesSend",
	AwaitingCapabilitiesRecv: "AwaitingCapabilitiesRecv",
	AwaitingAlgorithmsSend:   "AwaitingAlgorithmsSend",
	AwaitingAlgorithmsRecv:   "AwaitingAlgorithmsRecv",
	Negotiated:               "Negotiated",
	Failed:                   "Failed",
}

func (s State) String() string {
	if s < numStates {
		return stateNames[s]
	}
	return fmt.Sprintf("State(%d)", uint8(s))
}

// Sending reports whether the next step produces an outbound message.
func (s State) Sending() bool {
	switch s {
	case AwaitingVersionSend, AwaitingCapabilitiesSend, AwaitingAlgorithmsSend:
		return true
	default:
		return false
	}
}

// Done reports whether the state is terminal.
func (s State) Done() bool { return s == Negotiated || s == Failed }
