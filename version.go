// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import "github.com/go-spdm/spdm/protocol"

// SelectVersion picks the highest major.minor version present in both lists.
// Update and alpha numbers do not take part in the comparison; the peer's
// entry is returned so that they are still reported.
func SelectVersion(local, peer []protocol.VersionNumberEntry) (protocol.VersionNumberEntry, bool) {
	var (
		best  protocol.VersionNumberEntry
		found bool
	)
	for _, p := range peer {
		if found && p.SPDMVersion() <= best.SPDMVersion() {
			continue
		}
		for _, l := range local {
			if l.Compatible(p) {
				best, found = p, true
				break
			}
		}
	}
	return best, found
}
