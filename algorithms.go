// SPDX-FileCopyrightText: (C) 2024 Intel Corporation
// SPDX-License-Identifier: Apache 2.0

package spdm

import (
	"fmt"
	"slices"

	"github.com/go-spdm/spdm/protocol"
)

// validateSelection checks an ALGORITHMS response against what was offered.
// Base algorithms are mandatory only when the responder capabilities need
// them and no extended algorithm of the same kind was selected.
func validateSelection(cfg *RequesterConfig, flags protocol.CapabilityFlags, sel *protocol.Algorithms) error {
	var (
		measures = flags.MeasCap() != 0
		signs    = flags.Has(protocol.ChalCap) || flags.Has(protocol.MeasCapSig)
		hashes   = flags.Has(protocol.ChalCap) || measures
	)
	if err := checkSelected("MeasurementSpecificationSel", sel.MeasurementSpecificationSel,
		cfg.MeasurementSpecification, measures); err != nil {
		return err
	}
	if err := checkSelected("MeasurementHashAlgo", sel.MeasurementHashAlgo,
		^protocol.MeasurementHashAlgo(0), measures); err != nil {
		return err
	}
	if err := checkSelected("BaseAsymSel", sel.BaseAsymSel,
		cfg.BaseAsymAlgo, signs && sel.ExtAsymSelCount == 0); err != nil {
		return err
	}
	if err := checkSelected("BaseHashSel", sel.BaseHashSel,
		cfg.BaseHashAlgo, hashes && sel.ExtHashSelCount == 0); err != nil {
		return err
	}
	if err := checkExt("ExtAsymSel", sel.ExtAsymSel[:sel.ExtAsymSelCount], cfg.ExtAsym); err != nil {
		return err
	}
	return checkExt("ExtHashSel", sel.ExtHashSel[:sel.ExtHashSelCount], cfg.ExtHash)
}

func checkSelected[T ~uint8 | ~uint32](field string, sel, offered T, required bool) error {
	if sel == 0 && !required {
		return nil
	}
	if !protocol.SingleBit(sel) || sel&offered == 0 {
		return fmt.Errorf("%w: %s %v is not a single offered algorithm (offered %v)",
			ErrInvalidSelection, field, sel, offered)
	}
	return nil
}

func checkExt(field string, sel, offered []protocol.ExtAlgorithm) error {
	if len(sel) > 1 {
		return fmt.Errorf("%w: %s selects %d algorithms", ErrInvalidSelection, field, len(sel))
	}
	for _, a := range sel {
		if !slices.Contains(offered, a) {
			return fmt.Errorf("%w: %s %s was not offered", ErrInvalidSelection, field, a)
		}
	}
	return nil
}
