/*
 * TableVisor - A Multi-Switch OpenFlow Table Virtualizer
 *
 * Copyright (C) 2015 Samjung Data Service, Inc. All rights reserved.
 * Kitae Kim <superkkt@sds.co.kr>
 *
 * This program is free software; you can redistribute it and/or modify
 * it under the terms of the GNU General Public License as published by
 * the Free Software Foundation; either version 2 of the License, or
 * any later version.
 *
 * This program is distributed in the hope that it will be useful,
 * but WITHOUT ANY WARRANTY; without even the implied warranty of
 * MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the
 * GNU General Public License for more details.
 *
 * You should have received a copy of the GNU General Public License along
 * with this program; if not, write to the Free Software Foundation, Inc.,
 * 51 Franklin Street, Fifth Floor, Boston, MA 02110-1301 USA.
 */

package multiswitch

import (
	"github.com/superkkt/tablevisor/openflow/of13"
)

// StitchCookie identifies the flows the virtualizer installs by itself.
const StitchCookie = 0x00FEDCBA98765432

const (
	stitchPriority = 45678
	stitchXID      = 0x12345678
)

// stitchFlow returns the flow that hands packets coming back from the next
// bigger device over to the next smaller device. Only the devices in the
// middle of the chain need it.
func (r *rewriter) stitchFlow(device int) (*of13.FlowMod, bool) {
	if !r.registry.IsMiddle(device) {
		return nil, false
	}
	dev, err := r.device(device)
	if err != nil {
		return nil, false
	}
	smaller, _ := r.registry.NextSmaller(device)
	bigger, _ := r.registry.NextBigger(device)
	in, ok := dev.InPort(bigger)
	if !ok {
		logger.Errorf("no link from device %v to device %v", device, bigger)
		return nil, false
	}
	out, ok := dev.InPort(smaller)
	if !ok {
		logger.Errorf("no link from device %v to device %v", device, smaller)
		return nil, false
	}

	flow := of13.NewFlowMod(stitchXID)
	flow.Command = of13.OFPFC_ADD
	flow.Cookie = StitchCookie
	flow.TableID = 0
	flow.Priority = stitchPriority
	flow.Match.SetInPort(in)
	flow.Instructions = []of13.Instruction{of13.NewApplyActions(of13.NewOutput(out))}

	return flow, true
}
