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
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/registry"

	"github.com/pkg/errors"
)

func newRewriter(t *testing.T) *rewriter {
	reg, err := registry.Build(chainDevices())
	require.NoError(t, err)

	return &rewriter{registry: reg}
}

func flowMod(table uint8, instructions ...of13.Instruction) *of13.FlowMod {
	flow := of13.NewFlowMod(1)
	flow.TableID = table
	flow.Instructions = instructions

	return flow
}

func TestFlowModToDevice(t *testing.T) {
	r := newRewriter(t)

	samples := []struct {
		Flow         *of13.FlowMod
		Device       int
		Table        uint8
		Instructions []of13.Instruction
	}{
		// Downstream jump with parallel links uses the lowest port.
		{
			Flow:         flowMod(1, &of13.GotoTable{TableID: 2}),
			Device:       1,
			Table:        1,
			Instructions: []of13.Instruction{of13.NewApplyActions(of13.NewOutput(10))},
		},
		// Upstream jump uses the highest port.
		{
			Flow:         flowMod(3, &of13.GotoTable{TableID: 5}),
			Device:       2,
			Table:        1,
			Instructions: []of13.Instruction{of13.NewApplyActions(of13.NewOutput(22))},
		},
		// Jump inside a device.
		{
			Flow:         flowMod(2, &of13.GotoTable{TableID: 3}),
			Device:       2,
			Table:        0,
			Instructions: []of13.Instruction{&of13.GotoTable{TableID: 1}},
		},
		// The output joins the applied actions.
		{
			Flow: flowMod(1,
				&of13.WriteMetadata{Metadata: 1, Mask: 1},
				of13.NewApplyActions(of13.NewOutput(1)),
				&of13.GotoTable{TableID: 2},
			),
			Device: 1,
			Table:  1,
			Instructions: []of13.Instruction{
				&of13.WriteMetadata{Metadata: 1, Mask: 1},
				of13.NewApplyActions(of13.NewOutput(1), of13.NewOutput(10)),
			},
		},
		// Multiple action lists are coalesced at the position of the first one.
		{
			Flow: flowMod(2,
				of13.NewApplyActions(of13.NewOutput(1)),
				&of13.Meter{MeterID: 7},
				of13.NewApplyActions(of13.NewOutput(2)),
			),
			Device: 2,
			Table:  0,
			Instructions: []of13.Instruction{
				of13.NewApplyActions(of13.NewOutput(1), of13.NewOutput(2)),
				&of13.Meter{MeterID: 7},
			},
		},
		// Nothing to rewrite.
		{
			Flow:         flowMod(4),
			Device:       3,
			Table:        0,
			Instructions: []of13.Instruction{},
		},
	}

	for i, v := range samples {
		result, device, err := r.flowModToDevice(v.Flow)
		require.NoError(t, err, "sample %v", i)
		assert.Equal(t, v.Device, device, "sample %v", i)
		assert.Equal(t, v.Table, result.TableID, "sample %v", i)
		assert.Equal(t, v.Instructions, result.Instructions, "sample %v", i)
	}
}

func TestFlowModKeepsOriginal(t *testing.T) {
	r := newRewriter(t)

	flow := flowMod(1, &of13.GotoTable{TableID: 2})
	_, _, err := r.flowModToDevice(flow)
	require.NoError(t, err)
	assert.Equal(t, uint8(1), flow.TableID)
	assert.Equal(t, []of13.Instruction{&of13.GotoTable{TableID: 2}}, flow.Instructions)
}

func TestFlowModToLastTable(t *testing.T) {
	r := newRewriter(t)

	flow := flowMod(5)
	flow.Match.SetInPort(7)
	result, device, err := r.flowModToDevice(flow)
	require.NoError(t, err)
	assert.Equal(t, 1, device)
	assert.Equal(t, uint8(0), result.TableID)
	port, ok := result.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(11), port)

	port, ok = flow.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(7), port)
}

// lastOnBiggest returns a rewriter of two devices where the last logical table
// is bound to the biggest device.
func lastOnBiggest(t *testing.T) *rewriter {
	reg, err := registry.Build([]config.DeviceConfig{
		{
			ID:     1,
			Tables: []config.TableBinding{{Logical: 0, Physical: 0}},
			Links:  []config.Link{{Neighbor: 2, Port: 10}},
		},
		{
			ID:     2,
			Tables: []config.TableBinding{{Logical: 1, Physical: 0}, {Logical: 2, Physical: 1}},
			Links:  []config.Link{{Neighbor: 1, Port: 20}},
		},
	})
	require.NoError(t, err)

	return &rewriter{registry: reg}
}

func TestFlowModToLastTableOfBiggestDevice(t *testing.T) {
	r := lastOnBiggest(t)

	for _, inPort := range []uint32{0, 7} {
		flow := flowMod(2)
		if inPort != 0 {
			flow.Match.SetInPort(inPort)
		}
		result, device, err := r.flowModToDevice(flow)
		require.NoError(t, err)
		assert.Equal(t, 2, device)
		assert.Equal(t, uint8(1), result.TableID)
		port, ok := result.Match.InPort()
		require.True(t, ok)
		assert.Equal(t, uint32(20), port)
	}

	// Tables other than the last one keep the match of the controller.
	flow := flowMod(1)
	flow.Match.SetInPort(7)
	result, _, err := r.flowModToDevice(flow)
	require.NoError(t, err)
	port, ok := result.Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(7), port)
}

func TestFlowStatsOfLastTableOfBiggestDevice(t *testing.T) {
	r := lastOnBiggest(t)

	last := &of13.FlowStats{TableID: 1, Match: of13.NewMatch()}
	last.Match.SetInPort(20)
	entry := &of13.FlowStats{TableID: 0, Match: of13.NewMatch()}
	entry.Match.SetInPort(7)

	result := r.flowStatsToController(2, []*of13.FlowStats{last, entry})
	require.Len(t, result, 2)
	assert.Equal(t, uint8(2), result[0].TableID)
	_, ok := result[0].Match.InPort()
	assert.False(t, ok)
	assert.Equal(t, uint8(1), result[1].TableID)
	port, ok := result[1].Match.InPort()
	require.True(t, ok)
	assert.Equal(t, uint32(7), port)
}

func TestFlowModUnroutable(t *testing.T) {
	r := newRewriter(t)

	for _, flow := range []*of13.FlowMod{
		flowMod(9),
		flowMod(1, &of13.GotoTable{TableID: 200}),
		// Device 1 has no link to device 3.
		flowMod(1, &of13.GotoTable{TableID: 4}),
	} {
		_, _, err := r.flowModToDevice(flow)
		assert.Equal(t, registry.ErrUnroutable, errors.Cause(err))
	}
}

func TestStitchFlow(t *testing.T) {
	r := newRewriter(t)

	_, ok := r.stitchFlow(1)
	assert.False(t, ok)
	_, ok = r.stitchFlow(3)
	assert.False(t, ok)
	_, ok = r.stitchFlow(4)
	assert.False(t, ok)

	flow, ok := r.stitchFlow(2)
	require.True(t, ok)
	assert.Equal(t, uint32(stitchXID), flow.TransactionID())
	assert.Equal(t, uint8(of13.OFPFC_ADD), flow.Command)
	assert.Equal(t, uint32(of13.OFP_NO_BUFFER), flow.BufferID)

	// The stitching flow is hidden from the controller.
	entry := &of13.FlowStats{TableID: 0, Cookie: flow.Cookie, Match: flow.Match, Instructions: flow.Instructions}
	assert.Empty(t, r.flowStatsToController(2, []*of13.FlowStats{entry}))
	entry.Cookie = 0
	assert.Empty(t, r.flowStatsToController(2, []*of13.FlowStats{entry}))
}

func TestInstructionsToController(t *testing.T) {
	r := newRewriter(t)

	flows := []*of13.FlowStats{
		{
			TableID: 1,
			Match:   of13.NewMatch(),
			Instructions: []of13.Instruction{
				of13.NewApplyActions(of13.NewOutput(1), of13.NewOutput(11)),
				&of13.Meter{MeterID: 3},
			},
		},
	}
	result := r.flowStatsToController(1, flows)
	require.Len(t, result, 1)
	assert.Equal(t, []of13.Instruction{
		of13.NewApplyActions(of13.NewOutput(1)),
		&of13.GotoTable{TableID: 2},
		&of13.Meter{MeterID: 3},
	}, result[0].Instructions)

	// Unknown devices report nothing.
	assert.Empty(t, r.flowStatsToController(message.Unbound, flows))
}
