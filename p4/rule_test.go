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

package p4

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/openflow/of13"
)

func TestFlowModArgs(t *testing.T) {
	d := parseProgram(t)

	fm := of13.NewFlowMod(1)
	fm.Cookie = 0x2a
	fm.Priority = 100
	fm.Match.Add(of13.NewOXM(of13.OFPXMT_OFB_ETH_DST, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}))
	fm.Match.Add(of13.NewOXM(of13.OFPXMT_OFB_ETH_TYPE, []byte{0x08, 0x00}))
	fm.Instructions = []of13.Instruction{
		of13.NewApplyActions(
			&of13.SetField{Field: of13.NewOXM(of13.OFPXMT_OFB_ETH_DST, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff})},
			of13.NewOutput(3),
		),
	}

	args, err := flowModArgs(d, "ingress", fm)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tables",
		"--table-name ingress",
		"add",
		"--rule r2a",
		`--match { "dstAddr": { "value": "00:11:22:33:44:55" }, "etherType": { "value": "0x800" } }`,
		`--action { "type": "rewrite_forward", "data": { "mac": { "value": "aa:bb:cc:dd:ee:ff" }, "port": { "value": "p3" } } }`,
		"--priority 100",
	}, args)

	pop := of13.NewFlowMod(2)
	pop.Command = of13.OFPFC_MODIFY_STRICT
	pop.Cookie = 0xbeef
	pop.Match.Add(of13.NewOXM(of13.OFPXMT_OFB_IPV4_DST, []byte{10, 0, 0, 1}))
	pop.Instructions = []of13.Instruction{
		&of13.GotoTable{TableID: 1},
		of13.NewApplyActions(&of13.MPLS{EtherType: 0x0800}),
	}
	args, err = flowModArgs(d, "ingress", pop)
	require.NoError(t, err)
	assert.Equal(t, "edit", args[2])
	assert.Equal(t, "--rule rbeef", args[3])
	assert.Equal(t, `--match { "dstAddr4": { "value": "10.0.0.1" } }`, args[4])
	assert.Equal(t, `--action { "type": "pop", "data": { "etype": { "value": "0x800" } } }`, args[5])
}

func TestFlowModArgsDefault(t *testing.T) {
	d := parseProgram(t)

	fm := of13.NewFlowMod(1)
	fm.Command = of13.OFPFC_DELETE_STRICT
	args, err := flowModArgs(d, "Egress", fm)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"tables",
		"--table-name Egress",
		"delete",
		"--rule r0",
		"--match {  }",
		`--action { "type": "_drop", "data": {  } }`,
		"--priority 0",
		"--default",
	}, args)
}

func TestFlowModArgsErrors(t *testing.T) {
	d := parseProgram(t)

	controller := of13.NewFlowMod(1)
	controller.Instructions = []of13.Instruction{of13.NewApplyActions(of13.NewOutput(of13.OFPP_CONTROLLER))}
	_, err := flowModArgs(d, "ingress", controller)
	assert.Equal(t, ErrControllerOutput, err)

	command := of13.NewFlowMod(1)
	command.Command = of13.OFPFC_DELETE
	_, err = flowModArgs(d, "ingress", command)
	assert.Error(t, err)

	composition := of13.NewFlowMod(1)
	composition.Instructions = []of13.Instruction{&of13.GotoTable{TableID: 5}}
	_, err = flowModArgs(d, "ingress", composition)
	assert.Error(t, err)
}

const rules = `[TableEntry(priority=100, rule_name='r2a', default_rule=False, actions='{ "type" : "rewrite_forward",  "data" : { "mac" : { "value" : "aa:bb:cc:dd:ee:ff" }, "port" : { "value" : "p3" } } }', match='{ "dstAddr" : {  "value" : "00:11:22:33:44:55" }, "etherType" : {  "value" : "0x800" } }'), TableEntry(priority=0, rule_name='default', default_rule=True, actions='{ "type" : "_drop",  "data" : {  } }', match='{  }')]`

func TestParseRules(t *testing.T) {
	d := parseProgram(t)

	flows, err := parseRules(d, 1, rules)
	require.NoError(t, err)
	require.Len(t, flows, 2)

	f := flows[0]
	assert.Equal(t, uint8(1), f.TableID)
	assert.Equal(t, uint16(100), f.Priority)
	assert.Equal(t, uint64(0x2a), f.Cookie)
	require.Equal(t, 2, f.Match.Len())
	dst, ok := f.Match.Get(of13.OFPXMC_OPENFLOW_BASIC, of13.OFPXMT_OFB_ETH_DST)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x00, 0x11, 0x22, 0x33, 0x44, 0x55}, dst.Value)
	ethType, ok := f.Match.Get(of13.OFPXMC_OPENFLOW_BASIC, of13.OFPXMT_OFB_ETH_TYPE)
	assert.True(t, ok)
	assert.Equal(t, []byte{0x08, 0x00}, ethType.Value)

	require.Len(t, f.Instructions, 1)
	apply, ok := f.Instructions[0].(*of13.ApplyActions)
	require.True(t, ok)
	require.Len(t, apply.Actions, 2)
	set, ok := apply.Actions[0].(*of13.SetField)
	require.True(t, ok)
	assert.Equal(t, []byte{0xaa, 0xbb, 0xcc, 0xdd, 0xee, 0xff}, set.Field.Value)
	out, ok := apply.Actions[1].(*of13.Output)
	require.True(t, ok)
	assert.Equal(t, uint32(3), out.Port)

	def := flows[1]
	assert.Equal(t, uint64(0), def.Cookie)
	assert.Equal(t, 0, def.Match.Len())
	assert.Empty(t, def.Instructions)
}

func TestParseRulesWithGoto(t *testing.T) {
	d := parseProgram(t)

	output := `[TableEntry(priority=5, rule_name='rff', default_rule=False, actions='{ "type" : "pop",  "data" : { "etype" : { "value" : "0x0800" } } }', match='{ "dstAddr4" : {  "value" : "10.0.0.1" } }')]`
	flows, err := parseRules(d, 0, output)
	require.NoError(t, err)
	require.Len(t, flows, 1)
	assert.Equal(t, uint64(0xff), flows[0].Cookie)

	require.Len(t, flows[0].Instructions, 2)
	apply, ok := flows[0].Instructions[0].(*of13.ApplyActions)
	require.True(t, ok)
	assert.Equal(t, []of13.Action{&of13.MPLS{EtherType: 0x0800}}, apply.Actions)
	assert.Equal(t, &of13.GotoTable{TableID: 1}, flows[0].Instructions[1])
}

func TestParseRulesErrors(t *testing.T) {
	d := parseProgram(t)

	flows, err := parseRules(d, 0, "[]\n")
	assert.NoError(t, err)
	assert.Empty(t, flows)

	samples := []string{
		"[Something(else)]",
		`[TableEntry(priority=1, rule_name='r1', default_rule=False, actions='{ "type" : "unknown",  "data" : {  } }', match='{  }')]`,
		`[TableEntry(priority=1, rule_name='r1', default_rule=False, actions='{ "type" : "forward",  "data" : {  } }', match='{  }')]`,
		`[TableEntry(priority=1, rule_name='r1', default_rule=False, actions='{ "type" : "_drop",  "data" : {  } }', match='{ "dstAddr" : {  "value" : "nonsense" } }')]`,
	}
	for _, v := range samples {
		_, err := parseRules(d, 0, v)
		assert.Error(t, err, v)
	}
}
