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
	"os"
	"path/filepath"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/pipeline"
)

func writeProgram(t *testing.T) string {
	path := filepath.Join(t.TempDir(), "program.p4")
	require.NoError(t, os.WriteFile(path, []byte(program), 0644))
	return path
}

type recorder struct {
	mutex    sync.Mutex
	messages []*message.Message
}

func (r *recorder) Send(m *message.Message) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.messages = append(r.messages, m)
	return nil
}

func (r *recorder) sent() []*message.Message {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]*message.Message(nil), r.messages...)
}

func (r *recorder) reset() {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.messages = nil
}

// devices reports device 1 as a P4 device and device 2 as an OpenFlow switch.
type devices struct{}

func (r *devices) Connected() []int {
	return []int{1, 2}
}

func (r *devices) IsConnected(device int) bool {
	return device == 1 || device == 2
}

func (r *devices) Kind(device int) (config.EndpointType, bool) {
	switch device {
	case 1:
		return config.EndpointP4, true
	case 2:
		return config.EndpointOpenFlow, true
	default:
		return "", false
	}
}

func testConfig(t *testing.T) *config.Config {
	return &config.Config{
		Default: config.DefaultConfig{DatapathID: "00:00:00:00:00:00:00:07"},
		Endpoints: []config.EndpointConfig{
			{
				Name: "netronome",
				Type: config.EndpointP4,
				CLI:  "/usr/bin/rtecli",
				Devices: []config.DeviceConfig{
					{
						ID:         1,
						RTEHost:    "10.0.0.5",
						RTEPort:    20206,
						Ports:      4,
						Dictionary: writeProgram(t),
						Tables:     []config.TableBinding{{Logical: 0, Physical: 0}, {Logical: 1, Physical: 1}},
						Links:      []config.Link{{Neighbor: 2, Port: 3}},
						Type:       config.EndpointP4,
					},
				},
			},
			{
				Name: "switches",
				Type: config.EndpointOpenFlow,
				Port: 6653,
				Devices: []config.DeviceConfig{
					{
						ID:         2,
						DatapathID: "00:00:00:00:00:00:00:02",
						Tables:     []config.TableBinding{{Logical: 2, Physical: 0}},
						Links:      []config.Link{{Neighbor: 1, Port: 1}},
						Type:       config.EndpointOpenFlow,
					},
				},
			},
		},
	}
}

type fixture struct {
	chain      *pipeline.Chain
	controller *recorder
	device     *recorder
}

func newFixture(t *testing.T) *fixture {
	env := &pipeline.Env{
		Config:  testConfig(t),
		Devices: new(devices),
		Version: "test",
	}
	c, err := New(env)
	require.NoError(t, err)

	f := &fixture{
		controller: new(recorder),
		device:     new(recorder),
	}
	stage := pipeline.CLIOnly(c, env.Devices)
	f.chain = pipeline.NewChain(f.controller, f.device, []pipeline.Stage{stage}, nil)

	return f
}

func (r *fixture) request(device int, p openflow.Packet) {
	r.chain.ToDevice(message.NewOpenFlow(device, p))
}

func (r *fixture) reply(t *testing.T) openflow.Packet {
	sent := r.controller.sent()
	require.Len(t, sent, 1)
	r.controller.reset()

	return sent[0].OpenFlow
}

func TestSynthesizedReplies(t *testing.T) {
	f := newFixture(t)

	f.request(1, of13.NewFeaturesRequest(1))
	features := f.reply(t).(*of13.FeaturesReply)
	assert.Equal(t, uint32(1), features.TransactionID())
	assert.Equal(t, uint64(7), features.DPID)
	assert.Equal(t, uint32(1), features.NumBuffers)
	assert.Equal(t, uint8(2), features.NumTables)

	f.request(1, of13.NewGetConfigRequest(2))
	conf := f.reply(t).(*of13.SwitchConfig)
	assert.Equal(t, uint16(of13.OFPCML_DEFAULT), conf.MissSendLen)

	f.request(1, &of13.Role{Message: openflow.NewMessage(openflow.OF13_VERSION, of13.OFPT_ROLE_REQUEST, 3)})
	role := f.reply(t).(*of13.Role)
	assert.Equal(t, uint32(of13.OFPCR_ROLE_MASTER), role.Role)

	f.request(1, of13.NewBarrierRequest(4))
	barrier := f.reply(t)
	assert.Equal(t, uint8(of13.OFPT_BARRIER_REPLY), barrier.Type())
	assert.Equal(t, uint32(4), barrier.TransactionID())

	f.request(1, of13.NewSetConfig(5))
	f.request(1, of13.NewTableMod(6))
	assert.Empty(t, f.controller.sent())
	assert.Empty(t, f.device.sent())
}

func TestStatsReplies(t *testing.T) {
	f := newFixture(t)

	f.request(1, of13.NewMultipartRequest(1, of13.OFPMP_DESC))
	desc := f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, Manufacturer, desc.Desc.Manufacturer)
	assert.Equal(t, Hardware, desc.Desc.Hardware)
	assert.Equal(t, "test", desc.Desc.Software)

	f.request(1, of13.NewMultipartRequest(2, of13.OFPMP_PORT_DESC))
	ports := f.reply(t).(*of13.MultipartReply)
	require.Len(t, ports.Entries, 3)
	for i, v := range ports.Entries {
		p := new(of13.PortDesc)
		require.NoError(t, p.UnmarshalBinary(v))
		assert.Equal(t, uint32(i), p.PortNo)
		assert.Equal(t, [6]byte{1, 0, 0, 0, 0, byte(i)}, p.HWAddr)
		assert.Equal(t, uint32(of13.OFPPF_10GB_FD|of13.OFPPF_COPPER), p.Current)
	}
	p := new(of13.PortDesc)
	require.NoError(t, p.UnmarshalBinary(ports.Entries[2]))
	assert.Equal(t, "1_2", p.Name)

	f.request(1, of13.NewMultipartRequest(3, of13.OFPMP_METER_FEATURES))
	meter := f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, &of13.MeterFeatures{}, meter.MeterFeatures)

	f.request(1, of13.NewMultipartRequest(4, of13.OFPMP_PORT_STATS))
	stats := f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, uint16(of13.OFPMP_PORT_STATS), stats.Kind)
	assert.Empty(t, stats.Entries)
	_, err := stats.MarshalBinary()
	assert.NoError(t, err)
}

func TestOpenFlowDevicesPassThrough(t *testing.T) {
	f := newFixture(t)

	f.request(2, of13.NewFeaturesRequest(1))
	assert.Empty(t, f.controller.sent())
	sent := f.device.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, 2, sent[0].Device)
	assert.Equal(t, uint8(of13.OFPT_FEATURES_REQUEST), sent[0].OpenFlow.Type())
}

func TestFlowMod(t *testing.T) {
	f := newFixture(t)

	fm := of13.NewFlowMod(1)
	fm.TableID = 1
	fm.Cookie = 0x10
	fm.Instructions = []of13.Instruction{of13.NewApplyActions(of13.NewOutput(2))}
	f.request(1, fm)

	sent := f.device.sent()
	require.Len(t, sent, 1)
	assert.Equal(t, message.KindCLI, sent[0].Kind)
	assert.Equal(t, 1, sent[0].Device)
	assert.Nil(t, sent[0].CLI.Request)
	assert.Equal(t, []string{
		"tables",
		"--table-name Egress",
		"add",
		"--rule r10",
		"--match {  }",
		`--action { "type": "forward", "data": { "port": { "value": "p2" } } }`,
		"--priority 0",
		"--default",
	}, sent[0].CLI.Args)

	// The reply of a flow-mod invocation ends here.
	f.chain.ToController(message.NewCLIReply(sent[0], "ok"))
	assert.Empty(t, f.controller.sent())
	f.device.reset()

	unknown := of13.NewFlowMod(2)
	unknown.TableID = 9
	f.request(1, unknown)

	controller := of13.NewFlowMod(3)
	controller.Instructions = []of13.Instruction{of13.NewApplyActions(of13.NewOutput(of13.OFPP_CONTROLLER))}
	f.request(1, controller)
	assert.Empty(t, f.device.sent())
}

func TestFlowStats(t *testing.T) {
	f := newFixture(t)

	f.request(1, of13.NewFlowStatsRequest(9, of13.OFPTT_ALL))
	requests := f.device.sent()
	require.Len(t, requests, 2)
	assert.Equal(t, []string{"tables", "--table-name ingress", "list-rules"}, requests[0].CLI.Args)
	assert.Equal(t, []string{"tables", "--table-name Egress", "list-rules"}, requests[1].CLI.Args)
	require.NotNil(t, requests[1].CLI.Request)
	assert.Equal(t, uint8(1), requests[1].CLI.Request.OpenFlow.(*of13.MultipartRequest).Flow.TableID)

	f.chain.ToController(message.NewCLIReply(requests[1], rules))
	assert.Empty(t, f.controller.sent())

	failed := message.NewCLIReply(requests[0], "")
	failed.Err = assert.AnError
	f.chain.ToController(failed)

	reply := f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, uint32(9), reply.TransactionID())
	assert.Equal(t, uint16(of13.OFPMP_FLOW), reply.Kind)
	require.Len(t, reply.Flows, 2)
	for _, v := range reply.Flows {
		assert.Equal(t, uint8(1), v.TableID)
	}

	// A late reply of a finished collection is ignored.
	f.chain.ToController(message.NewCLIReply(requests[0], "[]"))
	assert.Empty(t, f.controller.sent())
}

func TestFlowStatsOfTable(t *testing.T) {
	f := newFixture(t)

	f.request(1, of13.NewFlowStatsRequest(10, 0))
	requests := f.device.sent()
	require.Len(t, requests, 1)
	assert.Equal(t, []string{"tables", "--table-name ingress", "list-rules"}, requests[0].CLI.Args)

	f.chain.ToController(message.NewCLIReply(requests[0], "[]"))
	reply := f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, uint32(10), reply.TransactionID())
	assert.Empty(t, reply.Flows)

	// Table 7 is not annotated, so nothing has to be listed.
	f.device.reset()
	f.request(1, of13.NewFlowStatsRequest(11, 7))
	assert.Empty(t, f.device.sent())
	reply = f.reply(t).(*of13.MultipartReply)
	assert.Equal(t, uint32(11), reply.TransactionID())
}

func TestNew(t *testing.T) {
	assert.Panics(t, func() { New(nil) })

	_, err := New(&pipeline.Env{Devices: new(devices)})
	assert.Error(t, err)

	conf := testConfig(t)
	conf.Endpoints[0].Devices[0].Dictionary = "/nonexistent/program.p4"
	_, err = New(&pipeline.Env{Config: conf, Devices: new(devices)})
	assert.Error(t, err)

	tags := pipeline.Registered()
	assert.Contains(t, tags, "p4-control")
}
