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

package pipeline

import (
	"errors"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow/of13"
)

type recorder struct {
	mutex    sync.Mutex
	messages []*message.Message
	err      error
}

func (r *recorder) Send(m *message.Message) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if r.err != nil {
		return r.err
	}
	r.messages = append(r.messages, m)
	return nil
}

func (r *recorder) sent() []*message.Message {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return append([]*message.Message(nil), r.messages...)
}

type devices struct {
	connected []int
	kinds     map[int]config.EndpointType
}

func (r *devices) Connected() []int {
	return r.connected
}

func (r *devices) IsConnected(device int) bool {
	for _, v := range r.connected {
		if v == device {
			return true
		}
	}
	return false
}

func (r *devices) Kind(device int) (config.EndpointType, bool) {
	v, ok := r.kinds[device]
	return v, ok
}

// binder binds flow-mods to a fixed device and counts what it sees.
type binder struct {
	Base
	device   int
	flowMods int
	observed []Category
}

func (r *binder) FlowModToDevice(m *message.Message) {
	r.flowMods++
	r.Base.FlowModToDevice(m.WithDevice(r.device))
}

func (r *binder) Observe(d Direction, c Category, m *message.Message) {
	r.observed = append(r.observed, c)
}

func TestClassify(t *testing.T) {
	samples := []struct {
		Message   *message.Message
		Direction Direction
		Expected  Category
	}{
		{message.NewOpenFlow(message.Unbound, of13.NewFeaturesRequest(1)), DirToDevice, CategoryFeatures},
		{message.NewOpenFlow(1, of13.NewFeaturesReply(1)), DirToController, CategoryFeatures},
		{message.NewOpenFlow(message.Unbound, of13.NewFlowMod(1)), DirToDevice, CategoryFlowMod},
		{message.NewOpenFlow(1, of13.NewFlowRemoved(1)), DirToController, CategoryFlowMod},
		{message.NewOpenFlow(1, of13.NewPacketIn(1)), DirToController, CategoryPacket},
		{message.NewOpenFlow(message.Unbound, of13.NewPacketOut(1)), DirToDevice, CategoryPacket},
		{message.NewOpenFlow(message.Unbound, of13.NewMultipartRequest(1, of13.OFPMP_DESC)), DirToDevice, CategoryStats},
		{message.NewOpenFlow(1, of13.NewMultipartReply(1, of13.OFPMP_DESC)), DirToController, CategoryStats},
		{message.NewOpenFlow(1, of13.NewRaw(of13.OFPT_PORT_STATUS, 1, nil)), DirToController, CategoryMisc},
		{message.NewOpenFlow(1, of13.NewError(1, 1, 1, nil)), DirToController, CategoryMisc},
		{message.NewOpenFlow(message.Unbound, of13.NewRaw(of13.OFPT_GROUP_MOD, 1, nil)), DirToDevice, CategoryGroupMod},
		{message.NewOpenFlow(message.Unbound, of13.NewRaw(of13.OFPT_METER_MOD, 1, nil)), DirToDevice, CategoryMeterMod},
		{message.NewOpenFlow(message.Unbound, of13.NewRaw(of13.OFPT_PORT_MOD, 1, nil)), DirToDevice, CategoryPortMod},
		{message.NewOpenFlow(message.Unbound, of13.NewBarrierRequest(1)), DirToDevice, CategoryBarrier},
		{message.NewOpenFlow(1, of13.NewBarrierReply(1)), DirToController, CategoryBarrier},
		{message.NewOpenFlow(1, of13.NewRoleReply(1, of13.OFPCR_ROLE_MASTER)), DirToController, CategoryRole},
		{message.NewOpenFlow(message.Unbound, of13.NewTableMod(1)), DirToDevice, CategoryTableMod},
		{message.NewOpenFlow(message.Unbound, of13.NewSetConfig(1)), DirToDevice, CategorySetConfig},
		{message.NewOpenFlow(message.Unbound, of13.NewGetConfigRequest(1)), DirToDevice, CategoryGetConfig},
		// A request moving toward the controller is not expected and is misc.
		{message.NewOpenFlow(1, of13.NewFeaturesRequest(1)), DirToController, CategoryMisc},
		{message.NewParseError(1, errors.New("broken"), nil), DirToController, CategoryError},
		{message.NewCLIRequest(2, []string{"tables"}, nil), DirToDevice, CategoryCLI},
	}

	for i, v := range samples {
		assert.Equal(t, v.Expected, Classify(v.Message, v.Direction), "sample %v: %v", i, v.Message)
	}
}

func TestChainPassThrough(t *testing.T) {
	controller, device := new(recorder), new(recorder)
	s := &binder{device: 3}
	chain := NewChain(controller, device, []Stage{NewLogStage(SideController), s, NewLogStage(SideDevice)}, nil)

	flow := message.NewOpenFlow(message.Unbound, of13.NewFlowMod(1))
	chain.ToDevice(flow)
	// Unbound messages never leave the chain toward the devices.
	chain.ToDevice(message.NewOpenFlow(message.Unbound, of13.NewBarrierRequest(2)))

	reply := message.NewOpenFlow(3, of13.NewBarrierReply(2))
	chain.ToController(reply)

	require.Len(t, device.sent(), 1)
	assert.Equal(t, 3, device.sent()[0].Device)
	assert.Same(t, flow.OpenFlow, device.sent()[0].OpenFlow)
	assert.Equal(t, 1, s.flowMods)

	require.Len(t, controller.sent(), 1)
	assert.Same(t, reply, controller.sent()[0])
	assert.Equal(t, []Category{CategoryFlowMod, CategoryBarrier, CategoryBarrier}, s.observed)
	assert.Len(t, chain.Stages(), 3)
	assert.Contains(t, chain.String(), "controller-log")
}

func TestSendError(t *testing.T) {
	controller := &recorder{err: errors.New("closed")}
	chain := NewChain(controller, new(recorder), nil, nil)
	assert.NotPanics(t, func() {
		chain.ToController(message.NewOpenFlow(1, of13.NewBarrierReply(1)))
	})
}

func TestFilter(t *testing.T) {
	d := &devices{
		connected: []int{1, 2},
		kinds: map[int]config.EndpointType{
			1: config.EndpointOpenFlow,
			2: config.EndpointP4,
		},
	}
	samples := []struct {
		Wrap     func(Stage, KindLookup) Stage
		Device   int
		Expected int
	}{
		{Wrap: OpenFlowOnly, Device: 1, Expected: 1},
		{Wrap: OpenFlowOnly, Device: 2, Expected: 0},
		{Wrap: OpenFlowOnly, Device: message.Unbound, Expected: 0},
		{Wrap: CLIOnly, Device: 2, Expected: 1},
		{Wrap: CLIOnly, Device: 1, Expected: 0},
		{Wrap: CLIOnly, Device: 9, Expected: 0},
	}

	for i, v := range samples {
		inner := &binder{device: v.Device}
		device := new(recorder)
		chain := NewChain(new(recorder), device, []Stage{v.Wrap(inner, d)}, nil)
		chain.ToDevice(message.NewOpenFlow(v.Device, of13.NewFlowMod(1)))

		assert.Equal(t, v.Expected, inner.flowMods, "sample %v", i)
		if v.Device != message.Unbound {
			// Passed through either way.
			assert.Len(t, device.sent(), 1, "sample %v", i)
		}
	}
}

func TestTransparent(t *testing.T) {
	d := &devices{connected: []int{4}}
	device := new(recorder)
	chain := NewChain(new(recorder), device, []Stage{NewTransparent(d)}, nil)

	chain.ToDevice(message.NewOpenFlow(message.Unbound, of13.NewFeaturesRequest(1)))
	chain.ToDevice(message.NewOpenFlow(message.Unbound, of13.NewRaw(of13.OFPT_EXPERIMENTER, 2, nil)))

	require.Len(t, device.sent(), 2)
	for _, m := range device.sent() {
		assert.Equal(t, 4, m.Device)
	}
}

func TestFactory(t *testing.T) {
	tags := Registered()
	assert.Contains(t, tags, "controller-log")
	assert.Contains(t, tags, "device-log")
	assert.Contains(t, tags, "transparent")

	env := &Env{Devices: &devices{connected: []int{1}}}
	chain, err := Build([]string{"controller-log", "transparent", "device-log"}, env, new(recorder), new(recorder))
	require.NoError(t, err)
	assert.Len(t, chain.Stages(), 3)

	_, err = New("no-such-stage", env)
	assert.Error(t, err)
	_, err = New("transparent", &Env{})
	assert.Error(t, err)

	assert.Panics(t, func() {
		Register("controller-log", func(*Env) (Stage, error) { return nil, nil })
	})
}
