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

package device

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/openflow/transceiver"
)

type receiver struct {
	messages chan *message.Message
}

func (r *receiver) ToController(m *message.Message) {
	r.messages <- m
}

func testConfig() *config.Config {
	return &config.Config{
		Endpoints: []config.EndpointConfig{
			{
				Name: "switches",
				Type: config.EndpointOpenFlow,
				Port: 6653,
				Devices: []config.DeviceConfig{
					{ID: 1, DatapathID: "00:00:00:00:00:00:00:01", Type: config.EndpointOpenFlow, Endpoint: "switches"},
					{ID: 2, DatapathID: "00:00:00:00:00:00:00:02", Type: config.EndpointOpenFlow, Endpoint: "switches"},
				},
			},
			{
				Name: "netronome",
				Type: config.EndpointP4,
				CLI:  "/bin/true",
				Devices: []config.DeviceConfig{
					{ID: 3, RTEHost: "localhost", RTEPort: 20206, Type: config.EndpointP4, Endpoint: "netronome"},
				},
			},
		},
	}
}

// fakeSwitch is the switch end of a connection.
type fakeSwitch struct {
	t      *testing.T
	conn   net.Conn
	stream *transceiver.Stream
}

func connect(t *testing.T, ctx context.Context, m *Manager) *fakeSwitch {
	local, remote := net.Pipe()
	m.accept(ctx, local)

	s := &fakeSwitch{t: t, conn: remote, stream: transceiver.NewStream(remote, 0)}
	s.stream.SetReadTimeout(5 * time.Second)
	t.Cleanup(func() { remote.Close() })

	return s
}

func (r *fakeSwitch) read() (openflow.Packet, error) {
	packet, err := r.stream.ReadPacket()
	if err != nil {
		return nil, err
	}
	return of13.ParseMessage(packet)
}

func (r *fakeSwitch) write(msg openflow.Outgoing) {
	v, err := msg.MarshalBinary()
	require.NoError(r.t, err)
	_, err = r.stream.Write(v)
	require.NoError(r.t, err)
}

// handshake answers the HELLO and FEATURES_REQUEST of the manager.
func (r *fakeSwitch) handshake(dpid uint64) {
	hello, err := r.read()
	require.NoError(r.t, err)
	require.Equal(r.t, uint8(of13.OFPT_HELLO), hello.Type())
	r.write(of13.NewHello(1))

	req, err := r.read()
	require.NoError(r.t, err)
	require.Equal(r.t, uint8(of13.OFPT_FEATURES_REQUEST), req.Type())
	reply := of13.NewFeaturesReply(req.TransactionID())
	reply.DPID = dpid
	r.write(reply)
}

func newManager(t *testing.T) (*Manager, *receiver) {
	m, err := NewManager(testConfig(), nil)
	require.NoError(t, err)
	recv := &receiver{messages: make(chan *message.Message, 16)}
	m.SetReceiver(recv)

	return m, recv
}

func TestCLIDevices(t *testing.T) {
	m, _ := newManager(t)

	assert.Equal(t, []int{3}, m.Connected())
	assert.True(t, m.IsConnected(3))
	assert.False(t, m.IsConnected(1))

	kind, ok := m.Kind(3)
	assert.True(t, ok)
	assert.Equal(t, config.EndpointP4, kind)
	kind, ok = m.Kind(1)
	assert.True(t, ok)
	assert.Equal(t, config.EndpointOpenFlow, kind)
	_, ok = m.Kind(9)
	assert.False(t, ok)

	assert.Error(t, m.Send(message.NewOpenFlow(3, of13.NewBarrierRequest(1))))
}

func TestSession(t *testing.T) {
	m, recv := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := connect(t, ctx, m)
	sw.handshake(1)
	assert.Eventually(t, func() bool { return m.IsConnected(1) }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, []int{1, 3}, m.Connected())

	sw.write(of13.NewPacketIn(5))
	select {
	case msg := <-recv.messages:
		assert.Equal(t, 1, msg.Device)
		assert.Equal(t, uint8(of13.OFPT_PACKET_IN), msg.OpenFlow.Type())
	case <-time.After(5 * time.Second):
		t.Fatal("no message from the switch")
	}

	done := make(chan error, 1)
	go func() { done <- m.Send(message.NewOpenFlow(1, of13.NewBarrierRequest(6))) }()
	msg, err := sw.read()
	require.NoError(t, err)
	assert.Equal(t, uint8(of13.OFPT_BARRIER_REQUEST), msg.Type())
	assert.Equal(t, uint32(6), msg.TransactionID())
	assert.NoError(t, <-done)

	assert.Equal(t, ErrNotConnected, m.Send(message.NewOpenFlow(2, of13.NewBarrierRequest(7))))
	assert.Equal(t, ErrUnknown, m.Send(message.NewOpenFlow(9, of13.NewBarrierRequest(8))))

	status := m.Status()
	require.Len(t, status, 3)
	assert.True(t, status[0].Connected)
	assert.False(t, status[1].Connected)
	assert.True(t, status[2].Connected)
	assert.Equal(t, "netronome", status[2].Endpoint)

	sw.conn.Close()
	assert.Eventually(t, func() bool { return !m.IsConnected(1) }, 5*time.Second, 10*time.Millisecond)
}

func TestUnknownDatapathID(t *testing.T) {
	m, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sw := connect(t, ctx, m)
	sw.handshake(9)
	_, err := sw.read()
	assert.Error(t, err)
	assert.Equal(t, []int{3}, m.Connected())
	assert.True(t, m.rejected.Contains(uint64(9)))
}

func TestWaitAll(t *testing.T) {
	m, _ := newManager(t)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	short, cancelShort := context.WithTimeout(ctx, 50*time.Millisecond)
	defer cancelShort()
	assert.Error(t, m.WaitAll(short))

	done := make(chan error, 1)
	go func() { done <- m.WaitAll(ctx) }()

	connect(t, ctx, m).handshake(1)
	connect(t, ctx, m).handshake(2)
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("WaitAll does not return")
	}
	assert.Equal(t, []int{1, 2, 3}, m.Connected())
}
