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

package transceiver

import (
	"context"
	"net"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"
)

type event struct {
	hello   *openflow.Echo
	message openflow.Packet
	err     error
}

type handler struct {
	events chan event
}

func (r *handler) OnHello(w Writer, hello *openflow.Echo) error {
	r.events <- event{hello: hello}
	return nil
}

func (r *handler) OnMessage(w Writer, msg openflow.Packet) error {
	r.events <- event{message: msg}
	return nil
}

func (r *handler) OnParseError(w Writer, err error, packet []byte) error {
	r.events <- event{err: err}
	return nil
}

type peer struct {
	t      *testing.T
	conn   net.Conn
	stream *Stream
}

func (r *peer) write(msg openflow.Outgoing) {
	v, err := msg.MarshalBinary()
	require.NoError(r.t, err)
	r.writeRaw(v)
}

func (r *peer) writeRaw(v []byte) {
	_, err := r.stream.Write(v)
	require.NoError(r.t, err)
}

func (r *peer) read() openflow.Packet {
	packet, err := r.stream.ReadPacket()
	require.NoError(r.t, err)
	msg, err := of13.ParseMessage(packet)
	require.NoError(r.t, err)
	return msg
}

func start(t *testing.T, idle time.Duration) (*peer, *handler, <-chan error, context.CancelFunc) {
	local, remote := net.Pipe()
	h := &handler{events: make(chan event, 16)}
	tr := NewTransceiver(NewStream(local, 0), h)
	tr.idle = idle

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- tr.Run(ctx)
		tr.Close()
	}()

	p := &peer{t: t, conn: remote, stream: NewStream(remote, 0)}
	p.stream.SetReadTimeout(5 * time.Second)
	t.Cleanup(func() { remote.Close() })

	return p, h, done, cancel
}

func next(t *testing.T, h *handler) event {
	select {
	case e := <-h.events:
		return e
	case <-time.After(5 * time.Second):
		t.Fatal("no event from the transceiver")
	}
	return event{}
}

func TestSession(t *testing.T) {
	p, h, done, cancel := start(t, maxIdleTime)
	defer cancel()

	hello := p.read()
	assert.Equal(t, uint8(of13.OFPT_HELLO), hello.Type())
	p.write(of13.NewHello(100))
	e := next(t, h)
	require.NotNil(t, e.hello)
	assert.Equal(t, uint32(100), e.hello.TransactionID())

	echo := of13.NewEchoRequest(7)
	echo.SetData([]byte("ping"))
	p.write(echo)
	reply := p.read().(*openflow.Echo)
	assert.Equal(t, uint8(of13.OFPT_ECHO_REPLY), reply.Type())
	assert.Equal(t, uint32(7), reply.TransactionID())
	assert.Equal(t, []byte("ping"), reply.Data())

	p.write(of13.NewBarrierReply(8))
	e = next(t, h)
	require.NotNil(t, e.message)
	assert.Equal(t, uint8(of13.OFPT_BARRIER_REPLY), e.message.Type())
	assert.Equal(t, uint32(8), e.message.TransactionID())

	// An OpenFlow 1.0 message cannot be decoded.
	p.writeRaw([]byte{0x01, 0x12, 0x00, 0x08, 0x00, 0x00, 0x00, 0x09})
	e = next(t, h)
	assert.Equal(t, openflow.ErrUnsupportedVersion, e.err)

	p.conn.Close()
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transceiver is still running")
	}
}

func TestKeepalive(t *testing.T) {
	p, h, _, cancel := start(t, 50*time.Millisecond)
	defer cancel()

	p.read()
	p.write(of13.NewHello(1))
	next(t, h)

	// The transceiver pings us after the idle time.
	msg := p.read()
	assert.Equal(t, uint8(of13.OFPT_ECHO_REQUEST), msg.Type())
	reply := of13.NewEchoReply(msg.TransactionID())
	reply.SetData(msg.(*openflow.Echo).Data())
	p.write(reply)
}

func TestMissingHello(t *testing.T) {
	p, _, done, cancel := start(t, maxIdleTime)
	defer cancel()

	p.read()
	p.write(of13.NewBarrierReply(1))
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transceiver accepted a session without HELLO")
	}
}

func TestOldVersion(t *testing.T) {
	p, _, done, cancel := start(t, maxIdleTime)
	defer cancel()

	p.read()
	p.writeRaw([]byte{0x01, 0x00, 0x00, 0x08, 0x00, 0x00, 0x00, 0x01})
	select {
	case err := <-done:
		assert.Error(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("transceiver accepted OpenFlow 1.0")
	}
}
