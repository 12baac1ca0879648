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

package controller

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/transceiver"

	"github.com/pkg/errors"
)

const bufferSize = 0xFFFF

// rawPacket is a message we could not decode. It is forwarded as it is.
type rawPacket []byte

func (r rawPacket) MarshalBinary() ([]byte, error) {
	return []byte(r), nil
}

// Session is the connection to a controller. It dials the controller again
// after the connection is lost.
type Session struct {
	manager  *Manager
	name     string
	address  string
	interval time.Duration
	dial     dialer

	mutex  sync.Mutex
	writer transceiver.Writer
}

func newSession(m *Manager, c config.ControllerConfig, d dialer) *Session {
	if m == nil {
		panic("nil manager")
	}

	return &Session{
		manager:  m,
		name:     c.Name,
		address:  address(c),
		interval: c.ReconnectInterval,
		dial:     d,
	}
}

// Run keeps the session until ctx is canceled.
func (r *Session) Run(ctx context.Context) {
	for {
		if err := r.connect(ctx); err != nil {
			logger.Errorf("controller %v (%v): %v", r.name, r.address, err)
		}

		select {
		case <-ctx.Done():
			return
		case <-time.After(r.interval):
			logger.Debugf("reconnecting to controller %v (%v)", r.name, r.address)
		}
	}
}

func (r *Session) connect(ctx context.Context) error {
	conn, err := r.dial(ctx, r.address)
	if err != nil {
		return errors.Wrap(err, "failed to connect")
	}
	logger.Infof("connected to controller %v (%v)", r.name, r.address)

	t := transceiver.NewTransceiver(transceiver.NewStream(conn, bufferSize), r)
	defer t.Close()
	defer r.setWriter(nil)

	if err := t.Run(ctx); err != nil {
		return errors.Wrap(err, "session is closed")
	}
	logger.Infof("disconnected from controller %v (%v)", r.name, r.address)

	return nil
}

func (r *Session) setWriter(w transceiver.Writer) {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	r.writer = w
}

func (r *Session) Connected() bool {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	return r.writer != nil
}

// Send writes m to the controller once the version negotiation is done.
func (r *Session) Send(m *message.Message) error {
	r.mutex.Lock()
	w := r.writer
	r.mutex.Unlock()

	if w == nil {
		return ErrNotConnected
	}

	switch {
	case m.IsOpenFlow():
		return w.Write(m.OpenFlow)
	case m.Kind == message.KindParseError && len(m.Raw) > 0:
		return w.Write(rawPacket(m.Raw))
	default:
		return fmt.Errorf("cannot send %v to the controller", m)
	}
}

func (r *Session) OnHello(w transceiver.Writer, hello *openflow.Echo) error {
	logger.Debugf("HELLO (ver=%v) is received from controller %v", hello.Version(), r.name)
	r.setWriter(w)

	return nil
}

func (r *Session) OnMessage(w transceiver.Writer, msg openflow.Packet) error {
	r.manager.deliver(message.NewOpenFlow(message.Unbound, msg))
	return nil
}

func (r *Session) OnParseError(w transceiver.Writer, err error, packet []byte) error {
	logger.Debugf("undecodable message from controller %v: %v", r.name, err)
	r.manager.deliver(message.NewParseError(message.Unbound, err, packet))

	return nil
}

func (r *Session) String() string {
	return fmt.Sprintf("controller %v (%v)", r.name, r.address)
}
