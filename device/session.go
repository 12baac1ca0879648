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

	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"
	"github.com/superkkt/tablevisor/openflow/transceiver"

	"github.com/pkg/errors"
)

const bufferSize = 0xFFFF

// session is the connection of an OpenFlow switch. It is bound to a device ID
// once the FEATURES_REPLY of our handshake arrives.
type session struct {
	manager     *Manager
	conn        net.Conn
	transceiver *transceiver.Transceiver
	cancel      context.CancelFunc
	// Transaction ID of our FEATURES_REQUEST.
	handshake uint32
	bound     bool
	id        int
}

func newSession(m *Manager, conn net.Conn) *session {
	if m == nil {
		panic("nil manager")
	}
	if conn == nil {
		panic("nil connection")
	}

	s := &session{manager: m, conn: conn}
	s.transceiver = transceiver.NewTransceiver(transceiver.NewStream(conn, bufferSize), s)

	return s
}

func (r *session) remoteAddr() string {
	if addr := r.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}

	return ""
}

// run serves the session until the switch disconnects or ctx is canceled.
func (r *session) run(ctx context.Context) {
	ctx, cancel := context.WithCancel(ctx)
	r.cancel = cancel
	defer cancel()

	if err := r.transceiver.Run(ctx); err != nil {
		logger.Infof("session from %v is closed: %v", r.remoteAddr(), err)
	}
	r.transceiver.Close()
	if r.bound {
		r.manager.unbind(r.id, r)
	}
}

func (r *session) OnHello(w transceiver.Writer, hello *openflow.Echo) error {
	logger.Debugf("HELLO (ver=%v) is received from %v", hello.Version(), r.remoteAddr())
	if r.handshake != 0 {
		// Duplicated HELLO
		return nil
	}

	req := r.transceiver.Factory().NewFeaturesRequest()
	r.handshake = req.TransactionID()
	if err := w.Write(req); err != nil {
		return errors.Wrap(err, "failed to send FEATURES_REQUEST")
	}

	return nil
}

func (r *session) OnMessage(w transceiver.Writer, msg openflow.Packet) error {
	if r.bound {
		r.manager.deliver(message.NewOpenFlow(r.id, msg))
		return nil
	}

	features, ok := msg.(*of13.FeaturesReply)
	if !ok || features.TransactionID() != r.handshake {
		logger.Debugf("ignoring a message from %v before the handshake: type=%v", r.remoteAddr(), msg.Type())
		return nil
	}
	id, err := r.manager.bind(features.DPID, r)
	if err != nil {
		return err
	}
	r.id = id
	r.bound = true

	return nil
}

func (r *session) OnParseError(w transceiver.Writer, err error, packet []byte) error {
	if !r.bound {
		logger.Debugf("ignoring an undecodable message from %v before the handshake: %v", r.remoteAddr(), err)
		return nil
	}
	r.manager.deliver(message.NewParseError(r.id, err, packet))

	return nil
}
