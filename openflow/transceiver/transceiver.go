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

// Package transceiver runs OpenFlow 1.3 sessions over a stream: version
// negotiation, echo keepalive, framing and decoding of messages.
package transceiver

import (
	"context"
	"encoding"
	"time"

	"github.com/superkkt/tablevisor/openflow"
	"github.com/superkkt/tablevisor/openflow/of13"

	"github.com/op/go-logging"
	"github.com/pkg/errors"
)

var (
	logger = logging.MustGetLogger("transceiver")
)

const (
	// Allowed idle time before we send an echo request to the peer.
	maxIdleTime = 10 * time.Second
	// I/O timeouts (These timeouts should be less than maxIdleTime).
	readTimeout  = 1 * time.Second
	writeTimeout = readTimeout * 2
	// Maximum time to wait for the HELLO message of the peer.
	helloTimeout = 30 * time.Second
	// Maximum number of unanswered echo requests.
	maxPings = 3
)

type Writer interface {
	Write(msg encoding.BinaryMarshaler) error
}

// Handler is called from the goroutine that runs the transceiver.
type Handler interface {
	// OnHello is called once the peer's HELLO has been received.
	OnHello(w Writer, hello *openflow.Echo) error
	// OnMessage is called for every decoded message except HELLO and ECHO.
	OnMessage(w Writer, msg openflow.Packet) error
	// OnParseError is called for a message that cannot be decoded.
	OnParseError(w Writer, err error, packet []byte) error
}

type Transceiver struct {
	stream      *Stream
	handler     Handler
	factory     *of13.Factory
	pingCounter uint
	idle        time.Duration
	hello       time.Duration
}

func NewTransceiver(stream *Stream, handler Handler) *Transceiver {
	if stream == nil {
		panic("stream is nil")
	}
	if handler == nil {
		panic("handler is nil")
	}

	return &Transceiver{
		stream:  stream,
		handler: handler,
		factory: of13.NewFactory(),
		idle:    maxIdleTime,
		hello:   helloTimeout,
	}
}

// Factory returns the factory issuing the transaction IDs of this session.
func (r *Transceiver) Factory() *of13.Factory {
	return r.factory
}

func isTimeout(err error) bool {
	type Timeout interface {
		Timeout() bool
	}

	if v, ok := errors.Cause(err).(Timeout); ok {
		return v.Timeout()
	}

	return false
}

func (r *Transceiver) sendEchoRequest() error {
	if r.pingCounter >= maxPings {
		return errors.New("peer does not respond to our echo request")
	}

	echo := r.factory.NewEchoRequest()
	// We use current timestamp to check network latency between us and the peer.
	timestamp, err := time.Now().GobEncode()
	if err != nil {
		return err
	}
	echo.SetData(timestamp)

	if err := r.Write(echo); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REQUEST message")
	}
	r.pingCounter++

	return nil
}

// Run sends our HELLO and processes the incoming messages until the context
// is canceled or the session fails.
func (r *Transceiver) Run(ctx context.Context) error {
	defer logger.Debug("transceiver is closed")
	r.stream.SetReadTimeout(readTimeout)
	r.stream.SetWriteTimeout(writeTimeout)

	if err := r.Write(r.factory.NewHello()); err != nil {
		return errors.Wrap(err, "failed to send HELLO message")
	}

	readerCtx, cancelReader := context.WithCancel(ctx)
	defer cancelReader()
	reader := r.runReader(readerCtx)

	packet, err := r.negotiate(ctx, reader)
	if err != nil {
		return errors.Wrap(err, "failed to negotiate the protocol version")
	}

	for {
		if err := r.dispatch(packet); err != nil {
			return err
		}

		var ok bool
		select {
		case <-ctx.Done():
			return nil
		case packet, ok = <-reader:
			if !ok {
				return errors.New("connection closed")
			}
		}
	}
}

func (r *Transceiver) negotiate(ctx context.Context, reader <-chan []byte) (packet []byte, err error) {
	select {
	case <-ctx.Done():
		return nil, errors.New("context done")
	case <-time.After(r.hello):
		return nil, errors.New("inactive for too long")
	case packet, ok := <-reader:
		if !ok {
			return nil, errors.New("the reader channel is closed")
		}
		// The first message should be HELLO.
		if packet[1] != of13.OFPT_HELLO {
			return nil, errors.New("missing HELLO message")
		}
		if packet[0] < openflow.OF13_VERSION {
			return nil, errors.Wrapf(openflow.ErrUnsupportedVersion, "peer version %v", packet[0])
		}

		return packet, nil
	}
}

func (r *Transceiver) runReader(ctx context.Context) <-chan []byte {
	c := make(chan []byte, 4096)
	go func() {
		// Closing c tells the dispatcher the connection has been closed.
		defer close(c)

		lastActivated := time.Now()
		for {
			select {
			case <-ctx.Done():
				return
			default:
			}

			packet, err := r.stream.ReadPacket()
			if err != nil {
				if !isTimeout(err) {
					logger.Debugf("failed to read the next packet: %v", err)
					return
				}
				if time.Now().After(lastActivated.Add(r.idle)) {
					if err := r.sendEchoRequest(); err != nil {
						logger.Errorf("failed to send an echo request: %v", err)
						return
					}
					lastActivated = time.Now()
				}
				continue
			}
			lastActivated = time.Now()

			ok, err := r.handleEcho(packet)
			if err != nil {
				logger.Errorf("failed to handle the echo request or response: %v", err)
				return
			}
			if ok {
				continue
			}

			select {
			case c <- packet:
			case <-ctx.Done():
				return
			}
		}
	}()

	return c
}

// Write serializes msg in the caller's goroutine and writes it out.
func (r *Transceiver) Write(msg encoding.BinaryMarshaler) error {
	packet, err := msg.MarshalBinary()
	if err != nil {
		return err
	}
	if _, err := r.stream.Write(packet); err != nil {
		return err
	}

	return nil
}

func (r *Transceiver) handleEcho(packet []byte) (ok bool, err error) {
	if packet[0] != openflow.OF13_VERSION {
		return false, nil
	}

	switch packet[1] {
	case of13.OFPT_ECHO_REQUEST:
		return true, r.handleEchoRequest(packet)
	case of13.OFPT_ECHO_REPLY:
		return true, r.handleEchoReply(packet)
	default:
		return false, nil
	}
}

func (r *Transceiver) dispatch(packet []byte) error {
	// HELLO of a newer version is accepted since we both speak 1.3.
	if packet[1] == of13.OFPT_HELLO {
		hello := new(openflow.Echo)
		if err := hello.UnmarshalBinary(packet); err != nil {
			return r.handler.OnParseError(r, err, packet)
		}
		return r.handler.OnHello(r, hello)
	}

	msg, err := of13.ParseMessage(packet)
	if err != nil {
		return r.handler.OnParseError(r, err, packet)
	}

	return r.handler.OnMessage(r, msg)
}

func (r *Transceiver) handleEchoRequest(packet []byte) error {
	msg := new(openflow.Echo)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}

	reply := of13.NewEchoReply(msg.TransactionID())
	reply.SetData(msg.Data())
	if err := r.Write(reply); err != nil {
		return errors.Wrap(err, "failed to send ECHO_REPLY message")
	}

	return nil
}

func (r *Transceiver) handleEchoReply(packet []byte) error {
	msg := new(openflow.Echo)
	if err := msg.UnmarshalBinary(packet); err != nil {
		return err
	}
	// Any reply proves the peer is alive.
	r.pingCounter = 0

	data := msg.Data()
	if len(data) == 0 {
		return nil
	}
	timestamp := time.Time{}
	if err := timestamp.GobDecode(data); err != nil {
		return nil
	}
	logger.Debugf("transceiver latency: %v", time.Since(timestamp))

	return nil
}

func (r *Transceiver) Close() error {
	return r.stream.Close()
}
