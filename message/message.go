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

// Package message defines the unit of work that travels through the stage
// pipeline: a decoded OpenFlow message, a parse failure, or a request to and
// reply from a command line driven device.
package message

import (
	"fmt"

	"github.com/superkkt/tablevisor/openflow"
)

type Kind int

const (
	KindOpenFlow Kind = iota
	KindParseError
	KindCLI
)

func (r Kind) String() string {
	switch r {
	case KindOpenFlow:
		return "OpenFlow"
	case KindParseError:
		return "ParseError"
	case KindCLI:
		return "CLI"
	default:
		return fmt.Sprintf("Kind(%d)", int(r))
	}
}

// Unbound is the device ID of a message that has not been assigned to a
// physical device yet, e.g., a message just received from the controller.
const Unbound = -1

type Message struct {
	Kind Kind
	// Device is the source device of a message moving toward the controller,
	// or the destination device of a message moving toward the devices.
	Device   int
	OpenFlow openflow.Packet
	// Err and Raw describe a message that could not be decoded.
	Err error
	Raw []byte
	CLI *CLIExchange
}

// CLIExchange is one invocation of the command line tool that drives a device.
type CLIExchange struct {
	Args []string
	// Reply is the textual output of the tool. It is empty for a request.
	Reply string
	// Request is the controller message this exchange will eventually answer.
	Request *Message
}

func NewOpenFlow(device int, msg openflow.Packet) *Message {
	if msg == nil {
		panic("nil OpenFlow message")
	}

	return &Message{
		Kind:     KindOpenFlow,
		Device:   device,
		OpenFlow: msg,
	}
}

func NewParseError(device int, err error, raw []byte) *Message {
	return &Message{
		Kind:   KindParseError,
		Device: device,
		Err:    err,
		Raw:    raw,
	}
}

func NewCLIRequest(device int, args []string, request *Message) *Message {
	return &Message{
		Kind:   KindCLI,
		Device: device,
		CLI: &CLIExchange{
			Args:    args,
			Request: request,
		},
	}
}

// NewCLIReply returns the answer of the CLI request req whose output is reply.
func NewCLIReply(req *Message, reply string) *Message {
	if req.Kind != KindCLI || req.CLI == nil {
		panic(fmt.Sprintf("not a CLI request: %v", req))
	}

	return &Message{
		Kind:   KindCLI,
		Device: req.Device,
		CLI: &CLIExchange{
			Args:    req.CLI.Args,
			Reply:   reply,
			Request: req.CLI.Request,
		},
	}
}

// WithDevice returns a shallow copy of the message bound to device. The
// OpenFlow payload is shared, so callers that modify it must copy it first.
func (r *Message) WithDevice(device int) *Message {
	c := *r
	c.Device = device

	return &c
}

func (r *Message) IsOpenFlow() bool {
	return r.Kind == KindOpenFlow && r.OpenFlow != nil
}

// Type returns the OpenFlow message type, or false if this is not an OpenFlow message.
func (r *Message) Type() (uint8, bool) {
	if !r.IsOpenFlow() {
		return 0, false
	}
	return r.OpenFlow.Type(), true
}

func (r *Message) String() string {
	switch r.Kind {
	case KindOpenFlow:
		if r.OpenFlow == nil {
			return fmt.Sprintf("OpenFlow(device=%v, <nil>)", r.Device)
		}
		return fmt.Sprintf("OpenFlow(device=%v, type=%v, xid=%v)", r.Device, r.OpenFlow.Type(), r.OpenFlow.TransactionID())
	case KindParseError:
		return fmt.Sprintf("ParseError(device=%v, err=%v, length=%v)", r.Device, r.Err, len(r.Raw))
	case KindCLI:
		if r.CLI == nil {
			return fmt.Sprintf("CLI(device=%v, <nil>)", r.Device)
		}
		if r.CLI.Reply == "" {
			return fmt.Sprintf("CLI(device=%v, request=%v)", r.Device, r.CLI.Args)
		}
		return fmt.Sprintf("CLI(device=%v, reply=%v bytes, request=%v)", r.Device, len(r.CLI.Reply), r.CLI.Args)
	default:
		return fmt.Sprintf("Message(kind=%v, device=%v)", r.Kind, r.Device)
	}
}
