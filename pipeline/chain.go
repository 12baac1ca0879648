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
	"bytes"
	"fmt"

	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/metrics"

	"github.com/op/go-logging"
)

var logger = logging.MustGetLogger("pipeline")

// Sender delivers a message to a transport.
type Sender interface {
	Send(m *message.Message) error
}

// ControllerPort is the controller end of a chain. Messages moving toward the
// controller leave the chain through it.
type ControllerPort struct {
	Base
	sender Sender
}

func NewControllerPort(s Sender) *ControllerPort {
	if s == nil {
		panic("nil controller sender")
	}
	return &ControllerPort{sender: s}
}

func (r *ControllerPort) exit() Direction {
	return DirToController
}

func (r *ControllerPort) send(m *message.Message) {
	if err := r.sender.Send(m); err != nil {
		logger.Errorf("failed to send a message to the controller: %v: %v", m, err)
	}
}

func (r *ControllerPort) String() string {
	return "controller-port"
}

// DevicePort is the device end of a chain. Messages moving toward the devices
// leave the chain through it and must be bound to a device.
type DevicePort struct {
	Base
	sender Sender
}

func NewDevicePort(s Sender) *DevicePort {
	if s == nil {
		panic("nil device sender")
	}
	return &DevicePort{sender: s}
}

func (r *DevicePort) exit() Direction {
	return DirToDevice
}

func (r *DevicePort) send(m *message.Message) {
	if m.Device == message.Unbound {
		logger.Errorf("dropping a message that is not bound to any device: %v", m)
		return
	}
	if err := r.sender.Send(m); err != nil {
		logger.Errorf("failed to send a message to device %v: %v: %v", m.Device, m, err)
	}
}

func (r *DevicePort) String() string {
	return "device-port"
}

// Chain is the ordered list of stages between the controller and the devices.
type Chain struct {
	head    *ControllerPort
	tail    *DevicePort
	stages  []Stage
	metrics *metrics.Metrics
}

// NewChain links the stages in order; stages[0] is next to the controller.
func NewChain(controller, device Sender, stages []Stage, m *metrics.Metrics) *Chain {
	c := &Chain{
		head:    NewControllerPort(controller),
		tail:    NewDevicePort(device),
		stages:  stages,
		metrics: m,
	}

	all := make([]Stage, 0, len(stages)+2)
	all = append(all, c.head)
	all = append(all, stages...)
	all = append(all, c.tail)
	for i, s := range all {
		var up, down Stage
		if i > 0 {
			up = all[i-1]
		}
		if i < len(all)-1 {
			down = all[i+1]
		}
		s.Link(up, down)
	}

	return c
}

// ToDevice injects a message received from the controller.
func (r *Chain) ToDevice(m *message.Message) {
	r.metrics.RecordMessage(DirToDevice.String(), Classify(m, DirToDevice).String())
	ToDevice(r.head, m)
}

// ToController injects a message received from a device.
func (r *Chain) ToController(m *message.Message) {
	r.metrics.RecordMessage(DirToController.String(), Classify(m, DirToController).String())
	ToController(r.tail, m)
}

func (r *Chain) Stages() []Stage {
	return r.stages
}

func (r *Chain) String() string {
	var buf bytes.Buffer
	buf.WriteString("controller\n")
	for _, s := range r.stages {
		buf.WriteString(fmt.Sprintf("  %v\n", s))
	}
	buf.WriteString("devices\n")

	return buf.String()
}
