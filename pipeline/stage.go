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
	"github.com/superkkt/tablevisor/message"
)

// Stage is one element of the pipeline. It has one entry point per category
// and direction. A stage that is not interested in a category hands the
// message to its neighbor in the same direction, which is what Base does.
//
// Stage should prepare to be executed by multiple goroutines simultaneously.
type Stage interface {
	// Link sets the neighbors toward the controller and toward the devices.
	Link(controller, device Stage)

	FeaturesToDevice(m *message.Message)
	FeaturesToController(m *message.Message)
	GetConfigToDevice(m *message.Message)
	GetConfigToController(m *message.Message)
	SetConfigToDevice(m *message.Message)
	SetConfigToController(m *message.Message)
	StatsToDevice(m *message.Message)
	StatsToController(m *message.Message)
	TableModToDevice(m *message.Message)
	TableModToController(m *message.Message)
	FlowModToDevice(m *message.Message)
	FlowModToController(m *message.Message)
	GroupModToDevice(m *message.Message)
	GroupModToController(m *message.Message)
	PortModToDevice(m *message.Message)
	PortModToController(m *message.Message)
	MeterModToDevice(m *message.Message)
	MeterModToController(m *message.Message)
	RoleToDevice(m *message.Message)
	RoleToController(m *message.Message)
	BarrierToDevice(m *message.Message)
	BarrierToController(m *message.Message)
	PacketToDevice(m *message.Message)
	PacketToController(m *message.Message)
	MiscToDevice(m *message.Message)
	MiscToController(m *message.Message)
	ErrorToDevice(m *message.Message)
	ErrorToController(m *message.Message)
	CLIToDevice(m *message.Message)
	CLIToController(m *message.Message)
}

// Base passes every message to the neighbor in the direction it is moving.
// Stages embed it and override only the entry points they change.
type Base struct {
	controller Stage
	device     Stage
}

func (r *Base) Link(controller, device Stage) {
	r.controller = controller
	r.device = device
}

// Controller returns the neighbor toward the controller.
func (r *Base) Controller() Stage {
	return r.controller
}

// Device returns the neighbor toward the devices.
func (r *Base) Device() Stage {
	return r.device
}

// SendToDevice classifies the message and hands it to the neighbor toward the devices.
func (r *Base) SendToDevice(m *message.Message) {
	ToDevice(r.device, m)
}

// SendToController classifies the message and hands it to the neighbor toward the controller.
func (r *Base) SendToController(m *message.Message) {
	ToController(r.controller, m)
}

func (r *Base) FeaturesToDevice(m *message.Message) {
	deliver(r.device, CategoryFeatures, DirToDevice, m)
}

func (r *Base) FeaturesToController(m *message.Message) {
	deliver(r.controller, CategoryFeatures, DirToController, m)
}

func (r *Base) GetConfigToDevice(m *message.Message) {
	deliver(r.device, CategoryGetConfig, DirToDevice, m)
}

func (r *Base) GetConfigToController(m *message.Message) {
	deliver(r.controller, CategoryGetConfig, DirToController, m)
}

func (r *Base) SetConfigToDevice(m *message.Message) {
	deliver(r.device, CategorySetConfig, DirToDevice, m)
}

func (r *Base) SetConfigToController(m *message.Message) {
	deliver(r.controller, CategorySetConfig, DirToController, m)
}

func (r *Base) StatsToDevice(m *message.Message) {
	deliver(r.device, CategoryStats, DirToDevice, m)
}

func (r *Base) StatsToController(m *message.Message) {
	deliver(r.controller, CategoryStats, DirToController, m)
}

func (r *Base) TableModToDevice(m *message.Message) {
	deliver(r.device, CategoryTableMod, DirToDevice, m)
}

func (r *Base) TableModToController(m *message.Message) {
	deliver(r.controller, CategoryTableMod, DirToController, m)
}

func (r *Base) FlowModToDevice(m *message.Message) {
	deliver(r.device, CategoryFlowMod, DirToDevice, m)
}

func (r *Base) FlowModToController(m *message.Message) {
	deliver(r.controller, CategoryFlowMod, DirToController, m)
}

func (r *Base) GroupModToDevice(m *message.Message) {
	deliver(r.device, CategoryGroupMod, DirToDevice, m)
}

func (r *Base) GroupModToController(m *message.Message) {
	deliver(r.controller, CategoryGroupMod, DirToController, m)
}

func (r *Base) PortModToDevice(m *message.Message) {
	deliver(r.device, CategoryPortMod, DirToDevice, m)
}

func (r *Base) PortModToController(m *message.Message) {
	deliver(r.controller, CategoryPortMod, DirToController, m)
}

func (r *Base) MeterModToDevice(m *message.Message) {
	deliver(r.device, CategoryMeterMod, DirToDevice, m)
}

func (r *Base) MeterModToController(m *message.Message) {
	deliver(r.controller, CategoryMeterMod, DirToController, m)
}

func (r *Base) RoleToDevice(m *message.Message) {
	deliver(r.device, CategoryRole, DirToDevice, m)
}

func (r *Base) RoleToController(m *message.Message) {
	deliver(r.controller, CategoryRole, DirToController, m)
}

func (r *Base) BarrierToDevice(m *message.Message) {
	deliver(r.device, CategoryBarrier, DirToDevice, m)
}

func (r *Base) BarrierToController(m *message.Message) {
	deliver(r.controller, CategoryBarrier, DirToController, m)
}

func (r *Base) PacketToDevice(m *message.Message) {
	deliver(r.device, CategoryPacket, DirToDevice, m)
}

func (r *Base) PacketToController(m *message.Message) {
	deliver(r.controller, CategoryPacket, DirToController, m)
}

func (r *Base) MiscToDevice(m *message.Message) {
	deliver(r.device, CategoryMisc, DirToDevice, m)
}

func (r *Base) MiscToController(m *message.Message) {
	deliver(r.controller, CategoryMisc, DirToController, m)
}

func (r *Base) ErrorToDevice(m *message.Message) {
	deliver(r.device, CategoryError, DirToDevice, m)
}

func (r *Base) ErrorToController(m *message.Message) {
	deliver(r.controller, CategoryError, DirToController, m)
}

func (r *Base) CLIToDevice(m *message.Message) {
	deliver(r.device, CategoryCLI, DirToDevice, m)
}

func (r *Base) CLIToController(m *message.Message) {
	deliver(r.controller, CategoryCLI, DirToController, m)
}
