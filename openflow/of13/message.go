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

package of13

import (
	"encoding/binary"
	"fmt"

	"github.com/superkkt/tablevisor/openflow"
)

// Raw is a message whose body is carried byte exact. It is used for the
// message types we forward without looking into them, e.g., GROUP_MOD.
type Raw struct {
	openflow.Message
	Body []byte
}

func NewRaw(msgType uint8, xid uint32, body []byte) *Raw {
	return &Raw{
		Message: openflow.NewMessage(openflow.OF13_VERSION, msgType, xid),
		Body:    body,
	}
}

func (r *Raw) MarshalBinary() ([]byte, error) {
	r.SetPayload(r.Body)
	return r.Message.MarshalBinary()
}

func (r *Raw) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}
	r.Body = r.Payload()

	return nil
}

func NewHello(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_HELLO, xid)
}

func NewEchoRequest(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_ECHO_REQUEST, xid)
}

func NewEchoReply(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_ECHO_REPLY, xid)
}

func NewFeaturesRequest(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_FEATURES_REQUEST, xid)
}

func NewGetConfigRequest(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_GET_CONFIG_REQUEST, xid)
}

func NewBarrierRequest(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_BARRIER_REQUEST, xid)
}

func NewBarrierReply(xid uint32) *openflow.Echo {
	return openflow.NewEcho(openflow.OF13_VERSION, OFPT_BARRIER_REPLY, xid)
}

type Error struct {
	openflow.Message
	Class uint16
	Code  uint16
	Data  []byte
}

func NewError(xid uint32, class, code uint16, data []byte) *Error {
	return &Error{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_ERROR, xid),
		Class:   class,
		Code:    code,
		Data:    data,
	}
}

func (r *Error) Error() string {
	return fmt.Sprintf("openflow error: type=%v, code=%v", r.Class, r.Code)
}

func (r *Error) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4, 4+len(r.Data))
	binary.BigEndian.PutUint16(v[0:2], r.Class)
	binary.BigEndian.PutUint16(v[2:4], r.Code)
	v = append(v, r.Data...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *Error) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return openflow.ErrInvalidPacketLength
	}
	r.Class = binary.BigEndian.Uint16(payload[0:2])
	r.Code = binary.BigEndian.Uint16(payload[2:4])
	r.Data = payload[4:]

	return nil
}

type FeaturesReply struct {
	openflow.Message
	DPID         uint64
	NumBuffers   uint32
	NumTables    uint8
	AuxID        uint8
	Capabilities uint32
}

func NewFeaturesReply(xid uint32) *FeaturesReply {
	return &FeaturesReply{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_FEATURES_REPLY, xid),
	}
}

func (r *FeaturesReply) MarshalBinary() ([]byte, error) {
	v := make([]byte, 24)
	binary.BigEndian.PutUint64(v[0:8], r.DPID)
	binary.BigEndian.PutUint32(v[8:12], r.NumBuffers)
	v[12] = r.NumTables
	v[13] = r.AuxID
	// v[14:16] is padding
	binary.BigEndian.PutUint32(v[16:20], r.Capabilities)
	// v[20:24] is reserved
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *FeaturesReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 24 {
		return openflow.ErrInvalidPacketLength
	}
	r.DPID = binary.BigEndian.Uint64(payload[0:8])
	r.NumBuffers = binary.BigEndian.Uint32(payload[8:12])
	r.NumTables = payload[12]
	r.AuxID = payload[13]
	r.Capabilities = binary.BigEndian.Uint32(payload[16:20])

	return nil
}

// SwitchConfig is the body of GET_CONFIG_REPLY and SET_CONFIG.
type SwitchConfig struct {
	openflow.Message
	Flags       uint16
	MissSendLen uint16
}

func NewGetConfigReply(xid uint32) *SwitchConfig {
	return &SwitchConfig{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_GET_CONFIG_REPLY, xid),
	}
}

func NewSetConfig(xid uint32) *SwitchConfig {
	return &SwitchConfig{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_SET_CONFIG, xid),
	}
}

func (r *SwitchConfig) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], r.Flags)
	binary.BigEndian.PutUint16(v[2:4], r.MissSendLen)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *SwitchConfig) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 4 {
		return openflow.ErrInvalidPacketLength
	}
	r.Flags = binary.BigEndian.Uint16(payload[0:2])
	r.MissSendLen = binary.BigEndian.Uint16(payload[2:4])

	return nil
}

// Role is the body of ROLE_REQUEST and ROLE_REPLY.
type Role struct {
	openflow.Message
	Role         uint32
	GenerationID uint64
}

func NewRoleReply(xid uint32, role uint32) *Role {
	return &Role{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_ROLE_REPLY, xid),
		Role:    role,
	}
}

func (r *Role) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], r.Role)
	// v[4:8] is padding
	binary.BigEndian.PutUint64(v[8:16], r.GenerationID)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *Role) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 16 {
		return openflow.ErrInvalidPacketLength
	}
	r.Role = binary.BigEndian.Uint32(payload[0:4])
	r.GenerationID = binary.BigEndian.Uint64(payload[8:16])

	return nil
}

type TableMod struct {
	openflow.Message
	TableID uint8
	Config  uint32
}

func NewTableMod(xid uint32) *TableMod {
	return &TableMod{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_TABLE_MOD, xid),
	}
}

func (r *TableMod) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	v[0] = r.TableID
	// v[1:4] is padding
	binary.BigEndian.PutUint32(v[4:8], r.Config)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *TableMod) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return openflow.ErrInvalidPacketLength
	}
	r.TableID = payload[0]
	r.Config = binary.BigEndian.Uint32(payload[4:8])

	return nil
}
