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

	"github.com/superkkt/tablevisor/openflow"
)

type FlowMod struct {
	openflow.Message
	Cookie       uint64
	CookieMask   uint64
	TableID      uint8
	Command      uint8
	IdleTimeout  uint16
	HardTimeout  uint16
	Priority     uint16
	BufferID     uint32
	OutPort      uint32
	OutGroup     uint32
	Flags        uint16
	Match        *Match
	Instructions []Instruction
}

func NewFlowMod(xid uint32) *FlowMod {
	return &FlowMod{
		Message:      openflow.NewMessage(openflow.OF13_VERSION, OFPT_FLOW_MOD, xid),
		BufferID:     OFP_NO_BUFFER,
		OutPort:      OFPP_ANY,
		OutGroup:     OFPG_ANY,
		Match:        NewMatch(),
		Instructions: make([]Instruction, 0),
	}
}

// Clone returns a copy whose match and instruction list can be modified
// without affecting the original. Instructions themselves are shared.
func (r *FlowMod) Clone() *FlowMod {
	c := *r
	c.Match = r.Match.Clone()
	c.Instructions = append([]Instruction(nil), r.Instructions...)

	return &c
}

func (r *FlowMod) MarshalBinary() ([]byte, error) {
	v := make([]byte, 40)
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint64(v[8:16], r.CookieMask)
	v[16] = r.TableID
	v[17] = r.Command
	binary.BigEndian.PutUint16(v[18:20], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[20:22], r.HardTimeout)
	binary.BigEndian.PutUint16(v[22:24], r.Priority)
	binary.BigEndian.PutUint32(v[24:28], r.BufferID)
	binary.BigEndian.PutUint32(v[28:32], r.OutPort)
	binary.BigEndian.PutUint32(v[32:36], r.OutGroup)
	binary.BigEndian.PutUint16(v[36:38], r.Flags)
	// v[38:40] is padding

	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v = append(v, match...)
	instructions, err := marshalInstructions(r.Instructions)
	if err != nil {
		return nil, err
	}
	v = append(v, instructions...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *FlowMod) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 40 {
		return openflow.ErrInvalidPacketLength
	}
	r.Cookie = binary.BigEndian.Uint64(payload[0:8])
	r.CookieMask = binary.BigEndian.Uint64(payload[8:16])
	r.TableID = payload[16]
	r.Command = payload[17]
	r.IdleTimeout = binary.BigEndian.Uint16(payload[18:20])
	r.HardTimeout = binary.BigEndian.Uint16(payload[20:22])
	r.Priority = binary.BigEndian.Uint16(payload[22:24])
	r.BufferID = binary.BigEndian.Uint32(payload[24:28])
	r.OutPort = binary.BigEndian.Uint32(payload[28:32])
	r.OutGroup = binary.BigEndian.Uint32(payload[32:36])
	r.Flags = binary.BigEndian.Uint16(payload[36:38])

	r.Match = NewMatch()
	n, err := r.Match.unmarshal(payload[40:])
	if err != nil {
		return err
	}
	r.Instructions, err = unmarshalInstructions(payload[40+n:])
	if err != nil {
		return err
	}

	return nil
}

type FlowRemoved struct {
	openflow.Message
	Cookie       uint64
	Priority     uint16
	Reason       uint8
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	IdleTimeout  uint16
	HardTimeout  uint16
	PacketCount  uint64
	ByteCount    uint64
	Match        *Match
}

func NewFlowRemoved(xid uint32) *FlowRemoved {
	return &FlowRemoved{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_FLOW_REMOVED, xid),
		Match:   NewMatch(),
	}
}

func (r *FlowRemoved) MarshalBinary() ([]byte, error) {
	v := make([]byte, 40)
	binary.BigEndian.PutUint64(v[0:8], r.Cookie)
	binary.BigEndian.PutUint16(v[8:10], r.Priority)
	v[10] = r.Reason
	v[11] = r.TableID
	binary.BigEndian.PutUint32(v[12:16], r.DurationSec)
	binary.BigEndian.PutUint32(v[16:20], r.DurationNSec)
	binary.BigEndian.PutUint16(v[20:22], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[22:24], r.HardTimeout)
	binary.BigEndian.PutUint64(v[24:32], r.PacketCount)
	binary.BigEndian.PutUint64(v[32:40], r.ByteCount)

	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v = append(v, match...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *FlowRemoved) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 40 {
		return openflow.ErrInvalidPacketLength
	}
	r.Cookie = binary.BigEndian.Uint64(payload[0:8])
	r.Priority = binary.BigEndian.Uint16(payload[8:10])
	r.Reason = payload[10]
	r.TableID = payload[11]
	r.DurationSec = binary.BigEndian.Uint32(payload[12:16])
	r.DurationNSec = binary.BigEndian.Uint32(payload[16:20])
	r.IdleTimeout = binary.BigEndian.Uint16(payload[20:22])
	r.HardTimeout = binary.BigEndian.Uint16(payload[22:24])
	r.PacketCount = binary.BigEndian.Uint64(payload[24:32])
	r.ByteCount = binary.BigEndian.Uint64(payload[32:40])

	r.Match = NewMatch()
	if _, err := r.Match.unmarshal(payload[40:]); err != nil {
		return err
	}

	return nil
}

type PacketIn struct {
	openflow.Message
	BufferID uint32
	TotalLen uint16
	Reason   uint8
	TableID  uint8
	Cookie   uint64
	Match    *Match
	Data     []byte
}

func NewPacketIn(xid uint32) *PacketIn {
	return &PacketIn{
		Message:  openflow.NewMessage(openflow.OF13_VERSION, OFPT_PACKET_IN, xid),
		BufferID: OFP_NO_BUFFER,
		Match:    NewMatch(),
	}
}

func (r *PacketIn) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint16(v[4:6], r.TotalLen)
	v[6] = r.Reason
	v[7] = r.TableID
	binary.BigEndian.PutUint64(v[8:16], r.Cookie)

	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}
	v = append(v, match...)
	// 2 bytes of padding in front of the Ethernet frame
	v = append(v, 0, 0)
	v = append(v, r.Data...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *PacketIn) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 16 {
		return openflow.ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.TotalLen = binary.BigEndian.Uint16(payload[4:6])
	r.Reason = payload[6]
	r.TableID = payload[7]
	r.Cookie = binary.BigEndian.Uint64(payload[8:16])

	r.Match = NewMatch()
	n, err := r.Match.unmarshal(payload[16:])
	if err != nil {
		return err
	}
	if len(payload) < 16+n+2 {
		return openflow.ErrInvalidPacketLength
	}
	r.Data = payload[16+n+2:]

	return nil
}

type PacketOut struct {
	openflow.Message
	BufferID uint32
	InPort   uint32
	Actions  []Action
	Data     []byte
}

func NewPacketOut(xid uint32) *PacketOut {
	return &PacketOut{
		Message:  openflow.NewMessage(openflow.OF13_VERSION, OFPT_PACKET_OUT, xid),
		BufferID: OFP_NO_BUFFER,
		InPort:   OFPP_CONTROLLER,
	}
}

func (r *PacketOut) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 16, 16+len(actions)+len(r.Data))
	binary.BigEndian.PutUint32(v[0:4], r.BufferID)
	binary.BigEndian.PutUint32(v[4:8], r.InPort)
	binary.BigEndian.PutUint16(v[8:10], uint16(len(actions)))
	// v[10:16] is padding
	v = append(v, actions...)
	v = append(v, r.Data...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *PacketOut) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 16 {
		return openflow.ErrInvalidPacketLength
	}
	r.BufferID = binary.BigEndian.Uint32(payload[0:4])
	r.InPort = binary.BigEndian.Uint32(payload[4:8])
	length := int(binary.BigEndian.Uint16(payload[8:10]))
	if len(payload) < 16+length {
		return openflow.ErrInvalidPacketLength
	}
	actions, err := unmarshalActions(payload[16 : 16+length])
	if err != nil {
		return err
	}
	r.Actions = actions
	r.Data = payload[16+length:]

	return nil
}
