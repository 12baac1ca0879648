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
	"encoding"
	"encoding/binary"
	"fmt"

	"github.com/superkkt/tablevisor/openflow"
)

type Instruction interface {
	encoding.BinaryMarshaler
	Type() uint16
}

type GotoTable struct {
	TableID uint8
}

func (r *GotoTable) Type() uint16 {
	return OFPIT_GOTO_TABLE
}

func (r *GotoTable) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPIT_GOTO_TABLE)
	binary.BigEndian.PutUint16(v[2:4], 8)
	v[4] = r.TableID
	// v[5:8] is padding

	return v, nil
}

func (r *GotoTable) String() string {
	return fmt.Sprintf("GOTO_TABLE:%v", r.TableID)
}

type WriteMetadata struct {
	Metadata uint64
	Mask     uint64
}

func (r *WriteMetadata) Type() uint16 {
	return OFPIT_WRITE_METADATA
}

func (r *WriteMetadata) MarshalBinary() ([]byte, error) {
	v := make([]byte, 24)
	binary.BigEndian.PutUint16(v[0:2], OFPIT_WRITE_METADATA)
	binary.BigEndian.PutUint16(v[2:4], 24)
	// v[4:8] is padding
	binary.BigEndian.PutUint64(v[8:16], r.Metadata)
	binary.BigEndian.PutUint64(v[16:24], r.Mask)

	return v, nil
}

// ApplyActions is used for the WRITE_ACTIONS, APPLY_ACTIONS and CLEAR_ACTIONS
// instructions, which share the same layout.
type ApplyActions struct {
	Kind    uint16
	Actions []Action
}

func NewApplyActions(actions ...Action) *ApplyActions {
	return &ApplyActions{Kind: OFPIT_APPLY_ACTIONS, Actions: actions}
}

func (r *ApplyActions) Type() uint16 {
	return r.Kind
}

func (r *ApplyActions) MarshalBinary() ([]byte, error) {
	actions, err := marshalActions(r.Actions)
	if err != nil {
		return nil, err
	}

	v := make([]byte, 8, 8+len(actions))
	binary.BigEndian.PutUint16(v[0:2], r.Kind)
	binary.BigEndian.PutUint16(v[2:4], uint16(8+len(actions)))
	// v[4:8] is padding
	v = append(v, actions...)

	return v, nil
}

func (r *ApplyActions) String() string {
	return fmt.Sprintf("ACTIONS(%v):%v", r.Kind, r.Actions)
}

type Meter struct {
	MeterID uint32
}

func (r *Meter) Type() uint16 {
	return OFPIT_METER
}

func (r *Meter) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], OFPIT_METER)
	binary.BigEndian.PutUint16(v[2:4], 8)
	binary.BigEndian.PutUint32(v[4:8], r.MeterID)

	return v, nil
}

// RawInstruction keeps an instruction we do not need to interpret byte exact.
type RawInstruction struct {
	InstructionType uint16
	// Body is the instruction without its type and length fields.
	Body []byte
}

func (r *RawInstruction) Type() uint16 {
	return r.InstructionType
}

func (r *RawInstruction) MarshalBinary() ([]byte, error) {
	v := make([]byte, 4, 4+len(r.Body))
	binary.BigEndian.PutUint16(v[0:2], r.InstructionType)
	binary.BigEndian.PutUint16(v[2:4], uint16(4+len(r.Body)))
	v = append(v, r.Body...)

	return v, nil
}

func unmarshalInstructions(data []byte) ([]Instruction, error) {
	instructions := make([]Instruction, 0)
	for len(data) > 0 {
		if len(data) < 4 {
			return nil, openflow.ErrInvalidPacketLength
		}
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 4 || len(data) < length {
			return nil, openflow.ErrInvalidPacketLength
		}

		inst, err := unmarshalInstruction(data[:length])
		if err != nil {
			return nil, err
		}
		instructions = append(instructions, inst)
		data = data[length:]
	}

	return instructions, nil
}

func unmarshalInstruction(data []byte) (Instruction, error) {
	t := binary.BigEndian.Uint16(data[0:2])
	switch t {
	case OFPIT_GOTO_TABLE:
		if len(data) < 8 {
			return nil, openflow.ErrInvalidPacketLength
		}
		return &GotoTable{TableID: data[4]}, nil
	case OFPIT_WRITE_METADATA:
		if len(data) < 24 {
			return nil, openflow.ErrInvalidPacketLength
		}
		return &WriteMetadata{
			Metadata: binary.BigEndian.Uint64(data[8:16]),
			Mask:     binary.BigEndian.Uint64(data[16:24]),
		}, nil
	case OFPIT_WRITE_ACTIONS, OFPIT_APPLY_ACTIONS, OFPIT_CLEAR_ACTIONS:
		if len(data) < 8 {
			return nil, openflow.ErrInvalidPacketLength
		}
		actions, err := unmarshalActions(data[8:])
		if err != nil {
			return nil, err
		}
		return &ApplyActions{Kind: t, Actions: actions}, nil
	case OFPIT_METER:
		if len(data) < 8 {
			return nil, openflow.ErrInvalidPacketLength
		}
		return &Meter{MeterID: binary.BigEndian.Uint32(data[4:8])}, nil
	default:
		body := make([]byte, len(data)-4)
		copy(body, data[4:])
		return &RawInstruction{InstructionType: t, Body: body}, nil
	}
}

func marshalInstructions(instructions []Instruction) ([]byte, error) {
	v := make([]byte, 0)
	for _, inst := range instructions {
		b, err := inst.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, b...)
	}

	return v, nil
}
