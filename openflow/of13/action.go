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

type Action interface {
	encoding.BinaryMarshaler
	Type() uint16
}

// Output forwards a packet to a switch port.
type Output struct {
	Port   uint32
	MaxLen uint16
}

func NewOutput(port uint32) *Output {
	return &Output{Port: port, MaxLen: OFPCML_NO_BUFFER}
}

func (r *Output) Type() uint16 {
	return OFPAT_OUTPUT
}

func (r *Output) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_OUTPUT)
	binary.BigEndian.PutUint16(v[2:4], 16)
	binary.BigEndian.PutUint32(v[4:8], r.Port)
	binary.BigEndian.PutUint16(v[8:10], r.MaxLen)
	// v[10:16] is padding

	return v, nil
}

func (r *Output) String() string {
	return fmt.Sprintf("OUTPUT:%v", r.Port)
}

// SetField rewrites a header field using an OXM TLV.
type SetField struct {
	Field OXM
}

func (r *SetField) Type() uint16 {
	return OFPAT_SET_FIELD
}

func (r *SetField) MarshalBinary() ([]byte, error) {
	oxm, err := r.Field.MarshalBinary()
	if err != nil {
		return nil, err
	}

	v := make([]byte, 4, 4+len(oxm)+8)
	binary.BigEndian.PutUint16(v[0:2], OFPAT_SET_FIELD)
	v = append(v, oxm...)
	v = append(v, make([]byte, pad8(len(v)))...)
	binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))

	return v, nil
}

func (r *SetField) String() string {
	return fmt.Sprintf("SET_FIELD:%v", r.Field)
}

// MPLS is a PUSH_MPLS or POP_MPLS action carrying an ethertype.
type MPLS struct {
	Push      bool
	EtherType uint16
}

func (r *MPLS) Type() uint16 {
	if r.Push {
		return OFPAT_PUSH_MPLS
	}
	return OFPAT_POP_MPLS
}

func (r *MPLS) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], r.Type())
	binary.BigEndian.PutUint16(v[2:4], 8)
	binary.BigEndian.PutUint16(v[4:6], r.EtherType)
	// v[6:8] is padding

	return v, nil
}

func (r *MPLS) String() string {
	if r.Push {
		return fmt.Sprintf("PUSH_MPLS:0x%04x", r.EtherType)
	}
	return fmt.Sprintf("POP_MPLS:0x%04x", r.EtherType)
}

// RawAction keeps an action we do not need to interpret byte exact.
type RawAction struct {
	ActionType uint16
	// Body is the action without its type and length fields.
	Body []byte
}

func (r *RawAction) Type() uint16 {
	return r.ActionType
}

func (r *RawAction) MarshalBinary() ([]byte, error) {
	length := 4 + len(r.Body)
	if length%8 != 0 {
		return nil, fmt.Errorf("invalid action length: type=%v, length=%v", r.ActionType, length)
	}

	v := make([]byte, 4, length)
	binary.BigEndian.PutUint16(v[0:2], r.ActionType)
	binary.BigEndian.PutUint16(v[2:4], uint16(length))
	v = append(v, r.Body...)

	return v, nil
}

func (r *RawAction) String() string {
	return fmt.Sprintf("ACTION(%v)", r.ActionType)
}

func unmarshalActions(data []byte) ([]Action, error) {
	actions := make([]Action, 0)
	for len(data) > 0 {
		if len(data) < 8 {
			return nil, openflow.ErrInvalidPacketLength
		}
		length := int(binary.BigEndian.Uint16(data[2:4]))
		if length < 8 || length%8 != 0 || len(data) < length {
			return nil, openflow.ErrInvalidPacketLength
		}

		action, err := unmarshalAction(data[:length])
		if err != nil {
			return nil, err
		}
		actions = append(actions, action)
		data = data[length:]
	}

	return actions, nil
}

func unmarshalAction(data []byte) (Action, error) {
	t := binary.BigEndian.Uint16(data[0:2])
	switch t {
	case OFPAT_OUTPUT:
		if len(data) < 16 {
			return nil, openflow.ErrInvalidPacketLength
		}
		return &Output{
			Port:   binary.BigEndian.Uint32(data[4:8]),
			MaxLen: binary.BigEndian.Uint16(data[8:10]),
		}, nil
	case OFPAT_SET_FIELD:
		oxm, _, err := unmarshalOXM(data[4:])
		if err != nil {
			return nil, err
		}
		return &SetField{Field: oxm}, nil
	case OFPAT_PUSH_MPLS, OFPAT_POP_MPLS:
		return &MPLS{
			Push:      t == OFPAT_PUSH_MPLS,
			EtherType: binary.BigEndian.Uint16(data[4:6]),
		}, nil
	default:
		body := make([]byte, len(data)-4)
		copy(body, data[4:])
		return &RawAction{ActionType: t, Body: body}, nil
	}
}

func marshalActions(actions []Action) ([]byte, error) {
	v := make([]byte, 0)
	for _, a := range actions {
		b, err := a.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, b...)
	}

	return v, nil
}
