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
	"bytes"
	"encoding/binary"
	"fmt"
	"strings"

	"github.com/superkkt/tablevisor/openflow"
)

// OXM is a single TLV of an OpenFlow extensible match.
type OXM struct {
	Class   uint16
	Field   uint8
	HasMask bool
	Value   []byte
	Mask    []byte
}

func NewOXM(field uint8, value []byte) OXM {
	return OXM{
		Class: OFPXMC_OPENFLOW_BASIC,
		Field: field,
		Value: value,
	}
}

func (r OXM) Is(class uint16, field uint8) bool {
	return r.Class == class && r.Field == field
}

func (r OXM) length() int {
	n := len(r.Value)
	if r.HasMask {
		n += len(r.Mask)
	}
	return n
}

func (r OXM) MarshalBinary() ([]byte, error) {
	if r.HasMask && len(r.Mask) != len(r.Value) {
		return nil, fmt.Errorf("mismatched OXM mask length: field=%v, value=%v, mask=%v", r.Field, len(r.Value), len(r.Mask))
	}
	n := r.length()
	if n > 0xFF {
		return nil, fmt.Errorf("too long OXM payload: field=%v, length=%v", r.Field, n)
	}

	v := make([]byte, 4, 4+n)
	binary.BigEndian.PutUint16(v[0:2], r.Class)
	v[2] = r.Field << 1
	if r.HasMask {
		v[2] |= 0x01
	}
	v[3] = uint8(n)
	v = append(v, r.Value...)
	if r.HasMask {
		v = append(v, r.Mask...)
	}

	return v, nil
}

// unmarshalOXM decodes one OXM TLV and returns the number of consumed bytes.
func unmarshalOXM(data []byte) (OXM, int, error) {
	if len(data) < 4 {
		return OXM{}, 0, openflow.ErrInvalidPacketLength
	}
	n := int(data[3])
	if len(data) < 4+n {
		return OXM{}, 0, openflow.ErrInvalidPacketLength
	}

	oxm := OXM{
		Class:   binary.BigEndian.Uint16(data[0:2]),
		Field:   data[2] >> 1,
		HasMask: data[2]&0x01 == 0x01,
	}
	payload := make([]byte, n)
	copy(payload, data[4:4+n])
	if oxm.HasMask {
		if n%2 != 0 {
			return OXM{}, 0, fmt.Errorf("invalid masked OXM length: field=%v, length=%v", oxm.Field, n)
		}
		oxm.Value = payload[:n/2]
		oxm.Mask = payload[n/2:]
	} else {
		oxm.Value = payload
	}

	return oxm, 4 + n, nil
}

func (r OXM) String() string {
	if r.HasMask {
		return fmt.Sprintf("%v:%v=%x/%x", r.Class, r.Field, r.Value, r.Mask)
	}
	return fmt.Sprintf("%v:%v=%x", r.Class, r.Field, r.Value)
}

// Match is an ordered list of OXM fields. An empty match wildcards everything.
type Match struct {
	fields []OXM
}

func NewMatch() *Match {
	return &Match{}
}

func (r *Match) Fields() []OXM {
	if r == nil {
		return nil
	}
	return r.fields
}

func (r *Match) Len() int {
	if r == nil {
		return 0
	}
	return len(r.fields)
}

// Add appends the field, replacing an existing field of the same class and type.
func (r *Match) Add(oxm OXM) {
	for i, v := range r.fields {
		if v.Is(oxm.Class, oxm.Field) {
			r.fields[i] = oxm
			return
		}
	}
	r.fields = append(r.fields, oxm)
}

func (r *Match) Get(class uint16, field uint8) (OXM, bool) {
	if r == nil {
		return OXM{}, false
	}
	for _, v := range r.fields {
		if v.Is(class, field) {
			return v, true
		}
	}

	return OXM{}, false
}

func (r *Match) Remove(class uint16, field uint8) {
	fields := r.fields[:0]
	for _, v := range r.fields {
		if v.Is(class, field) {
			continue
		}
		fields = append(fields, v)
	}
	r.fields = fields
}

// InPort returns the exact IN_PORT of the match. ok is false if the match does
// not specify an exact inbound port.
func (r *Match) InPort() (port uint32, ok bool) {
	v, ok := r.Get(OFPXMC_OPENFLOW_BASIC, OFPXMT_OFB_IN_PORT)
	if !ok || v.HasMask || len(v.Value) != 4 {
		return 0, false
	}

	return binary.BigEndian.Uint32(v.Value), true
}

func (r *Match) SetInPort(port uint32) {
	v := make([]byte, 4)
	binary.BigEndian.PutUint32(v, port)
	r.Add(NewOXM(OFPXMT_OFB_IN_PORT, v))
}

func (r *Match) RemoveInPort() {
	r.Remove(OFPXMC_OPENFLOW_BASIC, OFPXMT_OFB_IN_PORT)
}

func (r *Match) Clone() *Match {
	if r == nil {
		return NewMatch()
	}

	c := &Match{fields: make([]OXM, len(r.fields))}
	for i, v := range r.fields {
		c.fields[i] = OXM{
			Class:   v.Class,
			Field:   v.Field,
			HasMask: v.HasMask,
			Value:   append([]byte(nil), v.Value...),
			Mask:    append([]byte(nil), v.Mask...),
		}
	}

	return c
}

// Equal reports whether both matches have the same fields in the same order.
func (r *Match) Equal(m *Match) bool {
	a, err := r.MarshalBinary()
	if err != nil {
		return false
	}
	b, err := m.MarshalBinary()
	if err != nil {
		return false
	}

	return bytes.Equal(a, b)
}

func (r *Match) String() string {
	v := make([]string, len(r.fields))
	for i, f := range r.fields {
		v[i] = f.String()
	}

	return fmt.Sprintf("Match{%v}", strings.Join(v, ", "))
}

// MarshalBinary encodes the match including its trailing padding.
func (r *Match) MarshalBinary() ([]byte, error) {
	if r == nil {
		return NewMatch().MarshalBinary()
	}

	v := make([]byte, 4)
	binary.BigEndian.PutUint16(v[0:2], OFPMT_OXM)
	for _, f := range r.fields {
		oxm, err := f.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, oxm...)
	}
	// Length excludes padding.
	binary.BigEndian.PutUint16(v[2:4], uint16(len(v)))
	v = append(v, make([]byte, pad8(len(v)))...)

	return v, nil
}

func (r *Match) UnmarshalBinary(data []byte) error {
	_, err := r.unmarshal(data)
	return err
}

// unmarshal decodes the match and returns its padded length.
func (r *Match) unmarshal(data []byte) (int, error) {
	if len(data) < 4 {
		return 0, openflow.ErrInvalidPacketLength
	}
	if t := binary.BigEndian.Uint16(data[0:2]); t != OFPMT_OXM {
		return 0, fmt.Errorf("unsupported match type: %v", t)
	}
	length := int(binary.BigEndian.Uint16(data[2:4]))
	padded := length + pad8(length)
	if length < 4 || len(data) < padded {
		return 0, openflow.ErrInvalidPacketLength
	}

	r.fields = nil
	for i := 4; i < length; {
		oxm, n, err := unmarshalOXM(data[i:length])
		if err != nil {
			return 0, err
		}
		r.fields = append(r.fields, oxm)
		i += n
	}

	return padded, nil
}

// pad8 returns the number of bytes needed to align n to 8 bytes.
func pad8(n int) int {
	return (8 - n%8) % 8
}
