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

	"github.com/superkkt/tablevisor/openflow"
)

var multipartNames = map[uint16]string{
	OFPMP_DESC:           "DESC",
	OFPMP_FLOW:           "FLOW",
	OFPMP_AGGREGATE:      "AGGREGATE",
	OFPMP_TABLE:          "TABLE",
	OFPMP_PORT_STATS:     "PORT_STATS",
	OFPMP_QUEUE:          "QUEUE",
	OFPMP_GROUP:          "GROUP",
	OFPMP_GROUP_DESC:     "GROUP_DESC",
	OFPMP_GROUP_FEATURES: "GROUP_FEATURES",
	OFPMP_METER:          "METER",
	OFPMP_METER_CONFIG:   "METER_CONFIG",
	OFPMP_METER_FEATURES: "METER_FEATURES",
	OFPMP_TABLE_FEATURES: "TABLE_FEATURES",
	OFPMP_PORT_DESC:      "PORT_DESC",
	OFPMP_EXPERIMENTER:   "EXPERIMENTER",
}

// MultipartName returns the name of the multipart message type.
func MultipartName(kind uint16) string {
	if v, ok := multipartNames[kind]; ok {
		return v
	}
	return fmt.Sprintf("MULTIPART(%v)", kind)
}

type MultipartRequest struct {
	openflow.Message
	Kind  uint16
	Flags uint16
	// Flow is the decoded body of a flow or aggregate stats request.
	Flow *FlowStatsRequest
	// Body is the undecoded body of all other request kinds.
	Body []byte
}

func NewMultipartRequest(xid uint32, kind uint16) *MultipartRequest {
	return &MultipartRequest{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_MULTIPART_REQUEST, xid),
		Kind:    kind,
	}
}

func NewFlowStatsRequest(xid uint32, tableID uint8) *MultipartRequest {
	req := NewMultipartRequest(xid, OFPMP_FLOW)
	req.Flow = &FlowStatsRequest{
		TableID:  tableID,
		OutPort:  OFPP_ANY,
		OutGroup: OFPG_ANY,
		Match:    NewMatch(),
	}

	return req
}

// Clone returns a copy whose flow request can be modified without affecting the original.
func (r *MultipartRequest) Clone() *MultipartRequest {
	c := *r
	if r.Flow != nil {
		f := *r.Flow
		f.Match = r.Flow.Match.Clone()
		c.Flow = &f
	}

	return &c
}

func (r *MultipartRequest) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], r.Kind)
	binary.BigEndian.PutUint16(v[2:4], r.Flags)
	// v[4:8] is padding

	if r.Flow != nil {
		body, err := r.Flow.MarshalBinary()
		if err != nil {
			return nil, err
		}
		v = append(v, body...)
	} else {
		v = append(v, r.Body...)
	}
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *MultipartRequest) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return openflow.ErrInvalidPacketLength
	}
	r.Kind = binary.BigEndian.Uint16(payload[0:2])
	r.Flags = binary.BigEndian.Uint16(payload[2:4])

	switch r.Kind {
	case OFPMP_FLOW, OFPMP_AGGREGATE:
		r.Flow = new(FlowStatsRequest)
		return r.Flow.UnmarshalBinary(payload[8:])
	default:
		r.Body = payload[8:]
	}

	return nil
}

type FlowStatsRequest struct {
	TableID    uint8
	OutPort    uint32
	OutGroup   uint32
	Cookie     uint64
	CookieMask uint64
	Match      *Match
}

func (r *FlowStatsRequest) MarshalBinary() ([]byte, error) {
	v := make([]byte, 32)
	v[0] = r.TableID
	// v[1:4] is padding
	binary.BigEndian.PutUint32(v[4:8], r.OutPort)
	binary.BigEndian.PutUint32(v[8:12], r.OutGroup)
	// v[12:16] is padding
	binary.BigEndian.PutUint64(v[16:24], r.Cookie)
	binary.BigEndian.PutUint64(v[24:32], r.CookieMask)

	match, err := r.Match.MarshalBinary()
	if err != nil {
		return nil, err
	}

	return append(v, match...), nil
}

func (r *FlowStatsRequest) UnmarshalBinary(data []byte) error {
	if len(data) < 32 {
		return openflow.ErrInvalidPacketLength
	}
	r.TableID = data[0]
	r.OutPort = binary.BigEndian.Uint32(data[4:8])
	r.OutGroup = binary.BigEndian.Uint32(data[8:12])
	r.Cookie = binary.BigEndian.Uint64(data[16:24])
	r.CookieMask = binary.BigEndian.Uint64(data[24:32])
	r.Match = NewMatch()
	_, err := r.Match.unmarshal(data[32:])

	return err
}

type MultipartReply struct {
	openflow.Message
	Kind  uint16
	Flags uint16

	Desc          *DescStats
	Flows         []*FlowStats
	Tables        []*TableStats
	GroupFeatures *GroupFeatures
	MeterFeatures *MeterFeatures
	// Entries holds the byte exact entries of the kinds that are only concatenated,
	// e.g., port stats.
	Entries [][]byte
	// Body is the undecoded body of all other reply kinds.
	Body []byte
}

func NewMultipartReply(xid uint32, kind uint16) *MultipartReply {
	return &MultipartReply{
		Message: openflow.NewMessage(openflow.OF13_VERSION, OFPT_MULTIPART_REPLY, xid),
		Kind:    kind,
	}
}

// More reports whether the sender has more parts of this reply to send.
func (r *MultipartReply) More() bool {
	return r.Flags&OFPMPF_REPLY_MORE != 0
}

func (r *MultipartReply) MarshalBinary() ([]byte, error) {
	v := make([]byte, 8)
	binary.BigEndian.PutUint16(v[0:2], r.Kind)
	binary.BigEndian.PutUint16(v[2:4], r.Flags)
	// v[4:8] is padding

	body, err := r.marshalBody()
	if err != nil {
		return nil, err
	}
	v = append(v, body...)
	r.SetPayload(v)

	return r.Message.MarshalBinary()
}

func (r *MultipartReply) marshalBody() ([]byte, error) {
	switch r.Kind {
	case OFPMP_DESC:
		if r.Desc == nil {
			return nil, fmt.Errorf("empty description in multipart reply")
		}
		return r.Desc.MarshalBinary()
	case OFPMP_FLOW:
		v := make([]byte, 0)
		for _, f := range r.Flows {
			b, err := f.MarshalBinary()
			if err != nil {
				return nil, err
			}
			v = append(v, b...)
		}
		return v, nil
	case OFPMP_TABLE:
		v := make([]byte, 0)
		for _, t := range r.Tables {
			b, err := t.MarshalBinary()
			if err != nil {
				return nil, err
			}
			v = append(v, b...)
		}
		return v, nil
	case OFPMP_GROUP_FEATURES:
		if r.GroupFeatures == nil {
			return nil, fmt.Errorf("empty group features in multipart reply")
		}
		return r.GroupFeatures.MarshalBinary()
	case OFPMP_METER_FEATURES:
		if r.MeterFeatures == nil {
			return nil, fmt.Errorf("empty meter features in multipart reply")
		}
		return r.MeterFeatures.MarshalBinary()
	}

	if _, ok := entrySplitter(r.Kind); ok {
		return bytes.Join(r.Entries, nil), nil
	}

	return r.Body, nil
}

func (r *MultipartReply) UnmarshalBinary(data []byte) error {
	if err := r.Message.UnmarshalBinary(data); err != nil {
		return err
	}

	payload := r.Payload()
	if len(payload) < 8 {
		return openflow.ErrInvalidPacketLength
	}
	r.Kind = binary.BigEndian.Uint16(payload[0:2])
	r.Flags = binary.BigEndian.Uint16(payload[2:4])
	body := payload[8:]

	switch r.Kind {
	case OFPMP_DESC:
		r.Desc = new(DescStats)
		return r.Desc.UnmarshalBinary(body)
	case OFPMP_FLOW:
		flows, err := unmarshalFlowStats(body)
		if err != nil {
			return err
		}
		r.Flows = flows
		return nil
	case OFPMP_TABLE:
		tables, err := unmarshalTableStats(body)
		if err != nil {
			return err
		}
		r.Tables = tables
		return nil
	case OFPMP_GROUP_FEATURES:
		r.GroupFeatures = new(GroupFeatures)
		return r.GroupFeatures.UnmarshalBinary(body)
	case OFPMP_METER_FEATURES:
		r.MeterFeatures = new(MeterFeatures)
		return r.MeterFeatures.UnmarshalBinary(body)
	}

	if split, ok := entrySplitter(r.Kind); ok {
		entries, err := splitEntries(body, split)
		if err != nil {
			return err
		}
		r.Entries = entries
		return nil
	}
	r.Body = body

	return nil
}

// entrySplitter returns a function that reports the length of the first entry
// in a multipart reply body of the given kind.
func entrySplitter(kind uint16) (func([]byte) (int, error), bool) {
	fixed := func(n int) func([]byte) (int, error) {
		return func(data []byte) (int, error) {
			if len(data) < n {
				return 0, openflow.ErrInvalidPacketLength
			}
			return n, nil
		}
	}
	prefixed := func(offset int) func([]byte) (int, error) {
		return func(data []byte) (int, error) {
			if len(data) < offset+2 {
				return 0, openflow.ErrInvalidPacketLength
			}
			n := int(binary.BigEndian.Uint16(data[offset : offset+2]))
			if n <= offset+2 || len(data) < n {
				return 0, openflow.ErrInvalidPacketLength
			}
			return n, nil
		}
	}

	switch kind {
	case OFPMP_PORT_STATS:
		return fixed(112), true
	case OFPMP_PORT_DESC:
		return fixed(64), true
	case OFPMP_QUEUE:
		return fixed(40), true
	case OFPMP_GROUP, OFPMP_GROUP_DESC:
		return prefixed(0), true
	case OFPMP_METER:
		// meter_id precedes the length field.
		return prefixed(4), true
	default:
		return nil, false
	}
}

func splitEntries(data []byte, split func([]byte) (int, error)) ([][]byte, error) {
	entries := make([][]byte, 0)
	for len(data) > 0 {
		n, err := split(data)
		if err != nil {
			return nil, err
		}
		entry := make([]byte, n)
		copy(entry, data[:n])
		entries = append(entries, entry)
		data = data[n:]
	}

	return entries, nil
}

type DescStats struct {
	Manufacturer string
	Hardware     string
	Software     string
	SerialNumber string
	Datapath     string
}

const (
	descStrLen   = 256
	serialNumLen = 32
)

func (r *DescStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, descStrLen*4+serialNumLen)
	putString(v[0:256], r.Manufacturer)
	putString(v[256:512], r.Hardware)
	putString(v[512:768], r.Software)
	putString(v[768:800], r.SerialNumber)
	putString(v[800:1056], r.Datapath)

	return v, nil
}

func (r *DescStats) UnmarshalBinary(data []byte) error {
	if len(data) < descStrLen*4+serialNumLen {
		return openflow.ErrInvalidPacketLength
	}
	r.Manufacturer = getString(data[0:256])
	r.Hardware = getString(data[256:512])
	r.Software = getString(data[512:768])
	r.SerialNumber = getString(data[768:800])
	r.Datapath = getString(data[800:1056])

	return nil
}

// putString copies s into a NULL terminated fixed-size field.
func putString(field []byte, s string) {
	n := copy(field[:len(field)-1], s)
	for i := n; i < len(field); i++ {
		field[i] = 0
	}
}

func getString(field []byte) string {
	if i := bytes.IndexByte(field, 0); i >= 0 {
		return string(field[:i])
	}
	return string(field)
}

type FlowStats struct {
	TableID      uint8
	DurationSec  uint32
	DurationNSec uint32
	Priority     uint16
	IdleTimeout  uint16
	HardTimeout  uint16
	Flags        uint16
	Cookie       uint64
	PacketCount  uint64
	ByteCount    uint64
	Match        *Match
	Instructions []Instruction
}

// Clone returns a copy whose match and instruction list can be modified
// without affecting the original. Instructions themselves are shared.
func (r *FlowStats) Clone() *FlowStats {
	c := *r
	c.Match = r.Match.Clone()
	c.Instructions = append([]Instruction(nil), r.Instructions...)

	return &c
}

func (r *FlowStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, 48)
	v[2] = r.TableID
	// v[3] is padding
	binary.BigEndian.PutUint32(v[4:8], r.DurationSec)
	binary.BigEndian.PutUint32(v[8:12], r.DurationNSec)
	binary.BigEndian.PutUint16(v[12:14], r.Priority)
	binary.BigEndian.PutUint16(v[14:16], r.IdleTimeout)
	binary.BigEndian.PutUint16(v[16:18], r.HardTimeout)
	binary.BigEndian.PutUint16(v[18:20], r.Flags)
	// v[20:24] is padding
	binary.BigEndian.PutUint64(v[24:32], r.Cookie)
	binary.BigEndian.PutUint64(v[32:40], r.PacketCount)
	binary.BigEndian.PutUint64(v[40:48], r.ByteCount)

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
	if len(v) > 0xFFFF {
		return nil, openflow.ErrInvalidPacketLength
	}
	binary.BigEndian.PutUint16(v[0:2], uint16(len(v)))

	return v, nil
}

func unmarshalFlowStats(data []byte) ([]*FlowStats, error) {
	flows := make([]*FlowStats, 0)
	for len(data) > 0 {
		if len(data) < 48 {
			return nil, openflow.ErrInvalidPacketLength
		}
		length := int(binary.BigEndian.Uint16(data[0:2]))
		if length < 48 || len(data) < length {
			return nil, openflow.ErrInvalidPacketLength
		}

		entry := data[:length]
		f := &FlowStats{
			TableID:      entry[2],
			DurationSec:  binary.BigEndian.Uint32(entry[4:8]),
			DurationNSec: binary.BigEndian.Uint32(entry[8:12]),
			Priority:     binary.BigEndian.Uint16(entry[12:14]),
			IdleTimeout:  binary.BigEndian.Uint16(entry[14:16]),
			HardTimeout:  binary.BigEndian.Uint16(entry[16:18]),
			Flags:        binary.BigEndian.Uint16(entry[18:20]),
			Cookie:       binary.BigEndian.Uint64(entry[24:32]),
			PacketCount:  binary.BigEndian.Uint64(entry[32:40]),
			ByteCount:    binary.BigEndian.Uint64(entry[40:48]),
			Match:        NewMatch(),
		}
		n, err := f.Match.unmarshal(entry[48:])
		if err != nil {
			return nil, err
		}
		f.Instructions, err = unmarshalInstructions(entry[48+n:])
		if err != nil {
			return nil, err
		}
		flows = append(flows, f)
		data = data[length:]
	}

	return flows, nil
}

type TableStats struct {
	TableID      uint8
	ActiveCount  uint32
	LookupCount  uint64
	MatchedCount uint64
}

func (r *TableStats) MarshalBinary() ([]byte, error) {
	v := make([]byte, 24)
	v[0] = r.TableID
	// v[1:4] is padding
	binary.BigEndian.PutUint32(v[4:8], r.ActiveCount)
	binary.BigEndian.PutUint64(v[8:16], r.LookupCount)
	binary.BigEndian.PutUint64(v[16:24], r.MatchedCount)

	return v, nil
}

func unmarshalTableStats(data []byte) ([]*TableStats, error) {
	if len(data)%24 != 0 {
		return nil, openflow.ErrInvalidPacketLength
	}

	tables := make([]*TableStats, 0, len(data)/24)
	for i := 0; i < len(data); i += 24 {
		tables = append(tables, &TableStats{
			TableID:      data[i],
			ActiveCount:  binary.BigEndian.Uint32(data[i+4 : i+8]),
			LookupCount:  binary.BigEndian.Uint64(data[i+8 : i+16]),
			MatchedCount: binary.BigEndian.Uint64(data[i+16 : i+24]),
		})
	}

	return tables, nil
}

// GroupFeatures is indexed by group type: all, select, indirect, fast failover.
type GroupFeatures struct {
	Types        uint32
	Capabilities uint32
	MaxGroups    [4]uint32
	Actions      [4]uint32
}

func (r *GroupFeatures) MarshalBinary() ([]byte, error) {
	v := make([]byte, 40)
	binary.BigEndian.PutUint32(v[0:4], r.Types)
	binary.BigEndian.PutUint32(v[4:8], r.Capabilities)
	for i := 0; i < 4; i++ {
		binary.BigEndian.PutUint32(v[8+i*4:12+i*4], r.MaxGroups[i])
		binary.BigEndian.PutUint32(v[24+i*4:28+i*4], r.Actions[i])
	}

	return v, nil
}

func (r *GroupFeatures) UnmarshalBinary(data []byte) error {
	if len(data) < 40 {
		return openflow.ErrInvalidPacketLength
	}
	r.Types = binary.BigEndian.Uint32(data[0:4])
	r.Capabilities = binary.BigEndian.Uint32(data[4:8])
	for i := 0; i < 4; i++ {
		r.MaxGroups[i] = binary.BigEndian.Uint32(data[8+i*4 : 12+i*4])
		r.Actions[i] = binary.BigEndian.Uint32(data[24+i*4 : 28+i*4])
	}

	return nil
}

type MeterFeatures struct {
	MaxMeter     uint32
	BandTypes    uint32
	Capabilities uint32
	MaxBands     uint8
	MaxColor     uint8
}

func (r *MeterFeatures) MarshalBinary() ([]byte, error) {
	v := make([]byte, 16)
	binary.BigEndian.PutUint32(v[0:4], r.MaxMeter)
	binary.BigEndian.PutUint32(v[4:8], r.BandTypes)
	binary.BigEndian.PutUint32(v[8:12], r.Capabilities)
	v[12] = r.MaxBands
	v[13] = r.MaxColor
	// v[14:16] is padding

	return v, nil
}

func (r *MeterFeatures) UnmarshalBinary(data []byte) error {
	if len(data) < 16 {
		return openflow.ErrInvalidPacketLength
	}
	r.MaxMeter = binary.BigEndian.Uint32(data[0:4])
	r.BandTypes = binary.BigEndian.Uint32(data[4:8])
	r.Capabilities = binary.BigEndian.Uint32(data[8:12])
	r.MaxBands = data[12]
	r.MaxColor = data[13]

	return nil
}

// PortDesc is an ofp_port entry of a PORT_DESC reply.
type PortDesc struct {
	PortNo     uint32
	HWAddr     [6]byte
	Name       string
	Config     uint32
	State      uint32
	Current    uint32
	Advertised uint32
	Supported  uint32
	Peer       uint32
	CurSpeed   uint32
	MaxSpeed   uint32
}

const portNameLen = 16

func (r *PortDesc) MarshalBinary() ([]byte, error) {
	v := make([]byte, 64)
	binary.BigEndian.PutUint32(v[0:4], r.PortNo)
	// v[4:8] is padding
	copy(v[8:14], r.HWAddr[:])
	// v[14:16] is padding
	putString(v[16:16+portNameLen], r.Name)
	binary.BigEndian.PutUint32(v[32:36], r.Config)
	binary.BigEndian.PutUint32(v[36:40], r.State)
	binary.BigEndian.PutUint32(v[40:44], r.Current)
	binary.BigEndian.PutUint32(v[44:48], r.Advertised)
	binary.BigEndian.PutUint32(v[48:52], r.Supported)
	binary.BigEndian.PutUint32(v[52:56], r.Peer)
	binary.BigEndian.PutUint32(v[56:60], r.CurSpeed)
	binary.BigEndian.PutUint32(v[60:64], r.MaxSpeed)

	return v, nil
}

func (r *PortDesc) UnmarshalBinary(data []byte) error {
	if len(data) < 64 {
		return openflow.ErrInvalidPacketLength
	}
	r.PortNo = binary.BigEndian.Uint32(data[0:4])
	copy(r.HWAddr[:], data[8:14])
	r.Name = getString(data[16 : 16+portNameLen])
	r.Config = binary.BigEndian.Uint32(data[32:36])
	r.State = binary.BigEndian.Uint32(data[36:40])
	r.Current = binary.BigEndian.Uint32(data[40:44])
	r.Advertised = binary.BigEndian.Uint32(data[44:48])
	r.Supported = binary.BigEndian.Uint32(data[48:52])
	r.Peer = binary.BigEndian.Uint32(data[52:56])
	r.CurSpeed = binary.BigEndian.Uint32(data[56:60])
	r.MaxSpeed = binary.BigEndian.Uint32(data[60:64])

	return nil
}
