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

// ParseMessage decodes an OpenFlow 1.3 message. Message types we never look into
// are returned as Raw so that they can be forwarded byte exact.
func ParseMessage(data []byte) (openflow.Packet, error) {
	if len(data) < openflow.HeaderLength {
		return nil, openflow.ErrInvalidPacketLength
	}
	if data[0] != openflow.OF13_VERSION {
		return nil, openflow.ErrUnsupportedVersion
	}

	var msg openflow.Packet

	switch data[1] {
	case OFPT_HELLO, OFPT_ECHO_REQUEST, OFPT_ECHO_REPLY, OFPT_FEATURES_REQUEST,
		OFPT_GET_CONFIG_REQUEST, OFPT_BARRIER_REQUEST, OFPT_BARRIER_REPLY:
		msg = new(openflow.Echo)
	case OFPT_ERROR:
		msg = new(Error)
	case OFPT_FEATURES_REPLY:
		msg = new(FeaturesReply)
	case OFPT_GET_CONFIG_REPLY, OFPT_SET_CONFIG:
		msg = new(SwitchConfig)
	case OFPT_ROLE_REQUEST, OFPT_ROLE_REPLY:
		msg = new(Role)
	case OFPT_TABLE_MOD:
		msg = new(TableMod)
	case OFPT_FLOW_MOD:
		msg = new(FlowMod)
	case OFPT_FLOW_REMOVED:
		msg = new(FlowRemoved)
	case OFPT_PACKET_IN:
		msg = new(PacketIn)
	case OFPT_PACKET_OUT:
		msg = new(PacketOut)
	case OFPT_MULTIPART_REQUEST:
		msg = new(MultipartRequest)
	case OFPT_MULTIPART_REPLY:
		if len(data) < openflow.HeaderLength+8 {
			return nil, openflow.ErrInvalidPacketLength
		}
		// Vendor specific replies are not decoded.
		if binary.BigEndian.Uint16(data[8:10]) == OFPMP_EXPERIMENTER {
			msg = new(Raw)
		} else {
			msg = new(MultipartReply)
		}
	default:
		msg = new(Raw)
	}

	if err := msg.UnmarshalBinary(data); err != nil {
		return nil, err
	}

	return msg, nil
}
