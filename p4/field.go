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

package p4

import (
	"encoding/binary"
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/superkkt/tablevisor/openflow/of13"
)

type fieldFormat int

const (
	formatDecimal fieldFormat = iota
	formatHex
	formatMAC
	formatIPv4
)

// field is an OpenFlow match field that can be written to and read from the device CLI.
type field struct {
	name  string
	oxm   uint8
	width int
	kind  fieldFormat
}

var fields = []field{
	{"in_port", of13.OFPXMT_OFB_IN_PORT, 4, formatDecimal},
	{"eth_dst", of13.OFPXMT_OFB_ETH_DST, 6, formatMAC},
	{"eth_src", of13.OFPXMT_OFB_ETH_SRC, 6, formatMAC},
	{"eth_type", of13.OFPXMT_OFB_ETH_TYPE, 2, formatHex},
	{"vlan_vid", of13.OFPXMT_OFB_VLAN_VID, 2, formatDecimal},
	{"ip_proto", of13.OFPXMT_OFB_IP_PROTO, 1, formatDecimal},
	{"ipv4_src", of13.OFPXMT_OFB_IPV4_SRC, 4, formatIPv4},
	{"ipv4_dst", of13.OFPXMT_OFB_IPV4_DST, 4, formatIPv4},
	{"tcp_src", of13.OFPXMT_OFB_TCP_SRC, 2, formatDecimal},
	{"tcp_dst", of13.OFPXMT_OFB_TCP_DST, 2, formatDecimal},
	{"udp_src", of13.OFPXMT_OFB_UDP_SRC, 2, formatDecimal},
	{"udp_dst", of13.OFPXMT_OFB_UDP_DST, 2, formatDecimal},
	{"mpls_label", of13.OFPXMT_OFB_MPLS_LABEL, 4, formatDecimal},
	{"mpls_tc", of13.OFPXMT_OFB_MPLS_TC, 1, formatDecimal},
}

func fieldByName(name string) (field, bool) {
	name = strings.ToLower(name)
	for _, v := range fields {
		if v.name == name {
			return v, true
		}
	}

	return field{}, false
}

func fieldByOXM(oxm of13.OXM) (field, bool) {
	if oxm.Class != of13.OFPXMC_OPENFLOW_BASIC {
		return field{}, false
	}
	for _, v := range fields {
		if v.oxm == oxm.Field {
			return v, true
		}
	}

	return field{}, false
}

// text returns the textual value of the OXM as the device CLI expects it.
func (r field) text(value []byte) (string, error) {
	if len(value) != r.width {
		return "", fmt.Errorf("invalid %v value length: %v", r.name, len(value))
	}

	switch r.kind {
	case formatMAC:
		return net.HardwareAddr(value).String(), nil
	case formatIPv4:
		return net.IP(value).String(), nil
	case formatHex:
		return fmt.Sprintf("0x%x", toUint(value)), nil
	default:
		return strconv.FormatUint(toUint(value), 10), nil
	}
}

// parse is the inverse of text. Numbers are accepted in decimal or with a 0x prefix.
func (r field) parse(s string) (of13.OXM, error) {
	var value []byte

	switch r.kind {
	case formatMAC:
		mac, err := net.ParseMAC(s)
		if err != nil || len(mac) != r.width {
			return of13.OXM{}, fmt.Errorf("invalid %v value: %v", r.name, s)
		}
		value = mac
	case formatIPv4:
		ip := net.ParseIP(s).To4()
		if ip == nil {
			return of13.OXM{}, fmt.Errorf("invalid %v value: %v", r.name, s)
		}
		value = ip
	default:
		n, err := strconv.ParseUint(s, 0, r.width*8)
		if err != nil {
			return of13.OXM{}, fmt.Errorf("invalid %v value: %v", r.name, s)
		}
		value = fromUint(n, r.width)
	}

	return of13.NewOXM(r.oxm, value), nil
}

func toUint(v []byte) uint64 {
	var n uint64
	for _, b := range v {
		n = n<<8 | uint64(b)
	}

	return n
}

func fromUint(n uint64, width int) []byte {
	v := make([]byte, 8)
	binary.BigEndian.PutUint64(v, n)

	return v[8-width:]
}
