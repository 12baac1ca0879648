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

const (
	/* Immutable messages. */
	OFPT_HELLO = iota
	OFPT_ERROR
	OFPT_ECHO_REQUEST
	OFPT_ECHO_REPLY
	OFPT_EXPERIMENTER
	/* Switch configuration messages. */
	OFPT_FEATURES_REQUEST
	OFPT_FEATURES_REPLY
	OFPT_GET_CONFIG_REQUEST
	OFPT_GET_CONFIG_REPLY
	OFPT_SET_CONFIG
	/* Asynchronous messages. */
	OFPT_PACKET_IN
	OFPT_FLOW_REMOVED
	OFPT_PORT_STATUS
	/* Controller command messages. */
	OFPT_PACKET_OUT
	OFPT_FLOW_MOD
	OFPT_GROUP_MOD
	OFPT_PORT_MOD
	OFPT_TABLE_MOD
	/* Multipart messages. */
	OFPT_MULTIPART_REQUEST
	OFPT_MULTIPART_REPLY
	/* Barrier messages. */
	OFPT_BARRIER_REQUEST
	OFPT_BARRIER_REPLY
	/* Queue Configuration messages. */
	OFPT_QUEUE_GET_CONFIG_REQUEST
	OFPT_QUEUE_GET_CONFIG_REPLY
	/* Controller role change request messages. */
	OFPT_ROLE_REQUEST
	OFPT_ROLE_REPLY
	/* Asynchronous message configuration. */
	OFPT_GET_ASYNC_REQUEST
	OFPT_GET_ASYNC_REPLY
	OFPT_SET_ASYNC
	/* Meters and rate limiters configuration messages. */
	OFPT_METER_MOD
)

const (
	OFPC_FLOW_STATS   = 1 << 0
	OFPC_TABLE_STATS  = 1 << 1
	OFPC_PORT_STATS   = 1 << 2
	OFPC_GROUP_STATS  = 1 << 3
	OFPC_IP_REASM     = 1 << 5
	OFPC_QUEUE_STATS  = 1 << 6
	OFPC_PORT_BLOCKED = 1 << 8
)

const (
	OFPC_FRAG_NORMAL = 0
	OFPC_FRAG_DROP   = 1
	OFPC_FRAG_REASM  = 2
	OFPC_FRAG_MASK   = 3
)

// Default miss_send_len announced for devices that cannot answer GET_CONFIG.
const OFPCML_DEFAULT = 128

const (
	OFPMP_DESC           = 0
	OFPMP_FLOW           = 1
	OFPMP_AGGREGATE      = 2
	OFPMP_TABLE          = 3
	OFPMP_PORT_STATS     = 4
	OFPMP_QUEUE          = 5
	OFPMP_GROUP          = 6
	OFPMP_GROUP_DESC     = 7
	OFPMP_GROUP_FEATURES = 8
	OFPMP_METER          = 9
	OFPMP_METER_CONFIG   = 10
	OFPMP_METER_FEATURES = 11
	OFPMP_TABLE_FEATURES = 12
	OFPMP_PORT_DESC      = 13
	OFPMP_EXPERIMENTER   = 0xffff
)

const (
	OFPMPF_REQ_MORE   = 1 << 0
	OFPMPF_REPLY_MORE = 1 << 0
)

const (
	OFPIT_GOTO_TABLE     = 1
	OFPIT_WRITE_METADATA = 2
	OFPIT_WRITE_ACTIONS  = 3
	OFPIT_APPLY_ACTIONS  = 4
	OFPIT_CLEAR_ACTIONS  = 5
	OFPIT_METER          = 6
	OFPIT_EXPERIMENTER   = 0xFFFF
)

const (
	OFPAT_OUTPUT       = 0
	OFPAT_COPY_TTL_OUT = 11
	OFPAT_COPY_TTL_IN  = 12
	OFPAT_SET_MPLS_TTL = 15
	OFPAT_DEC_MPLS_TTL = 16
	OFPAT_PUSH_VLAN    = 17
	OFPAT_POP_VLAN     = 18
	OFPAT_PUSH_MPLS    = 19
	OFPAT_POP_MPLS     = 20
	OFPAT_SET_QUEUE    = 21
	OFPAT_GROUP        = 22
	OFPAT_SET_NW_TTL   = 23
	OFPAT_DEC_NW_TTL   = 24
	OFPAT_SET_FIELD    = 25
	OFPAT_PUSH_PBB     = 26
	OFPAT_POP_PBB      = 27
	OFPAT_EXPERIMENTER = 0xffff
)

const (
	/* Maximum number of physical and logical switch ports. */
	OFPP_MAX = 0xffffff00
	/* Reserved OpenFlow Port (fake output "ports"). */
	OFPP_IN_PORT    = 0xfffffff8
	OFPP_TABLE      = 0xfffffff9
	OFPP_NORMAL     = 0xfffffffa
	OFPP_FLOOD      = 0xfffffffb
	OFPP_ALL        = 0xfffffffc
	OFPP_CONTROLLER = 0xfffffffd
	OFPP_LOCAL      = 0xfffffffe
	OFPP_ANY        = 0xffffffff
)

const (
	OFPTT_MAX = 0xfe
	OFPTT_ALL = 0xff
)

const (
	OFPG_ANY          = 0xffffffff
	OFP_NO_BUFFER     = 0xffffffff
	OFPCML_NO_BUFFER  = 0xffff
	OFPCML_MAX_OUTPUT = 0xffe5
)

const (
	OFPFC_ADD           = 0
	OFPFC_MODIFY        = 1
	OFPFC_MODIFY_STRICT = 2
	OFPFC_DELETE        = 3
	OFPFC_DELETE_STRICT = 4
)

const (
	OFPFF_SEND_FLOW_REM = 1 << 0
	OFPFF_CHECK_OVERLAP = 1 << 1
	OFPFF_RESET_COUNTS  = 1 << 2
	OFPFF_NO_PKT_COUNTS = 1 << 3
	OFPFF_NO_BYT_COUNTS = 1 << 4
)

const (
	OFPMT_STANDARD = 0
	OFPMT_OXM      = 1
)

const (
	OFPXMC_NXM_0          = 0x0000
	OFPXMC_NXM_1          = 0x0001
	OFPXMC_OPENFLOW_BASIC = 0x8000
	OFPXMC_EXPERIMENTER   = 0xFFFF
)

const (
	OFPXMT_OFB_IN_PORT        = 0
	OFPXMT_OFB_IN_PHY_PORT    = 1
	OFPXMT_OFB_METADATA       = 2
	OFPXMT_OFB_ETH_DST        = 3
	OFPXMT_OFB_ETH_SRC        = 4
	OFPXMT_OFB_ETH_TYPE       = 5
	OFPXMT_OFB_VLAN_VID       = 6
	OFPXMT_OFB_VLAN_PCP       = 7
	OFPXMT_OFB_IP_DSCP        = 8
	OFPXMT_OFB_IP_ECN         = 9
	OFPXMT_OFB_IP_PROTO       = 10
	OFPXMT_OFB_IPV4_SRC       = 11
	OFPXMT_OFB_IPV4_DST       = 12
	OFPXMT_OFB_TCP_SRC        = 13
	OFPXMT_OFB_TCP_DST        = 14
	OFPXMT_OFB_UDP_SRC        = 15
	OFPXMT_OFB_UDP_DST        = 16
	OFPXMT_OFB_SCTP_SRC       = 17
	OFPXMT_OFB_SCTP_DST       = 18
	OFPXMT_OFB_ICMPV4_TYPE    = 19
	OFPXMT_OFB_ICMPV4_CODE    = 20
	OFPXMT_OFB_ARP_OP         = 21
	OFPXMT_OFB_ARP_SPA        = 22
	OFPXMT_OFB_ARP_TPA        = 23
	OFPXMT_OFB_ARP_SHA        = 24
	OFPXMT_OFB_ARP_THA        = 25
	OFPXMT_OFB_IPV6_SRC       = 26
	OFPXMT_OFB_IPV6_DST       = 27
	OFPXMT_OFB_IPV6_FLABEL    = 28
	OFPXMT_OFB_ICMPV6_TYPE    = 29
	OFPXMT_OFB_ICMPV6_CODE    = 30
	OFPXMT_OFB_IPV6_ND_TARGET = 31
	OFPXMT_OFB_IPV6_ND_SLL    = 32
	OFPXMT_OFB_IPV6_ND_TLL    = 33
	OFPXMT_OFB_MPLS_LABEL     = 34
	OFPXMT_OFB_MPLS_TC        = 35
	OFPXMT_OFB_MPLS_BOS       = 36
	OFPXMT_OFB_PBB_ISID       = 37
	OFPXMT_OFB_TUNNEL_ID      = 38
	OFPXMT_OFB_IPV6_EXTHDR    = 39
)

const (
	OFPCR_ROLE_NOCHANGE = 0
	OFPCR_ROLE_EQUAL    = 1
	OFPCR_ROLE_MASTER   = 2
	OFPCR_ROLE_SLAVE    = 3
)

const (
	OFPET_HELLO_FAILED          = 0
	OFPET_BAD_REQUEST           = 1
	OFPET_BAD_ACTION            = 2
	OFPET_BAD_INSTRUCTION       = 3
	OFPET_BAD_MATCH             = 4
	OFPET_FLOW_MOD_FAILED       = 5
	OFPET_GROUP_MOD_FAILED      = 6
	OFPET_PORT_MOD_FAILED       = 7
	OFPET_TABLE_MOD_FAILED      = 8
	OFPET_QUEUE_OP_FAILED       = 9
	OFPET_SWITCH_CONFIG_FAILED  = 10
	OFPET_ROLE_REQUEST_FAILED   = 11
	OFPET_METER_MOD_FAILED      = 12
	OFPET_TABLE_FEATURES_FAILED = 13
	OFPET_EXPERIMENTER          = 0xffff
)

const (
	OFPHFC_INCOMPATIBLE = 0
	OFPHFC_EPERM        = 1
)

const (
	OFPPF_10MB_HD  = 1 << 0
	OFPPF_10MB_FD  = 1 << 1
	OFPPF_100MB_HD = 1 << 2
	OFPPF_100MB_FD = 1 << 3
	OFPPF_1GB_HD   = 1 << 4
	OFPPF_1GB_FD   = 1 << 5
	OFPPF_10GB_FD  = 1 << 6
	OFPPF_40GB_FD  = 1 << 7
	OFPPF_100GB_FD = 1 << 8
	OFPPF_1TB_FD   = 1 << 9
	OFPPF_OTHER    = 1 << 10
	OFPPF_COPPER   = 1 << 11
	OFPPF_FIBER    = 1 << 12
)
