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
	"sync/atomic"

	"github.com/superkkt/tablevisor/openflow"
)

// Factory issues transaction IDs for the messages we originate ourselves.
type Factory struct {
	xid uint32
}

func NewFactory() *Factory {
	return &Factory{}
}

func (r *Factory) TransactionID() uint32 {
	// Transaction ID will be started from 1, not 0.
	return atomic.AddUint32(&r.xid, 1)
}

func (r *Factory) NewHello() *openflow.Echo {
	return NewHello(r.TransactionID())
}

func (r *Factory) NewEchoRequest() *openflow.Echo {
	return NewEchoRequest(r.TransactionID())
}

func (r *Factory) NewFeaturesRequest() *openflow.Echo {
	return NewFeaturesRequest(r.TransactionID())
}

func (r *Factory) NewBarrierRequest() *openflow.Echo {
	return NewBarrierRequest(r.TransactionID())
}
