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
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/superkkt/tablevisor/config"
	"github.com/superkkt/tablevisor/message"
	"github.com/superkkt/tablevisor/openflow/of13"
)

func TestArgs(t *testing.T) {
	d := config.DeviceConfig{RTEHost: "10.0.0.5", RTEPort: 20206}
	args := Args(d, []string{"tables", "--table-name ingress", "list-rules", "--default", `--match { "a": { "value": "1" } }`})
	assert.Equal(t, []string{
		"--rte-host", "10.0.0.5",
		"--rte-port", "20206",
		"tables",
		"--table-name", "ingress",
		"list-rules",
		"--default",
		"--match", `{ "a": { "value": "1" } }`,
	}, args)
}

func TestRunner(t *testing.T) {
	endpoint := testConfig(t).Endpoints[0]
	replies := make(chan *message.Message, 2)
	runner := NewRunner(endpoint, nil, func(m *message.Message) { replies <- m })

	var called []string
	runner.exec = func(ctx context.Context, name string, args []string) (string, error) {
		called = append([]string{name}, args...)
		if args[len(args)-1] == "fail" {
			return "", errors.New("exit status 1")
		}
		return "[]", nil
	}
	assert.Equal(t, []int{1}, runner.Devices())

	orig := message.NewOpenFlow(1, of13.NewFlowStatsRequest(3, 0))
	req := message.NewCLIRequest(1, []string{"tables", "--table-name ingress", "list-rules"}, orig)
	require.NoError(t, runner.Send(req))
	runner.Wait()

	select {
	case reply := <-replies:
		assert.Equal(t, 1, reply.Device)
		assert.Equal(t, "[]", reply.CLI.Reply)
		assert.Same(t, orig, reply.CLI.Request)
		assert.NoError(t, reply.Err)
	case <-time.After(time.Second):
		t.Fatal("no CLI reply")
	}
	assert.Equal(t, []string{"/usr/bin/rtecli", "--rte-host", "10.0.0.5", "--rte-port", "20206", "tables", "--table-name", "ingress", "list-rules"}, called)

	require.NoError(t, runner.Send(message.NewCLIRequest(1, []string{"fail"}, nil)))
	runner.Wait()
	reply := <-replies
	assert.Error(t, reply.Err)

	assert.Error(t, runner.Send(message.NewCLIRequest(5, []string{"tables"}, nil)))
	assert.Error(t, runner.Send(orig))
}
