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

package config

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/spf13/viper"
)

type EndpointType string

const (
	EndpointOpenFlow EndpointType = "openflow"
	EndpointP4       EndpointType = "p4"
)

const (
	defaultLogLevel          = "info"
	defaultReconnectInterval = 10 * time.Second
	// Largest table ID a device can use. 0xFF is OFPTT_ALL.
	maxTableID = 0xFE
	// Largest physical port number. Higher numbers are reserved ports.
	maxPortNumber = 0xFFFFFF00
)

var ErrInvalidConfig = errors.New("invalid configuration")

type Config struct {
	Default     DefaultConfig
	REST        RESTConfig
	Controllers []ControllerConfig
	Endpoints   []EndpointConfig
}

type DefaultConfig struct {
	LogLevel string `mapstructure:"log_level"`
	// DatapathID is the identity of the virtual switch announced to the controller.
	DatapathID     string        `mapstructure:"datapath_id"`
	Stages         []string      `mapstructure:"stages"`
	StartupTimeout time.Duration `mapstructure:"startup_timeout"`
}

type RESTConfig struct {
	Address string
	// Zero disables the REST API.
	Port int
}

type ControllerConfig struct {
	Name              string
	Address           string
	Port              int
	ReconnectInterval time.Duration `mapstructure:"reconnect_interval"`
}

type EndpointConfig struct {
	Name    string
	Type    EndpointType
	Address string
	Port    int
	// CLI is the path of the command line tool driving P4 devices.
	CLI     string
	Devices []DeviceConfig
}

type TableBinding struct {
	Logical  int
	Physical int
}

type Link struct {
	Neighbor int
	Port     uint32
}

type DeviceConfig struct {
	ID         int
	DatapathID string `mapstructure:"datapath_id"`
	RTEHost    string `mapstructure:"rte_host"`
	RTEPort    int    `mapstructure:"rte_port"`
	// Ports is the number of ports of a P4 device including the inter-device links.
	Ports      int
	Dictionary string
	Tables     []TableBinding
	Links      []Link

	// Type and Endpoint are copied from the enclosing endpoint by Load.
	Type     EndpointType `mapstructure:"-"`
	Endpoint string       `mapstructure:"-"`
}

// Load decodes and validates the configuration held by v.
func Load(v *viper.Viper) (*Config, error) {
	v.SetDefault("default.log_level", defaultLogLevel)

	c := new(Config)
	if err := v.Unmarshal(c); err != nil {
		return nil, errors.Wrap(err, "decoding configuration")
	}
	for i := range c.Controllers {
		if c.Controllers[i].ReconnectInterval == 0 {
			c.Controllers[i].ReconnectInterval = defaultReconnectInterval
		}
	}
	for i := range c.Endpoints {
		e := &c.Endpoints[i]
		e.Type = EndpointType(strings.ToLower(string(e.Type)))
		for j := range e.Devices {
			e.Devices[j].Type = e.Type
			e.Devices[j].Endpoint = e.Name
		}
	}

	if err := c.Validate(); err != nil {
		return nil, err
	}

	return c, nil
}

func invalid(format string, args ...interface{}) error {
	return errors.Wrap(ErrInvalidConfig, fmt.Sprintf(format, args...))
}

func (r *Config) Validate() error {
	if _, err := ParseDatapathID(r.Default.DatapathID); err != nil {
		return invalid("default.datapath_id: %v", err)
	}
	if len(r.Default.Stages) == 0 {
		return invalid("empty default.stages")
	}
	stages := make(map[string]bool)
	for _, v := range r.Default.Stages {
		if len(v) == 0 {
			return invalid("empty stage name in default.stages")
		}
		if stages[v] {
			return invalid("duplicated stage %v in default.stages", v)
		}
		stages[v] = true
	}
	if r.Default.StartupTimeout < 0 {
		return invalid("negative default.startup_timeout")
	}
	if r.REST.Port < 0 || r.REST.Port > 0xFFFF {
		return invalid("rest.port: %v", r.REST.Port)
	}

	if len(r.Controllers) == 0 {
		return invalid("empty controllers")
	}
	for _, v := range r.Controllers {
		if len(v.Address) == 0 {
			return invalid("empty address of controller %v", v.Name)
		}
		if v.Port <= 0 || v.Port > 0xFFFF {
			return invalid("port of controller %v: %v", v.Name, v.Port)
		}
		if v.ReconnectInterval < 0 {
			return invalid("negative reconnect_interval of controller %v", v.Name)
		}
	}

	if len(r.Endpoints) == 0 {
		return invalid("empty endpoints")
	}
	for _, v := range r.Endpoints {
		if err := v.validate(); err != nil {
			return err
		}
	}

	return r.validateDevices()
}

func (r *EndpointConfig) validate() error {
	switch r.Type {
	case EndpointOpenFlow:
		if r.Port <= 0 || r.Port > 0xFFFF {
			return invalid("port of endpoint %v: %v", r.Name, r.Port)
		}
	case EndpointP4:
		if len(r.CLI) == 0 {
			return invalid("empty cli of endpoint %v", r.Name)
		}
	default:
		return invalid("unknown type of endpoint %v: %v", r.Name, r.Type)
	}
	if len(r.Devices) == 0 {
		return invalid("no device in endpoint %v", r.Name)
	}

	return nil
}

func (r *Config) validateDevices() error {
	devices := r.Devices()
	ids := make(map[int]bool)
	for _, v := range devices {
		if v.ID <= 0 {
			return invalid("device ID should be positive: %v", v.ID)
		}
		if ids[v.ID] {
			return invalid("duplicated device ID: %v", v.ID)
		}
		ids[v.ID] = true
	}

	dpids := make(map[uint64]int)
	for _, v := range devices {
		if err := v.validate(ids); err != nil {
			return err
		}
		if v.Type != EndpointOpenFlow {
			continue
		}
		dpid, _ := ParseDatapathID(v.DatapathID)
		if prev, ok := dpids[dpid]; ok {
			return invalid("devices %v and %v have the same datapath ID %v", prev, v.ID, v.DatapathID)
		}
		dpids[dpid] = v.ID
	}

	return nil
}

func (r *DeviceConfig) validate(ids map[int]bool) error {
	switch r.Type {
	case EndpointOpenFlow:
		if _, err := ParseDatapathID(r.DatapathID); err != nil {
			return invalid("datapath_id of device %v: %v", r.ID, err)
		}
	case EndpointP4:
		if len(r.RTEHost) == 0 {
			return invalid("empty rte_host of device %v", r.ID)
		}
		if r.RTEPort <= 0 || r.RTEPort > 0xFFFF {
			return invalid("rte_port of device %v: %v", r.ID, r.RTEPort)
		}
		if r.Ports <= len(r.Links) {
			return invalid("ports of device %v should be greater than the number of links", r.ID)
		}
		if len(r.Dictionary) == 0 {
			return invalid("empty dictionary of device %v", r.ID)
		}
	}

	if len(r.Tables) == 0 {
		return invalid("empty table map of device %v", r.ID)
	}
	logical := make(map[int]bool)
	for _, v := range r.Tables {
		if v.Logical < 0 || v.Logical > maxTableID || v.Physical < 0 || v.Physical > maxTableID {
			return invalid("table ID out of range in device %v: %+v", r.ID, v)
		}
		if logical[v.Logical] {
			return invalid("logical table %v is bound twice in device %v", v.Logical, r.ID)
		}
		logical[v.Logical] = true
	}

	ports := make(map[uint32]bool)
	for _, v := range r.Links {
		if !ids[v.Neighbor] {
			return invalid("unknown neighbor %v of device %v", v.Neighbor, r.ID)
		}
		if v.Neighbor == r.ID {
			return invalid("device %v links to itself", r.ID)
		}
		if v.Port == 0 || v.Port > maxPortNumber {
			return invalid("link port of device %v: %v", r.ID, v.Port)
		}
		if ports[v.Port] {
			return invalid("port %v of device %v is used by two links", v.Port, r.ID)
		}
		ports[v.Port] = true
	}

	return nil
}

// Devices returns all configured devices in ascending order of their IDs.
func (r *Config) Devices() []DeviceConfig {
	devices := make([]DeviceConfig, 0)
	for _, e := range r.Endpoints {
		devices = append(devices, e.Devices...)
	}
	sort.Slice(devices, func(i, j int) bool { return devices[i].ID < devices[j].ID })

	return devices
}

func (r *Config) Device(id int) (DeviceConfig, bool) {
	for _, e := range r.Endpoints {
		for _, d := range e.Devices {
			if d.ID == id {
				return d, true
			}
		}
	}

	return DeviceConfig{}, false
}

func (r *Config) Endpoint(name string) (EndpointConfig, bool) {
	for _, e := range r.Endpoints {
		if e.Name == name {
			return e, true
		}
	}

	return EndpointConfig{}, false
}

// ParseDatapathID accepts both the colon separated form, e.g.,
// 00:00:00:00:00:00:00:01, and a plain hexadecimal number.
func ParseDatapathID(s string) (uint64, error) {
	v := strings.TrimSpace(s)
	if len(v) == 0 {
		return 0, errors.New("empty datapath ID")
	}
	v = strings.TrimPrefix(strings.ToLower(v), "0x")
	v = strings.Replace(v, ":", "", -1)

	dpid, err := strconv.ParseUint(v, 16, 64)
	if err != nil {
		return 0, errors.Wrapf(err, "invalid datapath ID %q", s)
	}

	return dpid, nil
}

// FormatDatapathID returns the colon separated form of dpid.
func FormatDatapathID(dpid uint64) string {
	v := make([]string, 8)
	for i := 0; i < 8; i++ {
		v[i] = fmt.Sprintf("%02x", byte(dpid>>uint(56-i*8)))
	}

	return strings.Join(v, ":")
}
