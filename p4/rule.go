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
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/superkkt/tablevisor/openflow/of13"

	"github.com/pkg/errors"
)

// ErrControllerOutput is returned for a flow that outputs to the controller,
// which a device driven by the CLI cannot do.
var ErrControllerOutput = errors.New("output to controller is not supported")

const (
	commandOutput   = "output"
	commandDrop     = "drop"
	commandMPLSPop  = "mpls_pop"
	commandMPLSPush = "mpls_push"
	commandGoto     = "goto_table_"
	commandSetField = "set_field_"

	paramOutPort      = "out_port"
	paramPopEtherType = "pop_ethertype"
	paramPushEthType  = "push_ethertype"
)

var (
	tableEntryPattern = regexp.MustCompile(`^TableEntry\(priority=(\d+), rule_name='([^']+)', default_rule=(True|False), actions='\{ *([^']*?) *\}', match='\{ *([^']*?) *\}'$`)
	matchPattern      = regexp.MustCompile(`^"([^"]+)" : \{  "value" : "([^"]+)" \}$`)
	actionPattern     = regexp.MustCompile(`^"type" : "([^"]+)",  "data" : \{ (.*) \}$`)
	dataPattern       = regexp.MustCompile(`^"([^"]+)" : \{ "value" : "([^"]+)" \}$`)
)

func ruleName(cookie uint64) string {
	return fmt.Sprintf("r%x", cookie)
}

func value(name, v string) string {
	return fmt.Sprintf(`"%v": { "value": "%v" }`, name, v)
}

// flowModArgs returns the CLI arguments that install, edit or delete the flow
// in the P4 table named table.
func flowModArgs(dict *Dictionary, table string, fm *of13.FlowMod) ([]string, error) {
	var verb string
	switch fm.Command {
	case of13.OFPFC_ADD:
		verb = "add"
	case of13.OFPFC_DELETE_STRICT:
		verb = "delete"
	case of13.OFPFC_MODIFY_STRICT:
		verb = "edit"
	default:
		return nil, fmt.Errorf("unsupported flow-mod command: %v", fm.Command)
	}

	action, err := actionArg(dict, fm.Instructions)
	if err != nil {
		return nil, err
	}
	match := make([]string, 0)
	for _, oxm := range fm.Match.Fields() {
		f, ok := fieldByOXM(oxm)
		if !ok {
			logger.Warningf("unsupported match field: %v", oxm)
			continue
		}
		name, ok := dict.P4Field(f.name)
		if !ok {
			logger.Warningf("unknown match field in the P4 program: %v", f.name)
			continue
		}
		v, err := f.text(oxm.Value)
		if err != nil {
			return nil, err
		}
		match = append(match, value(name, v))
	}

	args := []string{
		"tables",
		"--table-name " + table,
		verb,
		"--rule " + ruleName(fm.Cookie),
		"--match { " + strings.Join(match, ", ") + " }",
		"--action " + action,
		"--priority " + strconv.Itoa(int(fm.Priority)),
	}
	if len(match) == 0 {
		args = append(args, "--default")
	}

	return args, nil
}

func actionArg(dict *Dictionary, instructions []of13.Instruction) (string, error) {
	commands := make([]string, 0)
	data := make([]string, 0)
	param := func(of string) (string, error) {
		v, ok := dict.P4Param(of)
		if !ok {
			return "", fmt.Errorf("unknown action parameter in the P4 program: %v", of)
		}
		return v, nil
	}

	for _, inst := range instructions {
		switch v := inst.(type) {
		case *of13.GotoTable:
			commands = append(commands, fmt.Sprintf("%v%v", commandGoto, v.TableID))
		case *of13.ApplyActions:
			for _, a := range v.Actions {
				switch act := a.(type) {
				case *of13.Output:
					if act.Port == of13.OFPP_CONTROLLER {
						return "", ErrControllerOutput
					}
					name, err := param(paramOutPort)
					if err != nil {
						return "", err
					}
					data = append(data, value(name, fmt.Sprintf("p%v", act.Port)))
					commands = append(commands, commandOutput)
				case *of13.MPLS:
					of, command := paramPopEtherType, commandMPLSPop
					if act.Push {
						of, command = paramPushEthType, commandMPLSPush
					}
					name, err := param(of)
					if err != nil {
						return "", err
					}
					data = append(data, value(name, fmt.Sprintf("0x%x", act.EtherType)))
					commands = append(commands, command)
				case *of13.SetField:
					f, ok := fieldByOXM(act.Field)
					if !ok {
						logger.Warningf("unsupported set-field: %v", act.Field)
						continue
					}
					name, ok := dict.P4Param(f.name)
					if !ok {
						logger.Warningf("unknown set-field parameter in the P4 program: %v", f.name)
						continue
					}
					s, err := f.text(act.Field.Value)
					if err != nil {
						return "", err
					}
					data = append(data, value(name, s))
					commands = append(commands, commandSetField+f.name)
				default:
					logger.Warningf("unsupported action: %v", a)
				}
			}
		default:
			logger.Warningf("unsupported instruction: type=%v", inst.Type())
		}
	}
	if len(commands) == 0 {
		commands = append(commands, commandDrop)
	}

	action, ok := dict.P4Action(commands)
	if !ok {
		return "", fmt.Errorf("no P4 action is composed of %v", commands)
	}

	return fmt.Sprintf(`{ "type": "%v", "data": { %v } }`, action, strings.Join(data, ", ")), nil
}

// parseRules decodes the list-rules output of the P4 table whose ID is table.
func parseRules(dict *Dictionary, table uint8, output string) ([]*of13.FlowStats, error) {
	output = strings.TrimSpace(output)
	if output == "" || output == "[]" {
		return nil, nil
	}
	output = strings.TrimPrefix(output, "[")
	output = strings.TrimSuffix(output, ")]")

	flows := make([]*of13.FlowStats, 0)
	for _, entry := range strings.Split(output, "),") {
		entry = strings.TrimSpace(entry)
		if entry == "" {
			continue
		}
		m := tableEntryPattern.FindStringSubmatch(entry)
		if m == nil {
			return nil, fmt.Errorf("unexpected table entry: %v", entry)
		}

		priority, err := strconv.ParseUint(m[1], 10, 16)
		if err != nil {
			return nil, errors.Wrap(err, "parsing priority")
		}
		cookie, err := strconv.ParseUint(strings.TrimPrefix(m[2], "r"), 16, 64)
		if err != nil {
			logger.Debugf("rule %v is not named after a cookie", m[2])
			cookie = 0
		}
		match, err := parseMatch(dict, m[5])
		if err != nil {
			return nil, err
		}
		instructions, err := parseAction(dict, m[4])
		if err != nil {
			return nil, err
		}

		flows = append(flows, &of13.FlowStats{
			TableID:      table,
			Priority:     uint16(priority),
			Cookie:       cookie,
			Match:        match,
			Instructions: instructions,
		})
	}

	return flows, nil
}

func parseMatch(dict *Dictionary, s string) (*of13.Match, error) {
	match := of13.NewMatch()
	for _, v := range strings.Split(s, ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		m := matchPattern.FindStringSubmatch(v)
		if m == nil {
			return nil, fmt.Errorf("unexpected match: %v", v)
		}
		name, ok := dict.OFField(m[1])
		if !ok {
			logger.Warningf("unknown P4 match field: %v", m[1])
			continue
		}
		f, ok := fieldByName(name)
		if !ok {
			logger.Warningf("unsupported match field: %v", name)
			continue
		}
		oxm, err := f.parse(m[2])
		if err != nil {
			return nil, err
		}
		match.Add(oxm)
	}

	return match, nil
}

func parseAction(dict *Dictionary, s string) ([]of13.Instruction, error) {
	if strings.TrimSpace(s) == "" {
		return nil, nil
	}
	m := actionPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return nil, fmt.Errorf("unexpected action: %v", s)
	}
	commands, ok := dict.OFCommands(m[1])
	if !ok {
		return nil, fmt.Errorf("unknown P4 action: %v", m[1])
	}

	data := make(map[string]string)
	for _, v := range strings.Split(m[2], ",") {
		v = strings.TrimSpace(v)
		if v == "" {
			continue
		}
		d := dataPattern.FindStringSubmatch(v)
		if d == nil {
			return nil, fmt.Errorf("unexpected action data: %v", v)
		}
		name, ok := dict.OFParam(d[1])
		if !ok {
			logger.Warningf("unknown P4 action parameter: %v", d[1])
			continue
		}
		data[name] = d[2]
	}
	param := func(name string) (string, error) {
		v, ok := data[name]
		if !ok {
			return "", fmt.Errorf("missing %v parameter of P4 action %v", name, m[1])
		}
		return v, nil
	}
	number := func(name string, bits int) (uint64, error) {
		v, err := param(name)
		if err != nil {
			return 0, err
		}
		return strconv.ParseUint(v, 0, bits)
	}

	actions := make([]of13.Action, 0)
	gotos := make([]of13.Instruction, 0)
	for _, c := range commands {
		switch {
		case c == commandDrop:
		case c == commandOutput:
			v, err := param(paramOutPort)
			if err != nil {
				return nil, err
			}
			port, err := strconv.ParseUint(strings.TrimPrefix(v, "p"), 10, 32)
			if err != nil {
				return nil, fmt.Errorf("invalid output port: %v", v)
			}
			actions = append(actions, of13.NewOutput(uint32(port)))
		case c == commandMPLSPop, c == commandMPLSPush:
			push := c == commandMPLSPush
			name := paramPopEtherType
			if push {
				name = paramPushEthType
			}
			ethType, err := number(name, 16)
			if err != nil {
				return nil, errors.Wrap(err, "parsing MPLS ethertype")
			}
			actions = append(actions, &of13.MPLS{Push: push, EtherType: uint16(ethType)})
		case strings.HasPrefix(c, commandGoto):
			id, err := strconv.ParseUint(strings.TrimPrefix(c, commandGoto), 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid goto command: %v", c)
			}
			gotos = append(gotos, &of13.GotoTable{TableID: uint8(id)})
		case strings.HasPrefix(c, commandSetField):
			f, ok := fieldByName(strings.TrimPrefix(c, commandSetField))
			if !ok {
				return nil, fmt.Errorf("unsupported set-field command: %v", c)
			}
			v, err := param(f.name)
			if err != nil {
				return nil, err
			}
			oxm, err := f.parse(v)
			if err != nil {
				return nil, err
			}
			actions = append(actions, &of13.SetField{Field: oxm})
		default:
			logger.Warningf("unsupported OpenFlow command of P4 action %v: %v", m[1], c)
		}
	}

	instructions := make([]of13.Instruction, 0)
	if len(actions) > 0 {
		instructions = append(instructions, of13.NewApplyActions(actions...))
	}

	return append(instructions, gotos...), nil
}
