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
	"bufio"
	"fmt"
	"io"
	"os"
	"regexp"
	"sort"
	"strconv"
	"strings"

	"github.com/pkg/errors"
)

var (
	annotationTable  = regexp.MustCompile(`^// *@TV *table *(\d+)$`)
	annotationField  = regexp.MustCompile(`^// *@TV *field *([^ ]+)$`)
	annotationAction = regexp.MustCompile(`^// *@TV *action *([^ ]+)((?: *[^ =]+=[^ =]+)*)$`)
	annotationOther  = regexp.MustCompile(`^// *@TV .*$`)
	tableDefinition  = regexp.MustCompile(`^table *([^ ]+) *\{$`)
	fieldDefinition  = regexp.MustCompile(`^([^ ]+) *: *[^ ]+ *;$`)
	actionDefinition = regexp.MustCompile(`^action *([^ ()]+) *\(([^()]*)\) *\{$`)
)

// Dictionary translates between OpenFlow and the names used by a P4 program.
// It is built from the // @TV annotations of the program source:
//
//	// @TV table 0
//	table ingress {
//
//	// @TV field eth_dst
//	dstAddr : 48;
//
//	// @TV action set_field_eth_dst eth_dst=mac
//	// @TV action output out_port=port
//	action forward(mac, port) {
//
// All lookups are case-insensitive.
type Dictionary struct {
	tableIDs   map[string]uint8
	tableNames map[uint8]string
	fieldToOF  map[string]string
	fieldToP4  map[string]string
	// P4 action name to the OpenFlow commands it is composed of, in annotation order.
	actionToOF map[string][]string
	actionToP4 map[string]string
	paramToOF  map[string]string
	paramToP4  map[string]string
}

func newDictionary() *Dictionary {
	return &Dictionary{
		tableIDs:   make(map[string]uint8),
		tableNames: make(map[uint8]string),
		fieldToOF:  make(map[string]string),
		fieldToP4:  make(map[string]string),
		actionToOF: make(map[string][]string),
		actionToP4: make(map[string]string),
		paramToOF:  make(map[string]string),
		paramToP4:  make(map[string]string),
	}
}

// LoadDictionary parses the annotated P4 program at path.
func LoadDictionary(path string) (*Dictionary, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, errors.Wrap(err, "opening P4 program")
	}
	defer f.Close()

	d, err := ParseDictionary(f)
	if err != nil {
		return nil, errors.Wrapf(err, "parsing %v", path)
	}

	return d, nil
}

type lineReader struct {
	scanner *bufio.Scanner
	line    int
}

func (r *lineReader) next() (string, bool) {
	if !r.scanner.Scan() {
		return "", false
	}
	r.line++

	return strings.TrimSpace(r.scanner.Text()), true
}

// expect reads the line following an annotation and matches it against def.
func (r *lineReader) expect(def *regexp.Regexp, what string) ([]string, error) {
	line, ok := r.next()
	if !ok {
		if err := r.scanner.Err(); err != nil {
			return nil, err
		}
		return nil, fmt.Errorf("%v definition expected at the end of file", what)
	}
	m := def.FindStringSubmatch(line)
	if m == nil {
		return nil, fmt.Errorf("%v definition expected in line %v", what, r.line)
	}

	return m, nil
}

func ParseDictionary(in io.Reader) (*Dictionary, error) {
	d := newDictionary()
	reader := &lineReader{scanner: bufio.NewScanner(in)}

	line, ok := reader.next()
	for ok {
		switch {
		case annotationTable.MatchString(line):
			id, err := strconv.ParseUint(annotationTable.FindStringSubmatch(line)[1], 10, 8)
			if err != nil {
				return nil, fmt.Errorf("invalid table ID in line %v: %v", reader.line, err)
			}
			m, err := reader.expect(tableDefinition, "table")
			if err != nil {
				return nil, err
			}
			d.tableIDs[strings.ToLower(m[1])] = uint8(id)
			d.tableNames[uint8(id)] = m[1]
		case annotationField.MatchString(line):
			of := annotationField.FindStringSubmatch(line)[1]
			m, err := reader.expect(fieldDefinition, "field")
			if err != nil {
				return nil, err
			}
			d.fieldToOF[strings.ToLower(m[1])] = strings.ToLower(of)
			d.fieldToP4[strings.ToLower(of)] = m[1]
		case annotationAction.MatchString(line):
			commands := make([]string, 0)
			// Consecutive action annotations compose a single P4 action.
			for ok && annotationAction.MatchString(line) {
				m := annotationAction.FindStringSubmatch(line)
				commands = append(commands, strings.ToLower(m[1]))
				if err := d.addParams(m[2], reader.line); err != nil {
					return nil, err
				}
				line, ok = reader.next()
			}
			if !ok {
				return nil, fmt.Errorf("action definition expected at the end of file")
			}
			m := actionDefinition.FindStringSubmatch(line)
			if m == nil {
				return nil, fmt.Errorf("action definition expected in line %v", reader.line)
			}
			d.actionToOF[strings.ToLower(m[1])] = commands
			d.actionToP4[commandKey(commands)] = m[1]
		case annotationOther.MatchString(line):
			return nil, fmt.Errorf("unrecognized annotation in line %v: %v", reader.line, line)
		}
		line, ok = reader.next()
	}
	if err := reader.scanner.Err(); err != nil {
		return nil, err
	}

	return d, nil
}

func (r *Dictionary) addParams(params string, line int) error {
	for _, v := range strings.Fields(params) {
		p := strings.Split(v, "=")
		if len(p) != 2 || len(p[0]) == 0 || len(p[1]) == 0 {
			return fmt.Errorf("invalid action parameter in line %v: %v", line, v)
		}
		r.paramToOF[strings.ToLower(p[1])] = strings.ToLower(p[0])
		r.paramToP4[strings.ToLower(p[0])] = p[1]
	}

	return nil
}

// commandKey returns the lookup key of a set of OpenFlow commands.
func commandKey(commands []string) string {
	c := make([]string, len(commands))
	for i, v := range commands {
		c[i] = strings.ToLower(v)
	}
	sort.Strings(c)

	return strings.Join(c, "|")
}

func (r *Dictionary) TableName(id uint8) (string, bool) {
	v, ok := r.tableNames[id]
	return v, ok
}

func (r *Dictionary) TableID(name string) (uint8, bool) {
	v, ok := r.tableIDs[strings.ToLower(name)]
	return v, ok
}

// Tables returns the annotated table IDs in ascending order.
func (r *Dictionary) Tables() []uint8 {
	ids := make([]uint8, 0, len(r.tableNames))
	for k := range r.tableNames {
		ids = append(ids, k)
	}
	sort.Slice(ids, func(i, j int) bool { return ids[i] < ids[j] })

	return ids
}

// OFField returns the lower-cased OpenFlow name of the P4 field.
func (r *Dictionary) OFField(p4 string) (string, bool) {
	v, ok := r.fieldToOF[strings.ToLower(p4)]
	return v, ok
}

func (r *Dictionary) P4Field(of string) (string, bool) {
	v, ok := r.fieldToP4[strings.ToLower(of)]
	return v, ok
}

// OFCommands returns the lower-cased OpenFlow commands the P4 action is composed of.
func (r *Dictionary) OFCommands(action string) ([]string, bool) {
	v, ok := r.actionToOF[strings.ToLower(action)]
	if !ok {
		return nil, false
	}
	c := make([]string, len(v))
	copy(c, v)

	return c, true
}

// P4Action returns the P4 action composed of exactly the commands, regardless of their order.
func (r *Dictionary) P4Action(commands []string) (string, bool) {
	v, ok := r.actionToP4[commandKey(commands)]
	return v, ok
}

// OFParam returns the lower-cased OpenFlow parameter of the P4 action parameter.
func (r *Dictionary) OFParam(p4 string) (string, bool) {
	v, ok := r.paramToOF[strings.ToLower(p4)]
	return v, ok
}

func (r *Dictionary) P4Param(of string) (string, bool) {
	v, ok := r.paramToP4[strings.ToLower(of)]
	return v, ok
}
