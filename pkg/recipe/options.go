// Copyright (C) 2021 Toitware ApS.
//
// This library is free software; you can redistribute it and/or
// modify it under the terms of the GNU Lesser General Public
// License as published by the Free Software Foundation; version
// 2.1 only.
//
// This library is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE.  See the GNU
// Lesser General Public License for more details.
//
// The license can be found in the file `LICENSE` in the top level
// directory of this repository.

package recipe

import (
	"fmt"
	"sort"
	"strconv"
	"strings"
)

const (
	True  = "True"
	False = "False"
	None  = "None"
)

// OptionDef describes the values an option may take.
type OptionDef struct {
	Values []string
	// Any accepts every value.
	Any bool
}

// BoolOption is an option with the values True and False.
func BoolOption() OptionDef {
	return OptionDef{Values: []string{True, False}}
}

// EnumOption is an option with the given values.
func EnumOption(values ...interface{}) OptionDef {
	result := OptionDef{}
	for _, v := range values {
		result.Values = append(result.Values, FormatValue(v))
	}
	return result
}

// AnyOption accepts all values.
func AnyOption() OptionDef {
	return OptionDef{Any: true}
}

func (d OptionDef) isBool() bool {
	for _, v := range d.Values {
		if v == True || v == False {
			return true
		}
	}
	return false
}

// normalize returns the canonical version of v, or an error if v isn't
// allowed.
func (d OptionDef) normalize(v string) (string, error) {
	if d.isBool() {
		switch strings.ToLower(v) {
		case "true":
			v = True
		case "false":
			v = False
		}
	}
	if d.Any {
		return v, nil
	}
	for _, allowed := range d.Values {
		if allowed == v {
			return v, nil
		}
	}
	return "", fmt.Errorf("'%s' is not a valid value, possible values are %v", v, d.Values)
}

// FormatValue converts option values to their canonical string form.
func FormatValue(v interface{}) string {
	switch val := v.(type) {
	case nil:
		return None
	case bool:
		if val {
			return True
		}
		return False
	case string:
		return val
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	}
	return fmt.Sprint(v)
}

type rewriteKind int

const (
	// Declared defaults and conditional defaults from config_options.
	rewriteDefault rewriteKind = iota
	// Values from profiles and from dependent recipes.
	rewriteOverride
	// Explicit values from configure.
	rewriteSet
	rewriteDelete
)

type rewrite struct {
	kind  rewriteKind
	stage Stage
	name  string
	value string
}

// OptionAssignment assigns a value to an option of all packages matching
// the pattern. Patterns are package names or references with wildcards:
// "boost", "boost/*", "*".
type OptionAssignment struct {
	Pattern string
	Name    string
	Value   string
}

func (a OptionAssignment) String() string {
	if a.Pattern == "" {
		return a.Name + "=" + a.Value
	}
	return a.Pattern + ":" + a.Name + "=" + a.Value
}

// ParseOptionAssignment parses "[pattern:]name=value".
func ParseOptionAssignment(str string) (OptionAssignment, error) {
	kv := strings.SplitN(str, "=", 2)
	if len(kv) != 2 {
		return OptionAssignment{}, fmt.Errorf("invalid option '%s': expected name=value", str)
	}
	key := strings.TrimSpace(kv[0])
	result := OptionAssignment{Value: strings.TrimSpace(kv[1])}
	if idx := strings.LastIndex(key, ":"); idx >= 0 {
		result.Pattern, result.Name = key[:idx], key[idx+1:]
	} else {
		result.Name = key
	}
	if result.Name == "" {
		return OptionAssignment{}, fmt.Errorf("invalid option '%s': missing name", str)
	}
	return result, nil
}

// Options holds the option descriptors of a recipe, and the chain of
// rewrites that were applied to them.
// The current values are computed from the chain on demand.
type Options struct {
	defs  map[string]OptionDef
	chain []rewrite
	pins  []OptionAssignment
	// Returns the current lifecycle stage. If nil, all modifications are
	// allowed.
	stage func() Stage
}

// NewOptions creates an option set with the given descriptors and defaults.
func NewOptions(defs map[string]OptionDef, defaults map[string]interface{}) (*Options, error) {
	result := &Options{defs: map[string]OptionDef{}}
	for name, def := range defs {
		result.defs[name] = def
	}
	names := make([]string, 0, len(defaults))
	for name := range defaults {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if strings.Contains(name, ":") {
			// Defaults for dependencies are handled by the graph.
			continue
		}
		def, ok := result.defs[name]
		if !ok {
			return nil, fmt.Errorf("default for unknown option '%s'", name)
		}
		v, err := def.normalize(FormatValue(defaults[name]))
		if err != nil {
			return nil, fmt.Errorf("invalid default for option '%s': %w", name, err)
		}
		result.chain = append(result.chain, rewrite{kind: rewriteDefault, stage: StageInit, name: name, value: v})
	}
	return result, nil
}

func (o *Options) currentStage() Stage {
	if o.stage == nil {
		return StageConfigure
	}
	return o.stage()
}

func (o *Options) checkMutable(op string) (Stage, error) {
	stage := o.currentStage()
	if stage != StageConfigOptions && stage != StageConfigure && stage != StageInit {
		return stage, NewFrameworkError("can't %s in stage '%s'", op, stage)
	}
	return stage, nil
}

type optionState struct {
	value    string
	hasValue bool
	override string
	hasOver  bool
	set      string
	hasSet   bool
	deleted  bool
}

func (o *Options) reduce() map[string]*optionState {
	states := map[string]*optionState{}
	for name := range o.defs {
		states[name] = &optionState{}
	}
	for _, r := range o.chain {
		st := states[r.name]
		switch r.kind {
		case rewriteDefault:
			st.value, st.hasValue = r.value, true
		case rewriteOverride:
			st.override, st.hasOver = r.value, true
		case rewriteSet:
			st.set, st.hasSet = r.value, true
		case rewriteDelete:
			st.deleted = true
		}
	}
	return states
}

func (st *optionState) current() (string, bool) {
	switch {
	case st.deleted:
		return "", false
	case st.hasSet:
		return st.set, true
	case st.hasOver:
		return st.override, true
	case st.hasValue:
		return st.value, true
	}
	return "", false
}

func (o *Options) isDeleted(name string) bool {
	for _, r := range o.chain {
		if r.name == name && r.kind == rewriteDelete {
			return true
		}
	}
	return false
}

// Value returns the current value of the option.
func (o *Options) Value(name string) (string, bool) {
	if o == nil {
		return "", false
	}
	st, ok := o.reduce()[name]
	if !ok {
		return "", false
	}
	return st.current()
}

// Get returns the current value or "" if the option doesn't exist or
// doesn't have a value.
func (o *Options) Get(name string) string {
	v, _ := o.Value(name)
	return v
}

// GetSafe returns the current value or the given default.
func (o *Options) GetSafe(name string, def string) string {
	if v, ok := o.Value(name); ok {
		return v
	}
	return def
}

// Bool returns whether the option is True.
func (o *Options) Bool(name string) bool {
	return o.Get(name) == True
}

// Has returns whether the option is declared and was not deleted.
func (o *Options) Has(name string) bool {
	if o == nil {
		return false
	}
	if _, ok := o.defs[name]; !ok {
		return false
	}
	return !o.isDeleted(name)
}

// Declared returns whether the option is declared, even if it was deleted.
func (o *Options) Declared(name string) bool {
	_, ok := o.defs[name]
	return ok
}

// Def returns the descriptor of the option.
func (o *Options) Def(name string) (OptionDef, bool) {
	d, ok := o.defs[name]
	return d, ok
}

// Set changes the value of an option.
// In config_options the value acts as a conditional default that user
// values still override. In configure it is final.
func (o *Options) Set(name string, value interface{}) error {
	stage, err := o.checkMutable("set option '" + name + "'")
	if err != nil {
		return err
	}
	def, ok := o.defs[name]
	if !ok || o.isDeleted(name) {
		return NewFrameworkError("option '%s' doesn't exist", name)
	}
	v, err := def.normalize(FormatValue(value))
	if err != nil {
		return WrapFrameworkError(err, "invalid value for option '%s'", name)
	}
	kind := rewriteSet
	if stage == StageConfigOptions || stage == StageInit {
		kind = rewriteDefault
	}
	o.chain = append(o.chain, rewrite{kind: kind, stage: stage, name: name, value: v})
	return nil
}

// Delete removes an option. The option must exist.
func (o *Options) Delete(name string) error {
	if _, ok := o.defs[name]; !ok || o.isDeleted(name) {
		return NewFrameworkError("option '%s' doesn't exist", name)
	}
	return o.RmSafe(name)
}

// RmSafe removes an option if it exists.
func (o *Options) RmSafe(name string) error {
	stage, err := o.checkMutable("delete option '" + name + "'")
	if err != nil {
		return err
	}
	if _, ok := o.defs[name]; !ok || o.isDeleted(name) {
		return nil
	}
	o.chain = append(o.chain, rewrite{kind: rewriteDelete, stage: stage, name: name})
	return nil
}

// override applies a value coming from a profile or a dependent.
// Unknown options are an error when strict is true, and ignored otherwise.
// Deleted options are always ignored.
func (o *Options) override(name string, value string, strict bool) error {
	def, ok := o.defs[name]
	if !ok {
		if strict {
			return NewFrameworkError("option '%s' doesn't exist", name)
		}
		return nil
	}
	if o.isDeleted(name) {
		return nil
	}
	v, err := def.normalize(value)
	if err != nil {
		return WrapFrameworkError(err, "invalid value for option '%s'", name)
	}
	o.chain = append(o.chain, rewrite{kind: rewriteOverride, stage: o.currentStage(), name: name, value: v})
	return nil
}

// Names returns the names of all existing options, sorted.
func (o *Options) Names() []string {
	result := []string{}
	if o == nil {
		return result
	}
	for name := range o.defs {
		if !o.isDeleted(name) {
			result = append(result, name)
		}
	}
	sort.Strings(result)
	return result
}

// Values returns all options that have a value.
func (o *Options) Values() map[string]string {
	result := map[string]string{}
	if o == nil {
		return result
	}
	for name, st := range o.reduce() {
		if v, ok := st.current(); ok {
			result[name] = v
		}
	}
	return result
}

// Deleted returns the options that were deleted in the given stage.
func (o *Options) Deleted(stage Stage) []string {
	result := []string{}
	for _, r := range o.chain {
		if r.kind == rewriteDelete && r.stage == stage {
			result = append(result, r.name)
		}
	}
	return result
}

// DepOptions pins option values of dependencies.
type DepOptions struct {
	pattern string
	options *Options
}

// Dep returns a handle to pin options of the dependencies matching the
// pattern.
func (o *Options) Dep(pattern string) DepOptions {
	return DepOptions{pattern: pattern, options: o}
}

// Set pins the option of the dependency. Only allowed in configure.
// The pin is honored by the graph, independently of the order in which the
// dependency is reached.
func (d DepOptions) Set(name string, value interface{}) error {
	if stage := d.options.currentStage(); stage != StageConfigure {
		return NewFrameworkError("can't pin option '%s:%s' in stage '%s'", d.pattern, name, stage)
	}
	d.options.pins = append(d.options.pins, OptionAssignment{
		Pattern: d.pattern,
		Name:    name,
		Value:   FormatValue(value),
	})
	return nil
}

// Pins returns all dependency option pins, in declaration order.
func (o *Options) Pins() []OptionAssignment {
	return append([]OptionAssignment{}, o.pins...)
}

func (o *Options) String() string {
	values := o.Values()
	parts := []string{}
	for _, name := range o.Names() {
		if v, ok := values[name]; ok {
			parts = append(parts, name+"="+v)
		}
	}
	return strings.Join(parts, " ")
}

// DependencyDefaults extracts the "pattern:option" entries of a default
// options map.
func DependencyDefaults(defaults map[string]interface{}) []OptionAssignment {
	keys := []string{}
	for k := range defaults {
		if strings.Contains(k, ":") {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	result := []OptionAssignment{}
	for _, k := range keys {
		idx := strings.LastIndex(k, ":")
		result = append(result, OptionAssignment{
			Pattern: k[:idx],
			Name:    k[idx+1:],
			Value:   FormatValue(defaults[k]),
		})
	}
	return result
}

// wouldChange returns whether overriding the option with the value would
// change the option's current value. Options set explicitly in configure or
// deleted are never changed by overrides.
func (o *Options) wouldChange(name string, value string) (bool, error) {
	def, ok := o.defs[name]
	if !ok || o.isDeleted(name) {
		return false, nil
	}
	st := o.reduce()[name]
	if st.hasSet {
		return false, nil
	}
	v, err := def.normalize(value)
	if err != nil {
		return false, WrapFrameworkError(err, "invalid value for option '%s'", name)
	}
	current, _ := st.current()
	return current != v, nil
}
