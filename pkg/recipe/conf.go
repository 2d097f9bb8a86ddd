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

// Conf is a set of configuration entries, like "tools.build:jobs".
// Values are strings, bools, ints, or string lists.
type Conf struct {
	values map[string]interface{}
}

// NewConf creates an empty conf.
func NewConf() *Conf {
	return &Conf{values: map[string]interface{}{}}
}

func validConfKey(key string) bool {
	if strings.HasPrefix(key, "user.") {
		return strings.Contains(key, ":")
	}
	if strings.HasPrefix(key, "tools.") || strings.HasPrefix(key, "core.") {
		return strings.Contains(key, ":")
	}
	return false
}

// Define sets the value of the key.
func (c *Conf) Define(key string, value interface{}) error {
	if !validConfKey(key) {
		return fmt.Errorf("invalid conf key '%s'", key)
	}
	switch v := value.(type) {
	case []string:
		c.values[key] = append([]string{}, v...)
	default:
		c.values[key] = value
	}
	return nil
}

// Append adds values to the list stored under key.
func (c *Conf) Append(key string, values ...string) error {
	if !validConfKey(key) {
		return fmt.Errorf("invalid conf key '%s'", key)
	}
	existing := c.GetStrings(key)
	c.values[key] = append(existing, values...)
	return nil
}

// Prepend adds values in front of the list stored under key.
func (c *Conf) Prepend(key string, values ...string) error {
	if !validConfKey(key) {
		return fmt.Errorf("invalid conf key '%s'", key)
	}
	existing := c.GetStrings(key)
	c.values[key] = append(append([]string{}, values...), existing...)
	return nil
}

// Unset removes the key.
func (c *Conf) Unset(key string) {
	delete(c.values, key)
}

// Has returns whether the key is set.
func (c *Conf) Has(key string) bool {
	if c == nil {
		return false
	}
	_, ok := c.values[key]
	return ok
}

// Get returns the raw value.
func (c *Conf) Get(key string) (interface{}, bool) {
	if c == nil {
		return nil, false
	}
	v, ok := c.values[key]
	return v, ok
}

// GetString returns the value as string.
func (c *Conf) GetString(key string, def string) string {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case string:
		return val
	case []string:
		return strings.Join(val, " ")
	}
	return FormatValue(v)
}

// GetBool returns the value as bool.
func (c *Conf) GetBool(key string, def bool) bool {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(val) {
		case "true", "1", "yes":
			return true
		case "false", "0", "no":
			return false
		}
	}
	return def
}

// GetInt returns the value as int.
func (c *Conf) GetInt(key string, def int) int {
	v, ok := c.Get(key)
	if !ok {
		return def
	}
	switch val := v.(type) {
	case int:
		return val
	case string:
		if i, err := strconv.Atoi(val); err == nil {
			return i
		}
	}
	return def
}

// GetStrings returns the value as list.
func (c *Conf) GetStrings(key string) []string {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case []string:
		return append([]string{}, val...)
	case string:
		return []string{val}
	}
	return []string{FormatValue(v)}
}

// GetMap returns a map value, like tools.build:compiler_executables.
func (c *Conf) GetMap(key string) map[string]string {
	v, ok := c.Get(key)
	if !ok {
		return nil
	}
	switch val := v.(type) {
	case map[string]string:
		result := map[string]string{}
		for k, v := range val {
			result[k] = v
		}
		return result
	}
	return nil
}

// Keys returns all keys, sorted.
func (c *Conf) Keys() []string {
	keys := []string{}
	if c == nil {
		return keys
	}
	for k := range c.values {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// Copy returns a deep copy of the conf.
func (c *Conf) Copy() *Conf {
	result := NewConf()
	if c == nil {
		return result
	}
	result.Update(c)
	return result
}

// Update copies all entries of other into c. Entries of other win.
func (c *Conf) Update(other *Conf) {
	if other == nil {
		return
	}
	for k, v := range other.values {
		switch val := v.(type) {
		case []string:
			c.values[k] = append([]string{}, val...)
		case map[string]string:
			m := map[string]string{}
			for mk, mv := range val {
				m[mk] = mv
			}
			c.values[k] = m
		default:
			c.values[k] = v
		}
	}
}

// ParseConfValue converts the textual value of a profile entry.
// "True"/"False" become bools, integers become ints, "['a', 'b']" becomes a
// list, and "{'k': 'v'}" a map.
func ParseConfValue(str string) interface{} {
	str = strings.TrimSpace(str)
	switch str {
	case "True", "true":
		return true
	case "False", "false":
		return false
	}
	if i, err := strconv.Atoi(str); err == nil {
		return i
	}
	unquote := func(s string) string {
		s = strings.TrimSpace(s)
		if len(s) >= 2 && (s[0] == '\'' || s[0] == '"') && s[len(s)-1] == s[0] {
			return s[1 : len(s)-1]
		}
		return s
	}
	if strings.HasPrefix(str, "[") && strings.HasSuffix(str, "]") {
		result := []string{}
		inner := strings.TrimSpace(str[1 : len(str)-1])
		if inner == "" {
			return result
		}
		for _, item := range strings.Split(inner, ",") {
			result = append(result, unquote(item))
		}
		return result
	}
	if strings.HasPrefix(str, "{") && strings.HasSuffix(str, "}") {
		result := map[string]string{}
		inner := strings.TrimSpace(str[1 : len(str)-1])
		if inner == "" {
			return result
		}
		for _, item := range strings.Split(inner, ",") {
			kv := strings.SplitN(item, ":", 2)
			if len(kv) != 2 {
				continue
			}
			result[unquote(kv[0])] = unquote(kv[1])
		}
		return result
	}
	return unquote(str)
}
