package main

import (
	"flag"
	"fmt"
	"strconv"
	"strings"
)

// flagSet wraps flag.FlagSet to add support for uint64 and []uint32 flags,
// kept from the teacher's cmd/eth2030/flags.go.
type flagSet struct {
	*flag.FlagSet
}

// newCustomFlagSet creates a flagSet with ContinueOnError behavior.
func newCustomFlagSet(name string) *flagSet {
	fs := flag.NewFlagSet(name, flag.ContinueOnError)
	return &flagSet{FlagSet: fs}
}

// Uint64Var defines a uint64 flag. Go's standard flag package lacks uint64
// support, so we use a custom Value implementation.
func (fs *flagSet) Uint64Var(p *uint64, name string, value uint64, usage string) {
	fs.FlagSet.Var(&uint64Value{p: p}, name, usage)
	*p = value
}

// Bool wraps flag.FlagSet.Bool.
func (fs *flagSet) Bool(name string, value bool, usage string) *bool {
	return fs.FlagSet.Bool(name, value, usage)
}

// Uint32SliceVar defines a comma-separated uint32 list flag, used for
// --chains.
func (fs *flagSet) Uint32SliceVar(p *[]uint32, name string, value []uint32, usage string) {
	fs.FlagSet.Var(&uint32SliceValue{p: p}, name, usage)
	*p = value
}

// uint64Value implements flag.Value for uint64 flags.
type uint64Value struct {
	p *uint64
}

func (v *uint64Value) String() string {
	if v.p == nil {
		return "0"
	}
	return strconv.FormatUint(*v.p, 10)
}

func (v *uint64Value) Set(s string) error {
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid uint64 value %q", s)
	}
	*v.p = n
	return nil
}

// uint32SliceValue implements flag.Value for a comma-separated list of
// uint32 chain ids, e.g. "0,1,2".
type uint32SliceValue struct {
	p *[]uint32
}

func (v *uint32SliceValue) String() string {
	if v.p == nil || len(*v.p) == 0 {
		return ""
	}
	parts := make([]string, len(*v.p))
	for i, id := range *v.p {
		parts[i] = strconv.FormatUint(uint64(id), 10)
	}
	return strings.Join(parts, ",")
}

func (v *uint32SliceValue) Set(s string) error {
	var ids []uint32
	for _, part := range strings.Split(s, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		n, err := strconv.ParseUint(part, 10, 32)
		if err != nil {
			return fmt.Errorf("invalid chain id %q", part)
		}
		ids = append(ids, uint32(n))
	}
	*v.p = ids
	return nil
}
