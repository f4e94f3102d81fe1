// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"errors"
	"fmt"
	"sort"

	"github.com/emberchain/ember/lib/genesis"
)

// ErrUnknownVariant is returned when selecting a runtime variant that is not
// compiled in.
var ErrUnknownVariant = errors.New("unknown runtime variant")

// Variant is a runtime-variant descriptor: the genesis constructor,
// transaction-validation ruleset and RPC extension set that together define
// one compiled-in runtime. Exactly one variant is active per process; the
// selected descriptor is passed by reference to every downstream constructor.
type Variant struct {
	// Name is the variant's selector.
	Name string

	// DefaultSpec builds the variant's built-in chain specification, used
	// when no spec file is supplied.
	DefaultSpec func() (*genesis.Spec, error)

	// NewInstance constructs the variant's runtime instance.
	NewInstance func() (Instance, error)

	// RPCModules is the variant's RPC extension set, beyond the core set.
	RPCModules []string

	// EVMBridge reports whether the variant compiles in the EVM
	// compatibility bridge (and with it the eth RPC module).
	EVMBridge bool
}

// HasRPCModule returns true if the named module is in the variant's
// extension set.
func (v *Variant) HasRPCModule(name string) bool {
	for _, mod := range v.RPCModules {
		if mod == name {
			return true
		}
	}
	return false
}

// variants is the compiled-in variant set, keyed by name.
var variants = map[string]*Variant{}

// Register adds a variant to the compiled-in set. Called from variant
// definition files at init time; duplicate names panic since they indicate
// conflicting compiled-in runtimes.
func Register(v *Variant) {
	if _, has := variants[v.Name]; has {
		panic(fmt.Sprintf("runtime variant %q registered twice", v.Name))
	}
	variants[v.Name] = v
}

// Select returns the compiled-in variant with the given name, or
// ErrUnknownVariant. No component construction happens for a rejected name.
func Select(name string) (*Variant, error) {
	v, has := variants[name]
	if !has {
		return nil, fmt.Errorf("%w: %q (have %v)", ErrUnknownVariant, name, VariantNames())
	}
	return v, nil
}

// VariantNames returns the sorted names of all compiled-in variants.
func VariantNames() []string {
	names := make([]string, 0, len(variants))
	for name := range variants {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
