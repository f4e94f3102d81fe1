// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package types

import (
	"errors"
	"fmt"

	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"
	"github.com/emberchain/ember/lib/crypto/ed25519"
)

var errEmptyAuthoritySet = errors.New("authority set must not be empty")

// Authority is a (public key, voting weight) pair.
type Authority struct {
	Key    crypto.PublicKey
	Weight uint64
}

// NewAuthority returns an Authority with the given key and weight.
func NewAuthority(key crypto.PublicKey, weight uint64) *Authority {
	return &Authority{
		Key:    key,
		Weight: weight,
	}
}

// AuthorityRaw is the serialisable form of an Authority.
type AuthorityRaw struct {
	Key    string `json:"key"`
	Weight uint64 `json:"weight"`
}

// Raw returns the serialisable form of the authority.
func (a *Authority) Raw() *AuthorityRaw {
	return &AuthorityRaw{
		Key:    common.BytesToHex(a.Key.Encode()),
		Weight: a.Weight,
	}
}

// AuthorityFromRaw decodes an AuthorityRaw into an Authority.
func AuthorityFromRaw(raw *AuthorityRaw) (*Authority, error) {
	keyBytes, err := common.HexToBytes(raw.Key)
	if err != nil {
		return nil, fmt.Errorf("decoding authority key: %w", err)
	}

	key, err := ed25519.NewPublicKey(keyBytes)
	if err != nil {
		return nil, err
	}

	return &Authority{Key: key, Weight: raw.Weight}, nil
}

// AuthoritySet is an ordered set of authorities versioned by an epoch index.
// It is mutated only by the orchestrator when an epoch-change event is
// observed on an imported block; authoring and finality read it.
type AuthoritySet struct {
	Epoch       uint64
	Authorities []*Authority
}

// NewAuthoritySet returns an AuthoritySet for the given epoch.
func NewAuthoritySet(epoch uint64, authorities []*Authority) (*AuthoritySet, error) {
	if len(authorities) == 0 {
		return nil, errEmptyAuthoritySet
	}

	return &AuthoritySet{
		Epoch:       epoch,
		Authorities: authorities,
	}, nil
}

// TotalWeight returns the sum of all authority weights.
func (s *AuthoritySet) TotalWeight() (total uint64) {
	for _, a := range s.Authorities {
		total += a.Weight
	}
	return total
}

// Threshold returns the quorum weight: strictly more than two thirds of the
// total weight must vote for a block before it finalises.
func (s *AuthoritySet) Threshold() uint64 {
	return 2*s.TotalWeight()/3 + 1
}

// Index returns the position of the given public key in the set, or an error
// if the key is not an authority.
func (s *AuthoritySet) Index(key crypto.PublicKey) (uint32, error) {
	enc := key.Encode()
	for i, a := range s.Authorities {
		if string(a.Key.Encode()) == string(enc) {
			return uint32(i), nil
		}
	}
	return 0, fmt.Errorf("key %s not in authority set for epoch %d",
		common.BytesToHex(enc), s.Epoch)
}

// DeepCopy returns a copy of the set so readers can hold a stable view while
// the orchestrator applies an epoch change.
func (s *AuthoritySet) DeepCopy() *AuthoritySet {
	authorities := make([]*Authority, len(s.Authorities))
	for i, a := range s.Authorities {
		auth := *a
		authorities[i] = &auth
	}
	return &AuthoritySet{
		Epoch:       s.Epoch,
		Authorities: authorities,
	}
}
