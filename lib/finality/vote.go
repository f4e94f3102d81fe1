// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package finality

import (
	"encoding/binary"
	"encoding/json"
	"fmt"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/crypto"
)

// Vote is an attestation target: a block hash and its number.
type Vote struct {
	Hash   common.Hash `json:"hash"`
	Number uint64      `json:"number"`
}

// NewVoteFromHeader returns a Vote for the given header.
func NewVoteFromHeader(header *types.Header) *Vote {
	return &Vote{
		Hash:   header.Hash(),
		Number: header.Number,
	}
}

func (v *Vote) String() string {
	return fmt.Sprintf("hash=%s number=%d", v.Hash.Short(), v.Number)
}

// VoteMessage is a signed vote as sent between authorities.
type VoteMessage struct {
	Round          uint64 `json:"round"`
	Vote           Vote   `json:"vote"`
	AuthorityIndex uint32 `json:"authorityIndex"`
	Signature      []byte `json:"signature"`
}

// Encode returns the JSON encoding of the message for gossip transport.
func (m *VoteMessage) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// DecodeVoteMessage decodes a gossiped vote message.
func DecodeVoteMessage(in []byte) (*VoteMessage, error) {
	msg := new(VoteMessage)
	if err := json.Unmarshal(in, msg); err != nil {
		return nil, err
	}
	return msg, nil
}

// votePayload is the byte string an authority signs: round, target hash
// and target number.
func votePayload(round uint64, vote *Vote) []byte {
	buf := make([]byte, 0, 48)
	buf = binary.LittleEndian.AppendUint64(buf, round)
	buf = append(buf, vote.Hash.ToBytes()...)
	buf = binary.LittleEndian.AppendUint64(buf, vote.Number)
	return buf
}

// signVote produces a signed VoteMessage for the given round and target.
func signVote(kp crypto.Keypair, round uint64, authorityIndex uint32, vote *Vote) (*VoteMessage, error) {
	sig, err := kp.Sign(votePayload(round, vote))
	if err != nil {
		return nil, err
	}
	return &VoteMessage{
		Round:          round,
		Vote:           *vote,
		AuthorityIndex: authorityIndex,
		Signature:      sig,
	}, nil
}

// verifyVote checks the message signature against the authority set.
func verifyVote(set *types.AuthoritySet, msg *VoteMessage) error {
	if int(msg.AuthorityIndex) >= len(set.Authorities) {
		return fmt.Errorf("%w: index %d", ErrVoterNotFound, msg.AuthorityIndex)
	}

	key := set.Authorities[msg.AuthorityIndex].Key
	ok, err := key.Verify(votePayload(msg.Round, &msg.Vote), msg.Signature)
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("%w: authority %d round %d", ErrInvalidSignature,
			msg.AuthorityIndex, msg.Round)
	}
	return nil
}
