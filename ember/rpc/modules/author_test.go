// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"errors"
	"testing"

	log "github.com/ChainSafe/log15"
	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/transaction"
)

type fakeCoreAPI struct {
	submitted []types.Extrinsic
	err       error
}

func (c *fakeCoreAPI) HandleSubmittedExtrinsic(ext types.Extrinsic) (common.Hash, error) {
	if c.err != nil {
		return common.Hash{}, c.err
	}
	c.submitted = append(c.submitted, ext)
	return ext.Hash(), nil
}

type fakeTxStateAPI struct {
	pending []*transaction.ValidTransaction
}

func (s *fakeTxStateAPI) Pending() []*transaction.ValidTransaction { return s.pending }

func (s *fakeTxStateAPI) GetStatusNotifierChannel(types.Extrinsic) chan transaction.Status {
	return nil
}
func (s *fakeTxStateAPI) FreeStatusNotifierChannel(chan transaction.Status) {}

func testLogger() log.Logger {
	l := log.New()
	l.SetHandler(log.DiscardHandler())
	return l
}

func TestAuthorModule_SubmitExtrinsic(t *testing.T) {
	coreAPI := &fakeCoreAPI{}
	am := NewAuthorModule(testLogger(), coreAPI, &fakeTxStateAPI{})

	ext := types.Extrinsic("transfer alice bob 5")
	var res ExtrinsicHashResponse
	err := am.SubmitExtrinsic(nil, &Extrinsic{Data: common.BytesToHex(ext)}, &res)
	require.NoError(t, err)
	require.Equal(t, ExtrinsicHashResponse(ext.Hash()), res)
	require.Len(t, coreAPI.submitted, 1)
}

func TestAuthorModule_SubmitExtrinsicBadHex(t *testing.T) {
	am := NewAuthorModule(testLogger(), &fakeCoreAPI{}, &fakeTxStateAPI{})

	var res ExtrinsicHashResponse
	err := am.SubmitExtrinsic(nil, &Extrinsic{Data: "nothex"}, &res)
	require.Error(t, err)
}

func TestAuthorModule_SubmitExtrinsicRejected(t *testing.T) {
	coreAPI := &fakeCoreAPI{err: errors.New("invalid transaction")}
	am := NewAuthorModule(testLogger(), coreAPI, &fakeTxStateAPI{})

	ext := types.Extrinsic("junk")
	var res ExtrinsicHashResponse
	err := am.SubmitExtrinsic(nil, &Extrinsic{Data: common.BytesToHex(ext)}, &res)
	require.ErrorContains(t, err, "invalid transaction")
}

func TestAuthorModule_PendingExtrinsics(t *testing.T) {
	ext := types.Extrinsic("pending tx")
	txAPI := &fakeTxStateAPI{
		pending: []*transaction.ValidTransaction{
			transaction.NewValidTransaction(ext, transaction.NewValidity(1, nil, nil, 64, true)),
		},
	}
	am := NewAuthorModule(testLogger(), &fakeCoreAPI{}, txAPI)

	var res PendingExtrinsicsResponse
	require.NoError(t, am.PendingExtrinsics(nil, &EmptyRequest{}, &res))
	require.Equal(t, PendingExtrinsicsResponse{common.BytesToHex(ext)}, res)
}
