// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package runtime

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

func newTestInstance(t *testing.T, variant string) Instance {
	t.Helper()
	v, err := Select(variant)
	require.NoError(t, err)
	rt, err := v.NewInstance()
	require.NoError(t, err)
	return rt
}

func TestValidateTransaction(t *testing.T) {
	rt := newTestInstance(t, "ember")

	ext := types.NewExtrinsic([]byte(`{"priority":5,"requires":["a"],"provides":["b"]}`))
	validity, err := rt.ValidateTransaction(ext)
	require.NoError(t, err)
	require.Equal(t, uint64(5), validity.Priority)
	require.Equal(t, [][]byte{[]byte("a")}, validity.Requires)
	require.Equal(t, [][]byte{[]byte("b")}, validity.Provides)
	require.Equal(t, uint64(64), validity.Longevity)
	require.True(t, validity.Propagate)
}

func TestValidateTransaction_Invalid(t *testing.T) {
	rt := newTestInstance(t, "ember")

	testCases := map[string][]byte{
		"empty":         nil,
		"not json":      []byte("not-json"),
		"zero priority": []byte(`{"priority":0}`),
	}

	for name, ext := range testCases {
		t.Run(name, func(t *testing.T) {
			_, err := rt.ValidateTransaction(types.NewExtrinsic(ext))
			require.ErrorIs(t, err, ErrInvalidTransaction)
		})
	}
}

func TestValidateTransaction_EVMBridge(t *testing.T) {
	evm := newTestInstance(t, "ember-evm")

	raw := types.NewExtrinsic([]byte("0xdeadbeef"))
	validity, err := evm.ValidateTransaction(raw)
	require.NoError(t, err)
	require.Equal(t, uint64(1), validity.Priority)

	// the base variant rejects raw hex payloads
	base := newTestInstance(t, "ember")
	_, err = base.ValidateTransaction(raw)
	require.ErrorIs(t, err, ErrInvalidTransaction)
}

func TestExecuteBlock(t *testing.T) {
	rt := newTestInstance(t, "ember")

	body := types.Body{types.NewExtrinsic([]byte(`{"priority":1}`))}
	header := types.NewHeader(common.Hash{}, common.Hash{},
		types.ExtrinsicsRoot(body), 1, 1)
	block := types.NewBlock(*header, body)

	require.NoError(t, rt.ExecuteBlock(&block))
}

func TestExecuteBlock_BadExtrinsicsRoot(t *testing.T) {
	rt := newTestInstance(t, "ember")

	body := types.Body{types.NewExtrinsic([]byte(`{"priority":1}`))}
	header := types.NewHeader(common.Hash{}, common.Hash{},
		common.MustBlake2bHash([]byte("wrong")), 1, 1)
	block := types.NewBlock(*header, body)

	require.ErrorIs(t, rt.ExecuteBlock(&block), ErrInvalidTransaction)
}

func TestExecuteBlock_InvalidExtrinsic(t *testing.T) {
	rt := newTestInstance(t, "ember")

	body := types.Body{types.NewExtrinsic([]byte("garbage"))}
	header := types.NewHeader(common.Hash{}, common.Hash{},
		types.ExtrinsicsRoot(body), 1, 1)
	block := types.NewBlock(*header, body)

	require.ErrorIs(t, rt.ExecuteBlock(&block), ErrInvalidTransaction)
}
