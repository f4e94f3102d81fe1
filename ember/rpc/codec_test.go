// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package rpc

import (
	"fmt"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/require"
)

func codecMethod(t *testing.T, method string) (string, error) {
	t.Helper()

	body := fmt.Sprintf(`{"jsonrpc":"2.0","method":%q,"params":[{}],"id":1}`, method)
	req := httptest.NewRequest("POST", "/", strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")

	return NewUnderscoreCodec().NewRequest(req).Method()
}

func TestUnderscoreCodec_Method(t *testing.T) {
	cases := map[string]struct {
		method string
		want   string
		errs   bool
	}{
		"chain method":          {method: "chain_getHead", want: "chain.GetHead"},
		"system method":         {method: "system_networkState", want: "system.NetworkState"},
		"author method":         {method: "author_submitExtrinsic", want: "author.SubmitExtrinsic"},
		"eth method":            {method: "eth_blockNumber", want: "eth.BlockNumber"},
		"missing underscore":    {method: "getHead", errs: true},
		"empty method name":     {method: "chain_", errs: true},
		"already capitalised":   {method: "chain_GetHead", want: "chain.GetHead"},
		"multiple under-scores": {method: "eth_getBlockByNumber", want: "eth.GetBlockByNumber"},
	}

	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			got, err := codecMethod(t, tc.method)
			if tc.errs {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			require.Equal(t, tc.want, got)
		})
	}
}

func TestSnakeCaseFormat(t *testing.T) {
	got, err := snakeCaseFormat("chain.GetHead")
	require.NoError(t, err)
	require.Equal(t, "chain_getHead", got)

	_, err = snakeCaseFormat("noDot")
	require.Error(t, err)
}

func TestIsUnsafe(t *testing.T) {
	require.True(t, isUnsafe("system_addReservedPeer"))
	require.True(t, isUnsafe("system_removeReservedPeer"))
	require.False(t, isUnsafe("chain_getHead"))
}
