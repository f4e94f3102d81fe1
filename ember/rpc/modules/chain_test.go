// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package modules

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

var errNotFound = errors.New("not found")

// fakeBlockAPI serves a linear chain built with addChild.
type fakeBlockAPI struct {
	genesis   common.Hash
	best      common.Hash
	finalised common.Hash
	headers   map[common.Hash]*types.Header
	bodies    map[common.Hash]*types.Body
}

func newFakeBlockAPI() *fakeBlockAPI {
	root := types.NewHeader(common.Hash{}, common.Hash{}, common.Hash{}, 0, 0)
	return &fakeBlockAPI{
		genesis:   root.Hash(),
		best:      root.Hash(),
		finalised: root.Hash(),
		headers:   map[common.Hash]*types.Header{root.Hash(): root},
		bodies:    map[common.Hash]*types.Body{root.Hash(): {}},
	}
}

// addChild extends the best chain by one block carrying the given body and
// returns the new head.
func (api *fakeBlockAPI) addChild(body types.Body) *types.Header {
	parent := api.headers[api.best]
	header := types.NewHeader(parent.Hash(), common.Hash{},
		types.ExtrinsicsRoot(body), parent.Number+1, parent.Number+1)
	api.headers[header.Hash()] = header
	api.bodies[header.Hash()] = &body
	api.best = header.Hash()
	return header
}

func (api *fakeBlockAPI) GenesisHash() common.Hash   { return api.genesis }
func (api *fakeBlockAPI) BestBlockHash() common.Hash { return api.best }
func (api *fakeBlockAPI) FinalisedHash() common.Hash { return api.finalised }

func (api *fakeBlockAPI) GetHeader(hash common.Hash) (*types.Header, error) {
	header, ok := api.headers[hash]
	if !ok {
		return nil, errNotFound
	}
	return header, nil
}

func (api *fakeBlockAPI) GetBlockBody(hash common.Hash) (*types.Body, error) {
	body, ok := api.bodies[hash]
	if !ok {
		return nil, errNotFound
	}
	return body, nil
}

func (api *fakeBlockAPI) GetImportedBlockNotifierChannel() chan *types.Block { return nil }
func (api *fakeBlockAPI) FreeImportedBlockNotifierChannel(chan *types.Block) {}
func (api *fakeBlockAPI) GetFinalisedNotifierChannel() chan *types.Header    { return nil }
func (api *fakeBlockAPI) FreeFinalisedNotifierChannel(chan *types.Header)    {}

func TestChainModule_GetHead(t *testing.T) {
	api := newFakeBlockAPI()
	head := api.addChild(types.Body{})
	cm := NewChainModule(api)

	var res common.Hash
	require.NoError(t, cm.GetHead(nil, &EmptyRequest{}, &res))
	require.Equal(t, head.Hash(), res)
}

func TestChainModule_GetFinalizedHead(t *testing.T) {
	api := newFakeBlockAPI()
	api.addChild(types.Body{})
	cm := NewChainModule(api)

	var res common.Hash
	require.NoError(t, cm.GetFinalizedHead(nil, &EmptyRequest{}, &res))
	require.Equal(t, api.genesis, res)
}

func TestChainModule_GetHeader(t *testing.T) {
	api := newFakeBlockAPI()
	head := api.addChild(types.Body{})
	cm := NewChainModule(api)

	// explicit hash
	var res types.Header
	require.NoError(t, cm.GetHeader(nil, &ChainHashRequest{Bhash: api.genesis}, &res))
	require.Equal(t, uint64(0), res.Number)

	// empty hash selects the best block
	require.NoError(t, cm.GetHeader(nil, &ChainHashRequest{}, &res))
	require.Equal(t, head.Hash(), res.Hash())

	err := cm.GetHeader(nil, &ChainHashRequest{Bhash: common.Hash{0xff}}, &res)
	require.ErrorIs(t, err, errNotFound)
}

func TestChainModule_GetBlock(t *testing.T) {
	api := newFakeBlockAPI()
	body := types.Body{types.Extrinsic("transfer alice bob 5")}
	head := api.addChild(body)
	cm := NewChainModule(api)

	var res ChainBlockResponse
	require.NoError(t, cm.GetBlock(nil, &ChainHashRequest{}, &res))
	require.Equal(t, head.Hash(), res.Hash)
	require.Equal(t, head.Hash(), res.Header.Hash())
	require.Equal(t, body.Extrinsics(), res.Body)
}
