// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package genesis

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
)

var (
	// ErrSpecNotFound is returned when the chain spec source does not exist.
	ErrSpecNotFound = errors.New("chain spec not found")

	// ErrSpecMalformed is returned when the chain spec fails to parse or
	// fails validation.
	ErrSpecMalformed = errors.New("chain spec malformed")
)

// Spec is a validated, immutable chain specification. It is created once at
// startup and shared read-only by every component.
type Spec struct {
	Name               string               `json:"name"`
	ID                 string               `json:"id"`
	ChainType          string               `json:"chainType"`
	Bootnodes          []string             `json:"bootNodes"`
	TelemetryEndpoints []TelemetryEndpoint  `json:"telemetryEndpoints"`
	ProtocolID         string               `json:"protocolId"`
	GenesisState       map[string]string    `json:"genesisState"`
	Authorities        []types.AuthorityRaw `json:"authorities"`
	SlotDurationMillis uint64               `json:"slotDuration"`
	EpochLength        uint64               `json:"epochLength"`
	Properties         map[string]any       `json:"properties"`
}

// TelemetryEndpoint is a telemetry server URL with a verbosity level.
type TelemetryEndpoint struct {
	Endpoint  string `json:"endpoint"`
	Verbosity int    `json:"verbosity"`
}

// Data is the subset of the chain spec persisted in the base state so a
// restarted node can resume without re-reading the spec file.
type Data struct {
	Name               string
	ID                 string
	ChainType          string
	Bootnodes          []string
	TelemetryEndpoints []TelemetryEndpoint
	ProtocolID         string
	Properties         map[string]any
}

// NewSpecFromJSONRaw parses and validates a chain spec document.
// Parsing the same bytes twice yields identical specs.
func NewSpecFromJSONRaw(data []byte) (*Spec, error) {
	spec := new(Spec)
	if err := json.Unmarshal(data, spec); err != nil {
		return nil, fmt.Errorf("%w: %s", ErrSpecMalformed, err)
	}

	if err := spec.validate(); err != nil {
		return nil, err
	}

	return spec, nil
}

// NewSpecFromJSONFile loads and validates a chain spec from a file path.
func NewSpecFromJSONFile(path string) (*Spec, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w: %s", ErrSpecNotFound, path)
		}
		return nil, err
	}

	return NewSpecFromJSONRaw(data)
}

func (s *Spec) validate() error {
	if s.ID == "" {
		return fmt.Errorf("%w: missing network id", ErrSpecMalformed)
	}

	if len(s.GenesisState) == 0 {
		return fmt.Errorf("%w: empty genesis state", ErrSpecMalformed)
	}

	if s.SlotDurationMillis == 0 {
		return fmt.Errorf("%w: slot duration must be non-zero", ErrSpecMalformed)
	}

	if s.EpochLength == 0 {
		return fmt.Errorf("%w: epoch length must be non-zero", ErrSpecMalformed)
	}

	for i, raw := range s.Authorities {
		if _, err := types.AuthorityFromRaw(&raw); err != nil {
			return fmt.Errorf("%w: authority %d: %s", ErrSpecMalformed, i, err)
		}
	}

	return nil
}

// RequireAuthorities validates that the spec carries a non-empty authority
// set. Called during assembly when the selected consensus mode needs one.
func (s *Spec) RequireAuthorities() error {
	if len(s.Authorities) == 0 {
		return fmt.Errorf("%w: consensus mode requires a non-empty authority set", ErrSpecMalformed)
	}
	return nil
}

// AuthoritySet decodes the spec's initial authorities into the epoch-zero
// authority set.
func (s *Spec) AuthoritySet() (*types.AuthoritySet, error) {
	authorities := make([]*types.Authority, len(s.Authorities))
	for i, raw := range s.Authorities {
		auth, err := types.AuthorityFromRaw(&raw)
		if err != nil {
			return nil, err
		}
		authorities[i] = auth
	}

	return types.NewAuthoritySet(0, authorities)
}

// StateRoot computes the genesis state root: the hash of the sorted
// key-value pairs of the genesis state. Deterministic across nodes.
func (s *Spec) StateRoot() common.Hash {
	keys := make([]string, 0, len(s.GenesisState))
	for k := range s.GenesisState {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	buf := make([]byte, 0, len(keys)*64)
	for _, k := range keys {
		buf = append(buf, k...)
		buf = append(buf, s.GenesisState[k]...)
	}
	return common.MustBlake2bHash(buf)
}

// GenesisHeader builds the genesis block header for this spec.
func (s *Spec) GenesisHeader() *types.Header {
	return types.NewHeader(common.Hash{}, s.StateRoot(), common.Hash{}, 0, 0)
}

// GenesisData returns the persistable subset of the spec.
func (s *Spec) GenesisData() *Data {
	return &Data{
		Name:               s.Name,
		ID:                 s.ID,
		ChainType:          s.ChainType,
		Bootnodes:          s.Bootnodes,
		TelemetryEndpoints: s.TelemetryEndpoints,
		ProtocolID:         s.ProtocolID,
		Properties:         s.Properties,
	}
}
