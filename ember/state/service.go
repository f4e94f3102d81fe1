// Copyright 2023 Ember Chain Authors
// SPDX-License-Identifier: LGPL-3.0-only

package state

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/ChainSafe/chaindb"
	log "github.com/ChainSafe/log15"

	"github.com/emberchain/ember/ember/types"
	"github.com/emberchain/ember/lib/common"
	"github.com/emberchain/ember/lib/genesis"
	"github.com/emberchain/ember/lib/transaction"
)

var logger = log.New("pkg", "state")

// ErrNotInitialised is returned when Start is called on a data directory
// that has not been initialised with a chain spec.
var ErrNotInitialised = errors.New("state database not initialised")

// Service holds the base, block, epoch and transaction states.
type Service struct {
	dbPath   string
	logLvl   log.Lvl
	db       chaindb.Database
	isMemDB  bool
	spec     *genesis.Spec
	poolOpts []transaction.PoolOption

	Base        *BaseState
	Block       *BlockState
	Epoch       *EpochState
	Transaction *TransactionState
}

// Config is the configuration for the state service.
type Config struct {
	Path     string
	LogLvl   log.Lvl
	Spec     *genesis.Spec
	PoolOpts []transaction.PoolOption
}

// NewService creates a new state service from the given configuration.
func NewService(config *Config) *Service {
	h := log.StreamHandler(os.Stdout, log.TerminalFormat())
	logger.SetHandler(log.LvlFilterHandler(config.LogLvl, h))

	return &Service{
		dbPath:   config.Path,
		logLvl:   config.LogLvl,
		spec:     config.Spec,
		poolOpts: config.PoolOpts,
	}
}

// UseMemDB tells the service to use an in-memory key-value store instead of
// a persistent database. Call after NewService and before Initialise.
func (s *Service) UseMemDB() {
	s.isMemDB = true
}

// DB returns the service's database.
func (s *Service) DB() chaindb.Database {
	return s.db
}

// Initialise writes the genesis block and chain spec data into a fresh
// database. It is a no-op if the database was already initialised with the
// same chain, and errors if it was initialised with a different one.
func (s *Service) Initialise(spec *genesis.Spec) error {
	db, err := s.openDB()
	if err != nil {
		return err
	}

	base := NewBaseState(db)
	genesisHeader := spec.GenesisHeader()

	if data, err := base.LoadGenesisData(); err == nil {
		closeErr := db.Close()
		if data.ID != spec.ID {
			return fmt.Errorf("database at %s already initialised for chain %q, not %q",
				s.dbPath, data.ID, spec.ID)
		}
		return closeErr
	}

	if err = base.StoreGenesisData(spec.GenesisData()); err != nil {
		return err
	}
	if err = base.StoreBestBlockHash(genesisHeader.Hash()); err != nil {
		return err
	}
	if err = base.StoreFinalisedHash(genesisHeader.Hash()); err != nil {
		return err
	}
	if err = base.StoreEpochIndex(0); err != nil {
		return err
	}

	enc, err := json.Marshal(genesisHeader)
	if err != nil {
		return err
	}
	if err = chaindb.NewTable(db, "block").Put(genesisHeader.Hash().ToBytes(), enc); err != nil {
		return err
	}

	logger.Info("initialised state database", "chain", spec.ID,
		"genesis", genesisHeader.Hash())

	if s.isMemDB {
		// keep the handle so Start reuses the same store
		s.db = db
		return nil
	}
	return db.Close()
}

// Start opens the database and builds the block, epoch and transaction
// states, resuming from the persisted finalised block.
func (s *Service) Start() error {
	if s.Block != nil {
		return nil
	}

	db := s.db
	if db == nil {
		var err error
		db, err = s.openDB()
		if err != nil {
			return err
		}
		s.db = db
	}

	s.Base = NewBaseState(db)

	if _, err := s.Base.LoadGenesisData(); err != nil {
		return fmt.Errorf("%w: %s", ErrNotInitialised, s.dbPath)
	}

	genesisHeader := s.spec.GenesisHeader()

	root := genesisHeader
	finalised, err := s.Base.LoadFinalisedHash()
	if err == nil && !finalised.Equal(genesisHeader.Hash()) {
		root, err = loadStoredHeader(db, finalised)
		if err != nil {
			return fmt.Errorf("loading finalised header %s: %w", finalised, err)
		}
	}

	s.Block, err = NewBlockStateFromFinalised(db, root, genesisHeader.Hash())
	if err != nil {
		return fmt.Errorf("failed to create block state: %w", err)
	}

	authorities, err := s.spec.AuthoritySet()
	if err != nil {
		return fmt.Errorf("failed to load genesis authorities: %w", err)
	}

	s.Epoch, err = NewEpochState(s.Base, authorities,
		s.spec.SlotDurationMillis, s.spec.EpochLength)
	if err != nil {
		return fmt.Errorf("failed to create epoch state: %w", err)
	}

	s.Transaction = NewTransactionState(s.poolOpts...)

	logger.Info("state service started", "chain", s.spec.ID,
		"head", root.Hash(), "number", root.Number)
	return nil
}

// Stop closes the database.
func (s *Service) Stop() error {
	if s.db == nil {
		return nil
	}

	if err := s.Base.StoreBestBlockHash(s.Block.BestBlockHash()); err != nil {
		return err
	}
	if err := s.Base.StoreFinalisedHash(s.Block.FinalisedHash()); err != nil {
		return err
	}

	err := s.db.Close()
	s.db = nil
	s.Block = nil
	return err
}

func (s *Service) openDB() (chaindb.Database, error) {
	cfg := &chaindb.Config{InMemory: s.isMemDB}
	if !s.isMemDB {
		basepath, err := filepath.Abs(s.dbPath)
		if err != nil {
			return nil, err
		}
		cfg.DataDir = filepath.Join(basepath, "db")
	}
	return chaindb.NewBadgerDB(cfg)
}

func loadStoredHeader(db chaindb.Database, hash common.Hash) (*types.Header, error) {
	enc, err := chaindb.NewTable(db, "block").Get(hash.ToBytes())
	if err != nil {
		return nil, err
	}

	header := new(types.Header)
	if err := json.Unmarshal(enc, header); err != nil {
		return nil, err
	}
	return header, nil
}
