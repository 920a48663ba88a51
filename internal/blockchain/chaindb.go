// Copyright (c) 2024 The Sonoma developers
// Use of this source code is governed by an ISC
// license that can be found in the LICENSE file.

package blockchain

import (
	"encoding/binary"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/decred/dcrd/chaincfg/chainhash"
	"github.com/decred/dcrd/container/apbf"
	"github.com/decred/dcrd/dcrutil/v4"
	"github.com/syndtr/goleveldb/leveldb"
	ldberrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/filter"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// currentChainDatabaseVersion indicates the current chain database
	// version.
	currentChainDatabaseVersion = 1

	// chainDbName is the name of the chain database.
	chainDbName = "chaindb"
)

// -----------------------------------------------------------------------------
// All keys in the chain database start with a single byte that identifies the
// key set:
//
//	v               -> database version (uint32)
//	t               -> chain tip (index uint64 BE, hash)
//	b<index BE>     -> serialized block
//	h<hash>         -> block index (uint64 BE)
//	a<address>      -> balance in atoms (uint64 BE)
//	x<tx hash>      -> index of the confirming block (uint64 BE)
// -----------------------------------------------------------------------------

var (
	versionKey       = []byte("v")
	tipKey           = []byte("t")
	blockKeyPrefix   = []byte("b")
	hashKeyPrefix    = []byte("h")
	balanceKeyPrefix = []byte("a")
	txKeyPrefix      = []byte("x")
)

// blockKey returns the key for the block at the given index.  Big endian is
// used so blocks iterate in index order.
func blockKey(index int64) []byte {
	key := make([]byte, len(blockKeyPrefix)+8)
	copy(key, blockKeyPrefix)
	binary.BigEndian.PutUint64(key[len(blockKeyPrefix):], uint64(index))
	return key
}

// hashKey returns the key that maps a block hash to its index.
func hashKey(hash *chainhash.Hash) []byte {
	return append(append([]byte(nil), hashKeyPrefix...), hash[:]...)
}

// balanceKey returns the key for the balance of an address.
func balanceKey(addr string) []byte {
	return append(append([]byte(nil), balanceKeyPrefix...), addr...)
}

// txKey returns the key that maps a confirmed transaction to the index of the
// block that confirmed it.
func txKey(hash *chainhash.Hash) []byte {
	return append(append([]byte(nil), txKeyPrefix...), hash[:]...)
}

// convertLdbErr converts the passed leveldb error into a context error with an
// equivalent error kind and the passed description.  It also sets the passed
// error as the underlying error and adds its error string to the description.
func convertLdbErr(ldbErr error, desc string) ContextError {
	// Use the general chain database error kind by default.  The code below
	// will update this with the converted error if it's recognized.
	var kind = ErrChainDB

	switch {
	// Database corruption errors.
	case ldberrors.IsCorrupted(ldbErr):
		kind = ErrChainDBCorruption

	// Database open/create errors.
	case errors.Is(ldbErr, leveldb.ErrClosed):
		kind = ErrChainDBNotOpen

	// Transaction errors.
	case errors.Is(ldbErr, leveldb.ErrSnapshotReleased):
		kind = ErrChainDBTxClosed
	case errors.Is(ldbErr, leveldb.ErrIterReleased):
		kind = ErrChainDBTxClosed
	}

	// Include the original error in description.
	desc = fmt.Sprintf("%s: %v", desc, ldbErr)

	err := contextError(kind, desc)
	err.RawErr = ldbErr

	return err
}

// fileExists reports whether the named file or directory exists.
func fileExists(name string) bool {
	if _, err := os.Stat(name); err != nil {
		if os.IsNotExist(err) {
			return false
		}
	}
	return true
}

// LoadChainDB loads (or creates when needed) the chain database and returns a
// handle to it.  The regression test network always starts from a clean
// database.
func LoadChainDB(params *Params, dataDir string) (*leveldb.DB, error) {
	dbPath := filepath.Join(dataDir, chainDbName)

	if params.Name == RegNetParams.Name {
		if fileExists(dbPath) {
			log.Infof("Removing regression test chain database from '%s'",
				dbPath)
			if err := os.RemoveAll(dbPath); err != nil {
				return nil, err
			}
		}
	}

	dbExists := fileExists(dbPath)
	if !dbExists {
		// The error can be ignored here since the call to leveldb.OpenFile
		// will fail if the directory couldn't be created.
		_ = os.MkdirAll(dataDir, 0700)
	}

	log.Infof("Loading chain database from '%s'", dbPath)
	opts := opt.Options{
		ErrorIfExist: !dbExists,
		Strict:       opt.DefaultStrict,
		Compression:  opt.NoCompression,
		Filter:       filter.NewBloomFilter(10),
	}
	db, err := leveldb.OpenFile(dbPath, &opts)
	if err != nil {
		return nil, convertLdbErr(err, "failed to open chain database")
	}

	log.Info("Chain database loaded")
	return db, nil
}

// dbReader is implemented by both the leveldb database and its transactions.
type dbReader interface {
	Get(key []byte, ro *opt.ReadOptions) ([]byte, error)
	Has(key []byte, ro *opt.ReadOptions) (bool, error)
}

// chainState is the persisted state the chain reconstructs on startup.
type chainState struct {
	tip      *Block
	balances map[string]dcrutil.Amount
}

// dbFetchBlock loads the block at the given index.  It returns a nil block
// and no error when the block does not exist.
func dbFetchBlock(r dbReader, index int64) (*Block, error) {
	serialized, err := r.Get(blockKey(index), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, convertLdbErr(err, "failed to fetch block")
	}
	block, err := NewBlockFromBytes(serialized)
	if err != nil {
		str := fmt.Sprintf("failed to deserialize block %d: %v", index, err)
		return nil, contextError(ErrDeserialize, str)
	}
	return block, nil
}

// dbFetchBlockIndex returns the index of the block with the given hash.
func dbFetchBlockIndex(r dbReader, hash *chainhash.Hash) (int64, error) {
	serialized, err := r.Get(hashKey(hash), nil)
	if errors.Is(err, leveldb.ErrNotFound) {
		return 0, unknownBlockError(hash)
	}
	if err != nil {
		return 0, convertLdbErr(err, "failed to fetch block index")
	}
	return int64(binary.BigEndian.Uint64(serialized)), nil
}

// dbTxConfirmed returns whether the transaction with the given hash was
// confirmed by a block in the chain.
func dbTxConfirmed(r dbReader, hash *chainhash.Hash) (bool, error) {
	ok, err := r.Has(txKey(hash), nil)
	if err != nil {
		return false, convertLdbErr(err, "failed to look up transaction")
	}
	return ok, nil
}

// dbPutBlock stages the block, its hash mapping, the new tip, the confirmed
// transactions, and the updated balances in the provided leveldb transaction.
func dbPutBlock(tx *leveldb.Transaction, block *Block, balances map[string]dcrutil.Amount) error {
	serialized, err := block.Bytes()
	if err != nil {
		return err
	}

	var indexBytes [8]byte
	binary.BigEndian.PutUint64(indexBytes[:], uint64(block.Index))

	batch := new(leveldb.Batch)
	batch.Put(blockKey(block.Index), serialized)
	batch.Put(hashKey(&block.Hash), indexBytes[:])
	batch.Put(tipKey, append(indexBytes[:], block.Hash[:]...))
	for _, btx := range block.Transactions {
		txHash := btx.TxHash()
		batch.Put(txKey(&txHash), indexBytes[:])
	}
	for addr, balance := range balances {
		var balanceBytes [8]byte
		binary.BigEndian.PutUint64(balanceBytes[:], uint64(balance))
		batch.Put(balanceKey(addr), balanceBytes[:])
	}
	if err := tx.Write(batch, nil); err != nil {
		return convertLdbErr(err, "failed to write block")
	}
	return nil
}

// dbStoreBlock atomically persists the block along with the balances it
// modified.
func dbStoreBlock(db *leveldb.DB, block *Block, balances map[string]dcrutil.Amount) error {
	ldbTx, err := db.OpenTransaction()
	if err != nil {
		return convertLdbErr(err, "failed to open leveldb transaction")
	}

	if err := dbPutBlock(ldbTx, block, balances); err != nil {
		ldbTx.Discard()
		return err
	}

	// Commit the leveldb transaction.
	if err := ldbTx.Commit(); err != nil {
		ldbTx.Discard()
		return convertLdbErr(err, "failed to commit leveldb transaction")
	}
	return nil
}

// dbInitChain stores the version and genesis block in a new database or
// verifies the version of an existing one, and loads the chain state.
func dbInitChain(db *leveldb.DB, params *Params) (*chainState, error) {
	serializedVersion, err := db.Get(versionKey, nil)
	switch {
	case errors.Is(err, leveldb.ErrNotFound):
		genesis := params.GenesisBlock()
		log.Infof("Creating chain database with genesis block %s",
			genesis.Hash)
		var versionBytes [4]byte
		binary.LittleEndian.PutUint32(versionBytes[:],
			currentChainDatabaseVersion)
		if err := db.Put(versionKey, versionBytes[:], nil); err != nil {
			return nil, convertLdbErr(err, "failed to store database version")
		}
		if err := dbStoreBlock(db, genesis, nil); err != nil {
			return nil, err
		}
		return &chainState{
			tip:      genesis,
			balances: make(map[string]dcrutil.Amount),
		}, nil

	case err != nil:
		return nil, convertLdbErr(err, "failed to fetch database version")
	}

	if len(serializedVersion) != 4 {
		return nil, contextError(ErrDeserialize, "malformed database version")
	}
	version := binary.LittleEndian.Uint32(serializedVersion)
	if version > currentChainDatabaseVersion {
		str := fmt.Sprintf("the current chain database is no longer "+
			"compatible with this version of the software (%d > %d)",
			version, currentChainDatabaseVersion)
		return nil, contextError(ErrChainDB, str)
	}

	serializedTip, err := db.Get(tipKey, nil)
	if err != nil {
		return nil, convertLdbErr(err, "failed to fetch chain tip")
	}
	if len(serializedTip) != 8+chainhash.HashSize {
		return nil, contextError(ErrDeserialize, "malformed chain tip")
	}
	tipIndex := int64(binary.BigEndian.Uint64(serializedTip[:8]))
	tip, err := dbFetchBlock(db, tipIndex)
	if err != nil {
		return nil, err
	}
	var tipHash chainhash.Hash
	copy(tipHash[:], serializedTip[8:])
	if tip == nil || tip.Hash != tipHash {
		str := fmt.Sprintf("chain tip %d is missing or does not match its "+
			"block", tipIndex)
		return nil, contextError(ErrChainDBCorruption, str)
	}

	genesis := params.GenesisBlock()
	if stored, err := dbFetchBlock(db, 0); err != nil {
		return nil, err
	} else if stored == nil || stored.Hash != genesis.Hash {
		str := fmt.Sprintf("chain database genesis block does not match "+
			"network %s", params.Name)
		return nil, contextError(ErrChainDB, str)
	}

	balances := make(map[string]dcrutil.Amount)
	iter := db.NewIterator(util.BytesPrefix(balanceKeyPrefix), nil)
	for iter.Next() {
		addr := string(iter.Key()[len(balanceKeyPrefix):])
		balances[addr] = dcrutil.Amount(binary.BigEndian.Uint64(iter.Value()))
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return nil, convertLdbErr(err, "failed to load balances")
	}

	return &chainState{tip: tip, balances: balances}, nil
}

// dbLoadConfirmedTxns counts the confirmed transactions and, when they all fit,
// adds them to the provided filter.
func dbLoadConfirmedTxns(db *leveldb.DB, filter *apbf.Filter, capacity uint64) (uint64, error) {
	var count uint64
	iter := db.NewIterator(util.BytesPrefix(txKeyPrefix), nil)
	for iter.Next() {
		count++
		if count <= capacity {
			filter.Add(iter.Key()[len(txKeyPrefix):])
		}
	}
	iter.Release()
	if err := iter.Error(); err != nil {
		return 0, convertLdbErr(err, "failed to load confirmed transactions")
	}
	return count, nil
}
