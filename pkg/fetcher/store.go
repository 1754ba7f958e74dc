package fetcher

import (
	"github.com/pkg/errors"
	"github.com/rs/zerolog"
	"github.com/syndtr/goleveldb/leveldb"
	ldbErrors "github.com/syndtr/goleveldb/leveldb/errors"
	"github.com/syndtr/goleveldb/leveldb/storage"
)

// Store persists raw transaction bytes by cache key.
type Store interface {
	// Get returns nil, nil when the key is absent.
	Get(key string) ([]byte, error)
	Put(key string, value []byte) error
	Close() error
}

// LevelDBStore is a Store backed by leveldb.
type LevelDBStore struct {
	ldb *leveldb.DB
}

// OpenLevelDB opens (or creates) the leveldb database at path. A corrupted
// database is recovered in place.
func OpenLevelDB(path string, logger zerolog.Logger) (*LevelDBStore, error) {
	ldb, err := leveldb.OpenFile(path, nil)

	if ldbErrors.IsCorrupted(err) {
		logger.Warn().Str("path", path).Err(err).Msg("leveldb corruption detected, recovering")
		ldb, err = leveldb.RecoverFile(path, nil)
		if err != nil {
			return nil, errors.Wrapf(err, "recovering leveldb at %s", path)
		}
		logger.Warn().Str("path", path).Msg("leveldb recovered")
	}
	if err != nil {
		return nil, errors.Wrapf(err, "opening leveldb at %s", path)
	}

	return &LevelDBStore{ldb: ldb}, nil
}

// OpenMemLevelDB opens a leveldb database that lives only in memory.
func OpenMemLevelDB() (*LevelDBStore, error) {
	ldb, err := leveldb.Open(storage.NewMemStorage(), nil)
	if err != nil {
		return nil, errors.Wrap(err, "opening in-memory leveldb")
	}
	return &LevelDBStore{ldb: ldb}, nil
}

// Get returns the value for key, or nil if the key does not exist.
func (s *LevelDBStore) Get(key string) ([]byte, error) {
	data, err := s.ldb.Get([]byte(key), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, nil
		}
		return nil, errors.Wrapf(err, "reading %s", key)
	}
	return data, nil
}

// Put sets the value for key, overwriting any previous value.
func (s *LevelDBStore) Put(key string, value []byte) error {
	return errors.Wrapf(s.ldb.Put([]byte(key), value, nil), "writing %s", key)
}

// Close closes the database.
func (s *LevelDBStore) Close() error {
	return s.ldb.Close()
}
