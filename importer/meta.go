package importer

import (
	"errors"
	"path/filepath"
	"time"

	"github.com/goccy/go-json"
	bolt "go.etcd.io/bbolt"
)

const metaBucket = "modules"

var ErrMetaNotFound = errors.New("meta record not found")

// metaRecord is the sidecar provenance of one cached artifact.
type metaRecord struct {
	CachePath string `json:"cachePath"`
	Hash      string `json:"hash"`
	Time      int64  `json:"time"`
}

// metaDB maps module URLs to their cache artifacts. It lives next to the
// artifacts as `meta.db` under the cache root and is what lets a later run
// (or the ClearPriorCache option) find and remove a prior artifact for a URL
// without rehashing anything.
type metaDB struct {
	bolt *bolt.DB
}

func openMetaDB(cacheRoot string) (*metaDB, error) {
	boltd, err := bolt.Open(filepath.Join(cacheRoot, "meta.db"), 0644, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, err
	}
	err = boltd.Update(func(tx *bolt.Tx) error {
		_, err := tx.CreateBucketIfNotExists([]byte(metaBucket))
		return err
	})
	if err != nil {
		boltd.Close()
		return nil, err
	}
	return &metaDB{boltd}, nil
}

func (db *metaDB) Get(moduleUrl string) (record metaRecord, err error) {
	var value []byte
	err = db.bolt.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(metaBucket)).Get([]byte(moduleUrl))
		if v != nil {
			value = append(value, v...)
		}
		return nil
	})
	if err != nil {
		return
	}
	if value == nil {
		err = ErrMetaNotFound
		return
	}
	err = json.Unmarshal(value, &record)
	return
}

func (db *metaDB) Put(moduleUrl string, record metaRecord) error {
	value, err := json.Marshal(record)
	if err != nil {
		return err
	}
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Put([]byte(moduleUrl), value)
	})
}

func (db *metaDB) Delete(moduleUrl string) error {
	return db.bolt.Update(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(metaBucket)).Delete([]byte(moduleUrl))
	})
}

func (db *metaDB) Close() error {
	return db.bolt.Close()
}
