// storage/boltdb_store.go
package storage

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/chhz0/dslproc/types"
	bolt "go.etcd.io/bbolt"
)

var (
	resultBucket = []byte("results")
	// runID/seq -> resultID，游标按前缀扫描即为 Seq 顺序
	runIndexBucket = []byte("run_index")
)

type BoltStorage struct {
	db *bolt.DB
}

func NewBoltStorage(path string) (*BoltStorage, error) {
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, err
	}

	// 初始化Bucket
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{resultBucket, runIndexBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &BoltStorage{db: db}, nil
}

func runIndexKey(runID string, seq int) []byte {
	return []byte(fmt.Sprintf("%s/%010d", runID, seq))
}

func (s *BoltStorage) SaveResult(ctx context.Context, result *types.Result) error {
	if result.ID == "" {
		result.ID = generateID()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		data, err := json.Marshal(result)
		if err != nil {
			return err
		}
		if err := tx.Bucket(resultBucket).Put([]byte(result.ID), data); err != nil {
			return err
		}
		return tx.Bucket(runIndexBucket).Put(runIndexKey(result.RunID, result.Seq), []byte(result.ID))
	})
}

func (s *BoltStorage) GetResult(ctx context.Context, id string) (*types.Result, error) {
	var result *types.Result
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket(resultBucket).Get([]byte(id))
		if data == nil {
			return ErrResultNotFound
		}
		r, err := types.DeserializeResult(data)
		if err != nil {
			return err
		}
		result = r
		return nil
	})
	return result, err
}

func (s *BoltStorage) ListResults(ctx context.Context, runID string, limit int) ([]*types.Result, error) {
	var results []*types.Result
	prefix := []byte(runID + "/")
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket(runIndexBucket).Cursor()
		rb := tx.Bucket(resultBucket)

		for k, id := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, id = c.Next() {
			data := rb.Get(id)
			if data == nil {
				continue
			}
			r, err := types.DeserializeResult(data)
			if err != nil {
				continue // 跳过无效数据
			}
			results = append(results, r)
			if limit > 0 && len(results) >= limit {
				break
			}
		}
		return nil
	})
	return results, err
}

func hasPrefix(b, prefix []byte) bool {
	return len(b) >= len(prefix) && string(b[:len(prefix)]) == string(prefix)
}

func (s *BoltStorage) Close() error {
	return s.db.Close()
}
