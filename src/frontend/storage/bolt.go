// Copyright 2024 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package storage

import (
	"sort"
	"strings"
	"time"

	"github.com/pkg/errors"
	"github.com/sirupsen/logrus"
	bolt "go.etcd.io/bbolt"
)

// bucketPrefix namespaces the per-context buckets inside the bolt file.
const bucketPrefix = "ctx/"

// BoltDB keeps every browsing context in its own bucket of one bbolt file.
type BoltDB struct {
	db  *bolt.DB
	log logrus.FieldLogger
	now func() time.Time
}

// ContextInfo describes one stored browsing context.
type ContextInfo struct {
	ID      string
	Keys    int
	Touched time.Time
}

// OpenBolt opens (or creates) the state file at path.
func OpenBolt(path string, log logrus.FieldLogger) (*BoltDB, error) {
	if log == nil {
		log = logrus.StandardLogger()
	}
	db, err := bolt.Open(path, 0600, &bolt.Options{Timeout: 2 * time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open state file %s", path)
	}
	log.WithField("path", path).Debug("state file opened")
	return &BoltDB{db: db, log: log, now: time.Now}, nil
}

func (d *BoltDB) Close() error {
	return d.db.Close()
}

// Scope returns the Backend of contextID. The bucket is created lazily on
// first write.
func (d *BoltDB) Scope(contextID string) Backend {
	return &boltScope{d: d, bucket: []byte(bucketPrefix + contextID)}
}

// Contexts lists stored browsing contexts ordered by ID.
func (d *BoltDB) Contexts() ([]ContextInfo, error) {
	var out []ContextInfo
	err := d.db.View(func(tx *bolt.Tx) error {
		return tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if !strings.HasPrefix(string(name), bucketPrefix) {
				return nil
			}
			info := ContextInfo{ID: strings.TrimPrefix(string(name), bucketPrefix)}
			if err := b.ForEach(func(k, _ []byte) error {
				if string(k) != touchedKey {
					info.Keys++
				}
				return nil
			}); err != nil {
				return err
			}
			info.Touched = parseTouched(b.Get([]byte(touchedKey)))
			out = append(out, info)
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrap(err, "list contexts")
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// Dump returns a copy of every value stored for contextID.
func (d *BoltDB) Dump(contextID string) (map[string][]byte, error) {
	out := make(map[string][]byte)
	err := d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketPrefix + contextID))
		if b == nil {
			return nil
		}
		return b.ForEach(func(k, v []byte) error {
			if string(k) != touchedKey {
				out[string(k)] = append([]byte(nil), v...)
			}
			return nil
		})
	})
	if err != nil {
		return nil, errors.Wrapf(err, "dump context %s", contextID)
	}
	return out, nil
}

// DropContext deletes everything stored for contextID.
func (d *BoltDB) DropContext(contextID string) error {
	err := d.db.Update(func(tx *bolt.Tx) error {
		err := tx.DeleteBucket([]byte(bucketPrefix + contextID))
		if err == bolt.ErrBucketNotFound {
			return nil
		}
		return err
	})
	return errors.Wrapf(err, "drop context %s", contextID)
}

// Prune drops contexts whose last write is older than maxIdle and returns
// how many were removed. Contexts without a timestamp are left alone.
func (d *BoltDB) Prune(maxIdle time.Duration) (int, error) {
	cutoff := d.now().Add(-maxIdle)
	var stale [][]byte
	err := d.db.Update(func(tx *bolt.Tx) error {
		if err := tx.ForEach(func(name []byte, b *bolt.Bucket) error {
			if !strings.HasPrefix(string(name), bucketPrefix) {
				return nil
			}
			t := parseTouched(b.Get([]byte(touchedKey)))
			if !t.IsZero() && t.Before(cutoff) {
				stale = append(stale, append([]byte(nil), name...))
			}
			return nil
		}); err != nil {
			return err
		}
		for _, name := range stale {
			if err := tx.DeleteBucket(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, errors.Wrap(err, "prune contexts")
	}
	if len(stale) > 0 {
		d.log.WithField("count", len(stale)).WithField("cutoff", cutoff).Info("pruned idle browsing contexts")
	}
	return len(stale), nil
}

func parseTouched(v []byte) time.Time {
	if len(v) == 0 {
		return time.Time{}
	}
	t, err := time.Parse(time.RFC3339Nano, string(v))
	if err != nil {
		return time.Time{}
	}
	return t
}

type boltScope struct {
	d      *BoltDB
	bucket []byte
}

func (s *boltScope) Get(key string) ([]byte, error) {
	var out []byte
	err := s.d.db.View(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if v := b.Get([]byte(key)); v != nil {
			out = append([]byte(nil), v...)
		}
		return nil
	})
	return out, errors.Wrapf(err, "get %s", key)
}

func (s *boltScope) Put(key string, value []byte) error {
	err := s.d.db.Update(func(tx *bolt.Tx) error {
		b, err := tx.CreateBucketIfNotExists(s.bucket)
		if err != nil {
			return err
		}
		if err := b.Put([]byte(key), value); err != nil {
			return err
		}
		return b.Put([]byte(touchedKey), []byte(s.d.now().UTC().Format(time.RFC3339Nano)))
	})
	return errors.Wrapf(err, "put %s", key)
}

func (s *boltScope) Delete(key string) error {
	err := s.d.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket(s.bucket)
		if b == nil {
			return nil
		}
		if err := b.Delete([]byte(key)); err != nil {
			return err
		}
		return b.Put([]byte(touchedKey), []byte(s.d.now().UTC().Format(time.RFC3339Nano)))
	})
	return errors.Wrapf(err, "delete %s", key)
}
