// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package badger

import (
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/poiesic/phrasebook/storage"
)

// saveBuildRecord persists the lifecycle state of a revision.
func saveBuildRecord(tx *badger.Txn, revision, index string, state storage.BuildState) error {
	record := &storage.BuildRecord{
		Revision:  revision,
		Index:     index,
		State:     state,
		StartedAt: time.Now().UTC(),
	}
	return tx.Set(makeBuildKey(revision), storage.MarshalBuildRecord(record))
}

// listBuildRecords returns every revision that is staged or awaiting removal.
func listBuildRecords(tx *badger.Txn) ([]*storage.BuildRecord, error) {
	var records []*storage.BuildRecord
	opts := badger.DefaultIteratorOptions
	opts.Prefix = []byte(buildPrefix)
	iter := tx.NewIterator(opts)
	defer iter.Close()

	for iter.Rewind(); iter.Valid(); iter.Next() {
		err := iter.Item().Value(func(val []byte) error {
			record, err := storage.UnmarshalBuildRecord(val)
			if err != nil {
				return err
			}
			records = append(records, record)
			return nil
		})
		if err != nil {
			return nil, err
		}
	}
	return records, nil
}

// dropRevision deletes all keys of a revision and then its build record.
func (r *CorpusRepository) dropRevision(revision string) error {
	r.vectors.evict(revision)
	if err := r.backend.DropPrefix(makeRevisionPrefix(revision)); err != nil {
		return err
	}
	return r.backend.WithTx(func(tx *badger.Txn) error {
		if err := tx.Delete(makeBuildKey(revision)); err != nil {
			return err
		}
		return tx.Commit()
	}, true)
}

// purgeBuilds removes revisions left behind by builds that never finished
// and by replacements that were interrupted before cleanup.
func (r *CorpusRepository) purgeBuilds() error {
	var records []*storage.BuildRecord
	err := r.backend.WithTx(func(tx *badger.Txn) error {
		var err error
		records, err = listBuildRecords(tx)
		return err
	}, false)
	if err != nil {
		return err
	}

	for _, record := range records {
		r.logger.Info("purging unfinished revision",
			"index", record.Index,
			"revision", record.Revision,
			"state", record.State,
			"started_at", record.StartedAt)
		if err := r.dropRevision(record.Revision); err != nil {
			return err
		}
	}
	return nil
}
