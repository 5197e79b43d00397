// BoltDB-backed persistence for the Memory Vault.
//
// Bucket layout:
//
//	/shards
//	    key:   memory_id
//	    value: JSON-encoded Shard
//
//	/audit
//	    key:   fixed-width nanosecond UTC timestamp + "_" + zero-padded sequence number
//	           (monotonic, sortable)
//	    value: JSON-encoded AuditEntry
//
//	/meta
//	    key:   "schema_version"
//	    value: "1"
//
// Consistency model: single-process, single-writer (bbolt does not support
// concurrent writers). All writes use ACID transactions (bolt.Tx.Commit);
// reads use read-only transactions (bolt.DB.View), which proceed
// concurrently with each other and are serialized only against the writer.
package vault

import (
	"encoding/json"
	"fmt"
	"sync/atomic"
	"time"

	bolt "go.etcd.io/bbolt"

	"github.com/octoreflex/cognition/internal/corekit"
	"github.com/octoreflex/cognition/internal/harmonizer"
)

const (
	schemaVersion   = "1"
	bucketShards    = "shards"
	bucketAudit     = "audit"
	bucketMeta      = "meta"
	metaSchemaKey   = "schema_version"
)

// BoltStore is the BoltDB-backed Store implementation.
type BoltStore struct {
	db         *bolt.DB
	harmonizer *harmonizer.Harmonizer
	auditSeq   uint64
}

// OpenBoltStore opens (or creates) the BoltDB file at path, initializes the
// bucket layout, and verifies the schema version.
func OpenBoltStore(path string, h *harmonizer.Harmonizer) (*BoltStore, error) {
	bdb, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 5 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("vault: bolt.Open(%q): %w", path, err)
	}

	s := &BoltStore{db: bdb, harmonizer: h}

	if err := s.db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{bucketShards, bucketAudit, bucketMeta} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return fmt.Errorf("CreateBucketIfNotExists(%q): %w", name, err)
			}
		}
		meta := tx.Bucket([]byte(bucketMeta))
		if meta.Get([]byte(metaSchemaKey)) == nil {
			return meta.Put([]byte(metaSchemaKey), []byte(schemaVersion))
		}
		return nil
	}); err != nil {
		_ = bdb.Close()
		return nil, fmt.Errorf("vault: database initialization failed: %w", err)
	}

	if err := s.checkSchemaVersion(); err != nil {
		_ = bdb.Close()
		return nil, err
	}

	return s, nil
}

func (s *BoltStore) checkSchemaVersion() error {
	return s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(bucketMeta)).Get([]byte(metaSchemaKey))
		if string(v) != schemaVersion {
			return fmt.Errorf("vault: schema version mismatch: database has %q, service requires %q", string(v), schemaVersion)
		}
		return nil
	})
}

func (s *BoltStore) Close() error { return s.db.Close() }

func (s *BoltStore) StoreShard(memoryID string, payload map[string]any, resonance ResonanceTag) (string, error) {
	digest, err := corekit.CanonicalDigest(payload)
	if err != nil {
		return "", fmt.Errorf("vault: digest payload: %w", err)
	}

	now := time.Now().UTC()
	if resonance.CreatedAt.IsZero() {
		resonance.CreatedAt = now
	}
	shard := Shard{
		MemoryID:      memoryID,
		Payload:       payload,
		Resonance:     resonance,
		CreatedAt:     now,
		LastModified:  now,
		HashSignature: digest,
	}

	err = s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketShards))
		if b.Get([]byte(memoryID)) != nil {
			return ErrAlreadyExists
		}
		data, err := json.Marshal(shard)
		if err != nil {
			return fmt.Errorf("marshal shard: %w", err)
		}
		if err := b.Put([]byte(memoryID), data); err != nil {
			return err
		}
		return s.putAuditLocked(tx, AuditEntry{
			Timestamp: now,
			Action:    ActionStore,
			MemoryID:  memoryID,
			Verdict:   VerdictApproved,
			Resonance: &resonance,
		})
	})
	if err != nil {
		return "", err
	}
	return digest, nil
}

func (s *BoltStore) Modify(memoryID string, newPayload map[string]any, context map[string]any, consentApproved bool, consentVerdict Verdict, newResonance *ResonanceTag) (bool, string, error) {
	var applied bool
	var reason string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketShards))
		data := b.Get([]byte(memoryID))
		if data == nil {
			return ErrNotFound
		}
		var shard Shard
		if err := json.Unmarshal(data, &shard); err != nil {
			return fmt.Errorf("unmarshal shard: %w", err)
		}

		drift, adjustedMoral := s.harmonizer.Reflect(shard.Payload, newPayload, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

		entryVerdict := consentVerdict
		reason = string(consentVerdict)

		if consentApproved {
			digest, err := corekit.CanonicalDigest(newPayload)
			if err != nil {
				return fmt.Errorf("digest payload: %w", err)
			}
			now := time.Now().UTC()
			shard.Payload = newPayload
			if newResonance != nil {
				shard.Resonance = *newResonance
			}
			shard.LastModified = now
			shard.HashSignature = digest
			out, err := json.Marshal(shard)
			if err != nil {
				return fmt.Errorf("marshal shard: %w", err)
			}
			if err := b.Put([]byte(memoryID), out); err != nil {
				return err
			}
			applied = true
			reason = "approved"
			entryVerdict = VerdictApproved
		}

		return s.putAuditLocked(tx, AuditEntry{
			Timestamp:           time.Now().UTC(),
			Action:              ActionModify,
			MemoryID:            memoryID,
			Verdict:             entryVerdict,
			Resonance:           &shard.Resonance,
			EthicalDrift:        drift,
			AdjustedMoralCharge: adjustedMoral,
		})
	})
	if err != nil {
		return false, "error", err
	}
	return applied, reason, nil
}

func (s *BoltStore) Delete(memoryID string, context map[string]any, consentApproved bool, consentVerdict Verdict) (bool, string, error) {
	var applied bool
	var reason string

	err := s.db.Update(func(tx *bolt.Tx) error {
		b := tx.Bucket([]byte(bucketShards))
		data := b.Get([]byte(memoryID))
		if data == nil {
			return ErrNotFound
		}
		var shard Shard
		if err := json.Unmarshal(data, &shard); err != nil {
			return fmt.Errorf("unmarshal shard: %w", err)
		}

		drift, adjustedMoral := s.harmonizer.Reflect(shard.Payload, nil, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

		entryVerdict := consentVerdict
		reason = string(consentVerdict)

		if consentApproved {
			if err := b.Delete([]byte(memoryID)); err != nil {
				return err
			}
			applied = true
			reason = "approved"
			entryVerdict = VerdictApproved
		}

		return s.putAuditLocked(tx, AuditEntry{
			Timestamp:           time.Now().UTC(),
			Action:              ActionDelete,
			MemoryID:            memoryID,
			Verdict:             entryVerdict,
			EthicalDrift:        drift,
			AdjustedMoralCharge: adjustedMoral,
		})
	})
	if err != nil {
		return false, "error", err
	}
	return applied, reason, nil
}

func (s *BoltStore) Get(memoryID string) (Shard, error) {
	var shard Shard
	var found bool
	err := s.db.View(func(tx *bolt.Tx) error {
		data := tx.Bucket([]byte(bucketShards)).Get([]byte(memoryID))
		if data == nil {
			return nil
		}
		found = true
		return json.Unmarshal(data, &shard)
	})
	if err != nil {
		return Shard{}, err
	}
	if !found {
		return Shard{}, ErrNotFound
	}
	return shard, nil
}

func (s *BoltStore) QueryByResonance(filter ResonanceFilter) ([]Shard, error) {
	var out []Shard
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketShards)).ForEach(func(_, v []byte) error {
			var shard Shard
			if err := json.Unmarshal(v, &shard); err != nil {
				return err
			}
			if filter.matches(shard.Resonance) {
				out = append(out, shard)
			}
			return nil
		})
	})
	return out, err
}

func (s *BoltStore) Reflect(memoryID string, hypotheticalPayload map[string]any) (ReflectResult, error) {
	shard, err := s.Get(memoryID)
	if err != nil {
		return ReflectResult{}, err
	}

	drift, adjustedMoral := s.harmonizer.Reflect(shard.Payload, hypotheticalPayload, shard.Resonance.MoralCharge, shard.Resonance.Intensity)

	var history []AuditEntry
	err = s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAudit)).ForEach(func(_, v []byte) error {
			var e AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			if e.MemoryID == memoryID {
				history = append(history, e)
			}
			return nil
		})
	})
	if err != nil {
		return ReflectResult{}, err
	}

	return ReflectResult{
		CurrentResonance: shard.Resonance,
		Drift:            drift,
		AdjustedMoral:    adjustedMoral,
		History:          history,
	}, nil
}

func (s *BoltStore) AuditLog() ([]AuditEntry, error) {
	var entries []AuditEntry
	err := s.db.View(func(tx *bolt.Tx) error {
		return tx.Bucket([]byte(bucketAudit)).ForEach(func(_, v []byte) error {
			var e AuditEntry
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			entries = append(entries, e)
			return nil
		})
	})
	return entries, err
}

func (s *BoltStore) AppendAudit(entry AuditEntry) error {
	if entry.Timestamp.IsZero() {
		entry.Timestamp = time.Now().UTC()
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		return s.putAuditLocked(tx, entry)
	})
}

// putAuditLocked writes entry under a sortable key within an open
// transaction. Must only be called from inside db.Update.
func (s *BoltStore) putAuditLocked(tx *bolt.Tx, entry AuditEntry) error {
	seq := atomic.AddUint64(&s.auditSeq, 1)
	key := auditKey(entry.Timestamp, seq)
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("marshal audit entry: %w", err)
	}
	return tx.Bucket([]byte(bucketAudit)).Put(key, data)
}

// auditKey builds a lexicographically sortable key: fixed-width nanosecond
// UTC timestamp followed by a zero-padded monotonic sequence number, so
// lexicographic order equals chronological append order even within the
// same nanosecond.
func auditKey(t time.Time, seq uint64) []byte {
	return []byte(fmt.Sprintf("%s_%020d", t.UTC().Format("2006-01-02T15:04:05.000000000Z07:00"), seq))
}
