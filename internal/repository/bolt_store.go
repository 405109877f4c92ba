package repository

import (
	"bytes"
	"context"
	"encoding/binary"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	"go.etcd.io/bbolt"

	"RiskPulse/internal/domain/models"
	domrepo "RiskPulse/internal/domain/repository"
)

var (
	bucketSymbols    = []byte("symbols")
	bucketBands      = []byte("time_spent_bands")
	bucketRiskLevels = []byte("risk_levels")
	bucketOverrides  = []byte("manual_overrides")
	bucketOutcomes   = []byte("outcomes")
)

// BoltStore implements Store on an embedded bbolt file. Rows are JSON values;
// composite keys keep per-symbol ranges contiguous for cursor scans.
type BoltStore struct {
	db *bbolt.DB
}

var _ domrepo.Store = (*BoltStore)(nil)

// OpenBolt opens (or creates) the database file at path.
func OpenBolt(path string) (*BoltStore, error) {
	db, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, fmt.Errorf("open boltdb: %w", err)
	}
	return &BoltStore{db: db}, nil
}

func (s *BoltStore) Init(_ context.Context) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		for _, b := range [][]byte{bucketSymbols, bucketBands, bucketRiskLevels, bucketOverrides, bucketOutcomes} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return fmt.Errorf("create bucket %s: %w", b, err)
			}
		}
		return nil
	})
}

func (s *BoltStore) bucket(tx *bbolt.Tx, name []byte) (*bbolt.Bucket, error) {
	b := tx.Bucket(name)
	if b == nil {
		return nil, fmt.Errorf("bucket %s not found; call Init", name)
	}
	return b, nil
}

func (s *BoltStore) LoadSymbols(_ context.Context) ([]models.SymbolBounds, error) {
	var out []models.SymbolBounds
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketSymbols)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var sb models.SymbolBounds
			if err := json.Unmarshal(v, &sb); err != nil {
				return err
			}
			sb.Revision = 0
			out = append(out, sb)
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("load symbols: %w", err)
	}
	return out, nil
}

func putSymbol(b *bbolt.Bucket, sb models.SymbolBounds) error {
	sb.Revision = 0
	data, err := json.Marshal(sb)
	if err != nil {
		return err
	}
	return b.Put([]byte(sb.Symbol), data)
}

func (s *BoltStore) UpsertSymbol(_ context.Context, sb models.SymbolBounds) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketSymbols)
		if err != nil {
			return err
		}
		return putSymbol(b, sb)
	})
}

func (s *BoltStore) UpdateBounds(_ context.Context, sb models.SymbolBounds, overrides []models.ManualOverride) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		ob, err := s.bucket(tx, bucketOverrides)
		if err != nil {
			return err
		}
		for _, o := range overrides {
			if _, err := appendOverride(ob, o); err != nil {
				return err
			}
		}
		sbk, err := s.bucket(tx, bucketSymbols)
		if err != nil {
			return err
		}
		return putSymbol(sbk, sb)
	})
}

func (s *BoltStore) LoadBands(_ context.Context, symbol string) ([]models.BandTimeRecord, error) {
	var out []models.BandTimeRecord
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketBands)
		if err != nil {
			return err
		}
		v := b.Get([]byte(symbol))
		if v == nil {
			return nil
		}
		return json.Unmarshal(v, &out)
	})
	if err != nil {
		return nil, fmt.Errorf("load bands %s: %w", symbol, err)
	}
	return out, nil
}

func (s *BoltStore) ReplaceBands(_ context.Context, symbol string, bands []models.BandTimeRecord) error {
	for _, r := range bands {
		if r.BandEnd <= r.BandStart {
			return fmt.Errorf("band %s/%v: band_end must exceed band_start", symbol, r.BandStart)
		}
	}
	bands = append([]models.BandTimeRecord(nil), bands...)
	sort.Slice(bands, func(i, j int) bool { return bands[i].BandStart < bands[j].BandStart })
	data, err := json.Marshal(bands)
	if err != nil {
		return err
	}
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketBands)
		if err != nil {
			return err
		}
		return b.Put([]byte(symbol), data)
	})
}

func riskLevelKey(symbol string, risk float64) []byte {
	return append(symbolPrefix(symbol), strconv.FormatFloat(risk, 'f', 6, 64)...)
}

func symbolPrefix(symbol string) []byte {
	return append([]byte(symbol), 0)
}

func (s *BoltStore) SaveRiskLevels(_ context.Context, levels []models.RiskLevel) error {
	return s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketRiskLevels)
		if err != nil {
			return err
		}
		for _, lv := range levels {
			data, err := json.Marshal(lv)
			if err != nil {
				return err
			}
			if err := b.Put(riskLevelKey(lv.Symbol, lv.RiskValue), data); err != nil {
				return err
			}
		}
		return nil
	})
}

func (s *BoltStore) LoadRiskLevels(_ context.Context, symbol string) ([]models.RiskLevel, error) {
	var out []models.RiskLevel
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketRiskLevels)
		if err != nil {
			return err
		}
		prefix := symbolPrefix(symbol)
		c := b.Cursor()
		for k, v := c.Seek(prefix); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var lv models.RiskLevel
			if err := json.Unmarshal(v, &lv); err != nil {
				return err
			}
			out = append(out, lv)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("load risk levels %s: %w", symbol, err)
	}
	return out, nil
}

func itob(v uint64) []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, v)
	return b
}

// appendOverride deactivates the active override of the same (symbol, type) and stores o.
func appendOverride(b *bbolt.Bucket, o models.ManualOverride) (int64, error) {
	c := b.Cursor()
	for k, v := c.First(); k != nil; k, v = c.Next() {
		var prev models.ManualOverride
		if err := json.Unmarshal(v, &prev); err != nil {
			return 0, err
		}
		if prev.IsActive && prev.Symbol == o.Symbol && prev.OverrideType == o.OverrideType {
			prev.IsActive = false
			data, err := json.Marshal(prev)
			if err != nil {
				return 0, err
			}
			if err := b.Put(k, data); err != nil {
				return 0, err
			}
		}
	}
	seq, err := b.NextSequence()
	if err != nil {
		return 0, err
	}
	o.ID = int64(seq)
	o.IsActive = true
	data, err := json.Marshal(o)
	if err != nil {
		return 0, err
	}
	if err := b.Put(itob(seq), data); err != nil {
		return 0, err
	}
	return o.ID, nil
}

func (s *BoltStore) AppendOverride(_ context.Context, o models.ManualOverride) (int64, error) {
	var id int64
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketOverrides)
		if err != nil {
			return err
		}
		id, err = appendOverride(b, o)
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("append override %s: %w", o.Symbol, err)
	}
	return id, nil
}

func (s *BoltStore) ListOverrides(_ context.Context, symbol string) ([]models.ManualOverride, error) {
	var out []models.ManualOverride
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketOverrides)
		if err != nil {
			return err
		}
		return b.ForEach(func(_, v []byte) error {
			var o models.ManualOverride
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			if o.Symbol == symbol {
				out = append(out, o)
			}
			return nil
		})
	})
	if err != nil {
		return nil, fmt.Errorf("list overrides %s: %w", symbol, err)
	}
	return out, nil
}

// outcomeKey orders outcomes by symbol, then timestamp, then id.
func outcomeKey(symbol string, ts time.Time, id uint64) []byte {
	k := symbolPrefix(symbol)
	k = append(k, itob(uint64(ts.UnixNano()))...)
	return append(k, itob(id)...)
}

func (s *BoltStore) AppendOutcome(_ context.Context, o models.Outcome) (int64, error) {
	if o.Timestamp.Before(time.Unix(0, 0)) {
		return 0, errors.New("append outcome: timestamp before unix epoch")
	}
	err := s.db.Update(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketOutcomes)
		if err != nil {
			return err
		}
		seq, err := b.NextSequence()
		if err != nil {
			return err
		}
		o.ID = int64(seq)
		data, err := json.Marshal(o)
		if err != nil {
			return err
		}
		return b.Put(outcomeKey(o.Symbol, o.Timestamp, seq), data)
	})
	if err != nil {
		return 0, fmt.Errorf("append outcome %s: %w", o.Symbol, err)
	}
	return o.ID, nil
}

func (s *BoltStore) ListOutcomes(_ context.Context, symbol string, from, to time.Time) ([]models.Outcome, error) {
	var out []models.Outcome
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketOutcomes)
		if err != nil {
			return err
		}
		prefix := symbolPrefix(symbol)
		start := prefix
		if from.After(time.Unix(0, 0)) {
			start = outcomeKey(symbol, from, 0)
		}
		c := b.Cursor()
		for k, v := c.Seek(start); k != nil && bytes.HasPrefix(k, prefix); k, v = c.Next() {
			var o models.Outcome
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			if o.Timestamp.After(to) {
				break
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("list outcomes %s: %w", symbol, err)
	}
	return out, nil
}

func (s *BoltStore) RecentOutcomes(_ context.Context, symbol string, n int) ([]models.Outcome, error) {
	var out []models.Outcome
	err := s.db.View(func(tx *bbolt.Tx) error {
		b, err := s.bucket(tx, bucketOutcomes)
		if err != nil {
			return err
		}
		prefix := symbolPrefix(symbol)
		upper := append([]byte(symbol), 1)
		c := b.Cursor()
		k, v := c.Seek(upper)
		if k == nil {
			k, v = c.Last()
		} else {
			k, v = c.Prev()
		}
		for ; k != nil && bytes.HasPrefix(k, prefix) && len(out) < n; k, v = c.Prev() {
			var o models.Outcome
			if err := json.Unmarshal(v, &o); err != nil {
				return err
			}
			out = append(out, o)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("recent outcomes %s: %w", symbol, err)
	}
	for i, j := 0, len(out)-1; i < j; i, j = i+1, j-1 {
		out[i], out[j] = out[j], out[i]
	}
	return out, nil
}

func (s *BoltStore) Health(_ context.Context) error {
	return s.db.View(func(tx *bbolt.Tx) error {
		_, err := s.bucket(tx, bucketSymbols)
		return err
	})
}

func (s *BoltStore) Close() error {
	return s.db.Close()
}
