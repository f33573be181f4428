package store

import (
	"encoding/binary"
	"encoding/json"
	"sort"
	"sync/atomic"

	"github.com/0chain/errors"
	"github.com/cockroachdb/pebble"
	"github.com/lithammer/shortuuid/v3"

	"subnet-rentd/core/common"
)

// ErrNotFound is returned for a missing key in any region.
var ErrNotFound = errors.New("not_found", "no value for this key")

// Region prefixes. Each region is an independently sorted map inside the
// same pebble keyspace; prefix isolation keeps them from interleaving.
const (
	regionConditions = 'c'
	regionRequests   = 'r'
	regionAgreements = 'a'
	regionBilling    = 'b'
	regionEvents     = 'e'
)

// Store owns every domain entity. Components read a value, compute a new
// one and write it back; nothing outside the store holds a long-lived
// reference to stored state.
type Store struct {
	db *pebble.DB

	// eventSeq breaks ties between events persisted within the same second.
	eventSeq atomic.Uint64
}

// Open opens (or creates) the store under dir.
func Open(dir string) (*Store, error) {
	db, err := pebble.Open(dir, &pebble.Options{})
	if err != nil {
		return nil, err
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func regionKey(region byte, key string) []byte {
	out := make([]byte, 0, len(key)+1)
	out = append(out, region)
	return append(out, key...)
}

func (s *Store) get(region byte, key string, out interface{}) error {
	val, closer, err := s.db.Get(regionKey(region, key))
	if err == pebble.ErrNotFound {
		return errors.Throw(ErrNotFound, key)
	}
	if err != nil {
		return err
	}
	defer closer.Close()
	return json.Unmarshal(val, out)
}

func (s *Store) put(region byte, key string, val interface{}) error {
	raw, err := json.Marshal(val)
	if err != nil {
		return err
	}
	return s.db.Set(regionKey(region, key), raw, pebble.Sync)
}

func (s *Store) delete(region byte, key string) error {
	return s.db.Delete(regionKey(region, key), pebble.Sync)
}

// scan walks one region in ascending key order.
func (s *Store) scan(region byte, visit func(key string, val []byte) error) error {
	iter, err := s.db.NewIter(&pebble.IterOptions{
		LowerBound: []byte{region},
		UpperBound: []byte{region + 1},
	})
	if err != nil {
		return err
	}
	defer iter.Close()

	for iter.First(); iter.Valid(); iter.Next() {
		if err := visit(string(iter.Key()[1:]), iter.Value()); err != nil {
			return err
		}
	}
	return iter.Error()
}

// --- rental conditions catalog ---

func (s *Store) GetConditions(id string) (*RentalConditions, error) {
	cond := &RentalConditions{}
	if err := s.get(regionConditions, id, cond); err != nil {
		return nil, err
	}
	return cond, nil
}

func (s *Store) PutConditions(id string, cond *RentalConditions) error {
	if cond.Version == 0 {
		cond.Version = ConditionsVersion
	}
	return s.put(regionConditions, id, cond)
}

// Conditions returns the whole catalog in ascending id order.
func (s *Store) Conditions() (ids []string, conds []*RentalConditions, err error) {
	err = s.scan(regionConditions, func(key string, val []byte) error {
		cond := &RentalConditions{}
		if err := json.Unmarshal(val, cond); err != nil {
			return err
		}
		ids = append(ids, key)
		conds = append(conds, cond)
		return nil
	})
	return
}

// --- open rental requests ---

func (s *Store) GetRequest(user common.Identity) (*RentalRequest, error) {
	req := &RentalRequest{}
	if err := s.get(regionRequests, string(user), req); err != nil {
		return nil, err
	}
	return req, nil
}

func (s *Store) PutRequest(req *RentalRequest) error {
	if req.Version == 0 {
		req.Version = RequestVersion
	}
	return s.put(regionRequests, string(req.User), req)
}

func (s *Store) DeleteRequest(user common.Identity) error {
	return s.delete(regionRequests, string(user))
}

func (s *Store) OpenRequests() ([]*RentalRequest, error) {
	var out []*RentalRequest
	err := s.scan(regionRequests, func(_ string, val []byte) error {
		req := &RentalRequest{}
		if err := json.Unmarshal(val, req); err != nil {
			return err
		}
		out = append(out, req)
		return nil
	})
	return out, err
}

// --- active rental agreements ---

func (s *Store) GetAgreement(subnet common.Identity) (*RentalAgreement, error) {
	agr := &RentalAgreement{}
	if err := s.get(regionAgreements, string(subnet), agr); err != nil {
		return nil, err
	}
	return agr, nil
}

func (s *Store) PutAgreement(agr *RentalAgreement) error {
	if agr.Version == 0 {
		agr.Version = AgreementVersion
	}
	return s.put(regionAgreements, string(agr.Subnet), agr)
}

func (s *Store) Agreements() ([]*RentalAgreement, error) {
	var out []*RentalAgreement
	err := s.scan(regionAgreements, func(_ string, val []byte) error {
		agr := &RentalAgreement{}
		if err := json.Unmarshal(val, agr); err != nil {
			return err
		}
		out = append(out, agr)
		return nil
	})
	return out, err
}

// --- billing records ---

func (s *Store) GetBilling(subnet common.Identity) (*BillingRecord, error) {
	rec := &BillingRecord{}
	if err := s.get(regionBilling, string(subnet), rec); err != nil {
		return nil, err
	}
	return rec, nil
}

func (s *Store) PutBilling(subnet common.Identity, rec *BillingRecord) error {
	if rec.Version == 0 {
		rec.Version = BillingVersion
	}
	return s.put(regionBilling, string(subnet), rec)
}

// CreateAgreementPair persists the agreement and its billing record and
// removes the fulfilled request in one atomic batch, so a mid-sequence crash
// can never leave an agreement without billing or vice versa.
func (s *Store) CreateAgreementPair(agr *RentalAgreement, rec *BillingRecord, requestUser common.Identity) error {
	if agr.Version == 0 {
		agr.Version = AgreementVersion
	}
	if rec.Version == 0 {
		rec.Version = BillingVersion
	}

	rawAgr, err := json.Marshal(agr)
	if err != nil {
		return err
	}
	rawRec, err := json.Marshal(rec)
	if err != nil {
		return err
	}

	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Set(regionKey(regionAgreements, string(agr.Subnet)), rawAgr, nil); err != nil {
		return err
	}
	if err := batch.Set(regionKey(regionBilling, string(agr.Subnet)), rawRec, nil); err != nil {
		return err
	}
	if err := batch.Delete(regionKey(regionRequests, string(requestUser)), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// DeleteAgreementPair removes the agreement and its billing record in one
// atomic batch.
func (s *Store) DeleteAgreementPair(subnet common.Identity) error {
	batch := s.db.NewBatch()
	defer batch.Close()
	if err := batch.Delete(regionKey(regionAgreements, string(subnet)), nil); err != nil {
		return err
	}
	if err := batch.Delete(regionKey(regionBilling, string(subnet)), nil); err != nil {
		return err
	}
	return batch.Commit(pebble.Sync)
}

// --- audit log ---

// eventKey sorts events of one subject by creation time, then by a sequence
// number for events within the same second. Subjects never contain a zero
// byte, so the separator keeps subjects from prefixing each other.
func (s *Store) eventKey(subject common.Identity, at common.Timestamp) []byte {
	key := make([]byte, 0, len(subject)+18)
	key = append(key, regionEvents)
	key = append(key, subject...)
	key = append(key, 0)
	key = binary.BigEndian.AppendUint64(key, uint64(at))
	key = binary.BigEndian.AppendUint64(key, s.eventSeq.Add(1))
	return key
}

// PersistEvent appends the event to the subject's log, creating the log on
// first use. Events are never mutated or deleted.
func (s *Store) PersistEvent(ev *Event, subject common.Identity) error {
	if ev.Version == 0 {
		ev.Version = EventVersion
	}
	if ev.ID == "" {
		ev.ID = shortuuid.New()
	}
	if ev.CreatedAt == 0 {
		ev.CreatedAt = common.Now()
	}
	ev.Subject = subject

	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return s.db.Set(s.eventKey(subject, ev.CreatedAt), raw, pebble.Sync)
}

// History returns the subject's events sorted ascending by creation time.
func (s *Store) History(subject common.Identity) ([]*Event, error) {
	lower := append([]byte{regionEvents}, subject...)
	lower = append(lower, 0)
	upper := append([]byte{regionEvents}, subject...)
	upper = append(upper, 1)

	iter, err := s.db.NewIter(&pebble.IterOptions{LowerBound: lower, UpperBound: upper})
	if err != nil {
		return nil, err
	}
	defer iter.Close()

	var out []*Event
	for iter.First(); iter.Valid(); iter.Next() {
		ev := &Event{}
		if err := json.Unmarshal(iter.Value(), ev); err != nil {
			return nil, err
		}
		out = append(out, ev)
	}
	return out, iter.Error()
}

// AllHistory returns every event of every subject sorted ascending by
// creation time.
func (s *Store) AllHistory() ([]*Event, error) {
	var out []*Event
	err := s.scan(regionEvents, func(_ string, val []byte) error {
		ev := &Event{}
		if err := json.Unmarshal(val, ev); err != nil {
			return err
		}
		out = append(out, ev)
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.SliceStable(out, func(i, j int) bool { return out[i].CreatedAt < out[j].CreatedAt })
	return out, nil
}
