package store

import (
	"bytes"
	"iter"
	"sync"
	"unsafe"

	"github.com/pkg/errors"

	"github.com/outofforest/photon"
	"github.com/outofforest/replica/hash"
	"github.com/outofforest/replica/index"
	"github.com/outofforest/replica/slab"
	"github.com/outofforest/replica/types"
)

// ErrHashCollision is returned if two different keys produce the same hash.
var ErrHashCollision = errors.New("hash collision")

// Config stores configuration of the record store.
// Zero Slab config is replaced by slab.DefaultConfig.
type Config struct {
	Slab          slab.Config `yaml:"slab"`
	IndexCapacity uint64      `yaml:"indexCapacity"`
}

// DefaultConfig is the default store configuration.
var DefaultConfig = Config{
	Slab:          slab.DefaultConfig,
	IndexCapacity: 1024,
}

// Change describes modification of single record.
type Change struct {
	Type  types.ChangeType
	Key   []byte
	Value []byte
}

type recordHeader struct {
	KeyLength uint32
}

const recordHeaderSize = uint64(unsafe.Sizeof(recordHeader{}))

// New creates new record store.
func New(config Config) (*Store, error) {
	if config.Slab == (slab.Config{}) {
		config.Slab = slab.DefaultConfig
	}

	arena, err := slab.New(config.Slab)
	if err != nil {
		return nil, err
	}

	return &Store{
		arena:   arena,
		index:   index.New(config.IndexCapacity),
		version: types.VersionNull,
		tag:     types.NullTag,
	}, nil
}

// Store keeps records in the slab arena, addressed by the hash of their keys.
// Keys are stored next to values and verified on read. Two keys sharing the hash cannot be
// stored together, second one is rejected with ErrHashCollision.
// All the methods are safe for concurrent use.
type Store struct {
	mu      sync.RWMutex
	arena   *slab.Arena
	index   *index.Index
	version types.Version
	tag     types.Tag
}

// Put stores the value under the key.
func (s *Store) Put(key, value []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validatePut(key, value); err != nil {
		return err
	}
	if err := s.ensureUnique(key); err != nil {
		return err
	}
	return s.put(key, value)
}

// Get returns copy of the value stored under the key.
func (s *Store) Get(key []byte) ([]byte, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ptr, exists := s.lookup(key)
	if !exists {
		return nil, false
	}
	_, value := s.record(ptr)
	return bytes.Clone(value), true
}

// Remove deletes the key and returns the value stored under it.
func (s *Store) Remove(key []byte) ([]byte, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	return s.remove(key)
}

// Apply applies all the changes and sets new version atomically.
// Readers observe either the state before or after all the changes.
// If error is returned the state is left untouched.
func (s *Store) Apply(version types.Version, tag types.Tag, changes []*Change) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.validate(changes); err != nil {
		return err
	}

	for _, c := range changes {
		switch c.Type {
		case types.ChangePut:
			if err := s.put(c.Key, c.Value); err != nil {
				return err
			}
		case types.ChangeRemove:
			s.remove(c.Key)
		}
	}

	s.version = version
	s.tag = tag
	return nil
}

// Check verifies that changes might be applied without failure.
func (s *Store) Check(changes []*Change) error {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.validate(changes)
}

// Version returns the version of the records.
func (s *Store) Version() types.Version {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version
}

// State returns the version of the records together with the tag of the cycle producing it.
func (s *Store) State() (types.Version, types.Tag) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.version, s.tag
}

// Len returns the number of records.
func (s *Store) Len() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.index.Len()
}

// Stats returns stats of the slab arena.
func (s *Store) Stats() Stats {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return Stats{
		Records:        s.index.Len(),
		AllocatedBytes: s.arena.AllocatedBytes(),
		ReservedBytes:  s.arena.ReservedBytes(),
		Classes:        s.arena.Stats(),
	}
}

// Stats stores stats of the store.
type Stats struct {
	Records        uint64
	AllocatedBytes uint64
	ReservedBytes  uint64
	Classes        []slab.ClassStats
}

// Iterator iterates over records in unspecified order.
// Yielded slices are valid only inside the loop body and the store must not be modified there.
func (s *Store) Iterator() iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		s.mu.RLock()
		defer s.mu.RUnlock()

		for _, ptr := range s.index.Iterator() {
			if !yield(s.record(ptr)) {
				return
			}
		}
	}
}

// Close releases the memory.
func (s *Store) Close() {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.arena.Close()
	s.index = index.New(0)
}

func (s *Store) validatePut(key, value []byte) error {
	if !s.arena.Fits(recordHeaderSize + uint64(len(key)) + uint64(len(value))) {
		return errors.Wrapf(slab.ErrPayloadTooLarge, "key: %q, value size: %d", key, len(value))
	}
	return nil
}

// validate checks that changes might be applied without failure before anything is modified.
func (s *Store) validate(changes []*Change) error {
	owners := map[types.KeyHash][]byte{}
	for _, c := range changes {
		h := hash.Key(c.Key)
		owner, exists := owners[h]
		if !exists {
			if ptr, exists := s.index.Get(h); exists {
				owner, _ = s.record(ptr)
			}
		}

		switch c.Type {
		case types.ChangePut:
			if err := s.validatePut(c.Key, c.Value); err != nil {
				return err
			}
			if owner != nil && !bytes.Equal(owner, c.Key) {
				return errors.Wrapf(ErrHashCollision, "keys %q and %q", owner, c.Key)
			}
			owner = c.Key
		case types.ChangeRemove:
			if bytes.Equal(owner, c.Key) {
				owner = nil
			}
		default:
			return errors.Errorf("unknown change type %d", c.Type)
		}
		owners[h] = owner
	}
	return nil
}

func (s *Store) ensureUnique(key []byte) error {
	ptr, exists := s.index.Get(hash.Key(key))
	if !exists {
		return nil
	}
	if storedKey, _ := s.record(ptr); !bytes.Equal(storedKey, key) {
		return errors.Wrapf(ErrHashCollision, "keys %q and %q", storedKey, key)
	}
	return nil
}

func (s *Store) put(key, value []byte) error {
	h := hash.Key(key)
	ptr, data, err := s.arena.Reserve(recordHeaderSize + uint64(len(key)) + uint64(len(value)))
	if err != nil {
		return err
	}
	photon.FromBytes[recordHeader](data).KeyLength = uint32(len(key))
	copy(data[recordHeaderSize:], key)
	copy(data[recordHeaderSize+uint64(len(key)):], value)

	if old, exists := s.index.Get(h); exists {
		s.arena.Free(old)
	}
	s.index.Put(h, ptr)
	return nil
}

func (s *Store) remove(key []byte) ([]byte, bool) {
	ptr, exists := s.lookup(key)
	if !exists {
		return nil, false
	}

	_, value := s.record(ptr)
	value = bytes.Clone(value)
	s.index.Remove(hash.Key(key))
	s.arena.Free(ptr)
	return value, true
}

func (s *Store) lookup(key []byte) (types.Pointer, bool) {
	ptr, exists := s.index.Get(hash.Key(key))
	if !exists {
		return types.NullPointer, false
	}
	if storedKey, _ := s.record(ptr); !bytes.Equal(storedKey, key) {
		return types.NullPointer, false
	}
	return ptr, true
}

func (s *Store) record(ptr types.Pointer) ([]byte, []byte) {
	data := s.arena.Get(ptr)
	keyLength := uint64(photon.FromBytes[recordHeader](data).KeyLength)
	return data[recordHeaderSize : recordHeaderSize+keyLength], data[recordHeaderSize+keyLength:]
}
