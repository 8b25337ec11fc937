package blobstore

import (
	"bytes"
	"context"
	"sync"

	"github.com/pkg/errors"

	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/hash"
	"github.com/outofforest/replica/types"
)

// ErrDigestMismatch is returned if stored artifact does not match its digest.
var ErrDigestMismatch = errors.New("digest mismatch")

type key struct {
	Kind    blob.Kind
	Version types.Version
}

type entry struct {
	Artifact blob.Artifact
	Digest   types.Hash
}

// New creates new in-memory blob store.
func New() *Store {
	return &Store{
		artifacts: map[key]entry{},
		announced: types.VersionNull,
	}
}

// Store keeps published artifacts in memory and serves them to consumers.
type Store struct {
	mu        sync.RWMutex
	artifacts map[key]entry
	announced types.Version
}

// Publish stores the artifact.
func (s *Store) Publish(ctx context.Context, artifact *blob.Artifact) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	k, err := keyOf(artifact)
	if err != nil {
		return err
	}

	a := *artifact
	a.Data = bytes.Clone(artifact.Data)

	s.mu.Lock()
	defer s.mu.Unlock()

	s.artifacts[k] = entry{
		Artifact: a,
		Digest:   hash.Digest(a.Data),
	}
	return nil
}

// Announce records the version as the latest one available to consumers.
func (s *Store) Announce(ctx context.Context, version types.Version) error {
	if err := ctx.Err(); err != nil {
		return errors.WithStack(err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.announced = version
	return nil
}

// Latest returns the latest announced version.
func (s *Store) Latest(ctx context.Context) (types.Version, error) {
	if err := ctx.Err(); err != nil {
		return types.VersionNull, errors.WithStack(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	return s.announced, nil
}

// RetrieveHeader returns the header of the version.
func (s *Store) RetrieveHeader(ctx context.Context, version types.Version) (*blob.Artifact, error) {
	return s.retrieve(ctx, key{Kind: blob.KindHeader, Version: version})
}

// RetrieveDelta returns the forward delta starting at version - 1.
func (s *Store) RetrieveDelta(ctx context.Context, version types.Version) (*blob.Artifact, error) {
	return s.retrieve(ctx, key{Kind: blob.KindDelta, Version: version})
}

// RetrieveReverseDelta returns the reverse delta starting at version + 1.
func (s *Store) RetrieveReverseDelta(ctx context.Context, version types.Version) (*blob.Artifact, error) {
	return s.retrieve(ctx, key{Kind: blob.KindReverseDelta, Version: version})
}

// Delete removes the artifact available under the same version it is retrieved with.
func (s *Store) Delete(kind blob.Kind, version types.Version) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.artifacts, key{Kind: kind, Version: version})
}

// Len returns the number of stored artifacts.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	return len(s.artifacts)
}

func (s *Store) retrieve(ctx context.Context, k key) (*blob.Artifact, error) {
	if err := ctx.Err(); err != nil {
		return nil, errors.WithStack(err)
	}

	s.mu.RLock()
	defer s.mu.RUnlock()

	e, exists := s.artifacts[k]
	if !exists {
		return nil, nil
	}
	if hash.Digest(e.Artifact.Data) != e.Digest {
		return nil, errors.Wrapf(ErrDigestMismatch, "%s of version %d", k.Kind, k.Version)
	}

	a := e.Artifact
	a.Data = bytes.Clone(e.Artifact.Data)
	return &a, nil
}

func keyOf(artifact *blob.Artifact) (key, error) {
	switch artifact.Kind {
	case blob.KindHeader:
		return key{Kind: blob.KindHeader, Version: artifact.ToVersion}, nil
	case blob.KindDelta:
		return key{Kind: blob.KindDelta, Version: artifact.FromVersion + 1}, nil
	case blob.KindReverseDelta:
		return key{Kind: blob.KindReverseDelta, Version: artifact.FromVersion - 1}, nil
	default:
		return key{}, errors.Errorf("unknown artifact kind %d", artifact.Kind)
	}
}
