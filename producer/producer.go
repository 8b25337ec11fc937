package producer

import (
	"bytes"
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/metrics"
	"github.com/outofforest/replica/store"
	"github.com/outofforest/replica/types"
)

// Publisher durably stores artifacts.
type Publisher interface {
	Publish(ctx context.Context, artifact *blob.Artifact) error
}

// Announcer announces the latest version available to consumers.
type Announcer interface {
	Announce(ctx context.Context, version types.Version) error
}

type committedState interface {
	Get(key []byte) ([]byte, bool)
	Check(changes []*store.Change) error
	Apply(version types.Version, tag types.Tag, changes []*store.Change) error
	Stats() store.Stats
	Close()
}

// Config stores producer configuration.
type Config struct {
	Publisher Publisher
	Announcer Announcer
	Minter    Minter
	Store     store.Config
	Blob      *blob.Options
	Metrics   *metrics.Metrics
}

// New creates new producer.
func New(config Config) (*Producer, error) {
	if config.Publisher == nil || config.Announcer == nil {
		return nil, errors.New("publisher and announcer are required")
	}
	if config.Minter == nil {
		config.Minter = NewSequencedMinter()
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New(nil)
	}

	state, err := store.New(config.Store)
	if err != nil {
		return nil, err
	}

	return &Producer{
		config:  config,
		state:   state,
		pointer: NewPointer(types.VersionNull),
		tag:     types.NullTag,
		schemas: map[string]int32{},
	}, nil
}

// Producer publishes versions of the records.
// It must be driven by single goroutine.
type Producer struct {
	config  Config
	state   committedState
	pointer Pointer
	tag     types.Tag
	schemas map[string]int32
}

// Version returns the latest committed version.
func (p *Producer) Version() types.Version {
	return p.pointer.Current()
}

// Get returns the value committed under the key of the schema.
func (p *Producer) Get(schema string, key []byte) ([]byte, bool) {
	return p.state.Get(store.Key(schema, key))
}

// RunCycle stages changes made by populate and publishes them as new version.
// If nothing changed, cycle is skipped and the current version is returned.
func (p *Producer) RunCycle(ctx context.Context, populate func(w *Writer) error) (types.Version, error) {
	log := logger.Get(ctx)

	w := newWriter()
	if err := populate(w); err != nil {
		p.config.Metrics.RecordCycle(metrics.ResultFailure)
		return p.pointer.Current(), err
	}

	c := p.diff(w)
	if len(c.forward) == 0 && p.pointer.Current() != types.VersionNull {
		log.Debug("No changes, cycle skipped", zap.Int64("version", int64(p.pointer.Current())))
		p.config.Metrics.RecordCycle(metrics.ResultSkipped)
		return p.pointer.Current(), nil
	}

	version, err := p.publish(ctx, c)
	if err != nil {
		p.config.Metrics.RecordCycle(metrics.ResultFailure)
		log.Error("Cycle failed", zap.Error(err))
		return p.pointer.Current(), err
	}

	p.config.Metrics.RecordCycle(metrics.ResultSuccess)
	p.config.Metrics.ObserveStore(metrics.RoleProducer, version, p.state.Stats())
	log.Info("Version published",
		zap.Int64("version", int64(version)),
		zap.Int("changes", len(c.forward)))

	return version, nil
}

// Close releases resources.
func (p *Producer) Close() {
	p.state.Close()
}

func (p *Producer) publish(ctx context.Context, c changes) (types.Version, error) {
	if err := p.state.Check(c.forward); err != nil {
		return types.VersionNull, err
	}

	from := p.pointer.Current()
	version := p.config.Minter.Mint()
	if version <= from {
		return types.VersionNull, errors.Errorf("minted version %d does not follow %d", version, from)
	}

	pointer, err := p.pointer.Round(version)
	if err != nil {
		return types.VersionNull, err
	}
	p.pointer = pointer

	tag := newTag()
	artifacts := []*blob.Artifact{
		blob.NewHeaderArtifact(from, version, blob.Header{
			FormatVersion:  types.FormatVersion,
			OriginTag:      p.tag,
			DestinationTag: tag,
			Schemas:        c.schemas,
			Registrations:  c.registrations,
		}, p.config.Blob),
		blob.NewDeltaArtifact(blob.KindDelta, from, version, blob.Delta{
			OriginTag:      p.tag,
			DestinationTag: tag,
			Schemas:        c.forwardOps,
		}, p.config.Blob),
	}
	if from != types.VersionNull {
		artifacts = append(artifacts, blob.NewDeltaArtifact(blob.KindReverseDelta, version, from, blob.Delta{
			OriginTag:      tag,
			DestinationTag: p.tag,
			Schemas:        c.reverseOps,
		}, p.config.Blob))
	}

	if err := p.announce(ctx, version, artifacts); err != nil {
		return types.VersionNull, p.rollback(err)
	}
	if err := p.state.Apply(version, tag, c.forward); err != nil {
		return types.VersionNull, p.rollback(errors.Wrapf(err, "announced version %d cannot be applied locally",
			version))
	}
	if p.pointer, err = p.pointer.Commit(); err != nil {
		return types.VersionNull, err
	}
	p.tag = tag
	for _, r := range c.registrations {
		p.schemas[r.Name] = r.ID
	}

	return version, nil
}

func (p *Producer) rollback(err error) error {
	pointer, rollbackErr := p.pointer.Rollback()
	if rollbackErr != nil {
		return rollbackErr
	}
	p.pointer = pointer
	return err
}

func (p *Producer) announce(ctx context.Context, version types.Version, artifacts []*blob.Artifact) error {
	for _, a := range artifacts {
		if err := p.config.Publisher.Publish(ctx, a); err != nil {
			return errors.Wrapf(err, "publishing %s of version %d failed", a.Kind, version)
		}
		p.config.Metrics.RecordPublish(a.Kind.String(), len(a.Data))
	}
	return errors.Wrapf(p.config.Announcer.Announce(ctx, version), "announcing version %d failed", version)
}

type changes struct {
	forward       []*store.Change
	forwardOps    []blob.SchemaChanges
	reverseOps    []blob.SchemaChanges
	schemas       []string
	registrations []types.Registration
}

// diff compares staged changes with committed state.
func (p *Producer) diff(w *Writer) changes {
	var c changes
	forwardIndex := map[string]int{}
	reverseIndex := map[string]int{}
	newSchemas := map[string]struct{}{}

	for _, k := range w.order {
		o := w.ops[k]
		key := []byte(k)
		previous, exists := p.state.Get(key)

		var forward, reverse blob.Op
		switch o.Type {
		case types.ChangePut:
			if exists && bytes.Equal(previous, o.Value) {
				continue
			}
			forward = blob.Op{Type: types.ChangePut, Key: o.Key, Value: o.Value}
			if exists {
				reverse = blob.Op{Type: types.ChangePut, Key: o.Key, Value: previous}
			} else {
				reverse = blob.Op{Type: types.ChangeRemove, Key: o.Key}
			}
		case types.ChangeRemove:
			if !exists {
				continue
			}
			forward = blob.Op{Type: types.ChangeRemove, Key: o.Key}
			reverse = blob.Op{Type: types.ChangePut, Key: o.Key, Value: previous}
		}

		c.forward = append(c.forward, &store.Change{Type: forward.Type, Key: key, Value: forward.Value})
		c.forwardOps = appendOp(c.forwardOps, forwardIndex, o.Schema, forward)
		c.reverseOps = appendOp(c.reverseOps, reverseIndex, o.Schema, reverse)

		if _, exists := p.schemas[o.Schema]; exists {
			continue
		}
		if _, exists := newSchemas[o.Schema]; exists {
			continue
		}
		newSchemas[o.Schema] = struct{}{}
		c.schemas = append(c.schemas, o.Schema)
		c.registrations = append(c.registrations, types.Registration{
			Name: o.Schema,
			ID:   int32(len(p.schemas) + len(c.registrations)),
		})
	}

	return c
}

func appendOp(schemas []blob.SchemaChanges, index map[string]int, schema string, op blob.Op) []blob.SchemaChanges {
	i, exists := index[schema]
	if !exists {
		i = len(schemas)
		index[schema] = i
		schemas = append(schemas, blob.SchemaChanges{Schema: schema})
	}
	schemas[i].Ops = append(schemas[i].Ops, op)
	return schemas
}
