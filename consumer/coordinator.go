package consumer

import (
	"context"
	"iter"
	"sync"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mass"
	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/metrics"
	"github.com/outofforest/replica/planner"
	"github.com/outofforest/replica/store"
	"github.com/outofforest/replica/types"
)

// ErrTagMismatch is returned if artifacts do not form a chain.
var ErrTagMismatch = errors.New("cycle tag mismatch")

// Config stores consumer configuration.
type Config struct {
	Retriever planner.Retriever
	Watcher   AnnouncementWatcher
	Store     store.Config
	Metrics   *metrics.Metrics
}

// New creates new update coordinator.
func New(config Config) (*Coordinator, error) {
	if config.Retriever == nil || config.Watcher == nil {
		return nil, errors.New("retriever and watcher are required")
	}
	if config.Metrics == nil {
		config.Metrics = metrics.New(nil)
	}

	state, err := store.New(config.Store)
	if err != nil {
		return nil, err
	}

	return &Coordinator{
		config:       config,
		planner:      planner.New(config.Retriever),
		state:        state,
		massChange:   mass.New[store.Change](1024),
		knownSchemas: map[string]struct{}{},
		registered:   map[string]struct{}{},
	}, nil
}

// Coordinator moves local replica of the records between versions.
// Updates are serialized, reads are served concurrently from the last fully applied version.
type Coordinator struct {
	config     Config
	planner    *planner.Planner
	state      *store.Store
	massChange *mass.Mass[store.Change]

	updateMu sync.Mutex

	schemaMu      sync.RWMutex
	schemas       []string
	knownSchemas  map[string]struct{}
	registrations []types.Registration
	registered    map[string]struct{}
}

// Update moves the replica to the target version.
// Versions above the latest announced one are never applied, VersionLatest means the latest announced version.
// It returns true if the replica ends at the requested version, false if only partial progress was possible.
// On error the replica is left at the previous version.
func (c *Coordinator) Update(ctx context.Context, target types.Version) (bool, error) {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	start := time.Now()
	current, tag := c.state.State()
	if target == current {
		return true, nil
	}

	latest, err := c.config.Watcher.Latest(ctx)
	if err != nil {
		c.config.Metrics.RecordUpdate(metrics.ResultFailure, 0, time.Since(start))
		return false, err
	}
	requested := target
	if target == types.VersionLatest {
		requested = latest
	}

	log := logger.Get(ctx).With(
		zap.Int64("from", int64(current)),
		zap.Int64("target", int64(target)),
		zap.Int64("announced", int64(latest)))

	plan, err := c.planner.Plan(ctx, current, min(target, latest))
	if err != nil {
		c.config.Metrics.RecordUpdate(metrics.ResultFailure, 0, time.Since(start))
		return false, err
	}
	if len(plan.Transitions) == 0 {
		if current == types.VersionNull && target == types.VersionLatest {
			c.config.Metrics.RecordUpdate(metrics.ResultFailure, 0, time.Since(start))
			return false, errors.WithStack(planner.ErrNoUpdatePlan)
		}

		reached := requested == current
		result := metrics.ResultSkipped
		if !reached {
			result = metrics.ResultPartial
		}
		c.config.Metrics.RecordUpdate(result, 0, time.Since(start))
		log.Debug("No update available")
		return reached, nil
	}

	changes, headers, tag, err := c.stage(plan, tag)
	if err != nil {
		c.config.Metrics.RecordUpdate(metrics.ResultFailure, 0, time.Since(start))
		return false, err
	}
	if err := c.apply(plan.FinalVersion, tag, changes, headers); err != nil {
		c.config.Metrics.RecordUpdate(metrics.ResultFailure, 0, time.Since(start))
		return false, err
	}

	reached := plan.FinalVersion == requested
	result := metrics.ResultSuccess
	if !reached {
		result = metrics.ResultPartial
	}
	c.config.Metrics.RecordUpdate(result, len(plan.Transitions), time.Since(start))
	c.config.Metrics.ObserveStore(metrics.RoleConsumer, plan.FinalVersion, c.state.Stats())

	log.Info("Update applied",
		zap.Int64("version", int64(plan.FinalVersion)),
		zap.Int("transitions", len(plan.Transitions)),
		zap.Int("changes", len(changes)),
		zap.Bool("reached", reached))

	return reached, nil
}

// CurrentVersion returns the version visible to readers.
func (c *Coordinator) CurrentVersion() types.Version {
	return c.state.Version()
}

// Get returns the value stored under the key of the schema.
func (c *Coordinator) Get(schema string, key []byte) ([]byte, bool) {
	return c.state.Get(store.Key(schema, key))
}

// Records iterates over records of the schema.
// Yielded slices are valid only inside the loop body.
func (c *Coordinator) Records(schema string) iter.Seq2[[]byte, []byte] {
	return func(yield func([]byte, []byte) bool) {
		for k, v := range c.state.Iterator() {
			s, key, err := store.SplitKey(k)
			if err != nil || s != schema {
				continue
			}
			if !yield(key, v) {
				return
			}
		}
	}
}

// Schemas returns names of known schemas in order of their introduction.
func (c *Coordinator) Schemas() []string {
	c.schemaMu.RLock()
	defer c.schemaMu.RUnlock()

	return append([]string{}, c.schemas...)
}

// Registrations returns known schema registrations.
func (c *Coordinator) Registrations() []types.Registration {
	c.schemaMu.RLock()
	defer c.schemaMu.RUnlock()

	return append([]types.Registration{}, c.registrations...)
}

// Close releases resources.
func (c *Coordinator) Close() {
	c.updateMu.Lock()
	defer c.updateMu.Unlock()

	c.state.Close()
}

// stage decodes all the transitions and merges them into single set of changes.
func (c *Coordinator) stage(
	plan planner.Plan,
	tag types.Tag,
) ([]*store.Change, []blob.Header, types.Tag, error) {
	overlay := map[string]*store.Change{}
	changes := []*store.Change{}
	headers := make([]blob.Header, 0, len(plan.Transitions))

	for _, t := range plan.Transitions {
		header, err := blob.DecodeHeader(t.Header.Data)
		if err != nil {
			return nil, nil, tag, errors.Wrapf(err, "decoding header of version %d failed", t.Version)
		}
		delta, err := blob.DecodeDelta(t.Blob.Data)
		if err != nil {
			return nil, nil, tag, errors.Wrapf(err, "decoding %s of version %d failed", t.Blob.Kind, t.Version)
		}

		if header.DestinationTag != delta.DestinationTag {
			return nil, nil, tag, errors.Wrapf(ErrTagMismatch, "header and %s of version %d", t.Blob.Kind,
				t.Version)
		}
		if delta.OriginTag != tag {
			return nil, nil, tag, errors.Wrapf(ErrTagMismatch, "%s of version %d does not follow the current state",
				t.Blob.Kind, t.Version)
		}
		tag = delta.DestinationTag
		headers = append(headers, header)

		for _, s := range delta.Schemas {
			for _, op := range s.Ops {
				k := store.Key(s.Schema, op.Key)
				change, exists := overlay[string(k)]
				if !exists {
					change = c.massChange.New()
					change.Key = k
					overlay[string(k)] = change
					changes = append(changes, change)
				}
				change.Type = op.Type
				change.Value = op.Value
			}
		}
	}

	return changes, headers, tag, nil
}

// apply applies changes and records schemas introduced by the headers.
// Schema readers are blocked until both are done.
func (c *Coordinator) apply(version types.Version, tag types.Tag, changes []*store.Change, headers []blob.Header) error {
	c.schemaMu.Lock()
	defer c.schemaMu.Unlock()

	if err := c.state.Apply(version, tag, changes); err != nil {
		return err
	}

	for _, h := range headers {
		for _, s := range h.Schemas {
			if _, exists := c.knownSchemas[s]; !exists {
				c.knownSchemas[s] = struct{}{}
				c.schemas = append(c.schemas, s)
			}
		}
		for _, r := range h.Registrations {
			if _, exists := c.registered[r.Name]; !exists {
				c.registered[r.Name] = struct{}{}
				c.registrations = append(c.registrations, r)
			}
		}
	}
	return nil
}
