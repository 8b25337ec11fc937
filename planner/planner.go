package planner

import (
	"context"

	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/outofforest/logger"
	"github.com/outofforest/mass"
	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/types"
)

var (
	// ErrNoUpdatePlan is returned if there is nothing to bootstrap the first version from.
	ErrNoUpdatePlan = errors.New("no update plan available")

	// ErrInvalidArtifact is returned if retrieved artifact does not connect expected versions.
	ErrInvalidArtifact = errors.New("invalid artifact")
)

// Retriever retrieves published artifacts.
// Nil artifact without an error means the artifact is not available.
type Retriever interface {
	// RetrieveHeader returns the header of the version.
	RetrieveHeader(ctx context.Context, version types.Version) (*blob.Artifact, error)

	// RetrieveDelta returns the forward delta starting at version - 1.
	RetrieveDelta(ctx context.Context, version types.Version) (*blob.Artifact, error)

	// RetrieveReverseDelta returns the reverse delta starting at version + 1.
	RetrieveReverseDelta(ctx context.Context, version types.Version) (*blob.Artifact, error)
}

// Transition moves records to the version.
type Transition struct {
	Version types.Version
	Header  *blob.Artifact
	Blob    *blob.Artifact
}

// Plan is the ordered list of transitions.
type Plan struct {
	Transitions  []*Transition
	FinalVersion types.Version
}

// New creates new planner.
func New(retriever Retriever) *Planner {
	return &Planner{
		retriever:      retriever,
		massTransition: mass.New[Transition](16),
	}
}

// Planner computes transitions required to move records between versions.
// It is not safe for concurrent use.
type Planner struct {
	retriever      Retriever
	massTransition *mass.Mass[Transition]
}

// Plan computes the plan moving records from one version to another.
// Plan may end before the requested version if some artifacts are not available.
func (p *Planner) Plan(ctx context.Context, from, to types.Version) (Plan, error) {
	plan := Plan{FinalVersion: from}

	var err error
	switch {
	case from < to:
		err = p.forward(ctx, &plan, to)
	case from > to:
		err = p.reverse(ctx, &plan, to)
	}
	if err != nil {
		return Plan{}, err
	}

	if len(plan.Transitions) == 0 && from == types.VersionNull && to == types.VersionLatest {
		return Plan{}, errors.WithStack(ErrNoUpdatePlan)
	}

	logger.Get(ctx).Debug("Update planned",
		zap.Int64("from", int64(from)),
		zap.Int64("to", int64(to)),
		zap.Int64("final", int64(plan.FinalVersion)),
		zap.Int("transitions", len(plan.Transitions)))

	return plan, nil
}

func (p *Planner) forward(ctx context.Context, plan *Plan, to types.Version) error {
	for plan.FinalVersion < to {
		delta, err := p.retriever.RetrieveDelta(ctx, plan.FinalVersion+1)
		if err != nil {
			return errors.WithStack(err)
		}
		if delta == nil {
			return nil
		}
		if delta.Kind != blob.KindDelta || delta.FromVersion != plan.FinalVersion ||
			delta.ToVersion <= plan.FinalVersion {
			return errors.Wrapf(ErrInvalidArtifact, "expected delta from %d, got %s from %d to %d",
				plan.FinalVersion, delta.Kind, delta.FromVersion, delta.ToVersion)
		}

		// Delta might lead past the requested version, it is applied anyway.
		if err := p.append(ctx, plan, delta); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) reverse(ctx context.Context, plan *Plan, to types.Version) error {
	for plan.FinalVersion > to {
		delta, err := p.retriever.RetrieveReverseDelta(ctx, plan.FinalVersion-1)
		if err != nil {
			return errors.WithStack(err)
		}
		if delta == nil {
			// Walk stops at the furthest version reached.
			return nil
		}
		if delta.Kind != blob.KindReverseDelta || delta.FromVersion != plan.FinalVersion ||
			delta.ToVersion >= plan.FinalVersion {
			return errors.Wrapf(ErrInvalidArtifact, "expected reverse delta from %d, got %s from %d to %d",
				plan.FinalVersion, delta.Kind, delta.FromVersion, delta.ToVersion)
		}

		if err := p.append(ctx, plan, delta); err != nil {
			return err
		}
	}
	return nil
}

func (p *Planner) append(ctx context.Context, plan *Plan, delta *blob.Artifact) error {
	header, err := p.retriever.RetrieveHeader(ctx, delta.ToVersion)
	if err != nil {
		return errors.WithStack(err)
	}
	if header == nil || header.Kind != blob.KindHeader || header.ToVersion != delta.ToVersion {
		return errors.Wrapf(ErrInvalidArtifact, "header of version %d not available", delta.ToVersion)
	}

	t := p.massTransition.New()
	t.Version = delta.ToVersion
	t.Header = header
	t.Blob = delta

	plan.Transitions = append(plan.Transitions, t)
	plan.FinalVersion = delta.ToVersion
	return nil
}
