package planner

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"
	"github.com/stretchr/testify/require"

	"github.com/outofforest/replica/blob"
	"github.com/outofforest/replica/test"
	"github.com/outofforest/replica/types"
)

var errTransport = errors.New("transport failed")

func newRetriever() *retriever {
	return &retriever{
		headers:       map[types.Version]*blob.Artifact{},
		deltas:        map[types.Version]*blob.Artifact{},
		reverseDeltas: map[types.Version]*blob.Artifact{},
	}
}

type retriever struct {
	headers       map[types.Version]*blob.Artifact
	deltas        map[types.Version]*blob.Artifact
	reverseDeltas map[types.Version]*blob.Artifact
	err           error
}

func (r *retriever) RetrieveHeader(_ context.Context, version types.Version) (*blob.Artifact, error) {
	return r.headers[version], r.err
}

func (r *retriever) RetrieveDelta(_ context.Context, version types.Version) (*blob.Artifact, error) {
	return r.deltas[version], r.err
}

func (r *retriever) RetrieveReverseDelta(_ context.Context, version types.Version) (*blob.Artifact, error) {
	return r.reverseDeltas[version], r.err
}

// addChain publishes artifacts connecting versions in order.
func (r *retriever) addChain(versions ...types.Version) {
	for i := 1; i < len(versions); i++ {
		from, to := versions[i-1], versions[i]
		r.headers[to] = &blob.Artifact{Kind: blob.KindHeader, FromVersion: from, ToVersion: to}
		r.deltas[from+1] = &blob.Artifact{Kind: blob.KindDelta, FromVersion: from, ToVersion: to}
		if from != types.VersionNull {
			r.headers[from] = &blob.Artifact{Kind: blob.KindHeader, ToVersion: from}
			r.reverseDeltas[to-1] = &blob.Artifact{Kind: blob.KindReverseDelta, FromVersion: to, ToVersion: from}
		}
	}
}

func versions(plan Plan) []types.Version {
	return lo.Map(plan.Transitions, func(t *Transition, _ int) types.Version {
		return t.Version
	})
}

func TestSameVersion(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2)

	plan, err := New(r).Plan(test.Context(t), 1, 1)
	requireT.NoError(err)
	requireT.Empty(plan.Transitions)
	requireT.Equal(types.Version(1), plan.FinalVersion)
}

func TestForward(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(types.VersionNull, 0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	plan, err := New(r).Plan(test.Context(t), 2, 7)
	requireT.NoError(err)
	requireT.Equal([]types.Version{3, 4, 5, 6, 7}, versions(plan))
	requireT.Equal(types.Version(7), plan.FinalVersion)

	for i, tr := range plan.Transitions {
		requireT.Equal(blob.KindDelta, tr.Blob.Kind)
		requireT.Equal(types.Version(i+2), tr.Blob.FromVersion)
		requireT.Equal(blob.KindHeader, tr.Header.Kind)
		requireT.Equal(tr.Version, tr.Header.ToVersion)
	}
}

func TestForwardStopsAtLatestAvailable(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(types.VersionNull, 0, 1, 2, 3)

	p := New(r)
	plan, err := p.Plan(test.Context(t), 1, 20)
	requireT.NoError(err)
	requireT.Equal([]types.Version{2, 3}, versions(plan))
	requireT.Equal(types.Version(3), plan.FinalVersion)

	plan, err = p.Plan(test.Context(t), 1, types.VersionLatest)
	requireT.NoError(err)
	requireT.Equal(types.Version(3), plan.FinalVersion)
}

func TestForwardFollowsCheckpoints(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2, 3, 6, 7)

	plan, err := New(r).Plan(test.Context(t), 2, 5)
	requireT.NoError(err)
	requireT.Equal([]types.Version{3, 6}, versions(plan))
	requireT.Equal(types.Version(6), plan.FinalVersion)
}

func TestBootstrap(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	p := New(r)

	_, err := p.Plan(test.Context(t), types.VersionNull, types.VersionLatest)
	requireT.True(errors.Is(err, ErrNoUpdatePlan))

	plan, err := p.Plan(test.Context(t), types.VersionNull, 5)
	requireT.NoError(err)
	requireT.Empty(plan.Transitions)
	requireT.Equal(types.VersionNull, plan.FinalVersion)

	r.addChain(types.VersionNull, 0, 1)
	plan, err = p.Plan(test.Context(t), types.VersionNull, types.VersionLatest)
	requireT.NoError(err)
	requireT.Equal([]types.Version{0, 1}, versions(plan))
}

func TestReverse(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)

	plan, err := New(r).Plan(test.Context(t), 10, 5)
	requireT.NoError(err)
	requireT.Equal([]types.Version{9, 8, 7, 6, 5}, versions(plan))
	requireT.Equal(types.Version(5), plan.FinalVersion)

	for _, tr := range plan.Transitions {
		requireT.Equal(blob.KindReverseDelta, tr.Blob.Kind)
		requireT.Equal(tr.Version+1, tr.Blob.FromVersion)
	}
}

func TestReversePartialProgress(t *testing.T) {
	requireT := require.New(t)

	for k := types.Version(5); k < 10; k++ {
		r := newRetriever()
		r.addChain(0, 1, 2, 3, 4, 5, 6, 7, 8, 9, 10)
		delete(r.reverseDeltas, k)

		plan, err := New(r).Plan(test.Context(t), 10, 5)
		requireT.NoError(err)
		requireT.Equal(k+1, plan.FinalVersion)
		requireT.Len(plan.Transitions, int(10-k-1))
		for _, tr := range plan.Transitions {
			requireT.Greater(tr.Version, k)
		}
	}
}

func TestRetrieverErrorIsPropagated(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2)
	r.err = errTransport

	_, err := New(r).Plan(test.Context(t), 0, 2)
	requireT.True(errors.Is(err, errTransport))

	_, err = New(r).Plan(test.Context(t), 2, 0)
	requireT.True(errors.Is(err, errTransport))
}

func TestMissingHeader(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2)
	delete(r.headers, 2)

	_, err := New(r).Plan(test.Context(t), 0, 2)
	requireT.True(errors.Is(err, ErrInvalidArtifact))
}

func TestDisconnectedDelta(t *testing.T) {
	requireT := require.New(t)

	r := newRetriever()
	r.addChain(0, 1, 2)
	r.deltas[2] = &blob.Artifact{Kind: blob.KindDelta, FromVersion: 0, ToVersion: 2}

	_, err := New(r).Plan(test.Context(t), 1, 2)
	requireT.True(errors.Is(err, ErrInvalidArtifact))

	r.reverseDeltas[0] = &blob.Artifact{Kind: blob.KindDelta, FromVersion: 1, ToVersion: 0}
	_, err = New(r).Plan(test.Context(t), 1, 0)
	requireT.True(errors.Is(err, ErrInvalidArtifact))
}
