package test

import (
	"context"
	"iter"
	"sort"
	"testing"

	"github.com/pkg/errors"
	"github.com/samber/lo"

	"github.com/outofforest/logger"
	"github.com/outofforest/parallel"
)

// Context returns context carrying logger, canceled when test finishes.
func Context(t testing.TB) context.Context {
	ctx, cancel := context.WithCancel(logger.WithLogger(context.Background(), logger.New(logger.DefaultConfig)))
	t.Cleanup(cancel)
	return ctx
}

// RunInTest runs task in background until test finishes.
func RunInTest(t testing.TB, name string, task func(ctx context.Context) error) {
	group := parallel.NewGroup(Context(t))
	group.Spawn(name, parallel.Continue, task)

	t.Cleanup(func() {
		group.Exit(nil)
		if err := group.Wait(); err != nil && !errors.Is(err, context.Canceled) {
			t.Fatal(err)
		}
	})
}

// CollectRecords collects records into map.
func CollectRecords(seq iter.Seq2[[]byte, []byte]) map[string]string {
	records := map[string]string{}
	for k, v := range seq {
		records[string(k)] = string(v)
	}
	return records
}

// CollectKeys collects sorted keys.
func CollectKeys(seq iter.Seq2[[]byte, []byte]) []string {
	keys := lo.Keys(CollectRecords(seq))
	sort.Strings(keys)
	return keys
}
