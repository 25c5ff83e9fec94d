package search

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mesh-intelligence/cypress/pkg/types"
)

type recorder struct {
	mu      sync.Mutex
	looked  []string
	results chan string
}

func newRecorder() *recorder {
	return &recorder{results: make(chan string, 8)}
}

func (r *recorder) lookup(_ context.Context, term string) ([]types.User, error) {
	r.mu.Lock()
	r.looked = append(r.looked, term)
	r.mu.Unlock()
	return []types.User{{ID: term, Email: term + "@example.com"}}, nil
}

func (r *recorder) deliver(term string, _ []types.User, _ error) {
	r.results <- term
}

func (r *recorder) lookups() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.looked...)
}

func TestDebouncerLooksUpOnlyLatestTerm(t *testing.T) {
	r := newRecorder()
	d := NewDebouncer(20*time.Millisecond, r.lookup, r.deliver)
	defer d.Stop()

	d.Query("a")
	d.Query("al")
	d.Query("ali")

	select {
	case term := <-r.results:
		assert.Equal(t, "ali", term)
	case <-time.After(2 * time.Second):
		t.Fatal("lookup never delivered")
	}
	assert.Equal(t, []string{"ali"}, r.lookups())
}

func TestDebouncerStopSuppressesPending(t *testing.T) {
	r := newRecorder()
	d := NewDebouncer(20*time.Millisecond, r.lookup, r.deliver)

	d.Query("bob")
	d.Stop()
	d.Stop()
	d.Query("carol")

	select {
	case term := <-r.results:
		t.Fatalf("unexpected delivery for %q", term)
	case <-time.After(100 * time.Millisecond):
	}
	assert.Empty(t, r.lookups())
}

func TestDebouncerStopDropsInflightResult(t *testing.T) {
	started := make(chan struct{})
	release := make(chan struct{})
	delivered := make(chan string, 1)

	d := NewDebouncer(time.Millisecond, func(ctx context.Context, term string) ([]types.User, error) {
		close(started)
		<-release
		return nil, nil
	}, func(term string, _ []types.User, _ error) {
		delivered <- term
	})

	d.Query("dave")
	<-started
	d.Stop()
	close(release)

	select {
	case term := <-delivered:
		t.Fatalf("unexpected delivery for %q", term)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestDebouncerStopWaitsForDelivery(t *testing.T) {
	entered := make(chan struct{})
	release := make(chan struct{})
	var mu sync.Mutex
	var delivered []string

	d := NewDebouncer(time.Millisecond, func(context.Context, string) ([]types.User, error) {
		return nil, nil
	}, func(term string, _ []types.User, _ error) {
		close(entered)
		<-release
		mu.Lock()
		delivered = append(delivered, term)
		mu.Unlock()
	})

	d.Query("erin")
	<-entered

	stopped := make(chan struct{})
	go func() {
		d.Stop()
		close(stopped)
	}()
	select {
	case <-stopped:
		t.Fatal("Stop returned while a delivery was running")
	case <-time.After(50 * time.Millisecond):
	}

	close(release)
	select {
	case <-stopped:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop never returned")
	}

	mu.Lock()
	assert.Equal(t, []string{"erin"}, delivered, "the delivery completed before Stop returned")
	mu.Unlock()

	d.Query("frank")
	time.Sleep(20 * time.Millisecond)
	mu.Lock()
	assert.Len(t, delivered, 1)
	mu.Unlock()
}

func TestNewDebouncerDefaultDelay(t *testing.T) {
	d := NewDebouncer(0, nil, nil)
	defer d.Stop()
	assert.Equal(t, DefaultDelay, d.delay)
}

func TestFilter(t *testing.T) {
	me := types.User{ID: "me"}
	ann := types.User{ID: "ann"}
	ben := types.User{ID: "ben"}
	cat := types.User{ID: "cat"}

	tests := []struct {
		name     string
		results  []types.User
		existing []types.User
		want     []types.User
	}{
		{"drops self", []types.User{me, ann}, nil, []types.User{ann}},
		{"drops existing", []types.User{ann, ben, cat}, []types.User{ben}, []types.User{ann, cat}},
		{"nothing left", []types.User{me, ben}, []types.User{ben}, []types.User{}},
		{"no results", nil, []types.User{ann}, []types.User{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(tt.results, me.ID, tt.existing)
			require.NotNil(t, got)
			assert.Equal(t, tt.want, got)
		})
	}
}
