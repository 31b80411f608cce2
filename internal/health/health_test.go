package health

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakePinger struct{ err error }

func (p fakePinger) PingContext(context.Context) error { return p.err }

func TestRegistryEmpty(t *testing.T) {
	healthy, statuses := NewRegistry(time.Second).CheckAll(context.Background())
	assert.True(t, healthy)
	assert.Empty(t, statuses)
}

func TestRegistryOneUnhealthy(t *testing.T) {
	r := NewRegistry(time.Second)
	r.Register(Database(fakePinger{}))
	r.Register(Database(fakePinger{err: errors.New("connection refused")}))

	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	require.Len(t, statuses, 2)
	assert.True(t, statuses[0].Healthy)
	assert.Equal(t, "connection refused", statuses[1].Detail)
}

func TestRegistryAppliesTimeout(t *testing.T) {
	r := NewRegistry(20 * time.Millisecond)
	r.Register(func(ctx context.Context) Status {
		<-ctx.Done()
		return Status{Name: "slow", Healthy: false, Detail: ctx.Err().Error()}
	})

	start := time.Now()
	healthy, statuses := r.CheckAll(context.Background())
	assert.False(t, healthy)
	assert.Less(t, time.Since(start), time.Second)
	assert.Equal(t, context.DeadlineExceeded.Error(), statuses[0].Detail)
}

func TestActiveVersion(t *testing.T) {
	none := ActiveVersion(func(context.Context) (int, error) { return 0, nil })(context.Background())
	assert.True(t, none.Healthy)
	assert.Equal(t, "no active version", none.Detail)

	v3 := ActiveVersion(func(context.Context) (int, error) { return 3, nil })(context.Background())
	assert.True(t, v3.Healthy)
	assert.Equal(t, "version 3 active", v3.Detail)

	broken := ActiveVersion(func(context.Context) (int, error) { return 0, errors.New("timeout") })(context.Background())
	assert.False(t, broken.Healthy)
}

func TestRegistryConcurrentRegisterAndCheck(t *testing.T) {
	r := NewRegistry(time.Second)
	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Register(Database(fakePinger{}))
		}()
		go func() {
			defer wg.Done()
			r.CheckAll(context.Background())
		}()
	}
	wg.Wait()
}
