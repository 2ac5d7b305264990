package content

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAddContent_ConcurrentSlugs(t *testing.T) {
	eachBackend(t, func(t *testing.T, svc *Service) {
		ct := addPostType(t, svc)

		const writers = 8
		var wg sync.WaitGroup
		slugs := make([]string, writers)
		errs := make([]error, writers)
		for i := 0; i < writers; i++ {
			wg.Add(1)
			go func(i int) {
				defer wg.Done()
				c, err := svc.AddContent(testContext(), ContentInput{
					TypeID: ct.ID,
					Fields: map[string]any{"title": "Race"},
				})
				errs[i] = err
				if err == nil {
					slugs[i] = c.Slug
				}
			}(i)
		}
		wg.Wait()

		seen := make(map[string]bool)
		for i := 0; i < writers; i++ {
			require.NoError(t, errs[i])
			assert.False(t, seen[slugs[i]], "slug %s assigned twice", slugs[i])
			seen[slugs[i]] = true
		}
		assert.True(t, seen["race"])
		assert.True(t, seen["race-8"])
	})
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlock := k.Lock("a")
	done := make(chan struct{})
	go func() {
		defer close(done)
		k.Lock("b")()
	}()
	<-done

	acquired := make(chan struct{})
	go func() {
		k.Lock("a")()
		close(acquired)
	}()
	unlock()
	<-acquired

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks)
}
