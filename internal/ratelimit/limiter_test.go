package ratelimit

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func newTestLimiter(limit int, block time.Duration) (*Limiter, *time.Time) {
	l := NewLimiter(limit, block, nil)
	now := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	l.now = func() time.Time { return now }
	return l, &now
}

func TestLimiter_AdmitWithinLimit(t *testing.T) {
	l, _ := newTestLimiter(5, 10*time.Minute)

	for i := 0; i < 5; i++ {
		assert.True(t, l.Admit("203.0.113.9"), "admission %d should pass", i+1)
	}
}

func TestLimiter_RejectsOverLimitAndBlocks(t *testing.T) {
	l, now := newTestLimiter(3, 10*time.Minute)

	for i := 0; i < 3; i++ {
		assert.True(t, l.Admit("203.0.113.9"))
	}

	// The (L+1)-th attempt within the window is rejected
	assert.False(t, l.Admit("203.0.113.9"))

	// Still blocked before the block duration elapses
	*now = now.Add(9 * time.Minute)
	assert.False(t, l.Admit("203.0.113.9"))

	// Admitted again once the block expires
	*now = now.Add(2 * time.Minute)
	assert.True(t, l.Admit("203.0.113.9"))
}

func TestLimiter_WindowSlides(t *testing.T) {
	l, now := newTestLimiter(2, 10*time.Minute)

	assert.True(t, l.Admit("198.51.100.1"))
	assert.True(t, l.Admit("198.51.100.1"))

	// Old admissions fall out of the 60s window
	*now = now.Add(61 * time.Second)
	assert.True(t, l.Admit("198.51.100.1"))
}

func TestLimiter_IPsAreIndependent(t *testing.T) {
	l, _ := newTestLimiter(1, 10*time.Minute)

	assert.True(t, l.Admit("203.0.113.9"))
	assert.False(t, l.Admit("203.0.113.9"))

	// A different IP is unaffected by the first IP's block
	assert.True(t, l.Admit("203.0.113.10"))
}

func TestLimiter_ConcurrentAdmissions(t *testing.T) {
	l := NewLimiter(50, 10*time.Minute, nil)

	var wg sync.WaitGroup
	admitted := make([]bool, 100)
	for i := 0; i < 100; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			admitted[i] = l.Admit("203.0.113.9")
		}(i)
	}
	wg.Wait()

	count := 0
	for _, ok := range admitted {
		if ok {
			count++
		}
	}
	assert.Equal(t, 50, count, "exactly the limit should be admitted")
}
