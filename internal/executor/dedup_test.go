package executor

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestDedupWindow(t *testing.T) {
	d := NewDedup(50 * time.Millisecond)

	assert.False(t, d.IsDuplicate("WCORE->ICE->SCORE->WCORE"))
	assert.True(t, d.IsDuplicate("WCORE->ICE->SCORE->WCORE"))
	assert.False(t, d.IsDuplicate("WCORE->ICE"), "different path is not a duplicate")

	time.Sleep(60 * time.Millisecond)
	assert.False(t, d.IsDuplicate("WCORE->ICE->SCORE->WCORE"), "entry expires after the TTL")
}

func TestDedupCleanup(t *testing.T) {
	d := NewDedup(10 * time.Millisecond)
	d.IsDuplicate("a")
	d.IsDuplicate("b")

	time.Sleep(20 * time.Millisecond)
	d.Cleanup()

	d.mu.Lock()
	defer d.mu.Unlock()
	assert.Empty(t, d.seen)
}
