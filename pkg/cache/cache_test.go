package cache

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestCacheSetGetDelete(t *testing.T) {
	c := New(time.Minute, 0, 0)
	defer c.Close()

	c.Set("languages", []string{"ar", "en"})
	v, ok := c.Get("languages")
	assert.True(t, ok)
	assert.Equal(t, []string{"ar", "en"}, v)

	c.Delete("languages")
	_, ok = c.Get("languages")
	assert.False(t, ok)
}

func TestCacheExpiration(t *testing.T) {
	c := New(time.Minute, 0, 0)
	defer c.Close()

	c.SetWithExpiration("short", 1, time.Millisecond)
	time.Sleep(5 * time.Millisecond)

	_, ok := c.Get("short")
	assert.False(t, ok)
	assert.Equal(t, 1, c.Count(), "expired items linger until the janitor runs")

	c.deleteExpired()
	assert.Equal(t, 0, c.Count())
}

func TestCacheEvictsOldestWhenFull(t *testing.T) {
	c := New(0, 0, 2)
	defer c.Close()

	c.Set("a", 1)
	time.Sleep(time.Millisecond)
	c.Set("b", 2)
	time.Sleep(time.Millisecond)
	c.Set("c", 3)

	_, ok := c.Get("a")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Count())

	c.Flush()
	assert.Equal(t, 0, c.Count())
}
