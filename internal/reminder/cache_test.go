package reminder

import (
	"sync"
	"testing"
	"time"
)

func TestCacheMarkAndHas(t *testing.T) {
	t.Parallel()
	c := NewCache()
	pre := Key{TaskID: 1, Kind: KindPreReminder}
	due := Key{TaskID: 1, Kind: KindDueNow}

	if c.Has(pre) {
		t.Fatal("empty cache reports a key")
	}
	c.Mark(pre, base)
	if !c.Has(pre) || c.Has(due) {
		t.Fatal("kinds must be tracked independently")
	}
	if at, ok := c.MarkedAt(pre); !ok || !at.Equal(base) {
		t.Fatalf("MarkedAt = %v %v", at, ok)
	}
	if pre.String() != "1_pre-reminder" {
		t.Fatalf("key string = %q", pre.String())
	}
}

func TestCacheEvictOlderThan(t *testing.T) {
	t.Parallel()
	c := NewCache()
	c.Mark(Key{TaskID: 1, Kind: KindDueNow}, base)
	c.Mark(Key{TaskID: 2, Kind: KindDueNow}, base.Add(30*time.Minute))

	if n := c.EvictOlderThan(base.Add(time.Hour), time.Hour); n != 0 {
		t.Fatalf("entry exactly ttl old must survive, evicted %d", n)
	}
	if n := c.EvictOlderThan(base.Add(time.Hour+time.Second), time.Hour); n != 1 {
		t.Fatalf("evicted %d, want 1", n)
	}
	if c.Has(Key{TaskID: 1, Kind: KindDueNow}) || !c.Has(Key{TaskID: 2, Kind: KindDueNow}) {
		t.Fatal("wrong entry evicted")
	}
	if c.Len() != 1 {
		t.Fatalf("len = %d", c.Len())
	}
}

func TestCacheConcurrentUse(t *testing.T) {
	t.Parallel()
	c := NewCache()
	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func(id int64) {
			defer wg.Done()
			for j := 0; j < 100; j++ {
				k := Key{TaskID: id, Kind: KindDueNow}
				c.Mark(k, base)
				_ = c.Has(k)
				c.EvictOlderThan(base, time.Hour)
			}
		}(int64(i))
	}
	wg.Wait()
	if c.Len() != 8 {
		t.Fatalf("len = %d, want 8", c.Len())
	}
}
