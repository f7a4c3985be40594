package tree

import "testing"

func TestCacheSharesTreeAcrossHandles(t *testing.T) {
	c := NewCache()

	h1 := c.GetCached("/watched", false)
	h2 := c.GetCached("/watched", false)

	if h1.DirTree != h2.DirTree {
		t.Fatal("two handles on the same root should share one DirTree")
	}
	if c.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", c.Len())
	}

	h1.Add("/watched/a", FakeIno, 0, File, "")
	if h2.Find("/watched/a") == nil {
		t.Fatal("mutation through one handle should be visible through the other")
	}
}

func TestCacheEvictsOnLastRelease(t *testing.T) {
	c := NewCache()

	h1 := c.GetCached("/watched", false)
	h2 := c.GetCached("/watched", false)

	h1.Release()
	if c.Len() != 1 {
		t.Fatalf("Len() = %d after one of two releases, want 1", c.Len())
	}

	h2.Release()
	if c.Len() != 0 {
		t.Fatalf("Len() = %d after final release, want 0", c.Len())
	}

	h3 := c.GetCached("/watched", false)
	if h3.DirTree == h2.DirTree {
		t.Fatal("a fully released root should hand back a fresh tree on the next GetCached")
	}
	if h3.Len() != 0 {
		t.Fatal("the fresh tree should not carry over entries from the evicted one")
	}
}
