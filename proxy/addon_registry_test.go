package proxy

import (
	"sync"
	"testing"

	qt "github.com/frankban/quicktest"
)

type namedAddon struct {
	BaseAddon
	name string
}

func TestAddonRegistryKeepsOrder(t *testing.T) {
	c := qt.New(t)

	r := NewAddonRegistry()
	r.Add(&namedAddon{name: "a"})
	r.Add(&namedAddon{name: "b"})

	addons := r.Get()
	c.Assert(addons, qt.HasLen, 2)
	c.Assert(addons[0].(*namedAddon).name, qt.Equals, "a")
	c.Assert(addons[1].(*namedAddon).name, qt.Equals, "b")
}

func TestAddonRegistryGetReturnsSnapshot(t *testing.T) {
	c := qt.New(t)

	r := NewAddonRegistry()
	r.Add(&namedAddon{name: "a"})
	snapshot := r.Get()
	r.Add(&namedAddon{name: "b"})

	c.Assert(snapshot, qt.HasLen, 1)
	c.Assert(r.Get(), qt.HasLen, 2)
}

func TestAddonRegistryConcurrentUse(t *testing.T) {
	c := qt.New(t)

	r := NewAddonRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			r.Add(&namedAddon{})
		}()
		go func() {
			defer wg.Done()
			_ = r.Get()
		}()
	}
	wg.Wait()

	c.Assert(r.Get(), qt.HasLen, 16)
}
