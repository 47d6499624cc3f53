package container

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

type counter struct{ n int }

func TestSingletonResolvesOnce(t *testing.T) {
	t.Cleanup(Reset)
	calls := 0
	Singleton("counter", func() *counter {
		calls++
		return &counter{n: calls}
	})

	assert.Equal(t, 0, calls, "factories are lazy")
	a := Make[*counter]("counter")
	b := Make[*counter]("counter")
	assert.Same(t, a, b)
	assert.Equal(t, 1, calls)
}

func TestSingletonReplacesBinding(t *testing.T) {
	t.Cleanup(Reset)
	Singleton("counter", func() *counter { return &counter{n: 1} })
	Singleton("counter", func() *counter { return &counter{n: 2} })
	assert.Equal(t, 2, Make[*counter]("counter").n)
}

func TestNestedResolution(t *testing.T) {
	t.Cleanup(Reset)
	Instance("base", 41)
	Singleton("derived", func() int { return Make[int]("base") + 1 })
	assert.Equal(t, 42, Make[int]("derived"))
}

func TestMakePanicsOnMisuse(t *testing.T) {
	t.Cleanup(Reset)
	assert.Panics(t, func() { Make[int]("missing") })

	Instance("name", "catalog")
	assert.Panics(t, func() { Make[int]("name") })

	Reset()
	assert.Panics(t, func() { Make[string]("name") })
}
