package capability

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func numberSchema() json.RawMessage {
	return json.RawMessage(`{"type":"object","properties":{"x":{"type":"number"}}}`)
}

func TestRegisterUpsertKeepsCreationAndCounters(t *testing.T) {
	r := NewRegistry()

	first := r.Register(Definition{
		Name:        "double",
		Description: "first description",
		Parameters:  numberSchema(),
		Enabled:     true,
		Version:     "1.0.0",
		Category:    "math",
	})
	require.Equal(t, int64(0), first.CallCount)

	time.Sleep(5 * time.Millisecond)
	second := r.Register(Definition{
		Name:        "double",
		Description: "latest description",
		Parameters:  numberSchema(),
		Enabled:     true,
		Version:     "1.1.0",
		Category:    "math",
	})

	require.Len(t, r.List(false), 1)
	assert.Equal(t, "latest description", second.Description)
	assert.Equal(t, "1.1.0", second.Version)
	assert.Equal(t, first.CreatedAt, second.CreatedAt)
	assert.Equal(t, int64(0), second.CallCount)
	assert.True(t, second.UpdatedAt.After(first.UpdatedAt))
}

func TestListInsertionOrder(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"zeta", "alpha", "mu"} {
		r.Register(Definition{Name: name, Enabled: true})
	}
	r.Register(Definition{Name: "alpha", Enabled: false}) // upsert must not reorder

	var names []string
	for _, c := range r.List(false) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"zeta", "alpha", "mu"}, names)

	names = names[:0]
	for _, c := range r.List(true) {
		names = append(names, c.Name)
	}
	assert.Equal(t, []string{"zeta", "mu"}, names)
}

func TestEnableDisableDelete(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "cap", Enabled: true})

	assert.True(t, r.Disable("cap"))
	c, ok := r.Get("cap")
	require.True(t, ok)
	assert.False(t, c.Enabled)

	assert.True(t, r.Enable("cap"))
	assert.False(t, r.Enable("missing"))
	assert.False(t, r.Disable("missing"))

	assert.True(t, r.Delete("cap"))
	assert.False(t, r.Delete("cap"))
	_, ok = r.Get("cap")
	assert.False(t, ok)
	assert.Empty(t, r.List(false))
}

func TestDefinitionsProjection(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{
		Name:        "double",
		Description: "doubles x",
		Parameters:  numberSchema(),
		Enabled:     true,
	})
	r.Register(Definition{Name: "hidden", Enabled: false})

	defs := r.Definitions()
	require.Len(t, defs, 1)
	assert.Equal(t, "function", defs[0]["type"])

	fn, ok := defs[0]["function"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "double", fn["name"])
	assert.Equal(t, "doubles x", fn["description"])
	assert.NotNil(t, fn["parameters"])
}

func TestDefinitionsFallbackSchema(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "bare", Enabled: true}) // no parameter contract

	defs := r.Definitions()
	require.Len(t, defs, 1)
	fn := defs[0]["function"].(map[string]any)
	params, ok := fn["parameters"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "object", params["type"])
}

func TestGetReturnsSnapshot(t *testing.T) {
	r := NewRegistry()
	r.Register(Definition{Name: "cap", Enabled: true, Tags: []string{"a"}})

	c, ok := r.Get("cap")
	require.True(t, ok)
	c.Enabled = false

	again, _ := r.Get("cap")
	assert.True(t, again.Enabled)
}
