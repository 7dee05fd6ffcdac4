package session

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type nopGame struct{}

func (nopGame) Init(context.Context) error { return nil }
func (nopGame) Start()                     {}
func (nopGame) Update(time.Duration)       {}
func (nopGame) Cleanup() error             { return nil }

func nopDefinition(id string) Definition {
	return Definition{
		ID:       id,
		Tutorial: Tutorial{Title: id, HTMLBody: "<p>" + id + "</p>"},
		New:      func(Host) MiniGame { return nopGame{} },
	}
}

func TestRegistryRegister(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.Register(nopDefinition("wall-shapes")))
	require.NoError(t, r.Register(nopDefinition("cowboy-duel")))

	assert.Error(t, r.Register(nopDefinition("wall-shapes")), "duplicate id")
	assert.Error(t, r.Register(nopDefinition("  ")))
	assert.Error(t, r.Register(Definition{ID: "x", Tutorial: Tutorial{Title: "x"}}))
	assert.Error(t, r.Register(Definition{ID: "x", New: func(Host) MiniGame { return nopGame{} }}))

	assert.Equal(t, 2, r.Len())
	assert.Equal(t, []string{"cowboy-duel", "wall-shapes"}, r.IDs())

	tut, err := r.Tutorial("cowboy-duel")
	require.NoError(t, err)
	assert.Equal(t, "<p>cowboy-duel</p>", tut.HTMLBody)

	_, err = r.Lookup("plumber")
	assert.ErrorIs(t, err, ErrUnknownGame)
}

func TestRegistryValidate(t *testing.T) {
	r := NewRegistry().MustRegister(nopDefinition("a"), nopDefinition("b"))

	assert.NoError(t, r.Validate([]string{"a", "b", "a"}))
	assert.Error(t, r.Validate(nil))
	assert.ErrorIs(t, r.Validate([]string{"a", "c"}), ErrUnknownGame)
}

func TestMustRegisterPanics(t *testing.T) {
	assert.Panics(t, func() {
		NewRegistry().MustRegister(nopDefinition("a"), nopDefinition("a"))
	})
}

func TestEnumsMarshalAsText(t *testing.T) {
	b, err := json.Marshal(map[string]any{
		"screen": ScreenGameOver,
		"reason": Failed,
		"state":  StateCleanedUp,
	})
	require.NoError(t, err)
	assert.JSONEq(t, `{"screen":"gameover","reason":"failed","state":"cleaned_up"}`, string(b))
	assert.Equal(t, "unknown", EndReason(0).String())
}
