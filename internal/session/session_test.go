package session

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"lawrag/internal/domain"
)

func TestSession_TurnsAndClear(t *testing.T) {
	s := New()
	require.NotEmpty(t, s.ID)
	s.AppendTurn(Turn{Role: RoleUser, Content: "第二条说了什么"})
	s.AppendTurn(Turn{Role: RoleAssistant, Content: "答", Sources: []domain.Citation{{Article: "第二条"}}})

	turns := s.Turns()
	require.Len(t, turns, 2)
	assert.Equal(t, RoleUser, turns[0].Role)
	assert.False(t, turns[1].At.IsZero())

	turns[0].Content = "changed"
	assert.Equal(t, "第二条说了什么", s.Turns()[0].Content)

	s.Clear()
	assert.Empty(t, s.Turns())
}

func TestSession_IndependentIDs(t *testing.T) {
	assert.NotEqual(t, New().ID, New().ID)
}

func TestRegistry_Lifecycle(t *testing.T) {
	r := NewRegistry()
	s := r.Create()
	assert.Equal(t, 1, r.Len())

	require.NoError(t, r.With(s.ID, func(sess *Session) error {
		sess.AppendTurn(Turn{Role: RoleUser, Content: "q"})
		return nil
	}))
	require.NoError(t, r.With(s.ID, func(sess *Session) error {
		assert.Len(t, sess.Turns(), 1)
		return nil
	}))

	require.NoError(t, r.Delete(s.ID))
	assert.ErrorIs(t, r.Delete(s.ID), ErrNotFound)
	assert.ErrorIs(t, r.With(s.ID, func(*Session) error { return nil }), ErrNotFound)
}

func TestRegistry_ConcurrentSessions(t *testing.T) {
	r := NewRegistry()
	a, b := r.Create(), r.Create()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		for _, id := range []string{a.ID, b.ID} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				_ = r.With(id, func(s *Session) error {
					s.AppendTurn(Turn{Role: RoleUser, Content: "q"})
					return nil
				})
			}(id)
		}
	}
	wg.Wait()
	_ = r.With(a.ID, func(s *Session) error { assert.Len(t, s.Turns(), 50); return nil })
	_ = r.With(b.ID, func(s *Session) error { assert.Len(t, s.Turns(), 50); return nil })
}
