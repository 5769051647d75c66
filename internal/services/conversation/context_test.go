package conversation

import (
	"fmt"
	"sync"
	"testing"

	"github.com/modelzoo/backend/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConfig() models.ConversationConfig {
	return models.ConversationConfig{MaxMessages: 6, WindowTurns: 4}
}

func TestContextAppendAndWindow(t *testing.T) {
	reg := NewRegistry(testConfig())
	ctx := reg.Get("s1")

	ctx.Append(
		Turn{Role: RoleUser, Content: "first"},
		Turn{Role: RoleAssistant, Content: "reply"},
	)

	window := ctx.Window()
	require.Len(t, window, 2)
	assert.Equal(t, "first", window[0].Content)
	assert.Equal(t, "reply", window[1].Content)
}

func TestContextDropsOldestPastCap(t *testing.T) {
	reg := NewRegistry(testConfig())
	ctx := reg.Get("s1")

	for i := range 10 {
		ctx.Append(Turn{Role: RoleUser, Content: fmt.Sprintf("turn-%d", i)})
	}

	assert.Equal(t, 6, ctx.Len())

	// Window holds the newest turns in order
	window := ctx.Window()
	require.Len(t, window, 4)
	assert.Equal(t, "turn-6", window[0].Content)
	assert.Equal(t, "turn-9", window[3].Content)
}

func TestContextWindowIsACopy(t *testing.T) {
	reg := NewRegistry(testConfig())
	ctx := reg.Get("s1")
	ctx.Append(Turn{Role: RoleUser, Content: "original"})

	window := ctx.Window()
	window[0].Content = "mutated"

	assert.Equal(t, "original", ctx.Window()[0].Content)
}

func TestRegistryReturnsSameContextPerSession(t *testing.T) {
	reg := NewRegistry(testConfig())

	assert.Same(t, reg.Get("s1"), reg.Get("s1"))
	assert.NotSame(t, reg.Get("s1"), reg.Get("s2"))
}

func TestRegistrySeedBoundsHistory(t *testing.T) {
	reg := NewRegistry(testConfig())

	turns := make([]Turn, 10)
	for i := range turns {
		turns[i] = Turn{Role: RoleUser, Content: fmt.Sprintf("turn-%d", i)}
	}

	ctx := reg.Seed("s1", turns)
	assert.Equal(t, 6, ctx.Len())
	assert.Equal(t, "turn-9", ctx.Window()[3].Content)
}

func TestRegistrySeedDoesNotOverwriteLoadedContext(t *testing.T) {
	reg := NewRegistry(testConfig())

	ctx := reg.Get("s1")
	ctx.Append(Turn{Role: RoleUser, Content: "live"})

	seeded := reg.Seed("s1", []Turn{{Role: RoleUser, Content: "stale"}})
	assert.Same(t, ctx, seeded)
	assert.Equal(t, "live", seeded.Window()[0].Content)
}

func TestRegistryEvict(t *testing.T) {
	reg := NewRegistry(testConfig())

	first := reg.Get("s1")
	first.Append(Turn{Role: RoleUser, Content: "x"})

	reg.Evict("s1")
	assert.Equal(t, 0, reg.Get("s1").Len())
}

func TestContextConcurrentAppends(t *testing.T) {
	reg := NewRegistry(models.ConversationConfig{MaxMessages: 1000, WindowTurns: 10})
	ctx := reg.Get("s1")

	var wg sync.WaitGroup
	for range 10 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for range 20 {
				ctx.Append(Turn{Role: RoleUser, Content: "m"})
			}
		}()
	}
	wg.Wait()

	assert.Equal(t, 200, ctx.Len())
}

func TestTurnExclusionSerializesLogicalTurns(t *testing.T) {
	reg := NewRegistry(testConfig())
	ctx := reg.Get("s1")

	done := make(chan struct{})
	ctx.BeginTurn()
	go func() {
		ctx.BeginTurn()
		defer ctx.EndTurn()
		close(done)
	}()

	select {
	case <-done:
		t.Fatal("second turn started while first still held the lock")
	default:
	}

	ctx.EndTurn()
	<-done
}
