package realtime

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type row struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

func mustChange(t *testing.T, event string, r row) Change {
	t.Helper()
	c, err := NewChange(TableHighwayIssues, event, r, nil)
	require.NoError(t, err)
	return c
}

func TestParseFilter(t *testing.T) {
	f, err := ParseFilter(TableHighwayIssues, "update", "status=eq.inspected")
	require.NoError(t, err)
	assert.Equal(t, Filter{Table: TableHighwayIssues, Event: EventUpdate, Column: "status", Value: "inspected"}, f)

	f, err = ParseFilter(TableHighwayIssues, "", "")
	require.NoError(t, err)
	assert.Equal(t, EventAll, f.Event)

	_, err = ParseFilter(TableHighwayIssues, "DELETE", "")
	assert.Error(t, err)
	_, err = ParseFilter(TableHighwayIssues, "*", "status=neq.resolved")
	assert.Error(t, err)
	_, err = ParseFilter("", "*", "")
	assert.Error(t, err)
}

func TestFilter_Matches(t *testing.T) {
	insert := mustChange(t, EventInsert, row{ID: "1", Status: "reported"})
	inspected := mustChange(t, EventUpdate, row{ID: "1", Status: "inspected"})
	resolved := mustChange(t, EventUpdate, row{ID: "1", Status: "resolved"})

	all := Filter{Table: TableHighwayIssues, Event: EventAll}
	inserts := Filter{Table: TableHighwayIssues, Event: EventInsert}
	engineer := Filter{Table: TableHighwayIssues, Event: EventUpdate, Column: "status", Value: "inspected"}
	otherTable := Filter{Table: "user_profiles", Event: EventAll}

	assert.True(t, all.Matches(insert))
	assert.True(t, all.Matches(resolved))
	assert.True(t, inserts.Matches(insert))
	assert.False(t, inserts.Matches(inspected))
	assert.True(t, engineer.Matches(inspected))
	assert.False(t, engineer.Matches(resolved))
	assert.False(t, engineer.Matches(insert))
	assert.False(t, otherTable.Matches(insert))
}

func TestHub_PublishDeliversMatching(t *testing.T) {
	hub := NewHub(4)
	all := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventAll})
	inserts := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventInsert})
	defer all.Unsubscribe()
	defer inserts.Unsubscribe()

	require.NoError(t, hub.Publish(context.Background(), mustChange(t, EventUpdate, row{ID: "1", Status: "resolved"})))

	select {
	case c := <-all.C:
		assert.Equal(t, EventUpdate, c.Event)
		assert.Equal(t, "resolved", c.Record["status"])
	case <-time.After(time.Second):
		t.Fatal("expected change on catch-all subscription")
	}
	select {
	case c := <-inserts.C:
		t.Fatalf("insert subscription received %v", c.Event)
	default:
	}
}

func TestHub_UnsubscribeClosesChannel(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventAll})
	assert.Equal(t, 1, hub.Len())

	sub.Unsubscribe()
	sub.Unsubscribe()

	_, ok := <-sub.C
	assert.False(t, ok)
	assert.Equal(t, 0, hub.Len())

	// Publishing after unsubscribe must not panic
	assert.NoError(t, hub.Publish(context.Background(), mustChange(t, EventInsert, row{ID: "2"})))
}

func TestHub_FullBufferDropsInsteadOfBlocking(t *testing.T) {
	hub := NewHub(1)
	sub := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventAll})
	defer sub.Unsubscribe()

	c := mustChange(t, EventInsert, row{ID: "x"})
	done := make(chan struct{})
	go func() {
		for i := 0; i < 5; i++ {
			_ = hub.Publish(context.Background(), c)
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("publish blocked on a full subscriber")
	}
	assert.Len(t, sub.C, 1)
}

func TestRedisBroker_RelaysIntoHub(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	hub := NewHub(4)
	sub := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventInsert})
	defer sub.Unsubscribe()

	broker := NewRedisBroker(client, hub, "")
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = broker.Run(ctx) }()

	// Publish until the relay's subscription is live
	deadline := time.After(3 * time.Second)
	for {
		require.NoError(t, broker.Publish(ctx, mustChange(t, EventInsert, row{ID: "42", Status: "reported"})))
		select {
		case c := <-sub.C:
			assert.Equal(t, "42", c.Record["id"])
			return
		case <-time.After(50 * time.Millisecond):
		case <-deadline:
			t.Fatal("change was not relayed through redis")
		}
	}
}

func TestHub_AuthEventsReachOnlyTheirUser(t *testing.T) {
	hub := NewHub(4)
	mine := hub.Subscribe(Filter{Table: TableAuth, Event: EventAll, Column: "user_id", Value: "user-1"})
	other := hub.Subscribe(Filter{Table: TableAuth, Event: EventAll, Column: "user_id", Value: "user-2"})
	issues := hub.Subscribe(Filter{Table: TableHighwayIssues, Event: EventAll})
	defer mine.Unsubscribe()
	defer other.Unsubscribe()
	defer issues.Unsubscribe()

	c, err := NewChange(TableAuth, "SIGNED_OUT", map[string]any{"user_id": "user-1", "email": "ada@example.com"}, nil)
	require.NoError(t, err)
	require.NoError(t, hub.Publish(context.Background(), c))

	select {
	case got := <-mine.C:
		assert.Equal(t, "SIGNED_OUT", got.Event)
	case <-time.After(time.Second):
		t.Fatal("expected sign-out on the user's own subscription")
	}
	assert.Len(t, other.C, 0)
	assert.Len(t, issues.C, 0)
}
