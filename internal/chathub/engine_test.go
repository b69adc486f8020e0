package chathub_test

import (
	"chatrelay/backend/internal/chathub"
	"chatrelay/backend/internal/models"
	"chatrelay/backend/internal/storage"
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

var t0 = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newTestEngine(store storage.MessageStore) *chathub.Engine {
	return chathub.NewEngine(chathub.NewRoomRegistry(), store, testLogger(), time.Second)
}

func TestEngine_OnJoin_AcksRequesterOnly(t *testing.T) {
	// Arrange
	engine := newTestEngine(new(MockStore))
	a, b := newFakeClient("A"), newFakeClient("B")
	engine.OnJoin("r1", a, "")

	// Act
	ack := engine.OnJoin("r1", b, "ref-1")

	// Assert
	assert.Equal(t, models.EventAck, ack.Event)
	assert.Equal(t, models.StatusOK, ack.Status)
	assert.Equal(t, "ref-1", ack.Ref)
	assert.Empty(t, a.inbox, "joins are never broadcast")
	assert.Equal(t, 2, engine.Registry().Size("r1"))
}

func TestEngine_OnLeave_NotJoinedStillAcks(t *testing.T) {
	engine := newTestEngine(new(MockStore))
	a := newFakeClient("A")

	ack := engine.OnLeave("r1", a, "ref-2")

	assert.Equal(t, models.NewAck("ref-2"), ack)
}

func TestEngine_OnDisconnecting_CleansMembership(t *testing.T) {
	engine := newTestEngine(new(MockStore))
	a := newFakeClient("A")
	engine.OnJoin("R", a, "")

	engine.OnDisconnecting(a)
	engine.OnDisconnecting(a) // second call is harmless

	assert.Empty(t, engine.Registry().MembersOf("R"))
	assert.Equal(t, chathub.StateClosed, a.Session().State())
}

func TestEngine_OnSend_PersistsThenBroadcastsCanonicalRecord(t *testing.T) {
	// Arrange
	store := new(MockStore)
	engine := newTestEngine(store)
	a, b, c := newFakeClient("A"), newFakeClient("B"), newFakeClient("C")
	for _, client := range []*fakeClient{a, b, c} {
		engine.OnJoin("R", client, "")
	}

	// The store normalizes content; the broadcast must carry the stored form.
	stored := &models.Message{ID: 11, ChatID: "R", Kind: models.KindUser, Sender: "A", Timestamp: t0, Content: "hi (stored)"}
	store.On("AppendMessage", mock.Anything, "R", models.KindUser, "A", t0, "hi").Return(uint(11), nil).Once()
	store.On("FetchMessageByID", mock.Anything, uint(11)).Return(stored, nil).Once()

	// Act
	msg, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Timestamp: t0, Content: "hi"})

	// Assert
	require.NoError(t, err)
	assert.Equal(t, stored, msg)
	for _, client := range []*fakeClient{a, b, c} {
		got := client.DrainMessages()
		require.Len(t, got, 1, "client %s should receive exactly once", client.handle)
		assert.Equal(t, *stored, got[0])
	}
	store.AssertExpectations(t)
}

func TestEngine_OnSend_AppendFailureDoesNotBroadcast(t *testing.T) {
	// Arrange
	store := new(MockStore)
	engine := newTestEngine(store)
	a := newFakeClient("A")
	engine.OnJoin("R", a, "")
	store.On("AppendMessage", mock.Anything, "R", models.KindUser, "A", t0, "hi").Return(uint(0), errors.New("disk full"))

	// Act
	msg, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Timestamp: t0, Content: "hi"})

	// Assert
	assert.Nil(t, msg)
	assert.ErrorIs(t, err, chathub.ErrPersistence)
	assert.Empty(t, a.DrainMessages())
	store.AssertNotCalled(t, "FetchMessageByID", mock.Anything, mock.Anything)
	assert.Equal(t, 1, engine.Registry().Size("R"), "a failed send leaves membership untouched")
}

func TestEngine_OnSend_ReadBackFailureDoesNotBroadcast(t *testing.T) {
	store := new(MockStore)
	engine := newTestEngine(store)
	a := newFakeClient("A")
	engine.OnJoin("R", a, "")
	store.On("AppendMessage", mock.Anything, "R", models.KindUser, "A", t0, "hi").Return(uint(5), nil)
	store.On("FetchMessageByID", mock.Anything, uint(5)).Return(nil, storage.ErrNotFound)

	_, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Timestamp: t0, Content: "hi"})

	assert.ErrorIs(t, err, chathub.ErrPersistence)
	assert.ErrorIs(t, err, storage.ErrNotFound)
	assert.Empty(t, a.DrainMessages())
}

func TestEngine_OnSend_EmptyRoomStillPersists(t *testing.T) {
	store := &memoryStore{}
	engine := newTestEngine(store)

	msg, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "empty", Sender: "A", Timestamp: t0, Content: "anyone?"})

	require.NoError(t, err)
	assert.True(t, store.ids()[msg.ID])
}

func TestEngine_OnSend_DeliveryFailureSkipsOnlyThatRecipient(t *testing.T) {
	store := &memoryStore{}
	engine := newTestEngine(store)
	a, b, c := newFakeClient("A"), newFakeClient("B"), newFakeClient("C")
	b.failing = true
	for _, client := range []*fakeClient{a, b, c} {
		engine.OnJoin("R", client, "")
	}

	_, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Timestamp: t0, Content: "hi"})

	require.NoError(t, err, "delivery failures do not fail the send")
	assert.Len(t, a.DrainMessages(), 1)
	assert.Len(t, c.DrainMessages(), 1)
	assert.Equal(t, 3, engine.Registry().Size("R"))
}

func TestEngine_OnSend_PreservesPerConnectionOrder(t *testing.T) {
	store := &memoryStore{}
	engine := newTestEngine(store)
	a, b := newFakeClient("A"), newFakeClient("B")
	engine.OnJoin("R", a, "")
	engine.OnJoin("R", b, "")

	for i := 0; i < 10; i++ {
		_, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Content: fmt.Sprint(i)})
		require.NoError(t, err)
	}

	got := b.DrainMessages()
	require.Len(t, got, 10)
	for i, msg := range got {
		assert.Equal(t, fmt.Sprint(i), msg.Content)
	}
}

func TestEngine_PostSystem(t *testing.T) {
	store := &memoryStore{}
	engine := newTestEngine(store)
	a := newFakeClient("A")
	engine.OnJoin("R", a, "")

	_, err := engine.PostSystem(context.Background(), "R", "maintenance at noon")

	require.NoError(t, err)
	got := a.DrainMessages()
	require.Len(t, got, 1)
	assert.Equal(t, models.KindSystem, got[0].Kind)
	assert.Equal(t, chathub.SystemSender, got[0].Sender)
}

// TestEngine_Scenario walks a two-participant conversation end to end.
func TestEngine_Scenario(t *testing.T) {
	req := require.New(t)
	store := &memoryStore{}
	engine := newTestEngine(store)
	a, b := newFakeClient("A"), newFakeClient("B")

	// Given A and B joined r1
	engine.OnJoin("r1", a, "")
	engine.OnJoin("r1", b, "")

	// When A says hi
	_, err := engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "r1", Sender: "A", Timestamp: t0, Content: "hi"})
	req.NoError(err)

	// Then both receive the stored message
	for _, client := range []*fakeClient{a, b} {
		got := client.DrainMessages()
		req.Len(got, 1)
		req.Equal("hi", got[0].Content)
		req.Equal("A", got[0].Sender)
		req.Equal(models.KindUser, got[0].Kind)
		req.NotZero(got[0].ID)
	}

	// When B disconnects and A says bye
	engine.OnDisconnecting(b)
	_, err = engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "r1", Sender: "A", Content: "bye"})
	req.NoError(err)

	// Then only A gets the echo
	req.Len(a.DrainMessages(), 1)
	req.Empty(b.DrainMessages())
	req.Equal([]string{"A"}, handles(engine.Registry().MembersOf("r1")))
}

// flakyStore fails every third append.
type flakyStore struct {
	memoryStore
	mu    sync.Mutex
	calls int
}

func (s *flakyStore) AppendMessage(ctx context.Context, chatID string, kind models.MessageKind, sender string, timestamp time.Time, content string) (uint, error) {
	s.mu.Lock()
	s.calls++
	fail := s.calls%3 == 0
	s.mu.Unlock()
	if fail {
		return 0, errors.New("store unavailable")
	}
	return s.memoryStore.AppendMessage(ctx, chatID, kind, sender, timestamp, content)
}

func TestEngine_DurabilityBeforeDelivery(t *testing.T) {
	store := &flakyStore{}
	engine := newTestEngine(store)
	members := make([]*fakeClient, 4)
	for i := range members {
		members[i] = newFakeClient(fmt.Sprintf("m%d", i))
		engine.OnJoin("R", members[i], "")
	}

	var wg sync.WaitGroup
	for i := 0; i < 12; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "m0", Content: fmt.Sprint(i)})
		}(i)
	}
	wg.Wait()

	stored := store.ids()
	require.Len(t, stored, 8)
	for _, m := range members {
		got := m.DrainMessages()
		assert.Len(t, got, 8)
		for _, msg := range got {
			assert.True(t, stored[msg.ID], "broadcast message %d must exist in the store", msg.ID)
		}
	}
}

func TestEngine_DisconnectDuringSends(t *testing.T) {
	store := &memoryStore{}
	engine := newTestEngine(store)
	a, b := newFakeClient("A"), newFakeClient("B")
	engine.OnJoin("R", a, "")
	engine.OnJoin("R", b, "")

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _ = engine.OnSend(context.Background(), chathub.SendRequest{ChatID: "R", Sender: "A", Content: fmt.Sprint(i)})
		}(i)
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		engine.OnDisconnecting(b)
	}()
	wg.Wait()

	assert.Equal(t, []string{"A"}, handles(engine.Registry().MembersOf("R")))
	assert.Len(t, a.DrainMessages(), 20)
	assert.LessOrEqual(t, len(b.DrainMessages()), 20)
}
