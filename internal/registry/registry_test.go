package registry_test

import (
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"
	"testing"

	"github.com/Tyrowin/wsrelay/internal/registry"
	"github.com/Tyrowin/wsrelay/mocks"
	"github.com/stretchr/testify/require"
	"go.uber.org/mock/gomock"
)

type recorder struct {
	mu   sync.Mutex
	msgs []string
}

func (r *recorder) SendText(text string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, text)
	return nil
}

func (r *recorder) messages() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]string(nil), r.msgs...)
}

func newRegistry() *registry.Registry {
	return registry.New(slog.New(slog.DiscardHandler))
}

func TestRegistry_Two_Clients_Chat_Then_Leave(t *testing.T) {
	req := require.New(t)
	reg := newRegistry()
	a, b := &recorder{}, &recorder{}

	// Given A then B connect, each followed by a roster broadcast
	reg.Connect("10.0.0.1", a)
	reg.BroadcastRoster()
	reg.Connect("10.0.0.2", b)
	reg.BroadcastRoster()

	req.Equal([]string{"CLIENT_LIST:10.0.0.1", "CLIENT_LIST:10.0.0.1,10.0.0.2"}, a.messages())
	req.Equal([]string{"CLIENT_LIST:10.0.0.1,10.0.0.2"}, b.messages())

	// When A says hi
	reg.Broadcast(registry.FormatRelay("10.0.0.1", "hi"))

	// Then B receives it with the sender prefix
	req.Equal("10.0.0.1 from server: hi", b.messages()[1])

	// When A leaves
	req.True(reg.Disconnect(a))
	reg.BroadcastRoster()

	// Then B sees the updated roster and A gets nothing more
	req.Equal("CLIENT_LIST:10.0.0.2", b.messages()[2])
	req.Len(a.messages(), 3)
	req.Equal([]string{"10.0.0.2"}, reg.ListIdentifiers())
}

func TestRegistry_Broadcast_Each_Client_Receives_Exactly_Once(t *testing.T) {
	req := require.New(t)
	reg := newRegistry()
	clients := map[string]*recorder{"A": {}, "B": {}, "C": {}}
	for id, ch := range clients {
		reg.Connect(id, ch)
	}

	reg.Broadcast(registry.FormatRelay("A", "m"))

	for id, ch := range clients {
		req.Equal([]string{"A from server: m"}, ch.messages(), "client %s", id)
	}
}

func TestRegistry_Broadcast_Isolates_Failing_Channel(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := newRegistry()

	a := mocks.NewMockChannel(ctrl)
	b := mocks.NewMockChannel(ctrl)
	c := mocks.NewMockChannel(ctrl)
	reg.Connect("a", a)
	reg.Connect("b", b)
	reg.Connect("c", c)

	a.EXPECT().SendText("boom").Return(nil).Times(1)
	b.EXPECT().SendText("boom").Return(errors.New("connection reset by peer")).Times(1)
	c.EXPECT().SendText("boom").Return(nil).Times(1)

	reg.Broadcast("boom")

	// A failed send does not deregister anyone
	require.Equal(t, []string{"a", "b", "c"}, reg.ListIdentifiers())
}

func TestRegistry_Broadcast_Recovers_From_Panicking_Channel(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := newRegistry()

	bad := mocks.NewMockChannel(ctrl)
	good := &recorder{}
	reg.Connect("bad", bad)
	reg.Connect("good", good)

	bad.EXPECT().SendText(gomock.Any()).DoAndReturn(func(string) error {
		panic("send on closed channel")
	})

	require.NotPanics(t, func() { reg.Broadcast("still delivered") })
	require.Equal(t, []string{"still delivered"}, good.messages())
}

func TestRegistry_BroadcastRoster_Matches_Registry(t *testing.T) {
	req := require.New(t)
	reg := newRegistry()
	a, b, c := &recorder{}, &recorder{}, &recorder{}
	reg.Connect("1.1.1.1", a)
	reg.Connect("2.2.2.2", b)
	reg.Connect("3.3.3.3", c)

	req.True(reg.Disconnect(b))
	reg.BroadcastRoster()

	req.Equal([]string{"CLIENT_LIST:1.1.1.1,3.3.3.3"}, a.messages())
	req.Equal([]string{"CLIENT_LIST:1.1.1.1,3.3.3.3"}, c.messages())
	req.Empty(b.messages())
}

func TestRegistry_BroadcastRoster_Empty_Registry(t *testing.T) {
	reg := newRegistry()
	require.NotPanics(t, reg.BroadcastRoster)
	require.Equal(t, "CLIENT_LIST:", registry.FormatRoster(reg.ListIdentifiers()))
}

func TestRegistry_SendToOne(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := newRegistry()
	target := mocks.NewMockChannel(ctrl)
	other := mocks.NewMockChannel(ctrl)
	reg.Connect("10.0.0.1", target)
	reg.Connect("10.0.0.2", other)

	target.EXPECT().SendText("private").Return(nil).Times(1)
	other.EXPECT().SendText(gomock.Any()).Times(0)

	require.True(t, reg.SendToOne("10.0.0.1", "private"))
}

func TestRegistry_SendToOne_Unknown_Identifier(t *testing.T) {
	reg := newRegistry()
	ch := &recorder{}
	reg.Connect("10.0.0.1", ch)

	require.NotPanics(t, func() {
		require.False(t, reg.SendToOne("192.168.0.99", "anyone?"))
	})
	require.Empty(t, ch.messages())
}

func TestRegistry_SendToOne_Channel_Refuses(t *testing.T) {
	ctrl := gomock.NewController(t)
	reg := newRegistry()
	ch := mocks.NewMockChannel(ctrl)
	reg.Connect("10.0.0.1", ch)

	ch.EXPECT().SendText("x").Return(errors.New("send buffer full"))

	require.False(t, reg.SendToOne("10.0.0.1", "x"))
}

func TestRegistry_Disconnect_Unregistered_Channel_Is_Noop(t *testing.T) {
	reg := newRegistry()
	reg.Connect("a", &recorder{})

	require.False(t, reg.Disconnect(&recorder{}))
	require.Equal(t, []string{"a"}, reg.ListIdentifiers())
}

func TestRegistry_Same_Identifier_Replaces_Previous_Connection(t *testing.T) {
	req := require.New(t)
	reg := newRegistry()
	first, second := &recorder{}, &recorder{}

	// Given two clients behind the same network origin
	reg.Connect("203.0.113.7", first)
	reg.Connect("203.0.113.7", second)

	// Then only the second is reachable
	req.Equal([]string{"203.0.113.7"}, reg.ListIdentifiers())
	req.True(reg.SendToOne("203.0.113.7", "hello"))
	req.Equal([]string{"hello"}, second.messages())
	req.Empty(first.messages())

	// And closing the displaced channel does not evict the live one
	req.False(reg.Disconnect(first))
	req.Equal(1, reg.Len())
}

func TestRegistry_Reconnect_Keeps_Roster_Position(t *testing.T) {
	reg := newRegistry()
	reg.Connect("a", &recorder{})
	reg.Connect("b", &recorder{})
	reg.Connect("a", &recorder{})

	require.Equal(t, []string{"a", "b"}, reg.ListIdentifiers())
}

func TestRegistry_ListIdentifiers_Returns_Snapshot(t *testing.T) {
	reg := newRegistry()
	reg.Connect("a", &recorder{})

	ids := reg.ListIdentifiers()
	ids[0] = "mutated"

	require.Equal(t, []string{"a"}, reg.ListIdentifiers())
}

func TestRegistry_Concurrent_Connect_Loses_Nothing(t *testing.T) {
	const n = 200
	reg := newRegistry()

	var wg sync.WaitGroup
	expected := make([]string, n)
	for i := range n {
		expected[i] = fmt.Sprintf("10.0.%d.%d", i/256, i%256)
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			reg.Connect(id, &recorder{})
			reg.BroadcastRoster()
		}(expected[i])
	}
	wg.Wait()

	require.ElementsMatch(t, expected, reg.ListIdentifiers())
	require.Equal(t, n, reg.Len())
}

func TestRegistry_Concurrent_Connect_Disconnect_Broadcast(t *testing.T) {
	const n = 100
	reg := newRegistry()
	channels := make([]*recorder, n)
	for i := range channels {
		channels[i] = &recorder{}
	}

	var wg sync.WaitGroup
	for i, ch := range channels {
		wg.Add(1)
		go func() {
			defer wg.Done()
			id := fmt.Sprintf("c%d", i)
			reg.Connect(id, ch)
			reg.Broadcast("tick")
			if i%2 == 0 {
				reg.Disconnect(ch)
			}
			_ = reg.ListIdentifiers()
		}()
	}
	wg.Wait()

	require.Equal(t, n/2, reg.Len())
	for _, id := range reg.ListIdentifiers() {
		var i int
		_, err := fmt.Sscanf(id, "c%d", &i)
		require.NoError(t, err)
		require.Equal(t, 1, i%2, "even clients disconnected, found %s", id)
	}
}

func TestRegistry_Random_Sequences_Match_Model(t *testing.T) {
	rng := rand.New(rand.NewPCG(42, 7))
	ids := []string{"a", "b", "c", "d", "e"}

	for round := range 50 {
		reg := newRegistry()
		model := map[string]*recorder{}

		for range 40 {
			id := ids[rng.IntN(len(ids))]
			if rng.IntN(2) == 0 {
				ch := &recorder{}
				reg.Connect(id, ch)
				model[id] = ch
			} else if ch, ok := model[id]; ok {
				require.True(t, reg.Disconnect(ch))
				delete(model, id)
			}
		}

		want := make([]string, 0, len(model))
		for id := range model {
			want = append(want, id)
		}
		require.ElementsMatch(t, want, reg.ListIdentifiers(), "round %d", round)
	}
}

func TestFormatters(t *testing.T) {
	require.Equal(t, "CLIENT_LIST:1.2.3.4,5.6.7.8", registry.FormatRoster([]string{"1.2.3.4", "5.6.7.8"}))
	require.Equal(t, "1.2.3.4 from server: hello", registry.FormatRelay("1.2.3.4", "hello"))
}
