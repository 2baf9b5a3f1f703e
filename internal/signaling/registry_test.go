package signaling

import (
	"fmt"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testClient(id string) *Client {
	return &Client{
		ID:   id,
		send: make(chan *Message, 16),
	}
}

func TestCreateRoomIssuesUniqueTokens(t *testing.T) {
	reg := NewRegistry(nil)

	a := reg.CreateRoom()
	b := reg.CreateRoom()

	assert.NotEmpty(t, a)
	assert.NotEqual(t, a, b)

	// A token alone does not materialize the room.
	_, ok := reg.Room(a)
	assert.False(t, ok)
}

func TestJoinMaterializesRoomAndReportsPriorMembers(t *testing.T) {
	reg := NewRegistry(nil)
	roomID := reg.CreateRoom()

	members, added, err := reg.Join(roomID, testClient("alice"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Empty(t, members)

	members, added, err = reg.Join(roomID, testClient("bob"))
	require.NoError(t, err)
	assert.True(t, added)
	assert.Equal(t, []string{"alice"}, members)

	room, ok := reg.Room(roomID)
	require.True(t, ok)
	assert.ElementsMatch(t, []string{"alice", "bob"}, room.MemberIDs())
}

func TestJoinRejectsThirdParticipant(t *testing.T) {
	reg := NewRegistry(nil)
	roomID := "pair"

	_, _, err := reg.Join(roomID, testClient("alice"))
	require.NoError(t, err)
	_, _, err = reg.Join(roomID, testClient("bob"))
	require.NoError(t, err)

	_, _, err = reg.Join(roomID, testClient("carol"))
	assert.ErrorIs(t, err, ErrRoomFull)

	// The rejected join must not disturb the existing pair.
	room, ok := reg.Room(roomID)
	require.True(t, ok)
	assert.Len(t, room.MemberIDs(), 2)
}

func TestRejoinIsIdempotent(t *testing.T) {
	reg := NewRegistry(nil)
	alice := testClient("alice")

	_, added, err := reg.Join("room", alice)
	require.NoError(t, err)
	assert.True(t, added)

	members, added, err := reg.Join("room", alice)
	require.NoError(t, err)
	assert.False(t, added)
	assert.Empty(t, members)

	room, _ := reg.Room("room")
	assert.Equal(t, []string{"alice"}, room.MemberIDs())
}

func TestLeaveReportsMembershipExactlyOnce(t *testing.T) {
	reg := NewRegistry(nil)
	alice := testClient("alice")
	bob := testClient("bob")

	_, _, err := reg.Join("room", alice)
	require.NoError(t, err)
	_, _, err = reg.Join("room", bob)
	require.NoError(t, err)

	assert.True(t, reg.Leave("room", alice))
	assert.False(t, reg.Leave("room", alice))
	assert.False(t, reg.Leave("missing", bob))
}

func TestEmptiedRoomIsCollected(t *testing.T) {
	reg := NewRegistry(nil)
	alice := testClient("alice")

	_, _, err := reg.Join("room", alice)
	require.NoError(t, err)
	require.True(t, reg.Leave("room", alice))

	_, ok := reg.Room("room")
	assert.False(t, ok)

	// The same token works again and yields a fresh, empty room.
	members, _, err := reg.Join("room", testClient("bob"))
	require.NoError(t, err)
	assert.Empty(t, members)
}

func TestConcurrentJoinsNeverOverfill(t *testing.T) {
	reg := NewRegistry(nil)
	roomID := "contested"

	const attempts = 16
	var wg sync.WaitGroup
	errs := make([]error, attempts)

	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, _, errs[i] = reg.Join(roomID, testClient(fmt.Sprintf("p%02d", i)))
		}(i)
	}
	wg.Wait()

	admitted := 0
	for _, err := range errs {
		if err == nil {
			admitted++
		} else {
			assert.ErrorIs(t, err, ErrRoomFull)
		}
	}
	assert.Equal(t, 2, admitted)

	room, ok := reg.Room(roomID)
	require.True(t, ok)
	assert.Len(t, room.MemberIDs(), 2)
}

func TestCollectedRoomRejectsStragglers(t *testing.T) {
	reg := NewRegistry(nil)

	// Hold a stale pointer to a room that collection then removes.
	stale := reg.getOrCreate("room")
	reg.collect(stale)

	_, _, err := stale.add(testClient("alice"))
	assert.ErrorIs(t, err, errRoomGone)

	// The same token still works; the registry hands out a fresh room.
	members, _, err := reg.Join("room", testClient("alice"))
	require.NoError(t, err)
	assert.Empty(t, members)

	fresh, ok := reg.Room("room")
	require.True(t, ok)
	assert.NotSame(t, stale, fresh)
}
