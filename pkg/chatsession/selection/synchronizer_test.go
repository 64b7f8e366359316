package selection

import (
	"testing"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/require"

	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/protocol"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
)

type recordingSender struct {
	offline bool
	sent    []protocol.Command
}

func (r *recordingSender) Send(cmd protocol.Command) error {
	if r.offline {
		return connection.ErrNotConnected
	}
	r.sent = append(r.sent, cmd)
	return nil
}

func (r *recordingSender) take() []protocol.Command {
	out := r.sent
	r.sent = nil
	return out
}

func testProfiles() []Profile {
	return []Profile{
		{
			ID:    "p1",
			Label: "Acme - Analyst",
			Packages: []Package{
				{ID: "a", Label: "Pkg A", IsDefault: true},
				{ID: "b", Label: "Pkg B"},
			},
		},
		{
			ID:    "p2",
			Label: "Globex - No role",
			Packages: []Package{
				{ID: "c", Label: "Pkg C"},
				{ID: "d", Label: "Pkg D"},
			},
		},
		{ID: "p3", Label: "General profile"},
	}
}

func newTestSynchronizer(t *testing.T) (*Synchronizer, *recordingSender, *store.Store) {
	t.Helper()
	sender := &recordingSender{}
	st := store.New()
	return NewSynchronizer(testProfiles(), sender, st), sender, st
}

func TestDefaultPackage(t *testing.T) {
	profiles := testProfiles()

	pkg, ok := profiles[0].DefaultPackage()
	require.True(t, ok)
	require.Equal(t, "a", pkg.ID)

	pkg, ok = profiles[1].DefaultPackage()
	require.True(t, ok)
	require.Equal(t, "c", pkg.ID)

	_, ok = profiles[2].DefaultPackage()
	require.False(t, ok)
}

func TestSelectProfileThenAckSelectsDefaultPackage(t *testing.T) {
	s, sender, st := newTestSynchronizer(t)
	require.NoError(t, st.Append(store.Message{ID: "u1", Sender: store.SenderUser, Content: "keep me"}))

	require.NoError(t, s.SelectProfile("p1"))
	require.Equal(t, []protocol.Command{protocol.ProfileChange{ProfileID: "p1"}}, sender.take())
	require.Equal(t, Selected{ID: "p1", Phase: PhaseRequested}, s.Profile())
	require.Equal(t, 1, st.Len(), "store is kept until the package ack")

	require.True(t, s.OnProfileAck("p1"))
	require.Equal(t, []protocol.Command{protocol.PackageChange{PackageID: "a"}}, sender.take())
	require.Equal(t, Selected{ID: "p1", Phase: PhaseConfirmed}, s.Profile())
	require.Equal(t, Selected{ID: "a", Phase: PhaseRequested}, s.Package())
	require.Equal(t, "Pkg A", s.PackageLabel())

	require.True(t, s.OnPackageAck("a", "conv-1"))
	require.Equal(t, Selected{ID: "a", Phase: PhaseConfirmed}, s.Package())
	if diff := cmp.Diff(store.Snapshot{Conversation: store.Conversation{ID: "conv-1", PackageID: "a"}}, st.Snapshot()); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestProfileAckFallsBackToFirstPackage(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p2"))
	sender.take()

	require.True(t, s.OnProfileAck("p2"))
	require.Equal(t, []protocol.Command{protocol.PackageChange{PackageID: "c"}}, sender.take())
	require.Equal(t, "c", s.Package().ID)
}

func TestProfileAckWithoutPackagesClearsPackage(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p1"))
	require.True(t, s.OnProfileAck("p1"))
	sender.take()

	require.NoError(t, s.SelectProfile("p3"))
	require.True(t, s.OnProfileAck("p3"))
	require.Equal(t, []protocol.Command{protocol.ProfileChange{ProfileID: "p3"}}, sender.take())
	require.False(t, s.Package().IsSet())
	require.Empty(t, s.PackageLabel())
}

func TestStaleProfileAckIgnored(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p1"))
	require.NoError(t, s.SelectProfile("p2"))
	sender.take()

	require.False(t, s.OnProfileAck("p1"))
	require.Empty(t, sender.take())
	require.Equal(t, Selected{ID: "p2", Phase: PhaseRequested}, s.Profile())
	require.False(t, s.Package().IsSet())

	require.True(t, s.OnProfileAck("p2"))
	require.Equal(t, []protocol.Command{protocol.PackageChange{PackageID: "c"}}, sender.take())
}

func TestSelectUnknownProfile(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.ErrorIs(t, s.SelectProfile("nope"), ErrUnknownProfile)
	require.Empty(t, sender.take())
	require.False(t, s.Profile().IsSet())
}

func TestSelectPackagePreconditions(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.ErrorIs(t, s.SelectPackage("a"), ErrNoProfile)

	require.NoError(t, s.SelectProfile("p1"))
	require.True(t, s.OnProfileAck("p1"))
	sender.take()

	require.ErrorIs(t, s.SelectPackage("c"), ErrUnknownPackage)
	require.Empty(t, sender.take())
	require.Equal(t, "a", s.Package().ID)

	require.NoError(t, s.SelectPackage("a"))
	require.Empty(t, sender.take(), "same package is a no-op")

	require.NoError(t, s.SelectPackage("b"))
	require.Equal(t, []protocol.Command{protocol.PackageChange{PackageID: "b"}}, sender.take())
	require.Equal(t, Selected{ID: "b", Phase: PhaseRequested}, s.Package())
}

func TestStalePackageAckClearsButDoesNotConfirm(t *testing.T) {
	s, _, st := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p1"))
	require.True(t, s.OnProfileAck("p1"))
	require.NoError(t, s.SelectPackage("b"))

	require.False(t, s.OnPackageAck("a", "conv-a"))
	require.Equal(t, Selected{ID: "b", Phase: PhaseRequested}, s.Package())
	require.Equal(t, store.Conversation{ID: "conv-a", PackageID: "a"}, st.Conversation())

	require.True(t, s.OnPackageAck("b", "conv-b"))
	require.Equal(t, store.Conversation{ID: "conv-b", PackageID: "b"}, st.Conversation())
}

func TestLastAckWins(t *testing.T) {
	s, sender, st := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p1"))
	require.True(t, s.OnProfileAck("p1"))
	require.NoError(t, s.RequestNewConversation())
	require.Equal(t, []protocol.Command{
		protocol.ProfileChange{ProfileID: "p1"},
		protocol.PackageChange{PackageID: "a"},
		protocol.NewConversation{},
	}, sender.take())

	require.NoError(t, st.Append(store.Message{ID: "u1", Sender: store.SenderUser}))
	s.OnPackageAck("a", "conv-1")
	require.NoError(t, st.Append(store.Message{ID: "u2", Sender: store.SenderUser}))
	s.OnNewConversationAck("conv-2")

	snap := st.Snapshot()
	require.Empty(t, snap.Messages)
	require.Equal(t, store.Conversation{ID: "conv-2", PackageID: "a"}, snap.Conversation)
}

func TestRequestNewConversationPreconditions(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.ErrorIs(t, s.RequestNewConversation(), ErrNoProfile)

	require.NoError(t, s.SelectProfile("p3"))
	require.True(t, s.OnProfileAck("p3"))
	sender.take()
	require.ErrorIs(t, s.RequestNewConversation(), ErrNoPackage)
	require.Empty(t, sender.take())
}

func TestResyncKeepsSelectedPackage(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.NoError(t, s.SelectProfile("p1"))
	require.True(t, s.OnProfileAck("p1"))
	require.NoError(t, s.SelectPackage("b"))
	s.OnPackageAck("b", "conv-1")
	sender.take()
	require.Equal(t, Selected{ID: "b", Phase: PhaseConfirmed}, s.Package())

	s.Resync()
	require.Equal(t, []protocol.Command{
		protocol.ProfileChange{ProfileID: "p1"},
		protocol.PackageChange{PackageID: "b"},
	}, sender.take())
	require.Equal(t, Selected{ID: "p1", Phase: PhaseRequested}, s.Profile())
	require.Equal(t, Selected{ID: "b", Phase: PhaseRequested}, s.Package())

	require.True(t, s.OnProfileAck("p1"))
	require.Empty(t, sender.take())
	require.Equal(t, Selected{ID: "p1", Phase: PhaseConfirmed}, s.Profile())
	require.Equal(t, Selected{ID: "b", Phase: PhaseRequested}, s.Package())

	require.True(t, s.OnPackageAck("b", "conv-2"))
	require.Equal(t, Selected{ID: "b", Phase: PhaseConfirmed}, s.Package())
}

func TestPreselectThenResync(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.ErrorIs(t, s.Preselect("nope"), ErrUnknownProfile)
	require.NoError(t, s.Preselect("p2"))
	require.Empty(t, sender.take())
	require.Equal(t, Selected{ID: "c", Phase: PhaseRequested}, s.Package())

	s.Resync()
	require.Equal(t, []protocol.Command{
		protocol.ProfileChange{ProfileID: "p2"},
		protocol.PackageChange{PackageID: "c"},
	}, sender.take())
	require.True(t, s.OnProfileAck("p2"))
	require.Empty(t, sender.take())
}

func TestSelectProfileWhileOfflineIsDeferred(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	require.NoError(t, s.Preselect("p1"))
	sender.offline = true

	require.NoError(t, s.SelectProfile("p2"))
	require.Empty(t, sender.take())
	require.Equal(t, Selected{ID: "p2", Phase: PhaseRequested}, s.Profile())

	sender.offline = false
	s.Resync()
	require.Equal(t, []protocol.Command{protocol.ProfileChange{ProfileID: "p2"}}, sender.take())

	require.True(t, s.OnProfileAck("p2"))
	require.Equal(t, []protocol.Command{protocol.PackageChange{PackageID: "c"}}, sender.take())
}

func TestResyncWithoutProfileSendsNothing(t *testing.T) {
	s, sender, _ := newTestSynchronizer(t)
	s.Resync()
	require.Empty(t, sender.take())
}
