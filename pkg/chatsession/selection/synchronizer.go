package selection

import (
	"sync"

	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"

	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/protocol"
)

// Phase tells whether a selection has been acknowledged by the server.
type Phase int

const (
	PhaseNone Phase = iota
	PhaseRequested
	PhaseConfirmed
)

func (p Phase) String() string {
	switch p {
	case PhaseNone:
		return "none"
	case PhaseRequested:
		return "requested"
	case PhaseConfirmed:
		return "confirmed"
	default:
		return "unknown"
	}
}

// Selected is the locally selected id and how far the server has caught up.
type Selected struct {
	ID    string
	Phase Phase
}

func (s Selected) IsSet() bool { return s.ID != "" }

// Sender delivers commands to the server.
type Sender interface {
	Send(cmd protocol.Command) error
}

// ConversationStore is the part of the store the synchronizer resets.
type ConversationStore interface {
	Clear(conversationID, packageID string)
}

type pendingProfile struct {
	id     string
	resync bool
}

// Synchronizer keeps the profile, package and conversation selection in
// step with the server. Acknowledgments that reference an id other than the
// current selection are treated as stale.
type Synchronizer struct {
	mu       sync.Mutex
	profiles []Profile
	byID     map[string]int
	sender   Sender
	store    ConversationStore

	profile Selected
	pkg     Selected
	pending *pendingProfile
}

func NewSynchronizer(profiles []Profile, sender Sender, store ConversationStore) *Synchronizer {
	s := &Synchronizer{
		profiles: append([]Profile(nil), profiles...),
		byID:     make(map[string]int, len(profiles)),
		sender:   sender,
		store:    store,
	}
	for i, p := range s.profiles {
		s.byID[p.ID] = i
	}
	return s
}

// Preselect sets the startup selection without sending anything: the given
// profile and its default package, both Requested. The next Resync tells the
// server about them.
func (s *Synchronizer) Preselect(profileID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.profileLocked(profileID)
	if !ok {
		return errors.Wrapf(ErrUnknownProfile, "profile %q", profileID)
	}
	s.profile = Selected{ID: p.ID, Phase: PhaseRequested}
	s.pkg = Selected{}
	if def, ok := p.DefaultPackage(); ok {
		s.pkg = Selected{ID: def.ID, Phase: PhaseRequested}
	}
	s.pending = &pendingProfile{id: p.ID, resync: true}
	return nil
}

// SelectProfile switches to another profile. The conversation is kept until
// the server acknowledges the switch and a new package conversation starts.
// When the connection is down the request is sent on the next Resync.
func (s *Synchronizer) SelectProfile(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.profileLocked(id); !ok {
		return errors.Wrapf(ErrUnknownProfile, "profile %q", id)
	}
	s.profile = Selected{ID: id, Phase: PhaseRequested}
	s.pending = &pendingProfile{id: id}
	return s.sendLocked(protocol.ProfileChange{ProfileID: id})
}

// OnProfileAck confirms the selected profile and selects its default
// package. A resync acknowledgment keeps the current package when the
// profile still offers it. It reports false for a stale acknowledgment.
func (s *Synchronizer) OnProfileAck(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.IsSet() || s.profile.ID != id {
		log.Debug().Str("component", "selection").Str("profile_id", id).Str("selected", s.profile.ID).Msg("ignoring stale profile ack")
		return false
	}
	p, _ := s.profileLocked(id)
	s.profile.Phase = PhaseConfirmed
	pending := s.pending
	s.pending = nil

	if s.pkg.IsSet() && (pending == nil || pending.resync) {
		if _, ok := p.Package(s.pkg.ID); ok {
			return true
		}
	}

	def, ok := p.DefaultPackage()
	if !ok {
		s.pkg = Selected{}
		return true
	}
	s.pkg = Selected{ID: def.ID, Phase: PhaseRequested}
	if err := s.sendLocked(protocol.PackageChange{PackageID: def.ID}); err != nil {
		log.Warn().Err(err).Str("component", "selection").Str("package_id", def.ID).Msg("could not request default package")
	}
	return true
}

// SelectPackage switches to a package of the selected profile. Selecting the
// current package again does nothing.
func (s *Synchronizer) SelectPackage(id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.IsSet() {
		return ErrNoProfile
	}
	p, _ := s.profileLocked(s.profile.ID)
	if _, ok := p.Package(id); !ok {
		return errors.Wrapf(ErrUnknownPackage, "package %q", id)
	}
	if s.pkg.ID == id {
		return nil
	}
	s.pkg = Selected{ID: id, Phase: PhaseRequested}
	return s.sendLocked(protocol.PackageChange{PackageID: id})
}

// OnPackageAck starts the conversation the server opened for the package.
// The store is always reset to the acknowledged conversation; the selection
// is confirmed only when the acknowledgment matches it. It reports whether
// it matched.
func (s *Synchronizer) OnPackageAck(packageID, conversationID string) bool {
	s.mu.Lock()
	matched := s.pkg.IsSet() && s.pkg.ID == packageID
	if matched {
		s.pkg.Phase = PhaseConfirmed
	}
	s.mu.Unlock()

	if !matched {
		log.Debug().Str("component", "selection").Str("package_id", packageID).Msg("package ack does not match selection")
	}
	s.store.Clear(conversationID, packageID)
	return matched
}

// RequestNewConversation asks the server for a fresh conversation with the
// selected package.
func (s *Synchronizer) RequestNewConversation() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.IsSet() {
		return ErrNoProfile
	}
	if !s.pkg.IsSet() {
		return ErrNoPackage
	}
	return s.sender.Send(protocol.NewConversation{})
}

func (s *Synchronizer) OnNewConversationAck(conversationID string) {
	s.mu.Lock()
	pkgID := s.pkg.ID
	s.mu.Unlock()

	s.store.Clear(conversationID, pkgID)
}

// Resync re-sends the current selection after the connection opened. The
// new server session has acknowledged nothing yet, so everything re-sent
// goes back to Requested.
func (s *Synchronizer) Resync() {
	s.mu.Lock()
	defer s.mu.Unlock()

	if !s.profile.IsSet() {
		return
	}
	if s.pending == nil || s.pending.resync {
		s.pending = &pendingProfile{id: s.profile.ID, resync: true}
	}
	s.profile.Phase = PhaseRequested
	if err := s.sender.Send(protocol.ProfileChange{ProfileID: s.profile.ID}); err != nil {
		log.Warn().Err(err).Str("component", "selection").Msg("resync profile_change failed")
		return
	}
	if !s.pkg.IsSet() {
		return
	}
	p, _ := s.profileLocked(s.profile.ID)
	if _, ok := p.Package(s.pkg.ID); !ok {
		return
	}
	s.pkg.Phase = PhaseRequested
	if err := s.sender.Send(protocol.PackageChange{PackageID: s.pkg.ID}); err != nil {
		log.Warn().Err(err).Str("component", "selection").Msg("resync gpt_package_change failed")
	}
}

func (s *Synchronizer) Profile() Selected {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.profile
}

func (s *Synchronizer) Package() Selected {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pkg
}

// CurrentProfile returns the selected profile's data.
func (s *Synchronizer) CurrentProfile() (Profile, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.profile.IsSet() {
		return Profile{}, false
	}
	return s.profileLocked(s.profile.ID)
}

// CurrentPackage returns the selected package's data.
func (s *Synchronizer) CurrentPackage() (Package, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.profile.IsSet() || !s.pkg.IsSet() {
		return Package{}, false
	}
	p, _ := s.profileLocked(s.profile.ID)
	return p.Package(s.pkg.ID)
}

// PackageLabel is the label of the selected package, or "".
func (s *Synchronizer) PackageLabel() string {
	pkg, ok := s.CurrentPackage()
	if !ok {
		return ""
	}
	return pkg.Label
}

func (s *Synchronizer) Profiles() []Profile {
	return append([]Profile(nil), s.profiles...)
}

func (s *Synchronizer) profileLocked(id string) (Profile, bool) {
	i, ok := s.byID[id]
	if !ok {
		return Profile{}, false
	}
	return s.profiles[i], true
}

// sendLocked sends cmd; a closed connection is not an error since Resync
// repeats the selection once the connection opens.
func (s *Synchronizer) sendLocked(cmd protocol.Command) error {
	err := s.sender.Send(cmd)
	if errors.Is(err, connection.ErrNotConnected) {
		log.Debug().Str("component", "selection").Str("type", cmd.CommandType()).Msg("not connected, deferring to resync")
		return nil
	}
	if err != nil {
		return errors.Wrapf(err, "send %s", cmd.CommandType())
	}
	return nil
}
