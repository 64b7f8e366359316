package cmds

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/atotto/clipboard"
	"github.com/pkg/errors"

	"github.com/go-go-golems/hexchat/pkg/chatsession"
	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
)

// chatSession is the part of *chatsession.Session the prompt drives.
type chatSession interface {
	SendMessage(text string) error
	SelectProfile(id string) error
	SelectPackage(id string) error
	NewConversation() error
	Profiles() []selection.Profile
	ProfileSelection() selection.Selected
	PackageSelection() selection.Selected
	CurrentProfile() (selection.Profile, bool)
	Status() connection.Status
	LastError() error
	Awaiting() bool
	Snapshot() store.Snapshot
}

var _ chatSession = (*chatsession.Session)(nil)

var errQuit = errors.New("quit")

const replHelp = `/profiles            list profiles
/profile <id|n>      switch profile
/packages            list packages of the current profile
/package <id|n>      switch package
/new                 start a new conversation
/copy                copy the last reply to the clipboard
/status              show connection and selection state
/quit                leave`

type repl struct {
	sess chatSession
	out  io.Writer
	copy func(string) error
}

func newREPL(sess chatSession, out io.Writer) *repl {
	return &repl{sess: sess, out: out, copy: clipboard.WriteAll}
}

// Run reads lines until EOF, /quit, or ctx is done.
func (r *repl) Run(ctx context.Context, in io.Reader) error {
	lines := make(chan string)
	scanErr := make(chan error, 1)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
		scanErr <- scanner.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case line, ok := <-lines:
			if !ok {
				select {
				case err := <-scanErr:
					return err
				default:
					return nil
				}
			}
			if err := r.Execute(line); err != nil {
				if errors.Is(err, errQuit) {
					return nil
				}
				r.printErr(err)
			}
		}
	}
}

// Execute runs one input line: a slash command or a chat message.
func (r *repl) Execute(line string) error {
	line = strings.TrimSpace(line)
	if !strings.HasPrefix(line, "/") {
		if line == "" {
			return nil
		}
		return r.sess.SendMessage(line)
	}

	name, arg, _ := strings.Cut(strings.TrimPrefix(line, "/"), " ")
	arg = strings.TrimSpace(arg)
	switch name {
	case "quit", "exit":
		return errQuit
	case "help":
		r.println(replHelp)
	case "profiles":
		r.listProfiles()
	case "profile":
		id, err := resolveChoice(arg, profileIDs(r.sess.Profiles()))
		if err != nil {
			return err
		}
		return r.sess.SelectProfile(id)
	case "packages":
		return r.listPackages()
	case "package":
		p, ok := r.sess.CurrentProfile()
		if !ok {
			return &chatsession.PreconditionError{Op: "select package", Err: selection.ErrNoProfile}
		}
		id, err := resolveChoice(arg, packageIDs(p.Packages))
		if err != nil {
			return err
		}
		return r.sess.SelectPackage(id)
	case "new":
		return r.sess.NewConversation()
	case "copy":
		return r.copyLast()
	case "status":
		r.status()
	default:
		return errors.Errorf("unknown command /%s, try /help", name)
	}
	return nil
}

func (r *repl) listProfiles() {
	current := r.sess.ProfileSelection()
	for i, p := range r.sess.Profiles() {
		marker := " "
		if p.ID == current.ID {
			marker = "*"
		}
		r.println(fmt.Sprintf("%s %d. %s [%s]", marker, i+1, p.Label, p.ID))
	}
}

func (r *repl) listPackages() error {
	p, ok := r.sess.CurrentProfile()
	if !ok {
		return &chatsession.PreconditionError{Op: "list packages", Err: selection.ErrNoProfile}
	}
	current := r.sess.PackageSelection()
	for i, pkg := range p.Packages {
		marker := " "
		if pkg.ID == current.ID {
			marker = "*"
		}
		suffix := ""
		if pkg.IsDefault {
			suffix = " (default)"
		}
		r.println(fmt.Sprintf("%s %d. %s [%s]%s", marker, i+1, pkg.Label, pkg.ID, suffix))
	}
	return nil
}

func (r *repl) copyLast() error {
	msgs := r.sess.Snapshot().Messages
	for i := len(msgs) - 1; i >= 0; i-- {
		if msgs[i].Sender == store.SenderAssistant && !msgs[i].Streaming {
			if err := r.copy(msgs[i].Content); err != nil {
				return errors.Wrap(err, "copy to clipboard")
			}
			r.println(dimStyle.Render("copied"))
			return nil
		}
	}
	return errors.New("no reply to copy")
}

func (r *repl) status() {
	prof := r.sess.ProfileSelection()
	pkg := r.sess.PackageSelection()
	conv := r.sess.Snapshot().Conversation
	r.println(fmt.Sprintf("connection: %s", r.sess.Status()))
	r.println(fmt.Sprintf("profile:    %s (%s)", orNone(prof.ID), prof.Phase))
	r.println(fmt.Sprintf("package:    %s (%s)", orNone(pkg.ID), pkg.Phase))
	r.println(fmt.Sprintf("conversation: %s", orNone(conv.ID)))
	if r.sess.Awaiting() {
		r.println("waiting for a reply")
	}
	if err := r.sess.LastError(); err != nil {
		r.println(fmt.Sprintf("last error: %v", err))
	}
}

func (r *repl) printErr(err error) {
	style := errorStyle
	if chatsession.IsPrecondition(err) {
		style = warningStyle
	}
	r.println(style.Render(err.Error()))
}

func (r *repl) println(s string) {
	_, _ = fmt.Fprintln(r.out, s)
}

// resolveChoice accepts either an id from ids or a 1-based index into it.
func resolveChoice(arg string, ids []string) (string, error) {
	if arg == "" {
		return "", errors.New("missing argument")
	}
	for _, id := range ids {
		if id == arg {
			return id, nil
		}
	}
	if n, err := strconv.Atoi(arg); err == nil && n >= 1 && n <= len(ids) {
		return ids[n-1], nil
	}
	// let the session report the unknown id
	return arg, nil
}

func profileIDs(ps []selection.Profile) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func packageIDs(ps []selection.Package) []string {
	ids := make([]string, 0, len(ps))
	for _, p := range ps {
		ids = append(ids, p.ID)
	}
	return ids
}

func orNone(s string) string {
	if s == "" {
		return "none"
	}
	return s
}
