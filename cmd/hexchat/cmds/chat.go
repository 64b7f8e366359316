package cmds

import (
	"context"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	"golang.org/x/sync/errgroup"
	"golang.org/x/term"

	"github.com/go-go-golems/hexchat/pkg/chatsession"
	"github.com/go-go-golems/hexchat/pkg/chatsession/connection"
	"github.com/go-go-golems/hexchat/pkg/chatsession/store"
	"github.com/go-go-golems/hexchat/pkg/uibus"
)

type ChatCommand struct {
	*cmds.CommandDescription
}

var _ cmds.WriterCommand = (*ChatCommand)(nil)

type ChatSettings struct {
	WSHost         string `glazed:"ws-host"`
	Profile        string `glazed:"profile"`
	Package        string `glazed:"package"`
	Plain          bool   `glazed:"plain"`
	ReconnectDelay int    `glazed:"reconnect-delay"`

	Source SourceSettings
	Bus    uibus.Settings
}

func NewChatCommand() (*ChatCommand, error) {
	sourceSection, err := NewSourceSection()
	if err != nil {
		return nil, err
	}
	busSection, err := uibus.NewSection()
	if err != nil {
		return nil, errors.Wrap(err, "build bus section")
	}

	desc := cmds.NewCommandDescription(
		"chat",
		cmds.WithShort("Chat with a GPT package over the realtime websocket"),
		cmds.WithLong(`Connects to the chat websocket, selects a profile and package and reads
messages from stdin. Lines starting with / are commands, see /help.`),
		cmds.WithFlags(
			fields.New("ws-host", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Websocket base URL (http(s):// or ws(s)://); the chat path is appended")),
			fields.New("profile", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Profile id (defaults to the account's current profile)")),
			fields.New("package", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("GPT package id (defaults to the profile's default package)")),
			fields.New("plain", fields.TypeBool, fields.WithDefault(false),
				fields.WithHelp("Stream raw text instead of rendering markdown")),
			fields.New("reconnect-delay", fields.TypeInteger, fields.WithDefault(int(connection.DefaultReconnectDelay/time.Second)),
				fields.WithHelp("Seconds to wait before reconnecting after an abnormal close")),
		),
		cmds.WithSections(sourceSection, busSection),
	)
	return &ChatCommand{CommandDescription: desc}, nil
}

func (c *ChatCommand) RunIntoWriter(ctx context.Context, parsed *values.Values, w io.Writer) error {
	s := &ChatSettings{}
	if err := parsed.DecodeSectionInto(values.DefaultSlug, s); err != nil {
		return err
	}
	if err := parsed.DecodeSectionInto(SourceSlug, &s.Source); err != nil {
		return err
	}
	if err := parsed.DecodeSectionInto(uibus.SectionSlug, &s.Bus); err != nil {
		return err
	}
	if s.WSHost == "" {
		s.WSHost = viper.GetString("ws-host")
	}
	if s.WSHost == "" {
		return errors.New("--ws-host or HEXCHAT_WS_HOST is required")
	}

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	token, err := s.Source.resolveToken()
	if err != nil {
		return err
	}
	account, err := s.Source.loadAccount(ctx, token)
	if err != nil {
		return errors.Wrap(err, "load profiles")
	}
	profileID := s.Profile
	if profileID == "" {
		profileID = account.CurrentProfileID()
	}
	log.Info().Str("component", "cli").Str("user", account.DisplayName()).Str("profile", profileID).Msg("starting chat")

	bus, err := uibus.New(s.Bus)
	if err != nil {
		return err
	}
	defer func() { _ = bus.Close() }()

	viewCtx, cancelView := context.WithCancel(ctx)
	defer cancelView()
	events, err := bus.Subscribe(viewCtx)
	if err != nil {
		return err
	}

	st := store.New()
	unsubscribe := st.Subscribe(bus.Observer())
	defer unsubscribe()

	sess, err := chatsession.New(
		chatsession.WithProfiles(account.SelectionProfiles(), profileID),
		chatsession.WithStore(st),
		chatsession.WithNotifier(bus),
		chatsession.WithReconnectDelay(time.Duration(s.ReconnectDelay)*time.Second),
		chatsession.WithActionHandler(func(actions []map[string]any) {
			log.Debug().Str("component", "cli").Int("count", len(actions)).Msg("ignoring ui actions")
		}),
	)
	if err != nil {
		return err
	}
	defer func() { _ = sess.Close() }()

	rich := !s.Plain && isatty.IsTerminal(os.Stdout.Fd())
	width := 80
	if rich {
		if cols, _, err := term.GetSize(int(os.Stdout.Fd())); err == nil && cols > 0 {
			width = cols
		}
	}
	view, err := newConsoleView(w, rich, width)
	if err != nil {
		return err
	}

	if err := sess.Connect(ctx, s.WSHost, token); err != nil {
		return err
	}
	if s.Package != "" {
		if err := sess.SelectPackage(s.Package); err != nil {
			return err
		}
	}

	eg, egCtx := errgroup.WithContext(viewCtx)
	eg.Go(func() error {
		return view.Run(egCtx, events)
	})
	eg.Go(func() error {
		defer cancelView()
		return newREPL(sess, w).Run(egCtx, os.Stdin)
	})
	return eg.Wait()
}
