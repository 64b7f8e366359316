package cmds

import (
	"context"
	"os"
	"strings"

	"github.com/go-go-golems/glazed/pkg/cmds/fields"
	"github.com/go-go-golems/glazed/pkg/cmds/schema"
	"github.com/mattn/go-isatty"
	"github.com/pkg/errors"
	"github.com/rs/zerolog/log"
	"github.com/spf13/viper"
	input "github.com/tcnksm/go-input"

	"github.com/go-go-golems/hexchat/pkg/whoami"
)

const SourceSlug = "source"

// SourceSettings says where the access token and the user's profiles come from.
type SourceSettings struct {
	APIHost      string `glazed:"api-host"`
	AccessToken  string `glazed:"access-token"`
	ProfilesFile string `glazed:"profiles-file"`
}

func NewSourceSection() (schema.Section, error) {
	return schema.NewSection(
		SourceSlug,
		"Account and profile source",
		schema.WithFields(
			fields.New("api-host", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Base URL of the REST API serving "+whoami.Path)),
			fields.New("access-token", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("Access token (falls back to HEXCHAT_ACCESS_TOKEN, then a prompt)")),
			fields.New("profiles-file", fields.TypeString, fields.WithDefault(""),
				fields.WithHelp("YAML file with a whoami document, used instead of the API")),
		),
	)
}

// resolveToken returns the configured token, prompting on a terminal when
// none is set.
func (s *SourceSettings) resolveToken() (string, error) {
	if s.AccessToken != "" {
		return s.AccessToken, nil
	}
	if t := viper.GetString("access-token"); t != "" {
		return t, nil
	}
	if !isatty.IsTerminal(os.Stdin.Fd()) {
		return "", errors.New("no access token: pass --access-token or set HEXCHAT_ACCESS_TOKEN")
	}

	ui := &input.UI{Writer: os.Stderr, Reader: os.Stdin}
	token, err := ui.Ask("Access token", &input.Options{
		Required:  true,
		Loop:      true,
		Mask:      true,
		HideOrder: true,
	})
	if err != nil {
		return "", errors.Wrap(err, "read access token")
	}
	return strings.TrimSpace(token), nil
}

// loadAccount reads the profiles from the profiles file, or from the whoami
// endpoint when no file is given.
func (s *SourceSettings) loadAccount(ctx context.Context, token string) (*whoami.Response, error) {
	if s.ProfilesFile != "" {
		log.Debug().Str("component", "cli").Str("path", s.ProfilesFile).Msg("loading profiles from file")
		return whoami.LoadFile(s.ProfilesFile)
	}
	apiHost := s.APIHost
	if apiHost == "" {
		apiHost = viper.GetString("api-host")
	}
	if apiHost == "" {
		return nil, errors.New("either --api-host (HEXCHAT_API_HOST) or --profiles-file is required")
	}
	r, err := whoami.NewClient(apiHost).Fetch(ctx, token)
	if err != nil {
		return nil, err
	}
	if len(r.Profiles) == 0 {
		return nil, errors.New("account has no profiles")
	}
	return r, nil
}
