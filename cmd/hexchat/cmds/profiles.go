package cmds

import (
	"context"

	"github.com/go-go-golems/glazed/pkg/cli"
	"github.com/go-go-golems/glazed/pkg/cmds"
	"github.com/go-go-golems/glazed/pkg/cmds/values"
	"github.com/go-go-golems/glazed/pkg/middlewares"
	"github.com/go-go-golems/glazed/pkg/settings"
	"github.com/go-go-golems/glazed/pkg/types"

	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
	"github.com/go-go-golems/hexchat/pkg/whoami"
)

type ProfilesCommand struct {
	*cmds.CommandDescription
}

var _ cmds.GlazeCommand = &ProfilesCommand{}

func NewProfilesCommand() (*ProfilesCommand, error) {
	glazedSection, err := settings.NewGlazedSection()
	if err != nil {
		return nil, err
	}
	commandSettingsSection, err := cli.NewCommandSettingsSection()
	if err != nil {
		return nil, err
	}
	sourceSection, err := NewSourceSection()
	if err != nil {
		return nil, err
	}

	desc := cmds.NewCommandDescription(
		"profiles",
		cmds.WithShort("List the account's profiles and their GPT packages"),
		cmds.WithLong("Emit one row per package (or per profile without packages) with the ids to pass to chat --profile and --package."),
		cmds.WithSections(glazedSection, commandSettingsSection, sourceSection),
	)
	return &ProfilesCommand{CommandDescription: desc}, nil
}

func (c *ProfilesCommand) RunIntoGlazeProcessor(
	ctx context.Context,
	parsed *values.Values,
	gp middlewares.Processor,
) error {
	src := &SourceSettings{}
	if err := parsed.DecodeSectionInto(SourceSlug, src); err != nil {
		return err
	}
	token := ""
	if src.ProfilesFile == "" {
		t, err := src.resolveToken()
		if err != nil {
			return err
		}
		token = t
	}
	account, err := src.loadAccount(ctx, token)
	if err != nil {
		return err
	}

	for _, row := range profileRows(account) {
		if err := gp.AddRow(ctx, row); err != nil {
			return err
		}
	}
	return nil
}

func profileRows(account *whoami.Response) []types.Row {
	current := account.CurrentProfileID()
	var rows []types.Row
	for _, p := range account.SelectionProfiles() {
		if len(p.Packages) == 0 {
			rows = append(rows, packageRow(p, selection.Package{}, p.ID == current))
			continue
		}
		for _, pkg := range p.Packages {
			rows = append(rows, packageRow(p, pkg, p.ID == current))
		}
	}
	return rows
}

func packageRow(p selection.Profile, pkg selection.Package, current bool) types.Row {
	group := ""
	if pkg.Group != nil {
		group = pkg.Group.Name
		if group == "" {
			group = pkg.Group.ID
		}
	}
	return types.NewRow(
		types.MRP("profile_id", p.ID),
		types.MRP("profile", p.Label),
		types.MRP("current", current),
		types.MRP("package_id", pkg.ID),
		types.MRP("package", pkg.Label),
		types.MRP("default", pkg.IsDefault),
		types.MRP("group", group),
	)
}
