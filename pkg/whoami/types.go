package whoami

import (
	"bytes"
	"encoding/json"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	"github.com/go-go-golems/hexchat/pkg/chatsession/selection"
)

// ID is a server-side primary key. The API sends integers or strings; both
// are kept in their decimal/string form.
type ID string

func (id *ID) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*id = ""
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var s string
		if err := json.Unmarshal(b, &s); err != nil {
			return err
		}
		*id = ID(s)
		return nil
	}
	var n json.Number
	if err := json.Unmarshal(b, &n); err != nil {
		return errors.Wrapf(err, "id %s", string(b))
	}
	*id = ID(n.String())
	return nil
}

func (id *ID) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return errors.Errorf("line %d: id must be a scalar", node.Line)
	}
	*id = ID(node.Value)
	return nil
}

type Named struct {
	ID   ID     `json:"id" yaml:"id"`
	Name string `json:"name" yaml:"name"`
}

// Group is a package group. The who-am-i endpoint sends only the group's id,
// the package endpoints send the whole object; both forms decode.
type Group struct {
	ID          ID     `json:"id" yaml:"id"`
	Key         string `json:"key,omitempty" yaml:"key,omitempty"`
	Name        string `json:"name,omitempty" yaml:"name,omitempty"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

type groupFields Group

func (g *Group) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if len(b) > 0 && b[0] == '{' {
		var f groupFields
		if err := json.Unmarshal(b, &f); err != nil {
			return err
		}
		*g = Group(f)
		return nil
	}
	*g = Group{}
	return g.ID.UnmarshalJSON(b)
}

func (g *Group) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind == yaml.ScalarNode {
		*g = Group{ID: ID(node.Value)}
		return nil
	}
	var f groupFields
	if err := node.Decode(&f); err != nil {
		return err
	}
	*g = Group(f)
	return nil
}

type GptPackage struct {
	ID          ID     `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	IsDefault   bool   `json:"is_default" yaml:"is_default"`
	Group       *Group `json:"group,omitempty" yaml:"group,omitempty"`
}

type UserProfile struct {
	ID          ID           `json:"id" yaml:"id"`
	User        string       `json:"user,omitempty" yaml:"user,omitempty"`
	Company     *Named       `json:"company,omitempty" yaml:"company,omitempty"`
	Department  *Named       `json:"department,omitempty" yaml:"department,omitempty"`
	Role        *Named       `json:"role,omitempty" yaml:"role,omitempty"`
	Avatar      *string      `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	IsCurrent   bool         `json:"is_current,omitempty" yaml:"is_current,omitempty"`
	GptPackages []GptPackage `json:"gpt_packages" yaml:"gpt_packages"`
}

// Response is the who-am-i payload.
type Response struct {
	ID             ID            `json:"id" yaml:"id"`
	Username       string        `json:"username" yaml:"username"`
	Email          string        `json:"email,omitempty" yaml:"email,omitempty"`
	Profiles       []UserProfile `json:"profiles" yaml:"profiles"`
	CurrentProfile *UserProfile  `json:"current_profile,omitempty" yaml:"current_profile,omitempty"`
}

// Label is "<company> - <role>" for company profiles, the role name for
// others, and "General profile" when neither is set.
func (p UserProfile) Label() string {
	role := ""
	if p.Role != nil {
		role = strings.TrimSpace(p.Role.Name)
	}
	if p.Company != nil && strings.TrimSpace(p.Company.Name) != "" {
		if role == "" {
			role = "No role"
		}
		return p.Company.Name + " - " + role
	}
	if role != "" {
		return role
	}
	return "General profile"
}

func (p UserProfile) Profile() selection.Profile {
	out := selection.Profile{
		ID:       string(p.ID),
		Label:    p.Label(),
		Packages: make([]selection.Package, 0, len(p.GptPackages)),
	}
	if p.Avatar != nil {
		out.Avatar = *p.Avatar
	}
	for _, pkg := range p.GptPackages {
		sp := selection.Package{
			ID:          string(pkg.ID),
			Label:       pkg.Name,
			IsDefault:   pkg.IsDefault,
			Description: pkg.Description,
		}
		if pkg.Group != nil {
			sp.Group = &selection.PackageGroup{
				ID:          string(pkg.Group.ID),
				Key:         pkg.Group.Key,
				Name:        pkg.Group.Name,
				Description: pkg.Group.Description,
			}
		}
		out.Packages = append(out.Packages, sp)
	}
	return out
}

// SelectionProfiles converts every profile, in server order.
func (r Response) SelectionProfiles() []selection.Profile {
	out := make([]selection.Profile, 0, len(r.Profiles))
	for _, p := range r.Profiles {
		out = append(out, p.Profile())
	}
	return out
}

// CurrentProfileID is current_profile, else the first profile, else "".
func (r Response) CurrentProfileID() string {
	if r.CurrentProfile != nil {
		return string(r.CurrentProfile.ID)
	}
	if len(r.Profiles) > 0 {
		return string(r.Profiles[0].ID)
	}
	return ""
}

// DisplayName is the name shown for the signed-in user.
func (r Response) DisplayName() string {
	if r.CurrentProfile != nil && r.CurrentProfile.User != "" {
		return r.CurrentProfile.User
	}
	if r.Username != "" {
		return r.Username
	}
	return "User"
}
