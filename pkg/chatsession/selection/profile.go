package selection

// PackageGroup is the optional grouping a package is listed under.
type PackageGroup struct {
	ID          string `json:"id" yaml:"id"`
	Key         string `json:"key,omitempty" yaml:"key,omitempty"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// Package is one selectable assistant backend within a profile.
type Package struct {
	ID          string        `json:"id" yaml:"id"`
	Label       string        `json:"label" yaml:"label"`
	IsDefault   bool          `json:"is_default" yaml:"is_default"`
	Description string        `json:"description,omitempty" yaml:"description,omitempty"`
	Group       *PackageGroup `json:"group,omitempty" yaml:"group,omitempty"`
}

// Profile is a user context and the packages it offers, in display order.
type Profile struct {
	ID       string    `json:"id" yaml:"id"`
	Label    string    `json:"label" yaml:"label"`
	Avatar   string    `json:"avatar,omitempty" yaml:"avatar,omitempty"`
	Packages []Package `json:"packages" yaml:"packages"`
}

// DefaultPackage returns the package flagged as default, else the first
// package. ok is false when the profile has no packages.
func (p Profile) DefaultPackage() (Package, bool) {
	for _, pkg := range p.Packages {
		if pkg.IsDefault {
			return pkg, true
		}
	}
	if len(p.Packages) > 0 {
		return p.Packages[0], true
	}
	return Package{}, false
}

func (p Profile) Package(id string) (Package, bool) {
	for _, pkg := range p.Packages {
		if pkg.ID == id {
			return pkg, true
		}
	}
	return Package{}, false
}
