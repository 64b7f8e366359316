package whoami

import (
	"os"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

// LoadFile reads a who-am-i payload from a YAML (or JSON) file, for running
// the client against a server without the REST endpoint.
func LoadFile(path string) (*Response, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(err, "read profiles file %s", path)
	}
	var out Response
	if err := yaml.Unmarshal(data, &out); err != nil {
		return nil, errors.Wrapf(err, "parse profiles file %s", path)
	}
	if len(out.Profiles) == 0 {
		return nil, errors.Errorf("profiles file %s lists no profiles", path)
	}
	return &out, nil
}
