package config

import (
	"fmt"
	"os"
	"strings"

	goyaml "gopkg.in/yaml.v3"
)

// Topology is the on-disk description of a node's downstream children.
type Topology struct {
	Children []string `yaml:"children"`
}

// LoadTopology reads a topology file and returns the child endpoints
// in file order.
func LoadTopology(path string) ([]string, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read topology file %s: %w", path, err)
	}

	var topo Topology
	if err := goyaml.Unmarshal(data, &topo); err != nil {
		return nil, fmt.Errorf("failed to parse topology file %s: %w", path, err)
	}

	if len(topo.Children) == 0 {
		return nil, fmt.Errorf("topology file %s lists no children", path)
	}
	for i, child := range topo.Children {
		endpoint := strings.TrimSpace(child)
		if endpoint == "" {
			return nil, fmt.Errorf("topology file %s: child %d is empty", path, i)
		}
		if !strings.HasPrefix(endpoint, "http://") && !strings.HasPrefix(endpoint, "https://") {
			return nil, fmt.Errorf("topology file %s: child %d (%s) must include an http or https scheme", path, i, endpoint)
		}
		topo.Children[i] = strings.TrimSuffix(endpoint, "/")
	}

	return topo.Children, nil
}
