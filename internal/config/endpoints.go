package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

//go:embed endpoints.yaml
var builtinEndpoints []byte

// ErrURLRequired is returned when the chosen endpoint has no URL and none was
// configured.
var ErrURLRequired = errors.New("endpoint has no URL; set url")

// Endpoint is one entry of the endpoint table.
type Endpoint struct {
	Name string `yaml:"name"`
	URL  string `yaml:"url"`
	Base string `yaml:"base"`
}

type endpointTable struct {
	Endpoints []Endpoint `yaml:"endpoints"`
}

func parseEndpoints(data []byte) ([]Endpoint, error) {
	var table endpointTable
	if err := yaml.Unmarshal(data, &table); err != nil {
		return nil, err
	}
	for i, ep := range table.Endpoints {
		if ep.Name == "" {
			return nil, fmt.Errorf("endpoint %d has no name", i)
		}
	}
	return table.Endpoints, nil
}

// LoadEndpoints returns the built-in endpoint table merged with the entries of
// extraFile, if given. Entries from extraFile replace built-ins with the same
// name; new names are appended in file order.
func LoadEndpoints(extraFile string) ([]Endpoint, error) {
	endpoints, err := parseEndpoints(builtinEndpoints)
	if err != nil {
		return nil, fmt.Errorf("failed to parse built-in endpoints: %w", err)
	}
	if extraFile == "" {
		return endpoints, nil
	}

	data, err := os.ReadFile(extraFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read endpoints file: %w", err)
	}
	extra, err := parseEndpoints(data)
	if err != nil {
		return nil, fmt.Errorf("failed to parse endpoints file %s: %w", extraFile, err)
	}

	index := make(map[string]int, len(endpoints))
	for i, ep := range endpoints {
		index[ep.Name] = i
	}
	for _, ep := range extra {
		if i, ok := index[ep.Name]; ok {
			endpoints[i] = ep
			continue
		}
		index[ep.Name] = len(endpoints)
		endpoints = append(endpoints, ep)
	}
	return endpoints, nil
}

// FindEndpoint looks up an endpoint by name.
func FindEndpoint(endpoints []Endpoint, name string) (Endpoint, bool) {
	for _, ep := range endpoints {
		if ep.Name == name {
			return ep, true
		}
	}
	return Endpoint{}, false
}

// ResolveEndpoint returns the URL and API base to talk to. Configured url and
// base values take precedence over the named endpoint entry.
func (c *Config) ResolveEndpoint() (Endpoint, error) {
	endpoints, err := LoadEndpoints(c.EndpointsFile)
	if err != nil {
		return Endpoint{}, err
	}

	ep, ok := FindEndpoint(endpoints, c.Endpoint)
	if !ok {
		if c.URL == "" {
			return Endpoint{}, fmt.Errorf("unknown endpoint %q", c.Endpoint)
		}
		ep = Endpoint{Name: c.Endpoint}
	}

	if c.URL != "" {
		ep.URL = c.URL
	}
	if c.Base != "" {
		ep.Base = c.Base
	}
	if ep.URL == "" {
		return Endpoint{}, fmt.Errorf("%s: %w", ep.Name, ErrURLRequired)
	}
	return ep, nil
}
