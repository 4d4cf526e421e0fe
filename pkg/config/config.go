// Package config loads the declarative agent configuration: agents, their
// tools, and each tool's auth scheme and credential material.
package config

import (
	"fmt"
	"os"

	"sigs.k8s.io/yaml"

	"github.com/loopwork/agentry/pkg/agent"
	"github.com/loopwork/agentry/pkg/auth"
	"github.com/loopwork/agentry/pkg/auth/handler"
	"github.com/loopwork/agentry/pkg/networking"
)

// File is the top-level configuration document.
type File struct {
	Agents []Agent `json:"agents"`
}

// Agent declares one agent and its tools.
type Agent struct {
	Name  string `json:"name"`
	Tools []Tool `json:"tools"`
}

// Tool declares an HTTP tool. Auth is optional; tools without it call
// their endpoint unauthenticated.
type Tool struct {
	Name        string `json:"name"`
	Description string `json:"description,omitempty"`
	Method      string `json:"method,omitempty"`
	URL         string `json:"url"`
	Auth        *Auth  `json:"auth,omitempty"`
}

// Auth binds a security scheme to its raw credential.
type Auth struct {
	Scheme     *auth.Scheme     `json:"scheme"`
	Credential *auth.Credential `json:"credential,omitempty"`
}

// Load reads and validates a configuration file.
func Load(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return Parse(data)
}

// Parse decodes and validates configuration YAML (or JSON).
func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.UnmarshalStrict(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := f.Validate(); err != nil {
		return nil, err
	}
	return &f, nil
}

// Validate checks structural soundness: names present and unique, tool
// endpoints well-formed, auth blocks carrying a scheme. Endpoint
// discovery for discoverable schemes happens at call time, not here.
func (f *File) Validate() error {
	if len(f.Agents) == 0 {
		return fmt.Errorf("config declares no agents")
	}

	agentNames := map[string]bool{}
	for _, a := range f.Agents {
		if a.Name == "" {
			return fmt.Errorf("agent with empty name")
		}
		if agentNames[a.Name] {
			return fmt.Errorf("duplicate agent name %q", a.Name)
		}
		agentNames[a.Name] = true

		toolNames := map[string]bool{}
		for _, tool := range a.Tools {
			if tool.Name == "" {
				return fmt.Errorf("agent %q has a tool with an empty name", a.Name)
			}
			if toolNames[tool.Name] {
				return fmt.Errorf("agent %q has duplicate tool %q", a.Name, tool.Name)
			}
			toolNames[tool.Name] = true

			if !networking.IsURL(tool.URL) {
				return fmt.Errorf("tool %q: invalid url %q", tool.Name, tool.URL)
			}
			if tool.Auth != nil && tool.Auth.Scheme == nil {
				return fmt.Errorf("tool %q: auth block without a scheme", tool.Name)
			}
		}
	}
	return nil
}

// Build constructs the configured agents, wiring authenticated tools
// through the given handler.
func (f *File) Build(h *handler.Handler) ([]*agent.Agent, error) {
	agents := make([]*agent.Agent, 0, len(f.Agents))
	for _, ac := range f.Agents {
		a := agent.New(ac.Name)
		for _, tc := range ac.Tools {
			method := tc.Method
			if method == "" {
				method = "GET"
			}

			var opts []agent.HTTPToolOption
			if tc.Auth != nil {
				cfg := &auth.Config{Scheme: tc.Auth.Scheme, Raw: tc.Auth.Credential}
				opts = append(opts, agent.WithAuth(cfg, h))
			}

			tool, err := agent.NewHTTPTool(tc.Name, tc.Description, method, tc.URL, opts...)
			if err != nil {
				return nil, err
			}
			if err := a.AddTool(tool); err != nil {
				return nil, err
			}
		}
		agents = append(agents, a)
	}
	return agents, nil
}
