package secrets

import (
	"context"
	"encoding/base64"
	"fmt"
	"log"
	"os"

	secretmanager "google.golang.org/api/secretmanager/v1"
)

// ConfigError marks a required secret that could not be resolved anywhere.
type ConfigError struct {
	Name string
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("config: secret %q is not set in the environment or the secret store", e.Name)
}

// Provider resolves named credentials. Resolution order: process environment,
// then Google Secret Manager under the configured project. Resolved values are
// cached for the process lifetime; there is no runtime refresh.
type Provider struct {
	project string
	svc     *secretmanager.Service
	cache   map[string]string
}

// New creates a Provider. project may be empty, in which case only the
// environment is consulted.
func New(project string) *Provider {
	return &Provider{
		project: project,
		cache:   make(map[string]string),
	}
}

// Get resolves name to a secret value. Returns *ConfigError when unresolved.
func (p *Provider) Get(name string) (string, error) {
	if v, ok := p.cache[name]; ok {
		return v, nil
	}

	if v := os.Getenv(name); v != "" {
		p.cache[name] = v
		return v, nil
	}

	if p.project != "" {
		v, err := p.fetchManaged(name)
		if err != nil {
			log.Printf("[secrets] secret store lookup for %s failed: %v", name, err)
		} else if v != "" {
			p.cache[name] = v
			return v, nil
		}
	}

	return "", &ConfigError{Name: name}
}

// Optional resolves name but returns "" instead of an error when unset.
func (p *Provider) Optional(name string) string {
	v, err := p.Get(name)
	if err != nil {
		return ""
	}
	return v
}

func (p *Provider) fetchManaged(name string) (string, error) {
	ctx := context.Background()

	if p.svc == nil {
		svc, err := secretmanager.NewService(ctx)
		if err != nil {
			return "", fmt.Errorf("secret manager client: %w", err)
		}
		p.svc = svc
	}

	version := fmt.Sprintf("projects/%s/secrets/%s/versions/latest", p.project, name)
	resp, err := p.svc.Projects.Secrets.Versions.Access(version).Context(ctx).Do()
	if err != nil {
		return "", fmt.Errorf("access %s: %w", version, err)
	}
	if resp.Payload == nil {
		return "", fmt.Errorf("access %s: empty payload", version)
	}

	data, err := base64.StdEncoding.DecodeString(resp.Payload.Data)
	if err != nil {
		return "", fmt.Errorf("decode payload for %s: %w", name, err)
	}
	return string(data), nil
}
