package channel

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gopkg.in/yaml.v3"
)

// credentialEntry is the on-disk shape of one credential set.
type credentialEntry struct {
	APIKey        string `yaml:"api_key"`
	APISecret     string `yaml:"api_secret"`
	WebhookSecret string `yaml:"webhook_secret"`
}

type fileCredentialProvider struct {
	mu      sync.RWMutex
	entries map[string]credentialEntry
}

// NewFileCredentialProvider loads credentials from a YAML file keyed by
// reference: connection credential_refs and channel types both resolve
// against the same map. The file is read once at startup; rotating a secret
// means restarting the process.
func NewFileCredentialProvider(path string) (CredentialProvider, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read credentials file: %w", err)
	}

	var entries map[string]credentialEntry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse credentials file: %w", err)
	}
	return &fileCredentialProvider{entries: entries}, nil
}

func (p *fileCredentialProvider) Credentials(_ context.Context, ref string) (*Credentials, error) {
	p.mu.RLock()
	entry, ok := p.entries[ref]
	p.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("no credentials for ref %q", ref)
	}
	return &Credentials{
		APIKey:        entry.APIKey,
		APISecret:     entry.APISecret,
		WebhookSecret: entry.WebhookSecret,
	}, nil
}

// StaticCredentials is a CredentialProvider backed by a fixed map, used in
// development mode when no credentials file is configured.
type StaticCredentials map[string]*Credentials

func (s StaticCredentials) Credentials(_ context.Context, ref string) (*Credentials, error) {
	creds, ok := s[ref]
	if !ok {
		return nil, fmt.Errorf("no credentials for ref %q", ref)
	}
	return creds, nil
}
