// Package auth resolves credentials for OSW instances and connected
// services. Credentials live in YAML files mapping an IRI to either a
// username/password pair or an OAuth1 token tuple; several files can
// be loaded and their entries merged.
package auth

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"gopkg.in/yaml.v3"

	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Fallback selects the behavior when no stored credential matches.
type Fallback string

const (
	// FallbackNone returns an AuthError for unresolved IRIs.
	FallbackNone Fallback = "none"

	// FallbackAsk prompts interactively through the configured
	// Prompter and stores the result.
	FallbackAsk Fallback = "ask"
)

// Credential is either a *UserPwd or an *OAuth1.
type Credential interface {
	// IRI returns the IRI the credential is valid for.
	IRI() string
}

// UserPwd is a username/password credential.
type UserPwd struct {
	Iri      string `yaml:"-"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
}

// IRI implements Credential.
func (c *UserPwd) IRI() string { return c.Iri }

// OAuth1 is an OAuth1 consumer/access token tuple.
type OAuth1 struct {
	Iri            string `yaml:"-"`
	ConsumerToken  string `yaml:"consumer_token"`
	ConsumerSecret string `yaml:"consumer_secret"`
	AccessToken    string `yaml:"access_token"`
	AccessSecret   string `yaml:"access_secret"`
}

// IRI implements Credential.
func (c *OAuth1) IRI() string { return c.Iri }

// Prompter supplies credentials interactively when FallbackAsk is
// requested. Terminal and UI frontends implement this.
type Prompter interface {
	PromptUserPwd(iri string) (username, password string, err error)
}

// Manager loads, stores and resolves credentials. Safe for concurrent
// use; it is read-mostly and cheap to share.
type Manager struct {
	mu        sync.RWMutex
	filepaths []string
	creds     []Credential
	prompter  Prompter
	logger    *slog.Logger
}

// ManagerOption configures a Manager.
type ManagerOption func(*Manager)

// WithPrompter sets the interactive fallback prompter.
func WithPrompter(p Prompter) ManagerOption {
	return func(m *Manager) { m.prompter = p }
}

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(m *Manager) { m.logger = logger }
}

// NewManager creates a credential manager reading from the given
// credential files. Missing files are skipped; entries across files
// are merged in load order.
func NewManager(filepaths []string, opts ...ManagerOption) (*Manager, error) {
	m := &Manager{
		filepaths: filepaths,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(m)
	}
	for _, fp := range filepaths {
		if fp == "" {
			continue
		}
		creds, err := loadCredentialFile(fp)
		if err != nil {
			return nil, err
		}
		m.creds = append(m.creds, creds...)
	}
	return m, nil
}

// loadCredentialFile parses one YAML credentials file. The file is a
// flat mapping iri -> {username, password} or iri -> OAuth1 tuple.
func loadCredentialFile(path string) ([]Credential, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read credentials file %q: %w", path, err)
	}
	var raw map[string]map[string]string
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse credentials file %q: %w", path, err)
	}
	var creds []Credential
	for iri, entry := range raw {
		if _, ok := entry["username"]; ok {
			creds = append(creds, &UserPwd{
				Iri:      iri,
				Username: entry["username"],
				Password: entry["password"],
			})
		}
		if _, ok := entry["consumer_token"]; ok {
			creds = append(creds, &OAuth1{
				Iri:            iri,
				ConsumerToken:  entry["consumer_token"],
				ConsumerSecret: entry["consumer_secret"],
				AccessToken:    entry["access_token"],
				AccessSecret:   entry["access_secret"],
			})
		}
	}
	return creds, nil
}

// Add places a credential into the in-memory store. It does not write
// any file; see Save.
func (m *Manager) Add(cred Credential) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.creds = append(m.creds, cred)
}

// GetCredential resolves the credential for an IRI. The entry whose
// stored IRI is the longest suffix of the requested IRI wins; an exact
// match is the longest possible suffix. With FallbackAsk and a
// configured Prompter, unresolved IRIs prompt for a username/password
// pair, which is stored in memory and appended to the first
// credentials file.
func (m *Manager) GetCredential(iri string, fallback Fallback) (Credential, error) {
	m.mu.RLock()
	var best Credential
	for _, cred := range m.creds {
		stored := cred.IRI()
		if !strings.HasSuffix(iri, stored) {
			continue
		}
		// Longest suffix wins; equal length keeps the earlier entry.
		if best == nil || len(stored) > len(best.IRI()) {
			best = cred
		}
	}
	m.mu.RUnlock()

	if best != nil {
		return best, nil
	}
	if fallback == FallbackAsk && m.prompter != nil {
		m.logger.Info("no stored credential, prompting", "iri", iri)
		username, password, err := m.prompter.PromptUserPwd(iri)
		if err != nil {
			return nil, fmt.Errorf("prompt for %q: %w", iri, err)
		}
		cred := &UserPwd{Iri: iri, Username: username, Password: password}
		m.Add(cred)
		if len(m.filepaths) > 0 {
			if err := m.Save(m.filepaths[0]); err != nil {
				m.logger.Warn("could not persist prompted credential", "error", err)
			}
		}
		return cred, nil
	}
	return nil, &wiki.AuthError{IRI: iri}
}

// Save writes the in-memory credentials into path, merging with any
// entries already present in the file.
func (m *Manager) Save(path string) error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	data := map[string]map[string]string{}
	if existing, err := os.ReadFile(path); err == nil {
		if err := yaml.Unmarshal(existing, &data); err != nil {
			return fmt.Errorf("parse existing credentials file %q: %w", path, err)
		}
	}
	if data == nil {
		data = map[string]map[string]string{}
	}
	for _, cred := range m.creds {
		switch c := cred.(type) {
		case *UserPwd:
			data[c.Iri] = map[string]string{
				"username": c.Username,
				"password": c.Password,
			}
		case *OAuth1:
			data[c.Iri] = map[string]string{
				"consumer_token":  c.ConsumerToken,
				"consumer_secret": c.ConsumerSecret,
				"access_token":    c.AccessToken,
				"access_secret":   c.AccessSecret,
			}
		}
	}
	out, err := yaml.Marshal(data)
	if err != nil {
		return fmt.Errorf("marshal credentials: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o700); err != nil {
		return fmt.Errorf("create credentials directory: %w", err)
	}
	if err := os.WriteFile(path, out, 0o600); err != nil {
		return fmt.Errorf("write credentials file %q: %w", path, err)
	}
	return nil
}
