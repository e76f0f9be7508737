// Package oauth covers the redirect-based provider login: which providers
// exist and what happens when the browser comes back with a token.
package oauth

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"github.com/storrsec/internal/apipaths"
	"github.com/storrsec/internal/domain"
	"github.com/storrsec/internal/validation"
	"gopkg.in/yaml.v3"
)

//go:embed providers.yaml
var defaultProviders []byte

// Provider is one entry of the catalog
type Provider struct {
	Name  string `yaml:"name"`
	Label string `yaml:"label"`
	// Enabled providers have an initiation endpoint on the remote service
	Enabled bool `yaml:"enabled"`
	// Path overrides the default /auth/<name> endpoint
	Path string `yaml:"path"`
}

type catalogFile struct {
	Providers []Provider `yaml:"providers"`
}

// Catalog is the fixed set of identity providers the site offers
type Catalog struct {
	baseURL   string
	providers []Provider
	byName    map[string]Provider
}

// LoadCatalog builds the catalog from the embedded defaults, or from path
// when it is not empty. Initiation URLs are rooted at baseURL.
func LoadCatalog(baseURL, path string) (*Catalog, error) {
	data := defaultProviders
	if path != "" {
		var err error
		data, err = os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("failed to read provider catalog: %w", err)
		}
	}
	return ParseCatalog(baseURL, data)
}

// ParseCatalog builds a catalog from YAML
func ParseCatalog(baseURL string, data []byte) (*Catalog, error) {
	var file catalogFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse provider catalog: %w", err)
	}

	c := &Catalog{
		baseURL: strings.TrimRight(baseURL, "/"),
		byName:  make(map[string]Provider, len(file.Providers)),
	}
	for _, p := range file.Providers {
		if err := validation.ValidateProviderName(p.Name); err != nil {
			return nil, domain.WrapValidationError("provider "+p.Name, err)
		}
		if _, dup := c.byName[p.Name]; dup {
			return nil, fmt.Errorf("duplicate provider %q", p.Name)
		}
		if p.Path != "" && !strings.HasPrefix(p.Path, "/") {
			return nil, fmt.Errorf("provider %q path must start with /", p.Name)
		}
		if p.Enabled && p.Path == "" {
			p.Path = apipaths.OAuthStart(p.Name)
		}
		if p.Label == "" {
			p.Label = p.Name
		}
		c.providers = append(c.providers, p)
		c.byName[p.Name] = p
	}
	return c, nil
}

// Providers returns the catalog in display order
func (c *Catalog) Providers() []Provider {
	out := make([]Provider, len(c.providers))
	copy(out, c.providers)
	return out
}

// InitiationURL returns the absolute URL the browser navigates to
func (c *Catalog) InitiationURL(name string) (string, error) {
	p, ok := c.byName[name]
	if !ok {
		return "", domain.WrapProviderUnknown(name)
	}
	if !p.Enabled {
		return "", domain.WrapProviderNotImplemented(name)
	}
	return c.baseURL + p.Path, nil
}
