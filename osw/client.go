// Package osw is the user-facing entry point of the client: a thin
// façade wiring the schema registry, the slot store and the entity
// mapper together behind the operations most callers need.
package osw

import (
	"context"
	"log/slog"

	"github.com/OpenSemanticLab/osw-go/auth"
	"github.com/OpenSemanticLab/osw-go/mapper"
	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/schema"
	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Client orchestrates one OSW instance connection. All interesting
// behavior lives in the packages it delegates to.
type Client struct {
	transport wiki.Transport
	store     *slotstore.Store
	registry  *schema.Registry
	mapper    *mapper.Mapper
	ns        *model.Namespace
	creds     *auth.Manager
	logger    *slog.Logger
}

// ClientOption configures a Client.
type ClientOption func(*Client)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ClientOption {
	return func(c *Client) { c.logger = logger }
}

// WithNamespace uses an existing class namespace instead of the
// process-wide one.
func WithNamespace(ns *model.Namespace) ClientOption {
	return func(c *Client) { c.ns = ns }
}

// WithStore replaces the default slot store (e.g. to enable metrics or
// caching).
func WithStore(store *slotstore.Store) ClientOption {
	return func(c *Client) { c.store = store }
}

// WithCredentials attaches a credential manager, shared with file
// controllers that need per-host credentials.
func WithCredentials(m *auth.Manager) ClientOption {
	return func(c *Client) { c.creds = m }
}

// New creates a client over the given transport.
func New(transport wiki.Transport, opts ...ClientOption) *Client {
	c := &Client{
		transport: transport,
		ns:        model.Global(),
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	if c.store == nil {
		c.store = slotstore.NewStore(transport, slotstore.WithLogger(c.logger))
	}
	c.registry = schema.NewRegistry(transport, c.ns, schema.WithLogger(c.logger))
	c.mapper = mapper.New(c.ns, mapper.WithLogger(c.logger))
	return c
}

// Store returns the slot store.
func (c *Client) Store() *slotstore.Store { return c.store }

// Mapper returns the entity mapper.
func (c *Client) Mapper() *mapper.Mapper { return c.mapper }

// Namespace returns the class namespace.
func (c *Client) Namespace() *model.Namespace { return c.ns }

// Registry returns the schema registry.
func (c *Client) Registry() *schema.Registry { return c.registry }

// Credentials returns the attached credential manager, or nil.
func (c *Client) Credentials() *auth.Manager { return c.creds }

// FetchSchema fetches the given category schemas and their transitive
// dependencies, compiles them and installs the classes.
func (c *Client) FetchSchema(ctx context.Context, titles []string, mode schema.MergeMode) error {
	return c.registry.Fetch(ctx, titles, mode)
}

// InstallDependencies ensures the classes named by mapping are present
// in the namespace, fetching per policy.
func (c *Client) InstallDependencies(ctx context.Context, mapping map[string]string, policy schema.Policy) error {
	return c.registry.InstallDependencies(ctx, mapping, policy)
}

// QueryInstances returns the full titles of all instances of a
// category. The category may be given as "Category:X" or bare "X".
func (c *Client) QueryInstances(ctx context.Context, category string, limit, offset int) ([]string, error) {
	if _, _, err := wiki.SplitFullTitle(category); err != nil {
		category = wiki.JoinFullTitle(wiki.NamespaceCategory, category)
	}
	return c.transport.SemanticSearch(ctx, wiki.SearchQuery{
		Query:  "[[HasType::" + category + "]]",
		Limit:  limit,
		Offset: offset,
	})
}
