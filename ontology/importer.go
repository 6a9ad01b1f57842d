// Package ontology installs parsed ontology graphs into a wiki
// instance: classes become category pages, individuals become items,
// properties become Semantic MediaWiki property pages, all with
// deterministic identifiers so re-imports converge onto the same pages.
//
// Parsing ontology files is out of scope; the importer consumes an
// already-parsed Graph.
package ontology

import (
	"context"
	"fmt"
	"log/slog"
	"regexp"
	"strings"

	"github.com/google/uuid"

	"github.com/OpenSemanticLab/osw-go/mapper"
	"github.com/OpenSemanticLab/osw-go/model"
	"github.com/OpenSemanticLab/osw-go/slotstore"
	"github.com/OpenSemanticLab/osw-go/wiki"
)

// Default category pages for imported OWL terms.
const (
	// OwlClassCategory types imported class terms.
	OwlClassCategory = "Category:OSW725a3cf5458f4daea86615fcbd0029f8"

	// OwlThingCategory is the root class; class terms without a parent
	// are subclassed under it.
	OwlThingCategory = "Category:OSW379d5a1589c74c82bc0de47938264d00"
)

// TermKind distinguishes the ontology term sorts.
type TermKind string

const (
	KindClass              TermKind = "class"
	KindIndividual         TermKind = "individual"
	KindObjectProperty     TermKind = "object_property"
	KindDataProperty       TermKind = "data_property"
	KindAnnotationProperty TermKind = "annotation_property"
)

// Term is one node of a parsed ontology graph.
type Term struct {
	// IRI is the term's identifier in the source ontology.
	IRI string

	Kind TermKind

	Label       []model.Label
	Description []model.Description

	// SubClassOf lists parent term IRIs (classes only).
	SubClassOf []string

	// InstanceOf lists class term IRIs (individuals only).
	InstanceOf []string

	// SeeAlso lists related IRIs.
	SeeAlso []string

	// PropertyType is the Semantic MediaWiki datatype of property
	// terms, e.g. "Page" or "Text".
	PropertyType string
}

// Graph is a parsed ontology: its identity plus its terms.
type Graph struct {
	// Name is the human-readable ontology name.
	Name string

	// IRI identifies the ontology itself.
	IRI string

	// Prefix is the full IRI prefix term IRIs start with,
	// e.g. "https://emmo.info/emmo#".
	Prefix string

	// PrefixName is the short prefix, e.g. "emmo".
	PrefixName string

	// SeeAlso lists documentation URLs; the first one is linked from
	// the vocabulary import page.
	SeeAlso []string

	Terms []Term
}

// NamingPolicy selects how imported property pages are named.
type NamingPolicy string

const (
	// PolicyLabel names property pages by the term label.
	PolicyLabel NamingPolicy = "label"

	// PolicyPrefixedLabel prepends the ontology prefix name and a
	// delimiter to the term label.
	PolicyPrefixedLabel NamingPolicy = "prefixed_label"
)

// Config tunes an import run.
type Config struct {
	// BaseClassTitle types imported class terms. Defaults to
	// OwlClassCategory.
	BaseClassTitle string

	// MetaClassTitle is the parent of otherwise parentless classes.
	// Defaults to OwlThingCategory.
	MetaClassTitle string

	// NamingPolicy for property pages. Defaults to PolicyPrefixedLabel.
	NamingPolicy NamingPolicy

	// PrefixDelimiter joins prefix name and label under
	// PolicyPrefixedLabel. Defaults to ":".
	PrefixDelimiter string

	// ChangeID is recorded in the meta block of every written entity.
	ChangeID string
}

func (c *Config) applyDefaults() {
	if c.BaseClassTitle == "" {
		c.BaseClassTitle = OwlClassCategory
	}
	if c.MetaClassTitle == "" {
		c.MetaClassTitle = OwlThingCategory
	}
	if c.NamingPolicy == "" {
		c.NamingPolicy = PolicyPrefixedLabel
	}
	if c.PrefixDelimiter == "" {
		c.PrefixDelimiter = ":"
	}
}

// Importer writes ontology graphs through the mapper and slot store.
type Importer struct {
	store  *slotstore.Store
	mapper *mapper.Mapper
	cfg    Config
	logger *slog.Logger
}

// ImporterOption configures an Importer.
type ImporterOption func(*Importer)

// WithLogger sets the logger.
func WithLogger(logger *slog.Logger) ImporterOption {
	return func(i *Importer) { i.logger = logger }
}

// NewImporter creates an importer writing through store and m.
func NewImporter(store *slotstore.Store, m *mapper.Mapper, cfg Config, opts ...ImporterOption) *Importer {
	cfg.applyDefaults()
	imp := &Importer{store: store, mapper: m, cfg: cfg, logger: slog.Default()}
	for _, opt := range opts {
		opt(imp)
	}
	return imp
}

var hexRunRe = regexp.MustCompile(`[^A-Fa-f0-9]`)

// TermUUID derives the stable identifier of a term. An IRI whose last
// segment already encodes 32 hex digits keeps that identity; any other
// IRI maps through UUIDv5 under the URL namespace, so repeated imports
// of the same IRI always converge.
func TermUUID(iri string) uuid.UUID {
	segment := iri
	if idx := strings.LastIndexAny(iri, "/#"); idx >= 0 {
		segment = iri[idx+1:]
	}
	hex := hexRunRe.ReplaceAllString(segment, "")
	if len(hex) >= 32 {
		if id, err := uuid.Parse(hex[len(hex)-32:]); err == nil {
			return id
		}
	}
	return uuid.NewSHA1(uuid.NameSpaceURL, []byte(iri))
}

// localName strips the ontology prefix from a term IRI.
func (g *Graph) localName(iri string) string {
	name := strings.TrimPrefix(iri, g.Prefix)
	return strings.TrimPrefix(name, g.PrefixName+":")
}

// propertyTitle derives the property page name under the naming policy.
func (i *Importer) propertyTitle(g *Graph, term *Term) (string, error) {
	label := ""
	for _, l := range term.Label {
		if l.Text != "" {
			label = l.Text
			break
		}
	}
	if label == "" {
		return wiki.OSWID(TermUUID(term.IRI)), nil
	}
	label = strings.ReplaceAll(label, " ", "_")
	switch i.cfg.NamingPolicy {
	case PolicyLabel:
		return label, nil
	case PolicyPrefixedLabel:
		if g.PrefixName == "" {
			return "", fmt.Errorf("ontology %q: prefixed_label naming needs a prefix name", g.Name)
		}
		return g.PrefixName + i.cfg.PrefixDelimiter + label, nil
	default:
		return "", fmt.Errorf("unknown naming policy %q", i.cfg.NamingPolicy)
	}
}

// Entities converts every term of the graph into an entity, without
// writing anything. Exposed for dry runs.
func (i *Importer) Entities(g *Graph) ([]*model.Entity, error) {
	entities := make([]*model.Entity, 0, len(g.Terms))
	for idx := range g.Terms {
		term := &g.Terms[idx]
		e, err := i.termEntity(g, term)
		if err != nil {
			return nil, err
		}
		entities = append(entities, e)
	}
	return entities, nil
}

// termEntity builds one entity from a term.
func (i *Importer) termEntity(g *Graph, term *Term) (*model.Entity, error) {
	if term.IRI == "" {
		return nil, fmt.Errorf("ontology %q: term without IRI", g.Name)
	}
	e := &model.Entity{
		UUID:        TermUUID(term.IRI),
		Label:       term.Label,
		Description: term.Description,
		Fields:      map[string]any{"iri": term.IRI},
	}
	if len(term.SeeAlso) > 0 {
		e.Set("see_also", toAnySlice(term.SeeAlso))
	}
	meta := &model.Meta{}
	if i.cfg.ChangeID != "" {
		meta.ChangeID = []string{i.cfg.ChangeID}
	}

	switch term.Kind {
	case KindClass:
		e.Type = []string{i.cfg.BaseClassTitle}
		parents := make([]string, 0, len(term.SubClassOf))
		for _, p := range term.SubClassOf {
			parents = append(parents, categoryTitleFor(p))
		}
		if len(parents) == 0 {
			parents = []string{i.cfg.MetaClassTitle}
		}
		e.Set("subclass_of", toAnySlice(parents))
		meta.WikiPage = &model.WikiPage{
			Namespace: wiki.NamespaceCategory,
			Title:     wiki.OSWID(e.UUID),
		}

	case KindIndividual:
		types := make([]string, 0, len(term.InstanceOf))
		for _, p := range term.InstanceOf {
			types = append(types, categoryTitleFor(p))
		}
		if len(types) == 0 {
			types = []string{i.cfg.MetaClassTitle}
		}
		e.Type = types

	case KindObjectProperty, KindDataProperty, KindAnnotationProperty:
		e.Type = []string{i.cfg.BaseClassTitle}
		title, err := i.propertyTitle(g, term)
		if err != nil {
			return nil, err
		}
		propertyType := term.PropertyType
		if propertyType == "" {
			if term.Kind == KindObjectProperty {
				propertyType = "Page"
			} else {
				propertyType = "Text"
			}
		}
		e.Set("property_type", propertyType)
		meta.WikiPage = &model.WikiPage{
			Namespace: wiki.NamespaceProperty,
			Title:     title,
		}

	default:
		return nil, fmt.Errorf("ontology %q: term %q has unknown kind %q", g.Name, term.IRI, term.Kind)
	}

	if meta.WikiPage != nil || len(meta.ChangeID) > 0 {
		e.Meta = meta
	}
	return e, nil
}

// categoryTitleFor maps a class term IRI onto its category page title.
func categoryTitleFor(iri string) string {
	return wiki.JoinFullTitle(wiki.NamespaceCategory, wiki.OSWID(TermUUID(iri)))
}

// Result reports one import run.
type Result struct {
	// Entities are the written entities in term order.
	Entities []*model.Entity

	// ImportPageTitle is the vocabulary declaration page.
	ImportPageTitle string
}

// Import writes the graph: every term entity through the mapper, plus
// the MediaWiki:Smw_import_<prefix> page declaring the external
// vocabulary to Semantic MediaWiki.
func (i *Importer) Import(ctx context.Context, g *Graph) (*Result, error) {
	if g.PrefixName == "" {
		return nil, fmt.Errorf("ontology %q has no prefix name", g.Name)
	}
	entities, err := i.Entities(g)
	if err != nil {
		return nil, err
	}
	comment := fmt.Sprintf("Import ontology %s", g.Name)
	for idx, e := range entities {
		slots, err := i.mapper.ToSlots(e)
		if err != nil {
			return nil, err
		}
		page, err := i.store.GetPage(ctx, i.mapper.FullTitleOf(e))
		if err != nil {
			return nil, err
		}
		for slot, content := range slots {
			page.SetSlotContent(slot, content)
		}
		if _, err := i.store.EditPage(ctx, page, comment); err != nil {
			return nil, fmt.Errorf("ontology %q: store term %q: %w", g.Name, g.Terms[idx].IRI, err)
		}
	}

	importTitle, err := i.writeImportPage(ctx, g, comment)
	if err != nil {
		return nil, err
	}
	i.logger.Info("ontology imported", "name", g.Name, "prefix", g.PrefixName, "terms", len(entities))
	return &Result{Entities: entities, ImportPageTitle: importTitle}, nil
}

// writeImportPage renders the Semantic MediaWiki vocabulary import
// declaration, one line per term.
func (i *Importer) writeImportPage(ctx context.Context, g *Graph, comment string) (string, error) {
	title := "MediaWiki:Smw_import_" + g.PrefixName
	link := g.IRI
	if len(g.SeeAlso) > 0 {
		link = g.SeeAlso[0]
	}
	var sb strings.Builder
	fmt.Fprintf(&sb, "%s | [%s %s]", g.Prefix, link, g.Name)
	for idx := range g.Terms {
		term := &g.Terms[idx]
		var importType string
		switch term.Kind {
		case KindClass:
			importType = "Category"
		case KindObjectProperty:
			importType = "Type:Page"
		case KindDataProperty, KindAnnotationProperty:
			propertyType := term.PropertyType
			if propertyType == "" {
				propertyType = "Text"
			}
			importType = "Type:" + propertyType
		default:
			importType = "Item"
		}
		fmt.Fprintf(&sb, "\n %s|%s", g.localName(term.IRI), importType)
	}

	page, err := i.store.GetPage(ctx, title)
	if err != nil {
		return "", err
	}
	page.SetSlotContent("main", sb.String())
	if _, err := i.store.EditPage(ctx, page, comment); err != nil {
		return "", fmt.Errorf("ontology %q: write import page: %w", g.Name, err)
	}
	return title, nil
}

func toAnySlice(in []string) []any {
	out := make([]any, len(in))
	for i, s := range in {
		out[i] = s
	}
	return out
}
