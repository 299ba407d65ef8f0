// Package graph holds the knowledge graph built incrementally from
// extracted article entities and relations. Entities are deduplicated by
// normalized (name, type) across the whole corpus, so repeated mentions
// collapse into shared hub nodes.
//
// Storage is an append-only arena: entities and relations live in slices
// and are addressed by stable integer IDs. A single RWMutex guards all
// state; ingestion is the only writer and commits one article's mutations
// under a single write lock, so readers always observe a fully committed
// article.
package graph

import (
	"sort"
	"strings"
	"sync"

	"github.com/feedgraph/feedgraph/pkg/model"
	"github.com/m-mizutani/goerr/v2"
)

type EntityID int

type RelationID int

// Entity is a deduplicated named concept. Articles holds provenance: every
// article that mentioned the entity, first one first.
type Entity struct {
	ID       EntityID
	Name     string
	Type     string
	Articles []model.ArticleID
}

// Relation is a typed directed edge. Articles is the support set: every
// article that asserted this (source, target, type) edge.
type Relation struct {
	ID       RelationID
	Source   EntityID
	Target   EntityID
	Type     string
	Articles []model.ArticleID
}

type entityKey struct {
	name string
	typ  string
}

type relationKey struct {
	source EntityID
	target EntityID
	typ    string
}

type Graph struct {
	mu sync.RWMutex

	entities  []Entity
	relations []Relation

	byKey     map[entityKey]EntityID
	byRelKey  map[relationKey]RelationID
	byArticle map[model.ArticleID][]EntityID

	// adjacency holds both edge directions; traversal treats relations as
	// connections regardless of direction.
	adjacency map[EntityID][]RelationID
}

func New() *Graph {
	return &Graph{
		byKey:     map[entityKey]EntityID{},
		byRelKey:  map[relationKey]RelationID{},
		byArticle: map[model.ArticleID][]EntityID{},
		adjacency: map[EntityID][]RelationID{},
	}
}

// NormalizeName canonicalizes an entity name for identity comparison:
// lower-cased, whitespace collapsed.
func NormalizeName(name string) string {
	return strings.Join(strings.Fields(strings.ToLower(name)), " ")
}

// UpsertEntity returns the existing entity for a normalized (name, type)
// match, or creates a new one. The article is appended to the entity's
// provenance either way.
func (g *Graph) UpsertEntity(name, entityType string, articleID model.ArticleID) (EntityID, error) {
	norm := NormalizeName(name)
	if norm == "" {
		return 0, goerr.New("entity name is empty")
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.upsertEntityLocked(name, norm, NormalizeName(entityType), articleID), nil
}

func (g *Graph) upsertEntityLocked(name, norm, entityType string, articleID model.ArticleID) EntityID {
	key := entityKey{name: norm, typ: entityType}
	if id, ok := g.byKey[key]; ok {
		g.addProvenanceLocked(id, articleID)
		return id
	}

	id := EntityID(len(g.entities))
	g.entities = append(g.entities, Entity{
		ID:       id,
		Name:     name,
		Type:     entityType,
		Articles: []model.ArticleID{articleID},
	})
	g.byKey[key] = id
	g.byArticle[articleID] = append(g.byArticle[articleID], id)
	return id
}

func (g *Graph) addProvenanceLocked(id EntityID, articleID model.ArticleID) {
	e := &g.entities[id]
	for _, a := range e.Articles {
		if a == articleID {
			return
		}
	}
	e.Articles = append(e.Articles, articleID)
	g.byArticle[articleID] = append(g.byArticle[articleID], id)
}

// UpsertRelation merges into an existing (source, target, type) edge by
// adding the article to its support set, or creates a new edge. Returns
// model.ErrDanglingReference if either endpoint is unknown.
func (g *Graph) UpsertRelation(source, target EntityID, relationType string, articleID model.ArticleID) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	if !g.validLocked(source) || !g.validLocked(target) {
		return goerr.Wrap(model.ErrDanglingReference, "upsert relation",
			goerr.V("source", source), goerr.V("target", target))
	}
	g.upsertRelationLocked(source, target, NormalizeName(relationType), articleID)
	return nil
}

func (g *Graph) validLocked(id EntityID) bool {
	return id >= 0 && int(id) < len(g.entities)
}

func (g *Graph) upsertRelationLocked(source, target EntityID, relationType string, articleID model.ArticleID) {
	key := relationKey{source: source, target: target, typ: relationType}
	if id, ok := g.byRelKey[key]; ok {
		r := &g.relations[id]
		for _, a := range r.Articles {
			if a == articleID {
				return
			}
		}
		r.Articles = append(r.Articles, articleID)
		return
	}

	id := RelationID(len(g.relations))
	g.relations = append(g.relations, Relation{
		ID:       id,
		Source:   source,
		Target:   target,
		Type:     relationType,
		Articles: []model.ArticleID{articleID},
	})
	g.byRelKey[key] = id
	g.adjacency[source] = append(g.adjacency[source], id)
	if target != source {
		g.adjacency[target] = append(g.adjacency[target], id)
	}
}

// EntityCandidate is one extracted entity mention.
type EntityCandidate struct {
	Name string
	Type string
}

// RelationCandidate is one extracted relation between two named entities.
// Endpoints are named, not ID'd; they are resolved against the same
// article's entity candidates at apply time.
type RelationCandidate struct {
	Source     string
	SourceType string
	Target     string
	TargetType string
	Type       string
}

// Extraction is the full candidate set produced for one article.
type Extraction struct {
	Entities  []EntityCandidate
	Relations []RelationCandidate
}

// Apply commits one article's extraction under a single write lock.
// Entity upserts run first, then relations resolve against the now-known
// names; a relation whose endpoint was not part of this article's entity
// set and is not already in the graph is rejected, and since validation
// happens before any mutation the graph is left unchanged on failure.
func (g *Graph) Apply(articleID model.ArticleID, ext Extraction) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	known := func(name, typ string) bool {
		_, ok := g.byKey[entityKey{name: NormalizeName(name), typ: NormalizeName(typ)}]
		return ok
	}
	inBatch := map[entityKey]bool{}
	for _, e := range ext.Entities {
		if NormalizeName(e.Name) == "" {
			continue
		}
		inBatch[entityKey{name: NormalizeName(e.Name), typ: NormalizeName(e.Type)}] = true
	}
	for _, r := range ext.Relations {
		srcKey := entityKey{name: NormalizeName(r.Source), typ: NormalizeName(r.SourceType)}
		dstKey := entityKey{name: NormalizeName(r.Target), typ: NormalizeName(r.TargetType)}
		if (!inBatch[srcKey] && !known(r.Source, r.SourceType)) ||
			(!inBatch[dstKey] && !known(r.Target, r.TargetType)) {
			return goerr.Wrap(model.ErrDanglingReference, "apply extraction",
				goerr.V("article", articleID),
				goerr.V("source", r.Source), goerr.V("target", r.Target))
		}
	}

	for _, e := range ext.Entities {
		norm := NormalizeName(e.Name)
		if norm == "" {
			continue
		}
		g.upsertEntityLocked(e.Name, norm, NormalizeName(e.Type), articleID)
	}
	for _, r := range ext.Relations {
		src := g.byKey[entityKey{name: NormalizeName(r.Source), typ: NormalizeName(r.SourceType)}]
		dst := g.byKey[entityKey{name: NormalizeName(r.Target), typ: NormalizeName(r.TargetType)}]
		g.upsertRelationLocked(src, dst, NormalizeName(r.Type), articleID)
	}
	return nil
}

// Entity returns the entity for an ID.
func (g *Graph) Entity(id EntityID) (Entity, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.validLocked(id) {
		return Entity{}, false
	}
	return g.entities[id], true
}

// Lookup resolves a normalized (name, type) pair to an entity ID.
func (g *Graph) Lookup(name, entityType string) (EntityID, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	id, ok := g.byKey[entityKey{name: NormalizeName(name), typ: NormalizeName(entityType)}]
	return id, ok
}

// EntitiesFor returns all entities mentioned by an article, in first-seen
// order.
func (g *Graph) EntitiesFor(articleID model.ArticleID) []EntityID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	ids := g.byArticle[articleID]
	out := make([]EntityID, len(ids))
	copy(out, ids)
	return out
}

// ArticlesFor returns the provenance set of an entity.
func (g *Graph) ArticlesFor(id EntityID) []model.ArticleID {
	g.mu.RLock()
	defer g.mu.RUnlock()
	if !g.validLocked(id) {
		return nil
	}
	out := make([]model.ArticleID, len(g.entities[id].Articles))
	copy(out, g.entities[id].Articles)
	return out
}

// Neighbors runs a cycle-safe breadth-first traversal from id up to
// maxDepth hops, following relations in both directions, and returns hop
// distances keyed by entity ID. The seed itself is included at distance 0.
// relationTypes, when non-empty, restricts which edges are followed.
func (g *Graph) Neighbors(id EntityID, maxDepth int, relationTypes ...string) map[EntityID]int {
	return g.Distances([]EntityID{id}, maxDepth, relationTypes...)
}

// Distances is a multi-source variant of Neighbors: hop distance to the
// nearest seed, for every entity within maxDepth of any seed.
func (g *Graph) Distances(seeds []EntityID, maxDepth int, relationTypes ...string) map[EntityID]int {
	g.mu.RLock()
	defer g.mu.RUnlock()

	var typeFilter map[string]bool
	if len(relationTypes) > 0 {
		typeFilter = make(map[string]bool, len(relationTypes))
		for _, t := range relationTypes {
			typeFilter[NormalizeName(t)] = true
		}
	}

	dist := map[EntityID]int{}
	var frontier []EntityID
	for _, s := range seeds {
		if !g.validLocked(s) {
			continue
		}
		if _, ok := dist[s]; ok {
			continue
		}
		dist[s] = 0
		frontier = append(frontier, s)
	}

	for depth := 1; depth <= maxDepth && len(frontier) > 0; depth++ {
		var next []EntityID
		for _, cur := range frontier {
			for _, rid := range g.adjacency[cur] {
				rel := &g.relations[rid]
				if typeFilter != nil && !typeFilter[rel.Type] {
					continue
				}
				other := rel.Target
				if other == cur {
					other = rel.Source
				}
				if _, seen := dist[other]; seen {
					continue
				}
				dist[other] = depth
				next = append(next, other)
			}
		}
		frontier = next
	}
	return dist
}

// Stats summarizes graph size.
type Stats struct {
	Entities  int
	Relations int
	Articles  int
}

func (g *Graph) Stats() Stats {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return Stats{
		Entities:  len(g.entities),
		Relations: len(g.relations),
		Articles:  len(g.byArticle),
	}
}

// Names returns all canonical entity names sorted alphabetically, mainly
// for display.
func (g *Graph) Names() []string {
	g.mu.RLock()
	defer g.mu.RUnlock()
	names := make([]string, 0, len(g.entities))
	for i := range g.entities {
		names = append(names, g.entities[i].Name)
	}
	sort.Strings(names)
	return names
}
