package kb

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"sort"
	"strings"
	"sync"

	"github.com/narratex/narratex/pkg/types"
)

var (
	// ErrUnknownFamily is returned when a reload names a family that does
	// not exist.
	ErrUnknownFamily = errors.New("unknown record family")
	// ErrSnapshotNotFound is returned when the snapshot directory is
	// missing entirely.
	ErrSnapshotNotFound = errors.New("knowledge base snapshot directory not found")
)

// family memoizes one record family: loaded at most once per store
// instance, until Reload invalidates it.
type family[T any] struct {
	mu     sync.Mutex
	loaded bool
	value  T
}

func (f *family[T]) get(load func() (T, error)) (T, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.loaded {
		return f.value, nil
	}
	v, err := load()
	if err != nil {
		var zero T
		return zero, err
	}
	f.value = v
	f.loaded = true
	return v, nil
}

func (f *family[T]) invalidate() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.loaded = false
	var zero T
	f.value = zero
}

type atomSet struct {
	list []*types.Atom
	byID map[string]*types.Atom
}

type segmentSet struct {
	list []*types.Segment
	byID map[string]*types.Segment
}

// entityFile matches the shape of entities.json.
type entityFile struct {
	Entities   map[string]*types.Entity `json:"entities"`
	Statistics struct {
		TotalEntities int `json:"total_entities"`
	} `json:"statistics"`
}

// clipFile matches the shape of creative_angles.json.
type clipFile struct {
	Clips []*types.Clip `json:"clip_recommendations"`
}

// Store is the read-only accessor over one knowledge base snapshot.
type Store struct {
	dir      string
	manifest Manifest
	logger   *slog.Logger

	atoms    family[*atomSet]
	segments family[*segmentSet]
	entities family[*entityFile]
	topics   family[[]*types.Topic]
	graph    family[*types.Graph]
	clips    family[[]*types.Clip]
}

// NewStore opens the snapshot at dir. The directory must exist; individual
// family files may be missing.
func NewStore(dir string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	info, err := os.Stat(dir)
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrSnapshotNotFound, dir)
	}

	manifest, err := loadManifest(dir)
	if err != nil {
		return nil, err
	}

	return &Store{dir: dir, manifest: manifest, logger: logger}, nil
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string { return s.dir }

// Reload invalidates one family's cache so the next read hits disk again.
func (s *Store) Reload(f Family) error {
	switch f {
	case FamilyAtoms:
		s.atoms.invalidate()
	case FamilySegments:
		s.segments.invalidate()
	case FamilyEntities:
		s.entities.invalidate()
	case FamilyTopics:
		s.topics.invalidate()
	case FamilyGraph:
		s.graph.invalidate()
	case FamilyClips:
		s.clips.invalidate()
	default:
		return fmt.Errorf("%w: %q", ErrUnknownFamily, f)
	}
	return nil
}

func (s *Store) atomSet() (*atomSet, error) {
	return s.atoms.get(func() (*atomSet, error) {
		set := &atomSet{byID: make(map[string]*types.Atom)}

		path := s.manifest.path(s.dir, FamilyAtoms)
		file, err := os.Open(path)
		if os.IsNotExist(err) {
			s.logger.Warn("atoms file missing, treating family as empty", "path", path)
			return set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open atoms: %w", err)
		}
		defer file.Close()

		scanner := bufio.NewScanner(file)
		scanner.Buffer(make([]byte, 0, 64*1024), 4*1024*1024)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" {
				continue
			}
			var atom types.Atom
			if err := json.Unmarshal([]byte(line), &atom); err != nil {
				return nil, fmt.Errorf("parse atom line: %w", err)
			}
			set.list = append(set.list, &atom)
			set.byID[atom.ID] = &atom
		}
		if err := scanner.Err(); err != nil {
			return nil, fmt.Errorf("scan atoms: %w", err)
		}

		s.logger.Info("loaded atoms", "count", len(set.list))
		return set, nil
	})
}

// Atoms returns every atom in file order.
func (s *Store) Atoms() ([]*types.Atom, error) {
	set, err := s.atomSet()
	if err != nil {
		return nil, err
	}
	return set.list, nil
}

// AtomByID returns the atom with the given id, or nil.
func (s *Store) AtomByID(id string) (*types.Atom, error) {
	set, err := s.atomSet()
	if err != nil {
		return nil, err
	}
	return set.byID[id], nil
}

// SearchAtomText returns all atoms whose text contains the query,
// case-insensitively, in file order.
func (s *Store) SearchAtomText(query string) ([]*types.Atom, error) {
	set, err := s.atomSet()
	if err != nil {
		return nil, err
	}
	needle := strings.ToLower(query)
	var out []*types.Atom
	for _, atom := range set.list {
		if strings.Contains(strings.ToLower(atom.Text), needle) {
			out = append(out, atom)
		}
	}
	return out, nil
}

// AtomsInRange returns all atoms whose span overlaps the given range.
func (s *Store) AtomsInRange(r types.TimeRange) ([]*types.Atom, error) {
	set, err := s.atomSet()
	if err != nil {
		return nil, err
	}
	var out []*types.Atom
	for _, atom := range set.list {
		if atom.Span().Overlaps(r) {
			out = append(out, atom)
		}
	}
	return out, nil
}

// AtomsByImportance returns atoms whose importance score is at least min,
// sorted by descending importance with id as the tie-break.
func (s *Store) AtomsByImportance(min float64) ([]*types.Atom, error) {
	set, err := s.atomSet()
	if err != nil {
		return nil, err
	}
	var out []*types.Atom
	for _, atom := range set.list {
		if atom.ImportanceScore >= min {
			out = append(out, atom)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].ImportanceScore != out[j].ImportanceScore {
			return out[i].ImportanceScore > out[j].ImportanceScore
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (s *Store) segmentSet() (*segmentSet, error) {
	return s.segments.get(func() (*segmentSet, error) {
		set := &segmentSet{byID: make(map[string]*types.Segment)}

		path := s.manifest.path(s.dir, FamilySegments)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.logger.Warn("segments file missing, treating family as empty", "path", path)
			return set, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open segments: %w", err)
		}

		// The ingestion pipeline has written both a bare list and a
		// wrapped object over time; accept either.
		var list []*types.Segment
		if err := json.Unmarshal(raw, &list); err != nil {
			var wrapped struct {
				Segments []*types.Segment `json:"segments"`
			}
			if err := json.Unmarshal(raw, &wrapped); err != nil {
				return nil, fmt.Errorf("parse segments: %w", err)
			}
			list = wrapped.Segments
		}

		set.list = list
		for _, seg := range list {
			set.byID[seg.ID] = seg
		}
		s.logger.Info("loaded segments", "count", len(set.list))
		return set, nil
	})
}

// Segments returns every narrative segment in file order.
func (s *Store) Segments() ([]*types.Segment, error) {
	set, err := s.segmentSet()
	if err != nil {
		return nil, err
	}
	return set.list, nil
}

// SegmentByID returns the segment with the given id, or nil.
func (s *Store) SegmentByID(id string) (*types.Segment, error) {
	set, err := s.segmentSet()
	if err != nil {
		return nil, err
	}
	return set.byID[id], nil
}

func (s *Store) entitySet() (*entityFile, error) {
	return s.entities.get(func() (*entityFile, error) {
		ef := &entityFile{Entities: make(map[string]*types.Entity)}

		path := s.manifest.path(s.dir, FamilyEntities)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.logger.Warn("entities file missing, treating family as empty", "path", path)
			return ef, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open entities: %w", err)
		}
		if err := json.Unmarshal(raw, ef); err != nil {
			return nil, fmt.Errorf("parse entities: %w", err)
		}
		if ef.Entities == nil {
			ef.Entities = make(map[string]*types.Entity)
		}
		// Names are map keys in the file; backfill the struct field so
		// callers always see it set.
		for name, e := range ef.Entities {
			if e.Name == "" {
				e.Name = name
			}
		}
		s.logger.Info("loaded entities", "count", len(ef.Entities))
		return ef, nil
	})
}

// Entities returns the entity table keyed by display name.
func (s *Store) Entities() (map[string]*types.Entity, error) {
	ef, err := s.entitySet()
	if err != nil {
		return nil, err
	}
	return ef.Entities, nil
}

// EntityByName returns the entity with the given display name, or nil.
func (s *Store) EntityByName(name string) (*types.Entity, error) {
	ef, err := s.entitySet()
	if err != nil {
		return nil, err
	}
	return ef.Entities[name], nil
}

// Topics returns every topic cluster.
func (s *Store) Topics() ([]*types.Topic, error) {
	return s.topics.get(func() ([]*types.Topic, error) {
		path := s.manifest.path(s.dir, FamilyTopics)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.logger.Warn("topics file missing, treating family as empty", "path", path)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open topics: %w", err)
		}

		var list []*types.Topic
		if err := json.Unmarshal(raw, &list); err != nil {
			var wrapped struct {
				Topics []*types.Topic `json:"topics"`
			}
			if err := json.Unmarshal(raw, &wrapped); err != nil {
				return nil, fmt.Errorf("parse topics: %w", err)
			}
			list = wrapped.Topics
		}
		s.logger.Info("loaded topics", "count", len(list))
		return list, nil
	})
}

// Graph returns the derived knowledge graph. The graph is never nil; a
// missing backing file yields an empty graph.
func (s *Store) Graph() (*types.Graph, error) {
	return s.graph.get(func() (*types.Graph, error) {
		path := s.manifest.path(s.dir, FamilyGraph)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.logger.Warn("graph file missing, treating family as empty", "path", path)
			return &types.Graph{}, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open graph: %w", err)
		}

		var g types.Graph
		if err := json.Unmarshal(raw, &g); err != nil {
			return nil, fmt.Errorf("parse graph: %w", err)
		}
		s.logger.Info("loaded graph", "nodes", len(g.Nodes), "edges", len(g.Edges))
		return &g, nil
	})
}

// Clips returns the clip recommendations produced by the creative analyzer.
func (s *Store) Clips() ([]*types.Clip, error) {
	return s.clips.get(func() ([]*types.Clip, error) {
		path := s.manifest.path(s.dir, FamilyClips)
		raw, err := os.ReadFile(path)
		if os.IsNotExist(err) {
			s.logger.Warn("clips file missing, treating family as empty", "path", path)
			return nil, nil
		}
		if err != nil {
			return nil, fmt.Errorf("open clips: %w", err)
		}

		var cf clipFile
		if err := json.Unmarshal(raw, &cf); err != nil {
			return nil, fmt.Errorf("parse clips: %w", err)
		}
		return cf.Clips, nil
	})
}

// EntityRelations returns every graph edge touching the named entity,
// viewed from that entity and sorted by descending weight.
func (s *Store) EntityRelations(name string) ([]types.Relation, error) {
	g, err := s.Graph()
	if err != nil {
		return nil, err
	}

	var out []types.Relation
	for _, edge := range g.Edges {
		switch name {
		case edge.Source:
			out = append(out, types.Relation{
				Target:    edge.Target,
				Type:      edge.Type,
				Weight:    edge.Weight,
				Direction: "outgoing",
				AtomIDs:   edge.AtomIDs,
			})
		case edge.Target:
			out = append(out, types.Relation{
				Target:    edge.Source,
				Type:      edge.Type,
				Weight:    edge.Weight,
				Direction: "incoming",
				AtomIDs:   edge.AtomIDs,
			})
		}
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Weight > out[j].Weight
	})
	return out, nil
}

// Metadata derives summary metadata for the snapshot: duration from the
// last atom, title from the manifest or first segment.
func (s *Store) Metadata() (*types.VideoMetadata, error) {
	atoms, err := s.Atoms()
	if err != nil {
		return nil, err
	}
	segments, err := s.Segments()
	if err != nil {
		return nil, err
	}
	ef, err := s.entitySet()
	if err != nil {
		return nil, err
	}

	md := &types.VideoMetadata{
		VideoID:      s.manifest.VideoID,
		Title:        s.manifest.Title,
		AtomCount:    len(atoms),
		SegmentCount: len(segments),
		EntityCount:  len(ef.Entities),
	}
	if md.VideoID == "" {
		md.VideoID = lastPathElement(s.dir)
	}
	if len(atoms) > 0 {
		md.DurationMs = atoms[len(atoms)-1].EndMs
	}
	if md.Title == "" {
		md.Title = "Untitled Video"
		if len(segments) > 0 && segments[0].Title != "" {
			md.Title = segments[0].Title
		}
	}
	if ef.Statistics.TotalEntities > md.EntityCount {
		md.EntityCount = ef.Statistics.TotalEntities
	}
	return md, nil
}

func lastPathElement(p string) string {
	p = strings.TrimRight(p, "/")
	if i := strings.LastIndexByte(p, '/'); i >= 0 {
		return p[i+1:]
	}
	return p
}
