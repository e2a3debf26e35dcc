package kb

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Family identifies one record family of the knowledge base.
type Family string

const (
	FamilyAtoms    Family = "atoms"
	FamilySegments Family = "segments"
	FamilyEntities Family = "entities"
	FamilyTopics   Family = "topics"
	FamilyGraph    Family = "graph"
	FamilyClips    Family = "clips"
)

// Families lists every family in load order.
var Families = []Family{
	FamilyAtoms, FamilySegments, FamilyEntities,
	FamilyTopics, FamilyGraph, FamilyClips,
}

// manifestName is looked up in the snapshot directory to override the
// default family file layout.
const manifestName = "manifest.yaml"

// Manifest describes where each family's backing file lives, relative to
// the snapshot directory. Zero values fall back to the ingestion pipeline's
// default layout.
type Manifest struct {
	VideoID  string `yaml:"video_id,omitempty"`
	Title    string `yaml:"title,omitempty"`
	Atoms    string `yaml:"atoms,omitempty"`
	Segments string `yaml:"segments,omitempty"`
	Entities string `yaml:"entities,omitempty"`
	Topics   string `yaml:"topics,omitempty"`
	Graph    string `yaml:"graph,omitempty"`
	Clips    string `yaml:"clips,omitempty"`
}

// defaultManifest mirrors the file names the ingestion pipeline writes.
func defaultManifest() Manifest {
	return Manifest{
		Atoms:    "atoms.jsonl",
		Segments: "narrative_segments.json",
		Entities: "entities.json",
		Topics:   "topics.json",
		Graph:    filepath.Join("indexes", "graph.json"),
		Clips:    "creative_angles.json",
	}
}

// loadManifest reads manifest.yaml from dir if present and merges it over
// the default layout.
func loadManifest(dir string) (Manifest, error) {
	m := defaultManifest()

	raw, err := os.ReadFile(filepath.Join(dir, manifestName))
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return m, fmt.Errorf("read manifest: %w", err)
	}

	var override Manifest
	if err := yaml.Unmarshal(raw, &override); err != nil {
		return m, fmt.Errorf("parse manifest: %w", err)
	}

	if override.VideoID != "" {
		m.VideoID = override.VideoID
	}
	if override.Title != "" {
		m.Title = override.Title
	}
	if override.Atoms != "" {
		m.Atoms = override.Atoms
	}
	if override.Segments != "" {
		m.Segments = override.Segments
	}
	if override.Entities != "" {
		m.Entities = override.Entities
	}
	if override.Topics != "" {
		m.Topics = override.Topics
	}
	if override.Graph != "" {
		m.Graph = override.Graph
	}
	if override.Clips != "" {
		m.Clips = override.Clips
	}
	return m, nil
}

// path returns the absolute backing path for a family.
func (m Manifest) path(dir string, f Family) string {
	var rel string
	switch f {
	case FamilyAtoms:
		rel = m.Atoms
	case FamilySegments:
		rel = m.Segments
	case FamilyEntities:
		rel = m.Entities
	case FamilyTopics:
		rel = m.Topics
	case FamilyGraph:
		rel = m.Graph
	case FamilyClips:
		rel = m.Clips
	}
	return filepath.Join(dir, rel)
}
