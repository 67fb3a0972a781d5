package database

import (
	"bytes"
	"encoding/gob"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// FaceIndexMetadata stores metadata for validating a cached face index.
type FaceIndexMetadata struct {
	CustomerCount int64     `json:"customer_count"`
	MaxCustomerID int64     `json:"max_customer_id"`
	BuildTime     time.Time `json:"build_time"`
	Version       int       `json:"version"`
}

const faceIndexMetadataVersion = 1

// ErrFaceIndexEmpty is returned by Search when nothing has been indexed yet.
var ErrFaceIndexEmpty = errors.New("face index not initialized")

// FaceIndex wraps the HNSW graph for customer face signature search.
type FaceIndex struct {
	graph   *hnsw.Graph[int64]
	faces   map[int64]*CustomerFace // customer ID -> face
	deleted int                     // nodes still in the graph but removed from faces
	mu      sync.RWMutex
	path    string
}

// NewFaceIndex creates a new empty face index.
func NewFaceIndex() *FaceIndex {
	return &FaceIndex{
		faces: make(map[int64]*CustomerFace),
	}
}

func newFaceGraph() *hnsw.Graph[int64] {
	g := hnsw.NewGraph[int64]()
	g.M = HNSWMaxNeighbors
	g.Ml = 1.0 / float64(HNSWMaxNeighbors)
	g.EfSearch = HNSWEfSearch
	g.Distance = hnsw.CosineDistance
	return g
}

// Build replaces the index contents with the given faces.
func (f *FaceIndex) Build(faces []CustomerFace) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.faces = make(map[int64]*CustomerFace, len(faces))
	f.deleted = 0
	if len(faces) == 0 {
		f.graph = nil
		return
	}

	g := newFaceGraph()
	for i := range faces {
		face := &faces[i]
		if len(face.Signature) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(face.CustomerID, face.Signature))
		f.faces[face.CustomerID] = face
	}
	f.graph = g
}

// Nearest returns the indexed customer closest to the signature, together with
// its exact cosine distance. It returns nil when no indexed face is within maxDistance.
func (f *FaceIndex) Nearest(signature []float32, maxDistance float64) (*CustomerFace, float64, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.graph == nil {
		return nil, 0, ErrFaceIndexEmpty
	}

	// Removed customers stay in the graph, ask for enough neighbours to skip them.
	neighbors := f.graph.Search(signature, HNSWSearchCandidates+f.deleted)

	var best *CustomerFace
	bestDistance := maxDistance
	for _, n := range neighbors {
		face, ok := f.faces[n.Key]
		if !ok {
			continue
		}
		d := CosineDistance(signature, face.Signature)
		if d <= bestDistance {
			best = face
			bestDistance = d
		}
	}
	if best == nil {
		return nil, 0, nil
	}
	return best, bestDistance, nil
}

// Add adds a single customer face to the index.
func (f *FaceIndex) Add(face CustomerFace) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(face.Signature) == 0 {
		return
	}
	if _, exists := f.faces[face.CustomerID]; exists {
		// Signatures are immutable, only the name can differ.
		f.faces[face.CustomerID].Name = face.Name
		return
	}
	if f.graph == nil {
		f.graph = newFaceGraph()
	}
	f.graph.Add(hnsw.MakeNode(face.CustomerID, face.Signature))
	f.faces[face.CustomerID] = &face
}

// Rename updates the cached name of an indexed customer.
// Returns false if the customer is not indexed.
func (f *FaceIndex) Rename(customerID int64, name string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	face, ok := f.faces[customerID]
	if !ok {
		return false
	}
	face.Name = name
	return true
}

// Delete removes a customer from search results.
func (f *FaceIndex) Delete(customerID int64) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if _, ok := f.faces[customerID]; !ok {
		return
	}
	// The graph keeps the node, lookups through faces filter it out.
	delete(f.faces, customerID)
	f.deleted++
}

// Count returns the number of indexed customers.
func (f *FaceIndex) Count() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.faces)
}

// IsEmpty returns true if the index has no graph loaded.
func (f *FaceIndex) IsEmpty() bool {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.graph == nil
}

// SetPath sets the path used by Save.
func (f *FaceIndex) SetPath(path string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.path = path
}

// Path returns the configured persistence path.
func (f *FaceIndex) Path() string {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return f.path
}

// Metadata describes the current index contents.
func (f *FaceIndex) Metadata() FaceIndexMetadata {
	f.mu.RLock()
	defer f.mu.RUnlock()

	meta := FaceIndexMetadata{CustomerCount: int64(len(f.faces)), BuildTime: time.Now()}
	for id := range f.faces {
		if id > meta.MaxCustomerID {
			meta.MaxCustomerID = id
		}
	}
	return meta
}

// Save persists the graph, the metadata and the customer faces next to each other:
// <path>, <path>.meta and <path>.faces.
func (f *FaceIndex) Save() error {
	meta := f.Metadata()

	f.mu.RLock()
	defer f.mu.RUnlock()

	if f.path == "" {
		return nil
	}

	if f.graph == nil {
		_ = os.Remove(f.path)
		_ = os.Remove(f.path + ".meta")
		_ = os.Remove(f.path + ".faces")
		return nil
	}

	file, err := os.Create(f.path) //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to create face index file: %w", err)
	}
	if err := f.graph.Export(file); err != nil {
		_ = file.Close()
		return fmt.Errorf("failed to export face graph: %w", err)
	}
	if err := file.Close(); err != nil {
		return fmt.Errorf("failed to close face index file: %w", err)
	}

	meta.Version = faceIndexMetadataVersion
	metaData, err := json.Marshal(meta)
	if err != nil {
		return fmt.Errorf("failed to marshal metadata: %w", err)
	}
	if err := os.WriteFile(f.path+".meta", metaData, 0600); err != nil {
		return fmt.Errorf("failed to write metadata file: %w", err)
	}

	faces := make([]CustomerFace, 0, len(f.faces))
	for _, face := range f.faces {
		faces = append(faces, *face)
	}
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(faces); err != nil {
		return fmt.Errorf("failed to encode faces: %w", err)
	}
	if err := os.WriteFile(f.path+".faces", buf.Bytes(), 0600); err != nil {
		return fmt.Errorf("failed to write faces file: %w", err)
	}
	return nil
}

// LoadFaceIndexMetadata reads the .meta file written by Save.
func LoadFaceIndexMetadata(path string) (FaceIndexMetadata, error) {
	var meta FaceIndexMetadata
	data, err := os.ReadFile(path + ".meta") //nolint:gosec // path is from trusted config
	if err != nil {
		return meta, fmt.Errorf("failed to read metadata file: %w", err)
	}
	if err := json.Unmarshal(data, &meta); err != nil {
		return meta, fmt.Errorf("failed to unmarshal metadata: %w", err)
	}
	return meta, nil
}

// Load reads the graph and customer faces written by Save.
func (f *FaceIndex) Load(path string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.path = path
	if _, err := os.Stat(path); err != nil {
		return fmt.Errorf("face index file not found: %s", path)
	}

	saved, err := hnsw.LoadSavedGraph[int64](path)
	if err != nil {
		return fmt.Errorf("failed to load face index: %w", err)
	}

	data, err := os.ReadFile(path + ".faces") //nolint:gosec // path is from trusted config
	if err != nil {
		return fmt.Errorf("failed to read faces file: %w", err)
	}
	var faces []CustomerFace
	if err := gob.NewDecoder(bytes.NewReader(data)).Decode(&faces); err != nil {
		return fmt.Errorf("failed to decode faces: %w", err)
	}

	f.graph = saved.Graph
	f.graph.Distance = hnsw.CosineDistance
	f.faces = make(map[int64]*CustomerFace, len(faces))
	for i := range faces {
		f.faces[faces[i].CustomerID] = &faces[i]
	}
	f.deleted = f.graph.Len() - len(f.faces)
	if f.deleted < 0 {
		f.deleted = 0
	}
	return nil
}
