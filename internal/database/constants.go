package database

// HNSW index parameters for 128-dim customer face signatures
const (
	// HNSWMaxNeighbors (M) is the maximum number of neighbors per node.
	// Higher values improve recall but increase memory and build time.
	HNSWMaxNeighbors = 16

	// HNSWEfSearch is the search candidate pool size.
	HNSWEfSearch = 64

	// HNSWSearchCandidates is the number of neighbours requested from the index
	// before exact distances are compared.
	HNSWSearchCandidates = 5
)
