package chroma

// chromaCollection represents a Chroma collection response.
type chromaCollection struct {
	ID        string `json:"id"`
	Name      string `json:"name"`
	Dimension *int   `json:"dimension"`
}

// chromaQueryRequest is the request body for querying.
type chromaQueryRequest struct {
	QueryEmbeddings [][]float32    `json:"query_embeddings"`
	NResults        int            `json:"n_results"`
	Where           map[string]any `json:"where,omitempty"`
	Include         []string       `json:"include"`
}

// chromaQueryResponse is the response from a query.
type chromaQueryResponse struct {
	IDs       [][]string         `json:"ids"`
	Distances [][]*float64       `json:"distances"`
	Metadatas [][]map[string]any `json:"metadatas"`
}

// chromaGetRequest is the request body for paging through documents.
type chromaGetRequest struct {
	Limit   int      `json:"limit"`
	Offset  int      `json:"offset"`
	Include []string `json:"include"`
}

// chromaGetResponse is the response from getting documents.
type chromaGetResponse struct {
	IDs       []string         `json:"ids"`
	Metadatas []map[string]any `json:"metadatas"`
}
