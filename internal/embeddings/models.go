package embeddings

// DefaultFastEmbedModel is the sentence model decisions are embedded with.
const DefaultFastEmbedModel = "sentence-transformers/all-MiniLM-L6-v2"

var knownDimensions = map[string]int{
	"sentence-transformers/all-MiniLM-L6-v2": 384,
	"BAAI/bge-small-en-v1.5":                 384,
	"BAAI/bge-base-en-v1.5":                  768,
	"fast-all-MiniLM-L6-v2":                  384,
	"fast-bge-small-en-v1.5":                 384,
	"fast-bge-base-en-v1.5":                  768,
}

// FastEmbedDimension returns the dimension of a known model.
func FastEmbedDimension(model string) (int, bool) {
	dim, ok := knownDimensions[model]
	return dim, ok
}
