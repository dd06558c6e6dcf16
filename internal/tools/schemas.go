// Package tools defines the tool names and request/response schemas
// exposed by the biji-mcp service.
package tools

const (
	// ToolBijiSearch is the name of the biji_search MCP tool
	ToolBijiSearch = "biji_search"

	// ToolBijiRecall is the name of the biji_recall MCP tool
	ToolBijiRecall = "biji_recall"

	// ToolBijiListKB is the name of the biji_list_kb MCP tool
	ToolBijiListKB = "biji_list_kb"
)

// Tool descriptions shown to the MCP host
const (
	DescBijiSearch = "Search a Get笔记 knowledge base and return an AI-generated answer with optional source references"
	DescBijiRecall = "Recall raw content fragments from a Get笔记 knowledge base, ordered by relevance, without AI post-processing"
	DescBijiListKB = "List the configured Get笔记 knowledge bases"
)

// SearchRequest defines the input schema for the biji_search tool
type SearchRequest struct {
	// Question is the search question
	Question string `json:"question"`

	// KB is the knowledge base name. Empty means the configured default.
	KB string `json:"kb,omitempty"`

	// DeepSeek requests more thorough (slower) answer synthesis
	DeepSeek bool `json:"deep_seek,omitempty"`

	// WithRefs includes the remote's cited source references in the result
	WithRefs bool `json:"with_refs,omitempty"`
}

// ReferenceInfo is one cited source in a search response
type ReferenceInfo struct {
	Title   string `json:"title"`
	Content string `json:"content"`
}

// SearchResponse defines the output schema for the biji_search tool
type SearchResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// KB is the resolved knowledge base name the search ran against
	KB string `json:"kb,omitempty"`

	// Answer is the AI-generated answer
	Answer string `json:"answer"`

	// References are the cited sources, present only when WithRefs was set
	// and the remote returned any. Order is remote-provided.
	References []ReferenceInfo `json:"references,omitempty"`

	// Thinking is the deep-think transcript when DeepSeek was set
	Thinking string `json:"thinking,omitempty"`

	// Code classifies the failure if Status is "error"
	Code string `json:"code,omitempty"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}

// RecallRequest defines the input schema for the biji_recall tool
type RecallRequest struct {
	// Question is the search question
	Question string `json:"question"`

	// KB is the knowledge base name. Empty means the configured default.
	KB string `json:"kb,omitempty"`

	// TopK is the maximum number of fragments to return. Nil means the
	// configured default; an explicit non-positive value is rejected.
	TopK *int `json:"top_k,omitempty"`

	// IntentRewrite lets the remote rewrite the question before retrieval
	IntentRewrite bool `json:"intent_rewrite,omitempty"`

	// SelectMatrix lets the remote re-rank the retrieved fragments
	SelectMatrix bool `json:"select_matrix,omitempty"`
}

// FragmentInfo is one recalled content fragment
type FragmentInfo struct {
	ID      string  `json:"id"`
	Title   string  `json:"title"`
	Content string  `json:"content"`
	Score   float64 `json:"score"`

	// Type is the fragment source kind: NOTE, FILE or BLOGGER
	Type string `json:"type"`

	// RecallSource says which retrieval path matched: embedding or keyword
	RecallSource string `json:"recall_source"`
}

// RecallResponse defines the output schema for the biji_recall tool
type RecallResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// KB is the resolved knowledge base name the recall ran against
	KB string `json:"kb,omitempty"`

	// Fragments are the recalled fragments in remote relevance order
	Fragments []FragmentInfo `json:"fragments"`

	// Code classifies the failure if Status is "error"
	Code string `json:"code,omitempty"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}

// ListKBRequest defines the input schema for the biji_list_kb tool
type ListKBRequest struct{}

// KnowledgeBaseInfo is one configured knowledge base entry
type KnowledgeBaseInfo struct {
	Name        string `json:"name"`
	Description string `json:"description"`
	IsDefault   bool   `json:"is_default"`
}

// ListKBResponse defines the output schema for the biji_list_kb tool
type ListKBResponse struct {
	// Status indicates the result of the operation ("success" or "error")
	Status string `json:"status"`

	// KnowledgeBases lists the configured knowledge bases in name order,
	// exactly one of them marked as default.
	KnowledgeBases []KnowledgeBaseInfo `json:"knowledge_bases"`

	// Code classifies the failure if Status is "error"
	Code string `json:"code,omitempty"`

	// Error contains an error message if Status is "error"
	Error string `json:"error,omitempty"`
}
