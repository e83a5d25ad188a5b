package registry

// Descriptor describes a tool the router can dispatch a query to.
// The input shape is opaque to the router; it only informs applicability.
type Descriptor struct {
	Name        string                 `json:"name"`
	Description string                 `json:"description"`
	Triggers    []string               `json:"triggers"` // multi-word phrases score higher
	Keywords    []string               `json:"keywords"`
	Verbs       []string               `json:"verbs"` // imperative verbs the tool is known for
	Patterns    []string               `json:"patterns,omitempty"` // regexps for query shapes, e.g. arithmetic
	InputShape  map[string]interface{} `json:"input_shape,omitempty"`
}

// Registry is the static tool catalog. Declaration order is significant:
// the router breaks score ties in favor of the earliest-registered tool.
// Populated once at process start, read-only thereafter, safe for
// unsynchronized concurrent reads.
type Registry struct {
	tools []Descriptor
	index map[string]int
}

// New builds a registry from descriptors in declaration order.
func New(tools ...Descriptor) *Registry {
	idx := make(map[string]int, len(tools))
	for i, t := range tools {
		idx[t.Name] = i
	}
	return &Registry{tools: tools, index: idx}
}

// List returns the descriptors in declaration order.
func (r *Registry) List() []Descriptor {
	return r.tools
}

// Get returns the descriptor for a tool name.
func (r *Registry) Get(name string) (Descriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, false
	}
	return r.tools[i], true
}

// Has reports whether a tool name is registered.
func (r *Registry) Has(name string) bool {
	_, ok := r.index[name]
	return ok
}

// Builtin returns the default tool catalog.
func Builtin() *Registry {
	return New(
		Descriptor{
			Name:        "add_note",
			Description: "Save, list, and search personal notes and reminders",
			Triggers: []string{
				"add a note", "add note", "save a note", "save note",
				"create a note", "create note", "take a note", "note down",
				"write a note", "remind me", "show my notes", "list my notes",
				"search my notes", "i need to remember",
			},
			Keywords: []string{"note", "reminder", "sticky"},
			Verbs:    []string{"add", "save", "create", "write", "note", "remind"},
			InputShape: map[string]interface{}{
				"message": "string",
			},
		},
		Descriptor{
			Name:        "search_docs",
			Description: "Search library and API documentation",
			Triggers: []string{
				"search the docs", "search docs", "search documentation",
				"find documentation", "look up the docs", "lookup api",
				"api reference", "api docs", "check the docs",
				"official docs", "official documentation", "documentation for",
			},
			Keywords: []string{
				"docs", "documentation", "api", "manual", "reference",
				"langchain", "openai", "anthropic", "pytorch", "tensorflow",
				"huggingface",
			},
			Verbs: []string{"search", "find", "lookup", "check"},
			InputShape: map[string]interface{}{
				"query":   "string",
				"library": "string",
			},
		},
		Descriptor{
			Name:        "simple_math",
			Description: "Evaluate arithmetic and math expressions",
			Triggers: []string{
				"calculate the", "compute the", "solve the equation",
				"derivative of", "integral of", "what is the derivative",
				"what is the integral", "evaluate the expression",
			},
			Keywords: []string{
				"calculate", "compute", "derivative", "integral", "equation",
				"math", "solve", "evaluate",
			},
			Verbs: []string{"calculate", "compute", "solve", "evaluate", "differentiate", "integrate"},
			Patterns: []string{
				`\d+(\.\d+)?\s*[-+*/^]\s*\d+`, // arithmetic expression shape
				`d/dx|∫|∂`,
			},
			InputShape: map[string]interface{}{
				"expression": "string",
			},
		},
	)
}
