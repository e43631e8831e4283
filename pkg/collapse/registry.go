package collapse

// Registry holds the collapsers available for format detection.
type Registry struct {
	names      []string
	collapsers map[string]Collapser
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		collapsers: make(map[string]Collapser),
	}
}

// Register adds a collapser under name. Detection tries collapsers in
// registration order. Registering a name twice replaces the earlier entry.
func (r *Registry) Register(name string, c Collapser) {
	if _, ok := r.collapsers[name]; !ok {
		r.names = append(r.names, name)
	}
	r.collapsers[name] = c
}

// Names returns the registered names in registration order.
func (r *Registry) Names() []string {
	return append([]string(nil), r.names...)
}

// Detect returns the first collapser that claims sample. When none does, it
// reports Undetermined if any collapser needs more input and NotApplicable otherwise.
func (r *Registry) Detect(sample string) (string, Applicability) {
	result := NotApplicable
	for _, name := range r.names {
		switch r.collapsers[name].IsApplicable(sample) {
		case Applicable:
			return name, Applicable
		case Undetermined:
			result = Undetermined
		}
	}
	return "", result
}
