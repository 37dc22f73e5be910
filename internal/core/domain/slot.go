package domain

import "sort"

// ServiceType identifies an external service category.
type ServiceType string

const (
	// ServiceChat is a chat-completion service (not used by this core).
	ServiceChat ServiceType = "chat"

	// ServiceEmbedding produces fixed-length vectors from text.
	ServiceEmbedding ServiceType = "embedding"

	// ServiceReranker re-scores candidate passages against a query.
	ServiceReranker ServiceType = "reranker"

	// ServiceParser extracts text from raw document bytes (OCR/parsing).
	ServiceParser ServiceType = "parser"
)

// ServiceSlot is a configured instance of an external service. Up to two
// slots exist per service type. Slots are read-only inputs to the core.
type ServiceSlot struct {
	// Type is the service category.
	Type ServiceType

	// Name identifies the slot for logging and warnings (e.g. "reranker-1").
	Name string

	// Enabled gates whether the slot participates at all.
	Enabled bool

	// Priority orders slots for fallback; lower values are tried first.
	Priority int

	// Weight is the mixing weight for dual-reranker fusion. Ignored for
	// other service types.
	Weight float64

	// Provider is the service provider identifier.
	Provider string

	// Model is the model name, where applicable.
	Model string

	// BaseURL is the service endpoint.
	BaseURL string

	// APIKey authenticates requests to the service.
	APIKey string
}

// ActiveSlots filters to enabled slots of the given type, ordered by
// ascending priority. Order is stable for equal priorities.
func ActiveSlots(slots []ServiceSlot, t ServiceType) []ServiceSlot {
	active := make([]ServiceSlot, 0, len(slots))
	for _, s := range slots {
		if s.Enabled && s.Type == t {
			active = append(active, s)
		}
	}
	sort.SliceStable(active, func(i, j int) bool {
		return active[i].Priority < active[j].Priority
	})
	return active
}
