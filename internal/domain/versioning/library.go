package versioning

// Library is resolved per operation by the caller; the engine never caches it.
type Library struct {
	Name       string `json:"name"`
	IsEditable bool   `json:"is_editable"`
}
