package cube

import "time"

// MeasureMetadata is the read-only description of a measure returned by
// Registry.Metadata, spec §6: enough for a client to render a measure
// picker without seeing any SQL.
type MeasureMetadata struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"type"`
}

// DimensionMetadata is the read-only description of a dimension.
type DimensionMetadata struct {
	Name        string `json:"name"`
	Title       string `json:"title"`
	Description string `json:"description,omitempty"`
	Kind        string `json:"type"`
}

// JoinMetadata is the read-only description of a join edge.
type JoinMetadata struct {
	Name         string `json:"name"`
	Target       string `json:"target"`
	Relationship string `json:"relationship"`
}

// CubeMetadata is the read-only shape of one cube, per spec §6: "List
// cubes / Describe cube surface a subset of the definition — names,
// titles, descriptions, types — never SQL fragments or security
// predicates."
type CubeMetadata struct {
	Name        string              `json:"name"`
	Title       string              `json:"title"`
	Description string              `json:"description,omitempty"`
	Measures    []MeasureMetadata   `json:"measures"`
	Dimensions  []DimensionMetadata `json:"dimensions"`
	Joins       []JoinMetadata      `json:"joins"`
}

func describeCube(c *Cube) CubeMetadata {
	meta := CubeMetadata{
		Name:        c.Name,
		Title:       c.Title,
		Description: c.Description,
	}
	for _, m := range c.Measures() {
		meta.Measures = append(meta.Measures, MeasureMetadata{
			Name:        m.Name,
			Title:       m.Title,
			Description: m.Description,
			Kind:        string(m.Kind),
		})
	}
	for _, d := range c.Dimensions() {
		meta.Dimensions = append(meta.Dimensions, DimensionMetadata{
			Name:        d.Name,
			Title:       d.Title,
			Description: d.Description,
			Kind:        string(d.Kind),
		})
	}
	for _, j := range c.Joins() {
		meta.Joins = append(meta.Joins, JoinMetadata{
			Name:         j.Name,
			Target:       j.Target,
			Relationship: string(j.Relationship),
		})
	}
	return meta
}

// Metadata returns the read-only surface of every registered cube,
// memoized for metadataTTL (spec §4.1) since describing every cube on
// every call would re-walk every measure/dimension/join for a shape
// that rarely changes. Register/Remove/Clear invalidate the memo
// immediately rather than waiting out the TTL.
func (r *Registry) Metadata() []CubeMetadata {
	r.metaMu.Lock()
	if r.metaCache != nil && time.Since(r.metaBuiltAt) < metadataTTL {
		cached := r.metaCache
		r.metaMu.Unlock()
		return cached
	}
	r.metaMu.Unlock()

	cubes := r.All()
	built := make([]CubeMetadata, len(cubes))
	for i, c := range cubes {
		built[i] = describeCube(c)
	}

	r.metaMu.Lock()
	r.metaCache = built
	r.metaBuiltAt = time.Now()
	r.metaMu.Unlock()
	return built
}

// DescribeCube returns the read-only surface of a single cube.
func (r *Registry) DescribeCube(name string) (CubeMetadata, bool) {
	c, ok := r.Get(name)
	if !ok {
		return CubeMetadata{}, false
	}
	return describeCube(c), true
}
