package cube

import (
	"fmt"
	"log"
	"sort"
	"sync"
	"time"

	"github.com/semcube/semcube/errs"
)

// metadataTTL is how long a memoized Metadata() snapshot stays valid
// before the next call recomputes it (spec §4.1: "the read-only surface
// is memoized for a short interval since cube shapes change rarely").
const metadataTTL = 5 * time.Minute

// Registry owns the set of registered cubes. It is safe for concurrent
// use: Register/Remove/Clear take a write lock, everything else a read
// lock.
type Registry struct {
	mu    sync.RWMutex
	cubes map[string]*Cube
	seq   []string

	metaMu      sync.Mutex
	metaCache   []CubeMetadata
	metaBuiltAt time.Time
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{cubes: make(map[string]*Cube)}
}

// Register validates c and adds it to the registry, resolving and
// populating Dependencies on every calculated measure as it goes.
// Registering a cube under a name that already exists overwrites it and
// invalidates the memoized metadata.
func (r *Registry) Register(c *Cube) error {
	if c.Name == "" {
		return &errs.CubeDefinitionError{Cube: c.Name, Reason: "cube name must not be empty"}
	}

	for _, j := range c.Joins() {
		if j.Relationship == BelongsToMany && j.Through != nil && j.Through.SecuritySQL == nil {
			log.Printf("WARN: cube %q: belongsToMany join %q has no junction-table SecuritySQL", c.Name, j.Name)
		}
	}

	for _, m := range c.Measures() {
		if m.Kind != Calculated {
			continue
		}
		refs := parseTemplateRefs(m.Template)
		if len(refs) == 0 {
			return &errs.CubeDefinitionError{Cube: c.Name, Measure: m.Name, Reason: "calculated measure template references no measures"}
		}
		deps := make([]string, 0, len(refs))
		for _, ref := range refs {
			deps = append(deps, qualify(c.Name, ref))
		}
		m.Dependencies = deps
	}

	if err := r.checkCalculatedCycles(c); err != nil {
		return err
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.cubes[c.Name]; !exists {
		r.seq = append(r.seq, c.Name)
	}
	r.cubes[c.Name] = c
	r.invalidateMetadata()
	return nil
}

// checkCalculatedCycles walks every calculated measure's dependency
// chain looking for a reference back to itself, directly or through
// another calculated measure, raising errs.CubeDefinitionError on the
// first cycle found (spec §4.1, §9 Design Notes: "calculated measure
// cycles are a definition-time error, not a planning-time one").
func (r *Registry) checkCalculatedCycles(c *Cube) error {
	for _, m := range c.Measures() {
		if m.Kind != Calculated {
			continue
		}
		visited := map[string]bool{fmt.Sprintf("%s.%s", c.Name, m.Name): true}
		if err := r.walkCalculatedDeps(c, m, visited); err != nil {
			return err
		}
	}
	return nil
}

func (r *Registry) walkCalculatedDeps(owner *Cube, m *Measure, visited map[string]bool) error {
	for _, dep := range m.Dependencies {
		depCube, depMeasure := splitRef(owner.Name, dep)

		target := owner
		if depCube != owner.Name {
			var ok bool
			target, ok = r.lookupDuringRegistration(depCube, owner)
			if !ok {
				return &errs.CubeDefinitionError{Cube: owner.Name, Measure: m.Name, Reason: fmt.Sprintf("unknown cube reference %q in calculated measure template", depCube)}
			}
		}

		dm, ok := target.Measure(depMeasure)
		if !ok {
			return &errs.CubeDefinitionError{Cube: owner.Name, Measure: m.Name, Reason: fmt.Sprintf("unknown measure reference %q in calculated measure template", dep)}
		}

		if dm.Kind != Calculated {
			continue
		}
		if visited[dep] {
			return &errs.CubeDefinitionError{Cube: owner.Name, Measure: m.Name, Reason: fmt.Sprintf("cyclic calculated measure reference through %q", dep)}
		}
		visited[dep] = true
		if err := r.walkCalculatedDeps(target, dm, visited); err != nil {
			return err
		}
	}
	return nil
}

// lookupDuringRegistration resolves a cross-cube reference against
// already-registered cubes, plus the cube currently being registered
// (which is not yet in r.cubes).
func (r *Registry) lookupDuringRegistration(name string, registering *Cube) (*Cube, bool) {
	if name == registering.Name {
		return registering, true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cubes[name]
	return c, ok
}

// splitRef splits a possibly-bare measure ref against a default cube.
func splitRef(defaultCube, ref string) (cubeName, measure string) {
	for i := 0; i < len(ref); i++ {
		if ref[i] == '.' {
			return ref[:i], ref[i+1:]
		}
	}
	return defaultCube, ref
}

// Get looks up a registered cube by name.
func (r *Registry) Get(name string) (*Cube, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.cubes[name]
	return c, ok
}

// Remove deletes a cube from the registry, invalidating memoized
// metadata.
func (r *Registry) Remove(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.cubes[name]; !ok {
		return
	}
	delete(r.cubes, name)
	for i, n := range r.seq {
		if n == name {
			r.seq = append(r.seq[:i], r.seq[i+1:]...)
			break
		}
	}
	r.invalidateMetadata()
}

// Clear removes every registered cube.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.cubes = make(map[string]*Cube)
	r.seq = nil
	r.invalidateMetadata()
}

// All returns every registered cube in registration order.
func (r *Registry) All() []*Cube {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*Cube, len(r.seq))
	for i, name := range r.seq {
		out[i] = r.cubes[name]
	}
	return out
}

// Names returns every registered cube name, sorted, for deterministic
// iteration by callers that don't care about registration order (e.g.
// cachekey generation).
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.cubes))
	for name := range r.cubes {
		out = append(out, name)
	}
	sort.Strings(out)
	return out
}

// invalidateMetadata must be called with r.mu held for writing.
func (r *Registry) invalidateMetadata() {
	r.metaMu.Lock()
	r.metaCache = nil
	r.metaBuiltAt = time.Time{}
	r.metaMu.Unlock()
}
