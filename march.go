package cascade

import "sync"

// March is a named set of back-end-specific attributes applied to every
// elaborated module (§6 "Marches (targets)"): "a march is a file at
// share/march/<name>.v that supplies back-end-specific declarations for
// the six standard modules; retarget(name) replaces attribute sets on
// every elaborated module with the corresponding march's attributes."
// Cascade's core never reads a `.v` march file itself — that parsing is
// the external front-end's job (§1) — so March here is just the resolved
// attribute set a front-end hands the runtime via RegisterMarch.
type March struct {
	Name       string
	Attributes map[string]string
}

// DefaultMarchName is installed for every Runtime at construction and
// names the software-interpreter back-end this package actually compiles
// against; it carries no back-end attributes of its own.
const DefaultMarchName = "sw"

func defaultMarch() March {
	return March{Name: DefaultMarchName, Attributes: map[string]string{}}
}

// marchRegistry resolves a march name to its attribute set. A hosting
// front-end that reads share/march/<name>.v files populates additional
// entries via RegisterMarch before calling Runtime.Retarget; native-code
// and FPGA march files themselves are an external collaborator's concern
// (§1), the registry only needs their resolved attribute maps.
type marchRegistry struct {
	mu      sync.RWMutex
	marches map[string]March
}

var globalMarches = &marchRegistry{marches: map[string]March{
	DefaultMarchName: defaultMarch(),
}}

// RegisterMarch makes m available to every Runtime's Retarget call by
// name. Registering a march under a name that already exists overwrites
// it — matching the source behavior of simply re-reading an updated
// share/march/<name>.v file.
func RegisterMarch(m March) {
	globalMarches.mu.Lock()
	defer globalMarches.mu.Unlock()
	attrs := make(map[string]string, len(m.Attributes))
	for k, v := range m.Attributes {
		attrs[k] = v
	}
	globalMarches.marches[m.Name] = March{Name: m.Name, Attributes: attrs}
}

// LookupMarch returns the march registered under name, if any.
func LookupMarch(name string) (March, bool) {
	globalMarches.mu.RLock()
	defer globalMarches.mu.RUnlock()
	m, ok := globalMarches.marches[name]
	return m, ok
}
