package nodes

import (
	"sort"
	"sync"

	"github.com/ravi-parthasarathy/comfygraph/pkg/graph"
)

// Constructor creates a fresh, uninserted node.
type Constructor func() graph.Noder

// Registry maps class type tags to constructors of typed wrappers.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]Constructor
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{ctors: make(map[string]Constructor)}
}

// Register associates a constructor with a class type, replacing any earlier one.
func (r *Registry) Register(class string, c Constructor) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[class] = c
}

// Lookup returns the constructor for class.
func (r *Registry) Lookup(class string) (Constructor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[class]
	return c, ok
}

// New returns the typed wrapper for class, or a generic node when none is
// registered.
func (r *Registry) New(class string) graph.Noder {
	if c, ok := r.Lookup(class); ok {
		return c()
	}
	return graph.NewNode(class)
}

// Classes returns the registered class types, sorted.
func (r *Registry) Classes() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.ctors))
	for k := range r.ctors {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Builtin returns a registry holding every typed wrapper of this package.
func Builtin() *Registry {
	r := NewRegistry()
	r.Register(ClassKSampler, func() graph.Noder { return NewKSampler() })
	r.Register(ClassKSamplerAdvanced, func() graph.Noder { return NewKSamplerAdvanced() })
	r.Register(ClassCheckpointLoaderSimple, func() graph.Noder { return NewCheckpointLoaderSimple() })
	r.Register(ClassEmptyLatentImage, func() graph.Noder { return NewEmptyLatentImage() })
	r.Register(ClassCLIPTextEncode, func() graph.Noder { return NewCLIPTextEncode() })
	r.Register(ClassVAEDecode, func() graph.Noder { return NewVAEDecode() })
	r.Register(ClassSaveImageWebsocket, func() graph.Noder { return NewSaveImageWebsocket() })
	return r
}

var defaultRegistry = Builtin()

// Register adds a constructor to the package-level registry.
func Register(class string, c Constructor) { defaultRegistry.Register(class, c) }

// New creates a node of class from the package-level registry.
func New(class string) graph.Noder { return defaultRegistry.New(class) }

// Classes lists the classes of the package-level registry.
func Classes() []string { return defaultRegistry.Classes() }
