package registry

import (
	"fmt"
	"sort"
	"sync"

	"github.com/mmrzaf/bondgen/internal/domain"
	"github.com/mmrzaf/bondgen/internal/generators"
)

// Factory builds a generator from its declarative spec. The registry is
// passed in so composite generators can build their parts.
type Factory func(r *GeneratorRegistry, spec domain.GeneratorSpec) (generators.Generator, error)

type GeneratorRegistry struct {
	mu        sync.RWMutex
	factories map[string]Factory
}

func NewGeneratorRegistry() *GeneratorRegistry {
	return &GeneratorRegistry{
		factories: make(map[string]Factory),
	}
}

func (r *GeneratorRegistry) Register(name string, f Factory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.factories[name] = f
}

func (r *GeneratorRegistry) Get(name string) (Factory, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	f, ok := r.factories[name]
	if !ok {
		return nil, fmt.Errorf("generator not found: %s", name)
	}
	return f, nil
}

func (r *GeneratorRegistry) List() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.factories))
	for name := range r.factories {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Build resolves spec.Type and applies the shared generator options.
func (r *GeneratorRegistry) Build(spec domain.GeneratorSpec) (generators.Generator, error) {
	if spec.Type == "" {
		return nil, fmt.Errorf("generator type is required")
	}
	f, err := r.Get(spec.Type)
	if err != nil {
		return nil, err
	}
	gen, err := f(r, spec)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", spec.Type, err)
	}
	return gen, nil
}

func DefaultGeneratorRegistry() *GeneratorRegistry {
	r := NewGeneratorRegistry()
	r.Register("const", buildConst)
	r.Register("int", buildInt)
	r.Register("uniform_int", buildInt)
	r.Register("uniform_float", buildFloat)
	r.Register("normal", buildNormal)
	r.Register("str", buildStr)
	r.Register("words", buildWords)
	r.Register("text", buildText)
	r.Register("choice", buildChoice)
	r.Register("date", buildDate)
	r.Register("concat", buildConcat)
	r.Register("uuid4", buildUUID4)
	for _, k := range []generators.FakerKind{
		generators.FakerName, generators.FakerFirstName, generators.FakerLastName,
		generators.FakerEmail, generators.FakerUsername, generators.FakerWord,
		generators.FakerSentence, generators.FakerURL, generators.FakerPhone,
		generators.FakerCity,
	} {
		r.Register("faker_"+string(k), fakerFactory(k))
	}
	return r
}
