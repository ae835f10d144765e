package resources

import (
	"context"
	"fmt"
	"log"
	"os"

	"openf1companion/pkg/circuit"
	"openf1companion/pkg/layout"
)

const (
	ResourcesDir = "./resources"
)

func init() {
	if _, err := os.Stat(ResourcesDir); os.IsNotExist(err) {
		os.Mkdir(ResourcesDir, 0755)
	}
}

type builder func(ctx context.Context, id string, filePath string) error

// Resource is a rendered file under ResourcesDir, keyed by the circuit
// it was built from. Renders are cached on disk; an existing file is
// reused across restarts.
type Resource struct {
	id      string
	builder builder
	prefix  string
	suffix  string
	_type   string
}

// BuildCircuitSVG fetches the circuit geometry and renders it to
// resources/circuit_<key>_<year>.svg.
func BuildCircuitSVG(ctx context.Context, provider *circuit.Provider, circuitKey, year int) (Resource, error) {
	r := Resource{
		builder: svgBuilderForCircuit(provider, circuitKey, year),
		prefix:  "circuit_",
		suffix:  ".svg",
		_type:   "svg-circuit",
	}

	return r.build(ctx, fmt.Sprintf("%d_%d", circuitKey, year))
}

func (r Resource) buildFilePath(id string) string {
	return fmt.Sprintf("%s/%s%s%s", ResourcesDir, r.prefix, id, r.suffix)
}

func (r Resource) IsZero() bool {
	return r.id == ""
}

func (r Resource) String() string {
	return fmt.Sprintf("ID: %s, Type: %s", r.id, r._type)
}

func (r Resource) FilePath() string {
	return r.buildFilePath(r.id)
}

func (r Resource) FileName() string {
	return fmt.Sprintf("%s%s%s", r.prefix, r.id, r.suffix)
}

func (r *Resource) build(ctx context.Context, id string) (Resource, error) {
	if id == "" {
		return *r, fmt.Errorf("id cannot be empty")
	}
	filePath := r.buildFilePath(id)
	if _, err := os.Stat(filePath); err == nil {
		log.Printf("resource for %q already exists\n", id)
	} else if os.IsNotExist(err) {
		if err := r.builder(ctx, id, filePath); err != nil {
			log.Printf("error building resource: %s\n", err)
			return *r, err
		}
	} else {
		return *r, err
	}

	r.id = id
	return *r, nil
}

func svgBuilderForCircuit(provider *circuit.Provider, circuitKey, year int) builder {
	return func(ctx context.Context, id, filePath string) error {
		l, err := provider.Layout(ctx, circuitKey, year)
		if err != nil {
			return err
		}
		return layout.BuildCircuitSVG(filePath, l)
	}
}
