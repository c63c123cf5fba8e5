package model

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"bitbucket.org/Davydov/gonuts/dist"
	"bitbucket.org/Davydov/gonuts/mcmc"
)

// Settings are the sampler settings stored in a model file. Zero
// values mean defaults.
type Settings struct {
	Method    string  `yaml:"method" json:"method,omitempty"`
	Samples   int     `yaml:"samples" json:"samples,omitempty"`
	Step      float64 `yaml:"step" json:"step,omitempty"`
	MaxHeight int     `yaml:"maxHeight" json:"maxHeight,omitempty"`
	Seed      int64   `yaml:"seed" json:"seed,omitempty"`
}

// Description is a model read from a file.
type Description struct {
	Network   *Network
	Monitored []mcmc.VariableID
	Sampler   Settings
}

// ref is either a number or a name of another vertex.
type ref struct {
	name  string
	value float64
}

func (r *ref) UnmarshalYAML(node *yaml.Node) error {
	if node.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a number or a vertex name", node.Line)
	}
	switch node.Tag {
	case "!!int", "!!float":
		return node.Decode(&r.value)
	}
	r.name = node.Value
	return nil
}

type vertexSpec struct {
	Name     string   `yaml:"name"`
	Dist     string   `yaml:"dist"`
	Params   []ref    `yaml:"params"`
	Op       string   `yaml:"op"`
	Args     []ref    `yaml:"args"`
	C        float64  `yaml:"c"`
	Value    *float64 `yaml:"value"`
	Observed *float64 `yaml:"observed"`
}

type factorSpec struct {
	Type     string    `yaml:"type"`
	Vertices []string  `yaml:"vertices"`
	Mean     []float64 `yaml:"mean"`
	Cov      []float64 `yaml:"cov"`
}

type fileSpec struct {
	Sampler  Settings     `yaml:"sampler"`
	Vertices []vertexSpec `yaml:"vertices"`
	Factors  []factorSpec `yaml:"factors"`
	Monitor  []string     `yaml:"monitor"`
}

// loader resolves vertex references.
type loader struct {
	specs    map[string]*vertexSpec
	vertices map[string]*Vertex
	path     map[string]bool
}

// LoadFile reads a model description from a YAML file.
func LoadFile(fn string) (*Description, error) {
	f, err := os.Open(fn)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f)
}

// Load reads a model description in YAML format.
func Load(r io.Reader) (*Description, error) {
	var fs fileSpec
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(&fs); err != nil {
		return nil, fmt.Errorf("parsing model: %w", err)
	}
	if len(fs.Vertices) == 0 {
		return nil, errors.New("model has no vertices")
	}

	ld := &loader{
		specs:    make(map[string]*vertexSpec, len(fs.Vertices)),
		vertices: make(map[string]*Vertex, len(fs.Vertices)),
		path:     make(map[string]bool),
	}
	for i := range fs.Vertices {
		vs := &fs.Vertices[i]
		if vs.Name == "" {
			return nil, fmt.Errorf("vertex %d has no name", i+1)
		}
		if _, ok := ld.specs[vs.Name]; ok {
			return nil, fmt.Errorf("duplicate vertex name %s", vs.Name)
		}
		ld.specs[vs.Name] = vs
	}

	all := make([]*Vertex, 0, len(fs.Vertices))
	for _, vs := range fs.Vertices {
		v, err := ld.resolve(vs.Name)
		if err != nil {
			return nil, err
		}
		all = append(all, v)
	}

	n, err := NewNetwork(all...)
	if err != nil {
		return nil, err
	}

	for _, f := range fs.Factors {
		if err := ld.addFactor(n, f); err != nil {
			return nil, err
		}
	}

	d := &Description{Network: n, Sampler: fs.Sampler}
	if len(fs.Monitor) == 0 {
		d.Monitored = n.Latents()
	}
	for _, name := range fs.Monitor {
		v := n.Vertex(name)
		if v == nil {
			return nil, fmt.Errorf("unknown monitored vertex %s", name)
		}
		d.Monitored = append(d.Monitored, v.ID())
	}
	log.Infof("Loaded model with %d vertices (%d latent), %d factors",
		len(n.Vertices()), len(n.Latents()), len(fs.Factors))
	return d, nil
}

// arg returns the vertex a reference points to.
func (ld *loader) arg(r ref) (*Vertex, error) {
	if r.name == "" {
		return Const(r.value), nil
	}
	return ld.resolve(r.name)
}

func (ld *loader) args(refs []ref) ([]*Vertex, error) {
	vs := make([]*Vertex, len(refs))
	for i, r := range refs {
		v, err := ld.arg(r)
		if err != nil {
			return nil, err
		}
		vs[i] = v
	}
	return vs, nil
}

// resolve creates the named vertex and all of its parents.
func (ld *loader) resolve(name string) (*Vertex, error) {
	if v, ok := ld.vertices[name]; ok {
		return v, nil
	}
	vs, ok := ld.specs[name]
	if !ok {
		return nil, fmt.Errorf("unknown vertex %s", name)
	}
	if ld.path[name] {
		return nil, fmt.Errorf("cycle at vertex %s", name)
	}
	ld.path[name] = true
	defer delete(ld.path, name)

	v, err := ld.build(vs)
	if err != nil {
		return nil, fmt.Errorf("vertex %s: %w", name, err)
	}
	v.Named(name)
	ld.vertices[name] = v
	return v, nil
}

func (ld *loader) build(vs *vertexSpec) (*Vertex, error) {
	switch {
	case vs.Dist != "" && vs.Op != "":
		return nil, errors.New("both dist and op are set")
	case vs.Dist != "":
		d, err := dist.ByName(vs.Dist)
		if err != nil {
			return nil, err
		}
		if len(vs.Params) != d.NParams() {
			return nil, fmt.Errorf("%s requires %d parameters, got %d", d.Name(), d.NParams(), len(vs.Params))
		}
		params, err := ld.args(vs.Params)
		if err != nil {
			return nil, err
		}
		v := Random(d, params...)
		if vs.Value != nil {
			v.SetValue(*vs.Value)
		}
		if vs.Observed != nil {
			v.Observe(*vs.Observed)
		}
		return v, nil
	case vs.Op != "":
		if vs.Value != nil || vs.Observed != nil {
			return nil, errors.New("deterministic vertex cannot have a value")
		}
		args, err := ld.args(vs.Args)
		if err != nil {
			return nil, err
		}
		return operation(vs.Op, vs.C, args)
	}
	if vs.Value == nil {
		return nil, errors.New("constant without a value")
	}
	return Const(*vs.Value), nil
}

// operation creates a deterministic vertex given the operation name.
func operation(name string, c float64, args []*Vertex) (*Vertex, error) {
	nargs := func(n int) error {
		if len(args) != n {
			return fmt.Errorf("%s requires %d arguments, got %d", name, n, len(args))
		}
		return nil
	}
	switch strings.ToLower(name) {
	case "add":
		if err := nargs(2); err != nil {
			return nil, err
		}
		return Add(args[0], args[1]), nil
	case "sum":
		if len(args) == 0 {
			return nil, errors.New("sum requires arguments")
		}
		return Sum(args...), nil
	case "multiply":
		if err := nargs(2); err != nil {
			return nil, err
		}
		return Multiply(args[0], args[1]), nil
	case "scale":
		if err := nargs(1); err != nil {
			return nil, err
		}
		return Scale(args[0], c), nil
	case "exp":
		if err := nargs(1); err != nil {
			return nil, err
		}
		return Exp(args[0]), nil
	case "log":
		if err := nargs(1); err != nil {
			return nil, err
		}
		return Log(args[0]), nil
	}
	return nil, fmt.Errorf("unknown operation: %s", name)
}

func (ld *loader) addFactor(n *Network, fs factorSpec) error {
	if strings.ToLower(fs.Type) != "mvgaussian" {
		return fmt.Errorf("unknown factor type: %s", fs.Type)
	}
	vs := make([]*Vertex, len(fs.Vertices))
	for i, name := range fs.Vertices {
		if vs[i] = n.Vertex(name); vs[i] == nil {
			return fmt.Errorf("unknown factor vertex %s", name)
		}
	}
	f, err := NewMvGaussian(vs, fs.Mean, fs.Cov)
	if err != nil {
		return err
	}
	return n.AddFactor(f)
}
