package schema

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// Document is the YAML representation of a set of record declarations
type Document struct {
	Records []RecordDecl `yaml:"records"`
}

// RecordDecl declares one record type
type RecordDecl struct {
	Name       string      `yaml:"name"`
	Table      string      `yaml:"table"`
	PrimaryKey string      `yaml:"primary_key"`
	Fields     []FieldDecl `yaml:"fields"`
}

// FieldDecl declares one field of a record
type FieldDecl struct {
	Name        string       `yaml:"name"`
	Type        string       `yaml:"type"`
	Label       string       `yaml:"label"`
	Required    bool         `yaml:"required"`
	Nullable    bool         `yaml:"null"`
	Hidden      bool         `yaml:"hidden"`
	Readonly    bool         `yaml:"readonly"`
	Default     interface{}  `yaml:"default"`
	MinLength   int          `yaml:"min_length"`
	MaxLength   *int         `yaml:"max_length"`
	Minimum     *float64     `yaml:"minimum"`
	Maximum     *float64     `yaml:"maximum"`
	Choices     []ChoiceDecl `yaml:"choices"`
	Rows        int          `yaml:"rows"`
	Cols        int          `yaml:"cols"`
	Placeholder string       `yaml:"placeholder"`
	Prefix      string       `yaml:"prefix"`
	Suffix      string       `yaml:"suffix"`
	Record      string       `yaml:"record"`
	ForeignKey  string       `yaml:"foreign_key"`
}

// ChoiceDecl declares one allowed value
type ChoiceDecl struct {
	Value interface{} `yaml:"value"`
	Label string      `yaml:"label"`
}

// LoadFile reads a schema document from path
func LoadFile(path string) (*Registry, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open schema file: %w", err)
	}
	defer f.Close()

	return Load(f)
}

// Load decodes a schema document and builds every record it declares.
// Nested fields may reference records declared later in the document.
func Load(r io.Reader) (*Registry, error) {
	var doc Document
	if err := yaml.NewDecoder(r).Decode(&doc); err != nil {
		if err == io.EOF {
			return NewRegistry(), nil
		}
		return nil, fmt.Errorf("failed to decode schema: %w", err)
	}
	return doc.Build()
}

// Build builds the declared records into a registry, in document order
func (d *Document) Build() (*Registry, error) {
	decls := make(map[string]*RecordDecl, len(d.Records))
	for i := range d.Records {
		decl := &d.Records[i]
		if decl.Name == "" {
			return nil, fmt.Errorf("record %d has no name", i)
		}
		if _, dup := decls[decl.Name]; dup {
			return nil, fmt.Errorf("record %s is declared more than once", decl.Name)
		}
		decls[decl.Name] = decl
	}

	l := &linker{
		decls:    decls,
		built:    make(map[string]*RecordSchema, len(decls)),
		visiting: make(map[string]bool),
	}
	registry := NewRegistry()
	for _, decl := range d.Records {
		rs, err := l.build(decl.Name)
		if err != nil {
			return nil, err
		}
		if err := registry.Register(rs); err != nil {
			return nil, err
		}
	}
	return registry, nil
}

type linker struct {
	decls    map[string]*RecordDecl
	built    map[string]*RecordSchema
	visiting map[string]bool
}

func (l *linker) build(name string) (*RecordSchema, error) {
	if rs, ok := l.built[name]; ok {
		return rs, nil
	}
	decl, ok := l.decls[name]
	if !ok {
		return nil, fmt.Errorf("unknown record %s", name)
	}
	if l.visiting[name] {
		return nil, fmt.Errorf("circular record reference through %s", name)
	}
	l.visiting[name] = true
	defer delete(l.visiting, name)

	b := NewBuilder(decl.Name)
	if decl.Table != "" {
		b.Table(decl.Table)
	}
	if decl.PrimaryKey != "" {
		b.PrimaryKey(decl.PrimaryKey)
	}

	for _, fd := range decl.Fields {
		kind, err := ParseFieldKind(fd.Type)
		if err != nil {
			return nil, fmt.Errorf("record %s field %s: %w", decl.Name, fd.Name, err)
		}
		opts := fd.options()
		switch kind {
		case KindRecord, KindCollection:
			if fd.Record == "" {
				return nil, fmt.Errorf("record %s field %s: missing target record", decl.Name, fd.Name)
			}
			target, err := l.build(fd.Record)
			if err != nil {
				return nil, fmt.Errorf("record %s field %s: %w", decl.Name, fd.Name, err)
			}
			if kind == KindRecord {
				b.Record(fd.Name, target, opts...)
			} else {
				b.Collection(fd.Name, target, opts...)
			}
		default:
			b.Field(fd.Name, kind, opts...)
		}
	}

	rs, err := b.Build()
	if err != nil {
		return nil, err
	}
	l.built[name] = rs
	return rs, nil
}

func (fd FieldDecl) options() []Option {
	var opts []Option
	if fd.Label != "" {
		opts = append(opts, Label(fd.Label))
	}
	if fd.Required {
		opts = append(opts, Required())
	}
	if fd.Nullable {
		opts = append(opts, Nullable())
	}
	if fd.Hidden {
		opts = append(opts, Hidden())
	}
	if fd.Readonly {
		opts = append(opts, Readonly())
	}
	if fd.Default != nil {
		opts = append(opts, Default(fd.Default))
	}
	if fd.MinLength != 0 {
		opts = append(opts, MinLength(fd.MinLength))
	}
	if fd.MaxLength != nil {
		opts = append(opts, MaxLength(*fd.MaxLength))
	}
	if fd.Minimum != nil {
		opts = append(opts, Min(*fd.Minimum))
	}
	if fd.Maximum != nil {
		opts = append(opts, Max(*fd.Maximum))
	}
	if len(fd.Choices) > 0 {
		choices := make([]Choice, len(fd.Choices))
		for i, c := range fd.Choices {
			label := c.Label
			if label == "" {
				label = fmt.Sprint(c.Value)
			}
			choices[i] = Choice{Value: c.Value, Label: label}
		}
		opts = append(opts, Choices(choices...))
	}
	if fd.Rows != 0 {
		opts = append(opts, Rows(fd.Rows))
	}
	if fd.Cols != 0 {
		opts = append(opts, Cols(fd.Cols))
	}
	if fd.Placeholder != "" {
		opts = append(opts, Placeholder(fd.Placeholder))
	}
	if fd.Prefix != "" {
		opts = append(opts, Prefix(fd.Prefix))
	}
	if fd.Suffix != "" {
		opts = append(opts, Suffix(fd.Suffix))
	}
	if fd.ForeignKey != "" {
		opts = append(opts, ForeignKey(fd.ForeignKey))
	}
	return opts
}
