package crate

import (
	"fmt"
	"go/token"

	"gopkg.in/yaml.v3"
)

// document is the YAML description of a crate. Every type, bound and
// parameter list is written as a snippet of surface syntax:
//
//	types:
//	  - struct: Pair
//	    generics: "<A, B>"
//	    fields: {a: A, b: B}
//	drops:
//	  - generics: "<A: Copy, B>"
//	    for: "Pair<A, B>"
//	fns:
//	  - name: main
//	    locals: ["'short"]
//	    drops: ["Pair<&'short u8, u8>"]
type document struct {
	Traits []traitDecl `yaml:"traits"`
	Impls  []implDecl  `yaml:"impls"`
	Types  []typeDecl  `yaml:"types"`
	Drops  []dropDecl  `yaml:"drops"`
	Fns    []fnDecl    `yaml:"fns"`
}

type traitDecl struct {
	Name     snippet   `yaml:"name"`
	Generics snippet   `yaml:"generics"`
	Assoc    []snippet `yaml:"assoc"`
}

type implDecl struct {
	Generics snippet            `yaml:"generics"`
	Trait    snippet            `yaml:"trait"`
	For      snippet            `yaml:"for"`
	Where    snippet            `yaml:"where"`
	Assoc    map[string]snippet `yaml:"assoc"`
}

type typeDecl struct {
	Struct   snippet   `yaml:"struct"`
	Enum     snippet   `yaml:"enum"`
	Generics snippet   `yaml:"generics"`
	Where    snippet   `yaml:"where"`
	Fields   fieldList `yaml:"fields"`
	Variants variants  `yaml:"variants"`
}

type dropDecl struct {
	Generics snippet `yaml:"generics"`
	For      snippet `yaml:"for"`
	Where    snippet `yaml:"where"`
}

type fnDecl struct {
	Name     snippet   `yaml:"name"`
	Generics snippet   `yaml:"generics"`
	Where    snippet   `yaml:"where"`
	Locals   []snippet `yaml:"locals"`
	Drops    []snippet `yaml:"drops"`
}

// snippet is a scalar along with where it was written
type snippet struct {
	Text   string
	line   int
	column int
	quoted bool
}

func (s *snippet) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.ScalarNode {
		return fmt.Errorf("line %d: expected a string", n.Line)
	}
	s.Text = n.Value
	s.line, s.column = n.Line, n.Column
	s.quoted = n.Style&(yaml.DoubleQuotedStyle|yaml.SingleQuotedStyle) != 0
	return nil
}

func (s snippet) IsZero() bool {
	return s.line == 0
}

// base is the position of the first byte of the text of s in file
func (s snippet) base(file *token.File) token.Pos {
	if s.IsZero() || s.line > file.LineCount() {
		return token.NoPos
	}
	pos := file.LineStart(s.line) + token.Pos(s.column-1)
	if s.quoted {
		pos++
	}
	return pos
}

type field struct {
	name snippet
	ty   snippet
}

// fieldList is either a mapping of field names to types, or a sequence of
// types for tuple-like structs and variants
type fieldList []field

func (l *fieldList) UnmarshalYAML(n *yaml.Node) error {
	switch n.Kind {
	case yaml.MappingNode:
		for i := 0; i+1 < len(n.Content); i += 2 {
			var f field
			if err := n.Content[i].Decode(&f.name); err != nil {
				return err
			}
			if err := n.Content[i+1].Decode(&f.ty); err != nil {
				return err
			}
			*l = append(*l, f)
		}
	case yaml.SequenceNode:
		for i, elem := range n.Content {
			f := field{name: snippet{Text: fmt.Sprint(i), line: elem.Line, column: elem.Column}}
			if err := elem.Decode(&f.ty); err != nil {
				return err
			}
			*l = append(*l, f)
		}
	default:
		return fmt.Errorf("line %d: expected fields as a mapping or a sequence", n.Line)
	}
	return nil
}

type variant struct {
	name   snippet
	fields fieldList
}

// variants keeps the order the variants of an enum were written in
type variants []variant

func (vs *variants) UnmarshalYAML(n *yaml.Node) error {
	if n.Kind != yaml.MappingNode {
		return fmt.Errorf("line %d: expected variants as a mapping", n.Line)
	}
	for i := 0; i+1 < len(n.Content); i += 2 {
		var v variant
		if err := n.Content[i].Decode(&v.name); err != nil {
			return err
		}
		value := n.Content[i+1]
		isEmpty := value.Kind == yaml.ScalarNode && (value.Tag == "!!null" || value.Value == "")
		if !isEmpty {
			if err := value.Decode(&v.fields); err != nil {
				return err
			}
		}
		*vs = append(*vs, v)
	}
	return nil
}
