package codec

import (
	"bytes"
	"errors"
	"fmt"
	"math"
	"strconv"

	"github.com/dshills/plugconf/internal/value"
	"gopkg.in/yaml.v3"
)

// YAML reads and writes YAML documents through the yaml.v3 node API, which
// keeps mapping keys in document order. Aliases are expanded and merge keys
// ("<<") fill in keys the mapping does not set itself.
type YAML struct{}

// Name implements Codec.
func (YAML) Name() string { return "yaml" }

// Decode implements Codec. Only the first document of a stream is read.
func (YAML) Decode(data []byte) (*value.Value, error) {
	if blank(data) {
		return value.EmptyMap(), nil
	}
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		pe := &ParseError{Format: "yaml", Message: err.Error(), Err: err}
		var te *yaml.TypeError
		if !errors.As(err, &te) {
			pe.Line = yamlErrorLine(err.Error())
		}
		return nil, pe
	}
	if doc.Kind == 0 {
		return value.EmptyMap(), nil
	}
	return fromNode(&doc, nil)
}

func fromNode(n *yaml.Node, pos value.Position) (*value.Value, error) {
	switch n.Kind {
	case yaml.DocumentNode:
		if len(n.Content) == 0 {
			return value.EmptyMap(), nil
		}
		return fromNode(n.Content[0], pos)
	case yaml.AliasNode:
		return fromNode(n.Alias, pos)
	case yaml.SequenceNode:
		items := make([]*value.Value, len(n.Content))
		for i, child := range n.Content {
			v, err := fromNode(child, pos.Index(i))
			if err != nil {
				return nil, err
			}
			items[i] = v
		}
		return value.ListOf(items...), nil
	case yaml.MappingNode:
		m := value.NewMap()
		var merged []*yaml.Node
		for i := 0; i+1 < len(n.Content); i += 2 {
			k, child := n.Content[i], n.Content[i+1]
			if k.ShortTag() == "!!merge" {
				merged = append(merged, child)
				continue
			}
			v, err := fromNode(child, pos.Key(k.Value))
			if err != nil {
				return nil, err
			}
			m.Set(k.Value, v)
		}
		for _, src := range merged {
			if err := mergeNode(m, src, pos); err != nil {
				return nil, err
			}
		}
		return value.FromMap(m), nil
	case yaml.ScalarNode:
		return fromScalar(n, pos)
	}
	return nil, fmt.Errorf("yaml: %s: unexpected node kind %d", describePos(pos), n.Kind)
}

// mergeNode copies keys from a merge source that m does not already hold.
func mergeNode(m *value.Map, src *yaml.Node, pos value.Position) error {
	if src.Kind == yaml.AliasNode {
		src = src.Alias
	}
	if src.Kind == yaml.SequenceNode {
		for _, item := range src.Content {
			if err := mergeNode(m, item, pos); err != nil {
				return err
			}
		}
		return nil
	}
	v, err := fromNode(src, pos)
	if err != nil {
		return err
	}
	sm, err := v.AsMap()
	if err != nil {
		return fmt.Errorf("yaml: %s: merge source must be a mapping", describePos(pos))
	}
	for k, item := range sm.All() {
		if !m.Has(k) {
			m.Set(k, item)
		}
	}
	return nil
}

func fromScalar(n *yaml.Node, pos value.Position) (*value.Value, error) {
	switch n.ShortTag() {
	case "!!null":
		return value.Null(), nil
	case "!!bool":
		var b bool
		if err := n.Decode(&b); err != nil {
			return nil, fmt.Errorf("yaml: %s: %w", describePos(pos), err)
		}
		return value.Bool(b), nil
	case "!!int":
		var i int64
		if err := n.Decode(&i); err == nil {
			return value.Int(i), nil
		}
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("yaml: %s: %w", describePos(pos), err)
		}
		return value.Float(f), nil
	case "!!float":
		var f float64
		if err := n.Decode(&f); err != nil {
			return nil, fmt.Errorf("yaml: %s: %w", describePos(pos), err)
		}
		return value.Float(f), nil
	}
	// Strings, timestamps and binary data keep their source text.
	return value.String(n.Value), nil
}

// Encode implements Codec.
func (YAML) Encode(v *value.Value) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(toNode(v)); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("yaml: %w", err)
	}
	return buf.Bytes(), nil
}

func toNode(v *value.Value) *yaml.Node {
	switch v.Kind() {
	case value.KindNull:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}
	case value.KindBool:
		b, _ := v.AsBool()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: strconv.FormatBool(b)}
	case value.KindInt:
		i, _ := v.AsInt()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!int", Value: strconv.FormatInt(i, 10)}
	case value.KindFloat:
		f, _ := v.AsFloat()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!float", Value: yamlFloat(f)}
	case value.KindString:
		s, _ := v.AsString()
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: s}
	case value.KindList:
		items, _ := v.AsList()
		n := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
		for _, item := range items {
			n.Content = append(n.Content, toNode(item))
		}
		return n
	default:
		m, _ := v.AsMap()
		n := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
		for k, item := range m.All() {
			n.Content = append(n.Content,
				&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: k},
				toNode(item))
		}
		return n
	}
}

func yamlFloat(f float64) string {
	switch {
	case math.IsNaN(f):
		return ".nan"
	case math.IsInf(f, 1):
		return ".inf"
	case math.IsInf(f, -1):
		return "-.inf"
	}
	return value.FormatFloat(f)
}

// yamlErrorLine extracts the line from messages like
// "yaml: line 3: mapping values are not allowed in this context".
func yamlErrorLine(msg string) int {
	var line int
	if _, err := fmt.Sscanf(msg, "yaml: line %d:", &line); err != nil {
		return 0
	}
	return line
}
