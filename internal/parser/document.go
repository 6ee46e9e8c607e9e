package parser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"gopkg.in/yaml.v3"
)

// Encoding names the syntax a Document was decoded from.
type Encoding string

const (
	EncodingJSON Encoding = "json"
	EncodingYAML Encoding = "yaml"
)

// Dialect is the API description family a Document declares.
type Dialect string

const (
	DialectUnknown  Dialect = ""
	DialectOpenAPI3 Dialect = "openapi3"
	DialectSwagger2 Dialect = "swagger2"
)

// Document is an API description held as an ordered node tree. Both the
// strict (JSON) and permissive (YAML) decoders produce the same tree, so
// consumers can rely on the document's own key order.
type Document struct {
	Source   string
	Encoding Encoding
	root     *yaml.Node
}

// Parse decodes content first as JSON and then, on failure, as YAML.
// The root must be a mapping.
func Parse(source string, data []byte) (*Document, error) {
	root, strictErr := decodeJSON(data)
	if strictErr == nil {
		if root.Kind != yaml.MappingNode {
			strictErr = errors.New("document root is not an object")
		} else {
			return &Document{Source: source, Encoding: EncodingJSON, root: root}, nil
		}
	}

	root, laxErr := decodeYAML(data)
	if laxErr == nil {
		if root.Kind != yaml.MappingNode {
			laxErr = errors.New("document root is not a mapping")
		} else {
			return &Document{Source: source, Encoding: EncodingYAML, root: root}, nil
		}
	}

	return nil, &SpecParseError{Source: source, StrictErr: strictErr, LaxErr: laxErr}
}

// Root returns the top-level mapping node.
func (d *Document) Root() *yaml.Node {
	return d.root
}

// Lookup walks nested mapping keys and returns the node found, or nil.
func (d *Document) Lookup(keys ...string) *yaml.Node {
	node := d.root
	for _, key := range keys {
		node = mappingValue(node, key)
		if node == nil {
			return nil
		}
	}
	return node
}

// Dialect reports which API description family the document declares.
func (d *Document) Dialect() Dialect {
	if n := mappingValue(d.root, "openapi"); n != nil && strings.HasPrefix(n.Value, "3.") {
		return DialectOpenAPI3
	}
	if n := mappingValue(d.root, "swagger"); n != nil && strings.HasPrefix(n.Value, "2.") {
		return DialectSwagger2
	}
	return DialectUnknown
}

// Map returns the document as plain Go values. Key order is lost.
func (d *Document) Map() map[string]interface{} {
	m, _ := nodeValue(d.root).(map[string]interface{})
	return m
}

// JSON re-encodes the document as JSON.
func (d *Document) JSON() ([]byte, error) {
	return json.Marshal(d.Map())
}

// mappingValue returns the value node for key in a mapping node.
func mappingValue(node *yaml.Node, key string) *yaml.Node {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return resolveAlias(node.Content[i+1])
		}
	}
	return nil
}

// eachPair calls fn for every key/value of a mapping node, in order.
func eachPair(node *yaml.Node, fn func(key string, value *yaml.Node)) {
	node = resolveAlias(node)
	if node == nil || node.Kind != yaml.MappingNode {
		return
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		fn(node.Content[i].Value, resolveAlias(node.Content[i+1]))
	}
}

func resolveAlias(node *yaml.Node) *yaml.Node {
	for node != nil && node.Kind == yaml.AliasNode {
		node = node.Alias
	}
	return node
}

// nodeValue converts a node to plain Go values with string map keys, so
// that YAML documents with numeric keys (response codes) remain JSON
// encodable.
func nodeValue(node *yaml.Node) interface{} {
	node = resolveAlias(node)
	if node == nil {
		return nil
	}
	switch node.Kind {
	case yaml.DocumentNode:
		if len(node.Content) == 0 {
			return nil
		}
		return nodeValue(node.Content[0])
	case yaml.MappingNode:
		m := make(map[string]interface{}, len(node.Content)/2)
		for i := 0; i+1 < len(node.Content); i += 2 {
			m[node.Content[i].Value] = nodeValue(node.Content[i+1])
		}
		return m
	case yaml.SequenceNode:
		s := make([]interface{}, 0, len(node.Content))
		for _, item := range node.Content {
			s = append(s, nodeValue(item))
		}
		return s
	case yaml.ScalarNode:
		var v interface{}
		if err := node.Decode(&v); err != nil {
			return node.Value
		}
		return v
	default:
		return nil
	}
}

// mapValue converts a node to a string-keyed map, or an empty map when the
// node is absent or not a mapping.
func mapValue(node *yaml.Node) map[string]interface{} {
	if m, ok := nodeValue(node).(map[string]interface{}); ok {
		return m
	}
	return map[string]interface{}{}
}

func decodeYAML(data []byte) (*yaml.Node, error) {
	var doc yaml.Node
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, err
	}
	if doc.Kind != yaml.DocumentNode || len(doc.Content) == 0 {
		return nil, errors.New("empty document")
	}
	return doc.Content[0], nil
}

// decodeJSON builds an ordered node tree from strict JSON.
func decodeJSON(data []byte) (*yaml.Node, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	node, err := readJSONValue(dec)
	if err != nil {
		return nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, errors.New("unexpected data after top-level value")
	}
	return node, nil
}

func readJSONValue(dec *json.Decoder) (*yaml.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}

	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			node := &yaml.Node{Kind: yaml.MappingNode, Tag: "!!map"}
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return nil, err
				}
				key, ok := keyTok.(string)
				if !ok {
					return nil, fmt.Errorf("object key %v is not a string", keyTok)
				}
				value, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content,
					&yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: key},
					value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		case '[':
			node := &yaml.Node{Kind: yaml.SequenceNode, Tag: "!!seq"}
			for dec.More() {
				value, err := readJSONValue(dec)
				if err != nil {
					return nil, err
				}
				node.Content = append(node.Content, value)
			}
			if _, err := dec.Token(); err != nil {
				return nil, err
			}
			return node, nil
		default:
			return nil, fmt.Errorf("unexpected delimiter %q", v)
		}
	case string:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!str", Value: v}, nil
	case json.Number:
		tag := "!!float"
		if _, err := v.Int64(); err == nil {
			tag = "!!int"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: tag, Value: v.String()}, nil
	case bool:
		value := "false"
		if v {
			value = "true"
		}
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!bool", Value: value}, nil
	case nil:
		return &yaml.Node{Kind: yaml.ScalarNode, Tag: "!!null", Value: "null"}, nil
	default:
		return nil, fmt.Errorf("unexpected token %v", tok)
	}
}
