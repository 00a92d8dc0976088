package actparser

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/uhaki/legal-retrieval/internal/core/domain"
)

// DecodeAct reads an act in either the canonical ordered form produced by
// EncodeAct or the legacy map form
// {"Act": name, "Parts": {part: {number: {"Heading", "Content", ...}}}}.
// The legacy form is read token by token so part and section order follow the
// file.
func DecodeAct(r io.Reader) (*domain.Act, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("read act json: %w", err)
	}

	var probe map[string]json.RawMessage
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode act", err)
	}
	if raw, ok := probe["Parts"]; ok && bytes.HasPrefix(bytes.TrimSpace(raw), []byte("{")) {
		return decodeLegacy(json.NewDecoder(bytes.NewReader(data)))
	}

	var act domain.Act
	if err := json.Unmarshal(data, &act); err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode act", err)
	}
	return &act, nil
}

func EncodeAct(w io.Writer, act *domain.Act) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(act)
}

func decodeLegacy(dec *json.Decoder) (*domain.Act, error) {
	dec.UseNumber()
	act := &domain.Act{}
	err := readObject(dec, func(key string) error {
		switch key {
		case "Act":
			return dec.Decode(&act.Name)
		case "Preamble":
			node, err := readNode(dec, "")
			if err != nil {
				return err
			}
			act.Preamble = strings.Join(node.Texts(), " ")
			return nil
		case "Parts":
			return readObject(dec, func(partName string) error {
				part := domain.Part{Name: partName}
				err := readObject(dec, func(number string) error {
					sec, err := readSection(dec, number)
					if err != nil {
						return err
					}
					part.Sections = append(part.Sections, sec)
					return nil
				})
				if err != nil {
					return err
				}
				act.Parts = append(act.Parts, part)
				return nil
			})
		default:
			node, err := readNode(dec, key)
			if err != nil {
				return err
			}
			if !node.IsEmpty() {
				act.Schedules = append(act.Schedules, domain.Schedule{Title: key, Content: node})
			}
			return nil
		}
	})
	if err != nil {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode legacy act", err)
	}
	if strings.TrimSpace(act.Name) == "" {
		return nil, domain.WrapError(domain.ErrInvalidInput, "decode legacy act", errors.New("missing Act name"))
	}
	return act, nil
}

func readSection(dec *json.Decoder, number string) (domain.Section, error) {
	sec := domain.Section{Number: number}
	var children []domain.Node
	err := readObject(dec, func(key string) error {
		switch {
		case strings.EqualFold(key, "Heading"):
			return dec.Decode(&sec.Heading)
		case strings.EqualFold(key, "Definitions"):
			return dec.Decode(&sec.Definitions)
		case strings.EqualFold(key, "Content"):
			node, err := readNode(dec, "")
			if err != nil {
				return err
			}
			children = append(children, node)
			return nil
		default:
			node, err := readNode(dec, key)
			if err != nil {
				return err
			}
			children = append(children, node)
			return nil
		}
	})
	if err != nil {
		return sec, err
	}
	if len(children) == 1 && children[0].Kind == domain.NodeText {
		sec.Content = children[0]
	} else {
		sec.Content = domain.ContainerNode("", children...)
	}
	return sec, nil
}

// readNode converts an arbitrary JSON value into a Node tree. Objects and
// arrays become containers labelled by their key; a nested "Heading" string
// extends the label.
func readNode(dec *json.Decoder, label string) (domain.Node, error) {
	tok, err := dec.Token()
	if err != nil {
		return domain.Node{}, err
	}
	switch v := tok.(type) {
	case json.Delim:
		switch v {
		case '{':
			node := domain.ContainerNode(label)
			heading := ""
			for dec.More() {
				keyTok, err := dec.Token()
				if err != nil {
					return domain.Node{}, err
				}
				key, _ := keyTok.(string)
				if strings.EqualFold(key, "Heading") {
					var h string
					if err := dec.Decode(&h); err != nil {
						return domain.Node{}, err
					}
					heading = strings.TrimSpace(h)
					continue
				}
				childLabel := key
				if strings.EqualFold(key, "Content") {
					childLabel = ""
				}
				child, err := readNode(dec, childLabel)
				if err != nil {
					return domain.Node{}, err
				}
				node.Children = append(node.Children, child)
			}
			if _, err := dec.Token(); err != nil {
				return domain.Node{}, err
			}
			if heading != "" {
				node.Label = strings.TrimSpace(label + " " + heading)
			}
			return node, nil
		case '[':
			node := domain.ContainerNode(label)
			for dec.More() {
				child, err := readNode(dec, "")
				if err != nil {
					return domain.Node{}, err
				}
				node.Children = append(node.Children, child)
			}
			if _, err := dec.Token(); err != nil {
				return domain.Node{}, err
			}
			return node, nil
		default:
			return domain.Node{}, fmt.Errorf("unexpected delimiter %v", v)
		}
	case string:
		return labelled(label, v), nil
	case json.Number:
		return labelled(label, v.String()), nil
	case bool:
		return labelled(label, fmt.Sprintf("%t", v)), nil
	case nil:
		return domain.TextNode(""), nil
	default:
		return domain.Node{}, fmt.Errorf("unexpected token %T", tok)
	}
}

func labelled(label, text string) domain.Node {
	if label == "" {
		return domain.TextNode(text)
	}
	return domain.ContainerNode(label, domain.TextNode(text))
}

func readObject(dec *json.Decoder, field func(key string) error) error {
	tok, err := dec.Token()
	if err != nil {
		return err
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return fmt.Errorf("expected object, got %v", tok)
	}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return err
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("expected object key, got %v", keyTok)
		}
		if err := field(key); err != nil {
			return fmt.Errorf("%s: %w", key, err)
		}
	}
	_, err = dec.Token()
	return err
}
