package domain

import "strings"

// Act is a named legal document. Parts and sections keep source order.
type Act struct {
	Name      string     `json:"act"`
	Preamble  string     `json:"preamble,omitempty"`
	Parts     []Part     `json:"parts"`
	Schedules []Schedule `json:"schedules,omitempty"`
}

type Part struct {
	Name     string    `json:"name"`
	Sections []Section `json:"sections"`
}

type Section struct {
	Number      string            `json:"number"`
	Heading     string            `json:"heading"`
	Content     Node              `json:"content"`
	Definitions map[string]string `json:"definitions,omitempty"`
}

type Schedule struct {
	Title   string `json:"title"`
	Content Node   `json:"content"`
}

type NodeKind string

const (
	NodeText      NodeKind = "text"
	NodeContainer NodeKind = "container"
)

// Node is either a text leaf or a labelled container of child nodes.
type Node struct {
	Kind     NodeKind `json:"kind"`
	Label    string   `json:"label,omitempty"`
	Text     string   `json:"text,omitempty"`
	Children []Node   `json:"children,omitempty"`
}

func TextNode(text string) Node {
	return Node{Kind: NodeText, Text: text}
}

func ContainerNode(label string, children ...Node) Node {
	return Node{Kind: NodeContainer, Label: label, Children: children}
}

// Texts returns every non-empty leaf text in depth-first order.
func (n Node) Texts() []string {
	var out []string
	n.walk(func(node Node, _ int) {
		if node.Kind != NodeText {
			return
		}
		if text := strings.TrimSpace(node.Text); text != "" {
			out = append(out, text)
		}
	}, 0)
	return out
}

// Flatten renders the tree as plain text: container labels become "Label:"
// lines, leaves follow in traversal order.
func (n Node) Flatten() string {
	var lines []string
	n.walk(func(node Node, _ int) {
		switch node.Kind {
		case NodeContainer:
			if label := strings.TrimSpace(node.Label); label != "" {
				lines = append(lines, label+":")
			}
		case NodeText:
			if text := strings.TrimSpace(node.Text); text != "" {
				lines = append(lines, text)
			}
		}
	}, 0)
	return strings.Join(lines, "\n")
}

func (n Node) IsEmpty() bool {
	return len(n.Texts()) == 0
}

func (n Node) walk(visit func(Node, int), depth int) {
	visit(n, depth)
	for _, child := range n.Children {
		child.walk(visit, depth+1)
	}
}
