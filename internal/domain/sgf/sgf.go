package sgf

import (
	"fmt"
	"strconv"
	"strings"

	"mirror_go/internal/domain"
)

// GameTree is one SGF tree: a node sequence plus its variations.
type GameTree struct {
	Nodes    []Node      // main line of this tree
	Children []*GameTree // variations, the first one continues the main line
}

// Node is one SGF node, e.g. B[pd] or C[...].
type Node struct {
	Properties map[string][]string // a property may repeat, AB[aa][bb]
}

// SGF is the root of a parsed record.
type SGF struct {
	Root *GameTree
}

// DefaultBoardSize is used when the root node carries no SZ property.
const DefaultBoardSize = 19

// MainLine returns the nodes of the first variation from the root down.
func (s *SGF) MainLine() []Node {
	var nodes []Node
	for tree := s.Root; tree != nil; {
		nodes = append(nodes, tree.Nodes...)
		if len(tree.Children) == 0 {
			break
		}
		tree = tree.Children[0]
	}
	return nodes
}

// Summarize extracts the board size and the last move played on the main
// line. A pass is not a mirrorable move and is reported as no last move.
func Summarize(text string) (domain.RecordSummary, error) {
	record, err := Parse(text)
	if err != nil {
		return domain.RecordSummary{}, err
	}
	nodes := record.MainLine()
	if len(nodes) == 0 {
		return domain.RecordSummary{}, fmt.Errorf("sgf: empty game tree")
	}

	summary := domain.RecordSummary{BoardSize: DefaultBoardSize}
	if sz, ok := nodes[0].Properties["SZ"]; ok && len(sz) > 0 {
		size, err := strconv.Atoi(strings.TrimSpace(sz[0]))
		if err != nil {
			return domain.RecordSummary{}, fmt.Errorf("sgf: unsupported board size %q", sz[0])
		}
		summary.BoardSize = size
	}

	for i := len(nodes) - 1; i >= 0; i-- {
		point, ok := nodeMove(nodes[i])
		if !ok {
			continue
		}
		if !isPass(point, summary.BoardSize) {
			summary.LastMove = point
			summary.HasLastMove = true
		}
		break
	}
	return summary, nil
}

func nodeMove(n Node) (string, bool) {
	for _, key := range []string{"B", "W"} {
		if values, ok := n.Properties[key]; ok && len(values) > 0 {
			return values[0], true
		}
	}
	return "", false
}

func isPass(point string, size int) bool {
	return point == "" || (point == "tt" && size <= 19)
}

// Parse reads an SGF collection and returns its first game tree.
func Parse(text string) (*SGF, error) {
	p := &parser{src: text}
	p.skipSpace()
	if !p.consume('(') {
		return nil, p.errorf("expected '('")
	}
	tree, err := p.gameTree()
	if err != nil {
		return nil, err
	}
	return &SGF{Root: tree}, nil
}

type parser struct {
	src string
	pos int
}

func (p *parser) errorf(format string, args ...any) error {
	return fmt.Errorf("sgf: offset %d: %s", p.pos, fmt.Sprintf(format, args...))
}

func (p *parser) skipSpace() {
	for p.pos < len(p.src) && strings.IndexByte(" \t\r\n", p.src[p.pos]) >= 0 {
		p.pos++
	}
}

func (p *parser) peek() byte {
	if p.pos >= len(p.src) {
		return 0
	}
	return p.src[p.pos]
}

func (p *parser) consume(c byte) bool {
	if p.peek() == c {
		p.pos++
		return true
	}
	return false
}

// gameTree parses the body of a tree whose '(' was already consumed.
func (p *parser) gameTree() (*GameTree, error) {
	tree := &GameTree{}
	for {
		p.skipSpace()
		switch p.peek() {
		case ';':
			p.pos++
			node, err := p.node()
			if err != nil {
				return nil, err
			}
			tree.Nodes = append(tree.Nodes, node)
		case '(':
			p.pos++
			child, err := p.gameTree()
			if err != nil {
				return nil, err
			}
			tree.Children = append(tree.Children, child)
		case ')':
			p.pos++
			if len(tree.Nodes) == 0 {
				return nil, p.errorf("game tree without nodes")
			}
			return tree, nil
		case 0:
			return nil, p.errorf("unexpected end of record")
		default:
			return nil, p.errorf("unexpected %q", p.peek())
		}
	}
}

func (p *parser) node() (Node, error) {
	node := Node{Properties: map[string][]string{}}
	for {
		p.skipSpace()
		start := p.pos
		for c := p.peek(); c >= 'A' && c <= 'Z' || c >= 'a' && c <= 'z'; c = p.peek() {
			p.pos++
		}
		if p.pos == start {
			return node, nil
		}
		ident := p.src[start:p.pos]

		p.skipSpace()
		if p.peek() != '[' {
			return Node{}, p.errorf("property %s without value", ident)
		}
		for {
			p.skipSpace()
			if !p.consume('[') {
				break
			}
			value, err := p.value()
			if err != nil {
				return Node{}, err
			}
			node.Properties[ident] = append(node.Properties[ident], value)
		}
	}
}

// value reads up to the closing ']' honouring backslash escapes.
func (p *parser) value() (string, error) {
	var b strings.Builder
	for p.pos < len(p.src) {
		c := p.src[p.pos]
		p.pos++
		switch c {
		case '\\':
			if p.pos < len(p.src) {
				b.WriteByte(p.src[p.pos])
				p.pos++
			}
		case ']':
			return b.String(), nil
		default:
			b.WriteByte(c)
		}
	}
	return "", p.errorf("unterminated property value")
}
