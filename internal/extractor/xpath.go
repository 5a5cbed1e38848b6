package extractor

import (
	"encoding/xml"
	"fmt"
	"strconv"
	"strings"
	"sync"

	"github.com/ilia-khaustov/batchout-go/internal/config"
	"github.com/ilia-khaustov/batchout-go/internal/logging"
	"github.com/ilia-khaustov/batchout-go/internal/registry"
)

// XPath is a minimal path-based extractor over XML payloads. Its sequences
// are naturally 1-indexed ("first_index = 1"), which is threaded through to
// Index.Values rather than normalized away. Grounded on
// original_source/batchout/ext/xpath/extractors.py for the contract; the
// path grammar is a hand-rolled subset of XPath (slash-separated tag names,
// an optional 1-based `[n]` predicate, or a bare repeated tag name which
// matches every same-named sibling) since no XPath library is available.
type XPath struct {
	strategy Strategy
	log      *logging.Logger

	mu         sync.Mutex
	segmentsBy map[string][]xpathSegment
}

// NewXPath constructs an XPath extractor from a resolved fragment.
func NewXPath(fragment registry.Fragment, log *logging.Logger) (*XPath, error) {
	strategy, err := config.BindString("extractor.xpath", fragment, config.Option{
		Key:     "strategy",
		Default: string(TakeFirst),
		Choices: SupportedStrategies(TakeFirst, TakeLast, TakeAll),
	})
	if err != nil {
		return nil, err
	}
	return &XPath{strategy: Strategy(strategy), log: log, segmentsBy: make(map[string][]xpathSegment)}, nil
}

// FirstIndex implements Extractor: XPath predicates are 1-indexed.
func (x *XPath) FirstIndex() int { return 1 }

// Extract implements Extractor.
func (x *XPath) Extract(path string, payload []byte) (any, any) {
	segments, err := x.compiled(path)
	if err != nil {
		return logAndFail(x.log, path, err)
	}

	root, err := parseXML(payload)
	if err != nil {
		return logAndFail(x.log, path, fmt.Errorf("invalid XML payload: %w", err))
	}

	if len(segments) == 0 || segments[0].tag != root.Tag {
		return nil, nil
	}
	if segments[0].hasIndex && segments[0].index != 1 {
		return nil, nil
	}

	matches := walkXML([]*xmlNode{root}, segments[1:], fmt.Sprintf("/%s[1]", root.Tag))
	return Reduce(x.strategy, matches)
}

func (x *XPath) compiled(path string) ([]xpathSegment, error) {
	x.mu.Lock()
	defer x.mu.Unlock()
	if cached, ok := x.segmentsBy[path]; ok {
		return cached, nil
	}
	segments := parseXPathSegments(path)
	x.segmentsBy[path] = segments
	return segments, nil
}

type xpathSegment struct {
	tag      string
	index    int // 1-based when hasIndex
	hasIndex bool
}

func parseXPathSegments(path string) []xpathSegment {
	p := strings.Trim(path, "/")
	if p == "" {
		return nil
	}
	var segments []xpathSegment
	for _, part := range strings.Split(p, "/") {
		if part == "" {
			continue
		}
		open := strings.IndexByte(part, '[')
		if open == -1 {
			segments = append(segments, xpathSegment{tag: part})
			continue
		}
		tag := part[:open]
		closeIdx := strings.IndexByte(part, ']')
		if closeIdx == -1 || closeIdx < open {
			segments = append(segments, xpathSegment{tag: tag})
			continue
		}
		inner := part[open+1 : closeIdx]
		if n, err := strconv.Atoi(inner); err == nil {
			segments = append(segments, xpathSegment{tag: tag, index: n, hasIndex: true})
		} else {
			segments = append(segments, xpathSegment{tag: tag})
		}
	}
	return segments
}

// xmlNode is a minimal generic XML element tree used so the extractor does
// not depend on a specific schema.
type xmlNode struct {
	Tag      string
	Text     string
	Children []*xmlNode
}

func parseXML(payload []byte) (*xmlNode, error) {
	decoder := xml.NewDecoder(strings.NewReader(string(payload)))

	var stack []*xmlNode
	var root *xmlNode

	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			node := &xmlNode{Tag: t.Name.Local}
			if len(stack) > 0 {
				parent := stack[len(stack)-1]
				parent.Children = append(parent.Children, node)
			} else {
				root = node
			}
			stack = append(stack, node)
		case xml.CharData:
			if len(stack) > 0 {
				stack[len(stack)-1].Text += string(t)
			}
		case xml.EndElement:
			if len(stack) > 0 {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if root == nil {
		return nil, fmt.Errorf("no root element found")
	}
	return root, nil
}

// value returns a node's scalar value: its trimmed text if it has no
// children, otherwise the node itself (so a list-shaped path segment such as
// "cart" can still be recognized as "sized" by Index).
func (n *xmlNode) value() any {
	if len(n.Children) == 0 {
		return strings.TrimSpace(n.Text)
	}
	return n
}

// walkXML fans a compiled path out across a node set, producing one Match
// per terminal node reached. A segment without an index matches every
// same-tag child (supporting take_all enumeration); a segment with an index
// selects only the nth (1-based) such child.
func walkXML(nodes []*xmlNode, segments []xpathSegment, pathSoFar string) []Match {
	if len(segments) == 0 {
		out := make([]Match, len(nodes))
		for i, n := range nodes {
			out[i] = Match{Path: pathSoFar, Value: n.value()}
		}
		return out
	}

	seg := segments[0]
	rest := segments[1:]

	var matched []*xmlNode
	var matchedPaths []string
	ordinal := 0
	for _, n := range nodes {
		for _, child := range n.Children {
			if child.Tag != seg.tag {
				continue
			}
			ordinal++
			if seg.hasIndex && ordinal != seg.index {
				continue
			}
			matched = append(matched, child)
			matchedPaths = append(matchedPaths, fmt.Sprintf("%s/%s[%d]", pathSoFar, seg.tag, ordinal))
		}
	}

	if len(matched) == 0 {
		return nil
	}

	var out []Match
	for i, child := range matched {
		out = append(out, walkXML([]*xmlNode{child}, rest, matchedPaths[i])...)
	}
	return out
}

var _ Extractor = (*XPath)(nil)
