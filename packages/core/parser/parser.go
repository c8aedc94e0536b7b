package parser

import (
	"strings"
)

type blockKind int

const (
	blockParagraph blockKind = iota
	blockField
	blockList
)

type block struct {
	kind  blockKind
	line  int
	lines []string // paragraph lines or list items

	name  string // field name
	value string // scalar field value
	items []string
}

type Parser struct {
	tokens []Token
	pos    int
	errors []*ParseError
}

func NewParser(input string) *Parser {
	return &Parser{tokens: NewLexer(input).Tokens()}
}

// Parse builds the metadata for a test from its documentation. identifier is
// the function or method name used when the documentation has no title.
// Parse never fails; malformed fields are skipped.
func Parse(documentation, identifier string) *TestMetadata {
	meta, _ := ParseWithDiagnostics(documentation, identifier)
	return meta
}

// ParseWithDiagnostics is Parse, also returning one ParseError per skipped
// field.
func ParseWithDiagnostics(documentation, identifier string) (*TestMetadata, []*ParseError) {
	if strings.TrimSpace(documentation) == "" {
		return &TestMetadata{Name: Normalize(identifier)}, nil
	}
	p := NewParser(documentation)
	meta := p.ParseMetadata(identifier)
	return meta, p.errors
}

// Errors returns the diagnostics collected so far.
func (p *Parser) Errors() []*ParseError {
	return p.errors
}

func (p *Parser) ParseMetadata(identifier string) *TestMetadata {
	blocks := p.parseBlocks()
	meta := &TestMetadata{}

	body := blocks
	if len(blocks) > 0 && blocks[0].kind == blockParagraph {
		meta.Name = strings.Join(blocks[0].lines, "\n")
		body = blocks[1:]
	} else {
		meta.Name = Normalize(identifier)
	}

	var purpose []string
	for _, b := range body {
		switch b.kind {
		case blockParagraph:
			purpose = append(purpose, strings.Join(b.lines, "\n"))
		case blockField:
			p.applyField(meta, b)
		case blockList:
			p.errorf("", b.line, "ordered list outside of a field ignored")
		}
	}
	meta.Purpose = strings.Join(purpose, "\n\n")

	return meta
}

func (p *Parser) applyField(meta *TestMetadata, b *block) {
	switch {
	case b.name == FieldSteps || strings.EqualFold(b.name, FieldSteps):
		if len(b.items) == 0 {
			p.errorf(b.name, b.line, "expected an ordered list")
			return
		}
		meta.Steps = b.items
	case b.name == FieldExpectedResults || strings.EqualFold(b.name, FieldExpectedResults):
		if len(b.items) == 0 {
			p.errorf(b.name, b.line, "expected an ordered list")
			return
		}
		meta.ExpectedResults = b.items
	case strings.EqualFold(b.name, FieldTags):
		if b.value == "" {
			p.errorf(b.name, b.line, "expected a comma separated value")
			return
		}
		var tags []string
		for _, t := range strings.Split(b.value, ", ") {
			t = strings.TrimSpace(t)
			if t != "" {
				tags = append(tags, t)
			}
		}
		meta.Tags = tags
	case strings.EqualFold(b.name, FieldComponent):
		if b.value == "" {
			p.errorf(b.name, b.line, "expected a value")
			return
		}
		meta.Component = b.value
	default:
		if b.value == "" {
			p.errorf(b.name, b.line, "expected a value")
			return
		}
		meta.setField(b.name, b.value)
	}
}

func (p *Parser) errorf(field string, line int, msg string) {
	p.errors = append(p.errors, &ParseError{Field: field, Line: line, Message: msg})
}

func (p *Parser) cur() Token {
	return p.tokens[p.pos]
}

func (p *Parser) peek(n int) Token {
	if p.pos+n >= len(p.tokens) {
		return p.tokens[len(p.tokens)-1]
	}
	return p.tokens[p.pos+n]
}

func (p *Parser) next() {
	if p.pos < len(p.tokens)-1 {
		p.pos++
	}
}

func (p *Parser) skipBlanks() {
	for p.cur().Type == TokenBlank {
		p.next()
	}
}

func (p *Parser) parseBlocks() []*block {
	var blocks []*block
	p.skipBlanks()
	for p.cur().Type != TokenEOF {
		switch p.cur().Type {
		case TokenField:
			blocks = append(blocks, p.parseField())
		case TokenListItem:
			blocks = append(blocks, p.parseList())
		default:
			blocks = append(blocks, p.parseParagraph())
		}
		p.skipBlanks()
	}
	return blocks
}

func (p *Parser) parseParagraph() *block {
	b := &block{kind: blockParagraph, line: p.cur().Line}
	for {
		tok := p.cur()
		if tok.Type == TokenEOF || tok.Type == TokenBlank || tok.Type == TokenField {
			return b
		}
		b.lines = append(b.lines, tok.Raw)
		p.next()
	}
}

func (p *Parser) parseList() *block {
	b := &block{kind: blockList, line: p.cur().Line}
	b.items = p.collectItems(p.cur().Indent - 1)
	return b
}

// parseField consumes a field marker and its body: every following line that
// is blank or indented deeper than the marker.
func (p *Parser) parseField() *block {
	marker := p.cur()
	b := &block{kind: blockField, line: marker.Line, name: marker.Name}
	value := []string{}
	if marker.Value != "" {
		value = append(value, marker.Value)
	}
	p.next()

	for {
		tok := p.cur()
		if tok.Type == TokenBlank {
			if !p.bodyContinues(marker.Indent) {
				break
			}
			p.next()
			continue
		}
		if tok.Type == TokenEOF || tok.Indent <= marker.Indent {
			break
		}
		if tok.Type == TokenListItem && len(b.items) == 0 {
			b.items = p.collectItems(marker.Indent)
			continue
		}
		value = append(value, tok.Raw)
		p.next()
	}

	b.value = strings.Join(value, " ")
	return b
}

// bodyContinues reports whether the next non-blank line still belongs to a
// body indented deeper than indent.
func (p *Parser) bodyContinues(indent int) bool {
	for i := 0; ; i++ {
		tok := p.peek(i)
		switch {
		case tok.Type == TokenEOF:
			return false
		case tok.Type == TokenBlank:
			continue
		default:
			return tok.Indent > indent
		}
	}
}

// collectItems reads an ordered list whose lines are indented deeper than
// outer. Text lines indented deeper than an item continue that item; a field
// marker, or text at or left of the item's marker, ends the list.
func (p *Parser) collectItems(outer int) []string {
	var items []string
	itemIndent := -1
	for {
		tok := p.cur()
		switch {
		case tok.Type == TokenEOF:
			return items
		case tok.Type == TokenBlank:
			if !p.bodyContinues(outer) {
				return items
			}
			p.next()
		case tok.Indent <= outer:
			return items
		case tok.Type == TokenListItem && (itemIndent < 0 || tok.Indent <= itemIndent):
			itemIndent = tok.Indent
			items = append(items, tok.Value)
			p.next()
		case tok.Type != TokenField && tok.Indent > itemIndent:
			items[len(items)-1] += " " + tok.Raw
			p.next()
		default:
			return items
		}
	}
}
