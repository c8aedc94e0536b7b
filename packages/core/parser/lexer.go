package parser

import (
	"regexp"
	"strings"
)

type TokenType int

const (
	TokenEOF TokenType = iota
	TokenBlank
	TokenText
	TokenField
	TokenListItem
)

func (t TokenType) String() string {
	switch t {
	case TokenEOF:
		return "EOF"
	case TokenBlank:
		return "blank"
	case TokenText:
		return "text"
	case TokenField:
		return "field"
	case TokenListItem:
		return "list item"
	default:
		return "unknown"
	}
}

// Token is one classified line of documentation.
type Token struct {
	Type   TokenType
	Name   string // field name for TokenField
	Value  string // inline field value, list item text, or line text
	Raw    string // the line without its indentation
	Indent int
	Line   int
}

const tabWidth = 4

var (
	fieldPattern    = regexp.MustCompile(`^:([^:\s][^:]*):(?:\s+(.*))?$`)
	listItemPattern = regexp.MustCompile(`^(?:\d+|#)[.)]\s+(.*)$`)
)

// Lexer classifies documentation text line by line.
type Lexer struct {
	lines []string
	pos   int
}

func NewLexer(input string) *Lexer {
	return &Lexer{lines: cleanDoc(input)}
}

func (l *Lexer) NextToken() Token {
	if l.pos >= len(l.lines) {
		return Token{Type: TokenEOF, Line: l.pos + 1}
	}
	line := l.lines[l.pos]
	l.pos++
	return classify(line, l.pos)
}

// Tokens drains the lexer.
func (l *Lexer) Tokens() []Token {
	var toks []Token
	for {
		tok := l.NextToken()
		toks = append(toks, tok)
		if tok.Type == TokenEOF {
			return toks
		}
	}
}

func classify(line string, lineNo int) Token {
	trimmed := strings.TrimLeft(line, " ")
	tok := Token{
		Raw:    strings.TrimRight(trimmed, " "),
		Indent: len(line) - len(trimmed),
		Line:   lineNo,
	}
	if strings.TrimSpace(trimmed) == "" {
		tok.Type = TokenBlank
		return tok
	}
	if m := fieldPattern.FindStringSubmatch(tok.Raw); m != nil {
		tok.Type = TokenField
		tok.Name = strings.TrimSpace(m[1])
		tok.Value = strings.TrimSpace(m[2])
		return tok
	}
	if m := listItemPattern.FindStringSubmatch(tok.Raw); m != nil {
		tok.Type = TokenListItem
		tok.Value = strings.TrimSpace(m[1])
		return tok
	}
	tok.Type = TokenText
	tok.Value = tok.Raw
	return tok
}

// cleanDoc splits text into lines, expands tabs and removes the indentation
// shared by every non-blank line. Leading and trailing blank lines are
// dropped.
func cleanDoc(input string) []string {
	input = strings.ReplaceAll(input, "\r\n", "\n")
	input = strings.ReplaceAll(input, "\t", strings.Repeat(" ", tabWidth))
	lines := strings.Split(input, "\n")

	margin := -1
	for _, line := range lines {
		content := strings.TrimLeft(line, " ")
		if content == "" {
			continue
		}
		indent := len(line) - len(content)
		if margin < 0 || indent < margin {
			margin = indent
		}
	}

	if margin > 0 {
		for i := range lines {
			if len(lines[i]) >= margin {
				lines[i] = lines[i][margin:]
			} else {
				lines[i] = strings.TrimLeft(lines[i], " ")
			}
		}
	}

	for len(lines) > 0 && strings.TrimSpace(lines[0]) == "" {
		lines = lines[1:]
	}
	for len(lines) > 0 && strings.TrimSpace(lines[len(lines)-1]) == "" {
		lines = lines[:len(lines)-1]
	}
	return lines
}
