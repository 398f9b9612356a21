package splitter

import (
	"fmt"
	"regexp"
	"strings"
	"unicode/utf8"

	"github.com/dshills/docindex/internal/tokens"
	"github.com/dshills/docindex/pkg/types"
	"gopkg.in/yaml.v3"
)

// DefaultMaxTokens bounds the size of a single section before it is split
// into parts at paragraph boundaries
const DefaultMaxTokens = 512

var headingRe = regexp.MustCompile(`^ {0,3}(#{1,6})[ \t]+(.*?)(?:[ \t]+#+)?[ \t]*$`)

// Markdown splits markdown and MDX documents on ATX headings
type Markdown struct {
	MaxTokens int
	Counter   tokens.Counter
}

// NewMarkdown creates a markdown splitter. A maxTokens of zero or less
// disables size-based splitting.
func NewMarkdown(maxTokens int, counter tokens.Counter) *Markdown {
	if counter == nil {
		counter = tokens.Heuristic{}
	}
	return &Markdown{MaxTokens: maxTokens, Counter: counter}
}

type section struct {
	headings []string
	level    int
	start    int // 1-based line number of the first line
	lines    []string
}

type part struct {
	start, end int
	text       string
}

// Split implements Splitter
func (m *Markdown) Split(content, filePath string) ([]types.RawChunk, error) {
	if !utf8.ValidString(content) {
		return nil, ErrInvalidUTF8
	}

	lines := strings.Split(strings.ReplaceAll(content, "\r\n", "\n"), "\n")
	frontmatter, bodyStart, err := parseFrontmatter(lines)
	if err != nil {
		return nil, err
	}

	var title string
	if t, ok := frontmatter["title"].(string); ok {
		title = strings.TrimSpace(t)
	}

	var chunks []types.RawChunk
	for _, s := range splitSections(lines, bodyStart) {
		parts := m.parts(s)
		for i, p := range parts {
			meta := map[string]any{
				"headings":   append([]string{}, s.headings...),
				"level":      s.level,
				"start_line": p.start,
				"end_line":   p.end,
			}
			if len(parts) > 1 {
				meta["part"] = i + 1
				meta["parts"] = len(parts)
			}
			if frontmatter != nil {
				meta["frontmatter"] = frontmatter
			}

			chunks = append(chunks, types.RawChunk{
				Breadcrumb: breadcrumb(title, s.headings, filePath),
				Content:    p.text,
				Metadata:   meta,
			})
		}
	}

	return chunks, nil
}

func breadcrumb(title string, headings []string, filePath string) string {
	var crumbs []string
	if title != "" {
		crumbs = append(crumbs, title)
	}
	crumbs = append(crumbs, headings...)
	if len(crumbs) == 0 {
		return filePath
	}
	return strings.Join(crumbs, BreadcrumbSeparator)
}

// parseFrontmatter decodes a leading YAML block delimited by "---" lines.
// It returns the index of the first body line.
func parseFrontmatter(lines []string) (map[string]any, int, error) {
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "---" {
		return nil, 0, nil
	}

	end := -1
	for i := 1; i < len(lines); i++ {
		if t := strings.TrimSpace(lines[i]); t == "---" || t == "..." {
			end = i
			break
		}
	}
	if end < 0 {
		// A lone thematic break, not frontmatter
		return nil, 0, nil
	}

	fm := make(map[string]any)
	if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &fm); err != nil {
		return nil, 0, fmt.Errorf("%w: %v", ErrInvalidFrontmatter, err)
	}
	if fm == nil {
		fm = make(map[string]any)
	}
	return fm, end + 1, nil
}

type heading struct {
	level int
	text  string
}

func splitSections(lines []string, from int) []*section {
	var (
		sections []*section
		stack    []heading
		fence    string
	)

	current := &section{start: from + 1}
	for i := from; i < len(lines); i++ {
		line := lines[i]

		if marker := fenceMarker(line); marker != "" {
			if fence == "" {
				fence = marker
			} else if marker[0] == fence[0] && len(marker) >= len(fence) {
				fence = ""
			}
			current.lines = append(current.lines, line)
			continue
		}

		match := headingRe.FindStringSubmatch(line)
		if fence != "" || match == nil {
			current.lines = append(current.lines, line)
			continue
		}

		sections = appendSection(sections, current)

		level := len(match[1])
		for len(stack) > 0 && stack[len(stack)-1].level >= level {
			stack = stack[:len(stack)-1]
		}
		stack = append(stack, heading{level: level, text: match[2]})

		texts := make([]string, len(stack))
		for j, h := range stack {
			texts[j] = h.text
		}
		current = &section{headings: texts, level: level, start: i + 1, lines: []string{line}}
	}

	return appendSection(sections, current)
}

// appendSection trims trailing blank lines and drops sections without body
// text. A heading with nothing under it produces no chunk.
func appendSection(sections []*section, s *section) []*section {
	for len(s.lines) > 0 && strings.TrimSpace(s.lines[len(s.lines)-1]) == "" {
		s.lines = s.lines[:len(s.lines)-1]
	}
	// Leading blank lines only occur before the first heading
	for len(s.lines) > 0 && strings.TrimSpace(s.lines[0]) == "" {
		s.lines = s.lines[1:]
		s.start++
	}

	body := s.lines
	if s.level > 0 && len(body) > 0 {
		body = body[1:]
	}
	if strings.TrimSpace(strings.Join(body, "\n")) == "" {
		return sections
	}
	return append(sections, s)
}

func fenceMarker(line string) string {
	trimmed := strings.TrimLeft(line, " ")
	if len(line)-len(trimmed) > 3 {
		return ""
	}
	for _, c := range []byte{'`', '~'} {
		n := 0
		for n < len(trimmed) && trimmed[n] == c {
			n++
		}
		if n >= 3 {
			return trimmed[:n]
		}
	}
	return ""
}

// parts splits an oversized section at blank lines outside code fences and
// packs the resulting blocks greedily up to MaxTokens. A single block larger
// than the limit is kept whole.
func (m *Markdown) parts(s *section) []part {
	whole := part{start: s.start, end: s.start + len(s.lines) - 1, text: strings.Join(s.lines, "\n")}
	if m.MaxTokens <= 0 || m.Counter.Count(whole.text) <= m.MaxTokens {
		return []part{whole}
	}

	var (
		blocks []part
		cur    []string
		start  int
		fence  string
	)
	flushBlock := func(end int) {
		if len(cur) > 0 {
			blocks = append(blocks, part{start: start, end: end, text: strings.Join(cur, "\n")})
			cur = nil
		}
	}
	for i, line := range s.lines {
		lineNo := s.start + i
		if marker := fenceMarker(line); marker != "" {
			if fence == "" {
				fence = marker
			} else if marker[0] == fence[0] && len(marker) >= len(fence) {
				fence = ""
			}
		} else if fence == "" && strings.TrimSpace(line) == "" {
			flushBlock(lineNo - 1)
			continue
		}
		if len(cur) == 0 {
			start = lineNo
		}
		cur = append(cur, line)
	}
	flushBlock(s.start + len(s.lines) - 1)

	var out []part
	var acc *part
	for _, b := range blocks {
		if acc == nil {
			b := b
			acc = &b
			continue
		}
		merged := acc.text + "\n\n" + b.text
		if m.Counter.Count(merged) <= m.MaxTokens {
			acc.text = merged
			acc.end = b.end
			continue
		}
		out = append(out, *acc)
		b := b
		acc = &b
	}
	if acc != nil {
		out = append(out, *acc)
	}
	return out
}
