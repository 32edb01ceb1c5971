package runtime

import "strings"

const fence = "```"

type segmentKind int

const (
	segmentText segmentKind = iota
	segmentCode
)

// segment is either plain text or one fenced code block.
type segment struct {
	kind segmentKind
	text string // plain text
	lang string // code block language tag, may be empty
	body string // code block body
}

var markdownEscaper = strings.NewReplacer("_", `\_`, "*", `\*`, "#", `\#`)

// ProcessContent prepares step content for display: markdown control characters in plain
// text are escaped and every fenced code block is re-serialized canonically.
// Code bodies are left unescaped.
func ProcessContent(content string) string {
	segments := tokenize(content)
	var b strings.Builder
	b.Grow(len(content))
	for _, seg := range segments {
		switch seg.kind {
		case segmentText:
			b.WriteString(markdownEscaper.Replace(seg.text))
		case segmentCode:
			writeCodeBlock(&b, seg)
		}
	}
	return b.String()
}

// NormalizeCodeFences re-serializes fenced code blocks without touching plain text.
func NormalizeCodeFences(content string) string {
	var b strings.Builder
	for _, seg := range tokenize(content) {
		if seg.kind == segmentCode {
			writeCodeBlock(&b, seg)
			continue
		}
		b.WriteString(seg.text)
	}
	return b.String()
}

func writeCodeBlock(b *strings.Builder, seg segment) {
	b.WriteString(fence)
	b.WriteString(seg.lang)
	b.WriteByte('\n')
	if body := trimBlankLines(seg.body); body != "" {
		b.WriteString(body)
		b.WriteByte('\n')
	}
	b.WriteString(fence)
}

// tokenize splits content into text and code segments. A code block opens with ``` followed
// by an optional language tag and a newline, and closes at the next ```. An opening fence
// without a newline or without a closing fence is plain text.
func tokenize(content string) []segment {
	var segments []segment
	var text strings.Builder

	flushText := func() {
		if text.Len() > 0 {
			segments = append(segments, segment{kind: segmentText, text: text.String()})
			text.Reset()
		}
	}

	rest := content
	for {
		open := strings.Index(rest, fence)
		if open < 0 {
			text.WriteString(rest)
			break
		}

		afterOpen := rest[open+len(fence):]
		nl := strings.IndexByte(afterOpen, '\n')
		if nl < 0 {
			text.WriteString(rest)
			break
		}
		info := afterOpen[:nl]
		if strings.Contains(info, "`") {
			// Inline backticks, not an opening fence: the whole line is text.
			lineEnd := open + len(fence) + nl + 1
			text.WriteString(rest[:lineEnd])
			rest = rest[lineEnd:]
			continue
		}

		bodyAndRest := afterOpen[nl+1:]
		closeIdx := strings.Index(bodyAndRest, fence)
		if closeIdx < 0 {
			text.WriteString(rest)
			break
		}

		text.WriteString(rest[:open])
		flushText()
		segments = append(segments, segment{
			kind: segmentCode,
			lang: languageTag(info),
			body: bodyAndRest[:closeIdx],
		})
		rest = bodyAndRest[closeIdx+len(fence):]
	}
	flushText()
	return segments
}

func languageTag(info string) string {
	fields := strings.Fields(info)
	if len(fields) == 0 {
		return ""
	}
	return fields[0]
}

// trimBlankLines drops blank lines around a code body while keeping
// the indentation of its first line.
func trimBlankLines(body string) string {
	body = strings.TrimRight(body, " \t\r\n")
	for {
		nl := strings.IndexByte(body, '\n')
		if nl < 0 || strings.TrimSpace(body[:nl]) != "" {
			break
		}
		body = body[nl+1:]
	}
	if strings.TrimSpace(body) == "" {
		return ""
	}
	return body
}
