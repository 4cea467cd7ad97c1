// parser.go — the AST builder (spec.md §4.1).
//
// Parse walks the normalized source a line at a time with a tiny state
// machine (spec.md §4.1 step 2): HEADER-vs-BODY is tracked as a single
// "have we seen a statement yet" flag (header-only keys are legal until
// then), and IN_BLOCK / IN_REPLY / IN_BOND are handled inline as each
// construct is recognized, since none of them nest (spec.md non-goal
// "nested directive or block structures" — enforced as NestedDirective).
package momoscript

import "strings"

// headerOnlyKeys are directive keys legal only before the first statement
// (spec.md §6.5 "Header directives"). Keys and directive keywords are
// matched case-insensitively: the key is lowercased before lookup here, and
// splitDirectiveKeyword lowercases keywords, so "@Title:" is treated as
// "@title:".
var headerOnlyKeys = map[string]bool{
	"title": true, "author": true, "created_at": true,
	"width": true, "bubble_inset": true, "typst": true, "typst_global": true,
}

// bodyDirectiveKeywords are the directive keywords valid anywhere in the
// document (spec.md §6.5 "In-body directives").
var bodyDirectiveKeywords = map[string]bool{
	"usepack": true, "alias": true, "tmpalias": true, "aliasid": true,
	"unaliasid": true, "charid": true, "uncharid": true, "avatar": true,
	"avatarid": true, "unavatarid": true, "pagebreak": true,
	"reply": true, "end": true, "bond": true,
}

type parser struct {
	lines        []sourceLine
	mode         ModeFlags
	nodes        []Node
	diags        []Diagnostic
	seenStatement bool
}

// Parse turns source into a flat list of AST nodes plus diagnostics
// (spec.md §4.1). If any diagnostic is non-warning, callers must not pass
// the result to Compile (spec.md §7 "The compiler refuses to run on a parse
// that reported any error").
func Parse(source string, mode ModeFlags) ([]Node, []Diagnostic) {
	p := &parser{lines: splitSourceLines(source), mode: mode}
	p.run()
	return p.nodes, p.diags
}

func (p *parser) fail(kind DiagnosticKind, span Span, format string, args ...any) {
	p.diags = append(p.diags, newDiag(kind, span, format, args...))
}

func (p *parser) run() {
	i := 0
	n := len(p.lines)
	for i < n {
		line := p.lines[i]
		trimmed := line.Trimmed
		if trimmed == "" {
			// Blank lines between statements are insignificant in plain
			// mode; Typst mode preserves them as a "\n" continuation of the
			// currently open statement, if any (spec.md §4.1 "Blank
			// lines").
			// The empty element after a final "\n" is not a source line.
			if p.mode.TypstMode && p.seenStatement && len(p.nodes) > 0 && i < n-1 {
				p.appendContinuation("")
			}
			i++
			continue
		}
		shape, mark := classifyShape(trimmed)
		switch shape {
		case shapeComment:
			i++
			continue
		case shapeDirective:
			consumed := p.handleDirective(i)
			i += consumed
			continue
		case shapeStatement:
			consumed := p.handleStatement(i, mark)
			i += consumed
			continue
		default: // continuation
			if !p.seenStatement || len(p.nodes) == 0 {
				p.fail(ErrContinuationBeforeStatement, lineSpan(line), "continuation line before any statement")
				i++
				continue
			}
			p.appendContinuation(trimmed)
			i++
		}
	}
}

func lineSpan(l sourceLine) Span {
	return Span{StartLine: l.No, StartCol: l.LeadWS + 1, EndLine: l.No, EndCol: l.LeadWS + 1 + runeLen(l.Trimmed)}
}

// appendContinuation joins text onto the content of whatever statement,
// bond, or reply-item is currently open (spec.md §4.1 step 3 "continuation").
func (p *parser) appendContinuation(text string) {
	if len(p.nodes) == 0 {
		return
	}
	last := &p.nodes[len(p.nodes)-1]
	sep := "\n"
	if p.mode.JoinContinuationWith == JoinSpace {
		sep = " "
	}
	switch last.Kind {
	case NodeStatement, NodeBond:
		if last.Content == "" {
			last.Content = text
		} else {
			last.Content = last.Content + sep + text
		}
	case NodeReply:
		if len(last.ReplyItems) > 0 {
			it := &last.ReplyItems[len(last.ReplyItems)-1]
			if it.Content == "" {
				it.Content = text
			} else {
				it.Content = it.Content + sep + text
			}
		}
	}
}

// handleDirective dispatches a single "@..." line and returns how many
// physical lines it consumed.
func (p *parser) handleDirective(i int) int {
	line := p.lines[i]
	trimmed := line.Trimmed
	keyword, _ := splitDirectiveKeyword(trimmed)

	if keyword == "reply" {
		return p.handleReply(i)
	}
	if keyword == "end" {
		p.fail(ErrMalformedDirective, lineSpan(line), "@end outside of a @reply block")
		return 1
	}
	if keyword == "bond" {
		return p.handleBond(i)
	}
	if keyword == "pagebreak" {
		rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "@pagebreak"))
		if rest != "" {
			p.fail(ErrBadMarkerOnPagebreak, lineSpan(line), "@pagebreak takes no arguments")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodePageBreak, Span: lineSpan(line)})
		return 1
	}

	// key:value-shaped directives (MetaKV, TypstGlobal, and the
	// key-value-ish body directives that happen to use the same "@key:
	// value" surface, e.g. @alias, @avatar).
	if bodyDirectiveKeywords[keyword] {
		return p.handleBodyDirective(i, keyword)
	}

	key, value, ok := splitHeaderDirective(trimmed)
	if !ok {
		p.fail(ErrUnknownDirective, lineSpan(line), "unknown directive: @%s", keyword)
		return 1
	}
	if p.seenStatement && headerOnlyKeys[strings.ToLower(key)] {
		p.fail(ErrHeaderKeyAfterBody, lineSpan(line), "header directive @%s cannot appear after the first statement", key)
		return 1
	}
	if strings.EqualFold(key, "typst_global") {
		return p.handleTypstGlobalBlock(i, value)
	}
	p.nodes = append(p.nodes, Node{Kind: NodeMetaKV, Span: lineSpan(line), Key: key, Value: value})
	return 1
}

// handleTypstGlobalBlock parses @typst_global, whose value may open a
// triple-quoted block (spec.md §3.2 TypstGlobal).
func (p *parser) handleTypstGlobalBlock(i int, value string) int {
	openerSpan := lineSpan(p.lines[i])
	blockText, consumed, ok := p.absorbBlockIfOpened(i, value, openerSpan)
	if ok {
		p.nodes = append(p.nodes, Node{Kind: NodeTypstGlobal, Span: openerSpan, Value: blockText})
		return consumed
	}
	p.nodes = append(p.nodes, Node{Kind: NodeTypstGlobal, Span: openerSpan, Value: strings.TrimSpace(value)})
	return 1
}

// handleBodyDirective parses one of the @alias/@tmpalias/@aliasid/.../
// @usepack family (spec.md §6.5). All share the "@keyword arg..." shape.
func (p *parser) handleBodyDirective(i int, keyword string) int {
	line := p.lines[i]
	trimmed := line.Trimmed
	span := lineSpan(line)
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "@"+keyword))

	switch keyword {
	case "usepack":
		// @usepack <pack_id> as <alias>
		fields := strings.Fields(rest)
		if len(fields) != 3 || !strings.EqualFold(fields[1], "as") {
			p.fail(ErrMalformedDirective, span, "invalid @usepack directive (expected: @usepack <pack_id> as <alias>)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeUsePack, Span: span, PackID: fields[0], Alias: fields[2]})
		return 1
	case "alias", "tmpalias":
		name, display, ok := splitEquals(rest)
		if !ok {
			p.fail(ErrMalformedDirective, span, "invalid @%s directive (missing '=')", keyword)
			return 1
		}
		kind := NodeAlias
		if keyword == "tmpalias" {
			kind = NodeTmpAlias
		}
		p.nodes = append(p.nodes, Node{Kind: kind, Span: span, Name: name, Display: display, HasValue: display != ""})
		return 1
	case "aliasid":
		id, name, ok := splitTwoFields(rest)
		if !ok {
			p.fail(ErrMalformedDirective, span, "invalid @aliasid directive (expected: @aliasid <id> <name>)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeAliasID, Span: span, ShortID: id, Name: name})
		return 1
	case "unaliasid":
		if rest == "" {
			p.fail(ErrMalformedDirective, span, "invalid @unaliasid directive (empty id)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeUnaliasID, Span: span, ShortID: rest})
		return 1
	case "charid":
		id, display, ok := splitTwoFields(rest)
		if !ok {
			p.fail(ErrMalformedDirective, span, "invalid @charid directive (expected: @charid <id> <display>)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeCharID, Span: span, ShortID: id, Display: display})
		return 1
	case "uncharid":
		if rest == "" {
			p.fail(ErrMalformedDirective, span, "invalid @uncharid directive (empty id)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeUncharID, Span: span, ShortID: rest})
		return 1
	case "avatarid":
		id, asset, ok := splitTwoFields(rest)
		if !ok {
			p.fail(ErrMalformedDirective, span, "invalid @avatarid directive (expected: @avatarid <id> <asset_name>)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeAvatarID, Span: span, ShortID: id, AssetRef: asset})
		return 1
	case "unavatarid":
		if rest == "" {
			p.fail(ErrMalformedDirective, span, "invalid @unavatarid directive (empty id)")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeUnavatarID, Span: span, ShortID: rest})
		return 1
	case "avatar":
		name, asset, ok := splitEquals(rest)
		if !ok {
			p.fail(ErrMalformedDirective, span, "invalid @avatar directive (missing '=')")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeAvatarOverride, Span: span, Name: name, AssetRef: asset, HasValue: asset != ""})
		return 1
	}
	p.fail(ErrUnknownDirective, span, "unknown directive: @%s", keyword)
	return 1
}

func splitEquals(s string) (lhs, rhs string, ok bool) {
	idx := strings.IndexByte(s, '=')
	if idx < 0 {
		return "", "", false
	}
	lhs = strings.TrimSpace(s[:idx])
	rhs = strings.TrimSpace(s[idx+1:])
	if lhs == "" {
		return "", "", false
	}
	return lhs, rhs, true
}

func splitTwoFields(s string) (first, rest string, ok bool) {
	s = strings.TrimSpace(s)
	idx := strings.IndexAny(s, " \t")
	if idx < 0 {
		return "", "", false
	}
	first = s[:idx]
	rest = strings.TrimSpace(s[idx+1:])
	if first == "" || rest == "" {
		return "", "", false
	}
	return first, rest, true
}

// handleReply parses both @reply surface forms (spec.md §3.2 Reply,
// §4.1 step 3).
func (p *parser) handleReply(i int) int {
	line := p.lines[i]
	trimmed := line.Trimmed
	openerSpan := lineSpan(line)
	rest := strings.TrimSpace(strings.TrimPrefix(trimmed, "@reply"))

	if strings.HasPrefix(rest, ":") {
		// Inline form: @reply: a | b | c
		parts := strings.Split(rest[1:], "|")
		var items []ReplyItem
		for _, part := range parts {
			t := strings.TrimSpace(part)
			if t == "" {
				continue
			}
			items = append(items, ReplyItem{Content: t, Span: openerSpan})
		}
		if len(items) == 0 {
			p.fail(ErrEmptyReplyBlock, openerSpan, "@reply: has no items")
			return 1
		}
		p.nodes = append(p.nodes, Node{Kind: NodeReply, Span: openerSpan, ReplyItems: items})
		return 1
	}

	// Block form: @reply ... @end
	j := i + 1
	var items []ReplyItem
	for j < len(p.lines) {
		l := p.lines[j]
		t := l.Trimmed
		if t == "" {
			j++
			continue
		}
		if strings.EqualFold(t, "@end") {
			if len(items) == 0 {
				p.fail(ErrEmptyReplyBlock, openerSpan, "@reply block has no items")
			}
			p.nodes = append(p.nodes, Node{Kind: NodeReply, Span: spanFromTo(openerSpan, lineSpan(l)), ReplyItems: items})
			return j - i + 1
		}
		kw, _ := splitDirectiveKeyword(t)
		if strings.HasPrefix(t, "@") && kw == "reply" {
			p.fail(ErrNestedDirective, lineSpan(l), "@reply cannot be nested inside @reply")
			return j - i + 1
		}
		items = append(items, ReplyItem{Content: t, Span: lineSpan(l)})
		j++
	}
	p.fail(ErrUnclosedBlock, openerSpan, "unterminated @reply block (missing @end)")
	return j - i
}

// handleBond parses @bond / @bond: content (spec.md §3.2 Bond).
func (p *parser) handleBond(i int) int {
	line := p.lines[i]
	trimmed := line.Trimmed
	span := lineSpan(line)
	rest := strings.TrimPrefix(trimmed, "@bond")
	hasColon := strings.HasPrefix(strings.TrimSpace(rest), ":")
	content := ""
	if hasColon {
		idx := strings.IndexByte(rest, ':')
		content = strings.TrimSpace(rest[idx+1:])
	} else if strings.TrimSpace(rest) != "" {
		p.fail(ErrMalformedDirective, span, "invalid @bond directive")
		return 1
	}

	blockText, consumed, ok := p.absorbBlockIfOpened(i, content, span)
	if ok {
		p.nodes = append(p.nodes, Node{Kind: NodeBond, Span: span, Content: blockText, ContentEmpty: blockText == ""})
		return consumed
	}
	p.nodes = append(p.nodes, Node{Kind: NodeBond, Span: span, Content: content, ContentEmpty: content == ""})
	return 1
}

// handleStatement parses a "- "/"> "/"< " line (spec.md §3.4).
func (p *parser) handleStatement(i int, mark byte) int {
	line := p.lines[i]
	trimmed := line.Trimmed
	span := lineSpan(line)
	p.seenStatement = true

	payload := trimmed[2:]

	kind := StmtNarration
	var marker Marker
	content := payload

	if mark == '>' || mark == '<' {
		kind = StmtLeft
		if mark == '<' {
			kind = StmtRight
		}
		if head, tail, ok := splitMarkerColon(payload); ok {
			marker = p.classifyMarker(head, span)
			content = strings.TrimLeft(tail, " ")
		}
	}

	blockText, consumed, ok := p.absorbBlockIfOpened(i, content, span)
	if ok {
		p.nodes = append(p.nodes, Node{
			Kind: NodeStatement, Span: span, StmtKind: kind, Marker: marker, Content: blockText,
		})
		return consumed
	}
	p.nodes = append(p.nodes, Node{
		Kind: NodeStatement, Span: span, StmtKind: kind, Marker: marker, Content: content,
	})
	return 1
}

// classifyMarker turns the text before a marker colon into a Marker value
// (spec.md §3.3, §4.1 "Marker pre-parse").
func (p *parser) classifyMarker(head string, span Span) Marker {
	head = strings.TrimSpace(head)
	if n, ok := isBackrefSelector(head); ok {
		// "_0" keeps N=0; the compiler rejects it as BackrefOutOfRange.
		return Marker{Kind: MarkerBackref, N: n, Span: span}
	}
	if n, ok := isIndexSelector(head); ok {
		return Marker{Kind: MarkerIndex, N: n, Span: span}
	}
	if head == "" {
		return Marker{Kind: MarkerNone, Span: span}
	}
	return Marker{Kind: MarkerExplicit, Selector: head, Span: span}
}

// absorbBlockIfOpened checks whether headContent opens a triple-quote block
// (spec.md §3.7 invariant 7) and, if so, consumes lines through the closer.
// Returns ok=false if headContent does not open a block.
func (p *parser) absorbBlockIfOpened(i int, headContent string, openerSpan Span) (text string, consumedLines int, ok bool) {
	quoteLen, after := quoteRunLen(headContent)
	if quoteLen < 3 {
		return "", 0, false
	}
	var blockLines []string
	if after != "" {
		blockLines = append(blockLines, after)
	}
	j := i + 1
	for j < len(p.lines) {
		l := p.lines[j]
		if isBlockCloser(l.Trimmed, quoteLen) {
			return strings.Join(blockLines, "\n"), j - i + 1, true
		}
		blockLines = append(blockLines, l.Raw)
		j++
	}
	p.diags = append(p.diags, Diagnostic{
		Kind: ErrUnclosedBlock, Span: openerSpan,
		Message: "unterminated triple-quote block",
		Notes:   []DiagnosticNote{{Message: "opened here", Span: openerSpan}},
	})
	return strings.Join(blockLines, "\n"), len(p.lines) - i, true
}
