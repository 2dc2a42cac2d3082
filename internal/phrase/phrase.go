// Package phrase compiles user search phrases into a storage pattern for
// LIKE pre-filtering and a regular expression over token streams for exact
// counting.
package phrase

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"

	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/field"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/lang"
	"github.com/Adithya-Monish-Kumar-K/feedrank/internal/tagger"
	apperrors "github.com/Adithya-Monish-Kumar-K/feedrank/pkg/errors"
)

// Mode selects what a phrase is matched against.
type Mode int

const (
	// Literal matches raw field text.
	Literal Mode = iota
	// Stemmed matches the stemmed stream.
	Stemmed
	// Exact matches the raw stream.
	Exact
)

func (m Mode) String() string {
	switch m {
	case Literal:
		return "literal"
	case Stemmed:
		return "stemmed"
	case Exact:
		return "exact"
	}
	return "mode(" + strconv.Itoa(int(m)) + ")"
}

// DefaultNear is the gap allowed by a bare "~".
const DefaultNear = 5

// Options controls compilation.
type Options struct {
	Mode            Mode
	Field           field.Role
	CaseInsensitive bool
	// Near is the gap used for a bare "~". Zero means DefaultNear.
	Near int
}

// Compiled is an immutable compiled phrase.
type Compiled struct {
	Raw             string
	Mode            Mode
	Field           field.Role
	CaseInsensitive bool
	Empty           bool
	Begin           bool
	End             bool
	// Text is the needle of a literal phrase.
	Text    string
	Pattern string
	Regex   *regexp.Regexp
}

const (
	anyPos      = `\d{7}`
	anyPrefix   = `[A-Z]{2}`
	anyCase     = `\d`
	anyEntry    = anyPos + anyPrefix + anyCase + `\S* `
	arbitrary   = `[^\n]*?`
	likeAnyPos  = "_______"
	likePrefix  = "__"
	likeAnyCase = "_"

	escCaret  = "\x00c"
	escDollar = "\x00d"
)

var (
	starRun = regexp.MustCompile(`\*{2,}`)
	nearRe  = regexp.MustCompile(`^~(\d*)$`)
)

// Compile turns a query into a Compiled phrase. Queries that are empty or
// consist only of wildcards compile to an Empty phrase.
func Compile(query string, m *lang.Model, opts Options) (*Compiled, error) {
	c := &Compiled{
		Raw:             query,
		Mode:            opts.Mode,
		Field:           opts.Field,
		CaseInsensitive: opts.CaseInsensitive,
	}
	text := stripAnchors(c, strings.TrimSpace(query))
	text = starRun.ReplaceAllString(text, "*")
	text = strings.NewReplacer(escCaret, "^", escDollar, "$").Replace(text)

	switch opts.Mode {
	case Literal:
		return compileLiteral(c, text)
	case Stemmed, Exact:
		return compileTokens(c, text, m, opts)
	}
	return nil, fmt.Errorf("compile %q: unknown mode %d: %w", query, opts.Mode, apperrors.ErrInvalidInput)
}

// stripAnchors records and removes unescaped ^ and $ anchors. Escaped
// anchors are kept as placeholders until wildcards are collapsed.
func stripAnchors(c *Compiled, s string) string {
	s = strings.NewReplacer(`\^`, escCaret, `\$`, escDollar).Replace(s)
	if strings.HasPrefix(s, "^") {
		c.Begin = true
		s = strings.TrimSpace(s[1:])
	}
	if strings.HasSuffix(s, "$") {
		c.End = true
		s = strings.TrimSpace(s[:len(s)-1])
	}
	return s
}

func compileLiteral(c *Compiled, text string) (*Compiled, error) {
	if c.CaseInsensitive {
		text = strings.ToLower(text)
	}
	if strings.TrimSpace(strings.ReplaceAll(text, "*", "")) == "" {
		c.Empty = true
		return c, nil
	}
	c.Text = text

	var pat, re strings.Builder
	if c.CaseInsensitive {
		re.WriteString("(?i)")
	}
	if c.Begin {
		re.WriteByte('^')
	} else {
		pat.WriteByte('%')
	}
	pat.WriteString(escapeLike(text))
	re.WriteString(regexp.QuoteMeta(text))
	if c.End {
		re.WriteByte('$')
	} else {
		pat.WriteByte('%')
	}
	c.Pattern = pat.String()
	return finish(c, re.String())
}

func compileTokens(c *Compiled, text string, m *lang.Model, opts Options) (*Compiled, error) {
	near := opts.Near
	if near <= 0 {
		near = DefaultNear
	}
	prefix, likePfx := anyPrefix, likePrefix
	if opts.Field != field.Any {
		prefix = regexp.QuoteMeta(opts.Field.Prefix())
		likePfx = opts.Field.Prefix()
	}

	var pat, re strings.Builder
	pat.WriteByte('%')
	if c.Begin {
		pat.WriteByte('\n')
		re.WriteString(`\n`)
	}
	literals := 0
	for _, tok := range tagger.Query(text, opts.Field, m) {
		if tok.Has(lang.TagOperator) {
			if sub := nearRe.FindStringSubmatch(tok.Raw); sub != nil {
				n := near
				if sub[1] != "" {
					n, _ = strconv.Atoi(sub[1])
				}
				fmt.Fprintf(&re, `(?:%s){0,%d}`, anyEntry, n)
			} else {
				re.WriteString(arbitrary)
			}
			writeGap(&pat)
			continue
		}
		if c.Mode == Stemmed && tok.HasAny(m.NonIndexable) {
			continue
		}
		literals++
		form := tok.Lower
		if c.Mode == Stemmed && !strings.Contains(form, "*") {
			form = m.Stem(form)
		}

		re.WriteString(anyPos)
		re.WriteString(prefix)
		pat.WriteString(likeAnyPos)
		pat.WriteString(likePfx)
		if c.CaseInsensitive {
			re.WriteString(anyCase)
			pat.WriteString(likeAnyCase)
		} else {
			re.WriteByte(tok.Case.Digit())
			pat.WriteByte(tok.Case.Digit())
		}
		parts := strings.Split(form, "*")
		for i, part := range parts {
			if i > 0 {
				re.WriteString(`\S*`)
				writeGap(&pat)
			}
			re.WriteString(regexp.QuoteMeta(part))
			pat.WriteString(escapeLike(part))
		}
		re.WriteByte(' ')
		pat.WriteByte(' ')
	}
	if literals == 0 {
		c.Empty = true
		c.Pattern = ""
		return c, nil
	}
	if c.End {
		re.WriteString(` *\n`)
	}
	writeGap(&pat)
	c.Pattern = pat.String()
	return finish(c, re.String())
}

func writeGap(b *strings.Builder) {
	s := b.String()
	if len(s) > 0 && s[len(s)-1] == '%' {
		return
	}
	b.WriteByte('%')
}

func finish(c *Compiled, expr string) (*Compiled, error) {
	re, err := regexp.Compile(expr)
	if err != nil {
		return nil, fmt.Errorf("compile %q: %w: %v", c.Raw, apperrors.ErrInvalidInput, err)
	}
	c.Regex = re
	return c, nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// escapeLike escapes LIKE metacharacters with the default backslash escape.
func escapeLike(s string) string {
	return likeEscaper.Replace(s)
}
