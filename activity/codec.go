package activity

import (
	"fmt"
	"regexp"
	"slices"
	"strconv"
	"strings"
)

// Codec converts raw model text into activities and back. Decode must accept
// everything Encode produces.
type Codec interface {
	// Encode renders a single activity in the wire format.
	Encode(a Activity) string

	// EncodeAll renders a sequence of activities, separated for the model.
	EncodeAll(acts []Activity) string

	// Decode extracts the activities found in text. Text outside recognised
	// markers is ignored; finding no activity at all is a *DecodeError.
	Decode(text string) ([]Activity, error)

	// StopSequence is the marker that opens an Observation; completions are
	// cut there so the model never writes its own observations.
	StopSequence() string
}

// Separator joins encoded activities.
const Separator = "\n\n"

// DefaultFences are the code fence languages applied by NewTagCodec.
var DefaultFences = map[Kind]string{
	KindAction:      "json",
	KindObservation: "yaml",
}

var (
	blockPattern = regexp.MustCompile(`(?is)<BEGIN\s+([A-Za-z]+)([^>]*)>(.*?)<END\s+([A-Za-z]+)\s*>`)
	attrPattern  = regexp.MustCompile(`^\s*([A-Za-z_][A-Za-z0-9_-]*)\s*=\s*("(?:[^"\\]|\\.)*")`)
	fenceOpen    = regexp.MustCompile("^```[A-Za-z0-9_+.-]*[ \t]*\r?\n?")
	fenceClose   = regexp.MustCompile("\r?\n?```\\s*$")

	// Marker words inside a body gain one backslash after the '<' so they
	// cannot open or close a block; decoding removes it again.
	tagEscape   = regexp.MustCompile(`(?i)<(\\*)(begin|end)`)
	tagUnescape = regexp.MustCompile(`(?i)<\\(\\*)(begin|end)`)
)

// TagCodec implements the marker-pair wire format:
//
//	<BEGIN ACTION kind="add">
//	```json
//	{"left": 1, "right": 2}
//	```
//	<END ACTION>
//
// Observations and Actions are wrapped in a language-tagged code fence;
// Thoughts are plain text.
type TagCodec struct {
	fences map[Kind]string
}

// TagOption configures a TagCodec.
type TagOption func(*TagCodec)

// WithFence sets the fence language used for kind. An empty language
// disables the fence for that kind.
func WithFence(kind Kind, lang string) TagOption {
	return func(c *TagCodec) {
		if lang == "" {
			delete(c.fences, kind)
			return
		}
		c.fences[kind] = lang
	}
}

// NewTagCodec creates a TagCodec with DefaultFences.
func NewTagCodec(opts ...TagOption) *TagCodec {
	c := &TagCodec{fences: make(map[Kind]string, len(DefaultFences))}
	for k, v := range DefaultFences {
		c.fences[k] = v
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *TagCodec) Encode(a Activity) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "<BEGIN %s%s>\n", a.kind.Tag(), formatAttributes(a.attrs))
	sb.WriteString(fence(c.fences[a.kind], escapeTags(a.input)))
	fmt.Fprintf(&sb, "\n<END %s>", a.kind.Tag())
	return sb.String()
}

func (c *TagCodec) EncodeAll(acts []Activity) string {
	parts := make([]string, len(acts))
	for i, a := range acts {
		parts[i] = c.Encode(a)
	}
	return strings.Join(parts, Separator)
}

func (c *TagCodec) Decode(text string) ([]Activity, error) {
	matches := blockPattern.FindAllStringSubmatch(text, -1)
	if len(matches) == 0 {
		return nil, &DecodeError{Message: "no activities found", Fragment: text}
	}

	acts := make([]Activity, 0, len(matches))
	for _, m := range matches {
		fragment, begin, attrBlock, body, end := m[0], m[1], m[2], m[3], m[4]
		if !strings.EqualFold(begin, end) {
			return nil, &DecodeError{
				Message:  fmt.Sprintf("marker mismatch: BEGIN %s closed by END %s", begin, end),
				Fragment: fragment,
			}
		}
		a, err := decodeActivity(begin, attrBlock, body, unescapeTags)
		if err != nil {
			return nil, &DecodeError{Message: "malformed activity", Fragment: fragment, Cause: err}
		}
		acts = append(acts, a)
	}
	return acts, nil
}

func (c *TagCodec) StopSequence() string {
	return "<BEGIN " + KindObservation.Tag() + ">"
}

func decodeActivity(kindName, attrBlock, body string, unescape func(string) string) (Activity, error) {
	kind, err := ParseKind(kindName)
	if err != nil {
		return Activity{}, err
	}
	attrs, err := parseAttributes(attrBlock)
	if err != nil {
		return Activity{}, err
	}
	return New(kind, unescape(stripFence(body)), attrs)
}

func escapeTags(s string) string   { return tagEscape.ReplaceAllString(s, `<\${1}${2}`) }
func unescapeTags(s string) string { return tagUnescape.ReplaceAllString(s, `<${1}${2}`) }

// fence wraps input in a code fence tagged lang. Unfenced input that itself
// opens with a fence gets a bare one, so decoding strips only the wrapper.
func fence(lang, input string) string {
	if lang == "" && !strings.HasPrefix(input, "```") {
		return input
	}
	return "```" + lang + "\n" + input + "\n```"
}

// stripFence trims whitespace and removes a single outer code fence.
func stripFence(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = fenceOpen.ReplaceAllString(s, "")
	s = fenceClose.ReplaceAllString(s, "")
	return strings.TrimSpace(s)
}

// formatAttributes renders attributes as ` key="value"` pairs in key order.
// Quoted values never contain '>' or '/' so they cannot end a marker early.
func formatAttributes(attrs map[string]string) string {
	if len(attrs) == 0 {
		return ""
	}
	keys := make([]string, 0, len(attrs))
	for k := range attrs {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var sb strings.Builder
	for _, k := range keys {
		v := strconv.Quote(attrs[k])
		v = strings.ReplaceAll(v, ">", `\u003e`)
		v = strings.ReplaceAll(v, "/", `\u002f`)
		fmt.Fprintf(&sb, " %s=%s", k, v)
	}
	return sb.String()
}

func parseAttributes(s string) (map[string]string, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, nil
	}
	attrs := make(map[string]string)
	for s != "" {
		m := attrPattern.FindStringSubmatch(s)
		if m == nil {
			return nil, fmt.Errorf("unparseable attributes %q", s)
		}
		v, err := strconv.Unquote(m[2])
		if err != nil {
			return nil, fmt.Errorf("attribute %s: %w", m[1], err)
		}
		attrs[m[1]] = v
		s = strings.TrimSpace(s[len(m[0]):])
	}
	return attrs, nil
}
