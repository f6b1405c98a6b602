package activity

import (
	"fmt"
	"regexp"
	"strings"
)

var (
	linePattern = regexp.MustCompile(`(?m)^[ \t]*//([A-Za-z]+)(?:[ \t]+(\d+))?([^\n]*?)//`)

	// A body line opening with "//" would read as a marker, so the slashes
	// are split by a backslash that decoding removes.
	lineEscape   = regexp.MustCompile(`(?m)^([ \t]*)/(\\*)/`)
	lineUnescape = regexp.MustCompile(`(?m)^([ \t]*)/\\(\\*)/`)
)

// LineCodec implements the line-oriented wire format where each step opens
// with a `//Kind N//` marker at the start of a line and runs until the next
// marker:
//
//	//Observation 1// What is 2 + 2?
//	//Thought 1// I should add the numbers.
//	//Action 1 kind="add"//
//	```json
//	{"left": 2, "right": 2}
//	```
//
// N counts completed Observation → Thought → Action cycles and is
// informational only; Decode accepts any number or none.
type LineCodec struct {
	fences map[Kind]string
}

// NewLineCodec creates a LineCodec using the same fences as NewTagCodec.
func NewLineCodec(opts ...TagOption) *LineCodec {
	tc := NewTagCodec(opts...)
	return &LineCodec{fences: tc.fences}
}

func (c *LineCodec) Encode(a Activity) string {
	return c.encodeAt(a, 1)
}

func (c *LineCodec) EncodeAll(acts []Activity) string {
	parts := make([]string, len(acts))
	n := 1
	for i, a := range acts {
		if i > 0 && a.kind == KindObservation {
			n++
		}
		parts[i] = c.encodeAt(a, n)
	}
	return strings.Join(parts, "\n")
}

func (c *LineCodec) encodeAt(a Activity, n int) string {
	marker := fmt.Sprintf("//%s %d%s//", a.kind, n, formatAttributes(a.attrs))
	body := fence(c.fences[a.kind], escapeLines(a.input))
	if strings.HasPrefix(body, "```") {
		return marker + "\n" + body
	}
	return marker + " " + body
}

func escapeLines(s string) string   { return lineEscape.ReplaceAllString(s, `${1}/\${2}/`) }
func unescapeLines(s string) string { return lineUnescape.ReplaceAllString(s, `${1}/${2}/`) }

func (c *LineCodec) Decode(text string) ([]Activity, error) {
	locs := linePattern.FindAllStringSubmatchIndex(text, -1)
	if len(locs) == 0 {
		return nil, &DecodeError{Message: "no activities found", Fragment: text}
	}

	acts := make([]Activity, 0, len(locs))
	for i, loc := range locs {
		end := len(text)
		if i+1 < len(locs) {
			end = locs[i+1][0]
		}
		fragment := text[loc[0]:end]
		kindName := text[loc[2]:loc[3]]
		attrBlock := text[loc[6]:loc[7]]
		body := text[loc[1]:end]

		a, err := decodeActivity(kindName, attrBlock, body, unescapeLines)
		if err != nil {
			return nil, &DecodeError{Message: "malformed activity", Fragment: fragment, Cause: err}
		}
		acts = append(acts, a)
	}
	return acts, nil
}

func (c *LineCodec) StopSequence() string {
	return "//" + string(KindObservation)
}
