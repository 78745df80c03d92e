package silk

import "strings"

// HTMLSpan is a run of text carrying the SGR styles/classes active when it
// was emitted.
type HTMLSpan struct {
	Text    string            `json:"text"`
	Styles  map[string]string `json:"styles,omitempty"`
	Classes []string          `json:"classes,omitempty"`
}

var sgrColors = map[string]string{
	"30": "#000000", "31": "#cc0000", "32": "#00cc00", "33": "#cccc00",
	"34": "#0000cc", "35": "#cc00cc", "36": "#00cccc", "37": "#cccccc",
	"90": "#555555", "91": "#ff5555", "92": "#55ff55", "93": "#ffff55",
	"94": "#5555ff", "95": "#ff55ff", "96": "#55ffff", "97": "#ffffff",
}

// sgrBackgrounds (40-47) shares its hex values with the 30-37 foreground
// set one-for-one.
var sgrBackgrounds = map[string]string{
	"40": "#000000", "41": "#cc0000", "42": "#00cc00", "43": "#cccc00",
	"44": "#0000cc", "45": "#cc00cc", "46": "#00cccc", "47": "#cccccc",
}

// ConvertANSI reads input as a sequence of `ESC [ <params> m` SGR sequences
// interleaved with text and returns the resulting styled spans. The
// concatenation of every span's Text reconstructs the input with escapes
// stripped.
func ConvertANSI(input string) []HTMLSpan {
	var spans []HTMLSpan
	var text strings.Builder
	styles := map[string]string{}
	var classes []string

	flush := func() {
		if text.Len() == 0 {
			return
		}
		span := HTMLSpan{Text: text.String()}
		if len(styles) > 0 {
			span.Styles = copyStyles(styles)
		}
		if len(classes) > 0 {
			span.Classes = append([]string(nil), classes...)
		}
		spans = append(spans, span)
		text.Reset()
	}

	runes := []rune(input)
	i := 0
	for i < len(runes) {
		if runes[i] != '\x1b' {
			text.WriteRune(runes[i])
			i++
			continue
		}
		// ESC must be followed by '[' to be a CSI sequence we understand.
		if i+1 >= len(runes) || runes[i+1] != '[' {
			i++
			continue
		}
		j := i + 2
		for j < len(runes) && runes[j] != 'm' && !isCSIFinal(runes[j]) {
			j++
		}
		if j >= len(runes) {
			// Unterminated escape: drop the rest.
			break
		}
		code := string(runes[i+2 : j])
		final := runes[j]
		if final == 'm' {
			flush()
			parseSGR(code, styles, &classes)
		}
		i = j + 1
	}
	flush()
	return spans
}

func isCSIFinal(r rune) bool {
	return r >= 0x40 && r <= 0x7e
}

func copyStyles(in map[string]string) map[string]string {
	out := make(map[string]string, len(in))
	for k, v := range in {
		out[k] = v
	}
	return out
}

func parseSGR(code string, styles map[string]string, classes *[]string) {
	if code == "" || code == "0" {
		for k := range styles {
			delete(styles, k)
		}
		*classes = (*classes)[:0]
		return
	}
	for _, part := range strings.Split(code, ";") {
		switch part {
		case "1":
			addClass(classes, "bold")
		case "2":
			addClass(classes, "dim")
		case "3":
			addClass(classes, "italic")
		case "4":
			addClass(classes, "underline")
		case "7":
			addClass(classes, "inverse")
		case "9":
			addClass(classes, "strikethrough")
		default:
			if color, ok := sgrColors[part]; ok {
				styles["color"] = color
			} else if bg, ok := sgrBackgrounds[part]; ok {
				styles["background-color"] = bg
			}
		}
	}
}

func addClass(classes *[]string, name string) {
	for _, c := range *classes {
		if c == name {
			return
		}
	}
	*classes = append(*classes, name)
}

// StripSGR removes ESC[...m sequences, useful for the text-preservation
// testable property.
func StripSGR(input string) string {
	var spans = ConvertANSI(input)
	var b strings.Builder
	for _, s := range spans {
		b.WriteString(s.Text)
	}
	return b.String()
}
