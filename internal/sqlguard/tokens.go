package sqlguard

import "strings"

// lex scans raw SQL and returns the uppercase word tokens outside string
// literals, quoted identifiers, and comments, plus the number of
// statement segments separated by bare semicolons. A keyword inside a
// literal like 'drop me a line' therefore never surfaces as a token.
func lex(sql string) (tokens []string, segments int) {
	const (
		stNone = iota
		stSingleQuote
		stDoubleQuote
		stBacktick
		stBracket
		stLineComment
		stBlockComment
	)

	state := stNone
	var word strings.Builder
	segHasContent := false

	flush := func() {
		if word.Len() > 0 {
			tokens = append(tokens, strings.ToUpper(word.String()))
			word.Reset()
		}
	}

	runes := []rune(sql)
	for i := 0; i < len(runes); i++ {
		c := runes[i]

		switch state {
		case stSingleQuote:
			if c == '\'' {
				// '' escapes a quote inside the literal.
				if i+1 < len(runes) && runes[i+1] == '\'' {
					i++
					continue
				}
				state = stNone
			}
			continue
		case stDoubleQuote:
			if c == '"' {
				state = stNone
			}
			continue
		case stBacktick:
			if c == '`' {
				state = stNone
			}
			continue
		case stBracket:
			if c == ']' {
				state = stNone
			}
			continue
		case stLineComment:
			if c == '\n' {
				state = stNone
			}
			continue
		case stBlockComment:
			if c == '*' && i+1 < len(runes) && runes[i+1] == '/' {
				i++
				state = stNone
			}
			continue
		}

		switch {
		case c == '\'':
			flush()
			state = stSingleQuote
			segHasContent = true
		case c == '"':
			flush()
			state = stDoubleQuote
			segHasContent = true
		case c == '`':
			flush()
			state = stBacktick
			segHasContent = true
		case c == '[':
			flush()
			state = stBracket
			segHasContent = true
		case c == '-' && i+1 < len(runes) && runes[i+1] == '-':
			flush()
			i++
			state = stLineComment
		case c == '/' && i+1 < len(runes) && runes[i+1] == '*':
			flush()
			i++
			state = stBlockComment
		case c == ';':
			flush()
			if segHasContent {
				segments++
				segHasContent = false
			}
		case isWordRune(c, word.Len() > 0):
			word.WriteRune(c)
			segHasContent = true
		default:
			flush()
			if !isSpace(c) {
				segHasContent = true
			}
		}
	}
	flush()
	if segHasContent {
		segments++
	}
	return tokens, segments
}

func isWordRune(c rune, inWord bool) bool {
	if c == '_' || (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') {
		return true
	}
	return inWord && c >= '0' && c <= '9'
}

func isSpace(c rune) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
