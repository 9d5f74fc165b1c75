package eval

import (
	"fmt"
	"strings"
	"unicode"
)

var illegalChars = []rune{'{', '}', '[', ']', ';', ':', '?', '@', '#', '$', '\\'}

var illegalOps = []string{"+", "-", "*", "/", "%"}

// Validate rejects anything beyond comparisons and boolean logic over plain
// variables and literals.
func Validate(cond string) error {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return nil
	}

	for _, ch := range illegalChars {
		if strings.ContainsRune(cond, ch) {
			return fmt.Errorf("illegal character %q", ch)
		}
	}

	if hasLonePipe(cond) {
		return fmt.Errorf("pipe operator is not allowed")
	}

	for i := 0; i < len(cond); i++ {
		if cond[i] != '.' {
			continue
		}
		// decimal literals like 37.5 are fine, member access is not
		if i == 0 || i == len(cond)-1 || !isDigit(cond[i-1]) || !isDigit(cond[i+1]) {
			return fmt.Errorf("member access is not allowed")
		}
	}

	for _, op := range illegalOps {
		if strings.Contains(cond, op) {
			return fmt.Errorf("arithmetic operator %q is not allowed", op)
		}
	}

	if ident := calledIdent(cond); ident != "" {
		return fmt.Errorf("function calls are not allowed (found %q(...))", ident)
	}

	return nil
}

func calledIdent(cond string) string {
	for i := 0; i < len(cond); i++ {
		if cond[i] != '(' {
			continue
		}
		j := i - 1
		for j >= 0 && unicode.IsSpace(rune(cond[j])) {
			j--
		}
		k := j
		for k >= 0 && isIdentByte(cond[k]) {
			k--
		}
		ident := cond[k+1 : j+1]
		if ident == "" || ident == "not" || ident == "and" || ident == "or" {
			continue
		}
		return ident
	}
	return ""
}

// hasLonePipe reports a '|' that is not part of "||".
func hasLonePipe(cond string) bool {
	for i := 0; i < len(cond); i++ {
		if cond[i] != '|' {
			continue
		}
		if i+1 < len(cond) && cond[i+1] == '|' {
			i++
			continue
		}
		return true
	}
	return false
}

func isDigit(b byte) bool { return b >= '0' && b <= '9' }

func isIdentByte(b byte) bool {
	return b == '_' || isDigit(b) || unicode.IsLetter(rune(b))
}
