// Package restrictions decide si una identidad del provider puede loguearse,
// según una lista de expresiones regulares contra su nombre (upn, o sub) o
// contra el claim que se configure.
package restrictions

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/dropDatabas3/classlink/internal/idp"
)

// Policy es una lista de patrones. Sin patrones, todo pasa.
type Policy struct {
	patterns []*regexp.Regexp
	claim    string
}

// Parse compila un patrón por línea; las líneas vacías se ignoran.
func Parse(text string, caseSensitive bool) (*Policy, error) {
	p := &Policy{}
	for i, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		expr := line
		if !caseSensitive {
			expr = "(?i)" + expr
		}
		re, err := regexp.Compile(expr)
		if err != nil {
			return nil, fmt.Errorf("restrictions: line %d: %w", i+1, err)
		}
		p.patterns = append(p.patterns, re)
	}
	return p, nil
}

// MustParse es Parse que paniquea. Para tests y defaults fijos.
func MustParse(text string, caseSensitive bool) *Policy {
	p, err := Parse(text, caseSensitive)
	if err != nil {
		panic(err)
	}
	return p
}

// WithClaim hace que los patrones se evalúen contra el claim name en lugar de
// upn/sub. Si el token no trae ese claim el sujeto es "". Con name vacío
// vuelve al default.
func (p *Policy) WithClaim(name string) *Policy {
	p.claim = strings.TrimSpace(name)
	return p
}

// Len retorna la cantidad de patrones.
func (p *Policy) Len() int {
	if p == nil {
		return 0
	}
	return len(p.patterns)
}

// Allow reporta si la identidad pasa: alcanza con que un patrón matchee.
func (p *Policy) Allow(tok *idp.IDToken) bool {
	if p.Len() == 0 {
		return true
	}
	subject := tok.Username()
	if p.claim != "" {
		subject = tok.Claim(p.claim)
	}
	for _, re := range p.patterns {
		if re.MatchString(subject) {
			return true
		}
	}
	return false
}
