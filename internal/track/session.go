package track

import (
	"context"
	"fmt"

	"github.com/cddevrks/code-run/internal/language"
)

// Session pairs the editor-side state (selected language, source buffer)
// with a Tracker. It is what the REPL and one-shot CLI drive.
type Session struct {
	Tracker  *Tracker
	Language string
	Code     string

	catalog *language.Catalog
}

// NewSession creates a session with the buffer set to the language template.
func NewSession(t *Tracker, catalog *language.Catalog, lang string) (*Session, error) {
	if _, ok := catalog.Get(lang); !ok {
		return nil, fmt.Errorf("unsupported language: %s", lang)
	}
	return &Session{
		Tracker:  t,
		Language: lang,
		Code:     catalog.Template(lang),
		catalog:  catalog,
	}, nil
}

// SetLanguage switches the selected language. The buffer is reset to the
// new language's template and any prior output, error and metrics are
// cleared unconditionally.
func (s *Session) SetLanguage(lang string) error {
	def, ok := s.catalog.Get(lang)
	if !ok {
		return fmt.Errorf("unsupported language: %s", lang)
	}
	s.Language = lang
	s.Code = def.Template
	s.Tracker.Reset()
	return nil
}

// Run submits the current buffer for execution.
func (s *Session) Run(ctx context.Context) (string, error) {
	return s.Tracker.Submit(ctx, s.Code, s.Language)
}
