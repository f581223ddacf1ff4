package extract

import (
	"fmt"
	"path"
	"regexp"
	"strings"
	"unicode"
	"unicode/utf8"
)

// Extractor pulls order ids out of label filenames.
type Extractor struct {
	prefix     string
	delimiter  string
	extensions map[string]struct{}
	pattern    *regexp.Regexp
	group      int
}

// New validates cfg and builds an Extractor.
func New(cfg Config) (*Extractor, error) {
	e := &Extractor{
		prefix:    cfg.Prefix,
		delimiter: cfg.Delimiter,
	}

	if len(cfg.Extensions) > 0 {
		e.extensions = make(map[string]struct{}, len(cfg.Extensions))
		for _, ext := range cfg.Extensions {
			ext = strings.ToLower(strings.TrimSpace(ext))
			if ext == "" {
				continue
			}
			if !strings.HasPrefix(ext, ".") {
				ext = "." + ext
			}
			e.extensions[ext] = struct{}{}
		}
	}

	if cfg.Pattern != "" {
		re, err := regexp.Compile(cfg.Pattern)
		if err != nil {
			return nil, fmt.Errorf("invalid label pattern: %w", err)
		}
		e.group = re.SubexpIndex("id")
		if e.group < 0 {
			return nil, fmt.Errorf("label pattern %q has no named group \"id\"", cfg.Pattern)
		}
		e.pattern = re
	}

	return e, nil
}

// Extract returns the order id embedded in name. It is pure and total:
// anything that does not follow the convention yields ok=false.
func (e *Extractor) Extract(name string) (string, bool) {
	if name == "" || strings.HasSuffix(name, "/") || !utf8.ValidString(name) {
		return "", false
	}

	base := path.Base(name)
	if base == "" || strings.HasPrefix(base, ".") {
		return "", false
	}

	ext := path.Ext(base)
	if e.extensions != nil {
		if _, ok := e.extensions[strings.ToLower(ext)]; !ok {
			return "", false
		}
	}
	stem := strings.TrimSuffix(base, ext)

	var id string
	if e.pattern != nil {
		m := e.pattern.FindStringSubmatch(stem)
		if m == nil {
			return "", false
		}
		id = m[e.group]
	} else {
		if e.prefix != "" {
			if !strings.HasPrefix(stem, e.prefix) {
				return "", false
			}
			stem = stem[len(e.prefix):]
		}
		id = stem
		if e.delimiter != "" {
			if i := strings.Index(stem, e.delimiter); i >= 0 {
				id = stem[:i]
			}
		}
	}

	id = strings.TrimSpace(id)
	if id == "" || strings.IndexFunc(id, func(r rune) bool { return unicode.IsControl(r) || unicode.IsSpace(r) }) >= 0 {
		return "", false
	}
	return id, true
}
