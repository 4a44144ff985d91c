package source

import (
	"errors"
	"fmt"
	"net/url"
	"strings"
)

// DefaultTemplate resolves pack content from raw.githubusercontent.com.
const DefaultTemplate = "https://raw.githubusercontent.com/{owner}/{repo}/{ref}/{path}"

// templateVars is the closed set of placeholders a template may use.
var templateVars = map[string]bool{
	"owner": true,
	"repo":  true,
	"ref":   true,
	"path":  true,
}

// Template is a URL template over the placeholders {owner}, {repo},
// {ref}, and {path}. Unknown placeholders are rejected at parse time
// so a misconfigured template fails at startup, not mid-sync.
type Template struct {
	raw string
}

// ParseTemplate validates the placeholder set and returns the template.
// The template must contain {path}; the other placeholders are optional.
func ParseTemplate(raw string) (*Template, error) {
	if raw == "" {
		return nil, errors.New("url template is empty")
	}

	rest := raw
	for {
		open := strings.Index(rest, "{")
		if open < 0 {
			break
		}
		closing := strings.Index(rest[open:], "}")
		if closing < 0 {
			return nil, fmt.Errorf("url template has an unterminated placeholder near %q", rest[open:])
		}
		name := rest[open+1 : open+closing]
		if !templateVars[name] {
			return nil, fmt.Errorf("url template has an unknown placeholder {%s}", name)
		}
		rest = rest[open+closing+1:]
	}

	if !strings.Contains(raw, "{path}") {
		return nil, errors.New("url template must contain {path}")
	}
	return &Template{raw: raw}, nil
}

// Vars carries the hub substitution values for a template.
type Vars struct {
	// Owner is the hub repository owner.
	Owner string
	// Repo is the hub repository name.
	Repo string
	// Ref is the git ref to read from (branch, tag, or commit).
	Ref string
}

// Resolve substitutes the hub variables and a hub-relative path into
// the template. Path and ref are escaped segment by segment so their
// slashes keep their meaning.
func (t *Template) Resolve(vars Vars, p string) string {
	r := strings.NewReplacer(
		"{owner}", url.PathEscape(vars.Owner),
		"{repo}", url.PathEscape(vars.Repo),
		"{ref}", escapePath(vars.Ref),
		"{path}", escapePath(p),
	)
	return r.Replace(t.raw)
}

// String returns the raw template text.
func (t *Template) String() string { return t.raw }

// escapePath escapes each segment of a slash-separated path.
func escapePath(p string) string {
	segments := strings.Split(p, "/")
	for i, s := range segments {
		segments[i] = url.PathEscape(s)
	}
	return strings.Join(segments, "/")
}
