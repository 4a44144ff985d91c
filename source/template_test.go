package source

import (
	"strings"
	"testing"
)

func TestParseTemplateDefault(t *testing.T) {
	tmpl, err := ParseTemplate(DefaultTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate(DefaultTemplate) error: %v", err)
	}

	got := tmpl.Resolve(Vars{Owner: "lgc-NB2Dev", Repo: "meme-stickers-hub", Ref: "main"}, "manifest.json")
	want := "https://raw.githubusercontent.com/lgc-NB2Dev/meme-stickers-hub/main/manifest.json"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestResolveEscapesSegments(t *testing.T) {
	tmpl, err := ParseTemplate(DefaultTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}

	got := tmpl.Resolve(Vars{Owner: "acme", Repo: "hub", Ref: "main"}, "cat pack/img 1.png")
	if !strings.HasSuffix(got, "/cat%20pack/img%201.png") {
		t.Errorf("path segments not escaped: %q", got)
	}
}

func TestResolveKeepsRefSlashes(t *testing.T) {
	tmpl, err := ParseTemplate(DefaultTemplate)
	if err != nil {
		t.Fatalf("ParseTemplate: %v", err)
	}

	got := tmpl.Resolve(Vars{Owner: "acme", Repo: "hub", Ref: "release/v2"}, "manifest.json")
	want := "https://raw.githubusercontent.com/acme/hub/release/v2/manifest.json"
	if got != want {
		t.Errorf("Resolve() = %q, want %q", got, want)
	}
}

func TestParseTemplateRejectsUnknownPlaceholder(t *testing.T) {
	_, err := ParseTemplate("https://example.com/{bogus}/{path}")
	if err == nil {
		t.Fatal("expected error for unknown placeholder")
	}
	if !strings.Contains(err.Error(), "{bogus}") {
		t.Errorf("error should name the placeholder, got: %v", err)
	}
}

func TestParseTemplateRejectsMissingPath(t *testing.T) {
	_, err := ParseTemplate("https://example.com/{owner}/{repo}")
	if err == nil {
		t.Fatal("expected error for template without {path}")
	}
}

func TestParseTemplateRejectsUnterminated(t *testing.T) {
	_, err := ParseTemplate("https://example.com/{path}/{owner")
	if err == nil {
		t.Fatal("expected error for unterminated placeholder")
	}
}

func TestParseTemplateRejectsEmpty(t *testing.T) {
	if _, err := ParseTemplate(""); err == nil {
		t.Fatal("expected error for empty template")
	}
}
