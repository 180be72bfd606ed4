package servers

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
)

func setupTestDir(t *testing.T) string {
	t.Helper()
	dir := t.TempDir()
	t.Setenv("LMCHAT_HOME", dir)
	return dir
}

func TestLoad_NoFileGivesDefaults(t *testing.T) {
	setupTestDir(t)

	list := Load()
	if len(list) != 1 || list[0].Nick != "local" || list[0].URL != "http://localhost:1234" {
		t.Errorf("expected default server list, got %+v", list)
	}
}

func TestLoad_FallsBackOnBadFile(t *testing.T) {
	tests := map[string]string{
		"unparsable":  "{nope",
		"empty list":  "[]",
		"all invalid": `[{"nick":"x","url":""},{"nick":"y","url":"http://"}]`,
	}
	for name, content := range tests {
		t.Run(name, func(t *testing.T) {
			dir := setupTestDir(t)
			os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o600)

			list := Load()
			if len(list) != 1 || list[0].URL != "http://localhost:1234" {
				t.Errorf("expected defaults, got %+v", list)
			}
		})
	}
}

func TestLoad_FiltersAndNormalises(t *testing.T) {
	dir := setupTestDir(t)
	content := `[{"nick":"","url":"10.0.0.5:8080/"},{"nick":"bad","url":"  "},{"nick":"vllm","url":"https://gpu.lan:8000"}]`
	os.WriteFile(filepath.Join(dir, fileName), []byte(content), 0o600)

	list := Load()
	if len(list) != 2 {
		t.Fatalf("expected 2 valid servers, got %+v", list)
	}
	if list[0] != (Server{Nick: "server", URL: "http://10.0.0.5:8080"}) {
		t.Errorf("unexpected first server %+v", list[0])
	}
	if list[1] != (Server{Nick: "vllm", URL: "https://gpu.lan:8000"}) {
		t.Errorf("unexpected second server %+v", list[1])
	}
}

func TestUpsert_AddsAndRenames(t *testing.T) {
	setupTestDir(t)

	s, err := Upsert(Server{Nick: "box", URL: "box.lan:1234"})
	if err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}
	if s.URL != "http://box.lan:1234" {
		t.Errorf("expected normalised URL, got %q", s.URL)
	}
	if _, err := Upsert(Server{Nick: "renamed", URL: "http://box.lan:1234/"}); err != nil {
		t.Fatalf("Upsert failed: %v", err)
	}

	list := Load()
	if len(list) != 2 {
		t.Fatalf("expected defaults plus one server, got %+v", list)
	}
	if list[1].Nick != "renamed" {
		t.Errorf("expected nick updated in place, got %+v", list[1])
	}
}

func TestUpsert_RejectsInvalidURL(t *testing.T) {
	setupTestDir(t)

	_, err := Upsert(Server{Nick: "x", URL: ""})
	if !errors.Is(err, ErrInvalidURL) {
		t.Errorf("expected ErrInvalidURL, got %v", err)
	}
}

func TestRemove(t *testing.T) {
	setupTestDir(t)

	if err := Remove("http://localhost:1234"); !errors.Is(err, ErrLastServer) {
		t.Fatalf("expected ErrLastServer, got %v", err)
	}

	Upsert(Server{Nick: "other", URL: "http://other:1"})
	if err := Remove("local"); err != nil {
		t.Fatalf("Remove by nick failed: %v", err)
	}
	list := Load()
	if len(list) != 1 || list[0].Nick != "other" {
		t.Errorf("expected only 'other' left, got %+v", list)
	}

	if err := Remove("ghost"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}

func TestFind(t *testing.T) {
	setupTestDir(t)
	Upsert(Server{Nick: "GPU", URL: "gpu:8000"})

	s, err := Find("gpu")
	if err != nil || s.URL != "http://gpu:8000" {
		t.Errorf("find by nick: got %+v, %v", s, err)
	}
	s, err = Find("http://gpu:8000/")
	if err != nil || s.Nick != "GPU" {
		t.Errorf("find by URL: got %+v, %v", s, err)
	}
	if _, err := Find("nothing"); !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
