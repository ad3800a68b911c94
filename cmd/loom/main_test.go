package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const sequenceGraphJSONLD = `[
  {"@id": "a", "@graph": "default", "pattern": "sequence", "flow:next": "b"},
  {"@id": "b", "@graph": "default", "pattern": "implicit_termination"}
]`

func TestRunPrintsUsageWithNoArgs(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run(nil, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
	if errOut.Len() == 0 {
		t.Fatalf("expected usage on stderr")
	}
}

func TestRunUnknownCommand(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"bogus"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
}

func TestRunHelp(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"--help"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("code=%d, want 0", code)
	}
	if out.Len() == 0 {
		t.Fatalf("expected usage on stdout")
	}
}

func writeGraphFixture(t *testing.T, dir string) string {
	t.Helper()
	path := filepath.Join(dir, "graph.jsonld")
	if err := os.WriteFile(path, []byte(sequenceGraphJSONLD), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}
	return path
}

func TestCompileWritesArtifact(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFixture(t, dir)
	outPath := filepath.Join(dir, "artifact.bin")

	var out, errOut bytes.Buffer
	code := run([]string{
		"compile",
		"--input", graphPath,
		"--out", outPath,
		"--no-color",
	}, &out, &errOut)
	if code != 0 {
		t.Fatalf("compile exit=%d, stderr=%q", code, errOut.String())
	}
	if _, err := os.Stat(outPath); err != nil {
		t.Fatalf("expected artifact to be written: %v", err)
	}
}

func TestCompileRejectsMissingInput(t *testing.T) {
	var out, errOut bytes.Buffer
	code := run([]string{"compile"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2", code)
	}
}

func TestRunSubcommandCompletesSequence(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFixture(t, dir)
	artifactPath := filepath.Join(dir, "artifact.bin")

	var compileOut, compileErr bytes.Buffer
	if code := run([]string{"compile", "--input", graphPath, "--out", artifactPath, "--no-color"}, &compileOut, &compileErr); code != 0 {
		t.Fatalf("compile exit=%d, stderr=%q", code, compileErr.String())
	}

	var out, errOut bytes.Buffer
	code := run([]string{"run", "--artifact", artifactPath, "--no-color"}, &out, &errOut)
	if code != 0 {
		t.Fatalf("run exit=%d, stderr=%q, stdout=%q", code, errOut.String(), out.String())
	}
	if !bytes.Contains(out.Bytes(), []byte("Completed")) {
		t.Fatalf("expected Completed outcome, got %q", out.String())
	}
}

func TestReplayIsBitIdenticalToItself(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFixture(t, dir)
	artifactPath := filepath.Join(dir, "artifact.bin")
	fixturePath := filepath.Join(dir, "fixture.json")
	if err := os.WriteFile(fixturePath, []byte(`{"roles":{},"events":[]}`), 0o644); err != nil {
		t.Fatalf("write fixture: %v", err)
	}

	var compileOut, compileErr bytes.Buffer
	if code := run([]string{"compile", "--input", graphPath, "--out", artifactPath, "--no-color"}, &compileOut, &compileErr); code != 0 {
		t.Fatalf("compile exit=%d, stderr=%q", code, compileErr.String())
	}

	var firstOut, firstErr bytes.Buffer
	if code := run([]string{"run", "--artifact", artifactPath, "--fixture", fixturePath, "--no-color"}, &firstOut, &firstErr); code != 0 {
		t.Fatalf("run exit=%d, stderr=%q", code, firstErr.String())
	}

	var replayOut, replayErr bytes.Buffer
	code := run([]string{"replay", "--artifact", artifactPath, "--fixture", fixturePath, "--no-color"}, &replayOut, &replayErr)
	if code != 0 {
		t.Fatalf("replay exit=%d, stderr=%q, stdout=%q", code, replayErr.String(), replayOut.String())
	}
	if !bytes.Contains(replayOut.Bytes(), []byte("Completed")) {
		t.Fatalf("expected Completed outcome, got %q", replayOut.String())
	}
}

func TestCounterfactualRequiresAnAlternate(t *testing.T) {
	dir := t.TempDir()
	graphPath := writeGraphFixture(t, dir)
	artifactPath := filepath.Join(dir, "artifact.bin")

	var compileOut, compileErr bytes.Buffer
	if code := run([]string{"compile", "--input", graphPath, "--out", artifactPath, "--no-color"}, &compileOut, &compileErr); code != 0 {
		t.Fatalf("compile exit=%d, stderr=%q", code, compileErr.String())
	}

	var out, errOut bytes.Buffer
	code := run([]string{"counterfactual", "--artifact", artifactPath, "--fixture", filepath.Join(dir, "fixture.json"), "--no-color"}, &out, &errOut)
	if code != 2 {
		t.Fatalf("code=%d, want 2 (missing --alternate-artifact/--alternate-doctrine)", code)
	}
}
