package main

import (
	"bytes"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/dshills/plugconf/internal/codec"
)

func writeFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("write %s: %v", name, err)
	}
	return path
}

func runCLI(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := run(args, &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

const serverSchema = `{
  "type": "static_map",
  "definitions": {
    "name": {"type": "string"},
    "port": {"type": "integer", "range": {"min": 1, "max": 65535}, "default": 8080}
  }
}`

func TestRunUsage(t *testing.T) {
	tests := []struct {
		name string
		args []string
		want int
	}{
		{"no command", nil, exitUsage},
		{"unknown command", []string{"frobnicate"}, exitUsage},
		{"bad log level", []string{"-log-level", "loud", "diff", "a", "b"}, exitUsage},
		{"missing args", []string{"diff", "only-one"}, exitUsage},
		{"validate without schema", []string{"validate", "x.json"}, exitUsage},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _, _ := runCLI(t, tt.args...); code != tt.want {
				t.Errorf("exit code = %d, want %d", code, tt.want)
			}
		})
	}
}

func TestCommandUsage(t *testing.T) {
	for _, cmd := range commands {
		t.Run(cmd.name, func(t *testing.T) {
			code, _, errOut := runCLI(t, cmd.name, "-h")
			if code != exitUsage {
				t.Errorf("exit code = %d, want %d", code, exitUsage)
			}
			if want := "Usage: plugconf " + cmd.usage; !strings.HasPrefix(errOut, want) {
				t.Errorf("stderr = %q, want prefix %q", errOut, want)
			}
		})
	}
}

func TestRunVersion(t *testing.T) {
	code, out, _ := runCLI(t, "-version")
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(out, "plugconf dev") {
		t.Errorf("output = %q", out)
	}
}

func TestValidate(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", serverSchema)
	good := writeFile(t, dir, "good.json", `{"name": "app"}`)
	bad := writeFile(t, dir, "bad.json", `{"port": 8080}`)

	code, out, stderr := runCLI(t, "validate", "-schema", schemaPath, good)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{`"name": "app"`, `"port": 8080`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}

	code, _, stderr = runCLI(t, "validate", "-schema", schemaPath, bad)
	if code != exitFailure {
		t.Errorf("exit code = %d, want %d", code, exitFailure)
	}
	if !strings.Contains(stderr, "name is not set (expected string)") {
		t.Errorf("stderr = %q", stderr)
	}
}

func TestValidateOverrides(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", serverSchema)
	cfg := writeFile(t, dir, "config.yaml", "name: app\n")

	code, out, stderr := runCLI(t, "validate", "-schema", schemaPath, "-o", "json", "-set", "port=9000", cfg)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(out, `"port": 9000`) {
		t.Errorf("output = %q", out)
	}

	t.Setenv("PLUGCONF_PORT", "7000")
	code, out, stderr = runCLI(t, "validate", "-schema", schemaPath, "-env", cfg)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if !strings.Contains(out, "port: 7000") {
		t.Errorf("output = %q", out)
	}

	code, _, stderr = runCLI(t, "validate", "-schema", schemaPath, "-set", "port=0", cfg)
	if code != exitFailure {
		t.Errorf("out of range override: exit code = %d, stderr = %s", code, stderr)
	}
}

func TestDiff(t *testing.T) {
	dir := t.TempDir()
	from := writeFile(t, dir, "old.json", `{"a": 1, "b": 2}`)
	to := writeFile(t, dir, "new.json", `{"a": 2, "c": 3}`)

	code, out, _ := runCLI(t, "diff", from, to)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	want := "a value `1` increased by 1 to new value `2`\n" +
		"b value `2` removed\n" +
		"c value `3` added\n"
	if out != want {
		t.Errorf("output =\n%s\nwant\n%s", out, want)
	}

	if code, _, _ := runCLI(t, "diff", "-exit-code", from, to); code != exitFailure {
		t.Errorf("-exit-code with differences = %d, want %d", code, exitFailure)
	}
	if code, out, _ := runCLI(t, "diff", "-exit-code", from, from); code != exitOK || out != "" {
		t.Errorf("identical documents: code %d, output %q", code, out)
	}
	if code, _, _ := runCLI(t, "diff", from, filepath.Join(dir, "missing.json")); code != exitFailure {
		t.Errorf("missing file: exit code = %d", code)
	}
}

func TestPatch(t *testing.T) {
	dir := t.TempDir()
	from := writeFile(t, dir, "old.yaml", "port: 80\ndebug: true\n")
	to := writeFile(t, dir, "new.yaml", "port: 8080\n")
	target := writeFile(t, dir, "target.json", `{"port": 80, "debug": true, "name": "keep"}`)

	code, _, stderr := runCLI(t, "patch", "-from", from, "-to", to, "-w", target)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	got, err := os.ReadFile(target)
	if err != nil {
		t.Fatal(err)
	}
	tree, err := codec.JSON{}.Decode(got)
	if err != nil {
		t.Fatalf("patched document is not JSON: %v\n%s", err, got)
	}
	if want := `{"port": 8080, "name": "keep"}`; tree.String() != want {
		t.Errorf("patched = %s, want %s", tree, want)
	}
}

func TestMerge(t *testing.T) {
	dir := t.TempDir()
	base := writeFile(t, dir, "base.yaml", "server:\n  host: localhost\n  port: 80\n")
	overlay := writeFile(t, dir, "overlay.json", `{"server": {"port": 8080}, "debug": true}`)

	code, out, stderr := runCLI(t, "merge", "-o", "json", base, overlay)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{`"host": "localhost"`, `"port": 8080`, `"debug": true`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}
}

func TestFmt(t *testing.T) {
	dir := t.TempDir()
	path := writeFile(t, dir, "config.json", `{"b": 1, "a": "x"}`)

	code, out, stderr := runCLI(t, "fmt", "-to", "yaml", path)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	if want := "b: 1\na: x\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}

	code, out, _ = runCLI(t, "fmt", "-to", "lua", path)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if want := "return {\n  b = 1,\n  a = \"x\",\n}\n"; out != want {
		t.Errorf("output = %q, want %q", out, want)
	}
}

func TestDescribe(t *testing.T) {
	dir := t.TempDir()
	schemaPath := writeFile(t, dir, "schema.json", serverSchema)

	code, out, _ := runCLI(t, "describe", schemaPath)
	if code != exitOK {
		t.Fatalf("exit code = %d", code)
	}
	if !strings.HasPrefix(out, "static map with key `name` which should be string") {
		t.Errorf("output = %q", out)
	}
}

func TestPlugins(t *testing.T) {
	dir := t.TempDir()
	schemas := filepath.Join(dir, "schemas")
	if err := os.Mkdir(schemas, 0o755); err != nil {
		t.Fatal(err)
	}
	writeFile(t, schemas, "lint.json", `{
  "type": "static_map",
  "definitions": {
    "level": {"type": "enum", "items": ["info", "warn", "error"], "default": "warn"}
  }
}`)
	writeFile(t, schemas, "README", "not a schema")

	good := writeFile(t, dir, "good.json", `{"plugins": {"lint": {"settings": {"level": "error"}}}}`)
	code, out, stderr := runCLI(t, "plugins", "-schemas", schemas, good)
	if code != exitOK {
		t.Fatalf("exit code = %d, stderr = %s", code, stderr)
	}
	for _, want := range []string{`"enabled": true`, `"level": "error"`} {
		if !strings.Contains(out, want) {
			t.Errorf("output %q missing %s", out, want)
		}
	}

	bad := writeFile(t, dir, "bad.json", `{"plugins": {"lint": {"settings": {"level": "loud"}}}}`)
	if code, _, _ := runCLI(t, "plugins", "-schemas", schemas, bad); code != exitFailure {
		t.Errorf("invalid settings: exit code = %d, want %d", code, exitFailure)
	}
}

func TestDottedPosition(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"port", "port"},
		{"server.port", "[server][port]"},
		{"servers.0.host", "[servers][0][host]"},
	}
	for _, tt := range tests {
		if got := dottedPosition(tt.in).String(); got != tt.want {
			t.Errorf("dottedPosition(%q) = %s, want %s", tt.in, got, tt.want)
		}
	}
}
