package codec

import (
	"errors"
	"math"
	"strings"
	"testing"

	"github.com/dshills/plugconf/internal/diff"
	"github.com/dshills/plugconf/internal/value"
)

func TestForPath(t *testing.T) {
	tests := []struct {
		path    string
		want    string
		wantErr bool
	}{
		{"config.json", "json", false},
		{"/etc/plug/config.YAML", "yaml", false},
		{"a.yml", "yaml", false},
		{"plugins.toml", "toml", false},
		{"init.lua", "lua", false},
		{"config.ini", "", true},
		{"Makefile", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			c, err := ForPath(tt.path)
			if tt.wantErr {
				if !errors.Is(err, ErrUnsupported) {
					t.Errorf("ForPath(%q) error = %v, want ErrUnsupported", tt.path, err)
				}
				return
			}
			if err != nil {
				t.Fatalf("ForPath(%q) error = %v", tt.path, err)
			}
			if c.Name() != tt.want {
				t.Errorf("ForPath(%q) = %s, want %s", tt.path, c.Name(), tt.want)
			}
		})
	}
}

func TestDecodeIntegerOverflow(t *testing.T) {
	v, err := JSON{}.Decode([]byte(`{"big": 9223372036854775808, "max": 9223372036854775807}`))
	if err != nil {
		t.Fatalf("Decode failed: %v", err)
	}
	want := value.MapOf(
		value.KV("big", value.Float(math.Ldexp(1, 63))),
		value.KV("max", value.Int(math.MaxInt64)),
	)
	if !value.Equal(v, want) {
		t.Errorf("Decode = %s, want %s", v, want)
	}
}

func TestDecode(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		input string
		want  string
	}{
		{
			name:  "json keeps order and number kinds",
			codec: JSON{},
			input: `{"b": 1, "a": [1.5, 2e3, "x", null, true], "big": 9223372036854775808}`,
			want:  `{"b": 1, "a": [1.5, 2000.0, "x", null, true], "big": 9223372036854776000.0}`,
		},
		{
			name:  "json empty",
			codec: JSON{},
			input: "  \n",
			want:  `{}`,
		},
		{
			name:  "json scalar root",
			codec: JSON{},
			input: `"hi"`,
			want:  `"hi"`,
		},
		{
			name:  "yaml keeps order",
			codec: YAML{},
			input: "zeta: 1\nalpha:\n  - 2.5\n  - \"3\"\n  - ~\n  - true\n",
			want:  `{"zeta": 1, "alpha": [2.5, "3", null, true]}`,
		},
		{
			name:  "yaml merge keys",
			codec: YAML{},
			input: "base: &base\n  host: localhost\n  port: 80\nserver:\n  <<: *base\n  port: 8080\n",
			want:  `{"base": {"host": "localhost", "port": 80}, "server": {"port": 8080, "host": "localhost"}}`,
		},
		{
			name:  "yaml empty",
			codec: YAML{},
			input: "",
			want:  `{}`,
		},
		{
			name:  "toml sorts keys",
			codec: TOML{},
			input: "b = 1\na = \"x\"\n\n[t]\nd = 1979-05-27\nf = 0.5\n",
			want:  `{"a": "x", "b": 1, "t": {"d": "1979-05-27", "f": 0.5}}`,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v, err := tt.codec.Decode([]byte(tt.input))
			if err != nil {
				t.Fatalf("Decode failed: %v", err)
			}
			if got := v.String(); got != tt.want {
				t.Errorf("Decode = %s, want %s", got, tt.want)
			}
		})
	}
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name     string
		codec    Codec
		input    string
		wantLine int
	}{
		{"json", JSON{}, `{"a": }`, 0},
		{"yaml", YAML{}, "a: 1\nb: [\n", 0},
		{"toml", TOML{}, "a = \"x\"\nb = \n", 2},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := DecodeSource(tt.codec, "conf."+tt.name, []byte(tt.input))
			var pe *ParseError
			if !errors.As(err, &pe) {
				t.Fatalf("error = %v, want *ParseError", err)
			}
			if pe.Source != "conf."+tt.name {
				t.Errorf("Source = %q", pe.Source)
			}
			if tt.wantLine > 0 && pe.Line != tt.wantLine {
				t.Errorf("Line = %d, want %d", pe.Line, tt.wantLine)
			}
			if !strings.Contains(pe.Error(), tt.name+" parse error in conf."+tt.name) {
				t.Errorf("Error() = %q", pe.Error())
			}
		})
	}
}

func sample() *value.Value {
	return value.MapOf(
		value.KV("name", value.String("line\n\"quoted\" \x01 ünï")),
		value.KV("count", value.Int(-3)),
		value.KV("ratio", value.Float(0.25)),
		value.KV("whole", value.Float(2)),
		value.KV("on", value.Bool(true)),
		value.KV("tags", value.ListOf(value.String("a"), value.String("b"))),
		value.KV("nested", value.MapOf(value.KV("z", value.Int(1)), value.KV("a", value.EmptyMap()))),
	)
}

func TestRoundTrip(t *testing.T) {
	for _, c := range []Codec{JSON{}, JSON{Indent: "  "}, YAML{}} {
		t.Run(c.Name(), func(t *testing.T) {
			in := sample()
			data, err := c.Encode(in)
			if err != nil {
				t.Fatalf("Encode failed: %v", err)
			}
			out, err := c.Decode(data)
			if err != nil {
				t.Fatalf("Decode failed: %v\n%s", err, data)
			}
			if out.String() != in.String() {
				t.Errorf("round trip = %s, want %s", out, in)
			}
		})
	}

	// TOML does not keep key order.
	in := sample()
	data, err := TOML{}.Encode(in)
	if err != nil {
		t.Fatalf("TOML Encode failed: %v", err)
	}
	out, err := TOML{}.Decode(data)
	if err != nil {
		t.Fatalf("TOML Decode failed: %v\n%s", err, data)
	}
	if !value.Equal(out, in) {
		t.Errorf("TOML round trip = %s, want %s", out, in)
	}
}

func TestJSONCompact(t *testing.T) {
	v := value.MapOf(value.KV("b", value.Int(1)), value.KV("a", value.ListOf(value.Float(1), value.Null())))
	data, err := JSON{}.Encode(v)
	if err != nil {
		t.Fatal(err)
	}
	if got, want := string(data), `{"b":1,"a":[1.0,null]}`; got != want {
		t.Errorf("Encode = %s, want %s", got, want)
	}
}

func TestEncodeUnsupported(t *testing.T) {
	tests := []struct {
		name  string
		codec Codec
		v     *value.Value
	}{
		{"toml null", TOML{}, value.MapOf(value.KV("a", value.ListOf(value.Null())))},
		{"toml scalar root", TOML{}, value.Int(1)},
		{"json nan", JSON{}, value.MapOf(value.KV("x", value.Float(nan())))},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := tt.codec.Encode(tt.v); !errors.Is(err, ErrUnsupported) {
				t.Errorf("Encode error = %v, want ErrUnsupported", err)
			}
		})
	}
}

func nan() float64 {
	zero := 0.0
	return zero / zero
}

func TestApplyJSON(t *testing.T) {
	doc := []byte(`{
  "name": "old",
  "list": [1, 2, 3],
  "keep": {"a": 1},
  "a.b": 1
}`)
	from, err := JSON{}.Decode(doc)
	if err != nil {
		t.Fatal(err)
	}
	to := value.MapOf(
		value.KV("name", value.String("new")),
		value.KV("list", value.ListOf(value.Int(1))),
		value.KV("keep", value.MapOf(value.KV("a", value.Int(1)))),
		value.KV("a.b", value.Int(5)),
		value.KV("extra", value.ListOf(value.Bool(true))),
	)

	out, err := ApplyJSON(doc, diff.Collect(from, to))
	if err != nil {
		t.Fatalf("ApplyJSON failed: %v", err)
	}
	got, err := JSON{}.Decode(out)
	if err != nil {
		t.Fatalf("patched document is invalid: %v\n%s", err, out)
	}
	if !value.Equal(got, to) {
		t.Errorf("patched = %s, want %s", got, to)
	}
	if !strings.Contains(string(out), `"keep": {"a": 1}`) {
		t.Errorf("untouched member was reformatted:\n%s", out)
	}
}

func TestApplyJSONRoot(t *testing.T) {
	out, err := ApplyJSON([]byte(`1`), diff.Collect(value.Int(1), value.String("x")))
	if err != nil {
		t.Fatal(err)
	}
	if string(out) != `"x"` {
		t.Errorf("ApplyJSON = %s", out)
	}
}
