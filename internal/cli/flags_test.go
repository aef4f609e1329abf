package cli

import (
	"reflect"
	"strings"
	"testing"
)

var testFlags = commandFlags{
	values:  []string{"url", "port"},
	bools:   []string{"verbose", "allow-stop"},
	aliases: map[string]string{"-v": "verbose"},
}

func TestParseCommandArgs(t *testing.T) {
	got, err := parseCommandArgs([]string{"--url=http://x", "-v", "--port", "8270", "--no-allow-stop", "rest"}, testFlags)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if got.value("url") != "http://x" {
		t.Fatalf("url = %q, want %q", got.value("url"), "http://x")
	}
	if !got.flag("verbose") {
		t.Fatal("verbose = false, want true")
	}
	port, err := got.intValue("port")
	if err != nil || port == nil || *port != 8270 {
		t.Fatalf("intValue(port) = %v, %v", port, err)
	}
	allow := got.optionalBool("allow-stop")
	if allow == nil || *allow {
		t.Fatalf("optionalBool(allow-stop) = %v, want false", allow)
	}
	if !reflect.DeepEqual(got.args, []string{"rest"}) {
		t.Fatalf("args = %v, want [rest]", got.args)
	}
}

func TestParseCommandArgsUnsetValues(t *testing.T) {
	got, err := parseCommandArgs(nil, testFlags)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if got.isSet("url") {
		t.Fatal("isSet(url) = true, want false")
	}
	if port, err := got.intValue("port"); port != nil || err != nil {
		t.Fatalf("intValue(port) = %v, %v; want nil, nil", port, err)
	}
	if got.optionalBool("allow-stop") != nil {
		t.Fatal("optionalBool(allow-stop) != nil")
	}
}

func TestParseCommandArgsBoolValue(t *testing.T) {
	got, err := parseCommandArgs([]string{"--allow-stop=false"}, testFlags)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if v := got.optionalBool("allow-stop"); v == nil || *v {
		t.Fatalf("allow-stop = %v, want false", v)
	}
}

func TestParseCommandArgsStopsAtPositional(t *testing.T) {
	spec := testFlags
	spec.stopAtPositional = true
	got, err := parseCommandArgs([]string{"-v", "Echo", "--url", "-x"}, spec)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if got.isSet("url") {
		t.Fatal("flags after the keyword were parsed")
	}
	if want := []string{"Echo", "--url", "-x"}; !reflect.DeepEqual(got.args, want) {
		t.Fatalf("args = %v, want %v", got.args, want)
	}
}

func TestParseCommandArgsDoubleDash(t *testing.T) {
	got, err := parseCommandArgs([]string{"--", "--url", "x"}, testFlags)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if want := []string{"--url", "x"}; !reflect.DeepEqual(got.args, want) {
		t.Fatalf("args = %v, want %v", got.args, want)
	}
}

func TestParseCommandArgsErrors(t *testing.T) {
	tests := []struct {
		args []string
		want string
	}{
		{[]string{"--nope"}, "unknown flag: --nope"},
		{[]string{"-x"}, "unsupported short flag: -x"},
		{[]string{"--url"}, "missing value for --url"},
		{[]string{"--verbose=maybe"}, "invalid --verbose value"},
		{[]string{"--no-url"}, "unknown flag: --no-url"},
		{[]string{"--="}, "invalid flag"},
	}
	for _, tt := range tests {
		_, err := parseCommandArgs(tt.args, testFlags)
		if err == nil || !strings.Contains(err.Error(), tt.want) {
			t.Fatalf("parseCommandArgs(%q) error = %v, want %q", tt.args, err, tt.want)
		}
	}
}

func TestIntValueRejectsGarbage(t *testing.T) {
	got, err := parseCommandArgs([]string{"--port", "eighty"}, testFlags)
	if err != nil {
		t.Fatalf("parseCommandArgs() error = %v", err)
	}
	if _, err := got.intValue("port"); err == nil {
		t.Fatal("intValue(port) error = nil, want error")
	}
}
