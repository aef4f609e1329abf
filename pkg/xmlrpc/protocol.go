// Package xmlrpc speaks the Robot Framework remote library protocol: XML-RPC
// method calls posted over HTTP to a library path.
package xmlrpc

import (
	"bytes"
	"encoding/base64"
	"encoding/xml"
	"fmt"
	"io"
	"math"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"
)

// Fault codes.
const (
	FaultParse         = -32700
	FaultUnknownMethod = -32601
	FaultInvalidParams = -32602
	FaultInternal      = -32603
	FaultApplication   = -32500
)

const dateTimeLayout = "20060102T15:04:05"

var dateTimeLayouts = []string{
	dateTimeLayout,
	"2006-01-02T15:04:05",
	"20060102T15:04:05Z07:00",
	"2006-01-02T15:04:05Z07:00",
}

// Fault is an XML-RPC fault response.
type Fault struct {
	Code   int
	String string
}

func (f *Fault) Error() string {
	return fmt.Sprintf("xmlrpc fault %d: %s", f.Code, f.String)
}

// Call is a decoded method call.
type Call struct {
	Method string
	Params []any
}

// DecodeCall reads a methodCall document.
func DecodeCall(r io.Reader) (*Call, error) {
	p := newParser(r)
	if err := p.expect("methodCall"); err != nil {
		return nil, err
	}
	if err := p.expect("methodName"); err != nil {
		return nil, err
	}
	method, err := p.text("methodName")
	if err != nil {
		return nil, err
	}
	call := &Call{Method: strings.TrimSpace(method)}
	if call.Method == "" {
		return nil, fmt.Errorf("empty methodName")
	}

	el, ok, err := p.startOrEnd("methodCall")
	if err != nil {
		return nil, err
	}
	if !ok {
		return call, nil
	}
	if el.Name.Local != "params" {
		return nil, fmt.Errorf("unexpected <%s> in methodCall", el.Name.Local)
	}
	if call.Params, err = p.params(); err != nil {
		return nil, err
	}
	return call, p.end("methodCall")
}

// DecodeResponse reads a methodResponse document. A fault is returned as a
// *Fault error.
func DecodeResponse(r io.Reader) (any, error) {
	p := newParser(r)
	if err := p.expect("methodResponse"); err != nil {
		return nil, err
	}
	el, err := p.start()
	if err != nil {
		return nil, err
	}
	switch el.Name.Local {
	case "params":
		params, err := p.params()
		if err != nil {
			return nil, err
		}
		if len(params) != 1 {
			return nil, fmt.Errorf("methodResponse has %d params, want 1", len(params))
		}
		return params[0], p.end("methodResponse")
	case "fault":
		if err := p.expect("value"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		m, _ := v.(map[string]any)
		f := &Fault{}
		switch code := m["faultCode"].(type) {
		case int:
			f.Code = code
		case string:
			f.Code, _ = strconv.Atoi(code)
		}
		f.String, _ = m["faultString"].(string)
		if err := p.end("fault"); err != nil {
			return nil, err
		}
		return nil, f
	default:
		return nil, fmt.Errorf("unexpected <%s> in methodResponse", el.Name.Local)
	}
}

// EncodeCall writes a methodCall document.
func EncodeCall(w io.Writer, method string, params ...any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodCall><methodName>")
	_ = xml.EscapeText(&buf, []byte(method))
	buf.WriteString("</methodName><params>")
	for _, param := range params {
		buf.WriteString("<param>")
		encodeValue(&buf, param)
		buf.WriteString("</param>")
	}
	buf.WriteString("</params></methodCall>")
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeResponse writes a methodResponse document carrying value.
func EncodeResponse(w io.Writer, value any) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><params><param>")
	encodeValue(&buf, value)
	buf.WriteString("</param></params></methodResponse>")
	_, err := w.Write(buf.Bytes())
	return err
}

// EncodeFault writes a methodResponse document carrying a fault.
func EncodeFault(w io.Writer, f *Fault) error {
	var buf bytes.Buffer
	buf.WriteString(xml.Header)
	buf.WriteString("<methodResponse><fault>")
	encodeValue(&buf, map[string]any{"faultCode": f.Code, "faultString": f.String})
	buf.WriteString("</fault></methodResponse>")
	_, err := w.Write(buf.Bytes())
	return err
}

func encodeValue(buf *bytes.Buffer, v any) {
	buf.WriteString("<value>")
	encodeInner(buf, v)
	buf.WriteString("</value>")
}

func encodeInner(buf *bytes.Buffer, v any) {
	switch x := v.(type) {
	case nil:
		buf.WriteString("<string></string>")
		return
	case string:
		writeString(buf, x)
		return
	case bool:
		if x {
			buf.WriteString("<boolean>1</boolean>")
		} else {
			buf.WriteString("<boolean>0</boolean>")
		}
		return
	case []byte:
		buf.WriteString("<base64>")
		buf.WriteString(base64.StdEncoding.EncodeToString(x))
		buf.WriteString("</base64>")
		return
	case time.Time:
		buf.WriteString("<dateTime.iso8601>")
		buf.WriteString(x.Format(dateTimeLayout))
		buf.WriteString("</dateTime.iso8601>")
		return
	case time.Duration:
		writeString(buf, x.String())
		return
	case error:
		writeString(buf, x.Error())
		return
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Pointer, reflect.Interface:
		if rv.IsNil() {
			buf.WriteString("<string></string>")
			return
		}
		encodeInner(buf, rv.Elem().Interface())
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		writeInt(buf, rv.Int(), rv.Int() >= math.MinInt32 && rv.Int() <= math.MaxInt32)
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr:
		if rv.Uint() <= math.MaxInt32 {
			writeInt(buf, int64(rv.Uint()), true)
		} else {
			writeString(buf, strconv.FormatUint(rv.Uint(), 10))
		}
	case reflect.Float32, reflect.Float64:
		buf.WriteString("<double>")
		buf.WriteString(strconv.FormatFloat(rv.Float(), 'f', -1, 64))
		buf.WriteString("</double>")
	case reflect.String:
		writeString(buf, rv.String())
	case reflect.Bool:
		encodeInner(buf, rv.Bool())
	case reflect.Slice, reflect.Array:
		if rv.Kind() == reflect.Slice && rv.Type().Elem().Kind() == reflect.Uint8 {
			encodeInner(buf, rv.Bytes())
			return
		}
		buf.WriteString("<array><data>")
		for i := 0; i < rv.Len(); i++ {
			encodeValue(buf, rv.Index(i).Interface())
		}
		buf.WriteString("</data></array>")
	case reflect.Map:
		members := make(map[string]any, rv.Len())
		iter := rv.MapRange()
		for iter.Next() {
			members[fmt.Sprint(iter.Key().Interface())] = iter.Value().Interface()
		}
		writeStruct(buf, members)
	case reflect.Struct:
		members := map[string]any{}
		t := rv.Type()
		for i := 0; i < t.NumField(); i++ {
			if f := t.Field(i); f.IsExported() {
				members[f.Name] = rv.Field(i).Interface()
			}
		}
		writeStruct(buf, members)
	default:
		writeString(buf, fmt.Sprint(v))
	}
}

func writeString(buf *bytes.Buffer, s string) {
	buf.WriteString("<string>")
	_ = xml.EscapeText(buf, []byte(s))
	buf.WriteString("</string>")
}

// writeInt falls back to a string for values outside the XML-RPC int range.
func writeInt(buf *bytes.Buffer, n int64, fits bool) {
	if !fits {
		writeString(buf, strconv.FormatInt(n, 10))
		return
	}
	buf.WriteString("<int>")
	buf.WriteString(strconv.FormatInt(n, 10))
	buf.WriteString("</int>")
}

func writeStruct(buf *bytes.Buffer, members map[string]any) {
	names := make([]string, 0, len(members))
	for name := range members {
		names = append(names, name)
	}
	sort.Strings(names)
	buf.WriteString("<struct>")
	for _, name := range names {
		buf.WriteString("<member><name>")
		_ = xml.EscapeText(buf, []byte(name))
		buf.WriteString("</name>")
		encodeValue(buf, members[name])
		buf.WriteString("</member>")
	}
	buf.WriteString("</struct>")
}

type parser struct {
	d *xml.Decoder
}

func newParser(r io.Reader) *parser {
	d := xml.NewDecoder(r)
	d.Strict = true
	return &parser{d: d}
}

// start returns the next start element, skipping whitespace, comments and
// processing instructions.
func (p *parser) start() (xml.StartElement, error) {
	el, ok, err := p.startOrEnd("")
	if err != nil {
		return el, err
	}
	if !ok {
		return el, fmt.Errorf("unexpected end of element")
	}
	return el, nil
}

// startOrEnd returns the next start element, or ok=false when the end of
// parent is reached first.
func (p *parser) startOrEnd(parent string) (xml.StartElement, bool, error) {
	for {
		tok, err := p.d.Token()
		if err != nil {
			return xml.StartElement{}, false, fmt.Errorf("reading xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.StartElement:
			return t, true, nil
		case xml.EndElement:
			if parent != "" && t.Name.Local == parent {
				return xml.StartElement{}, false, nil
			}
			return xml.StartElement{}, false, fmt.Errorf("unexpected </%s>", t.Name.Local)
		case xml.CharData:
			if len(bytes.TrimSpace(t)) != 0 {
				return xml.StartElement{}, false, fmt.Errorf("unexpected text %q", string(t))
			}
		}
	}
}

func (p *parser) expect(name string) error {
	el, err := p.start()
	if err != nil {
		return err
	}
	if el.Name.Local != name {
		return fmt.Errorf("got <%s>, want <%s>", el.Name.Local, name)
	}
	return nil
}

func (p *parser) end(name string) error {
	el, ok, err := p.startOrEnd(name)
	if err != nil {
		return err
	}
	if ok {
		return fmt.Errorf("unexpected <%s> in <%s>", el.Name.Local, name)
	}
	return nil
}

// text collects character data up to the end of name.
func (p *parser) text(name string) (string, error) {
	var sb strings.Builder
	for {
		tok, err := p.d.Token()
		if err != nil {
			return "", fmt.Errorf("reading xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			sb.Write(t)
		case xml.StartElement:
			return "", fmt.Errorf("unexpected <%s> in <%s>", t.Name.Local, name)
		case xml.EndElement:
			return sb.String(), nil
		}
	}
}

// params parses <param> elements up to </params>.
func (p *parser) params() ([]any, error) {
	out := []any{}
	for {
		el, ok, err := p.startOrEnd("params")
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if el.Name.Local != "param" {
			return nil, fmt.Errorf("unexpected <%s> in params", el.Name.Local)
		}
		if err := p.expect("value"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
		if err := p.end("param"); err != nil {
			return nil, err
		}
	}
}

// value parses the content of a <value> element whose start was consumed.
// Untyped content is a string.
func (p *parser) value() (any, error) {
	var text []byte
	for {
		tok, err := p.d.Token()
		if err != nil {
			return nil, fmt.Errorf("reading xml: %w", err)
		}
		switch t := tok.(type) {
		case xml.CharData:
			text = append(text, t...)
		case xml.StartElement:
			v, err := p.typed(t.Name.Local)
			if err != nil {
				return nil, err
			}
			return v, p.end("value")
		case xml.EndElement:
			return string(text), nil
		}
	}
}

func (p *parser) typed(kind string) (any, error) {
	switch kind {
	case "string":
		return p.text(kind)
	case "int", "i4", "i8":
		s, err := p.text(kind)
		if err != nil {
			return nil, err
		}
		n, err := strconv.ParseInt(strings.TrimSpace(s), 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid <%s> %q", kind, s)
		}
		return int(n), nil
	case "boolean":
		s, err := p.text(kind)
		if err != nil {
			return nil, err
		}
		switch strings.TrimSpace(s) {
		case "1", "true":
			return true, nil
		case "0", "false":
			return false, nil
		}
		return nil, fmt.Errorf("invalid <boolean> %q", s)
	case "double":
		s, err := p.text(kind)
		if err != nil {
			return nil, err
		}
		f, err := strconv.ParseFloat(strings.TrimSpace(s), 64)
		if err != nil {
			return nil, fmt.Errorf("invalid <double> %q", s)
		}
		return f, nil
	case "base64":
		s, err := p.text(kind)
		if err != nil {
			return nil, err
		}
		b, err := base64.StdEncoding.DecodeString(strings.Join(strings.Fields(s), ""))
		if err != nil {
			return nil, fmt.Errorf("invalid <base64>: %w", err)
		}
		return b, nil
	case "dateTime.iso8601":
		s, err := p.text(kind)
		if err != nil {
			return nil, err
		}
		s = strings.TrimSpace(s)
		for _, layout := range dateTimeLayouts {
			if t, err := time.Parse(layout, s); err == nil {
				return t, nil
			}
		}
		return nil, fmt.Errorf("invalid <dateTime.iso8601> %q", s)
	case "nil":
		return nil, p.end(kind)
	case "array":
		return p.array()
	case "struct":
		return p.structure()
	default:
		return nil, fmt.Errorf("unsupported value type <%s>", kind)
	}
}

func (p *parser) array() ([]any, error) {
	if err := p.expect("data"); err != nil {
		return nil, err
	}
	out := []any{}
	for {
		el, ok, err := p.startOrEnd("data")
		if err != nil {
			return nil, err
		}
		if !ok {
			break
		}
		if el.Name.Local != "value" {
			return nil, fmt.Errorf("unexpected <%s> in array", el.Name.Local)
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, p.end("array")
}

func (p *parser) structure() (map[string]any, error) {
	out := map[string]any{}
	for {
		el, ok, err := p.startOrEnd("struct")
		if err != nil {
			return nil, err
		}
		if !ok {
			return out, nil
		}
		if el.Name.Local != "member" {
			return nil, fmt.Errorf("unexpected <%s> in struct", el.Name.Local)
		}
		if err := p.expect("name"); err != nil {
			return nil, err
		}
		name, err := p.text("name")
		if err != nil {
			return nil, err
		}
		if err := p.expect("value"); err != nil {
			return nil, err
		}
		v, err := p.value()
		if err != nil {
			return nil, err
		}
		out[name] = v
		if err := p.end("member"); err != nil {
			return nil, err
		}
	}
}
