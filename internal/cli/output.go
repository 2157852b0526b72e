package cli

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"reflect"
	"strings"
	"time"

	"github.com/olekukonko/tablewriter"
)

// Format represents the output format
type Format string

const (
	FormatJSON  Format = "json"
	FormatJSONL Format = "jsonl"
	FormatCSV   Format = "csv"
	FormatTSV   Format = "tsv"
	FormatHuman Format = "human"
	// FormatText renders messages and contacts as chat transcript lines.
	// Other data falls back to the human layout.
	FormatText Format = "text"
)

var validFormats = []Format{FormatJSON, FormatJSONL, FormatCSV, FormatTSV, FormatHuman, FormatText}

// IsValid checks if a format string is valid
func (f Format) IsValid() bool {
	for _, v := range validFormats {
		if f == v {
			return true
		}
	}
	return false
}

// OutputOptions controls output behavior
type OutputOptions struct {
	Format   Format
	Fields   []string // empty = all
	NoHeader bool     // CSV/TSV only
}

// Validate checks if the options are valid
func (o OutputOptions) Validate() error {
	if !o.Format.IsValid() {
		names := make([]string, len(validFormats))
		for i, f := range validFormats {
			names[i] = string(f)
		}
		return fmt.Errorf("invalid format %q, valid formats: %s", o.Format, strings.Join(names, ", "))
	}
	return nil
}

// render writes data to w in the requested format.
func render(w io.Writer, data any, opts OutputOptions) error {
	if err := opts.Validate(); err != nil {
		return err
	}

	switch opts.Format {
	case FormatJSONL:
		return renderJSONL(w, data, opts.Fields)
	case FormatCSV:
		return renderDelimited(w, data, ',', opts)
	case FormatTSV:
		return renderDelimited(w, data, '\t', opts)
	case FormatHuman, FormatText:
		return renderHuman(w, data, opts.Fields)
	default:
		return renderJSON(w, data, opts.Fields)
	}
}

func renderJSON(w io.Writer, data any, fields []string) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(project(data, fields))
}

// renderJSONL writes one object per line; slices are split into elements.
func renderJSONL(w io.Writer, data any, fields []string) error {
	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil
	}
	enc := json.NewEncoder(w)
	if !isList(v) {
		return enc.Encode(project(data, fields))
	}
	for i := range v.Len() {
		if err := enc.Encode(project(v.Index(i).Interface(), fields)); err != nil {
			return fmt.Errorf("encode item %d: %w", i, err)
		}
	}
	return nil
}

func renderDelimited(w io.Writer, data any, delimiter rune, opts OutputOptions) error {
	headers, rows := table(data, opts.Fields, csvStyle)
	if len(rows) == 0 {
		return nil
	}

	cw := csv.NewWriter(w)
	cw.Comma = delimiter
	if !opts.NoHeader && len(headers) > 0 {
		if err := cw.Write(headers); err != nil {
			return fmt.Errorf("write header: %w", err)
		}
	}
	if err := cw.WriteAll(rows); err != nil {
		return fmt.Errorf("write rows: %w", err)
	}
	return nil
}

func renderHuman(w io.Writer, data any, fields []string) error {
	v := indirect(reflect.ValueOf(data))
	switch {
	case !v.IsValid():
		_, err := fmt.Fprintln(w, "(nil)")
		return err
	case isList(v):
		return renderTable(w, data, fields)
	case v.Kind() == reflect.Struct:
		return renderPairs(w, v, fields)
	case v.Kind() == reflect.Map:
		return renderMap(w, v, fields)
	default:
		_, err := fmt.Fprintln(w, data)
		return err
	}
}

func renderTable(w io.Writer, data any, fields []string) error {
	headers, rows := table(data, fields, humanStyle)
	if len(rows) == 0 {
		_, err := fmt.Fprintln(w, "(no results)")
		return err
	}
	for i, h := range headers {
		headers[i] = strings.ToUpper(h)
	}

	tw := tablewriter.NewWriter(w)
	tw.SetHeader(headers)
	tw.SetAutoWrapText(false)
	tw.SetAutoFormatHeaders(true)
	tw.SetHeaderAlignment(tablewriter.ALIGN_LEFT)
	tw.SetAlignment(tablewriter.ALIGN_LEFT)
	tw.SetCenterSeparator("")
	tw.SetColumnSeparator("")
	tw.SetRowSeparator("")
	tw.SetHeaderLine(false)
	tw.SetBorder(false)
	tw.SetTablePadding("  ")
	tw.SetNoWhiteSpace(true)
	tw.AppendBulk(rows)
	tw.Render()
	return nil
}

// renderPairs prints one "name: value" line per struct field, names aligned.
func renderPairs(w io.Writer, v reflect.Value, fields []string) error {
	cols := columns(v.Type(), fields)
	width := 0
	for _, c := range cols {
		width = max(width, len(c.name))
	}
	for _, c := range cols {
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width+1, c.name+":", humanStyle.format(v.Field(c.index))); err != nil {
			return err
		}
	}
	return nil
}

func renderMap(w io.Writer, v reflect.Value, fields []string) error {
	wanted := fieldSet(fields)
	keys := v.MapKeys()
	width := 0
	for _, k := range keys {
		width = max(width, len(fmt.Sprint(k.Interface())))
	}
	for _, k := range keys {
		name := fmt.Sprint(k.Interface())
		if wanted != nil && !wanted[name] {
			continue
		}
		if _, err := fmt.Fprintf(w, "%-*s  %s\n", width+1, name+":", humanStyle.format(v.MapIndex(k))); err != nil {
			return err
		}
	}
	return nil
}

// column is an exported struct field selected for output.
type column struct {
	name  string
	index int
}

// columns lists the exported fields of t named by their json tag, keeping
// only those in fields when it is non-empty.
func columns(t reflect.Type, fields []string) []column {
	wanted := fieldSet(fields)
	var cols []column
	for i := range t.NumField() {
		f := t.Field(i)
		if !f.IsExported() {
			continue
		}
		name := jsonName(f)
		if name == "-" || (wanted != nil && !wanted[name]) {
			continue
		}
		cols = append(cols, column{name: name, index: i})
	}
	return cols
}

func jsonName(f reflect.StructField) string {
	tag := f.Tag.Get("json")
	if tag == "" {
		return strings.ToLower(f.Name)
	}
	name, _, _ := strings.Cut(tag, ",")
	if name == "" {
		return strings.ToLower(f.Name)
	}
	return name
}

func fieldSet(fields []string) map[string]bool {
	if len(fields) == 0 {
		return nil
	}
	set := make(map[string]bool, len(fields))
	for _, f := range fields {
		set[strings.TrimSpace(f)] = true
	}
	return set
}

func indirect(v reflect.Value) reflect.Value {
	for v.Kind() == reflect.Pointer || v.Kind() == reflect.Interface {
		if v.IsNil() {
			return reflect.Value{}
		}
		v = v.Elem()
	}
	return v
}

func isList(v reflect.Value) bool {
	return v.Kind() == reflect.Slice || v.Kind() == reflect.Array
}

// table flattens data into a header and string rows. A single struct is
// treated as a one-row list.
func table(data any, fields []string, style valueStyle) ([]string, [][]string) {
	v := indirect(reflect.ValueOf(data))
	if !v.IsValid() {
		return nil, nil
	}
	if !isList(v) {
		v = reflect.ValueOf([]any{data})
	}
	if v.Len() == 0 {
		return nil, nil
	}

	first := indirect(v.Index(0))
	if !first.IsValid() || first.Kind() != reflect.Struct {
		rows := make([][]string, 0, v.Len())
		for i := range v.Len() {
			rows = append(rows, []string{style.format(v.Index(i))})
		}
		return nil, rows
	}

	cols := columns(first.Type(), fields)
	headers := make([]string, len(cols))
	for i, c := range cols {
		headers[i] = c.name
	}

	rows := make([][]string, 0, v.Len())
	for i := range v.Len() {
		elem := indirect(v.Index(i))
		if !elem.IsValid() {
			continue
		}
		row := make([]string, len(cols))
		for j, c := range cols {
			row[j] = style.format(elem.Field(c.index))
		}
		rows = append(rows, row)
	}
	return headers, rows
}

// project reduces structs (or slices of them) to maps holding only fields.
func project(data any, fields []string) any {
	if len(fields) == 0 {
		return data
	}
	v := indirect(reflect.ValueOf(data))
	switch {
	case !v.IsValid():
		return data
	case isList(v):
		out := make([]map[string]any, 0, v.Len())
		for i := range v.Len() {
			if m := projectStruct(indirect(v.Index(i)), fields); m != nil {
				out = append(out, m)
			}
		}
		return out
	case v.Kind() == reflect.Struct:
		return projectStruct(v, fields)
	}
	return data
}

func projectStruct(v reflect.Value, fields []string) map[string]any {
	if !v.IsValid() || v.Kind() != reflect.Struct {
		return nil
	}
	out := make(map[string]any)
	for _, c := range columns(v.Type(), fields) {
		out[c.name] = v.Field(c.index).Interface()
	}
	return out
}

// valueStyle controls how scalar values are rendered in tables.
type valueStyle struct {
	TimeFormat string
	Empty      string
	True       string
	False      string
	MaxRunes   int // 0 = no truncation
	OneLine    bool
}

var (
	humanStyle = valueStyle{
		TimeFormat: "2006-01-02 15:04",
		Empty:      "-",
		True:       "yes",
		False:      "no",
		MaxRunes:   60,
		OneLine:    true,
	}
	csvStyle = valueStyle{
		TimeFormat: time.RFC3339,
		True:       "true",
		False:      "false",
	}
)

func (s valueStyle) format(v reflect.Value) string {
	v = indirect(v)
	if !v.IsValid() {
		return s.Empty
	}

	switch t := v.Interface().(type) {
	case time.Time:
		if t.IsZero() {
			return s.Empty
		}
		return t.Format(s.TimeFormat)
	case bool:
		if t {
			return s.True
		}
		return s.False
	case string:
		return s.text(t)
	default:
		return s.text(fmt.Sprint(t))
	}
}

func (s valueStyle) text(str string) string {
	if str == "" {
		return s.Empty
	}
	if s.OneLine {
		str = strings.ReplaceAll(str, "\n", " ")
	}
	if s.MaxRunes > 0 {
		if r := []rune(str); len(r) > s.MaxRunes {
			return string(r[:s.MaxRunes-3]) + "..."
		}
	}
	return str
}
