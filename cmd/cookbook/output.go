package main

import (
	"encoding/json"
	"fmt"
	"io"
	"sort"
	"strings"
	"text/tabwriter"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/search"
)

const (
	formatTable = "table"
	formatJSON  = "json"
	formatYAML  = "yaml"
)

// printer writes command results in the --format the user picked
type printer struct {
	out    io.Writer
	format string
}

func (a *app) printer() (*printer, error) {
	format := a.viper.GetString("format")
	switch format {
	case formatTable, formatJSON, formatYAML:
		return &printer{out: a.out, format: format}, nil
	}
	return nil, fmt.Errorf("unknown output format: %q (supported: table, json, yaml)", format)
}

// encode writes v as JSON or YAML. YAML goes through JSON first so both
// formats show the same field names and value shapes.
func (p *printer) encode(v interface{}) error {
	if p.format == formatJSON {
		encoder := json.NewEncoder(p.out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(v)
	}

	data, err := json.Marshal(v)
	if err != nil {
		return err
	}
	var generic interface{}
	if err := json.Unmarshal(data, &generic); err != nil {
		return err
	}
	encoder := yaml.NewEncoder(p.out)
	encoder.SetIndent(2)
	if err := encoder.Encode(generic); err != nil {
		return err
	}
	return encoder.Close()
}

// state labels a document's place in the draft overlay
func state(d *odm.Document) string {
	switch {
	case d.IsDraft() && d.IsNew():
		return "draft (new)"
	case d.IsDraft():
		return "draft"
	}
	return ""
}

// cell renders a field value for a table
func cell(v interface{}) string {
	switch x := v.(type) {
	case nil:
		return ""
	case string:
		return x
	case float64:
		return fmt.Sprintf("%g", x)
	case time.Time:
		return x.Format("2006-01-02 15:04")
	case []interface{}:
		parts := make([]string, len(x))
		for i, el := range x {
			parts[i] = cell(el)
		}
		return strings.Join(parts, ", ")
	case map[string]interface{}:
		data, _ := json.Marshal(x)
		return string(data)
	}
	return fmt.Sprint(v)
}

// columns returns the table columns of m: the searchable fields, or the
// requested ones
func columns(m *odm.Model, requested []string) []string {
	if len(requested) > 0 {
		return requested
	}
	return m.Schema().SearchableFields()
}

// documents prints docs; decorate, when set, rewrites each table cell
func (p *printer) documents(m *odm.Model, docs []*odm.Document, cols []string, decorate func(string) string) error {
	if p.format != formatTable {
		objs := make([]map[string]interface{}, len(docs))
		for i, d := range docs {
			objs[i] = d.Expanded()
		}
		return p.encode(objs)
	}

	cols = columns(m, cols)
	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	header := append([]string{"ID"}, upper(cols)...)
	fmt.Fprintln(w, strings.Join(append(header, "STATE"), "\t"))
	for _, d := range docs {
		row := []string{d.ID()}
		for _, c := range cols {
			text := cell(display(d, c))
			if decorate != nil {
				text = decorate(text)
			}
			row = append(row, text)
		}
		row = append(row, state(d))
		fmt.Fprintln(w, strings.Join(row, "\t"))
	}
	return w.Flush()
}

// document prints one document as FIELD/VALUE rows or as an object
func (p *printer) document(d *odm.Document) error {
	if p.format != formatTable {
		return p.encode(d.Expanded())
	}

	obj := d.ToObject()
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	for _, k := range keys {
		fmt.Fprintf(w, "%s\t%s\n", k, cell(display(d, k)))
	}
	if s := state(d); s != "" {
		fmt.Fprintf(w, "state\t%s\n", s)
	}
	return w.Flush()
}

// explanation is one searchable field of a ranked document and the match
// tests it passed, strictest first
type explanation struct {
	ID      string             `json:"id"`
	Field   string             `json:"field"`
	Matches []search.MatchType `json:"matches"`
}

// explain prints, in ranking order, why each document matched text
func (p *printer) explain(m *odm.Model, docs []*odm.Document, text string) error {
	scorer := search.NewScorer(text)
	rows := []explanation{}
	for _, d := range docs {
		for _, field := range m.Schema().SearchableFields() {
			if matches := scorer.Matches(cell(display(d, field))); len(matches) > 0 {
				rows = append(rows, explanation{ID: d.ID(), Field: field, Matches: matches})
			}
		}
	}
	if p.format != formatTable {
		return p.encode(rows)
	}

	w := tabwriter.NewWriter(p.out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tFIELD\tMATCHES")
	for _, row := range rows {
		names := make([]string, len(row.Matches))
		for i, mt := range row.Matches {
			names[i] = string(mt)
		}
		fmt.Fprintf(w, "%s\t%s\t%s\n", row.ID, row.Field, strings.Join(names, ","))
	}
	return w.Flush()
}

// display returns a field for showing: populated references show their
// name or title instead of their id
func display(d *odm.Document, path string) interface{} {
	v := d.Get(path)
	switch x := v.(type) {
	case *odm.Document:
		return label(x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			if ref, ok := el.(*odm.Document); ok {
				out[i] = label(ref)
				continue
			}
			out[i] = el
		}
		return out
	}
	return d.ToObject()[path]
}

func label(d *odm.Document) string {
	for _, field := range []string{"name", "title"} {
		if s, ok := d.Get(field).(string); ok && s != "" {
			return s
		}
	}
	return d.ID()
}

func upper(fields []string) []string {
	out := make([]string, len(fields))
	for i, f := range fields {
		out[i] = strings.ToUpper(f)
	}
	return out
}
