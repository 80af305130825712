package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/cookbook/odm"
)

// queryFlags adds the flags shared by list, search and export
func queryFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.StringArray("filter", nil, "Equality filter field=value (repeatable)")
	flags.String("sort", "", "Sort keys, e.g. servings:desc,title")
	flags.Int("limit", -1, "Maximum number of documents (-1 for all)")
	flags.Int("skip", 0, "Documents to skip")
	flags.StringSlice("populate", nil, "Reference fields to resolve")
}

// splitPairs parses field=value arguments
func splitPairs(pairs []string) (map[string]string, error) {
	out := make(map[string]string, len(pairs))
	for _, pair := range pairs {
		field, value, ok := strings.Cut(pair, "=")
		field = strings.TrimSpace(field)
		if !ok || field == "" {
			return nil, fmt.Errorf("expected field=value, got %q", pair)
		}
		out[field] = value
	}
	return out, nil
}

func filterFlag(cmd *cobra.Command, m *odm.Model) (odm.Filter, error) {
	pairs, _ := cmd.Flags().GetStringArray("filter")
	params, err := splitPairs(pairs)
	if err != nil {
		return nil, err
	}
	return m.Schema().ParseFilter(params)
}

// buildQuery turns the query flags into a Find, or a Search when text is set
func buildQuery(cmd *cobra.Command, m *odm.Model, text string) (*odm.Query, error) {
	filter, err := filterFlag(cmd, m)
	if err != nil {
		return nil, err
	}

	var q *odm.Query
	if text != "" {
		q = m.Search(text, filter)
	} else {
		q = m.Find(filter)
	}

	flags := cmd.Flags()
	if spec, _ := flags.GetString("sort"); spec != "" {
		keys, err := odm.ParseSort(spec)
		if err != nil {
			return nil, err
		}
		q.Sort(keys...)
	}
	limit, _ := flags.GetInt("limit")
	skip, _ := flags.GetInt("skip")
	if skip < 0 {
		return nil, fmt.Errorf("skip must not be negative")
	}
	populate, _ := flags.GetStringSlice("populate")
	return q.Limit(limit).Skip(skip).Populate(populate...), nil
}

// assignments parses field=value pairs into typed field values
func assignments(m *odm.Model, pairs []string) (map[string]interface{}, error) {
	params, err := splitPairs(pairs)
	if err != nil {
		return nil, err
	}
	fields := make(map[string]interface{}, len(params))
	for name, raw := range params {
		f, ok := m.Schema().Field(name)
		if !ok {
			return nil, fmt.Errorf("unknown field %q", name)
		}
		v, err := f.Parse(raw)
		if err != nil {
			return nil, fmt.Errorf("field %s: %w", name, err)
		}
		fields[name] = v
	}
	return fields, nil
}
