package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/natefinch/atomic"
	"github.com/spf13/cobra"
	"github.com/tailscale/hujson"

	"github.com/arthur-debert/cookbook/formats"
	"github.com/arthur-debert/cookbook/odm"
)

// parseImport reads a JSONC document holding either an array of records for
// one collection or an object mapping collection names to record arrays
func parseImport(data []byte, collection string) (map[string][]map[string]interface{}, error) {
	standardized, err := hujson.Standardize(data)
	if err != nil {
		return nil, fmt.Errorf("invalid JSONC: %w", err)
	}

	trimmed := strings.TrimSpace(string(standardized))
	if strings.HasPrefix(trimmed, "[") {
		var records []map[string]interface{}
		if err := json.Unmarshal(standardized, &records); err != nil {
			return nil, fmt.Errorf("invalid JSON: %w", err)
		}
		return map[string][]map[string]interface{}{collection: records}, nil
	}

	var byCollection map[string][]map[string]interface{}
	if err := json.Unmarshal(standardized, &byCollection); err != nil {
		return nil, fmt.Errorf("invalid JSON: %w", err)
	}
	return byCollection, nil
}

// parseDocument reads one document written by export. Fields unknown to
// the collection are dropped and reference labels are turned back into ids.
func (a *app) parseDocument(ctx context.Context, f *formats.DocumentFormat, data []byte, collection string) (map[string]interface{}, error) {
	m, err := a.registry.Lookup(collection)
	if err != nil {
		return nil, err
	}
	parsed, err := formats.Parse(f, string(data), titleField(m), "description")
	if err != nil {
		return nil, err
	}

	schema := m.Schema()
	rec := make(map[string]interface{}, len(parsed))
	for k, v := range parsed {
		field, ok := schema.Field(k)
		if !ok {
			continue
		}
		if field.Ref != "" {
			if v, err = a.resolveRefs(ctx, field.Ref, v); err != nil {
				return nil, fmt.Errorf("%s: %w", k, err)
			}
		}
		rec[k] = v
	}
	return rec, nil
}

func (a *app) resolveRefs(ctx context.Context, collection string, v interface{}) (interface{}, error) {
	target, err := a.registry.Lookup(collection)
	if err != nil {
		return nil, err
	}
	switch x := v.(type) {
	case string:
		return resolveRef(ctx, target, x)
	case []interface{}:
		out := make([]interface{}, len(x))
		for i, el := range x {
			s, ok := el.(string)
			if !ok {
				out[i] = el
				continue
			}
			if out[i], err = resolveRef(ctx, target, s); err != nil {
				return nil, err
			}
		}
		return out, nil
	}
	return v, nil
}

// resolveRef accepts either an id of target or the label export wrote
func resolveRef(ctx context.Context, target *odm.Model, s string) (string, error) {
	d, err := target.FindByID(s).ExecOne(ctx)
	if err != nil {
		return "", err
	}
	if d != nil {
		return s, nil
	}
	d, err = target.FindOne(odm.Filter{titleField(target): s}).ExecOne(ctx)
	if err != nil {
		return "", err
	}
	if d == nil {
		return "", fmt.Errorf("no %s matches %q", target.Name(), s)
	}
	return d.ID(), nil
}

func (a *app) importCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "import <file>...",
		Short: "Create documents from JSON, markdown or plain text files",
		Long: `Create documents from JSON files, comments and trailing commas allowed.
A JSON file holds an array of records for --collection, or an object mapping
collection names to arrays. Records keeping an existing id replace it.

Files ending in .md or .txt hold one document each, as written by export,
and are imported into --collection.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			collection, _ := cmd.Flags().GetString("collection")
			byCollection := make(map[string][]map[string]interface{})
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				if f, ok := formats.ForFile(path); ok {
					rec, err := a.parseDocument(cmd.Context(), f, data, collection)
					if err != nil {
						return fmt.Errorf("%s: %w", path, err)
					}
					byCollection[collection] = append(byCollection[collection], rec)
					continue
				}
				parsed, err := parseImport(data, collection)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				for name, records := range parsed {
					byCollection[name] = append(byCollection[name], records...)
				}
			}

			names := make([]string, 0, len(byCollection))
			for name := range byCollection {
				names = append(names, name)
			}
			sort.Strings(names)

			// Validate everything before the first write
			docs := make(map[string][]*odm.Document, len(names))
			for _, name := range names {
				m, err := a.registry.Lookup(name)
				if err != nil {
					return err
				}
				for i, rec := range byCollection[name] {
					d := m.New(rec)
					if errs := d.Validate(); errs != nil {
						return fmt.Errorf("%s record %d: %w", name, i, errs)
					}
					docs[name] = append(docs[name], d)
				}
			}

			for _, name := range names {
				for _, d := range docs[name] {
					if err := a.save(cmd, d); err != nil {
						return err
					}
				}
				a.logger.Info("imported", "collection", name, "count", len(docs[name]))
				if _, err := fmt.Fprintf(a.out, "imported %d %s\n", len(docs[name]), name); err != nil {
					return err
				}
			}
			return nil
		},
	}
	collectionFlag(cmd)
	cmd.Flags().Bool("draft", false, "Import as local drafts")
	return cmd
}

// exportRecord projects d for rendering: references show their label
func exportRecord(cmd *cobra.Command, d *odm.Document) (map[string]interface{}, error) {
	rec := d.ToObject()
	schema := d.Model().Schema()
	for _, path := range schema.Paths() {
		f, _ := schema.Field(path)
		if f.Ref == "" {
			continue
		}
		if err := d.Populate(cmd.Context(), path); err != nil {
			return nil, err
		}
		if _, ok := rec[path]; ok {
			rec[path] = display(d, path)
		}
	}
	delete(rec, "id")
	return rec, nil
}

func titleField(m *odm.Model) string {
	if _, ok := m.Schema().Field("title"); ok {
		return "title"
	}
	return "name"
}

func (a *app) exportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export",
		Short: "Render documents as markdown or plain text",
		Long: `Render documents with a document format. With --dir each document is
written to its own file, otherwise all are printed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			formatName, _ := cmd.Flags().GetString("as")
			f, err := formats.Get(formatName)
			if err != nil {
				return err
			}
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			q, err := buildQuery(cmd, m, "")
			if err != nil {
				return err
			}
			docs, err := q.ExecAll(cmd.Context())
			if err != nil {
				return err
			}

			dir, _ := cmd.Flags().GetString("dir")
			if dir != "" {
				if err := os.MkdirAll(dir, 0755); err != nil {
					return err
				}
			}

			titleKey := titleField(m)
			for i, d := range docs {
				rec, err := exportRecord(cmd, d)
				if err != nil {
					return err
				}
				content := formats.Record(f, rec, titleKey, "description")

				if dir == "" {
					if i > 0 {
						fmt.Fprintln(a.out)
					}
					if _, err := fmt.Fprint(a.out, content); err != nil {
						return err
					}
					continue
				}

				title, _ := rec[titleKey].(string)
				path := filepath.Join(dir, formats.Filename(f, d.ID(), title))
				if err := atomic.WriteFile(path, strings.NewReader(content)); err != nil {
					return fmt.Errorf("write %s: %w", path, err)
				}
				a.logger.Debug("exported", "id", d.ID(), "path", path)
			}

			if dir != "" {
				_, err = fmt.Fprintf(a.out, "exported %d %s to %s\n", len(docs), plural(len(docs), "document"), dir)
			}
			return err
		},
	}
	collectionFlag(cmd)
	queryFlags(cmd)
	cmd.Flags().String("as", "markdown", "Document format ("+strings.Join(formats.List(), "|")+")")
	cmd.Flags().String("dir", "", "Write one file per document into this directory")
	return cmd
}
