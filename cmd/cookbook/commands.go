package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/arthur-debert/cookbook/odm"
	"github.com/arthur-debert/cookbook/search"
)

func (a *app) listCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
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
			p, err := a.printer()
			if err != nil {
				return err
			}
			cols, _ := cmd.Flags().GetStringSlice("columns")
			return p.documents(m, docs, cols, nil)
		},
	}
	collectionFlag(cmd)
	queryFlags(cmd)
	cmd.Flags().StringSlice("columns", nil, "Table columns (default: searchable fields)")
	return cmd
}

func (a *app) searchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "search <text>",
		Short: "Search documents by relevance",
		Long: `Rank documents by how well their searchable fields match the text.
Whole-word matches outrank prefixes, prefixes outrank substrings, and exact
accents outrank accent-insensitive matches.`,
		Args: cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			text := strings.Join(args, " ")
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			q, err := buildQuery(cmd, m, text)
			if err != nil {
				return err
			}
			docs, err := q.ExecAll(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}

			if explain, _ := cmd.Flags().GetBool("explain"); explain {
				return p.explain(m, docs, text)
			}

			var decorate func(string) string
			if marker, _ := cmd.Flags().GetString("highlight"); marker != "" {
				decorate = func(s string) string {
					return search.Highlight(s, text, marker, marker)
				}
			}
			return p.documents(m, docs, nil, decorate)
		},
	}
	collectionFlag(cmd)
	queryFlags(cmd)
	cmd.Flags().String("highlight", "**", "Marker around matches in table output (empty to disable)")
	cmd.Flags().Bool("explain", false, "List which match tests each searchable field passed")
	return cmd
}

func (a *app) countCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "count",
		Short: "Count matching documents",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			filter, err := filterFlag(cmd, m)
			if err != nil {
				return err
			}
			q := m.Count(filter)
			if text, _ := cmd.Flags().GetString("search"); text != "" {
				q = m.Search(text, filter)
			}
			n, err := q.ExecCount(cmd.Context())
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			if p.format == formatTable {
				_, err = fmt.Fprintln(a.out, n)
				return err
			}
			return p.encode(map[string]int{"count": n})
		},
	}
	collectionFlag(cmd)
	cmd.Flags().StringArray("filter", nil, "Equality filter field=value (repeatable)")
	cmd.Flags().String("search", "", "Count only documents matching this text")
	return cmd
}

// find loads one document or returns ErrNotFound
func (a *app) find(cmd *cobra.Command, m *odm.Model, id string, populate ...string) (*odm.Document, error) {
	d, err := m.FindByID(id).Populate(populate...).ExecOne(cmd.Context())
	if err != nil {
		return nil, err
	}
	if d == nil {
		return nil, fmt.Errorf("%s %s: %w", m.Name(), id, odm.ErrNotFound)
	}
	return d, nil
}

func (a *app) showCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Show one document",
		Args:  exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			populate, _ := cmd.Flags().GetStringSlice("populate")
			d, err := a.find(cmd, m, args[0], populate...)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.document(d)
		},
	}
	collectionFlag(cmd)
	cmd.Flags().StringSlice("populate", nil, "Reference fields to resolve")
	return cmd
}

// save validates d and saves it, as a draft when --draft is set
func (a *app) save(cmd *cobra.Command, d *odm.Document) error {
	if errs := d.Validate(); errs != nil {
		return fmt.Errorf("%s %s: %w", d.Model().Name(), d.ID(), errs)
	}
	asDraft, _ := cmd.Flags().GetBool("draft")
	return d.Save(cmd.Context(), odm.SaveOptions{AsDraft: asDraft})
}

func (a *app) addCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "add",
		Short: "Create a document",
		Example: `  cookbook add --set title="Tarte tatin" --set servings=6 --set tags=pommes,automne
  cookbook add -c categories --set name=Desserts`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			pairs, _ := cmd.Flags().GetStringArray("set")
			fields, err := assignments(m, pairs)
			if err != nil {
				return err
			}

			d := m.New(fields)
			if err := a.save(cmd, d); err != nil {
				return err
			}
			a.logger.Info("document added", "collection", m.Name(), "id", d.ID(), "draft", d.IsDraft())

			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.document(d)
		},
	}
	collectionFlag(cmd)
	cmd.Flags().StringArray("set", nil, "Field value field=value (repeatable)")
	cmd.Flags().Bool("draft", false, "Keep the document as a local draft")
	return cmd
}

func (a *app) editCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "edit <id>",
		Short: "Change fields of a document",
		Long: `Change fields of a document and save it. Without --draft the document is
committed to the remote store, which also publishes a pending draft.`,
		Args: exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			pairs, _ := cmd.Flags().GetStringArray("set")
			fields, err := assignments(m, pairs)
			if err != nil {
				return err
			}
			unset, _ := cmd.Flags().GetStringSlice("unset")
			for _, name := range unset {
				if name == "id" {
					return fmt.Errorf("id cannot be unset")
				}
				if _, ok := m.Schema().Field(name); !ok {
					return fmt.Errorf("unknown field %q", name)
				}
			}
			if v, ok := fields["id"]; ok && v != args[0] {
				return fmt.Errorf("id cannot be changed")
			}

			d, err := a.find(cmd, m, args[0])
			if err != nil {
				return err
			}
			d.Assign(fields)
			for _, name := range unset {
				d.Set(name, nil)
			}
			modified := d.ModifiedPaths()
			if err := a.save(cmd, d); err != nil {
				return err
			}
			a.logger.Info("document edited", "collection", m.Name(), "id", d.ID(),
				"fields", modified, "draft", d.IsDraft())

			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.document(d)
		},
	}
	collectionFlag(cmd)
	cmd.Flags().StringArray("set", nil, "Field value field=value (repeatable)")
	cmd.Flags().StringSlice("unset", nil, "Fields to clear")
	cmd.Flags().Bool("draft", false, "Keep the change as a local draft")
	return cmd
}

func (a *app) deleteCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "delete <id>",
		Short: "Delete a document",
		Long: `Delete a document. When the document has a pending draft only the draft is
discarded and the committed version stays.`,
		Args: exactlyOneID,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			d, err := a.find(cmd, m, args[0])
			if err != nil {
				return err
			}
			if err := d.Delete(cmd.Context()); err != nil {
				return err
			}
			a.logger.Info("document deleted", "collection", m.Name(), "id", d.ID(), "draft", d.IsDraft())

			what := "deleted"
			if d.IsDraft() {
				what = "discarded draft"
			}
			_, err = fmt.Fprintf(a.out, "%s %s\n", what, d.ID())
			return err
		},
	}
	collectionFlag(cmd)
	return cmd
}

// pendingDrafts returns the draft documents of m
func pendingDrafts(cmd *cobra.Command, m *odm.Model) ([]*odm.Document, error) {
	docs, err := m.Find(nil).ExecAll(cmd.Context())
	if err != nil {
		return nil, err
	}
	var drafts []*odm.Document
	for _, d := range docs {
		if d.IsDraft() {
			drafts = append(drafts, d)
		}
	}
	return drafts, nil
}

func (a *app) draftsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "drafts",
		Short: "List unpublished drafts",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			drafts, err := pendingDrafts(cmd, m)
			if err != nil {
				return err
			}
			p, err := a.printer()
			if err != nil {
				return err
			}
			return p.documents(m, drafts, nil, nil)
		},
	}
	collectionFlag(cmd)
	return cmd
}

func (a *app) publishCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "publish [id...]",
		Short: "Commit drafts to the remote store",
		Long:  `Commit the named drafts, or every draft of the collection with --all.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			all, _ := cmd.Flags().GetBool("all")
			if all == (len(args) > 0) {
				return fmt.Errorf("name the drafts to publish or pass --all")
			}

			m, err := a.model(cmd)
			if err != nil {
				return err
			}
			drafts, err := pendingDrafts(cmd, m)
			if err != nil {
				return err
			}

			selected := drafts
			if !all {
				byID := make(map[string]*odm.Document, len(drafts))
				for _, d := range drafts {
					byID[d.ID()] = d
				}
				selected = nil
				for _, id := range args {
					d, ok := byID[id]
					if !ok {
						return fmt.Errorf("%s %s has no draft: %w", m.Name(), id, odm.ErrNotFound)
					}
					selected = append(selected, d)
				}
			}

			for _, d := range selected {
				if errs := d.Validate(); errs != nil {
					return fmt.Errorf("%s %s: %w", m.Name(), d.ID(), errs)
				}
				if err := d.Save(cmd.Context(), odm.SaveOptions{}); err != nil {
					return err
				}
				a.logger.Info("draft published", "collection", m.Name(), "id", d.ID())
			}
			_, err = fmt.Fprintf(a.out, "published %d %s\n", len(selected), plural(len(selected), "draft"))
			return err
		},
	}
	collectionFlag(cmd)
	cmd.Flags().Bool("all", false, "Publish every draft of the collection")
	return cmd
}

func plural(n int, word string) string {
	if n == 1 {
		return word
	}
	return word + "s"
}
