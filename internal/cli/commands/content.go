package commands

import (
	"fmt"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/contenttype/internal/cli/ui"
	"github.com/conduit-lang/contenttype/internal/content"
	"github.com/conduit-lang/contenttype/internal/storage"
)

func newContentCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "content",
		Short: "Manage content items",
	}
	cmd.AddCommand(newContentAddCommand(flags))
	cmd.AddCommand(newContentGetCommand(flags))
	cmd.AddCommand(newContentListCommand(flags))
	cmd.AddCommand(newContentDeleteCommand(flags))
	return cmd
}

func newContentAddCommand(flags *globalFlags) *cobra.Command {
	var (
		title, status, slug string
		parent              int64
		fields              map[string]string
	)

	cmd := &cobra.Command{
		Use:     "add <type>",
		Short:   "Add a content item",
		Example: `  contenttype --actor 1 content add post --title "Hello World" --status public --field description="First post"`,
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ct, err := findType(ctx, a.Engine, args[0])
			if err != nil {
				return err
			}

			values := make(map[string]any, len(fields)+1)
			for k, v := range fields {
				values[k] = v
			}
			if title != "" {
				values["title"] = title
			}

			in := content.ContentInput{TypeID: ct.ID, Status: status, Slug: slug, Fields: values}
			if cmd.Flags().Changed("parent") {
				in.Parent = content.Ptr(parent)
			}

			c, err := a.Engine.AddContent(ctx, in)
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "created %s %d at %s", ct.Slug, c.ID, permalinkOrSlug(c))
			return nil
		},
	}

	cmd.Flags().StringVar(&title, "title", "", "title")
	cmd.Flags().StringVar(&status, "status", content.StatusDraft, "draft, pending, private or public")
	cmd.Flags().StringVar(&slug, "slug", "", "slug (default derived from the title)")
	cmd.Flags().Int64Var(&parent, "parent", 0, "parent item ID")
	cmd.Flags().StringToStringVar(&fields, "field", nil, "declared field value, as name=value")
	return cmd
}

func newContentGetCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "get <type> <id|slug>",
		Short: "Show a content item",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ct, err := findType(ctx, a.Engine, args[0])
			if err != nil {
				return err
			}
			c, err := findContent(ctx, a.Engine, ct, args[1])
			if err != nil {
				return err
			}

			kv := ui.NewKeyValueTable(cmd.OutOrStdout())
			kv.AddRow("ID", formatID(c.ID))
			kv.AddRow("Type", ct.Slug)
			kv.AddRow("Status", c.Status)
			kv.AddRow("Slug", c.Slug)
			kv.AddRow("Permalink", c.Permalink)
			kv.AddRow("Parent", formatID(c.Parent))
			kv.AddRow("Created", c.Created.Format(time.RFC3339))
			kv.AddRow("Updated", c.Updated.Format(time.RFC3339))

			names := make([]string, 0, len(c.Fields))
			for name := range c.Fields {
				names = append(names, name)
			}
			sort.Strings(names)
			for _, name := range names {
				kv.AddRow(name, storage.String(c.Fields[name]))
			}
			kv.Render()
			return nil
		},
	}
}

func newContentListCommand(flags *globalFlags) *cobra.Command {
	var (
		statuses      []string
		limit, offset int
	)

	cmd := &cobra.Command{
		Use:   "list <type>",
		Short: "List content items of a type",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ct, err := findType(ctx, a.Engine, args[0])
			if err != nil {
				return err
			}

			q := content.ContentQuery{
				TypeID:  ct.ID,
				Status:  statuses,
				OrderBy: storage.ColumnID,
				Limit:   limit,
				Offset:  offset,
			}
			items, err := a.Engine.GetContents(ctx, q)
			if err != nil {
				return err
			}
			total, err := a.Engine.CountContents(ctx, q)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			table := ui.NewTable(out, "ID", "STATUS", "SLUG", "TITLE", "PERMALINK")
			for _, c := range items {
				table.AddRow(formatID(c.ID), c.Status, c.Slug, c.Title(), c.Permalink)
			}
			table.Render()
			fmt.Fprintf(out, "%d of %d\n", len(items), total)
			return nil
		},
	}

	cmd.Flags().StringSliceVar(&statuses, "status", nil, "only list these statuses")
	cmd.Flags().IntVar(&limit, "limit", 0, "maximum items (0 lists all)")
	cmd.Flags().IntVar(&offset, "offset", 0, "items to skip")
	return cmd
}

func newContentDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <type> <id|slug>",
		Short: "Delete a content item; its children move up to its parent",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			ct, err := findType(ctx, a.Engine, args[0])
			if err != nil {
				return err
			}
			c, err := findContent(ctx, a.Engine, ct, args[1])
			if err != nil {
				return err
			}
			if err := a.Engine.DeleteContent(ctx, ct.ID, c.ID); err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "deleted %s %d", ct.Slug, c.ID)
			return nil
		},
	}
}

func permalinkOrSlug(c *content.Content) string {
	if c.Permalink != "" {
		return c.Permalink
	}
	return c.Slug
}
