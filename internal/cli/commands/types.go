package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/conduit-lang/contenttype/internal/cli/ui"
	"github.com/conduit-lang/contenttype/internal/content"
)

func newTypesCommand(flags *globalFlags) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "types",
		Short: "Manage content types and taxonomies",
	}
	cmd.AddCommand(newTypesListCommand(flags))
	cmd.AddCommand(newTypesAddCommand(flags))
	cmd.AddCommand(newTypesDeleteCommand(flags))
	return cmd
}

func newTypesListCommand(flags *globalFlags) *cobra.Command {
	var kind, status string

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List content types",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			types, err := a.Engine.GetContentTypes(ctx, content.ContentTypeQuery{
				Kind:   content.Kind(kind),
				Status: status,
			})
			if err != nil {
				return err
			}

			table := ui.NewTable(cmd.OutOrStdout(), "ID", "KIND", "NAME", "SLUG", "STATUS", "FIELDS")
			for _, ct := range types {
				table.AddRow(formatID(ct.ID), string(ct.Kind), ct.Name, ct.Slug, ct.Status, strings.Join(ct.Fields, ","))
			}
			table.Render()
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "only list this kind (content|taxonomy)")
	cmd.Flags().StringVar(&status, "status", "", "only list this status")
	return cmd
}

func newTypesAddCommand(flags *globalFlags) *cobra.Command {
	var (
		kind, slug, status string
		fields             []string
	)
	boolFlags := map[string]**bool{}
	in := content.ContentTypeInput{}
	boolFlags["hierarchical"] = &in.Hierarchical
	boolFlags["archive"] = &in.HasArchive
	boolFlags["page"] = &in.HasPage
	boolFlags["comments"] = &in.HasComments
	boolFlags["categories"] = &in.HasCategories
	boolFlags["tags"] = &in.HasTags

	cmd := &cobra.Command{
		Use:   "add <name>",
		Short: "Declare a content type or taxonomy",
		Example: `  contenttype types add Post --archive --categories --tags
  contenttype types add Genre --kind taxonomy --fields name,description,slug,color`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := flags.context(cmd.Context())
			a, err := flags.openApp(ctx)
			if err != nil {
				return err
			}
			defer a.Close()

			in.Name = args[0]
			in.Kind = content.Kind(kind)
			in.Slug = slug
			in.Status = status
			in.Fields = fields
			for name, target := range boolFlags {
				if cmd.Flags().Changed(name) {
					v, _ := cmd.Flags().GetBool(name)
					*target = content.Ptr(v)
				}
			}

			ct, err := a.Engine.AddContentType(ctx, in)
			if err != nil {
				return err
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "created %s %q (ID %d, slug %s)", ct.Kind, ct.Name, ct.ID, ct.Slug)
			return nil
		},
	}

	cmd.Flags().StringVar(&kind, "kind", string(content.KindContent), "content or taxonomy")
	cmd.Flags().StringVar(&slug, "slug", "", "slug (default derived from the name)")
	cmd.Flags().StringVar(&status, "status", "", "active, inactive or builtin (default active)")
	cmd.Flags().StringSliceVar(&fields, "fields", nil, "declared fields (default per kind)")
	cmd.Flags().Bool("hierarchical", false, "items may have parents")
	cmd.Flags().Bool("archive", false, "serve an archive at the type slug")
	cmd.Flags().Bool("page", false, "serve items at the site root")
	cmd.Flags().Bool("comments", false, "enable comments")
	cmd.Flags().Bool("categories", false, "enable categories")
	cmd.Flags().Bool("tags", false, "enable tags")
	return cmd
}

func newTypesDeleteCommand(flags *globalFlags) *cobra.Command {
	return &cobra.Command{
		Use:   "delete <id|slug>",
		Short: "Delete a content type with all of its content and storage",
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
			if err := a.Engine.DeleteContentType(ctx, ct.ID); err != nil {
				return fmt.Errorf("failed to delete %s: %w", ct.Slug, err)
			}
			ui.WriteSuccess(cmd.OutOrStdout(), "deleted %s %q", ct.Kind, ct.Name)
			return nil
		},
	}
}
