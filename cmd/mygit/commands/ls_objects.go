package commands

import (
	"fmt"
	"text/tabwriter"
	"time"

	"mygit/pkg/core"
	"mygit/pkg/types"

	"github.com/spf13/cobra"
)

var (
	lsObjectsType  string
	lsObjectsLimit int
)

var lsObjectsCmd = &cobra.Command{
	Use:   "ls-objects",
	Short: "List written objects from the catalog",
	Long:  `List objects recorded in the SQL catalog, newest first. Requires catalog.enabled.`,
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if MG.Catalog == nil {
			return types.Errorf(types.InvalidInput, "ls-objects", "catalog is disabled (set catalog.enabled=true)")
		}

		var typ core.ObjectType
		if lsObjectsType != "" {
			t, err := core.ParseObjectType(lsObjectsType)
			if err != nil {
				return types.Errorf(types.InvalidInput, "ls-objects", "unknown object type %q", lsObjectsType)
			}
			typ = t
		}

		recs, err := MG.Catalog.List(cmd.Context(), typ, lsObjectsLimit)
		if err != nil {
			return err
		}

		// 使用 tabwriter 对齐输出
		tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "ID\tTYPE\tSIZE\tENTRIES\tCREATED")
		for _, rec := range recs {
			entries := "-"
			if names, err := rec.EntryNames(); err == nil && rec.Type == string(core.TypeTree) {
				entries = fmt.Sprintf("%d", len(names))
			}
			fmt.Fprintf(tw, "%s\t%s\t%d\t%s\t%s\n",
				rec.ID, rec.Type, rec.Size, entries, rec.CreatedAt.Local().Format(time.DateTime))
		}
		return tw.Flush()
	},
}

func init() {
	lsObjectsCmd.Flags().StringVar(&lsObjectsType, "type", "", "Only list objects of this type (blob or tree)")
	lsObjectsCmd.Flags().IntVarP(&lsObjectsLimit, "limit", "n", 0, "Maximum number of objects to list (0 = all)")
	rootCmd.AddCommand(lsObjectsCmd)
}
