package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mooddine/internal/models"
)

var moodsCmd = &cobra.Command{
	Use:   "moods",
	Short: "List mood suggestions and example searches",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		out := cmd.OutOrStdout()
		theme := themeFor(out)

		fmt.Fprintln(out, theme.titleStyle().Render("Moods"))
		for _, m := range models.MoodSuggestions {
			fmt.Fprintf(out, "  • %s\n", m)
		}
		fmt.Fprintln(out)
		fmt.Fprintln(out, theme.titleStyle().Render("Try searching for"))
		for _, e := range models.ExampleSearches {
			fmt.Fprintf(out, "  • %s\n", e)
		}
		return nil
	},
}
