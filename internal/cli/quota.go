package cli

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var quotaJSON bool

var quotaCmd = &cobra.Command{
	Use:   "quota",
	Short: "Show how many searches are left today",
	Long: `Show how many searches are left in the current 24-hour window and when
the window resets. Checking the quota never consumes a search.

Examples:
  mooddine quota
  mooddine quota --store sqlite
  mooddine quota --json`,
	Args: cobra.NoArgs,
	RunE: runQuota,
}

func init() {
	quotaCmd.Flags().BoolVar(&quotaJSON, "json", false, "print status as JSON")
}

func runQuota(cmd *cobra.Command, args []string) error {
	now := time.Now()
	st, err := gate.Status(cmd.Context(), now)
	if err != nil {
		return fmt.Errorf("read quota: %w", err)
	}

	out := cmd.OutOrStdout()
	if quotaJSON {
		payload := map[string]any{
			"used":      st.Used,
			"remaining": st.Remaining,
			"limit":     st.Limit,
		}
		if !st.ResetAt.IsZero() {
			payload["resetAt"] = st.ResetAt.UTC().Format(time.RFC3339)
		}
		return json.NewEncoder(out).Encode(payload)
	}

	fmt.Fprintln(out, renderQuota(themeFor(out), st, now))
	return nil
}
