package cli

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"

	"github.com/spf13/cobra"

	"github.com/raphaelgruber/mooddine/internal/models"
	"github.com/raphaelgruber/mooddine/internal/notify"
	"github.com/raphaelgruber/mooddine/internal/session"
)

var searchJSON bool

var searchCmd = &cobra.Command{
	Use:   "search <mood...>",
	Short: "Search once and print the ranked places",
	Long: `Send a mood query to the recommendation service and print the ranked
places in the order the service returned them.

Each search counts against the daily limit, including searches that fail.

Examples:
  mooddine search "cozy cafe with great coffee in Indiranagar"
  mooddine search rooftop bar with cocktails
  mooddine search "romantic dinner for two" --json`,
	Args: cobra.MinimumNArgs(1),
	RunE: runSearch,
}

func init() {
	searchCmd.Flags().BoolVar(&searchJSON, "json", false, "print results as JSON")
}

func runSearch(cmd *cobra.Command, args []string) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	out := cmd.OutOrStdout()
	errOut := cmd.ErrOrStderr()
	theme := themeFor(out)

	ctrl := newController(notify.NewWriterNotifier(errOut, themeFor(errOut).notifyStyles()))
	defer ctrl.Close()

	if !searchJSON {
		unsubscribe := ctrl.Subscribe(func(s models.SessionState) {
			if s.Phase() == models.PhaseLoading {
				fmt.Fprintln(errOut, renderState(theme, s))
			}
		})
		defer unsubscribe()
	}

	if err := ctrl.Submit(ctx, strings.Join(args, " ")); err != nil {
		if errors.Is(err, session.ErrEmptyQuery) {
			return fmt.Errorf("nothing to search for")
		}
		return err
	}
	ctrl.Wait()

	switch st := ctrl.State().(type) {
	case models.Results:
		if searchJSON {
			enc := json.NewEncoder(out)
			enc.SetIndent("", "  ")
			return enc.Encode(st.Results)
		}
		fmt.Fprintln(out, renderResults(theme, st))
		return nil
	case models.Failed:
		return fmt.Errorf("search %q: %s: %w", st.Query, st.Reason, st.Err)
	default:
		return fmt.Errorf("search did not complete")
	}
}
