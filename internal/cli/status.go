package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

func newStatusCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show device, session and profile information",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			device, err := a.deviceID(ctx)
			if err != nil {
				return err
			}
			fmt.Fprintf(out, "Device:   %s\n", device)
			fmt.Fprintf(out, "Database: %s\n", a.dbPath)

			dir := a.conv.Directory()
			if s, ok := dir.Session(dir.Active()); ok {
				fmt.Fprintf(out, "Session:  %s (%d messages)\n", s.Title, s.MessageCount)
			}

			p, err := a.conv.Profiles().Get(ctx)
			if err != nil {
				return err
			}
			if p != nil && p.Name != "" {
				fmt.Fprintf(out, "Profile:  %s\n", p.Name)
			}
			if latest, ok := p.LatestTriage(); ok {
				fmt.Fprintf(out, "Latest assessment: %d%% - %s\n", latest.Score, latest.Summary)
			}
			return nil
		},
	}
}
