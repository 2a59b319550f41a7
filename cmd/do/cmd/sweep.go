package cmd

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"
	"github.com/templui/imagevault/internal/app"
)

func SweepCmd() *cobra.Command {
	var (
		grace  time.Duration
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "sweep",
		Short: "Remove image directories that have no index record",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				if a.Sweeper == nil {
					return errors.New("sweep requires STORAGE_DRIVER=local")
				}

				if !cmd.Flags().Changed("grace") {
					grace = a.Cfg.SweepGrace
				}

				removed, err := a.Sweeper.SweepOnce(grace, dryRun)
				if err != nil {
					return err
				}

				verb := "removed"
				if dryRun {
					verb = "would remove"
				}
				for _, id := range removed {
					fmt.Printf("%s %s\n", verb, id)
				}
				fmt.Printf("%d orphaned directories %s\n", len(removed), verb)
				return nil
			})
		},
	}

	cmd.Flags().DurationVar(&grace, "grace", time.Hour, "skip directories modified within this window")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "list orphans without deleting them")
	return cmd
}
