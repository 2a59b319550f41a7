package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/imagevault/internal/app"
)

func CheckCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Verify every indexed image still has its files",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				missing, err := a.ImageService.Check()
				if err != nil {
					return err
				}

				for _, m := range missing {
					fmt.Printf("%s\t%s\t%s\t%v\n", m.ID, m.Kind, m.Location, m.Err)
				}
				if len(missing) > 0 {
					return fmt.Errorf("%d files missing", len(missing))
				}

				fmt.Println("all indexed files present")
				return nil
			})
		},
	}
}
