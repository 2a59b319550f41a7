package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/templui/imagevault/internal/app"
)

func ThumbsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "thumbs",
		Short: "Regenerate thumbnails for every indexed image",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withApp(func(a *app.App) error {
				n, err := a.ImageService.RegenerateThumbnails()
				fmt.Printf("%d thumbnails regenerated\n", n)
				return err
			})
		},
	}
}
