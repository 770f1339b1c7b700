package main

import (
	"encoding/json"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xalatechnologies/aplus"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/exporter"
)

func newExportCmd(v *viper.Viper) *cobra.Command {
	var owner, format string
	cmd := &cobra.Command{
		Use:   "export <document-id>",
		Short: "Export a stored document to an archive and print its download URL",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := compositor.ParseFormat(format)
			if err != nil {
				return err
			}
			app := aplus.New(configFrom(v), aplus.WithLogger(stderrLogger(v)))
			defer app.Close()
			if err := app.Init(); err != nil {
				return err
			}
			res, err := app.Exporter.Export(cmd.Context(), exporter.Request{
				DocumentID: args[0],
				OwnerID:    owner,
				Format:     f,
			})
			if err != nil {
				return err
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(res)
		},
	}
	cmd.Flags().StringVar(&owner, "owner", "", "owner of the document")
	cmd.Flags().StringVar(&format, "format", "png", "image format (png or jpeg)")
	_ = cmd.MarkFlagRequired("owner")
	return cmd
}
