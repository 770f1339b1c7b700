package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xalatechnologies/aplus/templates"
)

func newTemplatesCmd(v *viper.Viper) *cobra.Command {
	var spec string
	cmd := &cobra.Command{
		Use:   "templates",
		Short: "List the available templates",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			lib, err := loadLibrary(v)
			if err != nil {
				return err
			}
			list := lib.All()
			if spec != "" {
				list = lib.ForSpec(spec)
				if len(list) == 0 {
					return fmt.Errorf("no templates for spec %q", spec)
				}
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSPEC\tSIZE\tIMAGES\tDEFAULT")
			for _, t := range list {
				def := ""
				if lib.DefaultID(t.SpecID) == t.ID {
					def = "*"
				}
				fmt.Fprintf(tw, "%s\t%s\t%dx%d\t%d\t%s\n", t.ID, t.SpecID, t.Width, t.Height, len(t.ImageSlots()), def)
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&spec, "spec", "", "only list templates of this spec")
	return cmd
}

// loadLibrary returns the built-in templates plus any configured HCL ones.
func loadLibrary(v *viper.Viper) (*templates.Library, error) {
	path := v.GetString("template_path")
	if path == "" {
		return templates.Default(), nil
	}
	extra, err := templates.LoadHCL(path)
	if err != nil {
		return nil, err
	}
	return templates.NewLibrary(extra...)
}
