package main

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/xalatechnologies/aplus/binder"
	"github.com/xalatechnologies/aplus/compositor"
	"github.com/xalatechnologies/aplus/fetch"
	"github.com/xalatechnologies/aplus/registry"
	"github.com/xalatechnologies/aplus/templates"
)

type renderFlags struct {
	template string
	spec     string
	content  string
	theme    string
	images   []string
	format   string
	out      string
}

func newRenderCmd(v *viper.Viper) *cobra.Command {
	var f renderFlags
	cmd := &cobra.Command{
		Use:   "render",
		Short: "Render one module to an image file",
		Example: `  aplus render --spec standard-header-image-text --content module.json --image photo.jpg -o header.png
  aplus render --template premium-comparison-classic --content table.json --format jpeg -o table.jpg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runRender(cmd.Context(), v, f)
		},
	}
	cmd.Flags().StringVar(&f.template, "template", "", "template id")
	cmd.Flags().StringVar(&f.spec, "spec", "", "spec id; its default template is used when --template is empty")
	cmd.Flags().StringVar(&f.content, "content", "", "JSON file with the module content")
	cmd.Flags().StringVar(&f.theme, "theme", "", "JSON file with a theme")
	cmd.Flags().StringArrayVar(&f.images, "image", nil, "image file or URL, in slot order (repeatable)")
	cmd.Flags().StringVar(&f.format, "format", "png", "output format (png or jpeg)")
	cmd.Flags().StringVarP(&f.out, "output", "o", "", "output file")
	_ = cmd.MarkFlagRequired("output")
	return cmd
}

func runRender(ctx context.Context, v *viper.Viper, f renderFlags) error {
	logger := stderrLogger(v)
	lib, err := loadLibrary(v)
	if err != nil {
		return err
	}
	format, err := compositor.ParseFormat(f.format)
	if err != nil {
		return err
	}

	id := f.template
	if id == "" {
		id = lib.DefaultID(f.spec)
	}
	tpl, ok := lib.Lookup(id)
	if !ok {
		return fmt.Errorf("no template for --template %q --spec %q", f.template, f.spec)
	}

	var content binder.Content
	if f.content != "" {
		if err := readJSON(f.content, &content); err != nil {
			return err
		}
	}
	var theme *templates.Theme
	if f.theme != "" {
		theme = new(templates.Theme)
		if err := readJSON(f.theme, theme); err != nil {
			return err
		}
	}

	client := fetch.New(fetch.WithLogger(logger.WithPrefix("fetch")))
	defer client.Close()
	images := make(map[string][]byte)
	for i, s := range tpl.ImageSlots() {
		if i >= len(f.images) {
			break
		}
		b, err := loadImage(ctx, client, f.images[i])
		if err != nil {
			return fmt.Errorf("%s: %w", s.ID, err)
		}
		images[s.ID] = b
	}

	if spec, ok := registry.Lookup(tpl.SpecID); ok {
		for _, p := range spec.Check(content.Texts(), len(images)) {
			logger.Warn("content", "problem", p.String())
		}
	}

	raw, err := compositor.RenderModule(tpl, images, binder.Bind(tpl, content), theme)
	if err != nil {
		return err
	}
	data, err := compositor.Convert(raw, format)
	if err != nil {
		return err
	}
	if err := os.WriteFile(f.out, data, 0o644); err != nil {
		return err
	}
	logger.Info("rendered", "template", tpl.ID, "file", f.out, "bytes", len(data))
	return nil
}

func loadImage(ctx context.Context, client *fetch.Client, src string) ([]byte, error) {
	if strings.HasPrefix(src, "http://") || strings.HasPrefix(src, "https://") {
		return client.Fetch(ctx, src)
	}
	return os.ReadFile(src)
}

func readJSON(path string, v any) error {
	b, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
