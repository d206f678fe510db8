package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"

	"headless-pro/apps/content-api/model"
	"headless-pro/apps/content-api/schema"
)

var schemaCmd = &cobra.Command{
	Use:   "schema [kind]",
	Short: "Print registered content kinds and their field schemas as YAML",
	Args:  cobra.MaximumNArgs(1),
	RunE:  runSchema,
}

func runSchema(cmd *cobra.Command, args []string) error {
	registry, err := schema.NewDefaultRegistry()
	if err != nil {
		return err
	}

	out, err := dumpSchemas(registry, args...)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(out)
	return err
}

// dumpSchemas 按注册顺序输出，kinds 非空时只输出指定类型
func dumpSchemas(registry *schema.Registry, kinds ...string) ([]byte, error) {
	var doc yaml.Node
	doc.Kind = yaml.MappingNode

	selected := registry.Kinds()
	if len(kinds) > 0 {
		selected = selected[:0]
		for _, k := range kinds {
			selected = append(selected, model.Kind(k))
		}
	}

	for _, kind := range selected {
		s, err := registry.GetSchema(kind)
		if err != nil {
			return nil, err
		}
		var value yaml.Node
		if err := value.Encode(s); err != nil {
			return nil, fmt.Errorf("encode schema %s: %w", kind, err)
		}
		doc.Content = append(doc.Content, &yaml.Node{Kind: yaml.ScalarNode, Value: string(kind)}, &value)
	}
	return yaml.Marshal(&doc)
}
