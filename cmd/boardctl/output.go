package main

import (
	"encoding/json"
	"fmt"
	"io"

	"gopkg.in/yaml.v3"
)

type printer struct {
	format string
	w      io.Writer
}

func newPrinter(format string, w io.Writer) (*printer, error) {
	switch format {
	case "json", "yaml":
		return &printer{format: format, w: w}, nil
	default:
		return nil, fmt.Errorf("unsupported output format %q (want json or yaml)", format)
	}
}

// print writes v using its JSON field names in either format.
func (p *printer) print(v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if p.format == "json" {
		_, err = fmt.Fprintf(p.w, "%s\n", data)
		return err
	}

	// JSON is valid YAML; re-encoding the node keeps the key order.
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return err
	}
	blockStyle(&node)
	enc := yaml.NewEncoder(p.w)
	enc.SetIndent(2)
	if err := enc.Encode(&node); err != nil {
		return err
	}
	return enc.Close()
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}
