package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"slices"

	"gopkg.in/yaml.v3"
)

const (
	OutputText = "text"
	OutputJson = "json"
	OutputYaml = "yaml"
)

var Outputs = []string{OutputText, OutputJson, OutputYaml}

// Print writes data in the requested format; text uses the table built
// by asTable
func Print(w io.Writer, format string, data any, asTable func() (*Table, error)) error {
	switch format {
	case OutputJson:
		encoder := json.NewEncoder(w)
		encoder.SetIndent("", "  ")
		return encoder.Encode(data)
	case OutputYaml:
		encoder := yaml.NewEncoder(w)
		encoder.SetIndent(2)
		if err := encoder.Encode(data); err != nil {
			return err
		}
		return encoder.Close()
	case OutputText, "":
		table, err := asTable()
		if err != nil {
			return err
		}
		_, err = fmt.Fprint(w, table.String())
		return err
	}
	if !slices.Contains(Outputs, format) {
		return fmt.Errorf("output[%s] is not one of %v: %w", format, Outputs, ErrorInvalidOutput)
	}
	return nil
}
