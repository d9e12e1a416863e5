package main

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pkg/errors"
	"github.com/varoOP/shinkrosrc/internal/domain"
	"gopkg.in/yaml.v3"
)

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// printYAML renders v through its JSON form so keys keep their JSON names and order
func printYAML(w io.Writer, v any) error {
	j, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "failed to marshal json")
	}

	var node yaml.Node
	if err := yaml.Unmarshal(j, &node); err != nil {
		return errors.Wrap(err, "failed to parse json as yaml")
	}
	blockStyle(&node)

	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	defer enc.Close()
	return enc.Encode(&node)
}

func blockStyle(n *yaml.Node) {
	n.Style = 0
	for _, c := range n.Content {
		blockStyle(c)
	}
}

func printValidation(res *domain.ValidationResult) {
	status := "FAILED"
	if res.IsValid {
		status = "PASSED"
	}
	fmt.Printf("\nValidation: %s\n", status)
	for _, c := range res.Checks {
		mark := "ok  "
		switch {
		case c.Skipped:
			mark = "skip"
		case !c.Passed:
			mark = "FAIL"
		}
		line := fmt.Sprintf("  [%s] %s", mark, c.Name)
		if c.Error != "" {
			line += ": " + c.Error
		}
		fmt.Println(line)
	}
	for _, w := range res.Warnings {
		fmt.Printf("  warning: %s\n", w)
	}
	if res.SuggestedFixes != nil {
		fmt.Printf("  suggested search results path: %s\n", res.SuggestedFixes.Search.ResultsPath)
	}
}
