package language

import (
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"
)

// Definition describes how one language is executed and what the editor
// starts from when it is selected.
type Definition struct {
	Name     string   `yaml:"name"`
	Image    string   `yaml:"image"`
	Command  []string `yaml:"command"`
	Template string   `yaml:"template"`
}

// Catalog maps language names to their definitions.
type Catalog struct {
	defs map[string]Definition
}

// Builtin returns the default catalog. The code file is always mounted at
// /workspace/code inside the sandbox.
func Builtin() *Catalog {
	defs := []Definition{
		{
			Name:     "python",
			Image:    "python:3.12-slim",
			Command:  []string{"python", "/workspace/code"},
			Template: "# Write your Python code here\nprint(\"Hello, World!\")\n",
		},
		{
			Name:     "javascript",
			Image:    "node:22-slim",
			Command:  []string{"node", "/workspace/code"},
			Template: "// Write your JavaScript code here\nconsole.log(\"Hello, World!\");\n",
		},
		{
			Name:     "go",
			Image:    "golang:1.23-alpine",
			Command:  []string{"go", "run", "/workspace/code"},
			Template: "package main\n\nimport \"fmt\"\n\nfunc main() {\n\tfmt.Println(\"Hello, World!\")\n}\n",
		},
		{
			Name:     "ruby",
			Image:    "ruby:3.3-slim",
			Command:  []string{"ruby", "/workspace/code"},
			Template: "# Write your Ruby code here\nputs \"Hello, World!\"\n",
		},
	}

	c := &Catalog{defs: make(map[string]Definition, len(defs))}
	for _, d := range defs {
		c.defs[d.Name] = d
	}
	return c
}

// Load reads language definitions from a YAML file and merges them over the
// builtin catalog. Entries with the same name replace the builtin one.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading languages %s: %w", path, err)
	}

	var file struct {
		Languages []Definition `yaml:"languages"`
	}
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("parsing languages %s: %w", path, err)
	}

	c := Builtin()
	for _, d := range file.Languages {
		if d.Name == "" || d.Image == "" || len(d.Command) == 0 {
			return nil, fmt.Errorf("languages %s: entry %q missing name, image or command", path, d.Name)
		}
		c.defs[d.Name] = d
	}
	return c, nil
}

// Get returns the definition for a language name.
func (c *Catalog) Get(name string) (Definition, bool) {
	d, ok := c.defs[name]
	return d, ok
}

// Template returns the editor template for a language, or an empty string if
// the language is unknown.
func (c *Catalog) Template(name string) string {
	return c.defs[name].Template
}

// Names returns the supported language names, sorted.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.defs))
	for name := range c.defs {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Images returns every docker image referenced by the catalog, for building
// the sandbox allowlist.
func (c *Catalog) Images() []string {
	images := make([]string, 0, len(c.defs))
	for _, d := range c.defs {
		images = append(images, d.Image)
	}
	sort.Strings(images)
	return images
}
