// Package pokedex holds the static reference card shown for each animal label.
package pokedex

import (
	_ "embed"
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed animals.yaml
var animalsYAML []byte

// Entry is the reference data of one animal.
type Entry struct {
	Label           string `yaml:"label" json:"label"`
	Emoji           string `yaml:"emoji" json:"emoji"`
	Name            string `yaml:"name" json:"name"`
	Habitat         string `yaml:"habitat" json:"habitat"`
	Size            string `yaml:"size" json:"size"`
	Weight          string `yaml:"weight" json:"weight"`
	Diet            string `yaml:"diet" json:"diet"`
	Characteristics string `yaml:"characteristics" json:"characteristics"`
	Fact            string `yaml:"fact" json:"fact"`
}

// Card is an entry with its Anidex number. Number is 0 for unknown labels.
type Card struct {
	Entry
	Number int  `json:"number"`
	Known  bool `json:"known"`
}

// Code formats the Anidex number, e.g. "#002".
func (c Card) Code() string {
	if c.Number == 0 {
		return "#???"
	}
	return fmt.Sprintf("#%03d", c.Number)
}

// Title is the emoji followed by the display name.
func (c Card) Title() string {
	return c.Emoji + " " + c.Name
}

// Dex maps labels to cards.
type Dex struct {
	entries []Entry
	index   map[string]int
}

// Parse builds a Dex from YAML; entry order defines numbering.
func Parse(data []byte) (*Dex, error) {
	var entries []Entry
	if err := yaml.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("failed to parse animal facts: %w", err)
	}
	d := &Dex{entries: entries, index: make(map[string]int, len(entries))}
	for i, e := range entries {
		if e.Label == "" {
			return nil, fmt.Errorf("animal fact %d has no label", i+1)
		}
		if _, dup := d.index[e.Label]; dup {
			return nil, fmt.Errorf("duplicate animal fact for %q", e.Label)
		}
		d.index[e.Label] = i
	}
	return d, nil
}

// Default returns the Dex built from the embedded facts.
func Default() *Dex {
	d, err := Parse(animalsYAML)
	if err != nil {
		panic(err)
	}
	return d
}

// Card returns the card for label, or an "Unknown" placeholder.
func (d *Dex) Card(label string) Card {
	i, ok := d.index[label]
	if !ok {
		return Card{Entry: Entry{Label: label, Emoji: "❓", Name: "Unknown"}}
	}
	return Card{Entry: d.entries[i], Number: i + 1, Known: true}
}

// DisplayName returns "<emoji> <Name>" for label, falling back to the label itself.
func (d *Dex) DisplayName(label string) string {
	c := d.Card(label)
	if !c.Known {
		return "❓ " + strings.ToUpper(label[:min(1, len(label))]) + label[min(1, len(label)):]
	}
	return c.Title()
}

// Labels returns the labels in Anidex order.
func (d *Dex) Labels() []string {
	out := make([]string, len(d.entries))
	for i, e := range d.entries {
		out[i] = e.Label
	}
	return out
}
