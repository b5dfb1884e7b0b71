package main

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"gopkg.in/yaml.v2"

	"github.com/iluxa/sflow-rt/engine"
	"github.com/iluxa/sflow-rt/flows"
	"github.com/iluxa/sflow-rt/lookup"
	"github.com/iluxa/sflow-rt/thresholds"
)

// configDocument is the on-disk form of the published state: flow and
// threshold definitions plus the lookup tables consulted by key functions.
// Files ending in .yaml or .yml are parsed as YAML, everything else as JSON.
type configDocument struct {
	Flows      map[string]flows.Definition      `json:"flows" yaml:"flows"`
	Thresholds map[string]thresholds.Definition `json:"thresholds" yaml:"thresholds"`
	Groups     map[string][]string              `json:"groups" yaml:"groups"`
	ASNs       map[string]lookup.ASN            `json:"asns" yaml:"asns"`
	OUIs       map[string]lookup.Org            `json:"ouis" yaml:"ouis"`
	Hosts      map[string]lookup.Host           `json:"hosts" yaml:"hosts"`
	Countries  map[string][]string              `json:"countries" yaml:"countries"`
}

func loadConfig(path string) (*configDocument, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	doc := new(configDocument)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, doc)
	default:
		err = json.Unmarshal(data, doc)
	}
	if err != nil {
		return nil, err
	}
	return doc, nil
}

// applyConfig publishes the document's contents. Tables go first so group:
// stages resolve from the first sample on; definitions install in name
// order to keep failures reproducible.
func applyConfig(eng *engine.Engine, path string) error {
	doc, err := loadConfig(path)
	if err != nil {
		return err
	}
	if doc.Groups != nil {
		if err := eng.SetGroups(doc.Groups); err != nil {
			return err
		}
	}
	if doc.ASNs != nil {
		if err := eng.SetASNs(doc.ASNs); err != nil {
			return err
		}
	}
	if doc.OUIs != nil {
		if err := eng.SetOUIs(doc.OUIs); err != nil {
			return err
		}
	}
	if doc.Hosts != nil {
		eng.SetHosts(doc.Hosts)
	}
	if doc.Countries != nil {
		if err := eng.SetCountries(doc.Countries); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(doc.Flows) {
		if err := eng.PutFlow(name, doc.Flows[name]); err != nil {
			return err
		}
	}
	for _, name := range sortedNames(doc.Thresholds) {
		if err := eng.PutThreshold(name, doc.Thresholds[name]); err != nil {
			return err
		}
	}
	return nil
}

func sortedNames[V any](m map[string]V) []string {
	names := make([]string, 0, len(m))
	for name := range m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
