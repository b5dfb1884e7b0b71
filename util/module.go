package util

import (
	"fmt"
	"sort"
)

// Module is the base interface of pluggable sources and exporters.
// ID() must return a string identifying this instance (used for de-duplication),
// and Init() is called once after all the arguments were parsed and every
// module was created.
type Module interface {
	ID() string
	Init()
}

// ModuleCreator parses the string options belonging to a module and returns
// the unused remainder together with the created Module.
type ModuleCreator func(args []string) ([]string, Module, error)

// ModuleHelp must write a usage description for the named module to stderr.
type ModuleHelp func(name string)

// ModuleDescription contains name and description of a registered module.
type ModuleDescription struct {
	name, desc string
}

// Name returns the name of this module.
func (m ModuleDescription) Name() string {
	return m.name
}

// Description returns the description of this module.
func (m ModuleDescription) Description() string {
	return m.desc
}

type moduleDefinition struct {
	ModuleDescription
	new  ModuleCreator
	help ModuleHelp
}

var modules = make(map[string]map[string]moduleDefinition)

// RegisterModule registers a module with the given type, name, description,
// creator, and help function. Existing registrations are overwritten.
func RegisterModule(typ, name, desc string, new ModuleCreator, help ModuleHelp) {
	sub, ok := modules[typ]
	if !ok {
		sub = make(map[string]moduleDefinition)
		modules[typ] = sub
	}
	sub[name] = moduleDefinition{
		ModuleDescription: ModuleDescription{
			name: name,
			desc: desc,
		},
		new:  new,
		help: help,
	}
}

// GetModuleHelp calls the help function of the module identified by typ, name.
func GetModuleHelp(typ, name string) error {
	if sub, ok := modules[typ]; ok {
		if module, ok := sub[name]; ok {
			module.help(name)
			return nil
		}
	}
	return fmt.Errorf("couldn't find module of type %s with name %s", typ, name)
}

// GetModules returns the descriptions of the registered modules of one type
// ordered by name.
func GetModules(typ string) (descriptions []ModuleDescription, err error) {
	sub, ok := modules[typ]
	if !ok {
		return nil, fmt.Errorf("no modules of type %s registered", typ)
	}
	for _, module := range sub {
		descriptions = append(descriptions, module.ModuleDescription)
	}
	sort.Slice(descriptions, func(i, j int) bool { return descriptions[i].name < descriptions[j].name })
	return descriptions, nil
}

// CreateModule creates the module with the given type and name from the
// provided string options and returns the options it did not consume.
func CreateModule(typ, which string, args []string) ([]string, Module, error) {
	if sub, ok := modules[typ]; ok {
		if module, ok := sub[which]; ok {
			return module.new(args)
		}
	}
	return nil, nil, fmt.Errorf("couldn't find module of type %s with name %s", typ, which)
}
