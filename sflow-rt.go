package main

import (
	"fmt"
	"os"
	"sort"
	"text/tabwriter"
)

// version is set at build time via -ldflags "-X main.version=...".
var version = "devel"

type command struct {
	name, desc string
	run        func(cmd string, args []string)
}

var commands []command

func addCommand(name, desc string, run func(string, []string)) {
	commands = append(commands, command{name, desc, run})
}

func cmdString(usage string) {
	fmt.Fprintf(os.Stderr, "Usage:\n  %s %s\n", os.Args[0], usage)
}

func usage() {
	fmt.Fprintf(os.Stderr, "Usage:\n  %s command [arguments]\n\nAvailable commands:\n\n", os.Args[0])
	sorted := make([]command, len(commands))
	copy(sorted, commands)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].name < sorted[j].name })
	t := tabwriter.NewWriter(os.Stderr, 3, 4, 5, ' ', 0)
	for _, cmd := range sorted {
		fmt.Fprintf(t, "  %s\t%s\n", cmd.name, cmd.desc)
	}
	t.Flush()
	fmt.Fprintf(os.Stderr, "\nUse \"%s <command> -h\" for more information about a command.\n", os.Args[0])
	os.Exit(2)
}

func init() {
	addCommand("version", "Print the version", func(string, []string) {
		fmt.Printf("sflow-rt %s\n", version)
	})
}

func main() {
	if len(os.Args) < 2 {
		usage()
	}
	name := os.Args[1]
	for _, cmd := range commands {
		if cmd.name == name {
			cmd.run(name, os.Args[2:])
			return
		}
	}
	fmt.Fprintf(os.Stderr, "Unknown command %q.\n\n", name)
	usage()
}
