package main

import (
	"fmt"
	"os"
	"text/tabwriter"
)

func init() {
	addCommand("functions", "List key functions, value modifiers, and metric reducers", listFunctions)
}

func section(title string, rows [][2]string) {
	fmt.Fprintf(os.Stderr, "%s:\n\n", title)
	t := tabwriter.NewWriter(os.Stderr, 3, 4, 5, ' ', 0)
	for _, row := range rows {
		fmt.Fprintf(t, "  %s\t%s\n", row[0], row[1])
	}
	t.Flush()
	fmt.Fprintln(os.Stderr)
}

func listFunctions(string, []string) {
	section("Key functions (stages of the comma separated keys list)", [][2]string{
		{"attr", "the attribute value itself"},
		{"group:attr:g1[:g2...]", "first listed group containing the address; a trailing undefined name is the miss token"},
		{"country:attr", "country code of the address"},
		{"asn:attr:number|descr|both", "autonomous system owning the address"},
		{"oui:attr:number|name", "organization registered for the MAC prefix"},
		{"host:attr:field", "host record field (host_name, machine_type, os_name, uuid, os_release)"},
		{"prefix:attr:delim:n", "first n delimiter separated tokens"},
		{"suffix:attr:delim:n", "last n delimiter separated tokens"},
		{"mask:attr:bits", "address truncated to a network prefix"},
		{"null:attr:default", "default for a missing or empty attribute"},
		{"or:attr1:attr2", "first non-empty of two attributes"},
		{"eq:attr1:attr2", "true/false comparison of two attributes"},
		{"range:attr:lower:upper", "true/false containment in a numeric range"},
	})

	section("Value modifiers (value: [modifier:]field)", [][2]string{
		{"(none)", "raw field of the latest sample"},
		{"rate:field", "difference to the previous sample per second"},
		{"avg:field", "mean over the smoothing window t"},
		{"count:field", "number of samples within the smoothing window t"},
	})

	section("Metric reducers (metric queries: [reducer:]name, default max)", [][2]string{
		{"max, min, sum, avg", "extremes, total, and mean across the selected agents"},
		{"var, sdev", "sample variance and standard deviation"},
		{"med, q1, q2, q3, iqr", "median and quartiles by linear interpolation"},
		{"any", "an arbitrary agent's value"},
	})
}
