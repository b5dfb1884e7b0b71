package flows

import (
	"fmt"
	"net"
	"strconv"
	"strings"

	"github.com/iluxa/sflow-rt/lookup"
)

// keyKind enumerates the closed set of key functions. Per-sample evaluation
// dispatches on the kind, never on a name lookup.
type keyKind int

const (
	kindIdentity keyKind = iota
	kindGroup
	kindCountry
	kindASN
	kindOUI
	kindHost
	kindPrefix
	kindSuffix
	kindMask
	kindNull
	kindOr
	kindEq
	kindRange
)

// KeyFunc is one compiled key-extraction stage.
type KeyFunc struct {
	kind   keyKind
	expr   string
	attr   string
	attr2  string   // or, eq
	groups []string // group, in listed order
	def    string   // null default
	mode   string   // asn: number|descr|both, oui: number|name, host: field
	delim  string   // prefix, suffix
	count  int      // prefix, suffix
	bits   int      // mask
	lower  float64  // range
	upper  float64
}

// String returns the expression the stage was compiled from.
func (k *KeyFunc) String() string { return k.expr }

// Attr returns the stage's primary source attribute.
func (k *KeyFunc) Attr() string { return k.attr }

// Identity reports whether the stage passes its attribute through
// untransformed.
func (k *KeyFunc) Identity() bool { return k.kind == kindIdentity }

func keyParseError(expr string, format string, a ...interface{}) error {
	return &ParseError{What: "key", Expr: expr, Err: fmt.Errorf(format, a...)}
}

// ParseKeyFunc compiles one key-function expression. A bare attribute name
// is the identity function. Unknown function names, wrong arity, and
// malformed numeric parameters are ParseErrors.
func ParseKeyFunc(expr string) (KeyFunc, error) {
	expr = strings.TrimSpace(expr)
	k := KeyFunc{expr: expr}
	if expr == "" {
		return k, keyParseError(expr, "empty key expression")
	}
	parts := strings.Split(expr, ":")
	for _, p := range parts {
		if p == "" {
			return k, keyParseError(expr, "empty token")
		}
	}
	name, args := parts[0], parts[1:]
	if len(parts) == 1 {
		k.kind = kindIdentity
		k.attr = name
		return k, nil
	}
	switch name {
	case "group":
		if len(args) < 2 {
			return k, keyParseError(expr, "group needs an attribute and at least one group name")
		}
		k.kind = kindGroup
		k.attr = args[0]
		k.groups = args[1:]
	case "country":
		if len(args) != 1 {
			return k, keyParseError(expr, "country takes exactly one attribute")
		}
		k.kind = kindCountry
		k.attr = args[0]
	case "asn":
		if len(args) != 2 {
			return k, keyParseError(expr, "asn takes an attribute and one of number, descr, both")
		}
		switch args[1] {
		case "number", "descr", "both":
		default:
			return k, keyParseError(expr, "unknown asn form %q", args[1])
		}
		k.kind = kindASN
		k.attr = args[0]
		k.mode = args[1]
	case "oui":
		if len(args) != 2 {
			return k, keyParseError(expr, "oui takes an attribute and one of number, name")
		}
		switch args[1] {
		case "number", "name":
		default:
			return k, keyParseError(expr, "unknown oui form %q", args[1])
		}
		k.kind = kindOUI
		k.attr = args[0]
		k.mode = args[1]
	case "host":
		if len(args) != 2 {
			return k, keyParseError(expr, "host takes an attribute and a host record field")
		}
		if !lookup.IsHostField(args[1]) {
			return k, keyParseError(expr, "unknown host record field %q", args[1])
		}
		k.kind = kindHost
		k.attr = args[0]
		k.mode = args[1]
	case "prefix", "suffix":
		if len(args) != 3 {
			return k, keyParseError(expr, "%s takes an attribute, a delimiter, and a token count", name)
		}
		n, err := strconv.Atoi(args[2])
		if err != nil || n < 1 {
			return k, keyParseError(expr, "bad token count %q", args[2])
		}
		if name == "prefix" {
			k.kind = kindPrefix
		} else {
			k.kind = kindSuffix
		}
		k.attr = args[0]
		k.delim = args[1]
		k.count = n
	case "mask":
		if len(args) != 2 {
			return k, keyParseError(expr, "mask takes an attribute and a bit count")
		}
		bits, err := strconv.Atoi(args[1])
		if err != nil || bits < 0 || bits > 128 {
			return k, keyParseError(expr, "bad bit count %q", args[1])
		}
		k.kind = kindMask
		k.attr = args[0]
		k.bits = bits
	case "null":
		if len(args) != 2 {
			return k, keyParseError(expr, "null takes an attribute and a default")
		}
		k.kind = kindNull
		k.attr = args[0]
		k.def = args[1]
	case "or":
		if len(args) != 2 {
			return k, keyParseError(expr, "or takes two attributes")
		}
		k.kind = kindOr
		k.attr = args[0]
		k.attr2 = args[1]
	case "eq":
		if len(args) != 2 {
			return k, keyParseError(expr, "eq takes two attributes")
		}
		k.kind = kindEq
		k.attr = args[0]
		k.attr2 = args[1]
	case "range":
		if len(args) != 3 {
			return k, keyParseError(expr, "range takes an attribute and two bounds")
		}
		lower, err := strconv.ParseFloat(args[1], 64)
		if err != nil {
			return k, keyParseError(expr, "bad lower bound %q", args[1])
		}
		upper, err := strconv.ParseFloat(args[2], 64)
		if err != nil {
			return k, keyParseError(expr, "bad upper bound %q", args[2])
		}
		if lower > upper {
			return k, keyParseError(expr, "lower bound above upper bound")
		}
		k.kind = kindRange
		k.attr = args[0]
		k.lower = lower
		k.upper = upper
	default:
		return k, keyParseError(expr, "unknown key function %q", name)
	}
	return k, nil
}

// Extract applies the stage to a candidate's attributes. ok=false excludes
// the sample from the flow. Table misses pass the raw value through; only
// missing/empty source attributes (without a null default) and malformed
// inputs to mask/range exclude.
func (k *KeyFunc) Extract(get AttrGetter, tab *lookup.Tables) (string, bool) {
	if tab == nil {
		tab = lookup.Empty
	}
	if k.kind == kindNull {
		v, ok := get(k.attr)
		if !ok || v == "" {
			return k.def, k.def != ""
		}
		return v, true
	}
	if k.kind == kindOr {
		if v, ok := get(k.attr); ok && v != "" {
			return v, true
		}
		v, ok := get(k.attr2)
		return v, ok && v != ""
	}
	if k.kind == kindEq {
		v1, _ := get(k.attr)
		v2, _ := get(k.attr2)
		return strconv.FormatBool(v1 == v2), true
	}
	v, ok := get(k.attr)
	if !ok || v == "" {
		return "", false
	}
	switch k.kind {
	case kindIdentity:
		return v, true
	case kindGroup:
		ip := net.ParseIP(v)
		for _, name := range k.groups {
			if ip != nil && tab.Groups.Contains(name, ip) {
				return name, true
			}
		}
		if last := k.groups[len(k.groups)-1]; !tab.Groups.Defined(last) {
			return last, true
		}
		return v, true
	case kindCountry:
		if code, ok := tab.Countries.Lookup(net.ParseIP(v)); ok {
			return code, true
		}
		return v, true
	case kindASN:
		as, ok := tab.ASNs.Lookup(net.ParseIP(v))
		if !ok {
			return v, true
		}
		switch k.mode {
		case "number":
			return strconv.FormatUint(uint64(as.Number), 10), true
		case "descr":
			return as.Description, as.Description != ""
		default:
			return fmt.Sprintf("%d:%s", as.Number, as.Description), true
		}
	case kindOUI:
		org, ok := tab.OUIs.Lookup(v)
		if !ok {
			return v, true
		}
		if k.mode == "number" {
			return org.Number, org.Number != ""
		}
		return org.Name, org.Name != ""
	case kindHost:
		if field, ok := tab.Hosts.Lookup(v, k.mode); ok && field != "" {
			return field, true
		}
		return v, true
	case kindPrefix:
		return joinPrefix(v, k.delim, k.count), true
	case kindSuffix:
		return joinSuffix(v, k.delim, k.count), true
	case kindMask:
		return maskIP(v, k.bits)
	case kindRange:
		n, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return "", false
		}
		return strconv.FormatBool(n >= k.lower && n <= k.upper), true
	}
	return "", false
}

// joinPrefix keeps the first n tokens of v. A leading delimiter belongs to
// the first token, so prefix:uripath:/:1 of "/a/b/c" is "/a".
func joinPrefix(v, delim string, n int) string {
	segs := strings.Split(v, delim)
	if len(segs) > 0 && segs[0] == "" {
		n++
	}
	if n >= len(segs) {
		return v
	}
	return strings.Join(segs[:n], delim)
}

func joinSuffix(v, delim string, n int) string {
	segs := strings.Split(v, delim)
	if n >= len(segs) {
		return v
	}
	return strings.Join(segs[len(segs)-n:], delim)
}

func maskIP(v string, bits int) (string, bool) {
	ip := net.ParseIP(v)
	if ip == nil {
		return "", false
	}
	if ip4 := ip.To4(); ip4 != nil {
		if bits > 32 {
			bits = 32
		}
		return ip4.Mask(net.CIDRMask(bits, 32)).String(), true
	}
	return ip.Mask(net.CIDRMask(bits, 128)).String(), true
}
