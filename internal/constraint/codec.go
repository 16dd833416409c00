package constraint

import (
	"sort"
	"strconv"
	"strings"
)

// Marshal serialises every component, one per line, ordered by name so
// to_string is deterministic (spec invariant 4: round-trip stability).
func Marshal(components map[string]*Component) string {
	names := make([]string, 0, len(components))
	for name := range components {
		names = append(names, name)
	}
	sort.Strings(names)

	lines := make([]string, 0, len(names))
	for _, name := range names {
		lines = append(lines, marshalComponent(components[name]))
	}
	return strings.Join(lines, "\n")
}

func marshalComponent(c *Component) string {
	props := make([]string, 0, len(c.Properties))
	for _, p := range c.Properties {
		props = append(props, marshalProperty(p))
	}
	return c.Name + ";" + strings.Join(props, "§")
}

func marshalProperty(p *Property) string {
	return strings.Join([]string{
		p.Name,
		strconv.FormatBool(p.IsAlphabetic),
		strconv.FormatBool(p.IsNumeric),
		strconv.Itoa(p.Min),
		strconv.Itoa(p.Max),
		"not_allowed=" + runesToString(p.NotAllowed),
		"allowed=" + runesToString(p.AdditionalAllowed),
	}, ";")
}

func runesToString(set map[rune]struct{}) string {
	rs := make([]rune, 0, len(set))
	for r := range set {
		rs = append(rs, r)
	}
	sort.Slice(rs, func(i, j int) bool { return rs[i] < rs[j] })
	return string(rs)
}

// Unmarshal parses the format Marshal produces. Malformed lines are
// skipped rather than aborting the whole catalog load, matching the
// tolerant-parsing posture the route loader uses (spec §6).
func Unmarshal(text string) map[string]*Component {
	components := map[string]*Component{}
	for _, line := range strings.Split(text, "\n") {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		parts := strings.SplitN(line, ";", 2)
		if len(parts) != 2 {
			continue
		}
		name := parts[0]
		comp := &Component{Name: name}
		pending := ""
		for _, propText := range strings.Split(parts[1], "§") {
			// A '§' inside a character set splits one property in two;
			// a fragment without its ";allowed=" tail is joined to the next.
			if pending != "" {
				propText = pending + "§" + propText
				pending = ""
			}
			if !strings.Contains(propText, ";allowed=") {
				pending = propText
				continue
			}
			if p := unmarshalProperty(propText); p != nil {
				comp.Properties = append(comp.Properties, p)
			}
		}
		components[name] = comp
	}
	return components
}

func unmarshalProperty(text string) *Property {
	// The character sets may themselves contain ';', so the allowed set is
	// cut off at its key and the rest is split into exactly six fields.
	cut := strings.LastIndex(text, ";allowed=")
	if cut < 0 {
		return nil
	}
	fields := strings.SplitN(text[:cut], ";", 6)
	if len(fields) != 6 {
		return nil
	}
	fields = append(fields, text[cut+1:])
	isAlpha, _ := strconv.ParseBool(fields[1])
	isNumeric, _ := strconv.ParseBool(fields[2])
	min, _ := strconv.Atoi(fields[3])
	max, _ := strconv.Atoi(fields[4])
	p := newProperty(fields[0], isAlpha, isNumeric, min, max)
	p.withNotAllowed(strings.TrimPrefix(fields[5], "not_allowed="))
	p.withAdditionalAllowed(strings.TrimPrefix(fields[6], "allowed="))
	return p
}
