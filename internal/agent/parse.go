package agent

import "strings"

// splitSections splits raw model output into blank-line-separated sections.
func splitSections(raw string) []string {
	parts := strings.Split(strings.TrimSpace(raw), "\n\n")
	sections := parts[:0]
	for _, p := range parts {
		if strings.TrimSpace(p) != "" {
			sections = append(sections, p)
		}
	}
	return sections
}

// bulletItems extracts "- " prefixed lines from a section, stripping the
// bullet and, when the line is "Label: value" shaped, the label.
func bulletItems(section string) []string {
	var items []string
	for _, line := range strings.Split(section, "\n") {
		line = strings.TrimSpace(line)
		if !strings.HasPrefix(line, "- ") {
			continue
		}
		item := strings.TrimPrefix(line, "- ")
		if _, after, found := strings.Cut(item, ": "); found {
			item = after
		}
		if item != "" {
			items = append(items, item)
		}
	}
	return items
}

// middleText joins the sections between the first and last into one block.
// Model output conventionally puts list sections first and last with prose
// in between; with fewer than three sections it returns everything.
func middleText(sections []string) string {
	if len(sections) < 3 {
		return strings.Join(sections, "\n\n")
	}
	return strings.Join(sections[1:len(sections)-1], "\n\n")
}

// toAnySlice converts a string slice for inclusion in a JSON-bound result map.
func toAnySlice(items []string) []any {
	out := make([]any, len(items))
	for i, s := range items {
		out[i] = s
	}
	return out
}
