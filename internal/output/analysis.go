package output

import (
	"fmt"
	"strings"

	"github.com/routelens/routelens/internal/core"
)

type detailSection struct {
	Title string
	Lines []string
}

// detailSections returns the optional blocks rendered below the summary
// table: registration data, search pivots, notes and hints.
func detailSections(result *core.LookupResult) []detailSection {
	if result == nil {
		return nil
	}

	var sections []detailSection
	switch d := result.Data.(type) {
	case *core.IPData:
		if d != nil && d.Registration != nil {
			sections = append(sections, registrationSection(d.Registration))
		}
	case *core.ASNData:
		if d != nil && d.Registration != nil {
			sections = append(sections, registrationSection(d.Registration))
		}
	case *core.SearchData:
		if d != nil && len(d.Suggestions) > 0 {
			sections = append(sections, suggestionsSection(d.Suggestions))
		}
	}

	if len(result.Notes) > 0 {
		sections = append(sections, detailSection{Title: "Notes", Lines: result.Notes})
	}
	if hint := strings.TrimSpace(result.Hint); hint != "" {
		sections = append(sections, detailSection{Title: "Hint", Lines: []string{hint}})
	}
	return sections
}

func registrationSection(reg *core.RegistrationEntry) detailSection {
	lines := make([]string, 0, 5)
	add := func(label, value string) {
		if value = strings.TrimSpace(value); value != "" {
			lines = append(lines, fmt.Sprintf("%s: %s", label, value))
		}
	}
	add("Handle", reg.Handle)
	add("Name", reg.Name)
	add("Type", reg.Type)
	add("Country", reg.Country)
	if reg.Start != "" || reg.End != "" {
		add("Range", strings.Trim(reg.Start+" - "+reg.End, " -"))
	}
	add("Parent", reg.Parent)
	return detailSection{Title: "Registration", Lines: lines}
}

func suggestionsSection(suggestions []core.SearchSuggestion) detailSection {
	lines := make([]string, 0, len(suggestions))
	for _, s := range suggestions {
		line := fmt.Sprintf("[%s] %s", s.Category, s.Value)
		if s.Label != "" && s.Label != s.Value {
			line += " (" + s.Label + ")"
		}
		lines = append(lines, line)
	}
	return detailSection{Title: "Suggestions", Lines: lines}
}

func renderDetailSections(sections []detailSection, markdown bool) string {
	if len(sections) == 0 {
		return ""
	}

	var sb strings.Builder
	for i, section := range sections {
		if len(section.Lines) == 0 {
			continue
		}
		if i > 0 {
			sb.WriteString("\n")
		}
		if markdown {
			sb.WriteString(fmt.Sprintf("\n\n### %s\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("- %s\n", escapeMarkdownCell(line)))
			}
		} else {
			sb.WriteString(fmt.Sprintf("\n\n%s:\n", section.Title))
			for _, line := range section.Lines {
				sb.WriteString(fmt.Sprintf("  %s\n", line))
			}
		}
	}
	return sb.String()
}
