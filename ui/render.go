package ui

import (
	"fmt"
	"regexp"
	"sort"
	"strings"

	markdown "github.com/MichaelMure/go-term-markdown"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"github.com/mattn/go-runewidth"

	"chatgate/mcp"
	"chatgate/model"
)

var mdLinkRegex = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)

// RenderMarkdown renders an assistant reply for the terminal. Markdown links
// are flattened to their URL and autolinking is off, so terminals can detect
// URLs themselves.
func RenderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = mdLinkRegex.ReplaceAllString(content, "$2")

	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width, 0)
	doc := p.Parse([]byte(content))
	return strings.TrimRight(string(gomarkdown.Render(doc, r)), "\n")
}

// Truncate shortens s to width display cells.
func Truncate(s string, width int) string {
	if runewidth.StringWidth(s) <= width {
		return s
	}
	return runewidth.Truncate(s, width, "...")
}

// RenderStatus renders one line per provider.
func RenderStatus(statuses map[model.ProviderID]model.Status, providers []model.ProviderID) string {
	var sb strings.Builder
	for _, p := range providers {
		st := statuses[p]
		var state string
		switch {
		case st.IsLoading:
			state = WarningStyle.Render("busy")
		case st.IsAvailable:
			state = OKStyle.Render("available")
		default:
			state = ErrorStyle.Render("unavailable")
		}
		fmt.Fprintf(&sb, "%-12s %s", p.DisplayName(), state)
		if st.Error != "" {
			sb.WriteString("  " + DimStyle.Render(Truncate(st.Error, 60)))
		}
		sb.WriteString("\n")
	}
	return sb.String()
}

// RenderModels renders a model list with truncated descriptions.
func RenderModels(models []model.APIModel, width int) string {
	idWidth := 0
	for _, m := range models {
		if w := runewidth.StringWidth(m.ID); w > idWidth {
			idWidth = w
		}
	}

	var sb strings.Builder
	for _, m := range models {
		line := HighlightStyle.Render(runewidth.FillRight(m.ID, idWidth))
		desc := m.Details.Description
		if desc == "" && m.Details.ParameterSize != "" {
			desc = strings.TrimSpace(m.Details.Family + " " + m.Details.ParameterSize)
		}
		if desc != "" {
			if avail := width - idWidth - 2; avail > 10 {
				desc = Truncate(desc, avail)
			}
			line += "  " + DimStyle.Render(desc)
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}

// RenderTools renders tools grouped by server.
func RenderTools(tools []mcp.Tool, width int) string {
	sorted := append([]mcp.Tool(nil), tools...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i].Name < sorted[j].Name })

	var sb strings.Builder
	server := ""
	for _, t := range sorted {
		if t.Server != server {
			server = t.Server
			sb.WriteString(TitleStyle.Render(server) + "\n")
		}
		line := "  " + t.Name
		if t.Description != "" {
			line += "  " + DimStyle.Render(Truncate(t.Description, max(width-len(line)-2, 10)))
		}
		sb.WriteString(line + "\n")
	}
	return sb.String()
}
