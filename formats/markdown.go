package formats

import (
	"fmt"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// markdownTitleRegex matches markdown h1 headers (must be at very start, no leading space)
var markdownTitleRegex = regexp.MustCompile(`^#\s+(.+?)[\s]*$`)

const frontmatterDelimiter = "---"

// Markdown format implementation
// Serialization: optional YAML frontmatter between --- lines, then
// # Title followed by blank line, then content
// Deserialization: parse frontmatter if present, then extract title from
// # Title pattern at first line
var Markdown = &DocumentFormat{
	Name:      "markdown",
	Extension: ".md",
	Serialize: func(title, content string, metadata map[string]interface{}) string {
		var result strings.Builder

		if len(metadata) > 0 {
			if front, err := yaml.Marshal(metadata); err == nil {
				result.WriteString(frontmatterDelimiter + "\n")
				result.Write(front)
				result.WriteString(frontmatterDelimiter + "\n\n")
			}
		}

		if title != "" {
			result.WriteString("# " + title + "\n\n")
		}
		result.WriteString(content)
		return result.String()
	},
	Deserialize: func(document string) (string, string, map[string]interface{}, error) {
		if strings.TrimSpace(document) == "" {
			return "", "", nil, fmt.Errorf("empty document: both title and content are empty")
		}

		lines := strings.Split(document, "\n")

		var metadata map[string]interface{}
		if strings.TrimSpace(lines[0]) == frontmatterDelimiter {
			end := -1
			for i := 1; i < len(lines); i++ {
				if strings.TrimSpace(lines[i]) == frontmatterDelimiter {
					end = i
					break
				}
			}
			if end == -1 {
				return "", "", nil, fmt.Errorf("frontmatter not terminated")
			}
			if err := yaml.Unmarshal([]byte(strings.Join(lines[1:end], "\n")), &metadata); err != nil {
				return "", "", nil, fmt.Errorf("invalid frontmatter: %w", err)
			}
			lines = lines[end+1:]
			for len(lines) > 0 && isBlankLine(lines[0]) {
				lines = lines[1:]
			}
			if len(lines) == 0 {
				return "", "", metadata, nil
			}
		}

		// Check if first line is a markdown title
		matches := markdownTitleRegex.FindStringSubmatch(lines[0])
		if len(matches) > 1 {
			title := strings.TrimSpace(matches[1])

			// Find where content starts (after title and any blank lines)
			contentStart := 1
			for contentStart < len(lines) && isBlankLine(lines[contentStart]) {
				contentStart++
			}

			if contentStart < len(lines) {
				content := strings.Join(lines[contentStart:], "\n")
				return title, strings.TrimSpace(content), metadata, nil
			}
			return title, "", metadata, nil
		}

		// No markdown title found, entire document is content
		return "", strings.Join(lines, "\n"), metadata, nil
	},
	List: func(heading string, items []string) string {
		var result strings.Builder
		result.WriteString("## " + heading + "\n")
		for _, item := range items {
			result.WriteString("\n- " + item)
		}
		return result.String()
	},
	Heading: func(line string) (string, bool) {
		heading, ok := strings.CutPrefix(line, "## ")
		return strings.TrimSpace(heading), ok
	},
}

func init() {
	if err := Register(Markdown); err != nil {
		panic(fmt.Sprintf("failed to register Markdown format: %v", err))
	}
}
