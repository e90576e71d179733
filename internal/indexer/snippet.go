package indexer

import (
	"bufio"
	"io"
	"regexp"
	"strings"

	"gopkg.in/yaml.v3"
)

// base64Image matches lines carrying inline base64 image data.
var base64Image = regexp.MustCompile(`data:image[^;]*;base64,|\]\(data:image/svg\+xml;base64`)

const frontmatterDelim = "---"

// maxLineBytes bounds a single line; longer lines are an error.
const maxLineBytes = 4 * 1024 * 1024

// Snippet extracts the text that represents a note.
//
// A frontmatter description wins when present. Otherwise the first
// maxWords words of the body are used, skipping the frontmatter block and
// any line with inline base64 image data. ok is false when the result is
// shorter than minChars.
func Snippet(r io.Reader, maxWords, minChars int) (snippet string, ok bool, err error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineBytes)

	var (
		words       []string
		first       = true
		inFront     bool
		frontLines  []string
		description string
	)

	for scanner.Scan() {
		line := scanner.Text()
		if first {
			first = false
			if strings.TrimSpace(strings.TrimPrefix(line, "\ufeff")) == frontmatterDelim {
				inFront = true
				continue
			}
		}
		if inFront {
			if strings.TrimSpace(line) == frontmatterDelim {
				inFront = false
				description = frontmatterDescription(frontLines)
				if description != "" {
					break
				}
				continue
			}
			frontLines = append(frontLines, line)
			continue
		}

		if base64Image.MatchString(line) {
			continue
		}
		words = append(words, strings.Fields(line)...)
		if maxWords > 0 && len(words) >= maxWords {
			words = words[:maxWords]
			break
		}
	}
	if err := scanner.Err(); err != nil {
		return "", false, err
	}

	if description == "" && inFront {
		// unterminated frontmatter is treated as body text
		for _, line := range frontLines {
			if !base64Image.MatchString(line) {
				words = append(words, strings.Fields(line)...)
			}
		}
		if maxWords > 0 && len(words) > maxWords {
			words = words[:maxWords]
		}
	}

	snippet = description
	if snippet == "" {
		snippet = strings.Join(words, " ")
	}
	if len(snippet) < minChars || strings.TrimSpace(snippet) == "" {
		return "", false, nil
	}
	return snippet, true, nil
}

// frontmatterDescription returns the description key of a YAML block, or
// "" if it is missing or the block does not parse.
func frontmatterDescription(lines []string) string {
	var meta map[string]any
	if err := yaml.Unmarshal([]byte(strings.Join(lines, "\n")), &meta); err != nil {
		return ""
	}
	desc, _ := meta["description"].(string)
	return strings.TrimSpace(desc)
}
