package retriever

import "strings"

// maxChunkChars bounds a single chunk so embedding requests stay small.
const maxChunkChars = 1200

// chunkDocument splits the knowledge document on "## " headings, keeping each
// heading with its body. Sections longer than maxChunkChars are split on
// paragraph boundaries.
func chunkDocument(doc string) []string {
	var chunks []string

	sections := strings.Split(doc, "\n## ")
	for i, section := range sections {
		section = strings.TrimSpace(section)
		if section == "" {
			continue
		}
		if i > 0 {
			section = "## " + section
		}
		if len(section) <= maxChunkChars {
			chunks = append(chunks, section)
			continue
		}

		var current strings.Builder
		for _, para := range strings.Split(section, "\n\n") {
			para = strings.TrimSpace(para)
			if para == "" {
				continue
			}
			if current.Len()+len(para) > maxChunkChars && current.Len() > 0 {
				chunks = append(chunks, strings.TrimSpace(current.String()))
				current.Reset()
			}
			current.WriteString(para)
			current.WriteString("\n\n")
		}
		if current.Len() > 0 {
			chunks = append(chunks, strings.TrimSpace(current.String()))
		}
	}

	return chunks
}
