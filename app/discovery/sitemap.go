package discovery

import (
	"bytes"
	"encoding/xml"
	"io"
	"strings"
)

const maxChildSitemaps = 30

func isSitemapIndex(data []byte) bool {
	return bytes.Contains(bytes.ToLower(data), []byte("<sitemapindex"))
}

// parseSitemapLocs collects <loc> values in document order, resolved against
// base and deduplicated. Parsing stops quietly at the first syntax error so a
// truncated sitemap still yields its leading entries.
func parseSitemapLocs(data []byte, base string) []string {
	decoder := xml.NewDecoder(bytes.NewReader(data))
	decoder.Strict = false
	decoder.CharsetReader = func(_ string, input io.Reader) (io.Reader, error) {
		return input, nil
	}

	var (
		locs  []string
		seen  = make(map[string]bool)
		inLoc bool
		text  strings.Builder
	)
	for {
		tok, err := decoder.Token()
		if err != nil {
			break
		}
		switch t := tok.(type) {
		case xml.StartElement:
			if strings.EqualFold(t.Name.Local, "loc") {
				inLoc = true
				text.Reset()
			}
		case xml.CharData:
			if inLoc {
				text.Write(t)
			}
		case xml.EndElement:
			if !inLoc || !strings.EqualFold(t.Name.Local, "loc") {
				continue
			}
			inLoc = false
			link := canonical(base, text.String())
			if link == "" || seen[link] {
				continue
			}
			seen[link] = true
			locs = append(locs, link)
		}
	}
	return locs
}
