package condeval

import (
	"strings"

	"github.com/antchfx/xmlquery"
)

// ParseDocument parses a query command's stdout as XML. Empty input (a
// query command that produced no output) returns a nil document and no
// error, matching the "XML document is null" case of Evaluate.
func ParseDocument(stdout string) (*xmlquery.Node, error) {
	if strings.TrimSpace(stdout) == "" {
		return nil, nil
	}
	return xmlquery.Parse(strings.NewReader(stdout))
}
