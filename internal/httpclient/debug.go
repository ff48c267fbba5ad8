package httpclient

import (
	"net/url"
	"os"
	"path/filepath"
	"strings"

	"github.com/kestrelscan/leadscrape/internal/config"
)

// dumpDebugBody persists a GET's response body under cfg.DebugDir using a
// filename derived from the URL's host and path. Failures are ignored: this
// is a debugging aid, not part of the retrieval path.
func dumpDebugBody(cfg *config.Config, rawURL string, body []byte) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return
	}

	name := strings.ReplaceAll(parsed.Hostname()+parsed.Path, "/", "_")
	if name == "" {
		name = "root"
	}

	_ = os.MkdirAll(cfg.DebugDir, 0o750)
	_ = os.WriteFile(filepath.Join(cfg.DebugDir, name+".html"), body, 0o600)
}
