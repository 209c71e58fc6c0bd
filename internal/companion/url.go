package companion

import (
	"net/url"
	"strings"
)

const (
	// DefaultVersion is the protocol version tag passed to the configuration page.
	DefaultVersion = "1.3.0"

	// DefaultConfigureURL is the hosted configuration page.
	DefaultConfigureURL = "http://static.sitr.us.s3-website-us-west-2.amazonaws.com/configure-fuzzy-text.html"
)

// ConfigurationURL builds the configuration page address. The page reads its
// parameters from the fragment: base#v=<version>&options=<settings json>.
func ConfigurationURL(base, version, options string) string {
	return base + "#v=" + EncodeURIComponent(version) + "&options=" + EncodeURIComponent(options)
}

// uriComponentMarks are left unescaped by encodeURIComponent but escaped by
// url.QueryEscape.
var uriComponentMarks = strings.NewReplacer(
	"+", "%20",
	"%21", "!",
	"%27", "'",
	"%28", "(",
	"%29", ")",
	"%2A", "*",
)

// EncodeURIComponent escapes s the way browsers do for URI components: spaces
// become %20 rather than '+' and the marks !'()* stay literal.
func EncodeURIComponent(s string) string {
	return uriComponentMarks.Replace(url.QueryEscape(s))
}

// ParseConfigurationURL extracts the version and settings text from a URL built
// by ConfigurationURL.
func ParseConfigurationURL(raw string) (version, options string, err error) {
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	values, err := url.ParseQuery(u.EscapedFragment())
	if err != nil {
		return "", "", err
	}
	return values.Get("v"), values.Get("options"), nil
}
