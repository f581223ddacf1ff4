package extract

// Config describes how an order id is embedded in a label filename.
//
// With Pattern empty the convention is prefix + id [+ delimiter + suffix] + extension,
// e.g. "label_A-1001.pdf" or "label_A-1002_v2.pdf".
type Config struct {
	// Prefix must start the filename stem; it is stripped before the id.
	Prefix string `mapstructure:"prefix" default:"label_"`
	// Delimiter ends the id; anything after it is ignored.
	Delimiter string `mapstructure:"delimiter" default:"_"`
	// Extensions lists accepted extensions (case-insensitive). Empty accepts any.
	Extensions []string `mapstructure:"extensions" default:".pdf"`
	// Pattern, when set, is a regular expression with a named group "id"
	// matched against the filename stem. It overrides Prefix and Delimiter.
	Pattern string `mapstructure:"pattern" default:""`
}
