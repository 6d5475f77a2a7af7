// Package options defines the generic options interface shared by every
// option group and a couple of flag naming helpers.
package options

import (
	"strings"

	"github.com/spf13/pflag"
)

// Join concatenates prefixes with "." and appends a trailing "." when the
// result is non-empty, so Join("chat")+"model" yields "chat.model".
func Join(prefixes ...string) string {
	nonEmpty := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		p = strings.Trim(p, ".")
		if p != "" {
			nonEmpty = append(nonEmpty, p)
		}
	}
	joined := strings.Join(nonEmpty, ".")
	if joined != "" {
		joined += "."
	}
	return joined
}

// IOptions defines methods to implement a generic options.
type IOptions interface {
	// Validate validates all the required options.
	// It can also used to complete options if needed.
	Validate() []error

	// AddFlags adds flags related to given flagset.
	AddFlags(fs *pflag.FlagSet, prefixes ...string)
}
