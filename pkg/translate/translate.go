// Package translate formats user-visible messages for the host locale.
package translate

import (
	"fmt"
	"log"

	"github.com/jeandeaual/go-locale"

	"golang.org/x/text/message"
)

var printer *message.Printer

func init() {
	locales, err := locale.GetLocales()
	if err != nil {
		log.Printf("irc16: locale: %v", err)
	}

	if len(locales) == 0 {
		locales = []string{"en-US"}
	}

	printer = message.NewPrinter(message.MatchLanguage(locales...))
}

// verbatim prints an integer without locale digit grouping. Positions,
// offsets and immediates in messages must match the source and listing.
type verbatim struct {
	v any
}

func (p verbatim) Format(s fmt.State, verb rune) {
	fmt.Fprintf(s, fmt.FormatString(s, verb), p.v)
}

// From an en-US Sprintf() format, translate to string. Integer arguments
// are printed as plain digits.
func From(key message.Reference, args ...any) string {
	plain := make([]any, len(args))
	for i, arg := range args {
		switch arg.(type) {
		case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64:
			plain[i] = verbatim{arg}
		default:
			plain[i] = arg
		}
	}
	return printer.Sprintf(key, plain...)
}
