// Package parsers imports all parser packages to trigger their init() registration.
// Import this package for side effects only.
package parsers

import (
	// Import all parser packages to register them with the registry.
	_ "atsc3_parser/internal/parsers/l1detail"
	_ "atsc3_parser/internal/parsers/plpinfo"
	_ "atsc3_parser/internal/parsers/rawkv"
	_ "atsc3_parser/internal/parsers/status"
	_ "atsc3_parser/internal/parsers/streaminfo"
	_ "atsc3_parser/internal/parsers/sysversion"
)
