package longterm

import "log"

// logWarn matches the plain log.Printf("[WARN] ...") convention used
// throughout the rest of the module (see internal/session/store.go).
func logWarn(format string, args ...interface{}) {
	log.Printf("[WARN] "+format, args...)
}
