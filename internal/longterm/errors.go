package longterm

import "errors"

// ErrExternalMutation is returned by SaveAndCommitIfUnchanged when the
// store's HEAD has moved since the caller's snapshot was taken — another
// process (or a user hand-editing a category file) committed in the
// meantime. Per spec.md's §4.7/§5 "on detected change, the consolidator
// must re-read before writing", a caller sees this only in the narrow
// race window between its own HasChangedSinceLoad check and its commit;
// the expected response is to reload and retry, not to treat it as fatal.
var ErrExternalMutation = errors.New("longterm: store changed since load")
