// Package feed maintains the ordered notification list merged from REST
// pagination and push delivery, plus the unread counter and the
// click-dispatch mapping.
//
// Unlike conversation read state, notification mutations revert on REST
// failure; each entry is individually actioned so a silently lost mutation
// would leave a visibly wrong list. The one exception is the bulk
// mark-all-read, which keeps the optimistic flip on failure.
package feed
