package feed

// View identifies the navigation surface a notification opens.
type View string

const (
	ViewNone            View = ""
	ViewFriends         View = "friends"
	ViewArtistDashboard View = "artist_dashboard"
	ViewConversation    View = "conversation"
	ViewCustom          View = "custom"
)

// Target is the navigation destination for a clicked notification.
type Target struct {
	View View
	Ref  string
}

// ClickTarget maps a notification to its navigation target. The mapping is a
// pure function of the kind:
//
//	friend_request, friend_request_accepted -> friends view
//	artist_approved                         -> artist dashboard
//	new_message                             -> conversation with the sender
//	anything else                           -> the provided action target, or nothing
func (n Notification) ClickTarget() Target {
	switch n.Kind {
	case KindFriendRequest, KindFriendRequestAccepted:
		return Target{View: ViewFriends}
	case KindArtistApproved:
		return Target{View: ViewArtistDashboard}
	case KindNewMessage:
		return Target{View: ViewConversation, Ref: n.SenderRef}
	default:
		if n.ActionTarget != "" {
			return Target{View: ViewCustom, Ref: n.ActionTarget}
		}
		return Target{View: ViewNone}
	}
}
