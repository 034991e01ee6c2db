package model

import "time"

// Fragment is one immutable piece of text. Fragments are shared by reference
// between the versions of a message chain.
type Fragment struct {
	ID          string
	AuthorEmail string
	Text        string
	CreatedAt   time.Time
}

// Message is an ordered chain of fragments. GranteeEmail is nil when nobody
// may append to it.
type Message struct {
	ID           string
	AuthorEmail  string
	GranteeEmail *string
	Fresh        bool
	CreatedAt    time.Time
	Fragments    []Fragment
}

// IsGrantee reports whether email currently holds the append grant.
func (m *Message) IsGrantee(email string) bool {
	return m.GranteeEmail != nil && *m.GranteeEmail == email
}

// CanAccess reports whether email may read or delete the message.
func (m *Message) CanAccess(email string) bool {
	return m.AuthorEmail == email || m.IsGrantee(email)
}

// Texts returns the fragment texts in chain order.
func (m *Message) Texts() []string {
	texts := make([]string, len(m.Fragments))
	for i, f := range m.Fragments {
		texts[i] = f.Text
	}
	return texts
}

// Overview lists the messages a user is involved in.
type Overview struct {
	Name     string
	Authored []string
	Granted  []string
}

// MessageRequest carries the text of a new message or fragment.
type MessageRequest struct {
	Text string `json:"text"`
}

// FragmentResponse represents one fragment in API responses.
type FragmentResponse struct {
	Text   string `json:"text"`
	Author string `json:"author"`
}

// MessageResponse represents a message in API responses. Message repeats the
// fragment texts in order.
type MessageResponse struct {
	ID        string             `json:"id"`
	Author    string             `json:"author"`
	Fragments []FragmentResponse `json:"fragments"`
	Message   []string           `json:"message"`
	MayAppend bool               `json:"may_append"`
}

// OverviewResponse represents the inbox summary returned after delivery.
type OverviewResponse struct {
	Status              string   `json:"status"`
	Username            string   `json:"username"`
	AuthoredMessageIDs  []string `json:"authored_message_ids"`
	MayAppendMessageIDs []string `json:"may_append_message_ids"`
}
