package outcome

import (
	"encoding/json"
	"strings"
)

// Kind classifies a backend reply once, at the API boundary.
type Kind int

const (
	// KindTransport means the call never produced a usable reply
	// (connection failure, timeout, undecodable body).
	KindTransport Kind = iota
	// KindOK means the backend accepted the request.
	KindOK
	// KindUnauthenticated means the backend reported no valid session.
	KindUnauthenticated
	// KindNotRegistered means the backend does not know the account.
	KindNotRegistered
	// KindRejected means the backend refused the request for any other reason.
	KindRejected
)

// String returns the lower-case name of the kind, for logging.
func (k Kind) String() string {
	switch k {
	case KindOK:
		return "ok"
	case KindUnauthenticated:
		return "unauthenticated"
	case KindNotRegistered:
		return "not_registered"
	case KindRejected:
		return "rejected"
	default:
		return "transport"
	}
}

// Backend message strings that carry protocol meaning.
const (
	MessageNotAuthenticated = "User not authenticated"
	MessageNotSignedUp      = "User not signed up"
	MessageLoginSuccessful  = "Login successful"
	MessageEmailNotFound    = "Email not found. Please register"
)

// Outcome is the tagged result of one backend call.
type Outcome struct {
	Kind    Kind
	Status  int    // HTTP status, 0 for transport failures
	Message string // "message" field of the reply, if any
	Detail  string // "detail" field of the reply, flattened to text
	Body    []byte // raw reply body
	Err     error  // set for KindTransport
}

// Reply is the loosely typed shape every backend reply is decoded into.
type Reply struct {
	Message string
	Detail  string
}

// DecodeReply extracts message and detail from a JSON reply body.
// Some endpoints reply with a bare JSON string; it is taken as the message.
// Other non-object bodies (lists, numbers) yield an empty Reply.
// A FastAPI validation detail (a list of {msg: ...}) is flattened to its first msg.
// PRE: none
// POST: returns an error only when body is not valid JSON
func DecodeReply(body []byte) (Reply, error) {
	var raw any
	if err := json.Unmarshal(body, &raw); err != nil {
		return Reply{}, err
	}
	if s, ok := raw.(string); ok {
		return Reply{Message: s}, nil
	}
	obj, ok := raw.(map[string]any)
	if !ok {
		return Reply{}, nil
	}

	var r Reply
	if m, ok := obj["message"].(string); ok {
		r.Message = m
	}
	switch d := obj["detail"].(type) {
	case string:
		r.Detail = d
	case []any:
		for _, item := range d {
			if entry, ok := item.(map[string]any); ok {
				if msg, ok := entry["msg"].(string); ok && msg != "" {
					r.Detail = msg
					break
				}
			}
		}
	}
	return r, nil
}

// OK reports whether the call succeeded.
func (o Outcome) OK() bool {
	return o.Kind == KindOK
}

// ErrorText returns the inline error for a failed call: detail, else message, else fallback.
// PRE: fallback is non-empty
// POST: returns a non-empty string
func (o Outcome) ErrorText(fallback string) string {
	if d := strings.TrimSpace(o.Detail); d != "" {
		return d
	}
	if m := strings.TrimSpace(o.Message); m != "" {
		return m
	}
	return fallback
}
