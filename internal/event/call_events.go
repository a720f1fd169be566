package event

import "encoding/json"

// Call signaling event types. The relay forwards these between peers; it
// never stores them.
const (
	TypeCallOffer     = "call-offer"
	TypeCallAnswer    = "call-answer"
	TypeCallCandidate = "call-ice-candidate"
	TypeCallEnd       = "call-end"
)

// CallInbound is a client-to-server signaling frame. Offer/answer/candidate
// bodies are opaque SDP/ICE blobs and pass through unparsed.
type CallInbound struct {
	Type      string          `json:"type"`
	Offer     json.RawMessage `json:"offer,omitempty"`
	Answer    json.RawMessage `json:"answer,omitempty"`
	Candidate json.RawMessage `json:"candidate,omitempty"`
}

// DecodeCall parses an inbound signaling frame.
func DecodeCall(data []byte) (*CallInbound, error) {
	var in CallInbound
	if err := json.Unmarshal(data, &in); err != nil {
		return nil, err
	}
	return &in, nil
}

type callFrame struct {
	Type         string          `json:"type"`
	FromUserID   string          `json:"fromUserId"`
	FromUsername string          `json:"fromUsername,omitempty"`
	Offer        json.RawMessage `json:"offer,omitempty"`
	Answer       json.RawMessage `json:"answer,omitempty"`
	Candidate    json.RawMessage `json:"candidate,omitempty"`
}

// CallOfferFrame builds the relayed offer frame.
func CallOfferFrame(fromUserID, fromUsername string, offer json.RawMessage) []byte {
	frame, _ := json.Marshal(callFrame{Type: TypeCallOffer, FromUserID: fromUserID, FromUsername: fromUsername, Offer: offer})
	return frame
}

// CallAnswerFrame builds the relayed answer frame.
func CallAnswerFrame(fromUserID string, answer json.RawMessage) []byte {
	frame, _ := json.Marshal(callFrame{Type: TypeCallAnswer, FromUserID: fromUserID, Answer: answer})
	return frame
}

// CallCandidateFrame builds the relayed ICE candidate frame.
func CallCandidateFrame(fromUserID string, candidate json.RawMessage) []byte {
	frame, _ := json.Marshal(callFrame{Type: TypeCallCandidate, FromUserID: fromUserID, Candidate: candidate})
	return frame
}

// CallEndFrame builds the terminal call-end frame. Unlike the other
// signaling frames it is delivered to every room member, the sender included.
func CallEndFrame(fromUserID string) []byte {
	frame, _ := json.Marshal(callFrame{Type: TypeCallEnd, FromUserID: fromUserID})
	return frame
}
