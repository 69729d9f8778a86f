package message

import (
	"strings"
)

// Separator splits the three wire fields of a message.
const Separator = ","

// UnknownSender is used when a malformed line carries no sender field.
const UnknownSender = "?"

// FormatErrorContent is the content of every message produced from a malformed line.
const FormatErrorContent = "Msg format error."

// Kind tags what a Message means to the dispatcher.
type Kind int

const (
	Error Kind = iota
	LogIn
	Exit
	ListUpdate
	Text
)

var kindNames = map[Kind]string{
	LogIn:      "ClientLogin",
	Exit:       "ClientExit",
	ListUpdate: "ClientListUpdate",
	Text:       "TextMessage",
	Error:      "Error",
}

var kindsByName = map[string]Kind{
	"ClientLogin":      LogIn,
	"ClientExit":       Exit,
	"ClientListUpdate": ListUpdate,
	"TextMessage":      Text,
	"Error":            Error,
}

// String returns the canonical wire name of the kind.
func (k Kind) String() string {
	if name, ok := kindNames[k]; ok {
		return name
	}
	return kindNames[Error]
}

// ParseKind looks a kind up by its wire name. Unknown names map to Error.
func ParseKind(name string) Kind {
	if k, ok := kindsByName[name]; ok {
		return k
	}
	return Error
}

// Message is the unit exchanged between clients and the dispatcher.
//
// Sender is either a client chosen name/address (text from clients) or a
// numeric connection id rendered as text (exit notices from the server).
// Sender must not contain Separator; Content may.
type Message struct {
	Kind    Kind
	Sender  string
	Content string
}

// Encode renders m as "<Kind>,<Sender>,<Content>".
func Encode(m Message) string {
	return strings.Join([]string{m.Kind.String(), m.Sender, m.Content}, Separator)
}

// String is Encode(m).
func (m Message) String() string { return Encode(m) }

// Decode parses exactly one encoded message. It never fails: malformed
// input becomes an Error message with FormatErrorContent.
func Decode(line string) Message {
	fields := strings.Split(line, Separator)
	if len(fields) < 3 {
		sender := UnknownSender
		if len(fields) == 2 {
			sender = fields[1]
		}
		return Message{Kind: Error, Sender: sender, Content: FormatErrorContent}
	}
	return Message{
		Kind:    ParseKind(fields[0]),
		Sender:  fields[1],
		Content: strings.Join(fields[2:], Separator),
	}
}

// Brief is the display form used by clients: "sender: content".
func (m Message) Brief() string {
	return m.Sender + ": " + m.Content
}
