// Package message defines the messages relaybot receives and sends on either
// network.
package message

// Received is a PRIVMSG received from a network.
type Received struct {
	// From is the nick of the sender.
	From string
	// To is the destination of the message. This is a channel name, or the
	// bot's own nick for a private message.
	To string
	// Text is the text of the message.
	Text string
}

// Sent is a message to be sent to a network.
type Sent struct {
	// To is the channel or nick to whom the message is sent.
	To string
	// Text is the message text. It must be a single line.
	Text string
}
