package types

// IncomingMessage is the encrypted payload exchanged between devices. All
// fields are base64 and come from the network, so consumers must treat them
// as untrusted.
type IncomingMessage struct {
	Ciphertext            string `json:"ciphertext"`
	IV                    string `json:"iv"`
	SenderSignedPrekeyPub string `json:"sender_signed_prekey_pub"`
}
