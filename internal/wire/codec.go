package wire

import (
	"fmt"

	"github.com/hashicorp/go-msgpack/v2/codec"
)

var handle = &codec.MsgpackHandle{}

// Envelope is what actually crosses a transport boundary: a message
// named by Kind plus its msgpack-encoded payload. Decoding an Envelope
// requires knowing which concrete type Kind names; Decode does that.
type Envelope struct {
	Kind    string
	Payload []byte
}

// Encode msgpack-encodes msg and wraps it with its kind so the receiving
// side's dispatch loop can decode into the right concrete type without
// a side channel.
func Encode(msg Message) (Envelope, error) {
	var buf []byte
	enc := codec.NewEncoderBytes(&buf, handle)
	if err := enc.Encode(msg); err != nil {
		return Envelope{}, fmt.Errorf("wire: encode %s: %w", msg.Kind(), err)
	}
	return Envelope{Kind: msg.Kind(), Payload: buf}, nil
}

// Decode unmarshals the envelope's payload into a concrete message
// matching its Kind. Unknown kinds are a programmer error: every kind
// this module sends has a case here.
func Decode(env Envelope) (Message, error) {
	dec := codec.NewDecoderBytes(env.Payload, handle)

	switch env.Kind {
	case (Bootstrap{}).Kind():
		var m Bootstrap
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Initialize{}).Kind():
		var m Initialize
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Request{}).Kind():
		var m Request
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Privilege{}).Kind():
		var m Privilege
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Restart{}).Kind():
		var m Restart
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Advise{}).Kind():
		var m Advise
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (ExitCriticalSection{}).Kind():
		var m ExitCriticalSection
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (Recovery{}).Kind():
		var m Recovery
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	case (UserInput{}).Kind():
		var m UserInput
		if err := dec.Decode(&m); err != nil {
			return nil, err
		}
		return m, nil
	default:
		return nil, fmt.Errorf("wire: unknown message kind %q", env.Kind)
	}
}
