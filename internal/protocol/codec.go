package protocol

import (
	"errors"
	"fmt"
	"math"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
	"google.golang.org/protobuf/proto"
	"google.golang.org/protobuf/types/known/timestamppb"
)

// DefaultBufferSize is the default receive buffer for a single datagram.
const DefaultBufferSize = 1024

const (
	// fieldKind holds the message Kind as a varint.
	fieldKind protowire.Number = 1
	// fieldTimestamp holds a serialized google.protobuf.Timestamp.
	fieldTimestamp protowire.Number = 2
)

var (
	// ErrMalformed is returned when a datagram is not a well-formed message.
	ErrMalformed = errors.New("malformed datagram")
	// ErrUnknownKind is returned for a kind outside the expected message family.
	ErrUnknownKind = errors.New("unknown message kind")
	// ErrDatagramTooLarge is returned when a datagram filled the whole receive
	// buffer and may have been truncated by the transport.
	ErrDatagramTooLarge = errors.New("datagram fills receive buffer")
)

//nolint:gochecknoglobals // Stateless marshal options reused for every encode.
var timestampMarshal = proto.MarshalOptions{Deterministic: true}

// Encode serializes a message into a new buffer.
func Encode(m Message) ([]byte, error) {
	return Append(nil, m)
}

// Append serializes a message at the end of b.
func Append(b []byte, m Message) ([]byte, error) {
	var timestamp *time.Time

	switch msg := m.(type) {
	case Sync, DelayReq:
	case FollowUp:
		timestamp = &msg.Origin
	case DelayResp:
		timestamp = &msg.Receipt
	default:
		return b, fmt.Errorf("%w: %T", ErrUnknownKind, m)
	}

	b = protowire.AppendTag(b, fieldKind, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.Kind()))

	if timestamp == nil {
		return b, nil
	}

	ts := timestamppb.New(*timestamp)
	if err := ts.CheckValid(); err != nil {
		return b, fmt.Errorf("encode %s timestamp: %w", m.Kind(), err)
	}

	raw, err := timestampMarshal.Marshal(ts)
	if err != nil {
		return b, fmt.Errorf("encode %s timestamp: %w", m.Kind(), err)
	}

	b = protowire.AppendTag(b, fieldTimestamp, protowire.BytesType)
	b = protowire.AppendBytes(b, raw)

	return b, nil
}

// DecodeMaster parses a datagram sent by the master.
func DecodeMaster(b []byte) (MasterMessage, error) {
	f, err := parse(b)
	if err != nil {
		return nil, err
	}

	switch f.kind {
	case KindSync:
		if err := f.expectTimestamp(false); err != nil {
			return nil, err
		}

		return Sync{}, nil
	case KindFollowUp:
		if err := f.expectTimestamp(true); err != nil {
			return nil, err
		}

		return FollowUp{Origin: f.timestamp.AsTime()}, nil
	case KindDelayResp:
		if err := f.expectTimestamp(true); err != nil {
			return nil, err
		}

		return DelayResp{Receipt: f.timestamp.AsTime()}, nil
	default:
		return nil, fmt.Errorf("%w: %s from master", ErrUnknownKind, f.kind)
	}
}

// DecodeSlave parses a datagram sent by a slave.
func DecodeSlave(b []byte) (SlaveMessage, error) {
	f, err := parse(b)
	if err != nil {
		return nil, err
	}

	if f.kind != KindDelayReq {
		return nil, fmt.Errorf("%w: %s from slave", ErrUnknownKind, f.kind)
	}

	if err := f.expectTimestamp(false); err != nil {
		return nil, err
	}

	return DelayReq{}, nil
}

// CheckSize reports ErrDatagramTooLarge when n bytes filled a buffer of the given capacity.
func CheckSize(n, capacity int) error {
	if n >= capacity {
		return fmt.Errorf("%w: %d bytes", ErrDatagramTooLarge, n)
	}

	return nil
}

// frame is the field-level view of a datagram before it is mapped to a message.
type frame struct {
	// kind is the value of fieldKind.
	kind Kind
	// hasKind is set once fieldKind was seen.
	hasKind bool
	// timestamp is the decoded fieldTimestamp, nil if absent.
	timestamp *timestamppb.Timestamp
}

// parse walks the datagram fields. Unknown and repeated fields are rejected.
//
//nolint:cyclop // One case per wire field keeps the decoder linear.
func parse(b []byte) (*frame, error) {
	f := new(frame)

	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return nil, fmt.Errorf("%w: %w", ErrMalformed, protowire.ParseError(n))
		}

		b = b[n:]

		switch {
		case num == fieldKind && typ == protowire.VarintType:
			if f.hasKind {
				return nil, fmt.Errorf("%w: repeated kind", ErrMalformed)
			}

			v, n := protowire.ConsumeVarint(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: kind: %w", ErrMalformed, protowire.ParseError(n))
			}

			if v > math.MaxUint8 {
				return nil, fmt.Errorf("%w: %d", ErrUnknownKind, v)
			}

			f.kind, f.hasKind = Kind(v), true
			b = b[n:]
		case num == fieldTimestamp && typ == protowire.BytesType:
			if f.timestamp != nil {
				return nil, fmt.Errorf("%w: repeated timestamp", ErrMalformed)
			}

			v, n := protowire.ConsumeBytes(b)
			if n < 0 {
				return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformed, protowire.ParseError(n))
			}

			ts := new(timestamppb.Timestamp)
			if err := proto.Unmarshal(v, ts); err != nil {
				return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
			}

			if err := ts.CheckValid(); err != nil {
				return nil, fmt.Errorf("%w: timestamp: %w", ErrMalformed, err)
			}

			f.timestamp = ts
			b = b[n:]
		default:
			return nil, fmt.Errorf("%w: unexpected field %d of wire type %d", ErrMalformed, num, typ)
		}
	}

	if !f.hasKind {
		return nil, fmt.Errorf("%w: missing kind", ErrMalformed)
	}

	return f, nil
}

// expectTimestamp checks the presence of the timestamp field against the kind.
func (f *frame) expectTimestamp(required bool) error {
	switch {
	case required && f.timestamp == nil:
		return fmt.Errorf("%w: %s without timestamp", ErrMalformed, f.kind)
	case !required && f.timestamp != nil:
		return fmt.Errorf("%w: %s with timestamp", ErrMalformed, f.kind)
	default:
		return nil
	}
}
