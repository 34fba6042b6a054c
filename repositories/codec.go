package repositories

import (
	"fmt"
	"hive-chat/domain"
	"time"

	"google.golang.org/protobuf/encoding/protowire"
)

// Records are stored in protobuf wire format so the layout stays forward compatible:
// unknown fields are skipped on decode.
const (
	fieldMessageID        protowire.Number = 1
	fieldMessageSender    protowire.Number = 2
	fieldMessageRecipient protowire.Number = 3
	fieldMessageText      protowire.Number = 4
	fieldMessageTimestamp protowire.Number = 5

	fieldUserID       protowire.Number = 1
	fieldUserUsername protowire.Number = 2
	fieldUserEmail    protowire.Number = 3
)

func marshalMessage(m domain.Message) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldMessageID, protowire.VarintType)
	b = protowire.AppendVarint(b, uint64(m.ID))
	b = protowire.AppendTag(b, fieldMessageSender, protowire.BytesType)
	b = protowire.AppendString(b, m.SenderID)
	b = protowire.AppendTag(b, fieldMessageRecipient, protowire.BytesType)
	b = protowire.AppendString(b, m.RecipientID)
	b = protowire.AppendTag(b, fieldMessageText, protowire.BytesType)
	b = protowire.AppendString(b, m.Text)
	b = protowire.AppendTag(b, fieldMessageTimestamp, protowire.VarintType)
	b = protowire.AppendVarint(b, protowire.EncodeZigZag(m.Timestamp.UnixNano()))
	return b
}

func unmarshalMessage(b []byte) (domain.Message, error) {
	var m domain.Message
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte) (int, error) {
		switch {
		case num == fieldMessageID && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			m.ID = domain.MessageID(v)
			return n, nil
		case num == fieldMessageSender && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.SenderID = v
			return n, nil
		case num == fieldMessageRecipient && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.RecipientID = v
			return n, nil
		case num == fieldMessageText && typ == protowire.BytesType:
			v, n := protowire.ConsumeString(value)
			m.Text = v
			return n, nil
		case num == fieldMessageTimestamp && typ == protowire.VarintType:
			v, n := protowire.ConsumeVarint(value)
			m.Timestamp = time.Unix(0, protowire.DecodeZigZag(v)).UTC()
			return n, nil
		}
		return protowire.ConsumeFieldValue(num, typ, value), nil
	})
	return m, err
}

func marshalUser(u domain.User) []byte {
	var b []byte
	b = protowire.AppendTag(b, fieldUserID, protowire.BytesType)
	b = protowire.AppendString(b, u.ID)
	b = protowire.AppendTag(b, fieldUserUsername, protowire.BytesType)
	b = protowire.AppendString(b, u.Username)
	b = protowire.AppendTag(b, fieldUserEmail, protowire.BytesType)
	b = protowire.AppendString(b, u.Email)
	return b
}

func unmarshalUser(b []byte) (domain.User, error) {
	var u domain.User
	err := walkFields(b, func(num protowire.Number, typ protowire.Type, value []byte) (int, error) {
		if typ != protowire.BytesType {
			return protowire.ConsumeFieldValue(num, typ, value), nil
		}
		v, n := protowire.ConsumeString(value)
		switch num {
		case fieldUserID:
			u.ID = v
		case fieldUserUsername:
			u.Username = v
		case fieldUserEmail:
			u.Email = v
		}
		return n, nil
	})
	return u, err
}

// walkFields iterates over every field of a wire-encoded record.
// fn receives the bytes following the tag and returns how many it consumed.
func walkFields(b []byte, fn func(num protowire.Number, typ protowire.Type, value []byte) (int, error)) error {
	for len(b) > 0 {
		num, typ, n := protowire.ConsumeTag(b)
		if n < 0 {
			return fmt.Errorf("invalid tag: %w", protowire.ParseError(n))
		}
		b = b[n:]
		m, err := fn(num, typ, b)
		if err != nil {
			return err
		}
		if m < 0 {
			return fmt.Errorf("invalid field %d: %w", num, protowire.ParseError(m))
		}
		b = b[m:]
	}
	return nil
}
