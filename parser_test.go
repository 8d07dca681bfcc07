package ticketrelay

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/require"
	"github.com/taogames/engine.igo/message"
)

func text(s string) *message.Message {
	return &message.Message{Type: message.MTText, Data: []byte(s)}
}

func TestParser_Decode(t *testing.T) {
	one, twelve := 1, 12

	tests := []struct {
		name      string
		in        string
		typ       PacketType
		namespace string
		id        *int
		event     string
	}{
		{"connect", `0`, PacketConnect, "/", nil, ""},
		{"connect with auth", `0{"userId":"u1"}`, PacketConnect, "/", nil, ""},
		{"connect other namespace", `0/admin,`, PacketConnect, "/admin", nil, ""},
		{"disconnect", `1`, PacketDisconnect, "/", nil, ""},
		{"event", `2["join-ticket","42"]`, PacketEvent, "/", nil, EventJoinTicket},
		{"event with ack", `21["join-ticket","42"]`, PacketEvent, "/", &one, EventJoinTicket},
		{"event with long ack", `212["typing",{}]`, PacketEvent, "/", &twelve, EventTyping},
		{"namespaced event with ack", `2/admin,1["x"]`, PacketEvent, "/admin", &one, "x"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := require.New(t)
			packet, err := NewParser().Decode(text(tt.in))
			req.NoError(err)
			req.NotNil(packet)
			req.Equal(tt.typ, packet.Type)
			req.Equal(tt.namespace, packet.Namespace)
			req.Equal(tt.id, packet.Id)
			if tt.event != "" {
				name, err := packet.EventName()
				req.NoError(err)
				req.Equal(tt.event, name)
			}
		})
	}
}

func TestParser_DecodeInvalid(t *testing.T) {
	for _, in := range []string{
		``,
		`9`,
		`2`,
		`2{"a":1}`,
		`2[1,2]`,
		`0"token"`,
		`1["x"]`,
		`2["unterminated`,
		`5x-["a"]`,
	} {
		_, err := NewParser().Decode(text(in))
		require.Error(t, err, "input %q", in)
	}
}

func TestParser_DecodeBinaryAttachments(t *testing.T) {
	req := require.New(t)
	p := NewParser()

	packet, err := p.Decode(text(`52-["upload",{"_placeholder":true,"num":0},{"_placeholder":true,"num":1}]`))
	req.NoError(err)
	req.Nil(packet, "waiting for attachments")

	packet, err = p.Decode(&message.Message{Type: message.MTBinary, Data: []byte{1, 2}})
	req.NoError(err)
	req.Nil(packet)

	packet, err = p.Decode(&message.Message{Type: message.MTBinary, Data: []byte{3}})
	req.NoError(err)
	req.NotNil(packet)
	req.Equal(PacketBinaryEvent, packet.Type)
	req.Equal([]interface{}{"upload", []byte{1, 2}, []byte{3}}, packet.Data)

	_, err = p.Decode(&message.Message{Type: message.MTBinary, Data: []byte{4}})
	req.Error(err, "no binary packet pending")
}

func TestParser_EventArgs(t *testing.T) {
	req := require.New(t)
	p := NewParser()

	packet, err := p.Decode(text(`2["send-message",{"ticketId":42,"message":"hi"},"extra"]`))
	req.NoError(err)

	args, err := p.EventArgs(packet)
	req.NoError(err)
	req.Len(args, 2)
	req.JSONEq(`{"ticketId":42,"message":"hi"}`, string(args[0]))
	req.Equal(json.RawMessage(`"extra"`), args[1])

	ev, err := DecodeInbound(EventSendMessage, args)
	req.NoError(err)
	req.Equal(SendMessage{TicketID: "42", Message: json.RawMessage(`"hi"`)}, ev)
}

func TestParser_Encode(t *testing.T) {
	seven := 7

	tests := []struct {
		name   string
		packet *Packet
		want   string
	}{
		{
			"connect reply",
			&Packet{Type: PacketConnect, Namespace: MainNamespace, Data: connReply{Sid: "abc"}},
			`0{"sid":"abc"}`,
		},
		{
			"connect error",
			&Packet{Type: PacketConnectError, Namespace: MainNamespace, Data: ErrInvalidNamespace},
			`4{"message":"Invalid namespace"}`,
		},
		{
			"namespaced connect error",
			&Packet{Type: PacketConnectError, Namespace: "/admin", Data: ErrInvalidNamespace},
			`4/admin,{"message":"Invalid namespace"}`,
		},
		{
			"event",
			&Packet{Type: PacketEvent, Namespace: MainNamespace, Data: []interface{}{EventUserOnline, UserOnline{UserID: "u1"}}},
			`2["user-online",{"userId":"u1"}]`,
		},
		{
			"notification payload is passed through",
			&Packet{Type: PacketEvent, Data: []interface{}{EventNewNotification, NewNotification{Payload: json.RawMessage(`{"id":3}`)}}},
			`2["new-notification",{"id":3}]`,
		},
		{
			"ack",
			&Packet{Type: PacketAck, Namespace: MainNamespace, Id: &seven, Data: []interface{}{}},
			`37[]`,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msgs, err := NewParser().Encode(tt.packet)
			require.NoError(t, err)
			require.Len(t, msgs, 1)
			require.Equal(t, message.MTText, msgs[0].Type)
			require.Equal(t, tt.want, string(msgs[0].Data))
		})
	}
}

func TestParser_EncodeBinary(t *testing.T) {
	req := require.New(t)

	msgs, err := NewParser().Encode(&Packet{
		Type: PacketEvent,
		Data: []interface{}{"file", []byte{9, 9}},
	})
	req.NoError(err)
	req.Len(msgs, 2)
	req.Equal(`51-["file",{"_placeholder":true,"num":0}]`, string(msgs[0].Data))
	req.Equal(message.MTBinary, msgs[1].Type)
	req.Equal([]byte{9, 9}, msgs[1].Data)
}

func TestParser_EncodeRejectsEmptyEvent(t *testing.T) {
	_, err := NewParser().Encode(&Packet{Type: PacketEvent, Data: []interface{}{}})
	require.Error(t, err)
}
