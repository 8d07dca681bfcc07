package ticketrelay

import (
	"fmt"
	"reflect"
)

type Packet struct {
	Type             PacketType
	Namespace        string
	Data             any
	DataKind         reflect.Kind
	Id               *int
	NumOfAttachments int
}

type PacketType int

const (
	PacketConnect PacketType = iota
	PacketDisconnect
	PacketEvent
	PacketAck
	PacketConnectError
	PacketBinaryEvent
	PacketBinaryAck
)

func (pt PacketType) Byte() byte {
	return byte(pt) + '0'
}

func ParsePacketType(b byte) (PacketType, error) {
	pt := PacketType(b - '0')
	if pt < PacketConnect || pt > PacketBinaryAck {
		return 0, fmt.Errorf("socket packet type invalid: %c", b)
	}
	return pt, nil
}

// EventName returns the name of an event packet.
func (p *Packet) EventName() (string, error) {
	data, ok := p.Data.([]interface{})
	if ok && len(data) > 0 {
		if name, ok := data[0].(string); ok {
			return name, nil
		}
	}
	return "", fmt.Errorf("invalid event packet: %+v", p)
}

type DisconnectReason string

const (
	DRServerShutdown            DisconnectReason = "server shutting down"
	DRClientNamespaceDisconnect DisconnectReason = "client namespace disconnect"
	DRParseError                DisconnectReason = "parse error"

	DRTransportClose DisconnectReason = "transport close"
)
