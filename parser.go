package ticketrelay

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strconv"

	"github.com/taogames/engine.igo/message"
)

// Parser holds per-connection decoding state: a binary event is announced
// by a text packet and completed by the binary messages that follow it.
type Parser struct {
	recon reconstructor
}

func NewParser() *Parser {
	return &Parser{}
}

type reconstructor struct {
	packet  *Packet
	buffers [][]byte
}

func (recon *reconstructor) reset(packet *Packet) {
	recon.packet = packet
	recon.buffers = nil
}

func (recon *reconstructor) takeBinary(data []byte) (bool, *Packet) {
	recon.buffers = append(recon.buffers, data)
	if len(recon.buffers) == recon.packet.NumOfAttachments {
		packet := recon.build()
		recon.reset(nil)
		return true, packet
	}
	return false, nil
}

func (recon *reconstructor) build() *Packet {
	recon.packet.Data = fillPlaceholders(recon.packet.Data, recon.buffers)
	return recon.packet
}

func fillPlaceholders(v interface{}, buffers [][]byte) interface{} {
	switch t := v.(type) {
	case []interface{}:
		for i := range t {
			t[i] = fillPlaceholders(t[i], buffers)
		}
		return t
	case map[string]interface{}:
		if isPlaceholder, _ := t["_placeholder"].(bool); isPlaceholder {
			if num, ok := t["num"].(json.Number); ok {
				if n, err := num.Int64(); err == nil && n >= 0 && int(n) < len(buffers) {
					return buffers[n]
				}
			}
			return t
		}
		for k := range t {
			t[k] = fillPlaceholders(t[k], buffers)
		}
		return t
	default:
		return v
	}
}

// Decode returns nil without error while a binary packet is still waiting
// for attachments.
func (p *Parser) Decode(msg *message.Message) (*Packet, error) {
	switch msg.Type {
	case message.MTText:
		packet, err := p.decodeString(msg.Data)
		if err != nil {
			return nil, err
		}
		switch packet.Type {
		case PacketBinaryEvent, PacketBinaryAck:
			if packet.NumOfAttachments == 0 {
				return packet, nil
			}
			p.recon.reset(packet)
			return nil, nil
		default:
			return packet, nil
		}

	case message.MTBinary:
		if p.recon.packet == nil {
			return nil, errors.New("unexpected binary attachment")
		}
		isFull, packet := p.recon.takeBinary(msg.Data)
		if isFull {
			return packet, nil
		}
		return nil, nil

	default:
		return nil, errors.New("invalid message type")
	}
}

func (p *Parser) decodeString(bs []byte) (*Packet, error) {
	i := 0
	packet := &Packet{}

	// Packet type
	if i == len(bs) {
		return nil, fmt.Errorf("empty packet %v", string(bs))
	}
	pt, err := ParsePacketType(bs[0])
	if err != nil {
		return nil, err
	}
	packet.Type = pt
	i++

	// Num of attachments
	if pt == PacketBinaryEvent || pt == PacketBinaryAck {
		begin := i
		for {
			if i == len(bs) {
				return nil, fmt.Errorf("empty binary packet %v", string(bs))
			}
			if bs[i] == '-' {
				n, err := strconv.Atoi(string(bs[begin:i]))
				if err != nil {
					return nil, err
				}
				packet.NumOfAttachments = n
				break
			}
			i++
		}
		i++
	}

	// Namespace
	if i < len(bs) && bs[i] == '/' {
		begin := i
		for {
			i++
			if i == len(bs) {
				packet.Namespace = string(bs[begin:i])
				break
			}
			if bs[i] == ',' {
				packet.Namespace = string(bs[begin:i])
				i++
				break
			}
		}
	} else {
		packet.Namespace = MainNamespace
	}

	// Id
	if i < len(bs) && isDigit(bs[i]) {
		begin := i
		for i < len(bs) && isDigit(bs[i]) {
			i++
		}
		id, err := strconv.Atoi(string(bs[begin:i]))
		if err != nil {
			return nil, err
		}
		packet.Id = &id
	}

	// Data
	if len(bs[i:]) > 0 {
		var payload any
		dec := json.NewDecoder(bytes.NewReader(bs[i:]))
		dec.UseNumber()
		if err := dec.Decode(&payload); err != nil {
			return nil, err
		}

		packet.Data = payload
		packet.DataKind = reflect.ValueOf(payload).Kind()
	}

	if !p.isPayloadValid(packet) {
		return nil, fmt.Errorf("invalid packet payload %v", string(bs))
	}

	return packet, nil
}

func (p *Parser) isPayloadValid(packet *Packet) bool {
	switch packet.Type {
	case PacketConnect:
		return packet.Data == nil || packet.DataKind == reflect.Map
	case PacketDisconnect:
		return packet.Data == nil
	case PacketConnectError:
		return packet.DataKind == reflect.Map || packet.DataKind == reflect.String
	case PacketEvent, PacketBinaryEvent:
		_, err := packet.EventName()
		return err == nil
	case PacketAck, PacketBinaryAck:
		return packet.DataKind == reflect.Slice
	default:
		return false
	}
}

func isDigit(b byte) bool {
	return b >= '0' && b <= '9'
}

type binaryPlaceholder struct {
	Placeholder bool `json:"_placeholder"`
	Num         int  `json:"num"`
}

func (p *Parser) Encode(packet *Packet) ([]*message.Message, error) {
	msgs := make([]*message.Message, 1)

	var buffer bytes.Buffer

	// Type & Bin
	if packet.Type == PacketEvent || packet.Type == PacketAck {
		data, ok := packet.Data.([]interface{})
		if !ok {
			return nil, fmt.Errorf("invalid event packet data type: %+v", packet)
		}
		argBegin := 0
		if packet.Type == PacketEvent {
			if len(data) == 0 {
				return nil, fmt.Errorf("invalid event packet data length: %+v", packet)
			}
			if _, ok = data[0].(string); !ok {
				return nil, fmt.Errorf("invalid event packet data name: %+v", packet)
			}
			argBegin = 1
		}

		for i := argBegin; i < len(data); i++ {
			bs, ok := data[i].([]byte)
			if ok {
				data[i] = &binaryPlaceholder{Placeholder: true, Num: packet.NumOfAttachments}
				packet.NumOfAttachments++
				msgs = append(msgs, &message.Message{Type: message.MTBinary, Data: bs})
			}
		}
		if packet.NumOfAttachments > 0 {
			if packet.Type == PacketEvent {
				packet.Type = PacketBinaryEvent
			} else {
				packet.Type = PacketBinaryAck
			}
		}
	}
	packet.DataKind = reflect.ValueOf(packet.Data).Kind()

	buffer.WriteByte(packet.Type.Byte())
	if packet.Type == PacketBinaryEvent || packet.Type == PacketBinaryAck {
		buffer.WriteString(strconv.Itoa(packet.NumOfAttachments))
		buffer.WriteByte('-')
	}

	// Nsp
	if packet.Namespace != "" && packet.Namespace != MainNamespace {
		buffer.WriteString(packet.Namespace)
		buffer.WriteByte(',')
	}

	// Ack
	if packet.Id != nil {
		buffer.WriteString(strconv.Itoa(*packet.Id))
	}

	// Data
	if packet.Data != nil {
		bs, err := json.Marshal(packet.Data)
		if err != nil {
			return nil, err
		}
		buffer.Write(bs)
	}

	// Build
	msgs[0] = &message.Message{Type: message.MTText, Data: buffer.Bytes()}

	return msgs, nil
}

// EventArgs returns the raw JSON of each argument after the event name.
func (p *Parser) EventArgs(packet *Packet) ([]json.RawMessage, error) {
	data, ok := packet.Data.([]interface{})
	if !ok || len(data) == 0 {
		return nil, fmt.Errorf("invalid event packet: %+v", packet)
	}

	args := make([]json.RawMessage, 0, len(data)-1)
	for _, arg := range data[1:] {
		bs, err := json.Marshal(arg)
		if err != nil {
			return nil, err
		}
		args = append(args, bs)
	}
	return args, nil
}
