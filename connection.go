package ticketrelay

import (
	"context"
	"sync"

	"github.com/taogames/engine.igo/message"
	"go.uber.org/zap"
)

// EngineSession is the engine.io session a Connection reads from and
// writes to.
type EngineSession interface {
	ID() string
	ReadMessage() (message.MessageType, []byte, error)
	WriteMessage(msg *message.Message) error
	Close()
}

// Connection is one client on the main namespace. It authenticates the
// CONNECT packet, then feeds events to the router in the order they arrive
// and serves as the Sink for events addressed to the client.
type Connection struct {
	server  *Server
	session EngineSession
	parser  *Parser
	caller  Caller

	writeMu    sync.Mutex
	closeOnce  sync.Once
	detachOnce sync.Once

	logger *zap.SugaredLogger
}

func newConnection(s *Server, session EngineSession) *Connection {
	return &Connection{
		server:  s,
		session: session,
		parser:  NewParser(),
		logger:  s.logger.With("Connection", session.ID()),
	}
}

// handshake runs Connecting -> Active. On false nothing was registered.
func (conn *Connection) handshake() bool {
	mt, bs, err := conn.session.ReadMessage()
	if err != nil {
		conn.logger.Error("conn.session.ReadMessage: ", err)
		return false
	}
	if mt != message.MTText {
		conn.logger.Errorf("first message is %v, not text", mt)
		return false
	}

	packet, err := conn.parser.Decode(&message.Message{Type: mt, Data: bs})
	if err != nil {
		conn.logger.Error("conn.parser.Decode: ", err)
		return false
	}
	if packet.Type != PacketConnect {
		conn.logger.Errorf("first packet is %v, not connect", packet.Type)
		return false
	}
	if packet.Namespace != MainNamespace {
		conn.ConnectError(packet.Namespace, ErrInvalidNamespace)
		return false
	}

	select {
	case <-conn.server.closed:
		conn.ConnectError(MainNamespace, errMsg{Message: string(DRServerShutdown)})
		return false
	default:
	}

	auth, _ := packet.Data.(map[string]interface{})
	ctx, cancel := context.WithTimeout(conn.server.ctx, conn.server.authTimeout)
	identity, err := conn.server.verifier.Verify(ctx, CredentialFromHandshake(auth))
	cancel()
	if err != nil {
		conn.logger.Infof("Connection rejected: %v", err)
		conn.ConnectError(MainNamespace, errMsg{Message: err.Error()})
		return false
	}

	sid := conn.session.ID()
	if err := conn.write(&Packet{
		Type:      PacketConnect,
		Namespace: MainNamespace,
		Data:      connReply{Sid: sid},
	}); err != nil {
		conn.logger.Error("connect reply: ", err)
		return false
	}

	caller, err := conn.server.hub.Connect(sid, identity, conn)
	if err != nil {
		conn.logger.Error("hub.Connect: ", err)
		conn.ConnectError(MainNamespace, errMsg{Message: err.Error()})
		return false
	}
	conn.caller = caller
	conn.logger = conn.logger.With("User", identity.ID)

	return true
}

// Start reads until the transport fails or the client leaves.
func (conn *Connection) Start() {
	for {
		mt, bs, err := conn.session.ReadMessage()
		if err != nil {
			conn.logger.Debug("conn.session.ReadMessage: ", err)
			conn.disconnect(DRTransportClose)
			return
		}

		if !conn.onPacket(mt, bs) {
			return
		}
	}
}

func (conn *Connection) onPacket(mt message.MessageType, data []byte) bool {
	packet, err := conn.parser.Decode(&message.Message{Type: mt, Data: data})
	if err != nil {
		conn.logger.Error("conn.parser.Decode: ", err)
		conn.disconnect(DRParseError)
		return false
	}
	if packet == nil {
		// Binary payload concatenating
		return true
	}

	if packet.Namespace != MainNamespace {
		conn.ConnectError(packet.Namespace, ErrInvalidNamespace)
		return true
	}

	switch packet.Type {
	case PacketDisconnect:
		conn.disconnect(DRClientNamespaceDisconnect)
		return false
	case PacketEvent, PacketBinaryEvent:
		conn.dispatch(packet)
	default:
		// Not supported
	}
	return true
}

func (conn *Connection) dispatch(packet *Packet) {
	name, err := packet.EventName()
	if err != nil {
		conn.logger.Warn("dropping event: ", err)
		return
	}
	args, err := conn.parser.EventArgs(packet)
	if err != nil {
		conn.logger.Warnf("dropping %s: %v", name, err)
		return
	}
	ev, err := DecodeInbound(name, args)
	if err != nil {
		conn.logger.Warnf("dropping event: %v", err)
		return
	}

	conn.server.router.Route(conn.caller, ev)

	if packet.Id != nil {
		if err := conn.write(&Packet{
			Type:      PacketAck,
			Namespace: MainNamespace,
			Id:        packet.Id,
			Data:      []interface{}{},
		}); err != nil {
			conn.logger.Warn("ack: ", err)
		}
	}
}

// disconnect runs the Active -> Disconnected cleanup once.
func (conn *Connection) disconnect(reason DisconnectReason) {
	conn.detachOnce.Do(func() {
		res := conn.server.hub.Disconnect(conn.caller.ConnID)
		conn.logger.Infof("Disconnected (%s): %v, left %d rooms", reason, res.Transition, len(res.Rooms))
		conn.Close()
	})
}

func (conn *Connection) ConnectError(namespace string, errMsg interface{}) {
	if err := conn.write(&Packet{
		Type:      PacketConnectError,
		Namespace: namespace,
		Data:      errMsg,
	}); err != nil {
		conn.logger.Error("connect error: ", err)
	}
}

func (conn *Connection) write(packet *Packet) error {
	msgs, err := conn.parser.Encode(packet)
	if err != nil {
		return err
	}

	conn.writeMu.Lock()
	defer conn.writeMu.Unlock()
	for _, msg := range msgs {
		if err := conn.session.WriteMessage(msg); err != nil {
			return err
		}
	}
	return nil
}

// Send implements Sink.
func (conn *Connection) Send(ev Outbound) error {
	return conn.write(&Packet{
		Type:      PacketEvent,
		Namespace: MainNamespace,
		Data:      []interface{}{ev.EventName(), ev},
	})
}

// Close implements Sink. Closing the session ends the read loop, which
// then runs the disconnect cleanup.
func (conn *Connection) Close() {
	conn.closeOnce.Do(func() {
		conn.session.Close()
	})
}
