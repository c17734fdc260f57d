package chat

import (
	"errors"
	"strings"
	"time"

	"github.com/nikelwish/p2p-service/internal/files"
	"github.com/nikelwish/p2p-service/internal/protocol"
	"github.com/nikelwish/p2p-service/internal/transport"
	"github.com/nikelwish/p2p-service/internal/utils"
)

// recipients are the open channels chat goes out on: the agreed session and,
// when hosting, every room link.
func (m *Manager) recipients() (string, []transport.DataConn) {
	var (
		to    string
		conns []transport.DataConn
	)
	if s := m.registry.Current(); s.Active() && s.Accepted {
		to = s.Peer
		conns = append(conns, s.Conn)
	}
	if m.room != nil {
		for _, conn := range m.room.links {
			conns = append(conns, conn)
		}
		to = m.room.id
	}
	return to, conns
}

func (m *Manager) broadcast(op string, msg protocol.Message) (string, error) {
	to, conns := m.recipients()
	if len(conns) == 0 {
		return "", NewError(op, ErrNoSession)
	}
	var errs []error
	for _, conn := range conns {
		if err := m.sendTo(conn, msg); err != nil {
			errs = append(errs, NewPeerError(op, conn.Peer(), err))
		}
	}
	if len(errs) == len(conns) {
		return "", errors.Join(errs...)
	}
	for _, err := range errs {
		m.log.Warn("Partial delivery", "error", err)
	}
	return to, nil
}

func (m *Manager) roomID() string {
	switch {
	case m.room != nil:
		return m.room.id
	case m.membership != nil:
		return m.membership.roomID
	}
	return ""
}

// SendText sends chat text and echoes it to the transcript.
func (m *Manager) SendText(text string) error {
	if strings.TrimSpace(text) == "" {
		return NewError("send", ErrEmptyMessage)
	}
	return m.loop.call(func() error {
		to, err := m.broadcast("send", protocol.ChatMessage{Text: text})
		if err != nil {
			return err
		}
		m.emit(Message{From: m.localID, To: to, Outgoing: true, Text: text, Link: protocol.IsLink(text), RoomID: m.roomID(), At: time.Now()})
		return nil
	})
}

// SendFile reads path and sends it inline. Files over the size cap are
// refused before anything is sent.
func (m *Manager) SendFile(path string) error {
	att, err := files.Load(path)
	if err != nil {
		if errors.Is(err, files.ErrFileTooLarge) {
			_ = m.loop.call(func() error {
				m.notice(LevelError, "%s is larger than %s", path, utils.FormatSize(protocol.MaxFileSize))
				return nil
			})
		}
		return WrapError("send file", err, path)
	}

	msg := att.Message()
	return m.loop.call(func() error {
		to, err := m.broadcast("send file", msg)
		if err != nil {
			return err
		}
		m.opts.Metrics.File("sent")
		m.emit(Message{
			From:     m.localID,
			To:       to,
			Outgoing: true,
			File:     &File{Name: msg.Name, MimeType: msg.MimeType, Size: msg.Size, Kind: msg.Kind(), Data: msg.Data},
			RoomID:   m.roomID(),
			At:       time.Now(),
		})
		return nil
	})
}

func (m *Manager) receiveFile(peer, roomID string, msg protocol.FileMessage) {
	m.opts.Metrics.File("received")
	m.log.Info("File received", "peer", peer, "name", msg.Name, "size", len(msg.Data))
	m.emit(Message{
		From:   peer,
		To:     m.localID,
		File:   &File{Name: msg.Name, MimeType: msg.MimeType, Size: int64(len(msg.Data)), Kind: msg.Kind(), Data: msg.Data},
		RoomID: roomID,
		At:     time.Now(),
	})
}
