package signaling

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/pion/webrtc/v4"

	"github.com/AhmedrAshraf/filepizza/internal/session"
)

type MessageType string

const (
	MessageTypeUpload            MessageType = "upload"
	MessageTypeRequestDownload   MessageType = "requestDownload"
	MessageTypeRTCConfig         MessageType = "rtcConfig"
	MessageTypeReply             MessageType = "reply"
	MessageTypeUpdateDownloaders MessageType = "updateDownloaders"
	MessageTypeError             MessageType = "error"
)

// ClientMessage is a request sent by a browser.
type ClientMessage struct {
	Type MessageType     `json:"type"`
	ID   *int64          `json:"id,omitempty"`
	Data json.RawMessage `json:"data,omitempty"`
}

// ServerMessage is a reply, push, or protocol error sent to a browser.
// Data is always encoded so a not-found reply reads "data":null.
type ServerMessage struct {
	Type    MessageType `json:"type"`
	ID      *int64      `json:"id,omitempty"`
	Data    any         `json:"data"`
	Code    string      `json:"code,omitempty"`
	Message string      `json:"message,omitempty"`
}

type UploadRequest = session.FileInfo

type UploadReply struct {
	Token      string `json:"token"`
	ShortToken string `json:"shortToken"`
}

type DownloadRequest struct {
	Token      string `json:"token,omitempty"`
	ShortToken string `json:"shortToken,omitempty"`
}

type DownloadReply = session.FileInfo

type RTCConfigReply struct {
	ICEServers []webrtc.ICEServer `json:"iceServers"`
}

var ErrEmptyMessage = errors.New("empty message")

// ParseClientMessage decodes one inbound frame. The envelope is strict; the
// payload is checked per type but tolerates extra fields.
func ParseClientMessage(data []byte) (ClientMessage, error) {
	if len(bytes.TrimSpace(data)) == 0 {
		return ClientMessage{}, ErrEmptyMessage
	}

	var msg ClientMessage
	if err := decodeStrictJSON(data, &msg); err != nil {
		return ClientMessage{}, err
	}

	switch msg.Type {
	case MessageTypeUpload:
		req, err := msg.Upload()
		if err != nil {
			return ClientMessage{}, err
		}
		if req.Size < 0 {
			return ClientMessage{}, fmt.Errorf("upload: fileSize must be >= 0")
		}
	case MessageTypeRequestDownload:
		if _, err := msg.DownloadRequest(); err != nil {
			return ClientMessage{}, err
		}
	case MessageTypeRTCConfig:
	case "":
		return ClientMessage{}, errors.New("missing type")
	default:
		return ClientMessage{}, fmt.Errorf("unexpected message type %q", msg.Type)
	}
	return msg, nil
}

func (m ClientMessage) Upload() (UploadRequest, error) {
	var req UploadRequest
	if isNullPayload(m.Data) {
		return req, errors.New("upload: missing data")
	}
	if err := json.Unmarshal(m.Data, &req); err != nil {
		return req, fmt.Errorf("upload: %w", err)
	}
	return req, nil
}

// DownloadRequest decodes the payload of a requestDownload message. A missing
// payload is valid and yields an empty request.
func (m ClientMessage) DownloadRequest() (DownloadRequest, error) {
	var req DownloadRequest
	if isNullPayload(m.Data) {
		return req, nil
	}
	if err := json.Unmarshal(m.Data, &req); err != nil {
		return req, fmt.Errorf("requestDownload: %w", err)
	}
	return req, nil
}

func isNullPayload(data json.RawMessage) bool {
	trimmed := bytes.TrimSpace(data)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

func decodeStrictJSON(data []byte, v any) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return errors.New("unexpected trailing data")
	}
	return nil
}
