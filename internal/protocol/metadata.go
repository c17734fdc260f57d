package protocol

// RequestType tags an outbound data connection with its purpose.
type RequestType string

const (
	RequestConnection     RequestType = "connection"
	RequestRoomInvitation RequestType = "room_invitation"
	RequestRoomJoin       RequestType = "room_join"
)

// ConnMetadata travels with a data connection offer.
type ConnMetadata struct {
	RequestType RequestType `json:"requestType,omitempty"`
	RoomID      string      `json:"roomId,omitempty"`
}

// CallMetadata travels with a media call offer and its answer.
type CallMetadata struct {
	UserID    string `json:"userId"`
	HasVideo  bool   `json:"hasVideo"`
	HasAudio  bool   `json:"hasAudio"`
	Reconnect bool   `json:"reconnect,omitempty"`
}
