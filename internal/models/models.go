package models

import (
	"encoding/json"
	"time"
)

// DeviceRole identifies which side of a pair a user is on
type DeviceRole string

const (
	RoleA DeviceRole = "A"
	RoleB DeviceRole = "B"
)

// Peer returns the opposite role
func (r DeviceRole) Peer() DeviceRole {
	if r == RoleA {
		return RoleB
	}
	return RoleA
}

// Valid reports whether r is A or B
func (r DeviceRole) Valid() bool {
	return r == RoleA || r == RoleB
}

// User represents an account
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	PushToken    *string   `json:"push_token,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// Pair represents a two-party grouping sharing one gallery
type Pair struct {
	ID        string    `json:"id"`
	PairCode  string    `json:"pair_code"`
	CreatedAt time.Time `json:"created_at"`
}

// PairUser links a user to a pair with a role
type PairUser struct {
	ID          string     `json:"id"`
	PairID      string     `json:"pair_id"`
	UserID      string     `json:"user_id"`
	DeviceRole  DeviceRole `json:"device_role"`
	DisplayName string     `json:"display_name"`
	CreatedAt   time.Time  `json:"created_at"`
}

// PairState is the last navigation position shared by both frames
type PairState struct {
	PairID       string    `json:"pair_id"`
	CurrentIndex int       `json:"current_index"`
	NavSeq       int64     `json:"nav_seq"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// PairInfo is everything a device needs after login
type PairInfo struct {
	Pair        Pair       `json:"pair"`
	Member      PairUser   `json:"member"`
	State       *PairState `json:"state,omitempty"`
	PartnerName string     `json:"partner_name,omitempty"`
}

// Photo represents one gallery entry
type Photo struct {
	ID           string    `json:"id"`
	PairID       string    `json:"pair_id"`
	StoragePath  string    `json:"storage_path"`
	Filename     string    `json:"filename"`
	DisplayOrder int       `json:"display_order"`
	UploadedBy   string    `json:"uploaded_by"`
	URL          string    `json:"url,omitempty"`
	CreatedAt    time.Time `json:"created_at"`
}

// EventType enumerates cross-device signals
type EventType string

const (
	EventMessage  EventType = "message"
	EventEmoji    EventType = "emoji"
	EventPhotoNav EventType = "photo_nav"
)

// Event is an append-only cross-device signal. Seq is assigned by the
// database and increases monotonically.
type Event struct {
	Seq       int64           `json:"seq"`
	PairID    string          `json:"pair_id"`
	Sender    DeviceRole      `json:"sender"`
	EventType EventType       `json:"event_type"`
	Payload   json.RawMessage `json:"payload"`
	CreatedAt time.Time       `json:"created_at"`
}

// MessagePayload is the payload of a message event
type MessagePayload struct {
	Text        string `json:"text"`
	SenderLabel string `json:"sender_label"`
}

// EmojiPayload is the payload of an emoji event; X and Y are frame canvas coordinates
type EmojiPayload struct {
	Emoji string `json:"emoji"`
	X     int    `json:"x"`
	Y     int    `json:"y"`
}

// PhotoNavPayload is the payload of a photo_nav event
type PhotoNavPayload struct {
	Index int `json:"index"`
}

// NotificationKind classifies live feed entries
type NotificationKind string

const (
	NotifyEvent       NotificationKind = "event"
	NotifyPhotoInsert NotificationKind = "photo_insert"
	NotifyPhotoDelete NotificationKind = "photo_delete"
	// NotifyPresence stays on the server; sockets turn it into pair_status frames
	NotifyPresence NotificationKind = "presence"
)

// Notification is one entry of the live change feed
type Notification struct {
	Kind   NotificationKind `json:"kind"`
	PairID string           `json:"pair_id"`
	Event  *Event           `json:"event,omitempty"`
	Photo  *Photo           `json:"photo,omitempty"`
	Role   DeviceRole       `json:"role,omitempty"`
	Online bool             `json:"online,omitempty"`
}

// WSMessage types
const (
	WSPairStatus   = "pair_status"
	WSNotification = "notification"
	WSPublish      = "publish"
	WSError        = "error"
)

// WSMessage is one frame on the live feed socket. The server sends
// pair_status after connecting and whenever the other device comes or goes,
// plus notification frames; clients may send publish frames.
type WSMessage struct {
	Type          string          `json:"type"`
	Notification  *Notification   `json:"notification,omitempty"`
	EventType     EventType       `json:"event_type,omitempty"`
	Payload       json.RawMessage `json:"payload,omitempty"`
	PairID        string          `json:"pair_id,omitempty"`
	Role          DeviceRole      `json:"role,omitempty"`
	PartnerOnline *bool           `json:"partner_online,omitempty"`
	Code          string          `json:"code,omitempty"`
	Message       string          `json:"message,omitempty"`
}

// FileFailure describes one file of a batch that could not be uploaded
type FileFailure struct {
	Index    int    `json:"index"`
	Filename string `json:"filename"`
	Code     string `json:"code"`
	Message  string `json:"message"`
}

// UploadReport summarizes a batch upload
type UploadReport struct {
	Succeeded int           `json:"succeeded"`
	Total     int           `json:"total"`
	Photos    []*Photo      `json:"photos"`
	Failures  []FileFailure `json:"failures,omitempty"`
}

// Partial reports whether some but not all files were uploaded
func (r *UploadReport) Partial() bool {
	return r.Succeeded > 0 && r.Succeeded < r.Total
}
