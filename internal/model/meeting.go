package model

import "encoding/json"

// Identity はGraphのidentity（user/application）を表す。
type Identity struct {
	ID          string `json:"id,omitempty"`
	DisplayName string `json:"displayName,omitempty"`
	TenantID    string `json:"tenantId,omitempty"`
}

// IdentitySet はGraphのidentitySetを表す。
type IdentitySet struct {
	User        *Identity `json:"user,omitempty"`
	Application *Identity `json:"application,omitempty"`
}

// MeetingParticipantInfo は会議参加者1名の情報。
type MeetingParticipantInfo struct {
	Identity *IdentitySet `json:"identity,omitempty"`
	UPN      string       `json:"upn,omitempty"`
	Role     string       `json:"role,omitempty"`
}

// MeetingParticipants は主催者と出席者の一覧。
type MeetingParticipants struct {
	Organizer *MeetingParticipantInfo  `json:"organizer,omitempty"`
	Attendees []MeetingParticipantInfo `json:"attendees,omitempty"`
}

// OnlineMeeting はGraphのonlineMeetingエンティティ。
// 本システムからは読み取り専用で、Rawに受信したJSONをそのまま保持する。
// クライアントへはRawを返すため、型付きフィールドに無い項目も失われない。
type OnlineMeeting struct {
	ID           string               `json:"id"`
	Subject      string               `json:"subject,omitempty"`
	JoinWebURL   string               `json:"joinWebUrl,omitempty"`
	Participants *MeetingParticipants `json:"participants,omitempty"`

	Raw json.RawMessage `json:"-"`
}

// OrganizerUserID は主催者のユーザーIDを返す。取得できない場合は空文字列。
func (m *OnlineMeeting) OrganizerUserID() string {
	if m == nil || m.Participants == nil || m.Participants.Organizer == nil {
		return ""
	}
	ident := m.Participants.Organizer.Identity
	if ident == nil || ident.User == nil {
		return ""
	}
	return ident.User.ID
}

// OnlineMeetingInfo はチャットに紐づくオンライン会議情報。
type OnlineMeetingInfo struct {
	CalendarEventID string    `json:"calendarEventId,omitempty"`
	JoinWebURL      string    `json:"joinWebUrl,omitempty"`
	Organizer       *Identity `json:"organizer,omitempty"`
}

// Chat はGraphのchatエンティティのうち本システムが参照する部分。
type Chat struct {
	ID                string             `json:"id"`
	Topic             string             `json:"topic,omitempty"`
	ChatType          string             `json:"chatType,omitempty"`
	OnlineMeetingInfo *OnlineMeetingInfo `json:"onlineMeetingInfo,omitempty"`
}
