package tabview

// ErrorKind は画面に表示するエラー条件。
type ErrorKind string

// 表示用エラー条件
const (
	NotInTeams              ErrorKind = "NotInTeams"
	SSOError                ErrorKind = "SSOError"
	NotInTeamsMeeting       ErrorKind = "NotInTeamsMeeting"
	NoMeetingDetails        ErrorKind = "NoMeetingDetails"
	UnsupportedFrameContext ErrorKind = "UnsupportedFrameContext"
)

var errorMessages = map[ErrorKind]string{
	NotInTeams:              "This app only works when ran inside of Microsoft Teams.",
	SSOError:                "An SSO error occurred.",
	NotInTeamsMeeting:       "This app only works in the context of a Microsoft Teams meeting.",
	NoMeetingDetails:        "Couldn't determine the meeting details.",
	UnsupportedFrameContext: "This app is not supported in the current FrameContext",
}

// Message はエラー条件の表示メッセージを返す。
func (k ErrorKind) Message() string {
	if msg, ok := errorMessages[k]; ok {
		return msg
	}
	return string(k)
}

// ErrorSet は同時に成立しているエラー条件の集合。
// 追加順を保持し、同じ条件は1回だけ保持する。
type ErrorSet struct {
	kinds []ErrorKind
}

// Add は条件を追加する。既にある場合は何もしない。
func (s *ErrorSet) Add(k ErrorKind) {
	if s.Has(k) {
		return
	}
	s.kinds = append(s.kinds, k)
}

// Remove は条件を取り除く。
func (s *ErrorSet) Remove(k ErrorKind) {
	out := s.kinds[:0]
	for _, e := range s.kinds {
		if e != k {
			out = append(out, e)
		}
	}
	s.kinds = out
}

// Set はcondに応じて条件を追加または除去する。
func (s *ErrorSet) Set(k ErrorKind, cond bool) {
	if cond {
		s.Add(k)
	} else {
		s.Remove(k)
	}
}

// Has は条件が成立しているかを返す。
func (s *ErrorSet) Has(k ErrorKind) bool {
	for _, e := range s.kinds {
		if e == k {
			return true
		}
	}
	return false
}

// Len は成立している条件の数を返す。
func (s *ErrorSet) Len() int {
	return len(s.kinds)
}

// Kinds は追加順の条件一覧を返す。
func (s *ErrorSet) Kinds() []ErrorKind {
	return append([]ErrorKind(nil), s.kinds...)
}

// Messages は追加順の表示メッセージ一覧を返す。
func (s *ErrorSet) Messages() []string {
	out := make([]string, 0, len(s.kinds))
	for _, k := range s.kinds {
		out = append(out, k.Message())
	}
	return out
}
