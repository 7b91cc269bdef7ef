package meeting

import (
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidMeetingID はミーティングIDがbase64として解釈できないことを表す。
var ErrInvalidMeetingID = errors.New("invalid meeting id")

var meetingIDEncodings = []*base64.Encoding{
	base64.StdEncoding,
	base64.RawStdEncoding,
	base64.URLEncoding,
	base64.RawURLEncoding,
}

// DecodeChatID はTeamsのミーティングIDから会議チャットのスレッドIDを取り出す。
// ミーティングIDは "0#<chatId>#0" をbase64エンコードしたもので、
// 先頭の "0#" と末尾の "#0" をそれぞれ1回だけ取り除く。
func DecodeChatID(meetingID string) (string, error) {
	s := strings.TrimSpace(meetingID)
	if s == "" {
		return "", fmt.Errorf("%w: empty", ErrInvalidMeetingID)
	}

	var decoded []byte
	var err error
	for _, enc := range meetingIDEncodings {
		decoded, err = enc.DecodeString(s)
		if err == nil {
			break
		}
	}
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrInvalidMeetingID, err)
	}

	// ASCIIとして解釈する
	b := make([]byte, len(decoded))
	for i, c := range decoded {
		b[i] = c & 0x7f
	}

	chatID := strings.TrimPrefix(string(b), "0#")
	chatID = strings.TrimSuffix(chatID, "#0")
	return chatID, nil
}

// EncodeMeetingID はDecodeChatIDの逆変換。テストやCLIでミーティングIDを組み立てる際に使う。
func EncodeMeetingID(chatID string) string {
	return base64.StdEncoding.EncodeToString([]byte("0#" + chatID + "#0"))
}
