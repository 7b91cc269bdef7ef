package tabview

import (
	"context"
	"encoding/base64"
	"encoding/json"

	"github.com/hitoshi/meetingbingo/internal/bingo"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// mockAPI はAPIのモック実装。
type mockAPI struct {
	meetingDetailsFn  func(ctx context.Context, meetingID string) (*model.OnlineMeeting, error)
	topicsFn          func(ctx context.Context, meetingID string) ([]string, error)
	setTopicsFn       func(ctx context.Context, meetingID string, topics []string) ([]string, error)
	postChatMessageFn func(ctx context.Context, meetingID, content string) error

	chatMessages []string
}

func (m *mockAPI) MeetingDetails(ctx context.Context, meetingID string) (*model.OnlineMeeting, error) {
	if m.meetingDetailsFn != nil {
		return m.meetingDetailsFn(ctx, meetingID)
	}
	return organizerMeeting("organizer-1"), nil
}

func (m *mockAPI) Topics(ctx context.Context, meetingID string) ([]string, error) {
	if m.topicsFn != nil {
		return m.topicsFn(ctx, meetingID)
	}
	return []string{}, nil
}

func (m *mockAPI) SetTopics(ctx context.Context, meetingID string, topics []string) ([]string, error) {
	if m.setTopicsFn != nil {
		return m.setTopicsFn(ctx, meetingID, topics)
	}
	return topics, nil
}

func (m *mockAPI) PostChatMessage(ctx context.Context, meetingID, content string) error {
	m.chatMessages = append(m.chatMessages, content)
	if m.postChatMessageFn != nil {
		return m.postChatMessageFn(ctx, meetingID, content)
	}
	return nil
}

// memoryGridStore はGridStoreのインメモリ実装。
type memoryGridStore struct {
	grids   map[string]bingo.Grid
	saves   int
	loadErr error
}

func newMemoryGridStore() *memoryGridStore {
	return &memoryGridStore{grids: map[string]bingo.Grid{}}
}

func (s *memoryGridStore) Load(meetingID string) (bingo.Grid, bool, error) {
	if s.loadErr != nil {
		return nil, false, s.loadErr
	}
	g, ok := s.grids[meetingID]
	if !ok {
		return nil, false, nil
	}
	return g.Clone(), true, nil
}

func (s *memoryGridStore) Save(meetingID string, g bingo.Grid) error {
	s.saves++
	s.grids[meetingID] = g.Clone()
	return nil
}

func organizerMeeting(userID string) *model.OnlineMeeting {
	return &model.OnlineMeeting{
		ID: "om-1",
		Participants: &model.MeetingParticipants{
			Organizer: &model.MeetingParticipantInfo{
				Identity: &model.IdentitySet{User: &model.Identity{ID: userID}},
			},
		},
	}
}

// tokenFor はoidを含む署名なしのJWT形式トークンを生成する。
func tokenFor(oid string) string {
	enc := base64.RawURLEncoding
	header := enc.EncodeToString([]byte(`{"alg":"RS256","typ":"JWT"}`))
	payload, _ := json.Marshal(map[string]string{"oid": oid})
	return header + "." + enc.EncodeToString(payload) + ".c2lnbmF0dXJl"
}

// identityShuffle は並べ替えを行わない。
func identityShuffle(int, func(i, j int)) {}

func topicList(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = string(rune('a' + i))
	}
	return out
}
