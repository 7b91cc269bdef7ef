package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hitoshi/meetingbingo/internal/model"
	"github.com/hitoshi/meetingbingo/internal/topic"
)

// maxTopicsBytes はbingoTopicsリクエストボディの上限。
const maxTopicsBytes = 256 << 10

// TopicServiceInterface はトピックハンドラーが必要とするサービスインターフェース。
type TopicServiceInterface interface {
	// Get は会議のトピックリストを返す。未登録の場合は空のリスト。
	Get(ctx context.Context, meetingID string) ([]string, error)
	// Set は会議のトピックリストを上書きし、保存した値を返す。
	Set(ctx context.Context, meetingID string, topics []string) ([]string, error)
}

var _ TopicServiceInterface = (*topic.Service)(nil)

// TopicHandler はbingoTopicsのHTTPハンドラー。
type TopicHandler struct {
	service TopicServiceInterface
	policy  ErrorPolicy
}

// NewTopicHandler はTopicHandlerを生成する。
func NewTopicHandler(service TopicServiceInterface, policy ErrorPolicy) *TopicHandler {
	return &TopicHandler{
		service: service,
		policy:  policy,
	}
}

// GetTopics は会議のトピックリストを返す。
// GET /api/bingoTopics/{meetingId}
func (h *TopicHandler) GetTopics(w http.ResponseWriter, r *http.Request) {
	topics, err := h.service.Get(r.Context(), chi.URLParam(r, "meetingId"))
	if err != nil {
		h.policy.WriteTopicsError(w, r, err)
		return
	}
	writeTopics(w, topics)
}

// PutTopics はトピックリストを全置換し、保存した値をそのまま返す。
// POST /api/bingoTopics/{meetingId}
func (h *TopicHandler) PutTopics(w http.ResponseWriter, r *http.Request) {
	var entries []*string
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxTopicsBytes))
	if err := dec.Decode(&entries); err != nil {
		h.policy.WriteTopicsError(w, r, model.NewInvalidTopicsError())
		return
	}
	// 末尾に余分なJSON値が続くボディは受け付けない
	if dec.More() {
		h.policy.WriteTopicsError(w, r, model.NewInvalidTopicsError())
		return
	}
	topics, ok := topicStrings(entries)
	if !ok {
		h.policy.WriteTopicsError(w, r, model.NewInvalidTopicsError())
		return
	}

	stored, err := h.service.Set(r.Context(), chi.URLParam(r, "meetingId"), topics)
	if err != nil {
		h.policy.WriteTopicsError(w, r, err)
		return
	}
	writeTopics(w, stored)
}

// topicStrings は要素にnullを含まない配列だけを受け付ける。
// トップレベルのnullも配列ではないため拒否する。
func topicStrings(entries []*string) ([]string, bool) {
	if entries == nil {
		return nil, false
	}
	topics := make([]string, len(entries))
	for i, e := range entries {
		if e == nil {
			return nil, false
		}
		topics[i] = *e
	}
	return topics, true
}

func writeTopics(w http.ResponseWriter, topics []string) {
	if topics == nil {
		topics = []string{}
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	json.NewEncoder(w).Encode(topics)
}
