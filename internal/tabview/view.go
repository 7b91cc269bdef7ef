// Package tabview はビンゴタブの画面状態を管理する。
// Teamsホストからのイベントと4つのAPI呼び出しの結果から、
// 表示モード・エラー一覧・トピック・ビンゴカードを決定する。
package tabview

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"slices"

	"github.com/golang-jwt/jwt/v5"

	"github.com/hitoshi/meetingbingo/internal/auth"
	"github.com/hitoshi/meetingbingo/internal/bingo"
	"github.com/hitoshi/meetingbingo/internal/model"
)

// BingoMessage はビンゴ成立時にチャットへ投稿する本文。
const BingoMessage = "BINGO!"

// Teamsのフレームコンテキスト
const (
	FrameContent      = "content"
	FrameSidePanel    = "sidePanel"
	FrameMeetingStage = "meetingStage"
)

var (
	// ErrNotOrganizer は主催者以外がトピックを編集しようとした場合に返される。
	ErrNotOrganizer = errors.New("only the meeting organizer can edit topics")
	// ErrNotReady は認証と会議情報の読み込みが終わっていない場合に返される。
	ErrNotReady = errors.New("view is not ready")
	// ErrTopicsAlreadySet は既にトピックがある会議を既定トピックで初期化しようとした場合に返される。
	ErrTopicsAlreadySet = errors.New("topics are already set")
	// ErrTopicIndexOutOfRange は削除対象のインデックスが範囲外の場合に返される。
	ErrTopicIndexOutOfRange = errors.New("topic index is out of range")
	// ErrNoGrid はカードが生成されていない状態でマスを選択した場合に返される。
	ErrNoGrid = errors.New("no bingo card has been generated")
)

// Phase は認証の進行状態。
type Phase int

const (
	PhaseUnauthenticated Phase = iota
	PhaseAuthenticating
	PhaseReady
	PhaseError
)

func (p Phase) String() string {
	switch p {
	case PhaseUnauthenticated:
		return "unauthenticated"
	case PhaseAuthenticating:
		return "authenticating"
	case PhaseReady:
		return "ready"
	case PhaseError:
		return "error"
	}
	return fmt.Sprintf("Phase(%d)", int(p))
}

// Mode はReady状態での表示モード。
type Mode int

const (
	// ModeUnsupported は対応していないフレームコンテキスト。
	ModeUnsupported Mode = iota
	// ModeContent は会議の詳細タブ（トピック編集）。
	ModeContent
	// ModeSidePanelOrStage は会議中のサイドパネルまたはステージ（カードで遊ぶ）。
	ModeSidePanelOrStage
)

// ModeOf はフレームコンテキストに対応する表示モードを返す。
func ModeOf(frameContext string) Mode {
	switch frameContext {
	case FrameContent:
		return ModeContent
	case FrameSidePanel, FrameMeetingStage:
		return ModeSidePanelOrStage
	}
	return ModeUnsupported
}

// API はビンゴタブが使うサーバーAPI。
type API interface {
	MeetingDetails(ctx context.Context, meetingID string) (*model.OnlineMeeting, error)
	Topics(ctx context.Context, meetingID string) ([]string, error)
	SetTopics(ctx context.Context, meetingID string, topics []string) ([]string, error)
	PostChatMessage(ctx context.Context, meetingID, content string) error
}

// Connector はSSOトークンからAPIクライアントを生成する。
type Connector func(token string) API

// GridStore は会議ごとのビンゴカードの保存先。
type GridStore interface {
	Load(meetingID string) (bingo.Grid, bool, error)
	Save(meetingID string, g bingo.Grid) error
}

// HostContext はTeamsホストから受け取るコンテキスト。
type HostContext struct {
	MeetingID    string
	FrameContext string
}

// Option はViewの生成オプション。
type Option func(*View)

// WithShuffler はカード生成に使う並べ替え関数を指定する。
func WithShuffler(s bingo.Shuffler) Option {
	return func(v *View) { v.shuffle = s }
}

// WithLogger はロガーを指定する。
func WithLogger(l *slog.Logger) Option {
	return func(v *View) { v.logger = l }
}

// View はビンゴタブの画面状態。並行利用は想定しない。
type View struct {
	connect Connector
	store   GridStore
	shuffle bingo.Shuffler
	logger  *slog.Logger

	errors        ErrorSet
	hostReady     bool
	authenticated bool

	meetingID    string
	frameContext string
	userID       string
	api          API

	meeting *model.OnlineMeeting
	topics  []string
	grid    bingo.Grid
}

// New は新しいViewを生成する。
func New(connect Connector, store GridStore, opts ...Option) *View {
	v := &View{
		connect: connect,
		store:   store,
		logger:  slog.Default(),
		topics:  []string{},
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// HostUnavailable はTeamsホストの初期化に失敗したことを通知する。
func (v *View) HostUnavailable() {
	v.errors.Add(NotInTeams)
}

// HostInitialized はTeamsホストのコンテキストを受け取る。
func (v *View) HostInitialized(host HostContext) {
	v.hostReady = true
	v.errors.Remove(NotInTeams)

	v.meetingID = host.MeetingID
	v.frameContext = host.FrameContext

	v.errors.Set(NotInTeamsMeeting, v.meetingID == "")
	v.errors.Set(UnsupportedFrameContext, ModeOf(v.frameContext) == ModeUnsupported)
}

// AuthFailed はSSOトークンの取得に失敗したことを通知する。
func (v *View) AuthFailed(err error) {
	v.logger.Warn("sso token acquisition failed", slog.String("error", fmt.Sprint(err)))
	v.authenticated = false
	v.errors.Add(SSOError)
}

// AuthSucceeded はSSOトークンを受け取り、会議情報とトピックを読み込む。
func (v *View) AuthSucceeded(ctx context.Context, token string) error {
	v.authenticated = true
	v.userID = ObjectID(token)
	v.errors.Remove(SSOError)
	v.api = v.connect(token)
	return v.Reload(ctx)
}

// Reload は会議情報とトピックを読み込み直す。
// 会議IDが無い場合は何もしない。
func (v *View) Reload(ctx context.Context) error {
	if v.api == nil || v.meetingID == "" {
		return nil
	}

	om, err := v.api.MeetingDetails(ctx, v.meetingID)
	if err != nil {
		v.errors.Add(NoMeetingDetails)
		return fmt.Errorf("load meeting details: %w", err)
	}
	v.meeting = om
	// 互換エラーモードの{}は応答ありとして扱い、主催者判定だけが失敗する
	v.errors.Set(NoMeetingDetails, om == nil)

	topics, err := v.api.Topics(ctx, v.meetingID)
	if err != nil {
		v.errors.Add(NoMeetingDetails)
		return fmt.Errorf("load topics: %w", err)
	}
	v.topics = topics

	if v.Mode() == ModeSidePanelOrStage {
		if _, err := v.GetOrCreateGrid(false); err != nil && !errors.Is(err, bingo.ErrNotEnoughTopics) {
			return err
		}
	}
	return nil
}

// Phase は現在の状態を返す。エラー条件がある場合は常にPhaseError。
func (v *View) Phase() Phase {
	switch {
	case v.errors.Len() > 0:
		return PhaseError
	case v.authenticated:
		return PhaseReady
	case v.hostReady:
		return PhaseAuthenticating
	}
	return PhaseUnauthenticated
}

// Mode はフレームコンテキストから決まる表示モードを返す。
func (v *View) Mode() Mode {
	return ModeOf(v.frameContext)
}

// Errors は表示すべきエラー条件を追加順で返す。
func (v *View) Errors() []ErrorKind {
	return v.errors.Kinds()
}

// ErrorMessages は表示すべきエラーメッセージを追加順で返す。
func (v *View) ErrorMessages() []string {
	return v.errors.Messages()
}

// ClearError はエラー条件を1つ取り除く。
func (v *View) ClearError(k ErrorKind) {
	v.errors.Remove(k)
}

// MeetingID は会議IDを返す。
func (v *View) MeetingID() string { return v.meetingID }

// UserID はSSOトークンのoidを返す。
func (v *View) UserID() string { return v.userID }

// Meeting は読み込んだオンライン会議情報を返す。
func (v *View) Meeting() *model.OnlineMeeting { return v.meeting }

// Topics は現在のトピックリストのコピーを返す。
func (v *View) Topics() []string {
	return slices.Clone(v.topics)
}

// Grid は現在のカードのコピーを返す。生成されていない場合はnil。
func (v *View) Grid() bingo.Grid {
	if v.grid == nil {
		return nil
	}
	return v.grid.Clone()
}

// IsOrganizer は利用者が会議の主催者かを返す。
func (v *View) IsOrganizer() bool {
	return v.userID != "" && v.userID == v.meeting.OrganizerUserID()
}

// ObjectID はSSOトークンのoidクレームを返す。署名は検証しない。
// 解析できない場合は空文字列。
func ObjectID(token string) string {
	claims := &auth.Claims{}
	if _, _, err := jwt.NewParser().ParseUnverified(token, claims); err != nil {
		return ""
	}
	return claims.ObjectID
}

func (v *View) requireEditor() error {
	if v.api == nil || v.meetingID == "" {
		return ErrNotReady
	}
	if !v.IsOrganizer() {
		return ErrNotOrganizer
	}
	return nil
}

func (v *View) updateTopics(ctx context.Context, topics []string) error {
	stored, err := v.api.SetTopics(ctx, v.meetingID, topics)
	if err != nil {
		return fmt.Errorf("save topics: %w", err)
	}
	v.topics = stored
	return nil
}

// InitializeTopics はトピックが空の会議を既定のトピックで初期化する。
func (v *View) InitializeTopics(ctx context.Context) error {
	if err := v.requireEditor(); err != nil {
		return err
	}
	if len(v.topics) > 0 {
		return ErrTopicsAlreadySet
	}
	return v.updateTopics(ctx, bingo.Defaults())
}

// AddTopic はトピックを末尾に追加する。空文字列は無視する。
func (v *View) AddTopic(ctx context.Context, topic string) error {
	if err := v.requireEditor(); err != nil {
		return err
	}
	if topic == "" {
		return nil
	}
	next := append(slices.Clone(v.topics), topic)
	return v.updateTopics(ctx, next)
}

// DeleteTopics はindexesの位置のトピックを削除する。
// 大きいインデックスから順に取り除くため、前の削除で位置がずれない。
func (v *View) DeleteTopics(ctx context.Context, indexes []int) error {
	if err := v.requireEditor(); err != nil {
		return err
	}

	sorted := slices.Clone(indexes)
	slices.Sort(sorted)
	sorted = slices.Compact(sorted)
	for _, i := range sorted {
		if i < 0 || i >= len(v.topics) {
			return fmt.Errorf("%w: %d", ErrTopicIndexOutOfRange, i)
		}
	}

	next := slices.Clone(v.topics)
	for _, i := range slices.Backward(sorted) {
		next = slices.Delete(next, i, i+1)
	}
	return v.updateTopics(ctx, next)
}

// GetOrCreateGrid は保存済みのカードを返す。
// 保存されていない場合またはforceの場合は新しいカードを生成して保存する。
// トピックが足りない場合はカードを破棄してbingo.ErrNotEnoughTopicsを返す。
func (v *View) GetOrCreateGrid(force bool) (bingo.Grid, error) {
	if len(v.topics) < bingo.MinTopics {
		v.grid = nil
		return nil, bingo.ErrNotEnoughTopics
	}

	if !force {
		g, ok, err := v.store.Load(v.meetingID)
		if err != nil {
			v.logger.Warn("discarding unreadable bingo card",
				slog.String("meeting_id", v.meetingID),
				slog.String("error", err.Error()),
			)
		}
		if ok {
			v.grid = g
			return g.Clone(), nil
		}
	}

	g, err := bingo.NewGrid(v.topics, v.shuffle)
	if err != nil {
		return nil, err
	}
	if err := v.store.Save(v.meetingID, g); err != nil {
		return nil, fmt.Errorf("save bingo card: %w", err)
	}
	v.grid = g
	return g.Clone(), nil
}

// SelectCell はマスの選択を反転してカード全体を保存する。
// そのマスを含む行または列が揃った場合はチャットにBINGO!を1回投稿してtrueを返す。
// 投稿の失敗はログに記録するのみで呼び出し元には返さない。
func (v *View) SelectCell(ctx context.Context, row, col int) (bool, error) {
	if v.grid == nil {
		return false, ErrNoGrid
	}

	complete, err := v.grid.Toggle(row, col)
	if err != nil {
		return false, err
	}
	if err := v.store.Save(v.meetingID, v.grid); err != nil {
		return false, fmt.Errorf("save bingo card: %w", err)
	}

	if complete && v.api != nil {
		if err := v.api.PostChatMessage(ctx, v.meetingID, BingoMessage); err != nil {
			v.logger.Warn("failed to post bingo message",
				slog.String("meeting_id", v.meetingID),
				slog.String("error", err.Error()),
			)
		}
	}
	return complete, nil
}
