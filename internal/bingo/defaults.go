package bingo

// DefaultTopics は主催者が初期化時に投入する既定のトピック。
var DefaultTopics = []string{
	"Sorry I was on mute",
	"Can you see my screen?",
	"Let's wait for everyone to join",
	"Dog barks",
	"Cat meows",
	"Kids show up",
	"Wrong screen shared 😱",
	"I have a hard stop at",
	"I can't access the chat",
	"Leaves virtual hand raised",
	"I have to jump to another call",
	"Let me share my screen",
	"Can you hear me?",
	"Oh I thought my camera was off",
	"Someone drinks coffee",
	"Someone types loudly",
	"Someone yawns ",
	"Someone is eating",
	"Intense chat is happening during presentation",
	"has x joined?",
	"Sorry I'm late / what is this about?",
	"Someone forgets to stop sharing their screen",
}

// Defaults はDefaultTopicsのコピーを返す。
func Defaults() []string {
	out := make([]string, len(DefaultTopics))
	copy(out, DefaultTopics)
	return out
}
