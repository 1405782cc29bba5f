package discord

import (
	"sync"

	"github.com/bwmarrin/discordgo"
)

// FakeSession provides a programmable stub for the Session interface.
// It follows the Fake/Stub pattern for testing, where each interface method
// has a corresponding Func field that can be set per-test.
//
// The trace is guarded so the fake can be shared with the worker pool.
type FakeSession struct {
	mu    sync.Mutex
	trace []string

	// --- Interaction Methods ---
	InteractionRespondFunc      func(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error
	InteractionResponseEditFunc func(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// --- Message Methods ---
	ChannelMessageSendFunc func(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
	ChannelMessageFunc     func(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error)

	// --- User/Member Methods ---
	UserFunc                  func(userID string, options ...discordgo.RequestOption) (*discordgo.User, error)
	GetBotUserFunc            func() (*discordgo.User, error)
	GuildMemberFunc           func(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error)
	GuildMemberRoleAddFunc    func(guildID, userID, roleID string, options ...discordgo.RequestOption) error
	GuildMemberRoleRemoveFunc func(guildID, userID, roleID string, options ...discordgo.RequestOption) error

	// --- Channel Methods ---
	GetChannelFunc func(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error)

	// --- Guild Methods ---
	GuildFunc       func(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error)
	StateGuildsFunc func() []*discordgo.Guild

	// --- Reaction Methods ---
	MessageReactionAddFunc    func(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error
	MessageReactionRemoveFunc func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error

	// --- Application Command Methods ---
	ApplicationCommandBulkOverwriteFunc func(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error)

	// --- Handler/Lifecycle Methods ---
	AddHandlerFunc func(handler interface{}) func()
	OpenFunc       func() error
	CloseFunc      func() error
}

// NewFakeSession initializes a new FakeSession with an empty trace.
func NewFakeSession() *FakeSession {
	return &FakeSession{
		trace: []string{},
	}
}

func (f *FakeSession) record(step string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.trace = append(f.trace, step)
}

// Trace returns the sequence of method calls made to the fake.
func (f *FakeSession) Trace() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]string, len(f.trace))
	copy(out, f.trace)
	return out
}

// Count returns how many times the named method was called.
func (f *FakeSession) Count(step string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, s := range f.trace {
		if s == step {
			n++
		}
	}
	return n
}

// --- Interaction Methods Implementation ---

func (f *FakeSession) InteractionRespond(interaction *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	f.record("InteractionRespond")
	if f.InteractionRespondFunc != nil {
		return f.InteractionRespondFunc(interaction, resp, options...)
	}
	return nil
}

func (f *FakeSession) InteractionResponseEdit(interaction *discordgo.Interaction, newresp *discordgo.WebhookEdit, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.record("InteractionResponseEdit")
	if f.InteractionResponseEditFunc != nil {
		return f.InteractionResponseEditFunc(interaction, newresp, options...)
	}
	return &discordgo.Message{ID: "fake-response"}, nil
}

// --- Message Methods Implementation ---

func (f *FakeSession) ChannelMessageSend(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.record("ChannelMessageSend")
	if f.ChannelMessageSendFunc != nil {
		return f.ChannelMessageSendFunc(channelID, content, options...)
	}
	return &discordgo.Message{ID: "fake-msg-123", ChannelID: channelID, Content: content}, nil
}

func (f *FakeSession) ChannelMessage(channelID, messageID string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	f.record("ChannelMessage")
	if f.ChannelMessageFunc != nil {
		return f.ChannelMessageFunc(channelID, messageID, options...)
	}
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

// --- User/Member Methods Implementation ---

func (f *FakeSession) User(userID string, options ...discordgo.RequestOption) (*discordgo.User, error) {
	f.record("User")
	if f.UserFunc != nil {
		return f.UserFunc(userID, options...)
	}
	return &discordgo.User{ID: userID, Username: "fake-user"}, nil
}

func (f *FakeSession) GetBotUser() (*discordgo.User, error) {
	f.record("GetBotUser")
	if f.GetBotUserFunc != nil {
		return f.GetBotUserFunc()
	}
	return &discordgo.User{ID: "fake-bot", Username: "fake-bot", Bot: true}, nil
}

func (f *FakeSession) GuildMember(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
	f.record("GuildMember")
	if f.GuildMemberFunc != nil {
		return f.GuildMemberFunc(guildID, userID, options...)
	}
	return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID, Username: "fake-user"}}, nil
}

func (f *FakeSession) GuildMemberRoleAdd(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.record("GuildMemberRoleAdd")
	if f.GuildMemberRoleAddFunc != nil {
		return f.GuildMemberRoleAddFunc(guildID, userID, roleID, options...)
	}
	return nil
}

func (f *FakeSession) GuildMemberRoleRemove(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
	f.record("GuildMemberRoleRemove")
	if f.GuildMemberRoleRemoveFunc != nil {
		return f.GuildMemberRoleRemoveFunc(guildID, userID, roleID, options...)
	}
	return nil
}

// --- Channel Methods Implementation ---

func (f *FakeSession) GetChannel(channelID string, options ...discordgo.RequestOption) (*discordgo.Channel, error) {
	f.record("GetChannel")
	if f.GetChannelFunc != nil {
		return f.GetChannelFunc(channelID, options...)
	}
	return &discordgo.Channel{ID: channelID, Type: discordgo.ChannelTypeGuildText}, nil
}

// --- Guild Methods Implementation ---

func (f *FakeSession) Guild(guildID string, options ...discordgo.RequestOption) (*discordgo.Guild, error) {
	f.record("Guild")
	if f.GuildFunc != nil {
		return f.GuildFunc(guildID, options...)
	}
	return &discordgo.Guild{ID: guildID, Name: "fake-guild"}, nil
}

func (f *FakeSession) StateGuilds() []*discordgo.Guild {
	f.record("StateGuilds")
	if f.StateGuildsFunc != nil {
		return f.StateGuildsFunc()
	}
	return nil
}

// --- Reaction Methods Implementation ---

func (f *FakeSession) MessageReactionAdd(channelID, messageID, emojiID string, options ...discordgo.RequestOption) error {
	f.record("MessageReactionAdd")
	if f.MessageReactionAddFunc != nil {
		return f.MessageReactionAddFunc(channelID, messageID, emojiID, options...)
	}
	return nil
}

func (f *FakeSession) MessageReactionRemove(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
	f.record("MessageReactionRemove")
	if f.MessageReactionRemoveFunc != nil {
		return f.MessageReactionRemoveFunc(channelID, messageID, emojiID, userID, options...)
	}
	return nil
}

// --- Application Command Methods Implementation ---

func (f *FakeSession) ApplicationCommandBulkOverwrite(appID, guildID string, commands []*discordgo.ApplicationCommand, options ...discordgo.RequestOption) ([]*discordgo.ApplicationCommand, error) {
	f.record("ApplicationCommandBulkOverwrite")
	if f.ApplicationCommandBulkOverwriteFunc != nil {
		return f.ApplicationCommandBulkOverwriteFunc(appID, guildID, commands, options...)
	}
	return commands, nil
}

// --- Handler/Lifecycle Methods Implementation ---

func (f *FakeSession) AddHandler(handler interface{}) func() {
	f.record("AddHandler")
	if f.AddHandlerFunc != nil {
		return f.AddHandlerFunc(handler)
	}
	return func() {}
}

func (f *FakeSession) Open() error {
	f.record("Open")
	if f.OpenFunc != nil {
		return f.OpenFunc()
	}
	return nil
}

func (f *FakeSession) Close() error {
	f.record("Close")
	if f.CloseFunc != nil {
		return f.CloseFunc()
	}
	return nil
}

var _ Session = (*FakeSession)(nil)
