package reactionrole

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"slices"
	"sync"
	"testing"
	"time"

	discord "github.com/Black-And-White-Club/discord-rules-bot/app/discordgo"
	"github.com/Black-And-White-Club/discord-rules-bot/app/guildconfig"
	"github.com/Black-And-White-Club/discord-rules-bot/app/reactionrole/mocks"
	"github.com/Black-And-White-Club/discord-rules-bot/app/welcome"
	cache "github.com/Black-And-White-Club/discord-rules-bot/bigcache"
	"github.com/bwmarrin/discordgo"
	"go.opentelemetry.io/otel/trace/noop"
	"go.uber.org/mock/gomock"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// memberStore backs a FakeSession with live role membership.
type memberStore struct {
	mu    sync.Mutex
	roles map[string][]string
}

func newMemberStore(userID string, roles ...string) *memberStore {
	return &memberStore{roles: map[string][]string{userID: roles}}
}

func (m *memberStore) attach(fs *discord.FakeSession) {
	fs.GuildMemberFunc = func(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
		m.mu.Lock()
		defer m.mu.Unlock()
		return &discordgo.Member{GuildID: guildID, User: &discordgo.User{ID: userID}, Roles: slices.Clone(m.roles[userID])}, nil
	}
	fs.GuildMemberRoleAddFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		if !slices.Contains(m.roles[userID], roleID) {
			m.roles[userID] = append(m.roles[userID], roleID)
		}
		return nil
	}
	fs.GuildMemberRoleRemoveFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		m.mu.Lock()
		defer m.mu.Unlock()
		m.roles[userID] = slices.DeleteFunc(m.roles[userID], func(r string) bool { return r == roleID })
		return nil
	}
}

func (m *memberStore) holds(userID, roleID string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return slices.Contains(m.roles[userID], roleID)
}

func newTestEngine(t *testing.T, fs *discord.FakeSession, notifier WelcomeNotifier, deduper Deduper, rules ...guildconfig.GuildRule) *Engine {
	t.Helper()
	reg, err := guildconfig.NewRegistry(rules, testLogger())
	if err != nil {
		t.Fatalf("failed to build registry: %v", err)
	}
	return NewEngine(fs, discord.NewOperations(fs, testLogger()), reg, notifier, deduper, NoopMetrics{}, noop.NewTracerProvider().Tracer("test"), testLogger())
}

// requestDeadline applies discordgo request options and reports the deadline they attach.
func requestDeadline(options []discordgo.RequestOption) (time.Time, bool) {
	req, _ := http.NewRequest(http.MethodGet, "https://discord.test/api", nil)
	cfg := &discordgo.RequestConfig{Request: req}
	for _, opt := range options {
		opt(cfg)
	}
	return cfg.Request.Context().Deadline()
}

func mutationCount(fs *discord.FakeSession) int {
	return fs.Count("GuildMemberRoleAdd") + fs.Count("GuildMemberRoleRemove")
}

func TestEngine_ScenarioA_GrantWithoutWelcome(t *testing.T) {
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	var granted []string
	add := fs.GuildMemberRoleAddFunc
	fs.GuildMemberRoleAddFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		granted = append(granted, guildID+"/"+userID+"/"+roleID)
		return add(guildID, userID, roleID, options...)
	}

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockWelcomeNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	engine := newTestEngine(t, fs, notifier, nil, testRule())
	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if !slices.Equal(granted, []string{"G/U/99"}) {
		t.Fatalf("unexpected grant calls %v", granted)
	}
	if fs.Count("ChannelMessageSend") != 0 {
		t.Fatal("expected no welcome message")
	}
}

func TestEngine_ScenarioB_GrantSendsWelcome(t *testing.T) {
	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)

	var sent []string
	fs.ChannelMessageSendFunc = func(channelID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
		sent = append(sent, channelID+"|"+content)
		return &discordgo.Message{ID: "m", ChannelID: channelID}, nil
	}

	rule := testRule()
	rule.WelcomeEnabled = true
	rule.WelcomeChannelID = "30"
	rule.WelcomeMessageTemplate = "Welcome, {user}!"

	notifier := welcome.NewNotifier(discord.NewOperations(fs, testLogger()), noop.NewTracerProvider().Tracer("test"), testLogger())
	engine := newTestEngine(t, fs, notifier, nil, rule)

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if !slices.Equal(sent, []string{"30|Welcome, <@U>!"}) {
		t.Fatalf("unexpected welcome sends %v", sent)
	}

	trace := fs.Trace()
	if slices.Index(trace, "GuildMemberRoleAdd") > slices.Index(trace, "ChannelMessageSend") {
		t.Fatalf("welcome sent before grant: %v", trace)
	}
}

func TestEngine_ScenarioC_AlreadyHeldIsNoop(t *testing.T) {
	fs := discord.NewFakeSession()
	newMemberStore("U", "99").attach(fs)

	rule := testRule()
	rule.WelcomeEnabled = true
	rule.WelcomeChannelID = "30"

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockWelcomeNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	engine := newTestEngine(t, fs, notifier, nil, rule)
	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeAlreadyHeld {
		t.Fatalf("outcome = %s, want already-held", got)
	}
	if n := mutationCount(fs); n != 0 {
		t.Fatalf("expected no mutations, got %d", n)
	}
	if fs.Count("ChannelMessageSend") != 0 {
		t.Fatal("expected no welcome message")
	}
}

func TestEngine_ScenarioD_RevokeOnRemove(t *testing.T) {
	fs := discord.NewFakeSession()
	store := newMemberStore("U", "99")
	store.attach(fs)

	engine := newTestEngine(t, fs, nil, nil, testRule())
	if got := engine.Handle(context.Background(), matchingEvent(Removed)); got != OutcomeRevoked {
		t.Fatalf("outcome = %s, want revoked", got)
	}
	if fs.Count("GuildMemberRoleRemove") != 1 {
		t.Fatalf("expected one revoke call, trace %v", fs.Trace())
	}
	if store.holds("U", "99") {
		t.Fatal("role still held after revoke")
	}
}

func TestEngine_ScenarioE_UnconfiguredGuildMakesNoCalls(t *testing.T) {
	fs := discord.NewFakeSession()
	engine := newTestEngine(t, fs, nil, nil, testRule())

	event := matchingEvent(Added)
	event.GuildID = "G2"
	if got := engine.Handle(context.Background(), event); got != OutcomeIgnored {
		t.Fatalf("outcome = %s, want ignored", got)
	}
	if len(fs.Trace()) != 0 {
		t.Fatalf("expected no external calls, got %v", fs.Trace())
	}
}

func TestEngine_GrantIsIdempotent(t *testing.T) {
	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)

	rule := testRule()
	rule.WelcomeEnabled = true
	rule.WelcomeChannelID = "30"

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockWelcomeNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), "U").Return(nil).Times(1)

	engine := newTestEngine(t, fs, notifier, nil, rule)
	first, err := engine.Grant(context.Background(), rule, "U")
	if err != nil || first != OutcomeGranted {
		t.Fatalf("first grant = %s, %v", first, err)
	}
	second, err := engine.Grant(context.Background(), rule, "U")
	if err != nil || second != OutcomeAlreadyHeld {
		t.Fatalf("second grant = %s, %v", second, err)
	}
	if n := fs.Count("GuildMemberRoleAdd"); n != 1 {
		t.Fatalf("expected one grant call, got %d", n)
	}
}

func TestEngine_RevokeNotHeldMakesNoMutation(t *testing.T) {
	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)

	engine := newTestEngine(t, fs, nil, nil, testRule())
	got, err := engine.Revoke(context.Background(), testRule(), "U")
	if err != nil || got != OutcomeNotHeld {
		t.Fatalf("revoke = %s, %v", got, err)
	}
	if n := mutationCount(fs); n != 0 {
		t.Fatalf("expected no mutations, got %d", n)
	}
}

func TestEngine_FailedGrantSkipsWelcome(t *testing.T) {
	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)
	fs.GuildMemberRoleAddFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		return &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
		}
	}

	rule := testRule()
	rule.WelcomeEnabled = true
	rule.WelcomeChannelID = "30"
	rule.RemoveReactionAfterGrant = true

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockWelcomeNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), gomock.Any(), gomock.Any()).Times(0)

	engine := newTestEngine(t, fs, notifier, nil, rule)
	outcome, err := engine.Grant(context.Background(), rule, "U")
	if outcome != OutcomeFailed {
		t.Fatalf("outcome = %s, want failed", outcome)
	}
	if !IsRoleOperationError(err) || IsTransient(err) {
		t.Fatalf("expected permanent role operation error, got %v", err)
	}
	if !discord.IsMissingPermissions(err) {
		t.Fatalf("expected cause to be preserved, got %v", err)
	}
	if fs.Count("MessageReactionRemove") != 0 {
		t.Fatal("reaction must not be stripped after a failed grant")
	}

	// Handle contains the failure.
	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeFailed {
		t.Fatalf("Handle outcome = %s, want failed", got)
	}
}

func TestEngine_MembershipReadFailure(t *testing.T) {
	fs := discord.NewFakeSession()
	fs.GuildMemberFunc = func(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
		return nil, &discordgo.RESTError{Response: &http.Response{StatusCode: http.StatusBadGateway, Status: "502 Bad Gateway"}}
	}

	engine := newTestEngine(t, fs, nil, nil, testRule())
	outcome, err := engine.Grant(context.Background(), testRule(), "U")
	if outcome != OutcomeFailed || !IsTransient(err) {
		t.Fatalf("expected transient failure, got %s, %v", outcome, err)
	}
	if mutationCount(fs) != 0 {
		t.Fatal("expected no mutation without a membership read")
	}
}

func TestEngine_WelcomeFailureKeepsGrant(t *testing.T) {
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	rule := testRule()
	rule.WelcomeEnabled = true
	rule.WelcomeChannelID = "30"

	ctrl := gomock.NewController(t)
	notifier := mocks.NewMockWelcomeNotifier(ctrl)
	notifier.EXPECT().Notify(gomock.Any(), rule, "U").Return(errors.New("unknown channel"))

	engine := newTestEngine(t, fs, notifier, nil, rule)
	outcome, err := engine.Grant(context.Background(), rule, "U")
	if err != nil || outcome != OutcomeGranted {
		t.Fatalf("grant = %s, %v", outcome, err)
	}
	if !store.holds("U", "99") {
		t.Fatal("grant was undone")
	}
	if fs.Count("GuildMemberRoleRemove") != 0 {
		t.Fatal("no compensation expected")
	}
}

func TestEngine_StripReactionAfterGrant(t *testing.T) {
	c, err := cache.NewCache(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	dedupe := NewDedupe(c, 5*time.Second, 20*time.Second)

	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	var strippedEmoji, strippedUser string
	fs.MessageReactionRemoveFunc = func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
		strippedEmoji, strippedUser = emojiID, userID
		return nil
	}

	rule := testRule()
	rule.ReactionEmoji = "<:accept:123>"
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	add := matchingEvent(Added)
	add.Emoji = Emote{Name: "accept", ID: "123"}
	if got := engine.Handle(context.Background(), add); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if strippedEmoji != "accept:123" || strippedUser != "U" {
		t.Fatalf("unexpected strip emoji=%q user=%q", strippedEmoji, strippedUser)
	}

	// The removal Discord reports for the strip must not revoke the role.
	remove := add
	remove.Direction = Removed
	if got := engine.Handle(context.Background(), remove); got != OutcomeStripped {
		t.Fatalf("outcome = %s, want stripped", got)
	}
	if !store.holds("U", "99") {
		t.Fatal("role revoked by the bot's own strip")
	}

	// A later genuine removal revokes as usual.
	if got := engine.Handle(context.Background(), remove); got != OutcomeRevoked {
		t.Fatalf("outcome = %s, want revoked", got)
	}
}

func TestEngine_StripFailureDoesNotUndoGrant(t *testing.T) {
	c, err := cache.NewCache(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	dedupe := NewDedupe(c, 5*time.Second, 20*time.Second)

	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)
	fs.MessageReactionRemoveFunc = func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
		return &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
		}
	}

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if !store.holds("U", "99") {
		t.Fatal("grant undone by strip failure")
	}
	if dedupe.ConsumeStripped(matchingEvent(Removed)) {
		t.Fatal("strip mark must be cleared when the strip fails")
	}
}

func TestEngine_DuplicateDeliveryDropped(t *testing.T) {
	c, err := cache.NewCache(context.Background(), time.Minute)
	if err != nil {
		t.Fatalf("failed to create cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })

	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)
	engine := newTestEngine(t, fs, nil, NewDedupe(c, 5*time.Second, 20*time.Second), testRule())

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeDuplicate {
		t.Fatalf("outcome = %s, want duplicate", got)
	}
	if fs.Count("GuildMember") != 1 {
		t.Fatalf("duplicate should not reach Discord, trace %v", fs.Trace())
	}
}

func TestEngine_ConcurrentAddRemoveConverges(t *testing.T) {
	for i := 0; i < 20; i++ {
		fs := discord.NewFakeSession()
		store := newMemberStore("U")
		store.attach(fs)
		engine := newTestEngine(t, fs, nil, nil, testRule())

		var wg sync.WaitGroup
		for _, dir := range []Direction{Added, Removed, Added, Removed} {
			wg.Add(1)
			go func(dir Direction) {
				defer wg.Done()
				engine.Handle(context.Background(), matchingEvent(dir))
			}(dir)
		}
		wg.Wait()

		// Either end state is valid; the membership list must never hold the role twice.
		store.mu.Lock()
		roles := slices.Clone(store.roles["U"])
		store.mu.Unlock()
		if len(roles) > 1 || (len(roles) == 1 && roles[0] != "99") {
			t.Fatalf("corrupted membership %v", roles)
		}
	}
}

func TestEngine_StripMarkOutlivesDuplicateWindow(t *testing.T) {
	dedupe, now := newTestDedupe(t)
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}

	// Discord reports the strip promptly but the removal waits in the queue past the window.
	remove := matchingEvent(Removed)
	remove.ReceivedAt = now.Add(time.Second)
	*now = now.Add(30 * time.Second)

	if got := engine.Handle(context.Background(), remove); got != OutcomeStripped {
		t.Fatalf("outcome = %s, want stripped", got)
	}
	if !store.holds("U", "99") || fs.Count("GuildMemberRoleRemove") != 0 {
		t.Fatalf("role revoked by the bot's own strip, trace %v", fs.Trace())
	}
}

func TestEngine_ReactAgainAfterStripIsNotDuplicate(t *testing.T) {
	dedupe, _ := newTestDedupe(t)
	fs := discord.NewFakeSession()
	newMemberStore("U").attach(fs)

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if got := engine.Handle(context.Background(), matchingEvent(Removed)); got != OutcomeStripped {
		t.Fatalf("outcome = %s, want stripped", got)
	}
	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeAlreadyHeld {
		t.Fatalf("outcome = %s, want already-held", got)
	}
	if n := fs.Count("MessageReactionRemove"); n != 2 {
		t.Fatalf("second reaction must be stripped too, got %d strips", n)
	}
}

func TestEngine_RemovalDuringFailedStripRevokes(t *testing.T) {
	dedupe, _ := newTestDedupe(t)
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	// The user withdraws while the strip is in flight, so the strip finds no reaction.
	var midStrip Outcome
	fs.MessageReactionRemoveFunc = func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
		midStrip = engine.Handle(context.Background(), matchingEvent(Removed))
		return &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusNotFound, Status: "404 Not Found"},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeUnknownEmoji},
		}
	}

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if midStrip != OutcomeStripped {
		t.Fatalf("mid-strip removal outcome = %s, want stripped", midStrip)
	}
	if store.holds("U", "99") {
		t.Fatal("withdrawn reaction must revoke the role")
	}
	if n := fs.Count("GuildMemberRoleRemove"); n != 1 {
		t.Fatalf("expected one revoke, got %d", n)
	}
}

func TestEngine_RemovalAfterFailedStripRevokes(t *testing.T) {
	dedupe, _ := newTestDedupe(t)
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)
	fs.MessageReactionRemoveFunc = func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
		return &discordgo.RESTError{
			Response: &http.Response{StatusCode: http.StatusForbidden, Status: "403 Forbidden"},
			Message:  &discordgo.APIErrorMessage{Code: discordgo.ErrCodeMissingPermissions},
		}
	}

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, dedupe, rule)

	if got := engine.Handle(context.Background(), matchingEvent(Added)); got != OutcomeGranted {
		t.Fatalf("outcome = %s, want granted", got)
	}
	if got := engine.Handle(context.Background(), matchingEvent(Removed)); got != OutcomeRevoked {
		t.Fatalf("outcome = %s, want revoked", got)
	}
	if store.holds("U", "99") {
		t.Fatal("role must be revoked")
	}
}

func TestEngine_DiscordCallsCarryTaskDeadline(t *testing.T) {
	fs := discord.NewFakeSession()
	store := newMemberStore("U")
	store.attach(fs)

	var missing []string
	check := func(name string, options []discordgo.RequestOption) {
		if _, ok := requestDeadline(options); !ok {
			missing = append(missing, name)
		}
	}
	read, add, remove := fs.GuildMemberFunc, fs.GuildMemberRoleAddFunc, fs.GuildMemberRoleRemoveFunc
	fs.GuildMemberFunc = func(guildID, userID string, options ...discordgo.RequestOption) (*discordgo.Member, error) {
		check("GuildMember", options)
		return read(guildID, userID, options...)
	}
	fs.GuildMemberRoleAddFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		check("GuildMemberRoleAdd", options)
		return add(guildID, userID, roleID, options...)
	}
	fs.GuildMemberRoleRemoveFunc = func(guildID, userID, roleID string, options ...discordgo.RequestOption) error {
		check("GuildMemberRoleRemove", options)
		return remove(guildID, userID, roleID, options...)
	}
	fs.MessageReactionRemoveFunc = func(channelID, messageID, emojiID, userID string, options ...discordgo.RequestOption) error {
		check("MessageReactionRemove", options)
		return nil
	}

	rule := testRule()
	rule.RemoveReactionAfterGrant = true
	engine := newTestEngine(t, fs, nil, nil, rule)

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	if _, err := engine.Grant(ctx, rule, "U"); err != nil {
		t.Fatalf("grant failed: %v", err)
	}
	if _, err := engine.Revoke(ctx, rule, "U"); err != nil {
		t.Fatalf("revoke failed: %v", err)
	}
	if len(missing) != 0 {
		t.Fatalf("calls without the task deadline: %v", missing)
	}
}
