package reactionrole

import (
	"encoding/binary"
	"strings"
	"sync"
	"time"

	cache "github.com/Black-And-White-Club/discord-rules-bot/bigcache"
)

// Dedupe suppresses repeated deliveries of the same reaction event and remembers reactions the
// bot stripped itself.
type Dedupe struct {
	mu      sync.Mutex
	cache   cache.CacheInterface
	window  time.Duration
	markTTL time.Duration
	now     func() time.Time
}

// NewDedupe creates a Dedupe over c. Events older than window are treated as new. Strip marks
// live for markTTL, measured against the time the removal reached the gateway; a markTTL shorter
// than window is raised to window. c must keep entries for at least markTTL.
func NewDedupe(c cache.CacheInterface, window, markTTL time.Duration) *Dedupe {
	if markTTL < window {
		markTTL = window
	}
	return &Dedupe{cache: c, window: window, markTTL: markTTL, now: time.Now}
}

// StripMarkTTL is how long a strip mark stays valid: one full task budget for the strip call plus
// the duplicate window for gateway delivery.
func StripMarkTTL(eventTimeout, window time.Duration) time.Duration {
	return eventTimeout + window
}

// Observe records the event and reports whether an identical event was already seen within the
// window. Recording one direction forgets the other, so add, remove, add is never suppressed.
func (d *Dedupe) Observe(event ReactionEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	_ = d.cache.Delete(eventKey(event, event.Direction.opposite()))

	key := eventKey(event, event.Direction)
	if d.fresh(key, d.window, d.now()) {
		return true
	}
	_ = d.cache.Set(key, d.stamp())
	return false
}

// MarkStripped remembers that the bot is about to remove the user's reaction in this guild.
func (d *Dedupe) MarkStripped(guildID, userID string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	_ = d.cache.Delete(absorbedKey(guildID, userID))
	_ = d.cache.Set(strippedKey(guildID, userID), d.stamp())
}

// ConsumeStripped reports and clears a strip mark for a removal event. A consumed mark forgets
// the recorded add, so the user can react again right away, and is remembered until the strip
// call reports back through ResolveStrip.
func (d *Dedupe) ConsumeStripped(event ReactionEvent) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := strippedKey(event.GuildID, event.UserID)
	found := d.fresh(key, d.markTTL, receivedAt(event, d.now))
	_ = d.cache.Delete(key)
	if !found {
		return false
	}
	_ = d.cache.Delete(eventKey(event, Added))
	_ = d.cache.Set(absorbedKey(event.GuildID, event.UserID), d.stamp())
	return true
}

// ResolveStrip records the result of the strip call. When the call failed it clears the mark and
// reports whether a removal was already absorbed by it; that removal came from the user.
func (d *Dedupe) ResolveStrip(guildID, userID string, stripped bool) bool {
	d.mu.Lock()
	defer d.mu.Unlock()

	key := absorbedKey(guildID, userID)
	if stripped {
		_ = d.cache.Delete(key)
		return false
	}
	_ = d.cache.Delete(strippedKey(guildID, userID))
	absorbed := d.fresh(key, d.markTTL, d.now())
	_ = d.cache.Delete(key)
	return absorbed
}

func (d *Dedupe) fresh(key string, ttl time.Duration, at time.Time) bool {
	b, err := d.cache.Get(key)
	if err != nil || len(b) != 8 {
		return false
	}
	seen := time.Unix(0, int64(binary.BigEndian.Uint64(b)))
	return at.Sub(seen) < ttl
}

func (d *Dedupe) stamp() []byte {
	b := make([]byte, 8)
	binary.BigEndian.PutUint64(b, uint64(d.now().UnixNano()))
	return b
}

func receivedAt(event ReactionEvent, now func() time.Time) time.Time {
	if event.ReceivedAt.IsZero() {
		return now()
	}
	return event.ReceivedAt
}

func eventKey(e ReactionEvent, dir Direction) string {
	return strings.Join([]string{"ev", e.GuildID, e.ChannelID, e.MessageID, e.UserID, e.Emoji.String(), dir.String()}, "|")
}

func strippedKey(guildID, userID string) string {
	return "strip|" + guildID + "|" + userID
}

func absorbedKey(guildID, userID string) string {
	return "absorbed|" + guildID + "|" + userID
}
