package activitymap

import (
	"strings"
	"time"

	auth "github.com/goliatone/go-token-auth"
)

// MetadataKeyActorType stores the actor type derived from auth.ActorRef.Type.
const MetadataKeyActorType = "actor_type"

const (
	defaultChannel = "auth"
	objectAccount  = "account"
	anonymousActor = "anonymous"
)

// Normalized is the flat record written for each account activity event.
type Normalized struct {
	ActorID    string         `json:"actor_id"`
	Verb       string         `json:"verb"`
	ObjectType string         `json:"object_type,omitempty"`
	ObjectID   string         `json:"object_id,omitempty"`
	Channel    string         `json:"channel,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	OccurredAt time.Time      `json:"occurred_at"`
}

// Option customizes normalization behavior.
type Option func(*normalizer)

type normalizer struct {
	channel string
	now     func() time.Time
}

// WithDefaultChannel sets the channel stamped on normalized records.
func WithDefaultChannel(channel string) Option {
	return func(n *normalizer) {
		n.channel = strings.TrimSpace(channel)
	}
}

// WithClock sets the time used for events without OccurredAt.
func WithClock(now func() time.Time) Option {
	return func(n *normalizer) {
		if now != nil {
			n.now = now
		}
	}
}

// Normalize flattens event. The object is always the account the event is
// about, and the actor falls back to that account, then to anonymous.
func Normalize(event auth.ActivityEvent, opts ...Option) Normalized {
	n := normalizer{channel: defaultChannel, now: time.Now}
	for _, opt := range opts {
		if opt != nil {
			opt(&n)
		}
	}

	accountID := strings.TrimSpace(event.AccountID)

	actorID := strings.TrimSpace(event.Actor.ID)
	if actorID == "" {
		actorID = accountID
	}
	if actorID == "" {
		actorID = anonymousActor
	}

	occurredAt := event.OccurredAt
	if occurredAt.IsZero() {
		occurredAt = n.now().UTC()
	}

	return Normalized{
		ActorID:    actorID,
		Verb:       string(event.EventType),
		ObjectType: objectAccount,
		ObjectID:   accountID,
		Channel:    n.channel,
		Metadata:   metadataOf(event),
		OccurredAt: occurredAt,
	}
}

// metadataOf copies event metadata and records the actor type unless the
// event already set one.
func metadataOf(event auth.ActivityEvent) map[string]any {
	actorType := strings.TrimSpace(event.Actor.Type)
	if len(event.Metadata) == 0 && actorType == "" {
		return nil
	}

	out := make(map[string]any, len(event.Metadata)+1)
	for k, v := range event.Metadata {
		out[k] = v
	}
	if _, ok := out[MetadataKeyActorType]; !ok && actorType != "" {
		out[MetadataKeyActorType] = actorType
	}
	return out
}
