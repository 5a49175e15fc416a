// Package storage defines the persistence contracts for the coordination core.
//
// Stores provide per-document atomic reads and writes plus the handful of
// multi-document batches the design requires (campaign+DM creation,
// invite acceptance, encounter start/end). Array-typed fields on shared
// documents (combatants, combat log, roll responses) are mutated through
// dedicated store operations so concurrent writers cannot lose updates to a
// read-modify-write race.
package storage

import (
	"context"
	"errors"
	"time"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/campaign/invite"
	"github.com/louisbranch/wyrmtable/internal/chat"
	encounterdomain "github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/note"
	"github.com/louisbranch/wyrmtable/internal/roll"
)

var (
	// ErrNotFound indicates a requested record is missing.
	ErrNotFound = errors.New("record not found")
	// ErrDuplicate indicates a uniqueness constraint was violated.
	ErrDuplicate = errors.New("record already exists")
	// ErrConflict indicates a compare-and-set write lost to a concurrent
	// mutation of the same document.
	ErrConflict = errors.New("concurrent update conflict")
)

// ChangeKind describes what happened to a document.
type ChangeKind int

const (
	// ChangeCreated indicates a document was created.
	ChangeCreated ChangeKind = iota
	// ChangeUpdated indicates a document was mutated.
	ChangeUpdated
	// ChangeDeleted indicates a document was deleted.
	ChangeDeleted
)

// Collection names the logical document collections.
type Collection string

const (
	CollectionCampaigns    Collection = "campaigns"
	CollectionMembers      Collection = "members"
	CollectionInvites      Collection = "invites"
	CollectionEncounters   Collection = "encounters"
	CollectionRollRequests Collection = "rollRequests"
	CollectionNotes        Collection = "notes"
	CollectionTemplates    Collection = "templates"
	CollectionWhispers     Collection = "whispers"
	CollectionMessages     Collection = "messages"
)

// Change is a push-based notification of one committed write. Delivery is
// eventually consistent: subscribers observe a change only after the write
// commits and the notifier fans it out.
type Change struct {
	Collection Collection
	Kind       ChangeKind
	CampaignID string
	// DocID is the changed document's key within its collection. For member
	// documents this is the member uid.
	DocID string
	At    time.Time
	// Origin names the peer instance that produced the change when it
	// arrived over the cross-instance bridge. Locally committed changes
	// leave it empty.
	Origin string
}

// Notifier fans committed changes out to subscribers.
type Notifier interface {
	Publish(change Change)
}

// CampaignStore persists campaign records and the denormalized membership
// index.
type CampaignStore interface {
	// CreateCampaignWithDM writes the campaign and its DM membership record
	// in one batch; the campaign is never visible without its DM membership.
	CreateCampaignWithDM(ctx context.Context, campaign campaigndomain.Campaign, dm campaigndomain.Member) error
	GetCampaign(ctx context.Context, campaignID string) (campaigndomain.Campaign, error)
	// PutCampaign overwrites campaign metadata last-write-wins.
	PutCampaign(ctx context.Context, campaign campaigndomain.Campaign) error
	// DeleteCampaign removes the campaign document only; subcollection
	// cascades are the registry's responsibility so deletion order is
	// explicit.
	DeleteCampaign(ctx context.Context, campaignID string) error
	// GetCampaignByJoinCode resolves an upper-cased join code to an active
	// campaign. Archived campaigns are indistinguishable from nonexistent
	// ones.
	GetCampaignByJoinCode(ctx context.Context, code string) (campaigndomain.Campaign, error)
	// ListCampaignsForUser returns active campaigns whose membership index
	// contains uid.
	ListCampaignsForUser(ctx context.Context, uid string) ([]campaigndomain.Campaign, error)
	// AddMemberUID atomically inserts uid into the campaign's membership
	// index.
	AddMemberUID(ctx context.Context, campaignID, uid string) error
	// RemoveMemberUID atomically removes uid from the campaign's membership
	// index. Missing campaigns are a no-op: the parent may already be
	// deleted when a trailing member deletion is observed.
	RemoveMemberUID(ctx context.Context, campaignID, uid string) error
}

// MemberStore persists campaign membership records keyed by (campaign, uid).
type MemberStore interface {
	PutMember(ctx context.Context, member campaigndomain.Member) error
	GetMember(ctx context.Context, campaignID, uid string) (campaigndomain.Member, error)
	DeleteMember(ctx context.Context, campaignID, uid string) error
	ListMembers(ctx context.Context, campaignID string) ([]campaigndomain.Member, error)
	// DeleteMembers removes every membership record for a campaign. Used
	// last in the campaign delete cascade.
	DeleteMembers(ctx context.Context, campaignID string) error
}

// InviteStore persists campaign invites.
type InviteStore interface {
	// CreateInvite fails with ErrDuplicate when a pending invite already
	// exists for the same (email, campaign) pair.
	CreateInvite(ctx context.Context, record invite.Invite) error
	GetInvite(ctx context.Context, inviteID string) (invite.Invite, error)
	UpdateInviteStatus(ctx context.Context, inviteID string, status invite.Status) error
	// AcceptInviteWithMember flips the invite to accepted and writes the
	// membership record in one batch.
	AcceptInviteWithMember(ctx context.Context, inviteID string, member campaigndomain.Member) error
	// ListPendingInvitesByEmail returns pending invites for an email. The
	// caller filters out expired entries at read time.
	ListPendingInvitesByEmail(ctx context.Context, email string) ([]invite.Invite, error)
	DeleteInvitesForCampaign(ctx context.Context, campaignID string) error
}

// EncounterStore persists combat encounters, their embedded combatants, and
// the append-only combat log.
type EncounterStore interface {
	// CreateEncounter writes the encounter, its seeded start log entry, and
	// the campaign's active-encounter pointer in one batch.
	CreateEncounter(ctx context.Context, record encounterdomain.Encounter, seed encounterdomain.LogEntry) error
	// GetEncounter loads an encounter including its log in insertion order.
	GetEncounter(ctx context.Context, campaignID, encounterID string) (encounterdomain.Encounter, error)
	// AdvanceTurn moves the turn pointer with a compare-and-set on the
	// current index and appends the turn-change log entry in the same
	// transaction. Returns ErrConflict when another writer advanced first.
	AdvanceTurn(ctx context.Context, campaignID, encounterID string, expectedIndex, nextIndex, nextRound int, entry encounterdomain.LogEntry) error
	// UpdateCombatant applies a patch to one combatant inside a transaction,
	// serializing concurrent combatant mutations on the same encounter.
	UpdateCombatant(ctx context.Context, campaignID, encounterID, combatantID string, patch encounterdomain.CombatantPatch) (encounterdomain.Combatant, error)
	// AppendLogEntry appends one combat log entry; insertion order is the
	// authoritative log order.
	AppendLogEntry(ctx context.Context, campaignID, encounterID string, entry encounterdomain.LogEntry) error
	// EndEncounter deactivates the encounter, stamps endedAt, appends the
	// end log entry, and clears the campaign's active-encounter pointer in
	// one batch.
	EndEncounter(ctx context.Context, campaignID, encounterID string, endedAt time.Time, entry encounterdomain.LogEntry) error
	DeleteEncountersForCampaign(ctx context.Context, campaignID string) error
}

// TemplateStore persists saved encounter templates.
type TemplateStore interface {
	PutTemplate(ctx context.Context, record encounterdomain.Template) error
	ListTemplates(ctx context.Context, campaignID string) ([]encounterdomain.Template, error)
	DeleteTemplate(ctx context.Context, campaignID, templateID string) error
	DeleteTemplatesForCampaign(ctx context.Context, campaignID string) error
}

// RollRequestStore persists roll requests and their fan-in responses.
type RollRequestStore interface {
	CreateRollRequest(ctx context.Context, record roll.Request) error
	GetRollRequest(ctx context.Context, campaignID, requestID string) (roll.Request, error)
	// AppendRollResponse records a response, failing with ErrDuplicate when
	// the uid already responded.
	AppendRollResponse(ctx context.Context, campaignID, requestID string, response roll.Response) error
	ListRollRequests(ctx context.Context, campaignID string) ([]roll.Request, error)
	DeleteRollRequestsForCampaign(ctx context.Context, campaignID string) error
}

// NoteStore persists DM notes.
type NoteStore interface {
	PutNote(ctx context.Context, record note.Note) error
	GetNote(ctx context.Context, campaignID, noteID string) (note.Note, error)
	DeleteNote(ctx context.Context, campaignID, noteID string) error
	ListNotes(ctx context.Context, campaignID string) ([]note.Note, error)
	DeleteNotesForCampaign(ctx context.Context, campaignID string) error
}

// ChatStore persists campaign chat messages and whispers.
type ChatStore interface {
	AppendMessage(ctx context.Context, record chat.Message) error
	ListMessages(ctx context.Context, campaignID string) ([]chat.Message, error)
	DeleteMessagesForCampaign(ctx context.Context, campaignID string) error
	AppendWhisper(ctx context.Context, record chat.Whisper) error
	// ListWhispers returns whispers the uid sent or received.
	ListWhispers(ctx context.Context, campaignID, uid string) ([]chat.Whisper, error)
	DeleteWhispersForCampaign(ctx context.Context, campaignID string) error
}

// Store aggregates every persistence contract the services need.
type Store interface {
	CampaignStore
	MemberStore
	InviteStore
	EncounterStore
	TemplateStore
	RollRequestStore
	NoteStore
	ChatStore
}
