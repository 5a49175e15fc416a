package gateway

import (
	"time"

	campaigndomain "github.com/louisbranch/wyrmtable/internal/campaign/domain"
	"github.com/louisbranch/wyrmtable/internal/campaign/invite"
	"github.com/louisbranch/wyrmtable/internal/chat"
	"github.com/louisbranch/wyrmtable/internal/dice"
	encounterdomain "github.com/louisbranch/wyrmtable/internal/encounter/domain"
	"github.com/louisbranch/wyrmtable/internal/note"
	"github.com/louisbranch/wyrmtable/internal/roll"
)

type settingsView struct {
	AllowPlayerInvites         bool   `json:"allowPlayerInvites"`
	DefaultCharacterVisibility string `json:"defaultCharacterVisibility,omitempty"`
}

type campaignView struct {
	ID                string       `json:"id"`
	Name              string       `json:"name"`
	Description       string       `json:"description,omitempty"`
	DmUID             string       `json:"dmUid"`
	JoinCode          string       `json:"joinCode,omitempty"`
	Status            string       `json:"status"`
	SessionNumber     int          `json:"sessionNumber"`
	Settings          settingsView `json:"settings"`
	ActiveEncounterID string       `json:"activeEncounterId,omitempty"`
	MemberUIDs        []string     `json:"memberUids"`
	CreatedAt         time.Time    `json:"createdAt"`
	UpdatedAt         time.Time    `json:"updatedAt"`
}

// campaignViewFor hides the join code from non-DM callers; it is the DM's to
// share.
func campaignViewFor(campaign campaigndomain.Campaign, callerUID string) campaignView {
	view := campaignView{
		ID:                campaign.ID,
		Name:              campaign.Name,
		Description:       campaign.Description,
		DmUID:             campaign.DmUID,
		Status:            campaigndomain.StatusLabel(campaign.Status),
		SessionNumber:     campaign.CurrentSessionNumber,
		ActiveEncounterID: campaign.ActiveEncounterID,
		MemberUIDs:        campaign.MemberUIDs,
		CreatedAt:         campaign.CreatedAt,
		UpdatedAt:         campaign.UpdatedAt,
		Settings: settingsView{
			AllowPlayerInvites:         campaign.Settings.AllowPlayerInvites,
			DefaultCharacterVisibility: campaign.Settings.DefaultCharacterVisibility,
		},
	}
	if callerUID == campaign.DmUID {
		view.JoinCode = campaign.JoinCode
	}
	return view
}

func campaignViewsFor(campaigns []campaigndomain.Campaign, callerUID string) []campaignView {
	views := make([]campaignView, 0, len(campaigns))
	for _, campaign := range campaigns {
		views = append(views, campaignViewFor(campaign, callerUID))
	}
	return views
}

type characterSummaryView struct {
	Name              string   `json:"name"`
	Race              string   `json:"race,omitempty"`
	Class             string   `json:"class,omitempty"`
	Level             int      `json:"level"`
	PortraitURL       string   `json:"portraitUrl,omitempty"`
	HP                int      `json:"hp"`
	MaxHP             int      `json:"maxHp"`
	AC                int      `json:"ac"`
	Initiative        int      `json:"initiative"`
	PassivePerception int      `json:"passivePerception"`
	TopSkills         []string `json:"topSkills,omitempty"`
	TopFeatures       []string `json:"topFeatures,omitempty"`
	PrimaryAttack     string   `json:"primaryAttack,omitempty"`
	JournalPreview    string   `json:"journalPreview,omitempty"`
}

type memberView struct {
	CampaignID       string                `json:"campaignId"`
	UID              string                `json:"uid"`
	DisplayName      string                `json:"displayName"`
	Role             string                `json:"role"`
	CharacterID      string                `json:"characterId,omitempty"`
	CharacterSummary *characterSummaryView `json:"characterSummary,omitempty"`
	JoinedAt         time.Time             `json:"joinedAt"`
}

func memberViewOf(member campaigndomain.Member) memberView {
	view := memberView{
		CampaignID:  member.CampaignID,
		UID:         member.UID,
		DisplayName: member.DisplayName,
		Role:        campaigndomain.RoleLabel(member.Role),
		CharacterID: member.CharacterID,
		JoinedAt:    member.JoinedAt,
	}
	if summary := member.CharacterSummary; summary != nil {
		view.CharacterSummary = &characterSummaryView{
			Name:              summary.Name,
			Race:              summary.Race,
			Class:             summary.Class,
			Level:             summary.Level,
			PortraitURL:       summary.PortraitURL,
			HP:                summary.HP,
			MaxHP:             summary.MaxHP,
			AC:                summary.AC,
			Initiative:        summary.Initiative,
			PassivePerception: summary.PassivePerception,
			TopSkills:         summary.TopSkills,
			TopFeatures:       summary.TopFeatures,
			PrimaryAttack:     summary.PrimaryAttack,
			JournalPreview:    summary.JournalPreview,
		}
	}
	return view
}

func memberViewsOf(members []campaigndomain.Member) []memberView {
	views := make([]memberView, 0, len(members))
	for _, member := range members {
		views = append(views, memberViewOf(member))
	}
	return views
}

type inviteView struct {
	ID            string    `json:"id"`
	CampaignID    string    `json:"campaignId"`
	CampaignName  string    `json:"campaignName"`
	Email         string    `json:"email"`
	InvitedByName string    `json:"invitedByName"`
	Status        string    `json:"status"`
	CreatedAt     time.Time `json:"createdAt"`
	ExpiresAt     time.Time `json:"expiresAt"`
}

func inviteViewOf(record invite.Invite) inviteView {
	return inviteView{
		ID:            record.ID,
		CampaignID:    record.CampaignID,
		CampaignName:  record.CampaignName,
		Email:         record.Email,
		InvitedByName: record.InvitedByName,
		Status:        invite.StatusLabel(record.Status),
		CreatedAt:     record.CreatedAt,
		ExpiresAt:     record.ExpiresAt,
	}
}

type combatantView struct {
	ID          string                     `json:"id"`
	Name        string                     `json:"name"`
	Type        string                     `json:"type"`
	Initiative  int                        `json:"initiative"`
	HP          int                        `json:"hp"`
	MaxHP       int                        `json:"maxHp"`
	AC          int                        `json:"ac"`
	HPBand      string                     `json:"hpBand"`
	Conditions  []string                   `json:"conditions,omitempty"`
	CharacterID string                     `json:"characterId,omitempty"`
	StatBlock   *encounterdomain.StatBlock `json:"statBlock,omitempty"`
}

func combatantViewOf(combatant encounterdomain.Combatant) combatantView {
	return combatantView{
		ID:          combatant.ID,
		Name:        combatant.Name,
		Type:        encounterdomain.CombatantTypeLabel(combatant.Type),
		Initiative:  combatant.Initiative,
		HP:          combatant.HP,
		MaxHP:       combatant.MaxHP,
		AC:          combatant.AC,
		HPBand:      hpBandLabel(encounterdomain.BandForHP(combatant.HP, combatant.MaxHP)),
		Conditions:  combatant.Conditions,
		CharacterID: combatant.CharacterID,
		StatBlock:   combatant.StatBlock,
	}
}

func hpBandLabel(band encounterdomain.HPBand) string {
	switch band {
	case encounterdomain.HPBandWarning:
		return "warning"
	case encounterdomain.HPBandCritical:
		return "critical"
	default:
		return "nominal"
	}
}

type logEntryView struct {
	Timestamp   time.Time `json:"timestamp"`
	Type        string    `json:"type"`
	ActorName   string    `json:"actorName,omitempty"`
	Description string    `json:"description"`
}

type encounterView struct {
	ID               string          `json:"id"`
	CampaignID       string          `json:"campaignId"`
	Name             string          `json:"name"`
	Active           bool            `json:"active"`
	Round            int             `json:"round"`
	CurrentTurnIndex int             `json:"currentTurnIndex"`
	Combatants       []combatantView `json:"combatants"`
	Log              []logEntryView  `json:"log"`
	CreatedAt        time.Time       `json:"createdAt"`
	EndedAt          *time.Time      `json:"endedAt,omitempty"`
}

func encounterViewOf(encounter encounterdomain.Encounter) encounterView {
	combatants := make([]combatantView, 0, len(encounter.Combatants))
	for _, combatant := range encounter.Combatants {
		combatants = append(combatants, combatantViewOf(combatant))
	}
	log := make([]logEntryView, 0, len(encounter.Log))
	for _, entry := range encounter.Log {
		log = append(log, logEntryView{
			Timestamp:   entry.Timestamp,
			Type:        string(entry.Type),
			ActorName:   entry.ActorName,
			Description: entry.Description,
		})
	}
	return encounterView{
		ID:               encounter.ID,
		CampaignID:       encounter.CampaignID,
		Name:             encounter.Name,
		Active:           encounter.Active,
		Round:            encounter.Round,
		CurrentTurnIndex: encounter.CurrentTurnIndex,
		Combatants:       combatants,
		Log:              log,
		CreatedAt:        encounter.CreatedAt,
		EndedAt:          encounter.EndedAt,
	}
}

type templateView struct {
	ID         string          `json:"id"`
	CampaignID string          `json:"campaignId"`
	Name       string          `json:"name"`
	Combatants []combatantView `json:"combatants"`
	CreatedAt  time.Time       `json:"createdAt"`
}

func templateViewOf(template encounterdomain.Template) templateView {
	combatants := make([]combatantView, 0, len(template.Combatants))
	for _, combatant := range template.Combatants {
		combatants = append(combatants, combatantViewOf(combatant))
	}
	return templateView{
		ID:         template.ID,
		CampaignID: template.CampaignID,
		Name:       template.Name,
		Combatants: combatants,
		CreatedAt:  template.CreatedAt,
	}
}

type rollResponseView struct {
	UID         string      `json:"uid"`
	DisplayName string      `json:"displayName"`
	Result      dice.Result `json:"result"`
	// Passed is display-only and present when the request has a DC.
	Passed    *bool     `json:"passed,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type rollRequestView struct {
	ID         string             `json:"id"`
	CampaignID string             `json:"campaignId"`
	DmUID      string             `json:"dmUid"`
	Type       string             `json:"type"`
	DC         *int               `json:"dc,omitempty"`
	TargetUIDs []string           `json:"targetUids"`
	Responses  []rollResponseView `json:"responses"`
	CreatedAt  time.Time          `json:"createdAt"`
}

func rollRequestViewOf(request roll.Request) rollRequestView {
	responses := make([]rollResponseView, 0, len(request.Responses))
	for _, response := range request.Responses {
		view := rollResponseView{
			UID:         response.UID,
			DisplayName: response.DisplayName,
			Result:      response.Result,
			Timestamp:   response.Timestamp,
		}
		if passed, hasDC := request.Passes(response.Result.Total); hasDC {
			view.Passed = &passed
		}
		responses = append(responses, view)
	}
	return rollRequestView{
		ID:         request.ID,
		CampaignID: request.CampaignID,
		DmUID:      request.DmUID,
		Type:       request.Type,
		DC:         request.DC,
		TargetUIDs: request.TargetUIDs,
		Responses:  responses,
		CreatedAt:  request.CreatedAt,
	}
}

type noteView struct {
	ID            string    `json:"id"`
	CampaignID    string    `json:"campaignId"`
	Tag           string    `json:"tag"`
	Title         string    `json:"title"`
	Content       string    `json:"content,omitempty"`
	Tags          []string  `json:"tags,omitempty"`
	SessionNumber *int      `json:"sessionNumber,omitempty"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

func noteViewOf(record note.Note) noteView {
	return noteView{
		ID:            record.ID,
		CampaignID:    record.CampaignID,
		Tag:           string(record.Tag),
		Title:         record.Title,
		Content:       record.Content,
		Tags:          record.Tags,
		SessionNumber: record.SessionNumber,
		CreatedAt:     record.CreatedAt,
		UpdatedAt:     record.UpdatedAt,
	}
}

type messageView struct {
	ID          string    `json:"id"`
	CampaignID  string    `json:"campaignId"`
	UID         string    `json:"uid"`
	DisplayName string    `json:"displayName"`
	Content     string    `json:"content"`
	CreatedAt   time.Time `json:"createdAt"`
}

func messageViewOf(message chat.Message) messageView {
	return messageView{
		ID:          message.ID,
		CampaignID:  message.CampaignID,
		UID:         message.UID,
		DisplayName: message.DisplayName,
		Content:     message.Content,
		CreatedAt:   message.CreatedAt,
	}
}

type whisperView struct {
	ID         string    `json:"id"`
	CampaignID string    `json:"campaignId"`
	FromUID    string    `json:"fromUid"`
	ToUID      string    `json:"toUid"`
	Content    string    `json:"content"`
	CreatedAt  time.Time `json:"createdAt"`
}

func whisperViewOf(whisper chat.Whisper) whisperView {
	return whisperView{
		ID:         whisper.ID,
		CampaignID: whisper.CampaignID,
		FromUID:    whisper.FromUID,
		ToUID:      whisper.ToUID,
		Content:    whisper.Content,
		CreatedAt:  whisper.CreatedAt,
	}
}
