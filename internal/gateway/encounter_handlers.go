package gateway

import (
	"net/http"

	"github.com/louisbranch/wyrmtable/internal/ai"
	encounterdomain "github.com/louisbranch/wyrmtable/internal/encounter/domain"
	encounterservice "github.com/louisbranch/wyrmtable/internal/encounter/service"
)

type combatantDraftBody struct {
	Name           string                     `json:"name"`
	Type           string                     `json:"type"`
	Initiative     int                        `json:"initiative"`
	RollInitiative bool                       `json:"rollInitiative"`
	DexModifier    int                        `json:"dexModifier"`
	HP             int                        `json:"hp"`
	MaxHP          int                        `json:"maxHp"`
	AC             int                        `json:"ac"`
	Conditions     []string                   `json:"conditions"`
	CharacterID    string                     `json:"characterId"`
	StatBlock      *encounterdomain.StatBlock `json:"statBlock"`
}

func draftsFromBodies(bodies []combatantDraftBody) []encounterservice.CombatantDraft {
	drafts := make([]encounterservice.CombatantDraft, 0, len(bodies))
	for _, body := range bodies {
		drafts = append(drafts, encounterservice.CombatantDraft{
			Name:           body.Name,
			Type:           encounterdomain.CombatantTypeFromLabel(body.Type),
			Initiative:     body.Initiative,
			RollInitiative: body.RollInitiative,
			DexModifier:    body.DexModifier,
			HP:             body.HP,
			MaxHP:          body.MaxHP,
			AC:             body.AC,
			Conditions:     body.Conditions,
			CharacterID:    body.CharacterID,
			StatBlock:      body.StatBlock,
		})
	}
	return drafts
}

func (g *Gateway) handleStartEncounter(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name       string               `json:"name"`
		Combatants []combatantDraftBody `json:"combatants"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	encounter, err := g.encounters.StartEncounter(r.Context(), encounterservice.StartEncounterInput{
		CampaignID: r.PathValue("campaignID"),
		ActorUID:   caller.UID,
		Name:       body.Name,
		Drafts:     draftsFromBodies(body.Combatants),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encounterViewOf(encounter))
}

func (g *Gateway) handleActiveEncounter(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	encounter, active, err := g.encounters.GetActiveEncounter(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	if !active {
		// No active encounter is a normal state, not an error.
		writeJSON(w, http.StatusOK, struct {
			Active bool `json:"active"`
		}{false})
		return
	}
	writeJSON(w, http.StatusOK, encounterViewOf(encounter))
}

func (g *Gateway) handleGetEncounter(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	encounter, err := g.encounters.GetEncounter(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("encounterID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encounterViewOf(encounter))
}

func (g *Gateway) handleNextTurn(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	encounter, err := g.encounters.NextTurn(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("encounterID"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, encounterViewOf(encounter))
}

func (g *Gateway) handleUpdateCombatant(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name       *string   `json:"name"`
		Initiative *int      `json:"initiative"`
		HP         *int      `json:"hp"`
		MaxHP      *int      `json:"maxHp"`
		AC         *int      `json:"ac"`
		Conditions *[]string `json:"conditions"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	combatant, err := g.encounters.UpdateCombatant(r.Context(), caller.UID,
		r.PathValue("campaignID"), r.PathValue("encounterID"), r.PathValue("combatantID"),
		encounterdomain.CombatantPatch{
			Name:       body.Name,
			Initiative: body.Initiative,
			HP:         body.HP,
			MaxHP:      body.MaxHP,
			AC:         body.AC,
			Conditions: body.Conditions,
		})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, combatantViewOf(combatant))
}

func (g *Gateway) handleAppendLog(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Type        string `json:"type"`
		ActorName   string `json:"actorName"`
		Description string `json:"description"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	err := g.encounters.AppendCombatLog(r.Context(), caller.UID,
		r.PathValue("campaignID"), r.PathValue("encounterID"),
		encounterdomain.LogEntryType(body.Type), body.ActorName, body.Description)
	if err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleEndEncounter(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.encounters.EndEncounter(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("encounterID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handleGenerateEncounter asks the AI collaborator for an encounter draft and
// returns it alongside ready-to-start combatant drafts. Starting the
// encounter remains a separate, explicit call.
func (g *Gateway) handleGenerateEncounter(w http.ResponseWriter, r *http.Request) {
	if g.ai == nil {
		http.NotFound(w, r)
		return
	}
	caller := callerFrom(r.Context())
	var body struct {
		PartyLevels  []int    `json:"partyLevels"`
		PartyClasses []string `json:"partyClasses"`
		Difficulty   string   `json:"difficulty"`
		Environment  string   `json:"environment"`
		Scenario     string   `json:"scenario"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	draft, err := g.ai.GenerateEncounter(r.Context(), caller.UID, ai.EncounterPrompt{
		PartyLevels:  body.PartyLevels,
		PartyClasses: body.PartyClasses,
		Difficulty:   body.Difficulty,
		Environment:  body.Environment,
		Scenario:     body.Scenario,
	})
	if err != nil {
		writeError(w, err)
		return
	}
	combatants := make([]combatantDraftBody, 0, len(draft.Creatures))
	for _, creature := range draft.Creatures {
		for i := 0; i < creature.Count; i++ {
			combatants = append(combatants, combatantDraftBody{
				Name:           creature.Name,
				Type:           encounterdomain.CombatantTypeLabel(encounterdomain.CombatantTypeMonster),
				RollInitiative: true,
				DexModifier:    creature.DexModifier,
				HP:             creature.HP,
				MaxHP:          creature.HP,
				AC:             creature.AC,
			})
		}
	}
	writeJSON(w, http.StatusOK, struct {
		Draft      ai.EncounterDraft    `json:"draft"`
		Combatants []combatantDraftBody `json:"combatants"`
	}{draft, combatants})
}

func (g *Gateway) handleSaveTemplate(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name       string               `json:"name"`
		Combatants []combatantDraftBody `json:"combatants"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	template, err := g.encounters.SaveTemplate(r.Context(), caller.UID, r.PathValue("campaignID"), body.Name, draftsFromBodies(body.Combatants))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, templateViewOf(template))
}

func (g *Gateway) handleListTemplates(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	templates, err := g.encounters.ListTemplates(r.Context(), caller.UID, r.PathValue("campaignID"))
	if err != nil {
		writeError(w, err)
		return
	}
	views := make([]templateView, 0, len(templates))
	for _, template := range templates {
		views = append(views, templateViewOf(template))
	}
	writeJSON(w, http.StatusOK, views)
}

func (g *Gateway) handleDeleteTemplate(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	if err := g.encounters.DeleteTemplate(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("templateID")); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (g *Gateway) handleStartFromTemplate(w http.ResponseWriter, r *http.Request) {
	caller := callerFrom(r.Context())
	var body struct {
		Name string `json:"name"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	encounter, err := g.encounters.StartFromTemplate(r.Context(), caller.UID, r.PathValue("campaignID"), r.PathValue("templateID"), body.Name)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, encounterViewOf(encounter))
}
